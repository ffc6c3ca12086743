package resolution

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/tsawler/pdfshrink/contentstream"
)

const (
	// PointsPerInch is the size of one default user space unit.
	PointsPerInch = 72.0
	// NonSquareTolerance is the relative difference between horizontal and
	// vertical DPI above which a placement is reported as distorted.
	NonSquareTolerance = 0.05
)

// ErrLookupMiss is returned by Map.Lookup for keys that were never observed.
var ErrLookupMiss = errors.New("resolution: no resolution recorded")

// Scope selects how image keys are formed.
type Scope int

const (
	// ScopeDocument keys images by resource name alone.
	ScopeDocument Scope = iota
	// ScopePage keys images by "<page>/<name>", pages counted from 1.
	ScopePage
)

func (s Scope) String() string {
	switch s {
	case ScopeDocument:
		return "document"
	case ScopePage:
		return "page"
	}
	return fmt.Sprintf("scope(%d)", int(s))
}

// ParseScope parses "document" or "page".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "document", "":
		return ScopeDocument, nil
	case "page":
		return ScopePage, nil
	}
	return 0, fmt.Errorf("unknown key scope %q", s)
}

// KeyFor returns the map key of the image bound to name on the page with
// the given zero-based index.
func KeyFor(scope Scope, pageIndex int, name string) string {
	if scope == ScopePage {
		return fmt.Sprintf("%d/%s", pageIndex+1, name)
	}
	return name
}

// Compute returns the horizontal, vertical and mean DPI of an occurrence.
func Compute(o contentstream.Occurrence) (dpiX, dpiY, dpi float64) {
	dpiX = float64(o.PixelWidth) / (o.XScale / PointsPerInch)
	dpiY = float64(o.PixelHeight) / (o.YScale / PointsPerInch)
	dpi = 0.5 * (dpiX + dpiY)
	return dpiX, dpiY, dpi
}

// IsNonSquare reports whether dpiX and dpiY differ by more than
// NonSquareTolerance relative to their mean. Exactly the tolerance is
// still square.
func IsNonSquare(dpiX, dpiY float64) bool {
	dpi := 0.5 * (dpiX + dpiY)
	if dpi == 0 {
		return false
	}
	return math.Abs(dpiX-dpiY)/dpi > NonSquareTolerance
}

// Map holds the minimum DPI observed per key. It is not safe for
// concurrent use; it is built completely before anything reads it.
type Map struct {
	values map[string]float64
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{values: make(map[string]float64)}
}

// Observe records dpi for key and keeps the smaller of the new and stored
// values. It returns the previously stored value and whether there was one.
func (m *Map) Observe(key string, dpi float64) (previous float64, seen bool) {
	previous, seen = m.values[key]
	if !seen || dpi < previous {
		m.values[key] = dpi
	}
	return previous, seen
}

// Lookup returns the stored DPI for key, or an error wrapping
// ErrLookupMiss.
func (m *Map) Lookup(key string) (float64, error) {
	v, ok := m.values[key]
	if !ok {
		return 0, fmt.Errorf("%q: %w", key, ErrLookupMiss)
	}
	return v, nil
}

// Keys returns the keys in sorted order.
func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (m *Map) Len() int { return len(m.values) }
