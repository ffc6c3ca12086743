package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Record is one captured log record with its attributes flattened to
// strings ("key=value"), group names applied as dotted prefixes.
type Record struct {
	Level   slog.Level
	Message string
	Attrs   []string
}

// BufferedHandler is an slog.Handler that keeps records in memory, for
// tests that need to see what was logged.
//
//	h := logging.NewBufferedHandler(slog.LevelDebug)
//	logging.SetLogger(slog.New(h))
//	...
//	if !h.Contains("shrunk image") { ... }
type BufferedHandler struct {
	level  slog.Leveler
	store  *recordStore
	attrs  []slog.Attr
	groups []string
}

type recordStore struct {
	mu      sync.Mutex
	records []Record
}

// NewBufferedHandler captures records at or above level. A nil level
// captures everything.
func NewBufferedHandler(level slog.Leveler) *BufferedHandler {
	return &BufferedHandler{level: level, store: &recordStore{}}
}

// Enabled implements slog.Handler.
func (h *BufferedHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.level == nil || level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferedHandler) Handle(_ context.Context, r slog.Record) error {
	rec := Record{Level: r.Level, Message: r.Message}
	for _, a := range h.attrs {
		rec.Attrs = append(rec.Attrs, h.prefixed(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs = append(rec.Attrs, h.prefixed(a))
		return true
	})

	h.store.mu.Lock()
	h.store.records = append(h.store.records, rec)
	h.store.mu.Unlock()
	return nil
}

func (h *BufferedHandler) prefixed(a slog.Attr) string {
	if len(h.groups) == 0 {
		return a.String()
	}
	return strings.Join(h.groups, ".") + "." + a.String()
}

// WithAttrs implements slog.Handler.
func (h *BufferedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup implements slog.Handler.
func (h *BufferedHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// Records returns a copy of everything captured so far.
func (h *BufferedHandler) Records() []Record {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return append([]Record(nil), h.store.records...)
}

// Contains reports whether any captured message or attribute contains s.
func (h *BufferedHandler) Contains(s string) bool {
	for _, r := range h.Records() {
		if strings.Contains(r.Message, s) {
			return true
		}
		for _, a := range r.Attrs {
			if strings.Contains(a, s) {
				return true
			}
		}
	}
	return false
}

// Reset drops all captured records.
func (h *BufferedHandler) Reset() {
	h.store.mu.Lock()
	h.store.records = nil
	h.store.mu.Unlock()
}
