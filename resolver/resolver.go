package resolver

import (
	"errors"
	"fmt"

	"github.com/tsawler/pdfshrink/core"
)

// ErrCycle is returned when a reference leads back to itself.
var ErrCycle = errors.New("circular reference")

// DefaultMaxDepth bounds nesting in ResolveDeep.
const DefaultMaxDepth = 100

// ObjectReader loads the object behind a reference.
type ObjectReader interface {
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// Resolver resolves references through an ObjectReader. It keeps no state
// between calls.
type Resolver struct {
	reader   ObjectReader
	maxDepth int
}

// Option configures the resolver
type Option func(*Resolver)

// WithMaxDepth sets the maximum recursion depth (default: 100)
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// NewResolver creates a new object resolver
func NewResolver(reader ObjectReader, opts ...Option) *Resolver {
	r := &Resolver{
		reader:   reader,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve follows obj while it is a reference and returns the first direct
// object. Nested references are left alone.
func (r *Resolver) Resolve(obj core.Object) (core.Object, error) {
	var seen map[int]bool
	for {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			return obj, nil
		}
		if seen == nil {
			seen = make(map[int]bool)
		}
		if seen[ref.Number] {
			return nil, fmt.Errorf("object %d: %w", ref.Number, ErrCycle)
		}
		seen[ref.Number] = true

		resolved, err := r.reader.ResolveReference(ref)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reference %s: %w", ref, err)
		}
		obj = resolved
	}
}

// ResolveDeep expands every reference reachable from obj. The same object
// may appear in several branches; only a reference inside its own
// expansion is a cycle.
func (r *Resolver) ResolveDeep(obj core.Object) (core.Object, error) {
	return r.deep(obj, make(map[int]bool), 0)
}

func (r *Resolver) deep(obj core.Object, active map[int]bool, depth int) (core.Object, error) {
	if depth >= r.maxDepth {
		return nil, fmt.Errorf("maximum recursion depth (%d) exceeded", r.maxDepth)
	}

	switch v := obj.(type) {
	case core.IndirectRef:
		if active[v.Number] {
			return nil, fmt.Errorf("object %d: %w", v.Number, ErrCycle)
		}
		active[v.Number] = true
		defer delete(active, v.Number)

		resolved, err := r.reader.ResolveReference(v)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve reference %s: %w", v, err)
		}
		return r.deep(resolved, active, depth+1)

	case core.Dict:
		resolved := make(core.Dict, len(v))
		for key, value := range v {
			rv, err := r.deep(value, active, depth+1)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve dict key %s: %w", key, err)
			}
			resolved[key] = rv
		}
		return resolved, nil

	case core.Array:
		resolved := make(core.Array, len(v))
		for i, elem := range v {
			re, err := r.deep(elem, active, depth+1)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve array element %d: %w", i, err)
			}
			resolved[i] = re
		}
		return resolved, nil

	case *core.Stream:
		dict, err := r.deep(v.Dict, active, depth+1)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve stream dict: %w", err)
		}
		return &core.Stream{Dict: dict.(core.Dict), Data: v.Data}, nil
	}
	return obj, nil
}

// ResolveDict resolves obj and requires a dictionary. A missing object
// (nil or null) yields a nil dictionary and no error.
func (r *Resolver) ResolveDict(obj core.Object) (core.Dict, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	switch v := resolved.(type) {
	case nil, core.Null:
		return nil, nil
	case core.Dict:
		return v, nil
	case *core.Stream:
		return v.Dict, nil
	}
	return nil, fmt.Errorf("expected dictionary, got %T", resolved)
}
