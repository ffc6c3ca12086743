// Package resolver follows PDF indirect references.
//
// PDF documents use indirect references (e.g., "5 0 R") to refer to objects
// stored elsewhere in the file. A reference may point at another
// reference; [Resolver.Resolve] follows such chains to the first direct
// object:
//
//	r := resolver.NewResolver(reader)
//	obj, err := r.Resolve(ref)
//
// [Resolver.ResolveDeep] additionally expands every reference nested in
// arrays, dictionaries and stream dictionaries. Image color spaces are
// expanded this way before their lookup tables are read.
//
// # Cycle Detection
//
// Circular references return an error instead of looping. The nesting
// depth is bounded and configurable:
//
//	r := resolver.NewResolver(reader, resolver.WithMaxDepth(50))
package resolver
