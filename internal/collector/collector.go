// Package collector implements the Type Reference Collector: a
// cycle-safe walk over a go/types.Type graph that records every named
// type it touches, grouped by owning package.
//
// Go's type graph is self-referential in the same way TS's is (a struct
// field can reference its own type through a pointer, a slice of itself,
// or mutual recursion between two types), so the walk is keyed by type
// identity rather than by name: a map[types.Type]bool visited set, the
// same identity-keyed cycle guard idiom go/types itself uses internally
// (e.g. in types.Identical's own recursion guard).
package collector

import (
	"go/types"
	"sort"

	"github.com/cwbudde/tsapigraph/internal/builtin"
)

// Ref is one named-type reference discovered during a walk.
type Ref struct {
	Package string
	Name    string
}

// Collector accumulates Refs across possibly many Walk calls, de-duplicating
// by (package, name) and by type identity within a single walk to avoid
// infinite recursion on cyclic types.
type Collector struct {
	visited map[types.Type]bool
	seen    map[Ref]bool
	refs    []Ref
}

// New returns an empty Collector.
func New() *Collector {
	return &Collector{
		visited: map[types.Type]bool{},
		seen:    map[Ref]bool{},
	}
}

// Refs returns the accumulated references in discovery order.
func (c *Collector) Refs() []Ref {
	out := make([]Ref, len(c.refs))
	copy(out, c.refs)
	return out
}

// Walk records t and recurses into its structure: struct fields, pointer
// and slice/array/map/chan elements, interface methods and embeddeds,
// signature parameters/results, and named-type underlying types. Builtin
// types are visited for their structure but never themselves recorded as
// a Ref (builtin.IsBuiltin).
func (c *Collector) Walk(t types.Type) {
	if t == nil || c.visited[t] {
		return
	}
	c.visited[t] = true

	if named, ok := t.(*types.Named); ok {
		if !builtin.IsBuiltin(named) {
			c.record(named)
		}
		for i := 0; i < named.NumMethods(); i++ {
			c.Walk(named.Method(i).Type())
		}
		c.Walk(named.Underlying())
		for i := 0; i < named.TypeArgs().Len(); i++ {
			c.Walk(named.TypeArgs().At(i))
		}
		return
	}

	switch u := t.(type) {
	case *types.Pointer:
		c.Walk(u.Elem())
	case *types.Slice:
		c.Walk(u.Elem())
	case *types.Array:
		c.Walk(u.Elem())
	case *types.Map:
		c.Walk(u.Key())
		c.Walk(u.Elem())
	case *types.Chan:
		c.Walk(u.Elem())
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			c.Walk(u.Field(i).Type())
		}
	case *types.Interface:
		for i := 0; i < u.NumMethods(); i++ {
			c.Walk(u.Method(i).Type())
		}
		for i := 0; i < u.NumEmbeddeds(); i++ {
			c.Walk(u.EmbeddedType(i))
		}
	case *types.Signature:
		if u.Params() != nil {
			c.walkTuple(u.Params())
		}
		if u.Results() != nil {
			c.walkTuple(u.Results())
		}
	case *types.Tuple:
		c.walkTuple(u)
	case *types.Basic:
		// nothing further to walk
	}
}

func (c *Collector) walkTuple(tup *types.Tuple) {
	for i := 0; i < tup.Len(); i++ {
		c.Walk(tup.At(i).Type())
	}
}

// CollectNames runs a fresh, independently-cycle-guarded walk over each
// given type and returns the sorted, de-duplicated set of named-type
// names (local or external) it transitively mentions. This is how the
// Entity Extractor populates one entity's ReferencedTypes, scoped per
// enclosing entity, without polluting the whole-module Collector a caller
// may also be accumulating Refs into for dependency resolution.
func CollectNames(types_ ...types.Type) []string {
	c := New()
	for _, t := range types_ {
		c.Walk(t)
	}
	names := make([]string, 0, len(c.refs))
	seen := map[string]bool{}
	for _, r := range c.refs {
		if seen[r.Name] {
			continue
		}
		seen[r.Name] = true
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

func (c *Collector) record(named *types.Named) {
	obj := named.Obj()
	if obj.Pkg() == nil {
		return
	}
	ref := Ref{Package: obj.Pkg().Path(), Name: obj.Name()}
	if c.seen[ref] {
		return
	}
	c.seen[ref] = true
	c.refs = append(c.refs, ref)
}
