// Package subst substitutes type descriptors in types and expression trees.
//
// Substitution is persistent: inputs are never modified, and an input is
// returned as the identical reference when nothing in it changed. Callers
// use that identity as the "did anything change" signal.
//
// In expression trees every member whose declaring type or signature
// changed is re-resolved through a Resolver, constants whose type changed
// go through the resolver's constant conversion, and each rebuilt node is
// re-typed by derivation. A node that no longer types is a RESOLUTION
// error; partial results are never returned.
package subst

import (
	"github.com/roach88/slim/internal/slim"
)

// TypeMap maps descriptors to their replacements. Keys match by
// structural equality.
type TypeMap struct {
	from    []slim.Type
	to      []slim.Type
	buckets map[uint64][]int
}

// NewTypeMap returns an empty map.
func NewTypeMap() *TypeMap {
	return &TypeMap{buckets: make(map[uint64][]int)}
}

// Map returns a map with a single entry.
func Map(from, to slim.Type) *TypeMap {
	return NewTypeMap().Add(from, to)
}

// Add maps from to to, replacing an existing entry for from. It returns m
// for chaining.
func (m *TypeMap) Add(from, to slim.Type) *TypeMap {
	h := slim.HashType(from)
	for _, i := range m.buckets[h] {
		if slim.TypeEqual(m.from[i], from) {
			m.to[i] = to
			return m
		}
	}
	m.buckets[h] = append(m.buckets[h], len(m.from))
	m.from = append(m.from, from)
	m.to = append(m.to, to)
	return m
}

// Lookup returns the replacement for t.
func (m *TypeMap) Lookup(t slim.Type) (slim.Type, bool) {
	if m == nil || t == nil {
		return nil, false
	}
	for _, i := range m.buckets[slim.HashType(t)] {
		if slim.TypeEqual(m.from[i], t) {
			return m.to[i], true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (m *TypeMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.from)
}

// Type substitutes m in t. It returns t itself when no leaf of t is
// mapped.
func Type(m *TypeMap, t slim.Type) slim.Type {
	if t == nil || m.Len() == 0 {
		return t
	}
	return newTypeSubst(m).typ(t)
}

// typeSubst substitutes within one operation. Rebuilt structural types are
// remembered so cycles and shared shapes are rebuilt once.
type typeSubst struct {
	m    *TypeMap
	done map[*slim.StructuralType]*slim.StructuralType
}

func newTypeSubst(m *TypeMap) *typeSubst {
	return &typeSubst{m: m, done: make(map[*slim.StructuralType]*slim.StructuralType)}
}

func (s *typeSubst) typ(t slim.Type) slim.Type {
	if t == nil {
		return nil
	}
	if r, ok := s.m.Lookup(t); ok {
		return r
	}
	switch x := t.(type) {
	case *slim.GenericType:
		def := x.Definition
		if r, ok := s.m.Lookup(def); ok {
			if rd, ok := r.(*slim.GenericDefinitionType); ok {
				def = rd
			}
		}
		args, changed := s.list(x.Arguments)
		if !changed && def == x.Definition {
			return x
		}
		return &slim.GenericType{Definition: def, Arguments: args}
	case *slim.ArrayType:
		e := s.typ(x.Element)
		if e == x.Element {
			return x
		}
		return &slim.ArrayType{Element: e, Rank: x.Rank}
	case *slim.StructuralType:
		return s.structural(x)
	}
	return t
}

func (s *typeSubst) list(ts []slim.Type) ([]slim.Type, bool) {
	var out []slim.Type
	for i, t := range ts {
		nt := s.typ(t)
		if nt != t && out == nil {
			out = make([]slim.Type, len(ts))
			copy(out, ts[:i])
		}
		if out != nil {
			out[i] = nt
		}
	}
	if out == nil {
		return ts, false
	}
	return out, true
}

func (s *typeSubst) structural(x *slim.StructuralType) slim.Type {
	if r, ok := s.done[x]; ok {
		return r
	}
	if !s.changes(x, make(map[slim.Type]bool)) {
		s.done[x] = x
		return x
	}
	// Register the open replacement before descending so that cycles
	// through x refer to it.
	nt := slim.NewStructuralType(x.StructuralKind(), x.HasValueEquality())
	s.done[x] = nt
	for _, p := range x.Properties() {
		// Names are unique in x, so AddProperty cannot fail.
		_, _ = nt.AddProperty(p.Name, s.typ(p.Type), p.CanWrite)
	}
	return nt.Freeze()
}

// changes reports whether substituting t yields a different descriptor.
// A structural type met again on the current path is assumed unchanged;
// any real change on the cycle is found along another edge.
func (s *typeSubst) changes(t slim.Type, path map[slim.Type]bool) bool {
	if t == nil {
		return false
	}
	if r, ok := s.m.Lookup(t); ok {
		return r != t
	}
	switch x := t.(type) {
	case *slim.GenericType:
		if r, ok := s.m.Lookup(x.Definition); ok {
			if _, isDef := r.(*slim.GenericDefinitionType); isDef && r != slim.Type(x.Definition) {
				return true
			}
		}
		for _, a := range x.Arguments {
			if s.changes(a, path) {
				return true
			}
		}
	case *slim.ArrayType:
		return s.changes(x.Element, path)
	case *slim.StructuralType:
		if r, ok := s.done[x]; ok {
			return r != x
		}
		if path[x] {
			return false
		}
		path[x] = true
		defer delete(path, x)
		for _, p := range x.Properties() {
			if s.changes(p.Type, path) {
				return true
			}
		}
	}
	return false
}
