package typesys

import (
	"reflect"
	"strconv"

	"github.com/roach88/slim/internal/slim"
)

// TypeComparer decides equality of native types. Types selected by
// Structural compare by property set (field order and declared names are
// not significant, only property names and types); all other types compare
// by identity, except that composite types compare componentwise so a slice
// of one structural shape equals a slice of an equal shape.
//
// Comparison is coinductive, as for slim.TypeComparer.
type TypeComparer struct {
	// Structural selects the types compared by shape. Nil means unnamed
	// struct types.
	Structural func(reflect.Type) bool
}

type nativePair struct {
	a, b reflect.Type
}

// Equal reports whether a and b are equal under c.
func (c TypeComparer) Equal(a, b reflect.Type) bool {
	structural := c.Structural
	if structural == nil {
		structural = func(t reflect.Type) bool {
			return t.Kind() == reflect.Struct && t.Name() == ""
		}
	}
	q := nativeEq{structural: structural}
	return q.equal(a, b)
}

type nativeEq struct {
	structural func(reflect.Type) bool
	assumed    map[nativePair]struct{}
}

func (q *nativeEq) equal(a, b reflect.Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	if q.structural(a) && q.structural(b) {
		return q.shape(a, b)
	}
	if a.Name() != "" || b.Name() != "" || a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case reflect.Pointer, reflect.Slice:
		return q.equal(a.Elem(), b.Elem())
	case reflect.Array:
		return a.Len() == b.Len() && q.equal(a.Elem(), b.Elem())
	case reflect.Chan:
		return a.ChanDir() == b.ChanDir() && q.equal(a.Elem(), b.Elem())
	case reflect.Map:
		return q.equal(a.Key(), b.Key()) && q.equal(a.Elem(), b.Elem())
	case reflect.Func:
		if a.NumIn() != b.NumIn() || a.NumOut() != b.NumOut() || a.IsVariadic() != b.IsVariadic() {
			return false
		}
		for i := range a.NumIn() {
			if !q.equal(a.In(i), b.In(i)) {
				return false
			}
		}
		for i := range a.NumOut() {
			if !q.equal(a.Out(i), b.Out(i)) {
				return false
			}
		}
		return true
	}
	return false
}

func (q *nativeEq) shape(a, b reflect.Type) bool {
	if a.Kind() != reflect.Struct || b.Kind() != reflect.Struct {
		return false
	}
	pa, pb := properties(a), properties(b)
	if len(pa) != len(pb) || valueEquality(a) != valueEquality(b) {
		return false
	}
	pair := nativePair{a, b}
	if _, ok := q.assumed[pair]; ok {
		return true
	}
	if q.assumed == nil {
		q.assumed = make(map[nativePair]struct{})
	}
	q.assumed[pair] = struct{}{}
	for name, ta := range pa {
		tb, ok := pb[name]
		if !ok || !q.equal(ta, tb) {
			delete(q.assumed, pair)
			return false
		}
	}
	return true
}

func properties(t reflect.Type) map[string]reflect.Type {
	out := make(map[string]reflect.Type, t.NumField())
	for i := range t.NumField() {
		sf := t.Field(i)
		if sf.IsExported() {
			out[PropertyName(sf)] = sf.Type
		}
	}
	return out
}

func valueEquality(t reflect.Type) bool {
	if t.NumField() > 0 {
		if tag, ok := parseTag(t.Field(0)); ok {
			return tag.valueEquality
		}
	}
	return t.Comparable()
}

// IsTuple reports whether t is a materialized tuple, or an unnamed struct
// whose exported fields are exactly Item1..ItemN in order.
func IsTuple(t reflect.Type) bool {
	if t == nil || t.Kind() != reflect.Struct || t.Name() != "" || t.NumField() == 0 {
		return false
	}
	if tag, ok := parseTag(t.Field(0)); ok {
		return tag.kind == slim.StructuralTuple || tupleNames(t)
	}
	return tupleNames(t)
}

func tupleNames(t reflect.Type) bool {
	for i := range t.NumField() {
		if PropertyName(t.Field(i)) != "Item"+strconv.Itoa(i+1) {
			return false
		}
	}
	return true
}
