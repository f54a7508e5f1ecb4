package recordize

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"

	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
	"github.com/roach88/slim/internal/subst"
)

// entity is a mapped struct type and the record that replaces it.
type entity struct {
	native reflect.Type
	desc   *slim.SimpleType
	record *slim.StructuralType
	fields []mappedField

	// byField maps Go field names to mapping names, including unmapped
	// fields with an empty mapping.
	byField map[string]string
	// byMapping maps mapping names to the entity-side property type.
	byMapping map[string]slim.Type
}

type mappedField struct {
	name    string
	mapping string
	index   []int
	typ     reflect.Type
}

type session struct {
	r        *Recordizer
	entities map[string]*entity
	byNative map[reflect.Type]*entity
	order    []*entity
	checked  map[string]bool
	seen     map[slim.Type]bool
	types    *subst.TypeMap
}

func (r *Recordizer) session() *session {
	return &session{
		r:        r,
		entities: make(map[string]*entity),
		byNative: make(map[reflect.Type]*entity),
		checked:  make(map[string]bool),
		seen:     make(map[slim.Type]bool),
		types:    subst.NewTypeMap(),
	}
}

// discoverExpression finds the entities mentioned anywhere in e.
func (s *session) discoverExpression(e slim.Expression) error {
	var err error
	visit := func(t slim.Type) {
		if err == nil && t != nil {
			err = s.discover(t)
		}
	}
	visitMember := func(m slim.MemberInfo) {
		if m == nil {
			return
		}
		visit(m.DeclaringType())
		if mt, ok := slim.MemberType(m); ok {
			visit(mt)
		}
	}
	var visitBindings func(bs []slim.MemberBinding)
	visitBindings = func(bs []slim.MemberBinding) {
		for _, b := range bs {
			visitMember(b.BoundMember())
			if mb, ok := b.(*slim.MemberMemberBinding); ok {
				visitBindings(mb.Bindings)
			}
		}
	}
	slim.Walk(e, func(n slim.Expression) bool {
		visit(slim.TypeOf(n))
		switch x := n.(type) {
		case *slim.Member:
			visitMember(x.Member)
		case *slim.Call:
			if x.Method != nil {
				visit(x.Method.DeclaringType())
			}
		case *slim.New:
			if x.Constructor != nil {
				visit(x.Constructor.Declaring)
			}
		case *slim.MemberInit:
			visitBindings(x.Bindings)
		case *slim.TypeBinary:
			visit(x.TypeOperand)
		case *slim.Try:
			for _, h := range x.Handlers {
				visit(h.Test)
			}
		}
		return err == nil
	})
	return err
}

// discover records the entities reachable from t, following the mapped
// fields of every entity found.
func (s *session) discover(t slim.Type) error {
	if t == nil || s.seen[t] {
		return nil
	}
	s.seen[t] = true
	switch x := t.(type) {
	case *slim.SimpleType:
		return s.simple(x)
	case *slim.GenericType:
		for _, a := range x.Arguments {
			if err := s.discover(a); err != nil {
				return err
			}
		}
	case *slim.ArrayType:
		return s.discover(x.Element)
	case *slim.StructuralType:
		for _, p := range x.Properties() {
			if err := s.discover(p.Type); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *session) simple(d *slim.SimpleType) error {
	key := d.QualifiedName()
	if s.checked[key] {
		return nil
	}
	s.checked[key] = true
	if slim.IsPackage(d) || slim.IsVoid(d) || d.Assembly == "" {
		return nil
	}
	if s.r.knownNames[key] {
		return nil
	}
	native, err := s.r.types.ToType(d)
	if err != nil {
		return err
	}
	if s.r.isKnown(native, d) || !isEntity(native) {
		return nil
	}
	ent, err := newEntity(native, d)
	if err != nil {
		return err
	}
	s.entities[key] = ent
	s.byNative[native] = ent
	s.order = append(s.order, ent)
	for _, f := range ent.fields {
		if err := s.discover(s.r.types.ToSlim(f.typ)); err != nil {
			return err
		}
	}
	return nil
}

// isEntity reports whether t is a named struct with a mapped field.
func isEntity(t reflect.Type) bool {
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return false
	}
	for i := range t.NumField() {
		if _, ok := t.Field(i).Tag.Lookup(expr.MappingTag); ok {
			return true
		}
	}
	return false
}

func newEntity(t reflect.Type, d *slim.SimpleType) (*entity, error) {
	ent := &entity{
		native:    t,
		desc:      d,
		byField:   make(map[string]string),
		byMapping: make(map[string]slim.Type),
	}
	owners := make(map[string]string)
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		mapping := sf.Tag.Get(expr.MappingTag)
		ent.byField[sf.Name] = mapping
		if mapping == "" {
			continue
		}
		if prev, dup := owners[mapping]; dup {
			return nil, slim.NewMappingError(d.QualifiedName(), "fields %s and %s share mapping %q", prev, sf.Name, mapping)
		}
		owners[mapping] = sf.Name
		ent.fields = append(ent.fields, mappedField{name: sf.Name, mapping: mapping, index: sf.Index, typ: sf.Type})
	}
	return ent, nil
}

// build creates one open record per entity, registers them all in the type
// map and only then adds properties, so entities may refer to each other
// and to themselves.
func (s *session) build() error {
	for _, ent := range s.order {
		if ent.record != nil {
			continue
		}
		ent.record = slim.NewStructuralType(slim.StructuralRecord, true)
		s.types.Add(ent.desc, ent.record)
	}
	for _, ent := range s.order {
		if ent.record.Frozen() {
			continue
		}
		for _, f := range ent.fields {
			d := s.r.types.ToSlim(f.typ)
			ent.byMapping[f.mapping] = d
			if _, err := ent.record.AddProperty(f.mapping, subst.Type(s.types, d), true); err != nil {
				return err
			}
		}
	}
	for _, ent := range s.order {
		ent.record.Freeze()
	}
	return nil
}

// entityOf returns the entity t denotes, looking through one pointer.
func (s *session) entityOf(t slim.Type) *entity {
	if elem, ok := slim.PointerElem(t); ok {
		t = elem
	}
	if d, ok := t.(*slim.SimpleType); ok {
		return s.entities[d.QualifiedName()]
	}
	return nil
}

// erased reports whether recordization changes the native type t.
func (s *session) erased(t reflect.Type) bool {
	d := s.r.types.ToSlim(t)
	return subst.Type(s.types, d) != d
}

// constant converts entity-typed constants to record values.
func (s *session) constant(value any, from, to slim.Type) (any, error) {
	switch x := value.(type) {
	case nil:
		return nil, nil
	case slim.Lifted:
		native, err := s.r.types.ToType(from)
		if err != nil {
			return nil, err
		}
		p := reflect.New(native)
		if err := json.Unmarshal(x, p.Interface()); err != nil {
			return nil, slim.NewMappingError(slim.FormatType(from), "cannot decode constant").WithCause(err)
		}
		value = p.Elem().Interface()
	}
	v := reflect.ValueOf(value)
	if !s.erased(v.Type()) {
		return subst.DefaultConstantConverter(value, from, to)
	}
	return s.lift(v)
}

func (s *session) lift(v reflect.Value) (slim.Lifted, error) {
	out, err := s.value(v, make(map[uintptr]bool))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, slim.NewMappingError(v.Type().String(), "cannot encode record value").WithCause(err)
	}
	return slim.Lifted(data), nil
}

// value rebuilds v with every entity replaced by a map keyed by mapping
// names. Parts whose type mentions no entity are kept as they are.
func (s *session) value(v reflect.Value, active map[uintptr]bool) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	if !s.erased(v.Type()) {
		return v.Interface(), nil
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		if active[v.Pointer()] {
			return nil, slim.NewMappingError(v.Type().String(), "cyclic value cannot become a record value")
		}
		active[v.Pointer()] = true
		defer delete(active, v.Pointer())
		return s.value(v.Elem(), active)
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return s.value(v.Elem(), active)
	case reflect.Struct:
		ent := s.byNative[v.Type()]
		if ent == nil {
			return v.Interface(), nil
		}
		out := make(map[string]any, len(ent.fields))
		for _, f := range ent.fields {
			fv, err := s.value(v.FieldByIndex(f.index), active)
			if err != nil {
				return nil, err
			}
			out[f.mapping] = fv
		}
		return out, nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		out := make([]any, v.Len())
		for i := range out {
			ev, err := s.value(v.Index(i), active)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			ev, err := s.value(iter.Value(), active)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(iter.Key().Interface())] = ev
		}
		return out, nil
	}
	return v.Interface(), nil
}
