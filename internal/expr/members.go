package expr

import (
	"fmt"
	"reflect"
)

// MemberKind discriminates member handles.
type MemberKind int

const (
	FieldMember MemberKind = iota
	PropertyMember
	MethodMember
	ConstructorMember
)

// MappingTag is the struct tag that maps an entity field to its record
// property name.
const MappingTag = "mapping"

// Member is a live handle to a field, property, method or constructor.
type Member interface {
	MemberKind() MemberKind
	DeclaringType() reflect.Type
	MemberName() string
	memberNode()
}

// Field is an exported struct field.
type Field struct {
	Declaring reflect.Type
	Name      string
	Type      reflect.Type
	Index     []int

	// Mapping is the value of the field's mapping tag, empty when absent.
	Mapping string
}

func (*Field) MemberKind() MemberKind        { return FieldMember }
func (f *Field) DeclaringType() reflect.Type { return f.Declaring }
func (f *Field) MemberName() string          { return f.Name }
func (*Field) memberNode()                   {}

// FieldOf returns the named exported field of struct type t (or *t).
func FieldOf(t reflect.Type, name string) (*Field, error) {
	st := derefStruct(t)
	if st == nil {
		return nil, fmt.Errorf("field %s: %s is not a struct type", name, t)
	}
	sf, ok := st.FieldByName(name)
	if !ok || !sf.IsExported() {
		return nil, fmt.Errorf("field %s not found in %s", name, st)
	}
	return &Field{
		Declaring: st,
		Name:      sf.Name,
		Type:      sf.Type,
		Index:     sf.Index,
		Mapping:   sf.Tag.Get(MappingTag),
	}, nil
}

// Property is a getter method with one result, optionally taking index
// arguments, or a field of an unnamed struct type.
type Property struct {
	Declaring  reflect.Type
	Name       string
	Type       reflect.Type
	IndexTypes []reflect.Type

	// Mapping is supplied at registration; Go methods carry no tags.
	Mapping string

	fieldIndex []int
}

func (*Property) MemberKind() MemberKind        { return PropertyMember }
func (p *Property) DeclaringType() reflect.Type { return p.Declaring }
func (p *Property) MemberName() string          { return p.Name }
func (*Property) memberNode()                   {}

// IsField reports whether the property is backed by a struct field.
func (p *Property) IsField() bool {
	return p.fieldIndex != nil
}

// CanWrite reports whether the property accepts assignment.
func (p *Property) CanWrite() bool {
	return p.IsField()
}

// PropertyOf returns the named property of t. Unnamed struct types expose
// their fields; any other type exposes getter methods from its method set.
func PropertyOf(t reflect.Type, name string) (*Property, error) {
	if t == nil {
		return nil, fmt.Errorf("property %s: nil type", name)
	}
	if IsStructural(t) {
		sf, ok := t.FieldByName(name)
		if !ok || !sf.IsExported() {
			return nil, fmt.Errorf("property %s not found in %s", name, t)
		}
		return &Property{
			Declaring:  t,
			Name:       sf.Name,
			Type:       sf.Type,
			Mapping:    sf.Tag.Get(MappingTag),
			fieldIndex: sf.Index,
		}, nil
	}
	m, ok := t.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("property %s not found in %s", name, t)
	}
	ft := m.Type
	offset := 0
	if t.Kind() != reflect.Interface {
		offset = 1 // receiver
	}
	if ft.NumOut() != 1 || ft.IsVariadic() {
		return nil, fmt.Errorf("method %s.%s is not a getter", t, name)
	}
	idx := make([]reflect.Type, 0, ft.NumIn()-offset)
	for i := offset; i < ft.NumIn(); i++ {
		idx = append(idx, ft.In(i))
	}
	return &Property{Declaring: t, Name: name, Type: ft.Out(0), IndexTypes: idx}, nil
}

// StructuralProperty returns the property of an unnamed struct type
// backed by the given field. It is how factories outside this package build
// properties over materialized records.
func StructuralProperty(t reflect.Type, sf reflect.StructField) *Property {
	return &Property{
		Declaring:  t,
		Name:       sf.Name,
		Type:       sf.Type,
		Mapping:    sf.Tag.Get(MappingTag),
		fieldIndex: sf.Index,
	}
}

// Method is a method from a type's method set, or a package-level function
// when Declaring is nil.
type Method struct {
	Declaring reflect.Type
	Package   string
	Name      string
	Params    []reflect.Type
	Result    reflect.Type
	Variadic  bool

	// Func is the function value for package functions and instantiations
	// of generic functions. Methods are looked up by name on the receiver.
	Func reflect.Value

	// TypeArgs are the type arguments of a generic function instantiation.
	TypeArgs []reflect.Type
}

func (*Method) MemberKind() MemberKind        { return MethodMember }
func (m *Method) DeclaringType() reflect.Type { return m.Declaring }
func (m *Method) MemberName() string          { return m.Name }
func (*Method) memberNode()                   {}

// IsStatic reports whether the method is a package-level function.
func (m *Method) IsStatic() bool {
	return m.Declaring == nil
}

// IsGeneric reports whether the method is an instantiation of a generic
// function.
func (m *Method) IsGeneric() bool {
	return len(m.TypeArgs) > 0
}

// String returns pkg.Name or Type.Name.
func (m *Method) String() string {
	if m.Declaring == nil {
		return m.Package + "." + m.Name
	}
	return m.Declaring.String() + "." + m.Name
}

// MethodOf returns the named method in t's method set.
func MethodOf(t reflect.Type, name string) (*Method, error) {
	if t == nil {
		return nil, fmt.Errorf("method %s: nil type", name)
	}
	rm, ok := t.MethodByName(name)
	if !ok {
		return nil, fmt.Errorf("method %s not found in %s", name, t)
	}
	offset := 0
	if t.Kind() != reflect.Interface {
		offset = 1
	}
	return signature(&Method{Declaring: t, Name: name}, rm.Type, offset)
}

// Func returns a package-level function handle. fn must be a func value
// with at most one result.
func Func(pkg, name string, fn any) (*Method, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("func %s.%s: not a function value", pkg, name)
	}
	return signature(&Method{Package: pkg, Name: name, Func: v}, v.Type(), 0)
}

// MustFunc is like Func but panics on error.
func MustFunc(pkg, name string, fn any) *Method {
	m, err := Func(pkg, name, fn)
	if err != nil {
		panic(err)
	}
	return m
}

func signature(m *Method, ft reflect.Type, offset int) (*Method, error) {
	if ft.NumOut() > 1 {
		return nil, fmt.Errorf("%s: %d results; only single-result functions are expressible", m, ft.NumOut())
	}
	for i := offset; i < ft.NumIn(); i++ {
		m.Params = append(m.Params, ft.In(i))
	}
	m.Variadic = ft.IsVariadic()
	m.Result = VoidType
	if ft.NumOut() == 1 {
		m.Result = ft.Out(0)
	}
	return m, nil
}

// CtorParam describes a constructor parameter.
type CtorParam struct {
	Name string
	Type reflect.Type

	// Mapping names the record property the parameter initializes.
	Mapping string
}

// Constructor is a registered constructor function for Type.
type Constructor struct {
	Type   reflect.Type
	Func   reflect.Value
	Params []CtorParam
}

func (*Constructor) MemberKind() MemberKind        { return ConstructorMember }
func (c *Constructor) DeclaringType() reflect.Type { return c.Type }
func (*Constructor) MemberName() string            { return "new" }
func (*Constructor) memberNode()                   {}

// NewConstructor wraps fn, a function returning exactly one value, as a
// constructor. Names are matched positionally to fn's parameters; missing
// names default to the parameter position.
func NewConstructor(fn any, params ...CtorParam) (*Constructor, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("constructor: not a function value")
	}
	ft := v.Type()
	if ft.NumOut() != 1 {
		return nil, fmt.Errorf("constructor %s: must return exactly one value", ft)
	}
	if len(params) > ft.NumIn() {
		return nil, fmt.Errorf("constructor %s: %d parameter descriptions for %d parameters", ft, len(params), ft.NumIn())
	}
	out := make([]CtorParam, ft.NumIn())
	for i := range out {
		if i < len(params) {
			out[i] = params[i]
		}
		if out[i].Name == "" {
			out[i].Name = fmt.Sprintf("p%d", i)
		}
		out[i].Type = ft.In(i)
	}
	return &Constructor{Type: ft.Out(0), Func: v, Params: out}, nil
}

// MustConstructor is like NewConstructor but panics on error.
func MustConstructor(fn any, params ...CtorParam) *Constructor {
	c, err := NewConstructor(fn, params...)
	if err != nil {
		panic(err)
	}
	return c
}

// ParamTypes returns the constructor's parameter types.
func (c *Constructor) ParamTypes() []reflect.Type {
	out := make([]reflect.Type, len(c.Params))
	for i, p := range c.Params {
		out[i] = p.Type
	}
	return out
}

// MemberType returns the value type of a field or property.
func MemberType(m Member) (reflect.Type, bool) {
	switch x := m.(type) {
	case *Field:
		return x.Type, true
	case *Property:
		return x.Type, true
	}
	return nil, false
}

func derefStruct(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}
