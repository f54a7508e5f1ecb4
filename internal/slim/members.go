package slim

// MemberKind identifies the variant of a member descriptor.
type MemberKind int

const (
	MemberField MemberKind = iota
	MemberProperty
	MemberMethod
	MemberConstructor
)

// String returns the kind name.
func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberProperty:
		return "property"
	case MemberMethod:
		return "method"
	case MemberConstructor:
		return "constructor"
	default:
		return "unknown"
	}
}

// MemberInfo describes a field, property, method or constructor without a
// live reflection handle. Sealed like Type.
type MemberInfo interface {
	MemberKind() MemberKind
	DeclaringType() Type
	MemberName() string
	memberSlim()
}

// FieldInfo describes a struct field of a nominal type.
type FieldInfo struct {
	Declaring Type
	Name      string
	FieldType Type
}

func (*FieldInfo) MemberKind() MemberKind { return MemberField }
func (f *FieldInfo) DeclaringType() Type  { return f.Declaring }
func (f *FieldInfo) MemberName() string   { return f.Name }
func (*FieldInfo) memberSlim()            {}

// PropertyInfo describes a property: a getter method on a nominal type, or
// a property of a structural type. IndexParameterTypes is non-empty for
// indexers.
type PropertyInfo struct {
	Declaring           Type
	Name                string
	PropertyType        Type
	IndexParameterTypes []Type
	CanWrite            bool
}

func (*PropertyInfo) MemberKind() MemberKind { return MemberProperty }
func (p *PropertyInfo) DeclaringType() Type  { return p.Declaring }
func (p *PropertyInfo) MemberName() string   { return p.Name }
func (*PropertyInfo) memberSlim()            {}

// MethodInfo is the sealed family of method descriptors.
//
//	switch m := method.(type) {
//	case *SimpleMethod:
//	case *GenericDefinitionMethod:
//	case *GenericMethod:
//	}
type MethodInfo interface {
	MemberInfo
	// Parameters returns the parameter types, excluding the receiver.
	Parameters() []Type
	// Result returns the return type, Void for none.
	Result() Type
	methodSlim()
}

// SimpleMethod is a non-generic method, or a package function when its
// declaring type is a package pseudo-type.
type SimpleMethod struct {
	Declaring      Type
	Name           string
	ParameterTypes []Type
	ReturnType     Type
}

func (*SimpleMethod) MemberKind() MemberKind { return MemberMethod }
func (m *SimpleMethod) DeclaringType() Type  { return m.Declaring }
func (m *SimpleMethod) MemberName() string   { return m.Name }
func (m *SimpleMethod) Parameters() []Type   { return m.ParameterTypes }
func (m *SimpleMethod) Result() Type         { return orVoid(m.ReturnType) }
func (*SimpleMethod) memberSlim()            {}
func (*SimpleMethod) methodSlim()            {}

// GenericDefinitionMethod is an open generic method. Its signature refers
// to GenericParameters through GenericParameterType leaves.
type GenericDefinitionMethod struct {
	Declaring         Type
	Name              string
	GenericParameters []*GenericParameterType
	ParameterTypes    []Type
	ReturnType        Type
}

func (*GenericDefinitionMethod) MemberKind() MemberKind { return MemberMethod }
func (m *GenericDefinitionMethod) DeclaringType() Type  { return m.Declaring }
func (m *GenericDefinitionMethod) MemberName() string   { return m.Name }
func (m *GenericDefinitionMethod) Parameters() []Type   { return m.ParameterTypes }
func (m *GenericDefinitionMethod) Result() Type         { return orVoid(m.ReturnType) }
func (*GenericDefinitionMethod) memberSlim()            {}
func (*GenericDefinitionMethod) methodSlim()            {}

// GenericMethod is a generic method definition closed over type arguments.
type GenericMethod struct {
	Definition *GenericDefinitionMethod
	Arguments  []Type
}

func (*GenericMethod) MemberKind() MemberKind { return MemberMethod }
func (m *GenericMethod) DeclaringType() Type  { return m.Definition.Declaring }
func (m *GenericMethod) MemberName() string   { return m.Definition.Name }
func (*GenericMethod) memberSlim()            {}
func (*GenericMethod) methodSlim()            {}

// Parameters returns the instantiated parameter types.
func (m *GenericMethod) Parameters() []Type {
	out := make([]Type, len(m.Definition.ParameterTypes))
	for i, p := range m.Definition.ParameterTypes {
		out[i] = Instantiate(p, m.Definition.GenericParameters, m.Arguments)
	}
	return out
}

// Result returns the instantiated return type.
func (m *GenericMethod) Result() Type {
	return orVoid(Instantiate(m.Definition.ReturnType, m.Definition.GenericParameters, m.Arguments))
}

// ConstructorInfo describes a registered constructor function for its
// declaring type.
type ConstructorInfo struct {
	Declaring      Type
	ParameterTypes []Type
}

func (*ConstructorInfo) MemberKind() MemberKind { return MemberConstructor }
func (c *ConstructorInfo) DeclaringType() Type  { return c.Declaring }
func (*ConstructorInfo) MemberName() string     { return "new" }
func (*ConstructorInfo) memberSlim()            {}

// MemberType returns the value type of a field or property member.
func MemberType(m MemberInfo) (Type, bool) {
	switch x := m.(type) {
	case *FieldInfo:
		return x.FieldType, true
	case *PropertyInfo:
		return x.PropertyType, true
	}
	return nil, false
}

func orVoid(t Type) Type {
	if t == nil {
		return Void
	}
	return t
}

// Instantiate replaces generic parameters in t with the corresponding
// arguments. Structural types are not descended into; generic method
// signatures never close over structural shapes.
func Instantiate(t Type, params []*GenericParameterType, args []Type) Type {
	if t == nil || len(params) == 0 {
		return t
	}
	switch x := t.(type) {
	case *GenericParameterType:
		for i, p := range params {
			if i < len(args) && (p == x || (p.Name == x.Name && p.Position == x.Position)) {
				return args[i]
			}
		}
		return x
	case *GenericType:
		var changed bool
		out := make([]Type, len(x.Arguments))
		for i, a := range x.Arguments {
			out[i] = Instantiate(a, params, args)
			changed = changed || out[i] != a
		}
		if !changed {
			return x
		}
		return &GenericType{Definition: x.Definition, Arguments: out}
	case *ArrayType:
		e := Instantiate(x.Element, params, args)
		if e == x.Element {
			return x
		}
		return &ArrayType{Element: e, Rank: x.Rank}
	default:
		return t
	}
}
