package slim

import (
	"fmt"
	"slices"
)

// TypeKind identifies the variant of a type descriptor.
type TypeKind int

const (
	KindSimple TypeKind = iota
	KindGenericDefinition
	KindGeneric
	KindArray
	KindStructural
	KindGenericParameter
)

// String returns the kind name.
func (k TypeKind) String() string {
	switch k {
	case KindSimple:
		return "Simple"
	case KindGenericDefinition:
		return "GenericDefinition"
	case KindGeneric:
		return "Generic"
	case KindArray:
		return "Array"
	case KindStructural:
		return "Structural"
	case KindGenericParameter:
		return "GenericParameter"
	default:
		return "Unknown"
	}
}

// Type is a reflection-free description of a type.
//
// This is a sealed interface - only the descriptor types in this package
// implement it, so visitors can switch exhaustively:
//
//	switch t := typ.(type) {
//	case *SimpleType:
//	case *GenericDefinitionType:
//	case *GenericType:
//	case *ArrayType:
//	case *StructuralType:
//	case *GenericParameterType:
//	}
type Type interface {
	Kind() TypeKind
	String() string
	typeSlim()
}

// SimpleType is a nominal type identified by its package and name.
//
// Assembly holds the package import path; it is empty for predeclared types
// such as int or error. A SimpleType with an empty Name denotes the package
// itself and serves as the declaring type of package-level functions.
type SimpleType struct {
	Assembly string
	Name     string
}

func (*SimpleType) Kind() TypeKind { return KindSimple }
func (*SimpleType) typeSlim()      {}
func (t *SimpleType) String() string {
	return FormatType(t)
}

// QualifiedName returns "path.Name", or Name for predeclared types.
func (t *SimpleType) QualifiedName() string {
	if t.Assembly == "" {
		return t.Name
	}
	if t.Name == "" {
		return t.Assembly
	}
	return t.Assembly + "." + t.Name
}

// GenericDefinitionType is an open generic type. Builtin composite type
// constructors (pointers, maps, channels, functions, fixed arrays) are
// modelled as definitions with an empty Assembly; see builtin.go.
type GenericDefinitionType struct {
	Assembly string
	Name     string
}

func (*GenericDefinitionType) Kind() TypeKind { return KindGenericDefinition }
func (*GenericDefinitionType) typeSlim()      {}
func (t *GenericDefinitionType) String() string {
	return FormatType(t)
}

// GenericType is a generic definition closed over type arguments.
type GenericType struct {
	Definition *GenericDefinitionType
	Arguments  []Type
}

func (*GenericType) Kind() TypeKind { return KindGeneric }
func (*GenericType) typeSlim()      {}
func (t *GenericType) String() string {
	return FormatType(t)
}

// ArrayType describes an array. Rank 0 is the vector form (a Go slice);
// Rank n >= 1 is a true multi-dimensional array, which is distinct from the
// vector even when n is 1.
type ArrayType struct {
	Element Type
	Rank    int
}

func (*ArrayType) Kind() TypeKind { return KindArray }
func (*ArrayType) typeSlim()      {}
func (t *ArrayType) String() string {
	return FormatType(t)
}

// IsVector reports whether t is the single-dimension, zero-based form.
func (t *ArrayType) IsVector() bool {
	return t.Rank == 0
}

// GenericParameterType is a positional placeholder inside a generic
// definition.
type GenericParameterType struct {
	Name     string
	Position int
}

func (*GenericParameterType) Kind() TypeKind { return KindGenericParameter }
func (*GenericParameterType) typeSlim()      {}
func (t *GenericParameterType) String() string {
	return t.Name
}

// StructuralKind distinguishes the flavours of structural types. The kind is
// informational; structural equality ignores it.
type StructuralKind int

const (
	StructuralRecord StructuralKind = iota
	StructuralAnonymous
	StructuralTuple
)

// String returns the keyword used when printing the kind.
func (k StructuralKind) String() string {
	switch k {
	case StructuralRecord:
		return "record"
	case StructuralAnonymous:
		return "struct"
	case StructuralTuple:
		return "tuple"
	default:
		return "unknown"
	}
}

// StructuralProperty is a named, typed member of a structural type.
type StructuralProperty struct {
	Name     string
	Type     Type
	CanWrite bool
}

// StructuralType is a type defined by its property set and equality
// semantics rather than by a declared identity.
//
// Lifecycle: NewStructuralType returns an open builder. AddProperty may be
// called any number of times, and a property's type may refer to the
// structural type being built (directly or through other types), which is
// how recursive shapes are expressed. Freeze ends the open phase; a frozen
// type rejects further mutation and may be shared freely.
//
// Thread-safety: an open StructuralType is owned by its single writer.
// Frozen types are immutable and safe for concurrent use.
type StructuralType struct {
	kind          StructuralKind
	valueEquality bool
	props         []*StructuralProperty
	byName        map[string]int
	frozen        bool
}

func (*StructuralType) Kind() TypeKind { return KindStructural }
func (*StructuralType) typeSlim()      {}
func (t *StructuralType) String() string {
	return FormatType(t)
}

// NewStructuralType returns an open structural type builder.
func NewStructuralType(kind StructuralKind, valueEquality bool) *StructuralType {
	return &StructuralType{
		kind:          kind,
		valueEquality: valueEquality,
		byName:        make(map[string]int),
	}
}

// BuildStructural builds and freezes a structural type from a fixed list of
// properties. Use NewStructuralType directly for recursive shapes.
func BuildStructural(kind StructuralKind, valueEquality bool, props ...StructuralProperty) (*StructuralType, error) {
	t := NewStructuralType(kind, valueEquality)
	for _, p := range props {
		if _, err := t.AddProperty(p.Name, p.Type, p.CanWrite); err != nil {
			return nil, err
		}
	}
	return t.Freeze(), nil
}

// AddProperty appends a property to an open structural type.
func (t *StructuralType) AddProperty(name string, typ Type, canWrite bool) (*StructuralProperty, error) {
	if t.frozen {
		return nil, NewArgumentError(name, "cannot add property to frozen structural type")
	}
	if name == "" {
		return nil, NewArgumentError("", "structural property name is empty")
	}
	if typ == nil {
		return nil, NewArgumentError(name, "structural property type is nil")
	}
	if _, dup := t.byName[name]; dup {
		return nil, NewArgumentError(name, "duplicate structural property")
	}
	p := &StructuralProperty{Name: name, Type: typ, CanWrite: canWrite}
	t.byName[name] = len(t.props)
	t.props = append(t.props, p)
	return p, nil
}

// Freeze ends the open phase and returns t.
func (t *StructuralType) Freeze() *StructuralType {
	t.frozen = true
	return t
}

// Frozen reports whether the open phase has ended.
func (t *StructuralType) Frozen() bool {
	return t.frozen
}

// StructuralKind returns the structural flavour.
func (t *StructuralType) StructuralKind() StructuralKind {
	return t.kind
}

// HasValueEquality reports whether instances compare by value.
func (t *StructuralType) HasValueEquality() bool {
	return t.valueEquality
}

// Len returns the number of properties.
func (t *StructuralType) Len() int {
	return len(t.props)
}

// Properties returns the properties in insertion order.
// The returned slice is a copy; the properties themselves must not be mutated.
func (t *StructuralType) Properties() []*StructuralProperty {
	return slices.Clone(t.props)
}

// Property looks up a property by name.
func (t *StructuralType) Property(name string) (*StructuralProperty, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.props[i], true
}

// SortedPropertyNames returns the property names in lexical order.
func (t *StructuralType) SortedPropertyNames() []string {
	names := make([]string, len(t.props))
	for i, p := range t.props {
		names[i] = p.Name
	}
	slices.Sort(names)
	return names
}

// IsTuple reports whether t is a tuple shape: a structural type of tuple
// kind, or one whose properties are exactly Item1..ItemN.
func IsTuple(t Type) bool {
	st, ok := t.(*StructuralType)
	if !ok {
		return false
	}
	if st.kind == StructuralTuple {
		return true
	}
	if len(st.props) == 0 {
		return false
	}
	for i := range st.props {
		if _, ok := st.byName[fmt.Sprintf("Item%d", i+1)]; !ok {
			return false
		}
	}
	return true
}
