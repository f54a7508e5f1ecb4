package slim

import (
	"fmt"
	"strconv"
	"strings"
)

// Predeclared types. They live in the empty assembly.
var (
	Bool       = &SimpleType{Name: "bool"}
	Int        = &SimpleType{Name: "int"}
	Int8       = &SimpleType{Name: "int8"}
	Int16      = &SimpleType{Name: "int16"}
	Int32      = &SimpleType{Name: "int32"}
	Int64      = &SimpleType{Name: "int64"}
	Uint       = &SimpleType{Name: "uint"}
	Uint8      = &SimpleType{Name: "uint8"}
	Uint16     = &SimpleType{Name: "uint16"}
	Uint32     = &SimpleType{Name: "uint32"}
	Uint64     = &SimpleType{Name: "uint64"}
	Uintptr    = &SimpleType{Name: "uintptr"}
	Float32    = &SimpleType{Name: "float32"}
	Float64    = &SimpleType{Name: "float64"}
	Complex64  = &SimpleType{Name: "complex64"}
	Complex128 = &SimpleType{Name: "complex128"}
	String     = &SimpleType{Name: "string"}
	Any        = &SimpleType{Name: "interface {}"}
	ErrorType  = &SimpleType{Name: "error"}

	// Void is the result type of statements and functions without results.
	Void = &SimpleType{Name: "void"}
)

// Builtin generic definitions for Go's composite type constructors.
var (
	PointerDefinition  = &GenericDefinitionType{Name: "*"}
	MapDefinition      = &GenericDefinitionType{Name: "map"}
	ChanDefinition     = &GenericDefinitionType{Name: "chan"}
	RecvChanDefinition = &GenericDefinitionType{Name: "<-chan"}
	SendChanDefinition = &GenericDefinitionType{Name: "chan<-"}
)

// BasicInfo classifies a predeclared type for operator typing.
type BasicInfo struct {
	Integer  bool
	Unsigned bool
	Float    bool
	Complex  bool
	String   bool
	Bool     bool
	Bits     int
}

// Numeric reports whether arithmetic is defined.
func (b BasicInfo) Numeric() bool {
	return b.Integer || b.Float || b.Complex
}

// Ordered reports whether <, <=, > and >= are defined.
func (b BasicInfo) Ordered() bool {
	return b.Integer || b.Float || b.String
}

var basics = map[string]BasicInfo{
	"bool":       {Bool: true},
	"int":        {Integer: true, Bits: 64},
	"int8":       {Integer: true, Bits: 8},
	"int16":      {Integer: true, Bits: 16},
	"int32":      {Integer: true, Bits: 32},
	"int64":      {Integer: true, Bits: 64},
	"uint":       {Integer: true, Unsigned: true, Bits: 64},
	"uint8":      {Integer: true, Unsigned: true, Bits: 8},
	"uint16":     {Integer: true, Unsigned: true, Bits: 16},
	"uint32":     {Integer: true, Unsigned: true, Bits: 32},
	"uint64":     {Integer: true, Unsigned: true, Bits: 64},
	"uintptr":    {Integer: true, Unsigned: true, Bits: 64},
	"float32":    {Float: true, Bits: 32},
	"float64":    {Float: true, Bits: 64},
	"complex64":  {Complex: true, Bits: 64},
	"complex128": {Complex: true, Bits: 128},
	"string":     {String: true},
}

// Basic returns the classification of a predeclared basic type.
func Basic(t Type) (BasicInfo, bool) {
	st, ok := t.(*SimpleType)
	if !ok || st.Assembly != "" {
		return BasicInfo{}, false
	}
	b, ok := basics[st.Name]
	return b, ok
}

// IsVoid reports whether t is the void descriptor.
func IsVoid(t Type) bool {
	st, ok := t.(*SimpleType)
	return ok && st.Assembly == "" && st.Name == "void"
}

// IsInterface reports whether t is a predeclared interface (any or error).
func IsInterface(t Type) bool {
	st, ok := t.(*SimpleType)
	return ok && st.Assembly == "" && (st.Name == "interface {}" || st.Name == "error")
}

// Package returns the pseudo-type that declares a package's functions.
func Package(path string) *SimpleType {
	return &SimpleType{Assembly: path}
}

// IsPackage reports whether t is a package pseudo-type.
func IsPackage(t Type) bool {
	st, ok := t.(*SimpleType)
	return ok && st.Name == "" && st.Assembly != ""
}

// Pointer returns *elem.
func Pointer(elem Type) *GenericType {
	return &GenericType{Definition: PointerDefinition, Arguments: []Type{elem}}
}

// Nullable returns the nullable form of a basic type, which is a pointer.
func Nullable(elem Type) *GenericType {
	return Pointer(elem)
}

// Slice returns the vector array type []elem.
func Slice(elem Type) *ArrayType {
	return &ArrayType{Element: elem}
}

// MultiArray returns a multi-dimensional array type of the given rank.
func MultiArray(elem Type, rank int) *ArrayType {
	return &ArrayType{Element: elem, Rank: rank}
}

// FixedArrayDefinition returns the definition of [n]T.
func FixedArrayDefinition(n int) *GenericDefinitionType {
	return &GenericDefinitionType{Name: "[" + strconv.Itoa(n) + "]"}
}

// FixedArray returns [n]elem.
func FixedArray(n int, elem Type) *GenericType {
	return &GenericType{Definition: FixedArrayDefinition(n), Arguments: []Type{elem}}
}

// Map returns map[key]value.
func Map(key, value Type) *GenericType {
	return &GenericType{Definition: MapDefinition, Arguments: []Type{key, value}}
}

// ChanDir mirrors reflect.ChanDir without importing reflect.
type ChanDir int

const (
	RecvDir ChanDir = 1 << iota
	SendDir
	BothDir = RecvDir | SendDir
)

// Chan returns a channel type with the given direction.
func Chan(dir ChanDir, elem Type) *GenericType {
	def := ChanDefinition
	switch dir {
	case RecvDir:
		def = RecvChanDefinition
	case SendDir:
		def = SendChanDefinition
	}
	return &GenericType{Definition: def, Arguments: []Type{elem}}
}

// FuncDefinition returns the definition of a function type with the given
// parameter and result counts.
func FuncDefinition(params, results int, variadic bool) *GenericDefinitionType {
	dots := ""
	if variadic {
		dots = "..."
	}
	return &GenericDefinitionType{Name: fmt.Sprintf("func(%d%s)%d", params, dots, results)}
}

// Func returns a function type. For variadic functions the last parameter
// must be a slice type.
func Func(params, results []Type, variadic bool) *GenericType {
	args := make([]Type, 0, len(params)+len(results))
	args = append(args, params...)
	args = append(args, results...)
	return &GenericType{Definition: FuncDefinition(len(params), len(results), variadic), Arguments: args}
}

// FuncSignature is the decoded form of a builtin function type.
type FuncSignature struct {
	Params   []Type
	Results  []Type
	Variadic bool
}

// Result returns the single result type, Void for none.
// Functions with several results have no single result type.
func (s FuncSignature) Result() (Type, bool) {
	switch len(s.Results) {
	case 0:
		return Void, true
	case 1:
		return s.Results[0], true
	}
	return nil, false
}

// ParseFuncDefinition decodes the arity of a builtin function definition.
func ParseFuncDefinition(def *GenericDefinitionType) (params, results int, variadic, ok bool) {
	if def == nil || def.Assembly != "" || !strings.HasPrefix(def.Name, "func(") {
		return 0, 0, false, false
	}
	rest := strings.TrimPrefix(def.Name, "func(")
	closeIdx := strings.IndexByte(rest, ')')
	if closeIdx < 0 {
		return 0, 0, false, false
	}
	in := rest[:closeIdx]
	if strings.HasSuffix(in, "...") {
		variadic = true
		in = strings.TrimSuffix(in, "...")
	}
	p, err := strconv.Atoi(in)
	if err != nil {
		return 0, 0, false, false
	}
	r, err := strconv.Atoi(rest[closeIdx+1:])
	if err != nil {
		return 0, 0, false, false
	}
	return p, r, variadic, true
}

// AsFunc decodes a builtin function type.
func AsFunc(t Type) (FuncSignature, bool) {
	g, ok := t.(*GenericType)
	if !ok {
		return FuncSignature{}, false
	}
	p, r, variadic, ok := ParseFuncDefinition(g.Definition)
	if !ok || p+r != len(g.Arguments) {
		return FuncSignature{}, false
	}
	return FuncSignature{
		Params:   g.Arguments[:p],
		Results:  g.Arguments[p:],
		Variadic: variadic,
	}, true
}

// ParseFixedArrayDefinition decodes the length of a [n]T definition.
func ParseFixedArrayDefinition(def *GenericDefinitionType) (int, bool) {
	if def == nil || def.Assembly != "" || len(def.Name) < 3 || def.Name[0] != '[' || def.Name[len(def.Name)-1] != ']' {
		return 0, false
	}
	n, err := strconv.Atoi(def.Name[1 : len(def.Name)-1])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// IsBuiltinDefinition reports whether def is one of Go's composite type
// constructors.
func IsBuiltinDefinition(def *GenericDefinitionType) bool {
	if def == nil || def.Assembly != "" {
		return false
	}
	switch def.Name {
	case "*", "map", "chan", "<-chan", "chan<-":
		return true
	}
	if _, ok := ParseFixedArrayDefinition(def); ok {
		return true
	}
	_, _, _, ok := ParseFuncDefinition(def)
	return ok
}

// builtinArg returns the single argument of a builtin generic whose
// definition has the given name.
func builtinArg(t Type, name string) (Type, bool) {
	g, ok := t.(*GenericType)
	if !ok || g.Definition == nil || g.Definition.Assembly != "" || g.Definition.Name != name || len(g.Arguments) != 1 {
		return nil, false
	}
	return g.Arguments[0], true
}

// PointerElem returns the element of *T.
func PointerElem(t Type) (Type, bool) {
	return builtinArg(t, "*")
}

// AsMap returns the key and value types of map[K]V.
func AsMap(t Type) (key, value Type, ok bool) {
	g, isGeneric := t.(*GenericType)
	if !isGeneric || g.Definition == nil || g.Definition.Assembly != "" || g.Definition.Name != "map" || len(g.Arguments) != 2 {
		return nil, nil, false
	}
	return g.Arguments[0], g.Arguments[1], true
}

// AsChan returns the direction and element type of a channel type.
func AsChan(t Type) (ChanDir, Type, bool) {
	if e, ok := builtinArg(t, "chan"); ok {
		return BothDir, e, true
	}
	if e, ok := builtinArg(t, "<-chan"); ok {
		return RecvDir, e, true
	}
	if e, ok := builtinArg(t, "chan<-"); ok {
		return SendDir, e, true
	}
	return 0, nil, false
}

// AsFixedArray returns the length and element type of [n]T.
func AsFixedArray(t Type) (int, Type, bool) {
	g, ok := t.(*GenericType)
	if !ok || len(g.Arguments) != 1 {
		return 0, nil, false
	}
	n, ok := ParseFixedArrayDefinition(g.Definition)
	if !ok {
		return 0, nil, false
	}
	return n, g.Arguments[0], true
}

// NullableUnderlying returns T when t is the nullable form *T of a basic
// type. Pointers to anything else are references, not nullables.
func NullableUnderlying(t Type) (Type, bool) {
	elem, ok := PointerElem(t)
	if !ok {
		return nil, false
	}
	if _, basic := Basic(elem); !basic {
		return nil, false
	}
	return elem, true
}

// ElementType returns the element type produced by indexing t: slice and
// array elements, map values and the bytes of a string.
func ElementType(t Type) (Type, bool) {
	switch x := t.(type) {
	case *ArrayType:
		return x.Element, true
	case *GenericType:
		if _, v, ok := AsMap(x); ok {
			return v, true
		}
		if _, e, ok := AsFixedArray(x); ok {
			return e, true
		}
		if e, ok := PointerElem(x); ok {
			if _, ae, ok := AsFixedArray(e); ok {
				return ae, true
			}
		}
	case *SimpleType:
		if b, ok := Basic(x); ok && b.String {
			return Uint8, true
		}
	}
	return nil, false
}
