package expr

import (
	"reflect"
)

// Void is the type of expressions that produce no value.
type Void struct{}

// VoidType is the reflect.Type of Void.
var VoidType = reflect.TypeFor[Void]()

var (
	boolType  = reflect.TypeFor[bool]()
	intType   = reflect.TypeFor[int]()
	errorType = reflect.TypeFor[error]()
	anyType   = reflect.TypeFor[any]()
)

// IsVoid reports whether t is VoidType (or nil).
func IsVoid(t reflect.Type) bool {
	return t == nil || t == VoidType
}

// IsBasic reports whether t is a predeclared numeric, bool or string type.
// Named types with a basic underlying kind are not predeclared.
func IsBasic(t reflect.Type) bool {
	if t == nil || t.PkgPath() != "" {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return t.Name() != ""
	}
	return false
}

// NullableElem returns T when t is *T for a predeclared basic T.
func NullableElem(t reflect.Type) (reflect.Type, bool) {
	if t == nil || t.Kind() != reflect.Pointer || !IsBasic(t.Elem()) {
		return nil, false
	}
	return t.Elem(), true
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isUnsigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func isComplex(t reflect.Type) bool {
	return t.Kind() == reflect.Complex64 || t.Kind() == reflect.Complex128
}

func isNumeric(t reflect.Type) bool {
	return isInteger(t) || isFloat(t) || isComplex(t)
}

func isOrdered(t reflect.Type) bool {
	return isInteger(t) || isFloat(t) || t.Kind() == reflect.String
}

// isNilable reports whether the zero value of t is nil.
func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return true
	}
	return false
}

// IsStructural reports whether t is an unnamed struct type, the native form
// of structural (record and anonymous) types.
func IsStructural(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Struct && t.Name() == ""
}

// assignable reports whether a value of type from can be stored in a
// location of type to.
func assignable(from, to reflect.Type) bool {
	if from == nil || to == nil {
		return false
	}
	return from.AssignableTo(to)
}

// elementType returns the element type produced by indexing t.
func elementType(t reflect.Type) (reflect.Type, bool) {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		return t.Elem(), true
	case reflect.Map:
		return t.Elem(), true
	case reflect.String:
		return reflect.TypeFor[byte](), true
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Array {
			return t.Elem().Elem(), true
		}
	}
	return nil, false
}
