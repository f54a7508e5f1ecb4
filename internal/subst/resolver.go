package subst

import (
	"errors"
	"math"
	"reflect"

	"github.com/roach88/slim/internal/slim"
)

// Resolver re-resolves members and constants after substitution. Each
// method receives the original descriptor together with the substituted
// declaring type and signature, and returns the replacement. A member that
// is missing or ambiguous must be reported as an error.
type Resolver interface {
	ResolveField(orig *slim.FieldInfo, decl, fieldType slim.Type) (*slim.FieldInfo, error)
	ResolveProperty(orig *slim.PropertyInfo, decl, propertyType slim.Type, index []slim.Type) (*slim.PropertyInfo, error)
	ResolveMethod(orig slim.MethodInfo, decl slim.Type, typeArgs, params []slim.Type, result slim.Type) (slim.MethodInfo, error)
	ResolveConstructor(orig *slim.ConstructorInfo, decl slim.Type, params []slim.Type) (*slim.ConstructorInfo, error)
	ConvertConstant(value any, from, to slim.Type) (any, error)
}

// MemberLookup finds members of nominal types. *typesys.Registry
// implements it.
type MemberLookup interface {
	LookupField(decl slim.Type, name string) (*slim.FieldInfo, error)
	LookupProperty(decl slim.Type, name string, index []slim.Type) (*slim.PropertyInfo, error)
	LookupMethod(decl slim.Type, name string, typeArgs, params []slim.Type) (slim.MethodInfo, error)
	LookupConstructor(decl slim.Type, params []slim.Type) (*slim.ConstructorInfo, error)
}

// ConstantConverter converts a constant value from one type to another.
type ConstantConverter func(value any, from, to slim.Type) (any, error)

// DefaultResolver resolves members through Lookup. Properties of
// structural types are answered from the type itself, so trees over
// records need no lookup. A resolved member must carry exactly the
// substituted signature.
type DefaultResolver struct {
	Lookup MemberLookup

	// Constants converts constants. Nil means DefaultConstantConverter.
	Constants ConstantConverter
}

var errNoLookup = errors.New("no member lookup configured")

// ResolveField implements Resolver.
func (r *DefaultResolver) ResolveField(orig *slim.FieldInfo, decl, fieldType slim.Type) (*slim.FieldInfo, error) {
	if r.Lookup == nil {
		return nil, slim.NewResolutionError(orig.Name, "field of %s", slim.FormatType(decl)).WithCause(errNoLookup)
	}
	f, err := r.Lookup.LookupField(decl, orig.Name)
	if err != nil {
		return nil, asResolution(orig.Name, err)
	}
	if !slim.TypeEqual(f.FieldType, fieldType) {
		return nil, slim.NewResolutionError(orig.Name, "field has type %s, want %s",
			slim.FormatType(f.FieldType), slim.FormatType(fieldType))
	}
	return f, nil
}

// ResolveProperty implements Resolver.
func (r *DefaultResolver) ResolveProperty(orig *slim.PropertyInfo, decl, propertyType slim.Type, index []slim.Type) (*slim.PropertyInfo, error) {
	var p *slim.PropertyInfo
	if st, ok := decl.(*slim.StructuralType); ok {
		sp, found := st.Property(orig.Name)
		if !found || len(index) > 0 {
			return nil, slim.NewResolutionError(orig.Name, "property not found in %s", slim.FormatType(decl))
		}
		p = &slim.PropertyInfo{Declaring: st, Name: sp.Name, PropertyType: sp.Type, CanWrite: sp.CanWrite}
	} else {
		if r.Lookup == nil {
			return nil, slim.NewResolutionError(orig.Name, "property of %s", slim.FormatType(decl)).WithCause(errNoLookup)
		}
		var err error
		if p, err = r.Lookup.LookupProperty(decl, orig.Name, index); err != nil {
			return nil, asResolution(orig.Name, err)
		}
	}
	if !slim.TypeEqual(p.PropertyType, propertyType) {
		return nil, slim.NewResolutionError(orig.Name, "property has type %s, want %s",
			slim.FormatType(p.PropertyType), slim.FormatType(propertyType))
	}
	return p, nil
}

// ResolveMethod implements Resolver.
func (r *DefaultResolver) ResolveMethod(orig slim.MethodInfo, decl slim.Type, typeArgs, params []slim.Type, result slim.Type) (slim.MethodInfo, error) {
	name := orig.MemberName()
	if r.Lookup == nil {
		return nil, slim.NewResolutionError(name, "method of %s", slim.FormatType(decl)).WithCause(errNoLookup)
	}
	m, err := r.Lookup.LookupMethod(decl, name, typeArgs, params)
	if err != nil {
		return nil, asResolution(name, err)
	}
	if !slim.TypeEqual(m.Result(), result) {
		return nil, slim.NewResolutionError(name, "method returns %s, want %s",
			slim.FormatType(m.Result()), slim.FormatType(result))
	}
	return m, nil
}

// ResolveConstructor implements Resolver.
func (r *DefaultResolver) ResolveConstructor(orig *slim.ConstructorInfo, decl slim.Type, params []slim.Type) (*slim.ConstructorInfo, error) {
	if r.Lookup == nil {
		return nil, slim.NewResolutionError("new", "constructor of %s", slim.FormatType(decl)).WithCause(errNoLookup)
	}
	c, err := r.Lookup.LookupConstructor(decl, params)
	if err != nil {
		return nil, asResolution("new", err)
	}
	return c, nil
}

// ConvertConstant implements Resolver.
func (r *DefaultResolver) ConvertConstant(value any, from, to slim.Type) (any, error) {
	if r.Constants != nil {
		return r.Constants(value, from, to)
	}
	return DefaultConstantConverter(value, from, to)
}

func asResolution(subject string, err error) error {
	if slim.CodeOf(err) != "" {
		return err
	}
	return slim.NewResolutionError(subject, "member resolution failed").WithCause(err)
}

type forgiving struct {
	Resolver
}

// Forgiving wraps r so that members r cannot resolve are replaced by
// descriptors synthesized from the substituted signature, and constants r
// cannot convert keep their value.
func Forgiving(r Resolver) Resolver {
	return forgiving{Resolver: r}
}

func (f forgiving) ResolveField(orig *slim.FieldInfo, decl, fieldType slim.Type) (*slim.FieldInfo, error) {
	if out, err := f.Resolver.ResolveField(orig, decl, fieldType); err == nil {
		return out, nil
	}
	return &slim.FieldInfo{Declaring: decl, Name: orig.Name, FieldType: fieldType}, nil
}

func (f forgiving) ResolveProperty(orig *slim.PropertyInfo, decl, propertyType slim.Type, index []slim.Type) (*slim.PropertyInfo, error) {
	if out, err := f.Resolver.ResolveProperty(orig, decl, propertyType, index); err == nil {
		return out, nil
	}
	return &slim.PropertyInfo{
		Declaring:           decl,
		Name:                orig.Name,
		PropertyType:        propertyType,
		IndexParameterTypes: index,
		CanWrite:            orig.CanWrite,
	}, nil
}

func (f forgiving) ResolveMethod(orig slim.MethodInfo, decl slim.Type, typeArgs, params []slim.Type, result slim.Type) (slim.MethodInfo, error) {
	if out, err := f.Resolver.ResolveMethod(orig, decl, typeArgs, params, result); err == nil {
		return out, nil
	}
	if gm, ok := orig.(*slim.GenericMethod); ok {
		def := *gm.Definition
		def.Declaring = decl
		return &slim.GenericMethod{Definition: &def, Arguments: typeArgs}, nil
	}
	return &slim.SimpleMethod{Declaring: decl, Name: orig.MemberName(), ParameterTypes: params, ReturnType: result}, nil
}

func (f forgiving) ResolveConstructor(orig *slim.ConstructorInfo, decl slim.Type, params []slim.Type) (*slim.ConstructorInfo, error) {
	if out, err := f.Resolver.ResolveConstructor(orig, decl, params); err == nil {
		return out, nil
	}
	return &slim.ConstructorInfo{Declaring: decl, ParameterTypes: params}, nil
}

func (f forgiving) ConvertConstant(value any, from, to slim.Type) (any, error) {
	if out, err := f.Resolver.ConvertConstant(value, from, to); err == nil {
		return out, nil
	}
	return value, nil
}

var basicTypes = map[string]reflect.Type{
	"bool":       reflect.TypeFor[bool](),
	"int":        reflect.TypeFor[int](),
	"int8":       reflect.TypeFor[int8](),
	"int16":      reflect.TypeFor[int16](),
	"int32":      reflect.TypeFor[int32](),
	"int64":      reflect.TypeFor[int64](),
	"uint":       reflect.TypeFor[uint](),
	"uint8":      reflect.TypeFor[uint8](),
	"uint16":     reflect.TypeFor[uint16](),
	"uint32":     reflect.TypeFor[uint32](),
	"uint64":     reflect.TypeFor[uint64](),
	"uintptr":    reflect.TypeFor[uintptr](),
	"float32":    reflect.TypeFor[float32](),
	"float64":    reflect.TypeFor[float64](),
	"complex64":  reflect.TypeFor[complex64](),
	"complex128": reflect.TypeFor[complex128](),
	"string":     reflect.TypeFor[string](),
}

// DefaultConstantConverter accepts a type change only when it provably
// keeps the value: Lifted values and nil are kept as they are, and a basic
// value is converted when converting it back yields the same value with
// the same sign. Everything else is rejected.
func DefaultConstantConverter(value any, from, to slim.Type) (any, error) {
	switch value.(type) {
	case nil, slim.Lifted:
		return value, nil
	}
	fail := func(reason string) error {
		return slim.NewResolutionError(slim.FormatType(to), "cannot convert constant of type %s: %s", slim.FormatType(from), reason)
	}
	fromBasic, ok := slim.Basic(from)
	if !ok {
		return nil, fail("not a basic type")
	}
	toBasic, ok := slim.Basic(to)
	if !ok {
		return nil, fail("target is not a basic type")
	}
	if fromBasic.String != toBasic.String || fromBasic.Bool != toBasic.Bool {
		return nil, fail("incompatible kinds")
	}
	target := basicTypes[to.(*slim.SimpleType).Name]
	v := reflect.ValueOf(value)
	if !v.Type().ConvertibleTo(target) {
		return nil, fail("value of Go type " + v.Type().String())
	}
	out := v.Convert(target)
	if !out.Convert(v.Type()).Equal(v) {
		return nil, fail("value does not fit")
	}
	if negative(v) != negative(out) {
		return nil, fail("sign changes")
	}
	return out.Interface(), nil
}

func negative(v reflect.Value) bool {
	switch {
	case v.CanInt():
		return v.Int() < 0
	case v.CanFloat():
		return math.Signbit(v.Float())
	}
	return false
}
