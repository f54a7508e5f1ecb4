package typesys

import (
	"reflect"

	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
)

// FieldToSlim converts a native field handle.
func (r *Registry) FieldToSlim(f *expr.Field) *slim.FieldInfo {
	return &slim.FieldInfo{
		Declaring: r.ToSlim(f.Declaring),
		Name:      f.Name,
		FieldType: r.ToSlim(f.Type),
	}
}

// PropertyToSlim converts a native property handle. Properties of
// materialized structural types take the property name from the field tag.
func (r *Registry) PropertyToSlim(p *expr.Property) *slim.PropertyInfo {
	name := p.Name
	if p.IsField() && expr.IsStructural(p.Declaring) {
		if sf, ok := p.Declaring.FieldByName(p.Name); ok {
			name = PropertyName(sf)
		}
	}
	return &slim.PropertyInfo{
		Declaring:           r.ToSlim(p.Declaring),
		Name:                name,
		PropertyType:        r.ToSlim(p.Type),
		IndexParameterTypes: r.conv.slimList(p.IndexTypes),
		CanWrite:            p.CanWrite(),
	}
}

// MethodToSlim converts a native method handle. Package functions are
// declared by the package pseudo-type; generic instantiations refer to their
// registered definition.
func (r *Registry) MethodToSlim(m *expr.Method) (slim.MethodInfo, error) {
	var decl slim.Type
	if m.IsStatic() {
		decl = slim.Package(m.Package)
	} else {
		decl = r.ToSlim(m.Declaring)
	}
	if m.IsGeneric() {
		def, ok := r.GenericFuncDefinition(m.Package, m.Name)
		if !ok {
			return nil, slim.NewResolutionError(m.String(), "generic function not registered")
		}
		return &slim.GenericMethod{Definition: def, Arguments: r.conv.slimList(m.TypeArgs)}, nil
	}
	var result slim.Type = slim.Void
	if m.Result != nil && !expr.IsVoid(m.Result) {
		result = r.ToSlim(m.Result)
	}
	return &slim.SimpleMethod{
		Declaring:      decl,
		Name:           m.Name,
		ParameterTypes: r.conv.slimList(m.Params),
		ReturnType:     result,
	}, nil
}

// ConstructorToSlim converts a native constructor handle.
func (r *Registry) ConstructorToSlim(c *expr.Constructor) *slim.ConstructorInfo {
	return &slim.ConstructorInfo{
		Declaring:      r.ToSlim(c.Type),
		ParameterTypes: r.conv.slimList(c.ParamTypes()),
	}
}

// MemberToSlim converts any native member handle.
func (r *Registry) MemberToSlim(m expr.Member) (slim.MemberInfo, error) {
	switch x := m.(type) {
	case *expr.Field:
		return r.FieldToSlim(x), nil
	case *expr.Property:
		return r.PropertyToSlim(x), nil
	case *expr.Method:
		return r.MethodToSlim(x)
	case *expr.Constructor:
		return r.ConstructorToSlim(x), nil
	}
	return nil, slim.NewArgumentError("", "unknown member %T", m)
}

// MemberFromSlim resolves a member descriptor to a native handle, verifying
// that the native signature matches the descriptor.
func (r *Registry) MemberFromSlim(m slim.MemberInfo) (expr.Member, error) {
	switch x := m.(type) {
	case *slim.FieldInfo:
		return r.FieldFromSlim(x)
	case *slim.PropertyInfo:
		return r.PropertyFromSlim(x)
	case slim.MethodInfo:
		return r.MethodFromSlim(x)
	case *slim.ConstructorInfo:
		return r.ConstructorFromSlim(x)
	case nil:
		return nil, slim.NewArgumentError("", "nil member")
	}
	return nil, slim.NewArgumentError("", "unknown member %T", m)
}

// FieldFromSlim resolves a field descriptor.
func (r *Registry) FieldFromSlim(f *slim.FieldInfo) (*expr.Field, error) {
	t, err := r.ToType(f.Declaring)
	if err != nil {
		return nil, err
	}
	field, err := expr.FieldOf(t, f.Name)
	if err != nil {
		return nil, slim.NewResolutionError(f.Name, "field not found").WithCause(err)
	}
	if !slim.TypeEqual(r.ToSlim(field.Type), f.FieldType) {
		return nil, slim.NewResolutionError(f.Name, "field type %s does not match %s", field.Type, slim.FormatType(f.FieldType))
	}
	return field, nil
}

// PropertyFromSlim resolves a property descriptor.
func (r *Registry) PropertyFromSlim(p *slim.PropertyInfo) (*expr.Property, error) {
	t, err := r.ToType(p.Declaring)
	if err != nil {
		return nil, err
	}
	var prop *expr.Property
	if _, ok := p.Declaring.(*slim.StructuralType); ok {
		sf, ok := StructField(t, p.Name)
		if !ok {
			return nil, slim.NewResolutionError(p.Name, "property not found in %s", slim.FormatType(p.Declaring))
		}
		prop = expr.StructuralProperty(t, sf)
	} else {
		prop, err = expr.PropertyOf(t, p.Name)
		if err != nil {
			return nil, slim.NewResolutionError(p.Name, "property not found").WithCause(err)
		}
	}
	if !slim.TypeEqual(r.ToSlim(prop.Type), p.PropertyType) || !r.sameTypes(prop.IndexTypes, p.IndexParameterTypes) {
		return nil, slim.NewResolutionError(p.Name, "property signature does not match")
	}
	return prop, nil
}

// MethodFromSlim resolves a method descriptor.
func (r *Registry) MethodFromSlim(m slim.MethodInfo) (*expr.Method, error) {
	switch x := m.(type) {
	case *slim.GenericDefinitionMethod:
		return nil, slim.NewResolutionError(x.Name, "open generic method has no native form")
	case *slim.GenericMethod:
		pkg, ok := x.Definition.Declaring.(*slim.SimpleType)
		if !ok || !slim.IsPackage(pkg) {
			return nil, slim.NewResolutionError(x.Definition.Name, "generic methods must be package functions")
		}
		args, err := r.typeList(x.Arguments)
		if err != nil {
			return nil, err
		}
		fn, ok := r.GenericFunc(pkg.Assembly, x.Definition.Name, args)
		if !ok {
			return nil, slim.NewResolutionError(qualified(pkg.Assembly, x.Definition.Name), "instantiation with %v not registered", args)
		}
		return fn, nil
	}
	decl := m.DeclaringType()
	var (
		fn  *expr.Method
		err error
	)
	if pkg, ok := decl.(*slim.SimpleType); ok && slim.IsPackage(pkg) {
		var found bool
		fn, found = r.Func(pkg.Assembly, m.MemberName())
		if !found {
			return nil, slim.NewResolutionError(qualified(pkg.Assembly, m.MemberName()), "function not registered")
		}
	} else {
		t, terr := r.ToType(decl)
		if terr != nil {
			return nil, terr
		}
		fn, err = expr.MethodOf(t, m.MemberName())
		if err != nil {
			return nil, slim.NewResolutionError(m.MemberName(), "method not found").WithCause(err)
		}
	}
	if !r.sameTypes(fn.Params, m.Parameters()) || !slim.TypeEqual(r.ToSlim(fn.Result), m.Result()) {
		return nil, slim.NewResolutionError(fn.String(), "method signature does not match")
	}
	return fn, nil
}

// ConstructorFromSlim resolves a constructor descriptor.
func (r *Registry) ConstructorFromSlim(c *slim.ConstructorInfo) (*expr.Constructor, error) {
	t, err := r.ToType(c.Declaring)
	if err != nil {
		return nil, err
	}
	params, err := r.typeList(c.ParameterTypes)
	if err != nil {
		return nil, err
	}
	ctor, ok := r.Constructor(t, params)
	if !ok {
		return nil, slim.NewResolutionError(t.String(), "no constructor taking %v", params)
	}
	return ctor, nil
}

func (r *Registry) typeList(ds []slim.Type) ([]reflect.Type, error) {
	out := make([]reflect.Type, len(ds))
	for i, d := range ds {
		t, err := r.ToType(d)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func (r *Registry) sameTypes(ts []reflect.Type, ds []slim.Type) bool {
	return typesEqual(r.conv.slimList(ts), ds)
}

// LookupField finds a field of decl by name.
func (r *Registry) LookupField(decl slim.Type, name string) (*slim.FieldInfo, error) {
	if _, ok := decl.(*slim.StructuralType); ok {
		return nil, slim.NewResolutionError(name, "structural types have properties, not fields")
	}
	t, err := r.ToType(decl)
	if err != nil {
		return nil, err
	}
	f, err := expr.FieldOf(t, name)
	if err != nil {
		return nil, slim.NewResolutionError(name, "field not found in %s", slim.FormatType(decl)).WithCause(err)
	}
	return r.FieldToSlim(f), nil
}

// LookupProperty finds a property of decl by name and index parameter
// types. Structural types answer from their own property set.
func (r *Registry) LookupProperty(decl slim.Type, name string, index []slim.Type) (*slim.PropertyInfo, error) {
	if st, ok := decl.(*slim.StructuralType); ok {
		p, ok := st.Property(name)
		if !ok || len(index) > 0 {
			return nil, slim.NewResolutionError(name, "property not found in %s", slim.FormatType(decl))
		}
		return &slim.PropertyInfo{Declaring: st, Name: name, PropertyType: p.Type, CanWrite: p.CanWrite}, nil
	}
	t, err := r.ToType(decl)
	if err != nil {
		return nil, err
	}
	p, err := expr.PropertyOf(t, name)
	if err != nil {
		return nil, slim.NewResolutionError(name, "property not found in %s", slim.FormatType(decl)).WithCause(err)
	}
	if !r.sameTypes(p.IndexTypes, index) {
		return nil, slim.NewResolutionError(name, "no property overload taking %s", formatTypes(index))
	}
	return r.PropertyToSlim(p), nil
}

// LookupMethod finds a method of decl by name, type arguments and
// parameter types.
func (r *Registry) LookupMethod(decl slim.Type, name string, typeArgs, params []slim.Type) (slim.MethodInfo, error) {
	if pkg, ok := decl.(*slim.SimpleType); ok && slim.IsPackage(pkg) && len(typeArgs) > 0 {
		def, ok := r.GenericFuncDefinition(pkg.Assembly, name)
		if !ok {
			return nil, slim.NewResolutionError(qualified(pkg.Assembly, name), "generic function not registered")
		}
		gm := &slim.GenericMethod{Definition: def, Arguments: typeArgs}
		if _, err := r.MethodFromSlim(gm); err != nil {
			return nil, err
		}
		if !typesEqual(gm.Parameters(), params) {
			return nil, slim.NewResolutionError(name, "no instantiation taking %s", formatTypes(params))
		}
		return gm, nil
	}
	var fn *expr.Method
	if pkg, ok := decl.(*slim.SimpleType); ok && slim.IsPackage(pkg) {
		var found bool
		if fn, found = r.Func(pkg.Assembly, name); !found {
			return nil, slim.NewResolutionError(qualified(pkg.Assembly, name), "function not registered")
		}
	} else {
		t, err := r.ToType(decl)
		if err != nil {
			return nil, err
		}
		if fn, err = expr.MethodOf(t, name); err != nil {
			return nil, slim.NewResolutionError(name, "method not found in %s", slim.FormatType(decl)).WithCause(err)
		}
	}
	if !r.sameTypes(fn.Params, params) {
		return nil, slim.NewResolutionError(fn.String(), "no overload taking %s", formatTypes(params))
	}
	return r.MethodToSlim(fn)
}

// LookupConstructor finds a registered constructor of decl.
func (r *Registry) LookupConstructor(decl slim.Type, params []slim.Type) (*slim.ConstructorInfo, error) {
	c, err := r.ConstructorFromSlim(&slim.ConstructorInfo{Declaring: decl, ParameterTypes: params})
	if err != nil {
		return nil, err
	}
	return r.ConstructorToSlim(c), nil
}

func formatTypes(ts []slim.Type) string {
	s := "("
	for i, t := range ts {
		if i > 0 {
			s += ", "
		}
		s += slim.FormatType(t)
	}
	return s + ")"
}
