package typesys

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
)

type widget struct {
	Name string
	Size int
}

func (w widget) Area(scale int) int { return w.Size * scale }
func (w widget) Label() string      { return w.Name }

type box[T any] struct {
	Value T
}

func newWidget(name string, size int) widget { return widget{Name: name, Size: size} }
func double(x int) int                         { return 2 * x }
func identity[T any](v T) T                    { return v }

var (
	pkgPath    = reflect.TypeFor[widget]().PkgPath()
	intType    = reflect.TypeFor[int]()
	stringType = reflect.TypeFor[string]()
	widgetType = reflect.TypeFor[widget]()
	widgetSlim = &slim.SimpleType{Assembly: pkgPath, Name: "widget"}
	boxDef     = &slim.GenericDefinitionType{Assembly: pkgPath, Name: "box"}
)

func identityDef() *slim.GenericDefinitionMethod {
	tp := &slim.GenericParameterType{Name: "T"}
	return &slim.GenericDefinitionMethod{
		Declaring:         slim.Package(pkgPath),
		Name:              "identity",
		GenericParameters: []*slim.GenericParameterType{tp},
		ParameterTypes:    []slim.Type{tp},
		ReturnType:        tp,
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.RegisterType(widgetType))
	require.NoError(t, r.RegisterGenericType(boxDef, []reflect.Type{intType}, reflect.TypeFor[box[int]]()))
	_, err := r.RegisterConstructor(newWidget, expr.CtorParam{Name: "name", Mapping: "Name"}, expr.CtorParam{Name: "size", Mapping: "Size"})
	require.NoError(t, err)
	_, err = r.RegisterFunc(pkgPath, "double", double)
	require.NoError(t, err)
	require.NoError(t, r.RegisterGenericFunc(identityDef(),
		GenericInstance{TypeArgs: []reflect.Type{intType}, Func: identity[int]},
		GenericInstance{TypeArgs: []reflect.Type{stringType}, Func: identity[string]},
	))
	return r
}

func TestToSlimAndBack(t *testing.T) {
	r := newTestRegistry(t)
	tests := []struct {
		name   string
		native reflect.Type
		want   slim.Type
	}{
		{"int", intType, slim.Int},
		{"error", reflect.TypeFor[error](), slim.ErrorType},
		{"any", reflect.TypeFor[any](), slim.Any},
		{"void", expr.VoidType, slim.Void},
		{"pointer", reflect.TypeFor[*int](), slim.Pointer(slim.Int)},
		{"slice", reflect.TypeFor[[]string](), slim.Slice(slim.String)},
		{"fixed array", reflect.TypeFor[[3]int](), slim.FixedArray(3, slim.Int)},
		{"map", reflect.TypeFor[map[string]int](), slim.Map(slim.String, slim.Int)},
		{"recv chan", reflect.TypeFor[<-chan int](), slim.Chan(slim.RecvDir, slim.Int)},
		{"chan", reflect.TypeFor[chan int](), slim.Chan(slim.BothDir, slim.Int)},
		{"func", reflect.TypeFor[func(int) bool](), slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.Bool}, false)},
		{"variadic", reflect.TypeFor[func(...int)](), slim.Func([]slim.Type{slim.Slice(slim.Int)}, nil, true)},
		{"named", widgetType, widgetSlim},
		{"generic", reflect.TypeFor[box[int]](), &slim.GenericType{Definition: boxDef, Arguments: []slim.Type{slim.Int}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ToSlim(tt.native)
			assert.True(t, slim.TypeEqual(tt.want, got), "got %s", slim.FormatType(got))

			back, err := r.ToType(got)
			require.NoError(t, err)
			assert.Equal(t, tt.native, back)
		})
	}
}

func TestToTypeFailures(t *testing.T) {
	r := newTestRegistry(t)
	recursive := slim.NewStructuralType(slim.StructuralRecord, true)
	_, err := recursive.AddProperty("next", recursive, false)
	require.NoError(t, err)
	recursive.Freeze()

	tests := []struct {
		name string
		in   slim.Type
	}{
		{"unregistered type", &slim.SimpleType{Assembly: pkgPath, Name: "missing"}},
		{"unknown predeclared", &slim.SimpleType{Name: "int128"}},
		{"package", slim.Package(pkgPath)},
		{"multi-dimensional array", slim.MultiArray(slim.Int, 2)},
		{"open definition", boxDef},
		{"generic parameter", &slim.GenericParameterType{Name: "T"}},
		{"unregistered instantiation", &slim.GenericType{Definition: boxDef, Arguments: []slim.Type{slim.String}}},
		{"non-comparable map key", slim.Map(slim.Slice(slim.Int), slim.Int)},
		{"recursive record", recursive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ToType(tt.in)
			require.Error(t, err)
			assert.True(t, slim.IsResolutionError(err), "got %v", err)
		})
	}
}

func TestStructuralMaterialization(t *testing.T) {
	r := NewRegistry()
	rec, err := slim.BuildStructural(slim.StructuralRecord, true,
		slim.StructuralProperty{Name: "first_name", Type: slim.String},
		slim.StructuralProperty{Name: "age", Type: slim.Int},
	)
	require.NoError(t, err)

	st, err := r.ToType(rec)
	require.NoError(t, err)
	require.Equal(t, reflect.Struct, st.Kind())
	assert.Equal(t, "", st.Name())
	assert.Equal(t, 2, st.NumField())

	sf, ok := StructField(st, "first_name")
	require.True(t, ok)
	assert.Equal(t, "FirstName", sf.Name)
	assert.Equal(t, stringType, sf.Type)
	assert.Equal(t, "first_name", sf.Tag.Get("json"))

	assert.Same(t, rec, r.ToSlim(st), "materialized records map back to their descriptor")

	same, err := slim.BuildStructural(slim.StructuralRecord, true,
		slim.StructuralProperty{Name: "age", Type: slim.Int},
		slim.StructuralProperty{Name: "first_name", Type: slim.String},
	)
	require.NoError(t, err)
	again, err := r.ToType(same)
	require.NoError(t, err)
	assert.Equal(t, st, again, "equal shapes share one native type")
}

func TestUnmaterializedStructIsAnonymous(t *testing.T) {
	r := NewRegistry()
	got := r.ToSlim(reflect.TypeFor[struct {
		X int
		Y string
	}]())
	st, ok := got.(*slim.StructuralType)
	require.True(t, ok)
	assert.Equal(t, slim.StructuralAnonymous, st.StructuralKind())
	assert.True(t, st.HasValueEquality())
	assert.Equal(t, []string{"X", "Y"}, st.SortedPropertyNames())
}

func TestRegistryRejectsConflicts(t *testing.T) {
	r := newTestRegistry(t)

	err := r.RegisterType(reflect.TypeFor[[]int]())
	assert.True(t, slim.IsArgumentError(err), "unnamed types cannot be registered")

	_, err = r.RegisterFunc(pkgPath, "double", double)
	assert.True(t, slim.IsArgumentError(err))

	_, err = r.RegisterConstructor(newWidget)
	assert.True(t, slim.IsArgumentError(err))

	err = r.RegisterGenericFunc(identityDef(), GenericInstance{TypeArgs: []reflect.Type{intType}, Func: double})
	require.NoError(t, err, "double has identity[int]'s signature")

	err = r.RegisterGenericFunc(identityDef(), GenericInstance{TypeArgs: []reflect.Type{stringType}, Func: double})
	assert.True(t, slim.IsArgumentError(err), "signature must match the instantiated definition")
}

func TestMemberLookup(t *testing.T) {
	r := newTestRegistry(t)

	f, err := r.LookupField(widgetSlim, "Size")
	require.NoError(t, err)
	assert.Equal(t, slim.Int, f.FieldType)

	p, err := r.LookupProperty(widgetSlim, "Label", nil)
	require.NoError(t, err)
	assert.Equal(t, slim.String, p.PropertyType)
	assert.False(t, p.CanWrite)

	m, err := r.LookupMethod(widgetSlim, "Area", nil, []slim.Type{slim.Int})
	require.NoError(t, err)
	assert.Equal(t, slim.Int, m.Result())

	_, err = r.LookupMethod(widgetSlim, "Area", nil, []slim.Type{slim.Int64})
	assert.True(t, slim.IsResolutionError(err))

	fn, err := r.LookupMethod(slim.Package(pkgPath), "double", nil, []slim.Type{slim.Int})
	require.NoError(t, err)
	assert.True(t, slim.IsPackage(fn.DeclaringType()))

	gm, err := r.LookupMethod(slim.Package(pkgPath), "identity", []slim.Type{slim.String}, []slim.Type{slim.String})
	require.NoError(t, err)
	assert.Equal(t, slim.String, gm.Result())

	_, err = r.LookupMethod(slim.Package(pkgPath), "identity", []slim.Type{slim.Bool}, []slim.Type{slim.Bool})
	assert.True(t, slim.IsResolutionError(err), "bool instantiation was never registered")

	c, err := r.LookupConstructor(widgetSlim, []slim.Type{slim.String, slim.Int})
	require.NoError(t, err)
	assert.Len(t, c.ParameterTypes, 2)

	_, err = r.LookupConstructor(widgetSlim, nil)
	assert.True(t, slim.IsResolutionError(err))

	rec, err := slim.BuildStructural(slim.StructuralRecord, true, slim.StructuralProperty{Name: "a", Type: slim.Int, CanWrite: true})
	require.NoError(t, err)
	sp, err := r.LookupProperty(rec, "a", nil)
	require.NoError(t, err)
	assert.True(t, sp.CanWrite)
	_, err = r.LookupField(rec, "a")
	assert.True(t, slim.IsResolutionError(err))
}

func TestMemberRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	rec, err := slim.BuildStructural(slim.StructuralRecord, true, slim.StructuralProperty{Name: "total_count", Type: slim.Int, CanWrite: true})
	require.NoError(t, err)

	members := []slim.MemberInfo{
		&slim.FieldInfo{Declaring: widgetSlim, Name: "Name", FieldType: slim.String},
		&slim.PropertyInfo{Declaring: widgetSlim, Name: "Label", PropertyType: slim.String},
		&slim.PropertyInfo{Declaring: rec, Name: "total_count", PropertyType: slim.Int, CanWrite: true},
		&slim.SimpleMethod{Declaring: widgetSlim, Name: "Area", ParameterTypes: []slim.Type{slim.Int}, ReturnType: slim.Int},
		&slim.SimpleMethod{Declaring: slim.Package(pkgPath), Name: "double", ParameterTypes: []slim.Type{slim.Int}, ReturnType: slim.Int},
		&slim.GenericMethod{Definition: identityDef(), Arguments: []slim.Type{slim.Int}},
		&slim.ConstructorInfo{Declaring: widgetSlim, ParameterTypes: []slim.Type{slim.String, slim.Int}},
	}
	for _, m := range members {
		t.Run(m.MemberName(), func(t *testing.T) {
			native, err := r.MemberFromSlim(m)
			require.NoError(t, err)
			back, err := r.MemberToSlim(native)
			require.NoError(t, err)
			assert.True(t, slim.MemberEqual(m, back))
		})
	}

	_, err = r.MemberFromSlim(&slim.FieldInfo{Declaring: widgetSlim, Name: "Name", FieldType: slim.Int})
	assert.True(t, slim.IsResolutionError(err), "field type must match")

	_, err = r.MemberFromSlim(identityDef())
	assert.True(t, slim.IsResolutionError(err), "open generic methods have no native form")
}

func TestNativeTypeComparer(t *testing.T) {
	ab := reflect.StructOf([]reflect.StructField{
		{Name: "A", Type: intType},
		{Name: "B", Type: stringType},
	})
	ba := reflect.StructOf([]reflect.StructField{
		{Name: "B", Type: stringType},
		{Name: "A", Type: intType},
	})
	ac := reflect.StructOf([]reflect.StructField{
		{Name: "A", Type: intType},
		{Name: "C", Type: stringType},
	})
	var c TypeComparer
	assert.True(t, c.Equal(ab, ba))
	assert.False(t, c.Equal(ab, ac))
	assert.True(t, c.Equal(reflect.SliceOf(ab), reflect.SliceOf(ba)))
	assert.True(t, c.Equal(reflect.MapOf(stringType, ab), reflect.MapOf(stringType, ba)))
	assert.False(t, c.Equal(widgetType, reflect.TypeFor[struct {
		Name string
		Size int
	}]()), "named types compare nominally")

	everything := TypeComparer{Structural: func(t reflect.Type) bool { return t.Kind() == reflect.Struct }}
	assert.True(t, everything.Equal(widgetType, reflect.TypeFor[struct {
		Size int
		Name string
	}]()))
}

func TestIsTuple(t *testing.T) {
	assert.True(t, IsTuple(reflect.TypeFor[struct {
		Item1 int
		Item2 string
	}]()))
	assert.False(t, IsTuple(reflect.TypeFor[struct{ A int }]()))
	assert.False(t, IsTuple(widgetType))

	r := NewRegistry()
	tuple, err := slim.BuildStructural(slim.StructuralTuple, true, slim.StructuralProperty{Name: "x", Type: slim.Int})
	require.NoError(t, err)
	st, err := r.ToType(tuple)
	require.NoError(t, err)
	assert.True(t, IsTuple(st))
}

func TestFieldNames(t *testing.T) {
	used := map[string]bool{}
	assert.Equal(t, "A", fieldName("a", used))
	assert.Equal(t, "A2", fieldName("a", used))
	assert.Equal(t, "FirstName", fieldName("first_name", used))
}

func TestTypeKeyIgnoresPropertyOrder(t *testing.T) {
	a, err := slim.BuildStructural(slim.StructuralRecord, true,
		slim.StructuralProperty{Name: "x", Type: slim.Int},
		slim.StructuralProperty{Name: "y", Type: slim.String},
	)
	require.NoError(t, err)
	b, err := slim.BuildStructural(slim.StructuralRecord, true,
		slim.StructuralProperty{Name: "y", Type: slim.String},
		slim.StructuralProperty{Name: "x", Type: slim.Int},
	)
	require.NoError(t, err)
	assert.Equal(t, typeKey(a), typeKey(b))
	assert.NotEqual(t, typeKey(a), typeKey(slim.Slice(a)))
}

// mirrored builds a{next *b} and b{next *a}, two records with one shape.
func mirrored(t *testing.T) (a, b *slim.StructuralType) {
	t.Helper()
	a = slim.NewStructuralType(slim.StructuralRecord, true)
	b = slim.NewStructuralType(slim.StructuralRecord, true)
	_, err := a.AddProperty("next", slim.Pointer(b), false)
	require.NoError(t, err)
	_, err = b.AddProperty("next", slim.Pointer(a), false)
	require.NoError(t, err)
	return a.Freeze(), b.Freeze()
}

func TestMutuallyRecursiveRecordsFail(t *testing.T) {
	a, _ := mirrored(t)
	r := NewRegistry()

	tests := []struct {
		name string
		in   slim.Type
	}{
		{"record", a},
		{"slice of record", slim.Slice(a)},
		{"record inside record", mustRecord(t, slim.StructuralProperty{Name: "inner", Type: a})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				_, err := r.ToType(tt.in)
				done <- err
			}()
			select {
			case err := <-done:
				require.Error(t, err)
				assert.True(t, slim.IsResolutionError(err), "got %v", err)
			case <-time.After(5 * time.Second):
				t.Fatal("ToType did not return")
			}
		})
	}
}

func TestEqualRecordsShareNativeType(t *testing.T) {
	point := func() *slim.StructuralType {
		return mustRecord(t,
			slim.StructuralProperty{Name: "x", Type: slim.Int},
			slim.StructuralProperty{Name: "y", Type: slim.Int},
		)
	}
	segment := mustRecord(t,
		slim.StructuralProperty{Name: "from", Type: point()},
		slim.StructuralProperty{Name: "to", Type: slim.Pointer(point())},
	)

	st, err := NewRegistry().ToType(segment)
	require.NoError(t, err)
	from, ok := StructField(st, "from")
	require.True(t, ok)
	to, ok := StructField(st, "to")
	require.True(t, ok)
	assert.Equal(t, from.Type, to.Type.Elem())
}

func mustRecord(t *testing.T, props ...slim.StructuralProperty) *slim.StructuralType {
	t.Helper()
	rec, err := slim.BuildStructural(slim.StructuralRecord, true, props...)
	require.NoError(t, err)
	return rec
}
