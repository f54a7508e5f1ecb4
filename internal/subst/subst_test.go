package subst

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/derive"
	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
	"github.com/roach88/slim/internal/typesys"
)

type box[T any] struct {
	Value T
}

func identity[T any](v T) T { return v }

var (
	pkgPath = reflect.TypeFor[box[int]]().PkgPath()
	boxDef  = &slim.GenericDefinitionType{Assembly: pkgPath, Name: "box"}
	widen   = Map(slim.Int, slim.Int64)
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

func newRegistry(t *testing.T, withInt64 bool) *typesys.Registry {
	t.Helper()
	r := typesys.NewRegistry()
	require.NoError(t, r.RegisterGenericType(boxDef, []reflect.Type{reflect.TypeFor[int]()}, reflect.TypeFor[box[int]]()))
	instances := []typesys.GenericInstance{{TypeArgs: []reflect.Type{reflect.TypeFor[int]()}, Func: identity[int]}}
	if withInt64 {
		require.NoError(t, r.RegisterGenericType(boxDef, []reflect.Type{reflect.TypeFor[int64]()}, reflect.TypeFor[box[int64]]()))
		instances = append(instances, typesys.GenericInstance{TypeArgs: []reflect.Type{reflect.TypeFor[int64]()}, Func: identity[int64]})
	}
	require.NoError(t, r.RegisterGenericFunc(identityDef(), instances...))
	return r
}

func increment(kind op.Kind) *slim.Lambda {
	x := slim.NewParameter("x", slim.Int)
	body := &slim.Binary{Op: kind, Left: x, Right: slim.NewConstant(1, slim.Int), Type: slim.Int}
	return &slim.Lambda{
		Parameters: []*slim.Parameter{x},
		Body:       body,
		Type:       slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.Int}, false),
	}
}

func selfRecord(t *testing.T, value slim.Type) *slim.StructuralType {
	t.Helper()
	rec := slim.NewStructuralType(slim.StructuralRecord, true)
	_, err := rec.AddProperty("next", slim.Pointer(rec), false)
	require.NoError(t, err)
	_, err = rec.AddProperty("value", value, false)
	require.NoError(t, err)
	return rec.Freeze()
}

func TestTypeSubstitution(t *testing.T) {
	tests := []struct {
		name string
		in   slim.Type
		want slim.Type
	}{
		{"func", slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.Int}, false),
			slim.Func([]slim.Type{slim.Int64}, []slim.Type{slim.Int64}, false)},
		{"slice", slim.Slice(slim.Int), slim.Slice(slim.Int64)},
		{"map value", slim.Map(slim.String, slim.Int), slim.Map(slim.String, slim.Int64)},
		{"leaf", slim.Int, slim.Int64},
		{"generic", &slim.GenericType{Definition: boxDef, Arguments: []slim.Type{slim.Int}},
			&slim.GenericType{Definition: boxDef, Arguments: []slim.Type{slim.Int64}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Type(widen, tt.in)
			assert.True(t, slim.TypeEqual(tt.want, got), "got %s", slim.FormatType(got))
		})
	}
}

func TestTypeSubstitutionIdentity(t *testing.T) {
	fn := slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.String}, false)
	rec := selfRecord(t, slim.String)
	for _, m := range []*TypeMap{nil, NewTypeMap(), Map(slim.Bool, slim.Float64)} {
		assert.Same(t, fn, Type(m, fn))
		assert.Same(t, rec, Type(m, rec))
	}
}

func TestCyclicRecordSubstitution(t *testing.T) {
	rec := selfRecord(t, slim.Int)
	got, ok := Type(widen, rec).(*slim.StructuralType)
	require.True(t, ok)
	require.NotSame(t, rec, got)
	assert.True(t, got.Frozen())

	next, ok := got.Property("next")
	require.True(t, ok)
	elem, ok := slim.PointerElem(next.Type)
	require.True(t, ok)
	assert.Same(t, got, elem, "self reference points at the rebuilt record")

	value, _ := got.Property("value")
	assert.True(t, slim.TypeEqual(slim.Int64, value.Type))
	assert.True(t, slim.TypeEqual(selfRecord(t, slim.Int64), got))
}

func TestTypeMapMatchesStructurally(t *testing.T) {
	m := Map(slim.Slice(slim.Int), slim.String)
	assert.Equal(t, 1, m.Len())
	got := Type(m, slim.Map(slim.String, slim.Slice(slim.Int)))
	assert.True(t, slim.TypeEqual(slim.Map(slim.String, slim.String), got))

	m.Add(slim.Slice(slim.Int), slim.Bool)
	assert.Equal(t, 1, m.Len(), "adding an equal key replaces the entry")
	r, ok := m.Lookup(slim.Slice(slim.Int))
	require.True(t, ok)
	assert.Same(t, slim.Bool, r)
}

func TestExpressionIdentity(t *testing.T) {
	l := increment(op.Add)
	for _, m := range []*TypeMap{nil, NewTypeMap(), Map(slim.Bool, slim.Float64)} {
		out, err := Expression(m, l)
		require.NoError(t, err)
		assert.Same(t, l, out)
	}
}

func TestArithmeticIsRetyped(t *testing.T) {
	for _, kind := range []op.Kind{op.Add, op.AddChecked} {
		t.Run(kind.String(), func(t *testing.T) {
			l := increment(kind)
			out, err := Expression(widen, l)
			require.NoError(t, err)

			got := out.(*slim.Lambda)
			assert.True(t, slim.TypeEqual(slim.Func([]slim.Type{slim.Int64}, []slim.Type{slim.Int64}, false), got.Type))
			body := got.Body.(*slim.Binary)
			assert.Equal(t, kind, body.Op)
			assert.True(t, slim.TypeEqual(slim.Int64, body.Type))
			assert.Equal(t, int64(1), body.Right.(*slim.Constant).Value)
			assert.Same(t, got.Parameters[0], body.Left, "parameter re-created once")
			require.NoError(t, derive.Verify(got))

			assert.Same(t, slim.Int, l.Parameters[0].Type, "input is untouched")
		})
	}
}

func TestIncompatibleOperandsFail(t *testing.T) {
	x := slim.NewParameter("x", slim.Int)
	xs := slim.NewParameter("xs", slim.Slice(slim.String))
	length := &slim.Unary{Op: op.ArrayLength, Operand: xs, Type: slim.Int}
	sum := &slim.Binary{Op: op.Add, Left: x, Right: length, Type: slim.Int}

	_, err := Expression(widen, sum)
	assert.True(t, slim.IsResolutionError(err), "got %v", err)
}

func TestConstantConversion(t *testing.T) {
	small := slim.NewConstant(5, slim.Int)
	out, err := Expression(Map(slim.Int, slim.Int8), small)
	require.NoError(t, err)
	assert.Equal(t, int8(5), out.(*slim.Constant).Value)

	big := slim.NewConstant(1000, slim.Int)
	_, err = Expression(Map(slim.Int, slim.Int8), big)
	assert.True(t, slim.IsResolutionError(err))

	out, err = Expression(Map(slim.Int, slim.Int8), big, WithResolver(Forgiving(&DefaultResolver{})))
	require.NoError(t, err)
	assert.Equal(t, 1000, out.(*slim.Constant).Value)
}

func TestDefaultConstantConverter(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		from, to slim.Type
		want     any
		wantErr  bool
	}{
		{"widen", int32(7), slim.Int32, slim.Int64, int64(7), false},
		{"narrow fits", int64(7), slim.Int64, slim.Int8, int8(7), false},
		{"narrow overflows", int64(300), slim.Int64, slim.Int8, nil, true},
		{"negative to unsigned", -1, slim.Int, slim.Uint64, nil, true},
		{"int to float exact", 3, slim.Int, slim.Float64, 3.0, false},
		{"fraction to int", 1.5, slim.Float64, slim.Int, nil, true},
		{"string to int", "1", slim.String, slim.Int, nil, true},
		{"lifted kept", slim.Lifted(`{"a":1}`), slim.Int, slim.Int64, slim.Lifted(`{"a":1}`), false},
		{"nil kept", nil, slim.Pointer(slim.Int), slim.Pointer(slim.Int64), nil, false},
		{"nominal", 1, slim.Int, &slim.SimpleType{Assembly: "example.com/x", Name: "ID"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DefaultConstantConverter(tt.value, tt.from, tt.to)
			if tt.wantErr {
				assert.True(t, slim.IsResolutionError(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFieldIsReResolved(t *testing.T) {
	reg := newRegistry(t, true)
	decl := reg.ToSlim(reflect.TypeFor[box[int]]())
	field, err := reg.LookupField(decl, "Value")
	require.NoError(t, err)
	b := slim.NewParameter("b", decl)
	read := &slim.Member{Expression: b, Member: field, Type: slim.Int}

	out, err := Expression(widen, read, WithLookup(reg))
	require.NoError(t, err)
	got := out.(*slim.Member)
	f := got.Member.(*slim.FieldInfo)
	assert.True(t, slim.TypeEqual(reg.ToSlim(reflect.TypeFor[box[int64]]()), f.Declaring))
	assert.True(t, slim.TypeEqual(slim.Int64, f.FieldType))
	require.NoError(t, derive.Verify(got))
}

func TestMissingMemberFails(t *testing.T) {
	reg := newRegistry(t, false)
	decl := reg.ToSlim(reflect.TypeFor[box[int]]())
	field, err := reg.LookupField(decl, "Value")
	require.NoError(t, err)
	read := &slim.Member{Expression: slim.NewParameter("b", decl), Member: field, Type: slim.Int}

	_, err = Expression(widen, read, WithLookup(reg))
	assert.True(t, slim.IsResolutionError(err), "box[int64] is not registered")

	_, err = Expression(widen, read)
	assert.True(t, slim.IsResolutionError(err), "no lookup configured")

	out, err := Expression(widen, read, WithResolver(Forgiving(&DefaultResolver{Lookup: reg})))
	require.NoError(t, err)
	f := out.(*slim.Member).Member.(*slim.FieldInfo)
	assert.Equal(t, "Value", f.Name)
	assert.True(t, slim.TypeEqual(slim.Int64, f.FieldType))
}

func TestGenericMethodIsReInstantiated(t *testing.T) {
	reg := newRegistry(t, true)
	x := slim.NewParameter("x", slim.Int)
	call := &slim.Call{
		Method:    &slim.GenericMethod{Definition: identityDef(), Arguments: []slim.Type{slim.Int}},
		Arguments: []slim.Expression{x},
		Type:      slim.Int,
	}

	out, err := Expression(widen, call, WithLookup(reg))
	require.NoError(t, err)
	got := out.(*slim.Call)
	gm, ok := got.Method.(*slim.GenericMethod)
	require.True(t, ok)
	require.Len(t, gm.Arguments, 1)
	assert.True(t, slim.TypeEqual(slim.Int64, gm.Arguments[0]))
	assert.True(t, slim.TypeEqual(slim.Int64, got.Type))
}

func TestRecordPropertyResolvesIntrinsically(t *testing.T) {
	rec, err := slim.BuildStructural(slim.StructuralRecord, true, slim.StructuralProperty{Name: "a", Type: slim.Int})
	require.NoError(t, err)
	prop := &slim.PropertyInfo{Declaring: rec, Name: "a", PropertyType: slim.Int}
	read := &slim.Member{Expression: slim.NewParameter("r", rec), Member: prop, Type: slim.Int}

	out, err := Expression(widen, read)
	require.NoError(t, err)
	p := out.(*slim.Member).Member.(*slim.PropertyInfo)
	assert.NotSame(t, rec, p.Declaring)
	assert.True(t, slim.TypeEqual(slim.Int64, p.PropertyType))
	require.NoError(t, derive.Verify(out))
}

func TestSharedCreateNodeStaysShared(t *testing.T) {
	create := &slim.New{Type: slim.Map(slim.String, slim.Int)}
	first := &slim.Unary{Op: op.ArrayLength, Operand: create, Type: slim.Int}
	second := &slim.Unary{Op: op.ArrayLength, Operand: create, Type: slim.Int}
	block := &slim.Block{Expressions: []slim.Expression{first, second}}

	out, err := Expression(widen, block)
	require.NoError(t, err)
	got := out.(*slim.Block)
	a := got.Expressions[0].(*slim.Unary).Operand
	b := got.Expressions[1].(*slim.Unary).Operand
	assert.NotSame(t, create, a)
	assert.Same(t, a, b, "a node shared in the input is shared in the output")
	assert.Nil(t, got.Type, "undeclared block type stays undeclared")
}

func TestLabelsAreRecreatedOnce(t *testing.T) {
	i := slim.NewParameter("i", slim.Int)
	done := &slim.LabelTarget{Name: "done", Type: slim.Int}
	brk := &slim.Goto{Kind: op.GotoBreak, Target: done, Value: i, Type: slim.Void}
	loop := &slim.Loop{Body: brk, BreakLabel: done, Type: slim.Int}
	block := &slim.Block{Variables: []*slim.Parameter{i}, Expressions: []slim.Expression{loop}, Type: slim.Int}

	out, err := Expression(widen, block)
	require.NoError(t, err)
	got := out.(*slim.Block)
	l := got.Expressions[0].(*slim.Loop)
	g := l.Body.(*slim.Goto)
	assert.Same(t, l.BreakLabel, g.Target)
	assert.Same(t, got.Variables[0], g.Value)
	assert.True(t, slim.TypeEqual(slim.Int64, l.BreakLabel.Type))
	assert.True(t, slim.TypeEqual(slim.Int64, got.Type))
	require.NoError(t, derive.Verify(got))
}

func TestNilExpression(t *testing.T) {
	_, err := Expression(widen, nil)
	assert.True(t, slim.IsArgumentError(err))
}
