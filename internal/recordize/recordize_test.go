package recordize

import (
	"reflect"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/convert"
	"github.com/roach88/slim/internal/derive"
	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
	"github.com/roach88/slim/internal/typesys"
)

type pair struct {
	A int    `mapping:"a"`
	B string `mapping:"b"`
	C int
}

func (p pair) Describe() string { return p.B }

func newPair(a int, b string) pair { return pair{A: a, B: b} }

type node struct {
	Value int   `mapping:"value"`
	Next  *node `mapping:"next"`
}

type clash struct {
	X int `mapping:"x"`
	Y int `mapping:"x"`
}

var (
	pairType  = reflect.TypeFor[pair]()
	nodeType  = reflect.TypeFor[node]()
	clashType = reflect.TypeFor[clash]()
)

type fixture struct {
	reg     *typesys.Registry
	rec     *Recordizer
	ctor    *expr.Constructor
	partial *expr.Constructor
	stray   *expr.Constructor
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	reg := typesys.NewRegistry()
	require.NoError(t, reg.RegisterType(pairType, nodeType, clashType))
	ctor, err := reg.RegisterConstructor(newPair,
		expr.CtorParam{Name: "a", Mapping: "a"},
		expr.CtorParam{Name: "b", Mapping: "b"},
	)
	require.NoError(t, err)
	partial, err := reg.RegisterConstructor(func(a int) pair { return pair{A: a} },
		expr.CtorParam{Name: "a"},
	)
	require.NoError(t, err)
	stray, err := reg.RegisterConstructor(func(b string) pair { return pair{B: b} },
		expr.CtorParam{Name: "b", Mapping: "c"},
	)
	require.NoError(t, err)
	return fixture{reg: reg, rec: New(reg, opts...), ctor: ctor, partial: partial, stray: stray}
}

func field(name string) *expr.Field {
	return expr.Must(expr.FieldOf(pairType, name))
}

func pairInit(a int, b string) *expr.MemberInit {
	return expr.Must(expr.MakeMemberInit(expr.MakeNewZero(pairType),
		expr.Must(expr.Bind(field("A"), expr.Const(a))),
		expr.Must(expr.Bind(field("B"), expr.Const(b))),
	))
}

// evaluateBoth evaluates the native expression and its recordized form and
// returns the portable value of the former and the JSON of the latter.
func (f fixture) evaluateBoth(t *testing.T, e expr.Expression, out slim.Expression) (want, got string) {
	t.Helper()
	original, err := expr.Evaluate(e, nil)
	require.NoError(t, err)
	lifted, err := f.rec.Value(original)
	require.NoError(t, err)

	native, err := convert.New(f.reg).ToExpression(out)
	require.NoError(t, err)
	v, err := expr.Evaluate(native, nil)
	require.NoError(t, err)
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(lifted), string(data)
}

func TestPairBecomesRecord(t *testing.T) {
	f := newFixture(t)
	e := pairInit(1, "x")

	out, err := f.rec.Recordize(e)
	require.NoError(t, err)
	require.NoError(t, derive.Verify(out))

	st, ok := slim.TypeOf(out).(*slim.StructuralType)
	require.True(t, ok, "got %s", slim.FormatType(slim.TypeOf(out)))
	assert.True(t, st.Frozen())
	assert.Equal(t, slim.StructuralRecord, st.StructuralKind())
	require.Equal(t, 2, st.Len())
	a, ok := st.Property("a")
	require.True(t, ok)
	assert.True(t, slim.TypeEqual(slim.Int, a.Type))
	b, ok := st.Property("b")
	require.True(t, ok)
	assert.True(t, slim.TypeEqual(slim.String, b.Type))

	want, got := f.evaluateBoth(t, e, out)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, want)
	assert.JSONEq(t, want, got)
}

func TestConstructorBecomesMemberInit(t *testing.T) {
	f := newFixture(t)
	e := expr.Must(expr.MakeNew(f.ctor, expr.Const(2), expr.Const("y")))

	out, err := f.rec.Recordize(e)
	require.NoError(t, err)
	init, ok := out.(*slim.MemberInit)
	require.True(t, ok, "got %T", out)
	assert.Nil(t, init.New.Constructor)
	names := make([]string, 0, len(init.Bindings))
	for _, b := range init.Bindings {
		names = append(names, b.BoundMember().MemberName())
	}
	assert.Equal(t, []string{"a", "b"}, names)

	want, got := f.evaluateBoth(t, e, out)
	assert.JSONEq(t, want, got)
}

func TestFieldOfInitializedEntity(t *testing.T) {
	f := newFixture(t)
	e := expr.Must(expr.MakeField(pairInit(7, "z"), "B"))

	out, err := f.rec.Recordize(e)
	require.NoError(t, err)
	require.NoError(t, derive.Verify(out))
	assert.True(t, slim.TypeEqual(slim.String, slim.TypeOf(out)))

	native, err := convert.New(f.reg).ToExpression(out)
	require.NoError(t, err)
	v, err := expr.Evaluate(native, nil)
	require.NoError(t, err)
	assert.Equal(t, "z", v)
}

func TestMemberAccessEvaluatesTheSame(t *testing.T) {
	f := newFixture(t)
	p := expr.Param("p", pairType)
	sum := expr.Must(expr.MakeBinary(op.Add, expr.Must(expr.MakeField(p, "A")), expr.Const(10)))
	e := expr.Must(expr.MakeInvoke(expr.Must(expr.MakeLambda(sum, p)), pairInit(5, "x")))

	out, err := f.rec.Recordize(e)
	require.NoError(t, err)
	require.NoError(t, derive.Verify(out))

	lambda := out.(*slim.Invocation).Expression.(*slim.Lambda)
	_, isRecord := lambda.Parameters[0].Type.(*slim.StructuralType)
	assert.True(t, isRecord)
	access := lambda.Body.(*slim.Binary).Left.(*slim.Member)
	assert.Equal(t, "a", access.Member.MemberName())

	native, err := convert.New(f.reg).ToExpression(out)
	require.NoError(t, err)
	v, err := expr.Evaluate(native, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, v)
}

func TestConstantsBecomeRecordValues(t *testing.T) {
	f := newFixture(t)

	out, err := f.rec.Recordize(expr.Const(pair{A: 1, B: "x", C: 9}))
	require.NoError(t, err)
	c := out.(*slim.Constant)
	lifted, ok := c.Value.(slim.Lifted)
	require.True(t, ok, "got %T", c.Value)
	assert.JSONEq(t, `{"a":1,"b":"x"}`, string(lifted))

	e := expr.Const([]pair{{A: 1, B: "x"}, {A: 2, B: "y"}})
	out, err = f.rec.Recordize(e)
	require.NoError(t, err)
	arr, ok := slim.TypeOf(out).(*slim.ArrayType)
	require.True(t, ok)
	assert.True(t, arr.IsVector())
	want, got := f.evaluateBoth(t, e, out)
	assert.JSONEq(t, `[{"a":1,"b":"x"},{"a":2,"b":"y"}]`, want)
	assert.JSONEq(t, want, got)
}

func TestMappingErrors(t *testing.T) {
	f := newFixture(t)
	p := expr.Param("p", pairType)

	tests := []struct {
		name string
		e    expr.Expression
	}{
		{
			name: "unmapped field",
			e:    expr.Must(expr.MakeLambda(expr.Must(expr.MakeField(p, "C")), p)),
		},
		{
			name: "method call on entity",
			e:    expr.Must(expr.MakeLambda(expr.Must(expr.MakeMethodCall(p, "Describe")), p)),
		},
		{
			name: "constructor parameter and initializer share a mapping",
			e: expr.Must(expr.MakeMemberInit(
				expr.Must(expr.MakeNew(f.ctor, expr.Const(1), expr.Const("x"))),
				expr.Must(expr.Bind(field("A"), expr.Const(2))),
			)),
		},
		{
			name: "unmapped constructor parameter",
			e:    expr.Must(expr.MakeNew(f.partial, expr.Const(1))),
		},
		{
			name: "constructor mapping matches no field",
			e:    expr.Must(expr.MakeNew(f.stray, expr.Const("x"))),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rec.Recordize(tt.e)
			require.Error(t, err)
			assert.True(t, slim.IsMappingError(err), "got %v", err)
		})
	}
}

func TestKnownTypesPassThrough(t *testing.T) {
	p := expr.Param("p", pairType)
	e := expr.Must(expr.MakeLambda(expr.Must(expr.MakeMethodCall(p, "Describe")), p))

	tests := []struct {
		name string
		opt  Option
	}{
		{"by type", WithKnown(pairType)},
		{"by name", WithKnownNames(pairType.PkgPath() + ".pair")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opt)
			plain, err := convert.New(f.reg).ToSlim(e)
			require.NoError(t, err)

			out, err := f.rec.Expression(plain)
			require.NoError(t, err)
			assert.Same(t, plain, out)

			out, err = f.rec.Recordize(e)
			require.NoError(t, err)
			assert.True(t, slim.ExpressionEqual(plain, out))
		})
	}
}

func TestRecursiveEntity(t *testing.T) {
	f := newFixture(t)

	d, err := f.rec.Type(nodeType)
	require.NoError(t, err)
	st, ok := d.(*slim.StructuralType)
	require.True(t, ok)
	assert.True(t, st.Frozen())
	next, ok := st.Property("next")
	require.True(t, ok)
	elem, ok := slim.PointerElem(next.Type)
	require.True(t, ok)
	assert.Same(t, st, elem)

	lifted, err := f.rec.Value(node{Value: 1, Next: &node{Value: 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":1,"next":{"value":2,"next":null}}`, string(lifted))

	loop := &node{Value: 1}
	loop.Next = loop
	_, err = f.rec.Value(loop)
	assert.True(t, slim.IsMappingError(err))
}

func TestDuplicateFieldMapping(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Type(clashType)
	assert.True(t, slim.IsMappingError(err))
}

func TestExpressionWithoutEntitiesIsIdentity(t *testing.T) {
	f := newFixture(t)
	e := &slim.Binary{Op: op.Add, Left: slim.NewConstant(1, slim.Int), Right: slim.NewConstant(2, slim.Int), Type: slim.Int}
	out, err := f.rec.Expression(e)
	require.NoError(t, err)
	assert.Same(t, e, out)
}

func TestNilArguments(t *testing.T) {
	f := newFixture(t)
	_, err := f.rec.Recordize(nil)
	assert.True(t, slim.IsArgumentError(err))
	_, err = f.rec.Expression(nil)
	assert.True(t, slim.IsArgumentError(err))
	_, err = f.rec.Type(nil)
	assert.True(t, slim.IsArgumentError(err))
}
