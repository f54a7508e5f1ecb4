package expr

import (
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
)

type point struct {
	X int
	Y int `mapping:"y"`
}

type counter struct {
	N int
}

func (c counter) Double() int      { return c.N * 2 }
func (c counter) At(i int) int     { return c.N + i }
func (c *counter) Bump(by int) int { c.N += by; return c.N }

var (
	int8Type    = reflect.TypeFor[int8]()
	int64Type   = reflect.TypeFor[int64]()
	stringType  = reflect.TypeFor[string]()
	nullInt     = reflect.TypeFor[*int]()
	pointType   = reflect.TypeFor[point]()
	counterType = reflect.TypeFor[counter]()
)

func TestBinaryResultTypes(t *testing.T) {
	tests := []struct {
		name  string
		kind  op.Kind
		l, r  reflect.Type
		lift  bool
		want  reflect.Type
		fails bool
	}{
		{"add ints", op.Add, intType, intType, false, intType, false},
		{"add strings", op.Add, stringType, stringType, false, stringType, false},
		{"no promotion", op.Add, intType, int64Type, false, nil, true},
		{"modulo float", op.Modulo, reflect.TypeFor[float64](), reflect.TypeFor[float64](), false, nil, true},
		{"shift takes left", op.LeftShift, int8Type, reflect.TypeFor[uint](), false, int8Type, false},
		{"compare", op.LessThan, intType, intType, false, boolType, false},
		{"lifted compare", op.Equal, nullInt, nullInt, false, boolType, false},
		{"lift to null", op.Equal, nullInt, nullInt, true, reflect.TypeFor[*bool](), false},
		{"lifted add", op.Add, nullInt, nullInt, false, nullInt, false},
		{"order strings", op.GreaterThan, stringType, stringType, false, boolType, false},
		{"order bools", op.LessThan, boolType, boolType, false, nil, true},
		{"logical", op.AndAlso, boolType, boolType, false, boolType, false},
		{"bool xor", op.ExclusiveOr, boolType, boolType, false, boolType, false},
		{"coalesce nullable", op.Coalesce, nullInt, intType, false, intType, false},
		{"coalesce non-nilable", op.Coalesce, intType, intType, false, nil, true},
		{"array index", op.ArrayIndex, reflect.TypeFor[[]string](), intType, false, stringType, false},
		{"assign", op.Assign, intType, intType, false, intType, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BinaryResultType(tt.kind, tt.l, tt.r, tt.lift)
			if tt.fails {
				require.Error(t, err)
				assert.True(t, slim.IsDerivationError(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnaryResultTypes(t *testing.T) {
	got, err := UnaryResultType(op.Convert, intType, int64Type)
	require.NoError(t, err)
	assert.Equal(t, int64Type, got)

	got, err = UnaryResultType(op.Convert, nullInt, reflect.TypeFor[*int64]())
	require.NoError(t, err, "nullable conversions lift")
	assert.Equal(t, reflect.TypeFor[*int64](), got)

	_, err = UnaryResultType(op.Convert, stringType, pointType)
	assert.True(t, slim.IsDerivationError(err))

	_, err = UnaryResultType(op.Convert, intType, nil)
	assert.True(t, slim.IsArgumentError(err))

	got, err = UnaryResultType(op.ArrayLength, reflect.TypeFor[map[string]int](), nil)
	require.NoError(t, err)
	assert.Equal(t, intType, got)

	got, err = UnaryResultType(op.Throw, stringType, nil)
	require.NoError(t, err)
	assert.Equal(t, VoidType, got)

	_, err = UnaryResultType(op.Not, intType, nil)
	assert.Error(t, err)
}

func TestMembers(t *testing.T) {
	f, err := FieldOf(reflect.TypeFor[*point](), "Y")
	require.NoError(t, err)
	assert.Equal(t, pointType, f.Declaring, "pointer receivers resolve to the struct")
	assert.Equal(t, "y", f.Mapping)

	_, err = FieldOf(pointType, "missing")
	assert.Error(t, err)

	p, err := PropertyOf(counterType, "Double")
	require.NoError(t, err)
	assert.Equal(t, intType, p.Type)
	assert.False(t, p.CanWrite())

	idx, err := PropertyOf(counterType, "At")
	require.NoError(t, err)
	assert.Equal(t, []reflect.Type{intType}, idx.IndexTypes)

	anon := reflect.TypeFor[struct{ A int }]()
	ap, err := PropertyOf(anon, "A")
	require.NoError(t, err)
	assert.True(t, ap.IsField())
	assert.True(t, ap.CanWrite())

	_, err = Func("strconv", "Atoi", strconv.Atoi)
	assert.Error(t, err, "multiple results are not expressible")

	up := MustFunc("strings", "ToUpper", strings.ToUpper)
	assert.True(t, up.IsStatic())
	assert.Equal(t, "strings.ToUpper", up.String())

	bump, err := MethodOf(reflect.TypeFor[*counter](), "Bump")
	require.NoError(t, err)
	assert.Equal(t, []reflect.Type{intType}, bump.Params, "receiver is not a parameter")
}

func TestFactoryValidation(t *testing.T) {
	x := Param("x", intType)

	_, err := MakeBinary(op.Add, x, Const(int64(1)))
	assert.True(t, slim.IsDerivationError(err))

	_, err = MakeBinary(op.Add, x, nil)
	assert.True(t, slim.IsArgumentError(err))

	_, err = MakeBinary(op.Assign, Const(1), x)
	assert.True(t, slim.IsArgumentError(err), "constants are not assignable")

	double := Must(MakeProperty(Param("c", counterType), "Double"))
	_, err = MakeBinary(op.Assign, double, Const(1))
	assert.True(t, slim.IsDerivationError(err), "getter properties are read-only")

	_, err = MakeConditional(Const(1), x, x, nil)
	assert.True(t, slim.IsDerivationError(err))

	_, err = MakeConditional(Const(true), x, Const("s"), nil)
	assert.True(t, slim.IsDerivationError(err))

	up := MustFunc("strings", "ToUpper", strings.ToUpper)
	_, err = MakeCall(nil, up)
	assert.True(t, slim.IsDerivationError(err), "arity is checked")
	_, err = MakeCall(x, up, Const("a"))
	assert.True(t, slim.IsArgumentError(err), "package functions take no receiver")

	_, err = MakeConst(nil)
	assert.True(t, slim.IsArgumentError(err), "untyped nil has no type")
	assert.Panics(t, func() { Const(nil) })
	k, err := MakeConst(int64(3))
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[int64](), k.Type())

	_, err = MakeConstant(nil, intType)
	assert.Error(t, err)
	c, err := MakeConstant(nil, nullInt)
	require.NoError(t, err)
	assert.Equal(t, nullInt, c.Type())

	brk := MakeLabelTarget("done", intType)
	_, err = MakeGoto(op.GotoBreak, brk, nil, nil)
	assert.Error(t, err, "non-void labels need a value")

	_, err = MakeTry(nil, x, nil, nil, nil)
	assert.True(t, slim.IsArgumentError(err))

	_, err = MakeBlock(nil, nil)
	assert.True(t, slim.IsArgumentError(err))
}

func TestLambdaTypes(t *testing.T) {
	x := Param("x", intType)
	l := Must(MakeLambda(Must(MakeBinary(op.Add, x, Const(1))), x))
	assert.Equal(t, reflect.TypeFor[func(int) int](), l.Type())

	void := Must(MakeLambda(MakeDefault(VoidType)))
	assert.Equal(t, reflect.TypeFor[func()](), void.Type())

	_, err := MakeLambdaType(reflect.TypeFor[func(string) int](), "f", x, x)
	assert.True(t, slim.IsDerivationError(err))

	named, err := MakeLambdaType(reflect.TypeFor[func(int) any](), "f", x, x)
	require.NoError(t, err, "results may widen to an interface")
	assert.Equal(t, "f", named.Name)
}
