package slim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/op"
)

func roundTrip(t *testing.T, e Expression) Expression {
	t.Helper()
	data, err := Marshal(e)
	require.NoError(t, err)
	out, err := Unmarshal(data)
	require.NoError(t, err)
	return out
}

func TestCodecRoundTrip(t *testing.T) {
	x := NewParameter("x", Int)
	s := NewParameter("s", String)
	brk := &LabelTarget{Name: "done", Type: Int}
	order := &SimpleType{Assembly: "example.com/shop", Name: "Order"}
	total := &PropertyInfo{Declaring: order, Name: "Total", PropertyType: Float64}
	o := NewParameter("o", order)
	tp := &GenericParameterType{Name: "T"}
	index := &GenericDefinitionMethod{
		Declaring:         Package("slices"),
		Name:              "Index",
		GenericParameters: []*GenericParameterType{tp},
		ParameterTypes:    []Type{Slice(tp), tp},
		ReturnType:        Int,
	}
	items := NewParameter("items", Slice(String))

	tests := []struct {
		name string
		expr Expression
	}{
		{"lambda", increment()},
		{"checked", &Binary{Op: op.MultiplyChecked, Left: x, Right: intConst(3), Type: Int}},
		{"constants", &Block{Expressions: []Expression{
			NewConstant(int8(-3), Int8),
			NewConstant(uint64(1<<63), Uint64),
			NewConstant(2.5, Float64),
			NewConstant(complex(1, 2), Complex128),
			NewConstant("héllo", String),
			NewConstant(true, Bool),
			NewConstant(nil, Pointer(Int)),
		}, Type: Pointer(Int)}},
		{"nullable constant", NewConstant(new(int), Nullable(Int))},
		{"member", &Member{Expression: o, Member: total, Type: Float64}},
		{"generic call", &Call{
			Method:    &GenericMethod{Definition: index, Arguments: []Type{String}},
			Arguments: []Expression{items, s},
			Type:      Int,
		}},
		{"loop", &Loop{
			Body: &Conditional{
				Test:    &Binary{Op: op.GreaterThan, Left: x, Right: intConst(10), Type: Bool},
				IfTrue:  &Goto{Kind: op.GotoBreak, Target: brk, Value: x, Type: Void},
				IfFalse: &Binary{Op: op.Assign, Left: x, Right: add(x, intConst(1)), Type: Int},
				Type:    Void,
			},
			BreakLabel: brk,
			Type:       Int,
		}},
		{"switch", &Switch{
			SwitchValue: s,
			Cases: []*SwitchCase{
				{TestValues: []Expression{NewConstant("a", String), NewConstant("b", String)}, Body: intConst(1)},
			},
			DefaultBody: intConst(0),
			Type:        Int,
		}},
		{"try", &Try{
			Body:     &Unary{Op: op.Throw, Operand: NewConstant("boom", String), Type: Int},
			Handlers: []*CatchBlock{{Test: Any, Variable: NewParameter("r", Any), Body: intConst(-1)}},
			Finally:  &Default{Type: Void},
			Type:     Int,
		}},
		{"list init", &ListInit{
			New: &New{Type: Map(String, Int)},
			Initializers: []*ElementInit{
				{Arguments: []Expression{NewConstant("a", String), intConst(1)}},
			},
			Type: Map(String, Int),
		}},
		{"type binary", &TypeBinary{Op: op.TypeIs, Expression: NewParameter("v", Any), TypeOperand: String, Type: Bool}},
		{"new array bounds", &NewArray{Op: op.NewArrayBounds, ElementType: Int, Expressions: []Expression{intConst(4)}, Type: Slice(Int)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := roundTrip(t, tt.expr)
			assert.True(t, StructuralComparer{GlobalsByName: true}.Equal(tt.expr, out), "round trip must be structurally equal:\n%s\n%s", Format(tt.expr), Format(out))
		})
	}
}

func TestCodecPreservesParameterIdentity(t *testing.T) {
	lambda := increment()
	out := roundTrip(t, lambda).(*Lambda)

	require.Len(t, out.Parameters, 1)
	body := out.Body.(*Binary)
	assert.Same(t, out.Parameters[0], body.Left, "reference and declaration must be one pointer")
}

func TestCodecCyclicRecord(t *testing.T) {
	rec := nodeRecord(t)
	p := NewParameter("head", rec)
	next, _ := rec.Property("next")
	expr := &Member{
		Expression: p,
		Member:     &PropertyInfo{Declaring: rec, Name: "next", PropertyType: next.Type},
		Type:       rec,
	}

	out := roundTrip(t, expr).(*Member)
	decoded, ok := out.Type.(*StructuralType)
	require.True(t, ok)
	assert.True(t, decoded.Frozen())
	assert.True(t, TypeEqual(rec, decoded))

	nextProp, ok := decoded.Property("next")
	require.True(t, ok)
	assert.Same(t, decoded, nextProp.Type, "self reference must survive decoding")
}

func TestMarshalType(t *testing.T) {
	rec := nodeRecord(t)
	data, err := MarshalType(Map(String, Slice(rec)))
	require.NoError(t, err)

	out, err := UnmarshalType(data)
	require.NoError(t, err)
	assert.True(t, TypeEqual(Map(String, Slice(rec)), out))
}

func TestLiftedConstantsSurviveRoundTrip(t *testing.T) {
	rec := pairRecord(t)
	c := NewConstant(map[string]any{"a": 1, "b": "x"}, rec)

	out := roundTrip(t, c).(*Constant)
	lifted, ok := out.Value.(Lifted)
	require.True(t, ok, "non-basic constants decode to Lifted")
	assert.JSONEq(t, `{"a":1,"b":"x"}`, string(lifted))
	assert.True(t, ExpressionEqual(c, out))
}

func TestDecodedBasicConstantsKeepGoTypes(t *testing.T) {
	out := roundTrip(t, NewConstant(int16(7), Int16)).(*Constant)
	assert.Equal(t, int16(7), out.Value)

	ptr := roundTrip(t, NewConstant(func() *int { v := 5; return &v }(), Nullable(Int))).(*Constant)
	require.IsType(t, (*int)(nil), ptr.Value)
	assert.Equal(t, 5, *ptr.Value.(*int))
}

func TestUnmarshalRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"not json", "{"},
		{"wrong version", `{"version":"slim/v0","types":[]}`},
		{"no expression", `{"version":"slim/v1","types":[]}`},
		{"bad type ref", `{"version":"slim/v1","types":[],"expr":{"n":"Default","t":3}}`},
		{"bad kind", `{"version":"slim/v1","types":[],"expr":{"n":"Frobnicate"}}`},
		{"bad param ref", `{"version":"slim/v1","types":[],"expr":{"n":"Parameter","p":0}}`},
		{"self-referential array", `{"version":"slim/v1","types":[{"k":"array","rank":0,"elem":0}],"expr":{"n":"Default","t":0}}`},
		{"self-referential generic", `{"version":"slim/v1","types":[{"k":"gdef","name":"*"},{"k":"generic","def":0,"args":[1]}],"expr":{"n":"Default","t":1}}`},
		{"array and generic cycle", `{"version":"slim/v1","types":[{"k":"gdef","name":"*"},{"k":"generic","def":0,"args":[2]},{"k":"array","elem":1}],"expr":{"n":"Default","t":2}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			require.Error(t, err)
			assert.True(t, IsArgumentError(err), "got %v", err)
		})
	}
}

func TestUnmarshalTypeRejectsNonStructuralCycles(t *testing.T) {
	_, err := UnmarshalType([]byte(`{"version":"slim/v1","types":[{"k":"array","rank":0,"elem":0}],"root":0}`))
	require.Error(t, err)
	assert.True(t, IsArgumentError(err), "got %v", err)

	// A cycle through a structural type is a legal recursive record.
	rec := nodeRecord(t)
	data, err := MarshalType(rec)
	require.NoError(t, err)
	back, err := UnmarshalType(data)
	require.NoError(t, err)
	assert.True(t, TypeEqual(rec, back))
}

func TestMarshalRejectsNil(t *testing.T) {
	_, err := Marshal(nil)
	assert.True(t, IsArgumentError(err))
}

func TestContentHashStability(t *testing.T) {
	h1, err := ContentHash(increment())
	require.NoError(t, err)
	h2 := MustContentHash(increment())

	assert.Equal(t, h1, h2, "independently built equal trees hash alike")
	assert.Len(t, h1, 64)

	h3 := MustContentHash(add(NewParameter("x", Int), intConst(2)))
	assert.NotEqual(t, h1, h3)

	th1, err := TypeContentHash(nodeRecord(t))
	require.NoError(t, err)
	th2, err := TypeContentHash(nodeRecord(t))
	require.NoError(t, err)
	assert.Equal(t, th1, th2)
}
