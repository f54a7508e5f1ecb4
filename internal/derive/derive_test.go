package derive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
)

func konst(v any, t slim.Type) *slim.Constant { return slim.NewConstant(v, t) }

func bin(kind op.Kind, l, r slim.Expression) *slim.Binary {
	return &slim.Binary{Op: kind, Left: l, Right: r}
}

var (
	one      = konst(1, slim.Int)
	wide     = konst(int64(1), slim.Int64)
	word     = konst("w", slim.String)
	yes      = konst(true, slim.Bool)
	nullInt  = slim.NewParameter("n", slim.Nullable(slim.Int))
	words    = slim.NewParameter("xs", slim.Slice(slim.String))
	anything = slim.NewParameter("a", slim.Any)
)

func TestBinary(t *testing.T) {
	add := &slim.SimpleMethod{
		Declaring:      slim.Package("example.com/money"),
		Name:           "Add",
		ParameterTypes: []slim.Type{slim.Int, slim.Int64},
		ReturnType:     slim.Float64,
	}
	tests := []struct {
		name string
		e    *slim.Binary
		want slim.Type
	}{
		{"add int", bin(op.Add, one, one), slim.Int},
		{"checked add", bin(op.AddChecked, wide, wide), slim.Int64},
		{"concat", bin(op.Add, word, word), slim.String},
		{"lifted add", bin(op.Add, nullInt, nullInt), slim.Nullable(slim.Int)},
		{"shift by other width", bin(op.LeftShift, one, konst(uint8(2), slim.Uint8)), slim.Int},
		{"bool and", bin(op.And, yes, yes), slim.Bool},
		{"compare", bin(op.LessThan, one, one), slim.Bool},
		{"compare with any", bin(op.Equal, anything, one), slim.Bool},
		{"lifted compare", bin(op.LessThan, nullInt, nullInt), slim.Bool},
		{"lift to null", &slim.Binary{Op: op.LessThan, Left: nullInt, Right: nullInt, LiftToNull: true}, slim.Nullable(slim.Bool)},
		{"coalesce nullable", bin(op.Coalesce, nullInt, one), slim.Int},
		{"index slice", bin(op.ArrayIndex, words, one), slim.String},
		{"index string", bin(op.ArrayIndex, word, one), slim.Uint8},
		{"logical", bin(op.AndAlso, yes, yes), slim.Bool},
		{"method wins", &slim.Binary{Op: op.Add, Left: one, Right: wide, Method: add}, slim.Float64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Type(tt.e)
			require.NoError(t, err)
			assert.True(t, slim.TypeEqual(tt.want, got), "got %s", slim.FormatType(got))
		})
	}
}

func TestBinaryFailures(t *testing.T) {
	tests := []struct {
		name string
		e    *slim.Binary
	}{
		{"no promotion", bin(op.Add, one, wide)},
		{"float modulo", bin(op.Modulo, konst(1.5, slim.Float64), konst(1.5, slim.Float64))},
		{"and not on bool", bin(op.AndNot, yes, yes)},
		{"order bool", bin(op.LessThan, yes, yes)},
		{"logical on int", bin(op.OrElse, one, one)},
		{"coalesce non-nilable", bin(op.Coalesce, one, one)},
		{"index map as array", bin(op.ArrayIndex, slim.NewParameter("m", slim.Map(slim.Int, slim.Int)), one)},
		{"assign mismatch", bin(op.Assign, slim.NewParameter("x", slim.Int), word)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Type(tt.e)
			assert.True(t, slim.IsDerivationError(err), "got %v", err)
		})
	}
}

func TestUnary(t *testing.T) {
	tests := []struct {
		name    string
		e       *slim.Unary
		want    slim.Type
		wantErr bool
	}{
		{"negate", &slim.Unary{Op: op.Negate, Operand: one}, slim.Int, false},
		{"negate nullable", &slim.Unary{Op: op.Negate, Operand: nullInt}, slim.Nullable(slim.Int), false},
		{"not", &slim.Unary{Op: op.Not, Operand: yes}, slim.Bool, false},
		{"is true", &slim.Unary{Op: op.IsTrue, Operand: yes}, slim.Bool, false},
		{"length", &slim.Unary{Op: op.ArrayLength, Operand: words}, slim.Int, false},
		{"convert", &slim.Unary{Op: op.Convert, Operand: one, Type: slim.Float64}, slim.Float64, false},
		{"throw", &slim.Unary{Op: op.Throw, Operand: konst("boom", slim.String)}, slim.Void, false},
		{"negate string", &slim.Unary{Op: op.Negate, Operand: word}, nil, true},
		{"complement float", &slim.Unary{Op: op.OnesComplement, Operand: konst(1.0, slim.Float64)}, nil, true},
		{"length of int", &slim.Unary{Op: op.ArrayLength, Operand: one}, nil, true},
		{"convert without target", &slim.Unary{Op: op.Convert, Operand: one}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Type(tt.e)
			if tt.wantErr {
				assert.True(t, slim.IsDerivationError(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.True(t, slim.TypeEqual(tt.want, got), "got %s", slim.FormatType(got))
		})
	}
}

func TestStructuralNodes(t *testing.T) {
	x := slim.NewParameter("x", slim.Int)
	done := &slim.LabelTarget{Name: "done", Type: slim.String}
	fn := slim.NewParameter("f", slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.String}, false))
	box := &slim.SimpleType{Assembly: "example.com/box", Name: "Box"}
	ctor := &slim.ConstructorInfo{Declaring: box, ParameterTypes: []slim.Type{slim.Int}}
	at := &slim.PropertyInfo{Declaring: box, Name: "At", PropertyType: slim.String, IndexParameterTypes: []slim.Type{slim.Int}}

	tests := []struct {
		name string
		e    slim.Expression
		want slim.Type
	}{
		{"conditional common", &slim.Conditional{Test: yes, IfTrue: one, IfFalse: x}, slim.Int},
		{"conditional widens to any", &slim.Conditional{Test: yes, IfTrue: anything, IfFalse: one}, slim.Any},
		{"conditional declared", &slim.Conditional{Test: yes, IfTrue: one, IfFalse: word, Type: slim.Void}, slim.Void},
		{"block last", &slim.Block{Expressions: []slim.Expression{one, word}}, slim.String},
		{"empty block", &slim.Block{}, slim.Void},
		{"loop break label", &slim.Loop{Body: one, BreakLabel: done}, slim.String},
		{"loop without break", &slim.Loop{Body: one}, slim.Void},
		{"label", &slim.Label{Target: done, DefaultValue: word}, slim.String},
		{"lambda", &slim.Lambda{Parameters: []*slim.Parameter{x}, Body: word},
			slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.String}, false)},
		{"void lambda", &slim.Lambda{Body: &slim.Block{}}, slim.Func(nil, nil, false)},
		{"invoke", &slim.Invocation{Expression: fn, Arguments: []slim.Expression{one}}, slim.String},
		{"constructor", &slim.New{Constructor: ctor, Arguments: []slim.Expression{one}}, box},
		{"indexer", &slim.Index{Object: slim.NewParameter("b", box), Indexer: at, Arguments: []slim.Expression{one}}, slim.String},
		{"index slice", &slim.Index{Object: words, Arguments: []slim.Expression{one}}, slim.String},
		{"array bounds", &slim.NewArray{Op: op.NewArrayBounds, ElementType: slim.Int, Expressions: []slim.Expression{one, one}}, slim.MultiArray(slim.Int, 2)},
		{"array init", &slim.NewArray{Op: op.NewArrayInit, ElementType: slim.Int, Expressions: []slim.Expression{one, one}}, slim.Slice(slim.Int)},
		{"member init", &slim.MemberInit{New: &slim.New{Constructor: ctor, Arguments: []slim.Expression{one}}}, box},
		{"type test", &slim.TypeBinary{Op: op.TypeIs, Expression: anything, TypeOperand: slim.Int}, slim.Bool},
		{"try body", &slim.Try{Body: one, Finally: word}, slim.Int},
		{"switch first case", &slim.Switch{SwitchValue: one, Cases: []*slim.SwitchCase{{TestValues: []slim.Expression{one}, Body: word}}}, slim.String},
		{"nested undeclared", &slim.Block{Expressions: []slim.Expression{&slim.Conditional{Test: yes, IfTrue: one, IfFalse: one}}}, slim.Int},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Type(tt.e)
			require.NoError(t, err)
			assert.True(t, slim.TypeEqual(tt.want, got), "got %s", slim.FormatType(got))
		})
	}
}

func TestNoCommonType(t *testing.T) {
	_, err := Type(&slim.Conditional{Test: yes, IfTrue: one, IfFalse: word})
	assert.True(t, slim.IsDerivationError(err))

	_, err = Type(&slim.Conditional{Test: one, IfTrue: one, IfFalse: one})
	assert.True(t, slim.IsDerivationError(err), "test must be bool")

	_, err = Type(nil)
	assert.True(t, slim.IsArgumentError(err))
}

func TestVerify(t *testing.T) {
	x := slim.NewParameter("x", slim.Int)
	body := &slim.Binary{Op: op.Add, Left: x, Right: one, Type: slim.Int}
	l := &slim.Lambda{Parameters: []*slim.Parameter{x}, Body: body, Type: slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.Int}, false)}
	require.NoError(t, Verify(l))

	stale := &slim.Binary{Op: op.Add, Left: x, Right: one, Type: slim.Int64}
	err := Verify(&slim.Lambda{Parameters: []*slim.Parameter{x}, Body: stale, Type: l.Type})
	assert.True(t, slim.IsDerivationError(err))
	assert.ErrorContains(t, err, "int64")
}
