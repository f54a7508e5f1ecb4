package slim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/op"
)

func identity(e Expression) (Expression, error) {
	return e, nil
}

func TestRewriteIdentityReturnsSameTree(t *testing.T) {
	lambda := increment()
	out, err := Rewrite(lambda, identity)
	require.NoError(t, err)
	assert.Same(t, lambda, out)
}

func TestRewriteReplacesLeaves(t *testing.T) {
	lambda := increment()
	out, err := Rewrite(lambda, func(e Expression) (Expression, error) {
		if c, ok := e.(*Constant); ok && c.Value == 1 {
			return intConst(41), nil
		}
		return e, nil
	})
	require.NoError(t, err)
	require.NotSame(t, lambda, out)

	got := out.(*Lambda)
	assert.Same(t, lambda.Parameters[0], got.Parameters[0], "untouched parameters are kept")
	assert.Equal(t, 41, got.Body.(*Binary).Right.(*Constant).Value)
	assert.Equal(t, 1, lambda.Body.(*Binary).Right.(*Constant).Value, "input must not be mutated")
}

func TestRewriteRenamesParametersConsistently(t *testing.T) {
	lambda := increment()
	out, err := Rewrite(lambda, func(e Expression) (Expression, error) {
		if p, ok := e.(*Parameter); ok {
			return NewParameter(p.Name+"'", p.Type), nil
		}
		return e, nil
	})
	require.NoError(t, err)

	got := out.(*Lambda)
	assert.Equal(t, "x'", got.Parameters[0].Name)
	assert.Same(t, got.Parameters[0], got.Body.(*Binary).Left)
}

func TestRewriteRejectsParameterToNonParameter(t *testing.T) {
	_, err := Rewrite(increment(), func(e Expression) (Expression, error) {
		if _, ok := e.(*Parameter); ok {
			return intConst(0), nil
		}
		return e, nil
	})
	assert.True(t, IsArgumentError(err))
}

func TestRewriteKeepsSharedSubtrees(t *testing.T) {
	shared := add(intConst(1), intConst(2))
	block := &Block{Expressions: []Expression{shared, shared}, Type: Int}

	var visits int
	out, err := Rewrite(block, func(e Expression) (Expression, error) {
		if e == shared {
			visits++
		}
		return e, nil
	})
	require.NoError(t, err)
	assert.Same(t, block, out)
	assert.Equal(t, 2, visits, "shared nodes are independent occurrences")
}

func TestWalkSkipsChildren(t *testing.T) {
	lambda := increment()
	var kinds []op.Kind
	Walk(lambda, func(e Expression) bool {
		kinds = append(kinds, e.NodeType())
		return e.NodeType() != op.Add
	})
	assert.Equal(t, []op.Kind{op.Lambda, op.Parameter, op.Add}, kinds)
}

func TestGlobalParameters(t *testing.T) {
	source := NewParameter("source", Slice(Int))
	limit := NewParameter("limit", Int)
	x := NewParameter("x", Int)
	body := &Binary{Op: op.LessThan, Left: x, Right: limit, Type: Bool}
	lambda := &Lambda{Parameters: []*Parameter{x}, Body: body, Type: Func([]Type{Int}, []Type{Bool}, false)}
	call := &Invocation{Expression: lambda, Arguments: []Expression{&Index{Object: source, Arguments: []Expression{intConst(0)}, Type: Int}}, Type: Bool}

	globals := GlobalParameters(call)
	require.Len(t, globals, 2)
	assert.Same(t, limit, globals[0])
	assert.Same(t, source, globals[1])
}

func TestPrettyNames(t *testing.T) {
	synth := NewParameter("<>h__TransparentIdentifier0", Int)
	keep := NewParameter("p0", Int)
	empty := NewParameter("", Int)
	fnType := Func([]Type{Int, Int, Int}, []Type{Int}, false)
	lambda := &Lambda{
		Parameters: []*Parameter{synth, keep, empty},
		Body:       add(add(synth, keep), empty),
		Type:       fnType,
	}

	out, err := PrettyNames(lambda)
	require.NoError(t, err)
	got := out.(*Lambda)

	assert.Equal(t, "p1", got.Parameters[0].Name, "p0 is taken by a readable name")
	assert.Equal(t, "p0", got.Parameters[1].Name)
	assert.Same(t, keep, got.Parameters[1])
	assert.Equal(t, "p2", got.Parameters[2].Name)
	assert.True(t, ExpressionEqual(lambda, out), "renaming must not change semantics")

	_, err = PrettyNames(nil)
	assert.True(t, IsArgumentError(err))
}

func TestIsSynthesizedName(t *testing.T) {
	assert.True(t, IsSynthesizedName(""))
	assert.True(t, IsSynthesizedName("CS$<>8__locals1"))
	assert.True(t, IsSynthesizedName("1x"))
	assert.False(t, IsSynthesizedName("order"))
	assert.False(t, IsSynthesizedName("_tmp2"))
}
