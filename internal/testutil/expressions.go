package testutil

import (
	"testing"

	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
)

// IntFunc is the type of a func(int) int.
var IntFunc = slim.Func([]slim.Type{slim.Int}, []slim.Type{slim.Int}, false)

// Affine builds (x int) => x*k + 1.
//
// Two calls with the same k yield distinct but structurally equal trees,
// which is what sharing and dedup tests need.
func Affine(k int) *slim.Lambda {
	x := slim.NewParameter("x", slim.Int)
	body := Add(Mul(x, slim.NewConstant(k, slim.Int)), slim.NewConstant(1, slim.Int))
	return &slim.Lambda{Parameters: []*slim.Parameter{x}, Body: body, Type: IntFunc}
}

// Add builds l + r typed as l.
func Add(l, r slim.Expression) *slim.Binary {
	return &slim.Binary{Op: op.Add, Left: l, Right: r, Type: slim.TypeOf(l)}
}

// Mul builds l * r typed as l.
func Mul(l, r slim.Expression) *slim.Binary {
	return &slim.Binary{Op: op.Multiply, Left: l, Right: r, Type: slim.TypeOf(l)}
}

// AssertExpressionEqual fails t when got is not structurally equal to want.
func AssertExpressionEqual(t testing.TB, want, got slim.Expression) {
	t.Helper()
	if !slim.ExpressionEqual(want, got) {
		t.Errorf("expressions differ\nwant: %s\n got: %s", slim.Format(want), slim.Format(got))
	}
}
