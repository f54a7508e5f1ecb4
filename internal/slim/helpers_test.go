package slim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/op"
)

// pairRecord builds record{a int; b string}.
func pairRecord(t *testing.T) *StructuralType {
	t.Helper()
	rec, err := BuildStructural(StructuralRecord, true,
		StructuralProperty{Name: "a", Type: Int},
		StructuralProperty{Name: "b", Type: String},
	)
	require.NoError(t, err)
	return rec
}

// nodeRecord builds the self-referential record{value int; next <self>}.
func nodeRecord(t *testing.T) *StructuralType {
	t.Helper()
	rec := NewStructuralType(StructuralRecord, true)
	_, err := rec.AddProperty("value", Int, false)
	require.NoError(t, err)
	_, err = rec.AddProperty("next", rec, false)
	require.NoError(t, err)
	return rec.Freeze()
}

func intConst(v int) *Constant {
	return NewConstant(v, Int)
}

func add(l, r Expression) *Binary {
	return &Binary{Op: op.Add, Left: l, Right: r, Type: TypeOf(l)}
}

// increment builds (x int) => (x + 1).
func increment() *Lambda {
	x := NewParameter("x", Int)
	return &Lambda{
		Parameters: []*Parameter{x},
		Body:       add(x, intConst(1)),
		Type:       Func([]Type{Int}, []Type{Int}, false),
	}
}
