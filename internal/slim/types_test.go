package slim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuralBuilderLifecycle(t *testing.T) {
	rec := NewStructuralType(StructuralRecord, true)
	assert.False(t, rec.Frozen())

	_, err := rec.AddProperty("a", Int, true)
	require.NoError(t, err)

	_, err = rec.AddProperty("a", String, false)
	assert.True(t, IsArgumentError(err), "duplicate name must be rejected")

	_, err = rec.AddProperty("", String, false)
	assert.True(t, IsArgumentError(err), "empty name must be rejected")

	_, err = rec.AddProperty("b", nil, false)
	assert.True(t, IsArgumentError(err), "nil type must be rejected")

	rec.Freeze()
	assert.True(t, rec.Frozen())

	_, err = rec.AddProperty("c", Bool, false)
	assert.True(t, IsArgumentError(err), "frozen type must reject mutation")

	p, ok := rec.Property("a")
	require.True(t, ok)
	assert.Equal(t, Int, p.Type)
	assert.True(t, p.CanWrite)
	assert.Equal(t, 1, rec.Len())
}

func TestStructuralPropertiesAreCopied(t *testing.T) {
	rec := pairRecord(t)
	props := rec.Properties()
	props[0] = nil
	assert.NotNil(t, rec.Properties()[0])
	assert.Equal(t, []string{"a", "b"}, rec.SortedPropertyNames())
}

func TestSelfReferentialRecord(t *testing.T) {
	rec := nodeRecord(t)
	next, ok := rec.Property("next")
	require.True(t, ok)
	assert.Same(t, rec, next.Type)
}

func TestIsTuple(t *testing.T) {
	tuple, err := BuildStructural(StructuralTuple, true, StructuralProperty{Name: "x", Type: Int})
	require.NoError(t, err)
	items, err := BuildStructural(StructuralAnonymous, false,
		StructuralProperty{Name: "Item1", Type: Int},
		StructuralProperty{Name: "Item2", Type: String},
	)
	require.NoError(t, err)

	assert.True(t, IsTuple(tuple))
	assert.True(t, IsTuple(items))
	assert.False(t, IsTuple(pairRecord(t)))
	assert.False(t, IsTuple(Int))
}

func TestFuncHelpers(t *testing.T) {
	fn := Func([]Type{Int, Slice(String)}, []Type{Bool}, true)

	sig, ok := AsFunc(fn)
	require.True(t, ok)
	assert.Len(t, sig.Params, 2)
	assert.True(t, sig.Variadic)
	res, ok := sig.Result()
	require.True(t, ok)
	assert.Equal(t, Bool, res)

	p, r, variadic, ok := ParseFuncDefinition(fn.Definition)
	require.True(t, ok)
	assert.Equal(t, 2, p)
	assert.Equal(t, 1, r)
	assert.True(t, variadic)

	void, ok := AsFunc(Func(nil, nil, false))
	require.True(t, ok)
	res, ok = void.Result()
	require.True(t, ok)
	assert.True(t, IsVoid(res))

	_, ok = AsFunc(Map(String, Int))
	assert.False(t, ok)
}

func TestBuiltinHelpers(t *testing.T) {
	n, elem, ok := AsFixedArray(FixedArray(4, Uint8))
	require.True(t, ok)
	assert.Equal(t, 4, n)
	assert.Equal(t, Uint8, elem)

	under, ok := NullableUnderlying(Nullable(Int))
	require.True(t, ok)
	assert.Equal(t, Int, under)

	_, ok = NullableUnderlying(Pointer(&SimpleType{Assembly: "example.com/shop", Name: "Order"}))
	assert.False(t, ok, "pointer to a named type is a reference, not a nullable")

	dir, e, ok := AsChan(Chan(SendDir, String))
	require.True(t, ok)
	assert.Equal(t, SendDir, dir)
	assert.Equal(t, String, e)

	tests := []struct {
		name string
		typ  Type
		want Type
	}{
		{"slice", Slice(Int), Int},
		{"map", Map(String, Bool), Bool},
		{"fixed array", FixedArray(2, Float64), Float64},
		{"pointer to array", Pointer(FixedArray(2, Float64)), Float64},
		{"string", String, Uint8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ElementType(tt.typ)
			require.True(t, ok)
			assert.True(t, TypeEqual(tt.want, got))
		})
	}

	assert.True(t, IsBuiltinDefinition(MapDefinition))
	assert.True(t, IsBuiltinDefinition(FuncDefinition(1, 1, false)))
	assert.False(t, IsBuiltinDefinition(&GenericDefinitionType{Assembly: "example.com/coll", Name: "List"}))
	assert.True(t, IsPackage(Package("strings")))
	assert.False(t, IsPackage(String))
}

func TestInstantiate(t *testing.T) {
	tp := &GenericParameterType{Name: "T", Position: 0}
	def := &GenericDefinitionMethod{
		Declaring:         Package("slices"),
		Name:              "Index",
		GenericParameters: []*GenericParameterType{tp},
		ParameterTypes:    []Type{Slice(tp), tp},
		ReturnType:        Int,
	}
	m := &GenericMethod{Definition: def, Arguments: []Type{String}}

	params := m.Parameters()
	require.Len(t, params, 2)
	assert.True(t, TypeEqual(Slice(String), params[0]))
	assert.True(t, TypeEqual(String, params[1]))
	assert.Equal(t, Int, m.Result())
	assert.Equal(t, "Index", m.MemberName())
}

func TestErrorFormatting(t *testing.T) {
	err := NewResolutionError("example.com/shop.Order.Total", "no matching method").WithCause(assert.AnError)
	assert.Contains(t, err.Error(), "RESOLUTION: no matching method (example.com/shop.Order.Total)")
	assert.ErrorIs(t, err, assert.AnError)
	assert.True(t, IsResolutionError(err))
	assert.False(t, IsMappingError(err))
	assert.Equal(t, CodeResolution, CodeOf(err))
}
