package catalog

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/convert"
	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/recordize"
	"github.com/roach88/slim/internal/slim"
	"github.com/roach88/slim/internal/typesys"
)

func load(t *testing.T, name string) *Catalog {
	t.Helper()
	c, err := LoadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return c
}

func TestFormatsAgree(t *testing.T) {
	order := &slim.SimpleType{Assembly: "example.com/shop", Name: "Order"}
	want := map[string]slim.Type{
		"orders":    slim.Slice(order),
		"rates":     slim.Map(slim.String, slim.Float64),
		"threshold": slim.Int,
	}

	for _, name := range []string{"shop.cue", "shop.yaml"} {
		t.Run(name, func(t *testing.T) {
			c := load(t, name)
			assert.Equal(t, []string{"example.com/shop.Currency", "example.com/shop.Money"}, c.Known())
			assert.True(t, c.IsKnown("example.com/shop.Money"))
			assert.False(t, c.IsKnown("example.com/shop.Order"))

			rs := c.Resources()
			require.Len(t, rs, len(want))
			for _, r := range rs {
				assert.True(t, slim.TypeEqual(want[r.Name], r.Type), "%s: %s", r.Name, slim.FormatType(r.Type))
			}
			orders, ok := c.Resource("orders")
			require.True(t, ok)
			assert.Equal(t, "order stream", orders.Description)
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want slim.Type
	}{
		{"int", slim.Int},
		{"byte", slim.Uint8},
		{"any", slim.Any},
		{"*string", slim.Pointer(slim.String)},
		{"[]example.com/shop.Order", slim.Slice(&slim.SimpleType{Assembly: "example.com/shop", Name: "Order"})},
		{"[4]int", slim.FixedArray(4, slim.Int)},
		{"map[string][]int", slim.Map(slim.String, slim.Slice(slim.Int))},
		{"map[int]map[string]bool", slim.Map(slim.Int, slim.Map(slim.String, slim.Bool))},
		{"time.Duration", &slim.SimpleType{Assembly: "time", Name: "Duration"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			require.NoError(t, err)
			assert.True(t, slim.TypeEqual(tt.want, got), "got %s", slim.FormatType(got))
		})
	}

	for _, bad := range []string{"", "[]", "map[int", "Order", "[x]int", "int]", "example.com/shop."} {
		_, err := ParseType(bad)
		assert.True(t, slim.IsArgumentError(err), "%q: %v", bad, err)
	}
}

func TestInvalidCUE(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `extra: 1`},
		{"missing type", `resources: orders: description: "x"`},
		{"bad resource name", `resources: "1st": type: "int"`},
		{"bad type", `resources: orders: type: "[]"`},
		{"syntax", `resources: {`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCUE("bad.cue", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, slim.IsArgumentError(err), "got %v", err)
		})
	}

	_, err := LoadCUE("bad.cue", []byte("resources: orders: type: \"[]\"\n"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "orders.type", le.Field)
	assert.True(t, le.Pos.IsValid())
}

func TestInvalidYAML(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", "extra: 1\n"},
		{"missing type", "resources:\n  orders:\n    description: x\n"},
		{"bad resource name", "resources:\n  1st:\n    type: int\n"},
		{"bad type", "resources:\n  orders:\n    type: \"map[int\"\n"},
		{"empty known", "known:\n  - \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML("bad.yaml", strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, slim.IsArgumentError(err), "got %v", err)
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "missing.json"))
	require.Error(t, err)
}

func TestParametersAreStable(t *testing.T) {
	c := load(t, "shop.cue")
	orders, ok := c.Resource("orders")
	require.True(t, ok)
	assert.Same(t, orders.Parameter(), orders.Parameter())

	params := c.Parameters()
	require.Len(t, params, 3)
	assert.Equal(t, "orders", params[0].Name)
	assert.Same(t, orders.Parameter(), params[0])

	r, ok := c.Resolve(slim.NewParameter("threshold", slim.Int))
	require.True(t, ok)
	assert.Equal(t, "threshold", r.Name)
	_, ok = c.Resolve(slim.NewParameter("threshold", slim.String))
	assert.False(t, ok)
}

func TestBindingSuppliesResources(t *testing.T) {
	c := load(t, "shop.yaml")
	threshold, _ := c.Resource("threshold")
	e := &slim.Binary{Op: op.Add, Left: threshold.Parameter(), Right: slim.NewConstant(1, slim.Int), Type: slim.Int}

	native, err := convert.New(typesys.NewRegistry()).ToExpression(e, c.Binding(map[string]expr.Expression{
		"threshold": expr.Const(41),
	}))
	require.NoError(t, err)
	v, err := expr.Evaluate(native, nil)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

type money struct {
	Units int `mapping:"units"`
}

func TestKnownTypesReachRecordization(t *testing.T) {
	moneyType := reflect.TypeFor[money]()
	reg := typesys.NewRegistry()
	require.NoError(t, reg.RegisterType(moneyType))

	src := fmt.Sprintf("known: [%q]\n", moneyType.PkgPath()+".money")
	c, err := LoadCUE("known.cue", []byte(src))
	require.NoError(t, err)

	erased, err := recordize.New(reg).Type(moneyType)
	require.NoError(t, err)
	assert.Equal(t, slim.KindStructural, erased.Kind())

	kept, err := recordize.New(reg, c.KnownTypes()).Type(moneyType)
	require.NoError(t, err)
	assert.Equal(t, slim.KindSimple, kept.Kind())
}
