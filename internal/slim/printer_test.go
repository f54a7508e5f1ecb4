package slim

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/slim/internal/op"
)

func TestPrinterGolden(t *testing.T) {
	x := NewParameter("x", Int)
	s := NewParameter("s", String)
	y := NewParameter("y", Int)
	e := NewParameter("e", ErrorType)
	rec := pairRecord(t)
	list := &GenericType{
		Definition: &GenericDefinitionType{Assembly: "example.com/coll", Name: "List"},
		Arguments:  []Type{Int},
	}

	types := []Type{
		Int,
		Slice(String),
		MultiArray(Int, 2),
		Map(String, Pointer(Int)),
		Chan(RecvDir, Int),
		Func([]Type{Int, Slice(String)}, []Type{Bool}, true),
		Func(nil, nil, false),
		Func([]Type{Int}, []Type{Int, ErrorType}, false),
		FixedArray(3, Uint8),
		list,
		&SimpleType{Assembly: "example.com/shop", Name: "Order"},
		rec,
		nodeRecord(t),
	}

	exprs := []Expression{
		add(x, intConst(1)),
		&Binary{Op: op.AddChecked, Left: x, Right: intConst(1), Type: Int},
		increment(),
		&Conditional{
			Test:    &Binary{Op: op.GreaterThan, Left: x, Right: intConst(0), Type: Bool},
			IfTrue:  x,
			IfFalse: &Unary{Op: op.Negate, Operand: x, Type: Int},
			Type:    Int,
		},
		&Call{
			Method:    &SimpleMethod{Declaring: Package("strings"), Name: "ToUpper", ParameterTypes: []Type{String}, ReturnType: String},
			Arguments: []Expression{s},
			Type:      String,
		},
		&MemberInit{
			New: &New{Type: rec},
			Bindings: []MemberBinding{
				&Assignment{Member: &PropertyInfo{Declaring: rec, Name: "a", PropertyType: Int}, Expression: intConst(1)},
				&Assignment{Member: &PropertyInfo{Declaring: rec, Name: "b", PropertyType: String}, Expression: NewConstant("x", String)},
			},
			Type: rec,
		},
		&NewArray{Op: op.NewArrayInit, ElementType: Int, Expressions: []Expression{intConst(1), intConst(2)}, Type: Slice(Int)},
		&Unary{Op: op.Convert, Operand: x, Type: Int64},
		&Block{
			Variables:   []*Parameter{y},
			Expressions: []Expression{&Binary{Op: op.Assign, Left: y, Right: x, Type: Int}, y},
			Type:        Int,
		},
		&Try{
			Body:     &Unary{Op: op.Throw, Operand: NewConstant("boom", String), Type: Int},
			Handlers: []*CatchBlock{{Test: ErrorType, Variable: e, Body: intConst(0)}},
			Type:     Int,
		},
	}

	var lines []string
	for _, typ := range types {
		lines = append(lines, FormatType(typ))
	}
	for _, expr := range exprs {
		lines = append(lines, Format(expr))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "printer", []byte(strings.Join(lines, "\n")+"\n"))
}
