package slim

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/slim/internal/op"
)

// FormatType renders a descriptor in Go-like syntax. Structural types print
// their kind keyword and properties in insertion order; a structural type
// met again while it is being printed prints as "record{...}".
func FormatType(t Type) string {
	p := &typePrinter{active: make(map[*StructuralType]bool)}
	p.typ(t)
	return p.sb.String()
}

type typePrinter struct {
	sb     strings.Builder
	active map[*StructuralType]bool
}

func (p *typePrinter) typ(t Type) {
	switch x := t.(type) {
	case nil:
		p.sb.WriteString("<nil>")
	case *SimpleType:
		p.sb.WriteString(x.QualifiedName())
	case *GenericDefinitionType:
		p.definition(x)
	case *GenericType:
		p.generic(x)
	case *ArrayType:
		if x.Rank == 0 {
			p.sb.WriteString("[]")
		} else {
			p.sb.WriteString("[*" + strings.Repeat(",*", x.Rank-1) + "]")
		}
		p.typ(x.Element)
	case *GenericParameterType:
		p.sb.WriteString(x.Name)
	case *StructuralType:
		p.sb.WriteString(x.kind.String())
		if p.active[x] {
			p.sb.WriteString("{...}")
			return
		}
		p.active[x] = true
		p.sb.WriteByte('{')
		for i, prop := range x.props {
			if i > 0 {
				p.sb.WriteString("; ")
			}
			p.sb.WriteString(prop.Name)
			p.sb.WriteByte(' ')
			p.typ(prop.Type)
		}
		p.sb.WriteByte('}')
		delete(p.active, x)
	}
}

func (p *typePrinter) definition(d *GenericDefinitionType) {
	if d.Assembly == "" {
		p.sb.WriteString(d.Name)
		return
	}
	p.sb.WriteString(d.Assembly + "." + d.Name)
}

func (p *typePrinter) list(ts []Type) {
	for i, t := range ts {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		p.typ(t)
	}
}

func (p *typePrinter) generic(g *GenericType) {
	if g.Definition == nil {
		p.sb.WriteString("<nil>")
		return
	}
	if g.Definition.Assembly == "" {
		if sig, ok := AsFunc(g); ok {
			p.function(sig)
			return
		}
		if n, elem, ok := AsFixedArray(g); ok {
			p.sb.WriteString("[" + strconv.Itoa(n) + "]")
			p.typ(elem)
			return
		}
		if k, v, ok := AsMap(g); ok {
			p.sb.WriteString("map[")
			p.typ(k)
			p.sb.WriteByte(']')
			p.typ(v)
			return
		}
		if len(g.Arguments) == 1 {
			switch g.Definition.Name {
			case "*":
				p.sb.WriteByte('*')
				p.typ(g.Arguments[0])
				return
			case "chan", "<-chan", "chan<-":
				p.sb.WriteString(g.Definition.Name + " ")
				p.typ(g.Arguments[0])
				return
			}
		}
	}
	p.definition(g.Definition)
	p.sb.WriteByte('[')
	p.list(g.Arguments)
	p.sb.WriteByte(']')
}

func (p *typePrinter) function(sig FuncSignature) {
	p.sb.WriteString("func(")
	for i, t := range sig.Params {
		if i > 0 {
			p.sb.WriteString(", ")
		}
		if sig.Variadic && i == len(sig.Params)-1 {
			if a, ok := t.(*ArrayType); ok && a.Rank == 0 {
				p.sb.WriteString("...")
				p.typ(a.Element)
				continue
			}
		}
		p.typ(t)
	}
	p.sb.WriteByte(')')
	switch len(sig.Results) {
	case 0:
	case 1:
		p.sb.WriteByte(' ')
		p.typ(sig.Results[0])
	default:
		p.sb.WriteString(" (")
		p.list(sig.Results)
		p.sb.WriteByte(')')
	}
}

// Format renders an expression in Go-like syntax for diagnostics and trace
// output. The output is not parseable and not stable across versions.
func Format(e Expression) string {
	p := &exprPrinter{}
	p.expr(e)
	return p.sb.String()
}

type exprPrinter struct {
	sb strings.Builder
}

func (p *exprPrinter) w(s string) {
	p.sb.WriteString(s)
}

func (p *exprPrinter) list(es []Expression) {
	for i, e := range es {
		if i > 0 {
			p.w(", ")
		}
		p.expr(e)
	}
}

func (p *exprPrinter) params(ps []*Parameter) {
	for i, x := range ps {
		if i > 0 {
			p.w(", ")
		}
		p.w(paramName(x) + " " + FormatType(x.Type))
	}
}

func paramName(x *Parameter) string {
	if x.Name == "" {
		return "_"
	}
	return x.Name
}

func labelName(l *LabelTarget) string {
	if l == nil || l.Name == "" {
		return "_"
	}
	return l.Name
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return strconv.Quote(x)
	case Lifted:
		if b, err := valueJSON(x, x, true); err == nil {
			return string(b)
		}
		return string(x)
	}
	return fmt.Sprint(v)
}

func (p *exprPrinter) expr(e Expression) {
	switch x := e.(type) {
	case nil:
		p.w("<nil>")
	case *Constant:
		p.w(formatValue(x.Value))
	case *Default:
		p.w("default(" + FormatType(x.Type) + ")")
	case *Parameter:
		p.w(paramName(x))
	case *Unary:
		p.unary(x)
	case *Binary:
		p.binary(x)
	case *Conditional:
		p.w("(")
		p.expr(x.Test)
		p.w(" ? ")
		p.expr(x.IfTrue)
		p.w(" : ")
		p.expr(x.IfFalse)
		p.w(")")
	case *Lambda:
		p.w("(")
		p.params(x.Parameters)
		p.w(") => ")
		p.expr(x.Body)
	case *Invocation:
		p.expr(x.Expression)
		p.w("(")
		p.list(x.Arguments)
		p.w(")")
	case *Call:
		if x.Object != nil {
			p.expr(x.Object)
		} else {
			p.w(FormatType(x.Method.DeclaringType()))
		}
		p.w("." + x.Method.MemberName())
		if g, ok := x.Method.(*GenericMethod); ok {
			p.w("[" + formatTypes(g.Arguments) + "]")
		}
		p.w("(")
		p.list(x.Arguments)
		p.w(")")
	case *Member:
		if x.Expression != nil {
			p.expr(x.Expression)
		} else {
			p.w(FormatType(x.Member.DeclaringType()))
		}
		p.w("." + x.Member.MemberName())
	case *Index:
		p.expr(x.Object)
		p.w("[")
		p.list(x.Arguments)
		p.w("]")
	case *New:
		p.newNode(x)
	case *NewArray:
		if x.Op == op.NewArrayBounds {
			p.w("make([]" + FormatType(x.ElementType) + ", ")
			p.list(x.Expressions)
			p.w(")")
			return
		}
		p.w("[]" + FormatType(x.ElementType) + "{")
		p.list(x.Expressions)
		p.w("}")
	case *ListInit:
		p.newNode(x.New)
		p.w(" {")
		p.inits(x.Initializers)
		p.w("}")
	case *MemberInit:
		p.w(FormatType(x.Type) + "{")
		if x.New != nil && x.New.Constructor != nil {
			p.w("new(")
			p.list(x.New.Arguments)
			p.w("); ")
		}
		p.bindings(x.Bindings)
		p.w("}")
	case *TypeBinary:
		p.w("(")
		p.expr(x.Expression)
		if x.Op == op.TypeEqual {
			p.w(" is exactly ")
		} else {
			p.w(" is ")
		}
		p.w(FormatType(x.TypeOperand) + ")")
	case *Block:
		p.w("{ ")
		for _, v := range x.Variables {
			p.w("var " + paramName(v) + " " + FormatType(v.Type) + "; ")
		}
		for i, s := range x.Expressions {
			if i > 0 {
				p.w("; ")
			}
			p.expr(s)
		}
		p.w(" }")
	case *Loop:
		p.w("for { ")
		p.expr(x.Body)
		p.w(" }")
		if x.BreakLabel != nil {
			p.w(" " + labelName(x.BreakLabel) + ":")
		}
	case *Goto:
		p.w(x.Kind.String() + " " + labelName(x.Target))
		if x.Value != nil {
			p.w(" ")
			p.expr(x.Value)
		}
	case *Label:
		p.w(labelName(x.Target) + ":")
		if x.DefaultValue != nil {
			p.w(" ")
			p.expr(x.DefaultValue)
		}
	case *Try:
		p.w("try { ")
		p.expr(x.Body)
		p.w(" }")
		for _, c := range x.Handlers {
			p.w(" catch(")
			if c.Variable != nil {
				p.w(paramName(c.Variable) + " ")
			}
			p.w(FormatType(c.Test) + ")")
			if c.Filter != nil {
				p.w(" if ")
				p.expr(c.Filter)
			}
			p.w(" { ")
			p.expr(c.Body)
			p.w(" }")
		}
		if x.Finally != nil {
			p.w(" finally { ")
			p.expr(x.Finally)
			p.w(" }")
		}
		if x.Fault != nil {
			p.w(" fault { ")
			p.expr(x.Fault)
			p.w(" }")
		}
	case *Switch:
		p.w("switch ")
		p.expr(x.SwitchValue)
		p.w(" {")
		for _, c := range x.Cases {
			p.w(" case ")
			p.list(c.TestValues)
			p.w(": ")
			p.expr(c.Body)
			p.w(";")
		}
		if x.DefaultBody != nil {
			p.w(" default: ")
			p.expr(x.DefaultBody)
			p.w(";")
		}
		p.w(" }")
	}
}

func formatTypes(ts []Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = FormatType(t)
	}
	return strings.Join(parts, ", ")
}

func (p *exprPrinter) unary(x *Unary) {
	switch x.Op {
	case op.Negate, op.UnaryPlus, op.Not, op.OnesComplement:
		p.w(x.Op.Symbol())
		p.expr(x.Operand)
	case op.NegateChecked:
		p.w("checked(-")
		p.expr(x.Operand)
		p.w(")")
	case op.Convert:
		p.w(FormatType(x.Type) + "(")
		p.expr(x.Operand)
		p.w(")")
	case op.ConvertChecked:
		p.w("checked(" + FormatType(x.Type) + "(")
		p.expr(x.Operand)
		p.w("))")
	case op.TypeAs:
		p.expr(x.Operand)
		p.w(".(" + FormatType(x.Type) + ")")
	case op.ArrayLength:
		p.w("len(")
		p.expr(x.Operand)
		p.w(")")
	case op.Throw:
		p.w("panic(")
		p.expr(x.Operand)
		p.w(")")
	case op.Increment:
		p.w("(")
		p.expr(x.Operand)
		p.w(" + 1)")
	case op.Decrement:
		p.w("(")
		p.expr(x.Operand)
		p.w(" - 1)")
	default:
		p.w(x.Op.String() + "(")
		p.expr(x.Operand)
		p.w(")")
	}
}

func (p *exprPrinter) binary(x *Binary) {
	if x.Op == op.ArrayIndex {
		p.expr(x.Left)
		p.w("[")
		p.expr(x.Right)
		p.w("]")
		return
	}
	if x.Op.IsChecked() {
		p.w("checked")
	}
	p.w("(")
	p.expr(x.Left)
	p.w(" " + x.Op.Symbol() + " ")
	p.expr(x.Right)
	p.w(")")
}

func (p *exprPrinter) newNode(n *New) {
	if n == nil {
		p.w("<nil>")
		return
	}
	if n.Constructor == nil {
		p.w(FormatType(n.Type) + "{}")
		return
	}
	p.w("new " + FormatType(n.Type) + "(")
	p.list(n.Arguments)
	p.w(")")
}

func (p *exprPrinter) inits(is []*ElementInit) {
	for i, in := range is {
		if i > 0 {
			p.w(", ")
		}
		if len(in.Arguments) == 1 {
			p.expr(in.Arguments[0])
			continue
		}
		p.w("{")
		p.list(in.Arguments)
		p.w("}")
	}
}

func (p *exprPrinter) bindings(bs []MemberBinding) {
	for i, b := range bs {
		if i > 0 {
			p.w(", ")
		}
		p.w(b.BoundMember().MemberName() + ": ")
		switch x := b.(type) {
		case *Assignment:
			p.expr(x.Expression)
		case *MemberMemberBinding:
			p.w("{")
			p.bindings(x.Bindings)
			p.w("}")
		case *MemberListBinding:
			p.w("{")
			p.inits(x.Initializers)
			p.w("}")
		}
	}
}
