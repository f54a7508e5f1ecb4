package convert

import (
	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
)

type toSlim struct {
	types  TypeSystem
	params map[*expr.Parameter]*slim.Parameter
	labels map[*expr.LabelTarget]*slim.LabelTarget
	memo   map[expr.Expression]slim.Expression
}

func (w *toSlim) param(p *expr.Parameter) *slim.Parameter {
	if sp, ok := w.params[p]; ok {
		return sp
	}
	sp := slim.NewParameter(p.Name, w.types.ToSlim(p.Type()))
	w.params[p] = sp
	return sp
}

func (w *toSlim) paramList(ps []*expr.Parameter) []*slim.Parameter {
	if ps == nil {
		return nil
	}
	out := make([]*slim.Parameter, len(ps))
	for i, p := range ps {
		out[i] = w.param(p)
	}
	return out
}

func (w *toSlim) label(l *expr.LabelTarget) *slim.LabelTarget {
	if l == nil {
		return nil
	}
	if sl, ok := w.labels[l]; ok {
		return sl
	}
	sl := &slim.LabelTarget{Name: l.Name, Type: w.types.ToSlim(l.Type)}
	w.labels[l] = sl
	return sl
}

func (w *toSlim) method(m *expr.Method) (slim.MethodInfo, error) {
	if m == nil {
		return nil, nil
	}
	mi, err := w.types.MemberToSlim(m)
	if err != nil {
		return nil, err
	}
	return mi.(slim.MethodInfo), nil
}

func (w *toSlim) list(es []expr.Expression) ([]slim.Expression, error) {
	if es == nil {
		return nil, nil
	}
	out := make([]slim.Expression, len(es))
	for i, e := range es {
		se, err := w.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = se
	}
	return out, nil
}

func (w *toSlim) opt(e expr.Expression) (slim.Expression, error) {
	if e == nil {
		return nil, nil
	}
	return w.expr(e)
}

func (w *toSlim) inits(is []*expr.ElementInit) ([]*slim.ElementInit, error) {
	out := make([]*slim.ElementInit, len(is))
	for i, init := range is {
		add, err := w.method(init.AddMethod)
		if err != nil {
			return nil, err
		}
		args, err := w.list(init.Arguments)
		if err != nil {
			return nil, err
		}
		out[i] = &slim.ElementInit{AddMethod: add, Arguments: args}
	}
	return out, nil
}

func (w *toSlim) bindings(bs []expr.MemberBinding) ([]slim.MemberBinding, error) {
	out := make([]slim.MemberBinding, len(bs))
	for i, b := range bs {
		m, err := w.types.MemberToSlim(b.BoundMember())
		if err != nil {
			return nil, err
		}
		switch x := b.(type) {
		case *expr.Assignment:
			e, err := w.expr(x.Expression)
			if err != nil {
				return nil, err
			}
			out[i] = &slim.Assignment{Member: m, Expression: e}
		case *expr.MemberMemberBinding:
			inner, err := w.bindings(x.Bindings)
			if err != nil {
				return nil, err
			}
			out[i] = &slim.MemberMemberBinding{Member: m, Bindings: inner}
		case *expr.MemberListBinding:
			inits, err := w.inits(x.Initializers)
			if err != nil {
				return nil, err
			}
			out[i] = &slim.MemberListBinding{Member: m, Initializers: inits}
		default:
			return nil, slim.NewArgumentError("", "unknown binding %T", b)
		}
	}
	return out, nil
}

func (w *toSlim) newNode(n *expr.New) (*slim.New, error) {
	if se, ok := w.memo[n]; ok {
		return se.(*slim.New), nil
	}
	args, err := w.list(n.Arguments)
	if err != nil {
		return nil, err
	}
	out := &slim.New{Arguments: args, Type: w.types.ToSlim(n.Type())}
	if n.Constructor != nil {
		ci, err := w.types.MemberToSlim(n.Constructor)
		if err != nil {
			return nil, err
		}
		out.Constructor = ci.(*slim.ConstructorInfo)
	}
	w.memo[n] = out
	return out, nil
}

func (w *toSlim) expr(e expr.Expression) (slim.Expression, error) {
	if p, ok := e.(*expr.Parameter); ok {
		return w.param(p), nil
	}
	if n, ok := e.(*expr.New); ok {
		return w.newNode(n)
	}
	if se, ok := w.memo[e]; ok {
		return se, nil
	}
	se, err := w.convert(e)
	if err != nil {
		return nil, err
	}
	w.memo[e] = se
	return se, nil
}

func (w *toSlim) convert(e expr.Expression) (slim.Expression, error) {
	t := w.types.ToSlim(e.Type())
	switch x := e.(type) {
	case *expr.Constant:
		return slim.NewConstant(x.Value, t), nil
	case *expr.Default:
		return &slim.Default{Type: t}, nil
	case *expr.Unary:
		operand, err := w.expr(x.Operand)
		if err != nil {
			return nil, err
		}
		m, err := w.method(x.Method)
		if err != nil {
			return nil, err
		}
		return &slim.Unary{Op: x.Op, Operand: operand, Method: m, Type: t}, nil
	case *expr.Binary:
		l, err := w.expr(x.Left)
		if err != nil {
			return nil, err
		}
		r, err := w.expr(x.Right)
		if err != nil {
			return nil, err
		}
		m, err := w.method(x.Method)
		if err != nil {
			return nil, err
		}
		out := &slim.Binary{Op: x.Op, Left: l, Right: r, LiftToNull: x.LiftToNull, Method: m, Type: t}
		if x.Conversion != nil {
			conv, err := w.expr(x.Conversion)
			if err != nil {
				return nil, err
			}
			out.Conversion = conv.(*slim.Lambda)
		}
		return out, nil
	case *expr.Conditional:
		parts, err := w.list([]expr.Expression{x.Test, x.IfTrue, x.IfFalse})
		if err != nil {
			return nil, err
		}
		return &slim.Conditional{Test: parts[0], IfTrue: parts[1], IfFalse: parts[2], Type: t}, nil
	case *expr.Lambda:
		params := w.paramList(x.Parameters)
		body, err := w.expr(x.Body)
		if err != nil {
			return nil, err
		}
		return &slim.Lambda{Name: x.Name, Parameters: params, Body: body, Type: t}, nil
	case *expr.Invocation:
		fn, err := w.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		args, err := w.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		return &slim.Invocation{Expression: fn, Arguments: args, Type: t}, nil
	case *expr.Call:
		obj, err := w.opt(x.Object)
		if err != nil {
			return nil, err
		}
		m, err := w.method(x.Method)
		if err != nil {
			return nil, err
		}
		args, err := w.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		return &slim.Call{Object: obj, Method: m, Arguments: args, Type: t}, nil
	case *expr.MemberAccess:
		obj, err := w.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		m, err := w.types.MemberToSlim(x.Member)
		if err != nil {
			return nil, err
		}
		return &slim.Member{Expression: obj, Member: m, Type: t}, nil
	case *expr.Index:
		obj, err := w.expr(x.Object)
		if err != nil {
			return nil, err
		}
		args, err := w.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		out := &slim.Index{Object: obj, Arguments: args, Type: t}
		if x.Indexer != nil {
			m, err := w.types.MemberToSlim(x.Indexer)
			if err != nil {
				return nil, err
			}
			out.Indexer = m.(*slim.PropertyInfo)
		}
		return out, nil
	case *expr.NewArray:
		args, err := w.list(x.Expressions)
		if err != nil {
			return nil, err
		}
		elem, _ := slim.ElementType(t)
		return &slim.NewArray{Op: x.Op, ElementType: elem, Expressions: args, Type: t}, nil
	case *expr.ListInit:
		n, err := w.newNode(x.New)
		if err != nil {
			return nil, err
		}
		inits, err := w.inits(x.Initializers)
		if err != nil {
			return nil, err
		}
		return &slim.ListInit{New: n, Initializers: inits, Type: t}, nil
	case *expr.MemberInit:
		n, err := w.newNode(x.New)
		if err != nil {
			return nil, err
		}
		bs, err := w.bindings(x.Bindings)
		if err != nil {
			return nil, err
		}
		return &slim.MemberInit{New: n, Bindings: bs, Type: t}, nil
	case *expr.TypeBinary:
		operand, err := w.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		return &slim.TypeBinary{Op: x.Op, Expression: operand, TypeOperand: w.types.ToSlim(x.TypeOperand), Type: slim.Bool}, nil
	case *expr.Block:
		vars := w.paramList(x.Variables)
		exprs, err := w.list(x.Expressions)
		if err != nil {
			return nil, err
		}
		return &slim.Block{Variables: vars, Expressions: exprs, Type: t}, nil
	case *expr.Loop:
		body, err := w.expr(x.Body)
		if err != nil {
			return nil, err
		}
		return &slim.Loop{Body: body, BreakLabel: w.label(x.BreakLabel), ContinueLabel: w.label(x.ContinueLabel), Type: t}, nil
	case *expr.Goto:
		value, err := w.opt(x.Value)
		if err != nil {
			return nil, err
		}
		return &slim.Goto{Kind: x.Kind, Target: w.label(x.Target), Value: value, Type: t}, nil
	case *expr.Label:
		def, err := w.opt(x.DefaultValue)
		if err != nil {
			return nil, err
		}
		return &slim.Label{Target: w.label(x.Target), DefaultValue: def, Type: t}, nil
	case *expr.Try:
		return w.try(x, t)
	case *expr.Switch:
		return w.switchNode(x, t)
	}
	return nil, slim.NewArgumentError(e.NodeType().String(), "unsupported node %T", e)
}

func (w *toSlim) try(x *expr.Try, t slim.Type) (slim.Expression, error) {
	body, err := w.expr(x.Body)
	if err != nil {
		return nil, err
	}
	handlers := make([]*slim.CatchBlock, len(x.Handlers))
	for i, h := range x.Handlers {
		var v *slim.Parameter
		if h.Variable != nil {
			v = w.param(h.Variable)
		}
		hb, err := w.expr(h.Body)
		if err != nil {
			return nil, err
		}
		filter, err := w.opt(h.Filter)
		if err != nil {
			return nil, err
		}
		handlers[i] = &slim.CatchBlock{Test: w.types.ToSlim(h.Test), Variable: v, Body: hb, Filter: filter}
	}
	finally, err := w.opt(x.Finally)
	if err != nil {
		return nil, err
	}
	fault, err := w.opt(x.Fault)
	if err != nil {
		return nil, err
	}
	return &slim.Try{Body: body, Handlers: handlers, Finally: finally, Fault: fault, Type: t}, nil
}

func (w *toSlim) switchNode(x *expr.Switch, t slim.Type) (slim.Expression, error) {
	value, err := w.expr(x.SwitchValue)
	if err != nil {
		return nil, err
	}
	cases := make([]*slim.SwitchCase, len(x.Cases))
	for i, c := range x.Cases {
		tests, err := w.list(c.TestValues)
		if err != nil {
			return nil, err
		}
		body, err := w.expr(c.Body)
		if err != nil {
			return nil, err
		}
		cases[i] = &slim.SwitchCase{TestValues: tests, Body: body}
	}
	def, err := w.opt(x.DefaultBody)
	if err != nil {
		return nil, err
	}
	cmp, err := w.method(x.Comparison)
	if err != nil {
		return nil, err
	}
	return &slim.Switch{SwitchValue: value, Cases: cases, DefaultBody: def, Comparison: cmp, Type: t}, nil
}
