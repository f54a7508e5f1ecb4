package convert

import (
	"reflect"

	"github.com/goccy/go-json"

	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
)

type fromSlim struct {
	types         TypeSystem
	paramBindings []Binding
	params        map[*slim.Parameter]expr.Expression
	labels        map[*slim.LabelTarget]*expr.LabelTarget
	memo          map[slim.Expression]expr.Expression
	bound         int
}

func (w *fromSlim) typ(d slim.Type) (reflect.Type, error) {
	return w.types.ToType(d)
}

// optType resolves a declared type; nil stays nil.
func (w *fromSlim) optType(d slim.Type) (reflect.Type, error) {
	if d == nil {
		return nil, nil
	}
	return w.types.ToType(d)
}

// declare creates the native parameters for declared slim parameters.
func (w *fromSlim) declare(ps []*slim.Parameter) ([]*expr.Parameter, error) {
	out := make([]*expr.Parameter, len(ps))
	for i, p := range ps {
		if np, ok := w.params[p].(*expr.Parameter); ok {
			out[i] = np
			continue
		}
		t, err := w.typ(p.Type)
		if err != nil {
			return nil, err
		}
		np := expr.Param(p.Name, t)
		w.params[p] = np
		out[i] = np
	}
	return out, nil
}

// global resolves an undeclared parameter through the bindings, or creates
// a free native parameter for it.
func (w *fromSlim) global(p *slim.Parameter) (expr.Expression, error) {
	if e, ok := w.params[p]; ok {
		return e, nil
	}
	for _, b := range w.paramBindings {
		if e, ok := b(p); ok {
			t, err := w.typ(p.Type)
			if err != nil {
				return nil, err
			}
			if e.Type() != t {
				return nil, slim.NewResolutionError(p.Name, "binding of type %s does not match %s", e.Type(), t)
			}
			w.params[p] = e
			w.bound++
			return e, nil
		}
	}
	t, err := w.typ(p.Type)
	if err != nil {
		return nil, err
	}
	np := expr.Param(p.Name, t)
	w.params[p] = np
	return np, nil
}

func (w *fromSlim) label(l *slim.LabelTarget) (*expr.LabelTarget, error) {
	if l == nil {
		return nil, nil
	}
	if nl, ok := w.labels[l]; ok {
		return nl, nil
	}
	t, err := w.optType(l.Type)
	if err != nil {
		return nil, err
	}
	nl := expr.MakeLabelTarget(l.Name, t)
	w.labels[l] = nl
	return nl, nil
}

func (w *fromSlim) method(m slim.MethodInfo) (*expr.Method, error) {
	if m == nil {
		return nil, nil
	}
	nm, err := w.types.MemberFromSlim(m)
	if err != nil {
		return nil, err
	}
	return nm.(*expr.Method), nil
}

func (w *fromSlim) list(es []slim.Expression) ([]expr.Expression, error) {
	if es == nil {
		return nil, nil
	}
	out := make([]expr.Expression, len(es))
	for i, e := range es {
		ne, err := w.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = ne
	}
	return out, nil
}

func (w *fromSlim) opt(e slim.Expression) (expr.Expression, error) {
	if e == nil {
		return nil, nil
	}
	return w.expr(e)
}

func (w *fromSlim) expr(e slim.Expression) (expr.Expression, error) {
	if p, ok := e.(*slim.Parameter); ok {
		return w.global(p)
	}
	if ne, ok := w.memo[e]; ok {
		return ne, nil
	}
	ne, err := w.convert(e)
	if err != nil {
		return nil, err
	}
	w.memo[e] = ne
	return ne, nil
}

func (w *fromSlim) newNode(n *slim.New) (*expr.New, error) {
	if ne, ok := w.memo[n]; ok {
		return ne.(*expr.New), nil
	}
	var (
		out *expr.New
		err error
	)
	if n.Constructor == nil {
		t, terr := w.typ(n.Type)
		if terr != nil {
			return nil, terr
		}
		out = expr.MakeNewZero(t)
	} else {
		ctor, cerr := w.types.MemberFromSlim(n.Constructor)
		if cerr != nil {
			return nil, cerr
		}
		args, aerr := w.list(n.Arguments)
		if aerr != nil {
			return nil, aerr
		}
		if out, err = expr.MakeNew(ctor.(*expr.Constructor), args...); err != nil {
			return nil, err
		}
	}
	w.memo[n] = out
	return out, nil
}

func (w *fromSlim) inits(collection reflect.Type, is []*slim.ElementInit) ([]*expr.ElementInit, error) {
	out := make([]*expr.ElementInit, len(is))
	for i, init := range is {
		add, err := w.method(init.AddMethod)
		if err != nil {
			return nil, err
		}
		args, err := w.list(init.Arguments)
		if err != nil {
			return nil, err
		}
		if out[i], err = expr.MakeElementInit(collection, add, args...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (w *fromSlim) bindings(bs []slim.MemberBinding) ([]expr.MemberBinding, error) {
	out := make([]expr.MemberBinding, len(bs))
	for i, b := range bs {
		m, err := w.types.MemberFromSlim(b.BoundMember())
		if err != nil {
			return nil, err
		}
		switch x := b.(type) {
		case *slim.Assignment:
			e, err := w.expr(x.Expression)
			if err != nil {
				return nil, err
			}
			if out[i], err = expr.Bind(m, e); err != nil {
				return nil, err
			}
		case *slim.MemberMemberBinding:
			inner, err := w.bindings(x.Bindings)
			if err != nil {
				return nil, err
			}
			out[i] = &expr.MemberMemberBinding{Member: m, Bindings: inner}
		case *slim.MemberListBinding:
			mt, ok := expr.MemberType(m)
			if !ok {
				return nil, slim.NewResolutionError(m.MemberName(), "list binding on a member without a value type")
			}
			inits, err := w.inits(mt, x.Initializers)
			if err != nil {
				return nil, err
			}
			out[i] = &expr.MemberListBinding{Member: m, Initializers: inits}
		default:
			return nil, slim.NewArgumentError("", "unknown binding %T", b)
		}
	}
	return out, nil
}

// constantValue converts a constant's payload to a value of t. Lifted
// payloads are decoded; basic values are converted when Go allows it.
func constantValue(v any, t reflect.Type) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case slim.Lifted:
		p := reflect.New(t)
		if err := json.Unmarshal(x, p.Interface()); err != nil {
			return nil, slim.NewResolutionError(t.String(), "cannot decode constant").WithCause(err)
		}
		return p.Elem().Interface(), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return v, nil
	}
	if expr.IsBasic(rv.Type()) && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t).Interface(), nil
	}
	return nil, slim.NewResolutionError(t.String(), "constant of type %s is not a value of %s", rv.Type(), t)
}

func (w *fromSlim) convert(e slim.Expression) (expr.Expression, error) {
	switch x := e.(type) {
	case *slim.Constant:
		t, err := w.typ(x.Type)
		if err != nil {
			return nil, err
		}
		v, err := constantValue(x.Value, t)
		if err != nil {
			return nil, err
		}
		return expr.MakeConstant(v, t)
	case *slim.Default:
		t, err := w.typ(x.Type)
		if err != nil {
			return nil, err
		}
		return expr.MakeDefault(t), nil
	case *slim.Unary:
		return w.unary(x)
	case *slim.Binary:
		return w.binary(x)
	case *slim.Conditional:
		parts, err := w.list([]slim.Expression{x.Test, x.IfTrue, x.IfFalse})
		if err != nil {
			return nil, err
		}
		t, err := w.optType(x.Type)
		if err != nil {
			return nil, err
		}
		return expr.MakeConditional(parts[0], parts[1], parts[2], t)
	case *slim.Lambda:
		t, err := w.typ(x.Type)
		if err != nil {
			return nil, err
		}
		params, err := w.declare(x.Parameters)
		if err != nil {
			return nil, err
		}
		body, err := w.expr(x.Body)
		if err != nil {
			return nil, err
		}
		return expr.MakeLambdaType(t, x.Name, body, params...)
	case *slim.Invocation:
		fn, err := w.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		args, err := w.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		return expr.MakeInvoke(fn, args...)
	case *slim.Call:
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
		return expr.MakeCall(obj, m, args...)
	case *slim.Member:
		obj, err := w.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		m, err := w.types.MemberFromSlim(x.Member)
		if err != nil {
			return nil, err
		}
		return expr.MakeMemberAccess(obj, m)
	case *slim.Index:
		obj, err := w.expr(x.Object)
		if err != nil {
			return nil, err
		}
		args, err := w.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		var indexer *expr.Property
		if x.Indexer != nil {
			m, err := w.types.MemberFromSlim(x.Indexer)
			if err != nil {
				return nil, err
			}
			indexer = m.(*expr.Property)
		}
		return expr.MakeIndex(obj, indexer, args...)
	case *slim.New:
		return w.newNode(x)
	case *slim.NewArray:
		elem, err := w.typ(x.ElementType)
		if err != nil {
			return nil, err
		}
		args, err := w.list(x.Expressions)
		if err != nil {
			return nil, err
		}
		if x.Op == op.NewArrayInit {
			return expr.MakeNewArrayInit(elem, args...)
		}
		if len(args) != 1 {
			return nil, slim.NewResolutionError(slim.FormatType(x.Type), "multi-dimensional arrays have no native form")
		}
		return expr.MakeNewArrayBounds(elem, args[0])
	case *slim.ListInit:
		n, err := w.newNode(x.New)
		if err != nil {
			return nil, err
		}
		inits, err := w.inits(n.Type(), x.Initializers)
		if err != nil {
			return nil, err
		}
		return expr.MakeListInit(n, inits...)
	case *slim.MemberInit:
		n, err := w.newNode(x.New)
		if err != nil {
			return nil, err
		}
		bs, err := w.bindings(x.Bindings)
		if err != nil {
			return nil, err
		}
		return expr.MakeMemberInit(n, bs...)
	case *slim.TypeBinary:
		operand, err := w.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		t, err := w.typ(x.TypeOperand)
		if err != nil {
			return nil, err
		}
		if x.Op == op.TypeEqual {
			return expr.MakeTypeEqual(operand, t)
		}
		return expr.MakeTypeIs(operand, t)
	case *slim.Block:
		vars, err := w.declare(x.Variables)
		if err != nil {
			return nil, err
		}
		exprs, err := w.list(x.Expressions)
		if err != nil {
			return nil, err
		}
		t, err := w.optType(x.Type)
		if err != nil {
			return nil, err
		}
		return expr.MakeBlock(t, vars, exprs...)
	case *slim.Loop:
		brk, err := w.label(x.BreakLabel)
		if err != nil {
			return nil, err
		}
		cont, err := w.label(x.ContinueLabel)
		if err != nil {
			return nil, err
		}
		body, err := w.expr(x.Body)
		if err != nil {
			return nil, err
		}
		return expr.MakeLoop(body, brk, cont)
	case *slim.Goto:
		target, err := w.label(x.Target)
		if err != nil {
			return nil, err
		}
		value, err := w.opt(x.Value)
		if err != nil {
			return nil, err
		}
		t, err := w.optType(x.Type)
		if err != nil {
			return nil, err
		}
		return expr.MakeGoto(x.Kind, target, value, t)
	case *slim.Label:
		target, err := w.label(x.Target)
		if err != nil {
			return nil, err
		}
		def, err := w.opt(x.DefaultValue)
		if err != nil {
			return nil, err
		}
		return expr.MakeLabel(target, def)
	case *slim.Try:
		return w.try(x)
	case *slim.Switch:
		return w.switchNode(x)
	}
	return nil, slim.NewArgumentError(e.NodeType().String(), "unsupported node %T", e)
}

func (w *fromSlim) unary(x *slim.Unary) (expr.Expression, error) {
	operand, err := w.expr(x.Operand)
	if err != nil {
		return nil, err
	}
	m, err := w.method(x.Method)
	if err != nil {
		return nil, err
	}
	var target reflect.Type
	switch x.Op {
	case op.Convert, op.ConvertChecked, op.TypeAs, op.Throw:
		if target, err = w.optType(x.Type); err != nil {
			return nil, err
		}
	}
	return expr.MakeUnary(x.Op, operand, target, m)
}

func (w *fromSlim) binary(x *slim.Binary) (expr.Expression, error) {
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
	var conv *expr.Lambda
	if x.Conversion != nil {
		ce, err := w.expr(x.Conversion)
		if err != nil {
			return nil, err
		}
		conv = ce.(*expr.Lambda)
	}
	return expr.MakeBinaryMethod(x.Op, l, r, x.LiftToNull, m, conv)
}

func (w *fromSlim) try(x *slim.Try) (expr.Expression, error) {
	body, err := w.expr(x.Body)
	if err != nil {
		return nil, err
	}
	handlers := make([]*expr.CatchBlock, len(x.Handlers))
	for i, h := range x.Handlers {
		test, err := w.typ(h.Test)
		if err != nil {
			return nil, err
		}
		var v *expr.Parameter
		if h.Variable != nil {
			vars, err := w.declare([]*slim.Parameter{h.Variable})
			if err != nil {
				return nil, err
			}
			v = vars[0]
		}
		hb, err := w.expr(h.Body)
		if err != nil {
			return nil, err
		}
		filter, err := w.opt(h.Filter)
		if err != nil {
			return nil, err
		}
		if handlers[i], err = expr.MakeCatch(test, v, hb, filter); err != nil {
			return nil, err
		}
	}
	finally, err := w.opt(x.Finally)
	if err != nil {
		return nil, err
	}
	fault, err := w.opt(x.Fault)
	if err != nil {
		return nil, err
	}
	t, err := w.optType(x.Type)
	if err != nil {
		return nil, err
	}
	return expr.MakeTry(t, body, handlers, finally, fault)
}

func (w *fromSlim) switchNode(x *slim.Switch) (expr.Expression, error) {
	value, err := w.expr(x.SwitchValue)
	if err != nil {
		return nil, err
	}
	cases := make([]*expr.SwitchCase, len(x.Cases))
	for i, c := range x.Cases {
		tests, err := w.list(c.TestValues)
		if err != nil {
			return nil, err
		}
		body, err := w.expr(c.Body)
		if err != nil {
			return nil, err
		}
		if cases[i], err = expr.MakeSwitchCase(body, tests...); err != nil {
			return nil, err
		}
	}
	def, err := w.opt(x.DefaultBody)
	if err != nil {
		return nil, err
	}
	cmp, err := w.method(x.Comparison)
	if err != nil {
		return nil, err
	}
	t, err := w.optType(x.Type)
	if err != nil {
		return nil, err
	}
	return expr.MakeSwitch(t, value, cases, def, cmp)
}
