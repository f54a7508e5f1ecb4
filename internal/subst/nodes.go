package subst

import (
	"github.com/roach88/slim/internal/slim"
)

func (s *exprSubst) member(m slim.MemberInfo) (slim.MemberInfo, error) {
	switch x := m.(type) {
	case nil:
		return nil, nil
	case *slim.FieldInfo:
		decl, ft := s.typ(x.Declaring), s.typ(x.FieldType)
		if decl == x.Declaring && ft == x.FieldType {
			return x, nil
		}
		return s.resolver.ResolveField(x, decl, ft)
	case *slim.PropertyInfo:
		return s.property(x)
	case slim.MethodInfo:
		return s.method(x)
	case *slim.ConstructorInfo:
		return s.constructor(x)
	}
	return nil, slim.NewArgumentError(m.MemberName(), "unknown member %T", m)
}

func (s *exprSubst) property(p *slim.PropertyInfo) (*slim.PropertyInfo, error) {
	if p == nil {
		return nil, nil
	}
	decl, pt := s.typ(p.Declaring), s.typ(p.PropertyType)
	index, changed := s.typeList(p.IndexParameterTypes)
	if decl == p.Declaring && pt == p.PropertyType && !changed {
		return p, nil
	}
	return s.resolver.ResolveProperty(p, decl, pt, index)
}

func (s *exprSubst) method(m slim.MethodInfo) (slim.MethodInfo, error) {
	if m == nil {
		return nil, nil
	}
	var typeArgs []slim.Type
	argsChanged := false
	if gm, ok := m.(*slim.GenericMethod); ok {
		typeArgs, argsChanged = s.typeList(gm.Arguments)
	}
	// Generic methods instantiate their signature on every call, so the
	// originals are read once.
	origParams, origResult := m.Parameters(), m.Result()
	decl := s.typ(m.DeclaringType())
	params, paramsChanged := s.typeList(origParams)
	result := s.typ(origResult)
	if !argsChanged && !paramsChanged && decl == m.DeclaringType() && result == origResult {
		return m, nil
	}
	return s.resolver.ResolveMethod(m, decl, typeArgs, params, result)
}

func (s *exprSubst) constructor(c *slim.ConstructorInfo) (*slim.ConstructorInfo, error) {
	if c == nil {
		return nil, nil
	}
	decl := s.typ(c.Declaring)
	params, changed := s.typeList(c.ParameterTypes)
	if decl == c.Declaring && !changed {
		return c, nil
	}
	return s.resolver.ResolveConstructor(c, decl, params)
}

func (s *exprSubst) inits(is []*slim.ElementInit) ([]*slim.ElementInit, bool, error) {
	var out []*slim.ElementInit
	for i, in := range is {
		add, err := s.method(in.AddMethod)
		if err != nil {
			return nil, false, err
		}
		args, changed, err := s.list(in.Arguments)
		if err != nil {
			return nil, false, err
		}
		n := in
		if changed || add != in.AddMethod {
			n = &slim.ElementInit{AddMethod: add, Arguments: args}
		}
		if n != in && out == nil {
			out = make([]*slim.ElementInit, len(is))
			copy(out, is[:i])
		}
		if out != nil {
			out[i] = n
		}
	}
	if out == nil {
		return is, false, nil
	}
	return out, true, nil
}

func (s *exprSubst) bindings(bs []slim.MemberBinding) ([]slim.MemberBinding, bool, error) {
	var out []slim.MemberBinding
	for i, b := range bs {
		m, err := s.member(b.BoundMember())
		if err != nil {
			return nil, false, err
		}
		var nb slim.MemberBinding = b
		switch x := b.(type) {
		case *slim.Assignment:
			e, err := s.expr(x.Expression)
			if err != nil {
				return nil, false, err
			}
			if e != x.Expression || m != x.Member {
				nb = &slim.Assignment{Member: m, Expression: e}
			}
		case *slim.MemberMemberBinding:
			inner, changed, err := s.bindings(x.Bindings)
			if err != nil {
				return nil, false, err
			}
			if changed || m != x.Member {
				nb = &slim.MemberMemberBinding{Member: m, Bindings: inner}
			}
		case *slim.MemberListBinding:
			inits, changed, err := s.inits(x.Initializers)
			if err != nil {
				return nil, false, err
			}
			if changed || m != x.Member {
				nb = &slim.MemberListBinding{Member: m, Initializers: inits}
			}
		}
		if nb != b && out == nil {
			out = make([]slim.MemberBinding, len(bs))
			copy(out, bs[:i])
		}
		if out != nil {
			out[i] = nb
		}
	}
	if out == nil {
		return bs, false, nil
	}
	return out, true, nil
}

func (s *exprSubst) newNode(n *slim.New) (*slim.New, error) {
	out, err := s.expr(n)
	if err != nil {
		return nil, err
	}
	return out.(*slim.New), nil
}

// node rebuilds e when anything below it changed and returns e otherwise.
func (s *exprSubst) node(e slim.Expression) (slim.Expression, error) {
	switch x := e.(type) {
	case *slim.Constant:
		t := s.typ(x.Type)
		if t == x.Type {
			return x, nil
		}
		v, err := s.resolver.ConvertConstant(x.Value, x.Type, t)
		if err != nil {
			return nil, err
		}
		return slim.NewConstant(v, t), nil
	case *slim.Default:
		if t := s.typ(x.Type); t != x.Type {
			return &slim.Default{Type: t}, nil
		}
		return x, nil
	case *slim.Unary:
		operand, err := s.expr(x.Operand)
		if err != nil {
			return nil, err
		}
		m, err := s.method(x.Method)
		if err != nil {
			return nil, err
		}
		t := s.typ(x.Type)
		if operand == x.Operand && m == x.Method && t == x.Type {
			return x, nil
		}
		return &slim.Unary{Op: x.Op, Operand: operand, Method: m, Type: t}, nil
	case *slim.Binary:
		return s.binary(x)
	case *slim.Conditional:
		parts, changed, err := s.list([]slim.Expression{x.Test, x.IfTrue, x.IfFalse})
		if err != nil {
			return nil, err
		}
		t := s.typ(x.Type)
		if !changed && t == x.Type {
			return x, nil
		}
		return &slim.Conditional{Test: parts[0], IfTrue: parts[1], IfFalse: parts[2], Type: t}, nil
	case *slim.Lambda:
		params, pc := s.paramList(x.Parameters)
		body, err := s.expr(x.Body)
		if err != nil {
			return nil, err
		}
		t := s.typ(x.Type)
		if !pc && body == x.Body && t == x.Type {
			return x, nil
		}
		return &slim.Lambda{Name: x.Name, Parameters: params, Body: body, Type: t}, nil
	case *slim.Invocation:
		fn, err := s.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		args, changed, err := s.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		if fn == x.Expression && !changed {
			return x, nil
		}
		return &slim.Invocation{Expression: fn, Arguments: args, Type: x.Type}, nil
	case *slim.Call:
		obj, oc, err := s.opt(x.Object)
		if err != nil {
			return nil, err
		}
		m, err := s.method(x.Method)
		if err != nil {
			return nil, err
		}
		args, changed, err := s.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		if !oc && !changed && m == x.Method {
			return x, nil
		}
		return &slim.Call{Object: obj, Method: m, Arguments: args, Type: x.Type}, nil
	case *slim.Member:
		obj, err := s.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		m, err := s.member(x.Member)
		if err != nil {
			return nil, err
		}
		if obj == x.Expression && m == x.Member {
			return x, nil
		}
		return &slim.Member{Expression: obj, Member: m, Type: x.Type}, nil
	case *slim.Index:
		obj, err := s.expr(x.Object)
		if err != nil {
			return nil, err
		}
		indexer, err := s.property(x.Indexer)
		if err != nil {
			return nil, err
		}
		args, changed, err := s.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		if obj == x.Object && indexer == x.Indexer && !changed {
			return x, nil
		}
		return &slim.Index{Object: obj, Indexer: indexer, Arguments: args, Type: x.Type}, nil
	case *slim.New:
		ctor, err := s.constructor(x.Constructor)
		if err != nil {
			return nil, err
		}
		args, changed, err := s.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		t := s.typ(x.Type)
		if ctor == x.Constructor && !changed && t == x.Type {
			return x, nil
		}
		return &slim.New{Constructor: ctor, Arguments: args, Type: t}, nil
	case *slim.NewArray:
		args, changed, err := s.list(x.Expressions)
		if err != nil {
			return nil, err
		}
		elem := s.typ(x.ElementType)
		if !changed && elem == x.ElementType {
			return x, nil
		}
		return &slim.NewArray{Op: x.Op, ElementType: elem, Expressions: args, Type: s.typ(x.Type)}, nil
	case *slim.ListInit:
		n, err := s.newNode(x.New)
		if err != nil {
			return nil, err
		}
		inits, changed, err := s.inits(x.Initializers)
		if err != nil {
			return nil, err
		}
		if n == x.New && !changed {
			return x, nil
		}
		return &slim.ListInit{New: n, Initializers: inits, Type: x.Type}, nil
	case *slim.MemberInit:
		n, err := s.newNode(x.New)
		if err != nil {
			return nil, err
		}
		bs, changed, err := s.bindings(x.Bindings)
		if err != nil {
			return nil, err
		}
		if n == x.New && !changed {
			return x, nil
		}
		return &slim.MemberInit{New: n, Bindings: bs, Type: x.Type}, nil
	case *slim.TypeBinary:
		operand, err := s.expr(x.Expression)
		if err != nil {
			return nil, err
		}
		t := s.typ(x.TypeOperand)
		if operand == x.Expression && t == x.TypeOperand {
			return x, nil
		}
		return &slim.TypeBinary{Op: x.Op, Expression: operand, TypeOperand: t, Type: x.Type}, nil
	case *slim.Block:
		vars, vc := s.paramList(x.Variables)
		exprs, changed, err := s.list(x.Expressions)
		if err != nil {
			return nil, err
		}
		t := s.typ(x.Type)
		if !vc && !changed && t == x.Type {
			return x, nil
		}
		return &slim.Block{Variables: vars, Expressions: exprs, Type: t}, nil
	case *slim.Loop:
		body, err := s.expr(x.Body)
		if err != nil {
			return nil, err
		}
		brk, cont := s.label(x.BreakLabel), s.label(x.ContinueLabel)
		if body == x.Body && brk == x.BreakLabel && cont == x.ContinueLabel {
			return x, nil
		}
		return &slim.Loop{Body: body, BreakLabel: brk, ContinueLabel: cont, Type: x.Type}, nil
	case *slim.Goto:
		value, vc, err := s.opt(x.Value)
		if err != nil {
			return nil, err
		}
		target, t := s.label(x.Target), s.typ(x.Type)
		if !vc && target == x.Target && t == x.Type {
			return x, nil
		}
		return &slim.Goto{Kind: x.Kind, Target: target, Value: value, Type: t}, nil
	case *slim.Label:
		def, dc, err := s.opt(x.DefaultValue)
		if err != nil {
			return nil, err
		}
		target := s.label(x.Target)
		if !dc && target == x.Target {
			return x, nil
		}
		return &slim.Label{Target: target, DefaultValue: def, Type: x.Type}, nil
	case *slim.Try:
		return s.try(x)
	case *slim.Switch:
		return s.switchNode(x)
	}
	return nil, slim.NewArgumentError(e.NodeType().String(), "unsupported node %T", e)
}

func (s *exprSubst) binary(x *slim.Binary) (slim.Expression, error) {
	l, err := s.expr(x.Left)
	if err != nil {
		return nil, err
	}
	r, err := s.expr(x.Right)
	if err != nil {
		return nil, err
	}
	m, err := s.method(x.Method)
	if err != nil {
		return nil, err
	}
	conv := x.Conversion
	if conv != nil {
		ce, err := s.expr(conv)
		if err != nil {
			return nil, err
		}
		conv = ce.(*slim.Lambda)
	}
	if l == x.Left && r == x.Right && m == x.Method && conv == x.Conversion {
		return x, nil
	}
	return &slim.Binary{Op: x.Op, Left: l, Right: r, LiftToNull: x.LiftToNull, Method: m, Conversion: conv, Type: x.Type}, nil
}

func (s *exprSubst) try(x *slim.Try) (slim.Expression, error) {
	body, err := s.expr(x.Body)
	if err != nil {
		return nil, err
	}
	changed := body != x.Body
	handlers := make([]*slim.CatchBlock, len(x.Handlers))
	for i, h := range x.Handlers {
		hb, err := s.expr(h.Body)
		if err != nil {
			return nil, err
		}
		filter, fc, err := s.opt(h.Filter)
		if err != nil {
			return nil, err
		}
		test, v := s.typ(h.Test), s.param(h.Variable)
		handlers[i] = h
		if hb != h.Body || fc || test != h.Test || v != h.Variable {
			handlers[i] = &slim.CatchBlock{Test: test, Variable: v, Body: hb, Filter: filter}
			changed = true
		}
	}
	finally, fc, err := s.opt(x.Finally)
	if err != nil {
		return nil, err
	}
	fault, fltc, err := s.opt(x.Fault)
	if err != nil {
		return nil, err
	}
	t := s.typ(x.Type)
	if !changed && !fc && !fltc && t == x.Type {
		return x, nil
	}
	return &slim.Try{Body: body, Handlers: handlers, Finally: finally, Fault: fault, Type: t}, nil
}

func (s *exprSubst) switchNode(x *slim.Switch) (slim.Expression, error) {
	value, err := s.expr(x.SwitchValue)
	if err != nil {
		return nil, err
	}
	changed := value != x.SwitchValue
	cases := make([]*slim.SwitchCase, len(x.Cases))
	for i, c := range x.Cases {
		tests, tc, err := s.list(c.TestValues)
		if err != nil {
			return nil, err
		}
		body, err := s.expr(c.Body)
		if err != nil {
			return nil, err
		}
		cases[i] = c
		if tc || body != c.Body {
			cases[i] = &slim.SwitchCase{TestValues: tests, Body: body}
			changed = true
		}
	}
	def, dc, err := s.opt(x.DefaultBody)
	if err != nil {
		return nil, err
	}
	cmp, err := s.method(x.Comparison)
	if err != nil {
		return nil, err
	}
	t := s.typ(x.Type)
	if !changed && !dc && cmp == x.Comparison && t == x.Type {
		return x, nil
	}
	return &slim.Switch{SwitchValue: value, Cases: cases, DefaultBody: def, Comparison: cmp, Type: t}, nil
}
