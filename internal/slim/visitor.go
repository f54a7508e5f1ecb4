package slim

import (
	"fmt"
	"slices"
)

// RewriteFunc is applied to every node after its children were rewritten.
// Returning the node unchanged keeps it.
type RewriteFunc func(Expression) (Expression, error)

// Rewrite rebuilds e bottom-up. A node whose children are all unchanged is
// passed to f as the original pointer, so a rewrite that changes nothing
// returns e itself.
//
// f is called once per distinct parameter, and the result is used both for
// references and for the declaration lists of Lambda, Block and CatchBlock;
// a parameter must therefore map to a parameter. A node met again while it
// is its own ancestor is returned as is, which keeps the walk finite on
// malformed cyclic trees.
func Rewrite(e Expression, f RewriteFunc) (Expression, error) {
	if e == nil {
		return nil, nil
	}
	r := &rewriter{
		f:        f,
		params:   make(map[*Parameter]*Parameter),
		progress: make(map[Expression]bool),
	}
	return r.expr(e)
}

type rewriter struct {
	f        RewriteFunc
	params   map[*Parameter]*Parameter
	progress map[Expression]bool
}

func (r *rewriter) param(p *Parameter) (*Parameter, error) {
	if p == nil {
		return nil, nil
	}
	if np, ok := r.params[p]; ok {
		return np, nil
	}
	out, err := r.f(p)
	if err != nil {
		return nil, err
	}
	np, ok := out.(*Parameter)
	if !ok {
		return nil, NewArgumentError(p.Name, "parameter rewritten to %T", out)
	}
	r.params[p] = np
	return np, nil
}

func (r *rewriter) paramList(ps []*Parameter) ([]*Parameter, bool, error) {
	var out []*Parameter
	for i, p := range ps {
		np, err := r.param(p)
		if err != nil {
			return nil, false, err
		}
		if np != p && out == nil {
			out = slices.Clone(ps)
		}
		if out != nil {
			out[i] = np
		}
	}
	if out == nil {
		return ps, false, nil
	}
	return out, true, nil
}

func (r *rewriter) opt(e Expression) (Expression, bool, error) {
	if e == nil {
		return nil, false, nil
	}
	out, err := r.expr(e)
	if err != nil {
		return nil, false, err
	}
	return out, out != e, nil
}

func (r *rewriter) list(es []Expression) ([]Expression, bool, error) {
	var out []Expression
	for i, e := range es {
		ne, err := r.expr(e)
		if err != nil {
			return nil, false, err
		}
		if ne != e && out == nil {
			out = slices.Clone(es)
		}
		if out != nil {
			out[i] = ne
		}
	}
	if out == nil {
		return es, false, nil
	}
	return out, true, nil
}

func (r *rewriter) inits(is []*ElementInit) ([]*ElementInit, bool, error) {
	var out []*ElementInit
	for i, in := range is {
		args, changed, err := r.list(in.Arguments)
		if err != nil {
			return nil, false, err
		}
		if changed && out == nil {
			out = slices.Clone(is)
		}
		if changed {
			out[i] = &ElementInit{AddMethod: in.AddMethod, Arguments: args}
		}
	}
	if out == nil {
		return is, false, nil
	}
	return out, true, nil
}

func (r *rewriter) bindings(bs []MemberBinding) ([]MemberBinding, bool, error) {
	var out []MemberBinding
	for i, b := range bs {
		var nb MemberBinding
		switch x := b.(type) {
		case *Assignment:
			ne, changed, err := r.opt(x.Expression)
			if err != nil {
				return nil, false, err
			}
			if changed {
				nb = &Assignment{Member: x.Member, Expression: ne}
			}
		case *MemberMemberBinding:
			nested, changed, err := r.bindings(x.Bindings)
			if err != nil {
				return nil, false, err
			}
			if changed {
				nb = &MemberMemberBinding{Member: x.Member, Bindings: nested}
			}
		case *MemberListBinding:
			inits, changed, err := r.inits(x.Initializers)
			if err != nil {
				return nil, false, err
			}
			if changed {
				nb = &MemberListBinding{Member: x.Member, Initializers: inits}
			}
		}
		if nb != nil {
			if out == nil {
				out = slices.Clone(bs)
			}
			out[i] = nb
		}
	}
	if out == nil {
		return bs, false, nil
	}
	return out, true, nil
}

func (r *rewriter) newNode(n *New) (*New, bool, error) {
	if n == nil {
		return nil, false, nil
	}
	out, err := r.expr(n)
	if err != nil {
		return nil, false, err
	}
	nn, ok := out.(*New)
	if !ok {
		return nil, false, NewArgumentError(FormatType(n.Type), "New rewritten to %T", out)
	}
	return nn, nn != n, nil
}

func (r *rewriter) expr(e Expression) (Expression, error) {
	if e == nil {
		return nil, nil
	}
	if p, ok := e.(*Parameter); ok {
		return r.param(p)
	}
	if r.progress[e] {
		return e, nil
	}
	r.progress[e] = true
	defer delete(r.progress, e)

	rebuilt, err := r.children(e)
	if err != nil {
		return nil, err
	}
	return r.f(rebuilt)
}

// children returns e with rewritten children, or e itself when no child
// changed.
func (r *rewriter) children(e Expression) (Expression, error) {
	switch x := e.(type) {
	case *Constant, *Default:
		return e, nil
	case *Unary:
		operand, changed, err := r.opt(x.Operand)
		if err != nil || !changed {
			return e, err
		}
		return &Unary{Op: x.Op, Operand: operand, Method: x.Method, Type: x.Type}, nil
	case *Binary:
		left, lc, err := r.opt(x.Left)
		if err != nil {
			return nil, err
		}
		right, rc, err := r.opt(x.Right)
		if err != nil {
			return nil, err
		}
		conv := x.Conversion
		var cc bool
		if conv != nil {
			out, changed, err := r.opt(conv)
			if err != nil {
				return nil, err
			}
			if changed {
				lambda, ok := out.(*Lambda)
				if !ok {
					return nil, NewArgumentError("Coalesce", "conversion rewritten to %T", out)
				}
				conv, cc = lambda, true
			}
		}
		if !lc && !rc && !cc {
			return e, nil
		}
		return &Binary{Op: x.Op, Left: left, Right: right, LiftToNull: x.LiftToNull, Method: x.Method, Conversion: conv, Type: x.Type}, nil
	case *Conditional:
		test, tc, err := r.opt(x.Test)
		if err != nil {
			return nil, err
		}
		ifTrue, ic, err := r.opt(x.IfTrue)
		if err != nil {
			return nil, err
		}
		ifFalse, fc, err := r.opt(x.IfFalse)
		if err != nil {
			return nil, err
		}
		if !tc && !ic && !fc {
			return e, nil
		}
		return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse, Type: x.Type}, nil
	case *Lambda:
		params, pc, err := r.paramList(x.Parameters)
		if err != nil {
			return nil, err
		}
		body, bc, err := r.opt(x.Body)
		if err != nil {
			return nil, err
		}
		if !pc && !bc {
			return e, nil
		}
		return &Lambda{Name: x.Name, Parameters: params, Body: body, Type: x.Type}, nil
	case *Invocation:
		target, tc, err := r.opt(x.Expression)
		if err != nil {
			return nil, err
		}
		args, ac, err := r.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		if !tc && !ac {
			return e, nil
		}
		return &Invocation{Expression: target, Arguments: args, Type: x.Type}, nil
	case *Call:
		obj, oc, err := r.opt(x.Object)
		if err != nil {
			return nil, err
		}
		args, ac, err := r.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		if !oc && !ac {
			return e, nil
		}
		return &Call{Object: obj, Method: x.Method, Arguments: args, Type: x.Type}, nil
	case *Member:
		obj, changed, err := r.opt(x.Expression)
		if err != nil || !changed {
			return e, err
		}
		return &Member{Expression: obj, Member: x.Member, Type: x.Type}, nil
	case *Index:
		obj, oc, err := r.opt(x.Object)
		if err != nil {
			return nil, err
		}
		args, ac, err := r.list(x.Arguments)
		if err != nil {
			return nil, err
		}
		if !oc && !ac {
			return e, nil
		}
		return &Index{Object: obj, Indexer: x.Indexer, Arguments: args, Type: x.Type}, nil
	case *New:
		args, changed, err := r.list(x.Arguments)
		if err != nil || !changed {
			return e, err
		}
		return &New{Constructor: x.Constructor, Arguments: args, Type: x.Type}, nil
	case *NewArray:
		exprs, changed, err := r.list(x.Expressions)
		if err != nil || !changed {
			return e, err
		}
		return &NewArray{Op: x.Op, ElementType: x.ElementType, Expressions: exprs, Type: x.Type}, nil
	case *ListInit:
		nn, nc, err := r.newNode(x.New)
		if err != nil {
			return nil, err
		}
		inits, ic, err := r.inits(x.Initializers)
		if err != nil {
			return nil, err
		}
		if !nc && !ic {
			return e, nil
		}
		return &ListInit{New: nn, Initializers: inits, Type: x.Type}, nil
	case *MemberInit:
		nn, nc, err := r.newNode(x.New)
		if err != nil {
			return nil, err
		}
		binds, bc, err := r.bindings(x.Bindings)
		if err != nil {
			return nil, err
		}
		if !nc && !bc {
			return e, nil
		}
		return &MemberInit{New: nn, Bindings: binds, Type: x.Type}, nil
	case *TypeBinary:
		operand, changed, err := r.opt(x.Expression)
		if err != nil || !changed {
			return e, err
		}
		return &TypeBinary{Op: x.Op, Expression: operand, TypeOperand: x.TypeOperand, Type: x.Type}, nil
	case *Block:
		vars, vc, err := r.paramList(x.Variables)
		if err != nil {
			return nil, err
		}
		exprs, ec, err := r.list(x.Expressions)
		if err != nil {
			return nil, err
		}
		if !vc && !ec {
			return e, nil
		}
		return &Block{Variables: vars, Expressions: exprs, Type: x.Type}, nil
	case *Loop:
		body, changed, err := r.opt(x.Body)
		if err != nil || !changed {
			return e, err
		}
		return &Loop{Body: body, BreakLabel: x.BreakLabel, ContinueLabel: x.ContinueLabel, Type: x.Type}, nil
	case *Goto:
		value, changed, err := r.opt(x.Value)
		if err != nil || !changed {
			return e, err
		}
		return &Goto{Kind: x.Kind, Target: x.Target, Value: value, Type: x.Type}, nil
	case *Label:
		value, changed, err := r.opt(x.DefaultValue)
		if err != nil || !changed {
			return e, err
		}
		return &Label{Target: x.Target, DefaultValue: value, Type: x.Type}, nil
	case *Try:
		return r.try(x)
	case *Switch:
		return r.switchNode(x)
	}
	return nil, NewArgumentError(fmt.Sprintf("%T", e), "unsupported expression node")
}

func (r *rewriter) try(x *Try) (Expression, error) {
	body, changed, err := r.opt(x.Body)
	if err != nil {
		return nil, err
	}
	handlers := x.Handlers
	for i, h := range x.Handlers {
		v, vc, err := r.optParam(h.Variable)
		if err != nil {
			return nil, err
		}
		hb, bc, err := r.opt(h.Body)
		if err != nil {
			return nil, err
		}
		hf, fc, err := r.opt(h.Filter)
		if err != nil {
			return nil, err
		}
		if vc || bc || fc {
			if sameSlice(handlers, x.Handlers) {
				handlers = slices.Clone(x.Handlers)
			}
			handlers[i] = &CatchBlock{Test: h.Test, Variable: v, Body: hb, Filter: hf}
			changed = true
		}
	}
	fin, finc, err := r.opt(x.Finally)
	if err != nil {
		return nil, err
	}
	fault, fltc, err := r.opt(x.Fault)
	if err != nil {
		return nil, err
	}
	if !changed && !finc && !fltc {
		return x, nil
	}
	return &Try{Body: body, Handlers: handlers, Finally: fin, Fault: fault, Type: x.Type}, nil
}

func (r *rewriter) optParam(p *Parameter) (*Parameter, bool, error) {
	if p == nil {
		return nil, false, nil
	}
	np, err := r.param(p)
	if err != nil {
		return nil, false, err
	}
	return np, np != p, nil
}

func sameSlice[T any](a, b []T) bool {
	return len(a) == len(b) && (len(a) == 0 || &a[0] == &b[0])
}

func (r *rewriter) switchNode(x *Switch) (Expression, error) {
	value, changed, err := r.opt(x.SwitchValue)
	if err != nil {
		return nil, err
	}
	cases := x.Cases
	for i, c := range x.Cases {
		tests, tc, err := r.list(c.TestValues)
		if err != nil {
			return nil, err
		}
		body, bc, err := r.opt(c.Body)
		if err != nil {
			return nil, err
		}
		if tc || bc {
			if sameSlice(cases, x.Cases) {
				cases = slices.Clone(x.Cases)
			}
			cases[i] = &SwitchCase{TestValues: tests, Body: body}
			changed = true
		}
	}
	def, dc, err := r.opt(x.DefaultBody)
	if err != nil {
		return nil, err
	}
	if !changed && !dc {
		return x, nil
	}
	return &Switch{SwitchValue: value, Cases: cases, DefaultBody: def, Comparison: x.Comparison, Type: x.Type}, nil
}

// Walk calls visit for e and its descendants in pre-order. When visit
// returns false the node's children are skipped. Declared parameters are
// visited before the scope body. A node met again while it is its own
// ancestor is not descended into.
func Walk(e Expression, visit func(Expression) bool) {
	w := &walker{visit: visit, progress: make(map[Expression]bool)}
	w.expr(e)
}

type walker struct {
	visit    func(Expression) bool
	progress map[Expression]bool
}

func (w *walker) list(es []Expression) {
	for _, e := range es {
		w.expr(e)
	}
}

func (w *walker) params(ps []*Parameter) {
	for _, p := range ps {
		w.expr(p)
	}
}

func (w *walker) inits(is []*ElementInit) {
	for _, in := range is {
		w.list(in.Arguments)
	}
}

func (w *walker) bindings(bs []MemberBinding) {
	for _, b := range bs {
		switch x := b.(type) {
		case *Assignment:
			w.expr(x.Expression)
		case *MemberMemberBinding:
			w.bindings(x.Bindings)
		case *MemberListBinding:
			w.inits(x.Initializers)
		}
	}
}

func (w *walker) expr(e Expression) {
	if e == nil || w.progress[e] {
		return
	}
	if !w.visit(e) {
		return
	}
	w.progress[e] = true
	defer delete(w.progress, e)
	switch x := e.(type) {
	case *Unary:
		w.expr(x.Operand)
	case *Binary:
		if x.Conversion != nil {
			w.expr(x.Conversion)
		}
		w.expr(x.Left)
		w.expr(x.Right)
	case *Conditional:
		w.expr(x.Test)
		w.expr(x.IfTrue)
		w.expr(x.IfFalse)
	case *Lambda:
		w.params(x.Parameters)
		w.expr(x.Body)
	case *Invocation:
		w.expr(x.Expression)
		w.list(x.Arguments)
	case *Call:
		w.expr(x.Object)
		w.list(x.Arguments)
	case *Member:
		w.expr(x.Expression)
	case *Index:
		w.expr(x.Object)
		w.list(x.Arguments)
	case *New:
		w.list(x.Arguments)
	case *NewArray:
		w.list(x.Expressions)
	case *ListInit:
		if x.New != nil {
			w.expr(x.New)
		}
		w.inits(x.Initializers)
	case *MemberInit:
		if x.New != nil {
			w.expr(x.New)
		}
		w.bindings(x.Bindings)
	case *TypeBinary:
		w.expr(x.Expression)
	case *Block:
		w.params(x.Variables)
		w.list(x.Expressions)
	case *Loop:
		w.expr(x.Body)
	case *Goto:
		w.expr(x.Value)
	case *Label:
		w.expr(x.DefaultValue)
	case *Try:
		w.expr(x.Body)
		for _, h := range x.Handlers {
			if h.Variable != nil {
				w.expr(h.Variable)
			}
			w.expr(h.Filter)
			w.expr(h.Body)
		}
		w.expr(x.Finally)
		w.expr(x.Fault)
	case *Switch:
		w.expr(x.SwitchValue)
		for _, c := range x.Cases {
			w.list(c.TestValues)
			w.expr(c.Body)
		}
		w.expr(x.DefaultBody)
	}
}

// GlobalParameters returns the parameters of e that no enclosing Lambda,
// Block or CatchBlock declares, in order of first occurrence.
func GlobalParameters(e Expression) []*Parameter {
	declared := make(map[*Parameter]bool)
	Walk(e, func(n Expression) bool {
		switch x := n.(type) {
		case *Lambda:
			for _, p := range x.Parameters {
				declared[p] = true
			}
		case *Block:
			for _, p := range x.Variables {
				declared[p] = true
			}
		case *Try:
			for _, h := range x.Handlers {
				if h.Variable != nil {
					declared[h.Variable] = true
				}
			}
		}
		return true
	})
	var out []*Parameter
	seen := make(map[*Parameter]bool)
	Walk(e, func(n Expression) bool {
		if p, ok := n.(*Parameter); ok && !declared[p] && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
		return true
	})
	return out
}
