// Package derive computes the static result type of slim expression nodes
// from the node model alone.
//
// After substitution a node's stored type may be stale; Type recomputes it
// from the children and the resolved members, without loading any native
// type. Go has no implicit numeric promotion, so builtin operators require
// identical operand types. A pointer to a basic type is the nullable form of
// that type and operators lift over it.
//
// Failures are *slim.Error values with code DERIVATION; a nil node is an
// ARGUMENT error.
package derive

import (
	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
)

// Type derives the result type of e. Children contribute their stored
// types; a child whose type is optional and undeclared is derived in turn.
func Type(e slim.Expression) (slim.Type, error) {
	if e == nil {
		return nil, slim.NewArgumentError("", "nil expression")
	}
	return derive(e)
}

// Verify checks every node of e: its stored type must be present where it
// is required and must equal the derived type. It returns the first
// mismatch.
func Verify(e slim.Expression) error {
	if e == nil {
		return slim.NewArgumentError("", "nil expression")
	}
	var err error
	slim.Walk(e, func(n slim.Expression) bool {
		if err != nil {
			return false
		}
		got, derr := derive(n)
		if derr != nil {
			err = derr
			return false
		}
		if stored := slim.TypeOf(n); stored != nil && !slim.TypeEqual(stored, got) {
			err = slim.NewDerivationError(n.NodeType().String(),
				"stored type %s, derived %s", slim.FormatType(stored), slim.FormatType(got))
			return false
		}
		return true
	})
	return err
}

// typeOf returns the stored type of a child, deriving it when absent.
func typeOf(e slim.Expression) (slim.Type, error) {
	if e == nil {
		return nil, slim.NewDerivationError("", "missing operand")
	}
	if t := slim.TypeOf(e); t != nil {
		return t, nil
	}
	return derive(e)
}

func declared(e slim.Expression) (slim.Type, error) {
	t := slim.TypeOf(e)
	if t == nil {
		return nil, slim.NewDerivationError(e.NodeType().String(), "missing declared type")
	}
	return t, nil
}

func derive(e slim.Expression) (slim.Type, error) {
	switch x := e.(type) {
	case *slim.Constant, *slim.Default, *slim.Parameter:
		return declared(e)
	case *slim.Unary:
		return unary(x)
	case *slim.Binary:
		return binary(x)
	case *slim.Conditional:
		return conditional(x)
	case *slim.Lambda:
		return lambda(x)
	case *slim.Invocation:
		ft, err := typeOf(x.Expression)
		if err != nil {
			return nil, err
		}
		sig, ok := slim.AsFunc(ft)
		if !ok {
			return nil, slim.NewDerivationError("Invoke", "%s is not a function type", slim.FormatType(ft))
		}
		r, ok := sig.Result()
		if !ok {
			return nil, slim.NewDerivationError("Invoke", "%s has several results", slim.FormatType(ft))
		}
		return r, nil
	case *slim.Call:
		if x.Method == nil {
			return nil, slim.NewDerivationError("Call", "missing method")
		}
		return x.Method.Result(), nil
	case *slim.Member:
		t, ok := slim.MemberType(x.Member)
		if !ok || t == nil {
			return nil, slim.NewDerivationError("MemberAccess", "member is not a field or property")
		}
		return t, nil
	case *slim.Index:
		return index(x)
	case *slim.New:
		if x.Constructor != nil {
			return x.Constructor.Declaring, nil
		}
		return declared(e)
	case *slim.NewArray:
		return newArray(x)
	case *slim.ListInit:
		if x.New == nil {
			return nil, slim.NewDerivationError("ListInit", "missing new expression")
		}
		return derive(x.New)
	case *slim.MemberInit:
		if x.New == nil {
			return nil, slim.NewDerivationError("MemberInit", "missing new expression")
		}
		return derive(x.New)
	case *slim.TypeBinary:
		return slim.Bool, nil
	case *slim.Block:
		if x.Type != nil {
			return x.Type, nil
		}
		if len(x.Expressions) == 0 {
			return slim.Void, nil
		}
		return typeOf(x.Expressions[len(x.Expressions)-1])
	case *slim.Loop:
		if x.BreakLabel != nil && x.BreakLabel.Type != nil {
			return x.BreakLabel.Type, nil
		}
		return slim.Void, nil
	case *slim.Goto:
		if x.Type != nil {
			return x.Type, nil
		}
		return slim.Void, nil
	case *slim.Label:
		if x.Target == nil {
			return nil, slim.NewDerivationError("Label", "missing target")
		}
		if x.Target.Type == nil {
			return slim.Void, nil
		}
		return x.Target.Type, nil
	case *slim.Try:
		if x.Type != nil {
			return x.Type, nil
		}
		return typeOf(x.Body)
	case *slim.Switch:
		if x.Type != nil {
			return x.Type, nil
		}
		if len(x.Cases) > 0 {
			return typeOf(x.Cases[0].Body)
		}
		if x.DefaultBody != nil {
			return typeOf(x.DefaultBody)
		}
		return slim.Void, nil
	}
	return nil, slim.NewDerivationError(e.NodeType().String(), "unsupported node %T", e)
}

func conditional(x *slim.Conditional) (slim.Type, error) {
	if x.Type != nil {
		return x.Type, nil
	}
	test, err := typeOf(x.Test)
	if err != nil {
		return nil, err
	}
	if !isBool(test) {
		return nil, slim.NewDerivationError("Conditional", "test type %s is not bool", slim.FormatType(test))
	}
	t, err := typeOf(x.IfTrue)
	if err != nil {
		return nil, err
	}
	f, err := typeOf(x.IfFalse)
	if err != nil {
		return nil, err
	}
	return common("Conditional", t, f)
}

// common returns the type both branch types convert to implicitly.
func common(subject string, a, b slim.Type) (slim.Type, error) {
	switch {
	case slim.TypeEqual(a, b):
		return a, nil
	case Assignable(b, a):
		return a, nil
	case Assignable(a, b):
		return b, nil
	}
	return nil, slim.NewDerivationError(subject, "no common type for %s and %s", slim.FormatType(a), slim.FormatType(b))
}

func lambda(x *slim.Lambda) (slim.Type, error) {
	if x.Type != nil {
		return x.Type, nil
	}
	params := make([]slim.Type, len(x.Parameters))
	for i, p := range x.Parameters {
		if p.Type == nil {
			return nil, slim.NewDerivationError("Lambda", "parameter %q has no type", p.Name)
		}
		params[i] = p.Type
	}
	body, err := typeOf(x.Body)
	if err != nil {
		return nil, err
	}
	var results []slim.Type
	if !slim.IsVoid(body) {
		results = []slim.Type{body}
	}
	return slim.Func(params, results, false), nil
}

func index(x *slim.Index) (slim.Type, error) {
	if x.Indexer != nil {
		return x.Indexer.PropertyType, nil
	}
	obj, err := typeOf(x.Object)
	if err != nil {
		return nil, err
	}
	if b, ok := slim.Basic(obj); ok && b.String {
		return slim.Uint8, nil
	}
	elem, ok := slim.ElementType(obj)
	if !ok {
		return nil, slim.NewDerivationError("Index", "%s is not indexable", slim.FormatType(obj))
	}
	return elem, nil
}

func newArray(x *slim.NewArray) (slim.Type, error) {
	if x.ElementType == nil {
		return nil, slim.NewDerivationError(x.Op.String(), "missing element type")
	}
	if x.Op == op.NewArrayBounds && len(x.Expressions) > 1 {
		return slim.MultiArray(x.ElementType, len(x.Expressions)), nil
	}
	return slim.Slice(x.ElementType), nil
}
