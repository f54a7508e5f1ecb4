package derive

import (
	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
)

// Assignable reports whether a value of type from converts implicitly to
// to: identical types, or any target of the empty interface. Interface
// satisfaction of named types needs method sets and is not decided here.
func Assignable(from, to slim.Type) bool {
	if slim.TypeEqual(from, to) {
		return true
	}
	if st, ok := to.(*slim.SimpleType); ok && st.Assembly == "" && st.Name == slim.Any.Name {
		return true
	}
	return false
}

func isBool(t slim.Type) bool {
	b, ok := slim.Basic(t)
	return ok && b.Bool
}

// lift splits a nullable operand type into its basic type.
func lift(t slim.Type) (base slim.Type, nullable bool) {
	if u, ok := slim.NullableUnderlying(t); ok {
		return u, true
	}
	return t, false
}

func basic(t slim.Type) slim.BasicInfo {
	b, _ := slim.Basic(t)
	return b
}

// nilable reports whether nil is a value of t.
func nilable(t slim.Type) bool {
	switch x := t.(type) {
	case *slim.ArrayType:
		return x.IsVector()
	case *slim.GenericType:
		if _, ok := slim.PointerElem(x); ok {
			return true
		}
		if _, _, ok := slim.AsMap(x); ok {
			return true
		}
		if _, _, ok := slim.AsChan(x); ok {
			return true
		}
		_, ok := slim.AsFunc(x)
		return ok
	}
	return slim.IsInterface(t)
}

func hasLength(t slim.Type) bool {
	switch x := t.(type) {
	case *slim.ArrayType:
		return true
	case *slim.GenericType:
		if _, _, ok := slim.AsMap(x); ok {
			return true
		}
		if _, _, ok := slim.AsChan(x); ok {
			return true
		}
		_, _, ok := slim.AsFixedArray(x)
		return ok
	}
	return basic(t).String
}

func unary(x *slim.Unary) (slim.Type, error) {
	subject := x.Op.String()
	if x.Method != nil {
		return x.Method.Result(), nil
	}
	switch x.Op {
	case op.Convert, op.ConvertChecked, op.TypeAs:
		if x.Type == nil {
			return nil, slim.NewDerivationError(subject, "missing target type")
		}
		return x.Type, nil
	case op.Throw:
		if x.Type == nil {
			return slim.Void, nil
		}
		return x.Type, nil
	}
	operand, err := typeOf(x.Operand)
	if err != nil {
		return nil, err
	}
	base, _ := lift(operand)
	b := basic(base)
	switch x.Op {
	case op.Negate, op.NegateChecked, op.UnaryPlus, op.Increment, op.Decrement:
		if !b.Numeric() {
			return nil, slim.NewDerivationError(subject, "operand type %s is not numeric", slim.FormatType(operand))
		}
		return operand, nil
	case op.OnesComplement:
		if !b.Integer {
			return nil, slim.NewDerivationError(subject, "operand type %s is not an integer", slim.FormatType(operand))
		}
		return operand, nil
	case op.Not, op.IsTrue, op.IsFalse:
		if !b.Bool {
			return nil, slim.NewDerivationError(subject, "operand type %s is not bool", slim.FormatType(operand))
		}
		if x.Op == op.Not {
			return operand, nil
		}
		return slim.Bool, nil
	case op.ArrayLength:
		if !hasLength(operand) {
			return nil, slim.NewDerivationError(subject, "operand type %s has no length", slim.FormatType(operand))
		}
		return slim.Int, nil
	}
	return nil, slim.NewDerivationError(subject, "not a unary operator")
}

func binary(x *slim.Binary) (slim.Type, error) {
	subject := x.Op.String()
	if x.Method != nil {
		return x.Method.Result(), nil
	}
	left, err := typeOf(x.Left)
	if err != nil {
		return nil, err
	}
	right, err := typeOf(x.Right)
	if err != nil {
		return nil, err
	}
	if x.Conversion != nil {
		return right, nil
	}
	lbase, lnull := lift(left)
	rbase, _ := lift(right)
	lb := basic(lbase)
	mismatch := func() error {
		return slim.NewDerivationError(subject, "mismatched operand types %s and %s",
			slim.FormatType(left), slim.FormatType(right))
	}
	switch {
	case x.Op.IsArithmetic():
		if !slim.TypeEqual(left, right) {
			return nil, mismatch()
		}
		switch {
		case x.Op == op.Add && lb.String:
		case x.Op == op.Modulo && !lb.Integer:
			return nil, slim.NewDerivationError(subject, "operand type %s is not an integer", slim.FormatType(left))
		case !lb.Numeric():
			return nil, slim.NewDerivationError(subject, "operand type %s is not numeric", slim.FormatType(left))
		}
		return left, nil
	case x.Op.IsBitwise():
		if !slim.TypeEqual(left, right) {
			return nil, mismatch()
		}
		if !lb.Integer && !(x.Op != op.AndNot && lb.Bool) {
			return nil, slim.NewDerivationError(subject, "operand type %s is not an integer", slim.FormatType(left))
		}
		return left, nil
	case x.Op.IsShift():
		if !lb.Integer || !basic(rbase).Integer {
			return nil, slim.NewDerivationError(subject, "shift of %s by %s", slim.FormatType(left), slim.FormatType(right))
		}
		return left, nil
	case x.Op.IsLogical():
		if !isBool(left) || !isBool(right) {
			return nil, slim.NewDerivationError(subject, "operands %s and %s are not bool", slim.FormatType(left), slim.FormatType(right))
		}
		return slim.Bool, nil
	case x.Op.IsComparison():
		if !slim.TypeEqual(left, right) && !slim.IsInterface(left) && !slim.IsInterface(right) {
			return nil, mismatch()
		}
		if x.Op.IsOrdering() && !lb.Ordered() {
			return nil, slim.NewDerivationError(subject, "operand type %s is not ordered", slim.FormatType(left))
		}
		if x.LiftToNull && lnull {
			return slim.Nullable(slim.Bool), nil
		}
		return slim.Bool, nil
	case x.Op == op.Coalesce:
		if !nilable(left) {
			return nil, slim.NewDerivationError(subject, "left operand type %s cannot be nil", slim.FormatType(left))
		}
		if lnull && slim.TypeEqual(right, lbase) {
			return lbase, nil
		}
		if Assignable(right, left) {
			return left, nil
		}
		return nil, slim.NewDerivationError(subject, "right operand type %s is not compatible with %s",
			slim.FormatType(right), slim.FormatType(left))
	case x.Op == op.ArrayIndex:
		if !basic(right).Integer {
			return nil, slim.NewDerivationError(subject, "index type %s is not an integer", slim.FormatType(right))
		}
		if lb.String {
			return slim.Uint8, nil
		}
		if _, _, isMap := slim.AsMap(left); !isMap {
			if elem, ok := slim.ElementType(left); ok {
				return elem, nil
			}
		}
		return nil, slim.NewDerivationError(subject, "operand type %s is not indexable", slim.FormatType(left))
	case x.Op == op.Assign:
		if !Assignable(right, left) {
			return nil, slim.NewDerivationError(subject, "cannot assign %s to %s", slim.FormatType(right), slim.FormatType(left))
		}
		return left, nil
	}
	return nil, slim.NewDerivationError(subject, "not a binary operator")
}
