package expr

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"github.com/roach88/slim/internal/op"
)

// ErrOverflow is the panic value (wrapped) of checked arithmetic and
// checked conversions that overflow.
var ErrOverflow = errors.New("arithmetic overflow")

func overflow(kind op.Kind, t reflect.Type) {
	panic(fmt.Errorf("%w: %s on %s", ErrOverflow, kind, t))
}

func evalUnary(x *Unary, env *scope) (reflect.Value, error) {
	v, err := eval(x.Operand, env)
	if err != nil {
		return reflect.Value{}, err
	}
	if x.Op == op.Throw {
		if d, ok := dynamic(v); ok {
			panic(d.Interface())
		}
		panic(ErrNilDereference)
	}
	if x.Method != nil {
		args := []reflect.Value{conform(v, x.Method.Params[0])}
		return callValue(methodValue(x.Method, reflect.Value{}), args, x.typ), nil
	}
	st := x.Operand.Type()
	switch x.Op {
	case op.Convert, op.ConvertChecked:
		return convertValue(v, st, x.typ, x.Op == op.ConvertChecked), nil
	case op.TypeAs:
		if d, ok := dynamic(v); ok && d.Type().AssignableTo(x.typ) {
			return conform(d, x.typ), nil
		}
		return reflect.Zero(x.typ), nil
	case op.ArrayLength:
		return reflect.ValueOf(v.Len()), nil
	case op.IsTrue:
		return reflect.ValueOf(v.Bool()), nil
	case op.IsFalse:
		return reflect.ValueOf(!v.Bool()), nil
	}
	if elem, ok := NullableElem(st); ok {
		if v.IsNil() {
			return reflect.Zero(x.typ), nil
		}
		return pointerTo(unaryBasic(x.Op, v.Elem(), elem), x.typ), nil
	}
	return unaryBasic(x.Op, v, st), nil
}

func unaryBasic(kind op.Kind, v reflect.Value, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	switch kind {
	case op.UnaryPlus:
		out.Set(v)
	case op.Not:
		out.SetBool(!v.Bool())
	case op.OnesComplement:
		if isUnsigned(t) {
			out.SetUint(^v.Uint())
		} else {
			out.SetInt(^v.Int())
		}
	case op.Negate, op.NegateChecked:
		switch {
		case isUnsigned(t):
			if kind == op.NegateChecked && v.Uint() != 0 {
				overflow(kind, t)
			}
			out.SetUint(-v.Uint())
		case isInteger(t):
			a := v.Int()
			if kind == op.NegateChecked && (a == math.MinInt64 || out.OverflowInt(-a)) {
				overflow(kind, t)
			}
			out.SetInt(-a)
		case isFloat(t):
			out.SetFloat(-v.Float())
		case isComplex(t):
			out.SetComplex(-v.Complex())
		}
	case op.Increment, op.Decrement:
		one := reflect.ValueOf(1).Convert(t)
		bin := op.Add
		if kind == op.Decrement {
			bin = op.Subtract
		}
		return arith(bin, v, one, t)
	}
	return out
}

func pointerTo(v reflect.Value, t reflect.Type) reflect.Value {
	p := reflect.New(t.Elem())
	p.Elem().Set(conform(v, t.Elem()))
	return p
}

func convertValue(v reflect.Value, from, to reflect.Type, checked bool) reflect.Value {
	_, fnull := NullableElem(from)
	te, tnull := NullableElem(to)
	switch {
	case fnull && tnull && from != to:
		if v.IsNil() {
			return reflect.Zero(to)
		}
		return pointerTo(convertBasic(v.Elem(), te, checked), to)
	case fnull && !tnull && !assignable(from, to):
		if v.IsNil() {
			panic(ErrNilDereference)
		}
		return convertBasic(v.Elem(), to, checked)
	case tnull && !fnull && from.ConvertibleTo(te):
		return pointerTo(convertBasic(v, te, checked), to)
	}
	if v.Kind() == reflect.Interface && to.Kind() != reflect.Interface {
		d, ok := dynamic(v)
		if !ok || !d.Type().AssignableTo(to) {
			panic(fmt.Errorf("interface conversion: %s is %v, not %s", from, dynType(v), to))
		}
		return conform(d, to)
	}
	return convertBasic(v, to, checked)
}

func dynType(v reflect.Value) any {
	if d, ok := dynamic(v); ok {
		return d.Type()
	}
	return "nil"
}

func convertBasic(v reflect.Value, to reflect.Type, checked bool) reflect.Value {
	if v.Type() == to {
		return v
	}
	if assignable(v.Type(), to) {
		return conform(v, to)
	}
	if checked && !fits(v, to) {
		overflow(op.ConvertChecked, to)
	}
	return v.Convert(to)
}

// fits reports whether numeric v is representable in integer type t.
func fits(v reflect.Value, t reflect.Type) bool {
	if !isInteger(t) {
		return true
	}
	z := reflect.New(t).Elem()
	vt := v.Type()
	switch {
	case isUnsigned(vt):
		u := v.Uint()
		if isUnsigned(t) {
			return !z.OverflowUint(u)
		}
		return u <= math.MaxInt64 && !z.OverflowInt(int64(u))
	case isInteger(vt):
		i := v.Int()
		if isUnsigned(t) {
			return i >= 0 && !z.OverflowUint(uint64(i))
		}
		return !z.OverflowInt(i)
	case isFloat(vt):
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		f = math.Trunc(f)
		if isUnsigned(t) {
			return f >= 0 && f < 1<<64 && !z.OverflowUint(uint64(f))
		}
		return f >= math.MinInt64 && f < 1<<63 && !z.OverflowInt(int64(f))
	}
	return true
}

func evalBinary(x *Binary, env *scope) (reflect.Value, error) {
	switch x.Op {
	case op.AndAlso, op.OrElse:
		l, err := eval(x.Left, env)
		if err != nil {
			return reflect.Value{}, err
		}
		if l.Bool() == (x.Op == op.OrElse) {
			return reflect.ValueOf(l.Bool()), nil
		}
		r, err := eval(x.Right, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(r.Bool()), nil
	case op.Coalesce:
		return evalCoalesce(x, env)
	case op.Assign:
		return evalAssign(x, env)
	}
	l, err := eval(x.Left, env)
	if err != nil {
		return reflect.Value{}, err
	}
	r, err := eval(x.Right, env)
	if err != nil {
		return reflect.Value{}, err
	}
	if x.Method != nil {
		args := []reflect.Value{conform(l, x.Method.Params[0]), conform(r, x.Method.Params[1])}
		return callValue(methodValue(x.Method, reflect.Value{}), args, x.typ), nil
	}
	if x.Op == op.ArrayIndex {
		return indexValue(l, r), nil
	}
	lt, rt := x.Left.Type(), x.Right.Type()
	lelem, lnull := NullableElem(lt)
	_, rnull := NullableElem(rt)
	if !lnull && !rnull {
		return binaryBasic(x.Op, l, r, lt), nil
	}
	if x.Op.IsComparison() {
		lnil := lnull && l.IsNil()
		rnil := rnull && r.IsNil()
		if lnil || rnil {
			if x.LiftToNull {
				return reflect.Zero(x.typ), nil
			}
			switch x.Op {
			case op.Equal:
				return reflect.ValueOf(lnil && rnil), nil
			case op.NotEqual:
				return reflect.ValueOf(lnil != rnil), nil
			}
			return reflect.ValueOf(false), nil
		}
		res := binaryBasic(x.Op, unwrapNullable(l, lnull), unwrapNullable(r, rnull), orType(lelem, lt))
		if x.LiftToNull {
			return pointerTo(res, x.typ), nil
		}
		return res, nil
	}
	if (lnull && l.IsNil()) || (rnull && r.IsNil()) {
		return reflect.Zero(x.typ), nil
	}
	res := binaryBasic(x.Op, unwrapNullable(l, lnull), unwrapNullable(r, rnull), orType(lelem, lt))
	if !lnull {
		return res, nil
	}
	return pointerTo(res, x.typ), nil
}

func unwrapNullable(v reflect.Value, nullable bool) reflect.Value {
	if nullable {
		return v.Elem()
	}
	return v
}

func orType(t, fallback reflect.Type) reflect.Type {
	if t != nil {
		return t
	}
	return fallback
}

func evalCoalesce(x *Binary, env *scope) (reflect.Value, error) {
	l, err := eval(x.Left, env)
	if err != nil {
		return reflect.Value{}, err
	}
	if _, ok := dynamic(l); !ok {
		r, err := eval(x.Right, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return conform(r, x.typ), nil
	}
	if x.Conversion != nil {
		fn := makeFunc(x.Conversion, env)
		return callValue(fn, []reflect.Value{conform(l, x.Conversion.Type().In(0))}, x.typ), nil
	}
	if elem, ok := NullableElem(x.Left.Type()); ok && elem == x.typ {
		return l.Elem(), nil
	}
	return conform(l, x.typ), nil
}

func evalAssign(x *Binary, env *scope) (reflect.Value, error) {
	r, err := eval(x.Right, env)
	if err != nil {
		return reflect.Value{}, err
	}
	v := conform(r, x.typ)
	switch target := x.Left.(type) {
	case *Parameter:
		slot, ok := env.lookup(target)
		if !ok {
			return reflect.Value{}, argErr(target.Name, "unbound parameter")
		}
		slot.Set(v)
	case *MemberAccess:
		obj, err := evalRef(target.Expression, env)
		if err != nil {
			return reflect.Value{}, err
		}
		slot, err := memberSlot(obj, target.Member)
		if err != nil {
			return reflect.Value{}, err
		}
		slot.Set(v)
	case *Index:
		obj, err := evalRef(target.Object, env)
		if err != nil {
			return reflect.Value{}, err
		}
		key, err := eval(target.Arguments[0], env)
		if err != nil {
			return reflect.Value{}, err
		}
		if obj.Kind() == reflect.Map {
			obj.SetMapIndex(conform(key, obj.Type().Key()), v)
		} else {
			indexValue(obj, key).Set(v)
		}
	case *Binary:
		obj, err := evalRef(target.Left, env)
		if err != nil {
			return reflect.Value{}, err
		}
		idx, err := eval(target.Right, env)
		if err != nil {
			return reflect.Value{}, err
		}
		indexValue(obj, idx).Set(v)
	default:
		return reflect.Value{}, argErr(x.Left.NodeType().String(), "expression is not assignable")
	}
	return v, nil
}

// evalRef evaluates e as a location: variables and the members and array
// elements reached through them stay addressable.
func evalRef(e Expression, env *scope) (reflect.Value, error) {
	switch x := e.(type) {
	case *Parameter:
		slot, ok := env.lookup(x)
		if !ok {
			return reflect.Value{}, argErr(x.Name, "unbound parameter")
		}
		return slot, nil
	case *MemberAccess:
		obj, err := evalRef(x.Expression, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return readMember(obj, x.Member), nil
	case *Binary:
		if x.Op == op.ArrayIndex {
			obj, err := evalRef(x.Left, env)
			if err != nil {
				return reflect.Value{}, err
			}
			idx, err := eval(x.Right, env)
			if err != nil {
				return reflect.Value{}, err
			}
			return indexValue(obj, idx), nil
		}
	}
	return eval(e, env)
}

func binaryBasic(kind op.Kind, l, r reflect.Value, t reflect.Type) reflect.Value {
	switch {
	case kind.IsComparison():
		return reflect.ValueOf(compare(kind, l, r))
	case kind.IsShift():
		return shift(kind, l, r, t)
	}
	return arith(kind, l, r, t)
}

func compare(kind op.Kind, l, r reflect.Value) bool {
	switch kind {
	case op.Equal:
		return valuesEqual(l, r)
	case op.NotEqual:
		return !valuesEqual(l, r)
	}
	var c int
	switch t := l.Type(); {
	case isUnsigned(t):
		c = cmp3(l.Uint(), r.Uint())
	case isInteger(t):
		c = cmp3(l.Int(), r.Int())
	case isFloat(t):
		a, b := l.Float(), r.Float()
		if math.IsNaN(a) || math.IsNaN(b) {
			return false
		}
		c = cmp3(a, b)
	default:
		c = cmp3(l.String(), r.String())
	}
	switch kind {
	case op.LessThan:
		return c < 0
	case op.LessThanOrEqual:
		return c <= 0
	case op.GreaterThan:
		return c > 0
	}
	return c >= 0
}

func cmp3[T int64 | uint64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// valuesEqual is Go's == over reflected values. Comparing incomparable
// dynamic types panics, as it does in Go.
func valuesEqual(a, b reflect.Value) bool {
	da, aok := dynamic(a)
	db, bok := dynamic(b)
	if !aok || !bok {
		return aok == bok
	}
	if da.Type() != db.Type() {
		return false
	}
	return da.Equal(db)
}

func shift(kind op.Kind, l, r reflect.Value, t reflect.Type) reflect.Value {
	var n uint64
	if isUnsigned(r.Type()) {
		n = r.Uint()
	} else {
		if r.Int() < 0 {
			panic(errors.New("negative shift amount"))
		}
		n = uint64(r.Int())
	}
	out := reflect.New(t).Elem()
	if isUnsigned(t) {
		if kind == op.LeftShift {
			out.SetUint(l.Uint() << n)
		} else {
			out.SetUint(l.Uint() >> n)
		}
		return out
	}
	if kind == op.LeftShift {
		out.SetInt(l.Int() << n)
	} else {
		out.SetInt(l.Int() >> n)
	}
	return out
}

func arith(kind op.Kind, l, r reflect.Value, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	switch {
	case t.Kind() == reflect.Bool:
		a, b := l.Bool(), r.Bool()
		switch kind {
		case op.And:
			out.SetBool(a && b)
		case op.Or:
			out.SetBool(a || b)
		case op.ExclusiveOr:
			out.SetBool(a != b)
		}
	case t.Kind() == reflect.String:
		out.SetString(l.String() + r.String())
	case isUnsigned(t):
		res, of := uintOp(kind, l.Uint(), r.Uint())
		if kind.IsChecked() && (of || out.OverflowUint(res)) {
			overflow(kind, t)
		}
		out.SetUint(res)
	case isInteger(t):
		res, of := intOp(kind, l.Int(), r.Int())
		if kind.IsChecked() && (of || out.OverflowInt(res)) {
			overflow(kind, t)
		}
		out.SetInt(res)
	case isFloat(t):
		a, b := l.Float(), r.Float()
		switch kind {
		case op.Add, op.AddChecked:
			out.SetFloat(a + b)
		case op.Subtract, op.SubtractChecked:
			out.SetFloat(a - b)
		case op.Multiply, op.MultiplyChecked:
			out.SetFloat(a * b)
		case op.Divide:
			out.SetFloat(a / b)
		}
	case isComplex(t):
		a, b := l.Complex(), r.Complex()
		switch kind {
		case op.Add, op.AddChecked:
			out.SetComplex(a + b)
		case op.Subtract, op.SubtractChecked:
			out.SetComplex(a - b)
		case op.Multiply, op.MultiplyChecked:
			out.SetComplex(a * b)
		case op.Divide:
			out.SetComplex(a / b)
		}
	}
	return out
}

// intOp computes in 64 bits and reports 64-bit overflow. Division by zero
// panics with the runtime's own error.
func intOp(kind op.Kind, a, b int64) (int64, bool) {
	switch kind {
	case op.Add, op.AddChecked:
		r := a + b
		return r, (a > 0 && b > 0 && r < 0) || (a < 0 && b < 0 && r >= 0)
	case op.Subtract, op.SubtractChecked:
		r := a - b
		return r, (a >= 0 && b < 0 && r < 0) || (a < 0 && b > 0 && r >= 0)
	case op.Multiply, op.MultiplyChecked:
		r := a * b
		return r, a != 0 && (r/a != b || (a == -1 && b == math.MinInt64))
	case op.Divide:
		return a / b, false
	case op.Modulo:
		return a % b, false
	case op.And:
		return a & b, false
	case op.Or:
		return a | b, false
	case op.ExclusiveOr:
		return a ^ b, false
	case op.AndNot:
		return a &^ b, false
	}
	panic(fmt.Errorf("operator %s is not defined on integers", kind))
}

func uintOp(kind op.Kind, a, b uint64) (uint64, bool) {
	switch kind {
	case op.Add, op.AddChecked:
		r := a + b
		return r, r < a
	case op.Subtract, op.SubtractChecked:
		return a - b, a < b
	case op.Multiply, op.MultiplyChecked:
		r := a * b
		return r, a != 0 && r/a != b
	case op.Divide:
		return a / b, false
	case op.Modulo:
		return a % b, false
	case op.And:
		return a & b, false
	case op.Or:
		return a | b, false
	case op.ExclusiveOr:
		return a ^ b, false
	case op.AndNot:
		return a &^ b, false
	}
	panic(fmt.Errorf("operator %s is not defined on integers", kind))
}
