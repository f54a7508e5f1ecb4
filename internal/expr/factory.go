package expr

import (
	"fmt"
	"reflect"

	"github.com/roach88/slim/internal/op"
	"github.com/roach88/slim/internal/slim"
)

func argErr(subject, format string, args ...any) error {
	return slim.NewArgumentError(subject, format, args...)
}

func typeErr(subject, format string, args ...any) error {
	return slim.NewDerivationError(subject, format, args...)
}

// MakeConst returns a constant whose type is the dynamic type of v.
// A nil v has no type; use MakeConstant for typed nil.
func MakeConst(v any) (*Constant, error) {
	if v == nil {
		return nil, argErr("Constant", "nil value has no type")
	}
	return &Constant{Value: v, typ: reflect.TypeOf(v)}, nil
}

// Const is like MakeConst but panics on error, like Must.
func Const(v any) *Constant {
	return Must(MakeConst(v))
}

// MakeConstant returns a constant of type t. v must be nil (for nilable
// types) or assignable to t.
func MakeConstant(v any, t reflect.Type) (*Constant, error) {
	if t == nil {
		return nil, argErr("Constant", "nil type")
	}
	if v == nil {
		if !isNilable(t) {
			return nil, typeErr(t.String(), "nil is not a value of %s", t)
		}
		return &Constant{typ: t}, nil
	}
	vt := reflect.TypeOf(v)
	if !assignable(vt, t) {
		return nil, typeErr(t.String(), "constant of type %s is not assignable to %s", vt, t)
	}
	return &Constant{Value: v, typ: t}, nil
}

// MakeDefault returns the zero value of t.
func MakeDefault(t reflect.Type) *Default {
	if t == nil {
		t = VoidType
	}
	return &Default{typ: t}
}

// Param returns a new parameter.
func Param(name string, t reflect.Type) *Parameter {
	return &Parameter{Name: name, typ: t}
}

// UnaryResultType computes the static type of a builtin unary operator.
// target is required for Convert, ConvertChecked and TypeAs and optional
// for Throw.
func UnaryResultType(kind op.Kind, operand, target reflect.Type) (reflect.Type, error) {
	subject := kind.String()
	base := operand
	if elem, ok := NullableElem(operand); ok {
		base = elem
	}
	switch kind {
	case op.Negate, op.NegateChecked, op.UnaryPlus, op.Increment, op.Decrement:
		if !IsBasic(base) || !isNumeric(base) {
			return nil, typeErr(subject, "operand type %s is not numeric", operand)
		}
		return operand, nil
	case op.OnesComplement:
		if !isInteger(base) {
			return nil, typeErr(subject, "operand type %s is not an integer", operand)
		}
		return operand, nil
	case op.Not, op.IsTrue, op.IsFalse:
		if base.Kind() != reflect.Bool {
			return nil, typeErr(subject, "operand type %s is not bool", operand)
		}
		if kind == op.Not {
			return operand, nil
		}
		return boolType, nil
	case op.Convert, op.ConvertChecked:
		if target == nil {
			return nil, argErr(subject, "missing target type")
		}
		if !convertible(operand, target) {
			return nil, typeErr(subject, "cannot convert %s to %s", operand, target)
		}
		return target, nil
	case op.TypeAs:
		if target == nil {
			return nil, argErr(subject, "missing target type")
		}
		if !isNilable(target) {
			return nil, typeErr(subject, "TypeAs target %s must be nilable", target)
		}
		return target, nil
	case op.ArrayLength:
		switch operand.Kind() {
		case reflect.Slice, reflect.Array, reflect.String, reflect.Map, reflect.Chan:
			return intType, nil
		}
		return nil, typeErr(subject, "operand type %s has no length", operand)
	case op.Throw:
		if target == nil {
			return VoidType, nil
		}
		return target, nil
	}
	return nil, argErr(subject, "not a unary operator")
}

// convertible reports whether Convert is defined from one type to another,
// including nullable wrapping and unwrapping.
func convertible(from, to reflect.Type) bool {
	if from == to || from.ConvertibleTo(to) || assignable(from, to) {
		return true
	}
	fe, fn := NullableElem(from)
	te, tn := NullableElem(to)
	switch {
	case fn && tn:
		return fe.ConvertibleTo(te)
	case fn:
		return fe.ConvertibleTo(to)
	case tn:
		return from.ConvertibleTo(te)
	}
	return false
}

// MakeUnary returns a unary node. Method, when non-nil, implements the
// operator and its result type is the node's type.
func MakeUnary(kind op.Kind, operand Expression, target reflect.Type, method *Method) (*Unary, error) {
	if !kind.IsUnary() {
		return nil, argErr(kind.String(), "not a unary operator")
	}
	if operand == nil {
		return nil, argErr(kind.String(), "nil operand")
	}
	if method != nil {
		if len(method.Params) != 1 || !assignable(operand.Type(), method.Params[0]) {
			return nil, typeErr(method.String(), "method does not accept operand of type %s", operand.Type())
		}
		t := method.Result
		if target != nil && (kind == op.Convert || kind == op.ConvertChecked) && t != target {
			return nil, typeErr(method.String(), "conversion method returns %s, want %s", t, target)
		}
		return &Unary{Op: kind, Operand: operand, Method: method, typ: t}, nil
	}
	t, err := UnaryResultType(kind, operand.Type(), target)
	if err != nil {
		return nil, err
	}
	return &Unary{Op: kind, Operand: operand, typ: t}, nil
}

// BinaryResultType computes the static type of a builtin binary operator.
// Operand types must be identical except where Go allows otherwise: shift
// counts, comparison against an interface, and Coalesce.
func BinaryResultType(kind op.Kind, left, right reflect.Type, liftToNull bool) (reflect.Type, error) {
	subject := kind.String()
	lbase, lnull := NullableElem(left)
	if !lnull {
		lbase = left
	}
	rbase, rnull := NullableElem(right)
	if !rnull {
		rbase = right
	}
	switch {
	case kind.IsArithmetic():
		if left != right {
			return nil, typeErr(subject, "mismatched operand types %s and %s", left, right)
		}
		switch {
		case kind == op.Add && lbase.Kind() == reflect.String:
		case kind == op.Modulo && !isInteger(lbase):
			return nil, typeErr(subject, "operand type %s is not an integer", left)
		case !isNumeric(lbase):
			return nil, typeErr(subject, "operand type %s is not numeric", left)
		}
		return left, nil
	case kind.IsBitwise():
		if left != right {
			return nil, typeErr(subject, "mismatched operand types %s and %s", left, right)
		}
		if !isInteger(lbase) && !(kind != op.AndNot && lbase.Kind() == reflect.Bool) {
			return nil, typeErr(subject, "operand type %s is not an integer", left)
		}
		return left, nil
	case kind.IsShift():
		if !isInteger(lbase) || !isInteger(rbase) {
			return nil, typeErr(subject, "shift of %s by %s", left, right)
		}
		return left, nil
	case kind.IsLogical():
		if left.Kind() != reflect.Bool || right.Kind() != reflect.Bool {
			return nil, typeErr(subject, "operands %s and %s are not bool", left, right)
		}
		return boolType, nil
	case kind.IsComparison():
		if left != right && !(left.Kind() == reflect.Interface && right.Implements(left)) &&
			!(right.Kind() == reflect.Interface && left.Implements(right)) {
			return nil, typeErr(subject, "mismatched operand types %s and %s", left, right)
		}
		if kind.IsOrdering() {
			if !isOrdered(lbase) {
				return nil, typeErr(subject, "operand type %s is not ordered", left)
			}
		} else if !left.Comparable() {
			return nil, typeErr(subject, "operand type %s is not comparable", left)
		}
		if liftToNull && lnull {
			return reflect.PointerTo(boolType), nil
		}
		return boolType, nil
	case kind == op.Coalesce:
		if !isNilable(left) {
			return nil, typeErr(subject, "left operand type %s cannot be nil", left)
		}
		if lnull && right == lbase {
			return lbase, nil
		}
		if assignable(right, left) {
			return left, nil
		}
		return nil, typeErr(subject, "right operand type %s is not compatible with %s", right, left)
	case kind == op.ArrayIndex:
		switch left.Kind() {
		case reflect.Slice, reflect.Array, reflect.String:
		default:
			return nil, typeErr(subject, "operand type %s is not indexable", left)
		}
		if !isInteger(right) {
			return nil, typeErr(subject, "index type %s is not an integer", right)
		}
		elem, _ := elementType(left)
		return elem, nil
	case kind == op.Assign:
		if !assignable(right, left) {
			return nil, typeErr(subject, "cannot assign %s to %s", right, left)
		}
		return left, nil
	}
	return nil, argErr(subject, "not a binary operator")
}

// MakeBinary returns a builtin binary operator node.
func MakeBinary(kind op.Kind, left, right Expression) (*Binary, error) {
	return MakeBinaryMethod(kind, left, right, false, nil, nil)
}

// MakeBinaryMethod returns a binary node. A non-nil method implements the
// operator; conversion applies only to Coalesce and maps the left operand.
func MakeBinaryMethod(kind op.Kind, left, right Expression, liftToNull bool, method *Method, conversion *Lambda) (*Binary, error) {
	if !kind.IsBinary() {
		return nil, argErr(kind.String(), "not a binary operator")
	}
	if left == nil || right == nil {
		return nil, argErr(kind.String(), "nil operand")
	}
	if conversion != nil && kind != op.Coalesce {
		return nil, argErr(kind.String(), "conversion is only valid for Coalesce")
	}
	if kind == op.Assign {
		if err := checkAssignable(left); err != nil {
			return nil, err
		}
	}
	if method != nil {
		if len(method.Params) != 2 ||
			!assignable(left.Type(), method.Params[0]) || !assignable(right.Type(), method.Params[1]) {
			return nil, typeErr(method.String(), "method does not accept operands %s and %s", left.Type(), right.Type())
		}
		return &Binary{Op: kind, Left: left, Right: right, LiftToNull: liftToNull, Method: method, typ: method.Result}, nil
	}
	if conversion != nil {
		ct := conversion.Type()
		if ct.NumIn() != 1 || ct.NumOut() != 1 {
			return nil, typeErr(kind.String(), "conversion must take and return one value")
		}
		if !assignable(right.Type(), ct.Out(0)) {
			return nil, typeErr(kind.String(), "conversion result %s does not match %s", ct.Out(0), right.Type())
		}
		return &Binary{Op: kind, Left: left, Right: right, Conversion: conversion, typ: right.Type()}, nil
	}
	t, err := BinaryResultType(kind, left.Type(), right.Type(), liftToNull)
	if err != nil {
		return nil, err
	}
	return &Binary{Op: kind, Left: left, Right: right, LiftToNull: liftToNull, typ: t}, nil
}

func checkAssignable(e Expression) error {
	switch x := e.(type) {
	case *Parameter:
		return nil
	case *MemberAccess:
		switch m := x.Member.(type) {
		case *Field:
			return nil
		case *Property:
			if m.CanWrite() {
				return nil
			}
		}
		return typeErr(x.Member.MemberName(), "member is read-only")
	case *Index:
		if x.Indexer == nil {
			return nil
		}
		return typeErr(x.Indexer.Name, "indexer is read-only")
	case *Binary:
		if x.Op == op.ArrayIndex {
			return nil
		}
	}
	return argErr(e.NodeType().String(), "expression is not assignable")
}

// MakeConditional returns test ? ifTrue : ifFalse. A nil t requires both
// branches to have the same type; VoidType discards the branch values.
func MakeConditional(test, ifTrue, ifFalse Expression, t reflect.Type) (*Conditional, error) {
	if test == nil || ifTrue == nil || ifFalse == nil {
		return nil, argErr("Conditional", "nil operand")
	}
	if test.Type() != boolType {
		return nil, typeErr("Conditional", "test type %s is not bool", test.Type())
	}
	if t == nil {
		if ifTrue.Type() != ifFalse.Type() {
			return nil, typeErr("Conditional", "branch types %s and %s differ", ifTrue.Type(), ifFalse.Type())
		}
		t = ifTrue.Type()
	} else if !IsVoid(t) && (!assignable(ifTrue.Type(), t) || !assignable(ifFalse.Type(), t)) {
		return nil, typeErr("Conditional", "branches are not assignable to %s", t)
	}
	return &Conditional{Test: test, IfTrue: ifTrue, IfFalse: ifFalse, typ: t}, nil
}

// MakeLambda returns a lambda whose type is func(params) body.Type(),
// without a result when the body is void.
func MakeLambda(body Expression, params ...*Parameter) (*Lambda, error) {
	if body == nil {
		return nil, argErr("Lambda", "nil body")
	}
	in := make([]reflect.Type, len(params))
	for i, p := range params {
		if p == nil {
			return nil, argErr("Lambda", "nil parameter %d", i)
		}
		in[i] = p.Type()
	}
	var out []reflect.Type
	if !IsVoid(body.Type()) {
		out = []reflect.Type{body.Type()}
	}
	return &Lambda{Parameters: params, Body: body, typ: reflect.FuncOf(in, out, false)}, nil
}

// MakeLambdaType returns a lambda of an explicit func type.
func MakeLambdaType(t reflect.Type, name string, body Expression, params ...*Parameter) (*Lambda, error) {
	if t == nil || t.Kind() != reflect.Func {
		return nil, argErr("Lambda", "type %v is not a func type", t)
	}
	if body == nil {
		return nil, argErr("Lambda", "nil body")
	}
	if t.NumIn() != len(params) {
		return nil, typeErr("Lambda", "%s takes %d parameters, got %d", t, t.NumIn(), len(params))
	}
	for i, p := range params {
		if p == nil || p.Type() != t.In(i) {
			return nil, typeErr("Lambda", "parameter %d does not have type %s", i, t.In(i))
		}
	}
	if t.NumOut() > 1 {
		return nil, typeErr("Lambda", "%s has more than one result", t)
	}
	if t.NumOut() == 1 && !assignable(body.Type(), t.Out(0)) {
		return nil, typeErr("Lambda", "body type %s is not assignable to %s", body.Type(), t.Out(0))
	}
	return &Lambda{Name: name, Parameters: params, Body: body, typ: t}, nil
}

// FuncResult returns the single result of a func type, VoidType for none.
func FuncResult(t reflect.Type) (reflect.Type, error) {
	switch t.NumOut() {
	case 0:
		return VoidType, nil
	case 1:
		return t.Out(0), nil
	}
	return nil, typeErr(t.String(), "multiple results")
}

// MakeInvoke calls a function-typed expression.
func MakeInvoke(fn Expression, args ...Expression) (*Invocation, error) {
	if fn == nil {
		return nil, argErr("Invoke", "nil function")
	}
	ft := fn.Type()
	if ft.Kind() != reflect.Func {
		return nil, typeErr("Invoke", "%s is not a func type", ft)
	}
	if err := checkArgs("Invoke", funcParams(ft), args); err != nil {
		return nil, err
	}
	rt, err := FuncResult(ft)
	if err != nil {
		return nil, err
	}
	return &Invocation{Expression: fn, Arguments: args, typ: rt}, nil
}

func funcParams(ft reflect.Type) []reflect.Type {
	out := make([]reflect.Type, ft.NumIn())
	for i := range out {
		out[i] = ft.In(i)
	}
	return out
}

// checkArgs validates call arguments. Variadic parameters take their slice
// as one argument.
func checkArgs(subject string, params []reflect.Type, args []Expression) error {
	if len(params) != len(args) {
		return typeErr(subject, "want %d arguments, got %d", len(params), len(args))
	}
	for i, a := range args {
		if a == nil {
			return argErr(subject, "nil argument %d", i)
		}
		if !assignable(a.Type(), params[i]) {
			return typeErr(subject, "argument %d of type %s is not assignable to %s", i, a.Type(), params[i])
		}
	}
	return nil
}

// MakeCall calls m. obj is nil for package functions.
func MakeCall(obj Expression, m *Method, args ...Expression) (*Call, error) {
	if m == nil {
		return nil, argErr("Call", "nil method")
	}
	if m.IsStatic() != (obj == nil) {
		return nil, argErr(m.String(), "receiver mismatch")
	}
	if obj != nil && !assignable(obj.Type(), m.Declaring) {
		return nil, typeErr(m.String(), "receiver of type %s", obj.Type())
	}
	if err := checkArgs(m.String(), m.Params, args); err != nil {
		return nil, err
	}
	return &Call{Object: obj, Method: m, Arguments: args, typ: m.Result}, nil
}

// MakeMethodCall looks up the named method on obj's type and calls it.
func MakeMethodCall(obj Expression, name string, args ...Expression) (*Call, error) {
	if obj == nil {
		return nil, argErr(name, "nil receiver")
	}
	m, err := MethodOf(obj.Type(), name)
	if err != nil {
		return nil, slim.NewResolutionError(name, "%v", err)
	}
	return MakeCall(obj, m, args...)
}

// MakeMemberAccess reads a field or a parameterless property.
func MakeMemberAccess(obj Expression, m Member) (*MemberAccess, error) {
	if obj == nil || m == nil {
		return nil, argErr("MemberAccess", "nil operand")
	}
	var t reflect.Type
	switch x := m.(type) {
	case *Field:
		if derefStruct(obj.Type()) != x.Declaring {
			return nil, typeErr(x.Name, "field of %s accessed on %s", x.Declaring, obj.Type())
		}
		t = x.Type
	case *Property:
		if len(x.IndexTypes) > 0 {
			return nil, typeErr(x.Name, "indexer used as a property")
		}
		if obj.Type() != x.Declaring && !assignable(obj.Type(), x.Declaring) {
			return nil, typeErr(x.Name, "property of %s accessed on %s", x.Declaring, obj.Type())
		}
		t = x.Type
	default:
		return nil, argErr(m.MemberName(), "member is not a field or property")
	}
	return &MemberAccess{Expression: obj, Member: m, typ: t}, nil
}

// MakeField reads the named field of obj.
func MakeField(obj Expression, name string) (*MemberAccess, error) {
	if obj == nil {
		return nil, argErr(name, "nil operand")
	}
	f, err := FieldOf(obj.Type(), name)
	if err != nil {
		return nil, slim.NewResolutionError(name, "%v", err)
	}
	return MakeMemberAccess(obj, f)
}

// MakeProperty reads the named property of obj.
func MakeProperty(obj Expression, name string) (*MemberAccess, error) {
	if obj == nil {
		return nil, argErr(name, "nil operand")
	}
	p, err := PropertyOf(obj.Type(), name)
	if err != nil {
		return nil, slim.NewResolutionError(name, "%v", err)
	}
	return MakeMemberAccess(obj, p)
}

// MakeIndex indexes obj through indexer, or with builtin indexing of
// slices, arrays, strings and maps when indexer is nil.
func MakeIndex(obj Expression, indexer *Property, args ...Expression) (*Index, error) {
	if obj == nil {
		return nil, argErr("Index", "nil object")
	}
	if indexer != nil {
		if err := checkArgs(indexer.Name, indexer.IndexTypes, args); err != nil {
			return nil, err
		}
		return &Index{Object: obj, Indexer: indexer, Arguments: args, typ: indexer.Type}, nil
	}
	ot := obj.Type()
	if len(args) != 1 || args[0] == nil {
		return nil, argErr("Index", "builtin indexing takes one argument")
	}
	switch ot.Kind() {
	case reflect.Map:
		if !assignable(args[0].Type(), ot.Key()) {
			return nil, typeErr("Index", "key type %s is not assignable to %s", args[0].Type(), ot.Key())
		}
	case reflect.Slice, reflect.Array, reflect.String:
		if !isInteger(args[0].Type()) {
			return nil, typeErr("Index", "index type %s is not an integer", args[0].Type())
		}
	default:
		return nil, typeErr("Index", "%s is not indexable", ot)
	}
	elem, _ := elementType(ot)
	return &Index{Object: obj, Arguments: args, typ: elem}, nil
}

// MakeNew calls a constructor.
func MakeNew(ctor *Constructor, args ...Expression) (*New, error) {
	if ctor == nil {
		return nil, argErr("New", "nil constructor")
	}
	if err := checkArgs("new "+ctor.Type.String(), ctor.ParamTypes(), args); err != nil {
		return nil, err
	}
	return &New{Constructor: ctor, Arguments: args, typ: ctor.Type}, nil
}

// MakeNewZero creates the zero value of t; maps and channels are made.
func MakeNewZero(t reflect.Type) *New {
	return &New{typ: t}
}

// MakeNewArrayInit creates a []elem from the given elements.
func MakeNewArrayInit(elem reflect.Type, exprs ...Expression) (*NewArray, error) {
	if elem == nil {
		return nil, argErr("NewArrayInit", "nil element type")
	}
	for i, e := range exprs {
		if e == nil || !assignable(e.Type(), elem) {
			return nil, typeErr("NewArrayInit", "element %d is not assignable to %s", i, elem)
		}
	}
	return &NewArray{Op: op.NewArrayInit, Expressions: exprs, typ: reflect.SliceOf(elem)}, nil
}

// MakeNewArrayBounds creates a []elem of the given length.
func MakeNewArrayBounds(elem reflect.Type, length Expression) (*NewArray, error) {
	if elem == nil || length == nil {
		return nil, argErr("NewArrayBounds", "nil operand")
	}
	if !isInteger(length.Type()) {
		return nil, typeErr("NewArrayBounds", "length type %s is not an integer", length.Type())
	}
	return &NewArray{Op: op.NewArrayBounds, Expressions: []Expression{length}, typ: reflect.SliceOf(elem)}, nil
}

// MakeElementInit validates one collection initializer against the
// collection type.
func MakeElementInit(collection reflect.Type, add *Method, args ...Expression) (*ElementInit, error) {
	if add != nil {
		if err := checkArgs(add.String(), add.Params, args); err != nil {
			return nil, err
		}
		return &ElementInit{AddMethod: add, Arguments: args}, nil
	}
	switch collection.Kind() {
	case reflect.Slice:
		if err := checkArgs("append", []reflect.Type{collection.Elem()}, args); err != nil {
			return nil, err
		}
	case reflect.Map:
		if err := checkArgs("map", []reflect.Type{collection.Key(), collection.Elem()}, args); err != nil {
			return nil, err
		}
	default:
		return nil, typeErr(collection.String(), "collection initializer needs an add method")
	}
	return &ElementInit{Arguments: args}, nil
}

// MakeListInit creates a collection and adds elements to it.
func MakeListInit(n *New, inits ...*ElementInit) (*ListInit, error) {
	if n == nil {
		return nil, argErr("ListInit", "nil new expression")
	}
	for i, init := range inits {
		if init == nil {
			return nil, argErr("ListInit", "nil initializer %d", i)
		}
	}
	return &ListInit{New: n, Initializers: inits}, nil
}

// Bind returns an assignment binding.
func Bind(m Member, e Expression) (*Assignment, error) {
	mt, ok := MemberType(m)
	if !ok {
		return nil, argErr("Bind", "member is not a field or property")
	}
	if e == nil || !assignable(e.Type(), mt) {
		return nil, typeErr(m.MemberName(), "value is not assignable to %s", mt)
	}
	if p, ok := m.(*Property); ok && !p.CanWrite() {
		return nil, typeErr(m.MemberName(), "property is read-only")
	}
	return &Assignment{Member: m, Expression: e}, nil
}

// MakeMemberInit creates a value and initializes its members.
func MakeMemberInit(n *New, bindings ...MemberBinding) (*MemberInit, error) {
	if n == nil {
		return nil, argErr("MemberInit", "nil new expression")
	}
	for i, b := range bindings {
		if b == nil {
			return nil, argErr("MemberInit", "nil binding %d", i)
		}
		if b.BoundMember().DeclaringType() != n.Type() {
			return nil, typeErr(b.BoundMember().MemberName(), "member of %s bound on %s", b.BoundMember().DeclaringType(), n.Type())
		}
	}
	return &MemberInit{New: n, Bindings: bindings}, nil
}

// MakeTypeIs tests whether e's dynamic type is assignable to t.
func MakeTypeIs(e Expression, t reflect.Type) (*TypeBinary, error) {
	return makeTypeBinary(op.TypeIs, e, t)
}

// MakeTypeEqual tests whether e's dynamic type is exactly t.
func MakeTypeEqual(e Expression, t reflect.Type) (*TypeBinary, error) {
	return makeTypeBinary(op.TypeEqual, e, t)
}

func makeTypeBinary(kind op.Kind, e Expression, t reflect.Type) (*TypeBinary, error) {
	if e == nil || t == nil {
		return nil, argErr(kind.String(), "nil operand")
	}
	return &TypeBinary{Op: kind, Expression: e, TypeOperand: t}, nil
}

// MakeBlock returns a block. A nil t takes the last expression's type.
func MakeBlock(t reflect.Type, vars []*Parameter, exprs ...Expression) (*Block, error) {
	if len(exprs) == 0 {
		return nil, argErr("Block", "empty block")
	}
	for i, e := range exprs {
		if e == nil {
			return nil, argErr("Block", "nil expression %d", i)
		}
	}
	last := exprs[len(exprs)-1].Type()
	if t == nil {
		t = last
	} else if !IsVoid(t) && !assignable(last, t) {
		return nil, typeErr("Block", "last expression type %s is not assignable to %s", last, t)
	}
	return &Block{Variables: vars, Expressions: exprs, typ: t}, nil
}

// MakeLabelTarget returns a new label target; a nil t means void.
func MakeLabelTarget(name string, t reflect.Type) *LabelTarget {
	if t == nil {
		t = VoidType
	}
	return &LabelTarget{Name: name, Type: t}
}

// MakeLoop returns a loop.
func MakeLoop(body Expression, brk, cont *LabelTarget) (*Loop, error) {
	if body == nil {
		return nil, argErr("Loop", "nil body")
	}
	if cont != nil && !IsVoid(cont.Type) {
		return nil, typeErr("Loop", "continue label must be void")
	}
	return &Loop{Body: body, BreakLabel: brk, ContinueLabel: cont}, nil
}

// MakeGoto returns a jump. A nil t means void.
func MakeGoto(kind op.GotoKind, target *LabelTarget, value Expression, t reflect.Type) (*Goto, error) {
	if target == nil {
		return nil, argErr(kind.String(), "nil target")
	}
	if IsVoid(target.Type) != (value == nil) {
		return nil, typeErr(kind.String(), "value does not match label %q of type %s", target.Name, target.Type)
	}
	if value != nil && !assignable(value.Type(), target.Type) {
		return nil, typeErr(kind.String(), "value of type %s does not match label type %s", value.Type(), target.Type)
	}
	if t == nil {
		t = VoidType
	}
	return &Goto{Kind: kind, Target: target, Value: value, typ: t}, nil
}

// MakeLabel places target. defaultValue is required for non-void targets.
func MakeLabel(target *LabelTarget, defaultValue Expression) (*Label, error) {
	if target == nil {
		return nil, argErr("Label", "nil target")
	}
	if !IsVoid(target.Type) && (defaultValue == nil || !assignable(defaultValue.Type(), target.Type)) {
		return nil, typeErr("Label", "label %q needs a default value of type %s", target.Name, target.Type)
	}
	return &Label{Target: target, DefaultValue: defaultValue}, nil
}

// MakeCatch returns a handler for panics whose value matches test.
func MakeCatch(test reflect.Type, variable *Parameter, body, filter Expression) (*CatchBlock, error) {
	if test == nil || body == nil {
		return nil, argErr("Catch", "nil operand")
	}
	if variable != nil && variable.Type() != test {
		return nil, typeErr("Catch", "variable type %s does not match %s", variable.Type(), test)
	}
	if filter != nil && filter.Type() != boolType {
		return nil, typeErr("Catch", "filter type %s is not bool", filter.Type())
	}
	return &CatchBlock{Test: test, Variable: variable, Body: body, Filter: filter}, nil
}

// MakeTry returns a try expression. A nil t takes the body's type.
func MakeTry(t reflect.Type, body Expression, handlers []*CatchBlock, finally, fault Expression) (*Try, error) {
	if body == nil {
		return nil, argErr("Try", "nil body")
	}
	if fault != nil && (finally != nil || len(handlers) > 0) {
		return nil, argErr("Try", "fault cannot be combined with handlers or finally")
	}
	if len(handlers) == 0 && finally == nil && fault == nil {
		return nil, argErr("Try", "try needs a handler, finally or fault")
	}
	if t == nil {
		t = body.Type()
	}
	if !IsVoid(t) {
		if !assignable(body.Type(), t) {
			return nil, typeErr("Try", "body type %s is not assignable to %s", body.Type(), t)
		}
		for i, h := range handlers {
			if !assignable(h.Body.Type(), t) {
				return nil, typeErr("Try", "handler %d type %s is not assignable to %s", i, h.Body.Type(), t)
			}
		}
	}
	return &Try{Body: body, Handlers: handlers, Finally: finally, Fault: fault, typ: t}, nil
}

// MakeSwitchCase returns a case matching any of tests.
func MakeSwitchCase(body Expression, tests ...Expression) (*SwitchCase, error) {
	if body == nil || len(tests) == 0 {
		return nil, argErr("SwitchCase", "case needs a body and test values")
	}
	return &SwitchCase{TestValues: tests, Body: body}, nil
}

// MakeSwitch returns a switch. A nil t takes the first case's type, or the
// default body's when there are no cases.
func MakeSwitch(t reflect.Type, value Expression, cases []*SwitchCase, defaultBody Expression, comparison *Method) (*Switch, error) {
	if value == nil {
		return nil, argErr("Switch", "nil switch value")
	}
	if len(cases) == 0 && defaultBody == nil {
		return nil, argErr("Switch", "switch needs cases or a default")
	}
	if t == nil {
		if len(cases) > 0 {
			t = cases[0].Body.Type()
		} else {
			t = defaultBody.Type()
		}
	}
	for i, c := range cases {
		if !IsVoid(t) && !assignable(c.Body.Type(), t) {
			return nil, typeErr("Switch", "case %d type %s is not assignable to %s", i, c.Body.Type(), t)
		}
		for _, tv := range c.TestValues {
			if comparison == nil && tv.Type() != value.Type() {
				return nil, typeErr("Switch", "test value type %s does not match %s", tv.Type(), value.Type())
			}
		}
	}
	if defaultBody != nil && !IsVoid(t) && !assignable(defaultBody.Type(), t) {
		return nil, typeErr("Switch", "default type %s is not assignable to %s", defaultBody.Type(), t)
	}
	if comparison != nil && (len(comparison.Params) != 2 || comparison.Result != boolType) {
		return nil, typeErr(comparison.String(), "comparison must be func(a, b) bool")
	}
	return &Switch{SwitchValue: value, Cases: cases, DefaultBody: defaultBody, Comparison: comparison, typ: t}, nil
}

// Must panics if err is non-nil and returns v otherwise. It keeps test and
// fixture construction terse.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(fmt.Sprintf("expr: %v", err))
	}
	return v
}
