package expr

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/roach88/slim/internal/op"
)

// ErrNilDereference is panicked when a nil pointer or nullable is read
// through.
var ErrNilDereference = errors.New("invalid memory address or nil pointer dereference")

// PanicError reports a panic that escaped evaluation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("unrecovered panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// evalError carries an interpreter error out of a compiled function, where
// there is no error result to return it through.
type evalError struct {
	err error
}

func (e *evalError) Error() string { return e.err.Error() }
func (e *evalError) Unwrap() error { return e.err }

// jump is a pending Goto, propagated as an error until a block, loop or
// lambda owning its target handles it.
type jump struct {
	target *LabelTarget
	value  reflect.Value
}

func (j *jump) Error() string {
	return fmt.Sprintf("jump to label %q escaped its scope", j.target.Name)
}

// scope holds addressable variable slots.
type scope struct {
	vars   map[*Parameter]reflect.Value
	parent *scope
}

func (s *scope) child(params []*Parameter) *scope {
	if len(params) == 0 {
		return s
	}
	c := &scope{vars: make(map[*Parameter]reflect.Value, len(params)), parent: s}
	for _, p := range params {
		c.vars[p] = reflect.New(p.Type()).Elem()
	}
	return c
}

func (s *scope) lookup(p *Parameter) (reflect.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[p]; ok {
			return v, true
		}
	}
	return reflect.Value{}, false
}

func globalScope(globals map[*Parameter]any) (*scope, error) {
	s := &scope{vars: make(map[*Parameter]reflect.Value, len(globals))}
	for p, v := range globals {
		if p == nil {
			return nil, argErr("Evaluate", "nil global parameter")
		}
		slot := reflect.New(p.Type()).Elem()
		if v != nil {
			rv := reflect.ValueOf(v)
			if !assignable(rv.Type(), p.Type()) {
				return nil, typeErr(p.Name, "global value of type %s is not assignable to %s", rv.Type(), p.Type())
			}
			slot.Set(rv)
		}
		s.vars[p] = slot
	}
	return s, nil
}

// Evaluate evaluates e. globals binds the free parameters of e.
// Panics raised by the evaluated code and not recovered by a Try are
// returned as *PanicError.
func Evaluate(e Expression, globals map[*Parameter]any) (result any, err error) {
	if e == nil {
		return nil, argErr("Evaluate", "nil expression")
	}
	env, err := globalScope(globals)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			var ee *evalError
			if rerr, ok := r.(error); ok && errors.As(rerr, &ee) {
				err = ee.err
				return
			}
			err = &PanicError{Value: r}
		}
	}()
	v, err := eval(e, env)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() || IsVoid(e.Type()) {
		return nil, nil
	}
	return v.Interface(), nil
}

// Compile turns a lambda into a Go function value of the lambda's type.
// Interpreter errors inside the returned function are panicked as errors.
func Compile(l *Lambda, globals map[*Parameter]any) (any, error) {
	if l == nil {
		return nil, argErr("Compile", "nil lambda")
	}
	env, err := globalScope(globals)
	if err != nil {
		return nil, err
	}
	return makeFunc(l, env).Interface(), nil
}

// CompileFunc is Compile with the result asserted to F.
func CompileFunc[F any](l *Lambda, globals map[*Parameter]any) (F, error) {
	var zero F
	fn, err := Compile(l, globals)
	if err != nil {
		return zero, err
	}
	f, ok := fn.(F)
	if !ok {
		return zero, typeErr("Compile", "lambda of type %s is not a %T", l.Type(), zero)
	}
	return f, nil
}

func makeFunc(l *Lambda, env *scope) reflect.Value {
	ft := l.Type()
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		inner := env.child(l.Parameters)
		for i, p := range l.Parameters {
			inner.vars[p].Set(args[i])
		}
		v, err := eval(l.Body, inner)
		if err != nil {
			var j *jump
			if errors.As(err, &j) && ownsLabel(l.Body, j.target) {
				v, err = j.value, nil
			}
		}
		if err != nil {
			panic(&evalError{err: err})
		}
		if ft.NumOut() == 0 {
			return nil
		}
		return []reflect.Value{conform(v, ft.Out(0))}
	})
}

func ownsLabel(body Expression, target *LabelTarget) bool {
	l, ok := body.(*Label)
	return ok && l.Target == target
}

func eval(e Expression, env *scope) (reflect.Value, error) {
	switch x := e.(type) {
	case *Constant:
		if x.Value == nil {
			return reflect.Zero(x.typ), nil
		}
		return conform(reflect.ValueOf(x.Value), x.typ), nil
	case *Default:
		if IsVoid(x.typ) {
			return reflect.Value{}, nil
		}
		return reflect.Zero(x.typ), nil
	case *Parameter:
		slot, ok := env.lookup(x)
		if !ok {
			return reflect.Value{}, argErr(x.Name, "unbound parameter")
		}
		return addressableCopy(slot), nil
	case *Unary:
		return evalUnary(x, env)
	case *Binary:
		return evalBinary(x, env)
	case *Conditional:
		t, err := eval(x.Test, env)
		if err != nil {
			return reflect.Value{}, err
		}
		branch := x.IfFalse
		if t.Bool() {
			branch = x.IfTrue
		}
		v, err := eval(branch, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return conform(v, x.typ), nil
	case *Lambda:
		return makeFunc(x, env), nil
	case *Invocation:
		fn, err := eval(x.Expression, env)
		if err != nil {
			return reflect.Value{}, err
		}
		args, err := evalArgs(x.Arguments, funcParams(fn.Type()), env)
		if err != nil {
			return reflect.Value{}, err
		}
		return callValue(fn, args, x.typ), nil
	case *Call:
		return evalCall(x, env)
	case *MemberAccess:
		obj, err := eval(x.Expression, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return readMember(obj, x.Member), nil
	case *Index:
		return evalIndex(x, env)
	case *New:
		return evalNew(x, env)
	case *NewArray:
		return evalNewArray(x, env)
	case *ListInit:
		coll, err := evalNew(x.New, env)
		if err != nil {
			return reflect.Value{}, err
		}
		slot := addressable(coll)
		for _, init := range x.Initializers {
			if err := addElement(slot, init, env); err != nil {
				return reflect.Value{}, err
			}
		}
		return slot, nil
	case *MemberInit:
		base, err := evalNew(x.New, env)
		if err != nil {
			return reflect.Value{}, err
		}
		slot := addressable(base)
		for _, b := range x.Bindings {
			if err := applyBinding(slot, b, env); err != nil {
				return reflect.Value{}, err
			}
		}
		return slot, nil
	case *TypeBinary:
		v, err := eval(x.Expression, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(typeTest(x.Op, v, x.TypeOperand)), nil
	case *Block:
		return evalBlock(x, env)
	case *Loop:
		return evalLoop(x, env)
	case *Goto:
		var v reflect.Value
		if x.Value != nil {
			var err error
			if v, err = eval(x.Value, env); err != nil {
				return reflect.Value{}, err
			}
			v = conform(v, x.Target.Type)
		}
		return reflect.Value{}, &jump{target: x.Target, value: v}
	case *Label:
		if x.DefaultValue == nil {
			return reflect.Value{}, nil
		}
		v, err := eval(x.DefaultValue, env)
		if err != nil {
			return reflect.Value{}, err
		}
		return conform(v, x.Target.Type), nil
	case *Try:
		return evalTry(x, env)
	case *Switch:
		return evalSwitch(x, env)
	case nil:
		return reflect.Value{}, argErr("Evaluate", "nil expression")
	}
	return reflect.Value{}, argErr(e.NodeType().String(), "unsupported node")
}

func evalArgs(args []Expression, params []reflect.Type, env *scope) ([]reflect.Value, error) {
	out := make([]reflect.Value, len(args))
	for i, a := range args {
		v, err := eval(a, env)
		if err != nil {
			return nil, err
		}
		if i < len(params) {
			v = conform(v, params[i])
		}
		out[i] = v
	}
	return out, nil
}

// callValue calls fn, passing a variadic tail as a slice.
func callValue(fn reflect.Value, args []reflect.Value, result reflect.Type) reflect.Value {
	if fn.IsNil() {
		panic(ErrNilDereference)
	}
	var out []reflect.Value
	if fn.Type().IsVariadic() {
		out = fn.CallSlice(args)
	} else {
		out = fn.Call(args)
	}
	if len(out) == 0 || IsVoid(result) {
		return reflect.Value{}
	}
	return out[0]
}

func methodValue(m *Method, recv reflect.Value) reflect.Value {
	if m.IsStatic() {
		return m.Func
	}
	if recv.Kind() == reflect.Interface && recv.IsNil() {
		panic(ErrNilDereference)
	}
	fn := recv.MethodByName(m.Name)
	if !fn.IsValid() && recv.CanAddr() {
		fn = recv.Addr().MethodByName(m.Name)
	}
	if !fn.IsValid() {
		panic(fmt.Errorf("method %s not found on %s", m.Name, recv.Type()))
	}
	return fn
}

func evalCall(x *Call, env *scope) (reflect.Value, error) {
	var recv reflect.Value
	if x.Object != nil {
		var err error
		if recv, err = eval(x.Object, env); err != nil {
			return reflect.Value{}, err
		}
	}
	args, err := evalArgs(x.Arguments, x.Method.Params, env)
	if err != nil {
		return reflect.Value{}, err
	}
	return callValue(methodValue(x.Method, recv), args, x.typ), nil
}

func deref(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			panic(ErrNilDereference)
		}
		v = v.Elem()
	}
	return v
}

func readMember(obj reflect.Value, m Member) reflect.Value {
	switch x := m.(type) {
	case *Field:
		return deref(obj).FieldByIndex(x.Index)
	case *Property:
		if x.IsField() {
			return deref(obj).FieldByIndex(x.fieldIndex)
		}
		return methodValue(&Method{Declaring: x.Declaring, Name: x.Name}, obj).Call(nil)[0]
	}
	panic(fmt.Errorf("member %s is not readable", m.MemberName()))
}

// memberSlot returns the settable location of a field-backed member.
func memberSlot(obj reflect.Value, m Member) (reflect.Value, error) {
	var index []int
	switch x := m.(type) {
	case *Field:
		index = x.Index
	case *Property:
		if !x.IsField() {
			return reflect.Value{}, argErr(x.Name, "property is read-only")
		}
		index = x.fieldIndex
	default:
		return reflect.Value{}, argErr(m.MemberName(), "member is not assignable")
	}
	target := obj
	if target.Kind() == reflect.Pointer {
		if target.IsNil() {
			panic(ErrNilDereference)
		}
		target = target.Elem()
	}
	slot := target.FieldByIndex(index)
	if !slot.CanSet() {
		return reflect.Value{}, argErr(m.MemberName(), "cannot assign to member of a non-addressable value")
	}
	return slot, nil
}

func evalIndex(x *Index, env *scope) (reflect.Value, error) {
	obj, err := eval(x.Object, env)
	if err != nil {
		return reflect.Value{}, err
	}
	if x.Indexer != nil {
		args, err := evalArgs(x.Arguments, x.Indexer.IndexTypes, env)
		if err != nil {
			return reflect.Value{}, err
		}
		fn := methodValue(&Method{Declaring: x.Indexer.Declaring, Name: x.Indexer.Name}, obj)
		return fn.Call(args)[0], nil
	}
	key, err := eval(x.Arguments[0], env)
	if err != nil {
		return reflect.Value{}, err
	}
	if obj.Kind() == reflect.Map {
		v := obj.MapIndex(conform(key, obj.Type().Key()))
		if !v.IsValid() {
			return reflect.Zero(x.typ), nil
		}
		return v, nil
	}
	return indexValue(obj, key), nil
}

func indexValue(obj, idx reflect.Value) reflect.Value {
	var i int
	if isUnsigned(idx.Type()) {
		i = int(idx.Uint())
	} else {
		i = int(idx.Int())
	}
	if obj.Kind() == reflect.Pointer {
		obj = deref(obj)
	}
	return obj.Index(i)
}

func evalNew(x *New, env *scope) (reflect.Value, error) {
	if x.Constructor == nil {
		switch x.typ.Kind() {
		case reflect.Map:
			return reflect.MakeMap(x.typ), nil
		case reflect.Chan:
			return reflect.MakeChan(x.typ, 0), nil
		}
		return reflect.New(x.typ).Elem(), nil
	}
	args, err := evalArgs(x.Arguments, x.Constructor.ParamTypes(), env)
	if err != nil {
		return reflect.Value{}, err
	}
	return x.Constructor.Func.Call(args)[0], nil
}

func evalNewArray(x *NewArray, env *scope) (reflect.Value, error) {
	if x.Op == op.NewArrayBounds {
		n, err := eval(x.Expressions[0], env)
		if err != nil {
			return reflect.Value{}, err
		}
		length := int(n.Convert(intType).Int())
		if length < 0 {
			panic(fmt.Errorf("makeslice: len out of range"))
		}
		return reflect.MakeSlice(x.typ, length, length), nil
	}
	out := reflect.MakeSlice(x.typ, len(x.Expressions), len(x.Expressions))
	for i, e := range x.Expressions {
		v, err := eval(e, env)
		if err != nil {
			return reflect.Value{}, err
		}
		out.Index(i).Set(conform(v, x.typ.Elem()))
	}
	return out, nil
}

// addressable returns v when it is settable and a settable copy otherwise.
func addressable(v reflect.Value) reflect.Value {
	if v.CanSet() {
		return v
	}
	return addressableCopy(v)
}

// addressableCopy snapshots a variable so later assignments to the
// variable do not alias values already read from it.
func addressableCopy(v reflect.Value) reflect.Value {
	slot := reflect.New(v.Type()).Elem()
	slot.Set(v)
	return slot
}

func addElement(coll reflect.Value, init *ElementInit, env *scope) error {
	if init.AddMethod != nil {
		args, err := evalArgs(init.Arguments, init.AddMethod.Params, env)
		if err != nil {
			return err
		}
		callValue(methodValue(init.AddMethod, coll), args, VoidType)
		return nil
	}
	target := coll
	if target.Kind() == reflect.Pointer {
		target = deref(target)
	}
	switch target.Kind() {
	case reflect.Slice:
		v, err := eval(init.Arguments[0], env)
		if err != nil {
			return err
		}
		target.Set(reflect.Append(target, conform(v, target.Type().Elem())))
	case reflect.Map:
		k, err := eval(init.Arguments[0], env)
		if err != nil {
			return err
		}
		v, err := eval(init.Arguments[1], env)
		if err != nil {
			return err
		}
		if target.IsNil() {
			target.Set(reflect.MakeMap(target.Type()))
		}
		target.SetMapIndex(conform(k, target.Type().Key()), conform(v, target.Type().Elem()))
	default:
		return argErr(coll.Type().String(), "not a collection")
	}
	return nil
}

func applyBinding(obj reflect.Value, b MemberBinding, env *scope) error {
	slot, err := memberSlot(obj, b.BoundMember())
	if err != nil {
		return err
	}
	switch x := b.(type) {
	case *Assignment:
		v, err := eval(x.Expression, env)
		if err != nil {
			return err
		}
		slot.Set(conform(v, slot.Type()))
	case *MemberMemberBinding:
		if slot.Kind() == reflect.Pointer && slot.IsNil() {
			slot.Set(reflect.New(slot.Type().Elem()))
		}
		for _, nb := range x.Bindings {
			if err := applyBinding(slot, nb, env); err != nil {
				return err
			}
		}
	case *MemberListBinding:
		for _, init := range x.Initializers {
			if err := addElement(slot, init, env); err != nil {
				return err
			}
		}
	}
	return nil
}

// dynamic unwraps an interface value; ok is false for nil.
func dynamic(v reflect.Value) (reflect.Value, bool) {
	if !v.IsValid() {
		return v, false
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v, false
		}
		v = v.Elem()
	}
	if isNilable(v.Type()) && v.IsNil() {
		return v, false
	}
	return v, true
}

func typeTest(kind op.Kind, v reflect.Value, t reflect.Type) bool {
	d, ok := dynamic(v)
	if !ok {
		return false
	}
	if kind == op.TypeEqual {
		return d.Type() == t
	}
	return d.Type().AssignableTo(t)
}

func evalBlock(x *Block, env *scope) (reflect.Value, error) {
	inner := env.child(x.Variables)
	var last reflect.Value
	for i := 0; i < len(x.Expressions); i++ {
		v, err := eval(x.Expressions[i], inner)
		if err != nil {
			var j *jump
			if !errors.As(err, &j) {
				return reflect.Value{}, err
			}
			idx := labelIndex(x.Expressions, j.target)
			if idx < 0 {
				return reflect.Value{}, err
			}
			last, i = j.value, idx
			continue
		}
		last = v
	}
	if IsVoid(x.typ) {
		return reflect.Value{}, nil
	}
	return conform(last, x.typ), nil
}

func labelIndex(exprs []Expression, target *LabelTarget) int {
	for i, e := range exprs {
		if l, ok := e.(*Label); ok && l.Target == target {
			return i
		}
	}
	return -1
}

func evalLoop(x *Loop, env *scope) (reflect.Value, error) {
	for {
		_, err := eval(x.Body, env)
		if err == nil {
			continue
		}
		var j *jump
		if !errors.As(err, &j) {
			return reflect.Value{}, err
		}
		switch {
		case x.BreakLabel != nil && j.target == x.BreakLabel:
			if IsVoid(x.BreakLabel.Type) {
				return reflect.Value{}, nil
			}
			return conform(j.value, x.BreakLabel.Type), nil
		case x.ContinueLabel != nil && j.target == x.ContinueLabel:
			continue
		}
		return reflect.Value{}, err
	}
}

// protect runs f and reports a recovered panic. Interpreter errors
// travelling out of compiled functions are not user panics and keep
// unwinding.
func protect(f func() (reflect.Value, error)) (v reflect.Value, value any, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, internal := r.(*evalError); internal {
				panic(r)
			}
			panicked, value = true, r
		}
	}()
	v, err = f()
	return v, nil, false, err
}

func catches(test reflect.Type, value any) bool {
	vt := reflect.TypeOf(value)
	if vt == nil {
		return false
	}
	if test.Kind() == reflect.Interface {
		return vt.Implements(test)
	}
	return vt == test
}

func evalTry(x *Try, env *scope) (result reflect.Value, err error) {
	if x.Finally != nil {
		defer func() {
			if _, ferr := eval(x.Finally, env); ferr != nil && err == nil {
				err = ferr
			}
		}()
	}
	v, value, panicked, err := protect(func() (reflect.Value, error) {
		return eval(x.Body, env)
	})
	if !panicked {
		if err != nil || IsVoid(x.typ) {
			return reflect.Value{}, err
		}
		return conform(v, x.typ), nil
	}
	if x.Fault != nil {
		if _, ferr := eval(x.Fault, env); ferr != nil {
			return reflect.Value{}, ferr
		}
		panic(value)
	}
	for _, h := range x.Handlers {
		if !catches(h.Test, value) {
			continue
		}
		henv := env
		if h.Variable != nil {
			henv = env.child([]*Parameter{h.Variable})
			henv.vars[h.Variable].Set(conform(reflect.ValueOf(value), h.Test))
		}
		if h.Filter != nil {
			ok, err := eval(h.Filter, henv)
			if err != nil {
				return reflect.Value{}, err
			}
			if !ok.Bool() {
				continue
			}
		}
		hv, err := eval(h.Body, henv)
		if err != nil || IsVoid(x.typ) {
			return reflect.Value{}, err
		}
		return conform(hv, x.typ), nil
	}
	panic(value)
}

func evalSwitch(x *Switch, env *scope) (reflect.Value, error) {
	sv, err := eval(x.SwitchValue, env)
	if err != nil {
		return reflect.Value{}, err
	}
	body := x.DefaultBody
cases:
	for _, c := range x.Cases {
		for _, te := range c.TestValues {
			tv, err := eval(te, env)
			if err != nil {
				return reflect.Value{}, err
			}
			if switchMatch(x.Comparison, sv, tv) {
				body = c.Body
				break cases
			}
		}
	}
	if body == nil {
		return reflect.Value{}, nil
	}
	v, err := eval(body, env)
	if err != nil || IsVoid(x.typ) {
		return reflect.Value{}, err
	}
	return conform(v, x.typ), nil
}

func switchMatch(cmp *Method, a, b reflect.Value) bool {
	if cmp == nil {
		return valuesEqual(a, b)
	}
	args := []reflect.Value{conform(a, cmp.Params[0]), conform(b, cmp.Params[1])}
	return callValue(methodValue(cmp, reflect.Value{}), args, boolType).Bool()
}

// conform converts v to a value whose type is exactly t.
func conform(v reflect.Value, t reflect.Type) reflect.Value {
	if t == nil || IsVoid(t) {
		return reflect.Value{}
	}
	if !v.IsValid() {
		return reflect.Zero(t)
	}
	if v.Type() == t {
		return v
	}
	if v.Kind() == reflect.Interface && t.Kind() != reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(t)
		}
		v = v.Elem()
		if v.Type() == t {
			return v
		}
	}
	if v.Type().AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(v)
		return out
	}
	if v.Type().ConvertibleTo(t) {
		return v.Convert(t)
	}
	return v
}
