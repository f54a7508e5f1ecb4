package slim

import (
	"bytes"
	"reflect"

	"github.com/goccy/go-json"
)

// TypeEqual reports whether two descriptors are structurally equal under the
// default comparer.
func TypeEqual(a, b Type) bool {
	return TypeComparer{}.Equal(a, b)
}

// TypeComparer decides descriptor equality. Nominal descriptors compare by
// assembly and name; structural descriptors compare by property set and
// equality semantics. The structural kind (record, anonymous, tuple) and the
// property order are not significant.
//
// Comparison is coinductive: a pair of structural types met again while it
// is being compared is assumed equal, which makes cyclic shapes terminate.
// The assumed-pair set lives for one top-level Equal call only.
type TypeComparer struct {
	// Nominal overrides equality of two simple types. Nil means assembly
	// and name must both match.
	Nominal func(a, b *SimpleType) bool
}

type structuralPair struct {
	a, b *StructuralType
}

// Equal reports whether a and b describe the same type.
func (c TypeComparer) Equal(a, b Type) bool {
	eq := typeEq{nominal: c.Nominal}
	return eq.equal(a, b)
}

type typeEq struct {
	nominal func(a, b *SimpleType) bool
	assumed map[structuralPair]struct{}
}

func (q *typeEq) equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *SimpleType:
		y, ok := b.(*SimpleType)
		if !ok {
			return false
		}
		if q.nominal != nil {
			return q.nominal(x, y)
		}
		return x.Assembly == y.Assembly && x.Name == y.Name
	case *GenericDefinitionType:
		y, ok := b.(*GenericDefinitionType)
		return ok && definitionEqual(x, y)
	case *GenericType:
		y, ok := b.(*GenericType)
		if !ok || !definitionEqual(x.Definition, y.Definition) {
			return false
		}
		return q.all(x.Arguments, y.Arguments)
	case *ArrayType:
		y, ok := b.(*ArrayType)
		return ok && x.Rank == y.Rank && q.equal(x.Element, y.Element)
	case *GenericParameterType:
		y, ok := b.(*GenericParameterType)
		return ok && x.Position == y.Position && x.Name == y.Name
	case *StructuralType:
		y, ok := b.(*StructuralType)
		if !ok {
			return false
		}
		return q.structural(x, y)
	}
	return false
}

func (q *typeEq) all(as, bs []Type) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !q.equal(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func (q *typeEq) structural(x, y *StructuralType) bool {
	if x.valueEquality != y.valueEquality || len(x.props) != len(y.props) {
		return false
	}
	pair := structuralPair{x, y}
	if _, ok := q.assumed[pair]; ok {
		return true
	}
	if q.assumed == nil {
		q.assumed = make(map[structuralPair]struct{})
	}
	q.assumed[pair] = struct{}{}
	for _, p := range x.props {
		other, ok := y.Property(p.Name)
		if !ok || !q.equal(p.Type, other.Type) {
			delete(q.assumed, pair)
			return false
		}
	}
	return true
}

func definitionEqual(a, b *GenericDefinitionType) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Assembly == b.Assembly && a.Name == b.Name
}

// MemberEqual reports whether two member descriptors denote the same member:
// same kind, equal declaring types, same name and equal signatures.
func MemberEqual(a, b MemberInfo) bool {
	eq := typeEq{}
	return eq.member(a, b)
}

func (q *typeEq) member(a, b MemberInfo) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.MemberKind() != b.MemberKind() || a.MemberName() != b.MemberName() {
		return false
	}
	if !q.equal(a.DeclaringType(), b.DeclaringType()) {
		return false
	}
	switch x := a.(type) {
	case *FieldInfo:
		y := b.(*FieldInfo)
		return q.equal(x.FieldType, y.FieldType)
	case *PropertyInfo:
		y := b.(*PropertyInfo)
		return q.equal(x.PropertyType, y.PropertyType) && q.all(x.IndexParameterTypes, y.IndexParameterTypes)
	case *ConstructorInfo:
		y := b.(*ConstructorInfo)
		return q.all(x.ParameterTypes, y.ParameterTypes)
	case *SimpleMethod:
		y, ok := b.(*SimpleMethod)
		return ok && q.all(x.ParameterTypes, y.ParameterTypes) && q.equal(x.Result(), y.Result())
	case *GenericDefinitionMethod:
		y, ok := b.(*GenericDefinitionMethod)
		return ok && len(x.GenericParameters) == len(y.GenericParameters) &&
			q.all(x.ParameterTypes, y.ParameterTypes) && q.equal(x.Result(), y.Result())
	case *GenericMethod:
		y, ok := b.(*GenericMethod)
		return ok && q.member(x.Definition, y.Definition) && q.all(x.Arguments, y.Arguments)
	}
	return false
}

// ExpressionComparer decides expression equality for interning. Hash must be
// consistent with Equal: equal expressions hash equally.
type ExpressionComparer interface {
	Equal(a, b Expression) bool
	Hash(e Expression) uint64
}

// StructuralComparer is the default ExpressionComparer: deep structural
// equality, with bound parameters and label targets compared up to
// renaming. Global parameters compare by identity unless GlobalsByName is
// set, in which case name and type decide.
type StructuralComparer struct {
	GlobalsByName bool
}

// Equal reports whether a and b are structurally equal.
func (c StructuralComparer) Equal(a, b Expression) bool {
	w := &exprEq{
		globalsByName: c.GlobalsByName,
		bound:         make(map[*Parameter]*Parameter),
		labels:        make(map[*LabelTarget]*LabelTarget),
		labelsBack:    make(map[*LabelTarget]*LabelTarget),
	}
	return w.equal(a, b)
}

// Hash returns a structural hash of e consistent with Equal.
func (c StructuralComparer) Hash(e Expression) uint64 {
	return HashExpression(e)
}

// ExpressionEqual reports whether a and b are structurally equal with
// globals compared by identity.
func ExpressionEqual(a, b Expression) bool {
	return StructuralComparer{}.Equal(a, b)
}

type exprEq struct {
	globalsByName bool
	types         typeEq
	// bound maps parameters declared in a to their counterparts in b while
	// the declaring scope is being compared.
	bound      map[*Parameter]*Parameter
	boundBack  map[*Parameter]*Parameter
	labels     map[*LabelTarget]*LabelTarget
	labelsBack map[*LabelTarget]*LabelTarget
}

func (w *exprEq) typ(a, b Type) bool {
	return w.types.equal(a, b)
}

func (w *exprEq) declare(as, bs []*Parameter) (restore func(), ok bool) {
	if len(as) != len(bs) {
		return func() {}, false
	}
	if w.boundBack == nil {
		w.boundBack = make(map[*Parameter]*Parameter)
	}
	type saved struct {
		fwd, back *Parameter
		hadFwd    bool
		hadBack   bool
	}
	prev := make([]saved, len(as))
	for i := range as {
		f, hf := w.bound[as[i]]
		b, hb := w.boundBack[bs[i]]
		prev[i] = saved{fwd: f, back: b, hadFwd: hf, hadBack: hb}
		w.bound[as[i]] = bs[i]
		w.boundBack[bs[i]] = as[i]
	}
	restore = func() {
		for i := len(as) - 1; i >= 0; i-- {
			if prev[i].hadFwd {
				w.bound[as[i]] = prev[i].fwd
			} else {
				delete(w.bound, as[i])
			}
			if prev[i].hadBack {
				w.boundBack[bs[i]] = prev[i].back
			} else {
				delete(w.boundBack, bs[i])
			}
		}
	}
	for i := range as {
		if !w.typ(as[i].Type, bs[i].Type) {
			return restore, false
		}
	}
	return restore, true
}

func (w *exprEq) param(a, b *Parameter) bool {
	if a == nil || b == nil {
		return a == b
	}
	fwd, aBound := w.bound[a]
	_, bBound := w.boundBack[b]
	if aBound || bBound {
		return fwd == b
	}
	if a == b {
		return true
	}
	return w.globalsByName && a.Name == b.Name && w.typ(a.Type, b.Type)
}

func (w *exprEq) label(a, b *LabelTarget) bool {
	if a == nil || b == nil {
		return a == b
	}
	fwd, okA := w.labels[a]
	back, okB := w.labelsBack[b]
	if okA || okB {
		return fwd == b && back == a
	}
	if !w.typ(a.Type, b.Type) {
		return false
	}
	w.labels[a] = b
	w.labelsBack[b] = a
	return true
}

func (w *exprEq) list(as, bs []Expression) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !w.equal(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func (w *exprEq) inits(as, bs []*ElementInit) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !w.types.member(as[i].AddMethod, bs[i].AddMethod) || !w.list(as[i].Arguments, bs[i].Arguments) {
			return false
		}
	}
	return true
}

func (w *exprEq) bindings(as, bs []MemberBinding) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i].BindingKind() != bs[i].BindingKind() || !w.types.member(as[i].BoundMember(), bs[i].BoundMember()) {
			return false
		}
		switch x := as[i].(type) {
		case *Assignment:
			if !w.equal(x.Expression, bs[i].(*Assignment).Expression) {
				return false
			}
		case *MemberMemberBinding:
			if !w.bindings(x.Bindings, bs[i].(*MemberMemberBinding).Bindings) {
				return false
			}
		case *MemberListBinding:
			if !w.inits(x.Initializers, bs[i].(*MemberListBinding).Initializers) {
				return false
			}
		}
	}
	return true
}

func (w *exprEq) equal(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.NodeType() != b.NodeType() || !w.typ(TypeOf(a), TypeOf(b)) {
		return false
	}
	switch x := a.(type) {
	case *Constant:
		y := b.(*Constant)
		return ValueEqual(x.Value, y.Value)
	case *Default:
		return true
	case *Parameter:
		return w.param(x, b.(*Parameter))
	case *Unary:
		y := b.(*Unary)
		return w.types.member(x.Method, y.Method) && w.equal(x.Operand, y.Operand)
	case *Binary:
		y := b.(*Binary)
		if x.LiftToNull != y.LiftToNull || !w.types.member(x.Method, y.Method) {
			return false
		}
		if (x.Conversion == nil) != (y.Conversion == nil) {
			return false
		}
		if x.Conversion != nil && !w.equal(x.Conversion, y.Conversion) {
			return false
		}
		return w.equal(x.Left, y.Left) && w.equal(x.Right, y.Right)
	case *Conditional:
		y := b.(*Conditional)
		return w.equal(x.Test, y.Test) && w.equal(x.IfTrue, y.IfTrue) && w.equal(x.IfFalse, y.IfFalse)
	case *Lambda:
		y := b.(*Lambda)
		restore, ok := w.declare(x.Parameters, y.Parameters)
		defer restore()
		return ok && w.equal(x.Body, y.Body)
	case *Invocation:
		y := b.(*Invocation)
		return w.equal(x.Expression, y.Expression) && w.list(x.Arguments, y.Arguments)
	case *Call:
		y := b.(*Call)
		return w.types.member(x.Method, y.Method) && w.equal(x.Object, y.Object) && w.list(x.Arguments, y.Arguments)
	case *Member:
		y := b.(*Member)
		return w.types.member(x.Member, y.Member) && w.equal(x.Expression, y.Expression)
	case *Index:
		y := b.(*Index)
		if (x.Indexer == nil) != (y.Indexer == nil) {
			return false
		}
		if x.Indexer != nil && !w.types.member(x.Indexer, y.Indexer) {
			return false
		}
		return w.equal(x.Object, y.Object) && w.list(x.Arguments, y.Arguments)
	case *New:
		return w.newNode(x, b.(*New))
	case *NewArray:
		y := b.(*NewArray)
		return w.typ(x.ElementType, y.ElementType) && w.list(x.Expressions, y.Expressions)
	case *ListInit:
		y := b.(*ListInit)
		return w.newNode(x.New, y.New) && w.inits(x.Initializers, y.Initializers)
	case *MemberInit:
		y := b.(*MemberInit)
		return w.newNode(x.New, y.New) && w.bindings(x.Bindings, y.Bindings)
	case *TypeBinary:
		y := b.(*TypeBinary)
		return w.typ(x.TypeOperand, y.TypeOperand) && w.equal(x.Expression, y.Expression)
	case *Block:
		y := b.(*Block)
		restore, ok := w.declare(x.Variables, y.Variables)
		defer restore()
		return ok && w.list(x.Expressions, y.Expressions)
	case *Loop:
		y := b.(*Loop)
		return w.label(x.BreakLabel, y.BreakLabel) && w.label(x.ContinueLabel, y.ContinueLabel) && w.equal(x.Body, y.Body)
	case *Goto:
		y := b.(*Goto)
		return x.Kind == y.Kind && w.label(x.Target, y.Target) && w.equal(x.Value, y.Value)
	case *Label:
		y := b.(*Label)
		return w.label(x.Target, y.Target) && w.equal(x.DefaultValue, y.DefaultValue)
	case *Try:
		y := b.(*Try)
		if !w.equal(x.Body, y.Body) || !w.equal(x.Finally, y.Finally) || !w.equal(x.Fault, y.Fault) {
			return false
		}
		if len(x.Handlers) != len(y.Handlers) {
			return false
		}
		for i := range x.Handlers {
			if !w.catch(x.Handlers[i], y.Handlers[i]) {
				return false
			}
		}
		return true
	case *Switch:
		y := b.(*Switch)
		if !w.types.member(x.Comparison, y.Comparison) || !w.equal(x.SwitchValue, y.SwitchValue) || !w.equal(x.DefaultBody, y.DefaultBody) {
			return false
		}
		if len(x.Cases) != len(y.Cases) {
			return false
		}
		for i := range x.Cases {
			if !w.list(x.Cases[i].TestValues, y.Cases[i].TestValues) || !w.equal(x.Cases[i].Body, y.Cases[i].Body) {
				return false
			}
		}
		return true
	}
	return false
}

func (w *exprEq) newNode(x, y *New) bool {
	if x == nil || y == nil {
		return x == y
	}
	if !w.typ(x.Type, y.Type) {
		return false
	}
	if (x.Constructor == nil) != (y.Constructor == nil) {
		return false
	}
	if x.Constructor != nil && !w.types.member(x.Constructor, y.Constructor) {
		return false
	}
	return w.list(x.Arguments, y.Arguments)
}

func (w *exprEq) catch(x, y *CatchBlock) bool {
	if !w.typ(x.Test, y.Test) || (x.Variable == nil) != (y.Variable == nil) {
		return false
	}
	if x.Variable == nil {
		return w.equal(x.Filter, y.Filter) && w.equal(x.Body, y.Body)
	}
	restore, ok := w.declare([]*Parameter{x.Variable}, []*Parameter{y.Variable})
	defer restore()
	return ok && w.equal(x.Filter, y.Filter) && w.equal(x.Body, y.Body)
}

// ValueEqual compares two constant values. Portable Lifted values compare by
// their compacted JSON; a Lifted value equals a native value whose JSON
// encoding is the same document.
func ValueEqual(a, b any) bool {
	la, aLifted := a.(Lifted)
	lb, bLifted := b.(Lifted)
	if !aLifted && !bLifted {
		return reflect.DeepEqual(a, b)
	}
	ja, err := valueJSON(a, la, aLifted)
	if err != nil {
		return false
	}
	jb, err := valueJSON(b, lb, bLifted)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// valueJSON returns a canonical JSON form of v: object keys sorted, no
// insignificant whitespace, numbers kept verbatim.
func valueJSON(v any, l Lifted, lifted bool) ([]byte, error) {
	raw := []byte(l)
	if !lifted {
		var err error
		if raw, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
