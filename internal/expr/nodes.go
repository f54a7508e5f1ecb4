package expr

import (
	"reflect"

	"github.com/roach88/slim/internal/op"
)

// Expression is a native expression node. Nodes are built with the Make*
// factories and never mutated afterwards.
type Expression interface {
	NodeType() op.Kind
	Type() reflect.Type
	exprNode()
}

// Constant is a literal value.
type Constant struct {
	Value any
	typ   reflect.Type
}

func (*Constant) NodeType() op.Kind    { return op.Constant }
func (c *Constant) Type() reflect.Type { return c.typ }
func (*Constant) exprNode()            {}

// Default is the zero value of its type.
type Default struct {
	typ reflect.Type
}

func (*Default) NodeType() op.Kind    { return op.Default }
func (d *Default) Type() reflect.Type { return d.typ }
func (*Default) exprNode()            {}

// Parameter is a variable, identified by pointer.
type Parameter struct {
	Name string
	typ  reflect.Type
}

func (*Parameter) NodeType() op.Kind    { return op.Parameter }
func (p *Parameter) Type() reflect.Type { return p.typ }
func (*Parameter) exprNode()            {}

// Unary applies a one-operand operator.
type Unary struct {
	Op      op.Kind
	Operand Expression
	Method  *Method
	typ     reflect.Type
}

func (u *Unary) NodeType() op.Kind  { return u.Op }
func (u *Unary) Type() reflect.Type { return u.typ }
func (*Unary) exprNode()            {}

// Binary applies a two-operand operator.
type Binary struct {
	Op         op.Kind
	Left       Expression
	Right      Expression
	LiftToNull bool
	Method     *Method
	Conversion *Lambda
	typ        reflect.Type
}

func (b *Binary) NodeType() op.Kind  { return b.Op }
func (b *Binary) Type() reflect.Type { return b.typ }
func (*Binary) exprNode()            {}

// Conditional is test ? ifTrue : ifFalse.
type Conditional struct {
	Test    Expression
	IfTrue  Expression
	IfFalse Expression
	typ     reflect.Type
}

func (*Conditional) NodeType() op.Kind    { return op.Conditional }
func (c *Conditional) Type() reflect.Type { return c.typ }
func (*Conditional) exprNode()            {}

// Lambda is a function literal. Its type is a reflect func type.
type Lambda struct {
	Name       string
	Parameters []*Parameter
	Body       Expression
	typ        reflect.Type
}

func (*Lambda) NodeType() op.Kind    { return op.Lambda }
func (l *Lambda) Type() reflect.Type { return l.typ }
func (*Lambda) exprNode()            {}

// Invocation calls a function-typed expression.
type Invocation struct {
	Expression Expression
	Arguments  []Expression
	typ        reflect.Type
}

func (*Invocation) NodeType() op.Kind    { return op.Invoke }
func (i *Invocation) Type() reflect.Type { return i.typ }
func (*Invocation) exprNode()            {}

// Call calls a method on Object, or a package function when Object is nil.
type Call struct {
	Object    Expression
	Method    *Method
	Arguments []Expression
	typ       reflect.Type
}

func (*Call) NodeType() op.Kind    { return op.Call }
func (c *Call) Type() reflect.Type { return c.typ }
func (*Call) exprNode()            {}

// MemberAccess reads a field or property.
type MemberAccess struct {
	Expression Expression
	Member     Member
	typ        reflect.Type
}

func (*MemberAccess) NodeType() op.Kind    { return op.MemberAccess }
func (m *MemberAccess) Type() reflect.Type { return m.typ }
func (*MemberAccess) exprNode()            {}

// Index reads an element by an indexer property or by builtin indexing.
type Index struct {
	Object    Expression
	Indexer   *Property
	Arguments []Expression
	typ       reflect.Type
}

func (*Index) NodeType() op.Kind    { return op.Index }
func (i *Index) Type() reflect.Type { return i.typ }
func (*Index) exprNode()            {}

// New creates a value with a constructor, or the zero value (a fresh map
// or channel for those kinds) when Constructor is nil.
type New struct {
	Constructor *Constructor
	Arguments   []Expression
	typ         reflect.Type
}

func (*New) NodeType() op.Kind    { return op.New }
func (n *New) Type() reflect.Type { return n.typ }
func (*New) exprNode()            {}

// NewArray creates a slice from elements (NewArrayInit) or a length
// (NewArrayBounds).
type NewArray struct {
	Op          op.Kind
	Expressions []Expression
	typ         reflect.Type
}

func (n *NewArray) NodeType() op.Kind  { return n.Op }
func (n *NewArray) Type() reflect.Type { return n.typ }
func (*NewArray) exprNode()            {}

// ElementInit adds one element to a collection. A nil AddMethod uses
// builtin append for slices and assignment for maps.
type ElementInit struct {
	AddMethod *Method
	Arguments []Expression
}

// ListInit creates a collection and adds elements to it.
type ListInit struct {
	New          *New
	Initializers []*ElementInit
}

func (*ListInit) NodeType() op.Kind    { return op.ListInit }
func (l *ListInit) Type() reflect.Type { return l.New.typ }
func (*ListInit) exprNode()            {}

// BindingKind discriminates member bindings.
type BindingKind int

const (
	BindingAssignment BindingKind = iota
	BindingMember
	BindingList
)

// MemberBinding initializes one member in a MemberInit.
type MemberBinding interface {
	BindingKind() BindingKind
	BoundMember() Member
	bindingNode()
}

// Assignment sets a member to a value.
type Assignment struct {
	Member     Member
	Expression Expression
}

func (*Assignment) BindingKind() BindingKind { return BindingAssignment }
func (a *Assignment) BoundMember() Member    { return a.Member }
func (*Assignment) bindingNode()             {}

// MemberMemberBinding recursively initializes the members of a member.
type MemberMemberBinding struct {
	Member   Member
	Bindings []MemberBinding
}

func (*MemberMemberBinding) BindingKind() BindingKind { return BindingMember }
func (m *MemberMemberBinding) BoundMember() Member    { return m.Member }
func (*MemberMemberBinding) bindingNode()             {}

// MemberListBinding adds elements to a collection member.
type MemberListBinding struct {
	Member       Member
	Initializers []*ElementInit
}

func (*MemberListBinding) BindingKind() BindingKind { return BindingList }
func (m *MemberListBinding) BoundMember() Member    { return m.Member }
func (*MemberListBinding) bindingNode()             {}

// MemberInit creates a value and initializes its members.
type MemberInit struct {
	New      *New
	Bindings []MemberBinding
}

func (*MemberInit) NodeType() op.Kind    { return op.MemberInit }
func (m *MemberInit) Type() reflect.Type { return m.New.typ }
func (*MemberInit) exprNode()            {}

// TypeBinary tests the dynamic type of an expression.
type TypeBinary struct {
	Op          op.Kind
	Expression  Expression
	TypeOperand reflect.Type
}

func (t *TypeBinary) NodeType() op.Kind { return t.Op }
func (*TypeBinary) Type() reflect.Type  { return boolType }
func (*TypeBinary) exprNode()           {}

// Block declares variables and evaluates expressions in order; its value is
// the last expression's.
type Block struct {
	Variables   []*Parameter
	Expressions []Expression
	typ         reflect.Type
}

func (*Block) NodeType() op.Kind    { return op.Block }
func (b *Block) Type() reflect.Type { return b.typ }
func (*Block) exprNode()            {}

// LabelTarget is a jump destination, identified by pointer.
type LabelTarget struct {
	Name string
	Type reflect.Type
}

// Loop evaluates Body until a jump to BreakLabel.
type Loop struct {
	Body          Expression
	BreakLabel    *LabelTarget
	ContinueLabel *LabelTarget
}

func (*Loop) NodeType() op.Kind { return op.Loop }
func (l *Loop) Type() reflect.Type {
	if l.BreakLabel == nil {
		return VoidType
	}
	return l.BreakLabel.Type
}
func (*Loop) exprNode() {}

// Goto jumps to Target carrying an optional Value.
type Goto struct {
	Kind   op.GotoKind
	Target *LabelTarget
	Value  Expression
	typ    reflect.Type
}

func (*Goto) NodeType() op.Kind    { return op.Goto }
func (g *Goto) Type() reflect.Type { return g.typ }
func (*Goto) exprNode()            {}

// Label marks the position of Target; DefaultValue is its value on
// fall-through.
type Label struct {
	Target       *LabelTarget
	DefaultValue Expression
}

func (*Label) NodeType() op.Kind    { return op.Label }
func (l *Label) Type() reflect.Type { return l.Target.Type }
func (*Label) exprNode()            {}

// CatchBlock handles panics whose value matches Test.
type CatchBlock struct {
	Test     reflect.Type
	Variable *Parameter
	Body     Expression
	Filter   Expression
}

// Try evaluates Body and recovers matching panics.
type Try struct {
	Body     Expression
	Handlers []*CatchBlock
	Finally  Expression
	Fault    Expression
	typ      reflect.Type
}

func (*Try) NodeType() op.Kind    { return op.Try }
func (t *Try) Type() reflect.Type { return t.typ }
func (*Try) exprNode()            {}

// SwitchCase matches any of TestValues.
type SwitchCase struct {
	TestValues []Expression
	Body       Expression
}

// Switch selects the first case whose test value equals SwitchValue.
type Switch struct {
	SwitchValue Expression
	Cases       []*SwitchCase
	DefaultBody Expression
	Comparison  *Method
	typ         reflect.Type
}

func (*Switch) NodeType() op.Kind    { return op.Switch }
func (s *Switch) Type() reflect.Type { return s.typ }
func (*Switch) exprNode()            {}
