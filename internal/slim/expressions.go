package slim

import (
	"github.com/roach88/slim/internal/op"
)

// Expression is one reflection-free expression-tree node.
//
// This is a sealed interface - only the node types in this package
// implement it. Every node carries its static result type, readable through
// TypeOf; after substitution the stored type is refreshed from derivation.
//
// Nodes are immutable once built. A node may be shared by several parents
// (interning introduces such sharing deliberately), so a node must never be
// mutated in place after it has been attached to a tree.
type Expression interface {
	// NodeType returns the node kind (or operator, for Unary and Binary).
	NodeType() op.Kind
	staticType() Type
	expressionSlim()
}

// TypeOf returns the static type carried by e. Nodes whose type is optional
// (Conditional, Block, Try, Switch) may return nil, meaning "not declared".
func TypeOf(e Expression) Type {
	if e == nil {
		return nil
	}
	return e.staticType()
}

// Lifted is the portable form of a constant value: a JSON document whose
// shape follows the constant's type descriptor. Deserialized constants and
// recordized entity values use this form.
type Lifted []byte

// Constant is a literal value tagged with its type. Two constants of
// different static types may share a runtime representation, so the tag
// is significant.
type Constant struct {
	Value any
	Type  Type
}

func (*Constant) NodeType() op.Kind  { return op.Constant }
func (n *Constant) staticType() Type { return n.Type }
func (*Constant) expressionSlim()    {}

// NewConstant returns a constant node.
func NewConstant(value any, typ Type) *Constant {
	return &Constant{Value: value, Type: typ}
}

// Default is the zero value of its type.
type Default struct {
	Type Type
}

func (*Default) NodeType() op.Kind  { return op.Default }
func (n *Default) staticType() Type { return n.Type }
func (*Default) expressionSlim()    {}

// Parameter is a variable. Identity is the pointer: a parameter is bound
// when an enclosing Lambda, Block or CatchBlock declares it, and global
// otherwise. Global parameters name external resources.
type Parameter struct {
	Name string
	Type Type
}

func (*Parameter) NodeType() op.Kind  { return op.Parameter }
func (n *Parameter) staticType() Type { return n.Type }
func (*Parameter) expressionSlim()    {}

// NewParameter returns a fresh parameter.
func NewParameter(name string, typ Type) *Parameter {
	return &Parameter{Name: name, Type: typ}
}

// Unary applies a unary operator. Method, when set, implements the operator.
// For Convert, ConvertChecked, TypeAs and Throw the Type is the declared
// target type.
type Unary struct {
	Op      op.Kind
	Operand Expression
	Method  MethodInfo
	Type    Type
}

func (n *Unary) NodeType() op.Kind { return n.Op }
func (n *Unary) staticType() Type  { return n.Type }
func (*Unary) expressionSlim()     {}

// Binary applies a binary operator. Method, when set, implements the
// operator and its return type wins over builtin typing. LiftToNull makes
// lifted comparisons produce a nullable bool. Conversion is only used by
// Coalesce.
type Binary struct {
	Op         op.Kind
	Left       Expression
	Right      Expression
	LiftToNull bool
	Method     MethodInfo
	Conversion *Lambda
	Type       Type
}

func (n *Binary) NodeType() op.Kind { return n.Op }
func (n *Binary) staticType() Type  { return n.Type }
func (*Binary) expressionSlim()     {}

// Conditional evaluates IfTrue or IfFalse depending on Test. A non-nil Type
// is the declared result type and is authoritative.
type Conditional struct {
	Test    Expression
	IfTrue  Expression
	IfFalse Expression
	Type    Type
}

func (*Conditional) NodeType() op.Kind  { return op.Conditional }
func (n *Conditional) staticType() Type { return n.Type }
func (*Conditional) expressionSlim()    {}

// Lambda is a function literal. Type is the function type.
type Lambda struct {
	Name       string
	Parameters []*Parameter
	Body       Expression
	Type       Type
}

func (*Lambda) NodeType() op.Kind  { return op.Lambda }
func (n *Lambda) staticType() Type { return n.Type }
func (*Lambda) expressionSlim()    {}

// Invocation calls a function-typed expression.
type Invocation struct {
	Expression Expression
	Arguments  []Expression
	Type       Type
}

func (*Invocation) NodeType() op.Kind  { return op.Invoke }
func (n *Invocation) staticType() Type { return n.Type }
func (*Invocation) expressionSlim()    {}

// Call invokes a method. Object is nil for package functions.
type Call struct {
	Object    Expression
	Method    MethodInfo
	Arguments []Expression
	Type      Type
}

func (*Call) NodeType() op.Kind  { return op.Call }
func (n *Call) staticType() Type { return n.Type }
func (*Call) expressionSlim()    {}

// Member reads a field or property.
type Member struct {
	Expression Expression
	Member     MemberInfo
	Type       Type
}

func (*Member) NodeType() op.Kind  { return op.MemberAccess }
func (n *Member) staticType() Type { return n.Type }
func (*Member) expressionSlim()    {}

// Index reads an indexer property, or indexes a slice, array, map or string
// when Indexer is nil.
type Index struct {
	Object    Expression
	Indexer   *PropertyInfo
	Arguments []Expression
	Type      Type
}

func (*Index) NodeType() op.Kind  { return op.Index }
func (n *Index) staticType() Type { return n.Type }
func (*Index) expressionSlim()    {}

// New invokes a constructor, or yields the zero value of Type (a composite
// literal without elements) when Constructor is nil.
type New struct {
	Constructor *ConstructorInfo
	Arguments   []Expression
	Type        Type
}

func (*New) NodeType() op.Kind  { return op.New }
func (n *New) staticType() Type { return n.Type }
func (*New) expressionSlim()    {}

// NewArray creates a slice from elements (NewArrayInit) or from bounds
// (NewArrayBounds).
type NewArray struct {
	Op          op.Kind
	ElementType Type
	Expressions []Expression
	Type        Type
}

func (n *NewArray) NodeType() op.Kind { return n.Op }
func (n *NewArray) staticType() Type  { return n.Type }
func (*NewArray) expressionSlim()     {}

// ElementInit adds one element to a collection. AddMethod is nil for the
// builtin forms: append for slices (one argument) and assignment for maps
// (two arguments).
type ElementInit struct {
	AddMethod MethodInfo
	Arguments []Expression
}

// ListInit creates a collection and adds elements.
type ListInit struct {
	New          *New
	Initializers []*ElementInit
	Type         Type
}

func (*ListInit) NodeType() op.Kind  { return op.ListInit }
func (n *ListInit) staticType() Type { return n.Type }
func (*ListInit) expressionSlim()    {}

// BindingKind identifies the variant of a member binding.
type BindingKind int

const (
	BindingAssignment BindingKind = iota
	BindingMember
	BindingList
)

// MemberBinding initializes one member inside a MemberInit. Sealed.
type MemberBinding interface {
	BindingKind() BindingKind
	BoundMember() MemberInfo
	bindingSlim()
}

// Assignment binds a member to a value.
type Assignment struct {
	Member     MemberInfo
	Expression Expression
}

func (*Assignment) BindingKind() BindingKind { return BindingAssignment }
func (b *Assignment) BoundMember() MemberInfo { return b.Member }
func (*Assignment) bindingSlim()             {}

// MemberMemberBinding recursively initializes the members of a member.
type MemberMemberBinding struct {
	Member   MemberInfo
	Bindings []MemberBinding
}

func (*MemberMemberBinding) BindingKind() BindingKind { return BindingMember }
func (b *MemberMemberBinding) BoundMember() MemberInfo { return b.Member }
func (*MemberMemberBinding) bindingSlim()             {}

// MemberListBinding adds elements to a collection-typed member.
type MemberListBinding struct {
	Member       MemberInfo
	Initializers []*ElementInit
}

func (*MemberListBinding) BindingKind() BindingKind { return BindingList }
func (b *MemberListBinding) BoundMember() MemberInfo { return b.Member }
func (*MemberListBinding) bindingSlim()             {}

// MemberInit creates an object and initializes members.
type MemberInit struct {
	New      *New
	Bindings []MemberBinding
	Type     Type
}

func (*MemberInit) NodeType() op.Kind  { return op.MemberInit }
func (n *MemberInit) staticType() Type { return n.Type }
func (*MemberInit) expressionSlim()    {}

// TypeBinary tests the dynamic type of an expression (TypeIs: assignable,
// TypeEqual: identical).
type TypeBinary struct {
	Op          op.Kind
	Expression  Expression
	TypeOperand Type
	Type        Type
}

func (n *TypeBinary) NodeType() op.Kind { return n.Op }
func (n *TypeBinary) staticType() Type  { return n.Type }
func (*TypeBinary) expressionSlim()     {}

// Block evaluates expressions in sequence within a variable scope; its value
// is the last expression's. A non-nil Type is authoritative.
type Block struct {
	Variables   []*Parameter
	Expressions []Expression
	Type        Type
}

func (*Block) NodeType() op.Kind  { return op.Block }
func (n *Block) staticType() Type { return n.Type }
func (*Block) expressionSlim()    {}

// LabelTarget is a jump destination. Identity is the pointer; Type is the
// type of the value carried by jumps to it.
type LabelTarget struct {
	Name string
	Type Type
}

// Loop repeats Body until a break. Its value is carried by the break label.
type Loop struct {
	Body          Expression
	BreakLabel    *LabelTarget
	ContinueLabel *LabelTarget
	Type          Type
}

func (*Loop) NodeType() op.Kind  { return op.Loop }
func (n *Loop) staticType() Type { return n.Type }
func (*Loop) expressionSlim()    {}

// Goto jumps to Target, optionally carrying Value.
type Goto struct {
	Kind   op.GotoKind
	Target *LabelTarget
	Value  Expression
	Type   Type
}

func (*Goto) NodeType() op.Kind  { return op.Goto }
func (n *Goto) staticType() Type { return n.Type }
func (*Goto) expressionSlim()    {}

// Label marks the position of Target. DefaultValue is the value when control
// reaches the label by falling through.
type Label struct {
	Target       *LabelTarget
	DefaultValue Expression
	Type         Type
}

func (*Label) NodeType() op.Kind  { return op.Label }
func (n *Label) staticType() Type { return n.Type }
func (*Label) expressionSlim()    {}

// CatchBlock handles panics whose value is assignable to Test.
type CatchBlock struct {
	Test     Type
	Variable *Parameter
	Body     Expression
	Filter   Expression
}

// Try runs Body with handlers. At most one of Finally and Fault is set in
// well-formed trees; Fault runs only when Body panics.
type Try struct {
	Body     Expression
	Handlers []*CatchBlock
	Finally  Expression
	Fault    Expression
	Type     Type
}

func (*Try) NodeType() op.Kind  { return op.Try }
func (n *Try) staticType() Type { return n.Type }
func (*Try) expressionSlim()    {}

// SwitchCase is one arm of a Switch.
type SwitchCase struct {
	TestValues []Expression
	Body       Expression
}

// Switch selects a case by comparing SwitchValue to each test value, using
// Comparison when set and equality otherwise.
type Switch struct {
	SwitchValue Expression
	Cases       []*SwitchCase
	DefaultBody Expression
	Comparison  MethodInfo
	Type        Type
}

func (*Switch) NodeType() op.Kind  { return op.Switch }
func (n *Switch) staticType() Type { return n.Type }
func (*Switch) expressionSlim()    {}
