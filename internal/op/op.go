// Package op enumerates the expression node kinds shared by the native
// expression model (internal/expr) and the portable IR (internal/slim).
//
// Kinds double as operator tags: a Unary or Binary node carries one of the
// operator kinds, every other node reports its own structural kind.
package op

// Kind identifies an expression node kind or operator.
type Kind int

const (
	Invalid Kind = iota

	// Leaf kinds.
	Constant
	Default
	Parameter

	// Unary operators.
	Negate
	NegateChecked
	UnaryPlus
	Not
	OnesComplement
	Convert
	ConvertChecked
	TypeAs
	ArrayLength
	Throw
	IsTrue
	IsFalse
	Increment
	Decrement

	// Binary operators.
	Add
	AddChecked
	Subtract
	SubtractChecked
	Multiply
	MultiplyChecked
	Divide
	Modulo
	And
	Or
	ExclusiveOr
	AndNot
	LeftShift
	RightShift
	AndAlso
	OrElse
	Equal
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	Coalesce
	ArrayIndex
	Assign

	// Structural kinds.
	Conditional
	Lambda
	Invoke
	Call
	MemberAccess
	Index
	New
	NewArrayInit
	NewArrayBounds
	ListInit
	MemberInit
	TypeIs
	TypeEqual
	Block
	Loop
	Goto
	Label
	Try
	Switch
)

var names = map[Kind]string{
	Invalid:            "Invalid",
	Constant:           "Constant",
	Default:            "Default",
	Parameter:          "Parameter",
	Negate:             "Negate",
	NegateChecked:      "NegateChecked",
	UnaryPlus:          "UnaryPlus",
	Not:                "Not",
	OnesComplement:     "OnesComplement",
	Convert:            "Convert",
	ConvertChecked:     "ConvertChecked",
	TypeAs:             "TypeAs",
	ArrayLength:        "ArrayLength",
	Throw:              "Throw",
	IsTrue:             "IsTrue",
	IsFalse:            "IsFalse",
	Increment:          "Increment",
	Decrement:          "Decrement",
	Add:                "Add",
	AddChecked:         "AddChecked",
	Subtract:           "Subtract",
	SubtractChecked:    "SubtractChecked",
	Multiply:           "Multiply",
	MultiplyChecked:    "MultiplyChecked",
	Divide:             "Divide",
	Modulo:             "Modulo",
	And:                "And",
	Or:                 "Or",
	ExclusiveOr:        "ExclusiveOr",
	AndNot:             "AndNot",
	LeftShift:          "LeftShift",
	RightShift:         "RightShift",
	AndAlso:            "AndAlso",
	OrElse:             "OrElse",
	Equal:              "Equal",
	NotEqual:           "NotEqual",
	LessThan:           "LessThan",
	LessThanOrEqual:    "LessThanOrEqual",
	GreaterThan:        "GreaterThan",
	GreaterThanOrEqual: "GreaterThanOrEqual",
	Coalesce:           "Coalesce",
	ArrayIndex:         "ArrayIndex",
	Assign:             "Assign",
	Conditional:        "Conditional",
	Lambda:             "Lambda",
	Invoke:             "Invoke",
	Call:               "Call",
	MemberAccess:       "MemberAccess",
	Index:              "Index",
	New:                "New",
	NewArrayInit:       "NewArrayInit",
	NewArrayBounds:     "NewArrayBounds",
	ListInit:           "ListInit",
	MemberInit:         "MemberInit",
	TypeIs:             "TypeIs",
	TypeEqual:          "TypeEqual",
	Block:              "Block",
	Loop:               "Loop",
	Goto:               "Goto",
	Label:              "Label",
	Try:                "Try",
	Switch:             "Switch",
}

var byName = func() map[string]Kind {
	m := make(map[string]Kind, len(names))
	for k, n := range names {
		m[n] = k
	}
	return m
}()

// String returns the kind name.
func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "Unknown"
}

// Parse returns the kind with the given name.
func Parse(name string) (Kind, bool) {
	k, ok := byName[name]
	return k, ok
}

// IsUnary reports whether k is a unary operator.
func (k Kind) IsUnary() bool {
	return k >= Negate && k <= Decrement
}

// IsBinary reports whether k is a binary operator.
func (k Kind) IsBinary() bool {
	return k >= Add && k <= Assign
}

// IsArithmetic reports whether k is a numeric binary operator whose result
// has the operand type.
func (k Kind) IsArithmetic() bool {
	switch k {
	case Add, AddChecked, Subtract, SubtractChecked, Multiply, MultiplyChecked, Divide, Modulo:
		return true
	}
	return false
}

// IsBitwise reports whether k is an integer (or boolean, for And/Or/ExclusiveOr)
// bitwise operator.
func (k Kind) IsBitwise() bool {
	switch k {
	case And, Or, ExclusiveOr, AndNot:
		return true
	}
	return false
}

// IsShift reports whether k is a shift operator.
func (k Kind) IsShift() bool {
	return k == LeftShift || k == RightShift
}

// IsComparison reports whether k produces a boolean from two operands of the
// same type.
func (k Kind) IsComparison() bool {
	switch k {
	case Equal, NotEqual, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		return true
	}
	return false
}

// IsOrdering reports whether k is a comparison that requires an ordered type.
func (k Kind) IsOrdering() bool {
	switch k {
	case LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		return true
	}
	return false
}

// IsLogical reports whether k is a short-circuiting boolean operator.
func (k Kind) IsLogical() bool {
	return k == AndAlso || k == OrElse
}

// IsChecked reports whether k performs overflow checking.
func (k Kind) IsChecked() bool {
	switch k {
	case AddChecked, SubtractChecked, MultiplyChecked, NegateChecked, ConvertChecked:
		return true
	}
	return false
}

// Symbol returns the Go operator token for k, or "" when k has no infix form.
func (k Kind) Symbol() string {
	switch k {
	case Add, AddChecked, UnaryPlus:
		return "+"
	case Subtract, SubtractChecked, Negate, NegateChecked:
		return "-"
	case Multiply, MultiplyChecked:
		return "*"
	case Divide:
		return "/"
	case Modulo:
		return "%"
	case And:
		return "&"
	case Or:
		return "|"
	case ExclusiveOr, OnesComplement:
		return "^"
	case AndNot:
		return "&^"
	case LeftShift:
		return "<<"
	case RightShift:
		return ">>"
	case AndAlso:
		return "&&"
	case OrElse:
		return "||"
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	case Coalesce:
		return "??"
	case Assign:
		return "="
	case Not:
		return "!"
	}
	return ""
}

// GotoKind distinguishes the flavours of a Goto node.
type GotoKind int

const (
	GotoJump GotoKind = iota
	GotoReturn
	GotoBreak
	GotoContinue
)

// String returns the goto kind name.
func (g GotoKind) String() string {
	switch g {
	case GotoJump:
		return "goto"
	case GotoReturn:
		return "return"
	case GotoBreak:
		return "break"
	case GotoContinue:
		return "continue"
	}
	return "unknown"
}
