package slim

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// hasher feeds length-delimited fields into an xxhash digest.
type hasher struct {
	d   *xxhash.Digest
	buf [8]byte
}

func newHasher() *hasher {
	return &hasher{d: xxhash.New()}
}

func (h *hasher) u64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.d.Write(h.buf[:])
}

func (h *hasher) str(s string) {
	h.u64(uint64(len(s)))
	_, _ = h.d.WriteString(s)
}

func (h *hasher) bytes(b []byte) {
	h.u64(uint64(len(b)))
	_, _ = h.d.Write(b)
}

func (h *hasher) flag(b bool) {
	if b {
		h.u64(1)
	} else {
		h.u64(0)
	}
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}

// HashType returns a structural hash of t consistent with TypeEqual.
//
// Structural types contribute their equality flag and sorted property names,
// plus the hashes of non-structural property types. Property types that are
// themselves structural contribute only their names, which keeps the hash
// finite on cyclic shapes.
func HashType(t Type) uint64 {
	h := newHasher()
	h.typ(t, false)
	return h.sum()
}

func (h *hasher) typ(t Type, inStructural bool) {
	if t == nil {
		h.u64(0)
		return
	}
	h.u64(uint64(t.Kind()) + 1)
	switch x := t.(type) {
	case *SimpleType:
		h.str(x.Assembly)
		h.str(x.Name)
	case *GenericDefinitionType:
		h.str(x.Assembly)
		h.str(x.Name)
	case *GenericType:
		if x.Definition != nil {
			h.str(x.Definition.Assembly)
			h.str(x.Definition.Name)
		}
		h.u64(uint64(len(x.Arguments)))
		for _, a := range x.Arguments {
			h.typ(a, inStructural)
		}
	case *ArrayType:
		h.u64(uint64(x.Rank))
		h.typ(x.Element, inStructural)
	case *GenericParameterType:
		h.u64(uint64(x.Position))
		h.str(x.Name)
	case *StructuralType:
		h.flag(x.valueEquality)
		for _, name := range x.SortedPropertyNames() {
			h.str(name)
			if inStructural {
				continue
			}
			p, _ := x.Property(name)
			h.typ(p.Type, true)
		}
	}
}

func (h *hasher) member(m MemberInfo) {
	if m == nil {
		h.u64(0)
		return
	}
	h.u64(uint64(m.MemberKind()) + 1)
	h.str(m.MemberName())
	h.typ(m.DeclaringType(), false)
	switch x := m.(type) {
	case *FieldInfo:
		h.typ(x.FieldType, false)
	case *PropertyInfo:
		h.typ(x.PropertyType, false)
		h.types(x.IndexParameterTypes)
	case *ConstructorInfo:
		h.types(x.ParameterTypes)
	case MethodInfo:
		h.types(x.Parameters())
		h.typ(x.Result(), false)
	}
}

func (h *hasher) types(ts []Type) {
	h.u64(uint64(len(ts)))
	for _, t := range ts {
		h.typ(t, false)
	}
}

// HashExpression returns a structural hash of e consistent with
// StructuralComparer (under either global-parameter policy).
//
// Bound parameters hash by declaration order, so alpha-equivalent trees hash
// alike. Global parameters hash by name and type. Constants hash by type and
// by the canonical JSON of their value.
func HashExpression(e Expression) uint64 {
	w := &exprHasher{h: newHasher(), bound: make(map[*Parameter]int)}
	w.expr(e)
	return w.h.sum()
}

type exprHasher struct {
	h     *hasher
	bound map[*Parameter]int
	next  int
}

func (w *exprHasher) declare(ps []*Parameter) {
	w.h.u64(uint64(len(ps)))
	for _, p := range ps {
		w.bound[p] = w.next
		w.next++
		w.h.typ(p.Type, false)
	}
}

func (w *exprHasher) list(es []Expression) {
	w.h.u64(uint64(len(es)))
	for _, e := range es {
		w.expr(e)
	}
}

func (w *exprHasher) inits(is []*ElementInit) {
	w.h.u64(uint64(len(is)))
	for _, i := range is {
		w.h.member(i.AddMethod)
		w.list(i.Arguments)
	}
}

func (w *exprHasher) bindings(bs []MemberBinding) {
	w.h.u64(uint64(len(bs)))
	for _, b := range bs {
		w.h.u64(uint64(b.BindingKind()))
		w.h.member(b.BoundMember())
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

func (w *exprHasher) label(l *LabelTarget) {
	if l == nil {
		w.h.u64(0)
		return
	}
	w.h.u64(1)
	w.h.typ(l.Type, false)
}

func (w *exprHasher) newNode(n *New) {
	if n == nil {
		w.h.u64(0)
		return
	}
	w.h.typ(n.Type, false)
	if n.Constructor != nil {
		w.h.member(n.Constructor)
	} else {
		w.h.u64(0)
	}
	w.list(n.Arguments)
}

func (w *exprHasher) expr(e Expression) {
	if e == nil {
		w.h.u64(0)
		return
	}
	w.h.u64(uint64(e.NodeType()) + 1)
	w.h.typ(TypeOf(e), false)
	switch x := e.(type) {
	case *Constant:
		w.h.bytes(valueKey(x.Value))
	case *Default:
	case *Parameter:
		if i, ok := w.bound[x]; ok {
			w.h.u64(1)
			w.h.u64(uint64(i))
		} else {
			w.h.u64(2)
			w.h.str(x.Name)
		}
	case *Unary:
		w.h.member(x.Method)
		w.expr(x.Operand)
	case *Binary:
		w.h.flag(x.LiftToNull)
		w.h.member(x.Method)
		if x.Conversion != nil {
			w.expr(x.Conversion)
		} else {
			w.h.u64(0)
		}
		w.expr(x.Left)
		w.expr(x.Right)
	case *Conditional:
		w.expr(x.Test)
		w.expr(x.IfTrue)
		w.expr(x.IfFalse)
	case *Lambda:
		w.declare(x.Parameters)
		w.expr(x.Body)
	case *Invocation:
		w.expr(x.Expression)
		w.list(x.Arguments)
	case *Call:
		w.h.member(x.Method)
		w.expr(x.Object)
		w.list(x.Arguments)
	case *Member:
		w.h.member(x.Member)
		w.expr(x.Expression)
	case *Index:
		if x.Indexer != nil {
			w.h.member(x.Indexer)
		} else {
			w.h.u64(0)
		}
		w.expr(x.Object)
		w.list(x.Arguments)
	case *New:
		w.newNode(x)
	case *NewArray:
		w.h.typ(x.ElementType, false)
		w.list(x.Expressions)
	case *ListInit:
		w.newNode(x.New)
		w.inits(x.Initializers)
	case *MemberInit:
		w.newNode(x.New)
		w.bindings(x.Bindings)
	case *TypeBinary:
		w.h.typ(x.TypeOperand, false)
		w.expr(x.Expression)
	case *Block:
		w.declare(x.Variables)
		w.list(x.Expressions)
	case *Loop:
		w.label(x.BreakLabel)
		w.label(x.ContinueLabel)
		w.expr(x.Body)
	case *Goto:
		w.h.u64(uint64(x.Kind))
		w.label(x.Target)
		w.expr(x.Value)
	case *Label:
		w.label(x.Target)
		w.expr(x.DefaultValue)
	case *Try:
		w.expr(x.Body)
		w.h.u64(uint64(len(x.Handlers)))
		for _, c := range x.Handlers {
			w.h.typ(c.Test, false)
			if c.Variable != nil {
				w.declare([]*Parameter{c.Variable})
			} else {
				w.h.u64(0)
			}
			w.expr(c.Filter)
			w.expr(c.Body)
		}
		w.expr(x.Finally)
		w.expr(x.Fault)
	case *Switch:
		w.h.member(x.Comparison)
		w.expr(x.SwitchValue)
		w.h.u64(uint64(len(x.Cases)))
		for _, c := range x.Cases {
			w.list(c.TestValues)
			w.expr(c.Body)
		}
		w.expr(x.DefaultBody)
	}
}

// valueKey returns the canonical JSON of a constant value, falling back to
// its printed form for values JSON cannot encode.
func valueKey(v any) []byte {
	l, lifted := v.(Lifted)
	if b, err := valueJSON(v, l, lifted); err == nil {
		return b
	}
	return []byte(fmt.Sprintf("%T:%v", v, v))
}
