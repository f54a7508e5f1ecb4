package slim

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/roach88/slim/internal/op"
)

// Version identifies the payload format written by Marshal.
const Version = "slim/v1"

// envelope is the wire form of a payload. Types, parameters and label
// targets live in tables and are referenced by index, which preserves
// identity and lets structural types refer to themselves.
type envelope struct {
	Version string        `json:"version"`
	Types   []*typeEntry  `json:"types"`
	Params  []*paramEntry `json:"params,omitempty"`
	Labels  []*labelEntry `json:"labels,omitempty"`
	Root    *int          `json:"root,omitempty"`
	Expr    *nodeEntry    `json:"expr,omitempty"`
}

type typeEntry struct {
	K     string       `json:"k"`
	Asm   string       `json:"asm,omitempty"`
	Name  string       `json:"name,omitempty"`
	Def   *int         `json:"def,omitempty"`
	Args  []int        `json:"args,omitempty"`
	Elem  *int         `json:"elem,omitempty"`
	Rank  int          `json:"rank,omitempty"`
	Pos   int          `json:"pos,omitempty"`
	SK    string       `json:"sk,omitempty"`
	VE    bool         `json:"ve,omitempty"`
	Props []*propEntry `json:"props,omitempty"`
}

type propEntry struct {
	Name string `json:"name"`
	T    int    `json:"t"`
	W    bool   `json:"w,omitempty"`
}

type paramEntry struct {
	Name string `json:"name,omitempty"`
	T    int    `json:"t"`
}

type labelEntry struct {
	Name string `json:"name,omitempty"`
	T    *int   `json:"t,omitempty"`
}

type memberEntry struct {
	K    string       `json:"k"`
	D    int          `json:"d"`
	Name string       `json:"name,omitempty"`
	T    *int         `json:"t,omitempty"`
	Ps   []int        `json:"ps,omitempty"`
	W    bool         `json:"w,omitempty"`
	GPs  []int        `json:"gps,omitempty"`
	Def  *memberEntry `json:"def,omitempty"`
	Args []int        `json:"args,omitempty"`
}

type initEntry struct {
	M    *memberEntry `json:"m,omitempty"`
	Args []*nodeEntry `json:"args"`
}

type bindEntry struct {
	K     string       `json:"k"`
	M     *memberEntry `json:"m"`
	X     *nodeEntry   `json:"x,omitempty"`
	Binds []*bindEntry `json:"binds,omitempty"`
	Inits []*initEntry `json:"inits,omitempty"`
}

type catchEntry struct {
	T int        `json:"t"`
	P *int       `json:"p,omitempty"`
	X *nodeEntry `json:"x"`
	F *nodeEntry `json:"f,omitempty"`
}

type caseEntry struct {
	Tests []*nodeEntry `json:"tests"`
	X     *nodeEntry   `json:"x"`
}

type nodeEntry struct {
	N        string          `json:"n"`
	T        *int            `json:"t,omitempty"`
	V        json.RawMessage `json:"v,omitempty"`
	P        *int            `json:"p,omitempty"`
	Ps       []int           `json:"ps,omitempty"`
	Name     string          `json:"name,omitempty"`
	Lift     bool            `json:"lift,omitempty"`
	M        *memberEntry    `json:"m,omitempty"`
	Conv     *nodeEntry      `json:"conv,omitempty"`
	X        *nodeEntry      `json:"x,omitempty"`
	L        *nodeEntry      `json:"l,omitempty"`
	R        *nodeEntry      `json:"r,omitempty"`
	Args     []*nodeEntry    `json:"args,omitempty"`
	E        *int            `json:"e,omitempty"`
	New      *nodeEntry      `json:"new,omitempty"`
	Inits    []*initEntry    `json:"inits,omitempty"`
	Binds    []*bindEntry    `json:"binds,omitempty"`
	Brk      *int            `json:"brk,omitempty"`
	Cont     *int            `json:"cont,omitempty"`
	Lbl      *int            `json:"lbl,omitempty"`
	GK       string          `json:"gk,omitempty"`
	Handlers []*catchEntry   `json:"handlers,omitempty"`
	Fin      *nodeEntry      `json:"fin,omitempty"`
	Fault    *nodeEntry      `json:"fault,omitempty"`
	Cases    []*caseEntry    `json:"cases,omitempty"`
	D        *nodeEntry      `json:"d,omitempty"`
}

const (
	typeSimple     = "simple"
	typeDefinition = "gdef"
	typeGeneric    = "generic"
	typeArray      = "array"
	typeStructural = "struct"
	typeParameter  = "gparam"

	memberField       = "field"
	memberProperty    = "property"
	memberMethod      = "method"
	memberGenericDef  = "gmethoddef"
	memberGenericInst = "gmethod"
	memberConstructor = "ctor"

	bindAssign = "assign"
	bindMember = "member"
	bindList   = "list"
)

var structuralKinds = map[string]StructuralKind{
	"record": StructuralRecord,
	"struct": StructuralAnonymous,
	"tuple":  StructuralTuple,
}

var gotoKinds = map[string]op.GotoKind{
	"goto":     op.GotoJump,
	"return":   op.GotoReturn,
	"break":    op.GotoBreak,
	"continue": op.GotoContinue,
}

// Marshal encodes an expression tree, with all the types, parameters and
// label targets it references, into a self-contained JSON payload.
func Marshal(e Expression) ([]byte, error) {
	if e == nil {
		return nil, NewArgumentError("", "cannot marshal nil expression")
	}
	enc := newEncoder()
	root, err := enc.node(e)
	if err != nil {
		return nil, err
	}
	env := enc.envelope()
	env.Expr = root
	return json.Marshal(env)
}

// MarshalType encodes a single type descriptor.
func MarshalType(t Type) ([]byte, error) {
	if t == nil {
		return nil, NewArgumentError("", "cannot marshal nil type")
	}
	enc := newEncoder()
	idx := enc.typ(t)
	env := enc.envelope()
	env.Root = &idx
	return json.Marshal(env)
}

type encoder struct {
	types     []*typeEntry
	byKey     map[string]int
	byPointer map[Type]int
	params    []*paramEntry
	paramIdx  map[*Parameter]int
	labels    []*labelEntry
	labelIdx  map[*LabelTarget]int
}

func newEncoder() *encoder {
	return &encoder{
		byKey:     make(map[string]int),
		byPointer: make(map[Type]int),
		paramIdx:  make(map[*Parameter]int),
		labelIdx:  make(map[*LabelTarget]int),
	}
}

func (c *encoder) envelope() *envelope {
	return &envelope{Version: Version, Types: c.types, Params: c.params, Labels: c.labels}
}

// typ interns t into the type table. Descriptors without structural parts
// are deduplicated by value; anything containing a structural type is keyed
// by identity.
func (c *encoder) typ(t Type) int {
	if i, ok := c.byPointer[t]; ok {
		return i
	}
	var key string
	if !containsStructural(t) {
		key = typeKey(t)
		if i, ok := c.byKey[key]; ok {
			c.byPointer[t] = i
			return i
		}
	}
	entry := &typeEntry{}
	idx := len(c.types)
	c.types = append(c.types, entry)
	c.byPointer[t] = idx
	if key != "" {
		c.byKey[key] = idx
	}
	switch x := t.(type) {
	case *SimpleType:
		entry.K, entry.Asm, entry.Name = typeSimple, x.Assembly, x.Name
	case *GenericDefinitionType:
		entry.K, entry.Asm, entry.Name = typeDefinition, x.Assembly, x.Name
	case *GenericType:
		entry.K = typeGeneric
		def := c.typ(x.Definition)
		entry.Def = &def
		entry.Args = c.typeList(x.Arguments)
	case *ArrayType:
		entry.K, entry.Rank = typeArray, x.Rank
		elem := c.typ(x.Element)
		entry.Elem = &elem
	case *GenericParameterType:
		entry.K, entry.Name, entry.Pos = typeParameter, x.Name, x.Position
	case *StructuralType:
		entry.K, entry.SK, entry.VE = typeStructural, x.kind.String(), x.valueEquality
		for _, p := range x.props {
			entry.Props = append(entry.Props, &propEntry{Name: p.Name, T: c.typ(p.Type), W: p.CanWrite})
		}
	}
	return idx
}

func containsStructural(t Type) bool {
	switch x := t.(type) {
	case *StructuralType:
		return true
	case *GenericType:
		for _, a := range x.Arguments {
			if containsStructural(a) {
				return true
			}
		}
	case *ArrayType:
		return containsStructural(x.Element)
	}
	return false
}

// typeKey is an injective rendering of a descriptor without structural parts.
func typeKey(t Type) string {
	switch x := t.(type) {
	case *SimpleType:
		return "S(" + strconv.Quote(x.Assembly) + "," + strconv.Quote(x.Name) + ")"
	case *GenericDefinitionType:
		return "D(" + strconv.Quote(x.Assembly) + "," + strconv.Quote(x.Name) + ")"
	case *GenericType:
		var sb strings.Builder
		sb.WriteString("G(")
		if x.Definition != nil {
			sb.WriteString(typeKey(x.Definition))
		}
		for _, a := range x.Arguments {
			sb.WriteString(";" + typeKey(a))
		}
		sb.WriteString(")")
		return sb.String()
	case *ArrayType:
		return "A(" + strconv.Itoa(x.Rank) + "," + typeKey(x.Element) + ")"
	case *GenericParameterType:
		return "P(" + strconv.Quote(x.Name) + "," + strconv.Itoa(x.Position) + ")"
	}
	return "?"
}

func (c *encoder) typeList(ts []Type) []int {
	if len(ts) == 0 {
		return nil
	}
	out := make([]int, len(ts))
	for i, t := range ts {
		out[i] = c.typ(t)
	}
	return out
}

func (c *encoder) optType(t Type) *int {
	if t == nil {
		return nil
	}
	i := c.typ(t)
	return &i
}

func (c *encoder) param(p *Parameter) (int, error) {
	if i, ok := c.paramIdx[p]; ok {
		return i, nil
	}
	if p.Type == nil {
		return 0, NewArgumentError(p.Name, "parameter has no type")
	}
	i := len(c.params)
	c.params = append(c.params, &paramEntry{Name: p.Name, T: c.typ(p.Type)})
	c.paramIdx[p] = i
	return i, nil
}

func (c *encoder) paramList(ps []*Parameter) ([]int, error) {
	out := make([]int, len(ps))
	for i, p := range ps {
		idx, err := c.param(p)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

func (c *encoder) label(l *LabelTarget) *int {
	if l == nil {
		return nil
	}
	if i, ok := c.labelIdx[l]; ok {
		return &i
	}
	i := len(c.labels)
	c.labels = append(c.labels, &labelEntry{Name: l.Name, T: c.optType(l.Type)})
	c.labelIdx[l] = i
	return &i
}

func (c *encoder) member(m MemberInfo) *memberEntry {
	if m == nil {
		return nil
	}
	entry := &memberEntry{D: c.typ(m.DeclaringType()), Name: m.MemberName()}
	switch x := m.(type) {
	case *FieldInfo:
		entry.K, entry.T = memberField, c.optType(x.FieldType)
	case *PropertyInfo:
		entry.K, entry.T, entry.W = memberProperty, c.optType(x.PropertyType), x.CanWrite
		entry.Ps = c.typeList(x.IndexParameterTypes)
	case *ConstructorInfo:
		entry.K, entry.Name = memberConstructor, ""
		entry.Ps = c.typeList(x.ParameterTypes)
	case *SimpleMethod:
		entry.K, entry.T = memberMethod, c.optType(x.ReturnType)
		entry.Ps = c.typeList(x.ParameterTypes)
	case *GenericDefinitionMethod:
		entry.K, entry.T = memberGenericDef, c.optType(x.ReturnType)
		entry.Ps = c.typeList(x.ParameterTypes)
		for _, gp := range x.GenericParameters {
			entry.GPs = append(entry.GPs, c.typ(gp))
		}
	case *GenericMethod:
		entry.K = memberGenericInst
		entry.Name = ""
		entry.Def = c.member(x.Definition)
		entry.Args = c.typeList(x.Arguments)
	}
	return entry
}

func (c *encoder) nodes(es []Expression) ([]*nodeEntry, error) {
	if len(es) == 0 {
		return nil, nil
	}
	out := make([]*nodeEntry, len(es))
	for i, e := range es {
		n, err := c.node(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (c *encoder) inits(is []*ElementInit) ([]*initEntry, error) {
	out := make([]*initEntry, len(is))
	for i, in := range is {
		args, err := c.nodes(in.Arguments)
		if err != nil {
			return nil, err
		}
		out[i] = &initEntry{M: c.member(in.AddMethod), Args: args}
	}
	return out, nil
}

func (c *encoder) bindings(bs []MemberBinding) ([]*bindEntry, error) {
	out := make([]*bindEntry, len(bs))
	for i, b := range bs {
		entry := &bindEntry{M: c.member(b.BoundMember())}
		var err error
		switch x := b.(type) {
		case *Assignment:
			entry.K = bindAssign
			entry.X, err = c.node(x.Expression)
		case *MemberMemberBinding:
			entry.K = bindMember
			entry.Binds, err = c.bindings(x.Bindings)
		case *MemberListBinding:
			entry.K = bindList
			entry.Inits, err = c.inits(x.Initializers)
		}
		if err != nil {
			return nil, err
		}
		out[i] = entry
	}
	return out, nil
}

// optNode encodes a possibly nil child.
func (c *encoder) optNode(e Expression) (*nodeEntry, error) {
	if e == nil {
		return nil, nil
	}
	return c.node(e)
}

func (c *encoder) node(e Expression) (*nodeEntry, error) {
	if e == nil {
		return nil, NewArgumentError("", "nil expression in tree")
	}
	n := &nodeEntry{N: e.NodeType().String(), T: c.optType(TypeOf(e))}
	var err error
	switch x := e.(type) {
	case *Constant:
		n.V, err = encodeValue(x.Value, x.Type)
	case *Default:
	case *Parameter:
		var i int
		i, err = c.param(x)
		n.T = nil
		n.P = &i
	case *Unary:
		n.M = c.member(x.Method)
		n.X, err = c.node(x.Operand)
	case *Binary:
		n.Lift = x.LiftToNull
		n.M = c.member(x.Method)
		if x.Conversion != nil {
			if n.Conv, err = c.node(x.Conversion); err != nil {
				return nil, err
			}
		}
		if n.L, err = c.node(x.Left); err != nil {
			return nil, err
		}
		n.R, err = c.node(x.Right)
	case *Conditional:
		if n.X, err = c.node(x.Test); err != nil {
			return nil, err
		}
		if n.L, err = c.node(x.IfTrue); err != nil {
			return nil, err
		}
		n.R, err = c.node(x.IfFalse)
	case *Lambda:
		n.Name = x.Name
		if n.Ps, err = c.paramList(x.Parameters); err != nil {
			return nil, err
		}
		n.X, err = c.node(x.Body)
	case *Invocation:
		if n.X, err = c.node(x.Expression); err != nil {
			return nil, err
		}
		n.Args, err = c.nodes(x.Arguments)
	case *Call:
		n.M = c.member(x.Method)
		if n.X, err = c.optNode(x.Object); err != nil {
			return nil, err
		}
		n.Args, err = c.nodes(x.Arguments)
	case *Member:
		n.M = c.member(x.Member)
		n.X, err = c.optNode(x.Expression)
	case *Index:
		if x.Indexer != nil {
			n.M = c.member(x.Indexer)
		}
		if n.X, err = c.node(x.Object); err != nil {
			return nil, err
		}
		n.Args, err = c.nodes(x.Arguments)
	case *New:
		if x.Constructor != nil {
			n.M = c.member(x.Constructor)
		}
		n.Args, err = c.nodes(x.Arguments)
	case *NewArray:
		n.E = c.optType(x.ElementType)
		n.Args, err = c.nodes(x.Expressions)
	case *ListInit:
		if n.New, err = c.node(x.New); err != nil {
			return nil, err
		}
		n.Inits, err = c.inits(x.Initializers)
	case *MemberInit:
		if n.New, err = c.node(x.New); err != nil {
			return nil, err
		}
		n.Binds, err = c.bindings(x.Bindings)
	case *TypeBinary:
		n.E = c.optType(x.TypeOperand)
		n.X, err = c.node(x.Expression)
	case *Block:
		if n.Ps, err = c.paramList(x.Variables); err != nil {
			return nil, err
		}
		n.Args, err = c.nodes(x.Expressions)
	case *Loop:
		n.Brk, n.Cont = c.label(x.BreakLabel), c.label(x.ContinueLabel)
		n.X, err = c.node(x.Body)
	case *Goto:
		n.GK = x.Kind.String()
		n.Lbl = c.label(x.Target)
		n.X, err = c.optNode(x.Value)
	case *Label:
		n.Lbl = c.label(x.Target)
		n.X, err = c.optNode(x.DefaultValue)
	case *Try:
		if n.X, err = c.node(x.Body); err != nil {
			return nil, err
		}
		for _, h := range x.Handlers {
			ce := &catchEntry{T: c.typ(h.Test)}
			if h.Variable != nil {
				var i int
				if i, err = c.param(h.Variable); err != nil {
					return nil, err
				}
				ce.P = &i
			}
			if ce.X, err = c.node(h.Body); err != nil {
				return nil, err
			}
			if ce.F, err = c.optNode(h.Filter); err != nil {
				return nil, err
			}
			n.Handlers = append(n.Handlers, ce)
		}
		if n.Fin, err = c.optNode(x.Finally); err != nil {
			return nil, err
		}
		n.Fault, err = c.optNode(x.Fault)
	case *Switch:
		n.M = c.member(x.Comparison)
		if n.X, err = c.node(x.SwitchValue); err != nil {
			return nil, err
		}
		for _, sc := range x.Cases {
			ce := &caseEntry{}
			if ce.Tests, err = c.nodes(sc.TestValues); err != nil {
				return nil, err
			}
			if ce.X, err = c.node(sc.Body); err != nil {
				return nil, err
			}
			n.Cases = append(n.Cases, ce)
		}
		n.D, err = c.optNode(x.DefaultBody)
	default:
		return nil, NewArgumentError(fmt.Sprintf("%T", e), "unsupported expression node")
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// encodeValue writes a constant value. Complex numbers, which JSON cannot
// represent, are written as [real, imag].
func encodeValue(v any, t Type) (json.RawMessage, error) {
	switch x := v.(type) {
	case Lifted:
		if !json.Valid(x) {
			return nil, NewArgumentError(FormatType(t), "lifted constant is not valid JSON")
		}
		return json.RawMessage(x), nil
	case complex64:
		return json.Marshal([2]float32{real(x), imag(x)})
	case complex128:
		return json.Marshal([2]float64{real(x), imag(x)})
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, NewArgumentError(FormatType(t), "constant value cannot be encoded").WithCause(err)
	}
	return b, nil
}

// Unmarshal decodes a payload written by Marshal. Parameter and label
// identity is restored: every reference to one table entry yields the same
// pointer. Constants of predeclared types (and pointers to them) decode to
// Go values; all other constants decode to Lifted.
func Unmarshal(data []byte) (Expression, error) {
	dec, env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Expr == nil {
		return nil, NewArgumentError("", "payload has no expression")
	}
	return dec.node(env.Expr)
}

// UnmarshalType decodes a payload written by MarshalType.
func UnmarshalType(data []byte) (Type, error) {
	dec, env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Root == nil {
		return nil, NewArgumentError("", "payload has no root type")
	}
	return dec.typ(*env.Root)
}

type decoder struct {
	types  []Type
	params []*Parameter
	labels []*LabelTarget
}

func decodeEnvelope(data []byte) (*decoder, *envelope, error) {
	if len(data) == 0 {
		return nil, nil, NewArgumentError("", "empty payload")
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, NewArgumentError("", "malformed payload").WithCause(err)
	}
	if env.Version != Version {
		return nil, nil, NewArgumentError(env.Version, "unsupported payload version")
	}
	dec := &decoder{}
	if err := dec.buildTypes(env.Types); err != nil {
		return nil, nil, err
	}
	for _, p := range env.Params {
		t, err := dec.typ(p.T)
		if err != nil {
			return nil, nil, err
		}
		dec.params = append(dec.params, &Parameter{Name: p.Name, Type: t})
	}
	for _, l := range env.Labels {
		lt := &LabelTarget{Name: l.Name}
		if l.T != nil {
			t, err := dec.typ(*l.T)
			if err != nil {
				return nil, nil, err
			}
			lt.Type = t
		}
		dec.labels = append(dec.labels, lt)
	}
	return dec, &env, nil
}

// buildTypes decodes the type table in passes: allocate every descriptor,
// link references, then populate and freeze structural types.
func (d *decoder) buildTypes(entries []*typeEntry) error {
	d.types = make([]Type, len(entries))
	for i, e := range entries {
		if e == nil {
			return NewArgumentError(fmt.Sprintf("types[%d]", i), "null type entry")
		}
		switch e.K {
		case typeSimple:
			d.types[i] = &SimpleType{Assembly: e.Asm, Name: e.Name}
		case typeDefinition:
			d.types[i] = &GenericDefinitionType{Assembly: e.Asm, Name: e.Name}
		case typeGeneric:
			d.types[i] = &GenericType{}
		case typeArray:
			d.types[i] = &ArrayType{Rank: e.Rank}
		case typeParameter:
			d.types[i] = &GenericParameterType{Name: e.Name, Position: e.Pos}
		case typeStructural:
			sk, ok := structuralKinds[e.SK]
			if !ok {
				return NewArgumentError(e.SK, "unknown structural kind")
			}
			d.types[i] = NewStructuralType(sk, e.VE)
		default:
			return NewArgumentError(e.K, "unknown type entry kind")
		}
	}
	for i, e := range entries {
		switch x := d.types[i].(type) {
		case *GenericType:
			if e.Def == nil {
				return NewArgumentError(fmt.Sprintf("types[%d]", i), "generic type has no definition")
			}
			def, err := d.typ(*e.Def)
			if err != nil {
				return err
			}
			gd, ok := def.(*GenericDefinitionType)
			if !ok {
				return NewArgumentError(fmt.Sprintf("types[%d]", i), "generic definition reference is %s", def.Kind())
			}
			x.Definition = gd
			if x.Arguments, err = d.typeList(e.Args); err != nil {
				return err
			}
		case *ArrayType:
			if e.Elem == nil {
				return NewArgumentError(fmt.Sprintf("types[%d]", i), "array type has no element")
			}
			elem, err := d.typ(*e.Elem)
			if err != nil {
				return err
			}
			x.Element = elem
		}
	}
	if err := d.checkAcyclic(); err != nil {
		return err
	}
	for i, e := range entries {
		st, ok := d.types[i].(*StructuralType)
		if !ok {
			continue
		}
		for _, p := range e.Props {
			t, err := d.typ(p.T)
			if err != nil {
				return err
			}
			if _, err := st.AddProperty(p.Name, t, p.W); err != nil {
				return err
			}
		}
		st.Freeze()
	}
	return nil
}

// checkAcyclic rejects a type table whose array elements or generic
// arguments lead back to where they started. Only structural types may
// close a cycle, and their properties are not linked yet.
func (d *decoder) checkAcyclic() error {
	const (
		visiting = 1
		finished = 2
	)
	state := make(map[Type]int, len(d.types))
	var visit func(t Type) error
	visit = func(t Type) error {
		switch state[t] {
		case visiting:
			return NewArgumentError("types", "type refers to itself outside a structural type")
		case finished:
			return nil
		}
		state[t] = visiting
		switch x := t.(type) {
		case *ArrayType:
			if err := visit(x.Element); err != nil {
				return err
			}
		case *GenericType:
			for _, a := range x.Arguments {
				if err := visit(a); err != nil {
					return err
				}
			}
		}
		state[t] = finished
		return nil
	}
	for _, t := range d.types {
		if err := visit(t); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) typ(i int) (Type, error) {
	if i < 0 || i >= len(d.types) {
		return nil, NewArgumentError(fmt.Sprintf("type %d", i), "type reference out of range")
	}
	return d.types[i], nil
}

func (d *decoder) optType(i *int) (Type, error) {
	if i == nil {
		return nil, nil
	}
	return d.typ(*i)
}

func (d *decoder) typeList(is []int) ([]Type, error) {
	if len(is) == 0 {
		return nil, nil
	}
	out := make([]Type, len(is))
	for k, i := range is {
		t, err := d.typ(i)
		if err != nil {
			return nil, err
		}
		out[k] = t
	}
	return out, nil
}

func (d *decoder) param(i int) (*Parameter, error) {
	if i < 0 || i >= len(d.params) {
		return nil, NewArgumentError(fmt.Sprintf("param %d", i), "parameter reference out of range")
	}
	return d.params[i], nil
}

func (d *decoder) paramList(is []int) ([]*Parameter, error) {
	out := make([]*Parameter, len(is))
	for k, i := range is {
		p, err := d.param(i)
		if err != nil {
			return nil, err
		}
		out[k] = p
	}
	return out, nil
}

func (d *decoder) label(i *int) (*LabelTarget, error) {
	if i == nil {
		return nil, nil
	}
	if *i < 0 || *i >= len(d.labels) {
		return nil, NewArgumentError(fmt.Sprintf("label %d", *i), "label reference out of range")
	}
	return d.labels[*i], nil
}

func (d *decoder) member(m *memberEntry) (MemberInfo, error) {
	if m == nil {
		return nil, nil
	}
	if m.K == memberGenericInst {
		def, err := d.member(m.Def)
		if err != nil {
			return nil, err
		}
		gd, ok := def.(*GenericDefinitionMethod)
		if !ok {
			return nil, NewArgumentError(m.Name, "generic method has no definition")
		}
		args, err := d.typeList(m.Args)
		if err != nil {
			return nil, err
		}
		return &GenericMethod{Definition: gd, Arguments: args}, nil
	}
	declaring, err := d.typ(m.D)
	if err != nil {
		return nil, err
	}
	t, err := d.optType(m.T)
	if err != nil {
		return nil, err
	}
	ps, err := d.typeList(m.Ps)
	if err != nil {
		return nil, err
	}
	switch m.K {
	case memberField:
		return &FieldInfo{Declaring: declaring, Name: m.Name, FieldType: t}, nil
	case memberProperty:
		return &PropertyInfo{Declaring: declaring, Name: m.Name, PropertyType: t, IndexParameterTypes: ps, CanWrite: m.W}, nil
	case memberConstructor:
		return &ConstructorInfo{Declaring: declaring, ParameterTypes: ps}, nil
	case memberMethod:
		return &SimpleMethod{Declaring: declaring, Name: m.Name, ParameterTypes: ps, ReturnType: t}, nil
	case memberGenericDef:
		gm := &GenericDefinitionMethod{Declaring: declaring, Name: m.Name, ParameterTypes: ps, ReturnType: t}
		for _, i := range m.GPs {
			gt, err := d.typ(i)
			if err != nil {
				return nil, err
			}
			gp, ok := gt.(*GenericParameterType)
			if !ok {
				return nil, NewArgumentError(m.Name, "generic method parameter is %s", gt.Kind())
			}
			gm.GenericParameters = append(gm.GenericParameters, gp)
		}
		return gm, nil
	}
	return nil, NewArgumentError(m.K, "unknown member kind")
}

func (d *decoder) method(m *memberEntry) (MethodInfo, error) {
	mi, err := d.member(m)
	if err != nil || mi == nil {
		return nil, err
	}
	method, ok := mi.(MethodInfo)
	if !ok {
		return nil, NewArgumentError(mi.MemberName(), "member is a %s, not a method", mi.MemberKind())
	}
	return method, nil
}

func (d *decoder) nodes(ns []*nodeEntry) ([]Expression, error) {
	if len(ns) == 0 {
		return nil, nil
	}
	out := make([]Expression, len(ns))
	for i, n := range ns {
		e, err := d.node(n)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (d *decoder) optNode(n *nodeEntry) (Expression, error) {
	if n == nil {
		return nil, nil
	}
	return d.node(n)
}

func (d *decoder) inits(is []*initEntry) ([]*ElementInit, error) {
	out := make([]*ElementInit, len(is))
	for i, in := range is {
		m, err := d.method(in.M)
		if err != nil {
			return nil, err
		}
		args, err := d.nodes(in.Args)
		if err != nil {
			return nil, err
		}
		out[i] = &ElementInit{AddMethod: m, Arguments: args}
	}
	return out, nil
}

func (d *decoder) bindings(bs []*bindEntry) ([]MemberBinding, error) {
	out := make([]MemberBinding, len(bs))
	for i, b := range bs {
		m, err := d.member(b.M)
		if err != nil {
			return nil, err
		}
		switch b.K {
		case bindAssign:
			x, err := d.node(b.X)
			if err != nil {
				return nil, err
			}
			out[i] = &Assignment{Member: m, Expression: x}
		case bindMember:
			nested, err := d.bindings(b.Binds)
			if err != nil {
				return nil, err
			}
			out[i] = &MemberMemberBinding{Member: m, Bindings: nested}
		case bindList:
			inits, err := d.inits(b.Inits)
			if err != nil {
				return nil, err
			}
			out[i] = &MemberListBinding{Member: m, Initializers: inits}
		default:
			return nil, NewArgumentError(b.K, "unknown binding kind")
		}
	}
	return out, nil
}

func (d *decoder) newNode(n *nodeEntry) (*New, error) {
	e, err := d.node(n)
	if err != nil {
		return nil, err
	}
	nn, ok := e.(*New)
	if !ok {
		return nil, NewArgumentError(n.N, "expected New node")
	}
	return nn, nil
}

func (d *decoder) node(n *nodeEntry) (Expression, error) {
	if n == nil {
		return nil, NewArgumentError("", "missing expression node")
	}
	kind, ok := op.Parse(n.N)
	if !ok {
		return nil, NewArgumentError(n.N, "unknown node kind")
	}
	t, err := d.optType(n.T)
	if err != nil {
		return nil, err
	}
	m, err := d.member(n.M)
	if err != nil {
		return nil, err
	}
	method := func() (MethodInfo, error) {
		if m == nil {
			return nil, nil
		}
		mi, ok := m.(MethodInfo)
		if !ok {
			return nil, NewArgumentError(m.MemberName(), "member is a %s, not a method", m.MemberKind())
		}
		return mi, nil
	}
	switch {
	case kind == op.Constant:
		v, err := decodeValue(n.V, t)
		if err != nil {
			return nil, err
		}
		return &Constant{Value: v, Type: t}, nil
	case kind == op.Default:
		return &Default{Type: t}, nil
	case kind == op.Parameter:
		if n.P == nil {
			return nil, NewArgumentError(n.N, "parameter node has no reference")
		}
		return d.param(*n.P)
	case kind.IsUnary():
		mi, err := method()
		if err != nil {
			return nil, err
		}
		x, err := d.node(n.X)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: kind, Operand: x, Method: mi, Type: t}, nil
	case kind.IsBinary():
		mi, err := method()
		if err != nil {
			return nil, err
		}
		b := &Binary{Op: kind, LiftToNull: n.Lift, Method: mi, Type: t}
		if n.Conv != nil {
			conv, err := d.node(n.Conv)
			if err != nil {
				return nil, err
			}
			lambda, ok := conv.(*Lambda)
			if !ok {
				return nil, NewArgumentError(n.N, "coalesce conversion is not a lambda")
			}
			b.Conversion = lambda
		}
		if b.Left, err = d.node(n.L); err != nil {
			return nil, err
		}
		if b.Right, err = d.node(n.R); err != nil {
			return nil, err
		}
		return b, nil
	}
	switch kind {
	case op.Conditional:
		c := &Conditional{Type: t}
		if c.Test, err = d.node(n.X); err != nil {
			return nil, err
		}
		if c.IfTrue, err = d.node(n.L); err != nil {
			return nil, err
		}
		if c.IfFalse, err = d.node(n.R); err != nil {
			return nil, err
		}
		return c, nil
	case op.Lambda:
		l := &Lambda{Name: n.Name, Type: t}
		if l.Parameters, err = d.paramList(n.Ps); err != nil {
			return nil, err
		}
		if l.Body, err = d.node(n.X); err != nil {
			return nil, err
		}
		return l, nil
	case op.Invoke:
		inv := &Invocation{Type: t}
		if inv.Expression, err = d.node(n.X); err != nil {
			return nil, err
		}
		if inv.Arguments, err = d.nodes(n.Args); err != nil {
			return nil, err
		}
		return inv, nil
	case op.Call:
		mi, err := method()
		if err != nil {
			return nil, err
		}
		if mi == nil {
			return nil, NewArgumentError(n.N, "call has no method")
		}
		c := &Call{Method: mi, Type: t}
		if c.Object, err = d.optNode(n.X); err != nil {
			return nil, err
		}
		if c.Arguments, err = d.nodes(n.Args); err != nil {
			return nil, err
		}
		return c, nil
	case op.MemberAccess:
		if m == nil {
			return nil, NewArgumentError(n.N, "member access has no member")
		}
		x, err := d.optNode(n.X)
		if err != nil {
			return nil, err
		}
		return &Member{Expression: x, Member: m, Type: t}, nil
	case op.Index:
		ix := &Index{Type: t}
		if m != nil {
			p, ok := m.(*PropertyInfo)
			if !ok {
				return nil, NewArgumentError(m.MemberName(), "indexer is not a property")
			}
			ix.Indexer = p
		}
		if ix.Object, err = d.node(n.X); err != nil {
			return nil, err
		}
		if ix.Arguments, err = d.nodes(n.Args); err != nil {
			return nil, err
		}
		return ix, nil
	case op.New:
		nn := &New{Type: t}
		if m != nil {
			ctor, ok := m.(*ConstructorInfo)
			if !ok {
				return nil, NewArgumentError(m.MemberName(), "new node member is not a constructor")
			}
			nn.Constructor = ctor
		}
		if nn.Arguments, err = d.nodes(n.Args); err != nil {
			return nil, err
		}
		return nn, nil
	case op.NewArrayInit, op.NewArrayBounds:
		elem, err := d.optType(n.E)
		if err != nil {
			return nil, err
		}
		exprs, err := d.nodes(n.Args)
		if err != nil {
			return nil, err
		}
		return &NewArray{Op: kind, ElementType: elem, Expressions: exprs, Type: t}, nil
	case op.ListInit:
		nn, err := d.newNode(n.New)
		if err != nil {
			return nil, err
		}
		inits, err := d.inits(n.Inits)
		if err != nil {
			return nil, err
		}
		return &ListInit{New: nn, Initializers: inits, Type: t}, nil
	case op.MemberInit:
		nn, err := d.newNode(n.New)
		if err != nil {
			return nil, err
		}
		binds, err := d.bindings(n.Binds)
		if err != nil {
			return nil, err
		}
		return &MemberInit{New: nn, Bindings: binds, Type: t}, nil
	case op.TypeIs, op.TypeEqual:
		operand, err := d.optType(n.E)
		if err != nil {
			return nil, err
		}
		x, err := d.node(n.X)
		if err != nil {
			return nil, err
		}
		return &TypeBinary{Op: kind, Expression: x, TypeOperand: operand, Type: t}, nil
	case op.Block:
		b := &Block{Type: t}
		if b.Variables, err = d.paramList(n.Ps); err != nil {
			return nil, err
		}
		if b.Expressions, err = d.nodes(n.Args); err != nil {
			return nil, err
		}
		return b, nil
	case op.Loop:
		l := &Loop{Type: t}
		if l.BreakLabel, err = d.label(n.Brk); err != nil {
			return nil, err
		}
		if l.ContinueLabel, err = d.label(n.Cont); err != nil {
			return nil, err
		}
		if l.Body, err = d.node(n.X); err != nil {
			return nil, err
		}
		return l, nil
	case op.Goto:
		gk, ok := gotoKinds[n.GK]
		if !ok {
			return nil, NewArgumentError(n.GK, "unknown goto kind")
		}
		g := &Goto{Kind: gk, Type: t}
		if g.Target, err = d.label(n.Lbl); err != nil {
			return nil, err
		}
		if g.Value, err = d.optNode(n.X); err != nil {
			return nil, err
		}
		return g, nil
	case op.Label:
		l := &Label{Type: t}
		if l.Target, err = d.label(n.Lbl); err != nil {
			return nil, err
		}
		if l.DefaultValue, err = d.optNode(n.X); err != nil {
			return nil, err
		}
		return l, nil
	case op.Try:
		tr := &Try{Type: t}
		if tr.Body, err = d.node(n.X); err != nil {
			return nil, err
		}
		for _, h := range n.Handlers {
			cb := &CatchBlock{}
			if cb.Test, err = d.typ(h.T); err != nil {
				return nil, err
			}
			if h.P != nil {
				if cb.Variable, err = d.param(*h.P); err != nil {
					return nil, err
				}
			}
			if cb.Body, err = d.node(h.X); err != nil {
				return nil, err
			}
			if cb.Filter, err = d.optNode(h.F); err != nil {
				return nil, err
			}
			tr.Handlers = append(tr.Handlers, cb)
		}
		if tr.Finally, err = d.optNode(n.Fin); err != nil {
			return nil, err
		}
		if tr.Fault, err = d.optNode(n.Fault); err != nil {
			return nil, err
		}
		return tr, nil
	case op.Switch:
		mi, err := method()
		if err != nil {
			return nil, err
		}
		s := &Switch{Comparison: mi, Type: t}
		if s.SwitchValue, err = d.node(n.X); err != nil {
			return nil, err
		}
		for _, c := range n.Cases {
			sc := &SwitchCase{}
			if sc.TestValues, err = d.nodes(c.Tests); err != nil {
				return nil, err
			}
			if sc.Body, err = d.node(c.X); err != nil {
				return nil, err
			}
			s.Cases = append(s.Cases, sc)
		}
		if s.DefaultBody, err = d.optNode(n.D); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, NewArgumentError(n.N, "unsupported node kind")
}

var basicGoTypes = map[string]reflect.Type{
	"bool":       reflect.TypeFor[bool](),
	"int":        reflect.TypeFor[int](),
	"int8":       reflect.TypeFor[int8](),
	"int16":      reflect.TypeFor[int16](),
	"int32":      reflect.TypeFor[int32](),
	"int64":      reflect.TypeFor[int64](),
	"uint":       reflect.TypeFor[uint](),
	"uint8":      reflect.TypeFor[uint8](),
	"uint16":     reflect.TypeFor[uint16](),
	"uint32":     reflect.TypeFor[uint32](),
	"uint64":     reflect.TypeFor[uint64](),
	"uintptr":    reflect.TypeFor[uintptr](),
	"float32":    reflect.TypeFor[float32](),
	"float64":    reflect.TypeFor[float64](),
	"complex64":  reflect.TypeFor[complex64](),
	"complex128": reflect.TypeFor[complex128](),
	"string":     reflect.TypeFor[string](),
}

// decodeValue reads a constant value for type t.
func decodeValue(raw json.RawMessage, t Type) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if gt, ok := basicGoType(t); ok {
		return decodeBasic(raw, gt, t)
	}
	if elem, ok := NullableUnderlying(t); ok {
		gt, _ := basicGoType(elem)
		v, err := decodeBasic(raw, gt, t)
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(gt)
		ptr.Elem().Set(reflect.ValueOf(v))
		return ptr.Interface(), nil
	}
	return Lifted(append([]byte(nil), raw...)), nil
}

func basicGoType(t Type) (reflect.Type, bool) {
	st, ok := t.(*SimpleType)
	if !ok || st.Assembly != "" {
		return nil, false
	}
	gt, ok := basicGoTypes[st.Name]
	return gt, ok
}

func decodeBasic(raw json.RawMessage, gt reflect.Type, t Type) (any, error) {
	switch gt.Kind() {
	case reflect.Complex64, reflect.Complex128:
		var parts [2]float64
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, NewArgumentError(FormatType(t), "malformed complex constant").WithCause(err)
		}
		c := complex(parts[0], parts[1])
		return reflect.ValueOf(c).Convert(gt).Interface(), nil
	}
	ptr := reflect.New(gt)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return nil, NewArgumentError(FormatType(t), "malformed constant").WithCause(err)
	}
	return ptr.Elem().Interface(), nil
}
