package typesys

import (
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/slim/internal/slim"
)

// typeKey renders a descriptor so that structurally equal descriptors get
// the same key. Structural property order is irrelevant. Cycles render as a
// back-reference to the depth of the enclosing structural type.
func typeKey(t slim.Type) string {
	var sb strings.Builder
	writeKey(&sb, t, nil)
	return sb.String()
}

func writeKey(sb *strings.Builder, t slim.Type, stack []*slim.StructuralType) {
	switch x := t.(type) {
	case nil:
		sb.WriteString("nil")
	case *slim.SimpleType:
		sb.WriteString("S(" + strconv.Quote(x.Assembly) + "," + strconv.Quote(x.Name) + ")")
	case *slim.GenericDefinitionType:
		sb.WriteString("D(" + strconv.Quote(x.Assembly) + "," + strconv.Quote(x.Name) + ")")
	case *slim.GenericType:
		sb.WriteString("G(")
		writeKey(sb, x.Definition, stack)
		for _, a := range x.Arguments {
			sb.WriteByte(',')
			writeKey(sb, a, stack)
		}
		sb.WriteByte(')')
	case *slim.ArrayType:
		sb.WriteString("A" + strconv.Itoa(x.Rank) + "(")
		writeKey(sb, x.Element, stack)
		sb.WriteByte(')')
	case *slim.GenericParameterType:
		sb.WriteString("P(" + strconv.Quote(x.Name) + "," + strconv.Itoa(x.Position) + ")")
	case *slim.StructuralType:
		if i := slices.Index(stack, x); i >= 0 {
			sb.WriteString("^" + strconv.Itoa(len(stack)-i))
			return
		}
		stack = append(stack, x)
		sb.WriteString("T" + x.StructuralKind().String() + strconv.FormatBool(x.HasValueEquality()) + "{")
		for i, name := range x.SortedPropertyNames() {
			if i > 0 {
				sb.WriteByte(';')
			}
			p, _ := x.Property(name)
			sb.WriteString(strconv.Quote(name) + ":")
			writeKey(sb, p.Type, stack)
		}
		sb.WriteByte('}')
	}
}
