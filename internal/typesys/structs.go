package typesys

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"

	"github.com/roach88/slim/internal/slim"
)

// Tag is the struct tag carried by every field of a materialized
// structural type: `slim:"<kind>,<value|ref>,<property name>"`.
const Tag = "slim"

type fieldTag struct {
	name          string
	kind          slim.StructuralKind
	valueEquality bool
}

func formatTag(st *slim.StructuralType, name string) reflect.StructTag {
	eq := "ref"
	if st.HasValueEquality() {
		eq = "value"
	}
	value := st.StructuralKind().String() + "," + eq + "," + name
	return reflect.StructTag(Tag + ":" + strconv.Quote(value) + " json:" + strconv.Quote(name))
}

func parseTag(sf reflect.StructField) (fieldTag, bool) {
	raw, ok := sf.Tag.Lookup(Tag)
	if !ok {
		return fieldTag{}, false
	}
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) != 3 || parts[2] == "" {
		return fieldTag{}, false
	}
	var kind slim.StructuralKind
	switch parts[0] {
	case "record":
		kind = slim.StructuralRecord
	case "struct":
		kind = slim.StructuralAnonymous
	case "tuple":
		kind = slim.StructuralTuple
	default:
		return fieldTag{}, false
	}
	return fieldTag{name: parts[2], kind: kind, valueEquality: parts[1] == "value"}, true
}

// PropertyName returns the structural property name of a struct field: the
// name recorded in its slim tag, or the field name.
func PropertyName(sf reflect.StructField) string {
	if tag, ok := parseTag(sf); ok {
		return tag.name
	}
	return sf.Name
}

// StructField finds the field of struct type t backing property name.
func StructField(t reflect.Type, name string) (reflect.StructField, bool) {
	if t == nil || t.Kind() != reflect.Struct {
		return reflect.StructField{}, false
	}
	for i := range t.NumField() {
		sf := t.Field(i)
		if sf.IsExported() && PropertyName(sf) == name {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

// fieldName derives a unique exported Go identifier for a property.
func fieldName(prop string, used map[string]bool) string {
	name := strcase.ToCamel(prop)
	if r, _ := utf8.DecodeRuneInString(name); name == "" || !unicode.IsUpper(r) {
		name = "X" + name
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, name)
	base := name
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	used[name] = true
	return name
}
