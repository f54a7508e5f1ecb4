package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/slim/internal/slim"
)

var predeclared = map[string]slim.Type{
	"bool":       slim.Bool,
	"int":        slim.Int,
	"int8":       slim.Int8,
	"int16":      slim.Int16,
	"int32":      slim.Int32,
	"int64":      slim.Int64,
	"uint":       slim.Uint,
	"uint8":      slim.Uint8,
	"byte":       slim.Uint8,
	"uint16":     slim.Uint16,
	"uint32":     slim.Uint32,
	"uint64":     slim.Uint64,
	"uintptr":    slim.Uintptr,
	"float32":    slim.Float32,
	"float64":    slim.Float64,
	"complex64":  slim.Complex64,
	"complex128": slim.Complex128,
	"string":     slim.String,
	"any":        slim.Any,
	"error":      slim.ErrorType,
}

// ParseType parses a Go type expression into a descriptor.
//
// Supported forms are predeclared names, qualified names ("path.Name"),
// "[]T", "[N]T", "*T" and "map[K]V".
func ParseType(s string) (slim.Type, error) {
	t, rest, err := parseType(strings.TrimSpace(s))
	if err != nil {
		return nil, slim.NewArgumentError(s, "malformed type").WithCause(err)
	}
	if rest != "" {
		return nil, slim.NewArgumentError(s, "unexpected %q after type", rest)
	}
	return t, nil
}

func parseType(s string) (slim.Type, string, error) {
	switch {
	case s == "":
		return nil, "", fmt.Errorf("empty type")
	case strings.HasPrefix(s, "*"):
		elem, rest, err := parseType(s[1:])
		if err != nil {
			return nil, "", err
		}
		return slim.Pointer(elem), rest, nil
	case strings.HasPrefix(s, "[]"):
		elem, rest, err := parseType(s[2:])
		if err != nil {
			return nil, "", err
		}
		return slim.Slice(elem), rest, nil
	case strings.HasPrefix(s, "["):
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, "", fmt.Errorf("unterminated array length")
		}
		n, err := strconv.Atoi(s[1:end])
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("bad array length %q", s[1:end])
		}
		elem, rest, err := parseType(s[end+1:])
		if err != nil {
			return nil, "", err
		}
		return slim.FixedArray(n, elem), rest, nil
	case strings.HasPrefix(s, "map["):
		key, rest, err := parseType(s[len("map["):])
		if err != nil {
			return nil, "", err
		}
		if !strings.HasPrefix(rest, "]") {
			return nil, "", fmt.Errorf("map key not closed")
		}
		value, rest, err := parseType(rest[1:])
		if err != nil {
			return nil, "", err
		}
		return slim.Map(key, value), rest, nil
	}
	end := strings.IndexAny(s, "]")
	if end < 0 {
		end = len(s)
	}
	name, rest := s[:end], s[end:]
	t, err := namedType(name)
	return t, rest, err
}

func namedType(name string) (slim.Type, error) {
	if t, ok := predeclared[name]; ok {
		return t, nil
	}
	slash := strings.LastIndexByte(name, '/')
	dot := strings.LastIndexByte(name, '.')
	if dot <= slash+1 || dot == len(name)-1 {
		return nil, fmt.Errorf("unknown type name %q", name)
	}
	return &slim.SimpleType{Assembly: name[:dot], Name: name[dot+1:]}, nil
}
