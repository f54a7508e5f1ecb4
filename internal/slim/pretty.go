package slim

import (
	"strconv"
	"unicode"
)

// PrettyNames returns e with synthesized parameter names replaced by short
// readable ones (p0, p1, ...). A name is synthesized when it is empty or is
// not a valid identifier, as produced by compilers and rewriters. Readable
// names are kept, and generated names never collide with them.
//
// The pass is cosmetic: types, structure and parameter identity relations
// are preserved; renamed parameters are fresh pointers referenced
// consistently.
func PrettyNames(e Expression) (Expression, error) {
	if e == nil {
		return nil, NewArgumentError("", "expression is nil")
	}
	used := make(map[string]bool)
	Walk(e, func(n Expression) bool {
		if p, ok := n.(*Parameter); ok && !IsSynthesizedName(p.Name) {
			used[p.Name] = true
		}
		return true
	})
	next := 0
	fresh := func() string {
		for {
			name := "p" + strconv.Itoa(next)
			next++
			if !used[name] {
				used[name] = true
				return name
			}
		}
	}
	return Rewrite(e, func(n Expression) (Expression, error) {
		p, ok := n.(*Parameter)
		if !ok || !IsSynthesizedName(p.Name) {
			return n, nil
		}
		return &Parameter{Name: fresh(), Type: p.Type}, nil
	})
}

// IsSynthesizedName reports whether name is empty or not a valid identifier.
func IsSynthesizedName(name string) bool {
	if name == "" || name == "_" {
		return true
	}
	for i, r := range name {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return true
	}
	return false
}
