package recordize

import (
	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
)

// mapMembers rewrites entity field accesses and member initializations to
// record properties. Object creation through a constructor inside a member
// initialization is merged into its bindings here; standalone constructor
// calls are left for mapConstructors.
func (s *session) mapMembers(n slim.Expression) (slim.Expression, error) {
	switch x := n.(type) {
	case *slim.Member:
		m, err := s.member(x.Member)
		if err != nil || m == x.Member {
			return x, err
		}
		return &slim.Member{Expression: x.Expression, Member: m, Type: x.Type}, nil
	case *slim.Index:
		if x.Indexer != nil && s.entityOf(x.Indexer.Declaring) != nil {
			return nil, s.unmapped(x.Indexer.Declaring, x.Indexer.Name, "indexer")
		}
	case *slim.Call:
		return x, s.method(x.Method)
	case *slim.Unary:
		return x, s.method(x.Method)
	case *slim.Binary:
		return x, s.method(x.Method)
	case *slim.MemberInit:
		return s.memberInit(x)
	}
	return n, nil
}

// mapConstructors rewrites the remaining constructor calls on entities to
// member initializations of the zero value.
func (s *session) mapConstructors(n slim.Expression) (slim.Expression, error) {
	x, ok := n.(*slim.New)
	if !ok || x.Constructor == nil || s.entityOf(x.Constructor.Declaring) == nil {
		return n, nil
	}
	binds, err := s.constructor(x, make(map[string]string))
	if err != nil {
		return nil, err
	}
	return &slim.MemberInit{
		New:      &slim.New{Type: x.Type},
		Bindings: binds,
		Type:     x.Type,
	}, nil
}

func (s *session) unmapped(decl slim.Type, name, what string) error {
	return slim.NewMappingError(slim.FormatType(decl)+"."+name, "%s has no mapping", what)
}

// member maps an entity field to the record property named by its
// mapping. Members of other types are returned unchanged.
func (s *session) member(m slim.MemberInfo) (slim.MemberInfo, error) {
	switch x := m.(type) {
	case *slim.FieldInfo:
		ent := s.entityOf(x.Declaring)
		if ent == nil {
			return m, nil
		}
		mapping := ent.byField[x.Name]
		if mapping == "" {
			return nil, s.unmapped(x.Declaring, x.Name, "field")
		}
		return &slim.PropertyInfo{
			Declaring:    x.Declaring,
			Name:         mapping,
			PropertyType: x.FieldType,
			CanWrite:     true,
		}, nil
	case *slim.PropertyInfo:
		if s.entityOf(x.Declaring) != nil {
			return nil, s.unmapped(x.Declaring, x.Name, "property")
		}
	}
	return m, nil
}

// method rejects methods declared on entities.
func (s *session) method(m slim.MethodInfo) error {
	if m == nil || s.entityOf(m.DeclaringType()) == nil {
		return nil
	}
	return slim.NewMappingError(slim.FormatType(m.DeclaringType())+"."+m.MemberName(),
		"method call on an entity does not survive recordization")
}

func (s *session) memberInit(x *slim.MemberInit) (slim.Expression, error) {
	if x.New == nil || s.entityOf(x.New.Type) == nil {
		return x, nil
	}
	assigned := make(map[string]string)
	n := x.New
	var binds []slim.MemberBinding
	if n.Constructor != nil {
		var err error
		if binds, err = s.constructor(n, assigned); err != nil {
			return nil, err
		}
		n = &slim.New{Type: n.Type}
	}
	for _, b := range x.Bindings {
		nb, err := s.binding(b)
		if err != nil {
			return nil, err
		}
		name := nb.BoundMember().MemberName()
		if prev, dup := assigned[name]; dup {
			return nil, slim.NewMappingError(slim.FormatType(x.New.Type)+"."+name,
				"mapping assigned by both %s and member initializer %s", prev, b.BoundMember().MemberName())
		}
		assigned[name] = "member initializer " + b.BoundMember().MemberName()
		binds = append(binds, nb)
	}
	return &slim.MemberInit{New: n, Bindings: binds, Type: x.Type}, nil
}

func (s *session) binding(b slim.MemberBinding) (slim.MemberBinding, error) {
	m, err := s.member(b.BoundMember())
	if err != nil {
		return nil, err
	}
	switch x := b.(type) {
	case *slim.Assignment:
		if m == x.Member {
			return x, nil
		}
		return &slim.Assignment{Member: m, Expression: x.Expression}, nil
	case *slim.MemberMemberBinding:
		nested := make([]slim.MemberBinding, len(x.Bindings))
		for i, nb := range x.Bindings {
			if nested[i], err = s.binding(nb); err != nil {
				return nil, err
			}
		}
		return &slim.MemberMemberBinding{Member: m, Bindings: nested}, nil
	case *slim.MemberListBinding:
		if m == x.Member {
			return x, nil
		}
		return &slim.MemberListBinding{Member: m, Initializers: x.Initializers}, nil
	}
	return nil, slim.NewArgumentError("", "unknown binding %T", b)
}

// constructor turns the arguments of an entity constructor call into
// assignments of the properties its parameters are mapped to. assigned
// collects the mapping names taken.
func (s *session) constructor(n *slim.New, assigned map[string]string) ([]slim.MemberBinding, error) {
	ent := s.entityOf(n.Constructor.Declaring)
	m, err := s.r.types.MemberFromSlim(n.Constructor)
	if err != nil {
		return nil, err
	}
	ctor, ok := m.(*expr.Constructor)
	if !ok {
		return nil, slim.NewResolutionError(slim.FormatType(n.Constructor.Declaring), "constructor resolved to %T", m)
	}
	subject := func(p expr.CtorParam) string {
		return slim.FormatType(ent.desc) + " constructor parameter " + p.Name
	}
	binds := make([]slim.MemberBinding, len(ctor.Params))
	for i, p := range ctor.Params {
		if p.Mapping == "" {
			return nil, slim.NewMappingError(subject(p), "parameter has no mapping")
		}
		want, ok := ent.byMapping[p.Mapping]
		if !ok {
			return nil, slim.NewMappingError(subject(p), "mapping %q matches no mapped field", p.Mapping)
		}
		if prev, dup := assigned[p.Mapping]; dup {
			return nil, slim.NewMappingError(subject(p), "mapping %q already assigned by %s", p.Mapping, prev)
		}
		got := n.Constructor.ParameterTypes[i]
		if !slim.TypeEqual(got, want) {
			return nil, slim.NewMappingError(subject(p), "parameter type %s does not match mapped field type %s",
				slim.FormatType(got), slim.FormatType(want))
		}
		assigned[p.Mapping] = "constructor parameter " + p.Name
		binds[i] = &slim.Assignment{
			Member: &slim.PropertyInfo{
				Declaring:    n.Constructor.Declaring,
				Name:         p.Mapping,
				PropertyType: want,
				CanWrite:     true,
			},
			Expression: n.Arguments[i],
		}
	}
	return binds, nil
}
