// Package recordize erases mapped entity types from expressions.
//
// An entity is a named struct type with at least one field carrying a
// `mapping:"name"` tag. Recordization replaces every entity type with a
// Record structural type whose properties are the mapping names, rewrites
// field accesses and object creation to use those properties, and
// deep-converts entity constants to portable record values. The result can
// be evaluated on a machine that has never seen the entity types.
//
// Only mapped data access survives erasure. Unmapped fields, getter
// methods and method calls on entities are MAPPING errors. Types declared
// known are shared vocabulary: they are neither erased nor descended into.
package recordize

import (
	"log/slog"
	"reflect"

	"github.com/roach88/slim/internal/convert"
	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
	"github.com/roach88/slim/internal/subst"
)

// Recordizer erases entity types.
//
// Thread-safety: safe for concurrent use; every call keeps its own state.
type Recordizer struct {
	types      convert.TypeSystem
	lookup     subst.MemberLookup
	known      map[reflect.Type]bool
	knownNames map[string]bool
	logger     *slog.Logger
}

// Option configures a Recordizer.
type Option func(*Recordizer)

// WithKnown declares native types that are left untouched.
func WithKnown(types ...reflect.Type) Option {
	return func(r *Recordizer) {
		for _, t := range types {
			r.known[t] = true
		}
	}
}

// WithKnownNames declares known types by qualified name ("path.Name").
func WithKnownNames(names ...string) Option {
	return func(r *Recordizer) {
		for _, n := range names {
			r.knownNames[n] = true
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recordizer) {
		r.logger = l
	}
}

// New returns a recordizer over types. When types also implements
// subst.MemberLookup, members of non-entity types whose signatures change
// are re-resolved through it.
func New(types convert.TypeSystem, opts ...Option) *Recordizer {
	r := &Recordizer{
		types:      types,
		known:      make(map[reflect.Type]bool),
		knownNames: make(map[string]bool),
		logger:     slog.Default(),
	}
	r.lookup, _ = types.(subst.MemberLookup)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recordize converts a native expression and erases its entity types.
func (r *Recordizer) Recordize(e expr.Expression) (slim.Expression, error) {
	if e == nil {
		return nil, slim.NewArgumentError("", "nil expression")
	}
	s, err := convert.New(r.types, convert.WithLogger(r.logger)).ToSlim(e)
	if err != nil {
		return nil, err
	}
	return r.Expression(s)
}

// Expression erases the entity types of a slim expression. It returns e
// itself when e mentions no entity.
func (r *Recordizer) Expression(e slim.Expression) (slim.Expression, error) {
	if e == nil {
		return nil, slim.NewArgumentError("", "nil expression")
	}
	s := r.session()
	if err := s.discoverExpression(e); err != nil {
		return nil, err
	}
	if len(s.order) == 0 {
		return e, nil
	}
	if err := s.build(); err != nil {
		return nil, err
	}

	mapped, err := slim.Rewrite(e, s.mapMembers)
	if err != nil {
		return nil, err
	}
	mapped, err = slim.Rewrite(mapped, s.mapConstructors)
	if err != nil {
		return nil, err
	}
	out, err := subst.Expression(s.types, mapped,
		subst.WithResolver(&subst.DefaultResolver{Lookup: r.lookup, Constants: s.constant}),
		subst.WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("recordized expression",
		"kind", e.NodeType().String(),
		"entities", len(s.order),
	)
	return out, nil
}

// Type returns the recordized descriptor of t.
func (r *Recordizer) Type(t reflect.Type) (slim.Type, error) {
	if t == nil {
		return nil, slim.NewArgumentError("", "nil type")
	}
	s := r.session()
	d := r.types.ToSlim(t)
	if err := s.discover(d); err != nil {
		return nil, err
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return subst.Type(s.types, d), nil
}

// Value deep-converts v to the portable record value of its recordized
// type. Values of types that mention no entity are encoded as they are.
func (r *Recordizer) Value(v any) (slim.Lifted, error) {
	if v == nil {
		return slim.Lifted("null"), nil
	}
	s := r.session()
	if err := s.discover(r.types.ToSlim(reflect.TypeOf(v))); err != nil {
		return nil, err
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	return s.lift(reflect.ValueOf(v))
}

func (r *Recordizer) isKnown(t reflect.Type, d *slim.SimpleType) bool {
	return r.known[t] || r.knownNames[d.QualifiedName()]
}
