package subst

import (
	"log/slog"

	"github.com/roach88/slim/internal/derive"
	"github.com/roach88/slim/internal/slim"
)

type config struct {
	resolver Resolver
	logger   *slog.Logger
}

// Option configures expression substitution.
type Option func(*config)

// WithResolver sets the member and constant resolver.
// Default: a DefaultResolver without member lookup.
func WithResolver(r Resolver) Option {
	return func(c *config) {
		c.resolver = r
	}
}

// WithLookup uses a DefaultResolver over l.
func WithLookup(l MemberLookup) Option {
	return func(c *config) {
		c.resolver = &DefaultResolver{Lookup: l}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// Expression substitutes m in e. It returns e itself when nothing changed.
// Nodes shared within e stay shared in the result.
func Expression(m *TypeMap, e slim.Expression, opts ...Option) (slim.Expression, error) {
	if e == nil {
		return nil, slim.NewArgumentError("", "nil expression")
	}
	if m.Len() == 0 {
		return e, nil
	}
	cfg := config{resolver: &DefaultResolver{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &exprSubst{
		types:    newTypeSubst(m),
		resolver: cfg.resolver,
		params:   make(map[*slim.Parameter]*slim.Parameter),
		labels:   make(map[*slim.LabelTarget]*slim.LabelTarget),
		memo:     make(map[slim.Expression]slim.Expression),
	}
	out, err := s.expr(e)
	if err != nil {
		return nil, err
	}
	cfg.logger.Debug("substituted expression",
		"kind", e.NodeType().String(),
		"entries", m.Len(),
		"rebuilt", s.rebuilt,
		"changed", out != e,
	)
	return out, nil
}

type exprSubst struct {
	types    *typeSubst
	resolver Resolver
	params   map[*slim.Parameter]*slim.Parameter
	labels   map[*slim.LabelTarget]*slim.LabelTarget
	memo     map[slim.Expression]slim.Expression
	rebuilt  int
}

func (s *exprSubst) typ(t slim.Type) slim.Type {
	return s.types.typ(t)
}

func (s *exprSubst) typeList(ts []slim.Type) ([]slim.Type, bool) {
	if ts == nil {
		return nil, false
	}
	return s.types.list(ts)
}

// param re-creates p once when its type changes.
func (s *exprSubst) param(p *slim.Parameter) *slim.Parameter {
	if p == nil {
		return nil
	}
	if np, ok := s.params[p]; ok {
		return np
	}
	np := p
	if t := s.typ(p.Type); t != p.Type {
		np = slim.NewParameter(p.Name, t)
	}
	s.params[p] = np
	return np
}

func (s *exprSubst) paramList(ps []*slim.Parameter) ([]*slim.Parameter, bool) {
	var out []*slim.Parameter
	for i, p := range ps {
		np := s.param(p)
		if np != p && out == nil {
			out = make([]*slim.Parameter, len(ps))
			copy(out, ps[:i])
		}
		if out != nil {
			out[i] = np
		}
	}
	if out == nil {
		return ps, false
	}
	return out, true
}

func (s *exprSubst) label(l *slim.LabelTarget) *slim.LabelTarget {
	if l == nil {
		return nil
	}
	if nl, ok := s.labels[l]; ok {
		return nl
	}
	nl := l
	if t := s.typ(l.Type); t != l.Type {
		nl = &slim.LabelTarget{Name: l.Name, Type: t}
	}
	s.labels[l] = nl
	return nl
}

func (s *exprSubst) opt(e slim.Expression) (slim.Expression, bool, error) {
	if e == nil {
		return nil, false, nil
	}
	out, err := s.expr(e)
	if err != nil {
		return nil, false, err
	}
	return out, out != e, nil
}

func (s *exprSubst) list(es []slim.Expression) ([]slim.Expression, bool, error) {
	var out []slim.Expression
	for i, e := range es {
		ne, err := s.expr(e)
		if err != nil {
			return nil, false, err
		}
		if ne != e && out == nil {
			out = make([]slim.Expression, len(es))
			copy(out, es[:i])
		}
		if out != nil {
			out[i] = ne
		}
	}
	if out == nil {
		return es, false, nil
	}
	return out, true, nil
}

func (s *exprSubst) expr(e slim.Expression) (slim.Expression, error) {
	if p, ok := e.(*slim.Parameter); ok {
		return s.param(p), nil
	}
	if out, ok := s.memo[e]; ok {
		return out, nil
	}
	out, err := s.node(e)
	if err != nil {
		return nil, err
	}
	if out != e {
		s.rebuilt++
		if err := retype(out); err != nil {
			return nil, err
		}
	}
	s.memo[e] = out
	return out, nil
}

// retype replaces the stored type of a rebuilt node with its derived type.
// Optional types that were not declared stay undeclared.
func retype(e slim.Expression) error {
	t, err := derive.Type(e)
	if err != nil {
		return slim.NewResolutionError(e.NodeType().String(), "node does not type after substitution").WithCause(err)
	}
	switch x := e.(type) {
	case *slim.Constant:
		x.Type = t
	case *slim.Default:
		x.Type = t
	case *slim.Unary:
		x.Type = t
	case *slim.Binary:
		x.Type = t
	case *slim.Conditional:
		if x.Type != nil {
			x.Type = t
		}
	case *slim.Lambda:
		x.Type = t
	case *slim.Invocation:
		x.Type = t
	case *slim.Call:
		x.Type = t
	case *slim.Member:
		x.Type = t
	case *slim.Index:
		x.Type = t
	case *slim.New:
		x.Type = t
	case *slim.NewArray:
		x.Type = t
	case *slim.ListInit:
		x.Type = t
	case *slim.MemberInit:
		x.Type = t
	case *slim.TypeBinary:
		x.Type = t
	case *slim.Block:
		if x.Type != nil {
			x.Type = t
		}
	case *slim.Loop:
		x.Type = t
	case *slim.Goto:
		x.Type = t
	case *slim.Label:
		x.Type = t
	case *slim.Try:
		if x.Type != nil {
			x.Type = t
		}
	case *slim.Switch:
		if x.Type != nil {
			x.Type = t
		}
	}
	return nil
}
