// Package convert translates native expression trees (package expr) to
// slim expression trees and back.
//
// Free native parameters become global slim parameters; converting back
// recreates one native parameter per global, unless a Binding supplies a
// native expression for it (known resources).
//
// Both directions preserve DAG sharing: a node reachable along several
// paths is converted once.
package convert

import (
	"log/slog"
	"reflect"

	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
)

// TypeSystem converts types and members between the two worlds.
// *typesys.Registry implements it.
type TypeSystem interface {
	ToSlim(t reflect.Type) slim.Type
	ToType(d slim.Type) (reflect.Type, error)
	MemberToSlim(m expr.Member) (slim.MemberInfo, error)
	MemberFromSlim(m slim.MemberInfo) (expr.Member, error)
}

// Binding supplies the native expression standing in for a global slim
// parameter. It reports false to leave the parameter free.
type Binding func(p *slim.Parameter) (expr.Expression, bool)

// BindName binds globals with the given name to e.
func BindName(name string, e expr.Expression) Binding {
	return func(p *slim.Parameter) (expr.Expression, bool) {
		if p.Name != name {
			return nil, false
		}
		return e, true
	}
}

// Converter converts expression trees.
//
// Thread-safety: safe for concurrent use; each conversion keeps its own
// state.
type Converter struct {
	types  TypeSystem
	logger *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// New returns a converter over types.
func New(types TypeSystem, opts ...Option) *Converter {
	c := &Converter{types: types, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToSlim converts a native expression.
func (c *Converter) ToSlim(e expr.Expression) (slim.Expression, error) {
	if e == nil {
		return nil, slim.NewArgumentError("", "nil expression")
	}
	w := &toSlim{
		types:  c.types,
		params: make(map[*expr.Parameter]*slim.Parameter),
		labels: make(map[*expr.LabelTarget]*slim.LabelTarget),
		memo:   make(map[expr.Expression]slim.Expression),
	}
	out, err := w.expr(e)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("converted expression to slim",
		"kind", e.NodeType().String(),
		"nodes", len(w.memo),
	)
	return out, nil
}

// ToExpression converts a slim expression. Bindings are consulted in order
// for every global parameter.
func (c *Converter) ToExpression(e slim.Expression, bindings ...Binding) (expr.Expression, error) {
	if e == nil {
		return nil, slim.NewArgumentError("", "nil expression")
	}
	w := &fromSlim{
		types:         c.types,
		paramBindings: bindings,
		params:        make(map[*slim.Parameter]expr.Expression),
		labels:        make(map[*slim.LabelTarget]*expr.LabelTarget),
		memo:          make(map[slim.Expression]expr.Expression),
	}
	out, err := w.expr(e)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("converted slim expression to native",
		"kind", e.NodeType().String(),
		"nodes", len(w.memo),
		"bound", w.bound,
	)
	return out, nil
}
