// Package catalog loads the shared vocabulary of a deployment: the known
// types that recordization leaves untouched and the known resources that
// appear in expressions as global parameters.
//
// Catalogs are written in CUE or YAML:
//
//	known: ["example.com/shop.Money"]
//	resources: {
//		orders: {type: "[]example.com/shop.Order", description: "order stream"}
//	}
package catalog

import (
	"slices"
	"sort"

	"github.com/roach88/slim/internal/convert"
	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/recordize"
	"github.com/roach88/slim/internal/slim"
)

// Resource is a named external resource.
type Resource struct {
	Name        string
	Type        slim.Type
	Description string

	param *slim.Parameter
}

// Parameter returns the global parameter standing for the resource. The
// same parameter is returned on every call.
func (r *Resource) Parameter() *slim.Parameter {
	return r.param
}

// Catalog is an immutable set of known types and resources.
type Catalog struct {
	known     []string
	resources map[string]*Resource
}

func newCatalog(known []string, resources []*Resource) (*Catalog, error) {
	c := &Catalog{resources: make(map[string]*Resource, len(resources))}
	for _, k := range known {
		if _, err := namedType(k); err != nil {
			return nil, slim.NewArgumentError(k, "known type is not a qualified name").WithCause(err)
		}
		c.known = append(c.known, k)
	}
	sort.Strings(c.known)
	c.known = slices.Compact(c.known)
	for _, r := range resources {
		if _, dup := c.resources[r.Name]; dup {
			return nil, slim.NewArgumentError(r.Name, "duplicate resource")
		}
		r.param = slim.NewParameter(r.Name, r.Type)
		c.resources[r.Name] = r
	}
	return c, nil
}

// Known returns the qualified names of the known types, sorted.
func (c *Catalog) Known() []string {
	return slices.Clone(c.known)
}

// IsKnown reports whether the qualified name is a known type.
func (c *Catalog) IsKnown(name string) bool {
	_, ok := slices.BinarySearch(c.known, name)
	return ok
}

// Resource returns the named resource.
func (c *Catalog) Resource(name string) (*Resource, bool) {
	r, ok := c.resources[name]
	return r, ok
}

// Resources returns every resource, sorted by name.
func (c *Catalog) Resources() []*Resource {
	out := make([]*Resource, 0, len(c.resources))
	for _, r := range c.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Parameters returns the resource parameters, sorted by name.
func (c *Catalog) Parameters() []*slim.Parameter {
	rs := c.Resources()
	out := make([]*slim.Parameter, len(rs))
	for i, r := range rs {
		out[i] = r.param
	}
	return out
}

// Resolve reports the resource a global parameter refers to: the resource
// with the parameter's name and type.
func (c *Catalog) Resolve(p *slim.Parameter) (*Resource, bool) {
	r, ok := c.resources[p.Name]
	if !ok || !slim.TypeEqual(r.Type, p.Type) {
		return nil, false
	}
	return r, true
}

// Binding binds global parameters that resolve to a resource to the native
// expression supplied for it in values.
func (c *Catalog) Binding(values map[string]expr.Expression) convert.Binding {
	return func(p *slim.Parameter) (expr.Expression, bool) {
		if _, ok := c.Resolve(p); !ok {
			return nil, false
		}
		e, ok := values[p.Name]
		return e, ok
	}
}

// KnownTypes returns the recordization option declaring the known types.
func (c *Catalog) KnownTypes() recordize.Option {
	return recordize.WithKnownNames(c.known...)
}
