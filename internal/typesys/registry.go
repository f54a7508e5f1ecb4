package typesys

import (
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"

	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
)

// GenericInstance is one registered instantiation of a generic function.
type GenericInstance struct {
	TypeArgs []reflect.Type
	Func     any
}

type genericTypeEntry struct {
	def  *slim.GenericDefinitionType
	args []reflect.Type
	t    reflect.Type
}

type genericFunc struct {
	def       *slim.GenericDefinitionMethod
	instances []*expr.Method
}

// Registry is the default resolution provider. Go cannot load a type by
// name, so every named type, generic instantiation, constructor and package
// function reachable from serialized trees must be registered.
//
// Thread-safety: safe for concurrent use. Registration is expected to
// happen up front; lookups take a read lock.
type Registry struct {
	mu           sync.RWMutex
	types        map[string]reflect.Type
	generics     map[string][]genericTypeEntry
	genericOf    map[reflect.Type]genericTypeEntry
	ctors        map[reflect.Type][]*expr.Constructor
	funcs        map[string]*expr.Method
	genericFuncs map[string]*genericFunc

	conv   *Converter
	logger *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	cfg := newConfig(opts)
	r := &Registry{
		types:        make(map[string]reflect.Type),
		generics:     make(map[string][]genericTypeEntry),
		genericOf:    make(map[reflect.Type]genericTypeEntry),
		ctors:        make(map[reflect.Type][]*expr.Constructor),
		funcs:        make(map[string]*expr.Method),
		genericFuncs: make(map[string]*genericFunc),
		logger:       cfg.logger,
	}
	r.conv = NewConverter(r, opts...)
	return r
}

// Converter returns the converter bound to this registry.
func (r *Registry) Converter() *Converter {
	return r.conv
}

// ToSlim converts a native type to its descriptor.
func (r *Registry) ToSlim(t reflect.Type) slim.Type {
	return r.conv.ToSlim(t)
}

// ToType resolves a descriptor to a native type.
func (r *Registry) ToType(d slim.Type) (reflect.Type, error) {
	return r.conv.ToType(d)
}

func qualified(pkg, name string) string {
	return pkg + "." + name
}

// RegisterType makes named types resolvable by package path and name.
func (r *Registry) RegisterType(types ...reflect.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if t == nil || t.Name() == "" || t.PkgPath() == "" {
			return slim.NewArgumentError(fmt.Sprint(t), "only named types declared in a package can be registered")
		}
		key := qualified(t.PkgPath(), t.Name())
		if prev, ok := r.types[key]; ok && prev != t {
			return slim.NewArgumentError(key, "name already registered to a different type")
		}
		r.types[key] = t
		r.logger.Debug("registered type", "type", key)
	}
	return nil
}

// RegisterGenericType records t as the instantiation of def with args.
func (r *Registry) RegisterGenericType(def *slim.GenericDefinitionType, args []reflect.Type, t reflect.Type) error {
	if def == nil || t == nil {
		return slim.NewArgumentError("", "generic definition and instantiation are required")
	}
	if slim.IsBuiltinDefinition(def) {
		return slim.NewArgumentError(def.Name, "builtin definitions cannot be registered")
	}
	key := qualified(def.Assembly, def.Name)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.generics[key] {
		if slices.Equal(e.args, args) {
			if e.t != t {
				return slim.NewArgumentError(key, "instantiation already registered to a different type")
			}
			return nil
		}
	}
	entry := genericTypeEntry{def: def, args: slices.Clone(args), t: t}
	r.generics[key] = append(r.generics[key], entry)
	r.genericOf[t] = entry
	r.logger.Debug("registered generic type", "definition", key, "type", t.String())
	return nil
}

// RegisterConstructor registers fn as a constructor of its result type.
func (r *Registry) RegisterConstructor(fn any, params ...expr.CtorParam) (*expr.Constructor, error) {
	c, err := expr.NewConstructor(fn, params...)
	if err != nil {
		return nil, slim.NewArgumentError("", "%v", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, prev := range r.ctors[c.Type] {
		if slices.Equal(prev.ParamTypes(), c.ParamTypes()) {
			return nil, slim.NewArgumentError(c.Type.String(), "constructor with the same signature already registered")
		}
	}
	r.ctors[c.Type] = append(r.ctors[c.Type], c)
	return c, nil
}

// RegisterFunc registers a package-level function.
func (r *Registry) RegisterFunc(pkg, name string, fn any) (*expr.Method, error) {
	m, err := expr.Func(pkg, name, fn)
	if err != nil {
		return nil, slim.NewArgumentError(qualified(pkg, name), "%v", err)
	}
	key := qualified(pkg, name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.funcs[key]; ok {
		return nil, slim.NewArgumentError(key, "function already registered")
	}
	r.funcs[key] = m
	return m, nil
}

// RegisterGenericFunc registers instantiations of a generic package
// function. Each instance's signature must match def instantiated with the
// instance's type arguments.
func (r *Registry) RegisterGenericFunc(def *slim.GenericDefinitionMethod, instances ...GenericInstance) error {
	if def == nil {
		return slim.NewArgumentError("", "generic method definition is required")
	}
	pkg, ok := def.Declaring.(*slim.SimpleType)
	if !ok || !slim.IsPackage(pkg) {
		return slim.NewArgumentError(def.Name, "generic functions must be declared by a package")
	}
	key := qualified(pkg.Assembly, def.Name)
	built := make([]*expr.Method, 0, len(instances))
	for _, inst := range instances {
		if len(inst.TypeArgs) != len(def.GenericParameters) {
			return slim.NewArgumentError(key, "want %d type arguments, got %d", len(def.GenericParameters), len(inst.TypeArgs))
		}
		m, err := expr.Func(pkg.Assembly, def.Name, inst.Func)
		if err != nil {
			return slim.NewArgumentError(key, "%v", err)
		}
		m.TypeArgs = slices.Clone(inst.TypeArgs)
		args := r.conv.slimList(inst.TypeArgs)
		want := make([]slim.Type, len(def.ParameterTypes))
		for i, p := range def.ParameterTypes {
			want[i] = slim.Instantiate(p, def.GenericParameters, args)
		}
		got := r.conv.slimList(m.Params)
		if !typesEqual(want, got) || !slim.TypeEqual(slim.Instantiate(def.Result(), def.GenericParameters, args), r.conv.ToSlim(m.Result)) {
			return slim.NewArgumentError(key, "instance %s does not match the definition", m.Func.Type())
		}
		built = append(built, m)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	gf, ok := r.genericFuncs[key]
	if !ok {
		gf = &genericFunc{def: def}
		r.genericFuncs[key] = gf
	}
	gf.instances = append(gf.instances, built...)
	return nil
}

func typesEqual(as, bs []slim.Type) bool {
	return slices.EqualFunc(as, bs, slim.TypeEqual)
}

// ResolveType implements Provider.
func (r *Registry) ResolveType(assembly, name string) (reflect.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.types[qualified(assembly, name)]; ok {
		return t, nil
	}
	return nil, slim.NewResolutionError(qualified(assembly, name), "type not registered")
}

// ResolveGenericType implements Provider.
func (r *Registry) ResolveGenericType(def *slim.GenericDefinitionType, args []reflect.Type) (reflect.Type, error) {
	key := qualified(def.Assembly, def.Name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.generics[key] {
		if slices.Equal(e.args, args) {
			return e.t, nil
		}
	}
	return nil, slim.NewResolutionError(key, "instantiation with %v not registered", args)
}

// GenericOf implements GenericNamer.
func (r *Registry) GenericOf(t reflect.Type) (*slim.GenericDefinitionType, []reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.genericOf[t]
	if !ok {
		return nil, nil, false
	}
	return e.def, e.args, true
}

// Func returns a registered package function.
func (r *Registry) Func(pkg, name string) (*expr.Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.funcs[qualified(pkg, name)]
	return m, ok
}

// GenericFunc returns the instantiation of a registered generic function
// with the given type arguments.
func (r *Registry) GenericFunc(pkg, name string, typeArgs []reflect.Type) (*expr.Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gf, ok := r.genericFuncs[qualified(pkg, name)]
	if !ok {
		return nil, false
	}
	for _, m := range gf.instances {
		if slices.Equal(m.TypeArgs, typeArgs) {
			return m, true
		}
	}
	return nil, false
}

// GenericFuncDefinition returns the definition of a registered generic
// function.
func (r *Registry) GenericFuncDefinition(pkg, name string) (*slim.GenericDefinitionMethod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gf, ok := r.genericFuncs[qualified(pkg, name)]
	if !ok {
		return nil, false
	}
	return gf.def, true
}

// Constructors returns the constructors registered for t.
func (r *Registry) Constructors(t reflect.Type) []*expr.Constructor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ctors[t])
}

// Constructor returns the constructor of t with exactly the given parameter
// types.
func (r *Registry) Constructor(t reflect.Type, params []reflect.Type) (*expr.Constructor, bool) {
	for _, c := range r.Constructors(t) {
		if slices.Equal(c.ParamTypes(), params) {
			return c, true
		}
	}
	return nil, false
}
