package typesys

import (
	"log/slog"
	"reflect"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/roach88/slim/internal/expr"
	"github.com/roach88/slim/internal/slim"
)

// Provider resolves named descriptors to native types.
type Provider interface {
	// ResolveType returns the named type declared in package assembly.
	ResolveType(assembly, name string) (reflect.Type, error)

	// ResolveGenericType returns the instantiation of a generic named type.
	ResolveGenericType(def *slim.GenericDefinitionType, args []reflect.Type) (reflect.Type, error)
}

// GenericNamer recognizes native types that instantiate a generic named
// type. Providers that implement it let ToSlim produce generic descriptors.
type GenericNamer interface {
	GenericOf(t reflect.Type) (*slim.GenericDefinitionType, []reflect.Type, bool)
}

// DefaultCacheSize bounds the structural materialization caches.
const DefaultCacheSize = 1024

type config struct {
	logger    *slog.Logger
	cacheSize int
}

// Option configures a Converter or Registry.
type Option func(*config)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithCacheSize bounds the number of remembered structural types.
//
// Default: 1024 (DefaultCacheSize)
func WithCacheSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.cacheSize = n
		}
	}
}

func newConfig(opts []Option) config {
	c := config{logger: slog.Default(), cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

var (
	anyType   = reflect.TypeFor[any]()
	errorType = reflect.TypeFor[error]()
)

var predeclared = map[string]reflect.Type{
	"bool":       reflect.TypeFor[bool](),
	"int":        reflect.TypeFor[int](),
	"int8":       reflect.TypeFor[int8](),
	"int16":      reflect.TypeFor[int16](),
	"int32":      reflect.TypeFor[int32](),
	"int64":      reflect.TypeFor[int64](),
	"uint":       reflect.TypeFor[uint](),
	"uint8":      reflect.TypeFor[uint8](),
	"uint16":     reflect.TypeFor[uint16](),
	"uint32":     reflect.TypeFor[uint32](),
	"uint64":     reflect.TypeFor[uint64](),
	"uintptr":    reflect.TypeFor[uintptr](),
	"float32":    reflect.TypeFor[float32](),
	"float64":    reflect.TypeFor[float64](),
	"complex64":  reflect.TypeFor[complex64](),
	"complex128": reflect.TypeFor[complex128](),
	"string":     reflect.TypeFor[string](),
	"error":      errorType,
}

var predeclaredSlim = map[string]*slim.SimpleType{
	"bool":       slim.Bool,
	"int":        slim.Int,
	"int8":       slim.Int8,
	"int16":      slim.Int16,
	"int32":      slim.Int32,
	"int64":      slim.Int64,
	"uint":       slim.Uint,
	"uint8":      slim.Uint8,
	"uint16":     slim.Uint16,
	"uint32":     slim.Uint32,
	"uint64":     slim.Uint64,
	"uintptr":    slim.Uintptr,
	"float32":    slim.Float32,
	"float64":    slim.Float64,
	"complex64":  slim.Complex64,
	"complex128": slim.Complex128,
	"string":     slim.String,
	"error":      slim.ErrorType,
}

// Converter converts between reflect.Type and slim descriptors.
//
// Thread-safety: safe for concurrent use.
type Converter struct {
	provider Provider
	logger   *slog.Logger

	// records maps materialized struct types to the descriptor they were
	// built from; structs maps descriptor keys to materialized types.
	records *lru.Cache[reflect.Type, *slim.StructuralType]
	structs *lru.Cache[string, reflect.Type]
	group   singleflight.Group
}

// NewConverter returns a converter resolving names through p.
func NewConverter(p Provider, opts ...Option) *Converter {
	cfg := newConfig(opts)
	records, err := lru.New[reflect.Type, *slim.StructuralType](cfg.cacheSize)
	if err != nil {
		panic(err)
	}
	structs, err := lru.New[string, reflect.Type](cfg.cacheSize)
	if err != nil {
		panic(err)
	}
	return &Converter{
		provider: p,
		logger:   cfg.logger,
		records:  records,
		structs:  structs,
	}
}

// ToSlim returns the descriptor of t. It never fails: types without a
// portable form (unnamed interfaces with methods) become simple types
// named by their Go spelling.
func (c *Converter) ToSlim(t reflect.Type) slim.Type {
	if t == nil || t == expr.VoidType {
		return slim.Void
	}
	if t == anyType {
		return slim.Any
	}
	if t.PkgPath() == "" && t.Name() != "" {
		if b, ok := predeclaredSlim[t.Name()]; ok {
			return b
		}
	}
	if t.Name() != "" {
		if namer, ok := c.provider.(GenericNamer); ok {
			if def, args, ok := namer.GenericOf(t); ok {
				return &slim.GenericType{Definition: def, Arguments: c.slimList(args)}
			}
		}
		return &slim.SimpleType{Assembly: t.PkgPath(), Name: t.Name()}
	}
	switch t.Kind() {
	case reflect.Pointer:
		return slim.Pointer(c.ToSlim(t.Elem()))
	case reflect.Slice:
		return slim.Slice(c.ToSlim(t.Elem()))
	case reflect.Array:
		return slim.FixedArray(t.Len(), c.ToSlim(t.Elem()))
	case reflect.Map:
		return slim.Map(c.ToSlim(t.Key()), c.ToSlim(t.Elem()))
	case reflect.Chan:
		return slim.Chan(slim.ChanDir(t.ChanDir()), c.ToSlim(t.Elem()))
	case reflect.Func:
		in := make([]reflect.Type, t.NumIn())
		for i := range in {
			in[i] = t.In(i)
		}
		out := make([]reflect.Type, t.NumOut())
		for i := range out {
			out[i] = t.Out(i)
		}
		return slim.Func(c.slimList(in), c.slimList(out), t.IsVariadic())
	case reflect.Struct:
		return c.structToSlim(t)
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return slim.Any
		}
	}
	return &slim.SimpleType{Name: t.String()}
}

func (c *Converter) slimList(ts []reflect.Type) []slim.Type {
	out := make([]slim.Type, len(ts))
	for i, t := range ts {
		out[i] = c.ToSlim(t)
	}
	return out
}

// structToSlim returns the remembered descriptor of a materialized struct,
// or rebuilds one from the field tags.
func (c *Converter) structToSlim(t reflect.Type) slim.Type {
	if rec, ok := c.records.Get(t); ok {
		return rec
	}
	kind, valueEq := slim.StructuralAnonymous, t.Comparable()
	if t.NumField() > 0 {
		if tag, ok := parseTag(t.Field(0)); ok {
			kind, valueEq = tag.kind, tag.valueEquality
		}
	}
	st := slim.NewStructuralType(kind, valueEq)
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		// Names are unique within a Go struct; tags may collide only when
		// hand-written, in which case the first field wins.
		_, _ = st.AddProperty(PropertyName(sf), c.ToSlim(sf.Type), true)
	}
	return st.Freeze()
}

// ToType resolves d to a native type.
func (c *Converter) ToType(d slim.Type) (reflect.Type, error) {
	return c.toType(d, nil)
}

func (c *Converter) toType(d slim.Type, active []*slim.StructuralType) (reflect.Type, error) {
	switch x := d.(type) {
	case nil:
		return nil, slim.NewArgumentError("", "nil type descriptor")
	case *slim.SimpleType:
		return c.simple(x)
	case *slim.GenericDefinitionType:
		return nil, slim.NewResolutionError(slim.FormatType(x), "open generic definition has no native type")
	case *slim.GenericParameterType:
		return nil, slim.NewResolutionError(x.Name, "generic parameter has no native type")
	case *slim.ArrayType:
		if x.Rank != 0 {
			return nil, slim.NewResolutionError(slim.FormatType(x), "multi-dimensional arrays have no native form")
		}
		elem, err := c.toType(x.Element, active)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case *slim.GenericType:
		args := make([]reflect.Type, len(x.Arguments))
		for i, a := range x.Arguments {
			t, err := c.toType(a, active)
			if err != nil {
				return nil, err
			}
			args[i] = t
		}
		if slim.IsBuiltinDefinition(x.Definition) {
			return composite(x, args)
		}
		if c.provider == nil {
			return nil, slim.NewResolutionError(slim.FormatType(x), "no type provider")
		}
		t, err := c.provider.ResolveGenericType(x.Definition, args)
		if err != nil {
			return nil, resolutionError(slim.FormatType(x), err)
		}
		return t, nil
	case *slim.StructuralType:
		return c.materialize(x, active)
	}
	return nil, slim.NewArgumentError("", "unknown descriptor %T", d)
}

func resolutionError(subject string, err error) error {
	if slim.CodeOf(err) != "" {
		return err
	}
	return slim.NewResolutionError(subject, "cannot resolve").WithCause(err)
}

func (c *Converter) simple(x *slim.SimpleType) (reflect.Type, error) {
	if x.Assembly == "" {
		switch {
		case slim.IsVoid(x):
			return expr.VoidType, nil
		case x.Name == slim.Any.Name:
			return anyType, nil
		}
		if t, ok := predeclared[x.Name]; ok {
			return t, nil
		}
		return nil, slim.NewResolutionError(x.Name, "unknown predeclared type")
	}
	if x.Name == "" {
		return nil, slim.NewResolutionError(x.Assembly, "a package is not a type")
	}
	if c.provider == nil {
		return nil, slim.NewResolutionError(x.QualifiedName(), "no type provider")
	}
	t, err := c.provider.ResolveType(x.Assembly, x.Name)
	if err != nil {
		return nil, resolutionError(x.QualifiedName(), err)
	}
	return t, nil
}

// composite builds a builtin composite type, guarding the reflect
// constructors that panic on invalid input.
func composite(g *slim.GenericType, args []reflect.Type) (reflect.Type, error) {
	subject := slim.FormatType(g)
	def := g.Definition
	want := 1
	switch def.Name {
	case "map":
		want = 2
	}
	if p, r, variadic, ok := slim.ParseFuncDefinition(def); ok {
		if len(args) != p+r {
			return nil, slim.NewArgumentError(subject, "want %d type arguments, got %d", p+r, len(args))
		}
		in, out := args[:p], args[p:]
		if variadic && (p == 0 || in[p-1].Kind() != reflect.Slice) {
			return nil, slim.NewResolutionError(subject, "variadic parameter must be a slice")
		}
		return reflect.FuncOf(in, out, variadic), nil
	}
	if len(args) != want {
		return nil, slim.NewArgumentError(subject, "want %d type arguments, got %d", want, len(args))
	}
	if n, ok := slim.ParseFixedArrayDefinition(def); ok {
		return reflect.ArrayOf(n, args[0]), nil
	}
	switch def.Name {
	case "*":
		return reflect.PointerTo(args[0]), nil
	case "map":
		if !args[0].Comparable() {
			return nil, slim.NewResolutionError(subject, "map key type %s is not comparable", args[0])
		}
		return reflect.MapOf(args[0], args[1]), nil
	case "chan":
		return reflect.ChanOf(reflect.BothDir, args[0]), nil
	case "<-chan":
		return reflect.ChanOf(reflect.RecvDir, args[0]), nil
	case "chan<-":
		return reflect.ChanOf(reflect.SendDir, args[0]), nil
	}
	return nil, slim.NewResolutionError(subject, "unknown builtin definition")
}

// materialize builds (once per structural key) an unnamed struct type for
// a structural descriptor. Recursive shapes have no native form.
func (c *Converter) materialize(st *slim.StructuralType, active []*slim.StructuralType) (reflect.Type, error) {
	subject := slim.FormatType(st)
	recursive := slices.Contains(active, st)
	if len(active) == 0 {
		recursive = cyclic(st, make(map[*slim.StructuralType]bool), make(map[*slim.StructuralType]bool))
	}
	if recursive {
		return nil, slim.NewResolutionError(subject, "recursive structural types cannot be materialized natively")
	}
	key := typeKey(st)
	if t, ok := c.structs.Get(key); ok {
		return t, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		names := st.SortedPropertyNames()
		fields := make([]reflect.StructField, 0, len(names))
		used := make(map[string]bool, len(names))
		for _, name := range names {
			p, _ := st.Property(name)
			ft, err := c.toType(p.Type, append(active, st))
			if err != nil {
				return nil, err
			}
			fields = append(fields, reflect.StructField{
				Name: fieldName(name, used),
				Type: ft,
				Tag:  formatTag(st, name),
			})
		}
		t := reflect.StructOf(fields)
		c.structs.Add(key, t)
		if _, seen := c.records.Get(t); !seen {
			c.records.Add(t, st)
		}
		c.logger.Debug("materialized structural type",
			"type", subject,
			"fields", len(fields),
		)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(reflect.Type), nil
}

// cyclic reports whether a structural type reachable from d refers back
// to itself. Distinct records of one shape share a structural key, so a
// cycle must be caught before materialization enters the shared group.
func cyclic(d slim.Type, onPath, done map[*slim.StructuralType]bool) bool {
	switch x := d.(type) {
	case *slim.ArrayType:
		return cyclic(x.Element, onPath, done)
	case *slim.GenericType:
		for _, a := range x.Arguments {
			if cyclic(a, onPath, done) {
				return true
			}
		}
	case *slim.StructuralType:
		if onPath[x] {
			return true
		}
		if done[x] {
			return false
		}
		onPath[x] = true
		for _, p := range x.Properties() {
			if cyclic(p.Type, onPath, done) {
				return true
			}
		}
		delete(onPath, x)
		done[x] = true
	}
	return false
}
