// Package typesys maps Go's reflect.Type world to slim type descriptors and
// back.
//
// Go cannot load a type by name, so resolution goes through a Provider;
// Registry is the default one, populated by explicit registration of named
// types, generic instantiations, constructors and package functions.
//
// Converter.ToSlim is total. Converter.ToType resolves names through the
// provider and materializes structural types with reflect.StructOf; the
// original descriptor of every materialized struct is remembered so a
// round trip through native code yields the same descriptor back.
package typesys
