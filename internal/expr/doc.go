// Package expr is the native, reflection-backed expression model.
//
// Go has no runtime expression trees, so this package supplies one: nodes
// typed by reflect.Type, member handles backed by struct fields, method sets
// and registered functions, typed factories that validate operands the way
// the Go type checker would, and an interpreter that evaluates trees and
// compiles lambdas into real Go function values.
//
// Nodes are immutable and built only through the Make* factories, which
// compute and check every node's static type. Parameters and label targets
// are identified by pointer.
//
// Go-specific conventions:
//   - Nullable values are pointers to predeclared basic types; operators
//     lift over them
//   - Exceptions are panics: Throw panics and Try recovers
//   - Void is represented by VoidType; void nodes produce no value
//   - Properties are zero-or-more-argument getter methods with one result,
//     or the fields of unnamed struct types
package expr
