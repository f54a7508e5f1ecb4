// Package slim provides the portable, reflection-free intermediate
// representation of types and expressions.
//
// This package contains the IR definitions and the algorithms that need
// nothing but the IR itself: structural equality, hashing, printing and the
// serialization codec. Packages that bridge to live reflection (typesys,
// convert) or rewrite the IR (subst, derive, intern, recordize) import slim;
// slim imports nothing internal except op.
//
// Key design constraints:
//   - Type and Expression are sealed interfaces; every visitor switches
//     exhaustively over the concrete node types
//   - Nodes are immutable once built and may be shared by reference
//   - Structural types are built open, then frozen; a property may refer to
//     its enclosing type, so every walk over types is cycle-safe
//   - Parameters and label targets are compared by pointer identity
package slim
