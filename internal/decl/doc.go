// Package decl is the declaration model consumed by the analyzer and the
// synthesizers: a struct type marked for builder generation, its primary
// constructor and the constructor's parameters.
//
// Values are produced by the loader (or by tests) and are treated as
// immutable afterwards. Nothing in this package performs IO.
package decl
