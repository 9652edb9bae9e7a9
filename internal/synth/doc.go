// Package synth turns an eligible declaration into a builder descriptor and
// an inline builder function.
//
// A Descriptor is pure data: one FieldSlot and one Setter per constructor
// parameter, in declaration order, plus the Build method. Whether a slot is
// set is runtime state and never appears here; see internal/vm for the
// in-memory runtime model and internal/gogen for Go source emission.
//
// Synthesis is deterministic. An error return always wraps ErrInvariant and
// means the input broke an assumption analysis should have guaranteed.
package synth
