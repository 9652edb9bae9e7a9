package decl

import "piecemeal/internal/source"

// ResultShape describes what the constructor returns.
type ResultShape uint8

const (
	ResultValue ResultShape = iota
	ResultPointer
)

// Constructor is the primary constructor of a class.
type Constructor struct {
	Name       string
	Visibility Visibility
	Params     []Param
	Result     ResultShape
	// ReturnsError is true for (T, error) and (*T, error) results.
	ReturnsError bool
	// Variadic marks the last parameter as variadic; its Type is the slice type.
	Variadic bool
	// StrayDefaults are default directives naming no parameter.
	StrayDefaults []StrayDefault

	Span     source.Span
	NameSpan source.Span
}

// Param is a constructor parameter. Index is its position in the signature.
type Param struct {
	Name    string
	Type    TypeRef
	Default *Default
	Index   int
	Span    source.Span
}

// Required reports whether the parameter has no default.
func (p Param) Required() bool {
	return p.Default == nil
}

// Default is a default value expression written as Go source. Refs lists the
// constructor parameters the expression mentions, in order of appearance.
type Default struct {
	Expr string
	Refs []string
	Span source.Span
}

// StrayDefault is a //piecemeal:default naming an unknown parameter.
type StrayDefault struct {
	Param string
	Span  source.Span
}

// Param returns the parameter called name.
func (c *Constructor) Param(name string) (Param, bool) {
	for _, p := range c.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}
