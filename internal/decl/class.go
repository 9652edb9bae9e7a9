package decl

import (
	"go/token"
	"strings"

	"piecemeal/internal/source"
)

// ID is the qualified identity of a declaration: "<pkgpath>.<Type>".
type ID string

// NewID builds the identity of a type declared in pkgPath.
func NewID(pkgPath, name string) ID {
	if pkgPath == "" {
		return ID(name)
	}
	return ID(pkgPath + "." + name)
}

// Visibility orders the two Go visibility levels.
type Visibility uint8

const (
	// Package visibility: unexported identifier.
	Package Visibility = iota
	// Public visibility: exported identifier.
	Public
)

// VisibilityOf derives visibility from an identifier the way the Go spec does.
func VisibilityOf(name string) Visibility {
	if token.IsExported(name) {
		return Public
	}
	return Package
}

func (v Visibility) String() string {
	if v == Public {
		return "exported"
	}
	return "unexported"
}

// AtLeast reports whether v is at least as visible as other.
func (v Visibility) AtLeast(other Visibility) bool {
	return v >= other
}

// TypeParam is a type parameter of a generic class, with its constraint
// spelled as Go source.
type TypeParam struct {
	Name       string
	Constraint string
}

// Import is a package referenced by parameter types or constraints.
// Name is the qualifier used in TypeRef.Expr.
type Import struct {
	Path string
	Name string
}

// Field is a struct field. Only fields that can seed a builder are relevant.
type Field struct {
	Name string
	Type TypeRef
}

// Options are per-type generator settings from the builder marker.
type Options struct {
	SetterStyle string
	ToBuilder   *bool
}

// Class is a struct type carrying the builder marker.
type Class struct {
	ID         ID
	PkgPath    string
	PkgName    string
	Name       string
	TypeParams []TypeParam
	Visibility Visibility
	// Constructor is nil when no primary constructor was found.
	Constructor *Constructor
	Fields      []Field
	Imports     []Import
	Options     Options
	// Methods are the method names declared on the class.
	Methods []string
	// Taken are package-level identifiers declared outside generated files.
	Taken []string

	Span     source.Span
	NameSpan source.Span
	// DeclEnd is an empty span right after the type declaration; fixes insert there.
	DeclEnd source.Span
}

// IsGeneric reports whether the class declares type parameters.
func (c *Class) IsGeneric() bool {
	return len(c.TypeParams) > 0
}

// Field returns the struct field called name.
func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TypeArgs returns "[T, U]" for generic classes and "" otherwise.
func (c *Class) TypeArgs() string {
	if len(c.TypeParams) == 0 {
		return ""
	}
	names := make([]string, len(c.TypeParams))
	for i, tp := range c.TypeParams {
		names[i] = tp.Name
	}
	return "[" + strings.Join(names, ", ") + "]"
}
