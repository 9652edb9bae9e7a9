package synth

import (
	"piecemeal/internal/decl"
)

// FieldSlot holds one constructor argument inside a builder.
type FieldSlot struct {
	Name     string
	Type     decl.TypeRef
	Required bool
	// Default is nil for required slots.
	Default  *decl.Default
	Index    int
	Variadic bool
}

// Setter assigns one slot and returns the builder: (value T) -> *Builder.
type Setter struct {
	Name string
	Slot int
}

// BuildMethod checks required slots and calls the constructor positionally.
type BuildMethod struct {
	Name         string
	Constructor  string
	Result       decl.ResultShape
	ReturnsError bool
	Variadic     bool
	// Required lists slot indices checked before construction, in order.
	Required []int
}

// ToBuilderMethod seeds a builder from an existing instance. Fields[i] is the
// struct field read into slot i.
type ToBuilderMethod struct {
	Fields []string
}

// Descriptor is the synthesized builder for one class.
type Descriptor struct {
	ID          decl.ID
	PkgPath     string
	TypeName    string
	BuilderName string
	Visibility  decl.Visibility
	TypeParams  []decl.TypeParam
	Imports     []decl.Import
	Slots       []FieldSlot
	Setters     []Setter
	Build       BuildMethod
	// ToBuilder is nil when not requested or when some parameter has no
	// matching field.
	ToBuilder *ToBuilderMethod
}

// TypeArgs returns "[T, U]" for generic builders, "" otherwise.
func (d *Descriptor) TypeArgs() string {
	c := decl.Class{TypeParams: d.TypeParams}
	return c.TypeArgs()
}

// SetterFor returns the setter assigning slot i.
func (d *Descriptor) SetterFor(i int) (Setter, bool) {
	for _, s := range d.Setters {
		if s.Slot == i {
			return s, true
		}
	}
	return Setter{}, false
}

// InlineFunc is the top-level Build<Type>(configure func(*<Type>Builder)).
// It creates a fresh builder, calls configure exactly once and returns Build().
type InlineFunc struct {
	Name        string
	ID          decl.ID
	TypeName    string
	BuilderName string
	TypeParams  []decl.TypeParam
	Result      decl.ResultShape
}
