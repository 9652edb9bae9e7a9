package synth

import (
	"errors"
	"fmt"

	"piecemeal/internal/analyze"
	"piecemeal/internal/decl"
	"piecemeal/internal/naming"
)

// ErrInvariant marks internal consistency failures. It is fatal only to the
// declaration being synthesized.
var ErrInvariant = errors.New("synthesis invariant violated")

// Synthesizer is stateless apart from its policy and safe for concurrent use.
type Synthesizer struct {
	policy DefaultPolicy
}

func New(policy DefaultPolicy) *Synthesizer {
	return &Synthesizer{policy: policy}
}

func (s *Synthesizer) Policy() DefaultPolicy { return s.policy }

// Synthesize builds the descriptor for an eligible class.
func (s *Synthesizer) Synthesize(e *analyze.Eligible) (*Descriptor, error) {
	if e == nil || e.Class() == nil {
		return nil, fmt.Errorf("%w: nil eligible declaration", ErrInvariant)
	}
	c := e.Class()
	ctor := c.Constructor
	if ctor == nil {
		return nil, fmt.Errorf("%w: %s has no constructor", ErrInvariant, c.ID)
	}
	scheme := e.Scheme()

	d := &Descriptor{
		ID:          c.ID,
		PkgPath:     c.PkgPath,
		TypeName:    c.Name,
		BuilderName: scheme.BuilderName(c.Name),
		Visibility:  c.Visibility,
		TypeParams:  c.TypeParams,
		Imports:     c.Imports,
		Slots:       make([]FieldSlot, 0, len(ctor.Params)),
		Setters:     make([]Setter, 0, len(ctor.Params)),
		Build: BuildMethod{
			Name:         "Build",
			Constructor:  ctor.Name,
			Result:       ctor.Result,
			ReturnsError: ctor.ReturnsError,
			Variadic:     ctor.Variadic,
		},
	}

	for i, p := range ctor.Params {
		if p.Index != i {
			return nil, fmt.Errorf("%w: %s parameter %q has position %d, want %d", ErrInvariant, c.ID, p.Name, p.Index, i)
		}
		slot := FieldSlot{
			Name:     p.Name,
			Type:     p.Type,
			Required: p.Required() || s.policy == PolicyExplicit,
			Index:    i,
			Variadic: ctor.Variadic && i == len(ctor.Params)-1,
		}
		if !slot.Required {
			slot.Default = p.Default
		}
		d.Slots = append(d.Slots, slot)
		d.Setters = append(d.Setters, Setter{Name: scheme.SetterName(p.Name), Slot: i})
		if slot.Required {
			d.Build.Required = append(d.Build.Required, i)
		}
	}

	if e.ToBuilder() {
		d.ToBuilder = toBuilderFields(c)
	}

	if err := checkDescriptor(c, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SynthesizeInline builds the inline function for the same class as d.
func (s *Synthesizer) SynthesizeInline(e *analyze.Eligible, d *Descriptor) (InlineFunc, error) {
	if e == nil || e.Class() == nil || d == nil {
		return InlineFunc{}, fmt.Errorf("%w: inline synthesis without declaration or descriptor", ErrInvariant)
	}
	c := e.Class()
	if d.ID != c.ID {
		return InlineFunc{}, fmt.Errorf("%w: descriptor %s does not belong to %s", ErrInvariant, d.ID, c.ID)
	}
	return InlineFunc{
		Name:        e.Scheme().InlineName(c.Name),
		ID:          c.ID,
		TypeName:    c.Name,
		BuilderName: d.BuilderName,
		TypeParams:  c.TypeParams,
		Result:      d.Build.Result,
	}, nil
}

// toBuilderFields maps every parameter to a struct field with the same name
// (or its exported form) and the same type. Any miss disables ToBuilder.
func toBuilderFields(c *decl.Class) *ToBuilderMethod {
	fields := make([]string, len(c.Constructor.Params))
	for i, p := range c.Constructor.Params {
		f, ok := c.Field(p.Name)
		if !ok {
			f, ok = c.Field(naming.Export(p.Name))
		}
		if !ok || f.Type.String() != p.Type.String() {
			return nil
		}
		fields[i] = f.Name
	}
	return &ToBuilderMethod{Fields: fields}
}

func checkDescriptor(c *decl.Class, d *Descriptor) error {
	if len(d.Slots) != len(c.Constructor.Params) || len(d.Setters) != len(d.Slots) {
		return fmt.Errorf("%w: %s has %d parameters but %d slots and %d setters",
			ErrInvariant, c.ID, len(c.Constructor.Params), len(d.Slots), len(d.Setters))
	}
	seen := make(map[string]bool, len(d.Setters))
	for _, st := range d.Setters {
		if seen[st.Name] || st.Name == d.Build.Name {
			return fmt.Errorf("%w: %s: duplicate builder member %s", ErrInvariant, c.ID, st.Name)
		}
		seen[st.Name] = true
	}
	return nil
}
