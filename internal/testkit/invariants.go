// Package testkit holds invariant checkers shared by package tests.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"piecemeal/internal/decl"
	"piecemeal/internal/source"
	"piecemeal/internal/synth"
)

// CheckDescriptorInvariants verifies that d mirrors c:
// 1) one slot and one setter per constructor parameter, in order
// 2) slot names, types and required flags follow the parameters and policy
// 3) Build checks exactly the required slots, in slot order
// 4) ToBuilder, when present, names one field per slot
func CheckDescriptorInvariants(c *decl.Class, d *synth.Descriptor, policy synth.DefaultPolicy) error {
	if c == nil || d == nil {
		return fmt.Errorf("nil class or descriptor")
	}
	if c.Constructor == nil {
		return fmt.Errorf("%s: descriptor exists for a class without constructor", c.ID)
	}
	if d.ID != c.ID {
		return fmt.Errorf("descriptor id %s, class id %s", d.ID, c.ID)
	}
	params := c.Constructor.Params

	// 1) counts
	if len(d.Slots) != len(params) {
		return fmt.Errorf("%s: %d slots for %d parameters", c.ID, len(d.Slots), len(params))
	}
	if len(d.Setters) != len(d.Slots) {
		return fmt.Errorf("%s: %d setters for %d slots", c.ID, len(d.Setters), len(d.Slots))
	}

	// 2) slots follow parameters
	var required []int
	for i, p := range params {
		s := d.Slots[i]
		if s.Name != p.Name || s.Index != i {
			return fmt.Errorf("%s: slot %d is %q@%d, want %q@%d", c.ID, i, s.Name, s.Index, p.Name, i)
		}
		if s.Type.String() != p.Type.String() {
			return fmt.Errorf("%s: slot %q has type %s, want %s", c.ID, s.Name, s.Type, p.Type)
		}
		wantRequired := p.Required() || policy == synth.PolicyExplicit
		if s.Required != wantRequired {
			return fmt.Errorf("%s: slot %q required=%v, want %v", c.ID, s.Name, s.Required, wantRequired)
		}
		if s.Required && s.Default != nil {
			return fmt.Errorf("%s: required slot %q carries a default", c.ID, s.Name)
		}
		if !s.Required && s.Default == nil {
			return fmt.Errorf("%s: optional slot %q has no default", c.ID, s.Name)
		}
		if st, ok := d.SetterFor(i); !ok || d.Setters[i] != st {
			return fmt.Errorf("%s: setter %d does not assign slot %d", c.ID, i, i)
		}
		if s.Required {
			required = append(required, i)
		}
	}

	// 3) build checks the required set
	if len(required) != len(d.Build.Required) {
		return fmt.Errorf("%s: Build checks %v, want %v", c.ID, d.Build.Required, required)
	}
	for i := range required {
		if required[i] != d.Build.Required[i] {
			return fmt.Errorf("%s: Build checks %v, want %v", c.ID, d.Build.Required, required)
		}
	}
	if d.Build.Constructor != c.Constructor.Name {
		return fmt.Errorf("%s: Build calls %s, want %s", c.ID, d.Build.Constructor, c.Constructor.Name)
	}

	// 4) ToBuilder shape
	if d.ToBuilder != nil && len(d.ToBuilder.Fields) != len(d.Slots) {
		return fmt.Errorf("%s: ToBuilder reads %d fields for %d slots", c.ID, len(d.ToBuilder.Fields), len(d.Slots))
	}
	return nil
}

// CheckClassSpans verifies that every span recorded on c lies inside its
// file's content.
func CheckClassSpans(fs *source.FileSet, c *decl.Class) error {
	spans := []source.Span{c.Span, c.NameSpan, c.DeclEnd}
	if c.Constructor != nil {
		spans = append(spans, c.Constructor.Span, c.Constructor.NameSpan)
		for _, p := range c.Constructor.Params {
			spans = append(spans, p.Span)
			if p.Default != nil {
				spans = append(spans, p.Default.Span)
			}
		}
	}
	for _, sp := range spans {
		f := fs.Get(sp.File)
		if f == nil {
			return fmt.Errorf("%s: span %v points to unknown file", c.ID, sp)
		}
		n, err := safecast.Conv[uint32](len(f.Content))
		if err != nil {
			return fmt.Errorf("len content overflow: %w", err)
		}
		if sp.End < sp.Start || sp.End > n {
			return fmt.Errorf("%s: span %v outside %s (%d bytes)", c.ID, sp, f.Path, n)
		}
	}
	return nil
}
