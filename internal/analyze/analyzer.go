package analyze

import (
	"fmt"
	"slices"

	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/naming"
)

// Config controls what the analyzer accepts and how it predicts generated names.
type Config struct {
	Types     TypeSet
	Scheme    naming.Scheme
	ToBuilder bool
}

func DefaultConfig() Config {
	return Config{
		Types:     DefaultTypeSet(),
		Scheme:    naming.DefaultScheme(),
		ToBuilder: true,
	}
}

// Eligible is the proof that a class passed analysis. It can only be
// obtained from Analyze.
type Eligible struct {
	class     *decl.Class
	scheme    naming.Scheme
	toBuilder bool
}

// Class returns the analyzed declaration. Callers must not modify it.
func (e *Eligible) Class() *decl.Class { return e.class }

// Scheme is the naming scheme resolved for this class, marker options applied.
func (e *Eligible) Scheme() naming.Scheme { return e.scheme }

// ToBuilder reports whether ToBuilder/Copy generation was requested.
func (e *Eligible) ToBuilder() bool { return e.toBuilder }

// Analyzer is stateless apart from its configuration and safe for concurrent use.
type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	if cfg.Types.allowed == nil {
		cfg.Types = DefaultTypeSet()
	}
	return &Analyzer{cfg: cfg}
}

// Analyze validates c. It returns a non-nil *Eligible only when no
// diagnostics were produced.
func (a *Analyzer) Analyze(c *decl.Class) (*Eligible, []diag.Diagnostic) {
	var diags []diag.Diagnostic

	scheme := a.cfg.Scheme
	if c.Options.SetterStyle != "" {
		style, err := naming.ParseSetterStyle(c.Options.SetterStyle)
		if err != nil {
			diags = append(diags, diag.NewError(diag.DirMalformed, c.NameSpan, fmt.Sprintf("%s: %v", c.Name, err)))
		}
		scheme.Style = style
	}
	toBuilder := a.cfg.ToBuilder
	if c.Options.ToBuilder != nil {
		toBuilder = *c.Options.ToBuilder
	}

	ctor := c.Constructor
	if ctor == nil {
		diags = append(diags, noConstructor(c))
	} else {
		if !ctor.Visibility.AtLeast(c.Visibility) {
			diags = append(diags, constructorNotVisible(c, ctor))
		}
		diags = append(diags, a.checkParams(c, ctor)...)
		diags = append(diags, checkMembers(c, ctor, scheme, toBuilder)...)
		diags = append(diags, checkDefaults(ctor)...)
	}

	if len(diags) > 0 {
		return nil, diags
	}
	return &Eligible{class: c, scheme: scheme, toBuilder: toBuilder}, nil
}

func (a *Analyzer) checkParams(c *decl.Class, ctor *decl.Constructor) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, p := range ctor.Params {
		if p.Name == "" || p.Name == "_" {
			diags = append(diags, diag.NewError(diag.PmUnnamedParameter, p.Span,
				fmt.Sprintf("parameter %d of %s has no name; builder setters are named after constructor parameters", p.Index+1, ctor.Name)))
		}
		ok, offending := a.cfg.Types.Supports(p.Type)
		if ok {
			continue
		}
		msg := fmt.Sprintf("parameter '%s' of %s has unsupported type %s", p.Name, ctor.Name, p.Type)
		if offending.String() != p.Type.String() {
			msg += fmt.Sprintf(" (contains %s)", offending)
		}
		d := diag.NewError(diag.PmUnsupportedPropertyType, p.Span, msg).
			WithNote(c.NameSpan, fmt.Sprintf("%s types cannot be held by the %s builder", offending.Kind, c.Name))
		diags = append(diags, d)
	}
	return diags
}

// builderMethod is the only non-setter method of a builder.
const builderMethod = "Build"

func checkMembers(c *decl.Class, ctor *decl.Constructor, scheme naming.Scheme, toBuilder bool) []diag.Diagnostic {
	var diags []diag.Diagnostic

	setters := make(map[string]string, len(ctor.Params))
	for _, p := range ctor.Params {
		if p.Name == "" || p.Name == "_" {
			continue
		}
		name := scheme.SetterName(p.Name)
		if name == builderMethod {
			diags = append(diags, diag.NewError(diag.PmDuplicateBuilderMember, p.Span,
				fmt.Sprintf("setter %s for parameter '%s' collides with the %s method", name, p.Name, builderMethod)))
			continue
		}
		if prev, dup := setters[name]; dup {
			diags = append(diags, diag.NewError(diag.PmDuplicateBuilderMember, p.Span,
				fmt.Sprintf("setter %s for parameter '%s' collides with the setter for parameter '%s'", name, p.Name, prev)))
			continue
		}
		setters[name] = p.Name
	}

	for _, name := range []string{scheme.BuilderName(c.Name), scheme.InlineName(c.Name)} {
		if slices.Contains(c.Taken, name) {
			diags = append(diags, diag.NewError(diag.PmDuplicateBuilderMember, c.NameSpan,
				fmt.Sprintf("generated %s collides with an existing declaration in package %s", name, c.PkgName)))
		}
	}

	if toBuilder {
		for _, name := range []string{"ToBuilder", "Copy"} {
			_, isField := c.Field(name)
			if isField || slices.Contains(c.Methods, name) {
				diags = append(diags, diag.NewError(diag.PmDuplicateBuilderMember, c.NameSpan,
					fmt.Sprintf("generated method %s.%s collides with an existing member; disable it with //piecemeal:builder tobuilder=false", c.Name, name)))
			}
		}
	}
	return diags
}

func checkDefaults(ctor *decl.Constructor) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, stray := range ctor.StrayDefaults {
		diags = append(diags, strayDefault(ctor, stray))
	}
	for _, p := range ctor.Params {
		if p.Default == nil {
			continue
		}
		for _, ref := range p.Default.Refs {
			q, ok := ctor.Param(ref)
			if !ok {
				continue
			}
			switch {
			case q.Index == p.Index:
				diags = append(diags, diag.NewError(diag.PmInvalidDefault, p.Default.Span,
					fmt.Sprintf("default of '%s' refers to itself", p.Name)))
			case q.Index > p.Index:
				diags = append(diags, diag.NewError(diag.PmInvalidDefault, p.Default.Span,
					fmt.Sprintf("default of '%s' refers to parameter '%s', which is declared after it", p.Name, q.Name)).
					WithNote(q.Span, fmt.Sprintf("'%s' declared here", q.Name)))
			}
		}
	}
	return diags
}
