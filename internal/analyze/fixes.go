package analyze

import (
	"fmt"
	"strings"

	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/fix"
	"piecemeal/internal/naming"
)

func noConstructor(c *decl.Class) diag.Diagnostic {
	ctorName := constructorName(c)
	d := diag.NewError(diag.PmNoPrimaryConstructor, c.NameSpan,
		fmt.Sprintf("type %s has no primary constructor", c.Name)).
		WithNote(c.NameSpan, fmt.Sprintf("declare func %s(...) %s%s or mark a function with //piecemeal:constructor %s", ctorName, c.Name, c.TypeArgs(), c.Name))
	return d.WithFixSuggestion(fix.InsertText(
		fmt.Sprintf("add constructor %s from the fields of %s", ctorName, c.Name),
		c.DeclEnd, constructorStub(c, ctorName),
		fix.WithID("insert-constructor-"+c.Name),
		fix.WithKind(diag.FixKindSourceAction),
		fix.WithApplicability(diag.FixApplicabilitySafeWithHeuristics),
		fix.Preferred(),
	))
}

// constructorNotVisible suggests exporting the constructor. Callers of the
// old name are not rewritten, so the fix needs review.
func constructorNotVisible(c *decl.Class, ctor *decl.Constructor) diag.Diagnostic {
	exported := naming.Export(ctor.Name)
	d := diag.NewError(diag.PmConstructorNotVisible, ctor.NameSpan,
		fmt.Sprintf("constructor %s is %s but type %s is %s", ctor.Name, ctor.Visibility, c.Name, c.Visibility)).
		WithNote(c.NameSpan, fmt.Sprintf("%s declared here", c.Name))
	return d.WithFixSuggestion(fix.ReplaceSpan(
		fmt.Sprintf("rename %s to %s", ctor.Name, exported),
		ctor.NameSpan, exported, ctor.Name,
		fix.WithID("export-constructor-"+ctor.Name),
		fix.WithApplicability(diag.FixApplicabilityManualReview),
	))
}

func strayDefault(ctor *decl.Constructor, stray decl.StrayDefault) diag.Diagnostic {
	return diag.NewError(diag.PmInvalidDefault, stray.Span,
		fmt.Sprintf("default given for unknown parameter '%s' of %s", stray.Param, ctor.Name)).
		WithFixSuggestion(fix.DeleteSpan(
			fmt.Sprintf("remove default for '%s'", stray.Param),
			stray.Span, "",
			fix.WithID(fmt.Sprintf("remove-default-%s-%s", ctor.Name, stray.Param)),
		))
}

// constructorName follows the New<Type> convention at the class's visibility.
func constructorName(c *decl.Class) string {
	if c.Visibility == decl.Public {
		return "New" + naming.Export(c.Name)
	}
	return "new" + naming.Export(c.Name)
}

// constructorStub renders a constructor taking one parameter per field.
func constructorStub(c *decl.Class, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n// %s creates a %s.\nfunc %s", name, c.Name, name)
	if len(c.TypeParams) > 0 {
		b.WriteByte('[')
		for i, tp := range c.TypeParams {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tp.Name + " " + tp.Constraint)
		}
		b.WriteByte(']')
	}

	params := make([]string, len(c.Fields))
	seen := make(map[string]int, len(c.Fields))
	b.WriteByte('(')
	for i, f := range c.Fields {
		p := naming.Unexport(f.Name)
		if n := seen[p]; n > 0 {
			seen[p] = n + 1
			p = fmt.Sprintf("%s%d", p, n+1)
		} else {
			seen[p] = 1
		}
		params[i] = p
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p + " " + f.Type.String())
	}
	typ := c.Name + c.TypeArgs()
	fmt.Fprintf(&b, ") %s {\n\treturn %s{", typ, typ)
	for i, f := range c.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name + ": " + params[i])
	}
	b.WriteString("}\n}")
	return b.String()
}
