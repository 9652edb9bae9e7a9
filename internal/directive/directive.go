// Package directive parses //piecemeal: comment directives.
//
// Recognised forms:
//
//	//piecemeal:builder [style=plain|with|set] [tobuilder=true|false]
//	//piecemeal:constructor <Type>
//	//piecemeal:default <param>=<go expression>
//
// Like //go: directives there is no space between "//" and the namespace.
package directive

import (
	"errors"
	"fmt"
	"strings"

	"piecemeal/internal/source"
)

// Prefix starts every directive comment.
const Prefix = "//piecemeal:"

type Kind uint8

const (
	KindUnknown Kind = iota
	KindBuilder
	KindConstructor
	KindDefault
)

func (k Kind) String() string {
	switch k {
	case KindBuilder:
		return "builder"
	case KindConstructor:
		return "constructor"
	case KindDefault:
		return "default"
	}
	return "unknown"
}

var kindByName = map[string]Kind{
	"builder":     KindBuilder,
	"constructor": KindConstructor,
	"default":     KindDefault,
}

// Directive is one parsed //piecemeal: line.
type Directive struct {
	Kind Kind
	Name string
	Args string
	// Span covers the whole comment, ArgsSpan only the trimmed arguments.
	Span     source.Span
	ArgsSpan source.Span
}

// Comment is a single-line comment with its location.
type Comment struct {
	Text string
	Span source.Span
}

// SyntaxError describes a malformed directive.
type SyntaxError struct {
	Span source.Span
	Msg  string
}

func (e *SyntaxError) Error() string {
	return e.Msg
}

// Parse parses one comment. ok is false when the comment is not a
// piecemeal directive at all; err is a *SyntaxError for malformed ones.
func Parse(c Comment) (d Directive, ok bool, err error) {
	if !strings.HasPrefix(c.Text, Prefix) {
		return Directive{}, false, nil
	}
	rest := c.Text[len(Prefix):]
	name, args, _ := strings.Cut(rest, " ")
	name = strings.TrimSpace(name)

	// offset of args inside the comment text
	argsOff := len(c.Text) - len(args)
	trimmed := strings.TrimSpace(args)
	if trimmed != "" {
		argsOff += strings.Index(args, trimmed)
	}
	d = Directive{
		Name:     name,
		Args:     trimmed,
		Span:     c.Span,
		ArgsSpan: subSpan(c.Span, argsOff, len(trimmed)),
	}
	kind, known := kindByName[name]
	if !known {
		return d, true, &SyntaxError{Span: c.Span, Msg: fmt.Sprintf("unknown directive %q", Prefix+name)}
	}
	d.Kind = kind

	switch kind {
	case KindConstructor:
		if trimmed == "" || strings.ContainsAny(trimmed, " \t") {
			return d, true, &SyntaxError{Span: c.Span, Msg: Prefix + "constructor expects exactly one type name"}
		}
	case KindDefault:
		param, expr, found := strings.Cut(trimmed, "=")
		if !found || strings.TrimSpace(param) == "" || strings.TrimSpace(expr) == "" {
			return d, true, &SyntaxError{Span: c.Span, Msg: Prefix + "default expects <param>=<expression>"}
		}
	case KindBuilder:
		if _, err := d.Options(); err != nil {
			return d, true, err
		}
	}
	return d, true, nil
}

// Scan parses every comment and returns the directives found plus the
// syntax errors, both in input order.
func Scan(comments []Comment) ([]Directive, []*SyntaxError) {
	var (
		out  []Directive
		errs []*SyntaxError
	)
	for _, c := range comments {
		d, ok, err := Parse(c)
		if !ok {
			continue
		}
		if err != nil {
			var se *SyntaxError
			if !errors.As(err, &se) {
				se = &SyntaxError{Span: c.Span, Msg: err.Error()}
			}
			errs = append(errs, se)
			continue
		}
		out = append(out, d)
	}
	return out, errs
}

// Target returns the type named by a constructor directive.
func (d Directive) Target() string {
	if d.Kind != KindConstructor {
		return ""
	}
	return d.Args
}

// Default splits a default directive into parameter name and expression text.
// exprSpan locates the expression inside the source file.
func (d Directive) Default() (param, expr string, exprSpan source.Span) {
	if d.Kind != KindDefault {
		return "", "", source.Span{}
	}
	rawParam, rawExpr, _ := strings.Cut(d.Args, "=")
	expr = strings.TrimSpace(rawExpr)
	off := len(d.Args) - len(rawExpr) + strings.Index(rawExpr, expr)
	return strings.TrimSpace(rawParam), expr, subSpan(d.ArgsSpan, off, len(expr))
}

// subSpan narrows sp to n bytes starting off bytes in. Comments are short,
// the conversions cannot overflow.
//
//nolint:gosec
func subSpan(sp source.Span, off, n int) source.Span {
	start := sp.Start + uint32(off)
	return source.Span{File: sp.File, Start: start, End: start + uint32(n)}
}
