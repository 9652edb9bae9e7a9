package fix

import (
	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

// Option adjusts a fix built by InsertText, ReplaceSpan or DeleteSpan.
// Built fixes default to an always-safe quick fix.
type Option func(*diag.Fix)

func WithApplicability(app diag.FixApplicability) Option {
	return func(f *diag.Fix) { f.Applicability = app }
}

func WithKind(kind diag.FixKind) Option {
	return func(f *diag.Fix) { f.Kind = kind }
}

func Preferred() Option {
	return func(f *diag.Fix) { f.IsPreferred = true }
}

// WithID sets the id accepted by `piecemeal fix --id`.
func WithID(id string) Option {
	return func(f *diag.Fix) { f.ID = id }
}

// WithRequiresAll keeps the fix out of single-fix runs.
func WithRequiresAll() Option {
	return func(f *diag.Fix) { f.RequiresAll = true }
}

func build(title string, edit diag.TextEdit, opts []Option) diag.Fix {
	f := diag.Fix{Title: title, Edits: []diag.TextEdit{edit}}
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}

// InsertText inserts text at at.Start; the end of at is ignored.
func InsertText(title string, at source.Span, text string, opts ...Option) diag.Fix {
	at.End = at.Start
	return build(title, diag.TextEdit{Span: at, NewText: text}, opts)
}

// ReplaceSpan replaces span with newText. A non-empty expect guards the
// edit: the fix is skipped unless the file still holds expect there.
func ReplaceSpan(title string, span source.Span, newText, expect string, opts ...Option) diag.Fix {
	return build(title, diag.TextEdit{Span: span, NewText: newText, OldText: expect}, opts)
}

func DeleteSpan(title string, span source.Span, expect string, opts ...Option) diag.Fix {
	return ReplaceSpan(title, span, "", expect, opts...)
}
