package diagfmt

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"

	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

// Report is the document written by --format=json.
type Report struct {
	Count int `json:"count"`
	// Errors counts error diagnostics in the whole bag, Max notwithstanding.
	Errors      int              `json:"errors"`
	Truncated   bool             `json:"truncated,omitempty"`
	Diagnostics []JSONDiagnostic `json:"diagnostics"`
}

// Location is a span; line and column are present with IncludePositions.
type Location struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
	StartLine uint32 `json:"start_line,omitempty"`
	StartCol  uint32 `json:"start_col,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty"`
	EndCol    uint32 `json:"end_col,omitempty"`
}

type JSONNote struct {
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

type JSONEdit struct {
	Location    Location `json:"location"`
	NewText     string   `json:"new_text"`
	OldText     string   `json:"old_text,omitempty"`
	BeforeLines []string `json:"before_lines,omitempty"`
	AfterLines  []string `json:"after_lines,omitempty"`
}

type JSONFix struct {
	// ID is what `piecemeal fix --id` takes.
	ID            string     `json:"id,omitempty"`
	Title         string     `json:"title"`
	Kind          string     `json:"kind"`
	Applicability string     `json:"applicability"`
	IsPreferred   bool       `json:"is_preferred,omitempty"`
	RequiresAll   bool       `json:"requires_all,omitempty"`
	Edits         []JSONEdit `json:"edits"`
}

type JSONDiagnostic struct {
	Severity string     `json:"severity"`
	Code     string     `json:"code"`
	Name     string     `json:"name,omitempty"`
	Message  string     `json:"message"`
	Location Location   `json:"location"`
	Notes    []JSONNote `json:"notes,omitempty"`
	Fixes    []JSONFix  `json:"fixes,omitempty"`
}

// JSON writes the bag as an indented Report.
func JSON(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildReport(bag, fs, opts))
}

// BuildReport converts the bag without encoding it.
func BuildReport(bag *diag.Bag, fs *source.FileSet, opts JSONOpts) Report {
	items := bag.Items()
	rep := Report{Errors: bag.Count(diag.SevError), Diagnostics: make([]JSONDiagnostic, 0, len(items))}
	if opts.Max > 0 && len(items) > opts.Max {
		items = items[:opts.Max]
		rep.Truncated = true
	}
	conv := jsonConverter{fs: fs, opts: opts}
	for _, d := range items {
		rep.Diagnostics = append(rep.Diagnostics, conv.diagnostic(d))
	}
	rep.Count = len(rep.Diagnostics)
	return rep
}

type jsonConverter struct {
	fs   *source.FileSet
	opts JSONOpts
}

func (c jsonConverter) diagnostic(d diag.Diagnostic) JSONDiagnostic {
	out := JSONDiagnostic{
		Severity: d.Severity.String(),
		Code:     d.Code.ID(),
		Name:     d.Code.Name(),
		Message:  d.Message,
		Location: c.location(d.Primary),
	}
	// the timing payload lives in a note
	if c.opts.IncludeNotes || d.Code == diag.ObsTimings {
		for _, n := range d.Notes {
			out.Notes = append(out.Notes, JSONNote{Message: n.Msg, Location: c.location(n.Span)})
		}
	}
	if c.opts.IncludeFixes {
		for _, f := range sortedFixes(d.Fixes) {
			out.Fixes = append(out.Fixes, c.fix(f))
		}
	}
	return out
}

func (c jsonConverter) fix(f diag.Fix) JSONFix {
	out := JSONFix{
		ID:            f.ID,
		Title:         f.Title,
		Kind:          f.Kind.String(),
		Applicability: f.Applicability.String(),
		IsPreferred:   f.IsPreferred,
		RequiresAll:   f.RequiresAll,
		Edits:         make([]JSONEdit, 0, len(f.Edits)),
	}
	for _, e := range f.Edits {
		je := JSONEdit{Location: c.location(e.Span), NewText: e.NewText, OldText: e.OldText}
		if c.opts.IncludePreviews {
			if p, err := buildFixEditPreview(c.fs, e); err == nil {
				je.BeforeLines, je.AfterLines = p.before, p.after
			}
		}
		out.Edits = append(out.Edits, je)
	}
	return out
}

func (c jsonConverter) location(sp source.Span) Location {
	loc := Location{
		File:      formatPath(c.fs.Get(sp.File), c.fs, c.opts.PathMode),
		StartByte: sp.Start,
		EndByte:   sp.End,
	}
	if c.opts.IncludePositions {
		start, end := c.fs.Resolve(sp)
		loc.StartLine, loc.StartCol = start.Line, start.Col
		loc.EndLine, loc.EndCol = end.Line, end.Col
	}
	return loc
}

// sortedFixes orders a copy of in: preferred first, then safer
// applicability, then kind, title and id.
func sortedFixes(in []diag.Fix) []diag.Fix {
	fixes := slices.Clone(in)
	slices.SortStableFunc(fixes, func(a, b diag.Fix) int {
		if a.IsPreferred != b.IsPreferred {
			if a.IsPreferred {
				return -1
			}
			return 1
		}
		return cmp.Or(
			cmp.Compare(a.Applicability, b.Applicability),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Title, b.Title),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return fixes
}
