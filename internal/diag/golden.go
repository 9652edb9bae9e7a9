package diag

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"piecemeal/internal/source"
)

// FormatGoldenDiagnostics renders diagnostics one per line, sorted, in the
// form "error PM1001 path:line:col message". Entries pointing into generated
// files are dropped so golden files do not depend on generator output.
func FormatGoldenDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	return render(diags, fs, includeNotes, true)
}

// FormatShortDiagnostics is the CLI "short" format: same layout, nothing skipped.
func FormatShortDiagnostics(diags []Diagnostic, fs *source.FileSet, includeNotes bool) string {
	return render(diags, fs, includeNotes, false)
}

type shortLine struct {
	path      string
	line, col uint32
	label     string
	code      string
	msg       string
}

func (l shortLine) String() string {
	return fmt.Sprintf("%s %s %s:%d:%d %s", l.label, l.code, l.path, l.line, l.col, l.msg)
}

func render(diags []Diagnostic, fs *source.FileSet, includeNotes, skipGenerated bool) string {
	if fs == nil {
		return ""
	}
	var lines []shortLine
	add := func(sp source.Span, label string, code Code, msg string) {
		f := fs.Get(sp.File)
		if f == nil || skipGenerated && f.Flags&source.FileGenerated != 0 {
			return
		}
		start, _ := fs.Resolve(sp)
		lines = append(lines, shortLine{
			path:  strings.TrimPrefix(filepath.ToSlash(f.FormatPath("relative", fs.BaseDir())), "./"),
			line:  start.Line,
			col:   start.Col,
			label: label,
			code:  code.ID(),
			msg:   strings.Join(strings.Fields(msg), " "),
		})
	}
	for _, d := range diags {
		add(d.Primary, d.Severity.Label(), d.Code, d.Message)
		if includeNotes {
			for _, n := range d.Notes {
				add(n.Span, "note", d.Code, n.Msg)
			}
		}
	}

	slices.SortStableFunc(lines, func(a, b shortLine) int {
		return cmp.Or(
			cmp.Compare(a.path, b.path),
			cmp.Compare(a.line, b.line),
			cmp.Compare(a.col, b.col),
			cmp.Compare(a.label, b.label),
			cmp.Compare(a.code, b.code),
			cmp.Compare(a.msg, b.msg),
		)
	})
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return strings.Join(out, "\n")
}
