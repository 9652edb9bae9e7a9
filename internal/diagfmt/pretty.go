package diagfmt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

const tabWidth = 4

type palette struct {
	enabled bool
	err     *color.Color
	warn    *color.Color
	info    *color.Color
	note    *color.Color
	fix     *color.Color
	gutter  *color.Color
	removed *color.Color
	added   *color.Color
}

func newPalette(enabled bool) palette {
	return palette{
		enabled: enabled,
		err:     color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		info:    color.New(color.FgCyan, color.Bold),
		note:    color.New(color.FgCyan),
		fix:     color.New(color.FgGreen),
		gutter:  color.New(color.FgBlue),
		removed: color.New(color.FgRed),
		added:   color.New(color.FgGreen),
	}
}

func (p palette) paint(c *color.Color, s string) string {
	if !p.enabled {
		return s
	}
	c.EnableColor()
	return c.Sprint(s)
}

func (p palette) severity(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return p.err
	case diag.SevWarning:
		return p.warn
	}
	return p.info
}

// Pretty форматирует диагностики в человекочитаемый вид.
// Идёт по bag.Items() (ожидается bag.Sort() заранее).
// Для каждого diag печатает:
// <path>:<line>:<col>: <SEV> <CODE> [<NAME>]: <Message>
// затем контекст строки с подчёркиванием ^~~~ по Span, затем Notes и Fixes.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	pal := newPalette(opts.Color)
	for i, d := range bag.Items() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		prettyOne(w, &d, fs, opts, pal)
	}
}

func prettyOne(w io.Writer, d *diag.Diagnostic, fs *source.FileSet, opts PrettyOpts, pal palette) {
	loc := location(fs, d.Primary, opts.PathMode)
	head := fmt.Sprintf("%s %s", d.Severity, d.Code.ID())
	if name := d.Code.Name(); name != d.Code.ID() {
		head += " [" + name + "]"
	}
	fmt.Fprintf(w, "%s: %s: %s\n", loc, pal.paint(pal.severity(d.Severity), head), d.Message)
	writeSnippet(w, fs, d.Primary, opts, pal, pal.severity(d.Severity))

	if opts.ShowNotes {
		for _, n := range d.Notes {
			fmt.Fprintf(w, "  %s %s: %s\n", pal.paint(pal.note, "note:"), location(fs, n.Span, opts.PathMode), n.Msg)
		}
	}
	if opts.ShowFixes {
		for i, f := range d.Fixes {
			writeFix(w, fs, i+1, f, opts, pal)
		}
	}
}

func location(fs *source.FileSet, sp source.Span, mode PathMode) string {
	f := fs.Get(sp.File)
	if f == nil {
		return "<unknown>"
	}
	start, _ := fs.Resolve(sp)
	return fmt.Sprintf("%s:%d:%d", formatPath(f, fs, mode), start.Line, start.Col)
}

// writeSnippet prints the lines around sp with a caret line under the span's
// first line.
func writeSnippet(w io.Writer, fs *source.FileSet, sp source.Span, opts PrettyOpts, pal palette, marker *color.Color) {
	f := fs.Get(sp.File)
	if f == nil || len(f.Content) == 0 {
		return
	}
	start, end := fs.Resolve(sp)
	if start.Line == 0 {
		return
	}
	ctx := uint32(max(opts.Context, 0))
	first := uint32(1)
	if start.Line > ctx {
		first = start.Line - ctx
	}
	last := start.Line + ctx
	lines := uint32(len(f.LineIdx) + 1)
	last = min(last, lines)

	numWidth := len(strconv.FormatUint(uint64(last), 10))
	for n := first; n <= last; n++ {
		text := expandTabs(f.GetLine(n))
		if n != start.Line && strings.TrimSpace(text) == "" {
			continue
		}
		gutter := fmt.Sprintf("%*d | ", numWidth, n)
		fmt.Fprintf(w, "%s%s\n", pal.paint(pal.gutter, gutter), clip(text, opts.Width))
		if n != start.Line {
			continue
		}
		raw := f.GetLine(n)
		col := int(start.Col) - 1
		col = min(max(col, 0), len(raw))
		pad := runewidth.StringWidth(expandTabs(raw[:col]))
		span := 1
		if end.Line == start.Line && end.Col > start.Col {
			endCol := min(int(end.Col)-1, len(raw))
			span = max(runewidth.StringWidth(expandTabs(raw[col:endCol])), 1)
		} else if end.Line > start.Line {
			span = max(runewidth.StringWidth(expandTabs(raw[col:])), 1)
		}
		caret := "^" + strings.Repeat("~", span-1)
		blank := strings.Repeat(" ", numWidth) + " | "
		fmt.Fprintf(w, "%s%s%s\n", pal.paint(pal.gutter, blank), strings.Repeat(" ", pad), pal.paint(marker, caret))
	}
}

func writeFix(w io.Writer, fs *source.FileSet, n int, f diag.Fix, opts PrettyOpts, pal palette) {
	meta := []string{f.Kind.String(), f.Applicability.String()}
	if f.IsPreferred {
		meta = append(meta, "preferred")
	}
	line := fmt.Sprintf("  %s %s (%s)", pal.paint(pal.fix, fmt.Sprintf("fix #%d:", n)), f.Title, strings.Join(meta, ", "))
	if f.ID != "" {
		line += " id=" + f.ID
	}
	fmt.Fprintln(w, line)
	for _, e := range f.Edits {
		fmt.Fprintf(w, "      edit %s apply=%s\n", location(fs, e.Span, opts.PathMode), strconv.Quote(e.NewText))
		if !opts.ShowPreview {
			continue
		}
		preview, err := buildFixEditPreview(fs, e)
		if err != nil {
			continue
		}
		fmt.Fprintln(w, "      preview:")
		for _, l := range preview.before {
			fmt.Fprintf(w, "        %s\n", pal.paint(pal.removed, "- "+expandTabs(l)))
		}
		for _, l := range preview.after {
			fmt.Fprintf(w, "        %s\n", pal.paint(pal.added, "+ "+expandTabs(l)))
		}
	}
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

func clip(s string, width uint8) string {
	if width == 0 || runewidth.StringWidth(s) <= int(width) {
		return s
	}
	return runewidth.Truncate(s, int(width), "…")
}
