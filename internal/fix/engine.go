// Package fix applies the fix suggestions attached to diagnostics back to
// the source files they point into.
package fix

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

// ErrNoFixes is returned when nothing was applied.
var ErrNoFixes = errors.New("no applicable fixes found")

// ApplyMode selects which fixes Apply tries.
type ApplyMode uint8

const (
	// ApplyModeOnce applies a single fix, the first always-safe one if any.
	ApplyModeOnce ApplyMode = iota
	// ApplyModeAll applies every fix up to MaxApplicability.
	ApplyModeAll
	// ApplyModeID applies exactly the fix with TargetID, whatever its applicability.
	ApplyModeID
)

type ApplyOptions struct {
	Mode     ApplyMode
	TargetID string
	// MaxApplicability bounds ApplyModeAll. The zero value accepts
	// FixApplicabilityAlwaysSafe only.
	MaxApplicability diag.FixApplicability
	// DryRun computes the result without touching any file.
	DryRun bool
}

// AppliedFix records a fix whose edits were all accepted.
type AppliedFix struct {
	ID            string
	Title         string
	Code          diag.Code
	Message       string
	Applicability diag.FixApplicability
	PrimaryPath   string
	EditCount     int
}

// SkippedFix is a fix that was not applied, with the reason.
type SkippedFix struct {
	ID     string
	Title  string
	Reason string
}

// FileChange is one rewritten file; Path is relative to the FileSet base.
type FileChange struct {
	Path      string
	EditCount int
}

type ApplyResult struct {
	Applied     []AppliedFix
	Skipped     []SkippedFix
	FileChanges []FileChange
}

type candidate struct {
	diag  diag.Diagnostic
	fix   diag.Fix
	order int
}

func (c candidate) skip(reason string) SkippedFix {
	return SkippedFix{ID: c.fix.ID, Title: c.fix.Title, Reason: reason}
}

// Apply collects the fixes of diagnostics, picks the ones opts asks for and
// applies them in source order. Every edit is given in offsets of the file
// as loaded; a fix whose edit overlaps an accepted one, or whose guard text
// does not match, is skipped as a whole.
func Apply(fs *source.FileSet, diagnostics []diag.Diagnostic, opts ApplyOptions) (*ApplyResult, error) {
	res := &ApplyResult{}
	if fs == nil {
		return res, errors.New("fix: nil FileSet")
	}

	cands, skipped := gatherCandidates(diagnostics)
	res.Skipped = append(res.Skipped, skipped...)
	slices.SortStableFunc(cands, func(a, b candidate) int {
		return cmp.Or(
			cmp.Compare(a.diag.Primary.File, b.diag.Primary.File),
			cmp.Compare(a.diag.Primary.Start, b.diag.Primary.Start),
			cmp.Compare(a.diag.Primary.End, b.diag.Primary.End),
			cmp.Compare(a.order, b.order),
		)
	})
	selected, skipped := selectCandidates(cands, opts)
	res.Skipped = append(res.Skipped, skipped...)

	p := &plan{fs: fs, edits: make(map[source.FileID][]diag.TextEdit)}
	for _, c := range selected {
		if reason := p.accept(c.fix.Edits); reason != "" {
			res.Skipped = append(res.Skipped, c.skip(reason))
			continue
		}
		res.Applied = append(res.Applied, AppliedFix{
			ID:            c.fix.ID,
			Title:         c.fix.Title,
			Code:          c.diag.Code,
			Message:       c.diag.Message,
			Applicability: c.fix.Applicability,
			PrimaryPath:   displayPath(fs, c.diag.Primary.File),
			EditCount:     len(c.fix.Edits),
		})
	}
	if len(res.Applied) == 0 {
		return res, ErrNoFixes
	}

	changes, err := p.commit(opts.DryRun)
	res.FileChanges = changes
	return res, err
}

// gatherCandidates flattens the fixes of diagnostics. Fixes without edits
// and repeated ids are skipped; a missing id is derived from the diagnostic
// code, its position and the fix index.
func gatherCandidates(diagnostics []diag.Diagnostic) ([]candidate, []SkippedFix) {
	var (
		cands []candidate
		skips []SkippedFix
	)
	seen := make(map[string]bool)
	for _, d := range diagnostics {
		for i, f := range d.Fixes {
			if f.ID == "" && len(f.Edits) > 0 {
				f.ID = fmt.Sprintf("%s-%d-%d-%d", d.Code.ID(), d.Primary.File, d.Primary.Start, i)
			}
			c := candidate{diag: d, fix: f, order: len(cands)}
			switch {
			case len(f.Edits) == 0:
				skips = append(skips, c.skip("fix has no edits"))
			case seen[f.ID]:
				skips = append(skips, c.skip("duplicate fix id"))
			default:
				seen[f.ID] = true
				cands = append(cands, c)
			}
		}
	}
	return cands, skips
}

func selectCandidates(cands []candidate, opts ApplyOptions) ([]candidate, []SkippedFix) {
	var skipped []SkippedFix
	switch opts.Mode {
	case ApplyModeID:
		for _, c := range cands {
			if c.fix.ID != opts.TargetID {
				continue
			}
			if c.fix.RequiresAll {
				return nil, []SkippedFix{c.skip("fix requires all fixes to be applied")}
			}
			return []candidate{c}, nil
		}
		return nil, []SkippedFix{{ID: opts.TargetID, Reason: "fix id not found"}}

	case ApplyModeAll:
		selected := make([]candidate, 0, len(cands))
		for _, c := range cands {
			if c.fix.Applicability > opts.MaxApplicability {
				skipped = append(skipped, c.skip("applicability is "+c.fix.Applicability.String()))
				continue
			}
			selected = append(selected, c)
		}
		return selected, skipped

	default:
		var pick *candidate
		for i, c := range cands {
			if c.fix.RequiresAll {
				skipped = append(skipped, c.skip("fix requires all fixes to be applied"))
				continue
			}
			if pick == nil || (pick.fix.Applicability != diag.FixApplicabilityAlwaysSafe &&
				c.fix.Applicability == diag.FixApplicabilityAlwaysSafe) {
				pick = &cands[i]
			}
		}
		if pick == nil {
			return nil, skipped
		}
		return []candidate{*pick}, skipped
	}
}

// plan holds the accepted edits per file.
type plan struct {
	fs    *source.FileSet
	edits map[source.FileID][]diag.TextEdit
}

// accept adds all edits of one fix, or none of them. It returns the reason
// for refusing.
func (p *plan) accept(edits []diag.TextEdit) string {
	staged := make(map[source.FileID][]diag.TextEdit)
	for _, e := range edits {
		f := p.fs.Get(e.Span.File)
		switch {
		case f == nil:
			return "unknown target file"
		case f.Flags&(source.FileVirtual|source.FileGenerated) != 0:
			return "target file is not editable"
		case e.Span.End < e.Span.Start || int(e.Span.End) > len(f.Content):
			return "edit span out of range"
		case e.OldText != "" && string(f.Content[e.Span.Start:e.Span.End]) != e.OldText:
			return "existing text does not match expected content"
		}
		for _, prev := range p.edits[e.Span.File] {
			if spansConflict(prev, e) {
				return "conflicts with previously applied edits in " + f.FormatPath("auto", p.fs.BaseDir())
			}
		}
		for _, prev := range staged[e.Span.File] {
			if spansConflict(prev, e) {
				return "edits of the fix overlap"
			}
		}
		staged[e.Span.File] = append(staged[e.Span.File], e)
	}
	for id, es := range staged {
		p.edits[id] = append(p.edits[id], es...)
	}
	return ""
}

// commit rewrites every touched file, unless dryRun.
func (p *plan) commit(dryRun bool) ([]FileChange, error) {
	changes := make([]FileChange, 0, len(p.edits))
	for _, id := range slices.Sorted(maps.Keys(p.edits)) {
		f := p.fs.Get(id)
		edits := p.edits[id]
		if !dryRun {
			if err := writeFile(f.Path, rewrite(f.Content, edits)); err != nil {
				return changes, err
			}
		}
		changes = append(changes, FileChange{Path: f.FormatPath("relative", p.fs.BaseDir()), EditCount: len(edits)})
	}
	slices.SortFunc(changes, func(a, b FileChange) int { return cmp.Compare(a.Path, b.Path) })
	return changes, nil
}

// rewrite applies non-overlapping edits in one forward pass. Inserts at the
// same offset keep the order they were accepted in.
func rewrite(content []byte, edits []diag.TextEdit) []byte {
	ordered := slices.Clone(edits)
	slices.SortStableFunc(ordered, func(a, b diag.TextEdit) int {
		return cmp.Compare(a.Span.Start, b.Span.Start)
	})
	var out bytes.Buffer
	out.Grow(len(content))
	at := uint32(0)
	for _, e := range ordered {
		out.Write(content[at:e.Span.Start])
		out.WriteString(e.NewText)
		at = e.Span.End
	}
	out.Write(content[at:])
	return out.Bytes()
}

// spansConflict treats spans as half-open. Two inserts never conflict; an
// insert conflicts with a replaced span that contains its offset, except at
// the span's end.
func spansConflict(a, b diag.TextEdit) bool {
	as, ae, bs, be := a.Span.Start, a.Span.End, b.Span.Start, b.Span.End
	switch {
	case as == ae && bs == be:
		return false
	case as == ae:
		return bs <= as && as < be
	case bs == be:
		return as <= bs && bs < ae
	}
	return as < be && bs < ae
}

func displayPath(fs *source.FileSet, id source.FileID) string {
	if f := fs.Get(id); f != nil {
		return f.FormatPath("auto", fs.BaseDir())
	}
	return ""
}

// writeFile replaces path through a temporary sibling, keeping its mode.
func writeFile(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".piecemeal-fix-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
