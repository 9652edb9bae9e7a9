package fix

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"piecemeal/internal/diag"
	"piecemeal/internal/source"
)

const secretSrc = `package geom

type Secret struct{ v int }

func newSecret(v int) Secret { return Secret{v: v} }
`

// loadFile writes content to a temp dir and loads it into a fresh FileSet.
func loadFile(t *testing.T, content string) (*source.FileSet, source.FileID, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "geom.go")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := source.NewFileSetWithBase(dir)
	id, err := fs.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	return fs, id, path
}

func spanOf(t *testing.T, fs *source.FileSet, id source.FileID, content, text string) source.Span {
	t.Helper()
	off := indexOf(content, text)
	if off < 0 {
		t.Fatalf("%q not found", text)
	}
	sp, err := fs.SpanOf(id, off, off+len(text))
	if err != nil {
		t.Fatal(err)
	}
	return sp
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func renameDiag(sp source.Span, app diag.FixApplicability) diag.Diagnostic {
	return diag.NewError(diag.PmConstructorNotVisible, sp, "constructor newSecret is package-private").
		WithFixSuggestion(ReplaceSpan("rename newSecret to NewSecret", sp, "NewSecret", "newSecret",
			WithID("export-constructor-newSecret"), WithApplicability(app)))
}

func TestApplyByID(t *testing.T) {
	fs, id, path := loadFile(t, secretSrc)
	sp := spanOf(t, fs, id, secretSrc, "newSecret")

	res, err := Apply(fs, []diag.Diagnostic{renameDiag(sp, diag.FixApplicabilityManualReview)},
		ApplyOptions{Mode: ApplyModeID, TargetID: "export-constructor-newSecret"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0].Code != diag.PmConstructorNotVisible {
		t.Fatalf("applied = %+v", res.Applied)
	}
	if len(res.FileChanges) != 1 || res.FileChanges[0].Path != "geom.go" || res.FileChanges[0].EditCount != 1 {
		t.Fatalf("changes = %+v", res.FileChanges)
	}
	want := "package geom\n\ntype Secret struct{ v int }\n\nfunc NewSecret(v int) Secret { return Secret{v: v} }\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("file:\n%s\nwant:\n%s", got, want)
	}
}

func TestApplyAllRespectsApplicability(t *testing.T) {
	fs, id, path := loadFile(t, secretSrc)
	sp := spanOf(t, fs, id, secretSrc, "newSecret")
	diags := []diag.Diagnostic{renameDiag(sp, diag.FixApplicabilityManualReview)}

	res, err := Apply(fs, diags, ApplyOptions{Mode: ApplyModeAll, MaxApplicability: diag.FixApplicabilitySafeWithHeuristics})
	if !errors.Is(err, ErrNoFixes) {
		t.Fatalf("err = %v, want ErrNoFixes", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "applicability is manual-review" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if got := readFile(t, path); got != secretSrc {
		t.Fatalf("file changed:\n%s", got)
	}

	res, err = Apply(fs, diags, ApplyOptions{Mode: ApplyModeAll, MaxApplicability: diag.FixApplicabilityManualReview})
	if err != nil || len(res.Applied) != 1 {
		t.Fatalf("Apply: %v, applied %+v", err, res.Applied)
	}
}

func TestApplyDryRun(t *testing.T) {
	fs, id, path := loadFile(t, secretSrc)
	sp := spanOf(t, fs, id, secretSrc, "newSecret")

	res, err := Apply(fs, []diag.Diagnostic{renameDiag(sp, diag.FixApplicabilityAlwaysSafe)},
		ApplyOptions{Mode: ApplyModeOnce, DryRun: true})
	if err != nil || len(res.Applied) != 1 || len(res.FileChanges) != 1 {
		t.Fatalf("Apply: %v %+v", err, res)
	}
	if got := readFile(t, path); got != secretSrc {
		t.Fatalf("dry run wrote the file:\n%s", got)
	}
}

func TestApplyGuardMismatch(t *testing.T) {
	fs, id, _ := loadFile(t, secretSrc)
	sp := spanOf(t, fs, id, secretSrc, "Secret struct")
	sp.End = sp.Start + uint32(len("Secret"))
	d := diag.NewError(diag.PmConstructorNotVisible, sp, "x").
		WithFixSuggestion(ReplaceSpan("rename", sp, "Public", "Private", WithID("guarded")))

	res, err := Apply(fs, []diag.Diagnostic{d}, ApplyOptions{Mode: ApplyModeID, TargetID: "guarded"})
	if !errors.Is(err, ErrNoFixes) {
		t.Fatalf("err = %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "existing text does not match expected content" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
}

func TestApplySkipsConflictingEdits(t *testing.T) {
	fs, id, path := loadFile(t, secretSrc)
	sp := spanOf(t, fs, id, secretSrc, "newSecret")
	first := diag.NewError(diag.PmConstructorNotVisible, sp, "a").
		WithFixSuggestion(ReplaceSpan("to A", sp, "A", "", WithID("a")))
	second := diag.NewError(diag.PmConstructorNotVisible, sp, "b").
		WithFixSuggestion(ReplaceSpan("to B", sp, "B", "", WithID("b")))

	res, err := Apply(fs, []diag.Diagnostic{first, second}, ApplyOptions{Mode: ApplyModeAll})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0].ID != "a" {
		t.Fatalf("applied = %+v", res.Applied)
	}
	if len(res.Skipped) != 1 || res.Skipped[0].ID != "b" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if got := readFile(t, path); indexOf(got, "func A(v int)") < 0 {
		t.Fatalf("file:\n%s", got)
	}
}

func TestApplyMultipleEditsShiftOffsets(t *testing.T) {
	fs, id, path := loadFile(t, secretSrc)
	typ := spanOf(t, fs, id, secretSrc, "v int }")
	ctor := spanOf(t, fs, id, secretSrc, "newSecret")
	grow := diag.NewError(diag.PmInvalidDefault, typ, "a").
		WithFixSuggestion(InsertText("add field", typ, "w int; ", WithID("grow")))
	rename := diag.NewError(diag.PmConstructorNotVisible, ctor, "b").
		WithFixSuggestion(ReplaceSpan("rename", ctor, "NewSecret", "newSecret", WithID("rename")))

	res, err := Apply(fs, []diag.Diagnostic{grow, rename}, ApplyOptions{Mode: ApplyModeAll})
	if err != nil || len(res.Applied) != 2 {
		t.Fatalf("Apply: %v %+v", err, res)
	}
	want := "package geom\n\ntype Secret struct{ w int; v int }\n\nfunc NewSecret(v int) Secret { return Secret{v: v} }\n"
	if got := readFile(t, path); got != want {
		t.Fatalf("file:\n%s\nwant:\n%s", got, want)
	}
}

func TestApplySkipsVirtualFiles(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("geom.go", []byte(secretSrc))
	sp, err := fs.SpanOf(id, 0, 7)
	if err != nil {
		t.Fatal(err)
	}
	d := diag.NewError(diag.PmConstructorNotVisible, sp, "x").
		WithFixSuggestion(ReplaceSpan("rename", sp, "module", "package", WithID("v")))
	res, err := Apply(fs, []diag.Diagnostic{d}, ApplyOptions{})
	if !errors.Is(err, ErrNoFixes) || len(res.Skipped) != 1 {
		t.Fatalf("err = %v, skipped %+v", err, res.Skipped)
	}
}

func TestGatherCandidatesSkipsDuplicateFixIDs(t *testing.T) {
	span := source.Span{}
	d := diag.Diagnostic{
		Code:    diag.PmConstructorNotVisible,
		Primary: span,
		Fixes: []diag.Fix{
			{ID: "dup", Title: "first", Edits: []diag.TextEdit{{Span: span, NewText: "x"}}},
			{ID: "dup", Title: "second", Edits: []diag.TextEdit{{Span: span, NewText: "y"}}},
			{Title: "unnamed", Edits: []diag.TextEdit{{Span: span, NewText: "z"}}},
			{ID: "empty", Title: "no edits"},
		},
	}
	cands, skips := gatherCandidates([]diag.Diagnostic{d})
	if len(cands) != 2 {
		t.Fatalf("want 2 candidates, got %d", len(cands))
	}
	if cands[1].fix.ID != "PM1002-0-0-2" {
		t.Fatalf("derived id = %q", cands[1].fix.ID)
	}
	if len(skips) != 2 || skips[0].Reason != "duplicate fix id" || skips[1].Reason != "fix has no edits" {
		t.Fatalf("skips = %+v", skips)
	}
}

func TestSpansConflict(t *testing.T) {
	edit := func(s, e uint32) diag.TextEdit { return diag.TextEdit{Span: source.Span{Start: s, End: e}} }
	tests := []struct {
		name string
		a, b diag.TextEdit
		want bool
	}{
		{"two inserts", edit(3, 3), edit(3, 3), false},
		{"insert inside", edit(4, 4), edit(3, 6), true},
		{"insert at end", edit(6, 6), edit(3, 6), false},
		{"overlap", edit(1, 4), edit(3, 6), true},
		{"adjacent", edit(1, 3), edit(3, 6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := spansConflict(tt.a, tt.b); got != tt.want {
				t.Fatalf("spansConflict = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRewriteKeepsInsertOrder(t *testing.T) {
	content := []byte("type T struct{}")
	at := func(s, e uint32, text string) diag.TextEdit {
		return diag.TextEdit{Span: source.Span{Start: s, End: e}, NewText: text}
	}
	got := string(rewrite(content, []diag.TextEdit{
		at(14, 14, " b int;"),
		at(5, 6, "Point"),
		at(14, 14, " c int "),
		at(0, 0, "// T\n"),
	}))
	want := "// T\ntype Point struct{ b int; c int }"
	if got != want {
		t.Fatalf("rewrite = %q, want %q", got, want)
	}
}
