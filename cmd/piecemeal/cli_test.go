package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"piecemeal/internal/diag"
	"piecemeal/internal/driver"
	"piecemeal/internal/fix"
	"piecemeal/internal/version"
)

func TestReadUIMode(t *testing.T) {
	tests := []struct {
		in      string
		want    uiMode
		wantErr bool
	}{
		{"", uiModeAuto, false},
		{" AUTO ", uiModeAuto, false},
		{"on", uiModeOn, false},
		{"off", uiModeOff, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := readUIMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Fatalf("readUIMode(%q) = %q, %v; want %q, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
	if !shouldUseTUI(uiModeOn) || shouldUseTUI(uiModeOff) {
		t.Fatalf("explicit ui modes ignored")
	}
}

func TestReadColorMode(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "always": true, "off": false, "never": false} {
		got, err := readColorMode(in, nil)
		if err != nil || got != want {
			t.Fatalf("readColorMode(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := readColorMode("rainbow", nil); err == nil {
		t.Fatalf("want error for unknown color mode")
	}
}

func TestRenderVersion(t *testing.T) {
	info := version.Info{Version: "1.2.3", GitCommit: "abc"}

	var pretty bytes.Buffer
	renderVersionPretty(&pretty, info, versionOptions{showHash: true, showDate: true}, false)
	want := "piecemeal 1.2.3 (one piece at a time)\ncommit: abc\nbuilt:  unknown\n"
	if pretty.String() != want {
		t.Fatalf("pretty:\n%s\nwant:\n%s", pretty.String(), want)
	}

	var raw bytes.Buffer
	if err := renderVersionJSON(&raw, info, versionOptions{}); err != nil {
		t.Fatal(err)
	}
	var payload versionPayload
	if err := json.Unmarshal(raw.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Tool != "piecemeal" || payload.Version != "1.2.3" || payload.GitCommit != "" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestHandleApplyResult(t *testing.T) {
	res := &fix.ApplyResult{
		Applied: []fix.AppliedFix{{
			ID:            "export-constructor-newSecret",
			Title:         "rename newSecret to NewSecret",
			Code:          diag.PmConstructorNotVisible,
			Applicability: diag.FixApplicabilityManualReview,
			PrimaryPath:   "geom.go",
			EditCount:     1,
		}},
		FileChanges: []fix.FileChange{{Path: "geom.go", EditCount: 1}},
		Skipped:     []fix.SkippedFix{{Reason: "fix has no edits"}},
	}
	var out bytes.Buffer
	if err := handleApplyResult(&out, res, nil, false); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Applied 1 fix(es):",
		"rename newSecret to NewSecret [export-constructor-newSecret] PM1002 geom.go (1 edits, manual-review)",
		"  geom.go (1 edits)",
		"  [(unnamed)]: fix has no edits",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output misses %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := handleApplyResult(&out, &fix.ApplyResult{}, fix.ErrNoFixes, true); err != nil {
		t.Fatalf("ErrNoFixes should not fail the command: %v", err)
	}
	if out.String() != "No applicable fixes found.\n" {
		t.Fatalf("output = %q", out.String())
	}

	boom := errors.New("boom")
	if err := handleApplyResult(&out, &fix.ApplyResult{}, boom, true); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrintGeneratedAndWritten(t *testing.T) {
	res := &driver.Result{Packages: []driver.PackageResult{
		{Path: "example.com/geom", Output: "geom/piecemeal_gen.go", Source: []byte("package geom\n"), Declarations: 2, Registered: 1, Written: true},
		{Path: "example.com/empty", Output: "empty/piecemeal_gen.go", Removed: true},
	}}

	var gen bytes.Buffer
	printGenerated(&gen, res)
	if gen.String() != "==> geom/piecemeal_gen.go <==\npackage geom\n\n" {
		t.Fatalf("generated = %q", gen.String())
	}

	var written bytes.Buffer
	printWritten(&written, res)
	want := "wrote geom/piecemeal_gen.go (1 builder(s))\nremoved empty/piecemeal_gen.go\n2 package(s), 1 builder(s) from 2 marked type(s)\n"
	if written.String() != want {
		t.Fatalf("written:\n%s\nwant:\n%s", written.String(), want)
	}
}
