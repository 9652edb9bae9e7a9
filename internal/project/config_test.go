package project

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"piecemeal/internal/decl"
	"piecemeal/internal/naming"
	"piecemeal/internal/synth"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
[generate]
setter_style = "with"
to_builder = false

[defaults]
policy = "explicit"

[types]
allow = ["chan"]
deny = ["map"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Generate.Output != "piecemeal_gen.go" {
		t.Fatalf("output = %q, want default", cfg.Generate.Output)
	}
	if cfg.Path != path {
		t.Fatalf("path = %q, want %q", cfg.Path, path)
	}
	a := cfg.Analyzer()
	if a.Scheme.Style != naming.StyleWith || a.ToBuilder {
		t.Fatalf("analyzer config = %+v", a)
	}
	if cfg.Policy() != synth.PolicyExplicit {
		t.Fatalf("policy = %s, want explicit", cfg.Policy())
	}
	if ok, _ := a.Types.Supports(decl.TypeRef{Kind: decl.KindChan, Elem: &decl.TypeRef{Kind: decl.KindBasic, Name: "int"}}); !ok {
		t.Fatalf("chan should be allowed")
	}
	if ok, _ := a.Types.Supports(decl.TypeRef{Kind: decl.KindMap, Key: &decl.TypeRef{Kind: decl.KindBasic, Name: "string"}, Elem: &decl.TypeRef{Kind: decl.KindBasic, Name: "int"}}); ok {
		t.Fatalf("map should be denied")
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "[generate]\nsuffix = \"B\"\n"},
		{"bad style", "[generate]\nsetter_style = \"java\"\n"},
		{"bad policy", "[defaults]\npolicy = \"zero\"\n"},
		{"bad kind", "[types]\nallow = [\"tuple\"]\n"},
		{"allow and deny", "[types]\nallow = [\"func\"]\ndeny = [\"func\"]\n"},
		{"output dir", "[generate]\noutput = \"gen/out.go\"\n"},
		{"test output", "[generate]\noutput = \"x_test.go\"\n"},
		{"empty output", "[generate]\noutput = \"\"\n"},
		{"lower prefix", "[generate]\ninline_prefix = \"build\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Load err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoadSyntaxError(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "[generate\n")
	if _, err := Load(path); err == nil || errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load err = %v, want parse error", err)
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[defaults]\npolicy = \"explicit\"\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Policy() != synth.PolicyExplicit {
		t.Fatalf("policy = %s, want explicit", cfg.Policy())
	}
	dir, ok, err := FindProjectRoot(nested)
	if err != nil || !ok || dir != root {
		t.Fatalf("FindProjectRoot = %q, %v, %v; want %q", dir, ok, err, root)
	}
}

func TestInitRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := Init(dir)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Init: %v", err)
	}
	want := Default()
	want.Path = path
	if cfg.Generate != want.Generate || cfg.Defaults != want.Defaults {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
	if _, err := Init(dir); !errors.Is(err, ErrConfigExists) {
		t.Fatalf("second Init err = %v, want ErrConfigExists", err)
	}
}

func TestCombineDeterministic(t *testing.T) {
	a, b := Sum([]byte("a")), Sum([]byte("b"))
	if Combine(a, b) != Combine(a, b) {
		t.Fatalf("Combine is not deterministic")
	}
	if Combine(a, b) == Combine(b, a) {
		t.Fatalf("Combine ignores order")
	}
	if a == (Digest{}) || len(a.String()) != 64 {
		t.Fatalf("unexpected digest %s", a)
	}
}
