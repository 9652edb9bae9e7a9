package driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"piecemeal/internal/buildpipeline"
	"piecemeal/internal/diag"
	"piecemeal/internal/gogen"
	"piecemeal/internal/registry"
)

const geomSrc = `package geom

//piecemeal:builder
type Point struct {
	X, Y int
}

//piecemeal:default y=0
func NewPoint(x, y int) Point { return Point{X: x, Y: y} }

//piecemeal:builder
type Secret struct{ key string }

func newSecret(key string) Secret { return Secret{key: key} }
`

const staleSrc = gogen.Header + "\n\npackage empty\n"

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if _, ok := files["go.mod"]; !ok {
		files["go.mod"] = "module example.com/geom\n\ngo 1.22\n"
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func options(dir string) Options {
	return Options{
		Dir:      dir,
		Patterns: []string{"./..."},
		Env:      append(os.Environ(), "GOWORK=off", "GOFLAGS=-mod=mod"),
		Jobs:     2,
	}
}

func codes(bag *diag.Bag) []string {
	var out []string
	for _, d := range bag.Items() {
		out = append(out, d.Code.ID())
	}
	return out
}

func TestRunCheck(t *testing.T) {
	dir := writeModule(t, map[string]string{"geom.go": geomSrc})
	res, err := Run(context.Background(), options(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := codes(res.Bag); len(got) != 1 || got[0] != "PM1002" {
		t.Fatalf("diagnostics = %v, want [PM1002]", got)
	}
	golden := diag.FormatGoldenDiagnostics(res.Bag.Items(), res.Files, true)
	if !strings.Contains(golden, "error PM1002 ") || !strings.Contains(golden, "geom.go:14:6 ") {
		t.Fatalf("golden = %q", golden)
	}
	if !strings.Contains(golden, "note PM1002 ") {
		t.Fatalf("golden misses the declaration note: %q", golden)
	}
	if !res.HasErrors() {
		t.Fatalf("HasErrors = false")
	}
	if len(res.Packages) != 1 {
		t.Fatalf("packages = %d, want 1", len(res.Packages))
	}
	pr := res.Packages[0]
	if pr.Declarations != 2 || pr.Registered != 1 || pr.Rejected != 1 {
		t.Fatalf("package result = %+v", pr)
	}
	if pr.Source != nil {
		t.Fatalf("check must not render output")
	}
	e, ok := res.Registry.Lookup("example.com/geom.Point")
	if !ok || e.State != registry.Registered {
		t.Fatalf("Point entry = %+v", e)
	}
}

func TestRunWrite(t *testing.T) {
	dir := writeModule(t, map[string]string{
		"geom.go":                geomSrc,
		"empty/empty.go":         "package empty\n",
		"empty/piecemeal_gen.go": staleSrc,
	})
	var (
		mu     sync.Mutex
		events []buildpipeline.Event
	)
	opts := options(dir)
	opts.Write = true
	opts.Progress = buildpipeline.FuncSink(func(ev buildpipeline.Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	out := filepath.Join(dir, gogen.DefaultOutput)
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte(gogen.Header)) {
		t.Fatalf("output lacks header:\n%s", data)
	}
	for _, want := range []string{"type PointBuilder struct", "func BuildPoint(", "func (b *PointBuilder) Build() (Point, error)"} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("output lacks %q:\n%s", want, data)
		}
	}
	if strings.Contains(string(data), "Secret") {
		t.Fatalf("rejected class leaked into output:\n%s", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "empty", gogen.DefaultOutput)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale output not removed: %v", err)
	}

	byPath := map[string]PackageResult{}
	for _, pr := range res.Packages {
		byPath[pr.Path] = pr
	}
	if pr := byPath["example.com/geom"]; !pr.Written || pr.Output != out {
		t.Fatalf("geom result = %+v", pr)
	}
	if pr := byPath["example.com/geom/empty"]; !pr.Removed {
		t.Fatalf("empty result = %+v", pr)
	}

	terminal := map[string]buildpipeline.Status{}
	for _, ev := range events {
		if ev.Package != "" && ev.Status.Terminal() {
			terminal[ev.Package] = ev.Status
		}
	}
	if terminal["example.com/geom"] != buildpipeline.StatusDone || terminal["example.com/geom/empty"] != buildpipeline.StatusSkipped {
		t.Fatalf("terminal events = %v", terminal)
	}
}

func TestRunDryRunUsesCache(t *testing.T) {
	dir := writeModule(t, map[string]string{"geom.go": geomSrc})
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := options(dir)
	opts.Generate = true
	opts.Cache = cache

	first, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	a, b := first.Packages[0], second.Packages[0]
	if a.Cached || !b.Cached {
		t.Fatalf("cached = %v then %v, want false then true", a.Cached, b.Cached)
	}
	if len(a.Source) == 0 || !bytes.Equal(a.Source, b.Source) {
		t.Fatalf("cached source differs")
	}
	if a.Written || b.Written {
		t.Fatalf("dry run wrote output")
	}
	if _, err := os.Stat(filepath.Join(dir, gogen.DefaultOutput)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("dry run created %s", gogen.DefaultOutput)
	}
}

func TestRunTimings(t *testing.T) {
	dir := writeModule(t, map[string]string{"geom.go": geomSrc})
	opts := options(dir)
	opts.Timings = true
	res, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	items := res.Bag.Items()
	last := items[len(items)-1]
	if last.Code != diag.ObsTimings || len(last.Notes) != 1 || !strings.Contains(last.Notes[0].Msg, `"phases"`) {
		t.Fatalf("last diagnostic = %+v", last)
	}
}

func TestRunCancelled(t *testing.T) {
	dir := writeModule(t, map[string]string{"geom.go": geomSrc})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, options(dir)); err == nil {
		t.Fatalf("Run with cancelled context succeeded")
	}
}

func TestWriteIfChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.go")
	src := []byte("package x\n")
	for i, want := range []bool{true, false} {
		written, err := writeIfChanged(path, src)
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if written != want {
			t.Fatalf("write %d: written = %v, want %v", i, written, want)
		}
	}
	if _, err := writeIfChanged(filepath.Join(path, "nested.go"), src); err == nil {
		t.Fatalf("writing below a file succeeded")
	}
}

func TestDiskCacheSchema(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var key [32]byte
	key[0] = 1
	if err := cache.Put(key, &DiskPayload{Schema: diskCacheSchemaVersion + 1, Package: "p"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got DiskPayload
	if ok, err := cache.Get(key, &got); err != nil || ok {
		t.Fatalf("Get = %v, %v; want miss for foreign schema", ok, err)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if ok, _ := cache.Get(key, &got); ok {
		t.Fatalf("entry survived DropAll")
	}
}
