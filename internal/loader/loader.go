// Package loader is the host adapter: it loads Go packages with
// golang.org/x/tools/go/packages and turns struct types carrying the
// //piecemeal:builder marker into decl.Class values.
//
// Files previously written by the generator are recognised by their header
// and ignored, so stale output never influences analysis.
package loader

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/tools/go/packages"

	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/gogen"
	"piecemeal/internal/source"
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedSyntax |
	packages.NeedTypes |
	packages.NeedTypesInfo

// Config controls package loading.
type Config struct {
	// Dir is the directory patterns are resolved in; empty means the working directory.
	Dir string
	// Env overrides the environment of the underlying go command.
	Env []string
	// Tags are build tags passed as -tags.
	Tags []string
	// Overlay maps file paths to replacement contents.
	Overlay map[string][]byte
}

// Package is one loaded Go package.
type Package struct {
	Path string
	Name string
	Dir  string
	// Classes are the marked, well-formed declarations in source order.
	Classes []*decl.Class
	// Generated is the path of an existing generator output, "" when none.
	Generated string
}

// Result is everything Load produced. Diagnostics are loader findings only;
// analysis happens later.
type Result struct {
	Files       *source.FileSet
	Packages    []*Package
	Diagnostics []diag.Diagnostic
}

// HasErrors reports whether any loader diagnostic is an error.
func (r *Result) HasErrors() bool {
	return slices.ContainsFunc(r.Diagnostics, diag.Diagnostic.IsError)
}

// Load resolves patterns and scans the matched packages.
func Load(ctx context.Context, cfg Config, patterns ...string) (*Result, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	pcfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     cfg.Dir,
		Env:     cfg.Env,
		Overlay: cfg.Overlay,
	}
	if len(cfg.Tags) > 0 {
		pcfg.BuildFlags = []string{"-tags=" + strings.Join(cfg.Tags, ",")}
	}
	pkgs, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	slices.SortFunc(pkgs, func(a, b *packages.Package) int { return cmp.Compare(a.PkgPath, b.PkgPath) })

	files := source.NewFileSetWithBase(cfg.Dir)
	res := &Result{Files: files}
	if len(pkgs) == 0 {
		id := files.AddVirtual(strings.Join(patterns, " "), nil)
		res.Diagnostics = append(res.Diagnostics, diag.NewError(diag.IOPackageNotFound, source.Span{File: id},
			fmt.Sprintf("no packages matched %s", strings.Join(patterns, " "))))
		return res, nil
	}

	for _, p := range pkgs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s := newScanner(p, files)
		pkg := s.scan()
		res.Diagnostics = append(res.Diagnostics, s.diags...)
		res.Diagnostics = append(res.Diagnostics, packageErrors(p, files, s.generated)...)
		res.Packages = append(res.Packages, pkg)
	}
	return res, nil
}

// packageErrors converts go/packages errors. Type errors are warnings: code
// that uses builders fails to type-check until they are generated.
func packageErrors(p *packages.Package, files *source.FileSet, generated string) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, e := range p.Errors {
		sp := errorSpan(e.Pos, p.PkgPath, files)
		sev := diag.SevError
		if e.Kind == packages.TypeError {
			sev = diag.SevWarning
		}
		if generated != "" && strings.HasPrefix(e.Pos, generated) {
			sev = diag.SevWarning
		}
		out = append(out, diag.New(sev, diag.IOLoadFileError, sp, fmt.Sprintf("%s: %s", p.PkgPath, e.Msg)))
	}
	return out
}

// errorSpan locates "file:line:col" positions; anything else points at a
// virtual file named after the package.
func errorSpan(pos, pkgPath string, files *source.FileSet) source.Span {
	file, line, col, ok := splitPos(pos)
	if ok {
		id, err := files.LoadOnce(file)
		if err == nil {
			if f := files.Get(id); f != nil {
				off := lineOffset(f, line) + col - 1
				if sp, err := files.SpanOf(id, off, off); err == nil {
					return sp
				}
			}
		}
	}
	id, found := files.GetLatest(pkgPath)
	if !found {
		id = files.AddVirtual(pkgPath, nil)
	}
	return source.Span{File: id}
}

func splitPos(pos string) (file string, line, col int, ok bool) {
	rest, colStr, found := cutLast(pos, ":")
	if !found {
		return "", 0, 0, false
	}
	file, lineStr, found := cutLast(rest, ":")
	if !found {
		// "file:line" without column
		file, lineStr, colStr = rest, colStr, "1"
		if _, err := os.Stat(file); err != nil {
			return "", 0, 0, false
		}
	}
	line, err1 := strconv.Atoi(lineStr)
	col, err2 := strconv.Atoi(colStr)
	if err1 != nil || err2 != nil || line < 1 || col < 1 {
		return "", 0, 0, false
	}
	return file, line, col, true
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}

func lineOffset(f *source.File, line int) int {
	if line <= 1 || len(f.LineIdx) == 0 {
		return 0
	}
	if line-2 >= len(f.LineIdx) {
		return len(f.Content)
	}
	return int(f.LineIdx[line-2]) + 1
}

// isGeneratorOutput reports whether content was written by gogen.
func isGeneratorOutput(content []byte) bool {
	return bytes.HasPrefix(content, []byte(gogen.Header))
}

func packageDir(p *packages.Package) string {
	for _, files := range [][]string{p.GoFiles, p.CompiledGoFiles, p.OtherFiles} {
		if len(files) > 0 {
			return filepath.Dir(files[0])
		}
	}
	return ""
}
