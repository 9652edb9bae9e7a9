package gogen

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"path"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"piecemeal/internal/decl"
	"piecemeal/internal/registry"
)

// importTable gives every imported path one local name for the whole
// generated file. Declarations come from different source files, so two of
// them may use one name for different paths, or two names for one path.
// The first declaration, in identity order, keeps its spelling; later ones
// are rewritten to the file's names.
type importTable struct {
	byPath map[string]string
	taken  map[string]bool
	// avoid holds parameter names, which become locals inside Build.
	avoid map[string]bool
}

func newImportTable(members []registry.Members) *importTable {
	t := &importTable{
		byPath: make(map[string]string),
		taken:  map[string]bool{"buildrt": true},
		avoid:  make(map[string]bool),
	}
	for _, m := range members {
		if m.Descriptor == nil {
			continue
		}
		for _, s := range m.Descriptor.Slots {
			t.avoid[s.Name] = true
		}
	}
	return t
}

// renames registers imps and returns the qualifiers that must change in
// the declaration that uses them.
func (t *importTable) renames(imps []decl.Import) map[string]string {
	var out map[string]string
	for _, imp := range imps {
		if imp.Path == RuntimeImport {
			continue
		}
		want := imp.Name
		if want == "" {
			want = path.Base(imp.Path)
		}
		if got := t.add(imp.Path, want); got != want {
			if out == nil {
				out = make(map[string]string)
			}
			out[want] = got
		}
	}
	return out
}

func (t *importTable) add(importPath, want string) string {
	if name, ok := t.byPath[importPath]; ok {
		return name
	}
	name := want
	if t.taken[name] {
		base := aliasFor(importPath)
		name = base
		for n := 2; t.taken[name] || t.avoid[name]; n++ {
			name = base + strconv.Itoa(n)
		}
	}
	t.byPath[importPath] = name
	t.taken[name] = true
	return name
}

// aliasFor joins the last two path elements: "crypto/rand" -> "cryptorand".
func aliasFor(importPath string) string {
	parts := strings.Split(importPath, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(strings.Join(parts, "")) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) && b.Len() > 0 {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "pkg"
	}
	return b.String()
}

func (t *importTable) views() []importView {
	out := make([]importView, 0, len(t.byPath))
	for p, name := range t.byPath {
		iv := importView{Path: p}
		if name != path.Base(p) {
			iv.Name = name
		}
		out = append(out, iv)
	}
	slices.SortFunc(out, func(a, b importView) int { return strings.Compare(a.Path, b.Path) })
	return out
}

// requalifier rewrites package qualifiers in type spellings and default
// expressions of one declaration.
type requalifier struct {
	rename map[string]string
	params []string
}

func (q requalifier) spell(src string) (string, error) {
	if len(q.rename) == 0 || src == "" {
		return src, nil
	}
	x, err := parser.ParseExpr(src)
	if err != nil {
		return "", fmt.Errorf("cannot requalify %q: %w", src, err)
	}
	changed := false
	ast.Inspect(x, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		id, ok := sel.X.(*ast.Ident)
		if !ok || slices.Contains(q.params, id.Name) {
			return true
		}
		if to, ok := q.rename[id.Name]; ok {
			id.Name = to
			changed = true
		}
		return false
	})
	if !changed {
		return src, nil
	}
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, token.NewFileSet(), x); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (q requalifier) typeParams(tps []decl.TypeParam) (string, error) {
	if len(tps) == 0 {
		return "", nil
	}
	parts := make([]string, len(tps))
	for i, tp := range tps {
		c := tp.Constraint
		if c == "" {
			c = "any"
		}
		c, err := q.spell(c)
		if err != nil {
			return "", err
		}
		parts[i] = tp.Name + " " + c
	}
	return "[" + strings.Join(parts, ", ") + "]", nil
}
