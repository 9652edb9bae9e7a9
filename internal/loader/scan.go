package loader

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/packages"

	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/directive"
	"piecemeal/internal/source"
)

// scanner walks the syntax of one package.
type scanner struct {
	pkg       *packages.Package
	files     *source.FileSet
	diags     []diag.Diagnostic
	generated string

	units []*unit
	// funcs are package-level functions, by name
	funcs map[string]*funcInfo
	// methods by receiver base type name
	methods map[string][]string
	taken   []string
	// ctorUsed marks functions consumed as primary constructors
	ctorUsed map[*funcInfo]bool
	// marked are the names of classes that carried a marker
	marked map[string]bool
}

// unit is one non-generated file.
type unit struct {
	file    *ast.File
	tf      *token.File
	files   *source.FileSet
	id      source.FileID
	imports map[string]string // path -> local name
}

type funcInfo struct {
	decl       *ast.FuncDecl
	unit       *unit
	directives []directive.Directive
}

func newScanner(p *packages.Package, files *source.FileSet) *scanner {
	return &scanner{
		pkg:     p,
		files:   files,
		funcs:   make(map[string]*funcInfo),
		methods: make(map[string][]string),

		ctorUsed: make(map[*funcInfo]bool),
		marked:   make(map[string]bool),
	}
}

func (s *scanner) scan() *Package {
	out := &Package{Path: s.pkg.PkgPath, Name: s.pkg.Name, Dir: packageDir(s.pkg)}
	if s.pkg.Fset == nil || s.pkg.Types == nil || s.pkg.TypesInfo == nil {
		// nothing to scan; packages.Errors explains why
		return out
	}
	for _, f := range s.pkg.Syntax {
		tf := s.pkg.Fset.File(f.Pos())
		if tf == nil {
			continue
		}
		// #nosec G304 -- file names come from the go command
		content, err := os.ReadFile(tf.Name())
		if err != nil {
			id := s.files.AddVirtual(tf.Name(), nil)
			s.diags = append(s.diags, diag.NewError(diag.IOLoadFileError, source.Span{File: id}, err.Error()))
			continue
		}
		if isGeneratorOutput(content) {
			s.generated = tf.Name()
			continue
		}
		u := &unit{
			file:    f,
			tf:      tf,
			files:   s.files,
			id:      s.files.Add(tf.Name(), content, 0),
			imports: s.fileImports(f),
		}
		s.units = append(s.units, u)
	}
	out.Generated = s.generated
	if out.Dir == "" && s.generated != "" {
		out.Dir = filepath.Dir(s.generated)
	}

	for _, u := range s.units {
		s.collectFuncs(u)
	}
	for _, u := range s.units {
		for _, d := range u.file.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok {
				continue
			}
			for _, spec := range gd.Specs {
				switch sp := spec.(type) {
				case *ast.TypeSpec:
					s.taken = append(s.taken, sp.Name.Name)
				case *ast.ValueSpec:
					for _, n := range sp.Names {
						s.taken = append(s.taken, n.Name)
					}
				}
			}
		}
	}

	for _, u := range s.units {
		for _, d := range u.file.Decls {
			gd, ok := d.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				s.checkStrayMarkers(u, d)
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				if c := s.classFor(u, gd, ts); c != nil {
					out.Classes = append(out.Classes, c)
				}
			}
		}
	}
	s.checkUnusedConstructorDirectives()
	return out
}

func (s *scanner) fileImports(f *ast.File) map[string]string {
	out := make(map[string]string, len(f.Imports))
	for _, spec := range f.Imports {
		pn := s.pkg.TypesInfo.PkgNameOf(spec)
		if pn == nil || pn.Name() == "_" || pn.Name() == "." {
			continue
		}
		out[pn.Imported().Path()] = pn.Name()
	}
	return out
}

func (s *scanner) collectFuncs(u *unit) {
	for _, d := range u.file.Decls {
		fd, ok := d.(*ast.FuncDecl)
		if !ok {
			continue
		}
		if fd.Recv != nil {
			if base := receiverBase(fd.Recv); base != "" {
				s.methods[base] = append(s.methods[base], fd.Name.Name)
			}
			continue
		}
		s.taken = append(s.taken, fd.Name.Name)
		info := &funcInfo{decl: fd, unit: u}
		info.directives = s.directives(u, fd.Doc)
		s.funcs[fd.Name.Name] = info
	}
}

func receiverBase(recv *ast.FieldList) string {
	if recv == nil || len(recv.List) == 0 {
		return ""
	}
	t := recv.List[0].Type
	for {
		switch x := t.(type) {
		case *ast.StarExpr:
			t = x.X
		case *ast.ParenExpr:
			t = x.X
		case *ast.IndexExpr:
			t = x.X
		case *ast.IndexListExpr:
			t = x.X
		case *ast.Ident:
			return x.Name
		default:
			return ""
		}
	}
}

// directives parses the piecemeal directives of a doc comment, reporting
// malformed ones.
func (s *scanner) directives(u *unit, doc *ast.CommentGroup) []directive.Directive {
	if doc == nil {
		return nil
	}
	var out []directive.Directive
	for _, c := range doc.List {
		d, ok, err := directive.Parse(directive.Comment{Text: c.Text, Span: u.span(c.Slash, c.End())})
		if !ok {
			continue
		}
		if err != nil {
			code := diag.DirMalformed
			if d.Kind == directive.KindUnknown {
				code = diag.DirUnknown
			}
			s.diags = append(s.diags, diag.NewError(code, d.Span, err.Error()))
			continue
		}
		out = append(out, d)
	}
	return out
}

// checkStrayMarkers reports builder markers on anything but a type.
func (s *scanner) checkStrayMarkers(u *unit, d ast.Decl) {
	var doc *ast.CommentGroup
	switch x := d.(type) {
	case *ast.FuncDecl:
		if fi, ok := s.funcs[x.Name.Name]; ok && fi.decl == x {
			for _, dir := range fi.directives {
				if dir.Kind == directive.KindBuilder {
					s.misuse(dir.Span, fmt.Sprintf("%sbuilder must annotate a struct type, not function %s", directive.Prefix, x.Name.Name))
				}
			}
			return
		}
		doc = x.Doc
	case *ast.GenDecl:
		doc = x.Doc
	}
	for _, dir := range s.directives(u, doc) {
		s.misuse(dir.Span, fmt.Sprintf("%s%s is not allowed here", directive.Prefix, dir.Kind))
	}
}

func (s *scanner) misuse(sp source.Span, msg string) {
	s.diags = append(s.diags, diag.NewError(diag.IOMarkerMisuse, sp, msg))
}

// classFor builds the class for a marked type spec, or returns nil when the
// spec is unmarked or malformed.
func (s *scanner) classFor(u *unit, gd *ast.GenDecl, ts *ast.TypeSpec) *decl.Class {
	doc := ts.Doc
	if doc == nil && len(gd.Specs) == 1 {
		doc = gd.Doc
	}
	dirs := s.directives(u, doc)
	var marker *directive.Directive
	for i := range dirs {
		d := &dirs[i]
		switch d.Kind {
		case directive.KindBuilder:
			if marker != nil {
				s.diags = append(s.diags, diag.NewError(diag.DirDuplicateMarker, d.Span,
					fmt.Sprintf("%s carries more than one %sbuilder marker", ts.Name.Name, directive.Prefix)).
					WithNote(marker.Span, "first marker"))
				continue
			}
			marker = d
		default:
			s.misuse(d.Span, fmt.Sprintf("%s%s belongs on a function, not on type %s", directive.Prefix, d.Kind, ts.Name.Name))
		}
	}
	if marker == nil {
		return nil
	}
	s.marked[ts.Name.Name] = true
	if ts.Assign.IsValid() {
		s.misuse(marker.Span, fmt.Sprintf("%sbuilder cannot annotate alias %s", directive.Prefix, ts.Name.Name))
		return nil
	}
	tn, ok := s.pkg.TypesInfo.Defs[ts.Name].(*types.TypeName)
	if !ok {
		return nil
	}
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return nil
	}
	st, ok := named.Underlying().(*types.Struct)
	if !ok {
		s.misuse(marker.Span, fmt.Sprintf("%sbuilder requires a struct type; %s is %s", directive.Prefix, ts.Name.Name, kindOf(named.Underlying())))
		return nil
	}
	opts, _ := marker.Options()

	name := ts.Name.Name
	c := &decl.Class{
		ID:         decl.NewID(s.pkg.PkgPath, name),
		PkgPath:    s.pkg.PkgPath,
		PkgName:    s.pkg.Name,
		Name:       name,
		Visibility: decl.VisibilityOf(name),
		Options:    decl.Options{SetterStyle: opts.SetterStyle, ToBuilder: opts.ToBuilder},
		Methods:    s.methods[name],
		Taken:      s.taken,
		Span:       u.span(ts.Pos(), ts.End()),
		NameSpan:   u.span(ts.Name.Pos(), ts.Name.End()),
		DeclEnd:    u.span(gd.End(), gd.End()),
	}
	fields := newTypeConv(s.pkg.Types, u)
	for i := 0; i < st.NumFields(); i++ {
		f := st.Field(i)
		c.Fields = append(c.Fields, decl.Field{Name: f.Name(), Type: fields.ref(f.Type())})
	}

	before := len(s.diags)
	ctor, conv := s.constructorFor(c, named)
	if hasErrorsSince(s.diags, before) {
		return nil
	}
	if conv == nil {
		conv = newTypeConv(s.pkg.Types, u)
	}
	c.Constructor = ctor
	for i := 0; i < named.TypeParams().Len(); i++ {
		tp := named.TypeParams().At(i)
		c.TypeParams = append(c.TypeParams, decl.TypeParam{
			Name:       tp.Obj().Name(),
			Constraint: conv.spell(tp.Constraint()),
		})
	}
	c.Imports = conv.imports()
	return c
}

func hasErrorsSince(diags []diag.Diagnostic, from int) bool {
	for _, d := range diags[from:] {
		if d.IsError() {
			return true
		}
	}
	return false
}

func kindOf(t types.Type) string {
	switch t.(type) {
	case *types.Interface:
		return "an interface"
	case *types.Signature:
		return "a function type"
	case *types.Basic:
		return "a basic type"
	case *types.Map:
		return "a map"
	case *types.Slice:
		return "a slice"
	case *types.Array:
		return "an array"
	case *types.Chan:
		return "a channel"
	case *types.Pointer:
		return "a pointer"
	}
	return "not a struct"
}

// span converts token positions of u into a FileSet span.
func (u *unit) span(from, to token.Pos) source.Span {
	sp, err := u.files.SpanOf(u.id, u.tf.Offset(from), u.tf.Offset(to))
	if err != nil {
		return source.Span{File: u.id}
	}
	return sp
}
