package loader

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/types"
	"slices"

	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/directive"
	"piecemeal/internal/naming"
)

// constructorFor finds the primary constructor of c: the function marked
// //piecemeal:constructor <Type>, else New<Type> or new<Type> returning the
// type. It returns nil when there is none; the analyzer reports that.
// Types are spelled with the imports of the constructor's file.
func (s *scanner) constructorFor(c *decl.Class, named *types.Named) (*decl.Constructor, *typeConv) {
	var marked []*funcInfo
	for _, name := range sortedKeys(s.funcs) {
		fi := s.funcs[name]
		for _, d := range fi.directives {
			if d.Kind == directive.KindConstructor && d.Target() == c.Name {
				marked = append(marked, fi)
			}
		}
	}
	if len(marked) > 1 {
		for _, fi := range marked {
			s.ctorUsed[fi] = true
		}
		for _, fi := range marked[1:] {
			s.diags = append(s.diags, diag.NewError(diag.DirDuplicateMarker, fi.unit.span(fi.decl.Name.Pos(), fi.decl.Name.End()),
				fmt.Sprintf("%s is marked as constructor of %s, and so is %s", fi.decl.Name.Name, c.Name, marked[0].decl.Name.Name)))
		}
		return nil, nil
	}
	if len(marked) == 1 {
		fi := marked[0]
		s.ctorUsed[fi] = true
		sig, ok := s.constructs(fi, named)
		if !ok {
			s.misuse(fi.unit.span(fi.decl.Name.Pos(), fi.decl.Name.End()),
				fmt.Sprintf("%s is marked as constructor of %s but does not return %s, *%s or either with an error",
					fi.decl.Name.Name, c.Name, c.Name, c.Name))
			return nil, nil
		}
		conv := newTypeConv(s.pkg.Types, fi.unit)
		return s.buildConstructor(fi, sig, conv), conv
	}

	for _, name := range []string{"New" + naming.Export(c.Name), "new" + naming.Export(c.Name)} {
		fi, ok := s.funcs[name]
		if !ok {
			continue
		}
		if sig, ok := s.constructs(fi, named); ok {
			s.ctorUsed[fi] = true
			conv := newTypeConv(s.pkg.Types, fi.unit)
			return s.buildConstructor(fi, sig, conv), conv
		}
	}
	return nil, nil
}

// constructs reports whether fi returns named (or a pointer to it),
// optionally with an error. Generic classes need a constructor with the
// same type parameters, returning the class instantiated with them.
func (s *scanner) constructs(fi *funcInfo, named *types.Named) (*types.Signature, bool) {
	fn, ok := s.pkg.TypesInfo.Defs[fi.decl.Name].(*types.Func)
	if !ok {
		return nil, false
	}
	sig, ok := fn.Type().(*types.Signature)
	if !ok {
		return nil, false
	}
	res := sig.Results()
	switch res.Len() {
	case 1:
	case 2:
		if !types.Identical(res.At(1).Type(), types.Universe.Lookup("error").Type()) {
			return nil, false
		}
	default:
		return nil, false
	}
	t := types.Unalias(res.At(0).Type())
	if p, ok := t.(*types.Pointer); ok {
		t = types.Unalias(p.Elem())
	}
	got, ok := t.(*types.Named)
	if !ok || got.Origin().Obj() != named.Obj() {
		return nil, false
	}
	want := named.TypeParams()
	if sig.TypeParams().Len() != want.Len() || got.TypeArgs().Len() != want.Len() {
		return nil, false
	}
	for i := 0; i < want.Len(); i++ {
		tp, ok := got.TypeArgs().At(i).(*types.TypeParam)
		if !ok || tp != sig.TypeParams().At(i) || tp.Obj().Name() != want.At(i).Obj().Name() {
			return nil, false
		}
	}
	return sig, true
}

func (s *scanner) buildConstructor(fi *funcInfo, sig *types.Signature, conv *typeConv) *decl.Constructor {
	fd := fi.decl
	u := fi.unit
	ctor := &decl.Constructor{
		Name:         fd.Name.Name,
		Visibility:   decl.VisibilityOf(fd.Name.Name),
		ReturnsError: sig.Results().Len() == 2,
		Variadic:     sig.Variadic(),
		Span:         u.span(fd.Pos(), fd.Type.End()),
		NameSpan:     u.span(fd.Name.Pos(), fd.Name.End()),
	}
	if _, ok := types.Unalias(sig.Results().At(0).Type()).(*types.Pointer); ok {
		ctor.Result = decl.ResultPointer
	}

	spans := paramNodes(fd)
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		v := params.At(i)
		p := decl.Param{
			Name:  v.Name(),
			Type:  conv.ref(v.Type()),
			Index: i,
		}
		if i < len(spans) {
			p.Span = u.span(spans[i].Pos(), spans[i].End())
		}
		ctor.Params = append(ctor.Params, p)
	}

	names := make([]string, len(ctor.Params))
	for i, p := range ctor.Params {
		names[i] = p.Name
	}
	seen := make(map[string]directive.Directive)
	for _, d := range fi.directives {
		if d.Kind != directive.KindDefault {
			continue
		}
		param, expr, exprSpan := d.Default()
		if prev, dup := seen[param]; dup {
			s.diags = append(s.diags, diag.NewError(diag.DirDuplicateMarker, d.Span,
				fmt.Sprintf("second default for parameter '%s' of %s", param, ctor.Name)).
				WithNote(prev.Span, "first default"))
			continue
		}
		seen[param] = d

		i := slices.Index(names, param)
		if i < 0 {
			ctor.StrayDefaults = append(ctor.StrayDefaults, decl.StrayDefault{Param: param, Span: d.Span})
			continue
		}
		x, err := parser.ParseExpr(expr)
		if err != nil {
			s.diags = append(s.diags, diag.NewError(diag.PmInvalidDefault, exprSpan,
				fmt.Sprintf("default of '%s' is not a Go expression: %v", param, err)))
			continue
		}
		ctor.Params[i].Default = &decl.Default{
			Expr: expr,
			Refs: exprRefs(x, names, u.imports, conv),
			Span: exprSpan,
		}
	}
	return ctor
}

// paramNodes returns one node per declared parameter: the name identifier,
// or the type for unnamed parameters.
func paramNodes(fd *ast.FuncDecl) []ast.Node {
	var out []ast.Node
	if fd.Type.Params == nil {
		return nil
	}
	for _, f := range fd.Type.Params.List {
		if len(f.Names) == 0 {
			out = append(out, f.Type)
			continue
		}
		for _, n := range f.Names {
			out = append(out, n)
		}
	}
	return out
}

// exprRefs lists the parameters an expression mentions, in order of first
// appearance. Package qualifiers it uses are recorded as imports.
func exprRefs(x ast.Expr, params []string, fileImports map[string]string, conv *typeConv) []string {
	var refs []string
	ast.Inspect(x, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.SelectorExpr:
			if id, ok := n.X.(*ast.Ident); ok && !slices.Contains(params, id.Name) {
				for path, name := range fileImports {
					if name == id.Name {
						conv.use(path, name)
					}
				}
				return false
			}
			ast.Inspect(n.X, func(m ast.Node) bool {
				if id, ok := m.(*ast.Ident); ok && slices.Contains(params, id.Name) && !slices.Contains(refs, id.Name) {
					refs = append(refs, id.Name)
				}
				return true
			})
			return false
		case *ast.KeyValueExpr:
			// struct literal keys are field names
			if _, ok := n.Key.(*ast.Ident); ok {
				ast.Inspect(n.Value, func(m ast.Node) bool {
					if id, ok := m.(*ast.Ident); ok && slices.Contains(params, id.Name) && !slices.Contains(refs, id.Name) {
						refs = append(refs, id.Name)
					}
					return true
				})
				return false
			}
		case *ast.Ident:
			if slices.Contains(params, n.Name) && !slices.Contains(refs, n.Name) {
				refs = append(refs, n.Name)
			}
		}
		return true
	})
	return refs
}

// checkUnusedConstructorDirectives reports constructor and default
// directives that did not end up on a primary constructor.
func (s *scanner) checkUnusedConstructorDirectives() {
	for _, name := range sortedKeys(s.funcs) {
		fi := s.funcs[name]
		if s.ctorUsed[fi] {
			continue
		}
		for _, d := range fi.directives {
			switch d.Kind {
			case directive.KindConstructor:
				if !s.marked[d.Target()] {
					s.misuse(d.Span, fmt.Sprintf("%s names %s, which is not a type marked with %sbuilder", name, d.Target(), directive.Prefix))
				}
			case directive.KindDefault:
				s.misuse(d.Span, fmt.Sprintf("%sdefault on %s, which is not the primary constructor of a marked type", directive.Prefix, name))
			}
		}
	}
}
