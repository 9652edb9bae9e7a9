package loader

import (
	"go/types"
	"maps"
	"slices"

	"piecemeal/internal/decl"
)

// typeConv converts go/types types into decl.TypeRef, spelled relative to
// the declaring package with the import names of one file. Every foreign
// package it spells is recorded as an import.
type typeConv struct {
	local   *types.Package
	names   map[string]string // file imports: path -> local name
	used    map[string]string
	qualify types.Qualifier
}

func newTypeConv(local *types.Package, u *unit) *typeConv {
	c := &typeConv{local: local, names: u.imports, used: make(map[string]string)}
	c.qualify = func(p *types.Package) string {
		if p == nil || p == c.local {
			return ""
		}
		name, ok := c.names[p.Path()]
		if !ok {
			name = p.Name()
		}
		c.use(p.Path(), name)
		return name
	}
	return c
}

func (c *typeConv) use(path, name string) {
	c.used[path] = name
}

// imports returns the recorded imports sorted by path.
func (c *typeConv) imports() []decl.Import {
	var out []decl.Import
	for _, path := range slices.Sorted(maps.Keys(c.used)) {
		out = append(out, decl.Import{Path: path, Name: c.used[path]})
	}
	return out
}

// spell returns the Go source of t.
func (c *typeConv) spell(t types.Type) string {
	return types.TypeString(t, c.qualify)
}

func (c *typeConv) ref(t types.Type) decl.TypeRef {
	r := c.structure(types.Unalias(t))
	r.Expr = c.spell(t)
	return r
}

func (c *typeConv) structure(t types.Type) decl.TypeRef {
	switch t := t.(type) {
	case *types.Basic:
		if t.Kind() == types.UnsafePointer {
			return decl.Basic("unsafe.Pointer")
		}
		if t.Kind() == types.Invalid {
			return decl.TypeRef{Kind: decl.KindInvalid, Name: "invalid type"}
		}
		return decl.Basic(t.Name())
	case *types.Named:
		obj := t.Obj()
		r := decl.TypeRef{Kind: decl.KindNamed, Name: obj.Name()}
		if obj.Pkg() != nil {
			r.PkgPath = obj.Pkg().Path()
			r.PkgName = c.qualify(obj.Pkg())
		}
		for i := 0; i < t.TypeArgs().Len(); i++ {
			r.Args = append(r.Args, c.ref(t.TypeArgs().At(i)))
		}
		return r
	case *types.TypeParam:
		return decl.TypeParamRef(t.Obj().Name())
	case *types.Pointer:
		return decl.PointerTo(c.ref(t.Elem()))
	case *types.Slice:
		return decl.SliceOf(c.ref(t.Elem()))
	case *types.Array:
		elem := c.ref(t.Elem())
		return decl.TypeRef{Kind: decl.KindArray, Len: t.Len(), Elem: &elem}
	case *types.Map:
		return decl.MapOf(c.ref(t.Key()), c.ref(t.Elem()))
	case *types.Chan:
		elem := c.ref(t.Elem())
		return decl.TypeRef{Kind: decl.KindChan, Elem: &elem}
	case *types.Signature:
		return decl.TypeRef{Kind: decl.KindFunc}
	case *types.Struct:
		return decl.TypeRef{Kind: decl.KindStruct, Empty: t.NumFields() == 0}
	case *types.Interface:
		return decl.TypeRef{Kind: decl.KindInterface, Empty: t.Empty()}
	}
	return decl.TypeRef{Kind: decl.KindInvalid}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
