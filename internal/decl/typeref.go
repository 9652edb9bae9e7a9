package decl

import (
	"strconv"
	"strings"
)

// TypeKind classifies a parameter type.
type TypeKind uint8

const (
	KindInvalid TypeKind = iota
	KindBasic
	KindNamed
	KindPointer
	KindSlice
	KindArray
	KindMap
	KindChan
	KindFunc
	KindInterface
	KindStruct
	KindTypeParam
)

var kindNames = [...]string{
	KindInvalid:   "invalid",
	KindBasic:     "basic",
	KindNamed:     "named",
	KindPointer:   "pointer",
	KindSlice:     "slice",
	KindArray:     "array",
	KindMap:       "map",
	KindChan:      "chan",
	KindFunc:      "func",
	KindInterface: "interface",
	KindStruct:    "struct",
	KindTypeParam: "typeparam",
}

func (k TypeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// ParseTypeKind maps a kind name (as used in piecemeal.toml) to a TypeKind.
func ParseTypeKind(s string) (TypeKind, bool) {
	for k, name := range kindNames {
		if name == s && TypeKind(k) != KindInvalid {
			return TypeKind(k), true
		}
	}
	return KindInvalid, false
}

// TypeRef describes a parameter type structurally.
//
// Name is the basic type name, the named type's name or the type parameter
// name. Expr is the Go spelling relative to the declaring package; when empty
// String reconstructs it.
type TypeRef struct {
	Kind    TypeKind
	Name    string
	PkgPath string
	// PkgName is the qualifier for named types from other packages.
	PkgName string
	Elem    *TypeRef
	Key     *TypeRef
	Len     int64
	Args    []TypeRef
	// Empty marks interface{}/any and struct{}.
	Empty bool
	Expr  string
}

// Basic returns a TypeRef for a predeclared type such as "int".
func Basic(name string) TypeRef {
	return TypeRef{Kind: KindBasic, Name: name}
}

// Named returns a TypeRef for a named type. pkgName is empty for types of
// the declaring package.
func Named(pkgPath, pkgName, name string, args ...TypeRef) TypeRef {
	return TypeRef{Kind: KindNamed, PkgPath: pkgPath, PkgName: pkgName, Name: name, Args: args}
}

// PointerTo, SliceOf and MapOf build composite references.
func PointerTo(elem TypeRef) TypeRef { return TypeRef{Kind: KindPointer, Elem: &elem} }
func SliceOf(elem TypeRef) TypeRef   { return TypeRef{Kind: KindSlice, Elem: &elem} }
func MapOf(key, elem TypeRef) TypeRef {
	return TypeRef{Kind: KindMap, Key: &key, Elem: &elem}
}

// TypeParamRef refers to a type parameter of the class.
func TypeParamRef(name string) TypeRef {
	return TypeRef{Kind: KindTypeParam, Name: name}
}

func (t TypeRef) String() string {
	if t.Expr != "" {
		return t.Expr
	}
	switch t.Kind {
	case KindBasic, KindTypeParam:
		return t.Name
	case KindNamed:
		s := t.Name
		if t.PkgName != "" {
			s = t.PkgName + "." + s
		}
		if len(t.Args) > 0 {
			args := make([]string, len(t.Args))
			for i, a := range t.Args {
				args[i] = a.String()
			}
			s += "[" + strings.Join(args, ", ") + "]"
		}
		return s
	case KindPointer:
		return "*" + t.elemString()
	case KindSlice:
		return "[]" + t.elemString()
	case KindArray:
		return "[" + strconv.FormatInt(t.Len, 10) + "]" + t.elemString()
	case KindMap:
		key := "?"
		if t.Key != nil {
			key = t.Key.String()
		}
		return "map[" + key + "]" + t.elemString()
	case KindChan:
		return "chan " + t.elemString()
	case KindInterface:
		if t.Empty {
			return "any"
		}
		return "interface{...}"
	case KindStruct:
		if t.Empty {
			return "struct{}"
		}
		return "struct{...}"
	case KindFunc:
		return "func(...)"
	}
	return "invalid"
}

func (t TypeRef) elemString() string {
	if t.Elem == nil {
		return "?"
	}
	return t.Elem.String()
}

// Walk visits t and every type nested in it, depth first. Returning false
// from fn stops descent into the current node's children.
func (t TypeRef) Walk(fn func(TypeRef) bool) {
	if !fn(t) {
		return
	}
	if t.Key != nil {
		t.Key.Walk(fn)
	}
	if t.Elem != nil {
		t.Elem.Walk(fn)
	}
	for _, a := range t.Args {
		a.Walk(fn)
	}
}
