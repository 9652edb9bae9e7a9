package analyze

import (
	"piecemeal/internal/decl"
)

// TypeSet is the allow-list of parameter type kinds a builder can hold.
// Composite types are supported when every nested type is.
type TypeSet struct {
	allowed map[decl.TypeKind]bool
	// anonymous struct and non-empty interface literals
	literals bool
}

// DefaultTypeSet allows basic types, named types,
// pointers, slices, arrays, maps, type parameters and the empty interface.
// Channels, functions and anonymous struct or interface literals are rejected.
// unsafe.Pointer is rejected by every TypeSet.
func DefaultTypeSet() TypeSet {
	return TypeSet{
		allowed: map[decl.TypeKind]bool{
			decl.KindBasic:     true,
			decl.KindNamed:     true,
			decl.KindPointer:   true,
			decl.KindSlice:     true,
			decl.KindArray:     true,
			decl.KindMap:       true,
			decl.KindTypeParam: true,
			decl.KindInterface: true,
			decl.KindStruct:    true,
		},
	}
}

// With returns a copy with extra kinds allowed and others denied. Allowing
// "struct" or "interface" explicitly also admits their non-empty literals.
// Deny wins over allow.
func (s TypeSet) With(allow, deny []decl.TypeKind) TypeSet {
	out := TypeSet{allowed: make(map[decl.TypeKind]bool, len(s.allowed)), literals: s.literals}
	for k, v := range s.allowed {
		out.allowed[k] = v
	}
	for _, k := range allow {
		out.allowed[k] = true
		if k == decl.KindStruct || k == decl.KindInterface {
			out.literals = true
		}
	}
	for _, k := range deny {
		delete(out.allowed, k)
	}
	return out
}

// Supports reports whether t can be a builder slot. When it cannot, offending
// is the innermost rejected type.
func (s TypeSet) Supports(t decl.TypeRef) (ok bool, offending decl.TypeRef) {
	ok = true
	t.Walk(func(r decl.TypeRef) bool {
		if !ok {
			return false
		}
		if !s.kindSupported(r) {
			ok = false
			offending = r
			return false
		}
		return true
	})
	return ok, offending
}

func (s TypeSet) kindSupported(r decl.TypeRef) bool {
	if !s.allowed[r.Kind] {
		return false
	}
	switch r.Kind {
	case decl.KindInvalid:
		return false
	case decl.KindBasic:
		return r.Name != "unsafe.Pointer"
	case decl.KindStruct, decl.KindInterface:
		return r.Empty || s.literals
	}
	return true
}

// Kinds lists the allowed kinds in declaration order, for messages and config dumps.
func (s TypeSet) Kinds() []decl.TypeKind {
	var out []decl.TypeKind
	for k := decl.KindBasic; k <= decl.KindTypeParam; k++ {
		if s.allowed[k] {
			out = append(out, k)
		}
	}
	return out
}
