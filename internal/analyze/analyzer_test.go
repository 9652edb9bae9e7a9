package analyze

import (
	"reflect"
	"strings"
	"testing"

	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/naming"
	"piecemeal/internal/source"
)

func span(start, end uint32) source.Span {
	return source.Span{File: 1, Start: start, End: end}
}

// pointClass models:
//
//	type Point struct{ X, Y int }
//	//piecemeal:default y=0
//	func NewPoint(x int, y int) Point
func pointClass() *decl.Class {
	return &decl.Class{
		ID:         decl.NewID("example.com/shapes", "Point"),
		PkgPath:    "example.com/shapes",
		PkgName:    "shapes",
		Name:       "Point",
		Visibility: decl.Public,
		Fields: []decl.Field{
			{Name: "X", Type: decl.Basic("int")},
			{Name: "Y", Type: decl.Basic("int")},
		},
		Constructor: &decl.Constructor{
			Name:       "NewPoint",
			Visibility: decl.Public,
			Params: []decl.Param{
				{Name: "x", Type: decl.Basic("int"), Index: 0, Span: span(100, 105)},
				{Name: "y", Type: decl.Basic("int"), Index: 1, Span: span(107, 112), Default: &decl.Default{Expr: "0", Span: span(60, 61)}},
			},
			NameSpan: span(90, 98),
		},
		NameSpan: span(5, 10),
		DeclEnd:  span(30, 30),
	}
}

func codes(diags []diag.Diagnostic) []diag.Code {
	out := make([]diag.Code, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

func TestAnalyzeEligible(t *testing.T) {
	c := pointClass()
	e, diags := New(DefaultConfig()).Analyze(c)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", codes(diags))
	}
	if e == nil || e.Class() != c || !e.ToBuilder() || e.Scheme().Style != naming.StylePlain {
		t.Fatalf("unexpected eligible: %+v", e)
	}
}

func TestAnalyzeDoesNotMutate(t *testing.T) {
	c := pointClass()
	c.Constructor.Visibility = decl.Package
	c.Constructor.Name = "newPoint"
	before := pointClass()
	before.Constructor.Visibility = decl.Package
	before.Constructor.Name = "newPoint"

	New(DefaultConfig()).Analyze(c)
	if !reflect.DeepEqual(c, before) {
		t.Fatalf("Analyze modified the declaration")
	}
}

func TestNoPrimaryConstructor(t *testing.T) {
	c := pointClass()
	c.Constructor = nil

	e, diags := New(DefaultConfig()).Analyze(c)
	if e != nil || len(diags) != 1 || diags[0].Code != diag.PmNoPrimaryConstructor {
		t.Fatalf("want single PM1001, got %v", codes(diags))
	}
	d := diags[0]
	if d.Severity != diag.SevError || d.Primary != c.NameSpan {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	if len(d.Fixes) != 1 || len(d.Fixes[0].Edits) != 1 {
		t.Fatalf("expected one fix with one edit")
	}
	edit := d.Fixes[0].Edits[0]
	want := "\n\n// NewPoint creates a Point.\nfunc NewPoint(x int, y int) Point {\n\treturn Point{X: x, Y: y}\n}"
	if edit.NewText != want || edit.Span != c.DeclEnd {
		t.Fatalf("fix text:\n%s\nwant:\n%s", edit.NewText, want)
	}
}

func TestConstructorStubGeneric(t *testing.T) {
	c := &decl.Class{
		Name:       "box",
		Visibility: decl.Package,
		TypeParams: []decl.TypeParam{{Name: "T", Constraint: "any"}},
		Fields: []decl.Field{
			{Name: "Value", Type: decl.TypeParamRef("T")},
			{Name: "value", Type: decl.Basic("int")},
		},
	}
	got := constructorStub(c, constructorName(c))
	want := "\n\n// newBox creates a box.\nfunc newBox[T any](value T, value2 int) box[T] {\n\treturn box[T]{Value: value, value: value2}\n}"
	if got != want {
		t.Fatalf("stub:\n%s\nwant:\n%s", got, want)
	}
}

func TestConstructorVisibility(t *testing.T) {
	tests := []struct {
		name     string
		classVis decl.Visibility
		ctorName string
		ctorVis  decl.Visibility
		wantErr  bool
	}{
		{"exported type, exported ctor", decl.Public, "NewPoint", decl.Public, false},
		{"exported type, unexported ctor", decl.Public, "newPoint", decl.Package, true},
		{"unexported type, unexported ctor", decl.Package, "newPoint", decl.Package, false},
		{"unexported type, exported ctor", decl.Package, "NewPoint", decl.Public, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := pointClass()
			c.Visibility = tt.classVis
			c.Constructor.Name = tt.ctorName
			c.Constructor.Visibility = tt.ctorVis
			_, diags := New(DefaultConfig()).Analyze(c)
			if got := len(diags) > 0; got != tt.wantErr {
				t.Fatalf("diagnostics %v, wantErr %v", codes(diags), tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			d := diags[0]
			if d.Code != diag.PmConstructorNotVisible || d.Primary != c.Constructor.NameSpan {
				t.Fatalf("unexpected diagnostic %+v", d)
			}
			edit := d.Fixes[0].Edits[0]
			if edit.NewText != "NewPoint" || edit.OldText != "newPoint" {
				t.Fatalf("unexpected rename fix %+v", edit)
			}
		})
	}
}

func TestAllFindingsReportedInOnePass(t *testing.T) {
	c := pointClass()
	c.Constructor.Name = "newPoint"
	c.Constructor.Visibility = decl.Package
	c.Constructor.Params[1].Type = decl.TypeRef{Kind: decl.KindChan, Elem: &decl.TypeRef{Kind: decl.KindBasic, Name: "int"}}

	e, diags := New(DefaultConfig()).Analyze(c)
	if e != nil {
		t.Fatalf("class must be rejected")
	}
	got := codes(diags)
	want := []diag.Code{diag.PmConstructorNotVisible, diag.PmUnsupportedPropertyType}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("codes = %v, want %v", got, want)
	}
	for _, d := range diags {
		if d.Severity != diag.SevError {
			t.Fatalf("%s must be an error", d.Code.ID())
		}
	}
	if diags[1].Primary != c.Constructor.Params[1].Span {
		t.Fatalf("PM1003 must point at the parameter")
	}
}

func TestSupportedTypes(t *testing.T) {
	intRef := decl.Basic("int")
	fn := decl.TypeRef{Kind: decl.KindFunc}
	ch := decl.TypeRef{Kind: decl.KindChan, Elem: &intRef}

	tests := []struct {
		name string
		ref  decl.TypeRef
		set  TypeSet
		want bool
	}{
		{"int", intRef, DefaultTypeSet(), true},
		{"named", decl.Named("time", "time", "Duration"), DefaultTypeSet(), true},
		{"slice of pointers", decl.SliceOf(decl.PointerTo(decl.Named("", "", "Point"))), DefaultTypeSet(), true},
		{"map of slices", decl.MapOf(decl.Basic("string"), decl.SliceOf(intRef)), DefaultTypeSet(), true},
		{"type param", decl.TypeParamRef("T"), DefaultTypeSet(), true},
		{"any", decl.TypeRef{Kind: decl.KindInterface, Empty: true}, DefaultTypeSet(), true},
		{"error", decl.Named("", "", "error"), DefaultTypeSet(), true},
		{"chan", ch, DefaultTypeSet(), false},
		{"func", fn, DefaultTypeSet(), false},
		{"map of funcs", decl.MapOf(decl.Basic("string"), fn), DefaultTypeSet(), false},
		{"generic arg chan", decl.Named("", "", "Box", ch), DefaultTypeSet(), false},
		{"anonymous struct", decl.TypeRef{Kind: decl.KindStruct}, DefaultTypeSet(), false},
		{"interface literal", decl.TypeRef{Kind: decl.KindInterface}, DefaultTypeSet(), false},
		{"unsafe pointer", decl.Basic("unsafe.Pointer"), DefaultTypeSet(), false},
		{"chan allowed", ch, DefaultTypeSet().With([]decl.TypeKind{decl.KindChan}, nil), true},
		{"struct literal allowed", decl.TypeRef{Kind: decl.KindStruct}, DefaultTypeSet().With([]decl.TypeKind{decl.KindStruct}, nil), true},
		{"map denied", decl.MapOf(intRef, intRef), DefaultTypeSet().With(nil, []decl.TypeKind{decl.KindMap}), false},
		{"deny wins", ch, DefaultTypeSet().With([]decl.TypeKind{decl.KindChan}, []decl.TypeKind{decl.KindChan}), false},
	}
	for _, tt := range tests {
		if got, _ := tt.set.Supports(tt.ref); got != tt.want {
			t.Errorf("%s: Supports = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUnsupportedNestedTypeMessage(t *testing.T) {
	c := pointClass()
	fn := decl.TypeRef{Kind: decl.KindFunc, Expr: "func()"}
	c.Constructor.Params[0].Type = decl.MapOf(decl.Basic("string"), fn)

	_, diags := New(DefaultConfig()).Analyze(c)
	if len(diags) != 1 {
		t.Fatalf("want 1 diagnostic, got %v", codes(diags))
	}
	want := "parameter 'x' of NewPoint has unsupported type map[string]func() (contains func())"
	if diags[0].Message != want {
		t.Fatalf("message = %q, want %q", diags[0].Message, want)
	}
}

func TestDuplicateBuilderMembers(t *testing.T) {
	t.Run("setter collision", func(t *testing.T) {
		c := pointClass()
		c.Constructor.Params = []decl.Param{
			{Name: "url", Type: decl.Basic("string"), Index: 0},
			{Name: "URL", Type: decl.Basic("string"), Index: 1},
		}
		_, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 1 || diags[0].Code != diag.PmDuplicateBuilderMember {
			t.Fatalf("want PM1004, got %v", codes(diags))
		}
	})
	t.Run("setter named Build", func(t *testing.T) {
		c := pointClass()
		c.Constructor.Params = []decl.Param{{Name: "build", Type: decl.Basic("int")}}
		_, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 1 || !strings.Contains(diags[0].Message, "Build method") {
			t.Fatalf("unexpected diagnostics %v", diags)
		}
	})
	t.Run("with style avoids Build collision", func(t *testing.T) {
		c := pointClass()
		c.Constructor.Params = []decl.Param{{Name: "build", Type: decl.Basic("int")}}
		c.Options.SetterStyle = "with"
		e, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 0 || e.Scheme().Style != naming.StyleWith {
			t.Fatalf("unexpected diagnostics %v", codes(diags))
		}
	})
	t.Run("builder type taken", func(t *testing.T) {
		c := pointClass()
		c.Taken = []string{"Point", "PointBuilder"}
		_, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 1 || !strings.Contains(diags[0].Message, "PointBuilder") {
			t.Fatalf("unexpected diagnostics %v", diags)
		}
	})
	t.Run("copy method exists", func(t *testing.T) {
		c := pointClass()
		c.Methods = []string{"Copy"}
		_, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 1 || diags[0].Code != diag.PmDuplicateBuilderMember {
			t.Fatalf("want PM1004, got %v", codes(diags))
		}

		off := false
		c.Options.ToBuilder = &off
		if _, diags := New(DefaultConfig()).Analyze(c); len(diags) != 0 {
			t.Fatalf("tobuilder=false must silence the collision, got %v", codes(diags))
		}
	})
}

func TestInvalidDefaults(t *testing.T) {
	t.Run("unknown parameter", func(t *testing.T) {
		c := pointClass()
		c.Constructor.StrayDefaults = []decl.StrayDefault{{Param: "z", Span: span(70, 71)}}
		_, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 1 || diags[0].Code != diag.PmInvalidDefault || diags[0].Primary != span(70, 71) {
			t.Fatalf("unexpected diagnostics %v", diags)
		}
	})
	t.Run("earlier parameter is fine", func(t *testing.T) {
		c := pointClass()
		c.Constructor.Params[1].Default = &decl.Default{Expr: "x * 2", Refs: []string{"x"}}
		if _, diags := New(DefaultConfig()).Analyze(c); len(diags) != 0 {
			t.Fatalf("unexpected diagnostics %v", codes(diags))
		}
	})
	t.Run("later parameter", func(t *testing.T) {
		c := pointClass()
		c.Constructor.Params[0].Default = &decl.Default{Expr: "y", Refs: []string{"y"}}
		_, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 1 || !strings.Contains(diags[0].Message, "declared after it") {
			t.Fatalf("unexpected diagnostics %v", diags)
		}
		if len(diags[0].Notes) != 1 || diags[0].Notes[0].Span != c.Constructor.Params[1].Span {
			t.Fatalf("note must point at the later parameter")
		}
	})
	t.Run("self reference", func(t *testing.T) {
		c := pointClass()
		c.Constructor.Params[1].Default = &decl.Default{Expr: "y + 1", Refs: []string{"y"}}
		_, diags := New(DefaultConfig()).Analyze(c)
		if len(diags) != 1 || !strings.Contains(diags[0].Message, "itself") {
			t.Fatalf("unexpected diagnostics %v", diags)
		}
	})
}

func TestUnnamedParameter(t *testing.T) {
	c := pointClass()
	c.Constructor.Params[0].Name = "_"
	_, diags := New(DefaultConfig()).Analyze(c)
	if len(diags) != 1 || diags[0].Code != diag.PmUnnamedParameter {
		t.Fatalf("want PM1006, got %v", codes(diags))
	}
}

func TestInvalidMarkerStyle(t *testing.T) {
	c := pointClass()
	c.Options.SetterStyle = "java"
	e, diags := New(DefaultConfig()).Analyze(c)
	if e != nil || len(diags) != 1 || diags[0].Code != diag.DirMalformed {
		t.Fatalf("want DIR2002, got %v", codes(diags))
	}
}
