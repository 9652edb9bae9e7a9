package vm

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"piecemeal/internal/analyze"
	"piecemeal/internal/decl"
	"piecemeal/internal/synth"
	buildrt "piecemeal/runtime"
)

type Point struct {
	X, Y int
}

func NewPoint(x, y int) Point { return Point{X: x, Y: y} }

type User struct {
	Name     string
	Nickname string
	Tags     []string
}

func NewUser(name, nickname string, tags ...string) (*User, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}
	return &User{Name: name, Nickname: nickname, Tags: tags}, nil
}

func pointDecl() *decl.Class {
	return &decl.Class{
		ID:         decl.NewID("example.com/shapes", "Point"),
		Name:       "Point",
		Visibility: decl.Public,
		Fields:     []decl.Field{{Name: "X", Type: decl.Basic("int")}, {Name: "Y", Type: decl.Basic("int")}},
		Constructor: &decl.Constructor{
			Name:       "NewPoint",
			Visibility: decl.Public,
			Params: []decl.Param{
				{Name: "x", Type: decl.Basic("int"), Index: 0},
				{Name: "y", Type: decl.Basic("int"), Index: 1, Default: &decl.Default{Expr: "0"}},
			},
		},
	}
}

func userDecl() *decl.Class {
	return &decl.Class{
		ID:         decl.NewID("example.com/people", "User"),
		Name:       "User",
		Visibility: decl.Public,
		Fields: []decl.Field{
			{Name: "Name", Type: decl.Basic("string")},
			{Name: "Nickname", Type: decl.Basic("string")},
			{Name: "Tags", Type: decl.SliceOf(decl.Basic("string"))},
		},
		Constructor: &decl.Constructor{
			Name:         "NewUser",
			Visibility:   decl.Public,
			Result:       decl.ResultPointer,
			ReturnsError: true,
			Variadic:     true,
			Params: []decl.Param{
				{Name: "name", Type: decl.Basic("string"), Index: 0},
				{Name: "nickname", Type: decl.Basic("string"), Index: 1, Default: &decl.Default{Expr: "name", Refs: []string{"name"}}},
				{Name: "tags", Type: decl.SliceOf(decl.Basic("string")), Index: 2, Default: &decl.Default{Expr: "nil"}},
			},
		},
	}
}

func describe(t *testing.T, c *decl.Class, policy synth.DefaultPolicy) *synth.Descriptor {
	t.Helper()
	e, diags := analyze.New(analyze.DefaultConfig()).Analyze(c)
	if len(diags) != 0 {
		t.Fatalf("not eligible: %+v", diags)
	}
	d, err := synth.New(policy).Synthesize(e)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func bindPoint(t *testing.T, policy synth.DefaultPolicy) *Binding {
	t.Helper()
	b, err := Bind(describe(t, pointDecl(), policy), NewPoint, map[string]any{
		"y": func() int { return 0 },
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func bindUser(t *testing.T) *Binding {
	t.Helper()
	b, err := Bind(describe(t, userDecl(), synth.PolicyDeclared), NewUser, map[string]any{
		"nickname": func(name string) string { return name },
		"tags":     func() []string { return nil },
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestPointWithDefault(t *testing.T) {
	b := bindPoint(t, synth.PolicyDeclared)
	got, err := b.NewBuilder().Set("X", 5).Build()
	if err != nil {
		t.Fatal(err)
	}
	if got != (Point{X: 5, Y: 0}) {
		t.Fatalf("got %+v, want {5 0}", got)
	}
}

func TestPointMissingRequired(t *testing.T) {
	b := bindPoint(t, synth.PolicyDeclared)
	_, err := b.NewBuilder().Build()
	var be *buildrt.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("want *buildrt.BuildError, got %v", err)
	}
	if be.Type != "Point" || !reflect.DeepEqual(be.Missing, []string{"x"}) {
		t.Fatalf("unexpected error %+v", be)
	}
	if !errors.Is(err, buildrt.ErrUnsetRequired) {
		t.Fatalf("BuildError must match ErrUnsetRequired")
	}
}

func TestInlinePoint(t *testing.T) {
	b := bindPoint(t, synth.PolicyDeclared)
	calls := 0
	got, err := b.Inline(func(bl *Builder) {
		calls++
		bl.Set("X", 5)
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("configure called %d times, want 1", calls)
	}
	if got != (Point{X: 5}) {
		t.Fatalf("got %+v", got)
	}
}

func TestInlinePropagatesBuildError(t *testing.T) {
	b := bindPoint(t, synth.PolicyDeclared)
	_, direct := b.NewBuilder().Set("Y", 1).Build()
	_, inline := b.Inline(func(bl *Builder) { bl.Set("Y", 1) })
	if direct == nil || inline == nil || direct.Error() != inline.Error() {
		t.Fatalf("direct=%v inline=%v", direct, inline)
	}
	var be *buildrt.BuildError
	if !errors.As(inline, &be) {
		t.Fatalf("inline must return the BuildError unchanged, got %T", inline)
	}
}

func TestSettersCommuteAndOverwrite(t *testing.T) {
	b := bindPoint(t, synth.PolicyDeclared)
	a, err := b.NewBuilder().Set("X", 1).Set("Y", 2).Build()
	if err != nil {
		t.Fatal(err)
	}
	c, err := b.NewBuilder().Set("Y", 2).Set("X", 1).Build()
	if err != nil {
		t.Fatal(err)
	}
	if a != c || a != (Point{X: 1, Y: 2}) {
		t.Fatalf("order changed result: %+v vs %+v", a, c)
	}
	last, err := b.NewBuilder().Set("X", 1).Set("X", 7).Build()
	if err != nil || last != (Point{X: 7}) {
		t.Fatalf("overwrite: %+v, %v", last, err)
	}
}

func TestMissingSetIsExactlyUnsetRequired(t *testing.T) {
	c := &decl.Class{
		ID:         "example.com/t.Triple",
		Name:       "Triple",
		Visibility: decl.Public,
		Constructor: &decl.Constructor{
			Name:       "NewTriple",
			Visibility: decl.Public,
			Params: []decl.Param{
				{Name: "a", Type: decl.Basic("int"), Index: 0},
				{Name: "b", Type: decl.Basic("int"), Index: 1},
				{Name: "c", Type: decl.Basic("int"), Index: 2},
			},
		},
	}
	b, err := Bind(describe(t, c, synth.PolicyDeclared), func(a, b, c int) [3]int { return [3]int{a, b, c} }, nil)
	if err != nil {
		t.Fatal(err)
	}
	names := []string{"a", "b", "c"}
	for mask := 0; mask < 8; mask++ {
		bl := b.NewBuilder()
		var want []string
		for i, n := range names {
			if mask&(1<<i) != 0 {
				bl.Set(fmt.Sprintf("%c", 'A'+i), i+1)
			} else {
				want = append(want, n)
			}
		}
		got, err := bl.Build()
		if len(want) == 0 {
			if err != nil || got != [3]int{1, 2, 3} {
				t.Fatalf("mask %03b: %v, %v", mask, got, err)
			}
			continue
		}
		var be *buildrt.BuildError
		if !errors.As(err, &be) || !reflect.DeepEqual(be.Missing, want) {
			t.Fatalf("mask %03b: missing %v, want %v (err %v)", mask, be, want, err)
		}
	}
}

func TestDefaultSeesEarlierArguments(t *testing.T) {
	b := bindUser(t)
	got, err := b.NewBuilder().Set("Name", "ada").Build()
	if err != nil {
		t.Fatal(err)
	}
	u := got.(*User)
	if u.Nickname != "ada" || u.Tags != nil {
		t.Fatalf("unexpected user %+v", u)
	}

	got, err = b.NewBuilder().Set("Tags", []string{"x", "y"}).Set("Name", "bob").Set("Nickname", "b").Build()
	if err != nil {
		t.Fatal(err)
	}
	if u := got.(*User); u.Nickname != "b" || len(u.Tags) != 2 {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestConstructorErrorIsReturned(t *testing.T) {
	b := bindUser(t)
	_, err := b.NewBuilder().Set("Name", "").Build()
	if err == nil || err.Error() != "empty name" {
		t.Fatalf("want constructor error, got %v", err)
	}
}

func TestExplicitPolicyRequiresEverything(t *testing.T) {
	b := bindPoint(t, synth.PolicyExplicit)
	_, err := b.NewBuilder().Set("X", 5).Build()
	var be *buildrt.BuildError
	if !errors.As(err, &be) || !reflect.DeepEqual(be.Missing, []string{"y"}) {
		t.Fatalf("want missing [y], got %v", err)
	}
}

func TestUsageErrors(t *testing.T) {
	b := bindPoint(t, synth.PolicyDeclared)

	_, err := b.NewBuilder().Set("Z", 1).Build()
	var vmErr *VMError
	if !errors.As(err, &vmErr) || vmErr.Code != ErrUnknownSetter {
		t.Fatalf("want VM1001, got %v", err)
	}
	_, err = b.NewBuilder().Set("X", "five").Set("X", 5).Build()
	if !errors.As(err, &vmErr) || vmErr.Code != ErrTypeMismatch {
		t.Fatalf("want sticky VM1003, got %v", err)
	}

	if _, err := Bind(describe(t, pointDecl(), synth.PolicyDeclared), NewPoint, nil); !errors.As(err, &vmErr) || vmErr.Code != ErrMissingDefault {
		t.Fatalf("want VM1004, got %v", err)
	}
	if _, err := Bind(describe(t, pointDecl(), synth.PolicyDeclared), func(x int) Point { return Point{} }, nil); !errors.As(err, &vmErr) || vmErr.Code != ErrBindingMismatch {
		t.Fatalf("want VM1002, got %v", err)
	}
}

func TestToBuilderAndCopy(t *testing.T) {
	b := bindPoint(t, synth.PolicyDeclared)
	orig := Point{X: 1, Y: 2}

	bl, err := b.ToBuilder(orig)
	if err != nil {
		t.Fatal(err)
	}
	if !bl.IsSet("x") || !bl.IsSet("y") {
		t.Fatalf("ToBuilder must set every slot")
	}
	same, err := bl.Build()
	if err != nil || same != orig {
		t.Fatalf("round trip: %+v, %v", same, err)
	}

	moved, err := b.Copy(orig, func(bl *Builder) { bl.Set("Y", 9) })
	if err != nil || moved != (Point{X: 1, Y: 9}) {
		t.Fatalf("Copy: %+v, %v", moved, err)
	}
	if orig != (Point{X: 1, Y: 2}) {
		t.Fatalf("Copy modified the original")
	}

	if _, err := b.ToBuilder(&orig); err == nil {
		t.Fatalf("ToBuilder must reject a *Point for a Point constructor")
	}
}

func TestCopyPointerInstance(t *testing.T) {
	b := bindUser(t)
	u, err := b.NewBuilder().Set("Name", "ada").Set("Tags", []string{"a"}).Build()
	if err != nil {
		t.Fatal(err)
	}
	c, err := b.Copy(u, func(bl *Builder) { bl.Set("Nickname", "countess") })
	if err != nil {
		t.Fatal(err)
	}
	cu := c.(*User)
	if cu == u.(*User) || cu.Name != "ada" || cu.Nickname != "countess" || len(cu.Tags) != 1 {
		t.Fatalf("unexpected copy %+v", cu)
	}
}
