package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"piecemeal/internal/analyze"
	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/synth"
)

func class(pkg, name string) *decl.Class {
	return &decl.Class{
		ID:         decl.NewID(pkg, name),
		PkgPath:    pkg,
		PkgName:    "p",
		Name:       name,
		Visibility: decl.Public,
		Constructor: &decl.Constructor{
			Name:       "New" + name,
			Visibility: decl.Public,
			Params: []decl.Param{
				{Name: "x", Type: decl.Basic("int"), Index: 0},
				{Name: "y", Type: decl.Basic("int"), Index: 1, Default: &decl.Default{Expr: "0"}},
			},
		},
	}
}

// countingSynth wraps the real synthesizer and can run a hook before synthesis.
type countingSynth struct {
	*synth.Synthesizer
	calls  atomic.Int32
	before func()
	err    error
}

func newCountingSynth() *countingSynth {
	return &countingSynth{Synthesizer: synth.New(synth.PolicyDeclared)}
}

func (s *countingSynth) Synthesize(e *analyze.Eligible) (*synth.Descriptor, error) {
	s.calls.Add(1)
	if s.before != nil {
		s.before()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.Synthesizer.Synthesize(e)
}

func members(t *testing.T, c *decl.Class) (*synth.Descriptor, synth.InlineFunc) {
	t.Helper()
	e, diags := analyze.New(analyze.DefaultConfig()).Analyze(c)
	if len(diags) != 0 {
		t.Fatalf("not eligible: %v", diags)
	}
	s := synth.New(synth.PolicyDeclared)
	d, err := s.Synthesize(e)
	if err != nil {
		t.Fatal(err)
	}
	fn, err := s.SynthesizeInline(e, d)
	if err != nil {
		t.Fatal(err)
	}
	return d, fn
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := New()
	c := class("example.com/shapes", "Point")
	d, fn := members(t, c)

	added, err := r.Register(c, d, fn)
	if err != nil || !added {
		t.Fatalf("first Register: added=%v err=%v", added, err)
	}
	added, err = r.Register(c, d, fn)
	if err != nil || added {
		t.Fatalf("second Register: added=%v err=%v", added, err)
	}

	scope := r.Scope("example.com/shapes")
	if len(scope) != 1 {
		t.Fatalf("want exactly one builder and one inline function, got %d members", len(scope))
	}
	if scope[0].Descriptor.BuilderName != "PointBuilder" || scope[0].Inline.Name != "BuildPoint" {
		t.Fatalf("unexpected members %+v", scope[0])
	}
	if e, ok := r.Lookup(c.ID); !ok || e.State != Registered {
		t.Fatalf("Lookup = %+v, %v", e, ok)
	}
}

func TestRegisterRejectsForeignMembers(t *testing.T) {
	r := New()
	a := class("example.com/shapes", "Point")
	b := class("example.com/shapes", "Line")
	d, fn := members(t, b)
	if _, err := r.Register(a, d, fn); !errors.Is(err, ErrMismatch) {
		t.Fatalf("want ErrMismatch, got %v", err)
	}
	if len(r.Scope("example.com/shapes")) != 0 {
		t.Fatalf("nothing must be registered")
	}
}

func TestResolveRegistersOnce(t *testing.T) {
	r := New()
	c := class("example.com/shapes", "Point")
	s := newCountingSynth()
	a := analyze.New(analyze.DefaultConfig())

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := r.Resolve(context.Background(), c, a, s)
			if err != nil {
				errs <- err
				return
			}
			if e.State != Registered || e.Members == nil {
				errs <- fmt.Errorf("state %s", e.State)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if got := s.calls.Load(); got != 1 {
		t.Fatalf("synthesized %d times, want 1", got)
	}
	if len(r.Scope(c.PkgPath)) != 1 {
		t.Fatalf("want one registered member set")
	}
}

func TestResolveRejected(t *testing.T) {
	r := New()
	c := class("example.com/shapes", "Point")
	c.Constructor = nil
	s := newCountingSynth()

	e, err := r.Resolve(context.Background(), c, analyze.New(analyze.DefaultConfig()), s)
	if err != nil {
		t.Fatal(err)
	}
	if e.State != Rejected || len(e.Diagnostics) != 1 || e.Diagnostics[0].Code != diag.PmNoPrimaryConstructor {
		t.Fatalf("unexpected entry %+v", e)
	}
	if s.calls.Load() != 0 {
		t.Fatalf("rejected class must not be synthesized")
	}
	if len(r.Scope(c.PkgPath)) != 0 || len(r.Packages()) != 0 {
		t.Fatalf("rejected class must not be registered")
	}
	if got := r.Rejected(); len(got) != 1 || got[0].ID != c.ID {
		t.Fatalf("Rejected() = %+v", got)
	}
	d, fn := members(t, class("example.com/shapes", "Point"))
	if _, err := r.Register(c, d, fn); !errors.Is(err, ErrRejected) {
		t.Fatalf("Register after rejection: %v", err)
	}
}

func TestResolveCancelledLeavesNothing(t *testing.T) {
	r := New()
	c := class("example.com/shapes", "Point")
	ctx, cancel := context.WithCancel(context.Background())
	s := newCountingSynth()
	s.before = cancel

	_, err := r.Resolve(ctx, c, analyze.New(analyze.DefaultConfig()), s)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if e, ok := r.Lookup(c.ID); ok || e.State != Unanalyzed {
		t.Fatalf("cancelled resolution left %+v", e)
	}
	if len(r.Scope(c.PkgPath)) != 0 {
		t.Fatalf("cancelled resolution registered members")
	}

	s.before = nil
	e, err := r.Resolve(context.Background(), c, analyze.New(analyze.DefaultConfig()), s)
	if err != nil || e.State != Registered {
		t.Fatalf("retry: %+v, %v", e, err)
	}
}

func TestResolveInvariantFailureIsIsolated(t *testing.T) {
	r := New()
	bad := class("example.com/shapes", "Bad")
	good := class("example.com/shapes", "Good")
	a := analyze.New(analyze.DefaultConfig())

	failing := newCountingSynth()
	failing.err = fmt.Errorf("%w: broken", synth.ErrInvariant)
	if _, err := r.Resolve(context.Background(), bad, a, failing); !errors.Is(err, synth.ErrInvariant) {
		t.Fatalf("want ErrInvariant, got %v", err)
	}
	if e, ok := r.Lookup(bad.ID); !ok || e.State != Failed || e.Members != nil {
		t.Fatalf("Lookup(%s) = %+v, %v, want a failed entry without members", bad.ID, e, ok)
	}
	if scope := r.Scope(bad.PkgPath); len(scope) != 0 {
		t.Fatalf("failed declaration is visible: %+v", scope)
	}

	if _, err := r.Resolve(context.Background(), good, a, newCountingSynth()); err != nil {
		t.Fatal(err)
	}
	if scope := r.Scope(good.PkgPath); len(scope) != 1 || scope[0].Descriptor.ID != good.ID {
		t.Fatalf("unexpected scope %+v", scope)
	}
}

func TestLookupReportsTransientState(t *testing.T) {
	r := New()
	c := class("example.com/shapes", "Point")
	entered := make(chan struct{})
	release := make(chan struct{})
	s := newCountingSynth()
	s.before = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(context.Background(), c, analyze.New(analyze.DefaultConfig()), s)
		done <- err
	}()

	<-entered
	if e, ok := r.Lookup(c.ID); !ok || e.State != Eligible || e.Members != nil {
		t.Errorf("in-flight Lookup = %+v, %v", e, ok)
	}
	if len(r.Scope(c.PkgPath)) != 0 {
		t.Errorf("members visible before commit")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if e, _ := r.Lookup(c.ID); e.State != Registered {
		t.Fatalf("final state %s", e.State)
	}
}

func TestScopeIsSortedPerPackage(t *testing.T) {
	r := New()
	a := analyze.New(analyze.DefaultConfig())
	s := synth.New(synth.PolicyDeclared)
	for _, c := range []*decl.Class{
		class("example.com/b", "Zeta"),
		class("example.com/a", "Point"),
		class("example.com/b", "Alpha"),
	} {
		if _, err := r.Resolve(context.Background(), c, a, s); err != nil {
			t.Fatal(err)
		}
	}
	if got := r.Packages(); len(got) != 2 || got[0] != "example.com/a" || got[1] != "example.com/b" {
		t.Fatalf("Packages() = %v", got)
	}
	scope := r.Scope("example.com/b")
	if len(scope) != 2 || scope[0].Descriptor.TypeName != "Alpha" || scope[1].Descriptor.TypeName != "Zeta" {
		t.Fatalf("scope not sorted: %+v", scope)
	}
}

func TestResolveRemembersFailure(t *testing.T) {
	tests := []struct {
		name  string
		calls int
	}{
		{"once", 1},
		{"twice", 2},
		{"many", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			c := class("example.com/shapes", "Bad")
			s := newCountingSynth()
			s.err = fmt.Errorf("%w: broken", synth.ErrInvariant)
			a := analyze.New(analyze.DefaultConfig())

			for i := 0; i < tt.calls; i++ {
				e, err := r.Resolve(context.Background(), c, a, s)
				if !errors.Is(err, synth.ErrInvariant) {
					t.Fatalf("call %d: want ErrInvariant, got %v", i+1, err)
				}
				if e.State != Failed {
					t.Fatalf("call %d: state = %s, want failed", i+1, e.State)
				}
			}
			if got := s.calls.Load(); got != 1 {
				t.Fatalf("Synthesize called %d times, want 1", got)
			}
		})
	}
}

func TestRegisterReplacesFailure(t *testing.T) {
	r := New()
	c := class("example.com/shapes", "Point")
	s := newCountingSynth()
	s.err = fmt.Errorf("%w: broken", synth.ErrInvariant)
	if _, err := r.Resolve(context.Background(), c, analyze.New(analyze.DefaultConfig()), s); err == nil {
		t.Fatalf("want an error")
	}

	d, fn := members(t, c)
	added, err := r.Register(c, d, fn)
	if err != nil || !added {
		t.Fatalf("Register = %v, %v, want true, nil", added, err)
	}
	if e, _ := r.Lookup(c.ID); e.State != Registered {
		t.Fatalf("state = %s, want registered", e.State)
	}
}
