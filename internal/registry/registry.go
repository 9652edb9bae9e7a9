// Package registry is the registration façade: it exposes synthesized
// builders to the package scope of their declaring class.
//
// A Registry lives for one run and is passed explicitly to whoever needs it.
// Each declaration identity moves through
//
//	Unanalyzed -> Rejected
//	Unanalyzed -> Eligible -> Synthesized -> Registered
//	Unanalyzed -> Eligible -> Failed
//
// and is analyzed and synthesized at most once, even when many goroutines
// resolve it concurrently. Members become visible atomically; a cancelled or
// failed resolution exposes no members. A cancelled one may be resolved
// again; a failed one keeps its error.
package registry

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"piecemeal/internal/analyze"
	"piecemeal/internal/decl"
	"piecemeal/internal/diag"
	"piecemeal/internal/synth"
)

// ErrRejected is returned by Register for a declaration that failed analysis.
var ErrRejected = errors.New("declaration was rejected by analysis")

// ErrMismatch is returned by Register when members belong to another declaration.
var ErrMismatch = errors.New("members do not belong to declaration")

type State uint8

const (
	Unanalyzed State = iota
	Rejected
	Eligible
	Synthesized
	Registered
	Failed
)

func (s State) String() string {
	switch s {
	case Rejected:
		return "rejected"
	case Eligible:
		return "eligible"
	case Synthesized:
		return "synthesized"
	case Registered:
		return "registered"
	case Failed:
		return "failed"
	}
	return "unanalyzed"
}

// Members are the declarations added to a package scope for one class.
type Members struct {
	Descriptor *synth.Descriptor
	Inline     synth.InlineFunc
}

// Entry is a snapshot of one identity.
type Entry struct {
	ID          decl.ID
	State       State
	Members     *Members
	Diagnostics []diag.Diagnostic
	// Err is the synthesis error of a Failed entry.
	Err error
}

func (e *Entry) terminal() bool {
	return e.State == Registered || e.State == Rejected || e.State == Failed
}

// Analyzer and Synthesizer are the engine stages Resolve drives.
type Analyzer interface {
	Analyze(c *decl.Class) (*analyze.Eligible, []diag.Diagnostic)
}

type Synthesizer interface {
	Synthesize(e *analyze.Eligible) (*synth.Descriptor, error)
	SynthesizeInline(e *analyze.Eligible, d *synth.Descriptor) (synth.InlineFunc, error)
}

type Registry struct {
	mu sync.RWMutex
	// committed holds terminal entries (Rejected, Registered, Failed).
	committed map[decl.ID]*Entry
	// pending holds the transient state of in-flight resolutions.
	pending map[decl.ID]State
	byPkg   map[string][]decl.ID
	group   singleflight.Group
}

func New() *Registry {
	return &Registry{
		committed: make(map[decl.ID]*Entry),
		pending:   make(map[decl.ID]State),
		byPkg:     make(map[string][]decl.ID),
	}
}

// Register adds members for c. Registering the same identity again is a
// no-op; added reports whether this call changed the registry. Explicit
// members replace a Failed entry.
func (r *Registry) Register(c *decl.Class, d *synth.Descriptor, fn synth.InlineFunc) (added bool, err error) {
	if c == nil || d == nil {
		return false, fmt.Errorf("%w: nil declaration or descriptor", ErrMismatch)
	}
	if d.ID != c.ID || fn.ID != c.ID {
		return false, fmt.Errorf("%w: %s (descriptor %s, inline %s)", ErrMismatch, c.ID, d.ID, fn.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.committed[c.ID]; ok && e.State != Failed {
		if e.State == Rejected {
			return false, fmt.Errorf("%s: %w", c.ID, ErrRejected)
		}
		return false, nil
	}
	r.commitLocked(c, &Entry{ID: c.ID, State: Registered, Members: &Members{Descriptor: d, Inline: fn}})
	return true, nil
}

// Resolve analyzes, synthesizes and registers c unless that already
// happened, and returns the terminal entry. Concurrent callers for the same
// identity share one resolution. Diagnostics of a rejected class are part of
// the entry, not an error; the error return is for cancellation and
// invariant violations. Nothing is recorded for a cancelled resolution. An
// invariant violation is recorded as Failed and returned again by later
// calls without synthesizing a second time.
func (r *Registry) Resolve(ctx context.Context, c *decl.Class, a Analyzer, s Synthesizer) (Entry, error) {
	if c == nil {
		return Entry{}, fmt.Errorf("%w: nil declaration", ErrMismatch)
	}
	for {
		if e, ok := r.Lookup(c.ID); ok && e.terminal() {
			return e, e.Err
		}
		v, err, _ := r.group.Do(string(c.ID), func() (any, error) {
			return r.resolve(ctx, c, a, s)
		})
		if err != nil {
			// the shared call was cancelled by another caller's context
			if isContextErr(err) && ctx.Err() == nil {
				continue
			}
			return Entry{}, err
		}
		e, ok := v.(Entry)
		if !ok {
			return Entry{}, fmt.Errorf("registry: unexpected result %T", v)
		}
		return e, e.Err
	}
}

func (r *Registry) resolve(ctx context.Context, c *decl.Class, a Analyzer, s Synthesizer) (Entry, error) {
	if e, ok := r.Lookup(c.ID); ok && e.terminal() {
		return e, nil
	}
	defer r.clearPending(c.ID)

	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	eligible, diags := a.Analyze(c)
	if len(diags) > 0 || eligible == nil {
		e := &Entry{ID: c.ID, State: Rejected, Diagnostics: diags}
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}
		r.mu.Lock()
		r.commitLocked(c, e)
		r.mu.Unlock()
		return *e, nil
	}
	r.setPending(c.ID, Eligible)

	d, err := s.Synthesize(eligible)
	if err != nil {
		return r.fail(c, err), nil
	}
	fn, err := s.SynthesizeInline(eligible, d)
	if err != nil {
		return r.fail(c, err), nil
	}
	r.setPending(c.ID, Synthesized)

	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	e := &Entry{ID: c.ID, State: Registered, Members: &Members{Descriptor: d, Inline: fn}}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.committed[c.ID]; ok {
		// registered directly through Register meanwhile
		return *prev, nil
	}
	r.commitLocked(c, e)
	return *e, nil
}

// fail records a synthesis error for c. The error travels in the entry so
// that singleflight does not treat it as a shared call failure.
func (r *Registry) fail(c *decl.Class, err error) Entry {
	e := &Entry{ID: c.ID, State: Failed, Err: fmt.Errorf("%s: %w", c.ID, err)}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.committed[c.ID]; ok {
		return *prev
	}
	r.commitLocked(c, e)
	return *e
}

func (r *Registry) commitLocked(c *decl.Class, e *Entry) {
	r.committed[c.ID] = e
	delete(r.pending, c.ID)
	if e.State == Registered {
		r.byPkg[c.PkgPath] = append(r.byPkg[c.PkgPath], c.ID)
	}
}

func (r *Registry) setPending(id decl.ID, st State) {
	r.mu.Lock()
	r.pending[id] = st
	r.mu.Unlock()
}

func (r *Registry) clearPending(id decl.ID) {
	r.mu.Lock()
	delete(r.pending, id)
	r.mu.Unlock()
}

// Lookup returns the current entry for id. In-flight identities report
// their transient state without members.
func (r *Registry) Lookup(id decl.ID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.committed[id]; ok {
		return *e, true
	}
	if st, ok := r.pending[id]; ok {
		return Entry{ID: id, State: st}, true
	}
	return Entry{ID: id, State: Unanalyzed}, false
}

// Scope returns the members registered for a package, sorted by identity.
func (r *Registry) Scope(pkgPath string) []Members {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := slices.Clone(r.byPkg[pkgPath])
	slices.Sort(ids)
	out := make([]Members, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.committed[id].Members)
	}
	return out
}

// Packages lists package paths with at least one registered member, sorted.
func (r *Registry) Packages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byPkg))
	for p := range r.byPkg {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Rejected returns all rejected entries sorted by identity.
func (r *Registry) Rejected() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.committed {
		if e.State == Rejected {
			out = append(out, *e)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
