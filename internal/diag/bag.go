package diag

import (
	"cmp"
	"slices"

	"piecemeal/internal/source"
)

// Bag collects diagnostics up to a limit. It is not safe for concurrent use;
// the driver fills it from one goroutine after the workers are done.
type Bag struct {
	items []Diagnostic
	max   int
}

func NewBag(limit int) *Bag {
	return &Bag{items: make([]Diagnostic, 0, min(max(limit, 1), 64)), max: max(limit, 1)}
}

// Add returns false once the limit is reached; d is dropped then.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= b.max {
		return false
	}
	b.items = append(b.items, d)
	return true
}

func (b *Bag) Cap() int { return b.max }

func (b *Bag) Len() int { return len(b.items) }

// Items returns the bag's own slice; callers must not modify it.
func (b *Bag) Items() []Diagnostic { return b.items }

// Count returns how many diagnostics are at least as severe as sev.
func (b *Bag) Count(sev Severity) int {
	n := 0
	for i := range b.items {
		if b.items[i].Severity >= sev {
			n++
		}
	}
	return n
}

func (b *Bag) HasErrors() bool { return b.Count(SevError) > 0 }

// Merge appends other, raising the limit so nothing is lost.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	b.max = max(b.max, len(b.items)+len(other.items))
	b.items = append(b.items, other.items...)
}

// Sort orders by file and span, more severe first, then by code and message.
func (b *Bag) Sort() {
	slices.SortStableFunc(b.items, func(x, y Diagnostic) int {
		return cmp.Or(
			cmp.Compare(x.Primary.File, y.Primary.File),
			cmp.Compare(x.Primary.Start, y.Primary.Start),
			cmp.Compare(x.Primary.End, y.Primary.End),
			cmp.Compare(y.Severity, x.Severity),
			cmp.Compare(x.Code, y.Code),
			cmp.Compare(x.Message, y.Message),
		)
	})
}

// Dedup keeps the first diagnostic for every code, primary span and message.
func (b *Bag) Dedup() {
	type key struct {
		code Code
		span source.Span
		msg  string
	}
	seen := make(map[key]bool, len(b.items))
	b.items = slices.DeleteFunc(b.items, func(d Diagnostic) bool {
		k := key{d.Code, d.Primary, d.Message}
		dup := seen[k]
		seen[k] = true
		return dup
	})
}
