package trace

import (
	"sync/atomic"
	"time"
)

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	// ScopeDriver covers a whole command.
	ScopeDriver Scope = iota + 1
	// ScopePhase covers one pipeline phase: load, resolve or generate.
	ScopePhase
	// ScopePackage covers the work on one Go package.
	ScopePackage
	// ScopeDecl covers one marked declaration.
	ScopeDecl
)

var scopeNames = [...]string{ScopeDriver: "driver", ScopePhase: "phase", ScopePackage: "package", ScopeDecl: "decl"}

func (s Scope) String() string {
	if int(s) < len(scopeNames) && scopeNames[s] != "" {
		return scopeNames[s]
	}
	return "unknown"
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64 // global, monotonic
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64 // 0 for roots
	Name     string // "resolve", "example.com/shapes", "example.com/shapes.Point"
	Detail   string
	Extra    map[string]string
}

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

// stamp fills the fields every emitted event needs.
func stamp(ev *Event) *Event {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Seq == 0 {
		ev.Seq = seqCounter.Add(1)
	}
	return ev
}
