package trace

import (
	"io"
	"sync"
)

// DefaultRingSize is used when Config.RingSize is not positive.
const DefaultRingSize = 4096

// RingTracer keeps the most recent events in memory so a failed run can
// show what led up to the failure.
type RingTracer struct {
	level Level

	mu      sync.Mutex
	buf     []Event
	written uint64 // total events ever stored
}

func NewRingTracer(size int, level Level) *RingTracer {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &RingTracer{level: level, buf: make([]Event, size)}
}

func (r *RingTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !r.level.ShouldEmit(ev.Scope) {
		return
	}
	ev = stamp(ev)
	r.mu.Lock()
	r.buf[r.written%uint64(len(r.buf))] = *ev
	r.written++
	r.mu.Unlock()
}

// Snapshot returns the retained events, oldest first.
func (r *RingTracer) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	size := uint64(len(r.buf))
	if r.written <= size {
		return append([]Event(nil), r.buf[:r.written]...)
	}
	start := r.written % size
	out := make([]Event, 0, size)
	out = append(out, r.buf[start:]...)
	return append(out, r.buf[:start]...)
}

// Dropped counts events that were overwritten.
func (r *RingTracer) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if size := uint64(len(r.buf)); r.written > size {
		return r.written - size
	}
	return 0
}

// Dump writes the snapshot to w.
func (r *RingTracer) Dump(w io.Writer, format Format) error {
	for _, ev := range r.Snapshot() {
		if _, err := w.Write(FormatEvent(&ev, format)); err != nil {
			return err
		}
	}
	return nil
}

func (r *RingTracer) Flush() error  { return nil }
func (r *RingTracer) Close() error  { return nil }
func (r *RingTracer) Level() Level  { return r.level }
func (r *RingTracer) Enabled() bool { return r.level > LevelOff }
