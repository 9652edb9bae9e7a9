package trace

import (
	"io"
	"sync"
)

// StreamTracer writes every event to w as it happens.
type StreamTracer struct {
	level  Level
	format Format

	mu sync.Mutex
	w  io.Writer
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	if format == FormatAuto {
		format = FormatText
	}
	return &StreamTracer{w: w, level: level, format: format}
}

func (s *StreamTracer) Emit(ev *Event) {
	if ev.Kind != KindHeartbeat && !s.level.ShouldEmit(ev.Scope) {
		return
	}
	line := FormatEvent(stamp(ev), s.format)
	s.mu.Lock()
	_, _ = s.w.Write(line) // trace output is best effort
	s.mu.Unlock()
}

func (s *StreamTracer) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close flushes and closes w when it is an io.Closer.
func (s *StreamTracer) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *StreamTracer) Level() Level  { return s.level }
func (s *StreamTracer) Enabled() bool { return s.level > LevelOff }
