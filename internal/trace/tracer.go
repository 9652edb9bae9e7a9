package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Tracer receives trace events. Implementations must be goroutine-safe.
type Tracer interface {
	Emit(ev *Event)
	// Flush writes buffered events.
	Flush() error
	// Close flushes and releases the output.
	Close() error
	Level() Level
	// Enabled reports Level() > LevelOff.
	Enabled() bool
}

// StorageMode determines how events are stored.
type StorageMode uint8

const (
	ModeStream StorageMode = iota + 1 // immediate write
	ModeRing                          // circular buffer
	ModeBoth                          // stream + ring
)

var modeNames = []string{ModeStream: "stream", ModeRing: "ring", ModeBoth: "both"}

func (m StorageMode) String() string { return nameOf(modeNames, int(m)) }

func ParseMode(s string) (StorageMode, error) {
	i, err := parseName("storage mode", modeNames, s)
	if err != nil {
		return ModeRing, err
	}
	return StorageMode(i), nil
}

// Config describes the tracer the CLI flags ask for.
type Config struct {
	Level      Level
	Mode       StorageMode
	Format     Format
	Output     io.Writer // stream output; when nil OutputPath is opened
	OutputPath string    // "-" or "" for stderr
	RingSize   int       // DefaultRingSize when not positive
}

// New creates a Tracer for cfg. LevelOff yields Nop.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return Nop, nil
	}
	if cfg.Mode == ModeRing {
		return NewRingTracer(cfg.RingSize, cfg.Level), nil
	}
	if cfg.Mode != ModeStream && cfg.Mode != ModeBoth {
		return nil, fmt.Errorf("unknown storage mode: %v", cfg.Mode)
	}
	format := cfg.Format
	if format == FormatAuto {
		format = FormatText
		switch filepath.Ext(cfg.OutputPath) {
		case ".ndjson", ".jsonl":
			format = FormatNDJSON
		}
	}
	w, err := openOutput(cfg)
	if err != nil {
		return nil, err
	}
	stream := NewStreamTracer(w, cfg.Level, format)
	if cfg.Mode == ModeStream {
		return stream, nil
	}
	return tee{stream, NewRingTracer(cfg.RingSize, cfg.Level)}, nil
}

func openOutput(cfg Config) (io.Writer, error) {
	if cfg.Output != nil {
		return cfg.Output, nil
	}
	if cfg.OutputPath == "" || cfg.OutputPath == "-" {
		return unclosable{os.Stderr}, nil
	}
	f, err := os.Create(cfg.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace output: %w", err)
	}
	return f, nil
}

// unclosable hides the Close method of stderr.
type unclosable struct{ io.Writer }

// tee is ModeBoth: a stream for the user and a ring for the failure dump.
type tee struct {
	stream *StreamTracer
	ring   *RingTracer
}

func (t tee) Emit(ev *Event) {
	ev = stamp(ev)
	cp := *ev
	t.stream.Emit(ev)
	t.ring.Emit(&cp)
}

func (t tee) Flush() error  { return t.stream.Flush() }
func (t tee) Close() error  { return t.stream.Close() }
func (t tee) Level() Level  { return t.stream.Level() }
func (t tee) Enabled() bool { return t.stream.Enabled() }

// Ring returns the ring buffer behind t, if any.
func Ring(t Tracer) (*RingTracer, bool) {
	switch t := t.(type) {
	case *RingTracer:
		return t, true
	case tee:
		return t.ring, true
	}
	return nil, false
}
