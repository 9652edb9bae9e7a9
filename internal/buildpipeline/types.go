// Package buildpipeline describes generation progress as a stream of events.
package buildpipeline

import "time"

// Stage describes a high-level pipeline phase.
type Stage string

const (
	StageLoad     Stage = "load"
	StageResolve  Stage = "resolve"
	StageGenerate Stage = "generate"
	StageWrite    Stage = "write"
)

// Status captures progress state within a stage.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusWorking Status = "working"
	// StatusDone is terminal for a package.
	StatusDone Status = "done"
	// StatusSkipped is terminal: nothing to generate or output unchanged.
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Terminal reports whether no further events follow for the same package.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusSkipped || s == StatusError
}

// Event reports progress for a package, or for the whole run when Package
// is empty.
type Event struct {
	Package string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}

// Discard drops every event.
var Discard ProgressSink = discard{}

type discard struct{}

func (discard) OnEvent(Event) {}
