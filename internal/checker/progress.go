package checker

import "time"

// Stage describes the phase a file is in.
type Stage string

const (
	// StageParse is the parsing stage.
	StageParse Stage = "parse"
	// StageWalk is the tree walk.
	StageWalk Stage = "walk"
	// StageReport is the delivery of events to listeners.
	StageReport Stage = "report"
)

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the file is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the file is being processed.
	StatusWorking Status = "working"
	// StatusDone indicates the file was reported.
	StatusDone Status = "done"
	// StatusCached indicates the file was skipped as unchanged and clean.
	StatusCached Status = "cached"
	// StatusError indicates processing failed.
	StatusError Status = "error"
)

// Event reports progress for a file (or for the whole run when File is empty).
type Event struct {
	File    string
	Stage   Stage
	Status  Status
	Events  int // доставленные события, для StatusDone
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

type nopSink struct{}

func (nopSink) OnEvent(Event) {}
