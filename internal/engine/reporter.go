package engine

import (
	"context"
	"time"
)

// EventKind tells reporters what happened.
type EventKind string

const (
	EventStart       EventKind = "start"
	EventCheckpoint  EventKind = "checkpoint"
	EventInterrupted EventKind = "interrupted"
	EventClosed      EventKind = "closed"
)

// Event describes a change of a run. Range and Total are set for events
// raised by Range.
type Event struct {
	Kind         EventKind          `json:"kind"`
	RunID        string             `json:"run_id"`
	Status       Status             `json:"status"`
	Range        string             `json:"range,omitempty"`
	Cursor       int                `json:"cursor"`
	Total        int                `json:"total"`
	Checkpoint   int                `json:"checkpoint"`
	Accumulators map[string]float64 `json:"accumulators,omitempty"`
	Time         time.Time          `json:"time"`
}

// Reporter observes run events. Report is called synchronously from the
// goroutine driving the run and must not block for long.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev Event)

// Report implements Reporter.
func (f ReporterFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }
