package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/yxonic/fret/internal/interrupt"
)

// ErrInterrupted matches every error caused by a delivered interrupt.
var ErrInterrupted = interrupt.ErrInterrupted

// ErrClosed is returned by operations on a closed run.
var ErrClosed = errors.New("run is closed")

// InterruptedError reports an interrupt delivered at a checkpoint
// boundary. The checkpoint for Cursor has been written. It matches
// ErrInterrupted and context.Canceled.
type InterruptedError struct {
	RunID  string
	Range  string
	Cursor int
	// DuringCheckpoint is set when an interrupt arrived while the boundary
	// checkpoint was being written. The write completed before delivery.
	DuringCheckpoint bool
}

func (e *InterruptedError) Error() string {
	if e.Range == "" {
		return fmt.Sprintf("run %s interrupted", e.RunID)
	}
	return fmt.Sprintf("run %s interrupted after %s step %d", e.RunID, e.Range, e.Cursor)
}

func (e *InterruptedError) Unwrap() []error {
	return []error{interrupt.ErrInterrupted, context.Canceled}
}

// CheckpointWriteError is returned when a checkpoint could not be written.
// The record on disk is the one written by checkpoint number Recovery.
type CheckpointWriteError struct {
	RunID    string
	Recovery int
	Err      error
}

func (e *CheckpointWriteError) Error() string {
	return fmt.Sprintf("run %s: writing checkpoint failed, last good checkpoint is #%d: %v", e.RunID, e.Recovery, e.Err)
}

func (e *CheckpointWriteError) Unwrap() error { return e.Err }
