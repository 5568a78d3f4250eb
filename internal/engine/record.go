package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yxonic/fret/internal/state"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusFresh       Status = "fresh"
	StatusRunning     Status = "running"
	StatusResuming    Status = "resuming"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
)

// RecordFile is the name of the run record inside a run directory.
const RecordFile = "run.json"

// AccumulatorState is the persisted form of an accumulator.
type AccumulatorState struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Record is the persisted state of a run. Every write of a record is a
// complete checkpoint.
type Record struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	// Entry and Fingerprint identify the configuration the run was opened
	// with, when known.
	Entry       string `json:"entry,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	// Pass counts how often a completed run was reopened for a new pass.
	Pass         int                         `json:"pass"`
	Cursors      map[string]int              `json:"cursors"`
	Accumulators map[string]AccumulatorState `json:"accumulators"`
	Components   map[string]state.Dict       `json:"components"`
	Checkpoints  int                         `json:"checkpoints"`
	StartedAt    time.Time                   `json:"started_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func newRecord(id string, now time.Time) *Record {
	return &Record{
		ID:           id,
		Status:       StatusFresh,
		Cursors:      make(map[string]int),
		Accumulators: make(map[string]AccumulatorState),
		Components:   make(map[string]state.Dict),
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// clone copies the maps of r. Component dicts are shared; they are never
// modified in place.
func (r *Record) clone() *Record {
	c := *r
	c.Cursors = make(map[string]int, len(r.Cursors))
	for k, v := range r.Cursors {
		c.Cursors[k] = v
	}
	c.Accumulators = make(map[string]AccumulatorState, len(r.Accumulators))
	for k, v := range r.Accumulators {
		c.Accumulators[k] = v
	}
	c.Components = make(map[string]state.Dict, len(r.Components))
	for k, v := range r.Components {
		c.Components[k] = v
	}
	return &c
}

// ReadRecord reads the run record at path.
func ReadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding run record %s: %w", path, err)
	}
	if rec.Cursors == nil {
		rec.Cursors = make(map[string]int)
	}
	if rec.Accumulators == nil {
		rec.Accumulators = make(map[string]AccumulatorState)
	}
	if rec.Components == nil {
		rec.Components = make(map[string]state.Dict)
	}
	return &rec, nil
}

// RecordPath returns the location of the record of run id.
func RecordPath(store Store, id string) string {
	return store.SnapshotPath(id, RecordFile)
}

// LoadRecord reads the record of run id.
func LoadRecord(store Store, id string) (*Record, error) {
	rec, err := ReadRecord(RecordPath(store, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("run %q not found", id)
	}
	return rec, err
}

// ListRecords returns the records of all runs in store, sorted by id.
func ListRecords(store Store) ([]*Record, error) {
	matches, err := doublestar.FilepathGlob(store.SnapshotPath("*", RecordFile))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	recs := make([]*Record, 0, len(matches))
	for _, m := range matches {
		rec, err := ReadRecord(m)
		if err != nil {
			return nil, err
		}
		if rec.ID == "" {
			rec.ID = filepath.Base(filepath.Dir(m))
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
