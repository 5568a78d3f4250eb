package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/fsutil"
	"github.com/yxonic/fret/internal/interrupt"
	"github.com/yxonic/fret/internal/state"
)

// Store locates run directories. *workspace.Workspace implements it.
type Store interface {
	SnapshotPath(elem ...string) string
}

// Option configures Open.
type Option func(*options)

type options struct {
	newPass     bool
	signals     bool
	entry       string
	fingerprint string
	reporters   []Reporter
	now         func() time.Time
	writeFile   func(path string, data []byte, perm os.FileMode) error
}

// NewPass reopens a completed run for another pass: cursors and
// accumulators start over, component state is kept.
func NewPass() Option {
	return func(o *options) { o.newPass = true }
}

// WithSignals forwards SIGINT and SIGTERM to the run's interrupt latch
// until the run is closed.
func WithSignals() Option {
	return func(o *options) { o.signals = true }
}

// WithConfig records the configuration the run works on. A resumed run
// whose fingerprint differs is logged as a warning.
func WithConfig(entry, fingerprint string) Option {
	return func(o *options) { o.entry, o.fingerprint = entry, fingerprint }
}

// WithReporter adds reporters notified of run events.
func WithReporter(rs ...Reporter) Option {
	return func(o *options) { o.reporters = append(o.reporters, rs...) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Run is one open run. Its methods are safe for concurrent use, but steps
// of a run are expected to be driven by a single goroutine.
type Run struct {
	id    string
	path  string
	ctx   context.Context
	latch *interrupt.Latch
	opts  options

	mu          sync.Mutex
	rec         *Record
	accs        map[string]*Accumulator
	comps       map[string]state.Component
	started     map[string]bool
	active      []string
	// nestedDone maps a finished inner range to its enclosing range.
	nestedDone  map[string]string
	interrupted *InterruptedError
	failed      error
	writeFailed bool
	closed      bool
	closeErr    error
	stopSignals func()
}

// Open loads the record of run id from store, or starts a fresh one. The
// returned run must be closed exactly once.
func Open(ctx context.Context, store Store, id string, opts ...Option) (*Run, error) {
	o := options{now: time.Now, writeFile: fsutil.WriteFileAtomic}
	for _, opt := range opts {
		opt(&o)
	}
	if id == "" {
		return nil, errors.New("run id must not be empty")
	}

	logger := ctxlog.FromContext(ctx).With("run", id)
	path := RecordPath(store, id)
	rec, err := ReadRecord(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rec = newRecord(id, o.now().UTC())
		rec.Entry, rec.Fingerprint = o.entry, o.fingerprint
		logger.Info("Starting fresh run.")
	case err != nil:
		return nil, err
	case rec.Status == StatusCompleted && o.newPass:
		rec.Pass++
		rec.Status = StatusResuming
		rec.Cursors = make(map[string]int)
		rec.Accumulators = make(map[string]AccumulatorState)
		logger.Info("Starting a new pass over a completed run.", "pass", rec.Pass)
	case rec.Status == StatusCompleted:
		logger.Info("Run is already completed.", "checkpoints", rec.Checkpoints)
	default:
		logger.Info("Resuming run.", "status", rec.Status, "checkpoints", rec.Checkpoints, "cursors", rec.Cursors)
		rec.Status = StatusResuming
	}
	if o.fingerprint != "" && rec.Fingerprint != "" && rec.Fingerprint != o.fingerprint {
		logger.Warn("Configuration changed since the run was started.", "entry", o.entry, "recorded", rec.Fingerprint, "current", o.fingerprint)
	}

	ctx = ctxlog.WithLogger(ctx, logger)
	ctx, latch := interrupt.WithLatch(ctx)
	r := &Run{
		id:         id,
		path:       path,
		ctx:        ctx,
		latch:      latch,
		opts:       o,
		rec:        rec,
		accs:       make(map[string]*Accumulator),
		comps:      make(map[string]state.Component),
		started:    make(map[string]bool),
		nestedDone: make(map[string]string),
	}
	if o.signals {
		r.stopSignals = latch.Notify()
	}
	return r, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Context returns the run's context. It is cancelled when an interrupt is
// delivered, with the *InterruptedError as cause, and when the run is
// closed.
func (r *Run) Context() context.Context { return r.ctx }

// Interrupt requests an interrupt, as a signal would.
func (r *Run) Interrupt() { r.latch.Interrupt() }

// Status returns the current status.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Status
}

// Record returns a copy of the last written record, or of the initial one
// before the first checkpoint.
func (r *Run) Record() *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.clone()
}

// Accumulator returns the accumulator called name, creating it with value
// initial unless the run already has one. Repeated calls return the same
// handle.
func (r *Run) Accumulator(name string, initial float64) *Accumulator {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accs[name]; ok {
		return a
	}
	a := &Accumulator{name: name, value: initial}
	if saved, ok := r.rec.Accumulators[name]; ok {
		a.value, a.count = saved.Value, saved.Count
	}
	r.accs[name] = a
	return a
}

// Register adds c to the components written with every checkpoint, under
// id. State saved for id by an earlier process is restored into c.
// Registering the same component under the same id again does nothing.
func (r *Run) Register(id string, c state.Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if prev, ok := r.comps[id]; ok {
		if state.Same(prev, c) {
			return nil
		}
		return fmt.Errorf("run %s: another component is already registered as %q", r.id, id)
	}
	for other, prev := range r.comps {
		if state.Same(prev, c) {
			return fmt.Errorf("run %s: component is already registered as %q", r.id, other)
		}
	}
	if saved, ok := r.rec.Components[id]; ok {
		if err := c.LoadStateDict(saved); err != nil {
			return fmt.Errorf("run %s: restoring component %q: %w", r.id, id, err)
		}
		ctxlog.FromContext(r.ctx).Debug("Restored component state.", "component", id, "fields", len(saved))
	}
	r.comps[id] = c
	return nil
}

// Cursor returns the persisted position of range name.
func (r *Run) Cursor(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec.Cursors[name]
}

// Range calls fn for i from 0 to n-1 and checkpoints after each call. The
// first Range of a name in a process starts at the persisted cursor, so
// steps that were checkpointed are never repeated; later calls of the same
// name start at 0, which is what nested loops need.
//
// If fn fails, the cursor is not advanced and the error is returned. If an
// interrupt was latched during a step, the checkpoint is written, the run
// becomes interrupted and an *InterruptedError is returned.
func (r *Run) Range(ctx context.Context, name string, n int, fn func(ctx context.Context, i int) error) error {
	logger := ctxlog.FromContext(r.ctx).With("range", name)
	r.mu.Lock()
	if err := r.usableLocked(); err != nil {
		r.mu.Unlock()
		return err
	}
	start := 0
	if !r.started[name] {
		start = r.rec.Cursors[name]
		r.started[name] = true
	}
	delete(r.nestedDone, name)
	done := r.rec.Status == StatusCompleted
	r.active = append(r.active, name)
	r.mu.Unlock()

	defer r.leaveRange(name, n)

	if done {
		logger.Debug("Run is completed, range yields nothing.")
		return nil
	}
	if start > 0 {
		logger.Info("Resuming range.", "from", start, "total", n)
	}
	r.report(Event{Kind: EventStart, Range: name, Cursor: start, Total: n})

	release := r.latch.Protect()
	defer release()
	for i := start; i < n; i++ {
		if err := r.ctx.Err(); err != nil {
			return context.Cause(r.ctx)
		}
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
		if err := fn(ctx, i); err != nil {
			if errors.Is(err, ErrInterrupted) {
				return err
			}
			r.mu.Lock()
			r.failed = err
			r.mu.Unlock()
			logger.Error("Step failed.", "step", i, "error", err)
			return err
		}
		if err := r.boundary(name, i+1, n); err != nil {
			return err
		}
	}
	return nil
}

func (r *Run) leaveRange(name string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k := len(r.active); k > 0 && r.active[k-1] == name {
		r.active = r.active[:k-1]
	}
	// A finished inner range starts over in the next iteration of the
	// enclosing one; its cursor is cleared at that range's boundary and
	// nowhere else.
	if k := len(r.active); k > 0 && r.rec.Cursors[name] >= n {
		r.nestedDone[name] = r.active[k-1]
	}
}

// Checkpoint writes a checkpoint outside of Range and delivers a latched
// interrupt like a range boundary does.
func (r *Run) Checkpoint() error {
	r.mu.Lock()
	err := r.usableLocked()
	r.mu.Unlock()
	if err != nil {
		return err
	}
	release := r.latch.Protect()
	defer release()
	return r.boundary("", 0, 0)
}

func (r *Run) usableLocked() error {
	switch {
	case r.closed:
		return ErrClosed
	case r.interrupted != nil:
		return r.interrupted
	case r.writeFailed:
		return r.failed
	}
	return nil
}

// boundary is called inside a protected region.
func (r *Run) boundary(name string, cursor, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.rec.clone()
	if name != "" {
		next.Cursors[name] = cursor
	}
	var cleared []string
	for inner, parent := range r.nestedDone {
		if name != "" && parent == name {
			delete(next.Cursors, inner)
			cleared = append(cleared, inner)
		}
	}
	next.Status = StatusRunning

	requests := r.latch.Requests()
	if err := r.writeLocked(next); err != nil {
		return err
	}
	for _, inner := range cleared {
		delete(r.nestedDone, inner)
	}
	during := r.latch.Requests() > requests
	r.reportLocked(Event{Kind: EventCheckpoint, Range: name, Cursor: cursor, Total: total})

	if !r.latch.Take() {
		return nil
	}

	interrupted := r.rec.clone()
	interrupted.Status = StatusInterrupted
	if err := r.writeLocked(interrupted); err != nil {
		return err
	}
	ierr := &InterruptedError{RunID: r.id, Range: name, Cursor: cursor, DuringCheckpoint: during}
	r.interrupted = ierr
	ctxlog.FromContext(r.ctx).Warn("Run interrupted at checkpoint.", "range", name, "cursor", cursor, "checkpoint", r.rec.Checkpoints)
	r.reportLocked(Event{Kind: EventInterrupted, Range: name, Cursor: cursor, Total: total})
	r.latch.Cancel(ierr)
	return ierr
}

// writeLocked collects accumulator and component state into next, writes
// it and makes it the current record. On failure the current record is
// kept and the run is marked failed.
func (r *Run) writeLocked(next *Record) error {
	for name, a := range r.accs {
		next.Accumulators[name] = a.snapshot()
	}
	for _, id := range sortedIDs(r.comps) {
		dict, err := r.comps[id].StateDict()
		if err != nil {
			return fmt.Errorf("run %s: extracting state of component %q: %w", r.id, id, err)
		}
		next.Components[id] = dict
	}
	next.Checkpoints = r.rec.Checkpoints + 1
	next.UpdatedAt = r.opts.now().UTC()

	release := r.latch.Protect()
	defer release()
	data, err := json.MarshalIndent(next, "", "  ")
	if err == nil {
		err = os.MkdirAll(filepath.Dir(r.path), 0o755)
	}
	if err == nil {
		err = r.opts.writeFile(r.path, data, 0o644)
	}
	if err != nil {
		werr := &CheckpointWriteError{RunID: r.id, Recovery: r.rec.Checkpoints, Err: err}
		r.failed, r.writeFailed = werr, true
		ctxlog.FromContext(r.ctx).Error("Checkpoint write failed.", "error", err, "recovery", r.rec.Checkpoints)
		return werr
	}
	r.rec = next
	ctxlog.FromContext(r.ctx).Debug("Checkpoint written.", "checkpoint", next.Checkpoints, "status", next.Status, "cursors", next.Cursors)
	return nil
}

// Close ends the run. Unless the run was interrupted, failed or cancelled
// by an unprotected interrupt, a final checkpoint marks it completed. A run
// whose step failed is checkpointed but stays resumable. Close may be
// called more than once; later calls return the result of the first.
func (r *Run) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.closeErr
	}
	r.closed = true
	if r.stopSignals != nil {
		r.stopSignals()
	}
	r.closeErr = r.finishLocked()
	r.latch.Cancel(ErrClosed)
	return r.closeErr
}

func (r *Run) finishLocked() error {
	logger := ctxlog.FromContext(r.ctx)
	switch {
	case r.interrupted != nil:
		logger.Info("Run closed after interrupt.", "checkpoints", r.rec.Checkpoints)
		return nil
	case r.writeFailed:
		return nil
	case errors.Is(context.Cause(r.ctx), interrupt.ErrInterrupted):
		logger.Warn("Run cancelled outside a checkpoint, keeping the last checkpoint.", "checkpoints", r.rec.Checkpoints)
		return nil
	}

	next := r.rec.clone()
	next.Status = StatusCompleted
	if r.failed != nil {
		next.Status = StatusRunning
	}
	if err := r.writeLocked(next); err != nil {
		return err
	}
	r.reportLocked(Event{Kind: EventClosed})
	logger.Info("Run closed.", "status", next.Status, "checkpoints", next.Checkpoints)
	return nil
}

func (r *Run) report(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reportLocked(ev)
}

func (r *Run) reportLocked(ev Event) {
	if len(r.opts.reporters) == 0 {
		return
	}
	ev.RunID = r.id
	ev.Status = r.rec.Status
	ev.Checkpoint = r.rec.Checkpoints
	ev.Time = r.opts.now().UTC()
	ev.Accumulators = make(map[string]float64, len(r.accs))
	for name, a := range r.accs {
		ev.Accumulators[name] = a.Value()
	}
	for _, rep := range r.opts.reporters {
		rep.Report(r.ctx, ev)
	}
}

func sortedIDs(m map[string]state.Component) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
