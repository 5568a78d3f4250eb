package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/engine"
	"github.com/yxonic/fret/internal/report"
)

// RunOptions selects the run a command works on.
type RunOptions struct {
	// Entry is the workspace entry the run builds and records.
	Entry string
	// Tag prefixes generated run ids.
	Tag string
	// Resume picks up the most recent run with Tag instead of starting a
	// fresh one.
	Resume bool
	// NewPass starts another pass over a completed run.
	NewPass bool
	// Signals forwards SIGINT and SIGTERM to the run.
	Signals bool
}

// Session is an open run together with the resources the app attached to
// it.
type Session struct {
	Run *engine.Run
	// Logger writes to the run's log file.
	Logger *slog.Logger

	closers []func() error
}

// Close closes the run, then the reporters and the log file.
func (s *Session) Close() error {
	errs := []error{s.Run.Close()}
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	return errors.Join(errs...)
}

// StartRun opens the run selected by opts in the workspace, with its log
// file and the configured reporters attached.
func (a *App) StartRun(ctx context.Context, opts RunOptions) (*Session, error) {
	ctx = a.Context(ctx)
	logger := ctxlog.FromContext(ctx)

	ws, err := a.Workspace(ctx)
	if err != nil {
		return nil, err
	}
	fingerprint, err := ws.Fingerprint(opts.Entry)
	if err != nil {
		return nil, err
	}
	id, err := engine.ResolveID(ws, opts.Tag, opts.Resume, time.Now())
	if err != nil {
		return nil, err
	}

	s := &Session{}
	fail := func(err error) (*Session, error) {
		for i := len(s.closers) - 1; i >= 0; i-- {
			_ = s.closers[i]()
		}
		return nil, err
	}

	runLogger, closeLog, err := ws.Logger(id, func(w io.Writer) *slog.Logger {
		return NewLogger("debug", a.config.LogFormat, w)
	})
	if err != nil {
		return fail(err)
	}
	s.Logger = runLogger
	s.closers = append(s.closers, closeLog)
	logger.Debug("Run log opened.", "run", id, "path", ws.LogPath(id+".log"))

	reporters := []engine.Reporter{report.Log{Level: slog.LevelDebug}}
	if !a.config.Quiet {
		reporters = append(reporters, report.NewProgress(a.outW))
	}
	if a.config.ReportURL != "" {
		sio, err := report.DialSocketIO(ctx, report.SocketIOConfig{URL: a.config.ReportURL})
		if err != nil {
			return fail(fmt.Errorf("connecting run reporter: %w", err))
		}
		reporters = append(reporters, sio)
		s.closers = append(s.closers, sio.Close)
	}

	engineOpts := []engine.Option{
		engine.WithConfig(opts.Entry, fingerprint),
		engine.WithReporter(reporters...),
	}
	if opts.NewPass {
		engineOpts = append(engineOpts, engine.NewPass())
	}
	if opts.Signals {
		engineOpts = append(engineOpts, engine.WithSignals())
	}

	run, err := engine.Open(ctxlog.WithLogger(ctx, runLogger), ws, id, engineOpts...)
	if err != nil {
		return fail(err)
	}
	s.Run = run
	logger.Info("Run opened.", "run", id, "entry", opts.Entry, "status", run.Status())
	return s, nil
}
