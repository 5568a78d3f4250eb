package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/engine"
)

type runsCmd struct{}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list the runs of the workspace" }
func (*runsCmd) Usage() string {
	return `Usage: fret runs

  List every run recorded in the workspace with its status and progress.
`
}

func (*runsCmd) SetFlags(*flag.FlagSet) {}

func (*runsCmd) Run(ctx context.Context, env *Env, f *flag.FlagSet) error {
	if f.NArg() > 0 {
		return usageError("runs takes no arguments")
	}
	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}
	recs, err := engine.ListRecords(ws)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(env.Out, "no runs")
		return nil
	}
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			rec.ID,
			renderStatus(string(rec.Status)),
			rec.Entry,
			fmt.Sprint(rec.Pass),
			fmt.Sprint(rec.Checkpoints),
			rec.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	renderTable(env.Out, []string{"RUN", "STATUS", "ENTRY", "PASS", "CHECKPOINTS", "UPDATED"}, rows)
	return nil
}

type statusCmd struct {
	watch bool
}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show the progress of a run" }
func (*statusCmd) Usage() string {
	return `Usage: fret status [-watch] RUN

  Print the status, cursors and accumulators of RUN. With -watch the
  status is printed again on every checkpoint until the run stops.

Flags:
`
}

func (c *statusCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.watch, "watch", false, "Follow the run until it is completed or interrupted.")
}

func (c *statusCmd) Run(ctx context.Context, env *Env, f *flag.FlagSet) error {
	if f.NArg() != 1 {
		return usageError("status takes exactly one run id")
	}
	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}
	id := f.Arg(0)
	if !c.watch {
		rec, err := engine.LoadRecord(ws, id)
		if err != nil {
			return err
		}
		printRecord(env, rec)
		return nil
	}
	return watchRecord(ctx, env, engine.RecordPath(ws, id))
}

// watchRecord prints the record at path whenever it is replaced, until the
// run stops or ctx is done. Records are replaced by rename, so the
// directory is watched rather than the file.
func watchRecord(ctx context.Context, env *Env, path string) error {
	logger := ctxlog.FromContext(ctx)
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching run: %w", err)
	}

	last := -1
	show := func() (bool, error) {
		rec, err := engine.ReadRecord(path)
		if err != nil {
			return false, err
		}
		if rec.Checkpoints != last {
			last = rec.Checkpoints
			printRecord(env, rec)
		}
		return rec.Status == engine.StatusCompleted || rec.Status == engine.StatusInterrupted, nil
	}
	if done, err := show(); err != nil || done {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			return err
		case ev, ok := <-w.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if filepath.Base(ev.Name) != filepath.Base(path) || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			logger.Debug("Run record changed.", "op", ev.Op.String())
			done, err := show()
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
}

func printRecord(env *Env, rec *engine.Record) {
	entry := rec.Entry
	if rec.Fingerprint != "" {
		entry += " (" + shortFingerprint(rec.Fingerprint) + ")"
	}
	fields := [][2]string{
		{"run", rec.ID},
		{"status", renderStatus(string(rec.Status))},
		{"entry", entry},
		{"pass", fmt.Sprint(rec.Pass)},
		{"checkpoints", fmt.Sprint(rec.Checkpoints)},
		{"updated", rec.UpdatedAt.Local().Format(time.DateTime)},
	}
	if len(rec.Cursors) > 0 {
		fields = append(fields, [2]string{"cursors", formatCursors(rec.Cursors)})
	}
	if len(rec.Accumulators) > 0 {
		fields = append(fields, [2]string{"accumulators", formatAccumulators(rec.Accumulators)})
	}
	renderFields(env.Out, fields)
}

func formatCursors(cursors map[string]int) string {
	names := make([]string, 0, len(cursors))
	for k := range cursors {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", k, cursors[k]))
	}
	return strings.Join(parts, " ")
}

func formatAccumulators(accs map[string]engine.AccumulatorState) string {
	names := make([]string, 0, len(accs))
	for k := range accs {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		a := accs[k]
		mean := 0.0
		if a.Count > 0 {
			mean = a.Value / float64(a.Count)
		}
		parts = append(parts, fmt.Sprintf("%s=%.4g (n=%d)", k, mean, a.Count))
	}
	return strings.Join(parts, " ")
}
