package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/hcl_adapter"
)

// Logger returns a logger that appends to log/<name>.log. newLogger builds
// it over the file, so the caller picks level and format; nil means a text
// handler at debug level. The returned function closes the file.
func (w *Workspace) Logger(name string, newLogger func(io.Writer) *slog.Logger) (*slog.Logger, func() error, error) {
	path := w.LogPath(name + ".log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	if newLogger == nil {
		newLogger = func(out io.Writer) *slog.Logger {
			return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	}
	return newLogger(f), f.Close, nil
}

// Reserved keys of a result line. All other keys are flattened
// configuration or caller supplied extras.
const (
	ResultMetricKey = "metrics"
	ResultValueKey  = "value"
	ResultTimeKey   = "time"
)

// NormalizeMetric returns metric with exactly one direction suffix: "-"
// if it already ended in "-" (lower is better), "+" otherwise.
func NormalizeMetric(metric string) string {
	desc := strings.HasSuffix(metric, "-")
	metric = strings.TrimRight(metric, "+-")
	if desc {
		return metric + "-"
	}
	return metric + "+"
}

// Record appends one measurement of entry to result/<file>.jsonl. The line
// holds the flattened configuration of entry, the normalized metric name,
// the value and any extra fields.
func (w *Workspace) Record(ctx context.Context, file, entry, metric string, value float64, extra map[string]any) error {
	line, err := w.Flatten(entry)
	if err != nil {
		return err
	}
	for k, v := range extra {
		line[k] = v
	}
	line[ResultMetricKey] = NormalizeMetric(metric)
	line[ResultValueKey] = value
	line[ResultTimeKey] = w.now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	path := w.ResultPath(file + ".jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening result file: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("writing result: %w", err)
	}
	ctxlog.FromContext(ctx).Debug("Recorded result.", "entry", entry, "file", path, "metric", line[ResultMetricKey], "value", value)
	return f.Close()
}

// Flatten returns the configuration under name and every entry it refers
// to as one map keyed by "<entry>.<param>", with native values.
func (w *Workspace) Flatten(name string) (map[string]any, error) {
	specs := w.specs()
	lookup := func(n string) (config.Spec, bool) {
		s, ok := specs[n]
		return s, ok
	}
	g, err := referenceGraph(name, lookup)
	if err != nil {
		return nil, err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, entry := range order {
		for _, p := range specs[entry].Params() {
			v, err := hcl_adapter.ToNative(p.Value)
			if err != nil {
				return nil, fmt.Errorf("flattening %s.%s: %w", entry, p.Name, err)
			}
			out[entry+"."+p.Name] = v
		}
	}
	return out, nil
}

// CleanOptions selects what Clean removes.
type CleanOptions struct {
	Config    bool
	Logs      bool
	Snapshots bool
	Results   bool
}

// Clean removes the selected parts of the workspace.
func (w *Workspace) Clean(ctx context.Context, opts CleanOptions) error {
	logger := ctxlog.FromContext(ctx)
	if opts.Config {
		w.mu.Lock()
		err := os.Remove(w.ConfigPath())
		if err == nil || os.IsNotExist(err) {
			w.order = nil
			w.entries = make(map[string]config.Spec)
			err = nil
		}
		w.mu.Unlock()
		if err != nil {
			return fmt.Errorf("removing configuration: %w", err)
		}
		logger.Info("Removed workspace configuration.", "path", w.ConfigPath())
	}
	for _, d := range []struct {
		on   bool
		path string
	}{
		{opts.Logs, w.LogPath()},
		{opts.Snapshots, w.SnapshotPath()},
		{opts.Results, w.ResultPath()},
	} {
		if !d.on {
			continue
		}
		if err := os.RemoveAll(d.path); err != nil {
			return fmt.Errorf("removing %s: %w", d.path, err)
		}
		logger.Info("Removed workspace directory.", "path", d.path)
	}
	return nil
}
