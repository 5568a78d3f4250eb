package report

import (
	"context"
	"log/slog"

	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/engine"
)

// Log writes every event to the context logger at the given level.
type Log struct {
	Level slog.Level
}

// Report implements engine.Reporter.
func (l Log) Report(ctx context.Context, ev engine.Event) {
	ctxlog.FromContext(ctx).Log(ctx, l.Level, "Run event.",
		"kind", ev.Kind,
		"status", ev.Status,
		"range", ev.Range,
		"cursor", ev.Cursor,
		"total", ev.Total,
		"checkpoint", ev.Checkpoint,
		"accumulators", ev.Accumulators,
	)
}
