package report

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yxonic/fret/internal/engine"
	"github.com/yxonic/fret/internal/testutil"
)

func TestProgress(t *testing.T) {
	buf := &testutil.SafeBuffer{}
	p := NewProgress(buf)
	ctx := context.Background()

	p.Report(ctx, engine.Event{Kind: engine.EventStart, RunID: "exp", Range: "epoch", Cursor: 1, Total: 3})
	require.Contains(t, p.bars, "epoch")
	p.Report(ctx, engine.Event{Kind: engine.EventCheckpoint, Range: "epoch", Cursor: 2, Total: 3, Accumulators: map[string]float64{"loss": 0.5}})
	p.Report(ctx, engine.Event{Kind: engine.EventCheckpoint, Range: "epoch", Cursor: 3, Total: 3})
	assert.NotContains(t, p.bars, "epoch", "finished ranges drop their bar")

	p.Report(ctx, engine.Event{Kind: engine.EventStart, RunID: "exp", Range: "batch", Total: 10})
	p.Report(ctx, engine.Event{Kind: engine.EventClosed})
	assert.Empty(t, p.bars)
	assert.Contains(t, buf.String(), "exp epoch:")
}

func TestFormatAccumulators(t *testing.T) {
	assert.Equal(t, "acc=0.75 loss=2", formatAccumulators(map[string]float64{"loss": 2, "acc": 0.75}))
	assert.Empty(t, formatAccumulators(nil))
}

func TestLog(t *testing.T) {
	ctx, buf := testutil.Context(t)
	Log{}.Report(ctx, engine.Event{Kind: engine.EventCheckpoint, RunID: "exp", Range: "epoch", Cursor: 2})
	out := buf.String()
	assert.Contains(t, out, "kind=checkpoint")
	assert.Contains(t, out, "cursor=2")
}

func TestEventPayload(t *testing.T) {
	payload, err := eventPayload(engine.Event{Kind: engine.EventInterrupted, RunID: "exp", Cursor: 4})
	require.NoError(t, err)
	assert.Equal(t, "interrupted", payload["kind"])
	assert.Equal(t, "exp", payload["run_id"])
	assert.Equal(t, 4.0, payload["cursor"])
}

func TestDialSocketIOInvalidURL(t *testing.T) {
	ctx, _ := testutil.Context(t)
	for _, raw := range []string{"://bad", "localhost"} {
		_, err := DialSocketIO(ctx, SocketIOConfig{URL: raw})
		assert.Error(t, err, raw)
		assert.False(t, strings.Contains(err.Error(), "timed out"))
	}
}
