package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yxonic/fret/internal/cli"
)

func runIn(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	full := append([]string{"-q", "-w", filepath.Join(dir, "ws")}, args...)
	err := run(context.Background(), out, full, dir)
	return out.String(), err
}

func TestRun_NoCommand(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}
	err := run(context.Background(), out, nil, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "train")
	assert.Contains(t, out.String(), "evaluate")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()
	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{"--this-is-not-a-valid-flag"}, t.TempDir())
	require.Error(t, err)
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestRun_TrainEvaluateSummarize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := runIn(t, dir, "train")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `entry "main" is not configured`)

	_, err = runIn(t, dir, "config", "main", "Linear", "epochs=3")
	require.NoError(t, err)

	out, err := runIn(t, dir, "train", "-save", "best")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, filepath.Join("snapshot", "main.best.snap"))

	out, err = runIn(t, dir, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "train-")

	// Resuming a completed run trains nothing and leaves it completed.
	out, err = runIn(t, dir, "train", "-resume")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")

	out, err = runIn(t, dir, "evaluate", "-load", "best")
	require.NoError(t, err)
	assert.Contains(t, out, "main: mse=")

	data, err := os.ReadFile(filepath.Join(dir, "ws", "result", "eval.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"snapshot":"best"`)
	assert.Contains(t, string(data), `"main.epochs":3`)

	out, err = runIn(t, dir, "summarize", "-columns", "loss")
	require.NoError(t, err)
	assert.Contains(t, out, "loss-")
}

func TestRun_EvaluateRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, err := runIn(t, dir, "config", "main", "Linear", "epochs=1")
	require.NoError(t, err)
	out, err := runIn(t, dir, "train", "-tag", "t")
	require.NoError(t, err)
	id := strings.Fields(out)[1]
	require.True(t, strings.HasPrefix(id, "t-"), "unexpected output %q", out)

	out, err = runIn(t, dir, "evaluate", "-run", id)
	require.NoError(t, err)
	assert.Contains(t, out, "mse=")

	_, err = runIn(t, dir, "evaluate", "-run", id, "-load", "x")
	require.Error(t, err)
}
