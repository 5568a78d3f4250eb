package cli

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yxonic/fret/internal/engine"
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/testutil"
)

type harness struct {
	t   *testing.T
	dir string
	ws  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	return &harness{t: t, dir: dir, ws: filepath.Join(dir, "ws")}
}

func (h *harness) run(ctx context.Context, args ...string) (string, error) {
	h.t.Helper()
	out := &testutil.SafeBuffer{}
	err := h.runTo(ctx, out, args...)
	return out.String(), err
}

func (h *harness) runTo(ctx context.Context, out *testutil.SafeBuffer, args ...string) error {
	full := append([]string{"-q", "-w", h.ws}, args...)
	return Run(ctx, out, full, Options{
		Modules: []registry.Module{testutil.ScenarioModule{}},
		Dir:     h.dir,
	})
}

// store locates run records the way the workspace does.
func (h *harness) SnapshotPath(elem ...string) string {
	return filepath.Join(append([]string{h.ws, "snapshot"}, elem...)...)
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	return exitErr.Code
}

func TestNoCommandPrintsUsage(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out, "config")
	assert.Contains(t, out, "summarize")
}

func TestUnknownFlag(t *testing.T) {
	out := &testutil.SafeBuffer{}
	err := Run(context.Background(), out, []string{"--this-is-not-a-valid-flag"}, Options{Dir: t.TempDir()})
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestQuietAndVerbose(t *testing.T) {
	h := newHarness(t)
	err := Run(context.Background(), &testutil.SafeBuffer{}, []string{"-q", "-v", "version"}, Options{Dir: h.dir})
	assert.Equal(t, 2, exitCode(t, err))
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestConfigCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.run(ctx, "config", "m", "Model")
	require.NoError(t, err)
	assert.Contains(t, out, `entry "m"`)
	assert.Contains(t, out, "value = 3")
	assert.Contains(t, out, "value = 4")

	out, err = h.run(ctx, "config", "m", "-x=5")
	require.NoError(t, err)
	assert.Contains(t, out, "value = 5")
	assert.Contains(t, out, "value = 4")

	_, err = h.run(ctx, "config", "sub", "A")
	require.NoError(t, err)
	out, err = h.run(ctx, "config", "b", "B", "--bar=7")
	require.NoError(t, err)
	assert.Contains(t, out, `entry "b"`)
	assert.Contains(t, out, `ref = "sub"`)

	out, err = h.run(ctx, "config")
	require.NoError(t, err)
	assert.Contains(t, out, `entry "m"`)
	assert.Contains(t, out, `entry "b"`)

	out, err = h.run(ctx, "config", "m")
	require.NoError(t, err)
	assert.Contains(t, out, "value = 5")
	assert.NotContains(t, out, `entry "b"`)

	_, err = h.run(ctx, "config", "-rm", "m")
	require.NoError(t, err)
	out, err = h.run(ctx, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, `entry "m"`)

	out, err = h.run(ctx, "config", "-rm", "sub")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: sub is still referenced by b")
}

func TestConfigErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	testCases := []struct {
		name     string
		args     []string
		code     int
		contains []string
	}{
		{
			name:     "not configured prints config usage",
			args:     []string{"config", "nope"},
			code:     1,
			contains: []string{"error:", `entry "nope" is not configured`, "Usage: fret config"},
		},
		{
			name:     "unknown parameter",
			args:     []string{"config", "m", "Model", "z=1"},
			code:     1,
			contains: []string{"z"},
		},
		{
			name:     "unknown type",
			args:     []string{"config", "m", "Nope"},
			code:     1,
			contains: []string{"Nope"},
		},
		{
			name:     "malformed override",
			args:     []string{"config", "m", "Model", "x=1", "-y"},
			code:     2,
			contains: []string{`override "-y" is not of the form KEY=VALUE`},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.run(ctx, tc.args...)
			assert.Equal(t, tc.code, exitCode(t, err))
			for _, s := range tc.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestConfigTypesAndDescribe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.run(ctx, "config", "-types")
	require.NoError(t, err)
	for _, typ := range []string{"Model", "A", "B", "Loop"} {
		assert.Contains(t, out, typ)
	}

	out, err = h.run(ctx, "config", "-describe", "B")
	require.NoError(t, err)
	assert.Contains(t, out, "submodule A")
	assert.Contains(t, out, "bar")

	out, err = h.run(ctx, "config", "-describe", "Model")
	require.NoError(t, err)
	assert.Contains(t, out, "state: steps")
}

func TestBuildCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.run(ctx, "build", "m")
	assert.Equal(t, 1, exitCode(t, err))

	_, err = h.run(ctx, "config", "m", "Model", "x=5")
	require.NoError(t, err)

	out, err := h.run(ctx, "build", "-save", "v1", "m")
	require.NoError(t, err)
	assert.Contains(t, out, "Model")
	assert.Contains(t, out, "state.steps")
	assert.Contains(t, out, filepath.Join("snapshot", "m.v1.snap"))

	out, err = h.run(ctx, "build", "-load", "v1")
	require.NoError(t, err)
	assert.Contains(t, out, "state.steps")

	_, err = h.run(ctx, "build", "-save", "a", "-load", "b")
	assert.Equal(t, 2, exitCode(t, err))
}

func TestRunsAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.run(ctx, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "no runs")

	run, err := engine.Open(ctx, h, "demo-20260101000000")
	require.NoError(t, err)
	loss := run.Accumulator("loss", 0)
	require.NoError(t, run.Range(run.Context(), "step", 2, func(context.Context, int) error {
		loss.Add(0.5)
		return nil
	}))
	require.NoError(t, run.Close())

	out, err = h.run(ctx, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, "demo-20260101000000")
	assert.Contains(t, out, "completed")

	out, err = h.run(ctx, "status", "demo-20260101000000")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "loss=0.5 (n=2)")

	_, err = h.run(ctx, "status", "missing")
	assert.Equal(t, 1, exitCode(t, err))
	_, err = h.run(ctx, "status")
	assert.Equal(t, 2, exitCode(t, err))
}

func TestStatusWatch(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	run, err := engine.Open(ctx, h, "watch-20260101000000")
	require.NoError(t, err)
	require.NoError(t, run.Checkpoint())

	out := &testutil.SafeBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- h.runTo(ctx, out, "status", "-watch", "watch-20260101000000")
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "running")
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, run.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("status -watch did not return after the run completed")
	}
	assert.Contains(t, out.String(), "completed")
}

func TestCleanCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.run(ctx, "clean")
	assert.Equal(t, 2, exitCode(t, err))

	_, err = h.run(ctx, "config", "m", "Model")
	require.NoError(t, err)
	_, err = h.run(ctx, "clean", "-all")
	require.NoError(t, err)

	out, err := h.run(ctx, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, `entry "m"`)
}

func TestSummarizeCommand(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	out, err := h.run(ctx, "summarize")
	require.NoError(t, err)
	assert.Contains(t, out, "no results")

	testutil.WriteFiles(t, h.ws, map[string]string{
		"result/eval.jsonl": `{"main.lr":0.1,"metrics":"acc","value":0.5}
{"main.lr":0.1,"metrics":"acc","value":0.7}
{"main.lr":0.01,"metrics":"acc","value":0.6}
`,
	})
	out, err = h.run(ctx, "summarize", "-format", "%.2f")
	require.NoError(t, err)
	assert.Contains(t, out, "acc+")
	assert.Contains(t, out, "0.70")
	assert.Contains(t, out, "0.60")

	out, err = h.run(ctx, "summarize", "-scheme", "mean", "-format", "%.2f")
	require.NoError(t, err)
	assert.Contains(t, out, "0.60")
	assert.NotContains(t, out, "0.70")

	_, err = h.run(ctx, "summarize", "-scheme", "median")
	assert.Equal(t, 2, exitCode(t, err))
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "fret ")
}

func TestParseOverrides(t *testing.T) {
	got, err := parseOverrides([]string{"a=1", "-b=x y", "--c=[1, 2]", "d="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x y", "c": "[1, 2]", "d": ""}, got)

	_, err = parseOverrides([]string{"a=1", "--a=2"})
	require.ErrorIs(t, err, ErrUsage)
	_, err = parseOverrides([]string{"=1"})
	require.ErrorIs(t, err, ErrUsage)
}
