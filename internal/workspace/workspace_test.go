package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/resolver"
	"github.com/yxonic/fret/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

func openTest(t *testing.T, opts ...Option) (context.Context, *Workspace) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	ws, err := Open(ctx, filepath.Join(t.TempDir(), "ws"), testutil.NewScenarioRegistry(), opts...)
	require.NoError(t, err)
	return ctx, ws
}

func TestOpenIsLazy(t *testing.T) {
	ctx, ws := openTest(t)
	_, err := os.Stat(ws.Path())
	assert.True(t, os.IsNotExist(err), "opening must not create the directory")

	_, err = ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model"})
	require.NoError(t, err)
	assert.FileExists(t, ws.ConfigPath())
}

func TestConfigureAndBuildModel(t *testing.T) {
	ctx, ws := openTest(t)

	_, err := ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model"})
	require.NoError(t, err)
	inst, err := ws.Build(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, &testutil.Model{X: 3, Y: 4}, inst.Value)

	_, err = ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model", Overrides: map[string]cty.Value{"x": cty.NumberIntVal(5)}})
	require.NoError(t, err)
	inst, err = ws.Build(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, &testutil.Model{X: 5, Y: 4}, inst.Value)
}

func TestConfigureIsDurable(t *testing.T) {
	ctx, ws := openTest(t)
	_, err := ws.Configure(ctx, resolver.Request{Name: "sub", Type: "A", Args: map[string]string{"foo": "baz"}})
	require.NoError(t, err)
	_, err = ws.Configure(ctx, resolver.Request{Name: "main", Type: "B"})
	require.NoError(t, err)

	reopened, err := Open(ctx, ws.Path(), testutil.NewScenarioRegistry())
	require.NoError(t, err)

	got, want := reopened.Entries(), ws.Entries()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Name, got[i].Name)
		assert.True(t, want[i].Spec.Equal(got[i].Spec), "entry %s: %s != %s", want[i].Name, want[i].Spec, got[i].Spec)
	}
	assert.Equal(t, string(ws.Document()), string(reopened.Document()))
}

func TestConfigureFailureLeavesWorkspaceUntouched(t *testing.T) {
	ctx, ws := openTest(t)
	_, err := ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model"})
	require.NoError(t, err)
	before := string(ws.Document())

	_, err = ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model", Args: map[string]string{"x": "1", "nope": "2"}})
	var unknown *resolver.UnknownParameterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Key)

	data, err := os.ReadFile(ws.ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, before, string(data))
	spec, _ := ws.Entry("main")
	x, _ := spec.Param("x")
	assert.True(t, x.RawEquals(cty.NumberIntVal(3)))
}

func TestConfigureKeepsTypeOnReconfigure(t *testing.T) {
	ctx, ws := openTest(t)
	_, err := ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model"})
	require.NoError(t, err)

	spec, err := ws.Configure(ctx, resolver.Request{Name: "main", Args: map[string]string{"y": "7"}})
	require.NoError(t, err)
	assert.Equal(t, "Model(x=3, y=7)", spec.String())

	_, err = ws.Configure(ctx, resolver.Request{Name: "other", Args: map[string]string{"y": "7"}})
	var nc *NotConfiguredError
	assert.ErrorAs(t, err, &nc)
}

func TestSubmoduleScenario(t *testing.T) {
	ctx, ws := openTest(t)

	_, err := ws.Configure(ctx, resolver.Request{Name: "main", Type: "B"})
	var missing *resolver.MissingSubmoduleError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "sub", missing.Entry)

	_, err = ws.Configure(ctx, resolver.Request{Name: "sub", Type: "A", Args: map[string]string{"foo": "baz"}})
	require.NoError(t, err)
	_, err = ws.Configure(ctx, resolver.Request{Name: "main", Type: "B"})
	require.NoError(t, err)

	inst, err := ws.Build(ctx, "main")
	require.NoError(t, err)
	b := inst.Value.(*testutil.B)
	assert.Equal(t, 3.0, b.Bar)
	require.NotNil(t, b.Sub)
	assert.Equal(t, "baz", b.Sub.Foo)
	assert.Same(t, b.Sub, inst.Subs["sub"].Value)
}

func TestBuildErrors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		ctx, ws := openTest(t)
		_, err := ws.Build(ctx, "main")
		var nc *NotConfiguredError
		require.ErrorAs(t, err, &nc)
		assert.EqualError(t, err, `entry "main" is not configured`)
	})

	t.Run("removed submodule", func(t *testing.T) {
		ctx, ws := openTest(t)
		_, err := ws.Configure(ctx, resolver.Request{Name: "sub", Type: "A"})
		require.NoError(t, err)
		_, err = ws.Configure(ctx, resolver.Request{Name: "main", Type: "B"})
		require.NoError(t, err)
		require.NoError(t, ws.Remove(ctx, "sub"))

		_, err = ws.Build(ctx, "main")
		var nc *NotConfiguredError
		require.ErrorAs(t, err, &nc)
		assert.Equal(t, "sub", nc.Name)
	})

	t.Run("self reference", func(t *testing.T) {
		ctx, ws := openTest(t)
		_, err := ws.Configure(ctx, resolver.Request{Name: "loop", Type: "Loop", Args: map[string]string{"next": "loop"}})
		require.NoError(t, err)

		_, err = ws.Build(ctx, "loop")
		var cyc *CyclicSubmoduleError
		require.ErrorAs(t, err, &cyc)
		assert.Equal(t, []string{"loop", "loop"}, cyc.Cycle)
	})

	t.Run("two entry cycle", func(t *testing.T) {
		ctx, ws := openTest(t)
		for _, step := range []struct{ name, next string }{{"a", "a"}, {"b", "a"}, {"a", "b"}} {
			_, err := ws.Configure(ctx, resolver.Request{Name: step.name, Type: "Loop", Args: map[string]string{"next": step.next}})
			require.NoError(t, err)
		}

		_, err := ws.Build(ctx, "a")
		var cyc *CyclicSubmoduleError
		require.ErrorAs(t, err, &cyc)
		assert.Equal(t, []string{"a", "b", "a"}, cyc.Cycle)
		assert.EqualError(t, err, "cyclic submodule references: a -> b -> a")

		_, err = ws.Fingerprint("a")
		assert.ErrorAs(t, err, &cyc)
	})
}

func TestEqualAndFingerprint(t *testing.T) {
	ctx, ws := openTest(t)
	configure := func(name, typ string, args map[string]string) {
		t.Helper()
		_, err := ws.Configure(ctx, resolver.Request{Name: name, Type: typ, Args: args})
		require.NoError(t, err)
	}
	configure("sub", "A", map[string]string{"foo": "baz"})
	configure("other", "A", map[string]string{"foo": "baz"})
	configure("third", "A", nil)
	configure("b1", "B", nil)
	configure("b2", "B", map[string]string{"sub": "other"})
	configure("b3", "B", map[string]string{"sub": "third"})

	eq, err := ws.Equal("b1", "b2")
	require.NoError(t, err)
	assert.True(t, eq, "references with equal content are equal")

	eq, err = ws.Equal("b1", "b3")
	require.NoError(t, err)
	assert.False(t, eq)

	f1, err := ws.Fingerprint("b1")
	require.NoError(t, err)
	f2, err := ws.Fingerprint("b2")
	require.NoError(t, err)
	f3, err := ws.Fingerprint("b3")
	require.NoError(t, err)
	assert.Equal(t, f1, f2)
	assert.NotEqual(t, f1, f3)
	assert.Len(t, f1, 64)

	_, err = ws.Equal("b1", "nope")
	var nc *NotConfiguredError
	assert.ErrorAs(t, err, &nc)
}

type looseModule struct{}

func (looseModule) Register(r *registry.Registry) {
	registry.Declare("Loose").
		Param("v", cty.DynamicPseudoType, cty.NumberIntVal(3)).
		Param("note", cty.String, cty.StringVal("")).
		Construct(func(context.Context, *registry.Args) (any, error) { return struct{}{}, nil }).
		Register(r)
}

func TestFingerprintDistinguishesValues(t *testing.T) {
	ctx, _ := testutil.Context(t)
	reg := registry.New(testutil.ScenarioModule{}, looseModule{})
	ws, err := Open(ctx, filepath.Join(t.TempDir(), "ws"), reg)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		a, b      map[string]cty.Value
		wantEqual bool
	}{
		{
			name: "number and string of the same text",
			a:    nil,
			b:    map[string]cty.Value{"v": cty.StringVal("3")},
		},
		{
			name: "separators inside strings",
			a:    map[string]cty.Value{"v": cty.StringVal("1, note=x"), "note": cty.StringVal("")},
			b:    map[string]cty.Value{"v": cty.StringVal("1"), "note": cty.StringVal("x, note=")},
		},
		{
			name:      "same values",
			a:         map[string]cty.Value{"v": cty.True},
			b:         map[string]cty.Value{"v": cty.True},
			wantEqual: true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ws.Configure(ctx, resolver.Request{Name: "a", Type: "Loose", Overrides: tc.a})
			require.NoError(t, err)
			_, err = ws.Configure(ctx, resolver.Request{Name: "b", Type: "Loose", Overrides: tc.b})
			require.NoError(t, err)

			eq, err := ws.Equal("a", "b")
			require.NoError(t, err)
			fa, err := ws.Fingerprint("a")
			require.NoError(t, err)
			fb, err := ws.Fingerprint("b")
			require.NoError(t, err)

			assert.Equal(t, tc.wantEqual, eq)
			assert.Equal(t, eq, fa == fb, "fingerprints agree with Equal")
		})
	}
}

func TestFlattenAndRecord(t *testing.T) {
	ctx, ws := openTest(t)
	_, err := ws.Configure(ctx, resolver.Request{Name: "sub", Type: "A"})
	require.NoError(t, err)
	_, err = ws.Configure(ctx, resolver.Request{Name: "main", Type: "B"})
	require.NoError(t, err)

	flat, err := ws.Flatten("main")
	require.NoError(t, err)
	if diff := cmp.Diff(map[string]any{"main.bar": 3.0, "sub.foo": "bar"}, flat); diff != "" {
		t.Errorf("Flatten() mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, ws.Record(ctx, "eval", "main", "acc", 0.5, nil))
	require.NoError(t, ws.Record(ctx, "eval", "main", "loss-", 0.75, map[string]any{"run": "r1"}))
	data, err := os.ReadFile(ws.ResultPath("eval.jsonl"))
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "loss-", second["metrics"])
	assert.Equal(t, 0.75, second["value"])
	assert.Equal(t, "r1", second["run"])
	assert.Equal(t, "bar", second["sub.foo"])
}

func TestNormalizeMetric(t *testing.T) {
	for in, want := range map[string]string{"acc": "acc+", "acc+": "acc+", "loss-": "loss-", "x+-": "x-"} {
		assert.Equal(t, want, NormalizeMetric(in), in)
	}
}

func TestDependents(t *testing.T) {
	ctx, buf := testutil.Context(t)
	ws, err := Open(ctx, filepath.Join(t.TempDir(), "ws"), testutil.NewScenarioRegistry())
	require.NoError(t, err)
	for _, req := range []resolver.Request{
		{Name: "sub", Type: "A"},
		{Name: "b2", Type: "B"},
		{Name: "b1", Type: "B"},
		{Name: "loop", Type: "Loop", Args: map[string]string{"next": "loop"}},
	} {
		_, err := ws.Configure(ctx, req)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"b1", "b2"}, ws.Dependents("sub"))
	assert.Empty(t, ws.Dependents("b1"))
	assert.Empty(t, ws.Dependents("loop"), "self references are not dependents")
	assert.Empty(t, ws.Dependents("nope"))

	require.NoError(t, ws.Remove(ctx, "sub"))
	assert.Contains(t, buf.String(), "Removed entry is still referenced.")
	assert.Equal(t, []string{"b1", "b2"}, ws.Dependents("sub"), "dangling references still count")
}

func TestRemoveAndClean(t *testing.T) {
	ctx, ws := openTest(t)
	_, err := ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model"})
	require.NoError(t, err)

	err = ws.Remove(ctx, "nope")
	var nc *NotConfiguredError
	assert.ErrorAs(t, err, &nc)

	logger, closeLog, err := ws.Logger("main", nil)
	require.NoError(t, err)
	logger.Info("hello")
	require.NoError(t, closeLog())
	assert.FileExists(t, ws.LogPath("main.log"))

	logger, closeLog, err = ws.Logger("main", func(w io.Writer) *slog.Logger {
		return slog.New(slog.NewJSONHandler(w, nil))
	})
	require.NoError(t, err)
	logger.Info("again")
	require.NoError(t, closeLog())
	data, err := os.ReadFile(ws.LogPath("main.log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2, "the log file is appended to")
	assert.Contains(t, lines[0], "msg=hello")
	assert.True(t, json.Valid([]byte(lines[1])), "second line is json: %s", lines[1])

	require.NoError(t, ws.Clean(ctx, CleanOptions{Logs: true}))
	assert.NoDirExists(t, ws.LogPath())
	assert.True(t, ws.Has("main"))

	require.NoError(t, ws.Clean(ctx, CleanOptions{Config: true}))
	assert.False(t, ws.Has("main"))
	assert.NoFileExists(t, ws.ConfigPath())
	assert.Empty(t, ws.Entries())
}

func TestProjectDefaults(t *testing.T) {
	ctx, ws := openTest(t, WithDefaults(map[string]map[string]cty.Value{
		"Model": {"y": cty.NumberIntVal(10)},
	}))
	spec, err := ws.Configure(ctx, resolver.Request{Name: "main", Type: "Model"})
	require.NoError(t, err)
	assert.Equal(t, "Model(x=3, y=10)", spec.String())
}
