package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yxonic/fret/internal/engine"
	"github.com/yxonic/fret/internal/resolver"
	"github.com/yxonic/fret/internal/testutil"
	"github.com/yxonic/fret/modules/counter"
	"github.com/yxonic/fret/modules/linear"
)

func TestNewConfig(t *testing.T) {
	project := &Project{Dir: "/proj", Workspace: "runs", LogLevel: "debug", LogFormat: "json"}

	testCases := []struct {
		name    string
		in      Config
		project *Project
		want    Config
		wantErr string
	}{
		{
			name: "defaults without project",
			want: Config{WorkspacePath: DefaultWorkspace, LogLevel: "info", LogFormat: "text"},
		},
		{
			name:    "project fills unset fields",
			project: project,
			want:    Config{WorkspacePath: filepath.Join("/proj", "runs"), LogLevel: "debug", LogFormat: "json"},
		},
		{
			name:    "flags win over project",
			in:      Config{WorkspacePath: "other", LogLevel: "WARN"},
			project: project,
			want:    Config{WorkspacePath: "other", LogLevel: "warn", LogFormat: "json"},
		},
		{
			name:    "invalid format",
			in:      Config{LogFormat: "xml"},
			wantErr: "invalid log format",
		},
		{
			name:    "invalid level",
			in:      Config{LogLevel: "loud"},
			wantErr: "invalid log level",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NewConfig(tc.in, tc.project)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestLoadProject(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		ProjectFile: `
workspace: experiments
log_level: debug
manifests: [types]
defaults:
  Linear:
    epochs: 3
    lr: 0.5
`,
		"sub/dir/.keep": "",
	})

	p, err := LoadProject(filepath.Join(root, "sub", "dir"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "experiments"), p.WorkspacePath())
	assert.Equal(t, []string{filepath.Join(root, "types")}, p.ManifestPaths())
	assert.Equal(t, "debug", p.LogLevel)

	defaults, err := p.DefaultValues()
	require.NoError(t, err)
	epochs, _ := defaults["Linear"]["epochs"].AsBigFloat().Int64()
	assert.Equal(t, int64(3), epochs)
	lr, _ := defaults["Linear"]["lr"].AsBigFloat().Float64()
	assert.Equal(t, 0.5, lr)
}

func TestLoadProjectMissing(t *testing.T) {
	dir := t.TempDir()
	p, err := LoadProject(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultWorkspace), p.WorkspacePath())

	_, err = ReadProject(filepath.Join(dir, ProjectFile))
	require.ErrorContains(t, err, "does not exist")
}

func TestNewLoadsManifestsAndDefaults(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"types/big.hcl": `
module "BigLinear" {
  extends     = ["Linear"]
  constructor = "Linear"

  param "batch_size" {
    type    = number
    default = 16
  }
}
`,
	})
	project := &Project{
		Dir:       root,
		Manifests: []string{"types"},
		Defaults:  map[string]map[string]any{"BigLinear": {"epochs": 2}},
	}
	cfg, err := NewConfig(Config{}, project)
	require.NoError(t, err)

	buf := &testutil.SafeBuffer{}
	a, err := New(buf, cfg, project)
	require.NoError(t, err)
	_, ok := a.Registry().Definition("BigLinear")
	require.True(t, ok)

	ctx := context.Background()
	ws, err := a.Workspace(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, DefaultWorkspace), ws.Path())

	spec, err := ws.Configure(ctx, resolver.Request{Name: "big", Type: "BigLinear"})
	require.NoError(t, err)
	batch, _ := spec.Param("batch_size")
	epochs, _ := spec.Param("epochs")
	b, _ := batch.AsBigFloat().Int64()
	e, _ := epochs.AsBigFloat().Int64()
	assert.Equal(t, int64(16), b)
	assert.Equal(t, int64(2), e)

	inst, err := ws.Build(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, 16, inst.Value.(*linear.Linear).BatchSize)
}

func TestNewRejectsInvalidRegistry(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFiles(t, root, map[string]string{
		"types/bad.hcl": `
module "Orphan" {
  constructor = "Missing"
}
`,
	})
	cfg, err := NewConfig(Config{}, nil)
	require.NoError(t, err)

	_, err = New(&testutil.SafeBuffer{}, cfg, &Project{Dir: root, Manifests: []string{"types"}})
	require.ErrorContains(t, err, "no constructor registered under 'Missing'")
}

func TestStartRunLogFormat(t *testing.T) {
	a, _ := SetupAppTest(t, Config{LogFormat: "json"}, &counter.Module{})
	ctx := a.Context(context.Background())

	ws, err := a.Workspace(ctx)
	require.NoError(t, err)
	_, err = ws.Configure(ctx, resolver.Request{Name: "cnt", Type: "Counter"})
	require.NoError(t, err)
	s, err := a.StartRun(ctx, RunOptions{Entry: "cnt", Tag: "fmt"})
	require.NoError(t, err)
	require.NoError(t, s.Run.Range(s.Run.Context(), "step", 2, func(context.Context, int) error { return nil }))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(ws.LogPath(s.Run.ID() + ".log"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), "not a json line: %s", line)
	}
}

func TestStartRun(t *testing.T) {
	a, logs := SetupAppTest(t, Config{}, &counter.Module{})
	ctx := a.Context(context.Background())

	ws, err := a.Workspace(ctx)
	require.NoError(t, err)
	_, err = ws.Configure(ctx, resolver.Request{Name: "cnt", Type: "Counter"})
	require.NoError(t, err)
	inst, err := ws.Build(ctx, "cnt")
	require.NoError(t, err)

	s, err := a.StartRun(ctx, RunOptions{Entry: "cnt", Tag: "t"})
	require.NoError(t, err)
	require.NoError(t, s.Run.Register("cnt", inst))

	c := inst.Value.(*counter.Counter)
	err = s.Run.Range(s.Run.Context(), "step", 3, func(context.Context, int) error {
		c.Inc()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	rec, err := engine.LoadRecord(ws, s.Run.ID())
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, rec.Status)
	assert.Equal(t, "cnt", rec.Entry)
	assert.Contains(t, logs.String(), "Run opened.")

	_, err = os.Stat(ws.LogPath(s.Run.ID() + ".log"))
	assert.NoError(t, err)
}
