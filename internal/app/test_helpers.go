package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/testutil"
)

// SetupAppTest creates an App over a workspace in a temporary directory.
// Log output is captured in the returned buffer and printed on request.
func SetupAppTest(t *testing.T, cfg Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	if cfg.WorkspacePath == "" {
		cfg.WorkspacePath = filepath.Join(t.TempDir(), "ws")
	}
	cfg.LogLevel = "debug"
	cfg.Quiet = true
	appCfg, err := NewConfig(cfg, nil)
	if err != nil {
		t.Fatalf("invalid test configuration: %v", err)
	}

	logBuffer := &testutil.SafeBuffer{}
	testApp, err := New(logBuffer, appCfg, nil, modules...)
	if err != nil {
		t.Fatalf("creating app: %v", err)
	}

	t.Cleanup(func() {
		if os.Getenv("FRET_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})
	return testApp, logBuffer
}
