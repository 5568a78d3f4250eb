package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/hcl_adapter"
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/workspace"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	project  *Project
	config   *Config

	wsOnce sync.Once
	ws     *workspace.Workspace
	wsErr  error
}

// New is the constructor for the main application. It returns an App with
// its own isolated logger and registry. Without modules the core modules
// are registered.
func New(outW io.Writer, cfg *Config, project *Project, modules ...registry.Module) (*App, error) {
	logger := NewLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	if project == nil {
		project = &Project{}
	}

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if paths := project.ManifestPaths(); len(paths) > 0 {
		if err := reg.LoadManifests(ctx, hcl_adapter.NewLoader(), paths...); err != nil {
			return nil, fmt.Errorf("failed to load type manifests: %w", err)
		}
	}

	if err := reg.Validate(ctx); err != nil {
		return nil, err
	}
	logger.Debug("Registry validation passed.", "types", len(reg.Types()))

	return &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		project:  project,
		config:   cfg,
	}, nil
}

// Context returns ctx carrying the application logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Config returns the effective configuration.
func (a *App) Config() *Config { return a.config }

// Output returns the writer commands print to.
func (a *App) Output() io.Writer { return a.outW }

// Workspace opens the configured workspace on first use.
func (a *App) Workspace(ctx context.Context) (*workspace.Workspace, error) {
	a.wsOnce.Do(func() {
		defaults, err := a.project.DefaultValues()
		if err != nil {
			a.wsErr = err
			return
		}
		a.ws, a.wsErr = workspace.Open(a.Context(ctx), a.config.WorkspacePath, a.registry, workspace.WithDefaults(defaults))
	})
	return a.ws, a.wsErr
}
