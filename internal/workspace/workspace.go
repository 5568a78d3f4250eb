package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/fsutil"
	"github.com/yxonic/fret/internal/hcl_adapter"
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/resolver"
	"github.com/zclconf/go-cty/cty"
)

const (
	// ConfigFile is the name of the entry document inside a workspace.
	ConfigFile = "config.hcl"

	snapshotDir = "snapshot"
	logDir      = "log"
	resultDir   = "result"
)

// Registry provides type declarations and constructors.
// *registry.Registry implements it.
type Registry interface {
	resolver.Source
	Constructor(typ string) (registry.Constructor, bool)
}

// Workspace is a directory-backed store of configuration entries.
type Workspace struct {
	path string
	reg  Registry
	res  *resolver.Resolver
	now  func() time.Time

	mu      sync.RWMutex
	order   []string
	entries map[string]config.Spec
}

// Option configures a Workspace.
type Option func(*workspaceOptions)

type workspaceOptions struct {
	defaults map[string]map[string]cty.Value
	now      func() time.Time
}

// WithDefaults installs project-level defaults, keyed by type name. They
// apply on top of declared defaults and below explicit overrides.
func WithDefaults(defaults map[string]map[string]cty.Value) Option {
	return func(o *workspaceOptions) {
		o.defaults = defaults
	}
}

// WithClock replaces time.Now for timestamps written by the workspace.
func WithClock(now func() time.Time) Option {
	return func(o *workspaceOptions) {
		o.now = now
	}
}

// Open returns the workspace at path. The directory is created lazily by
// the first write; an existing config.hcl is loaded.
func Open(ctx context.Context, path string, reg Registry, opts ...Option) (*Workspace, error) {
	logger := ctxlog.FromContext(ctx)
	o := workspaceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace path %q: %w", path, err)
	}
	w := &Workspace{
		path:    abs,
		reg:     reg,
		res:     resolver.New(reg, resolver.WithDefaults(o.defaults)),
		now:     o.now,
		entries: make(map[string]config.Spec),
	}

	src, err := os.ReadFile(w.ConfigPath())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Debug("Workspace has no configuration yet.", "path", abs)
		return w, nil
	case err != nil:
		return nil, fmt.Errorf("reading workspace configuration: %w", err)
	}

	entries, err := hcl_adapter.DecodeEntries(ctx, src, w.ConfigPath())
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		w.order = append(w.order, e.Name)
		w.entries[e.Name] = e.Spec
	}
	logger.Debug("Opened workspace.", "path", abs, "entries", len(entries))
	return w, nil
}

// Path returns the absolute workspace directory.
func (w *Workspace) Path() string { return w.path }

// ConfigPath returns the path of config.hcl.
func (w *Workspace) ConfigPath() string { return filepath.Join(w.path, ConfigFile) }

// SnapshotPath joins elem under the snapshot directory.
func (w *Workspace) SnapshotPath(elem ...string) string { return w.sub(snapshotDir, elem) }

// LogPath joins elem under the log directory.
func (w *Workspace) LogPath(elem ...string) string { return w.sub(logDir, elem) }

// ResultPath joins elem under the result directory.
func (w *Workspace) ResultPath(elem ...string) string { return w.sub(resultDir, elem) }

func (w *Workspace) sub(dir string, elem []string) string {
	return filepath.Join(append([]string{w.path, dir}, elem...)...)
}

// Resolver returns the resolver used by Configure.
func (w *Workspace) Resolver() *resolver.Resolver { return w.res }

// Entries returns all entries in document order.
func (w *Workspace) Entries() []config.Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]config.Entry, 0, len(w.order))
	for _, name := range w.order {
		out = append(out, config.Entry{Name: name, Spec: w.entries[name]})
	}
	return out
}

// Entry returns the spec stored under name.
func (w *Workspace) Entry(name string) (config.Spec, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	spec, ok := w.entries[name]
	return spec, ok
}

// Has reports whether name is configured.
func (w *Workspace) Has(name string) bool {
	_, ok := w.Entry(name)
	return ok
}

// Document returns the current config.hcl content.
func (w *Workspace) Document() []byte {
	return hcl_adapter.EncodeEntries(w.Entries())
}

// Configure resolves req and stores the result under req.Name, together
// with any auto-built submodule entries. The document is written before
// the in-memory view changes; on error neither changes.
func (w *Workspace) Configure(ctx context.Context, req resolver.Request) (config.Spec, error) {
	logger := ctxlog.FromContext(ctx)
	if req.Name == "" {
		return config.Spec{}, errors.New("entry name must not be empty")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if req.Type == "" {
		existing, ok := w.entries[req.Name]
		if !ok {
			return config.Spec{}, &NotConfiguredError{Name: req.Name}
		}
		req.Type = existing.Type()
	}

	lookup := resolver.LookupFunc(func(name string) bool {
		_, ok := w.entries[name]
		return ok
	})
	res, err := w.res.Resolve(ctx, req, lookup)
	if err != nil {
		return config.Spec{}, err
	}

	order := slices.Clone(w.order)
	entries := make(map[string]config.Spec, len(w.entries)+len(res.Implicit)+1)
	for k, v := range w.entries {
		entries[k] = v
	}
	put := func(name string, spec config.Spec) {
		if _, ok := entries[name]; !ok {
			order = append(order, name)
		}
		entries[name] = spec
	}
	for _, e := range res.Implicit {
		put(e.Name, e.Spec)
		logger.Info("Configured implicit submodule entry.", "entry", e.Name, "spec", e.Spec.String())
	}
	put(req.Name, res.Spec)

	if err := w.persist(order, entries); err != nil {
		return config.Spec{}, err
	}
	w.order, w.entries = order, entries
	logger.Info("Configured entry.", "entry", req.Name, "spec", res.Spec.String())
	return res.Spec, nil
}

// Remove deletes the entry name. References to it from other entries are
// left in place and fail at build time.
func (w *Workspace) Remove(ctx context.Context, name string) error {
	logger := ctxlog.FromContext(ctx)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entries[name]; !ok {
		return &NotConfiguredError{Name: name}
	}
	if refs := dependents(w.entries, name); len(refs) > 0 {
		logger.Warn("Removed entry is still referenced.", "entry", name, "referenced_by", refs)
	}
	order := slices.DeleteFunc(slices.Clone(w.order), func(n string) bool { return n == name })
	entries := make(map[string]config.Spec, len(w.entries))
	for k, v := range w.entries {
		if k != name {
			entries[k] = v
		}
	}
	if err := w.persist(order, entries); err != nil {
		return err
	}
	w.order, w.entries = order, entries
	logger.Info("Removed entry.", "entry", name)
	return nil
}

func (w *Workspace) persist(order []string, entries map[string]config.Spec) error {
	list := make([]config.Entry, 0, len(order))
	for _, name := range order {
		list = append(list, config.Entry{Name: name, Spec: entries[name]})
	}
	if err := os.MkdirAll(w.path, 0o755); err != nil {
		return fmt.Errorf("creating workspace directory: %w", err)
	}
	if err := fsutil.WriteFileAtomic(w.ConfigPath(), hcl_adapter.EncodeEntries(list), 0o644); err != nil {
		return fmt.Errorf("writing workspace configuration: %w", err)
	}
	return nil
}

// specs returns a consistent copy of the entries for use without the lock.
func (w *Workspace) specs() map[string]config.Spec {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]config.Spec, len(w.entries))
	for k, v := range w.entries {
		out[k] = v
	}
	return out
}
