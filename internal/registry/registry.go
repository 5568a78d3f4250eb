package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
)

// Constructor builds the object for a resolved configuration.
type Constructor func(ctx context.Context, args *Args) (any, error)

// Module is the interface that packages of configurable types implement to
// be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the type declarations and constructors for a single
// application instance.
type Registry struct {
	mu           sync.RWMutex
	definitions  map[string]*config.Definition
	constructors map[string]Constructor
}

// New creates a registry and registers the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{
		definitions:  make(map[string]*config.Definition),
		constructors: make(map[string]Constructor),
	}
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Define adds a type declaration. It panics if the type is already defined.
func (r *Registry) Define(def *config.Definition) {
	if err := r.add(def); err != nil {
		panic(err.Error())
	}
}

func (r *Registry) add(def *config.Definition) error {
	if def == nil || def.Type == "" {
		return fmt.Errorf("type definition must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[def.Type]; exists {
		return fmt.Errorf("type '%s' already defined", def.Type)
	}
	slog.Debug("Registering type definition.", "type", def.Type, "bases", def.Bases)
	r.definitions[def.Type] = def
	return nil
}

// RegisterConstructor binds a Go constructor to a name. It panics if the
// name is already taken.
func (r *Registry) RegisterConstructor(name string, fn Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		panic(fmt.Sprintf("constructor with name '%s' already registered", name))
	}
	slog.Debug("Registering constructor.", "name", name)
	r.constructors[name] = fn
}

// Definition returns the declaration of typ.
func (r *Registry) Definition(typ string) (*config.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[typ]
	return def, ok
}

// Constructor returns the constructor bound to typ.
func (r *Registry) Constructor(typ string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[typ]
	if !ok {
		return nil, false
	}
	fn, ok := r.constructors[def.ConstructorName()]
	return fn, ok
}

// Types returns all defined type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.definitions)
}

// LoadManifests reads type declarations through loader and adds them.
// Unlike Define, a duplicate declaration is reported as an error.
func (r *Registry) LoadManifests(ctx context.Context, loader config.Loader, paths ...string) error {
	logger := ctxlog.FromContext(ctx)
	defs, err := loader.Load(ctx, paths...)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := r.add(def); err != nil {
			return fmt.Errorf("loading manifests: %w", err)
		}
	}
	logger.Debug("Registry loaded manifests.", "definitions_loaded", len(defs))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
