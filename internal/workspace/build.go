package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/dag"
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/state"
	"github.com/zclconf/go-cty/cty"
)

// Instance is a built entry: its configuration, the constructed object and
// the built submodules keyed by parameter name. An Instance is a
// state.Component over the object's declared state fields.
type Instance struct {
	Name   string
	Spec   config.Spec
	Value  any
	States []string
	Subs   map[string]*Instance
}

// StateDict implements state.Component.
func (i *Instance) StateDict() (map[string]cty.Value, error) {
	return state.Of(i.Value, i.States).StateDict()
}

// LoadStateDict implements state.Component.
func (i *Instance) LoadStateDict(s map[string]cty.Value) error {
	return state.Of(i.Value, i.States).LoadStateDict(s)
}

// Entries returns the instance and its submodules as configuration
// entries, each name once, the instance first.
func (i *Instance) Entries() []config.Entry {
	var out []config.Entry
	seen := make(map[string]bool)
	var walk func(*Instance)
	walk = func(in *Instance) {
		if seen[in.Name] {
			return
		}
		seen[in.Name] = true
		out = append(out, config.Entry{Name: in.Name, Spec: in.Spec})
		for _, r := range in.Spec.Refs() {
			if sub, ok := in.Subs[r.Param]; ok {
				walk(sub)
			}
		}
	}
	walk(i)
	return out
}

// Build constructs the object configured under name. Submodules are built
// first; an entry referenced more than once is built once per call.
func (w *Workspace) Build(ctx context.Context, name string) (*Instance, error) {
	specs := w.specs()
	return w.build(ctx, name, func(n string) (config.Spec, bool) {
		s, ok := specs[n]
		return s, ok
	})
}

func (w *Workspace) build(ctx context.Context, name string, lookup func(string) (config.Spec, bool)) (*Instance, error) {
	if _, err := referenceGraph(name, lookup); err != nil {
		return nil, err
	}
	b := &builder{w: w, lookup: lookup, built: make(map[string]*Instance)}
	return b.build(ctx, name)
}

// referenceGraph collects the entries reachable from root. An edge runs
// from a referenced entry to the entry referring to it.
func referenceGraph(root string, lookup func(string) (config.Spec, bool)) (*dag.Graph, error) {
	g := dag.New()
	queue := []string{root}
	g.AddNode(root)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		spec, ok := lookup(name)
		if !ok {
			return nil, &NotConfiguredError{Name: name}
		}
		for _, r := range spec.Refs() {
			if !g.Has(r.Entry) {
				g.AddNode(r.Entry)
				queue = append(queue, r.Entry)
			}
			if err := g.AddEdge(r.Entry, name); err != nil {
				return nil, err
			}
		}
	}

	var cycleErr *dag.CycleError
	if err := g.DetectCycles(); errors.As(err, &cycleErr) {
		return nil, &CyclicSubmoduleError{Cycle: cycleErr.Path}
	} else if err != nil {
		return nil, err
	}
	return g, nil
}

// Dependents returns the entries that refer to name directly, sorted.
func (w *Workspace) Dependents(name string) []string {
	return dependents(w.specs(), name)
}

func dependents(entries map[string]config.Spec, name string) []string {
	g := dag.New()
	g.AddNode(name)
	for n, spec := range entries {
		g.AddNode(n)
		for _, r := range spec.Refs() {
			if r.Entry == n {
				continue
			}
			g.AddNode(r.Entry)
			// Edges only join existing nodes, so this cannot fail.
			_ = g.AddEdge(r.Entry, n)
		}
	}
	refs, _ := g.Dependents(name)
	return refs
}

type builder struct {
	w      *Workspace
	lookup func(string) (config.Spec, bool)
	built  map[string]*Instance
}

func (b *builder) build(ctx context.Context, name string) (*Instance, error) {
	if inst, ok := b.built[name]; ok {
		return inst, nil
	}
	logger := ctxlog.FromContext(ctx)
	spec, ok := b.lookup(name)
	if !ok {
		return nil, &NotConfiguredError{Name: name}
	}

	inst := &Instance{Name: name, Spec: spec, Subs: make(map[string]*Instance)}
	objs := make(map[string]any)
	for _, r := range spec.Refs() {
		sub, err := b.build(ctx, r.Entry)
		if err != nil {
			return nil, err
		}
		inst.Subs[r.Param] = sub
		objs[r.Param] = sub.Value
	}

	info, err := b.w.res.Inspect(spec.Type())
	if err != nil {
		return nil, fmt.Errorf("building %q: %w", name, err)
	}
	inst.States = info.States

	ctor, ok := b.w.reg.Constructor(spec.Type())
	if !ok {
		return nil, fmt.Errorf("building %q: type %s has no constructor", name, spec.Type())
	}
	obj, err := ctor(ctx, registry.NewArgs(name, spec, objs))
	if err != nil {
		return nil, fmt.Errorf("building %q (%s): %w", name, spec.Type(), err)
	}
	inst.Value = obj
	b.built[name] = inst
	logger.Debug("Built entry.", "entry", name, "type", spec.Type(), "submodules", sortedParams(inst.Subs))
	return inst, nil
}

func sortedParams(m map[string]*Instance) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
