package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/dag"
)

// Validate performs a parity check between declarations and Go code:
// bases and submodule types must be defined, the inheritance graph must be
// acyclic, every constructible type must have a constructor and every
// constructor must be used by some declaration.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []string
	graph := dag.New()
	isBase := make(map[string]bool)
	usedConstructors := make(map[string]bool)

	for name := range r.definitions {
		graph.AddNode(name)
	}

	for _, name := range sortedKeys(r.definitions) {
		def := r.definitions[name]
		for _, base := range def.Bases {
			if _, ok := r.definitions[base]; !ok {
				errs = append(errs, fmt.Sprintf("type '%s': base type '%s' is not defined", name, base))
				continue
			}
			isBase[base] = true
			// The derived type depends on its base.
			if err := graph.AddEdge(base, name); err != nil {
				errs = append(errs, err.Error())
			}
		}

		seen := make(map[string]bool)
		for _, p := range def.Params {
			if seen[p.Name] {
				errs = append(errs, fmt.Sprintf("type '%s': parameter '%s' declared twice", name, p.Name))
			}
			seen[p.Name] = true
			if p.IsSubmodule() && p.SubType != "" {
				if _, ok := r.definitions[p.SubType]; !ok {
					errs = append(errs, fmt.Sprintf("type '%s', submodule '%s': type '%s' is not defined", name, p.Name, p.SubType))
				}
			}
			if p.AutoBuild && p.SubType == "" {
				errs = append(errs, fmt.Sprintf("type '%s', submodule '%s': auto_build requires a submodule type", name, p.Name))
			}
		}

		states := make(map[string]bool)
		for _, s := range def.States {
			if states[s] {
				errs = append(errs, fmt.Sprintf("type '%s': state field '%s' declared twice", name, s))
			}
			states[s] = true
		}
	}

	var cycleErr *dag.CycleError
	if err := graph.DetectCycles(); errors.As(err, &cycleErr) {
		errs = append(errs, fmt.Sprintf("inheritance cycle: %s", strings.Join(cycleErr.Path, " extends ")))
	}

	for _, name := range sortedKeys(r.definitions) {
		def := r.definitions[name]
		cname := def.ConstructorName()
		if _, ok := r.constructors[cname]; ok {
			usedConstructors[cname] = true
			continue
		}
		if isBase[name] {
			logger.Debug("Type has no constructor and is only used as a base.", "type", name)
			continue
		}
		errs = append(errs, fmt.Sprintf("type '%s': no constructor registered under '%s'", name, cname))
	}

	for _, cname := range sortedKeys(r.constructors) {
		if !usedConstructors[cname] {
			errs = append(errs, fmt.Sprintf("constructor '%s' is not used by any type declaration", cname))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
