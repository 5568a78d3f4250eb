package registry

import (
	"context"
	"fmt"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/hcl_adapter"
	"github.com/zclconf/go-cty/cty"
)

// Args is what a Constructor receives: the entry name, its resolved spec
// and the already built submodules keyed by parameter name.
type Args struct {
	Name string
	Spec config.Spec
	subs map[string]any
}

// NewArgs assembles constructor arguments.
func NewArgs(name string, spec config.Spec, subs map[string]any) *Args {
	return &Args{Name: name, Spec: spec, subs: subs}
}

// Value returns a scalar parameter, or cty.NilVal if it does not exist.
func (a *Args) Value(param string) cty.Value {
	v, _ := a.Spec.Param(param)
	return v
}

// Sub returns the built submodule for param.
func (a *Args) Sub(param string) (any, bool) {
	obj, ok := a.subs[param]
	return obj, ok
}

// Object returns all scalar parameters as one cty object.
func (a *Args) Object() cty.Value {
	attrs := make(map[string]cty.Value)
	for _, p := range a.Spec.Params() {
		attrs[p.Name] = p.Value
	}
	return cty.ObjectVal(attrs)
}

// Decode fills target, a pointer to a struct with `cty:"name"` field tags,
// from the scalar parameters.
func (a *Args) Decode(ctx context.Context, target any) error {
	if err := hcl_adapter.Decode(a.Object(), target); err != nil {
		return fmt.Errorf("decoding parameters of %s %q: %w", a.Spec.Type(), a.Name, err)
	}
	ctxlog.FromContext(ctx).Debug("Decoded constructor parameters.", "type", a.Spec.Type(), "entry", a.Name)
	return nil
}

// SubAs returns the submodule for param as a T.
func SubAs[T any](a *Args, param string) (T, error) {
	var zero T
	obj, ok := a.Sub(param)
	if !ok {
		return zero, fmt.Errorf("%s %q has no submodule %q", a.Spec.Type(), a.Name, param)
	}
	typed, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("submodule %q of %q is %T, not %T", param, a.Name, obj, zero)
	}
	return typed, nil
}
