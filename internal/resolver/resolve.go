package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/hcl_adapter"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Lookup answers whether a workspace entry exists.
type Lookup interface {
	Has(name string) bool
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(name string) bool

// Has implements Lookup.
func (f LookupFunc) Has(name string) bool { return f(name) }

// Request describes one configure call.
type Request struct {
	// Name is the entry being configured. It counts as existing while its
	// submodules are resolved.
	Name string
	Type string
	// Overrides are typed values, e.g. from Go callers.
	Overrides map[string]cty.Value
	// Args are raw command-line strings, parsed against the declared types.
	Args map[string]string
}

// Result is the outcome of a successful resolution.
type Result struct {
	Spec config.Spec
	// Implicit holds entries created for auto-built submodules, in the
	// order they were resolved (dependencies first).
	Implicit []config.Entry
}

// Resolver resolves requests against a set of type declarations and
// optional project-level defaults.
type Resolver struct {
	src Source
	// defaults sits between declared defaults and overrides, keyed by type.
	defaults map[string]map[string]cty.Value
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithDefaults installs project-level defaults keyed by type name.
func WithDefaults(defaults map[string]map[string]cty.Value) Option {
	return func(r *Resolver) {
		r.defaults = defaults
	}
}

// New creates a Resolver over src.
func New(src Source, opts ...Option) *Resolver {
	r := &Resolver{src: src}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Inspect returns the merged view of typ.
func (r *Resolver) Inspect(typ string) (*TypeInfo, error) {
	return Inspect(r.src, typ)
}

// Resolve produces the spec for req. Nothing is applied unless every
// override names a declared parameter and every value converts.
func (r *Resolver) Resolve(ctx context.Context, req Request, lookup Lookup) (*Result, error) {
	logger := ctxlog.FromContext(ctx).With("type", req.Type, "entry", req.Name)
	if lookup == nil {
		lookup = LookupFunc(func(string) bool { return false })
	}

	pending := &overlay{base: lookup, extra: map[string]bool{}}
	if req.Name != "" {
		pending.extra[req.Name] = true
	}

	res := &Result{}
	spec, err := r.resolve(ctx, req.Type, req.Overrides, req.Args, pending, res)
	if err != nil {
		return nil, err
	}
	res.Spec = spec
	logger.Debug("Resolved configuration.", "spec", spec.String(), "implicit", len(res.Implicit))
	return res, nil
}

func (r *Resolver) resolve(ctx context.Context, typ string, overrides map[string]cty.Value, args map[string]string, lookup *overlay, res *Result) (config.Spec, error) {
	info, err := Inspect(r.src, typ)
	if err != nil {
		return config.Spec{}, err
	}
	project := r.defaults[typ]

	for _, layer := range []map[string]cty.Value{project, overrides} {
		if key, ok := firstUnknown(info.Schema, keysOf(layer)); ok {
			return config.Spec{}, &UnknownParameterError{Type: typ, Key: key}
		}
	}
	if key, ok := firstUnknown(info.Schema, keysOf(args)); ok {
		return config.Spec{}, &UnknownParameterError{Type: typ, Key: key}
	}

	var params []config.Setting
	var refs []config.Ref
	var autos []*config.Param
	for _, p := range info.Schema.Params() {
		ty := p.Type
		if ty == cty.NilType {
			ty = cty.DynamicPseudoType
		}
		if p.IsSubmodule() {
			ty = cty.String
		}

		val, given, err := pick(p, ty, project, overrides, args)
		if err != nil {
			return config.Spec{}, &InvalidValueError{Type: typ, Key: p.Name, Err: err}
		}

		if p.IsSubmodule() {
			entry := p.Name
			if given || p.HasDefault() {
				if val.IsNull() {
					return config.Spec{}, &InvalidValueError{Type: typ, Key: p.Name, Err: fmt.Errorf("submodule reference must not be null")}
				}
				entry = val.AsString()
			}
			refs = append(refs, config.Ref{Param: p.Name, Entry: entry})
			if !lookup.Has(entry) {
				if !p.AutoBuild {
					return config.Spec{}, &MissingSubmoduleError{Type: typ, Param: p.Name, Entry: entry}
				}
				autos = append(autos, p)
				lookup.extra[entry] = true
			}
			continue
		}

		if !given && !p.HasDefault() {
			return config.Spec{}, &MissingValueError{Type: typ, Key: p.Name}
		}
		params = append(params, config.Setting{Name: p.Name, Value: val})
	}

	spec, err := config.NewSpec(typ, params, refs)
	if err != nil {
		return config.Spec{}, err
	}

	// Auto-built submodules are resolved after the parent's own checks so a
	// bad override never leaves implicit entries behind.
	for _, p := range autos {
		entry, _ := spec.Ref(p.Name)
		sub, err := r.resolve(ctx, p.SubType, nil, nil, lookup, res)
		if err != nil {
			return config.Spec{}, fmt.Errorf("auto-building submodule %s.%s as %q: %w", typ, p.Name, entry, err)
		}
		res.Implicit = append(res.Implicit, config.Entry{Name: entry, Spec: sub})
		ctxlog.FromContext(ctx).Debug("Auto-built submodule.", "parent", typ, "param", p.Name, "entry", entry, "type", p.SubType)
	}
	return spec, nil
}

// pick applies the layers for one parameter: declared default, project
// default, then the override. It reports whether any layer above the
// declared default supplied a value.
func pick(p *config.Param, ty cty.Type, project, overrides map[string]cty.Value, args map[string]string) (cty.Value, bool, error) {
	val := cty.NullVal(ty)
	given := false
	if p.Default != nil {
		val = *p.Default
	}
	if v, ok := project[p.Name]; ok {
		val, given = v, true
	}
	if raw, ok := args[p.Name]; ok {
		v, err := hcl_adapter.ParseRaw(raw, ty)
		if err != nil {
			return cty.NilVal, false, err
		}
		val, given = v, true
	}
	if v, ok := overrides[p.Name]; ok {
		val, given = v, true
	}

	converted, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, false, err
	}
	return converted, given, nil
}

func keysOf[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstUnknown(schema *config.Schema, keys []string) (string, bool) {
	for _, k := range keys {
		if _, ok := schema.Lookup(k); !ok {
			return k, true
		}
	}
	return "", false
}

// overlay extends a Lookup with entries created during one resolution.
type overlay struct {
	base  Lookup
	extra map[string]bool
}

func (o *overlay) Has(name string) bool {
	return o.extra[name] || o.base.Has(name)
}
