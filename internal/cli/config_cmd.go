package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/hcl_adapter"
	"github.com/yxonic/fret/internal/resolver"
	"github.com/yxonic/fret/internal/workspace"
)

type configCmd struct {
	types    bool
	describe string
	remove   bool
}

func (*configCmd) Name() string     { return "config" }
func (*configCmd) Synopsis() string { return "show or change workspace configuration entries" }
func (*configCmd) Usage() string {
	return `Usage: fret config [-types] [-describe TYPE] [-rm] [NAME [TYPE] [KEY=VALUE...]]

  Without arguments, print the workspace configuration document.
  With NAME, print that entry. With TYPE, (re)configure NAME as TYPE from
  its defaults. KEY=VALUE pairs override parameters; they may also be
  written -KEY=VALUE or --KEY=VALUE. Overrides without TYPE keep the
  entry's current type.

Example:
  fret config main Linear lr=0.05 data=big
  fret config main epochs=20

Flags:
`
}

func (c *configCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.types, "types", false, "List the registered types.")
	f.StringVar(&c.describe, "describe", "", "Show the merged parameters of a type.")
	f.BoolVar(&c.remove, "rm", false, "Remove the entry NAME.")
}

func (c *configCmd) Run(ctx context.Context, env *Env, f *flag.FlagSet) error {
	switch {
	case c.types:
		return c.listTypes(env)
	case c.describe != "":
		return c.describeType(env, c.describe)
	}

	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}
	args := f.Args()
	if len(args) == 0 {
		if c.remove {
			return usageError("-rm needs an entry name")
		}
		_, err := env.Out.Write(ws.Document())
		return err
	}

	name := args[0]
	if c.remove {
		if len(args) > 1 {
			return usageError("-rm takes only an entry name")
		}
		refs := ws.Dependents(name)
		if err := ws.Remove(ctx, name); err != nil {
			return err
		}
		if len(refs) > 0 {
			fmt.Fprintf(env.Out, "warning: %s is still referenced by %s\n", name, strings.Join(refs, ", "))
		}
		return nil
	}

	if len(args) == 1 {
		spec, ok := ws.Entry(name)
		if !ok {
			return &workspace.NotConfiguredError{Name: name}
		}
		_, err := env.Out.Write(hcl_adapter.EncodeEntries([]config.Entry{{Name: name, Spec: spec}}))
		return err
	}

	req := resolver.Request{Name: name}
	rest := args[1:]
	if !isOverride(rest[0]) {
		req.Type, rest = rest[0], rest[1:]
	}
	req.Args, err = parseOverrides(rest)
	if err != nil {
		return err
	}
	spec, err := ws.Configure(ctx, req)
	if err != nil {
		return err
	}
	_, err = env.Out.Write(hcl_adapter.EncodeEntries([]config.Entry{{Name: name, Spec: spec}}))
	return err
}

func (c *configCmd) listTypes(env *Env) error {
	reg := env.App.Registry()
	var rows [][]string
	for _, typ := range reg.Types() {
		info, err := resolver.Inspect(reg, typ)
		if err != nil {
			return err
		}
		_, constructible := reg.Constructor(typ)
		kind := "base"
		if constructible {
			kind = "type"
		}
		rows = append(rows, []string{typ, kind, strings.Join(info.Lineage[1:], ", "), info.Description})
	}
	renderTable(env.Out, []string{"TYPE", "KIND", "EXTENDS", "DESCRIPTION"}, rows)
	return nil
}

func (c *configCmd) describeType(env *Env, typ string) error {
	info, err := resolver.Inspect(env.App.Registry(), typ)
	if err != nil {
		return err
	}
	var rows [][]string
	for _, p := range info.Schema.Params() {
		kind, def := hcl_adapter.TypeString(p.Type), "(required)"
		if p.IsSubmodule() {
			kind = "submodule " + p.SubType
			def = p.Name
			if p.AutoBuild {
				def += " (auto)"
			}
		}
		if p.HasDefault() {
			def = config.FormatValue(*p.Default)
		}
		rows = append(rows, []string{p.Name, kind, def, p.Description})
	}
	if info.Description != "" {
		fmt.Fprintln(env.Out, info.Description)
	}
	renderTable(env.Out, []string{"PARAM", "TYPE", "DEFAULT", "HELP"}, rows)
	if len(info.States) > 0 {
		fmt.Fprintf(env.Out, "state: %s\n", strings.Join(info.States, ", "))
	}
	return nil
}

func isOverride(arg string) bool {
	return strings.HasPrefix(arg, "-") || strings.Contains(arg, "=")
}

// parseOverrides reads KEY=VALUE, -KEY=VALUE and --KEY=VALUE arguments.
func parseOverrides(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		kv := strings.TrimPrefix(strings.TrimPrefix(arg, "-"), "-")
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, usageError("override %q is not of the form KEY=VALUE", arg)
		}
		if _, dup := out[key]; dup {
			return nil, usageError("parameter %q is given twice", key)
		}
		out[key] = value
	}
	return out, nil
}
