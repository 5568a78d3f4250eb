package cli

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/workspace"
)

type buildCmd struct {
	save string
	load string
}

func (*buildCmd) Name() string     { return "build" }
func (*buildCmd) Synopsis() string { return "build a configured entry, optionally saving a snapshot" }
func (*buildCmd) Usage() string {
	return `Usage: fret build [-save TAG | -load REF] [NAME]

  Build the entry NAME ("main" by default) and its submodules and print
  the resulting state. With -save the built object is written to
  snapshot/NAME.TAG.snap. With -load a snapshot is restored instead; REF
  is a snapshot path, NAME.TAG or a TAG.

Flags:
`
}

func (c *buildCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.save, "save", "", "Save a snapshot under this tag.")
	f.StringVar(&c.load, "load", "", "Load a snapshot instead of building from the configuration.")
}

func (c *buildCmd) Run(ctx context.Context, env *Env, f *flag.FlagSet) error {
	if f.NArg() > 1 {
		return usageError("build takes at most one entry name")
	}
	if c.save != "" && c.load != "" {
		return usageError("-save and -load are mutually exclusive")
	}
	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}

	var inst *workspace.Instance
	if c.load != "" {
		if f.NArg() > 0 {
			return usageError("-load takes the entry from the snapshot")
		}
		inst, err = ws.Load(ctx, c.load)
	} else {
		name := "main"
		if f.NArg() == 1 {
			name = f.Arg(0)
		}
		inst, err = ws.Build(ctx, name)
	}
	if err != nil {
		return err
	}

	fingerprint, err := ws.Fingerprint(inst.Name)
	if err != nil {
		// A loaded snapshot may describe an entry the workspace no longer has.
		fingerprint = "-"
	}
	fields := [][2]string{
		{"entry", inst.Name},
		{"type", inst.Spec.Type()},
		{"fingerprint", shortFingerprint(fingerprint)},
	}
	s, err := inst.StateDict()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		fields = append(fields, [2]string{"state." + k, config.FormatValue(s[k])})
	}
	renderFields(env.Out, fields)

	if c.save != "" {
		path, err := ws.Save(ctx, inst, c.save)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Out, "saved %s\n", path)
	}
	return nil
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
