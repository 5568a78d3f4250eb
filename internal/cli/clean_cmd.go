package cli

import (
	"context"
	"flag"

	"github.com/yxonic/fret/internal/workspace"
)

type cleanCmd struct {
	opts workspace.CleanOptions
	all  bool
}

func (*cleanCmd) Name() string     { return "clean" }
func (*cleanCmd) Synopsis() string { return "remove parts of the workspace" }
func (*cleanCmd) Usage() string {
	return `Usage: fret clean [-config] [-log] [-snapshot] [-result] [-all]

  Remove the selected parts of the workspace. Nothing is removed unless
  at least one part is selected.

Flags:
`
}

func (c *cleanCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.opts.Config, "config", false, "Remove the configuration document.")
	f.BoolVar(&c.opts.Logs, "log", false, "Remove log files.")
	f.BoolVar(&c.opts.Snapshots, "snapshot", false, "Remove snapshots and run records.")
	f.BoolVar(&c.opts.Results, "result", false, "Remove recorded results.")
	f.BoolVar(&c.all, "all", false, "Remove everything.")
}

func (c *cleanCmd) Run(ctx context.Context, env *Env, f *flag.FlagSet) error {
	if f.NArg() > 0 {
		return usageError("clean takes no arguments")
	}
	opts := c.opts
	if c.all {
		opts = workspace.CleanOptions{Config: true, Logs: true, Snapshots: true, Results: true}
	}
	if opts == (workspace.CleanOptions{}) {
		return usageError("select what to clean")
	}
	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}
	return ws.Clean(ctx, opts)
}
