package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/yxonic/fret/internal/cli"
	"github.com/yxonic/fret/internal/engine"
	"github.com/yxonic/fret/internal/workspace"
	"github.com/yxonic/fret/modules/linear"
)

type evaluateCmd struct {
	load  string
	runID string
}

func (*evaluateCmd) Name() string     { return "evaluate" }
func (*evaluateCmd) Synopsis() string { return "measure a Linear model and record the result" }
func (*evaluateCmd) Usage() string {
	return `Usage: fret evaluate [-run RUN | -load REF] [ENTRY]

  Compute the mean squared error of ENTRY ("main" by default) over its
  dataset and append it to result/eval.jsonl. The weights come from the
  run RUN, from a snapshot, or from a fresh build.

Flags:
`
}

func (c *evaluateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.load, "load", "", "Evaluate a saved snapshot.")
	f.StringVar(&c.runID, "run", "", "Evaluate the weights of a run.")
}

func (c *evaluateCmd) Run(ctx context.Context, env *cli.Env, f *flag.FlagSet) error {
	if c.load != "" && c.runID != "" {
		return fmt.Errorf("%w: -run and -load are mutually exclusive", cli.ErrUsage)
	}
	entry, err := entryArg(f)
	if err != nil {
		return err
	}
	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}

	extra := map[string]any{}
	var inst *workspace.Instance
	var model *linear.Linear
	if c.load != "" {
		loaded, err := ws.Load(ctx, c.load)
		if err != nil {
			return err
		}
		if inst, model, err = asLinear(loaded); err != nil {
			return err
		}
		extra["snapshot"] = c.load
	} else if inst, model, err = buildLinear(ctx, ws, entry); err != nil {
		return err
	}

	if c.runID != "" {
		rec, err := engine.LoadRecord(ws, c.runID)
		if err != nil {
			return err
		}
		saved, ok := rec.Components["model"]
		if !ok {
			return fmt.Errorf("run %q has no model state", c.runID)
		}
		if err := inst.LoadStateDict(saved); err != nil {
			return err
		}
		extra["run"] = c.runID
	}

	mse := model.Loss()
	if err := ws.Record(ctx, "eval", inst.Name, "mse-", mse, extra); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%s: mse=%.4f\n", inst.Name, mse)
	return nil
}
