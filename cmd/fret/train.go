package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/yxonic/fret/internal/app"
	"github.com/yxonic/fret/internal/cli"
	"github.com/yxonic/fret/internal/engine"
	"github.com/yxonic/fret/internal/workspace"
	"github.com/yxonic/fret/modules/linear"
)

type trainCmd struct {
	tag     string
	resume  bool
	newPass bool
	save    string
}

func (*trainCmd) Name() string     { return "train" }
func (*trainCmd) Synopsis() string { return "train a Linear entry in a resumable run" }
func (*trainCmd) Usage() string {
	return `Usage: fret train [-tag TAG] [-resume] [-new-pass] [-save TAG] [ENTRY]

  Train the Linear entry ENTRY ("main" by default). Progress is
  checkpointed after every batch; an interrupt (Ctrl-C) stops the run at
  the next batch boundary and -resume continues it from there.

Flags:
`
}

func (c *trainCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.tag, "tag", "train", "Prefix of the run id.")
	f.BoolVar(&c.resume, "resume", false, "Resume the latest run with this tag.")
	f.BoolVar(&c.newPass, "new-pass", false, "Train a completed run again from its current weights.")
	f.StringVar(&c.save, "save", "", "Save a snapshot of the trained model under this tag.")
}

func (c *trainCmd) Run(ctx context.Context, env *cli.Env, f *flag.FlagSet) error {
	entry, err := entryArg(f)
	if err != nil {
		return err
	}
	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}
	inst, model, err := buildLinear(ctx, ws, entry)
	if err != nil {
		return err
	}

	s, err := env.App.StartRun(ctx, app.RunOptions{
		Entry:   entry,
		Tag:     c.tag,
		Resume:  c.resume,
		NewPass: c.newPass,
		Signals: true,
	})
	if err != nil {
		return err
	}
	run := s.Run
	if err := run.Register("model", inst); err != nil {
		return errors.Join(err, s.Close())
	}

	loss := run.Accumulator("loss", 0)
	err = run.Range(run.Context(), "epoch", model.Epochs, func(ctx context.Context, epoch int) error {
		err := run.Range(ctx, "batch", model.Batches(), func(_ context.Context, i int) error {
			loss.Add(model.Step(i))
			return nil
		})
		if err != nil {
			return err
		}
		s.Logger.Info("Epoch finished.", "epoch", epoch, "loss", loss.Mean())
		loss.Reset(0)
		return nil
	})
	closeErr := s.Close()

	var interrupted *engine.InterruptedError
	if errors.As(err, &interrupted) {
		fmt.Fprintf(env.Out, "run %s interrupted at %s=%d; continue with: fret train -resume -tag %s %s\n",
			run.ID(), interrupted.Range, interrupted.Cursor, c.tag, entry)
		return nil
	}
	if err := errors.Join(err, closeErr); err != nil {
		return err
	}

	final := model.Loss()
	if err := ws.Record(ctx, "train", entry, "loss-", final, map[string]any{"run": run.ID()}); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "run %s %s: loss=%.4f w=%.4f b=%.4f\n", run.ID(), run.Status(), final, model.W, model.B)

	if c.save != "" {
		path, err := ws.Save(ctx, inst, c.save)
		if err != nil {
			return err
		}
		fmt.Fprintf(env.Out, "saved %s\n", path)
	}
	return nil
}

func entryArg(f *flag.FlagSet) (string, error) {
	switch f.NArg() {
	case 0:
		return "main", nil
	case 1:
		return f.Arg(0), nil
	}
	return "", fmt.Errorf("%w: expected at most one entry name", cli.ErrUsage)
}

func buildLinear(ctx context.Context, ws *workspace.Workspace, entry string) (*workspace.Instance, *linear.Linear, error) {
	inst, err := ws.Build(ctx, entry)
	if err != nil {
		return nil, nil, err
	}
	return asLinear(inst)
}

func asLinear(inst *workspace.Instance) (*workspace.Instance, *linear.Linear, error) {
	model, ok := inst.Value.(*linear.Linear)
	if !ok {
		return nil, nil, fmt.Errorf("entry %q is a %s, not a Linear model", inst.Name, inst.Spec.Type())
	}
	return inst, model, nil
}
