// Package engine runs one resumable unit of work.
//
// A Run owns accumulators, registered stateful components and one cursor
// per named range. Every step of Range is a checkpoint boundary: the run
// record is rewritten atomically after the step, and an interrupt latched
// during the step is delivered only after that write. Reopening the same
// run identifier resumes from the last checkpoint.
//
//	run, err := engine.Open(ctx, ws, id)
//	if err != nil {
//		return err
//	}
//	defer run.Close()
//	cnt := run.Accumulator("cnt", 0)
//	err = run.Range(run.Context(), "epoch", 3, func(ctx context.Context, i int) error {
//		cnt.Add(1)
//		return nil
//	})
package engine
