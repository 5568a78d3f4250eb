package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yxonic/fret/internal/results"
)

type summarizeCmd struct {
	glob    string
	scheme  string
	topK    int
	rows    string
	columns string
	format  string
	last    bool
}

func (*summarizeCmd) Name() string     { return "summarize" }
func (*summarizeCmd) Synopsis() string { return "tabulate recorded results" }
func (*summarizeCmd) Usage() string {
	return `Usage: fret summarize [-glob PATTERN] [-scheme best|mean|mean_with_error] [-topk K] [-rows FIELDS] [-columns METRICS] [-format VERB] [-last]

  Collect result lines and print one row per configuration and one column
  per metric. PATTERN is matched relative to the workspace; a matching
  directory contributes its result/*.jsonl files. Rows default to the
  configuration fields whose values differ between results.

Flags:
`
}

func (c *summarizeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.glob, "glob", "result/*.jsonl", "Pattern selecting workspaces or result files, ** allowed.")
	f.StringVar(&c.scheme, "scheme", string(results.SchemeBest), "How values of one cell are reduced.")
	f.IntVar(&c.topK, "topk", 0, "Only use the best K values of each cell.")
	f.StringVar(&c.rows, "rows", "", "Comma-separated fields identifying a row.")
	f.StringVar(&c.columns, "columns", "", "Comma-separated metrics to show.")
	f.StringVar(&c.format, "format", "%.4f", "fmt verb for values.")
	f.BoolVar(&c.last, "last", false, "Only use the last line of each result file.")
}

func (c *summarizeCmd) Run(ctx context.Context, env *Env, f *flag.FlagSet) error {
	if f.NArg() > 0 {
		return usageError("summarize takes no arguments")
	}
	scheme, err := results.ParseScheme(c.scheme)
	if err != nil {
		return usageError("%v", err)
	}
	ws, err := env.App.Workspace(ctx)
	if err != nil {
		return err
	}

	ms, err := results.Collect(os.DirFS(ws.Path()), c.glob, c.last)
	if err != nil {
		return err
	}
	table, err := results.Summarize(ms, results.Options{
		Rows:    splitList(c.rows),
		Columns: splitList(c.columns),
		Scheme:  scheme,
		TopK:    c.topK,
		Format:  c.format,
	})
	if errors.Is(err, results.ErrNoResults) {
		fmt.Fprintln(env.Out, "no results")
		return nil
	}
	if err != nil {
		return err
	}
	renderTable(env.Out, table.Headers, table.Rows)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
