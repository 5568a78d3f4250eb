package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/yxonic/fret/internal/cli"
)

// main is the entrypoint for the fret application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(context.Background(), os.Stdout, os.Args[1:], ""); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. dir is where the project file is searched from.
func run(ctx context.Context, outW io.Writer, args []string, dir string) error {
	return cli.Run(ctx, outW, args, cli.Options{
		Commands: []cli.Command{&trainCmd{}, &evaluateCmd{}},
		Dir:      dir,
	})
}
