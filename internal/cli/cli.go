package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/yxonic/fret/internal/app"
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/workspace"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ErrUsage is returned by commands invoked with invalid arguments.
var ErrUsage = errors.New("usage error")

// Env is what a command runs against.
type Env struct {
	App *app.App
	Out io.Writer

	// err is the failure of the executed command.
	err error
	cmd Command
}

// Command is a fret subcommand. Unlike subcommands.Command it reports
// failures as errors.
type Command interface {
	Name() string
	Synopsis() string
	Usage() string
	SetFlags(f *flag.FlagSet)
	Run(ctx context.Context, env *Env, f *flag.FlagSet) error
}

// Options adjusts Run for embedding programs and tests.
type Options struct {
	// Commands are added next to the built-in ones.
	Commands []Command
	// Modules replace the core modules of the registry.
	Modules []registry.Module
	// Dir is where the project file is searched from. The working
	// directory is used when empty.
	Dir string
}

type globals struct {
	workspace string
	project   string
	logFormat string
	reportURL string
	quiet     bool
	verbose   bool
}

func (g *globals) register(fs *flag.FlagSet) {
	fs.StringVar(&g.workspace, "w", "", "Workspace directory. Defaults to the project file's workspace or "+app.DefaultWorkspace+".")
	fs.StringVar(&g.project, "project", "", "Path to the project file. By default "+app.ProjectFile+" is searched upwards from the working directory.")
	fs.StringVar(&g.logFormat, "log-format", "", "Log output format. Options: 'text' or 'json'.")
	fs.StringVar(&g.reportURL, "report-url", "", "socket.io endpoint that receives run events.")
	fs.BoolVar(&g.quiet, "q", false, "Only log warnings and errors, and hide progress bars.")
	fs.BoolVar(&g.verbose, "v", false, "Log debug messages.")
}

func (g *globals) config(project *app.Project) (*app.Config, error) {
	cfg := app.Config{
		WorkspacePath: g.workspace,
		LogFormat:     g.logFormat,
		ReportURL:     g.reportURL,
		Quiet:         g.quiet,
	}
	switch {
	case g.quiet && g.verbose:
		return nil, errors.New("-q and -v are mutually exclusive")
	case g.quiet:
		cfg.LogLevel = "warn"
	case g.verbose:
		cfg.LogLevel = "debug"
	}
	return app.NewConfig(cfg, project)
}

func (g *globals) loadProject(dir string) (*app.Project, error) {
	if g.project != "" {
		return app.ReadProject(g.project)
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dir = wd
	}
	return app.LoadProject(dir)
}

// Run parses args and executes the selected command, writing all output to
// outW.
func Run(ctx context.Context, outW io.Writer, args []string, opts Options) error {
	fs := flag.NewFlagSet("fret", flag.ContinueOnError)
	fs.SetOutput(outW)
	g := &globals{}
	g.register(fs)

	cdr := subcommands.NewCommander(fs, "fret")
	cdr.Output = outW
	cdr.Error = outW
	cdr.Register(cdr.HelpCommand(), "help")
	cdr.Register(cdr.FlagsCommand(), "help")
	cdr.Register(cdr.CommandsCommand(), "help")
	for _, c := range builtinCommands() {
		cdr.Register(adapt(c), "workspace")
	}
	for _, c := range opts.Commands {
		cdr.Register(adapt(c), "application")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: int(subcommands.ExitUsageError), Message: err.Error()}
	}
	if fs.NArg() == 0 {
		cdr.Explain(outW)
		return nil
	}

	project, err := g.loadProject(opts.Dir)
	if err != nil {
		return &ExitError{Code: int(subcommands.ExitUsageError), Message: formatError(err)}
	}
	cfg, err := g.config(project)
	if err != nil {
		return &ExitError{Code: int(subcommands.ExitUsageError), Message: formatError(err)}
	}
	a, err := app.New(outW, cfg, project, opts.Modules...)
	if err != nil {
		return &ExitError{Code: int(subcommands.ExitFailure), Message: formatError(err)}
	}

	env := &Env{App: a, Out: outW}
	status := cdr.Execute(a.Context(ctx), env)
	if status == subcommands.ExitSuccess {
		return nil
	}
	msg := ""
	if env.err != nil {
		msg = formatError(env.err)
		var notConfigured *workspace.NotConfiguredError
		switch {
		case errors.As(env.err, &notConfigured):
			msg += "\n\n" + (&configCmd{}).Usage()
		case errors.Is(env.err, ErrUsage) && env.cmd != nil:
			msg += "\n\n" + env.cmd.Usage()
		}
	}
	return &ExitError{Code: int(status), Message: msg}
}

// adapted turns a Command into a subcommands.Command.
type adapted struct {
	Command
}

func adapt(c Command) subcommands.Command {
	return &adapted{Command: c}
}

func (a *adapted) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if len(args) == 0 {
		return subcommands.ExitFailure
	}
	env, ok := args[0].(*Env)
	if !ok {
		return subcommands.ExitFailure
	}
	env.cmd = a.Command
	if err := a.Command.Run(ctx, env, f); err != nil {
		env.err = err
		if errors.Is(err, ErrUsage) {
			return subcommands.ExitUsageError
		}
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

func builtinCommands() []Command {
	return []Command{
		&configCmd{},
		&buildCmd{},
		&runsCmd{},
		&statusCmd{},
		&cleanCmd{},
		&summarizeCmd{},
		&versionCmd{},
	}
}
