package cli

import (
	"context"
	"flag"
	"fmt"
	"runtime/debug"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = ""

type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "print the fret version" }
func (*versionCmd) Usage() string          { return "Usage: fret version\n" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}

func (*versionCmd) Run(_ context.Context, env *Env, _ *flag.FlagSet) error {
	fmt.Fprintf(env.Out, "fret %s\n", version())
	return nil
}

func version() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
