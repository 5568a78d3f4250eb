// Package cli is the command dispatcher of fret. It parses the global
// flags, builds the App and dispatches to subcommands, translating command
// failures into ExitErrors carrying the process exit code.
package cli
