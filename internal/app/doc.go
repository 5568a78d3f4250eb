// Package app contains the application shell of fret. It reads the project
// file, configures logging, assembles the type registry and opens the
// workspace and runs that commands operate on, decoupled from any specific
// entrypoint like a CLI.
package app
