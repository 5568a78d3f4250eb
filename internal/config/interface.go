package config

import "context"

// Loader reads type declarations from manifest files or directories.
// Implementations must not fail on paths that do not exist.
type Loader interface {
	Load(ctx context.Context, paths ...string) ([]*Definition, error)
}
