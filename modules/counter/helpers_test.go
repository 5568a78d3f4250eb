package counter

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yxonic/fret/internal/registry"
	"github.com/yxonic/fret/internal/testutil"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(&Module{})
	ctx, _ := testutil.Context(t)
	require.NoError(t, r.Validate(ctx))
	return r
}
