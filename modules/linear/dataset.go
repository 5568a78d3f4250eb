package linear

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/yxonic/fret/internal/registry"
)

// Dataset is a deterministic sample of y = slope*x + intercept with
// gaussian noise, x drawn uniformly from [-1, 1].
type Dataset struct {
	N         int     `cty:"n"`
	Slope     float64 `cty:"slope"`
	Intercept float64 `cty:"intercept"`
	Noise     float64 `cty:"noise"`
	Seed      int     `cty:"seed"`

	X []float64
	Y []float64
}

// NewDataset is the constructor of the Dataset type.
func NewDataset(ctx context.Context, args *registry.Args) (any, error) {
	d := &Dataset{}
	if err := args.Decode(ctx, d); err != nil {
		return nil, err
	}
	if d.N <= 0 {
		return nil, fmt.Errorf("dataset %q: n must be positive, got %d", args.Name, d.N)
	}
	rng := rand.New(rand.NewPCG(uint64(d.Seed), 0))
	d.X = make([]float64, d.N)
	d.Y = make([]float64, d.N)
	for i := range d.N {
		x := rng.Float64()*2 - 1
		d.X[i] = x
		d.Y[i] = d.Slope*x + d.Intercept + d.Noise*rng.NormFloat64()
	}
	return d, nil
}

// Batch returns the i-th batch of at most size samples.
func (d *Dataset) Batch(i, size int) (xs, ys []float64) {
	lo := min(i*size, d.N)
	hi := min(lo+size, d.N)
	return d.X[lo:hi], d.Y[lo:hi]
}
