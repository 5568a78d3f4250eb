package linear

import (
	"context"
	"fmt"

	"github.com/yxonic/fret/internal/registry"
)

// Linear fits y = w*x + b to a Dataset with mini-batch gradient descent.
type Linear struct {
	LR        float64 `cty:"lr"`
	Epochs    int     `cty:"epochs"`
	BatchSize int     `cty:"batch_size"`

	W float64 `cty:"w"`
	B float64 `cty:"b"`

	Data *Dataset
}

// New is the constructor of the Linear type.
func New(ctx context.Context, args *registry.Args) (any, error) {
	m := &Linear{}
	if err := args.Decode(ctx, m); err != nil {
		return nil, err
	}
	if m.BatchSize <= 0 {
		return nil, fmt.Errorf("model %q: batch_size must be positive, got %d", args.Name, m.BatchSize)
	}
	data, err := registry.SubAs[*Dataset](args, "data")
	if err != nil {
		return nil, err
	}
	m.Data = data
	return m, nil
}

// Batches returns the number of batches per epoch.
func (m *Linear) Batches() int {
	return (m.Data.N + m.BatchSize - 1) / m.BatchSize
}

// Step runs one update on batch i and returns the batch loss measured
// before the update.
func (m *Linear) Step(i int) float64 {
	xs, ys := m.Data.Batch(i, m.BatchSize)
	if len(xs) == 0 {
		return 0
	}
	var gw, gb, loss float64
	for j, x := range xs {
		diff := m.W*x + m.B - ys[j]
		loss += diff * diff
		gw += 2 * diff * x
		gb += 2 * diff
	}
	n := float64(len(xs))
	m.W -= m.LR * gw / n
	m.B -= m.LR * gb / n
	return loss / n
}

// Loss returns the mean squared error over the whole dataset.
func (m *Linear) Loss() float64 {
	var loss float64
	for i, x := range m.Data.X {
		diff := m.W*x + m.B - m.Data.Y[i]
		loss += diff * diff
	}
	return loss / float64(m.Data.N)
}
