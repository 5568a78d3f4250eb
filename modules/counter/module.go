// Package counter provides Counter, the smallest configurable type with
// state: a number that grows by a fixed step.
package counter

import (
	"context"

	"github.com/yxonic/fret/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Counter counts from Start in increments of Step.
type Counter struct {
	Start float64 `cty:"start"`
	Step  float64 `cty:"step"`
	Count float64 `cty:"count"`
}

// Inc advances the counter by one step and returns the new count.
func (c *Counter) Inc() float64 {
	c.Count += c.Step
	return c.Count
}

// New is the constructor of the Counter type.
func New(ctx context.Context, args *registry.Args) (any, error) {
	c := &Counter{}
	if err := args.Decode(ctx, c); err != nil {
		return nil, err
	}
	c.Count = c.Start
	return c, nil
}

// Register declares the Counter type.
func (m *Module) Register(r *registry.Registry) {
	registry.Declare("Counter").
		Describe("A number that grows by a fixed step.").
		Param("start", cty.Number, cty.Zero).
		Help("initial count").
		Param("step", cty.Number, cty.NumberIntVal(1)).
		Help("increment per call").
		States("count").
		Construct(New).
		Register(r)
}
