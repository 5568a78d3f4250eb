// Package linear provides a toy regression model used by the train and
// evaluate commands: a Linear model with an auto-built Dataset submodule.
package linear

import (
	"github.com/yxonic/fret/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register declares Trainer, Dataset and Linear. Trainer only holds the
// parameters shared by trainable types and has no constructor.
func (m *Module) Register(r *registry.Registry) {
	registry.Declare("Trainer").
		Param("lr", cty.Number, cty.NumberFloatVal(0.01)).
		Help("learning rate").
		Param("epochs", cty.Number, cty.NumberIntVal(10)).
		Help("passes over the data").
		Register(r)

	registry.Declare("Dataset").
		Describe("Noisy samples of a line.").
		Param("n", cty.Number, cty.NumberIntVal(64)).
		Param("slope", cty.Number, cty.NumberIntVal(2)).
		Param("intercept", cty.Number, cty.NumberIntVal(1)).
		Param("noise", cty.Number, cty.NumberFloatVal(0.1)).
		Param("seed", cty.Number, cty.Zero).
		Construct(NewDataset).
		Register(r)

	registry.Declare("Linear").
		Describe("Linear regression trained with mini-batch gradient descent.").
		Extends("Trainer").
		Default("lr", cty.NumberFloatVal(0.1)).
		Param("batch_size", cty.Number, cty.NumberIntVal(8)).
		AutoSubmodule("data", "Dataset").
		States("w", "b").
		Construct(New).
		Register(r)
}
