package testutil

import (
	"context"

	"github.com/yxonic/fret/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Model has two numeric parameters and one state field.
type Model struct {
	X     float64 `cty:"x"`
	Y     float64 `cty:"y"`
	Steps int     `cty:"steps"`
}

// A is a submodule type with a string parameter.
type A struct {
	Foo string `cty:"foo"`
}

// B holds an A submodule.
type B struct {
	Bar float64 `cty:"bar"`
	Sub *A
}

// Loop refers to itself through a submodule, for cycle tests.
type Loop struct {
	Next any
}

// ScenarioModule registers Model, A, B and Loop.
type ScenarioModule struct{}

// Register implements registry.Module.
func (ScenarioModule) Register(r *registry.Registry) {
	registry.Declare("Model").
		Describe("A model with two coefficients.").
		Param("x", cty.Number, cty.NumberIntVal(3)).
		Param("y", cty.Number, cty.NumberIntVal(4)).
		States("steps").
		Construct(func(ctx context.Context, args *registry.Args) (any, error) {
			m := &Model{}
			return m, args.Decode(ctx, m)
		}).
		Register(r)

	registry.Declare("A").
		Param("foo", cty.String, cty.StringVal("bar")).
		Construct(func(ctx context.Context, args *registry.Args) (any, error) {
			a := &A{}
			return a, args.Decode(ctx, a)
		}).
		Register(r)

	registry.Declare("B").
		Submodule("sub", "A").
		Param("bar", cty.Number, cty.NumberIntVal(3)).
		Construct(func(ctx context.Context, args *registry.Args) (any, error) {
			b := &B{}
			if err := args.Decode(ctx, b); err != nil {
				return nil, err
			}
			sub, err := registry.SubAs[*A](args, "sub")
			if err != nil {
				return nil, err
			}
			b.Sub = sub
			return b, nil
		}).
		Register(r)

	registry.Declare("Loop").
		Submodule("next", "Loop").
		Construct(func(_ context.Context, args *registry.Args) (any, error) {
			next, _ := args.Sub("next")
			return &Loop{Next: next}, nil
		}).
		Register(r)
}

// NewScenarioRegistry returns a registry with ScenarioModule registered.
func NewScenarioRegistry() *registry.Registry {
	return registry.New(ScenarioModule{})
}
