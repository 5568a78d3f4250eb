package config

import (
	"github.com/zclconf/go-cty/cty"
)

// SubmoduleFlag records whether a parameter references another workspace
// entry. Unset means "inherit from the base declaration".
type SubmoduleFlag int

const (
	SubmoduleUnset SubmoduleFlag = iota
	SubmoduleYes
	SubmoduleNo
)

// Param is a single entry of a ParamSchema.
type Param struct {
	Name        string
	Description string

	// Type is the declared value type. cty.NilType keeps the type of the
	// inherited declaration of the same name.
	Type cty.Type

	// Default is nil when the parameter must be supplied by an override.
	Default *cty.Value

	Submodule SubmoduleFlag
	// SubType names the configurable type built for this submodule when
	// the referenced entry does not exist and AutoBuild is set.
	SubType   string
	AutoBuild bool
}

// IsSubmodule reports whether the parameter is a submodule reference.
func (p *Param) IsSubmodule() bool {
	return p.Submodule == SubmoduleYes
}

// HasDefault reports whether a default value was declared.
func (p *Param) HasDefault() bool {
	return p.Default != nil
}

// Clone returns a shallow copy; cty values are immutable.
func (p *Param) Clone() *Param {
	c := *p
	return &c
}

// Definition is the format-agnostic declaration of one configurable type.
// It describes only the type's own parameters; inherited parameters are
// found through Bases.
type Definition struct {
	Type        string
	Description string

	// Bases lists parent types in declaration order. Later bases override
	// earlier ones when schemas are merged.
	Bases []string

	Params []*Param

	// States names the fields persisted by save/load and run checkpoints.
	States []string

	// Constructor is the name of the Go constructor bound in the registry.
	// Empty means the type name itself.
	Constructor string
}

// ConstructorName returns the registry key of the type's constructor.
func (d *Definition) ConstructorName() string {
	if d.Constructor != "" {
		return d.Constructor
	}
	return d.Type
}

// Entry is a named, resolved configuration stored in a workspace.
type Entry struct {
	Name string
	Spec Spec
}
