package registry

import (
	"github.com/yxonic/fret/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// Builder declares a configurable type in Go.
//
//	registry.Declare("Model").
//		Extends("Base").
//		Param("x", cty.Number, cty.NumberIntVal(3)).
//		Submodule("encoder", "Encoder").
//		States("step").
//		Construct(NewModel).
//		Register(r)
type Builder struct {
	def *config.Definition
	fn  Constructor
}

// Declare starts the declaration of typ.
func Declare(typ string) *Builder {
	return &Builder{def: &config.Definition{Type: typ}}
}

// Describe sets the help text shown by the config command.
func (b *Builder) Describe(text string) *Builder {
	b.def.Description = text
	return b
}

// Extends appends base types. Later bases override earlier ones.
func (b *Builder) Extends(bases ...string) *Builder {
	b.def.Bases = append(b.def.Bases, bases...)
	return b
}

// Param declares a scalar parameter with a default value.
func (b *Builder) Param(name string, ty cty.Type, def cty.Value) *Builder {
	b.def.Params = append(b.def.Params, &config.Param{
		Name:      name,
		Type:      ty,
		Default:   &def,
		Submodule: config.SubmoduleNo,
	})
	return b
}

// Required declares a scalar parameter that must be given by an override.
func (b *Builder) Required(name string, ty cty.Type) *Builder {
	b.def.Params = append(b.def.Params, &config.Param{
		Name:      name,
		Type:      ty,
		Submodule: config.SubmoduleNo,
	})
	return b
}

// Default changes the default of an inherited parameter, keeping its type
// and submodule flag.
func (b *Builder) Default(name string, def cty.Value) *Builder {
	b.def.Params = append(b.def.Params, &config.Param{
		Name:    name,
		Type:    cty.NilType,
		Default: &def,
	})
	return b
}

// Submodule declares a reference to another workspace entry. The entry
// name defaults to the parameter name.
func (b *Builder) Submodule(name, typ string) *Builder {
	b.def.Params = append(b.def.Params, &config.Param{
		Name:      name,
		Type:      cty.String,
		Submodule: config.SubmoduleYes,
		SubType:   typ,
	})
	return b
}

// AutoSubmodule is Submodule whose entry is configured from typ's defaults
// when it does not exist yet.
func (b *Builder) AutoSubmodule(name, typ string) *Builder {
	b.Submodule(name, typ)
	b.def.Params[len(b.def.Params)-1].AutoBuild = true
	return b
}

// Help describes the most recently declared parameter.
func (b *Builder) Help(text string) *Builder {
	if n := len(b.def.Params); n > 0 {
		b.def.Params[n-1].Description = text
	}
	return b
}

// States names fields persisted with snapshots and run checkpoints.
func (b *Builder) States(names ...string) *Builder {
	b.def.States = append(b.def.States, names...)
	return b
}

// Construct sets the constructor, registered under the type name.
func (b *Builder) Construct(fn Constructor) *Builder {
	b.fn = fn
	return b
}

// ConstructWith binds the type to a constructor registered elsewhere.
func (b *Builder) ConstructWith(name string) *Builder {
	b.def.Constructor = name
	return b
}

// Definition returns the declaration built so far.
func (b *Builder) Definition() *config.Definition {
	return b.def
}

// Register adds the declaration and its constructor to r.
func (b *Builder) Register(r *Registry) {
	r.Define(b.def)
	if b.fn != nil {
		r.RegisterConstructor(b.def.ConstructorName(), b.fn)
	}
}
