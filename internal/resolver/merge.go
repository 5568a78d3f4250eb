package resolver

import (
	"slices"

	"github.com/yxonic/fret/internal/config"
)

// Source provides type declarations. *registry.Registry implements it.
type Source interface {
	Definition(typ string) (*config.Definition, bool)
}

// TypeInfo is the merged view of a type and all of its ancestors.
type TypeInfo struct {
	Type string
	// Lineage lists the type and its ancestors from highest to lowest
	// precedence. Shared ancestors appear once.
	Lineage []string
	Schema  *config.Schema
	// States is the union of declared state fields, base fields first.
	States      []string
	Description string
}

// Inspect merges the parameter schema of typ across its hierarchy.
//
// Types are linearized depth-first, left to right, each type placed after
// its bases; a shared ancestor keeps its first position. Declarations are
// then applied in that order, so later bases override earlier ones and the
// derived type overrides everything.
func Inspect(src Source, typ string) (*TypeInfo, error) {
	var order []*config.Definition
	visited := make(map[string]bool)
	if err := linearize(src, typ, nil, visited, &order); err != nil {
		return nil, err
	}

	info := &TypeInfo{Type: typ, Schema: config.NewSchema()}
	for _, def := range order {
		info.Schema = info.Schema.Merge(config.NewSchema(def.Params...))
		info.States = appendUnique(info.States, def.States...)
		info.Lineage = append([]string{def.Type}, info.Lineage...)
	}
	info.Description = order[len(order)-1].Description
	return info, nil
}

func linearize(src Source, typ string, stack []string, visited map[string]bool, order *[]*config.Definition) error {
	if i := slices.Index(stack, typ); i >= 0 {
		path := append(append([]string(nil), stack[i:]...), typ)
		return &InheritanceCycleError{Path: path}
	}
	if visited[typ] {
		return nil
	}
	def, ok := src.Definition(typ)
	if !ok {
		return &UnknownTypeError{Type: typ}
	}

	stack = append(stack, typ)
	for _, base := range def.Bases {
		if err := linearize(src, base, stack, visited, order); err != nil {
			return err
		}
	}
	visited[typ] = true
	*order = append(*order, def)
	return nil
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if !slices.Contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}
