package config

import "github.com/zclconf/go-cty/cty"

// Schema is an ordered mapping from parameter name to declaration.
type Schema struct {
	params []*Param
	index  map[string]int
}

// NewSchema builds a schema from declarations. A later declaration of the
// same name replaces an earlier one in place.
func NewSchema(params ...*Param) *Schema {
	s := &Schema{index: make(map[string]int, len(params))}
	for _, p := range params {
		s.put(p.Clone())
	}
	return s
}

func (s *Schema) put(p *Param) {
	if i, ok := s.index[p.Name]; ok {
		s.params[i] = p
		return
	}
	s.index[p.Name] = len(s.params)
	s.params = append(s.params, p)
}

// Len returns the number of parameters.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.params)
}

// Lookup returns the declaration for name.
func (s *Schema) Lookup(name string) (*Param, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.params[i], true
}

// Names returns parameter names in declaration order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.params))
	for i, p := range s.params {
		names[i] = p.Name
	}
	return names
}

// Params returns the declarations in order. The slice is a copy; the
// pointed-to params must not be modified.
func (s *Schema) Params() []*Param {
	if s == nil {
		return nil
	}
	return append([]*Param(nil), s.params...)
}

// Merge returns a new schema where each declaration of over replaces the
// receiver's declaration of the same name. Replaced entries keep their
// position. An overriding entry that leaves Type as cty.NilType or the
// submodule flag unset inherits those from the entry it replaces.
func (s *Schema) Merge(over *Schema) *Schema {
	out := NewSchema(s.Params()...)
	for _, p := range over.Params() {
		merged := p.Clone()
		if prev, ok := out.Lookup(p.Name); ok {
			inherit := merged.Type == cty.NilType
			if inherit {
				merged.Type = prev.Type
				if merged.Default == nil {
					merged.Default = prev.Default
				}
			}
			if merged.Submodule == SubmoduleUnset {
				merged.Submodule = prev.Submodule
				if merged.SubType == "" {
					merged.SubType = prev.SubType
				}
				merged.AutoBuild = merged.AutoBuild || prev.AutoBuild
			}
			if merged.Description == "" {
				merged.Description = prev.Description
			}
		}
		out.put(merged)
	}
	return out
}
