package config

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Setting is one resolved scalar parameter.
type Setting struct {
	Name  string
	Value cty.Value
}

// Ref is a resolved submodule parameter: Param refers to the workspace entry
// named Entry.
type Ref struct {
	Param string
	Entry string
}

// Spec is a fully resolved configuration: a type name, the parameter values
// after defaults and overrides, and submodule references by entry name.
// A Spec is immutable; accessors return copies.
type Spec struct {
	typ    string
	params []Setting
	refs   []Ref
}

// NewSpec builds a Spec. Numbers are normalized so that a spec read back
// from its encoded form compares equal to the original.
func NewSpec(typ string, params []Setting, refs []Ref) (Spec, error) {
	s := Spec{typ: typ}
	seen := make(map[string]bool, len(params)+len(refs))
	for _, p := range params {
		if seen[p.Name] {
			return Spec{}, fmt.Errorf("duplicate parameter %q in %s", p.Name, typ)
		}
		seen[p.Name] = true
		v, err := Normalize(p.Value)
		if err != nil {
			return Spec{}, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		s.params = append(s.params, Setting{Name: p.Name, Value: v})
	}
	for _, r := range refs {
		if seen[r.Param] {
			return Spec{}, fmt.Errorf("duplicate parameter %q in %s", r.Param, typ)
		}
		seen[r.Param] = true
		s.refs = append(s.refs, r)
	}
	return s, nil
}

// MustSpec is NewSpec that panics on error. Intended for tests and static
// declarations.
func MustSpec(typ string, params []Setting, refs []Ref) Spec {
	s, err := NewSpec(typ, params, refs)
	if err != nil {
		panic(err)
	}
	return s
}

// Type returns the configurable type name.
func (s Spec) Type() string { return s.typ }

// Params returns the scalar parameters in schema order.
func (s Spec) Params() []Setting { return append([]Setting(nil), s.params...) }

// Refs returns the submodule references in schema order.
func (s Spec) Refs() []Ref { return append([]Ref(nil), s.refs...) }

// Param returns the value of a scalar parameter.
func (s Spec) Param(name string) (cty.Value, bool) {
	for _, p := range s.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return cty.NilVal, false
}

// Ref returns the entry name a submodule parameter refers to.
func (s Spec) Ref(param string) (string, bool) {
	for _, r := range s.refs {
		if r.Param == param {
			return r.Entry, true
		}
	}
	return "", false
}

// Equal compares type, parameter values and reference names. It does not
// follow references; see workspace.Equal for that.
func (s Spec) Equal(o Spec) bool {
	if s.typ != o.typ || len(s.params) != len(o.params) || len(s.refs) != len(o.refs) {
		return false
	}
	for i, p := range s.params {
		q := o.params[i]
		if p.Name != q.Name || !p.Value.RawEquals(q.Value) {
			return false
		}
	}
	for i, r := range s.refs {
		if r != o.refs[i] {
			return false
		}
	}
	return true
}

// String renders the spec as Type(name=value, sub=@entry).
func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.typ)
	b.WriteByte('(')
	first := true
	sep := func() {
		if !first {
			b.WriteString(", ")
		}
		first = false
	}
	for _, p := range s.params {
		sep()
		fmt.Fprintf(&b, "%s=%s", p.Name, FormatValue(p.Value))
	}
	for _, r := range s.refs {
		sep()
		fmt.Fprintf(&b, "%s=@%s", r.Param, r.Entry)
	}
	b.WriteByte(')')
	return b.String()
}

// Normalize rewrites every number in v to the canonical 512-bit precision
// produced by the HCL parser.
func Normalize(v cty.Value) (cty.Value, error) {
	if v == cty.NilVal {
		return cty.NilVal, fmt.Errorf("value is nil")
	}
	return cty.Transform(v, func(_ cty.Path, v cty.Value) (cty.Value, error) {
		if !v.Type().Equals(cty.Number) || v.IsNull() || !v.IsKnown() {
			return v, nil
		}
		bf := v.AsBigFloat()
		if bf.IsInf() {
			return v, nil
		}
		return cty.ParseNumberVal(bf.Text('f', -1))
	})
}

// FormatValue renders a value the way it would be written on a command line.
func FormatValue(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "null"
	}
	if !v.IsKnown() {
		return "(unknown)"
	}
	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString()
	case ty == cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case ty == cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	case ty.IsListType() || ty.IsSetType() || ty.IsTupleType():
		var parts []string
		for it := v.ElementIterator(); it.Next(); {
			_, e := it.Element()
			parts = append(parts, FormatValue(e))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ty.IsMapType() || ty.IsObjectType():
		var parts []string
		for it := v.ElementIterator(); it.Next(); {
			k, e := it.Element()
			parts = append(parts, k.AsString()+"="+FormatValue(e))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ty.FriendlyName()
}

// Float returns v as a float64, or false if v is not a known number.
func Float(v cty.Value) (float64, bool) {
	if v == cty.NilVal || v.IsNull() || !v.IsKnown() || !v.Type().Equals(cty.Number) {
		return 0, false
	}
	f, _ := v.AsBigFloat().Float64()
	return f, true
}
