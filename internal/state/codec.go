package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

type typedValue struct {
	Type  json.RawMessage `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalValue encodes v together with its type.
func MarshalValue(v cty.Value) ([]byte, error) {
	ty := v.Type()
	tb, err := ctyjson.MarshalType(ty)
	if err != nil {
		return nil, err
	}
	vb, err := ctyjson.Marshal(v, ty)
	if err != nil {
		return nil, err
	}
	return json.Marshal(typedValue{Type: tb, Value: vb})
}

// UnmarshalValue decodes the output of MarshalValue.
func UnmarshalValue(b []byte) (cty.Value, error) {
	var tv typedValue
	if err := json.Unmarshal(b, &tv); err != nil {
		return cty.NilVal, err
	}
	if len(tv.Type) == 0 {
		return cty.NilVal, fmt.Errorf("typed value has no type")
	}
	ty, err := ctyjson.UnmarshalType(tv.Type)
	if err != nil {
		return cty.NilVal, fmt.Errorf("decoding type: %w", err)
	}
	return ctyjson.Unmarshal(tv.Value, ty)
}

// Dict is a state map that encodes to JSON with explicit cty types.
type Dict map[string]cty.Value

// MarshalJSON implements json.Marshaler.
func (d Dict) MarshalJSON() ([]byte, error) {
	return MarshalValue(cty.ObjectVal(d))
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Dict) UnmarshalJSON(b []byte) error {
	v, err := UnmarshalValue(b)
	if err != nil {
		return err
	}
	if !v.Type().IsObjectType() {
		return fmt.Errorf("state must be an object, got %s", v.Type().FriendlyName())
	}
	out := make(Dict, len(v.Type().AttributeTypes()))
	for name := range v.Type().AttributeTypes() {
		out[name] = v.GetAttr(name)
	}
	*d = out
	return nil
}

// Names returns the keys of d, sorted.
func (d Dict) Names() []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
