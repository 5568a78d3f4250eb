package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type counter struct {
	Count   int       `cty:"cnt"`
	Weights []float64 `cty:"weights"`
	Seed    int64
	skipped int
}

type custom struct {
	counter
	extra string
}

func (c *custom) StateDict() (map[string]cty.Value, error) {
	return map[string]cty.Value{"extra": cty.StringVal(c.extra)}, nil
}

func (c *custom) LoadStateDict(state map[string]cty.Value) error {
	if v, ok := state["extra"]; ok {
		c.extra = v.AsString()
	}
	return nil
}

func TestExtractRestore(t *testing.T) {
	src := &counter{Count: 3, Weights: []float64{0.5, 1.5}, Seed: 42}
	dict, err := Extract(src, []string{"cnt", "weights", "seed"})
	require.NoError(t, err)
	assert.True(t, dict["cnt"].RawEquals(cty.NumberIntVal(3)))
	assert.Equal(t, 2, dict["weights"].LengthInt())

	dst := &counter{}
	require.NoError(t, Restore(dst, []string{"cnt", "weights", "seed"}, dict))
	assert.Equal(t, 3, dst.Count)
	assert.Equal(t, []float64{0.5, 1.5}, dst.Weights)
	assert.Equal(t, int64(42), dst.Seed)
}

func TestExtractErrors(t *testing.T) {
	_, err := Extract(&counter{}, []string{"missing"})
	assert.ErrorContains(t, err, `no state field "missing"`)

	_, err = Extract(counter{}, []string{"cnt"})
	assert.ErrorContains(t, err, "pointer to a struct")

	_, err = Extract(&counter{}, []string{"skipped"})
	assert.Error(t, err, "unexported fields are not state")
}

func TestRestoreLeavesMissingFields(t *testing.T) {
	c := &counter{Count: 7}
	require.NoError(t, Restore(c, []string{"cnt"}, map[string]cty.Value{}))
	assert.Equal(t, 7, c.Count)
}

func TestOfMergesOwnState(t *testing.T) {
	c := &custom{counter: counter{Count: 2}, extra: "hello"}
	comp := Of(c, []string{"cnt"})
	dict, err := comp.StateDict()
	require.NoError(t, err)
	assert.Len(t, dict, 2)

	other := &custom{}
	require.NoError(t, Of(other, []string{"cnt"}).LoadStateDict(dict))
	assert.Equal(t, 2, other.Count)
	assert.Equal(t, "hello", other.extra)

	// Without declared fields the component is used directly.
	assert.Same(t, c, Of(c, nil))
}

func TestDictJSON(t *testing.T) {
	in := Dict{
		"cnt":   cty.NumberIntVal(3),
		"name":  cty.StringVal("run"),
		"hist":  cty.ListVal([]cty.Value{cty.NumberFloatVal(0.25), cty.NumberFloatVal(0.5)}),
		"empty": cty.NullVal(cty.String),
	}
	b, err := json.Marshal(in)
	require.NoError(t, err)

	var out Dict
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out, len(in))
	for k, v := range in {
		assert.True(t, out[k].Type().Equals(v.Type()), k)
		assert.True(t, out[k].Equals(v).True() || (v.IsNull() && out[k].IsNull()), k)
	}
}

func TestUnmarshalValueErrors(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"value": 1}`))
	assert.ErrorContains(t, err, "no type")

	var d Dict
	assert.Error(t, json.Unmarshal([]byte(`{"type":"string","value":"x"}`), &d))
}

func TestSame(t *testing.T) {
	a, b := &counter{}, &counter{}
	assert.True(t, Same(a, a))
	assert.False(t, Same(a, b))

	m := map[string]int{}
	assert.True(t, Same(m, m))
	assert.False(t, Same(m, map[string]int{}))
	assert.False(t, Same(a, m))

	assert.True(t, Same(Of(a, []string{"cnt"}), Of(a, []string{"cnt"})))
	assert.True(t, Same(Of(a, []string{"cnt"}), a))
	assert.False(t, Same(Of(a, []string{"cnt"}), Of(b, []string{"cnt"})))
}
