package results

import (
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evalLines = `{"main.lr": 0.1, "main.layers": 2, "metrics": "acc+", "value": 0.5, "time": "2024-01-01T00:00:00Z"}
{"main.lr": 0.1, "main.layers": 2, "metrics": "acc+", "value": 0.7}
{"main.lr": 0.1, "main.layers": 2, "metrics": "loss-", "value": 0.3}
{"main.lr": 0.01, "main.layers": 2, "metrics": "acc+", "value": 0.6}
`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"ws/a/result/eval.jsonl":  {Data: []byte(evalLines)},
		"ws/a/log/main.log":       {Data: []byte("not a result")},
		"ws/b/result/other.jsonl": {Data: []byte(`{"main.lr": 0.01, "main.layers": 2, "metrics": "loss", "value": 0.2}` + "\n")},
	}
}

func TestCollect(t *testing.T) {
	ms, err := Collect(testFS(), "ws/**", false)
	require.NoError(t, err)
	require.Len(t, ms, 5)
	assert.Equal(t, "ws/a/result/eval.jsonl", ms[0].Source)
	assert.Equal(t, "acc+", ms[0].Metric)
	assert.NotContains(t, ms[0].Fields, "time")
	assert.Equal(t, "loss+", ms[4].Metric, "a metric without suffix is ascending")

	ms, err = Collect(testFS(), "ws/*", true)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 0.6, ms[0].Value)
}

func TestCollectBadLine(t *testing.T) {
	fsys := fstest.MapFS{"r/result/x.jsonl": {Data: []byte("{\"value\": 1}\n")}}
	_, err := Collect(fsys, "r", false)
	assert.ErrorContains(t, err, "x.jsonl:1: line has no metric or value")
}

func TestSummarize(t *testing.T) {
	ms, err := Collect(fstest.MapFS{"ws/a/result/eval.jsonl": {Data: []byte(evalLines)}}, "ws/a", false)
	require.NoError(t, err)

	tests := []struct {
		name string
		opts Options
		want *Table
	}{
		{
			name: "best",
			opts: Options{Format: "%.2f"},
			want: &Table{
				Headers: []string{"main.lr", "acc+", "loss-"},
				Rows:    [][]string{{"0.01", "0.60", "-"}, {"0.1", "0.70", "0.30"}},
			},
		},
		{
			name: "mean of one column",
			opts: Options{Scheme: SchemeMean, Columns: []string{"acc"}, Format: "%.2f"},
			want: &Table{
				Headers: []string{"main.lr", "acc+"},
				Rows:    [][]string{{"0.01", "0.60"}, {"0.1", "0.60"}},
			},
		},
		{
			name: "top 1 mean with error",
			opts: Options{Scheme: SchemeMeanWithError, Rows: []string{"main.layers"}, Columns: []string{"acc+"}, TopK: 1, Format: "%.1f"},
			want: &Table{
				Headers: []string{"main.layers", "acc+"},
				Rows:    [][]string{{"2", "0.7±0.0"}},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Summarize(ms, tc.opts)
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, err = Summarize(nil, Options{})
	assert.ErrorIs(t, err, ErrNoResults)
	_, err = Summarize(ms, Options{Columns: []string{"nope"}})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("mean")
	require.NoError(t, err)
	assert.Equal(t, SchemeMean, s)
	_, err = ParseScheme("median")
	assert.Error(t, err)
}
