package results

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
)

// Scheme reduces the values of one table cell.
type Scheme string

const (
	SchemeBest          Scheme = "best"
	SchemeMean          Scheme = "mean"
	SchemeMeanWithError Scheme = "mean_with_error"
)

// ParseScheme validates a scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(s) {
	case SchemeBest, SchemeMean, SchemeMeanWithError:
		return Scheme(s), nil
	}
	return "", fmt.Errorf("unknown scheme %q, want best, mean or mean_with_error", s)
}

// Options controls Summarize.
type Options struct {
	// Rows are the field names identifying a table row. When empty, every
	// field whose value differs between measurements is used.
	Rows []string
	// Columns restricts the metrics shown, in order. Empty means all.
	Columns []string
	Scheme  Scheme
	// TopK, when positive, keeps only the best k values of each cell.
	TopK int
	// Format is a fmt verb for values, "%.4f" by default.
	Format string
}

// Table is a summarized result table.
type Table struct {
	Headers []string
	Rows    [][]string
}

// ErrNoResults is returned when there is nothing to summarize.
var ErrNoResults = errors.New("no results found")

// Summarize groups measurements by the row fields and metric and reduces
// each group with the scheme.
func Summarize(ms []Measurement, opts Options) (*Table, error) {
	if len(ms) == 0 {
		return nil, ErrNoResults
	}
	if opts.Scheme == "" {
		opts.Scheme = SchemeBest
	}
	if opts.Format == "" {
		opts.Format = "%.4f"
	}
	rows := opts.Rows
	if len(rows) == 0 {
		rows = varyingFields(ms)
	}
	columns := opts.Columns
	if len(columns) == 0 {
		columns = metrics(ms)
	} else {
		columns = slices.Clone(columns)
		for i, c := range columns {
			columns[i] = normalizeColumn(c, ms)
		}
	}

	type cell struct{ row, col string }
	values := make(map[cell][]float64)
	rowLabels := make(map[string][]string)
	var rowKeys []string
	for _, m := range ms {
		if !slices.Contains(columns, m.Metric) {
			continue
		}
		labels := make([]string, len(rows))
		for i, r := range rows {
			labels[i] = formatField(m.Fields[r])
		}
		key := strings.Join(labels, "\x00")
		if _, ok := rowLabels[key]; !ok {
			rowLabels[key] = labels
			rowKeys = append(rowKeys, key)
		}
		c := cell{key, m.Metric}
		values[c] = append(values[c], m.Value)
	}
	if len(rowKeys) == 0 {
		return nil, ErrNoResults
	}
	sort.Strings(rowKeys)

	t := &Table{Headers: append(slices.Clone(rows), columns...)}
	for _, key := range rowKeys {
		line := slices.Clone(rowLabels[key])
		for _, col := range columns {
			vs, ok := values[cell{key, col}]
			if !ok {
				line = append(line, "-")
				continue
			}
			line = append(line, reduce(vs, strings.HasSuffix(col, "-"), opts))
		}
		t.Rows = append(t.Rows, line)
	}
	return t, nil
}

func reduce(vs []float64, desc bool, opts Options) string {
	vs = slices.Clone(vs)
	// Best first.
	slices.Sort(vs)
	if !desc {
		slices.Reverse(vs)
	}
	if opts.TopK > 0 && len(vs) > opts.TopK {
		vs = vs[:opts.TopK]
	}

	switch opts.Scheme {
	case SchemeMean:
		return fmt.Sprintf(opts.Format, mean(vs))
	case SchemeMeanWithError:
		return fmt.Sprintf(opts.Format+"±"+opts.Format, mean(vs), stddev(vs))
	default:
		return fmt.Sprintf(opts.Format, vs[0])
	}
}

func mean(vs []float64) float64 {
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

// stddev is the population standard deviation.
func stddev(vs []float64) float64 {
	m := mean(vs)
	sum := 0.0
	for _, v := range vs {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vs)))
}

func metrics(ms []Measurement) []string {
	var out []string
	for _, m := range ms {
		if !slices.Contains(out, m.Metric) {
			out = append(out, m.Metric)
		}
	}
	sort.Strings(out)
	return out
}

// normalizeColumn lets a column be given without its direction suffix.
func normalizeColumn(c string, ms []Measurement) string {
	for _, m := range ms {
		if m.Metric == c || strings.TrimRight(m.Metric, "+-") == c {
			return m.Metric
		}
	}
	return c
}

// varyingFields returns the fields whose values are not the same across
// all measurements.
func varyingFields(ms []Measurement) []string {
	first := make(map[string]string)
	varying := make(map[string]bool)
	seen := make(map[string]int)
	for _, m := range ms {
		for k, v := range m.Fields {
			f := formatField(v)
			if prev, ok := first[k]; !ok {
				first[k] = f
			} else if prev != f {
				varying[k] = true
			}
			seen[k]++
		}
	}
	var out []string
	for k := range first {
		if varying[k] || seen[k] != len(ms) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func formatField(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	}
	return fmt.Sprint(v)
}
