package results

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yxonic/fret/internal/workspace"
)

// Measurement is one recorded value.
type Measurement struct {
	// Source is the result file, relative to the collection root.
	Source string
	Metric string
	Value  float64
	// Fields holds the flattened configuration and extras of the line.
	Fields map[string]any
}

// Descending reports whether lower values of the metric are better.
func (m Measurement) Descending() bool {
	return strings.HasSuffix(m.Metric, "-")
}

// Collect reads every result file under fsys matching pattern, a
// doublestar glob such as "ws/**". Directories that match have their
// result/*.jsonl files read. With last set only the final line of each
// file is kept.
func Collect(fsys fs.FS, pattern string, last bool) ([]Measurement, error) {
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		info, err := fs.Stat(fsys, m)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if strings.HasSuffix(m, ".jsonl") {
				files = append(files, m)
			}
			continue
		}
		inner, err := doublestar.Glob(fsys, path.Join(escape(m), "result", "*.jsonl"))
		if err != nil {
			return nil, err
		}
		files = append(files, inner...)
	}
	slices.Sort(files)
	files = slices.Compact(files)

	var out []Measurement
	for _, f := range files {
		ms, err := readFile(fsys, f)
		if err != nil {
			return nil, err
		}
		if last && len(ms) > 0 {
			ms = ms[len(ms)-1:]
		}
		out = append(out, ms...)
	}
	return out, nil
}

func readFile(fsys fs.FS, name string) ([]Measurement, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	var out []Measurement
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var fields map[string]any
		if err := json.Unmarshal(line, &fields); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, n, err)
		}
		metric, _ := fields[workspace.ResultMetricKey].(string)
		value, ok := fields[workspace.ResultValueKey].(float64)
		if metric == "" || !ok {
			return nil, fmt.Errorf("%s:%d: line has no metric or value", name, n)
		}
		delete(fields, workspace.ResultMetricKey)
		delete(fields, workspace.ResultValueKey)
		delete(fields, workspace.ResultTimeKey)
		out = append(out, Measurement{
			Source: name,
			Metric: workspace.NormalizeMetric(metric),
			Value:  value,
			Fields: fields,
		})
	}
	return out, sc.Err()
}

// escape quotes glob metacharacters in a literal path.
func escape(p string) string {
	var b strings.Builder
	for _, r := range p {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
