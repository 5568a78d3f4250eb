package report

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/yxonic/fret/internal/engine"
)

const barTemplate pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{bar . }} {{percent . }}{{with string . "suffix"}} {{.}}{{end}}`

// Progress draws one progress bar per active range.
type Progress struct {
	w io.Writer

	mu   sync.Mutex
	bars map[string]*pb.ProgressBar
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{w: w, bars: make(map[string]*pb.ProgressBar)}
}

// Report implements engine.Reporter.
func (p *Progress) Report(_ context.Context, ev engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case engine.EventStart:
		if old, ok := p.bars[ev.Range]; ok {
			old.Finish()
		}
		bar := barTemplate.New(ev.Total)
		bar.SetWriter(p.w)
		bar.SetCurrent(int64(ev.Cursor))
		bar.Set("prefix", fmt.Sprintf("%s %s:", ev.RunID, ev.Range))
		bar.Start()
		p.bars[ev.Range] = bar

	case engine.EventCheckpoint:
		bar, ok := p.bars[ev.Range]
		if !ok {
			return
		}
		bar.SetCurrent(int64(ev.Cursor))
		bar.Set("suffix", formatAccumulators(ev.Accumulators))
		if ev.Cursor >= ev.Total {
			bar.Finish()
			delete(p.bars, ev.Range)
		}

	case engine.EventInterrupted:
		if bar, ok := p.bars[ev.Range]; ok {
			bar.Set("suffix", "interrupted")
		}
		p.finishAll()

	case engine.EventClosed:
		p.finishAll()
	}
}

func (p *Progress) finishAll() {
	for name, bar := range p.bars {
		bar.Finish()
		delete(p.bars, name)
	}
}

func formatAccumulators(accs map[string]float64) string {
	names := make([]string, 0, len(accs))
	for name := range accs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, accs[name])
	}
	return strings.Join(parts, " ")
}
