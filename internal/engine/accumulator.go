package engine

import "sync"

// Accumulator is a named running sum owned by a run. Its value and count
// are written with every checkpoint.
type Accumulator struct {
	name string

	mu    sync.Mutex
	value float64
	count int
}

// Name returns the accumulator name.
func (a *Accumulator) Name() string { return a.name }

// Add adds v and counts one observation.
func (a *Accumulator) Add(v float64) {
	a.mu.Lock()
	a.value += v
	a.count++
	a.mu.Unlock()
}

// Inc adds one.
func (a *Accumulator) Inc() { a.Add(1) }

// Value returns the current sum.
func (a *Accumulator) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

// Count returns the number of Add calls since the last reset.
func (a *Accumulator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Mean returns Value/Count, or 0 if nothing was added.
func (a *Accumulator) Mean() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return 0
	}
	return a.value / float64(a.count)
}

// Reset sets the value to v and the count to zero.
func (a *Accumulator) Reset(v float64) {
	a.mu.Lock()
	a.value, a.count = v, 0
	a.mu.Unlock()
}

func (a *Accumulator) snapshot() AccumulatorState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AccumulatorState{Value: a.value, Count: a.count}
}
