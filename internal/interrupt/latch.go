// Package interrupt latches interrupt requests so that they take effect at
// safe points instead of wherever the program happens to be.
//
// Code that must not be stopped half way runs inside Protect. An interrupt
// arriving there only sets a flag, which the owner consumes with Take at
// its next safe point. An interrupt arriving outside any protected region
// cancels the latch's context at once.
package interrupt

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/yxonic/fret/internal/ctxlog"
)

// ErrInterrupted is the cancellation cause of an interrupted context.
var ErrInterrupted = errors.New("interrupted")

// Latch holds the interrupt flag for one context.
type Latch struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	protected int
	pending   bool
	requests  int
}

// WithLatch returns a copy of parent that is cancelled by unprotected
// interrupts, and the latch controlling it.
func WithLatch(parent context.Context) (context.Context, *Latch) {
	ctx, cancel := context.WithCancelCause(parent)
	l := &Latch{ctx: ctx, cancel: cancel}
	return ctx, l
}

// Interrupt requests an interrupt.
func (l *Latch) Interrupt() {
	l.mu.Lock()
	l.requests++
	if l.protected > 0 {
		l.pending = true
		l.mu.Unlock()
		ctxlog.FromContext(l.ctx).Warn("Interrupt latched, stopping at the next checkpoint.")
		return
	}
	l.mu.Unlock()
	ctxlog.FromContext(l.ctx).Warn("Interrupt received outside a protected region.")
	l.cancel(ErrInterrupted)
}

// Protect enters a protected region. Regions nest; the returned function
// leaves the region and must be called exactly once. Leaving the outermost
// region with an interrupt still pending cancels the context.
func (l *Latch) Protect() (release func()) {
	l.mu.Lock()
	l.protected++
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.protected--
			deliver := l.protected == 0 && l.pending
			l.mu.Unlock()
			if deliver {
				l.cancel(ErrInterrupted)
			}
		})
	}
}

// Pending reports whether an interrupt is latched.
func (l *Latch) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Take consumes a latched interrupt and reports whether there was one.
func (l *Latch) Take() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.pending
	l.pending = false
	return p
}

// Requests returns the number of interrupts requested so far.
func (l *Latch) Requests() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.requests
}

// Cancel cancels the context with cause.
func (l *Latch) Cancel(cause error) {
	l.cancel(cause)
}

// Notify forwards the given signals, SIGINT and SIGTERM by default, to
// Interrupt until stop is called or the context ends. After that the
// signals get their default behavior again.
func (l *Latch) Notify(sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				ctxlog.FromContext(l.ctx).Debug("Received signal.", "signal", sig.String())
				l.Interrupt()
			case <-l.ctx.Done():
				signal.Stop(ch)
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
