package interrupt

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnprotectedInterruptCancels(t *testing.T) {
	ctx, l := WithLatch(context.Background())
	l.Interrupt()

	require.Error(t, ctx.Err())
	assert.ErrorIs(t, context.Cause(ctx), ErrInterrupted)
	assert.False(t, l.Pending())
	assert.Equal(t, 1, l.Requests())
}

func TestProtectedInterruptIsLatched(t *testing.T) {
	ctx, l := WithLatch(context.Background())
	release := l.Protect()

	l.Interrupt()
	assert.NoError(t, ctx.Err(), "latched interrupt must not cancel")
	assert.True(t, l.Pending())

	assert.True(t, l.Take())
	assert.False(t, l.Take())
	release()
	assert.NoError(t, ctx.Err(), "consumed interrupt must not be delivered")
}

func TestNestedRegions(t *testing.T) {
	ctx, l := WithLatch(context.Background())
	outer := l.Protect()
	inner := l.Protect()

	l.Interrupt()
	l.Interrupt()
	inner()
	assert.NoError(t, ctx.Err(), "still inside the outer region")
	assert.Equal(t, 2, l.Requests())

	outer()
	outer() // no-op
	assert.ErrorIs(t, context.Cause(ctx), ErrInterrupted)
}

func TestCancelWithCause(t *testing.T) {
	ctx, l := WithLatch(context.Background())
	cause := errors.New("stopped")
	l.Cancel(cause)
	assert.Equal(t, cause, context.Cause(ctx))
}

func TestNotify(t *testing.T) {
	ctx, l := WithLatch(context.Background())
	stop := l.Notify(syscall.SIGUSR1)
	defer stop()
	release := l.Protect()
	defer release()

	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, p.Signal(syscall.SIGUSR1))

	require.Eventually(t, l.Pending, time.Second, 5*time.Millisecond)
	assert.NoError(t, ctx.Err())
	stop()
	stop()
}

func TestNotifyStopsWithContext(t *testing.T) {
	// guard keeps SIGUSR1 from terminating the test binary once the latch
	// stops listening.
	guard := make(chan os.Signal, 1)
	signal.Notify(guard, syscall.SIGUSR1)
	defer signal.Stop(guard)

	_, l := WithLatch(context.Background())
	stop := l.Notify(syscall.SIGUSR1)
	defer stop()
	l.Cancel(errors.New("done"))

	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		before := l.Requests()
		if p.Signal(syscall.SIGUSR1) != nil {
			return false
		}
		<-guard
		time.Sleep(20 * time.Millisecond)
		return l.Requests() == before
	}, 2*time.Second, 10*time.Millisecond, "signals are no longer forwarded")
}
