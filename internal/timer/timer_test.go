package timer

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *quartz.Mock) {
	t.Helper()
	mockClock := quartz.NewMock(t)
	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	return NewService(mockClock, logger), mockClock
}

func TestScheduleFires(t *testing.T) {
	svc, mockClock := newTestService(t)
	fired := make(chan struct{})
	svc.Schedule("turn:t1", 10*time.Second, func() { close(fired) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mockClock.Advance(10 * time.Second).MustWait(ctx)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, svc.Pending("turn:t1"))
}

func TestCancelPreventsFire(t *testing.T) {
	svc, mockClock := newTestService(t)
	var fired atomic.Bool
	svc.Schedule("turn:t1", 10*time.Second, func() { fired.Store(true) })

	require.True(t, svc.Cancel("turn:t1"))
	assert.False(t, svc.Cancel("turn:t1"), "second cancel finds nothing")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mockClock.Advance(10 * time.Second).MustWait(ctx)
	assert.False(t, fired.Load())
}

func TestRescheduleReplaces(t *testing.T) {
	svc, mockClock := newTestService(t)
	var first, second atomic.Bool
	svc.Schedule("k", 5*time.Second, func() { first.Store(true) })
	svc.Schedule("k", 20*time.Second, func() { second.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mockClock.Advance(5 * time.Second).MustWait(ctx)
	assert.False(t, first.Load(), "replaced timer never fires")
	assert.False(t, second.Load())

	mockClock.Advance(15 * time.Second).MustWait(ctx)
	assert.False(t, first.Load())
	assert.True(t, second.Load())
}

func TestIndependentKeys(t *testing.T) {
	svc, mockClock := newTestService(t)
	var a, b atomic.Bool
	svc.Schedule("a", 5*time.Second, func() { a.Store(true) })
	svc.Schedule("b", 10*time.Second, func() { b.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mockClock.Advance(5 * time.Second).MustWait(ctx)
	assert.True(t, a.Load())
	assert.False(t, b.Load())
	assert.True(t, svc.Pending("b"))
}

func TestCancelAll(t *testing.T) {
	svc, mockClock := newTestService(t)
	var count atomic.Int32
	svc.Schedule("a", time.Second, func() { count.Add(1) })
	svc.Schedule("b", time.Second, func() { count.Add(1) })
	svc.CancelAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mockClock.Advance(time.Second).MustWait(ctx)
	assert.Equal(t, int32(0), count.Load())
}

func TestTick(t *testing.T) {
	svc, mockClock := newTestService(t)
	var ticks atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	waiter := svc.Tick(ctx, time.Minute, func() { ticks.Add(1) }, "blinds")

	wctx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer wcancel()
	for i := 0; i < 3; i++ {
		mockClock.Advance(time.Minute).MustWait(wctx)
	}
	assert.Equal(t, int32(3), ticks.Load())

	cancel()
	assert.ErrorIs(t, waiter.Wait(), context.Canceled)
}
