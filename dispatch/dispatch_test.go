package dispatch

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(buf *bytes.Buffer) *Dispatcher {
	return New(&log.Logger{Level: log.DebugLevel, Writer: &log.IOWriter{Writer: buf}})
}

func (d *Dispatcher) idleLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.idle)
}

func TestIdleRunsAfterNormalWork(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDispatcher(&buf)
	defer d.Stop()

	var mu sync.Mutex
	var order []string
	record := func(s string) func() {
		return func() {
			mu.Lock()
			order = append(order, s)
			mu.Unlock()
		}
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(2)

	d.Post(record("n1"))
	go func() {
		defer wg.Done()
		assert.NoError(t, d.InvokeIdle(ctx, func() {
			record("i1")()
			d.Post(record("n3"))
		}))
	}()
	require.Eventually(t, func() bool { return d.idleLen() == 1 }, time.Second, time.Millisecond)
	go func() {
		defer wg.Done()
		assert.NoError(t, d.InvokeIdle(ctx, record("i2")))
	}()
	require.Eventually(t, func() bool { return d.idleLen() == 2 }, time.Second, time.Millisecond)
	d.Post(record("n2"))

	d.Start()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"n1", "n2", "i1", "n3", "i2"}, order)
}

func TestInvokeIdleAfterStop(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDispatcher(&buf)
	d.Start()
	d.Stop()

	assert.ErrorIs(t, d.InvokeIdle(context.Background(), func() {}), ErrStopped)
	assert.False(t, d.Post(func() {}))
}

func TestStopAbandonsQueuedIdleWork(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDispatcher(&buf)

	errc := make(chan error, 1)
	go func() { errc <- d.InvokeIdle(context.Background(), func() { t.Error("should not run") }) }()
	require.Eventually(t, func() bool { return d.idleLen() == 1 }, time.Second, time.Millisecond)

	d.Stop()
	assert.ErrorIs(t, <-errc, ErrStopped)
}

func TestInvokeIdleHonoursContext(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDispatcher(&buf)
	defer d.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.InvokeIdle(ctx, func() {}), context.Canceled)
}

func TestPanicIsRecovered(t *testing.T) {
	var buf bytes.Buffer
	d := newTestDispatcher(&buf)
	d.Start()
	defer d.Stop()

	err := d.InvokeIdle(context.Background(), func() { panic("boom") })
	require.Error(t, err)

	ran := false
	require.NoError(t, d.InvokeIdle(context.Background(), func() { ran = true }))
	assert.True(t, ran)
	assert.Contains(t, buf.String(), `"level":"error"`)
}
