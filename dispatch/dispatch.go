// Package dispatch runs work on a single UI goroutine with two priorities.
// Idle work only runs when no normal work is waiting.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/phuslu/log"
)

// ErrStopped is returned for work submitted to or abandoned by a stopped
// Dispatcher.
var ErrStopped = errors.New("dispatcher stopped")

type item struct {
	fn   func()
	done chan error
}

// Dispatcher owns one goroutine that executes posted functions.
type Dispatcher struct {
	mu      sync.Mutex
	normal  []item
	idle    []item
	stopped bool

	wake    chan struct{}
	quit    chan struct{}
	exited  chan struct{}
	started sync.Once
	stopper sync.Once

	logger *log.Logger
}

// New creates a Dispatcher. Call Start to begin processing.
func New(logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger,
	}
}

// Start launches the dispatcher goroutine. Extra calls are no-ops.
func (d *Dispatcher) Start() {
	d.started.Do(func() { go d.loop() })
}

// Post queues fn at normal priority. It reports false after Stop.
func (d *Dispatcher) Post(fn func()) bool {
	_, ok := d.enqueue(fn, false)
	return ok
}

// InvokeIdle queues fn at idle priority and waits for it to finish.
func (d *Dispatcher) InvokeIdle(ctx context.Context, fn func()) error {
	done, ok := d.enqueue(fn, true)
	if !ok {
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the dispatcher. Queued work that has not started is abandoned
// and its waiters receive ErrStopped.
func (d *Dispatcher) Stop() {
	d.stopper.Do(func() {
		d.mu.Lock()
		d.stopped = true
		pending := append(d.normal, d.idle...)
		d.normal, d.idle = nil, nil
		d.mu.Unlock()

		close(d.quit)
		for _, it := range pending {
			if it.done != nil {
				it.done <- ErrStopped
			}
		}
		d.Start()
		<-d.exited
	})
}

func (d *Dispatcher) enqueue(fn func(), idle bool) (chan error, bool) {
	it := item{fn: fn}
	if idle {
		it.done = make(chan error, 1)
	}

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil, false
	}
	if idle {
		d.idle = append(d.idle, it)
	} else {
		d.normal = append(d.normal, it)
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return it.done, true
}

func (d *Dispatcher) next() (item, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.normal) > 0 {
		it := d.normal[0]
		d.normal = d.normal[1:]
		return it, true
	}
	if len(d.idle) > 0 {
		it := d.idle[0]
		d.idle = d.idle[1:]
		return it, true
	}
	return item{}, false
}

func (d *Dispatcher) loop() {
	defer close(d.exited)
	for {
		select {
		case <-d.quit:
			return
		case <-d.wake:
		}
		for {
			select {
			case <-d.quit:
				return
			default:
			}
			it, ok := d.next()
			if !ok {
				break
			}
			err := d.run(it.fn)
			if it.done != nil {
				it.done <- err
			}
		}
	}
}

func (d *Dispatcher) run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatched work panicked: %v", r)
			d.logger.Error().Err(err).Str("component", "dispatch").Msg("recovered panic")
		}
	}()
	fn()
	return nil
}
