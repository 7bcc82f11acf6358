package controllers

import (
	"context"
	"sync"

	"github.com/stevecastle/reblog/queue"
)

// Summary counts queue outcomes for the details view.
type Summary struct {
	Completed int
	Failed    int
	Pending   int
	LastBlog  string
}

// Details keeps the summary shown in the details view.
type Details struct {
	queue  *queue.Manager
	update func()

	mu      sync.Mutex
	summary Summary
}

// NewDetails creates the details controller. update is invoked after each
// refresh so the shell can redraw.
func NewDetails(q *queue.Manager, update func()) *Details {
	return &Details{queue: q, update: update}
}

// Initialize implements subsystems.Controller.
func (d *Details) Initialize(ctx context.Context) error {
	d.refresh()
	return nil
}

// OnFinishedCrawlingLastBlog refreshes the summary and the view.
func (d *Details) OnFinishedCrawlingLastBlog() {
	d.refresh()
	if d.update != nil {
		d.update()
	}
}

// Summary returns the latest summary.
func (d *Details) Summary() Summary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.summary
}

func (d *Details) refresh() {
	var s Summary
	for _, it := range d.queue.Snapshot() {
		switch it.State {
		case queue.StateCompleted:
			s.Completed++
			s.LastBlog = it.Name
		case queue.StateError:
			s.Failed++
			s.LastBlog = it.Name
		default:
			s.Pending++
		}
	}
	d.mu.Lock()
	d.summary = s
	d.mu.Unlock()
}

// Shutdown implements subsystems.Controller.
func (d *Details) Shutdown(ctx context.Context) error {
	return nil
}
