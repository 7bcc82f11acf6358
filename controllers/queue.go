package controllers

import (
	"context"
	"sync"

	"github.com/phuslu/log"
	"github.com/stevecastle/reblog/appconfig"
	"github.com/stevecastle/reblog/queue"
)

// Queue restores the persisted queue list into the shared queue and writes
// the unfinished items back on shutdown.
type Queue struct {
	settings *appconfig.QueueSettings
	queue    *queue.Manager
	library  Library
	logger   *log.Logger

	mu     sync.Mutex
	loaded bool
}

// NewQueue creates the queue controller.
func NewQueue(settings *appconfig.QueueSettings, q *queue.Manager, library Library, logger *log.Logger) *Queue {
	return &Queue{settings: settings, queue: q, library: library, logger: logger}
}

// Initialize implements subsystems.Controller.
func (c *Queue) Initialize(ctx context.Context) error {
	c.logger.Debug().Str("component", "controllers.queue").Int("items", len(c.settings.Items)).Msg("queue controller ready")
	return nil
}

// LoadQueue enqueues the persisted items whose blog is in the library.
// It runs once; later calls are ignored.
func (c *Queue) LoadQueue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}
	c.loaded = true

	for _, it := range c.settings.Items {
		if _, ok := c.library.Blog(it.Name, it.BlogType); !ok {
			c.logger.Warn().Str("component", "controllers.queue").Str("blog", it.Name).Msg("queued blog is not in the library")
			continue
		}
		c.queue.Add(it.Name, it.BlogType)
	}
}

// Run starts queue processing.
func (c *Queue) Run() {
	c.queue.Resume()
}

// Shutdown pauses processing and persists unfinished items. If the list
// was never loaded the persisted items are left untouched.
func (c *Queue) Shutdown(ctx context.Context) error {
	c.queue.Pause()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return nil
	}
	items := []appconfig.QueueItem{}
	for _, it := range c.queue.Pending() {
		items = append(items, appconfig.QueueItem{Name: it.Name, BlogType: it.BlogType})
	}
	c.settings.Items = items
	for _, it := range c.queue.Snapshot() {
		if it.State == queue.StateCompleted {
			c.settings.LastCrawled = it.Name
		}
	}
	return nil
}
