package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/stevecastle/reblog/cookies"
	"github.com/stevecastle/reblog/events"
	"github.com/stevecastle/reblog/queue"
)

// CrawlerConfig wires a Crawler.
type CrawlerConfig struct {
	Queue    *queue.Manager
	Library  Library
	Registry *CrawlRegistry
	Jar      *cookies.Jar
	Bus      *events.Bus
	Logger   *log.Logger
	Workers  int
	Timeout  time.Duration
}

// Crawler runs queued blogs on a fixed pool of workers and announces when
// the queue has drained.
type Crawler struct {
	cfg CrawlerConfig

	mu      sync.Mutex
	running int
	busy    bool
	client  *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCrawler creates a crawler. It does nothing until initialized.
func NewCrawler(cfg CrawlerConfig) *Crawler {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Registry == nil {
		cfg.Registry = NewCrawlRegistry()
	}
	return &Crawler{cfg: cfg}
}

// Initialize starts listening for queue signals.
func (c *Crawler) Initialize(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-c.cfg.Queue.Signal:
				c.CheckForWork()
			}
		}
	}()
	return nil
}

// CheckForWork claims items until the pool is full or nothing is left.
func (c *Crawler) CheckForWork() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fillLocked()
}

func (c *Crawler) fillLocked() {
	if c.ctx == nil || c.ctx.Err() != nil {
		return
	}
	for c.running < c.cfg.Workers {
		item := c.cfg.Queue.Claim()
		if item == nil {
			return
		}
		c.running++
		c.busy = true
		c.wg.Add(1)
		go c.run(*item)
	}
}

func (c *Crawler) run(item queue.Item) {
	defer c.wg.Done()

	err := c.crawl(item)
	switch {
	case err != nil && c.ctx.Err() != nil:
		_ = c.cfg.Queue.Requeue(item.ID)
	case err != nil:
		c.cfg.Logger.Warn().Err(err).Str("component", "controllers.crawler").Str("blog", item.Name).Msg("crawl failed")
		_ = c.cfg.Queue.Fail(item.ID, err.Error())
	default:
		_ = c.cfg.Queue.Complete(item.ID)
	}

	c.mu.Lock()
	c.running--
	c.fillLocked()
	finished := c.running == 0 && c.busy && c.cfg.Queue.Idle()
	if finished {
		c.busy = false
	}
	c.mu.Unlock()

	if finished && c.ctx.Err() == nil {
		c.cfg.Logger.Info().Str("component", "controllers.crawler").Msg("finished crawling last blog")
		c.cfg.Bus.Publish(c.ctx, events.CrawlerFinishedLastBlog)
	}
}

func (c *Crawler) crawl(item queue.Item) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crawl panicked: %v", r)
		}
	}()

	blog, ok := c.cfg.Library.Blog(item.Name, item.BlogType)
	if !ok {
		return fmt.Errorf("blog %s is not in the library", item.Name)
	}
	fn, ok := c.cfg.Registry.Lookup(item.BlogType)
	if !ok {
		return fmt.Errorf("no crawler for blog type %q", item.BlogType)
	}
	client, err := c.httpClient()
	if err != nil {
		return err
	}

	ctx := c.ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	return fn(ctx, client, blog)
}

// httpClient is built on first use so it sees the cookies restored after
// the crawler was initialized.
func (c *Crawler) httpClient() (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client := &http.Client{}
	if c.cfg.Jar != nil {
		jar, err := c.cfg.Jar.HTTPJar()
		if err != nil {
			return nil, err
		}
		client.Jar = jar
	}
	c.client = client
	return client, nil
}

// Shutdown stops claiming work and waits for running crawls.
func (c *Crawler) Shutdown(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	return nil
}
