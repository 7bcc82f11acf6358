package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Blog types with a built-in crawl function.
const (
	BlogTypeTumblr = "tumblr"
)

// CrawlFunc crawls one blog using client.
type CrawlFunc func(ctx context.Context, client *http.Client, blog Blog) error

// CrawlRegistry maps blog types to crawl functions.
type CrawlRegistry struct {
	mu  sync.RWMutex
	fns map[string]CrawlFunc
}

// NewCrawlRegistry returns a registry with the built-in crawl functions.
func NewCrawlRegistry() *CrawlRegistry {
	r := &CrawlRegistry{fns: make(map[string]CrawlFunc)}
	r.Register(BlogTypeTumblr, ProbeBlog)
	return r
}

// Register sets the crawl function for blogType.
func (r *CrawlRegistry) Register(blogType string, fn CrawlFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[blogType] = fn
}

// Lookup returns the crawl function for blogType.
func (r *CrawlRegistry) Lookup(blogType string) (CrawlFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[blogType]
	return fn, ok
}

// ProbeBlog checks that the blog answers. Fetching posts is left to the
// blog-type specific crawlers.
func ProbeBlog(ctx context.Context, client *http.Client, blog Blog) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, blog.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", blog.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned %s", blog.URL, resp.Status)
	}
	return nil
}
