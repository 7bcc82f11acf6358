// Package controllers holds the sub-controllers the orchestrator drives:
// library manager, queue, details and crawler.
package controllers

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"
	"github.com/stevecastle/reblog/appconfig"
	"github.com/stevecastle/reblog/events"
)

// Manager owns the blog library. Loading happens in the background and
// completion is announced with events.LibraryLoaded.
type Manager struct {
	libraryDir string
	settings   *appconfig.ManagerSettings
	bus        *events.Bus
	logger     *log.Logger

	mu      sync.RWMutex
	blogs   map[string]Blog
	columns []appconfig.Column
	loaded  chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a library manager reading index files from libraryDir.
func NewManager(libraryDir string, settings *appconfig.ManagerSettings, bus *events.Bus, logger *log.Logger) *Manager {
	return &Manager{
		libraryDir: libraryDir,
		settings:   settings,
		bus:        bus,
		logger:     logger,
		blogs:      make(map[string]Blog),
		loaded:     make(chan struct{}),
	}
}

func blogKey(name, blogType string) string {
	return blogType + "/" + name
}

// Initialize starts loading the library and returns immediately.
func (m *Manager) Initialize(ctx context.Context) error {
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error().Str("component", "controllers.manager").Str("panic", fmt.Sprint(r)).Msg("library load panicked")
			}
		}()
		m.load(loadCtx)
	}()
	return nil
}

func (m *Manager) load(ctx context.Context) {
	blogs, err := LoadLibrary(m.libraryDir, m.logger)
	if err != nil {
		m.logger.Error().Err(err).Str("component", "controllers.manager").Msg("could not load library")
	}

	m.mu.Lock()
	for _, b := range blogs {
		m.blogs[blogKey(b.Name, b.BlogType)] = b
	}
	m.mu.Unlock()
	close(m.loaded)

	if ctx.Err() != nil {
		return
	}
	m.logger.Info().Str("component", "controllers.manager").Int("blogs", len(blogs)).Msg("library loaded")
	m.bus.Publish(ctx, events.LibraryLoaded)
}

// Loaded is closed once the library scan has finished.
func (m *Manager) Loaded() <-chan struct{} {
	return m.loaded
}

// Blog implements Library.
func (m *Manager) Blog(name, blogType string) (Blog, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blogs[blogKey(name, blogType)]
	return b, ok
}

// Blogs returns the library sorted by name.
func (m *Manager) Blogs() []Blog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Blog, 0, len(m.blogs))
	for _, b := range m.blogs {
		out = append(out, b)
	}
	sortBlogs(out)
	return out
}

// RestoreColumns applies the persisted column layout in display order.
func (m *Manager) RestoreColumns() []appconfig.Column {
	cols := m.settings.OrderedColumns()
	m.mu.Lock()
	m.columns = cols
	m.mu.Unlock()
	return cols
}

// Columns returns the layout applied by RestoreColumns.
func (m *Manager) Columns() []appconfig.Column {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]appconfig.Column(nil), m.columns...)
}

// Shutdown stops announcing the load and waits for the scan to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	return nil
}
