// Package events is a small synchronous signal bus that decouples the
// orchestrator from the controllers it wires together.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"
)

// Signal names a notification.
type Signal string

const (
	LibraryLoaded           Signal = "library.loaded"
	CrawlerFinishedLastBlog Signal = "crawler.finished-last-blog"
	SettingsChanged         Signal = "settings.changed"
	UpdateProgress          Signal = "update.progress"
)

// Handler reacts to a signal. A returned error is logged, never propagated.
type Handler func(ctx context.Context) error

// Subscription identifies a registered handler.
type Subscription struct {
	Signal Signal
	Name   string
	id     uint64
}

type subscriber struct {
	id      uint64
	name    string
	handler Handler
}

// Bus delivers signals to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[Signal][]subscriber
	logger *log.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *log.Logger) *Bus {
	return &Bus{
		subs:   make(map[Signal][]subscriber),
		logger: logger,
	}
}

// Subscribe registers handler for signal under name.
func (b *Bus) Subscribe(signal Signal, name string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[signal] = append(b.subs[signal], subscriber{id: b.nextID, name: name, handler: handler})
	return Subscription{Signal: signal, Name: name, id: b.nextID}
}

// Unsubscribe removes a handler. Unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.Signal]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.Signal] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Subscribers returns how many handlers are registered for signal.
func (b *Bus) Subscribers(signal Signal) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[signal])
}

// Publish runs every handler for signal on the calling goroutine.
func (b *Bus) Publish(ctx context.Context, signal Signal) {
	b.mu.RLock()
	list := append([]subscriber(nil), b.subs[signal]...)
	b.mu.RUnlock()

	for _, s := range list {
		if err := b.invoke(ctx, s); err != nil {
			b.logger.Error().Err(err).Str("component", "events").Str("signal", string(signal)).Str("subscriber", s.name).Msg("event handler failed")
		}
	}
}

func (b *Bus) invoke(ctx context.Context, s subscriber) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(ctx)
}
