// Package queue holds the crawl queue shared by the queue, crawler and
// details controllers.
package queue

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ItemState represents the current state of a queued blog.
type ItemState int

const (
	StatePending ItemState = iota
	StateActive
	StateCompleted
	StateError
)

func (s ItemState) String() string {
	switch s {
	case StatePending:
		return "Pending"
	case StateActive:
		return "Active"
	case StateCompleted:
		return "Completed"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// MarshalJSON serializes ItemState as a lowercase string.
func (s ItemState) MarshalJSON() ([]byte, error) {
	var str string
	switch s {
	case StatePending:
		str = "pending"
	case StateActive:
		str = "active"
	case StateCompleted:
		str = "completed"
	case StateError:
		str = "error"
	default:
		str = "unknown"
	}
	return json.Marshal(str)
}

// UnmarshalJSON deserializes ItemState from a string.
func (s *ItemState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "active":
		*s = StateActive
	case "completed":
		*s = StateCompleted
	case "error":
		*s = StateError
	default:
		*s = StatePending
	}
	return nil
}

var (
	ErrNotFound  = errors.New("queue item not found")
	ErrNotActive = errors.New("queue item is not active")
)

// Item is one blog waiting for, or undergoing, a crawl.
type Item struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	BlogType string    `json:"blogType"`
	State    ItemState `json:"state"`
	Message  string    `json:"message,omitempty"`

	AddedAt    time.Time `json:"addedAt"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Manager is a thread-safe FIFO of crawl items.
type Manager struct {
	mu      sync.Mutex
	items   map[string]*Item
	order   []string
	running bool
	active  int

	// Signal receives a value whenever there may be claimable work.
	Signal chan struct{}
}

// NewManager creates an empty, paused queue.
func NewManager() *Manager {
	return &Manager{
		items:  make(map[string]*Item),
		Signal: make(chan struct{}, 1),
	}
}

func (m *Manager) notify() {
	select {
	case m.Signal <- struct{}{}:
	default:
	}
}

// Add appends a blog to the queue and returns its id. A blog that is
// already pending or active is not queued twice.
func (m *Manager) Add(name, blogType string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		it := m.items[id]
		if it.Name == name && it.BlogType == blogType && (it.State == StatePending || it.State == StateActive) {
			return id
		}
	}

	id := uuid.New().String()
	m.items[id] = &Item{
		ID:       id,
		Name:     name,
		BlogType: blogType,
		State:    StatePending,
		AddedAt:  time.Now(),
	}
	m.order = append(m.order, id)
	if m.running {
		m.notify()
	}
	return id
}

// Claim returns the oldest pending item and marks it active. It returns
// nil while the queue is paused or when nothing is pending.
func (m *Manager) Claim() *Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	for _, id := range m.order {
		it := m.items[id]
		if it.State != StatePending {
			continue
		}
		it.State = StateActive
		it.StartedAt = time.Now()
		m.active++
		c := *it
		return &c
	}
	return nil
}

// Complete marks an active item as completed.
func (m *Manager) Complete(id string) error {
	return m.finish(id, StateCompleted, "")
}

// Fail marks an active item as errored with a message.
func (m *Manager) Fail(id, message string) error {
	return m.finish(id, StateError, message)
}

func (m *Manager) finish(id string, state ItemState, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.State != StateActive {
		return ErrNotActive
	}
	it.State = state
	it.Message = message
	it.FinishedAt = time.Now()
	m.active--
	m.notify()
	return nil
}

// Requeue returns an active item to pending, for crawls interrupted by
// shutdown.
func (m *Manager) Requeue(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.State != StateActive {
		return ErrNotActive
	}
	it.State = StatePending
	it.StartedAt = time.Time{}
	m.active--
	return nil
}

// Remove drops an item from the queue.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.State == StateActive {
		m.active--
	}
	delete(m.items, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Pending returns the items that have not finished, active ones included,
// in queue order.
func (m *Manager) Pending() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, id := range m.order {
		it := m.items[id]
		if it.State == StatePending || it.State == StateActive {
			out = append(out, *it)
		}
	}
	return out
}

// Snapshot returns every item in queue order.
func (m *Manager) Snapshot() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.items[id])
	}
	return out
}

// Resume lets workers claim items.
func (m *Manager) Resume() {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	m.notify()
}

// Pause stops new claims. Active items keep running.
func (m *Manager) Pause() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Running reports whether claims are allowed.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Idle reports whether nothing is pending or active.
func (m *Manager) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active > 0 {
		return false
	}
	for _, it := range m.items {
		if it.State == StatePending {
			return false
		}
	}
	return true
}
