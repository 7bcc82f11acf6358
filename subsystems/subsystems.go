// Package subsystems owns the lifecycle of the application's
// sub-controllers: one lazily constructed instance per key, driven through
// an explicit Initialize/Shutdown state machine.
package subsystems

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Controller is an independently initializable unit of the application.
// Shutdown must be safe after a failed Initialize.
type Controller interface {
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Disposer is implemented by controllers holding resources that outlive
// Shutdown.
type Disposer interface {
	Dispose()
}

// Factory constructs a controller on first access.
type Factory func() Controller

// Key identifies a registered controller.
type Key string

// State is the lifecycle position of a controller handle.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
	Failed
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	case ShuttingDown:
		return "ShuttingDown"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

var (
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrUnknownKey        = errors.New("unknown subsystem")
)

type handle struct {
	factory  Factory
	instance Controller
	state    State
}

// Registry holds one instance per key and never retries.
type Registry struct {
	mu       sync.Mutex
	handles  map[Key]*handle
	started  []Key
	disposed bool
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[Key]*handle)}
}

// Register associates a factory with key. Registering a key twice
// replaces the factory only if no instance exists yet.
func (r *Registry) Register(key Key, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok && h.instance != nil {
		return
	}
	r.handles[key] = &handle{factory: factory}
}

// Get returns the instance for key, constructing it on first access.
func (r *Registry) Get(key Key) (Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.handleLocked(key)
	if err != nil {
		return nil, err
	}
	return h.instance, nil
}

// State reports the lifecycle state of key.
func (r *Registry) State(key Key) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok {
		return h.state
	}
	return Uninitialized
}

func (r *Registry) handleLocked(key Key) (*handle, error) {
	h, ok := r.handles[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if h.instance == nil {
		h.instance = h.factory()
	}
	return h, nil
}

func (r *Registry) transition(key Key, from []State, to State) (*handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, err := r.handleLocked(key)
	if err != nil {
		return nil, err
	}
	for _, s := range from {
		if h.state == s {
			h.state = to
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, key, h.state, to)
}

func (r *Registry) settle(h *handle, to State) {
	r.mu.Lock()
	h.state = to
	r.mu.Unlock()
}

// Initialize drives key from Uninitialized to Ready, or to Failed when the
// controller reports an error.
func (r *Registry) Initialize(ctx context.Context, key Key) error {
	h, err := r.transition(key, []State{Uninitialized}, Initializing)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.started = append(r.started, key)
	r.mu.Unlock()

	if err := h.instance.Initialize(ctx); err != nil {
		r.settle(h, Failed)
		return fmt.Errorf("initialize %s: %w", key, err)
	}
	r.settle(h, Ready)
	return nil
}

// Shutdown drives key from Ready or Failed to Stopped. The handle ends
// Stopped even if the controller reports an error.
func (r *Registry) Shutdown(ctx context.Context, key Key) error {
	h, err := r.transition(key, []State{Ready, Failed}, ShuttingDown)
	if err != nil {
		return err
	}
	defer r.settle(h, Stopped)
	if err := h.instance.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown %s: %w", key, err)
	}
	return nil
}

// Started returns the keys in the order Initialize was first called.
func (r *Registry) Started() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Key(nil), r.started...)
}

// ShutdownAll shuts every started controller down in reverse start order
// and returns the errors joined.
func (r *Registry) ShutdownAll(ctx context.Context) error {
	keys := r.Started()
	var errs []error
	for i := len(keys) - 1; i >= 0; i-- {
		if err := r.Shutdown(ctx, keys[i]); err != nil && !errors.Is(err, ErrInvalidTransition) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispose releases every constructed instance exactly once.
func (r *Registry) Dispose() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	var instances []Controller
	for _, h := range r.handles {
		if h.instance != nil {
			instances = append(instances, h.instance)
		}
	}
	r.mu.Unlock()

	for _, c := range instances {
		if d, ok := c.(Disposer); ok {
			d.Dispose()
		}
	}
}
