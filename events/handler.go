package events

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Handler reacts to a dispatched event. A returned error is reported to
// the emitter but does not stop the dispatch.
type Handler interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// NamedHandler is a handler addressable by name. Only named handlers can
// be exported in a Snapshot.
type NamedHandler interface {
	Handler
	HandlerName() string
}

type namedHandler struct {
	Handler
	name string
}

func (n namedHandler) HandlerName() string { return n.name }

// Named attaches name to h.
func Named(name string, h Handler) NamedHandler {
	if nh, ok := h.(NamedHandler); ok && nh.HandlerName() == name {
		return nh
	}
	return namedHandler{Handler: h, name: name}
}

func handlerName(h Handler) string {
	if nh, ok := h.(NamedHandler); ok {
		return nh.HandlerName()
	}
	return ""
}

// Registry maps handler names to handlers. It is the table of addressable
// commands a Snapshot refers to.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]NamedHandler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]NamedHandler)}
}

// Register adds h under name and returns the named handler.
func (r *Registry) Register(name string, h Handler) (NamedHandler, error) {
	if name == "" {
		return nil, ErrHandlerNameEmpty
	}
	if h == nil {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNil, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrHandlerAlreadyRegistered, name)
	}
	nh := Named(name, h)
	r.handlers[name] = nh
	return nh, nil
}

// MustRegister is like Register but panics on error. It is meant for
// package level wiring during startup.
func (r *Registry) MustRegister(name string, h Handler) NamedHandler {
	nh, err := r.Register(name, h)
	if err != nil {
		panic(err)
	}
	return nh
}

// Lookup returns the handler registered under name.
func (r *Registry) Lookup(name string) (NamedHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	return h, nil
}

// Unregister removes the handler registered under name and reports whether
// it was present. Registrations already using the handler keep it.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[name]; !ok {
		return false
	}
	delete(r.handlers, name)
	return true
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
