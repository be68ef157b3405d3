package events

import (
	"maps"
	"sync"

	"github.com/GoCodeAlone/colibri/pattern"
)

// Registration binds a handler to a pattern. It is returned by Handle and
// lets callers refine placeholder constraints:
//
//	d.Handle("foo.{bar}", h).Where("bar", "x|y")
//
// The compiled pattern is built lazily on first match and invalidated by
// every Where / WhereIn call.
type Registration struct {
	pattern  string
	priority int
	seq      uint64
	handler  Handler
	builder  *pattern.Builder

	mu          sync.Mutex
	constraints map[string]string
	compiled    *pattern.Compiled
}

func newRegistration(b *pattern.Builder, pat string, h Handler, priority int) *Registration {
	return &Registration{
		pattern:     pat,
		priority:    priority,
		handler:     h,
		builder:     b,
		constraints: make(map[string]string),
	}
}

// Where constrains placeholder name to regex.
func (r *Registration) Where(name, regex string) *Registration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.constraints[name] = regex
	r.compiled = nil
	return r
}

// WhereIn constrains placeholder name to one of values. An empty list
// leaves the registration unchanged.
func (r *Registration) WhereIn(name string, values ...string) *Registration {
	if len(values) == 0 {
		return r
	}
	return r.Where(name, pattern.Join(values))
}

func (r *Registration) Pattern() string  { return r.pattern }
func (r *Registration) Priority() int    { return r.priority }
func (r *Registration) Sequence() uint64 { return r.seq }
func (r *Registration) Handler() Handler { return r.handler }

// HandlerName returns the handler name, or "" for anonymous handlers.
func (r *Registration) HandlerName() string {
	return handlerName(r.handler)
}

// Constraints returns a copy of the placeholder constraints.
func (r *Registration) Constraints() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.constraints)
}

// Compiled returns the compiled pattern, compiling it if needed.
func (r *Registration) Compiled() (*pattern.Compiled, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.compiled == nil {
		c, err := r.builder.Compile(r.pattern, r.constraints)
		if err != nil {
			return nil, err
		}
		r.compiled = c
	}
	return r.compiled, nil
}

func (r *Registration) restore(c *pattern.Compiled) {
	r.mu.Lock()
	r.compiled = c
	r.mu.Unlock()
}
