package routing

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/GoCodeAlone/colibri/internal/table"
	"github.com/GoCodeAlone/colibri/pattern"
)

// RouteCollection holds the routes of a router in match order, together
// with the definitions shared by all of them: constraints, guards,
// filters, bindings and named middleware.
type RouteCollection struct {
	table   table.Table[*Route]
	paths   *pattern.Builder
	domains *pattern.Builder

	// version changes whenever shared constraints change, so routes
	// recompile their patterns.
	version atomic.Uint64

	mu          sync.RWMutex
	byID        map[string]*Route
	constraints map[string]string
	guards      map[string]*Callback
	filters     []namedCallback
	bindings    map[string]*Callback
	middleware  map[string]Middleware
}

// NewRouteCollection creates an empty collection. Paths use "/" as the
// segment separator; caseInsensitive applies to paths only, domains are
// always matched case-insensitively.
func NewRouteCollection(caseInsensitive bool) *RouteCollection {
	paths := pattern.PathOptions()
	paths.CaseInsensitive = caseInsensitive
	return &RouteCollection{
		paths:       pattern.NewBuilder(paths),
		domains:     pattern.NewBuilder(pattern.DomainOptions()),
		byID:        make(map[string]*Route),
		constraints: make(map[string]string),
		guards:      make(map[string]*Callback),
		bindings:    make(map[string]*Callback),
		middleware:  make(map[string]Middleware),
	}
}

func (c *RouteCollection) add(r *Route) {
	c.mu.Lock()
	c.byID[r.id] = r
	c.mu.Unlock()
	c.table.Insert(r, r.Priority())
}

// Remove deletes route and reports whether it was in the collection.
func (c *RouteCollection) Remove(r *Route) bool {
	c.mu.Lock()
	delete(c.byID, r.id)
	c.mu.Unlock()
	return c.table.Remove(r)
}

// Get returns the route with the given id.
func (c *RouteCollection) Get(id string) (*Route, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byID[id]
	return r, ok
}

// Routes returns the routes in match order.
func (c *RouteCollection) Routes() []*Route {
	return c.table.Values()
}

// Len returns the number of routes.
func (c *RouteCollection) Len() int {
	return c.table.Len()
}

// Where constrains placeholder name to regex for every route that does
// not constrain it itself.
func (c *RouteCollection) Where(name, regex string) *RouteCollection {
	c.mu.Lock()
	c.constraints[name] = regex
	c.mu.Unlock()
	c.version.Add(1)
	return c
}

// WhereIn is Where with an enumerated set of values.
func (c *RouteCollection) WhereIn(name string, values ...string) *RouteCollection {
	if len(values) == 0 {
		return c
	}
	return c.Where(name, pattern.Join(values))
}

// Constraints returns a copy of the shared constraints.
func (c *RouteCollection) Constraints() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.constraints)
}

// Guard defines the guard routes refer to with Route.Guard(name, nil).
func (c *RouteCollection) Guard(name string, cb *Callback) *RouteCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guards[name] = cb
	return c
}

// Filter adds a filter applied to every route. A route filter with the
// same name takes its place.
func (c *RouteCollection) Filter(name string, cb *Callback) *RouteCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = upsert(c.filters, name, cb)
	return c
}

// Bind defines a binding used by every route that does not bind name itself.
func (c *RouteCollection) Bind(name string, cb *Callback) *RouteCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings[name] = cb
	return c
}

// Middleware registers mw under name for Route.UseNamed.
func (c *RouteCollection) Middleware(name string, mw Middleware) *RouteCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware[name] = mw
	return c
}

func (c *RouteCollection) guard(name string) *Callback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.guards[name]
}

func (c *RouteCollection) binding(name string) *Callback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bindings[name]
}

func (c *RouteCollection) filterList() []namedCallback {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.filters)
}

func (c *RouteCollection) namedMiddleware(name string) Middleware {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.middleware[name]
}
