// Package routing matches requests against route patterns and runs the
// selected route through its guards, middleware and action.
//
// Routes are tried in table order: higher priority first and, for equal
// priorities, the most recently added route first. A route is selected
// when its path pattern matches and every router filter accepts it. No
// selected route, or a guard returning false, is not an error: Dispatch
// returns a nil response and the caller decides between 404, 405 and 401.
//
//	router := routing.New()
//	router.Get("/users/{id}", routing.Fn(func(id int) string {
//		return fmt.Sprintf("user %d", id)
//	}, "id")).Where("id", `\d+`)
//
//	res, err := router.Dispatch(ctx, routing.NewRequest("GET", "/users/7"))
package routing

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/GoCodeAlone/colibri/pattern"
)

// Logger is the structured logger used by the router. It matches
// colibri.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// Outcome classifies a finished dispatch.
type Outcome string

const (
	OutcomeHandled  Outcome = "handled"
	OutcomeNotFound Outcome = "not_found"
	OutcomeDenied   Outcome = "denied"
	OutcomeError    Outcome = "error"
)

// Recorder receives one callback per dispatch. route is the pattern of
// the selected route, or "" when none was selected.
type Recorder interface {
	RouteDispatched(route string, outcome Outcome)
}

// Router registers routes and dispatches requests to them.
type Router struct {
	routes     *RouteCollection
	dispatcher *Dispatcher
	filters    []Filter
	logger     Logger
	recorder   Recorder

	globalsMu *sync.RWMutex
	globals   map[string]any

	prefix string
	group  *RouteGroup
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithFilters replaces the default filters (MethodFilter, DomainFilter,
// UserFilter).
func WithFilters(filters ...Filter) Option {
	return func(r *Router) {
		r.filters = filters
	}
}

// WithRecorder sets a dispatch recorder, typically a metrics collector.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) {
		r.recorder = rec
	}
}

// WithGlobal sets a global value available to every callback by name.
func WithGlobal(name string, v any) Option {
	return func(r *Router) {
		r.globals[name] = v
	}
}

// WithCaseInsensitive makes path patterns case-insensitive.
func WithCaseInsensitive(enabled bool) Option {
	return func(r *Router) {
		r.routes = NewRouteCollection(enabled)
	}
}

// WithDispatcher replaces the dispatcher.
func WithDispatcher(d *Dispatcher) Option {
	return func(r *Router) {
		if d != nil {
			r.dispatcher = d
		}
	}
}

// New creates a router with no routes.
func New(opts ...Option) *Router {
	r := &Router{
		routes:     NewRouteCollection(false),
		dispatcher: NewDispatcher(),
		filters:    DefaultFilters(),
		logger:     nopLogger{},
		globalsMu:  &sync.RWMutex{},
		globals:    make(map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Routes returns the route collection.
func (r *Router) Routes() *RouteCollection {
	return r.routes
}

// Filters returns the router filters.
func (r *Router) Filters() []Filter {
	return r.filters
}

// Logger returns the router logger.
func (r *Router) Logger() Logger {
	return r.logger
}

// SetGlobal sets a global value available to every callback by name.
func (r *Router) SetGlobal(name string, v any) {
	r.globalsMu.Lock()
	defer r.globalsMu.Unlock()
	r.globals[name] = v
}

// Globals returns a copy of the global values.
func (r *Router) Globals() map[string]any {
	r.globalsMu.RLock()
	defer r.globalsMu.RUnlock()
	return maps.Clone(r.globals)
}

func (r *Router) Get(pat string, action *Callback) *Route {
	return r.Match([]string{http.MethodGet}, pat, action)
}

func (r *Router) Post(pat string, action *Callback) *Route {
	return r.Match([]string{http.MethodPost}, pat, action)
}

func (r *Router) Put(pat string, action *Callback) *Route {
	return r.Match([]string{http.MethodPut}, pat, action)
}

func (r *Router) Patch(pat string, action *Callback) *Route {
	return r.Match([]string{http.MethodPatch}, pat, action)
}

func (r *Router) Delete(pat string, action *Callback) *Route {
	return r.Match([]string{http.MethodDelete}, pat, action)
}

// Any adds a route accepting every method.
func (r *Router) Any(pat string, action *Callback) *Route {
	return r.Match(nil, pat, action)
}

// Match adds a route accepting methods. The pattern is relative to the
// prefix of the group the router belongs to.
func (r *Router) Match(methods []string, pat string, action *Callback) *Route {
	route := newRoute(r.routes, joinPath(r.prefix, pat), action, methods)
	r.routes.add(route)
	for g := r.group; g != nil; g = g.parent {
		g.add(route)
	}
	r.logger.Debug("Registered route", "pattern", route.pattern, "methods", route.methods, "id", route.id)
	return route
}

// Group calls fn with a router whose routes are prefixed with prefix and
// returns the group of routes fn added, so they can be configured
// together:
//
//	router.Group("/admin", func(g *routing.Router) {
//		g.Get("/users", listUsers)
//		g.Get("/users/{id}", showUser)
//	}).Guard("admin", nil)
func (r *Router) Group(prefix string, fn func(*Router)) *RouteGroup {
	g := &RouteGroup{parent: r.group}
	child := *r
	child.prefix = joinPath(r.prefix, prefix)
	child.group = g
	fn(&child)
	return g
}

// Dispatch selects a route for req and runs it. A nil response with a nil
// error means no route accepted the request.
func (r *Router) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	return r.dispatcher.Dispatch(ctx, r, req)
}

// AllowedMethods returns the methods accepted by the routes whose path
// and domain match req, ignoring the request method. Routes accepting
// every method add nothing to the list.
func (r *Router) AllowedMethods(req *Request) ([]string, error) {
	methods, _, err := r.allowedMethods(req)
	return methods, err
}

func (r *Router) allowedMethods(req *Request) ([]string, bool, error) {
	var methods []string
	anyMethod := false
	for hit, err := range pattern.Scan(r.routes.Routes(), req.Path) {
		if err != nil {
			return nil, false, err
		}
		c := newContext(context.Background(), r, hit.Item, req, hit.Params, nil)
		ok, err := DomainFilter{}.Filter(c)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		if len(hit.Item.Methods()) == 0 {
			anyMethod = true
		}
		for _, m := range hit.Item.Methods() {
			if !slices.Contains(methods, m) {
				methods = append(methods, m)
			}
		}
	}
	slices.Sort(methods)
	return methods, anyMethod, nil
}

// MethodNotAllowed reports whether routes match req for other methods
// only, which callers answer with 405 instead of 404. It returns the
// allowed methods for the Allow header. A matching route that accepts
// every method rules out 405.
func (r *Router) MethodNotAllowed(req *Request) ([]string, bool, error) {
	allowed, anyMethod, err := r.allowedMethods(req)
	if err != nil {
		return nil, false, err
	}
	if anyMethod || len(allowed) == 0 {
		return allowed, false, nil
	}
	method := strings.ToUpper(req.Method)
	if slices.Contains(allowed, method) || (method == http.MethodHead && slices.Contains(allowed, http.MethodGet)) {
		return allowed, false, nil
	}
	return allowed, true, nil
}

func (r *Router) record(route *Route, outcome Outcome) {
	if r.recorder == nil {
		return
	}
	pat := ""
	if route != nil {
		pat = route.pattern
	}
	r.recorder.RouteDispatched(pat, outcome)
}

// RouteGroup is the set of routes added inside Router.Group, including
// routes of nested groups. Its methods set defaults: a route that already
// defines a constraint, implicit value, binding, guard, filter or domain
// keeps its own, and group middleware runs before route middleware.
type RouteGroup struct {
	parent *RouteGroup

	mu     sync.Mutex
	routes []*Route
}

func (g *RouteGroup) add(r *Route) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.routes = append(g.routes, r)
}

// Routes returns the routes of the group in registration order.
func (g *RouteGroup) Routes() []*Route {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.routes)
}

func (g *RouteGroup) each(fn func(*Route)) *RouteGroup {
	for _, r := range g.Routes() {
		fn(r)
	}
	return g
}

func (g *RouteGroup) Where(name, regex string) *RouteGroup {
	return g.each(func(r *Route) {
		if !r.hasConstraint(name) {
			r.Where(name, regex)
		}
	})
}

func (g *RouteGroup) WhereIn(name string, values ...string) *RouteGroup {
	if len(values) == 0 {
		return g
	}
	return g.Where(name, pattern.Join(values))
}

func (g *RouteGroup) Implicit(name string, value any) *RouteGroup {
	return g.each(func(r *Route) {
		if !r.hasImplicit(name) {
			r.Implicit(name, value)
		}
	})
}

func (g *RouteGroup) Bind(name string, cb *Callback) *RouteGroup {
	return g.each(func(r *Route) {
		if r.binding(name) == nil {
			r.Bind(name, cb)
		}
	})
}

func (g *RouteGroup) Guard(name string, cb *Callback) *RouteGroup {
	return g.each(func(r *Route) {
		if !r.hasGuard(name) {
			r.Guard(name, cb)
		}
	})
}

func (g *RouteGroup) Filter(name string, cb *Callback) *RouteGroup {
	return g.each(func(r *Route) {
		if !r.hasFilter(name) {
			r.Filter(name, cb)
		}
	})
}

func (g *RouteGroup) Use(mw ...Middleware) *RouteGroup {
	entries := make([]middlewareEntry, len(mw))
	for i, m := range mw {
		entries[i] = middlewareEntry{mw: m}
	}
	return g.each(func(r *Route) { r.prependMiddleware(entries) })
}

func (g *RouteGroup) UseNamed(names ...string) *RouteGroup {
	entries := make([]middlewareEntry, len(names))
	for i, name := range names {
		entries[i] = middlewareEntry{name: name}
	}
	return g.each(func(r *Route) { r.prependMiddleware(entries) })
}

func (g *RouteGroup) Domain(pat string) *RouteGroup {
	return g.each(func(r *Route) {
		if r.DomainPattern() == "" {
			r.Domain(pat)
		}
	})
}

// SetPriority sets the priority of every route of the group.
func (g *RouteGroup) SetPriority(priority int) *RouteGroup {
	return g.each(func(r *Route) { r.SetPriority(priority) })
}

func joinPath(prefix, pat string) string {
	if prefix == "" {
		if pat == "" {
			return "/"
		}
		if !strings.HasPrefix(pat, "/") {
			return "/" + pat
		}
		return pat
	}
	if pat == "" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(pat, "/")
}
