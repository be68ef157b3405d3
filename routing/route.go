package routing

import (
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/colibri/pattern"
)

// Middleware wraps the rest of the chain. It calls next to run the
// following middleware and, at the end of the chain, the route action:
//
//	func(c *routing.Context, next routing.Next) (routing.Result, error) {
//		if c.Request.Header.Get("Authorization") == "" {
//			return routing.NewResponse(http.StatusUnauthorized, "Unauthorized"), nil
//		}
//		return next()
//	}
type Middleware func(c *Context, next Next) (Result, error)

// Next continues a middleware chain.
type Next func() (*Response, error)

type namedCallback struct {
	name string
	cb   *Callback
}

type middlewareEntry struct {
	name string
	mw   Middleware
}

// Route is a pattern bound to an action. Routes are created by the Router
// and configured through their fluent methods:
//
//	router.Get("/users/{id}", routing.Fn(show, "id")).
//		Where("id", `\d+`).
//		Guard("auth", nil)
type Route struct {
	id         string
	pattern    string
	action     *Callback
	collection *RouteCollection

	mu          sync.RWMutex
	methods     []string
	priority    int
	domain      string
	constraints map[string]string
	implicit    map[string]any
	bindings    map[string]*Callback
	guards      []namedCallback
	filters     []namedCallback
	middleware  []middlewareEntry

	compiled       *pattern.Compiled
	compiledDomain *pattern.Compiled
	version        uint64
}

func newRoute(c *RouteCollection, pat string, action *Callback, methods []string) *Route {
	return &Route{
		id:          newRouteID(),
		pattern:     pat,
		action:      action,
		collection:  c,
		methods:     normalizeMethods(methods),
		constraints: make(map[string]string),
		implicit:    make(map[string]any),
		bindings:    make(map[string]*Callback),
	}
}

func (r *Route) ID() string                   { return r.id }
func (r *Route) Pattern() string              { return r.pattern }
func (r *Route) Action() *Callback            { return r.action }
func (r *Route) Collection() *RouteCollection { return r.collection }

// Methods returns the accepted methods; nil means any method.
func (r *Route) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.methods)
}

func (r *Route) Priority() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.priority
}

// DomainPattern returns the host pattern set with Domain.
func (r *Route) DomainPattern() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.domain
}

// AllowsMethod reports whether the route accepts method. GET routes also
// accept HEAD.
func (r *Route) AllowsMethod(method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.methods) == 0 {
		return true
	}
	method = strings.ToUpper(method)
	if slices.Contains(r.methods, method) {
		return true
	}
	return method == http.MethodHead && slices.Contains(r.methods, http.MethodGet)
}

// Method replaces the accepted methods. No methods means any method.
func (r *Route) Method(methods ...string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = normalizeMethods(methods)
	return r
}

// SetPriority changes the route priority. Higher priorities are matched first.
func (r *Route) SetPriority(priority int) *Route {
	r.mu.Lock()
	r.priority = priority
	r.mu.Unlock()

	if r.collection != nil {
		r.collection.table.Update(r, priority)
	}
	return r
}

// Domain restricts the route to hosts matching pat, for example
// "{sub}.example.com". Domain placeholders are available like path ones.
func (r *Route) Domain(pat string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.domain = pat
	r.compiledDomain = nil
	return r
}

// Where constrains placeholder name to regex.
func (r *Route) Where(name, regex string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constraints[name] = regex
	r.compiled = nil
	r.compiledDomain = nil
	return r
}

// WhereIn constrains placeholder name to one of values. An empty list
// leaves the route unchanged.
func (r *Route) WhereIn(name string, values ...string) *Route {
	if len(values) == 0 {
		return r
	}
	return r.Where(name, pattern.Join(values))
}

// Implicit sets the value of name when the pattern does not provide one,
// typically for optional placeholders.
func (r *Route) Implicit(name string, value any) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.implicit[name] = value
	return r
}

// Bind computes the value of name with cb. The callback may ask for name
// itself to receive the raw value.
func (r *Route) Bind(name string, cb *Callback) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[name] = cb
	return r
}

// Guard adds a named guard evaluated after the route is selected. A nil
// callback uses the collection guard with the same name.
func (r *Route) Guard(name string, cb *Callback) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guards = upsert(r.guards, name, cb)
	return r
}

// Filter adds a named filter evaluated while the route is a candidate. It
// replaces the collection filter with the same name for this route.
func (r *Route) Filter(name string, cb *Callback) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = upsert(r.filters, name, cb)
	return r
}

// Use appends middleware to the chain.
func (r *Route) Use(mw ...Middleware) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range mw {
		r.middleware = append(r.middleware, middlewareEntry{mw: m})
	}
	return r
}

// UseNamed appends middleware registered on the collection. Names are
// resolved at dispatch time; unknown names are skipped.
func (r *Route) UseNamed(names ...string) *Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.middleware = append(r.middleware, middlewareEntry{name: name})
	}
	return r
}

// Constraints returns the effective constraints: the collection ones
// overridden by the route ones.
func (r *Route) Constraints() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.constraintsLocked()
}

func (r *Route) constraintsLocked() map[string]string {
	out := make(map[string]string)
	if r.collection != nil {
		maps.Copy(out, r.collection.Constraints())
	}
	maps.Copy(out, r.constraints)
	return out
}

// Compiled returns the compiled path pattern.
func (r *Route) Compiled() (*pattern.Compiled, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.refreshLocked(); err != nil {
		return nil, err
	}
	return r.compiled, nil
}

// DomainCompiled returns the compiled domain pattern, or nil when the
// route has no domain.
func (r *Route) DomainCompiled() (*pattern.Compiled, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.domain == "" {
		return nil, nil
	}
	if err := r.refreshLocked(); err != nil {
		return nil, err
	}
	if r.compiledDomain == nil {
		c, err := r.collection.domains.Compile(r.domain, r.constraintsLocked())
		if err != nil {
			return nil, err
		}
		r.compiledDomain = c
	}
	return r.compiledDomain, nil
}

// refreshLocked compiles the path pattern when it is missing or when the
// collection constraints changed since it was compiled.
func (r *Route) refreshLocked() error {
	v := r.collection.version.Load()
	if r.compiled != nil && r.version == v {
		return nil
	}
	c, err := r.collection.paths.Compile(r.pattern, r.constraintsLocked())
	if err != nil {
		return err
	}
	r.compiled = c
	r.compiledDomain = nil
	r.version = v
	return nil
}

func (r *Route) implicitValue(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.implicit[name]
	return v, ok
}

func (r *Route) binding(name string) *Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bindings[name]
}

// guardChain returns the guards to evaluate, in declaration order, with
// nil callbacks replaced by the collection guard. Guards with no callback
// anywhere are left out.
func (r *Route) guardChain() []namedCallback {
	r.mu.RLock()
	guards := slices.Clone(r.guards)
	r.mu.RUnlock()

	out := guards[:0]
	for _, g := range guards {
		if g.cb == nil {
			g.cb = r.collection.guard(g.name)
		}
		if g.cb != nil {
			out = append(out, g)
		}
	}
	return out
}

// filterChain returns the collection filters, each replaced by the route
// filter with the same name, followed by the filters only the route has.
func (r *Route) filterChain() []namedCallback {
	r.mu.RLock()
	own := slices.Clone(r.filters)
	r.mu.RUnlock()

	global := r.collection.filterList()
	out := make([]namedCallback, 0, len(global)+len(own))
	for _, g := range global {
		if i := slices.IndexFunc(own, func(f namedCallback) bool { return f.name == g.name }); i >= 0 {
			g = own[i]
			own = slices.Delete(own, i, i+1)
		}
		out = append(out, g)
	}
	return append(out, own...)
}

func (r *Route) middlewareChain() []middlewareEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.middleware)
}

func (r *Route) hasConstraint(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constraints[name]
	return ok
}

func (r *Route) hasImplicit(name string) bool {
	_, ok := r.implicitValue(name)
	return ok
}

func (r *Route) hasGuard(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.guards, func(g namedCallback) bool { return g.name == name })
}

func (r *Route) hasFilter(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.filters, func(f namedCallback) bool { return f.name == name })
}

func (r *Route) prependMiddleware(entries []middlewareEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(slices.Clone(entries), r.middleware...)
}

func upsert(list []namedCallback, name string, cb *Callback) []namedCallback {
	for i := range list {
		if list[i].name == name {
			list[i].cb = cb
			return list
		}
	}
	return append(list, namedCallback{name: name, cb: cb})
}

func normalizeMethods(methods []string) []string {
	if len(methods) == 0 {
		return nil
	}
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		m = strings.ToUpper(strings.TrimSpace(m))
		if m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}

func newRouteID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
