package routing

import (
	"context"

	"github.com/GoCodeAlone/colibri/pattern"
)

// Global names set by the dispatcher for every dispatch.
const (
	GlobalRouter = "router"
	GlobalRoute  = "route"
)

// Context carries the state of one routing attempt: the request, the
// candidate route and the values extracted while matching it. Filters,
// guards, middleware and actions all receive the same *Context.
type Context struct {
	ctx context.Context

	Request *Request
	Route   *Route
	Router  *Router

	// Params holds the placeholder values of the path and domain patterns.
	Params pattern.Params

	// Globals holds the router globals for this dispatch, plus the
	// GlobalRouter and GlobalRoute entries.
	Globals map[string]any

	resolver *ArgumentResolver
}

func newContext(ctx context.Context, router *Router, route *Route, req *Request, params pattern.Params, globals map[string]any) *Context {
	if params == nil {
		params = make(pattern.Params)
	}
	c := &Context{
		ctx:     ctx,
		Request: req,
		Route:   route,
		Router:  router,
		Params:  params,
		Globals: globals,
	}
	c.resolver = newArgumentResolver(c)
	return c
}

// Context returns the context.Context of the dispatch.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Param returns the placeholder value for name.
func (c *Context) Param(name string) string {
	return c.Params.Get(name)
}

// Resolver returns the argument resolver bound to this context.
func (c *Context) Resolver() *ArgumentResolver {
	return c.resolver
}
