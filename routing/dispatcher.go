package routing

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/colibri/pattern"
)

// Dispatcher runs the route selection and execution pipeline.
type Dispatcher struct{}

// NewDispatcher creates a dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch selects the route for req and runs it:
//
//  1. Routes whose path matches are tried in table order; the first one
//     every router filter accepts is selected.
//  2. The route guards run in declaration order; a guard returning false
//     ends the dispatch.
//  3. The middleware chain runs in FIFO order and ends with the action.
//
// Each stage's Result is normalized into a *Response. No selected route
// and a failed guard both return (nil, nil). Errors are reserved for
// configuration problems such as invalid patterns or unresolvable
// arguments, and for errors returned by callbacks.
func (d *Dispatcher) Dispatch(ctx context.Context, router *Router, req *Request) (*Response, error) {
	if req == nil {
		return nil, ErrRequestNil
	}

	c, err := d.findRoute(ctx, router, req)
	if err != nil {
		router.logger.Error("Route selection failed", "method", req.Method, "path", req.Path, "error", err)
		router.record(nil, OutcomeError)
		return nil, err
	}
	if c == nil {
		router.logger.Debug("No route matched", "method", req.Method, "path", req.Path)
		router.record(nil, OutcomeNotFound)
		return nil, nil
	}

	ok, err := d.guard(c)
	if err != nil {
		router.logger.Error("Route guard failed", "route", c.Route.pattern, "error", err)
		router.record(c.Route, OutcomeError)
		return nil, err
	}
	if !ok {
		router.logger.Debug("Route denied by guard", "route", c.Route.pattern, "path", req.Path)
		router.record(c.Route, OutcomeDenied)
		return nil, nil
	}

	res, err := d.run(c)
	if err != nil {
		router.logger.Error("Route action failed", "route", c.Route.pattern, "error", err)
		router.record(c.Route, OutcomeError)
		return nil, err
	}
	router.record(c.Route, OutcomeHandled)
	return res, nil
}

// findRoute returns the context of the first matching route every filter
// accepts, or nil. The candidate is published in the dispatch globals
// before its filters run.
func (d *Dispatcher) findRoute(ctx context.Context, router *Router, req *Request) (*Context, error) {
	globals := router.Globals()
	globals[GlobalRouter] = router

	for hit, err := range pattern.Scan(router.routes.Routes(), req.Path) {
		if err != nil {
			return nil, err
		}
		globals[GlobalRoute] = hit.Item
		c := newContext(ctx, router, hit.Item, req, hit.Params, globals)

		ok, err := d.filter(router, c)
		if err != nil {
			return nil, err
		}
		if ok {
			return c, nil
		}
	}
	globals[GlobalRoute] = nil
	return nil, nil
}

func (d *Dispatcher) filter(router *Router, c *Context) (bool, error) {
	for _, f := range router.filters {
		ok, err := f.Filter(c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (d *Dispatcher) guard(c *Context) (bool, error) {
	for _, g := range c.Route.guardChain() {
		ok, err := c.resolver.Check(g.cb)
		if err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrGuardError, g.name, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// run executes the middleware chain. next dequeues the following entry,
// skipping nil middleware and names the collection does not define, and
// invokes the action once the queue is empty.
func (d *Dispatcher) run(c *Context) (*Response, error) {
	queue := c.Route.middlewareChain()

	var next Next
	next = func() (*Response, error) {
		for len(queue) > 0 {
			entry := queue[0]
			queue = queue[1:]

			mw := entry.mw
			if entry.name != "" {
				mw = c.Route.collection.namedMiddleware(entry.name)
				if mw == nil {
					c.Router.logger.Debug("Skipping unknown middleware", "name", entry.name, "route", c.Route.pattern)
				}
			}
			if mw == nil {
				continue
			}

			res, err := mw(c, next)
			if err != nil {
				return nil, err
			}
			return Normalize(res), nil
		}
		return d.invokeAction(c)
	}
	return next()
}

func (d *Dispatcher) invokeAction(c *Context) (*Response, error) {
	if c.Route.action == nil {
		return nil, fmt.Errorf("%w: %s", ErrActionNil, c.Route.pattern)
	}
	res, err := c.resolver.Execute(c.Route.action)
	if err != nil {
		return nil, err
	}
	return Normalize(res), nil
}
