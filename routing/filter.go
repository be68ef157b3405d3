package routing

import "fmt"

// Filter decides whether a candidate route may be selected. Filters run
// during route selection, before guards.
type Filter interface {
	Filter(c *Context) (bool, error)
}

// FilterFunc adapts a function to the Filter interface.
type FilterFunc func(c *Context) (bool, error)

func (f FilterFunc) Filter(c *Context) (bool, error) {
	return f(c)
}

// DefaultFilters returns the filters a Router uses unless WithFilters
// replaces them.
func DefaultFilters() []Filter {
	return []Filter{MethodFilter{}, DomainFilter{}, UserFilter{}}
}

// MethodFilter rejects routes that do not accept the request method.
type MethodFilter struct{}

func (MethodFilter) Filter(c *Context) (bool, error) {
	return c.Route.AllowsMethod(c.Request.Method), nil
}

// DomainFilter rejects routes whose domain pattern does not match the
// request host. Domain placeholder values are added to the context params.
type DomainFilter struct{}

func (DomainFilter) Filter(c *Context) (bool, error) {
	compiled, err := c.Route.DomainCompiled()
	if err != nil {
		return false, err
	}
	if compiled == nil {
		return true, nil
	}
	params, ok := compiled.Match(c.Request.Host)
	if !ok {
		return false, nil
	}
	for name, v := range params {
		c.Params[name] = v
	}
	return true, nil
}

// UserFilter runs the named filter callbacks of the route and its
// collection. It stops at the first callback returning false.
type UserFilter struct{}

func (UserFilter) Filter(c *Context) (bool, error) {
	for _, f := range c.Route.filterChain() {
		if f.cb == nil {
			continue
		}
		ok, err := c.resolver.Check(f.cb)
		if err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrFilterError, f.name, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
