package routing

import (
	"fmt"
	"reflect"

	"github.com/golobby/cast"
)

// ArgumentResolver resolves callback parameters against a routing
// Context. Named parameters are looked up, in order, in:
//
//  1. bindings of the route, then of the route collection
//  2. placeholder values of the path and domain patterns
//  3. implicit values of the route
//  4. dispatch globals
//  5. request attributes
//
// String values are converted to the parameter type. A parameter nothing
// resolves to is nil when its type allows it, an empty slice when it is
// variadic, and an *ArgumentResolutionError otherwise.
type ArgumentResolver struct {
	c         *Context
	bound     map[string]any
	resolving map[string]bool
}

func newArgumentResolver(c *Context) *ArgumentResolver {
	return &ArgumentResolver{
		c:         c,
		bound:     make(map[string]any),
		resolving: make(map[string]bool),
	}
}

// Value returns the value known under name.
func (r *ArgumentResolver) Value(name string) (any, bool, error) {
	if !r.resolving[name] {
		if v, ok := r.bound[name]; ok {
			return v, true, nil
		}
		if cb := r.binding(name); cb != nil {
			r.resolving[name] = true
			v, err := r.invoke(cb)
			delete(r.resolving, name)
			if err != nil {
				return nil, false, fmt.Errorf("binding %q: %w", name, err)
			}
			var bound any
			if v.IsValid() {
				bound = v.Interface()
			}
			r.bound[name] = bound
			return bound, true, nil
		}
	}

	if v, ok := r.c.Params[name]; ok {
		return v, true, nil
	}
	if r.c.Route != nil {
		if v, ok := r.c.Route.implicitValue(name); ok {
			return v, true, nil
		}
	}
	if v, ok := r.c.Globals[name]; ok {
		return v, true, nil
	}
	if r.c.Request != nil {
		if v, ok := r.c.Request.Attribute(name); ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

func (r *ArgumentResolver) binding(name string) *Callback {
	if r.c.Route == nil {
		return nil
	}
	if cb := r.c.Route.binding(name); cb != nil {
		return cb
	}
	if r.c.Route.collection != nil {
		return r.c.Route.collection.binding(name)
	}
	return nil
}

// Resolve returns the arguments for cb.
func (r *ArgumentResolver) Resolve(cb *Callback) ([]reflect.Value, error) {
	if cb == nil {
		return nil, ErrNotAFunction
	}
	if cb.err != nil {
		return nil, cb.err
	}

	args := make([]reflect.Value, len(cb.params))
	for i, p := range cb.params {
		if p.injected {
			args[i] = r.inject(p.typ)
			continue
		}

		label := p.name
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}

		var (
			v     any
			found bool
			err   error
		)
		if p.name != "" {
			v, found, err = r.Value(p.name)
			if err != nil {
				return nil, err
			}
		}

		switch {
		case found:
			args[i], err = convert(v, p.typ, p.variadic)
			if err != nil {
				return nil, &ArgumentResolutionError{Param: label, Err: err}
			}
		case p.variadic:
			args[i] = reflect.MakeSlice(p.typ, 0, 0)
		case nilable(p.typ):
			args[i] = reflect.Zero(p.typ)
		default:
			return nil, &ArgumentResolutionError{Param: label}
		}
	}
	return args, nil
}

// Execute resolves and invokes an action or middleware callback and
// converts its value into a Result.
func (r *ArgumentResolver) Execute(cb *Callback) (Result, error) {
	v, err := r.invoke(cb)
	if err != nil {
		return nil, err
	}
	return toResult(v), nil
}

// Check resolves and invokes a guard or filter callback. It reports false
// only when the callback returned the boolean false.
func (r *ArgumentResolver) Check(cb *Callback) (bool, error) {
	v, err := r.invoke(cb)
	if err != nil {
		return false, err
	}
	return !isFalse(v), nil
}

func (r *ArgumentResolver) invoke(cb *Callback) (reflect.Value, error) {
	args, err := r.Resolve(cb)
	if err != nil {
		return reflect.Value{}, err
	}
	return cb.call(args)
}

func (r *ArgumentResolver) inject(t reflect.Type) reflect.Value {
	c := r.c
	var v any
	switch t {
	case contextType:
		return reflect.ValueOf(&c.ctx).Elem()
	case routeCtxType:
		v = c
	case requestType:
		v = c.Request
	case routeType:
		v = c.Route
	case routerType:
		v = c.Router
	case resolverType:
		v = r
	case httpRequestType:
		if c.Request != nil {
			v = c.Request.HTTP
		}
	}
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Zero(t)
	}
	return rv
}

// convert turns v into a value of type t. Strings are parsed with cast,
// pointer types receive a pointer to the converted value, and for
// variadic parameters t is the slice type and a single value is wrapped.
func convert(v any, t reflect.Type, variadic bool) (reflect.Value, error) {
	if v == nil {
		if nilable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", t)
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if variadic {
		elem, err := convert(v, t.Elem(), false)
		if err != nil {
			return reflect.Value{}, err
		}
		s := reflect.MakeSlice(t, 1, 1)
		s.Index(0).Set(elem)
		return s, nil
	}
	if t.Kind() == reflect.Pointer {
		elem, err := convert(v, t.Elem(), false)
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}
	if t.Kind() == reflect.Interface {
		return reflect.Value{}, fmt.Errorf("%s does not implement %s", rv.Type(), t)
	}

	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	x, err := cast.FromType(s, t)
	if err != nil {
		return reflect.Value{}, err
	}
	xv := reflect.ValueOf(x)
	if !xv.IsValid() || !xv.Type().ConvertibleTo(t) {
		return reflect.Value{}, fmt.Errorf("cannot convert %q to %s", s, t)
	}
	return xv.Convert(t), nil
}
