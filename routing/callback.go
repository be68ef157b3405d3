package routing

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
)

var (
	contextType     = reflect.TypeFor[context.Context]()
	routeCtxType    = reflect.TypeFor[*Context]()
	requestType     = reflect.TypeFor[*Request]()
	routeType       = reflect.TypeFor[*Route]()
	routerType      = reflect.TypeFor[*Router]()
	httpRequestType = reflect.TypeFor[*http.Request]()
	resolverType    = reflect.TypeFor[*ArgumentResolver]()
	errorType       = reflect.TypeFor[error]()
)

// Callback is a function together with the names of the parameters the
// ArgumentResolver looks up for it.
//
// Parameters of type context.Context, *Context, *Request, *Route, *Router,
// *http.Request and *ArgumentResolver are injected by type and take no
// name. Every other parameter consumes the next declared name:
//
//	routing.Fn(func(ctx context.Context, id int, tab string) string {
//		...
//	}, "id", "tab")
//
// A callback returns at most two values; a trailing error is reported to
// the dispatcher.
type Callback struct {
	fn     reflect.Value
	params []param
	err    error
}

type param struct {
	typ      reflect.Type
	name     string
	injected bool
	variadic bool
}

// Fn wraps fn. An fn that is not a function produces a callback whose
// every invocation fails with ErrNotAFunction.
func Fn(fn any, names ...string) *Callback {
	v := reflect.ValueOf(fn)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return &Callback{err: fmt.Errorf("%w: %T", ErrNotAFunction, fn)}
	}

	t := v.Type()
	if t.NumOut() > 2 {
		return &Callback{err: fmt.Errorf("%w: %s", ErrTooManyResults, t)}
	}

	cb := &Callback{fn: v, params: make([]param, t.NumIn())}
	next := 0
	for i := range t.NumIn() {
		p := param{
			typ:      t.In(i),
			variadic: t.IsVariadic() && i == t.NumIn()-1,
		}
		if injectable(p.typ) {
			p.injected = true
		} else {
			if next < len(names) {
				p.name = names[next]
			}
			next++
		}
		cb.params[i] = p
	}
	return cb
}

// Names returns the declared parameter names in order.
func (cb *Callback) Names() []string {
	var names []string
	for _, p := range cb.params {
		if !p.injected {
			names = append(names, p.name)
		}
	}
	return names
}

// String returns the name of the wrapped function.
func (cb *Callback) String() string {
	if cb == nil || !cb.fn.IsValid() {
		return "<invalid>"
	}
	if f := runtime.FuncForPC(cb.fn.Pointer()); f != nil {
		return f.Name()
	}
	return cb.fn.Type().String()
}

// call invokes the function with args and splits its results into the
// first non-error value and the trailing error.
func (cb *Callback) call(args []reflect.Value) (reflect.Value, error) {
	var outs []reflect.Value
	if cb.fn.Type().IsVariadic() {
		outs = cb.fn.CallSlice(args)
	} else {
		outs = cb.fn.Call(args)
	}

	var val reflect.Value
	var err error
	for i, out := range outs {
		if i == len(outs)-1 && out.Type() == errorType {
			if !out.IsNil() {
				err = out.Interface().(error)
			}
			continue
		}
		val = out
	}
	return val, err
}

func injectable(t reflect.Type) bool {
	switch t {
	case contextType, routeCtxType, requestType, routeType, routerType, httpRequestType, resolverType:
		return true
	}
	return false
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

func isNil(v reflect.Value) bool {
	return !v.IsValid() || (nilable(v.Type()) && v.IsNil())
}

// toResult converts a callback value into a Result. Values that are not
// already a Result become Raw bodies.
func toResult(v reflect.Value) Result {
	if isNil(v) {
		return nil
	}
	switch x := v.Interface().(type) {
	case Result:
		return x
	case string:
		return Raw(x)
	case []byte:
		return Raw(x)
	case fmt.Stringer:
		return Raw(x.String())
	default:
		return Raw(fmt.Sprint(x))
	}
}

// isFalse reports whether v is the boolean false. Guards and filters only
// fail on an explicit false.
func isFalse(v reflect.Value) bool {
	if !v.IsValid() {
		return false
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	return v.Kind() == reflect.Bool && !v.Bool()
}
