package routing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/colibri/pattern"
)

func fixedBody(s string) *Callback {
	return Fn(func() string { return s })
}

func jsonValue[T any](v T) (*Response, error) {
	return JSON(map[string]any{"v": v})
}

// exec dispatches a request and maps the outcome to a status code the way
// an HTTP front end does.
func exec(t *testing.T, r *Router, req *Request) (int, string) {
	t.Helper()
	res, err := r.Dispatch(context.Background(), req)
	require.NoError(t, err)
	if res == nil {
		_, notAllowed, err := r.MethodNotAllowed(req)
		require.NoError(t, err)
		if notAllowed {
			return http.StatusMethodNotAllowed, ""
		}
		return http.StatusNotFound, ""
	}
	return res.Status, res.String()
}

func toUpper(_ *Context, next Next) (Result, error) {
	res, err := next()
	if err != nil {
		return nil, err
	}
	return res.Modify(func(r *Response) { r.Body = bytes.ToUpper(r.Body) }), nil
}

func addPrefix(_ *Context, next Next) (Result, error) {
	res, err := next()
	if err != nil {
		return nil, err
	}
	return Raw("prefix-" + res.String()), nil
}

func requireAuth(c *Context, next Next) (Result, error) {
	if c.Request.Header.Get("Authorization") == "" {
		return NewResponse(http.StatusUnauthorized, "Unauthorized"), nil
	}
	return next()
}

func newSiteRouter() *Router {
	r := New()
	routes := r.Routes()
	routes.Guard("allow", Fn(func() bool { return true }))
	routes.Guard("deny", Fn(func() bool { return false }))
	routes.Filter("g1", Fn(func(kind *string) bool { return kind == nil || *kind != "bar" }, "kind"))
	routes.Bind("shout", Fn(strings.ToUpper, "name"))
	routes.Middleware("upper", toUpper).Middleware("prefix", addPrefix)

	r.Get("/", fixedBody("Front page"))
	r.Get("/bar", fixedBody("Bar"))
	r.Get("/foo", fixedBody("Foo"))
	r.Get("/foo", fixedBody("Bar")).SetPriority(1)
	r.Post("/foo-post", fixedBody("OK"))
	r.Match([]string{http.MethodGet, http.MethodPost}, "/multiple-methods", fixedBody("OK"))

	r.Get("/foo-opt/{opt?}", Fn(func(opt *string) string {
		if opt == nil {
			return "missing"
		}
		return *opt
	}, "opt"))
	r.Get("/bar-opt/{opt?}", Fn(func(opt string) string { return opt }, "opt")).Implicit("opt", "bar")

	r.Get("/foo-filter1", fixedBody("foo"))
	r.Get("/foo-filter1", fixedBody("bar")).SetPriority(1).Filter("f", Fn(func() bool { return false }))
	r.Get("/foo-filter-g1", fixedBody("foo"))
	r.Get("/foo-filter-g1", fixedBody("bar")).SetPriority(1).Implicit("kind", "bar")
	r.Get("/foo-filter-g1-pass", fixedBody("bar")).Implicit("kind", "bar").Filter("g1", Fn(func() bool { return true }))

	r.Get("/foo-guard1", fixedBody("foo")).Guard("allow", nil)
	r.Get("/bar-guard1", fixedBody("bar")).Guard("deny", nil)
	r.Get("/foo-guard2", fixedBody("foo")).
		Guard("allow", nil).
		Guard("undefined", nil).
		Guard("custom", Fn(func(req *Request) bool { return req.Path == "/foo-guard2" }))
	r.Get("/bar-guard2", fixedBody("bar")).Guard("allow", nil).Guard("deny", nil)

	r.Get("/foo/bind/1/{name}", Fn(func(c *Context, name string) string {
		return c.Param("name") + name
	}, "name")).Bind("name", Fn(strings.ToUpper, "name"))
	r.Get("/foo/bind/2/{name}", Fn(func(v string) string { return v }, "shout"))

	r.Get("/foo/protected", fixedBody("secret")).Use(requireAuth)
	r.Get("/foo/chain/1", fixedBody("foo")).Use(toUpper, addPrefix)
	r.Get("/foo/chain/2", fixedBody("foo")).Use(nil).UseNamed("prefix", "missing", "upper")

	r.Group("/bar-group", func(g *Router) {
		g.Get("/foo", fixedBody("GROUP1"))
		g.Group("/bar", func(g *Router) {
			g.Get("/foo", fixedBody("group2"))
			g.Get("/baz/", fixedBody("group-3"))
		}).Use(toUpper)
	})
	r.Group("/bar-group/{type}", func(g *Router) {
		g.Get("/public", Fn(func(t string) string { return t }, "type"))
		g.Get("/secret", Fn(func(t string) string { return "secret:" + t }, "type")).WhereIn("type", "type1", "type2")
	}).WhereIn("type", "type1", "type2", "type3")
	r.Get("/bar-group/{type}/intruder", Fn(func(t string) string { return "intruder:" + t }, "type")).Where("type", "type4")

	sub := Fn(func(sub string) string { return "sub=" + sub }, "sub")
	r.Get("/sub-domain", sub).Domain(`sub{sub=\d+}.example.com`)
	r.Get("/sub-domain", sub).Domain("sub-{sub=[a-z]+}.example.com")

	r.Get("/param-resolver/default/{v?}", Fn(jsonValue[any], "v")).Implicit("v", "bar")
	r.Get("/param-resolver/nullable", Fn(jsonValue[*int], "v"))
	r.Get("/param-resolver/variadic", Fn(func(v ...string) (*Response, error) { return jsonValue(v) }, "v"))
	r.Get("/param-resolver/unknown", Fn(jsonValue[fmt.Stringer], "v"))
	r.Get("/param-resolver/exception", Fn(func(foo int) string { return "" }, "foo"))

	return r
}

func TestRouter_Site(t *testing.T) {
	r := newSiteRouter()

	tests := []struct {
		name   string
		method string
		target string
		status int
		body   string
	}{
		{"front page", "GET", "/", 200, "Front page"},
		{"not found", "GET", "/page-not-found", 404, ""},
		{"plain route", "GET", "/bar", 200, "Bar"},
		{"priority", "GET", "/foo", 200, "Bar"},
		{"http method", "POST", "/foo-post", 200, "OK"},
		{"http method fail", "GET", "/foo-post", 405, ""},
		{"multiple methods get", "GET", "/multiple-methods", 200, "OK"},
		{"multiple methods post", "POST", "/multiple-methods", 200, "OK"},
		{"head falls back to get", "HEAD", "/bar", 200, "Bar"},
		{"optional segment missing", "GET", "/foo-opt", 200, "missing"},
		{"optional segment present", "GET", "/foo-opt/ok", 200, "ok"},
		{"optional segment implicit", "GET", "/bar-opt", 200, "bar"},
		{"optional segment overrides implicit", "GET", "/bar-opt/ok", 200, "ok"},
		{"route filter", "GET", "/foo-filter1", 200, "foo"},
		{"global filter", "GET", "/foo-filter-g1", 200, "foo"},
		{"global filter overridden", "GET", "/foo-filter-g1-pass", 200, "bar"},
		{"single guard pass", "GET", "/foo-guard1", 200, "foo"},
		{"single guard fail", "GET", "/bar-guard1", 404, ""},
		{"multi guard pass", "GET", "/foo-guard2", 200, "foo"},
		{"multi guard fail", "GET", "/bar-guard2", 404, ""},
		{"route binding", "GET", "/foo/bind/1/foo", 200, "fooFOO"},
		{"collection binding", "GET", "/foo/bind/2/foo", 200, "FOO"},
		{"middleware auth", "GET", "/foo/protected", 401, "Unauthorized"},
		{"middleware chain", "GET", "/foo/chain/1", 200, "PREFIX-FOO"},
		{"named middleware chain", "GET", "/foo/chain/2", 200, "prefix-FOO"},
		{"group", "GET", "/bar-group/foo", 200, "GROUP1"},
		{"nested group middleware", "GET", "/bar-group/bar/foo", 200, "GROUP2"},
		{"nested group trailing slash", "GET", "/bar-group/bar/baz/", 200, "GROUP-3"},
		{"group constraint type1", "GET", "/bar-group/type1/public", 200, "type1"},
		{"group constraint type3", "GET", "/bar-group/type3/public", 200, "type3"},
		{"route constraint wins", "GET", "/bar-group/type2/secret", 200, "secret:type2"},
		{"route constraint rejects", "GET", "/bar-group/type3/secret", 404, ""},
		{"group constraint rejects", "GET", "/bar-group/type4/public", 404, ""},
		{"outside group", "GET", "/bar-group/type4/intruder", 200, "intruder:type4"},
		{"domain digits", "GET", "http://sub1.example.com/sub-domain", 200, "sub=1"},
		{"domain digits 2", "GET", "http://sub2.example.com/sub-domain", 200, "sub=2"},
		{"domain mismatch", "GET", "http://sub-123.example.com/sub-domain", 404, ""},
		{"domain letters", "GET", "http://SUB-abc.example.com:8080/sub-domain", 200, "sub=abc"},
		{"resolver default", "GET", "/param-resolver/default", 200, `{"v":"bar"}`},
		{"resolver nullable", "GET", "/param-resolver/nullable", 200, `{"v":null}`},
		{"resolver variadic", "GET", "/param-resolver/variadic", 200, `{"v":[]}`},
		{"resolver unknown", "GET", "/param-resolver/unknown", 200, `{"v":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := exec(t, r, NewRequest(tt.method, tt.target))
			assert.Equal(t, tt.status, status)
			if tt.body != "" {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}

func TestRouter_AuthorizedRequestPassesMiddleware(t *testing.T) {
	r := newSiteRouter()
	req := NewRequest("GET", "/foo/protected")
	req.Header.Set("Authorization", "Bearer token")

	status, body := exec(t, r, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "secret", body)
}

func TestRouter_ArgumentResolutionError(t *testing.T) {
	r := newSiteRouter()
	res, err := r.Dispatch(context.Background(), NewRequest("GET", "/param-resolver/exception"))
	require.Error(t, err)
	assert.Nil(t, res)

	var rerr *ArgumentResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "foo", rerr.Param)
	assert.ErrorIs(t, err, ErrUnresolvedArgument)
	assert.Contains(t, err.Error(), `could not resolve "foo" parameter`)
}

func TestRouter_ArgumentConversion(t *testing.T) {
	type key struct{}

	r := New(WithGlobal("app", "colibri"), WithGlobal("b", "global"), WithGlobal("c", "global"))
	r.Get("/double/{n}", Fn(func(n int) string { return fmt.Sprint(n * 2) }, "n"))
	r.Get("/flag/{on}", Fn(func(on bool) string { return fmt.Sprint(on) }, "on"))
	r.Get("/ptr/{n?}", Fn(func(n *int) string {
		if n == nil {
			return "none"
		}
		return fmt.Sprint(*n + 1)
	}, "n"))
	r.Get("/many/{v}", Fn(func(v ...int) string { return fmt.Sprint(v) }, "v"))
	r.Get("/order/{a}", Fn(func(a, b, c, d string) string {
		return strings.Join([]string{a, b, c, d}, ",")
	}, "a", "b", "c", "d")).Implicit("a", "implicit").Implicit("b", "implicit")
	r.Get("/inject", Fn(func(ctx context.Context, c *Context, req *Request, route *Route, router *Router, hr *http.Request, res *ArgumentResolver, app string) string {
		ok := ctx.Value(key{}) == "v" &&
			c.Request == req && c.Route == route && c.Router == router &&
			hr == nil && res == c.Resolver()
		return fmt.Sprintf("%t:%s", ok, app)
	}, "app"))

	ctx := context.WithValue(context.Background(), key{}, "v")
	dispatch := func(req *Request) string {
		res, err := r.Dispatch(ctx, req)
		require.NoError(t, err)
		require.NotNil(t, res)
		return res.String()
	}

	assert.Equal(t, "42", dispatch(NewRequest("GET", "/double/21")))
	assert.Equal(t, "true", dispatch(NewRequest("GET", "/flag/true")))
	assert.Equal(t, "none", dispatch(NewRequest("GET", "/ptr")))
	assert.Equal(t, "8", dispatch(NewRequest("GET", "/ptr/7")))
	assert.Equal(t, "[3]", dispatch(NewRequest("GET", "/many/3")))
	assert.Equal(t, "true:colibri", dispatch(NewRequest("GET", "/inject")))

	req := NewRequest("GET", "/order/path")
	req.SetAttribute("c", "attr").SetAttribute("d", "attr")
	assert.Equal(t, "path,implicit,global,attr", dispatch(req))

	_, err := r.Dispatch(ctx, NewRequest("GET", "/double/abc"))
	var rerr *ArgumentResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "n", rerr.Param)
	assert.Error(t, rerr.Err)
}

func TestRouter_CandidateRoutePublishedInGlobals(t *testing.T) {
	r := New()
	var seen []string

	low := r.Get("/x", Fn(func(cur any) string { return cur.(*Route).ID() }, "route"))
	high := r.Get("/x", fixedBody("high")).SetPriority(1).
		Filter("track", Fn(func(cur any) bool {
			seen = append(seen, cur.(*Route).ID())
			return false
		}, "route"))

	res, err := r.Dispatch(context.Background(), NewRequest("GET", "/x"))
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, []string{high.ID()}, seen)
	assert.Equal(t, low.ID(), res.String())
	assert.NotContains(t, r.Globals(), GlobalRoute)
}

func TestRouter_CallbackErrors(t *testing.T) {
	boom := errors.New("boom")
	var actionRan bool

	r := New()
	r.Get("/action", Fn(func() (string, error) { return "", boom }))
	r.Get("/middleware", Fn(func() string {
		actionRan = true
		return "never"
	})).Use(func(*Context, Next) (Result, error) { return nil, boom })
	r.Get("/guard", fixedBody("never")).Guard("g", Fn(func() (bool, error) { return false, boom }))
	r.Get("/binding/{v}", Fn(func(v string) string { return v }, "v")).
		Bind("v", Fn(func() (string, error) { return "", boom }))
	r.Get("/bad", Fn(42))
	r.Get("/too-many", Fn(func() (int, int, error) { return 0, 0, nil }))
	r.Get("/nil", nil)

	tests := []struct {
		path string
		want error
	}{
		{"/action", boom},
		{"/middleware", boom},
		{"/guard", ErrGuardError},
		{"/binding/x", boom},
		{"/bad", ErrNotAFunction},
		{"/too-many", ErrTooManyResults},
		{"/nil", ErrActionNil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, err := r.Dispatch(context.Background(), NewRequest("GET", tt.path))
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.False(t, actionRan)

	_, err := r.Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRequestNil)
}

func TestRouter_InvalidPatternFailsDispatch(t *testing.T) {
	r := New()
	r.Get("/ok", fixedBody("ok"))
	r.Get("/{a}/{a}", fixedBody("never"))

	_, err := r.Dispatch(context.Background(), NewRequest("GET", "/ok"))
	assert.ErrorIs(t, err, pattern.ErrDuplicatePlaceholder)
}

func TestRouter_MiddlewareResultsAreNormalized(t *testing.T) {
	r := New()
	r.Get("/raw", Fn(func() int { return 42 })).Use(func(_ *Context, next Next) (Result, error) {
		res, err := next()
		if err != nil {
			return nil, err
		}
		return Raw("[" + res.String() + "]"), nil
	})
	r.Get("/empty", fixedBody("x")).Use(func(*Context, Next) (Result, error) { return nil, nil })

	res, err := r.Dispatch(context.Background(), NewRequest("GET", "/raw"))
	require.NoError(t, err)
	assert.Equal(t, "[42]", res.String())
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))

	res, err = r.Dispatch(context.Background(), NewRequest("GET", "/empty"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Empty(t, res.String())
}

func TestRouteCollection_WhereRecompilesRoutes(t *testing.T) {
	r := New()
	route := r.Get("/items/{id}", Fn(func(id string) string { return id }, "id"))

	status, _ := exec(t, r, NewRequest("GET", "/items/abc"))
	assert.Equal(t, http.StatusOK, status)

	r.Routes().Where("id", `\d+`)
	status, _ = exec(t, r, NewRequest("GET", "/items/abc"))
	assert.Equal(t, http.StatusNotFound, status)
	_, body := exec(t, r, NewRequest("GET", "/items/12"))
	assert.Equal(t, "12", body)

	route.Where("id", "[a-z]+")
	_, body = exec(t, r, NewRequest("GET", "/items/abc"))
	assert.Equal(t, "abc", body)
	assert.Equal(t, map[string]string{"id": "[a-z]+"}, route.Constraints())
}

func TestRouteCollection_Lookup(t *testing.T) {
	r := New()
	a := r.Get("/a", fixedBody("a"))
	b := r.Post("/b", fixedBody("b")).SetPriority(2)

	got, ok := r.Routes().Get(a.ID())
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, []*Route{b, a}, r.Routes().Routes())
	assert.Equal(t, 2, r.Routes().Len())

	assert.True(t, r.Routes().Remove(a))
	_, ok = r.Routes().Get(a.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, r.Routes().Len())
}

func TestRouter_AllowedMethods(t *testing.T) {
	r := New()
	r.Post("/form", fixedBody("post"))
	r.Put("/form", fixedBody("put"))
	r.Any("/any", fixedBody("any"))

	allowed, notAllowed, err := r.MethodNotAllowed(NewRequest("GET", "/form"))
	require.NoError(t, err)
	assert.True(t, notAllowed)
	assert.Equal(t, []string{"POST", "PUT"}, allowed)

	_, notAllowed, err = r.MethodNotAllowed(NewRequest("DELETE", "/any"))
	require.NoError(t, err)
	assert.False(t, notAllowed)

	status, body := exec(t, r, NewRequest("delete", "/any"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "any", body)

	r.Get("/mixed", fixedBody("get"))
	r.Any("/mixed", fixedBody("any")).Filter("closed", Fn(func() bool { return false }))

	allowed, notAllowed, err = r.MethodNotAllowed(NewRequest("DELETE", "/mixed"))
	require.NoError(t, err)
	assert.False(t, notAllowed, "a route accepting every method matched the path")
	assert.Equal(t, []string{"GET"}, allowed)

	status, _ = exec(t, r, NewRequest("DELETE", "/mixed"))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_CaseInsensitive(t *testing.T) {
	r := New(WithCaseInsensitive(true))
	r.Get("/Hello", fixedBody("hi"))

	status, _ := exec(t, r, NewRequest("GET", "/hello"))
	assert.Equal(t, http.StatusOK, status)

	strict := New()
	strict.Get("/Hello", fixedBody("hi"))
	status, _ = exec(t, strict, NewRequest("GET", "/hello"))
	assert.Equal(t, http.StatusNotFound, status)
}

type outcomeRecorder struct {
	got []string
}

func (r *outcomeRecorder) RouteDispatched(route string, outcome Outcome) {
	r.got = append(r.got, route+"="+string(outcome))
}

func TestRouter_Recorder(t *testing.T) {
	rec := &outcomeRecorder{}
	r := New(WithRecorder(rec))
	r.Get("/ok", fixedBody("ok"))
	r.Get("/denied", fixedBody("no")).Guard("g", Fn(func() bool { return false }))
	r.Get("/fail", Fn(func(missing int) string { return "" }, "missing"))

	ctx := context.Background()
	for _, path := range []string{"/ok", "/denied", "/fail", "/none"} {
		_, _ = r.Dispatch(ctx, NewRequest("GET", path))
	}

	assert.Equal(t, []string{
		"/ok=handled",
		"/denied=denied",
		"/fail=error",
		"=not_found",
	}, rec.got)
}

func TestRouter_CustomFilters(t *testing.T) {
	var calls int
	r := New(WithFilters(FilterFunc(func(c *Context) (bool, error) {
		calls++
		return c.Request.Header.Get("X-Allow") == "1", nil
	})))
	r.Post("/only-post", fixedBody("ok"))

	req := NewRequest("GET", "/only-post")
	req.Header.Set("X-Allow", "1")
	res, err := r.Dispatch(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res, "method filter is replaced")
	assert.Equal(t, 1, calls)

	res, err = r.Dispatch(context.Background(), NewRequest("GET", "/only-post"))
	require.NoError(t, err)
	assert.Nil(t, res)
}
