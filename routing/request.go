package routing

import (
	"maps"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Request is the routing view of an incoming request.
type Request struct {
	Method string
	Path   string
	Host   string
	Header http.Header

	// HTTP is the originating request, nil for requests built with NewRequest.
	HTTP *http.Request

	mu         sync.RWMutex
	attributes map[string]any
}

// NewRequest builds a request from a method and a target. The target is
// either a path ("/foo") or an absolute URL ("http://sub.example.com/foo"),
// in which case the host is taken from it.
func NewRequest(method, target string) *Request {
	req := &Request{
		Method:     strings.ToUpper(method),
		Path:       "/",
		Header:     make(http.Header),
		attributes: make(map[string]any),
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	u, err := url.Parse(target)
	if err != nil {
		req.Path = target
		return req
	}
	if u.Path != "" {
		req.Path = u.Path
	}
	req.Host = hostname(u.Host)
	return req
}

// FromHTTP wraps r.
func FromHTTP(r *http.Request) *Request {
	path := r.URL.Path
	if path == "" {
		path = "/"
	}
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}
	return &Request{
		Method:     r.Method,
		Path:       path,
		Host:       hostname(host),
		Header:     r.Header,
		HTTP:       r,
		attributes: make(map[string]any),
	}
}

// Attribute returns the attribute stored under name.
func (r *Request) Attribute(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.attributes[name]
	return v, ok
}

// SetAttribute stores v under name and returns r.
func (r *Request) SetAttribute(name string, v any) *Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attributes == nil {
		r.attributes = make(map[string]any)
	}
	r.attributes[name] = v
	return r
}

// Attributes returns a copy of the attribute bag.
func (r *Request) Attributes() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.attributes)
}

func hostname(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
