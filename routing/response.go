package routing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Result is what actions and middleware return: either a *Response or a
// Raw body that Normalize wraps into an HTML response.
type Result interface {
	result()
}

// Raw is a body without response metadata.
type Raw string

func (Raw) result() {}

// Response is a complete routing response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (*Response) result() {}

// NewResponse creates a response with the given status and body.
func NewResponse(status int, body string) *Response {
	return &Response{
		Status: status,
		Header: make(http.Header),
		Body:   []byte(body),
	}
}

// HTML creates a 200 text/html response.
func HTML(body string) *Response {
	r := NewResponse(http.StatusOK, body)
	r.Header.Set("Content-Type", "text/html; charset=utf-8")
	return r
}

// Text creates a 200 text/plain response.
func Text(body string) *Response {
	r := NewResponse(http.StatusOK, body)
	r.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return r
}

// JSON creates a 200 application/json response from v.
func JSON(v any) (*Response, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	r := NewResponse(http.StatusOK, "")
	r.Body = data
	r.Header.Set("Content-Type", "application/json")
	return r, nil
}

// Normalize turns any Result into a *Response. Raw bodies and nil become
// 200 HTML responses.
func Normalize(res Result) *Response {
	switch v := res.(type) {
	case *Response:
		if v == nil {
			return HTML("")
		}
		return v
	case Raw:
		return HTML(string(v))
	default:
		return HTML("")
	}
}

// Modify calls fn with r and returns r, for use at the end of a
// middleware chain:
//
//	res, err := next()
//	return res.Modify(func(r *routing.Response) { ... }), err
func (r *Response) Modify(fn func(*Response)) *Response {
	if r != nil && fn != nil {
		fn(r)
	}
	return r
}

// String returns the body.
func (r *Response) String() string {
	return string(r.Body)
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}

// WriteTo writes r to w.
func (r *Response) WriteTo(w http.ResponseWriter) error {
	h := w.Header()
	for k, vs := range r.Header {
		h[k] = append([]string(nil), vs...)
	}
	if h.Get("Content-Length") == "" {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if _, err := w.Write(r.Body); err != nil {
		return fmt.Errorf("failed to write response body: %w", err)
	}
	return nil
}
