// Package sdkhttp defines the HTTP request and response shapes exchanged
// between the orchestrator, interceptors and connections.
package sdkhttp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kbukum/sdkcore/sdkbody"
)

// Request is an outgoing HTTP request whose body is an sdkbody.Body.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   *sdkbody.Body
}

// NewRequest creates a request. A nil body is replaced by an empty one.
func NewRequest(method, rawURL string, body *sdkbody.Body) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("sdkhttp: invalid request URL: %w", err)
	}
	if body == nil {
		body = sdkbody.Empty()
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{Method: method, URL: u, Header: make(http.Header), Body: body}, nil
}

// TryClone copies the request, cloning its body. It fails when the body is
// not cloneable.
func (r *Request) TryClone() (*Request, bool) {
	body, ok := r.Body.TryClone()
	if !ok {
		return nil, false
	}
	u := *r.URL
	if r.URL.User != nil {
		user := *r.URL.User
		u.User = &user
	}
	return &Request{
		Method: r.Method,
		URL:    &u,
		Header: r.Header.Clone(),
		Body:   body,
	}, true
}

// ContentLength returns the body length when known.
func (r *Request) ContentLength() (int64, bool) {
	return r.Body.ContentLength()
}

// String implements fmt.Stringer.
func (r *Request) String() string {
	return fmt.Sprintf("%s %s %s", r.Method, r.URL, r.Body)
}

// Response is an HTTP response whose body is an sdkbody.Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       *sdkbody.Body
}

// NewResponse creates a response. A nil body is replaced by an empty one.
func NewResponse(status int, body *sdkbody.Body) *Response {
	if body == nil {
		body = sdkbody.Empty()
	}
	return &Response{StatusCode: status, Header: make(http.Header), Body: body}
}

// IsSuccess reports whether the status code is 2xx.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TakeBody moves the body out of the response, leaving a taken body behind.
func (r *Response) TakeBody() *sdkbody.Body {
	return r.Body.Take()
}

// String implements fmt.Stringer.
func (r *Response) String() string {
	return fmt.Sprintf("%d %s %s", r.StatusCode, http.StatusText(r.StatusCode), r.Body)
}

// Connection sends a request and returns the response. Any transport (real
// network, proxy tunnel, mock) implements it.
type Connection interface {
	Call(ctx context.Context, req *Request) (*Response, error)
}

// ConnectionFunc adapts a function to a Connection.
type ConnectionFunc func(ctx context.Context, req *Request) (*Response, error)

// Call implements Connection.
func (f ConnectionFunc) Call(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
