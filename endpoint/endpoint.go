// Package endpoint resolves the service endpoint for an operation and
// rewrites requests to target it.
package endpoint

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// Endpoint is a resolved service endpoint.
type Endpoint struct {
	URL        *url.URL
	Headers    http.Header
	Properties map[string]string
}

// Parse creates an endpoint from a URL string.
func Parse(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("endpoint: invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoint{}, fmt.Errorf("endpoint: URL %q must be absolute", raw)
	}
	return Endpoint{URL: u}, nil
}

// MustParse is Parse that panics on error.
func MustParse(raw string) Endpoint {
	ep, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return ep
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	if e.URL == nil {
		return "<no endpoint>"
	}
	return e.URL.String()
}

// Resolver resolves an endpoint from operation-specific parameters.
type Resolver interface {
	ResolveEndpoint(ctx context.Context, params typeerased.Box) (Endpoint, error)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(ctx context.Context, params typeerased.Box) (Endpoint, error)

// ResolveEndpoint implements Resolver.
func (f ResolverFunc) ResolveEndpoint(ctx context.Context, params typeerased.Box) (Endpoint, error) {
	return f(ctx, params)
}

// StaticResolver always resolves to the same endpoint.
type StaticResolver struct {
	Endpoint Endpoint
}

// NewStaticResolver parses raw into a static resolver.
func NewStaticResolver(raw string) (*StaticResolver, error) {
	ep, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &StaticResolver{Endpoint: ep}, nil
}

// ResolveEndpoint implements Resolver.
func (s *StaticResolver) ResolveEndpoint(context.Context, typeerased.Box) (Endpoint, error) {
	return s.Endpoint, nil
}

// Apply rewrites req to target ep: the scheme and host are replaced, the
// endpoint path is prefixed to the request path, endpoint query parameters
// are merged and endpoint headers are added when not already set.
func Apply(req *sdkhttp.Request, ep Endpoint) error {
	if ep.URL == nil {
		return fmt.Errorf("endpoint: no URL to apply")
	}
	u := *req.URL
	u.Scheme = ep.URL.Scheme
	u.Host = ep.URL.Host
	if ep.URL.User != nil {
		u.User = ep.URL.User
	}
	u.Path = joinPath(ep.URL.Path, req.URL.Path)
	u.RawPath = ""
	if ep.URL.RawQuery != "" {
		q := u.Query()
		for k, vs := range ep.URL.Query() {
			if _, exists := q[k]; !exists {
				q[k] = vs
			}
		}
		u.RawQuery = q.Encode()
	}
	req.URL = &u

	for k, vs := range ep.Headers {
		if req.Header.Get(k) != "" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return nil
}

func joinPath(prefix, p string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	switch {
	case p == "":
		if prefix == "" {
			return "/"
		}
		return prefix
	case strings.HasPrefix(p, "/"):
		return prefix + p
	default:
		return prefix + "/" + p
	}
}
