package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kbukum/sdkcore/connector"
	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/sdkbody"
	"github.com/kbukum/sdkcore/sdkhttp"
)

const readChunkSize = 32 * 1024

// Client sends sdkhttp requests over a pooled net/http transport.
type Client struct {
	transport *http.Transport
	connector *connector.Connector
	config    Config
	log       *logger.Logger
}

// Option customizes a Client.
type Option func(*clientOptions)

type clientOptions struct {
	connectorOpts []connector.Option
	log           *logger.Logger
}

// WithConnectorOptions passes options to the underlying connector.
func WithConnectorOptions(opts ...connector.Option) Option {
	return func(o *clientOptions) { o.connectorOpts = append(o.connectorOpts, opts...) }
}

// WithLogger sets the logger for the client and its connector.
func WithLogger(l *logger.Logger) Option {
	return func(o *clientOptions) { o.log = l }
}

// New creates a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &clientOptions{log: logger.Get("httpclient")}
	for _, opt := range opts {
		opt(o)
	}
	conn, err := connector.New(cfg.Connector, append([]connector.Option{connector.WithLogger(o.log)}, o.connectorOpts...)...)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: func(r *http.Request) (*url.URL, error) {
			return conn.HTTPProxy(r.URL)
		},
		DialContext:           conn.DialContext,
		DialTLSContext:        conn.DialTLSContext,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		DisableCompression:    true,
	}

	return &Client{transport: transport, connector: conn, config: cfg, log: o.log}, nil
}

// Connector returns the connector the client dials with.
func (c *Client) Connector() *connector.Connector {
	return c.connector
}

// CloseIdleConnections closes pooled connections.
func (c *Client) CloseIdleConnections() {
	c.transport.CloseIdleConnections()
}

// Call implements sdkhttp.Connection. ctx bounds the round trip; the
// response body outlives it and is bounded by the contexts passed to its
// reads instead.
func (c *Client) Call(ctx context.Context, req *sdkhttp.Request) (*sdkhttp.Response, error) {
	reqCtx, cancelReq := context.WithCancel(context.WithoutCancel(ctx))
	httpReq, err := c.buildRequest(reqCtx, ctx, req)
	if err != nil {
		cancelReq()
		return nil, err
	}

	stop := context.AfterFunc(ctx, cancelReq)
	resp, err := c.transport.RoundTrip(httpReq)
	if !stop() && err == nil {
		// ctx ended while the response was being read.
		_ = resp.Body.Close()
		err = ctx.Err()
	}
	if err != nil {
		cancelReq()
		e := classifyTransport(ctx, err)
		c.log.Debug("http call failed", logger.Fields(
			logger.FieldAddr, req.URL.Host,
			logger.FieldError, err.Error(),
			"code", e.Code.String(),
		))
		return nil, e
	}

	out := sdkhttp.NewResponse(resp.StatusCode, nil)
	out.Header = resp.Header
	out.Body = sdkbody.FromStream(&responseStream{resp: resp, out: out, cancel: cancelReq})
	return out, nil
}

func (c *Client) buildRequest(reqCtx, ctx context.Context, req *sdkhttp.Request) (*http.Request, error) {
	var (
		body    io.Reader
		trailer http.Header
	)
	length, known := req.Body.ContentLength()
	if names := req.Body.TrailerNames(); len(names) > 0 {
		trailer = make(http.Header, len(names))
		for _, name := range names {
			trailer[http.CanonicalHeaderKey(name)] = nil
		}
		// Trailers require chunked transfer encoding.
		known = false
	}
	// Bodies with callbacks are polled so every chunk reaches them.
	if data, ok := req.Body.Bytes(); ok && !req.Body.HasCallbacks() {
		if len(data) > 0 {
			body = bytes.NewReader(data)
		}
	} else {
		body = &trailerReader{ReadCloser: req.Body.Reader(ctx), body: req.Body, trailer: trailer}
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, &Error{Code: ErrCodeValidation, Message: err.Error(), Err: err}
	}
	httpReq.Trailer = trailer
	httpReq.Header = req.Header.Clone()
	if httpReq.Header == nil {
		httpReq.Header = make(http.Header)
	}
	for k, v := range c.config.Headers {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header.Set(k, v)
		}
	}
	if host := httpReq.Header.Get("Host"); host != "" {
		httpReq.Host = host
		httpReq.Header.Del("Host")
	}

	switch {
	case trailer != nil:
		httpReq.ContentLength = -1
	case known:
		httpReq.ContentLength = length
	case httpReq.Header.Get("Content-Length") != "":
		if n, err := strconv.ParseInt(httpReq.Header.Get("Content-Length"), 10, 64); err == nil {
			httpReq.ContentLength = n
		}
	default:
		httpReq.ContentLength = -1
	}
	if httpReq.ContentLength == 0 {
		httpReq.Body = http.NoBody
	}
	return httpReq, nil
}

// trailerReader copies the body's callback trailers into the declared
// request trailers once the body reaches EOF. net/http writes them after the
// last chunk.
type trailerReader struct {
	io.ReadCloser
	body    *sdkbody.Body
	trailer http.Header
}

func (r *trailerReader) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if errors.Is(err, io.EOF) && r.trailer != nil {
		for k, vs := range r.body.Trailers() {
			r.trailer[http.CanonicalHeaderKey(k)] = vs
		}
	}
	return n, err
}

// responseStream reads a net/http response body chunk by chunk. Each read is
// cancelled by the context passed to Next.
type responseStream struct {
	resp   *http.Response
	out    *sdkhttp.Response
	cancel context.CancelFunc
	buf    []byte
	done   bool
	err    error
}

func (s *responseStream) ContentLength() (int64, bool) {
	return s.resp.ContentLength, s.resp.ContentLength >= 0
}

func (s *responseStream) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.buf == nil {
		s.buf = make([]byte, readChunkSize)
	}

	stop := context.AfterFunc(ctx, s.cancel)
	n, err := s.resp.Body.Read(s.buf)
	stop()

	if n > 0 {
		out := make([]byte, n)
		copy(out, s.buf[:n])
		if errors.Is(err, io.EOF) {
			s.finish()
		}
		return out, nil
	}
	switch {
	case err == nil:
		return nil, nil
	case errors.Is(err, io.EOF):
		s.finish()
		return nil, io.EOF
	default:
		_ = s.Close()
		if ctx.Err() != nil {
			s.err = ctx.Err()
		} else {
			s.err = classifyTransport(ctx, err)
		}
		return nil, s.err
	}
}

// finish merges response trailers into the response headers.
func (s *responseStream) finish() {
	for k, vs := range s.resp.Trailer {
		for _, v := range vs {
			s.out.Header.Add(k, v)
		}
	}
	_ = s.Close()
}

func (s *responseStream) Close() error {
	s.done = true
	err := s.resp.Body.Close()
	s.cancel()
	return err
}
