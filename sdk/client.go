package sdk

import (
	"github.com/benbjohnson/clock"

	"github.com/kbukum/sdkcore/auth"
	"github.com/kbukum/sdkcore/checksum"
	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/connector"
	"github.com/kbukum/sdkcore/endpoint"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/httpclient"
	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/orchestrator"
	"github.com/kbukum/sdkcore/retries"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/throughput"
)

// Option customizes the base layer built by New.
type Option func(*options)

type options struct {
	connection       sdkhttp.Connection
	strategy         orchestrator.RetryStrategy
	probe            orchestrator.TraceProbe
	endpointResolver endpoint.Resolver
	authResolver     auth.OptionResolver
	authSchemes      []auth.Scheme
	interceptors     []orchestrator.Interceptor
	clock            clock.Clock
	log              *logger.Logger
	httpOptions      []httpclient.Option
}

// WithConnection replaces the default HTTP connection, for example with a
// mock.Client.
func WithConnection(c sdkhttp.Connection) Option {
	return func(o *options) { o.connection = c }
}

// WithRetryStrategy replaces the strategy selected by Config.Retry.
func WithRetryStrategy(rs orchestrator.RetryStrategy) Option {
	return func(o *options) { o.strategy = rs }
}

// WithTraceProbe replaces the logging trace probe.
func WithTraceProbe(p orchestrator.TraceProbe) Option {
	return func(o *options) { o.probe = p }
}

// WithEndpointResolver replaces the static resolver built from
// Config.Endpoint.
func WithEndpointResolver(r endpoint.Resolver) Option {
	return func(o *options) { o.endpointResolver = r }
}

// WithAuth sets the auth option resolver and registers schemes. The no-auth
// scheme stays registered.
func WithAuth(r auth.OptionResolver, schemes ...auth.Scheme) Option {
	return func(o *options) {
		o.authResolver = r
		o.authSchemes = append(o.authSchemes, schemes...)
	}
}

// WithInterceptor registers interceptors after the built-in ones.
func WithInterceptor(i ...orchestrator.Interceptor) Option {
	return func(o *options) { o.interceptors = append(o.interceptors, i...) }
}

// WithClock sets the time source for timers, backoff and throughput samples.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithLogger replaces the logger built from Config.Logging.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithHTTPClientOptions passes options to the default HTTP connection.
func WithHTTPClientOptions(opts ...httpclient.Option) Option {
	return func(o *options) { o.httpOptions = append(o.httpOptions, opts...) }
}

// Client holds the frozen base layer shared by every invocation.
type Client struct {
	base     configbag.FrozenLayer
	http     *httpclient.Client
	strategy orchestrator.RetryStrategy
	log      *logger.Logger
}

// New validates cfg and builds the base layer.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.New(&cfg.Logging, cfg.Name)
	}

	c := &Client{log: o.log}
	l := configbag.NewLayer("client:" + cfg.Name)

	conn := o.connection
	if conn == nil {
		hc, err := httpclient.New(httpclient.Config{
			Connector: connector.Config{
				TLS:            cfg.TLS,
				Proxy:          cfg.Proxy,
				ConnectTimeout: cfg.Timeouts.Connect,
			},
			ReadTimeout: cfg.Timeouts.Read,
			Headers:     cfg.Headers,
		}, append([]httpclient.Option{httpclient.WithLogger(o.log.WithComponent("httpclient"))}, o.httpOptions...)...)
		if err != nil {
			return nil, errors.Configuration("cannot build HTTP connection").WithCause(err)
		}
		c.http = hc
		conn = hc
	}
	orchestrator.SetConnection(l, conn)

	c.strategy = o.strategy
	if c.strategy == nil {
		c.strategy = retries.New(cfg.Retry)
	}
	orchestrator.SetRetryStrategy(l, c.strategy)

	orchestrator.SetTimeoutConfig(l, orchestrator.TimeoutConfig{
		Operation:        cfg.Timeouts.Operation,
		OperationAttempt: cfg.Timeouts.OperationAttempt,
	})

	resolver := o.endpointResolver
	if resolver == nil && cfg.Endpoint != "" {
		static, err := endpoint.NewStaticResolver(cfg.Endpoint)
		if err != nil {
			return nil, errors.Configuration("invalid endpoint").WithCause(err)
		}
		resolver = static
	}
	if resolver != nil {
		orchestrator.SetEndpointResolver(l, resolver)
	}

	authResolver := o.authResolver
	if authResolver == nil {
		authResolver = auth.StaticOptionResolver{auth.NewOption(auth.NoAuthSchemeID)}
	}
	orchestrator.SetAuthOptionResolver(l, authResolver)
	orchestrator.AddAuthScheme(l, auth.NoAuth())
	for _, s := range o.authSchemes {
		orchestrator.AddAuthScheme(l, s)
	}

	orchestrator.AddInterceptor(l, &orchestrator.InvocationIDInterceptor{})
	orchestrator.AddInterceptor(l, retries.AttemptHeaderInterceptor{})
	if cfg.Checksum.RequestAlgorithm != "" || cfg.Checksum.ValidateResponse {
		ci, err := checksum.NewInterceptor(cfg.Checksum)
		if err != nil {
			return nil, errors.Configuration("invalid checksum config").WithCause(err)
		}
		orchestrator.AddInterceptor(l, ci)
	}
	if cfg.StalledStream.Enabled {
		orchestrator.AddInterceptor(l, throughput.NewInterceptor(cfg.StalledStream.Options()))
	}
	for _, i := range o.interceptors {
		orchestrator.AddInterceptor(l, i)
	}

	probe := o.probe
	if probe == nil {
		probe = &orchestrator.LoggingProbe{Log: o.log.WithComponent("trace")}
	}
	orchestrator.SetTraceProbe(l, probe)

	if o.clock != nil {
		configbag.Store(l, o.clock)
	}
	configbag.Store(l, o.log)

	c.base = l.Freeze()
	o.log.Debug("client configured", logger.Fields(
		"endpoint", cfg.Endpoint,
		"retry_mode", cfg.Retry.Mode,
		logger.FieldMaxAttempts, cfg.Retry.MaxAttempts,
	))
	return c, nil
}

// NewConfigBag builds a client from cfg and returns a bag over its base
// layer. Long-lived callers should keep the Client from New instead, since
// a bag serves a single invocation.
func NewConfigBag(cfg Config, opts ...Option) (*configbag.Bag, error) {
	c, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return c.ConfigBag(), nil
}

// ConfigBag returns a fresh bag for one invocation.
func (c *Client) ConfigBag() *configbag.Bag {
	return configbag.New(c.base)
}

// Base returns the frozen base layer.
func (c *Client) Base() configbag.FrozenLayer {
	return c.base
}

// RetryStrategy returns the shared retry strategy.
func (c *Client) RetryStrategy() orchestrator.RetryStrategy {
	return c.strategy
}

// Close releases pooled connections of the default HTTP connection.
func (c *Client) Close() {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
}
