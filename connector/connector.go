package connector

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/security"
)

// Mode is the connection strategy chosen for a destination.
type Mode int

// Connection modes.
const (
	Direct Mode = iota
	HTTPViaProxy
	HTTPSViaProxy
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case HTTPViaProxy:
		return "http via proxy"
	case HTTPSViaProxy:
		return "https via proxy"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ContextDialer dials plain TCP connections.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Config configures a Connector.
type Config struct {
	TLS            *security.TLSConfig `yaml:"tls" mapstructure:"tls"`
	Proxy          ProxyConfig         `yaml:"proxy" mapstructure:"proxy"`
	ConnectTimeout time.Duration       `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	KeepAlive      time.Duration       `yaml:"keep_alive" mapstructure:"keep_alive"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 3100 * time.Millisecond
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 30 * time.Second
	}
}

// Option customizes a Connector.
type Option func(*Connector)

// WithDialer replaces the TCP dialer.
func WithDialer(d ContextDialer) Option {
	return func(c *Connector) { c.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Connector) { c.log = l }
}

var defaultTLS = sync.OnceValue(security.DefaultClientConfig)

// Connector opens connections according to its proxy rules. It is safe for
// concurrent use.
type Connector struct {
	dialer     ContextDialer
	tlsConfig  *tls.Config
	hostTLS    *sync.Map // server name -> *tls.Config
	proxy      func(*url.URL) (*url.URL, error)
	proxyAddrs map[string]bool
	log        *logger.Logger
}

// New builds a connector. Proxy rules are evaluated into a matcher here,
// once. The TLS config is shared with every other default connector unless
// cfg.TLS changes the trust store or client identity.
func New(cfg Config, opts ...Option) (*Connector, error) {
	cfg.ApplyDefaults()

	tlsConfig, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("connector: %w", err)
	}
	if tlsConfig == nil {
		tlsConfig = defaultTLS()
	}

	c := &Connector{
		dialer:     &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: cfg.KeepAlive},
		tlsConfig:  tlsConfig,
		hostTLS:    &sync.Map{},
		proxy:      cfg.Proxy.matcher(),
		proxyAddrs: cfg.Proxy.proxyAddrs(),
		log:        logger.Get("connector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Clone returns a connector sharing c's read-only state.
func (c *Connector) Clone() *Connector {
	clone := *c
	return &clone
}

// TLSConfig returns the shared TLS config. It must not be modified.
func (c *Connector) TLSConfig() *tls.Config {
	return c.tlsConfig
}

// ModeFor returns the mode used for dst and the proxy URL when proxied.
func (c *Connector) ModeFor(dst *url.URL) (Mode, *url.URL, error) {
	if c.proxy == nil {
		return Direct, nil, nil
	}
	proxy, err := c.proxy(dst)
	if err != nil {
		return Direct, nil, fmt.Errorf("connector: invalid proxy for %s: %w", dst.Host, err)
	}
	if proxy == nil {
		return Direct, nil, nil
	}
	if isHTTPS(dst) {
		return HTTPSViaProxy, proxy, nil
	}
	return HTTPViaProxy, proxy, nil
}

// Connect opens a connection for a request to dst. For https destinations
// the returned connection has completed its TLS handshake with dst. For
// HTTPViaProxy the connection leads to the proxy.
func (c *Connector) Connect(ctx context.Context, dst *url.URL) (net.Conn, Mode, error) {
	mode, proxy, err := c.ModeFor(dst)
	if err != nil {
		return nil, mode, err
	}
	fields := logger.Fields(logger.FieldAddr, hostPort(dst), "mode", mode.String())
	if proxy != nil {
		fields[logger.FieldProxy] = proxy.Redacted()
	}
	c.log.Debug("connecting", fields)

	var conn net.Conn
	switch mode {
	case Direct:
		conn, err = c.dial(ctx, hostPort(dst))
		if err == nil && isHTTPS(dst) {
			conn, err = c.handshake(ctx, conn, dst.Hostname())
		}
	case HTTPViaProxy:
		conn, err = c.dialProxy(ctx, proxy)
	case HTTPSViaProxy:
		conn, err = c.dialTunnel(ctx, proxy, hostPort(dst), dst.Hostname())
	}
	if err != nil {
		c.log.Debug("connect failed", logger.MergeWithError(fields, err))
		return nil, mode, err
	}
	return conn, mode, nil
}

// DialContext dials plain TCP. It serves http.Transport for http
// destinations and plain HTTP proxies.
func (c *Connector) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return c.dial(ctx, addr)
}

// DialTLSContext opens a TLS connection to addr, tunneling through the
// matching proxy when there is one. Addresses of configured proxies are
// dialed directly.
func (c *Connector) DialTLSContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &Error{Op: OpConnect, Addr: addr, Err: err}
	}
	if c.proxyAddrs[addr] {
		conn, err := c.dial(ctx, addr)
		if err != nil {
			return nil, err
		}
		return c.handshake(ctx, conn, host)
	}
	conn, _, err := c.Connect(ctx, &url.URL{Scheme: "https", Host: addr})
	return conn, err
}

// HTTPProxy returns the proxy for plain HTTP destinations, for use as
// http.Transport.Proxy. HTTPS destinations never get a proxy from it because
// their tunnels are opened by DialTLSContext.
func (c *Connector) HTTPProxy(dst *url.URL) (*url.URL, error) {
	mode, proxy, err := c.ModeFor(dst)
	if err != nil || mode != HTTPViaProxy {
		return nil, err
	}
	return proxy, nil
}

func (c *Connector) dial(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &Error{Op: OpConnect, Addr: addr, Err: err}
	}
	return conn, nil
}

func (c *Connector) dialProxy(ctx context.Context, proxy *url.URL) (net.Conn, error) {
	addr := hostPort(proxy)
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	if isHTTPS(proxy) {
		return c.handshake(ctx, conn, proxy.Hostname())
	}
	return conn, nil
}

func (c *Connector) dialTunnel(ctx context.Context, proxy *url.URL, target, serverName string) (net.Conn, error) {
	conn, err := c.dialProxy(ctx, proxy)
	if err != nil {
		return nil, err
	}
	tunneled, err := tunnel(ctx, conn, proxy, target)
	if err != nil {
		_ = conn.Close()
		return nil, &Error{Op: OpProxyTunnel, Addr: target, Err: err}
	}
	return c.handshake(ctx, tunneled, serverName)
}

// handshake runs the TLS client handshake over conn, verifying serverName
// unless the config pins one.
func (c *Connector) handshake(ctx context.Context, conn net.Conn, serverName string) (net.Conn, error) {
	tlsConn := tls.Client(conn, c.configFor(serverName))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, &Error{Op: OpTLSHandshake, Addr: serverName, Err: err}
	}
	return tlsConn, nil
}

// configFor returns the TLS config for serverName. Configs carrying a server
// name are cloned once per host and reused by later connections.
func (c *Connector) configFor(serverName string) *tls.Config {
	if c.tlsConfig.ServerName != "" {
		return c.tlsConfig
	}
	if cfg, ok := c.hostTLS.Load(serverName); ok {
		return cfg.(*tls.Config)
	}
	cfg := c.tlsConfig.Clone()
	cfg.ServerName = serverName
	actual, _ := c.hostTLS.LoadOrStore(serverName, cfg)
	return actual.(*tls.Config)
}

func isHTTPS(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, "https")
}
