package connector

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpproxy"
)

// ProxyConfig holds proxy rules in the HTTP_PROXY / HTTPS_PROXY / NO_PROXY
// format. With FromEnvironment, unset fields are read from the environment.
type ProxyConfig struct {
	HTTPProxy       string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy      string `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy         string `yaml:"no_proxy" mapstructure:"no_proxy"`
	FromEnvironment bool   `yaml:"from_environment" mapstructure:"from_environment"`
}

// IsEnabled reports whether any proxy rule can match.
func (c ProxyConfig) IsEnabled() bool {
	return c.resolved().HTTPProxy != "" || c.resolved().HTTPSProxy != ""
}

func (c ProxyConfig) resolved() *httpproxy.Config {
	cfg := &httpproxy.Config{}
	if c.FromEnvironment {
		cfg = httpproxy.FromEnvironment()
	}
	if c.HTTPProxy != "" {
		cfg.HTTPProxy = c.HTTPProxy
	}
	if c.HTTPSProxy != "" {
		cfg.HTTPSProxy = c.HTTPSProxy
	}
	if c.NoProxy != "" {
		cfg.NoProxy = c.NoProxy
	}
	return cfg
}

// matcher returns the proxy selection function, or nil when no proxy is
// configured.
func (c ProxyConfig) matcher() func(*url.URL) (*url.URL, error) {
	cfg := c.resolved()
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" {
		return nil
	}
	return cfg.ProxyFunc()
}

// proxyAddrs returns host:port of every configured proxy.
func (c ProxyConfig) proxyAddrs() map[string]bool {
	addrs := map[string]bool{}
	cfg := c.resolved()
	for _, raw := range []string{cfg.HTTPProxy, cfg.HTTPSProxy} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			// httpproxy accepts bare host:port and assumes http.
			u, err = url.Parse("http://" + raw)
			if err != nil {
				continue
			}
		}
		addrs[hostPort(u)] = true
	}
	return addrs
}

// hostPort returns u's host with the scheme's default port filled in.
func hostPort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port)
	}
	port := "80"
	if strings.EqualFold(u.Scheme, "https") {
		port = "443"
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func proxyAuthorization(proxy *url.URL) string {
	if proxy.User == nil {
		return ""
	}
	password, _ := proxy.User.Password()
	creds := proxy.User.Username() + ":" + password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(creds))
}

// tunnel issues CONNECT target over conn and waits for a 2xx answer.
func tunnel(ctx context.Context, conn net.Conn, proxy *url.URL, target string) (net.Conn, error) {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: target},
		Host:   target,
		Header: make(http.Header),
	}
	if auth := proxyAuthorization(proxy); auth != "" {
		req.Header.Set("Proxy-Authorization", auth)
	}

	// Unblock the handshake when ctx ends; the deadline is cleared again
	// before the tunnel is handed out.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Unix(1, 0)) })
	defer func() {
		stop()
		_ = conn.SetDeadline(time.Time{})
	}()

	if err := req.Write(conn); err != nil {
		return nil, fmt.Errorf("write CONNECT: %w", err)
	}
	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProxyStatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn replays bytes the proxy sent after its CONNECT response.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
