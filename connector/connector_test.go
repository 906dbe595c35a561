package connector

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/security"
	"github.com/kbukum/sdkcore/security/tlstest"
)

const testHost = "svc.example.test"

// fakeProxy accepts CONNECT requests and forwards every tunnel to upstream,
// whatever host was requested. Plain requests are answered directly.
type fakeProxy struct {
	ln       net.Listener
	upstream string
	status   int

	mu       sync.Mutex
	requests []*http.Request
	first    []string
}

func newFakeProxy(t *testing.T, upstream string, status int) *fakeProxy {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	p := &fakeProxy{ln: ln, upstream: upstream, status: status}
	t.Cleanup(func() { _ = ln.Close() })
	go p.serve()
	return p
}

func (p *fakeProxy) URL() string { return "http://" + p.ln.Addr().String() }

func (p *fakeProxy) serve() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *fakeProxy) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	br := bufio.NewReader(conn)
	line, err := br.Peek(8)
	if err != nil {
		return
	}
	req, err := http.ReadRequest(br)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.first = append(p.first, string(line))
	p.mu.Unlock()

	if req.Method != http.MethodConnect {
		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 7\r\nConnection: close\r\n\r\nproxied")
		return
	}
	if p.status != http.StatusOK {
		_, _ = io.WriteString(conn, "HTTP/1.1 407 Proxy Authentication Required\r\n\r\n")
		return
	}
	up, err := net.Dial("tcp", p.upstream)
	if err != nil {
		_, _ = io.WriteString(conn, "HTTP/1.1 502 Bad Gateway\r\n\r\n")
		return
	}
	defer func() { _ = up.Close() }()
	_, _ = io.WriteString(conn, "HTTP/1.1 200 Connection Established\r\n\r\n")
	go func() { _, _ = io.Copy(up, br) }()
	_, _ = io.Copy(conn, up)
}

func (p *fakeProxy) seen() ([]*http.Request, []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*http.Request(nil), p.requests...), append([]string(nil), p.first...)
}

func newTLSUpstream(t *testing.T, certs *tlstest.TLSCerts) *httptest.Server {
	t.Helper()
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "secure")
	}))
	srv.TLS = certs.ServerConfig()
	srv.StartTLS()
	t.Cleanup(srv.Close)
	return srv
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func newConnector(t *testing.T, cfg Config) *Connector {
	t.Helper()
	c, err := New(cfg, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestModeFor(t *testing.T) {
	c := newConnector(t, Config{Proxy: ProxyConfig{
		HTTPProxy:  "http://proxy.internal:3128",
		HTTPSProxy: "http://proxy.internal:3129",
		NoProxy:    "internal.example.test",
	}})

	tests := []struct {
		dst       string
		wantMode  Mode
		wantProxy string
	}{
		{"https://" + testHost + "/path", HTTPSViaProxy, "proxy.internal:3129"},
		{"http://" + testHost + "/path", HTTPViaProxy, "proxy.internal:3128"},
		{"https://internal.example.test", Direct, ""},
		{"http://localhost:8080", Direct, ""},
	}
	for _, tt := range tests {
		t.Run(tt.dst, func(t *testing.T) {
			mode, proxy, err := c.ModeFor(mustURL(t, tt.dst))
			if err != nil {
				t.Fatal(err)
			}
			if mode != tt.wantMode {
				t.Errorf("expected %s, got %s", tt.wantMode, mode)
			}
			if (proxy == nil && tt.wantProxy != "") || (proxy != nil && proxy.Host != tt.wantProxy) {
				t.Errorf("expected proxy %q, got %v", tt.wantProxy, proxy)
			}
		})
	}
}

func TestModeFor_NoProxyConfigured(t *testing.T) {
	c := newConnector(t, Config{})
	if mode, _, _ := c.ModeFor(mustURL(t, "https://"+testHost)); mode != Direct {
		t.Errorf("expected direct, got %s", mode)
	}
}

func TestModeFor_FromEnvironment(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://env-proxy.test:8080")
	t.Setenv("NO_PROXY", "")
	c := newConnector(t, Config{Proxy: ProxyConfig{FromEnvironment: true}})
	mode, proxy, err := c.ModeFor(mustURL(t, "https://"+testHost))
	if err != nil || mode != HTTPSViaProxy || proxy.Host != "env-proxy.test:8080" {
		t.Errorf("expected env proxy, got %s %v %v", mode, proxy, err)
	}
}

func TestMode_String(t *testing.T) {
	if Direct.String() != "direct" || HTTPSViaProxy.String() != "https via proxy" || Mode(9).String() != "Mode(9)" {
		t.Error("unexpected mode names")
	}
}

func TestConnect_Direct(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	upstream := newTLSUpstream(t, certs)
	c := newConnector(t, Config{TLS: &security.TLSConfig{CAFile: certs.CAFile}})

	conn, mode, err := c.Connect(context.Background(), mustURL(t, upstream.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	if mode != Direct {
		t.Errorf("expected direct, got %s", mode)
	}
	assertHTTPGet(t, conn, "secure")
}

func TestConnect_MutualTLS(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t)
	client := certs.CA().Issue(t)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) == 0 {
			http.Error(w, "no client cert", http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "secure")
	}))
	srv.TLS = certs.MutualServerConfig()
	srv.StartTLS()
	t.Cleanup(srv.Close)

	c := newConnector(t, Config{TLS: &security.TLSConfig{
		CAFile:   certs.CAFile,
		CertFile: client.CertFile,
		KeyFile:  client.KeyFile,
	}})
	conn, _, err := c.Connect(context.Background(), mustURL(t, srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	assertHTTPGet(t, conn, "secure")
}

func TestConnect_HTTPSViaProxyTunnels(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t, testHost)
	upstream := newTLSUpstream(t, certs)
	proxy := newFakeProxy(t, upstream.Listener.Addr().String(), http.StatusOK)

	proxyURL := strings.Replace(proxy.URL(), "http://", "http://user:secret@", 1)
	c := newConnector(t, Config{
		TLS:   &security.TLSConfig{CAPEM: certs.CAPEM()},
		Proxy: ProxyConfig{HTTPSProxy: proxyURL},
	})

	conn, mode, err := c.Connect(context.Background(), mustURL(t, "https://"+testHost))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	if mode != HTTPSViaProxy {
		t.Errorf("expected https via proxy, got %s", mode)
	}
	assertHTTPGet(t, conn, "secure")

	reqs, first := proxy.seen()
	if len(reqs) != 1 {
		t.Fatalf("expected one proxy request, got %d", len(reqs))
	}
	if first[0] != "CONNECT " {
		t.Errorf("expected CONNECT before any TLS bytes, got %q", first[0])
	}
	if reqs[0].Host != testHost+":443" {
		t.Errorf("expected tunnel to %s:443, got %s", testHost, reqs[0].Host)
	}
	if got := reqs[0].Header.Get("Proxy-Authorization"); got != "Basic dXNlcjpzZWNyZXQ=" {
		t.Errorf("unexpected proxy authorization %q", got)
	}
}

func TestConnect_HTTPViaProxy(t *testing.T) {
	proxy := newFakeProxy(t, "", http.StatusOK)
	c := newConnector(t, Config{Proxy: ProxyConfig{HTTPProxy: proxy.URL()}})

	conn, mode, err := c.Connect(context.Background(), mustURL(t, "http://"+testHost+"/items"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = conn.Close() }()
	if mode != HTTPViaProxy {
		t.Errorf("expected http via proxy, got %s", mode)
	}
	assertHTTPGet(t, conn, "proxied")
	if _, first := proxy.seen(); len(first) != 1 || strings.HasPrefix(first[0], "CONNECT") {
		t.Errorf("expected a plain request to the proxy, got %v", first)
	}
}

func TestConnect_ErrorsNameTheFailedStep(t *testing.T) {
	certs := tlstest.GenerateTLSCerts(t, testHost)
	upstream := newTLSUpstream(t, certs)
	other := tlstest.GenerateTLSCerts(t)

	closed, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closedAddr := closed.Addr().String()
	_ = closed.Close()

	refusing := newFakeProxy(t, upstream.Listener.Addr().String(), http.StatusProxyAuthRequired)
	tunneling := newFakeProxy(t, upstream.Listener.Addr().String(), http.StatusOK)

	tests := []struct {
		name   string
		cfg    Config
		dst    string
		wantOp string
	}{
		{"connect", Config{}, "https://" + closedAddr, OpConnect},
		{"proxy connect", Config{Proxy: ProxyConfig{HTTPSProxy: "http://" + closedAddr}}, "https://" + testHost, OpConnect},
		{"proxy refuses", Config{Proxy: ProxyConfig{HTTPSProxy: refusing.URL()}}, "https://" + testHost, OpProxyTunnel},
		{"untrusted cert", Config{
			TLS:   &security.TLSConfig{CAFile: other.CAFile},
			Proxy: ProxyConfig{HTTPSProxy: tunneling.URL()},
		}, "https://" + testHost, OpTLSHandshake},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newConnector(t, tt.cfg)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _, err := c.Connect(ctx, mustURL(t, tt.dst))
			var connErr *Error
			if !stderrors.As(err, &connErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if connErr.Op != tt.wantOp {
				t.Errorf("expected op %q, got %q (%v)", tt.wantOp, connErr.Op, err)
			}
		})
	}
}

func TestConnect_ProxyRefusalCarriesStatus(t *testing.T) {
	refusing := newFakeProxy(t, "", http.StatusProxyAuthRequired)
	c := newConnector(t, Config{Proxy: ProxyConfig{HTTPSProxy: refusing.URL()}})

	_, _, err := c.Connect(context.Background(), mustURL(t, "https://"+testHost))
	var status *ProxyStatusError
	if !stderrors.As(err, &status) || status.StatusCode != http.StatusProxyAuthRequired {
		t.Errorf("expected 407 status error, got %v", err)
	}
}

func TestDefaultTLSConfigIsShared(t *testing.T) {
	a := newConnector(t, Config{})
	b := newConnector(t, Config{Proxy: ProxyConfig{HTTPProxy: "http://p.test:1"}})
	if a.TLSConfig() != b.TLSConfig() {
		t.Error("expected connectors with default trust to share one TLS config")
	}
	custom := newConnector(t, Config{TLS: &security.TLSConfig{SkipVerify: true}})
	if custom.TLSConfig() == a.TLSConfig() {
		t.Error("expected a custom trust store to build its own config")
	}
	if clone := a.Clone(); clone.TLSConfig() != a.TLSConfig() {
		t.Error("expected clone to share the TLS config")
	}
}

func TestHandshakeConfigCachedPerHost(t *testing.T) {
	c := newConnector(t, Config{})
	a := c.configFor("a.example.test")
	if a.ServerName != "a.example.test" {
		t.Errorf("unexpected server name %q", a.ServerName)
	}
	if again := c.configFor("a.example.test"); again != a {
		t.Error("expected the per-host config to be reused")
	}
	if b := c.configFor("b.example.test"); b == a || b.ServerName != "b.example.test" {
		t.Errorf("expected a separate config for another host, got %q", b.ServerName)
	}
	if c.TLSConfig().ServerName != "" {
		t.Error("shared config must not be modified")
	}

	pinned := newConnector(t, Config{TLS: &security.TLSConfig{ServerName: "pinned.test"}})
	if cfg := pinned.configFor("a.example.test"); cfg != pinned.TLSConfig() {
		t.Error("expected a pinned server name to use the shared config")
	}
}

func TestNew_InvalidTLS(t *testing.T) {
	if _, err := New(Config{TLS: &security.TLSConfig{CertFile: "only-cert.pem"}}); err == nil {
		t.Error("expected error")
	}
}

func TestHTTPProxy_OnlyForPlainHTTP(t *testing.T) {
	c := newConnector(t, Config{Proxy: ProxyConfig{HTTPProxy: "http://p.test:1", HTTPSProxy: "http://p.test:2"}})
	if p, _ := c.HTTPProxy(mustURL(t, "http://"+testHost)); p == nil || p.Host != "p.test:1" {
		t.Errorf("expected http proxy, got %v", p)
	}
	if p, _ := c.HTTPProxy(mustURL(t, "https://"+testHost)); p != nil {
		t.Errorf("https destinations are tunneled by DialTLSContext, got %v", p)
	}
}

func TestError_Unwrap(t *testing.T) {
	inner := stderrors.New("refused")
	err := &Error{Op: OpConnect, Addr: "h:1", Err: inner}
	if !stderrors.Is(err, inner) || err.Error() != "connector: connect h:1: refused" {
		t.Errorf("unexpected error %v", err)
	}
}

func assertHTTPGet(t *testing.T, conn net.Conn, want string) {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	req, _ := http.NewRequest(http.MethodGet, "http://"+testHost+"/", nil)
	req.Close = true
	if err := req.Write(conn); err != nil {
		t.Fatal(err)
	}
	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != want {
		t.Errorf("expected %q, got %q", want, body)
	}
}
