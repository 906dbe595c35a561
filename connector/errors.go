package connector

import "fmt"

// Operations reported in Error.Op.
const (
	OpConnect      = "connect"
	OpProxyTunnel  = "proxy tunnel"
	OpTLSHandshake = "tls handshake"
)

// Error is a connection failure tagged with the step that failed.
type Error struct {
	Op   string
	Addr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("connector: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ProxyStatusError is returned when the proxy answers CONNECT with a
// non-2xx status.
type ProxyStatusError struct {
	StatusCode int
	Status     string
}

func (e *ProxyStatusError) Error() string {
	return fmt.Sprintf("proxy refused CONNECT: %s", e.Status)
}
