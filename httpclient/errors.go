package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/kbukum/sdkcore/connector"
)

// ErrorCode classifies HTTP client errors.
type ErrorCode int

const (
	// ErrCodeTimeout indicates a request or connection timeout.
	ErrCodeTimeout ErrorCode = iota
	// ErrCodeConnection indicates a connection failure (refused, DNS, reset).
	ErrCodeConnection
	// ErrCodeProxy indicates the proxy refused or broke the tunnel.
	ErrCodeProxy
	// ErrCodeTLS indicates a failed TLS handshake.
	ErrCodeTLS
	// ErrCodeAuth indicates an authentication/authorization failure (401/403).
	ErrCodeAuth
	// ErrCodeNotFound indicates the resource was not found (404).
	ErrCodeNotFound
	// ErrCodeThrottling indicates the service asked the client to slow down.
	ErrCodeThrottling
	// ErrCodeValidation indicates a client-side error (4xx).
	ErrCodeValidation
	// ErrCodeServer indicates a server-side error (5xx).
	ErrCodeServer
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeTimeout:
		return "timeout"
	case ErrCodeConnection:
		return "connection"
	case ErrCodeProxy:
		return "proxy"
	case ErrCodeTLS:
		return "tls"
	case ErrCodeAuth:
		return "auth"
	case ErrCodeNotFound:
		return "not_found"
	case ErrCodeThrottling:
		return "throttling"
	case ErrCodeValidation:
		return "validation"
	case ErrCodeServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is a classified transport or status error.
type Error struct {
	// StatusCode is the HTTP status code (0 for connection-level errors).
	StatusCode int
	// Code classifies the error.
	Code ErrorCode
	// Message describes the error.
	Message string
	// Retryable indicates whether the request can be sent again.
	Retryable bool
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("httpclient: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("httpclient: %s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(err error) *Error {
	return &Error{Code: ErrCodeTimeout, Message: err.Error(), Retryable: true, Err: err}
}

// NewConnectionError classifies a transport failure. Connector failures keep
// their step: proxy tunnel failures become ErrCodeProxy and handshake
// failures ErrCodeTLS. Neither is retryable when the peer gave a definite
// answer.
func NewConnectionError(err error) *Error {
	e := &Error{Code: ErrCodeConnection, Message: err.Error(), Retryable: true, Err: err}
	var connErr *connector.Error
	if errors.As(err, &connErr) {
		switch connErr.Op {
		case connector.OpProxyTunnel:
			e.Code = ErrCodeProxy
			var status *connector.ProxyStatusError
			e.Retryable = !errors.As(err, &status)
		case connector.OpTLSHandshake:
			e.Code = ErrCodeTLS
			e.Retryable = false
		}
	}
	return e
}

// classifyTransport turns a round-trip or body read error into an *Error.
func classifyTransport(ctx context.Context, err error) *Error {
	var netErr net.Error
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError(err)
	}
	return NewConnectionError(err)
}

// ClassifyStatusCode converts an HTTP status code into a typed error.
// Returns nil for 1xx, 2xx and 3xx status codes.
func ClassifyStatusCode(statusCode int) *Error {
	e := &Error{StatusCode: statusCode, Message: http.StatusText(statusCode)}
	switch {
	case statusCode < 400:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		e.Code = ErrCodeAuth
	case statusCode == http.StatusNotFound:
		e.Code = ErrCodeNotFound
	case statusCode == http.StatusTooManyRequests:
		e.Code, e.Retryable = ErrCodeThrottling, true
	case statusCode == http.StatusRequestTimeout:
		e.Code, e.Retryable = ErrCodeTimeout, true
	case statusCode < 500:
		e.Code = ErrCodeValidation
	case statusCode == http.StatusServiceUnavailable:
		e.Code, e.Retryable = ErrCodeThrottling, true
	case statusCode == http.StatusNotImplemented:
		e.Code = ErrCodeServer
	default:
		e.Code, e.Retryable = ErrCodeServer, true
	}
	return e
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool { return hasCode(err, ErrCodeTimeout) }

// IsConnection checks if an error is a connection error.
func IsConnection(err error) bool { return hasCode(err, ErrCodeConnection) }

// IsProxy checks if an error is a proxy tunnel error.
func IsProxy(err error) bool { return hasCode(err, ErrCodeProxy) }

// IsTLS checks if an error is a TLS handshake error.
func IsTLS(err error) bool { return hasCode(err, ErrCodeTLS) }

// IsThrottling checks if an error is a throttling error.
func IsThrottling(err error) bool { return hasCode(err, ErrCodeThrottling) }

// IsServerError checks if an error is a server error.
func IsServerError(err error) bool { return hasCode(err, ErrCodeServer) }

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
