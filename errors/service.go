package errors

import (
	stderrors "errors"
	"fmt"
)

// GenericError is an unmodeled service error carrying only the code and
// message the service reported.
type GenericError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Extras    map[string]string `json:"extras,omitempty"`
}

// Error implements error.
func (e *GenericError) Error() string {
	var s string
	switch {
	case e.Code != "" && e.Message != "":
		s = fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Code != "":
		s = e.Code
	case e.Message != "":
		s = e.Message
	default:
		s = "unknown service error"
	}
	if e.RequestID != "" {
		s += fmt.Sprintf(" (request id: %s)", e.RequestID)
	}
	return s
}

// ErrorCode returns the service error code.
func (e *GenericError) ErrorCode() string { return e.Code }

// ErrorMessage returns the service error message.
func (e *GenericError) ErrorMessage() string { return e.Message }

// Coder is implemented by errors that expose a service error code.
type Coder interface {
	ErrorCode() string
}

// ErrorCode returns the first service error code found in err's chain.
func ErrorCode(err error) string {
	var c Coder
	if stderrors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// UnhandledError is the catch-all variant of an operation error: the service
// returned something the operation does not model.
type UnhandledError struct {
	Source error
}

// Error implements error.
func (e *UnhandledError) Error() string {
	if e.Source == nil {
		return "unhandled error"
	}
	return "unhandled error: " + e.Source.Error()
}

// Unwrap returns the source error.
func (e *UnhandledError) Unwrap() error { return e.Source }

// ErrorCode forwards the code of the source when it has one.
func (e *UnhandledError) ErrorCode() string { return ErrorCode(e.Source) }

// Unhandled converts err into an UnhandledError. Errors that already are
// unhandled are returned unchanged.
func Unhandled(err error) *UnhandledError {
	var u *UnhandledError
	if stderrors.As(err, &u) {
		return u
	}
	return &UnhandledError{Source: err}
}
