package errors

// Kind classifies where an operation failed.
type Kind string

// Fail-fast and pre-dispatch failures (never retried)
const (
	// KindConfiguration indicates a required component is missing from the config bag.
	KindConfiguration Kind = "CONFIGURATION"
	// KindConstructionFailure indicates the request could not be serialized,
	// signed or have its endpoint resolved.
	KindConstructionFailure Kind = "CONSTRUCTION_FAILURE"
	// KindInterceptor indicates an interceptor hook failed.
	KindInterceptor Kind = "INTERCEPTOR_ERROR"
)

// Transport failures
const (
	// KindTimeout indicates an operation or attempt timeout elapsed.
	KindTimeout Kind = "TIMEOUT"
	// KindDispatchFailure indicates the connection failed to send the request
	// or receive a response (connect, TLS, proxy tunnel, I/O).
	KindDispatchFailure Kind = "DISPATCH_FAILURE"
)

// Response failures
const (
	// KindResponseError indicates a response was received but could not be
	// read or deserialized. Body failures (stalled stream, callback failure,
	// taken body) surface with this kind.
	KindResponseError Kind = "RESPONSE_ERROR"
	// KindServiceError indicates the service returned an error response.
	KindServiceError Kind = "SERVICE_ERROR"
)

var retryableKinds = map[Kind]bool{
	KindTimeout:         true,
	KindDispatchFailure: true,
	KindResponseError:   true,
	KindServiceError:    false,
	KindConfiguration:   false,
}

// IsRetryableKind reports whether failures of this kind are retryable by
// default, before any service-specific classification.
func IsRetryableKind(kind Kind) bool {
	return retryableKinds[kind]
}
