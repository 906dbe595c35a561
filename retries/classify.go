package retries

import (
	stderrors "errors"

	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/httpclient"
	"github.com/kbukum/sdkcore/sdkhttp"
)

// Kind is the retry classification of a failed attempt.
type Kind int

const (
	// NotRetryable failures end the operation.
	NotRetryable Kind = iota
	// Transient failures are network or timeout errors worth sending again.
	Transient
	// Throttling failures mean the service asked the client to slow down.
	Throttling
	// ServerError failures are retryable 5xx responses.
	ServerError
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Throttling:
		return "throttling"
	case ServerError:
		return "server_error"
	default:
		return "not_retryable"
	}
}

// Retryable reports whether the kind allows a retry.
func (k Kind) Retryable() bool { return k != NotRetryable }

// RetryableError is implemented by errors that know whether they may be
// retried. The answer overrides every other rule.
type RetryableError interface {
	RetryableError() bool
}

var throttlingCodes = map[string]bool{
	"Throttling":                             true,
	"ThrottlingException":                    true,
	"ThrottledException":                     true,
	"RequestThrottledException":              true,
	"TooManyRequestsException":               true,
	"ProvisionedThroughputExceededException": true,
	"TransactionInProgressException":         true,
	"RequestLimitExceeded":                   true,
	"BandwidthLimitExceeded":                 true,
	"LimitExceededException":                 true,
	"RequestThrottled":                       true,
	"SlowDown":                               true,
	"PriorRequestNotComplete":                true,
	"EC2ThrottledException":                  true,
}

var transientCodes = map[string]bool{
	"RequestTimeout":          true,
	"RequestTimeoutException": true,
	"InternalError":           true,
}

// Classify decides whether the outcome of an attempt is worth retrying. err
// is the attempt's error and resp the response, if one was received.
func Classify(err error, resp *sdkhttp.Response) Kind {
	if err == nil {
		return NotRetryable
	}

	var hint RetryableError
	if stderrors.As(err, &hint) {
		if hint.RetryableError() {
			return Transient
		}
		return NotRetryable
	}

	code := errors.ErrorCode(err)
	switch {
	case throttlingCodes[code]:
		return Throttling
	case transientCodes[code]:
		return Transient
	}

	switch errors.KindOf(err) {
	case errors.KindTimeout, errors.KindDispatchFailure:
		var httpErr *httpclient.Error
		if stderrors.As(err, &httpErr) && !httpErr.Retryable {
			return NotRetryable
		}
		return Transient
	case errors.KindResponseError:
		return Transient
	case errors.KindServiceError:
		return classifyStatus(statusOf(err, resp))
	default:
		return NotRetryable
	}
}

func statusOf(err error, resp *sdkhttp.Response) int {
	if resp != nil {
		return resp.StatusCode
	}
	if e, ok := errors.AsSdkError(err); ok {
		return e.StatusCode
	}
	return 0
}

func classifyStatus(status int) Kind {
	e := httpclient.ClassifyStatusCode(status)
	if e == nil || !e.Retryable {
		return NotRetryable
	}
	switch e.Code {
	case httpclient.ErrCodeThrottling:
		return Throttling
	case httpclient.ErrCodeTimeout:
		return Transient
	default:
		return ServerError
	}
}
