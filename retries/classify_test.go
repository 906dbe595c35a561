package retries

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kbukum/sdkcore/connector"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/httpclient"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/throughput"
)

type hinted bool

func (h hinted) Error() string        { return "hinted" }
func (h hinted) RetryableError() bool { return bool(h) }

func service(code string, status int) error {
	return errors.ServiceError(&errors.GenericError{Code: code}).WithStatus(status)
}

func TestClassify(t *testing.T) {
	tlsErr := httpclient.NewConnectionError(&connector.Error{Op: connector.OpTLSHandshake, Addr: "h", Err: io.EOF})

	tests := []struct {
		name string
		err  error
		resp *sdkhttp.Response
		want Kind
	}{
		{"success", nil, nil, NotRetryable},
		{"hint retryable", errors.ServiceError(hinted(true)), nil, Transient},
		{"hint not retryable", errors.DispatchFailure(hinted(false)), nil, NotRetryable},
		{"throttling code", service("SlowDown", 400), nil, Throttling},
		{"transient code", service("RequestTimeout", 400), nil, Transient},
		{"dispatch failure", errors.DispatchFailure(io.ErrUnexpectedEOF), nil, Transient},
		{"tls handshake", errors.DispatchFailure(tlsErr), nil, NotRetryable},
		{"timeout", errors.Timeout("operation attempt", time.Second, context.DeadlineExceeded), nil, Transient},
		{"stalled body", errors.ResponseError(&throughput.BelowMinimumError{}), nil, Transient},
		{"500", service("InternalFailure", 500), nil, ServerError},
		{"501", service("NotImplemented", 501), nil, NotRetryable},
		{"503", service("Unavailable", 503), nil, Throttling},
		{"429 from response", service("Busy", 0), sdkhttp.NewResponse(http.StatusTooManyRequests, nil), Throttling},
		{"408", service("Slow", 408), nil, Transient},
		{"400", service("ValidationException", 400), nil, NotRetryable},
		{"configuration", errors.Configuration("missing"), nil, NotRetryable},
		{"construction", errors.ConstructionFailure(fmt.Errorf("bad")), nil, NotRetryable},
		{"foreign error", fmt.Errorf("plain"), nil, NotRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err, tt.resp); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	for k, want := range map[Kind]string{
		NotRetryable: "not_retryable",
		Transient:    "transient",
		Throttling:   "throttling",
		ServerError:  "server_error",
	} {
		if k.String() != want {
			t.Errorf("got %q, want %q", k.String(), want)
		}
		if k.Retryable() == (k == NotRetryable) {
			t.Errorf("%s: unexpected Retryable()", k)
		}
	}
}
