package checksum

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/kbukum/sdkcore/sdkbody"
)

// Callback returns a body callback that computes alg over the payload and
// emits it as a trailer at end of stream.
func Callback(alg Algorithm) sdkbody.Callback {
	return &trailerCallback{sum: alg.New()}
}

type trailerCallback struct {
	sum Checksum
}

func (c *trailerCallback) Update(chunk []byte) error {
	c.sum.Update(chunk)
	return nil
}

func (c *trailerCallback) Trailers() (http.Header, error) {
	h := http.Header{}
	h.Set(c.sum.HeaderName(), c.sum.HeaderValue())
	return h, nil
}

func (c *trailerCallback) MakeNew() sdkbody.Callback {
	return Callback(c.sum.Algorithm())
}

func (c *trailerCallback) TrailerNames() []string {
	return []string{c.sum.HeaderName()}
}

// MismatchError reports a response checksum that did not match the payload.
type MismatchError struct {
	Algorithm Algorithm
	Expected  string
	Actual    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: %s expected %s but computed %s", e.Algorithm, e.Expected, e.Actual)
}

// ValidatingBody wraps a response body and fails the final poll with a
// *MismatchError when the computed checksum differs from expected (base64).
func ValidatingBody(body *sdkbody.Body, alg Algorithm, expected string) *sdkbody.Body {
	return body.WithCallback(&validator{sum: alg.New(), expected: expected})
}

type validator struct {
	sum      Checksum
	expected string
}

func (v *validator) Update(chunk []byte) error {
	v.sum.Update(chunk)
	return nil
}

func (v *validator) Trailers() (http.Header, error) {
	if actual := v.sum.HeaderValue(); actual != v.expected {
		return nil, &MismatchError{Algorithm: v.sum.Algorithm(), Expected: v.expected, Actual: actual}
	}
	return nil, nil
}

func (v *validator) MakeNew() sdkbody.Callback {
	return &validator{sum: v.sum.Algorithm().New(), expected: v.expected}
}

// AwsChunkedEncodedLength returns the encoded length of an aws-chunked body
// carrying payloadLen bytes in a single chunk followed by an alg trailer.
func AwsChunkedEncodedLength(payloadLen int64, alg Algorithm) int64 {
	var n int64
	if payloadLen > 0 {
		n += int64(len(strconv.FormatInt(payloadLen, 16))) + 2 + payloadLen + 2
	}
	// "0\r\n" + trailer + "\r\n" + final "\r\n"
	n += 3 + int64(alg.TrailerSize()) + 2 + 2
	return n
}

// AwsChunkedBody frames body in aws-chunked encoding with an alg trailer.
// The body length must be known; the result reports its encoded length and
// is retryable when body is.
func AwsChunkedBody(body *sdkbody.Body, alg Algorithm) (*sdkbody.Body, error) {
	n, ok := body.ContentLength()
	if !ok {
		return nil, errors.New("checksum: aws-chunked encoding requires a body of known length")
	}
	build := func(inner *sdkbody.Body) *sdkbody.Body {
		return sdkbody.FromStream(&chunkedStream{
			inner:  inner,
			length: n,
			sum:    alg.New(),
			total:  AwsChunkedEncodedLength(n, alg),
		})
	}
	if !body.IsRetryable() {
		return build(body), nil
	}
	return sdkbody.Retryable(func() *sdkbody.Body {
		inner, ok := body.TryClone()
		if !ok {
			return sdkbody.FromStream(sdkbody.StreamFunc(func(context.Context) ([]byte, error) {
				return nil, errors.New("checksum: aws-chunked source body is no longer cloneable")
			}))
		}
		return build(inner)
	}), nil
}

type chunkedStream struct {
	inner   *sdkbody.Body
	length  int64
	sum     Checksum
	total   int64
	started bool
	read    int64
	done    bool
}

func (s *chunkedStream) ContentLength() (int64, bool) { return s.total, true }

func (s *chunkedStream) Next(ctx context.Context) ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	var out bytes.Buffer
	if !s.started && s.length > 0 {
		s.started = true
		out.WriteString(strconv.FormatInt(s.length, 16))
		out.WriteString("\r\n")
	}
	chunk, err := s.inner.Next(ctx)
	switch {
	case err == nil:
		s.read += int64(len(chunk))
		if s.read > s.length {
			return nil, fmt.Errorf("checksum: body produced %d bytes, declared %d", s.read, s.length)
		}
		s.sum.Update(chunk)
		out.Write(chunk)
		return out.Bytes(), nil
	case errors.Is(err, io.EOF):
		if s.read != s.length {
			return nil, fmt.Errorf("checksum: body produced %d bytes, declared %d", s.read, s.length)
		}
		s.done = true
		if s.length > 0 {
			out.WriteString("\r\n")
		}
		out.WriteString("0\r\n")
		out.WriteString(s.sum.HeaderName())
		out.WriteString(":")
		out.WriteString(s.sum.HeaderValue())
		out.WriteString("\r\n\r\n")
		return out.Bytes(), nil
	default:
		return nil, err
	}
}
