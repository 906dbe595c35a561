package checksum

import (
	"context"
	"strconv"
	"strings"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/orchestrator"
)

// Headers set on aws-chunked requests.
const (
	HeaderContentEncoding      = "Content-Encoding"
	HeaderTrailer              = "x-amz-trailer"
	HeaderDecodedContentLength = "x-amz-decoded-content-length"
	HeaderContentLength        = "Content-Length"
	EncodingAwsChunked         = "aws-chunked"
)

// Config selects request checksums and response validation.
type Config struct {
	// RequestAlgorithm is the algorithm for request payloads; empty disables.
	RequestAlgorithm string `yaml:"request_algorithm" mapstructure:"request_algorithm" validate:"omitempty,oneof=crc32 crc32c sha1 sha256 md5"`
	// ValidateResponse verifies response payloads carrying a checksum header.
	ValidateResponse bool `yaml:"validate_response" mapstructure:"validate_response"`
}

// Interceptor adds request checksums and validates response checksums.
//
// In-memory request bodies get the checksum as a header. Streaming bodies of
// known length are re-framed as aws-chunked with the checksum as a trailer;
// streams of unknown length are sent unchanged.
type Interceptor struct {
	Algorithm        Algorithm
	ValidateResponse bool
}

// NewInterceptor builds an interceptor from cfg.
func NewInterceptor(cfg Config) (*Interceptor, error) {
	i := &Interceptor{ValidateResponse: cfg.ValidateResponse}
	if cfg.RequestAlgorithm != "" {
		alg, err := ParseAlgorithm(cfg.RequestAlgorithm)
		if err != nil {
			return nil, err
		}
		i.Algorithm = alg
	}
	return i, nil
}

// Name implements orchestrator.Interceptor.
func (i *Interceptor) Name() string { return "checksum" }

// ModifyBeforeRetryLoop computes the request checksum once so every retry
// sends the same framing.
func (i *Interceptor) ModifyBeforeRetryLoop(_ context.Context, ictx *orchestrator.InterceptorContext, _ *configbag.Bag) error {
	if i.Algorithm == "" {
		return nil
	}
	req := ictx.Request()
	if hasChecksumHeader(req.Header.Get) {
		return nil
	}

	if data, ok := req.Body.Bytes(); ok {
		req.Header.Set(i.Algorithm.HeaderName(), Sum(i.Algorithm, data))
		return nil
	}
	n, ok := req.Body.ContentLength()
	if !ok {
		return nil
	}
	body, err := AwsChunkedBody(req.Body, i.Algorithm)
	if err != nil {
		return err
	}
	req.Body = body
	encoded, _ := body.ContentLength()
	req.Header.Add(HeaderContentEncoding, EncodingAwsChunked)
	req.Header.Set(HeaderTrailer, i.Algorithm.HeaderName())
	req.Header.Set(HeaderDecodedContentLength, strconv.FormatInt(n, 10))
	req.Header.Set(HeaderContentLength, strconv.FormatInt(encoded, 10))
	return nil
}

// ModifyBeforeDeserialization wraps the response body in a validator for the
// highest priority checksum header present.
func (i *Interceptor) ModifyBeforeDeserialization(_ context.Context, ictx *orchestrator.InterceptorContext, _ *configbag.Bag) error {
	if !i.ValidateResponse {
		return nil
	}
	resp := ictx.Response()
	for _, alg := range Algorithms {
		expected := resp.Header.Get(alg.HeaderName())
		if expected == "" {
			continue
		}
		// Composite checksums of multipart objects ("<sum>-<parts>") cover
		// part checksums, not the payload.
		if isComposite(expected) {
			return nil
		}
		resp.Body = ValidatingBody(resp.Body, alg, expected)
		return nil
	}
	return nil
}

func hasChecksumHeader(get func(string) string) bool {
	for _, alg := range Algorithms {
		if get(alg.HeaderName()) != "" {
			return true
		}
	}
	return false
}

func isComposite(value string) bool {
	i := strings.LastIndexByte(value, '-')
	if i < 0 {
		return false
	}
	_, err := strconv.Atoi(value[i+1:])
	return err == nil
}
