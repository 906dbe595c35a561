package sdkbody

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
)

// Aggregated is a fully read body.
type Aggregated struct {
	data     []byte
	trailers http.Header
}

// Bytes returns the aggregated content.
func (a *Aggregated) Bytes() []byte { return a.data }

// Trailers returns the trailers produced at end of stream.
func (a *Aggregated) Trailers() http.Header { return a.trailers }

// Len returns the number of aggregated bytes.
func (a *Aggregated) Len() int { return len(a.data) }

// Collect reads b to the end. Body errors are returned unchanged so callers
// can match them with errors.Is and errors.As.
func Collect(ctx context.Context, b *Body) (*Aggregated, error) {
	if data, ok := b.Bytes(); ok && b.callbacks == nil && !b.sent && !b.ended {
		b.sent, b.ended = true, true
		return &Aggregated{data: data}, nil
	}

	var buf bytes.Buffer
	if n, ok := b.ContentLength(); ok && n > 0 {
		buf.Grow(int(n))
	}
	for {
		chunk, err := b.Next(ctx)
		if errors.Is(err, io.EOF) {
			return &Aggregated{data: buf.Bytes(), trailers: b.Trailers()}, nil
		}
		if err != nil {
			return nil, err
		}
		buf.Write(chunk)
	}
}
