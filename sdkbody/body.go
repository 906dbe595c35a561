// Package sdkbody implements the streaming request and response payload used
// throughout operation orchestration.
//
// A Body is in one of three states: a fixed in-memory buffer, an external
// stream, or taken. Bodies are polled chunk by chunk with Next; attached
// callbacks observe every chunk and produce trailers at end of stream.
package sdkbody

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrBodyTaken is returned when polling a body whose contents were moved
// out with Take.
var ErrBodyTaken = errors.New("sdkbody: body was taken and cannot be polled")

// Stream is a pollable producer of byte chunks. Next returns io.EOF once the
// stream is exhausted.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
}

// StreamFunc adapts a function to a Stream.
type StreamFunc func(ctx context.Context) ([]byte, error)

// Next implements Stream.
func (f StreamFunc) Next(ctx context.Context) ([]byte, error) { return f(ctx) }

type state int

const (
	stateOnce state = iota
	stateStream
	stateTaken
)

// Body is a streaming payload. A Body is not safe for concurrent polling.
type Body struct {
	state state

	data []byte
	sent bool

	stream Stream
	length int64

	rebuild   func() *Body
	callbacks []Callback
	trailers  http.Header
	ended     bool
	err       error
}

// Empty returns a body with no content.
func Empty() *Body {
	return FromBytes(nil)
}

// FromBytes returns a retryable body over data. The slice must not be
// modified afterwards.
func FromBytes(data []byte) *Body {
	b := &Body{state: stateOnce, data: data, length: int64(len(data))}
	b.rebuild = func() *Body { return FromBytes(data) }
	return b
}

// FromString returns a retryable body over s.
func FromString(s string) *Body {
	return FromBytes([]byte(s))
}

// FromStream returns a body backed by an external stream. The body cannot be
// cloned; use Retryable for streams that can be recreated. If s reports its
// length through ContentLength() (int64, bool), the body does too.
func FromStream(s Stream) *Body {
	b := &Body{state: stateStream, stream: s, length: -1}
	if sized, ok := s.(interface{ ContentLength() (int64, bool) }); ok {
		if n, known := sized.ContentLength(); known {
			b.length = n
		}
	}
	return b
}

// FromReader returns a non-retryable body reading from r.
func FromReader(r io.Reader) *Body {
	return FromStream(newReaderStream(r))
}

// Retryable marks a body as rebuildable: build is called once now and again
// for every clone.
func Retryable(build func() *Body) *Body {
	b := build()
	b.rebuild = build
	return b
}

// WithCallback attaches a callback that observes every chunk and contributes
// trailers at end of stream. Callbacks run in attachment order.
func (b *Body) WithCallback(cb Callback) *Body {
	b.callbacks = append(b.callbacks, cb)
	return b
}

// HasCallbacks reports whether any callback is attached.
func (b *Body) HasCallbacks() bool {
	return len(b.callbacks) > 0
}

// TrailerNames returns the trailer names declared by the attached callbacks,
// in attachment order.
func (b *Body) TrailerNames() []string {
	var names []string
	for _, cb := range b.callbacks {
		if d, ok := cb.(TrailerDeclarer); ok {
			names = append(names, d.TrailerNames()...)
		}
	}
	return names
}

// SetContentLength records the length of a streaming body.
func (b *Body) SetContentLength(n int64) *Body {
	if b.state == stateStream {
		b.length = n
	}
	return b
}

// ContentLength returns the total body size when known.
func (b *Body) ContentLength() (int64, bool) {
	switch b.state {
	case stateOnce:
		return int64(len(b.data)), true
	case stateStream:
		return b.length, b.length >= 0
	default:
		return 0, false
	}
}

// Bytes returns the contents of an in-memory body.
func (b *Body) Bytes() ([]byte, bool) {
	if b.state != stateOnce {
		return nil, false
	}
	return b.data, true
}

// IsRetryable reports whether TryClone would succeed.
func (b *Body) IsRetryable() bool {
	return b.state != stateTaken && b.rebuild != nil
}

// IsTaken reports whether the body contents were moved out.
func (b *Body) IsTaken() bool {
	return b.state == stateTaken
}

// Next returns the next non-empty chunk. It returns io.EOF at end of stream
// and ErrBodyTaken when the body was taken.
func (b *Body) Next(ctx context.Context) ([]byte, error) {
	if b.state == stateTaken {
		return nil, ErrBodyTaken
	}
	if b.err != nil {
		return nil, b.err
	}
	if b.ended {
		return nil, io.EOF
	}

	switch b.state {
	case stateOnce:
		if b.sent || len(b.data) == 0 {
			return nil, b.finish()
		}
		b.sent = true
		if err := b.update(b.data); err != nil {
			return nil, err
		}
		return b.data, nil

	default:
		for {
			chunk, err := b.stream.Next(ctx)
			if len(chunk) > 0 {
				if uerr := b.update(chunk); uerr != nil {
					return nil, uerr
				}
				return chunk, nil
			}
			if errors.Is(err, io.EOF) {
				return nil, b.finish()
			}
			if err != nil {
				return nil, err
			}
		}
	}
}

// update forwards chunk to every callback. A callback failure is sticky.
func (b *Body) update(chunk []byte) error {
	for _, cb := range b.callbacks {
		if err := cb.Update(chunk); err != nil {
			b.err = err
			return err
		}
	}
	return nil
}

// finish runs the trailers phase exactly once and returns io.EOF on success.
func (b *Body) finish() error {
	b.ended = true
	for _, cb := range b.callbacks {
		h, err := cb.Trailers()
		if err != nil {
			b.err = err
			return err
		}
		if len(h) == 0 {
			continue
		}
		if b.trailers == nil {
			b.trailers = make(http.Header, len(h))
		}
		for k, vs := range h {
			for _, v := range vs {
				b.trailers.Add(k, v)
			}
		}
	}
	return io.EOF
}

// Trailers returns the trailers produced by callbacks. It is nil until the
// body reached end of stream.
func (b *Body) Trailers() http.Header {
	return b.trailers
}

// TryClone returns a fresh copy of the body that replays its full content.
// It fails when the body has no rebuild function or was taken.
func (b *Body) TryClone() (*Body, bool) {
	if !b.IsRetryable() {
		return nil, false
	}
	nb := b.rebuild()
	if nb == nil {
		return nil, false
	}
	nb.rebuild = b.rebuild
	for _, cb := range b.callbacks {
		nb.callbacks = append(nb.callbacks, cb.MakeNew())
	}
	return nb, true
}

// Take moves the contents into a new body and leaves b taken.
func (b *Body) Take() *Body {
	nb := &Body{}
	*nb = *b
	*b = Body{state: stateTaken, length: -1}
	return nb
}

// Close releases the underlying stream when it implements io.Closer.
func (b *Body) Close() error {
	if b.state != stateStream {
		return nil
	}
	b.ended = true
	if c, ok := b.stream.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// String implements fmt.Stringer.
func (b *Body) String() string {
	switch b.state {
	case stateOnce:
		return fmt.Sprintf("SdkBody{once, %d bytes, retryable=%t}", len(b.data), b.rebuild != nil)
	case stateStream:
		return fmt.Sprintf("SdkBody{stream, length=%d, retryable=%t}", b.length, b.rebuild != nil)
	default:
		return "SdkBody{taken}"
	}
}
