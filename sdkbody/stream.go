package sdkbody

import (
	"context"
	"errors"
	"io"
)

const readChunkSize = 32 * 1024

// readerStream adapts an io.Reader to a Stream.
type readerStream struct {
	r   io.Reader
	buf []byte
	err error
}

func newReaderStream(r io.Reader) *readerStream {
	return &readerStream{r: r}
}

func (s *readerStream) Next(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.buf == nil {
		s.buf = make([]byte, readChunkSize)
	}
	n, err := s.r.Read(s.buf)
	if err != nil {
		s.err = err
	}
	if n > 0 {
		out := make([]byte, n)
		copy(out, s.buf[:n])
		return out, nil
	}
	return nil, err
}

func (s *readerStream) ContentLength() (int64, bool) {
	if l, ok := s.r.(interface{ Len() int }); ok {
		return int64(l.Len()), true
	}
	return 0, false
}

func (s *readerStream) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reader returns an io.ReadCloser over the remaining body content. The body
// must not be polled directly while the reader is in use.
func (b *Body) Reader(ctx context.Context) io.ReadCloser {
	return &bodyReader{ctx: ctx, body: b}
}

type bodyReader struct {
	ctx     context.Context
	body    *Body
	pending []byte
	err     error
}

func (r *bodyReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		chunk, err := r.body.Next(r.ctx)
		if err != nil {
			r.err = err
			continue
		}
		r.pending = chunk
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *bodyReader) Close() error {
	if r.err == nil {
		r.err = errors.New("sdkbody: read on closed body")
	}
	return r.body.Close()
}
