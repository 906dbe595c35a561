package sdkbody

import "net/http"

// Callback is a side-channel consumer of body data, used for checksums and
// progress reporting without buffering the payload.
//
// Update is called with every chunk, Trailers once at end of stream. An error
// from either fails the poll that triggered it. MakeNew returns a fresh
// callback in its initial state for a cloned body.
type Callback interface {
	Update(chunk []byte) error
	Trailers() (http.Header, error)
	MakeNew() Callback
}

// ProgressFunc is called with the number of bytes seen so far.
type ProgressFunc func(total int64)

// Progress returns a callback reporting cumulative byte counts to fn.
func Progress(fn ProgressFunc) Callback {
	return &progress{fn: fn}
}

type progress struct {
	fn    ProgressFunc
	total int64
}

func (p *progress) Update(chunk []byte) error {
	p.total += int64(len(chunk))
	p.fn(p.total)
	return nil
}

func (p *progress) Trailers() (http.Header, error) { return nil, nil }

func (p *progress) MakeNew() Callback { return &progress{fn: p.fn} }

// TrailerDeclarer is implemented by callbacks that know the names of the
// trailers they produce before the body is sent. HTTP/1.1 transports must
// announce trailer names up front.
type TrailerDeclarer interface {
	TrailerNames() []string
}
