package throughput

import (
	"context"
	"errors"
	"io"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/sdkbody"
)

type chunk struct {
	data []byte
	err  error
}

// Body is an sdkbody.Stream enforcing a minimum throughput on inner.
//
// The inner body is polled on a helper goroutine that only hands chunks back
// over a channel; the sample log and the stall timer belong to the goroutine
// calling Next. Body is not safe for concurrent polling.
type Body struct {
	inner *sdkbody.Body
	opts  Options
	log   *sampleLog

	chunks  chan chunk
	pending bool
	cancel  context.CancelFunc
	timer   *clock.Timer

	err  error
	done bool
}

// NewBody wraps inner.
func NewBody(inner *sdkbody.Body, opts Options) *Body {
	opts = opts.withDefaults()
	return &Body{
		inner:  inner,
		opts:   opts,
		log:    newSampleLog(opts.Samples),
		chunks: make(chan chunk, 1),
	}
}

// Wrap returns inner as a body that fails when its throughput drops below
// opts.MinimumThroughput. The wrapped body cannot be cloned.
func Wrap(inner *sdkbody.Body, opts Options) *sdkbody.Body {
	return sdkbody.FromStream(NewBody(inner, opts))
}

// ContentLength reports the length of the inner body.
func (b *Body) ContentLength() (int64, bool) {
	return b.inner.ContentLength()
}

// Next implements sdkbody.Stream.
func (b *Body) Next(ctx context.Context) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.done {
		return nil, io.EOF
	}

	now := b.opts.Clock.Now()
	if b.log.empty() {
		b.log.push(sample{at: now})
	}
	b.poll(ctx)
	if b.timer == nil {
		b.timer = b.opts.Clock.Timer(b.opts.CheckInterval)
	}

	for {
		select {
		case c := <-b.chunks:
			b.pending = false
			b.cancel()
			switch {
			case c.err == nil:
				b.log.push(sample{at: b.opts.Clock.Now(), bytes: len(c.data)})
				if err := b.check(); err != nil {
					return nil, err
				}
				return c.data, nil
			case errors.Is(c.err, io.EOF):
				b.done = true
				b.stop()
				return nil, io.EOF
			default:
				b.stop()
				return nil, c.err
			}
		case <-b.timer.C:
			b.timer.Reset(b.opts.CheckInterval)
			b.log.push(sample{at: b.opts.Clock.Now()})
			if err := b.check(); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// poll starts an inner read unless one is already in flight.
func (b *Body) poll(ctx context.Context) {
	if b.pending {
		return
	}
	b.pending = true
	pollCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	go func() {
		data, err := b.inner.Next(pollCtx)
		b.chunks <- chunk{data: data, err: err}
	}()
}

func (b *Body) check() error {
	actual, ok := b.log.rate()
	if !ok || actual.BytesPerSecond() >= b.opts.MinimumThroughput.BytesPerSecond() {
		return nil
	}
	b.err = &BelowMinimumError{Expected: b.opts.MinimumThroughput, Actual: actual}
	logger.Get("throughput").Warn("body throughput below minimum", logger.Fields(
		logger.FieldThroughput, actual.String(),
		"minimum", b.opts.MinimumThroughput.String(),
	))
	b.stop()
	return b.err
}

func (b *Body) stop() {
	if b.timer != nil {
		b.timer.Stop()
	}
	if b.cancel != nil {
		b.cancel()
	}
}

// Close stops the stall timer and any in-flight read and closes inner.
func (b *Body) Close() error {
	b.stop()
	return b.inner.Close()
}
