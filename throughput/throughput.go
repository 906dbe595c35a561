// Package throughput fails streaming bodies whose transfer rate stays below
// a configured floor, so stalled connections surface as errors instead of
// hanging forever.
//
// A wrapped body records a (time, bytes) sample on every chunk and on every
// tick of an internal timer. Once the sample log is full, the rolling rate
// over the log is compared with the floor. A body that fell below the floor
// stays failed.
package throughput

import (
	"fmt"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
)

// Default check settings.
const (
	DefaultCheckInterval = time.Second
	DefaultSamples       = 10
)

// Throughput is an amount of bytes transferred per duration.
type Throughput struct {
	Bytes float64
	Per   time.Duration
}

// BytesPerSecond returns t normalized to one second.
func BytesPerSecond(n float64) Throughput {
	return Throughput{Bytes: n, Per: time.Second}
}

// BytesPerSecond returns the rate in bytes per second.
func (t Throughput) BytesPerSecond() float64 {
	if t.Per <= 0 {
		return 0
	}
	return t.Bytes / t.Per.Seconds()
}

func (t Throughput) String() string {
	return strconv.FormatFloat(t.BytesPerSecond(), 'f', -1, 64) + " B/s"
}

// BelowMinimumError is returned by a body whose throughput fell below the
// configured minimum.
type BelowMinimumError struct {
	Expected Throughput
	Actual   Throughput
}

func (e *BelowMinimumError) Error() string {
	return fmt.Sprintf("minimum throughput was specified at %s, but throughput of %s was observed",
		e.Expected, e.Actual)
}

// Options configure a minimum-throughput body.
type Options struct {
	MinimumThroughput Throughput
	// CheckInterval is how often a stalled body is re-evaluated.
	CheckInterval time.Duration
	// Samples is the size of the rolling sample log.
	Samples int
	Clock   clock.Clock
}

func (o Options) withDefaults() Options {
	if o.CheckInterval <= 0 {
		o.CheckInterval = DefaultCheckInterval
	}
	if o.Samples < 2 {
		o.Samples = DefaultSamples
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// Config is the file/env form of Options.
type Config struct {
	Enabled               bool          `yaml:"enabled" mapstructure:"enabled"`
	MinimumBytesPerSecond float64       `yaml:"minimum_bytes_per_second" mapstructure:"minimum_bytes_per_second" validate:"gte=0"`
	CheckInterval         time.Duration `yaml:"check_interval" mapstructure:"check_interval"`
	Samples               int           `yaml:"samples" mapstructure:"samples" validate:"omitempty,gte=2"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.MinimumBytesPerSecond == 0 {
		c.MinimumBytesPerSecond = 1
	}
	if c.CheckInterval == 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.Samples == 0 {
		c.Samples = DefaultSamples
	}
}

// Options converts c into body options.
func (c Config) Options() Options {
	return Options{
		MinimumThroughput: BytesPerSecond(c.MinimumBytesPerSecond),
		CheckInterval:     c.CheckInterval,
		Samples:           c.Samples,
	}
}

type sample struct {
	at    time.Time
	bytes int
}

// sampleLog is a fixed-size ring of samples.
type sampleLog struct {
	buf  []sample
	next int
	full bool
}

func newSampleLog(n int) *sampleLog {
	return &sampleLog{buf: make([]sample, n)}
}

func (l *sampleLog) empty() bool { return l.next == 0 && !l.full }

func (l *sampleLog) push(s sample) {
	l.buf[l.next] = s
	l.next = (l.next + 1) % len(l.buf)
	if l.next == 0 {
		l.full = true
	}
}

// rate returns the rolling throughput once the log is full.
func (l *sampleLog) rate() (Throughput, bool) {
	if !l.full {
		return Throughput{}, false
	}
	oldest := l.buf[l.next]
	newest := l.buf[(l.next+len(l.buf)-1)%len(l.buf)]
	elapsed := newest.at.Sub(oldest.at)
	if elapsed <= 0 {
		return Throughput{}, false
	}
	var total int
	for _, s := range l.buf {
		total += s.bytes
	}
	return Throughput{Bytes: float64(total), Per: elapsed}, true
}
