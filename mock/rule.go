package mock

import (
	"sync"

	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// Response is one canned result: an output, an error or an HTTP response.
type Response struct {
	output func() typeerased.Box
	err    func() error
	http   func() *sdkhttp.Response
}

// IsOutput reports whether the response is an output.
func (r Response) IsOutput() bool { return r.output != nil }

// IsError reports whether the response is a modeled error.
func (r Response) IsError() bool { return r.err != nil }

// IsHTTP reports whether the response is a raw HTTP response.
func (r Response) IsHTTP() bool { return r.http != nil }

// Output builds an output response.
func Output[Out any](fn func() Out) Response {
	return Response{output: func() typeerased.Box { return typeerased.New(fn()) }}
}

// Error builds a modeled-error response.
func Error(fn func() error) Response {
	return Response{err: fn}
}

// HTTPResponse builds a raw HTTP response. fn runs once per use so every
// attempt gets a fresh body.
func HTTPResponse(fn func() *sdkhttp.Response) Response {
	return Response{http: fn}
}

type step struct {
	resp  Response
	count int // negative repeats forever
}

// Rule matches inputs and serves its responses in order.
type Rule struct {
	name    string
	matches func(typeerased.Box) bool

	mu     sync.Mutex
	steps  []step
	index  int
	served int
	calls  int
}

// Name returns the rule name, the input type unless set with Named.
func (r *Rule) Name() string { return r.name }

// NumCalls returns how many responses the rule has served.
func (r *Rule) NumCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// IsExhausted reports whether the rule has no responses left.
func (r *Rule) IsExhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhausted()
}

func (r *Rule) exhausted() bool {
	return r.index >= len(r.steps)
}

// next serves the next response.
func (r *Rule) next() (Response, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exhausted() {
		return Response{}, false
	}
	s := r.steps[r.index]
	r.calls++
	if s.count >= 0 {
		r.served++
		if r.served >= s.count {
			r.index++
			r.served = 0
		}
	}
	return s.resp, true
}

// RuleBuilder builds a rule for inputs of type In producing Out.
type RuleBuilder[In, Out any] struct {
	name  string
	match func(In) bool
}

// On starts a rule matching every input of type In.
func On[In, Out any]() *RuleBuilder[In, Out] {
	return &RuleBuilder[In, Out]{name: typeerased.New(*new(In)).TypeName()}
}

// Named overrides the rule name used in logs and errors.
func (b *RuleBuilder[In, Out]) Named(name string) *RuleBuilder[In, Out] {
	b.name = name
	return b
}

// Match narrows the rule to inputs fn accepts.
func (b *RuleBuilder[In, Out]) Match(fn func(In) bool) *RuleBuilder[In, Out] {
	b.match = fn
	return b
}

// ThenOutput builds a rule serving one output.
func (b *RuleBuilder[In, Out]) ThenOutput(fn func() Out) *Rule {
	return b.Sequence().Output(fn).Build()
}

// ThenError builds a rule serving one modeled error.
func (b *RuleBuilder[In, Out]) ThenError(fn func() error) *Rule {
	return b.Sequence().Error(fn).Build()
}

// ThenHTTPResponse builds a rule serving one HTTP response.
func (b *RuleBuilder[In, Out]) ThenHTTPResponse(fn func() *sdkhttp.Response) *Rule {
	return b.Sequence().HTTPResponse(fn).Build()
}

// Sequence starts a multi-response rule.
func (b *RuleBuilder[In, Out]) Sequence() *SequenceBuilder[In, Out] {
	return &SequenceBuilder[In, Out]{rule: b}
}

func (b *RuleBuilder[In, Out]) matcher() func(typeerased.Box) bool {
	match := b.match
	return func(box typeerased.Box) bool {
		in, _, ok := typeerased.Downcast[In](box)
		return ok && (match == nil || match(in))
	}
}

// SequenceBuilder accumulates the responses of a rule.
type SequenceBuilder[In, Out any] struct {
	rule  *RuleBuilder[In, Out]
	steps []step
}

// Output appends an output.
func (s *SequenceBuilder[In, Out]) Output(fn func() Out) *SequenceBuilder[In, Out] {
	return s.add(Output(fn))
}

// Error appends a modeled error.
func (s *SequenceBuilder[In, Out]) Error(fn func() error) *SequenceBuilder[In, Out] {
	return s.add(Error(fn))
}

// HTTPResponse appends an HTTP response.
func (s *SequenceBuilder[In, Out]) HTTPResponse(fn func() *sdkhttp.Response) *SequenceBuilder[In, Out] {
	return s.add(HTTPResponse(fn))
}

// Times serves the last appended response n times in total. n <= 0 drops it.
func (s *SequenceBuilder[In, Out]) Times(n int) *SequenceBuilder[In, Out] {
	if len(s.steps) == 0 {
		return s
	}
	if n <= 0 {
		s.steps = s.steps[:len(s.steps)-1]
		return s
	}
	s.steps[len(s.steps)-1].count = n
	return s
}

// Repeatedly builds a rule whose last response is served forever.
func (s *SequenceBuilder[In, Out]) Repeatedly() *Rule {
	if len(s.steps) > 0 {
		s.steps[len(s.steps)-1].count = -1
	}
	return s.Build()
}

// Build finishes the rule.
func (s *SequenceBuilder[In, Out]) Build() *Rule {
	return &Rule{
		name:    s.rule.name,
		matches: s.rule.matcher(),
		steps:   append([]step(nil), s.steps...),
	}
}

func (s *SequenceBuilder[In, Out]) add(r Response) *SequenceBuilder[In, Out] {
	s.steps = append(s.steps, step{resp: r, count: 1})
	return s
}
