package orchestrator

import (
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// Phase is the orchestration stage an interceptor context is in.
type Phase string

// Orchestration phases.
const (
	PhaseBeforeSerialization   Phase = "before_serialization"
	PhaseSerialization         Phase = "serialization"
	PhaseBeforeTransmit        Phase = "before_transmit"
	PhaseTransmit              Phase = "transmit"
	PhaseBeforeDeserialization Phase = "before_deserialization"
	PhaseDeserialization       Phase = "deserialization"
	PhaseAfterDeserialization  Phase = "after_deserialization"
	PhaseCompletion            Phase = "completion"
)

// InterceptorContext is the mutable state of one operation invocation,
// visible to interceptors and the retry strategy.
type InterceptorContext struct {
	phase    Phase
	attempt  int
	input    typeerased.Box
	request  *sdkhttp.Request
	response *sdkhttp.Response
	output   typeerased.Box
	err      error
}

// NewInterceptorContext creates a context for input.
func NewInterceptorContext(input typeerased.Box) *InterceptorContext {
	return &InterceptorContext{phase: PhaseBeforeSerialization, input: input}
}

// Phase returns the current phase.
func (c *InterceptorContext) Phase() Phase { return c.phase }

// Attempt returns the 1-based attempt number, 0 before the first attempt.
func (c *InterceptorContext) Attempt() int { return c.attempt }

// Input returns the operation input.
func (c *InterceptorContext) Input() typeerased.Box { return c.input }

// SetInput replaces the input. Only meaningful before serialization.
func (c *InterceptorContext) SetInput(in typeerased.Box) { c.input = in }

// Request returns the transmit request, nil before serialization.
func (c *InterceptorContext) Request() *sdkhttp.Request { return c.request }

// SetRequest replaces the transmit request.
func (c *InterceptorContext) SetRequest(req *sdkhttp.Request) { c.request = req }

// Response returns the response of the current attempt, nil before transmit.
func (c *InterceptorContext) Response() *sdkhttp.Response { return c.response }

// SetResponse replaces the response.
func (c *InterceptorContext) SetResponse(resp *sdkhttp.Response) { c.response = resp }

// Output returns the deserialized output.
func (c *InterceptorContext) Output() typeerased.Box { return c.output }

// SetOutput sets the output and clears any error.
func (c *InterceptorContext) SetOutput(out typeerased.Box) {
	c.output = out
	c.err = nil
}

// Err returns the failure of the current attempt or operation.
func (c *InterceptorContext) Err() error { return c.err }

// SetErr records a failure and clears any output.
func (c *InterceptorContext) SetErr(err error) {
	c.err = err
	c.output = typeerased.Box{}
}

// Failed reports whether an error is recorded.
func (c *InterceptorContext) Failed() bool { return c.err != nil }

func (c *InterceptorContext) enter(p Phase) { c.phase = p }

func (c *InterceptorContext) rewind(req *sdkhttp.Request) {
	c.request = req
	c.response = nil
	c.output = typeerased.Box{}
	c.err = nil
}
