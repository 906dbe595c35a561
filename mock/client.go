package mock

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/errors"
	"github.com/kbukum/sdkcore/logger"
	"github.com/kbukum/sdkcore/orchestrator"
	"github.com/kbukum/sdkcore/sdkbody"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// Mode selects how rules are matched.
type Mode int

const (
	// Sequential serves rules in order. The first rule that is not
	// exhausted must match the input.
	Sequential Mode = iota
	// MatchAny serves the first matching rule and drops exhausted rules.
	MatchAny
)

func (m Mode) String() string {
	if m == MatchAny {
		return "match_any"
	}
	return "sequential"
}

// Errors returned when no response can be served.
var (
	ErrNoMatchingRule = stderrors.New("mock: no rule matches the input")
	ErrNoResponse     = stderrors.New("mock: no response was selected for the request")
)

// Client serves rule responses as both an orchestrator.Interceptor and an
// sdkhttp.Connection.
type Client struct {
	mode Mode
	log  *logger.Logger

	mu      sync.Mutex
	rules   []*Rule
	pending map[*sdkhttp.Request]Response
}

// NewClient creates a client over rules.
func NewClient(mode Mode, rules ...*Rule) *Client {
	return &Client{
		mode:    mode,
		log:     logger.Get("mock"),
		rules:   append([]*Rule(nil), rules...),
		pending: make(map[*sdkhttp.Request]Response),
	}
}

// Configure installs the client as the connection and as an interceptor.
func (c *Client) Configure(l *configbag.Layer) {
	orchestrator.SetConnection(l, c)
	orchestrator.AddInterceptor(l, c)
}

// Rules returns the rules still under consideration.
func (c *Client) Rules() []*Rule {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Rule(nil), c.rules...)
}

// Name implements orchestrator.Interceptor.
func (c *Client) Name() string { return "mock" }

type selection struct {
	rule *Rule
	resp Response
	req  *sdkhttp.Request
}

// ModifyBeforeTransmit picks the response for this attempt.
func (c *Client) ModifyBeforeTransmit(_ context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) error {
	rule, resp, err := c.pick(ictx.Input())
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.pending[ictx.Request()] = resp
	c.mu.Unlock()
	configbag.Store(bag.Interceptor(), &selection{rule: rule, resp: resp, req: ictx.Request()})

	c.log.Debug("mock rule served", logger.Fields(
		"rule", rule.Name(),
		logger.FieldAttempt, ictx.Attempt(),
		"calls", rule.NumCalls(),
	))
	return nil
}

// ModifyBeforeAttemptCompletion replaces the attempt result with a canned
// output or error. Attempts that failed before reaching Call keep their
// error.
func (c *Client) ModifyBeforeAttemptCompletion(_ context.Context, ictx *orchestrator.InterceptorContext, bag *configbag.Bag) error {
	sel, ok := configbag.Load[*selection](bag)
	if !ok || sel == nil {
		return nil
	}
	configbag.Unset[*selection](bag.Interceptor())

	c.mu.Lock()
	_, unsent := c.pending[sel.req]
	delete(c.pending, sel.req)
	c.mu.Unlock()
	if unsent {
		return nil
	}

	switch {
	case sel.resp.IsOutput():
		ictx.SetOutput(sel.resp.output())
	case sel.resp.IsError():
		status := 0
		if resp := ictx.Response(); resp != nil {
			status = resp.StatusCode
		}
		ictx.SetErr(errors.ServiceError(sel.resp.err()).WithStatus(status))
	}
	return nil
}

// Call implements sdkhttp.Connection. Output and error responses are
// answered with an empty 200 that ModifyBeforeAttemptCompletion overrides.
func (c *Client) Call(_ context.Context, req *sdkhttp.Request) (*sdkhttp.Response, error) {
	c.mu.Lock()
	resp, ok := c.pending[req]
	delete(c.pending, req)
	c.mu.Unlock()

	if !ok {
		return nil, ErrNoResponse
	}
	if resp.IsHTTP() {
		return resp.http(), nil
	}
	return sdkhttp.NewResponse(http.StatusOK, sdkbody.Empty()), nil
}

func (c *Client) pick(input typeerased.Box) (*Rule, Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.mode {
	case MatchAny:
		live := c.rules[:0:0]
		for _, r := range c.rules {
			if !r.IsExhausted() {
				live = append(live, r)
			}
		}
		c.rules = live
		for _, r := range c.rules {
			if !r.matches(input) {
				continue
			}
			if resp, ok := r.next(); ok {
				if r.IsExhausted() {
					c.drop(r)
				}
				return r, resp, nil
			}
		}
	default:
		for _, r := range c.rules {
			if r.IsExhausted() {
				continue
			}
			if !r.matches(input) {
				return nil, Response{}, fmt.Errorf("%w: next rule %s does not match %s", ErrNoMatchingRule, r.Name(), input)
			}
			resp, _ := r.next()
			return r, resp, nil
		}
	}
	return nil, Response{}, fmt.Errorf("%w: %s", ErrNoMatchingRule, input)
}

func (c *Client) drop(rule *Rule) {
	for i, r := range c.rules {
		if r == rule {
			c.rules = append(c.rules[:i:i], c.rules[i+1:]...)
			return
		}
	}
}
