// Package errors provides the error taxonomy of the operation runtime.
//
// Every failure surfaced by the orchestrator is an *SdkError whose Kind says
// where it happened: configuration, request construction, dispatch (transport),
// timeout, response handling (including body failures), an interceptor, or
// the service itself. SdkError always unwraps to the innermost cause, so
// callers can match body errors, transport errors and modeled service errors
// with the standard errors.Is / errors.As.
package errors
