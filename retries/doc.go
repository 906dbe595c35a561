// Package retries implements the orchestrator's retry strategies.
//
// NeverRetry makes exactly one attempt. Standard retries transient,
// throttling and server errors up to a maximum number of attempts, waiting
// out an exponential backoff between them and drawing every retry from a
// shared quota that successful attempts refill. Adaptive adds a client-side
// send rate that shrinks when the service throttles and recovers as requests
// succeed.
//
// AttemptHeaderInterceptor tells the service which attempt it is seeing:
//
//	amz-sdk-request: attempt=2; max=3
package retries
