// Package resilience provides the building blocks retry strategies are made
// of:
//   - Backoff: exponential backoff with jitter, capped at a maximum delay
//   - Sleep: a context-aware wait on an injectable clock
//   - TokenBucket: a retry quota that retries draw from and successes refill
//
// A strategy combines them per attempt:
//
//	bucket := resilience.NewTokenBucket(resilience.DefaultTokenBucketConfig("standard"))
//	if !bucket.Acquire(5) {
//	    return false, nil
//	}
//	delay := resilience.DefaultBackoffConfig().Duration(attempt)
//	if err := resilience.Sleep(ctx, clk, delay); err != nil {
//	    return false, err
//	}
package resilience
