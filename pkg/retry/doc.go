// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// The dependency clients (embedding endpoint, vector index, document store)
// all talk to services that can fail transiently. This package gives them a
// single bounded-backoff primitive with jitter and context cancellation, so
// that retry budgets stay consistent across the system.
//
// # Usage
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Ping(ctx)
//	})
//
// Errors wrapped with retry.NonRetryable abort immediately; all other errors
// are retried up to MaxAttempts. Use retry.DoWithResult for operations that
// return a value.
package retry
