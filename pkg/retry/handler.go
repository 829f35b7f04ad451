package retry

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/foofork/riptide/pkg/failure"
	"github.com/foofork/riptide/pkg/pipeerr"
	"github.com/foofork/riptide/pkg/timeutil"
)

// Retry is the classified-retry layer sitting on top of the Fetcher's
// transport-level retrying RoundTripper: it only ever sees already-read
// bodies and classified failures (RobotsDenied, Http4xx other than
// 408/429, ExtractionFailed, ResourceExhausted, ... are never retried
// here -- the Kind's own retryable bit, not this package, decides). It
// makes up to MaxAttempts attempts in total, with exponential backoff
// plus jitter between attempts.
//
// Type parameter T represents the return type of the function being retried.
// Returns a Result containing the value (if successful), error (if failed),
// and the number of attempts made.
func Retry[T any](retryParam RetryParam, fn func() (T, failure.ClassifiedError)) Result[T] {
	var lastErr failure.ClassifiedError
	var zero T

	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			value: zero,
			err: &RetryError{
				Message:   "max attempt cannot be 0",
				Cause:     ErrZeroAttempt,
				Retryable: true,
			},
			attempts: 0,
		}
	}

	// Initialize random number generator with the provided seed
	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		result, err := fn()

		// Success case: no error
		if err == nil {
			return NewSuccessResult(result, attempt)
		}

		lastErr = err

		// If not retryable, return immediately -- a RobotsDenied or
		// non-408/429 Http4xx must never spin the attempt loop.
		if !isErrorRetryable(err) {
			return Result[T]{
				value:    zero,
				err:      err,
				attempts: attempt,
			}
		}

		// If this was the last attempt, break and return exhausted error
		if attempt == retryParam.MaxAttempts {
			break
		}

		// Compute delay for the next retry using exponential backoff with jitter
		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			*rng,
			retryParam.BackoffParam,
		)

		// Sleep for the computed delay
		time.Sleep(backoffDelay)
	}

	// Return failure result when max attempts are exhausted
	return Result[T]{
		value: zero,
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true, // This is recoverable at scheduler level
			Wrapped:   lastErr,
		},
		attempts: retryParam.MaxAttempts,
	}
}

// isErrorRetryable reports whether err should trigger another attempt.
// pipeerr.Error is the concrete type every pipeline stage returns, so it
// is checked directly against its per-Kind rule; any other ClassifiedError
// (e.g. this package's own RetryError) falls back to its IsRetryable
// method, and an error exposing neither is treated as retryable so a new,
// not-yet-classified failure mode fails open rather than silently never
// retrying.
func isErrorRetryable(err failure.ClassifiedError) bool {
	if pe, ok := err.(*pipeerr.Error); ok {
		return pe.IsRetryable()
	}

	type hasRetryable interface {
		IsRetryable() bool
	}
	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	return true
}
