package retry

import "github.com/foofork/riptide/pkg/failure"

// Result is the outcome of a Retry call: either a successful value and
// the attempt count it took, or the terminal error (the task's own
// non-retryable error, or a RetryError once the attempt budget is
// exhausted).
type Result[T any] struct {
	value    T
	err      failure.ClassifiedError
	attempts int
}

// NewSuccessResult wraps a successful value with the attempt count it
// took to produce it.
func NewSuccessResult[T any](value T, attempts int) Result[T] {
	return Result[T]{value: value, attempts: attempts}
}

func (r Result[T]) Value() T                     { return r.value }
func (r Result[T]) Err() failure.ClassifiedError { return r.err }
func (r Result[T]) Attempts() int                { return r.attempts }
func (r Result[T]) IsFailure() bool              { return r.err != nil }
func (r Result[T]) IsSuccess() bool              { return r.err == nil }
