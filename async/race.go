package async

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoSourceSucceeded is returned by FirstSuccess when every attempt failed. The individual
// failures are joined to it.
var ErrNoSourceSucceeded = errors.New("no source succeeded")

// DeadlineExceeded is returned by WithTimeout when the deadline wins the race.
type DeadlineExceeded struct {
	Label   string
	Timeout time.Duration
}

func (e *DeadlineExceeded) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Label, e.Timeout)
}

// Is lets callers test with errors.Is(err, context.DeadlineExceeded).
func (e *DeadlineExceeded) Is(target error) bool {
	return target == context.DeadlineExceeded
}

type result[T any] struct {
	value T
	err   error
}

// WithTimeout races op against a timer and adopts whichever settles first.
//
// The losing operation is not cancelled: op receives ctx, not a context bound to the
// timeout, so a save that "times out" may still complete and write its data afterwards.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, label string, op func(context.Context) (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		v, err := op(ctx)
		done <- result[T]{value: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		return zero, &DeadlineExceeded{Label: label, Timeout: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// FirstSuccess runs every attempt concurrently and returns the first value produced without
// an error. The remaining attempts see their context cancelled. When all attempts fail the
// result is a single error wrapping ErrNoSourceSucceeded.
func FirstSuccess[T any](ctx context.Context, attempts ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(attempts) == 0 {
		return zero, ErrNoSourceSucceeded
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result[T], len(attempts))
	for _, attempt := range attempts {
		go func() {
			v, err := attempt(ctx)
			results <- result[T]{value: v, err: err}
		}()
	}

	errs := []error{ErrNoSourceSucceeded}
	for range attempts {
		select {
		case r := <-results:
			if r.err == nil {
				return r.value, nil
			}
			errs = append(errs, r.err)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, errors.Join(errs...)
}
