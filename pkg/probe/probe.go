// Package probe implements bounded polling of asynchronously converging
// resources. This is the only place the orchestrator waits; every
// certificate, distribution, and stack convergence goes through WaitFor
// rather than growing its own polling loop.
package probe

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchpath/stagectl/pkg/errors"
	"github.com/launchpath/stagectl/pkg/provider"
)

// StatusFunc observes the current status of a resource.
type StatusFunc func(ctx context.Context) (provider.Status, error)

// Options bounds a poll.
type Options struct {
	// Interval between observations.
	Interval time.Duration

	// MaxAttempts caps the number of observations.
	MaxAttempts int

	// Log receives a debug event per observation. The zero value
	// disables logging.
	Log zerolog.Logger
}

// Result is the outcome of a poll.
type Result struct {
	// Status is the last observed status.
	Status provider.Status

	// Attempts is the number of times the status was observed.
	Attempts int

	// TimedOut is true when no terminal status was reached within
	// MaxAttempts. Timing out is not an error: the caller decides
	// whether to proceed optimistically or abort.
	TimedOut bool

	// Failed is true when a terminalFail status was reached.
	Failed bool
}

// WaitFor polls describe on a fixed interval until it observes a status
// in terminalOK or terminalFail, or MaxAttempts observations have been
// made. describe is never called again after a terminal status. An error
// from describe or a cancelled context aborts the poll.
func WaitFor(ctx context.Context, describe StatusFunc, terminalOK, terminalFail []provider.Status, opts Options) (Result, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	var result Result
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		status, err := describe(ctx)
		result.Attempts = attempt
		result.Status = status
		if err != nil {
			return result, err
		}
		opts.Log.Debug().
			Int("attempt", attempt).
			Int("max_attempts", opts.MaxAttempts).
			Str("status", string(status)).
			Msg("observed status")

		if statusIn(status, terminalOK) {
			return result, nil
		}
		if statusIn(status, terminalFail) {
			result.Failed = true
			return result, nil
		}

		if attempt == opts.MaxAttempts {
			break
		}
		if err := sleep(ctx, opts.Interval); err != nil {
			return result, err
		}
	}

	result.TimedOut = true
	return result, nil
}

// RetryWhile runs op up to attempts times, sleeping interval between
// tries, as long as shouldRetry approves the error. The last error is
// returned when the budget is exhausted.
func RetryWhile(ctx context.Context, attempts int, interval time.Duration, shouldRetry func(error) bool, op func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = op(ctx)
		if last == nil {
			return nil
		}
		if !shouldRetry(last) || attempt == attempts {
			return last
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
	return last
}

// RetryTransient retries an operation only on transient provider errors.
// This is the step-local retry policy: anything non-transient propagates
// on the first occurrence.
func RetryTransient(ctx context.Context, attempts int, interval time.Duration, op func(ctx context.Context) error) error {
	return RetryWhile(ctx, attempts, interval, func(err error) bool {
		return errors.Is(err, errors.ErrCodeTransientProvider)
	}, op)
}

func statusIn(status provider.Status, set []provider.Status) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
