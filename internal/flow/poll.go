// Package flow holds the small control-flow primitives the inspectors share:
// bounded polling for asynchronous query completion, paginated draining of
// large result sets, and chunking of rendered output.
package flow

import (
	"context"
	"errors"
	"time"
)

// ErrPollExhausted is returned when every polling attempt came back not ready.
var ErrPollExhausted = errors.New("polling attempts exhausted")

const (
	defaultPollAttempts = 10
	defaultPollDelay    = 3 * time.Second
)

// PollOptions tunes Poll. Zero values take the defaults (10 attempts, 3s).
type PollOptions struct {
	MaxAttempts int
	Delay       time.Duration
}

// Poll calls op until it reports ready, waiting a fixed delay between
// attempts. The first ready result is returned immediately. An error from op
// aborts at once. After MaxAttempts not-ready results Poll gives up with
// ErrPollExhausted; the upstream completion window is short and bounded, so
// the delay is fixed with no backoff or jitter.
func Poll[T any](ctx context.Context, op func(ctx context.Context) (T, bool, error), opts PollOptions) (T, error) {
	var zero T
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	delay := opts.Delay
	if delay <= 0 {
		delay = defaultPollDelay
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		result, ready, err := op(ctx)
		if err != nil {
			return zero, err
		}
		if ready {
			return result, nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, ErrPollExhausted
}
