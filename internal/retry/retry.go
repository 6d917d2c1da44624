// Package retry runs remote calls with bounded retries and exponential
// backoff. Whether a failure is retried is decided by its classification:
// structural rejections fail on the first attempt, transient failures and
// rate-limit signals are retried.
package retry

import (
	"context"
	"fmt"
	"time"

	"foundation_site/internal/apperror"
)

const (
	DefaultMaxRetries = 2
	DefaultBaseDelay  = 1000 * time.Millisecond
)

// State of one Do call.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateRetrying
	StateSuccess
	StateExhaustedFailure
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateRetrying:
		return "retrying"
	case StateSuccess:
		return "success"
	case StateExhaustedFailure:
		return "exhausted_failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition is reported to Policy.OnTransition. Attempt is 0-based; Delay is
// set when entering StateRetrying; Err is the failure that caused the move.
type Transition struct {
	From    State
	To      State
	Attempt int
	Delay   time.Duration
	Err     error
}

// Policy configures Do. The zero value makes a single attempt with no delay;
// use DefaultPolicy for the site defaults.
type Policy struct {
	// MaxRetries is the number of extra attempts after the first.
	MaxRetries int
	// BaseDelay is the wait before the second attempt; it doubles each time.
	BaseDelay time.Duration
	// Retryable overrides apperror.Retryable.
	Retryable func(error) bool
	// Sleep overrides the context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnTransition observes the state machine.
	OnTransition func(Transition)
}

// DefaultPolicy allows up to three attempts, waiting 1s then 2s.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, BaseDelay: DefaultBaseDelay}
}

// Backoff returns the wait before attempt+1: base * 2^attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * time.Duration(1<<uint(attempt))
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. On exhaustion the last error is returned unchanged
// so its classification survives.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	retryable := p.Retryable
	if retryable == nil {
		retryable = apperror.Retryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}
	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	state := StateIdle
	move := func(to State, attempt int, delay time.Duration, err error) {
		if p.OnTransition != nil {
			p.OnTransition(Transition{From: state, To: to, Attempt: attempt, Delay: delay, Err: err})
		}
		state = to
	}

	for attempt := 0; ; attempt++ {
		move(StateAttempting, attempt, 0, nil)

		result, err := op(ctx)
		if err == nil {
			move(StateSuccess, attempt, 0, nil)
			return result, nil
		}

		if !retryable(err) || attempt >= maxRetries {
			move(StateExhaustedFailure, attempt, 0, err)
			return zero, err
		}

		delay := Backoff(p.BaseDelay, attempt)
		move(StateRetrying, attempt, delay, err)
		if serr := sleep(ctx, delay); serr != nil {
			move(StateExhaustedFailure, attempt, 0, err)
			return zero, fmt.Errorf("%w (retry aborted: %v)", err, serr)
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Classified reports whether err would be retried under the default
// classification. It is exported for callers that log the decision.
func Classified(err error) (kind apperror.Kind, retryable bool) {
	return apperror.KindOf(err), apperror.Retryable(err)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
