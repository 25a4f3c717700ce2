package classify

import (
	"context"
	"errors"
	"math"
	"time"

	"ReviewPulse/internal/ports"
)

// attemptState tracks one batch through the retry machine. The walk is
// pending -> sent -> {success | retry(n) -> sent | exhausted}; success and
// exhausted are terminal.
type attemptState int

const (
	statePending attemptState = iota
	stateSent
	stateSuccess
	stateRetry
	stateExhausted
)

// attemptOutcome is the classification of one completed call.
type attemptOutcome int

const (
	outcomeSuccess attemptOutcome = iota
	outcomeTransient
	outcomeRateLimited
)

func outcomeOf(err error) attemptOutcome {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, ports.ErrRateLimited):
		return outcomeRateLimited
	default:
		return outcomeTransient
	}
}

// advance is the pure transition function of the per-batch state machine.
// Delay timing stays outside so tests drive the machine without sleeping.
func advance(state attemptState, outcome attemptOutcome, attempt, maxAttempts int) attemptState {
	if state != stateSent {
		return state
	}
	if outcome == outcomeSuccess {
		return stateSuccess
	}
	if attempt >= maxAttempts {
		return stateExhausted
	}
	return stateRetry
}

// retryDelay computes the wait before the next attempt: exponential backoff
// over the multiplicative base, plus the fixed cool-down when the failure was
// a rate limit. The cool-down does not consume the backoff counter.
func retryDelay(cfg Config, attempt int, outcome attemptOutcome) time.Duration {
	backoff := cfg.BackoffBase * math.Pow(2, float64(attempt-1))
	delay := time.Duration(backoff * float64(time.Second))
	if outcome == outcomeRateLimited {
		delay += cfg.RateLimitCooldown
	}
	return delay
}

// Sleeper is the delay mechanism between attempts, injectable in tests.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type clockSleeper struct{}

func (clockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
