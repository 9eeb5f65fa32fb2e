package realtime

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryBudget tracks reconnect attempts and yields the delay before each one.
//
// The delay before attempt k is min(base * 2^(k-1), maxDelay); no delay is
// produced once Attempt reaches Cap. Not safe for concurrent use.
type RetryBudget struct {
	Attempt int
	Cap     int

	maxDelay time.Duration
	policy   backoff.BackOff
}

// NewRetryBudget creates a budget allowing up to maxAttempts retries.
func NewRetryBudget(base, maxDelay time.Duration, maxAttempts int) *RetryBudget {
	if maxAttempts < 0 {
		maxAttempts = 0
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = maxDelay
	exp.MaxElapsedTime = 0
	exp.Reset()

	return &RetryBudget{
		Cap:      maxAttempts,
		maxDelay: maxDelay,
		policy:   backoff.WithMaxRetries(exp, uint64(maxAttempts)),
	}
}

// Next consumes one attempt and returns the delay to wait before it.
// It returns false once the budget is exhausted.
func (b *RetryBudget) Next() (time.Duration, bool) {
	if b.Attempt >= b.Cap {
		return 0, false
	}

	d := b.policy.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	if d > b.maxDelay {
		d = b.maxDelay
	}

	b.Attempt++
	return d, true
}

// Exhausted reports whether no further attempts remain.
func (b *RetryBudget) Exhausted() bool {
	return b.Attempt >= b.Cap
}

// Reset returns the budget to zero attempts.
func (b *RetryBudget) Reset() {
	b.Attempt = 0
	b.policy.Reset()
}
