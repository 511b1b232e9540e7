package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds calls to a networked backend. Each attempt runs under
// Timeout; only errors Transient accepts are retried.
type RetryPolicy struct {
	MaxTries        uint
	Timeout         time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Transient       func(error) bool
}

// DefaultRetryPolicy returns the policy used by the postgres and mongo
// backends unless overridden.
func DefaultRetryPolicy(transient func(error) bool) RetryPolicy {
	return RetryPolicy{
		MaxTries:        4,
		Timeout:         10 * time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Transient:       transient,
	}
}

// Do runs op until it succeeds, fails permanently, or the policy is
// exhausted. A zero policy runs op exactly once without a deadline.
func Do[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempt := func() (T, error) {
		actx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		v, err := op(actx)
		if err != nil && (p.Transient == nil || !p.Transient(err)) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}
	return backoff.Retry(ctx, attempt, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

// Exec is Do for operations without a result.
func Exec(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
