// Package retry re-runs whole store operations that lost a write conflict.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/PercyTuncar/bot-2026-sub001/internal/apperrors"
)

// DefaultAttempts bounds how many times an operation runs on contention.
const DefaultAttempts = 3

// Policy configures OnContention.
type Policy struct {
	Attempts        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is three attempts with short jittered backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:        DefaultAttempts,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     250 * time.Millisecond,
	}
}

// OnContention invokes op until it succeeds, fails with anything other than
// Contention, or the attempt budget runs out. op must redo its reads; it is
// called from scratch each time.
func OnContention[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	if policy.Attempts == 0 {
		policy.Attempts = DefaultAttempts
	}
	bo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		bo.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		bo.MaxInterval = policy.MaxInterval
	}

	return backoff.Retry(ctx, func() (T, error) {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if apperrors.IsContention(err) {
			return result, err
		}
		return result, backoff.Permanent(err)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(policy.Attempts),
	)
}
