package oracle

import (
	"context"
	"time"

	"credledger/internal/cache"
)

// Cached is a Redis read-through decorator. It must only serve read paths:
// write transitions need a fresh answer and go to the wrapped oracle.
type Cached struct {
	next Oracle
	ttl  time.Duration
}

// NewCached wraps next. A non-positive ttl uses cache.ReputationTTL.
func NewCached(next Oracle, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = cache.ReputationTTL
	}
	return &Cached{next: next, ttl: ttl}
}

func (c *Cached) ReputationOf(ctx context.Context, account string) (int64, error) {
	var rep int64
	err := cache.Aside(ctx, cache.ReputationKey(account), &rep, c.ttl, func() error {
		v, err := c.next.ReputationOf(ctx, account)
		rep = v
		return err
	})
	return rep, err
}

func (c *Cached) IsAccountActivated(ctx context.Context, account string) (bool, error) {
	var activated bool
	err := cache.Aside(ctx, cache.ActivationKey(account), &activated, cache.ActivationTTL, func() error {
		v, err := c.next.IsAccountActivated(ctx, account)
		activated = v
		return err
	})
	return activated, err
}

func (c *Cached) ActivateAccount(ctx context.Context, account string) error {
	if err := c.next.ActivateAccount(ctx, account); err != nil {
		return err
	}
	cache.InvalidateAccount(ctx, account)
	return nil
}
