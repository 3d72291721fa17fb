package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	ReputationKeyPrefix = "reputation:%s"
	ActivationKeyPrefix = "activation:%s"
	RateLimitKeyPrefix  = "ratelimit:%s:%s"
)

const (
	ReputationTTL = 30 * time.Second
	ActivationTTL = 10 * time.Minute
)

func ReputationKey(account string) string {
	return fmt.Sprintf(ReputationKeyPrefix, account)
}

func ActivationKey(account string) string {
	return fmt.Sprintf(ActivationKeyPrefix, account)
}

func RateLimitKey(resource, identity string) string {
	return fmt.Sprintf(RateLimitKeyPrefix, resource, identity)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateAccount drops every cached oracle answer for account.
func InvalidateAccount(ctx context.Context, account string) {
	Invalidate(ctx, ReputationKey(account))
	Invalidate(ctx, ActivationKey(account))
}
