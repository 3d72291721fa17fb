// Package oracle provides reputation oracle clients: an HTTP client guarded by
// a circuit breaker and rate limiter, a static in-memory oracle, and a
// Redis-cached decorator for read paths.
package oracle

import (
	"context"
)

// Oracle answers reputation and activation questions about accounts.
// Every failure is reported as an ORACLE_UNAVAILABLE AppError.
type Oracle interface {
	ReputationOf(ctx context.Context, account string) (int64, error)
	IsAccountActivated(ctx context.Context, account string) (bool, error)
	ActivateAccount(ctx context.Context, account string) error
}
