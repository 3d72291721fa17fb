package notifications

import (
	"context"
	"errors"

	"credledger/internal/models"
)

// Publisher is anything that accepts ledger events.
type Publisher interface {
	Publish(ctx context.Context, evt models.LedgerEvent) error
}

// Fanout publishes every event to all of its publishers and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, evt models.LedgerEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
