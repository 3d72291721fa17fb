// Package contentstore holds post bodies outside the ledger. The ledger only
// keeps the opaque reference returned by Put.
package contentstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get for an unknown reference.
var ErrNotFound = errors.New("content not found")

// Store is a content-addressed document store.
type Store interface {
	Put(ctx context.Context, doc json.RawMessage) (string, error)
	Get(ctx context.Context, ref string) (json.RawMessage, error)
}

// Unpinner is implemented by stores that can release a document.
type Unpinner interface {
	Unpin(ctx context.Context, ref string) error
}
