// Package notifications delivers committed ledger events to other processes
// and to connected WebSocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"credledger/internal/models"
	"credledger/internal/observability"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the channel prefix ledger events are published under.
const DefaultChannel = "ledger.events"

// EventChannel returns the Redis channel for an event type.
func EventChannel(prefix, eventType string) string {
	return prefix + ":" + eventType
}

// Notifier publishes ledger events into Redis channels.
type Notifier struct {
	rdb    *redis.Client
	prefix string
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client, prefix string) *Notifier {
	if prefix == "" {
		prefix = DefaultChannel
	}
	return &Notifier{rdb: rdb, prefix: prefix}
}

// Publish sends evt on its type channel. A nil client is a no-op.
func (n *Notifier) Publish(ctx context.Context, evt models.LedgerEvent) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, EventChannel(n.prefix, evt.Type), payload).Err()
}

// StartSubscriber subscribes to every event channel and calls onEvent for
// each decodable message until ctx is done.
func (n *Notifier) StartSubscriber(ctx context.Context, onEvent func(models.LedgerEvent)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, EventChannel(n.prefix, "*"))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to %s: %w", n.prefix, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				dispatch(ctx, "redis", []byte(msg.Payload), onEvent)
			}
		}
	}()

	return nil
}

func dispatch(ctx context.Context, source string, payload []byte, onEvent func(models.LedgerEvent)) {
	defer func() {
		if r := recover(); r != nil {
			observability.Logger.ErrorContext(ctx, "panic in event subscriber",
				"source", source, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	var evt models.LedgerEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		observability.Logger.WarnContext(ctx, "dropping undecodable event", "source", source, "error", err)
		return
	}
	onEvent(evt)
}
