package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"credledger/internal/models"
	"credledger/internal/observability"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes ledger events as NATS messages on
// <subject>.<event type>.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// ConnectNATS dials url and returns a publisher rooted at subject.
func ConnectNATS(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("credledger"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				observability.Logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			observability.Logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	observability.Logger.Info("nats connected", "url", nc.ConnectedUrl())
	return NewNATSPublisher(nc, subject), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(nc *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultChannel
	}
	return &NATSPublisher{nc: nc, subject: subject}
}

// Subject returns the NATS subject for an event type.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.subject + "." + eventType
}

func (p *NATSPublisher) Publish(_ context.Context, evt models.LedgerEvent) error {
	if p.nc == nil {
		return nil
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.nc.Publish(p.Subject(evt.Type), payload)
}

// StartSubscriber delivers every ledger event on the connection to onEvent
// until ctx is done.
func (p *NATSPublisher) StartSubscriber(ctx context.Context, onEvent func(models.LedgerEvent)) error {
	if p.nc == nil {
		return nil
	}
	sub, err := p.nc.Subscribe(p.subject+".>", func(msg *nats.Msg) {
		dispatch(ctx, "nats", msg.Data, onEvent)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", p.subject, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
