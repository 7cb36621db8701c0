package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects published by the booking engine.
const (
	BookingCreated   = "booking.created"
	BookingConfirmed = "booking.confirmed"
	BookingCancelled = "booking.cancelled"
	BookingUpdated   = "booking.updated"
	SlotExpired      = "slot.expired"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data any) error
	Close() error
}

type BookingEvent struct {
	BookingID string    `json:"booking_id"`
	SlotID    string    `json:"slot_id"`
	Status    string    `json:"status"`
	GroupSize int       `json:"group_size"`
	Actor     string    `json:"actor,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Changes   []string  `json:"changes,omitempty"`
	At        time.Time `json:"at"`
}

type SlotsExpiredEvent struct {
	SlotIDs []string  `json:"slot_ids"`
	Count   int64     `json:"count"`
	At      time.Time `json:"at"`
}

type NATSPublisher struct {
	conn *nats.Conn
	log  *zap.Logger
}

func NewNATSPublisher(url string, log *zap.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("visitor-booking"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn, log: log.With(zap.String("publisher", "nats"))}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, subject string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.log.Debug("Publishing event", zap.String("subject", subject), zap.ByteString("data", payload))

	return p.conn.Publish(subject, payload)
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
