package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"plate-service/internal/config"
)

// ViolationEvent is published once a violation row has been written.
type ViolationEvent struct {
	ViolationID   string    `json:"violation_id"`
	VehicleID     string    `json:"vehicle_id,omitempty"`
	Plate         string    `json:"plate"`
	PlateKey      string    `json:"plate_key"`
	OwnerName     string    `json:"owner_name,omitempty"`
	ViolationType string    `json:"violation_type"`
	FineAmount    float64   `json:"fine_amount"`
	Location      string    `json:"location,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishViolation(ctx context.Context, event ViolationEvent) error
	Close()
}

// Nop drops every event. Used when NATS_URL is not set.
type Nop struct{}

func (Nop) PublishViolation(context.Context, ViolationEvent) error { return nil }
func (Nop) Close()                                                 {}

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	log     zerolog.Logger
}

// New connects to NATS, or returns Nop when no URL is configured.
func New(cfg config.NATSConfig, log zerolog.Logger) (Publisher, error) {
	if cfg.URL == "" {
		log.Info().Msg("NATS_URL not set, violation events disabled")
		return Nop{}, nil
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("plate-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Info().Str("url", conn.ConnectedUrl()).Str("subject", cfg.Subject).Msg("connected to NATS")
	return &NATSPublisher{conn: conn, subject: cfg.Subject, log: log}, nil
}

func (p *NATSPublisher) PublishViolation(ctx context.Context, event ViolationEvent) error {
	msg, err := newMessage(ctx, p.subject, event)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish violation: %w", err)
	}
	p.log.Debug().
		Str("subject", p.subject).
		Str("violation_id", event.ViolationID).
		Msg("violation event published")
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// newMessage encodes v as JSON and carries the trace context from ctx in the
// message headers.
func newMessage(ctx context.Context, subject string, v interface{}) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return msg, nil
}

type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
