package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

type NATSConfig struct {
	URL           string
	Subject       string
	Name          string
	ReconnectWait time.Duration
	MaxReconnects int
}

// NATSPublisher publishes each message on <subject>.<kind>.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.Subject == "" {
		cfg.Subject = "rubyscore.events"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = nats.DefaultMaxReconnect
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: cfg.Subject}, nil
}

func (p *NATSPublisher) Name() string { return "nats" }

// Publish flushes before returning; ctx must carry a deadline.
func (p *NATSPublisher) Publish(ctx context.Context, msgs []Message) error {
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := p.conn.Publish(subjectFor(p.subject, m), data); err != nil {
			return fmt.Errorf("publish seq %d: %w", m.Seq, err)
		}
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

func subjectFor(base string, m Message) string {
	return base + "." + m.Subject()
}
