// Package publish fans accepted content out on NATS as it is stored.
package publish

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pevans/newsharvest/filter"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

// DefaultSubject is the subject accepted items are published on.
const DefaultSubject = "newsharvest.content.accepted"

// Store is the content store being decorated.
type Store interface {
	Exists(ctx context.Context, hash string) (bool, error)
	Save(ctx context.Context, c *filter.ScoredContent) (string, error)
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher saves through the wrapped store and, once a save succeeds,
// publishes the item as JSON. Publishing is best effort: a failure is logged
// and does not undo or fail the save.
type Publisher struct {
	store   Store
	conn    Conn
	subject string
	logger  zerolog.Logger
}

// New creates a Publisher. An empty subject uses DefaultSubject.
func New(store Store, conn Conn, subject string, logger zerolog.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{store: store, conn: conn, subject: subject, logger: logger}
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("newsharvest"),
		nats.MaxReconnects(-1),
	)
}

// Exists delegates to the wrapped store.
func (p *Publisher) Exists(ctx context.Context, hash string) (bool, error) {
	return p.store.Exists(ctx, hash)
}

// Save stores c and then publishes it.
func (p *Publisher) Save(ctx context.Context, c *filter.ScoredContent) (string, error) {
	id, err := p.store.Save(ctx, c)
	if err != nil {
		return "", err
	}

	if err := p.publish(ctx, c); err != nil {
		p.logger.Warn().
			Err(err).
			Str("target", c.TargetName).
			Str("hash", c.ContentHash).
			Msg("Failed to publish accepted content")
	}
	return id, nil
}

// publish serializes c and injects the trace context from ctx into the
// message headers.
func (p *Publisher) publish(ctx context.Context, c *filter.ScoredContent) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(msg.Header))
	return p.conn.PublishMsg(msg)
}

// headerCarrier adapts nats.Header to the OpenTelemetry TextMapCarrier.
type headerCarrier nats.Header

func (c headerCarrier) Get(key string) string {
	return nats.Header(c).Get(key)
}

func (c headerCarrier) Set(key, val string) {
	nats.Header(c).Set(key, val)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
