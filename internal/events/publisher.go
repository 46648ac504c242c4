package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Event is the dispatch notification envelope. Delivery to end users is
// someone else's job; this service only emits to the exchange.
type Event struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	RequestID    string    `json:"request_id,omitempty"`
	JobID        string    `json:"job_id,omitempty"`
	TechnicianID string    `json:"technician_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	log      zerolog.Logger
}

func New(url, exchange string, logger zerolog.Logger) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, exchange: exchange, log: logger}, nil
}

// Publish is nil-safe so wiring without a broker costs nothing, and a
// broker hiccup never fails the dispatch operation that emitted it.
func (p *Publisher) Publish(ctx context.Context, key string, e Event) {
	if p == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	ch, err := p.conn.Channel()
	if err != nil {
		p.log.Error().Err(err).Str("key", key).Msg("event channel open failed")
		return
	}
	defer ch.Close()

	body, err := json.Marshal(e)
	if err != nil {
		p.log.Error().Err(err).Str("key", key).Msg("event marshal failed")
		return
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		MessageId:    e.ID,
		Timestamp:    e.OccurredAt,
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
	if err != nil {
		p.log.Error().Err(err).Str("key", key).Msg("event publish failed")
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	_ = p.conn.Close()
}
