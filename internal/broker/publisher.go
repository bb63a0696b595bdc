package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"fx-triangle-watch/internal/domain"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// SignalMessage is the wire form of one detection.
type SignalMessage struct {
	GroupID    uuid.UUID       `json:"group_id"`
	Rate       float64         `json:"rate"`
	DetectedAt time.Time       `json:"detected_at"`
	Legs       []SignalLegBody `json:"legs"`
}

type SignalLegBody struct {
	ID           int64            `json:"id,omitempty"`
	InstrumentID string           `json:"instrument_id"`
	Direction    domain.Direction `json:"direction"`
	Magnitude    float64          `json:"magnitude"`
	ValidForMS   int64            `json:"valid_for_ms"`
}

// Publisher fans arbitrage signals out to downstream consumers.
type Publisher struct {
	channel  Channel
	conn     *amqp.Connection
	exchange string
	logger   *logrus.Entry
	mu       sync.Mutex
}

func DialPublisher(url, exchange string, logger *logrus.Logger) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewPublisher(ch Channel, exchange string, logger *logrus.Logger) (*Publisher, error) {
	if exchange == "" {
		ch.Close()
		return nil, errors.New("exchange name cannot be empty")
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		logger:   logger.WithField("component", "signal_publisher"),
	}, nil
}

// PublishSignals sends one message per detection group.
func (p *Publisher) PublishSignals(ctx context.Context, signals []domain.ArbitrageSignal) error {
	var errs []error
	for _, msg := range groupSignals(signals) {
		if err := p.publish(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("publish group %s: %w", msg.GroupID, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) publish(ctx context.Context, msg SignalMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.GroupID.String(),
		Timestamp:    msg.DetectedAt,
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if err := p.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

func groupSignals(signals []domain.ArbitrageSignal) []SignalMessage {
	index := make(map[uuid.UUID]int)
	var out []SignalMessage
	for _, s := range signals {
		i, ok := index[s.GroupID]
		if !ok {
			i = len(out)
			index[s.GroupID] = i
			out = append(out, SignalMessage{GroupID: s.GroupID, Rate: s.Rate, DetectedAt: s.DetectedAt.UTC()})
		}
		out[i].Legs = append(out[i].Legs, SignalLegBody{
			ID:           s.ID,
			InstrumentID: s.InstrumentID,
			Direction:    s.Direction,
			Magnitude:    s.Magnitude,
			ValidForMS:   s.ValidFor.Milliseconds(),
		})
	}
	return out
}
