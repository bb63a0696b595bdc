package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"fx-triangle-watch/internal/domain"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type ConsumerConfig struct {
	URL      string
	Exchange string
	Prefetch int
}

// TickConsumer reads ticks published by an upstream collector on a fanout
// exchange and forwards them to the pipeline.
type TickConsumer struct {
	cfg    ConsumerConfig
	logger *logrus.Entry
}

func NewTickConsumer(cfg ConsumerConfig, logger *logrus.Logger) (*TickConsumer, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if cfg.Exchange == "" {
		return nil, errors.New("tick exchange is required")
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 64
	}
	return &TickConsumer{cfg: cfg, logger: logger.WithField("component", "tick_consumer")}, nil
}

func (c *TickConsumer) Name() string {
	return "rabbitmq:" + c.cfg.Exchange
}

// Run blocks until ctx is done or the broker closes the delivery channel.
func (c *TickConsumer) Run(ctx context.Context, out chan<- domain.Tick) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", c.cfg.Exchange, err)
	}
	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue.Name, "", c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue.Name, c.cfg.Exchange, err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(queue.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consume: %w", err)
	}

	c.logger.WithField("exchange", c.cfg.Exchange).Info("tick consumer started")
	return c.consume(ctx, deliveries, out)
}

func (c *TickConsumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery, out chan<- domain.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			tick, err := decodeTick(delivery.Body)
			if err != nil {
				c.logger.WithError(err).Warn("dropping malformed tick")
				_ = delivery.Reject(false)
				continue
			}
			select {
			case out <- tick:
			case <-ctx.Done():
				_ = delivery.Nack(false, true)
				return ctx.Err()
			}
			if err := delivery.Ack(false); err != nil {
				c.logger.WithError(err).Warn("failed to ack delivery")
			}
		}
	}
}

func decodeTick(body []byte) (domain.Tick, error) {
	var tick domain.Tick
	if err := json.Unmarshal(body, &tick); err != nil {
		return domain.Tick{}, fmt.Errorf("decode payload: %w", err)
	}
	if strings.TrimSpace(tick.Symbol) == "" {
		return domain.Tick{}, errors.New("tick symbol is empty")
	}
	if tick.Kind == "" {
		tick.Kind = domain.TickQuote
	}
	return tick, nil
}
