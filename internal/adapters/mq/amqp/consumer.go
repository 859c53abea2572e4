// Package amqp turns "ingestion batch persisted" broker messages into replay
// requests.
package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/streadway/amqp"

	"github.com/okian/kayfabe/internal/adapters/mq/queue"
	"github.com/okian/kayfabe/internal/domain/model"
	"github.com/okian/kayfabe/pkg/logger"
	"github.com/okian/kayfabe/pkg/metrics"
)

// Defaults for the consumer.
const (
	DefaultQueue        = "kayfabe.batches"
	DefaultPrefetch     = 10
	defaultInitialDelay = time.Second
	defaultMaxDelay     = time.Minute
	backoffFactor       = 2
	heartbeat           = 60 * time.Second
)

// Message is the body published once an ingestion batch is persisted.
type Message struct {
	BatchID string `json:"batch_id"`
	Rebuild bool   `json:"rebuild"`
}

// Trigger accepts replay requests. It reports duplicates without error.
type Trigger interface {
	RequestReplay(ctx context.Context, r model.ReplayRequest) (bool, error)
}

// Consumer reads batch messages and hands them to a Trigger.
type Consumer struct {
	url          string
	queue        string
	prefetch     int
	initialDelay time.Duration
	maxDelay     time.Duration
	trigger      Trigger
	logger       logger.Logger

	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConsumer creates a consumer for the broker at url.
func NewConsumer(url string, trigger Trigger, opts ...Option) *Consumer {
	c := &Consumer{
		url:          url,
		queue:        DefaultQueue,
		prefetch:     DefaultPrefetch,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
		trigger:      trigger,
		logger:       logger.Get().Named("amqp"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decode parses a batch message into a replay request.
func Decode(body []byte, now time.Time) (model.ReplayRequest, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return model.ReplayRequest{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	id := strings.TrimSpace(msg.BatchID)
	if id == "" {
		return model.ReplayRequest{}, fmt.Errorf("%w: missing batch_id", ErrInvalidMessage)
	}
	return model.ReplayRequest{
		ID:          id,
		Rebuild:     msg.Rebuild,
		Source:      "amqp",
		RequestedAt: now,
	}, nil
}

// Run consumes until ctx is canceled, reconnecting with exponential backoff
// when the broker drops the connection.
func (c *Consumer) Run(ctx context.Context) error {
	delay := c.initialDelay
	for {
		deliveries, err := c.connectAndConsume()
		if err != nil {
			c.logger.Error(ctx, "broker connection failed",
				logger.Duration("retry_in", delay),
				logger.Error(err),
			)
			metrics.RecordErrorByComponent("amqp", "connect")
		} else {
			delay = c.initialDelay
			c.logger.Info(ctx, "consuming batch messages", logger.String("queue", c.queue))
			if c.consume(ctx, deliveries) {
				c.close()
				return nil
			}
			c.logger.Warn(ctx, "broker connection lost", logger.Duration("retry_in", delay))
		}
		c.close()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= backoffFactor
		if delay > c.maxDelay {
			delay = c.maxDelay
		}
	}
}

// consume returns true when ctx ended and false when the channel closed.
func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case d, ok := <-deliveries:
			if !ok {
				return false
			}
			c.Handle(ctx, d)
		}
	}
}

// Handle processes one delivery and acknowledges it. Malformed messages are
// dropped. A full replay queue acks the message: the replays already queued
// score every unscored match, including this batch's.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) { //nolint:gocritic // hugeParam: Delivery comes by value off the channel
	r, err := Decode(d.Body, time.Now())
	if err != nil {
		c.logger.Warn(ctx, "dropping batch message", logger.Error(err))
		metrics.RecordErrorByComponent("amqp", "invalid_message")
		c.ack(ctx, d.Nack(false, false))
		return
	}

	duplicate, err := c.trigger.RequestReplay(ctx, r)
	switch {
	case errors.Is(err, queue.ErrBackpressure):
		c.logger.Warn(ctx, "replay queue full, batch folded into pending replays",
			logger.String("batch_id", r.ID),
			logger.Bool("rebuild", r.Rebuild),
		)
		metrics.RecordErrorByComponent("amqp", "backpressure")
		c.ack(ctx, d.Ack(false))
	case err != nil:
		c.logger.Error(ctx, "replay request rejected",
			logger.String("batch_id", r.ID),
			logger.Error(err),
		)
		c.ack(ctx, d.Nack(false, false))
	default:
		c.logger.Debug(ctx, "batch message accepted",
			logger.String("batch_id", r.ID),
			logger.Bool("duplicate", duplicate),
		)
		c.ack(ctx, d.Ack(false))
	}
}

func (c *Consumer) ack(ctx context.Context, err error) {
	if err != nil {
		c.logger.Error(ctx, "acknowledge failed", logger.Error(err))
	}
}

func (c *Consumer) connectAndConsume() (<-chan amqp.Delivery, error) {
	conn, err := amqp.DialConfig(c.url, amqp.Config{Heartbeat: heartbeat, Locale: "en_US"})
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	c.conn = conn

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c.channel = ch

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set QoS: %w", err)
	}

	q, err := ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", c.queue, err)
	}

	deliveries, err := ch.Consume(
		q.Name,
		"kayfabe",
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", q.Name, err)
	}
	return deliveries, nil
}

func (c *Consumer) close() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
