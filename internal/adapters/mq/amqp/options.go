package amqp

import (
	"time"

	"github.com/okian/kayfabe/pkg/logger"
)

// Option applies a configuration option to the Consumer.
type Option func(*Consumer)

// WithQueue sets the queue to consume from.
func WithQueue(name string) Option {
	return func(c *Consumer) {
		if name != "" {
			c.queue = name
		}
	}
}

// WithPrefetch sets the channel prefetch count.
func WithPrefetch(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// WithReconnectDelay sets the initial and maximum reconnect backoff.
func WithReconnectDelay(initial, maxDelay time.Duration) Option {
	return func(c *Consumer) {
		if initial > 0 {
			c.initialDelay = initial
		}
		if maxDelay >= c.initialDelay {
			c.maxDelay = maxDelay
		}
	}
}

// WithLogger sets a custom logger for the consumer.
func WithLogger(l logger.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}
