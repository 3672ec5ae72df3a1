package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/openexchange-hq/quicktrade/pkg/model"
)

// Consumer consumes admin commands from RabbitMQ. The back office publishes
// quick trade config changes here; applying one updates the database and the
// live registry through the service.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	service ConfigService
	queue   string
	logger  *zap.Logger
	done    chan struct{}
}

// ConfigService applies quick trade configuration updates.
type ConfigService interface {
	UpdateQuickTradeConfig(ctx context.Context, cfg model.QuickTradeConfig) error
}

// NewConsumer creates a new RabbitMQ consumer bound to the admin command queue.
func NewConsumer(url, queue string, service ConfigService, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Consumer{
		conn:    conn,
		channel: channel,
		service: service,
		queue:   queue,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start starts consuming messages.
func (c *Consumer) Start(ctx context.Context) error {
	if _, err := c.channel.QueueDeclare(c.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", c.queue, err)
	}

	msgs, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", c.queue, err)
	}

	c.logger.Info("Started consuming from RabbitMQ", zap.String("queue", c.queue))

	go c.consumeConfigUpdates(ctx, msgs)

	return nil
}

func (c *Consumer) consumeConfigUpdates(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Config update channel closed")
				return
			}

			c.logger.Debug("Received config update message", zap.String("body", string(msg.Body)))

			var cfg model.QuickTradeConfig
			if err := json.Unmarshal(msg.Body, &cfg); err != nil {
				c.logger.Error("Failed to unmarshal QuickTradeConfig", zap.Error(err))
				msg.Nack(false, false)
				continue
			}

			if err := c.service.UpdateQuickTradeConfig(ctx, cfg); err != nil {
				c.logger.Error("Failed to apply config update",
					zap.String("symbol", cfg.Symbol),
					zap.Error(err))
				// Bad commands are dropped, not requeued; a malformed or
				// unknown-pair update never becomes valid by retrying.
				msg.Nack(false, false)
				continue
			}

			msg.Ack(false)
		}
	}
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	close(c.done)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
