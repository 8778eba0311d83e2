package events

import (
	"context"
	"errors"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/domain"
	"github.com/chillcar/service-booking/internal/platform/kafka"
)

// Deliverer stores a notification message in its recipient's feed.
type Deliverer interface {
	Deliver(ctx context.Context, m notification.Message) error
}

// NotificationConsumer reads the notification topic and stores each message.
type NotificationConsumer struct {
	consumer *kafka.Consumer
	deliver  Deliverer
	logger   *zap.Logger
}

// NewNotificationConsumer creates a new NotificationConsumer.
func NewNotificationConsumer(
	brokers []string,
	groupID, topic string,
	deliver Deliverer,
	logger *zap.Logger,
) *NotificationConsumer {
	if topic == "" {
		topic = TopicNotifications
	}
	return &NotificationConsumer{
		consumer: kafka.NewConsumer(brokers, groupID, topic, logger),
		deliver:  deliver,
		logger:   logger,
	}
}

// Start begins consuming notifications. This blocks until the context is cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *NotificationConsumer) Close() error {
	return c.consumer.Close()
}

func (c *NotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	return c.handle(ctx, msg.Value)
}

// handle returns nil for anything that can never succeed, so the offset moves past it.
func (c *NotificationConsumer) handle(ctx context.Context, value []byte) error {
	ce, err := kafka.ParseCloudEvent(value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from notification topic",
			zap.Error(err),
			zap.String("raw", string(value)),
		)
		return nil
	}

	if ce.Type != EventNotificationCreated {
		c.logger.Debug("ignoring unhandled notification event type", zap.String("type", ce.Type))
		return nil
	}

	var m notification.Message
	if err := ce.ParseData(&m); err != nil {
		c.logger.Error("failed to parse notification message", zap.Error(err))
		return nil
	}

	if err := c.deliver.Deliver(ctx, m); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.logger.Warn("dropping undeliverable notification",
				zap.String("event_id", ce.ID),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	return nil
}
