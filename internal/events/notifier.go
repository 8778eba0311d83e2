// Package events carries notifications over Kafka: the publisher side used by the application
// services and the consumer that stores them into users' feeds.
package events

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chillcar/service-booking/internal/domain/notification"
	"github.com/chillcar/service-booking/internal/platform/kafka"
)

const (
	// TopicNotifications is the default topic carrying one CloudEvent per addressed notification.
	TopicNotifications = "carservice.notifications"
	// EventNotificationCreated is the CloudEvent type of a notification message.
	EventNotificationCreated = "carservice.notification.created"

	eventSource = "service-booking"
)

// Publisher is the part of kafka.Producer the notifier needs.
type Publisher interface {
	PublishEvent(ctx context.Context, topic, key string, event kafka.CloudEvent) error
}

// KafkaNotifier publishes notifications to Kafka, keyed by recipient so each user's feed stays ordered.
type KafkaNotifier struct {
	producer Publisher
	topic    string
	logger   *zap.Logger
}

// NewKafkaNotifier creates a KafkaNotifier publishing to topic, or TopicNotifications when empty.
func NewKafkaNotifier(producer Publisher, topic string, logger *zap.Logger) *KafkaNotifier {
	if topic == "" {
		topic = TopicNotifications
	}
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}
}

// Notify publishes every message, continuing past individual failures.
func (n *KafkaNotifier) Notify(ctx context.Context, msgs ...notification.Message) error {
	var firstErr error
	for _, m := range msgs {
		ce, err := kafka.NewCloudEvent(eventSource, EventNotificationCreated, m)
		if err != nil {
			return err
		}
		if err := n.producer.PublishEvent(ctx, n.topic, m.UserID.String(), ce); err != nil {
			n.logger.Error("failed to publish notification",
				zap.String("user_id", m.UserID.String()),
				zap.String("type", string(m.Type)),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to publish notification %s: %w", m.ID, err)
			}
		}
	}
	return firstErr
}
