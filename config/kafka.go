package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/pos_backend/appctx"
	"github.com/segmentio/kafka-go"
)

// KafkaNotifier writes notification envelopes to a Kafka topic keyed by business id,
// so one tenant's notifications stay on one partition.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
		},
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, payload any, businessId string, locationId int) error {
	correlationId, _ := correlationIdFromContext(ctx)
	env, err := newEnvelope(payload, businessId, locationId, correlationId)
	if err != nil {
		return fmt.Errorf("failed to build notification envelope: %w", err)
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(businessId),
		Value: value,
		Time:  env.PublishedAt,
		Headers: []kafka.Header{
			{Key: "location-id", Value: []byte(fmt.Sprint(locationId))},
		},
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write notification to kafka: %w", err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// Notifier is satisfied by every broadcast transport.
type Notifier interface {
	Notify(ctx context.Context, payload any, businessId string, locationId int) error
	Close() error
}

// NewNotifierFromEnv builds the transport selected by NOTIFY_TRANSPORT.
// Returns nil for "none".
func NewNotifierFromEnv() Notifier {
	switch NotificationTransport() {
	case NotifyTransportPubSub:
		return NewPubSubNotifier(getPubSubProjectID(), os.Getenv("PUBSUB_NOTIFY_TOPIC"))
	case NotifyTransportKafka:
		brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
		topic := os.Getenv("KAFKA_NOTIFY_TOPIC")
		if topic == "" {
			topic = "pos.order-events"
		}
		return NewKafkaNotifier(brokers, topic)
	default:
		return nil
	}
}

func correlationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}
