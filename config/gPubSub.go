package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NotificationEnvelope is what goes on the wire for every order/inventory broadcast.
type NotificationEnvelope struct {
	BusinessId    string          `json:"business_id"`
	LocationId    int             `json:"location_id"`
	CorrelationId string          `json:"correlation_id,omitempty"`
	PublishedAt   time.Time       `json:"published_at"`
	Payload       json.RawMessage `json:"payload"`
}

func newEnvelope(payload any, businessId string, locationId int, correlationId string) (NotificationEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return NotificationEnvelope{}, err
	}
	return NotificationEnvelope{
		BusinessId:    businessId,
		LocationId:    locationId,
		CorrelationId: correlationId,
		PublishedAt:   time.Now().UTC(),
		Payload:       raw,
	}, nil
}

func getPubSubProjectID() string {
	if v := os.Getenv("PUBSUB_PROJECT_ID"); v != "" {
		return v
	}
	if v := os.Getenv("GOOGLE_CLOUD_PROJECT"); v != "" {
		return v
	}
	return os.Getenv("GCP_PROJECT")
}

// PubSubNotifier publishes notification envelopes to a single Pub/Sub topic.
// The client is created lazily on first publish and reused.
type PubSubNotifier struct {
	projectID string
	topicName string
	credJSON  string

	mu     sync.Mutex
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubNotifier(projectID, topicName string) *PubSubNotifier {
	return &PubSubNotifier{
		projectID: projectID,
		topicName: topicName,
		credJSON:  os.Getenv("PUBSUB_CREDENTIALS_JSON"),
	}
}

func (n *PubSubNotifier) getTopic(ctx context.Context) (*pubsub.Topic, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.topic != nil {
		return n.topic, nil
	}
	if n.projectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}
	if n.topicName == "" {
		return nil, errors.New("PUBSUB_NOTIFY_TOPIC is required")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if n.credJSON != "" {
		c, err = pubsub.NewClient(ctx, n.projectID, option.WithCredentialsJSON([]byte(n.credJSON)))
	} else {
		// Application Default Credentials.
		c, err = pubsub.NewClient(ctx, n.projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("init pubsub client (project_id=%s): %w", n.projectID, err)
	}
	n.client = c
	n.topic = c.Topic(n.topicName)
	// Notifications for one business are delivered in publish order.
	n.topic.EnableMessageOrdering = true
	log.Printf("pubsub notifier ready (project_id=%s topic=%s)", n.projectID, n.topicName)
	return n.topic, nil
}

func (n *PubSubNotifier) Notify(ctx context.Context, payload any, businessId string, locationId int) error {
	t, err := n.getTopic(ctx)
	if err != nil {
		return err
	}
	correlationId, _ := correlationIdFromContext(ctx)
	env, err := newEnvelope(payload, businessId, locationId, correlationId)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	result := t.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"business_id": businessId,
			"location_id": fmt.Sprint(locationId),
		},
		OrderingKey: businessId,
	})
	_, err = result.Get(ctx)
	return err
}

func (n *PubSubNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.topic != nil {
		n.topic.Stop()
		n.topic = nil
	}
	if n.client == nil {
		return nil
	}
	err := n.client.Close()
	n.client = nil
	return err
}
