// Package audit publishes user-activity events to Kafka. Publishing is
// best-effort: a broker outage never fails the request that produced the
// event.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"expense-bff/internal/client"
	"expense-bff/internal/models"
)

const (
	EventLoginRequested     = "login.requested"
	EventLoginSucceeded     = "login.succeeded"
	EventLoginFailed        = "login.failed"
	EventProfileUpdated     = "profile.updated"
	EventProviderLinked     = "provider.linked"
	EventProviderUnlinked   = "provider.unlinked"
	EventTokenRefreshed     = "provider.token_refreshed"
	EventKPIMeetingRecorded = "kpi.meeting_recorded"
)

// Event is one audit record on the user-activity topic, keyed by email so
// a user's history stays in partition order.
type Event struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Email      string `json:"email"`
	Provider   string `json:"provider,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// Publisher writes events through the shared Kafka producer. A nil
// Publisher or one built without a producer silently drops events, which
// is how the service runs with no brokers configured.
type Publisher struct {
	producer *client.KafkaProducer
	topic    string
	logger   *zap.Logger
}

func NewPublisher(producer *client.KafkaProducer, topic string, logger *zap.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Publish emits one event. Failures are logged, never returned.
func (p *Publisher) Publish(ctx context.Context, eventType, email string) {
	p.publish(ctx, eventType, email, "")
}

// PublishProvider emits one event tagged with the provider involved.
func (p *Publisher) PublishProvider(ctx context.Context, eventType, email string, provider models.Provider) {
	p.publish(ctx, eventType, email, string(provider))
}

func (p *Publisher) publish(ctx context.Context, eventType, email, provider string) {
	if p == nil || p.producer == nil {
		return
	}

	event := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Email:      email,
		Provider:   provider,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to encode audit event", zap.Error(err))
		return
	}

	if err := p.producer.ProduceMessage(ctx, p.topic, []byte(email), payload, nil); err != nil {
		p.logger.Warn("Failed to publish audit event",
			zap.String("type", eventType),
			zap.Error(err))
	}
}
