package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/enums"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
)

// Publisher emits domain events for external consumers (sync layer, receipts).
type Publisher interface {
	Emit(ctx context.Context, eventType enums.EventType, data any)
}

var errProjectIDRequired = errors.New("gcp project id is required")

// PubSubPublisher publishes envelopes to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logg      *logger.Logger
}

// NewPubSubPublisher creates a Pub/Sub v2 client bound to the domain topic.
func NewPubSubPublisher(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*PubSubPublisher, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	if strings.TrimSpace(cfg.DomainTopic) == "" {
		return nil, errors.New("pubsub domain topic is required")
	}

	client, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, err
	}

	if logg != nil {
		logg.Info(ctx, "pubsub publisher initialized")
	}

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(cfg.DomainTopic),
		logg:      logg,
	}, nil
}

// Emit publishes the envelope without awaiting the result. Failures surface
// asynchronously in the logs only.
func (p *PubSubPublisher) Emit(ctx context.Context, eventType enums.EventType, data any) {
	envelope := NewEnvelope(eventType, data)
	payload, err := json.Marshal(envelope)
	if err != nil {
		if p.logg != nil {
			p.logg.Error(ctx, "event payload marshal failed", err)
		}
		return
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": string(eventType),
			"event_id":   envelope.EventID,
		},
	})

	go func() {
		if _, err := result.Get(context.Background()); err != nil && p.logg != nil {
			fields := map[string]any{"event_type": eventType, "event_id": envelope.EventID}
			p.logg.Error(p.logg.WithFields(context.Background(), fields), "event publish failed", err)
		}
	}()
}

// Close releases the underlying Pub/Sub client.
func (p *PubSubPublisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// LogPublisher records events in the service log. It is the publisher of
// record when eventing is disabled.
type LogPublisher struct {
	logg *logger.Logger
}

// NewLogPublisher wires a log-only publisher.
func NewLogPublisher(logg *logger.Logger) *LogPublisher {
	return &LogPublisher{logg: logg}
}

func (p *LogPublisher) Emit(ctx context.Context, eventType enums.EventType, data any) {
	if p.logg == nil {
		return
	}
	ctx = p.logg.WithField(ctx, "event_type", eventType)
	p.logg.Info(ctx, "domain event emitted")
}
