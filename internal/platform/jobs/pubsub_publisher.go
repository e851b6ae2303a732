// Package jobs contains publishers that hand editor lifecycle events off to
// asynchronous consumers.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/mprint/editor/internal/services"
)

// PubSubSaveEventPublisher publishes design save events to a Pub/Sub topic.
type PubSubSaveEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSaveEventPublisher constructs a Pub/Sub backed save event publisher.
func NewPubSubSaveEventPublisher(topic *pubsub.Topic) (*PubSubSaveEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub save event publisher: topic is required")
	}
	return &PubSubSaveEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSaveEvent enqueues a save event message on the configured topic.
func (p *PubSubSaveEventPublisher) PublishSaveEvent(ctx context.Context, event services.SaveEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub save event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal save event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "sessionId", event.SessionID)
	setAttr(attrs, "designId", event.DesignID)
	setAttr(attrs, "orientation", event.Orientation)
	setAttr(attrs, "shape", event.Shape)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish save event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
