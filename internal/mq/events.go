package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quillpress/apiserver/types"
)

const attrEventType = "event_type"

// EventPublisher publishes domain events as JSON on a single topic.
type EventPublisher struct {
	mq    *MQ
	topic string
}

func NewEventPublisher(mq *MQ, topic string) *EventPublisher {
	return &EventPublisher{mq: mq, topic: topic}
}

// PublishEvent encodes event and publishes it with its type as an attribute
// so subscribers can filter without decoding.
func (p *EventPublisher) PublishEvent(ctx context.Context, event types.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := p.mq.Publish(ctx, p.topic, data, map[string]string{attrEventType: string(event.Type)}); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// SubscribeEvents decodes events from the topic and hands them to fn.
// Undecodable messages are acknowledged and skipped.
func (p *EventPublisher) SubscribeEvents(ctx context.Context, fn func(ctx context.Context, event types.Event) error) error {
	return p.mq.Subscribe(ctx, p.topic, func(ctx context.Context, msg Message) error {
		var event types.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			return nil
		}
		return fn(ctx, event)
	})
}
