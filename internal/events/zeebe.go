package events

import (
	"context"
	"time"
)

// MessageClient publishes correlated workflow messages; implemented by camunda.Client.
type MessageClient interface {
	PublishMessage(ctx context.Context, name, correlationKey, messageID string, ttl time.Duration, variables interface{}) error
}

// ZeebePublisher forwards events to a BPMN process as messages correlated by request id.
type ZeebePublisher struct {
	client      MessageClient
	messageName string
	ttl         time.Duration
}

func NewZeebePublisher(client MessageClient, messageName string, ttl time.Duration) *ZeebePublisher {
	return &ZeebePublisher{client: client, messageName: messageName, ttl: ttl}
}

func (p *ZeebePublisher) Publish(ctx context.Context, e StatusChanged) error {
	vars := map[string]interface{}{
		"requestId": e.RequestID,
		"action":    e.Action,
		"status":    string(e.To),
		"previous":  string(e.From),
		"actor":     e.Actor,
	}
	return p.client.PublishMessage(ctx, p.messageName, e.Key(), e.EventID, p.ttl, vars)
}
