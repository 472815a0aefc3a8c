// Package eventbridge publishes carpool lifecycle events to an EventBridge
// bus so downstream consumers (notifications, analytics) can react without
// coupling to the reservation flow.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"carpool-backend/application/ports"
)

const eventSource = "carpool.backend"

// EventBridgeAPI is the subset of the EventBridge client the publisher uses.
type EventBridgeAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends lifecycle events to an EventBridge bus.
type Publisher struct {
	client  EventBridgeAPI
	busName string
	logger  *zap.Logger
}

// NewPublisher creates a new Publisher.
func NewPublisher(client EventBridgeAPI, busName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		busName: busName,
		logger:  logger,
	}
}

// Publish sends a single event. The event type becomes the EventBridge
// detail-type so rules can match on it directly.
func (p *Publisher) Publish(ctx context.Context, event ports.CarpoolEvent) error {
	detail, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.busName),
				Source:       aws.String(eventSource),
				DetailType:   aws.String(event.Type),
				Detail:       aws.String(string(detail)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put events: %w", err)
	}
	if out.FailedEntryCount > 0 {
		entry := out.Entries[0]
		return fmt.Errorf("event rejected: %s: %s",
			aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
	}

	p.logger.Debug("event published",
		zap.String("type", event.Type),
		zap.String("carpoolID", event.CarpoolID),
	)
	return nil
}
