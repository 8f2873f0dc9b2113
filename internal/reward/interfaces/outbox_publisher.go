package interfaces

import (
	"context"

	"lnwallet-cloud/internal/eventing"
	"lnwallet-cloud/internal/reward/application"
)

// OutboxPublisher writes reward granted events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishRewardGranted writes the event to the outbox.
func (p *OutboxPublisher) PublishRewardGranted(ctx context.Context, event application.RewardGranted) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithAccountID(ctx, event.AccountID)
	return p.publisher.Publish(ctx, event)
}
