package interfaces

import (
	"context"

	"lnwallet-cloud/internal/eventing"
	"lnwallet-cloud/internal/settlement/application"
)

// OutboxPublisher writes payment settled events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishPaymentSettled writes the event to the outbox.
func (p *OutboxPublisher) PublishPaymentSettled(ctx context.Context, event application.PaymentSettled) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	ctx = eventing.WithAccountID(ctx, event.AccountID)
	return p.publisher.Publish(ctx, event)
}
