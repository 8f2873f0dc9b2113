package interfaces

import (
	"context"
	"errors"
	"log"

	"lnwallet-cloud/internal/settlement/application"
)

// LoggingPublisher logs payment settled events.
type LoggingPublisher struct {
	logger *log.Logger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger *log.Logger) *LoggingPublisher {
	if logger == nil {
		logger = log.Default()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishPaymentSettled logs the event.
func (p *LoggingPublisher) PublishPaymentSettled(ctx context.Context, event application.PaymentSettled) error {
	_ = ctx
	if p == nil {
		return errors.New("settlement publisher: nil publisher")
	}
	p.logger.Printf("payment settled: key=%s quote=%s receipt=%s rail=%s amount=%d %s",
		event.IdempotencyKey, event.QuoteID, event.ReceiptID, event.Rail, event.AmountMinor, event.Currency)
	return nil
}
