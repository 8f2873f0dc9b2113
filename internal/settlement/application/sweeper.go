package application

import (
	"context"
	"errors"
	"log"
	"time"

	"lnwallet-cloud/internal/ledger"
	settlement "lnwallet-cloud/internal/settlement/domain"
	"lnwallet-cloud/internal/settlement/notify"
)

// Sweeper reconciles pending settlement records against the ledger of
// record. A pending record with a receipt on the ledger becomes
// committed; one with no receipt after the grace period becomes failed.
type Sweeper struct {
	records   settlement.RecordStore
	ledger    ledger.LedgerOfRecord
	grace     time.Duration
	batchSize int
	clock     Clock
	logger    *log.Logger
	notifier  notify.Notifier
}

// SweeperOption configures the sweeper.
type SweeperOption func(*Sweeper)

// WithSweepNotifier sends an alert for every record the sweep finalizes.
func WithSweepNotifier(notifier notify.Notifier) SweeperOption {
	return func(s *Sweeper) {
		s.notifier = notifier
	}
}

// NewSweeper constructs the sweeper. grace is how long a pending record
// may sit before the sweep judges it; records younger than that may
// still be in flight.
func NewSweeper(
	records settlement.RecordStore,
	ledgerOfRecord ledger.LedgerOfRecord,
	grace time.Duration,
	batchSize int,
	clock Clock,
	logger *log.Logger,
	opts ...SweeperOption,
) (*Sweeper, error) {
	if records == nil {
		return nil, errors.New("sweeper: nil record store")
	}
	if ledgerOfRecord == nil {
		return nil, errors.New("sweeper: nil ledger")
	}
	if grace <= 0 {
		return nil, errors.New("sweeper: non-positive grace period")
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	sweeper := &Sweeper{
		records:   records,
		ledger:    ledgerOfRecord,
		grace:     grace,
		batchSize: batchSize,
		clock:     clock,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(sweeper)
	}
	return sweeper, nil
}

// Run sweeps on the interval until the context ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Printf("reconciliation sweep failed: %v", err)
			}
		}
	}
}

// Sweep reconciles one batch of overdue pending records and returns how
// many it finalized.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.clock.Now()
	pending, err := s.records.ListPendingOlderThan(ctx, now.Add(-s.grace), s.batchSize)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for _, record := range pending {
		receipt, err := s.ledger.ReceiptByKey(ctx, record.IdempotencyKey)
		switch {
		case err == nil:
			if err := s.records.MarkCommitted(ctx, record.IdempotencyKey, receipt.ID, s.clock.Now()); err != nil {
				s.logger.Printf("sweep commit failed: key=%s err=%v", record.IdempotencyKey, err)
				continue
			}
			s.logger.Printf("sweep committed: key=%s receipt=%s", record.IdempotencyKey, receipt.ID)
			s.alert(ctx, record, string(settlement.StatusCommitted), receipt.ID, "")
			finalized++
		case errors.Is(err, ledger.ErrReceiptNotFound):
			if err := s.records.MarkFailed(ctx, record.IdempotencyKey, "no ledger receipt after grace period", s.clock.Now()); err != nil {
				s.logger.Printf("sweep fail-mark failed: key=%s err=%v", record.IdempotencyKey, err)
				continue
			}
			s.logger.Printf("sweep failed: key=%s", record.IdempotencyKey)
			s.alert(ctx, record, string(settlement.StatusFailed), "", "no ledger receipt after grace period")
			finalized++
		default:
			// Ledger unreachable; leave the record for the next sweep.
			s.logger.Printf("sweep skipped: key=%s err=%v", record.IdempotencyKey, err)
		}
	}
	return finalized, nil
}

func (s *Sweeper) alert(ctx context.Context, record settlement.Record, outcome, receiptID, reason string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notify.Alert{
		IdempotencyKey: record.IdempotencyKey,
		QuoteID:        record.QuoteID,
		Outcome:        outcome,
		ReceiptID:      receiptID,
		Reason:         reason,
		SweptAt:        s.clock.Now().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Printf("sweep alert dropped: key=%s err=%v", record.IdempotencyKey, err)
	}
}
