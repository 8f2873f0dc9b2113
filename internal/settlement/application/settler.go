package application

import (
	"context"
	"errors"
	"log"
	"time"

	"lnwallet-cloud/internal/ledger"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	settlement "lnwallet-cloud/internal/settlement/domain"
)

// PaymentSettled is emitted when a settlement commits.
type PaymentSettled struct {
	IdempotencyKey string
	QuoteID        string
	ReceiptID      string
	SenderWalletID string
	AccountID      string
	Rail           string
	AmountMinor    uint64
	Currency       string
	OccurredAt     time.Time
}

// SettlementPublisher emits payment settled events.
type SettlementPublisher interface {
	PublishPaymentSettled(ctx context.Context, event PaymentSettled) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Settler executes quotes against the ledger of record with at-most-once
// semantics per idempotency key.
type Settler struct {
	records     settlement.RecordStore
	ledger      ledger.LedgerOfRecord
	publisher   SettlementPublisher
	feeWalletID string
	clock       Clock
	logger      *log.Logger
}

// NewSettler constructs the settler. feeWalletID names the bank wallet
// that collects fees; empty drops the fee leg.
func NewSettler(
	records settlement.RecordStore,
	ledgerOfRecord ledger.LedgerOfRecord,
	publisher SettlementPublisher,
	feeWalletID string,
	clock Clock,
	logger *log.Logger,
) (*Settler, error) {
	if records == nil {
		return nil, errors.New("settler: nil record store")
	}
	if ledgerOfRecord == nil {
		return nil, errors.New("settler: nil ledger")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Settler{
		records:     records,
		ledger:      ledgerOfRecord,
		publisher:   publisher,
		feeWalletID: feeWalletID,
		clock:       clock,
		logger:      logger,
	}, nil
}

// Settle executes the quote. The pending-record insert is the sole
// concurrency gate: the caller that inserts it performs the transfer,
// every other caller gets the existing record back untouched. A failed
// record is superseded and retried; an ambiguous ledger outcome leaves
// the record pending for the reconciliation sweep.
func (s *Settler) Settle(ctx context.Context, quote *paymentflow.Quote) (*settlement.Record, error) {
	if quote == nil {
		return nil, settlement.ErrNilQuote
	}
	key := quote.IdempotencyKey()
	now := s.clock.Now()

	record, inserted, err := s.records.InsertPending(ctx, key, quote.ID(), now)
	if err != nil {
		return nil, err
	}
	if !inserted {
		if record.Status != settlement.StatusFailed {
			return record, nil
		}
		record, err = s.records.ResetFailed(ctx, key, quote.ID(), now)
		if errors.Is(err, settlement.ErrStatusConflict) {
			// Another retry got there first; report its record.
			return s.records.FindByKey(ctx, key)
		}
		if err != nil {
			return nil, err
		}
	}

	if quote.Expired(now) {
		if err := s.records.MarkFailed(ctx, key, "quote expired", now); err != nil {
			return nil, err
		}
		record.Status = settlement.StatusFailed
		record.FailureReason = "quote expired"
		return record, settlement.ErrQuoteExpired
	}

	receipt, err := s.ledger.Transfer(ctx, instructionFor(quote, s.feeWalletID))
	if err != nil {
		if unresolved(err) {
			// Outcome unknown: the transfer may or may not be on the
			// ledger. The record stays pending until reconciled.
			s.logger.Printf("settlement unresolved: key=%s quote=%s err=%v", key, quote.ID(), err)
			return record, err
		}
		reason := err.Error()
		if markErr := s.records.MarkFailed(ctx, key, reason, s.clock.Now()); markErr != nil {
			return nil, markErr
		}
		record.Status = settlement.StatusFailed
		record.FailureReason = reason
		return record, err
	}

	committedAt := s.clock.Now()
	if err := s.records.MarkCommitted(ctx, key, receipt.ID, committedAt); err != nil {
		// The transfer is on the ledger; the sweep will finish the
		// bookkeeping from the receipt.
		s.logger.Printf("settlement commit bookkeeping deferred: key=%s receipt=%s err=%v", key, receipt.ID, err)
		return record, nil
	}
	record.Status = settlement.StatusCommitted
	record.ReceiptID = receipt.ID
	record.CommittedAt = committedAt
	record.UpdatedAt = committedAt

	if s.publisher != nil {
		amount, _ := quote.AmountsInSenderCurrency()
		event := PaymentSettled{
			IdempotencyKey: key,
			QuoteID:        quote.ID(),
			ReceiptID:      receipt.ID,
			SenderWalletID: quote.SenderWalletID(),
			AccountID:      quote.SenderAccountID(),
			Rail:           string(quote.Rail()),
			AmountMinor:    amount.Amount(),
			Currency:       string(amount.Currency()),
			OccurredAt:     committedAt,
		}
		if err := s.publisher.PublishPaymentSettled(ctx, event); err != nil {
			s.logger.Printf("payment settled event dropped: key=%s err=%v", key, err)
		}
	}
	return record, nil
}

func instructionFor(quote *paymentflow.Quote, feeWalletID string) ledger.Instruction {
	amount, fee := quote.AmountsInSenderCurrency()
	instruction := ledger.Instruction{
		IdempotencyKey: quote.IdempotencyKey(),
		FromWalletID:   quote.SenderWalletID(),
		FeeWalletID:    feeWalletID,
		Amount:         amount,
		Fee:            fee,
	}
	if quote.Rail() == paymentflow.RailIntraLedger {
		instruction.ToWalletID = quote.RecipientWalletID()
		// The recipient is credited in its own wallet currency at the
		// quote's frozen rate.
		instruction.CreditAmount = quote.AmountInRecipientCurrency()
	} else {
		instruction.ExternalRail = string(quote.Rail())
	}
	return instruction
}

// unresolved reports whether the transfer error leaves the ledger
// outcome unknown.
func unresolved(err error) bool {
	return errors.Is(err, ledger.ErrUnresolved) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
