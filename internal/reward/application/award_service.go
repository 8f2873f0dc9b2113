package application

import (
	"context"
	"errors"
	"log"
	"time"

	"lnwallet-cloud/internal/accounts"
	"lnwallet-cloud/internal/ledger"
	"lnwallet-cloud/internal/money"
	flowapplication "lnwallet-cloud/internal/paymentflow/application"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	reward "lnwallet-cloud/internal/reward/domain"
	settlement "lnwallet-cloud/internal/settlement/domain"
)

// QuoteService builds payment flow quotes.
type QuoteService interface {
	BuildQuote(ctx context.Context, req flowapplication.BuildRequest) (*paymentflow.Quote, error)
}

// SettleService executes quotes against the ledger.
type SettleService interface {
	Settle(ctx context.Context, quote *paymentflow.Quote) (*settlement.Record, error)
}

// RecordFinder looks up settlement records by idempotency key.
type RecordFinder interface {
	FindByKey(ctx context.Context, key string) (*settlement.Record, error)
}

// CarrierResolver looks up the carrier behind a phone number.
type CarrierResolver interface {
	GetCarrier(ctx context.Context, number string) (*accounts.PhoneMetadata, error)
}

// PhoneMetadataWriter persists carrier classifications on accounts.
type PhoneMetadataWriter interface {
	SavePhoneMetadata(ctx context.Context, accountID string, metadata *accounts.PhoneMetadata) error
}

// RewardGranted is emitted when a reward payout commits.
type RewardGranted struct {
	AccountID  string
	WalletID   string
	RewardID   string
	AmountSats uint64
	OccurredAt time.Time
}

// RewardPublisher emits reward granted events.
type RewardPublisher interface {
	PublishRewardGranted(ctx context.Context, event RewardGranted) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Outcome reports what Award did for the request.
type Outcome struct {
	Claim          reward.Claim
	Record         *settlement.Record
	AlreadyAwarded bool
}

// AwardService pays one-time onboarding rewards from the funder wallet.
type AwardService struct {
	directory accounts.Repository
	ledger    ledger.LedgerOfRecord
	quotes    QuoteService
	settler   SettleService
	claims    reward.ClaimStore
	records   RecordFinder
	schedule  reward.Schedule
	publisher RewardPublisher
	carriers  CarrierResolver
	metadata  PhoneMetadataWriter
	clock     Clock
	logger    *log.Logger
}

// AwardOption configures the service.
type AwardOption func(*AwardService)

// WithCarrierLookup backfills carrier metadata from the phone vendor
// for accounts verified before the classification was recorded, and
// persists what it finds.
func WithCarrierLookup(resolver CarrierResolver, writer PhoneMetadataWriter) AwardOption {
	return func(s *AwardService) {
		s.carriers = resolver
		s.metadata = writer
	}
}

// NewAwardService constructs the service.
func NewAwardService(
	directory accounts.Repository,
	ledgerOfRecord ledger.LedgerOfRecord,
	quotes QuoteService,
	settler SettleService,
	claims reward.ClaimStore,
	records RecordFinder,
	schedule reward.Schedule,
	publisher RewardPublisher,
	clock Clock,
	logger *log.Logger,
	opts ...AwardOption,
) (*AwardService, error) {
	if directory == nil {
		return nil, errors.New("award service: nil account directory")
	}
	if ledgerOfRecord == nil {
		return nil, errors.New("award service: nil ledger")
	}
	if quotes == nil {
		return nil, errors.New("award service: nil quote service")
	}
	if settler == nil {
		return nil, errors.New("award service: nil settle service")
	}
	if claims == nil {
		return nil, errors.New("award service: nil claim store")
	}
	if records == nil {
		return nil, errors.New("award service: nil record finder")
	}
	if len(schedule.RewardsSats) == 0 {
		return nil, errors.New("award service: empty reward schedule")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = log.Default()
	}
	service := &AwardService{
		directory: directory,
		ledger:    ledgerOfRecord,
		quotes:    quotes,
		settler:   settler,
		claims:    claims,
		records:   records,
		schedule:  schedule,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Award pays the reward to the account at most once. The claim insert
// is the sole concurrency gate: eligibility checks are advisory and may
// race, but only the caller that inserts the claim settles the payout.
// A failed settlement deletes the claim so the reward can be retried.
func (s *AwardService) Award(ctx context.Context, accountID, rewardID string) (*Outcome, error) {
	account, err := s.directory.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.PhoneMetadata == nil {
		metadata, err := s.backfillCarrier(ctx, account)
		if err != nil {
			return nil, err
		}
		account.PhoneMetadata = metadata
	}
	if account.PhoneMetadata.Carrier.Type == accounts.CarrierTypeVoip {
		return nil, reward.ErrNonValidCarrierType
	}

	amountSats, ok := s.schedule.AmountSats(rewardID)
	if !ok {
		return nil, reward.ErrUnknownReward
	}
	amount, err := money.New(amountSats, money.BTC)
	if err != nil {
		return nil, err
	}

	recipientWallet, err := s.recipientWallet(ctx, account)
	if err != nil {
		return nil, err
	}

	funderWalletID, err := s.ledger.FunderWalletID(ctx)
	if err != nil {
		return nil, err
	}
	funderBalance, err := s.ledger.BalanceForWallet(ctx, funderWalletID)
	if err != nil {
		return nil, err
	}
	if cmp, err := funderBalance.Cmp(amount); err != nil {
		return nil, err
	} else if cmp < 0 {
		return nil, reward.ErrInsufficientFunderBalance
	}

	quote, err := s.quotes.BuildQuote(ctx, flowapplication.BuildRequest{
		SenderWalletID:    funderWalletID,
		RecipientWalletID: recipientWallet.ID,
		Amount:            amount,
		Description:       "reward: " + rewardID,
	})
	if errors.Is(err, paymentflow.ErrInsufficientBalance) {
		return nil, reward.ErrInsufficientFunderBalance
	}
	if err != nil {
		return nil, err
	}

	claim, inserted, err := s.claims.Insert(ctx, reward.Claim{
		AccountID:      accountID,
		RewardID:       rewardID,
		IdempotencyKey: quote.IdempotencyKey(),
		AwardedAt:      s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A held claim whose settlement finalized failed, e.g. by the
		// reconciliation sweep, never paid out; release it and contend
		// for a fresh claim.
		released, err := s.releaseFailedClaim(ctx, claim)
		if err != nil {
			return nil, err
		}
		if !released {
			return &Outcome{Claim: *claim, AlreadyAwarded: true}, nil
		}
		claim, inserted, err = s.claims.Insert(ctx, reward.Claim{
			AccountID:      accountID,
			RewardID:       rewardID,
			IdempotencyKey: quote.IdempotencyKey(),
			AwardedAt:      s.clock.Now(),
		})
		if err != nil {
			return nil, err
		}
		if !inserted {
			return &Outcome{Claim: *claim, AlreadyAwarded: true}, nil
		}
	}

	record, err := s.settler.Settle(ctx, quote)
	if err != nil {
		if unresolved(err) {
			// The transfer may still land; the claim stays so a retry
			// cannot double-pay while reconciliation runs.
			s.logger.Printf("reward settlement unresolved: account=%s reward=%s err=%v", accountID, rewardID, err)
			return &Outcome{Claim: *claim, Record: record}, err
		}
		// Definitive failure: release the claim so the account can try
		// again.
		if deleteErr := s.claims.Delete(ctx, accountID, rewardID); deleteErr != nil {
			s.logger.Printf("reward claim release failed: account=%s reward=%s err=%v", accountID, rewardID, deleteErr)
		}
		return nil, err
	}

	if s.publisher != nil {
		event := RewardGranted{
			AccountID:  accountID,
			WalletID:   recipientWallet.ID,
			RewardID:   rewardID,
			AmountSats: amountSats,
			OccurredAt: s.clock.Now(),
		}
		if err := s.publisher.PublishRewardGranted(ctx, event); err != nil {
			s.logger.Printf("reward granted event dropped: account=%s reward=%s err=%v", accountID, rewardID, err)
		}
	}
	s.logger.Printf("reward granted: account=%s reward=%s amount_sats=%d receipt=%s",
		accountID, rewardID, amountSats, record.ReceiptID)
	return &Outcome{Claim: *claim, Record: record}, nil
}

// releaseFailedClaim deletes a claim whose settlement record finalized
// failed, so the reward stays payable. A claim with no record yet
// belongs to a payout still in flight between claim and settle and
// must not be touched.
func (s *AwardService) releaseFailedClaim(ctx context.Context, claim *reward.Claim) (bool, error) {
	record, err := s.records.FindByKey(ctx, claim.IdempotencyKey)
	if errors.Is(err, settlement.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if record.Status != settlement.StatusFailed {
		return false, nil
	}
	if err := s.claims.Delete(ctx, claim.AccountID, claim.RewardID); err != nil {
		return false, err
	}
	s.logger.Printf("reward claim released after failed settlement: account=%s reward=%s key=%s",
		claim.AccountID, claim.RewardID, claim.IdempotencyKey)
	return true, nil
}

// backfillCarrier resolves and persists carrier metadata for accounts
// that verified a phone before the classification was captured.
func (s *AwardService) backfillCarrier(ctx context.Context, account *accounts.Account) (*accounts.PhoneMetadata, error) {
	if s.carriers == nil || account.Phone == "" {
		return nil, reward.ErrMissingPhoneMetadata
	}
	metadata, err := s.carriers.GetCarrier(ctx, account.Phone)
	if err != nil {
		return nil, err
	}
	if s.metadata != nil {
		if err := s.metadata.SavePhoneMetadata(ctx, account.ID, metadata); err != nil {
			s.logger.Printf("carrier metadata save failed: account=%s err=%v", account.ID, err)
		}
	}
	return metadata, nil
}

// recipientWallet picks the account's BTC wallet.
func (s *AwardService) recipientWallet(ctx context.Context, account *accounts.Account) (*accounts.Wallet, error) {
	for _, walletID := range account.WalletIDs {
		wallet, err := s.directory.FindWalletByID(ctx, walletID)
		if err != nil {
			return nil, err
		}
		if wallet.Currency == money.BTC {
			return wallet, nil
		}
	}
	return nil, reward.ErrNoWalletExists
}

func unresolved(err error) bool {
	return errors.Is(err, ledger.ErrUnresolved) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
