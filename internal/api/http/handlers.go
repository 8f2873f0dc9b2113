// Package apihttp exposes the payment pipeline over JSON HTTP.
package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"lnwallet-cloud/internal/accounts"
	"lnwallet-cloud/internal/audit"
	"lnwallet-cloud/internal/auth"
	"lnwallet-cloud/internal/ledger"
	"lnwallet-cloud/internal/money"
	"lnwallet-cloud/internal/observability/metrics"
	flowapplication "lnwallet-cloud/internal/paymentflow/application"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	"lnwallet-cloud/internal/pricing"
	rewardapp "lnwallet-cloud/internal/reward/application"
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

// AwardService pays one-time rewards.
type AwardService interface {
	Award(ctx context.Context, accountID, rewardID string) (*rewardapp.Outcome, error)
}

type quoteRequest struct {
	SenderWalletID    string  `json:"sender_wallet_id"`
	RecipientWalletID string  `json:"recipient_wallet_id,omitempty"`
	Rail              string  `json:"rail,omitempty"`
	PaymentHash       string  `json:"payment_hash,omitempty"`
	AmountMinor       uint64  `json:"amount_minor"`
	Currency          string  `json:"currency"`
	AgreedCents       *uint64 `json:"agreed_cents,omitempty"`
	Description       string  `json:"description,omitempty"`
	CachedRoute       []byte  `json:"cached_route,omitempty"`
}

type quoteResponse struct {
	ID             string    `json:"id"`
	Rail           string    `json:"rail"`
	IdempotencyKey string    `json:"idempotency_key"`
	BtcAmount      uint64    `json:"btc_amount_sats"`
	UsdAmount      uint64    `json:"usd_amount_cents"`
	BtcFee         uint64    `json:"btc_fee_sats"`
	UsdFee         uint64    `json:"usd_fee_cents"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type recordResponse struct {
	IdempotencyKey string     `json:"idempotency_key"`
	QuoteID        string     `json:"quote_id"`
	Status         string     `json:"status"`
	ReceiptID      string     `json:"receipt_id,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CommittedAt    *time.Time `json:"committed_at,omitempty"`
}

func toQuoteResponse(quote *paymentflow.Quote) quoteResponse {
	return quoteResponse{
		ID:             quote.ID(),
		Rail:           string(quote.Rail()),
		IdempotencyKey: quote.IdempotencyKey(),
		BtcAmount:      quote.BtcAmount().Amount(),
		UsdAmount:      quote.UsdAmount().Amount(),
		BtcFee:         quote.BtcProtocolAndBankFee().Amount(),
		UsdFee:         quote.UsdProtocolAndBankFee().Amount(),
		Description:    quote.Description(),
		CreatedAt:      quote.CreatedAt(),
		ExpiresAt:      quote.ExpiresAt(),
	}
}

func toRecordResponse(record *settlement.Record) recordResponse {
	resp := recordResponse{
		IdempotencyKey: record.IdempotencyKey,
		QuoteID:        record.QuoteID,
		Status:         string(record.Status),
		ReceiptID:      record.ReceiptID,
		FailureReason:  record.FailureReason,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
	if !record.CommittedAt.IsZero() {
		committedAt := record.CommittedAt
		resp.CommittedAt = &committedAt
	}
	return resp
}

// QuotesHandler serves POST /api/v1/quotes.
type QuotesHandler struct {
	quotes QuoteService
	owners auth.WalletOwnerChecker
}

// NewQuotesHandler constructs a QuotesHandler.
func NewQuotesHandler(quotes QuoteService, owners auth.WalletOwnerChecker) *QuotesHandler {
	return &QuotesHandler{quotes: quotes, owners: owners}
}

func (h *QuotesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.quotes == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SenderWalletID == "" {
		http.Error(w, "sender_wallet_id is required", http.StatusBadRequest)
		return
	}

	if err := h.checkOwner(r, req.SenderWalletID); err != nil {
		writeError(w, err)
		return
	}

	amount, err := money.New(req.AmountMinor, money.Currency(req.Currency))
	if err != nil {
		writeError(w, err)
		return
	}

	started := time.Now()
	quote, err := h.quotes.BuildQuote(r.Context(), flowapplication.BuildRequest{
		SenderWalletID:    req.SenderWalletID,
		RecipientWalletID: req.RecipientWalletID,
		Rail:              paymentflow.Rail(req.Rail),
		PaymentHash:       req.PaymentHash,
		Amount:            amount,
		AgreedCents:       req.AgreedCents,
		Description:       req.Description,
		CachedRoute:       req.CachedRoute,
	})
	if err != nil {
		metrics.ObserveQuote(req.Rail, metrics.ResultError, time.Since(started))
		writeError(w, err)
		return
	}
	metrics.ObserveQuote(string(quote.Rail()), metrics.ResultSuccess, time.Since(started))

	writeJSON(w, http.StatusCreated, toQuoteResponse(quote))
}

func (h *QuotesHandler) checkOwner(r *http.Request, walletID string) error {
	if h.owners == nil {
		return nil
	}
	// Support and admin callers may quote on behalf of any wallet.
	if auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RoleSupport) {
		return nil
	}
	accountID := auth.AccountIDFromContext(r.Context())
	if accountID == "" {
		return nil
	}
	return h.owners.EnsureWalletOwner(r.Context(), accountID, walletID)
}

type paymentRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

// PaymentsHandler serves POST /api/v1/payments: it settles a previously
// built quote, at most once per idempotency key.
type PaymentsHandler struct {
	quotes  paymentflow.Repository
	settler SettleService
	auditor audit.Logger
}

// NewPaymentsHandler constructs a PaymentsHandler.
func NewPaymentsHandler(quotes paymentflow.Repository, settler SettleService, auditor audit.Logger) *PaymentsHandler {
	return &PaymentsHandler{quotes: quotes, settler: settler, auditor: auditor}
}

func (h *PaymentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.quotes == nil || h.settler == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.IdempotencyKey == "" {
		http.Error(w, "idempotency_key is required", http.StatusBadRequest)
		return
	}

	quote, err := h.quotes.FindByIdempotencyKey(r.Context(), req.IdempotencyKey)
	if err != nil {
		writeError(w, err)
		return
	}

	started := time.Now()
	record, err := h.settler.Settle(r.Context(), quote)
	outcome := outcomeFor(record, err)
	metrics.ObserveSettlement(string(quote.Rail()), outcome, time.Since(started))
	h.logAudit(r, quote, record, err)

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, toRecordResponse(record))
	case unresolved(err):
		// The outcome is unknown; the record stays pending until the
		// reconciliation sweep decides.
		writeJSON(w, http.StatusAccepted, toRecordResponse(record))
	case record != nil:
		writeJSON(w, statusFor(err), toRecordResponse(record))
	default:
		writeError(w, err)
	}
}

func (h *PaymentsHandler) logAudit(r *http.Request, quote *paymentflow.Quote, record *settlement.Record, err error) {
	if h.auditor == nil {
		return
	}
	entry := audit.Entry{
		AccountID:    auth.AccountIDFromContext(r.Context()),
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "payment.settle",
		ResourceType: "settlement_record",
		ResourceID:   quote.IdempotencyKey(),
		WalletID:     quote.SenderWalletID(),
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if record != nil {
		entry.Metadata, _ = json.Marshal(map[string]string{
			"status":   string(record.Status),
			"quote_id": record.QuoteID,
		})
	} else if err != nil {
		entry.Metadata, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	_ = h.auditor.Log(r.Context(), entry)
}

func outcomeFor(record *settlement.Record, err error) string {
	if unresolved(err) {
		return metrics.OutcomePending
	}
	if record == nil {
		return metrics.OutcomeFailed
	}
	switch record.Status {
	case settlement.StatusCommitted:
		return metrics.OutcomeCommitted
	case settlement.StatusFailed:
		return metrics.OutcomeFailed
	default:
		return metrics.OutcomePending
	}
}

type rewardRequest struct {
	AccountID string `json:"account_id,omitempty"`
	RewardID  string `json:"reward_id"`
}

type rewardResponse struct {
	AccountID      string          `json:"account_id"`
	RewardID       string          `json:"reward_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	AlreadyAwarded bool            `json:"already_awarded"`
	Record         *recordResponse `json:"record,omitempty"`
}

// RewardsHandler serves POST /api/v1/rewards.
type RewardsHandler struct {
	awards  AwardService
	auditor audit.Logger
}

// NewRewardsHandler constructs a RewardsHandler.
func NewRewardsHandler(awards AwardService, auditor audit.Logger) *RewardsHandler {
	return &RewardsHandler{awards: awards, auditor: auditor}
}

func (h *RewardsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.awards == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RewardID == "" {
		http.Error(w, "reward_id is required", http.StatusBadRequest)
		return
	}

	accountID := auth.AccountIDFromContext(r.Context())
	// Only support and admin may award on behalf of another account.
	if req.AccountID != "" && req.AccountID != accountID {
		if !auth.RoleAtLeast(auth.RoleFromContext(r.Context()), auth.RoleSupport) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		accountID = req.AccountID
	}
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	outcome, err := h.awards.Award(r.Context(), accountID, req.RewardID)
	h.logAudit(r, accountID, req.RewardID, outcome, err)
	if err != nil {
		if unresolved(err) && outcome != nil {
			metrics.IncReward(metrics.OutcomePending)
			writeJSON(w, http.StatusAccepted, toRewardResponse(outcome))
			return
		}
		metrics.IncReward(metrics.OutcomeFailed)
		writeError(w, err)
		return
	}
	if outcome.AlreadyAwarded {
		metrics.IncReward(metrics.OutcomeDuplicate)
	} else {
		metrics.IncReward(metrics.OutcomeCommitted)
	}
	writeJSON(w, http.StatusOK, toRewardResponse(outcome))
}

func toRewardResponse(outcome *rewardapp.Outcome) rewardResponse {
	resp := rewardResponse{
		AccountID:      outcome.Claim.AccountID,
		RewardID:       outcome.Claim.RewardID,
		IdempotencyKey: outcome.Claim.IdempotencyKey,
		AlreadyAwarded: outcome.AlreadyAwarded,
	}
	if outcome.Record != nil {
		record := toRecordResponse(outcome.Record)
		resp.Record = &record
	}
	return resp
}

func (h *RewardsHandler) logAudit(r *http.Request, accountID, rewardID string, outcome *rewardapp.Outcome, err error) {
	if h.auditor == nil {
		return
	}
	entry := audit.Entry{
		AccountID:    accountID,
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "reward.award",
		ResourceType: "reward_claim",
		ResourceID:   rewardID,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	meta := map[string]string{}
	if outcome != nil {
		meta["idempotency_key"] = outcome.Claim.IdempotencyKey
		if outcome.AlreadyAwarded {
			meta["already_awarded"] = "true"
		}
	}
	if err != nil {
		meta["error"] = err.Error()
	}
	entry.Metadata, _ = json.Marshal(meta)
	_ = h.auditor.Log(r.Context(), entry)
}

// SettlementLookupHandler serves GET /api/v1/settlements/{key}.
type SettlementLookupHandler struct {
	records settlement.RecordStore
}

// NewSettlementLookupHandler constructs a SettlementLookupHandler.
func NewSettlementLookupHandler(records settlement.RecordStore) *SettlementLookupHandler {
	return &SettlementLookupHandler{records: records}
}

func (h *SettlementLookupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.records == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/api/v1/settlements/")
	if key == "" || strings.Contains(key, "/") {
		http.Error(w, "settlement key is required", http.StatusBadRequest)
		return
	}
	record, err := h.records.FindByKey(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(record))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func unresolved(err error) bool {
	return errors.Is(err, ledger.ErrUnresolved) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, accounts.ErrAccountNotFound),
		errors.Is(err, accounts.ErrWalletNotFound),
		errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, paymentflow.ErrQuoteNotFound),
		errors.Is(err, settlement.ErrRecordNotFound),
		errors.Is(err, reward.ErrUnknownReward),
		errors.Is(err, auth.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrWalletMismatch):
		return http.StatusForbidden
	case errors.Is(err, paymentflow.ErrInvalidAmount),
		errors.Is(err, paymentflow.ErrInsufficientQuoteData),
		errors.Is(err, paymentflow.ErrRailIdentity),
		errors.Is(err, paymentflow.ErrUnknownRail),
		errors.Is(err, money.ErrInvalidCurrency):
		return http.StatusBadRequest
	case errors.Is(err, paymentflow.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, reward.ErrInsufficientFunderBalance),
		errors.Is(err, reward.ErrMissingPhoneMetadata),
		errors.Is(err, reward.ErrNonValidCarrierType),
		errors.Is(err, reward.ErrNoWalletExists):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlement.ErrQuoteExpired):
		return http.StatusGone
	case errors.Is(err, pricing.ErrStaleRate),
		errors.Is(err, pricing.ErrRateUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
