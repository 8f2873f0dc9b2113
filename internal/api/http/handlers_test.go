package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lnwallet-cloud/internal/accounts"
	accountsmem "lnwallet-cloud/internal/accounts/memory"
	"lnwallet-cloud/internal/auth"
	ledgermem "lnwallet-cloud/internal/ledger/memory"
	"lnwallet-cloud/internal/money"
	flowapplication "lnwallet-cloud/internal/paymentflow/application"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	flowmem "lnwallet-cloud/internal/paymentflow/infrastructure/memory"
	"lnwallet-cloud/internal/pricing"
	setapp "lnwallet-cloud/internal/settlement/application"
	setmem "lnwallet-cloud/internal/settlement/infrastructure/memory"
)

var testSecret = []byte("test-secret")

type serverFixture struct {
	handler http.Handler
	ledger  *ledgermem.Ledger
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	directory := accountsmem.NewRepository()
	directory.PutAccount(&accounts.Account{ID: "acct-alice", Tier: accounts.TierStandard, WalletIDs: []string{"wallet-alice"}})
	directory.PutAccount(&accounts.Account{ID: "acct-bob", Tier: accounts.TierStandard, WalletIDs: []string{"wallet-bob"}})
	directory.PutWallet(&accounts.Wallet{ID: "wallet-alice", AccountID: "acct-alice", Currency: money.BTC})
	directory.PutWallet(&accounts.Wallet{ID: "wallet-bob", AccountID: "acct-bob", Currency: money.BTC})

	led := ledgermem.NewLedger()
	led.CreateWallet("wallet-alice", money.MustNew(100_000, money.BTC))
	led.CreateWallet("wallet-bob", money.MustNew(0, money.BTC))
	led.CreateWallet("wallet-bank", money.MustNew(0, money.BTC))

	schedule := paymentflow.FeeSchedule{
		Rails: map[paymentflow.Rail]paymentflow.RailFees{
			paymentflow.RailIntraLedger: {DefaultBps: 100},
			paymentflow.RailLightning:   {DefaultBps: 100},
			paymentflow.RailOnChain:     {DefaultBps: 100},
		},
	}
	policy, err := paymentflow.NewBasisPointsFeePolicy(schedule)
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}
	rates, err := pricing.NewFixedRateProvider(6_000_000, 100_000_000, pricing.SystemClock{})
	if err != nil {
		t.Fatalf("rate provider: %v", err)
	}

	logger := log.New(io.Discard, "", 0)
	quotes := flowmem.NewQuoteRepository()
	builder, err := flowapplication.NewQuoteBuilder(directory, rates, led, policy, quotes, 2*time.Minute, nil, logger)
	if err != nil {
		t.Fatalf("builder: %v", err)
	}

	records := setmem.NewRecordStore()
	settler, err := setapp.NewSettler(records, led, nil, "wallet-bank", nil, logger)
	if err != nil {
		t.Fatalf("settler: %v", err)
	}

	handler := NewRouter(RouterConfig{
		Quotes:     builder,
		QuoteStore: quotes,
		Settler:    settler,
		Records:    records,
		Owners:     auth.NewOwnerChecker(directory),
		JWTSecret:  testSecret,
	})
	return &serverFixture{handler: handler, ledger: led}
}

func signToken(t *testing.T, accountID, role string) string {
	t.Helper()
	claims := auth.Claims{
		AccountID: accountID,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-" + accountID,
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestQuoteAndPaymentEndToEnd(t *testing.T) {
	fx := newServerFixture(t)
	token := signToken(t, "acct-alice", "user")

	resp := doJSON(t, fx.handler, http.MethodPost, "/api/v1/quotes", token, quoteRequest{
		SenderWalletID:    "wallet-alice",
		RecipientWalletID: "wallet-bob",
		AmountMinor:       50_000,
		Currency:          "BTC",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("quote status mismatch: got=%d want=%d body=%s", resp.Code, http.StatusCreated, resp.Body.String())
	}
	var quote quoteResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.IdempotencyKey == "" || quote.Rail != "intraledger" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.BtcFee != 500 {
		t.Fatalf("fee mismatch: got=%d want=500", quote.BtcFee)
	}

	resp = doJSON(t, fx.handler, http.MethodPost, "/api/v1/payments", token, paymentRequest{IdempotencyKey: quote.IdempotencyKey})
	if resp.Code != http.StatusOK {
		t.Fatalf("payment status mismatch: got=%d body=%s", resp.Code, resp.Body.String())
	}
	var record recordResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.Status != "committed" || record.ReceiptID == "" {
		t.Fatalf("unexpected record: %+v", record)
	}

	// Replaying the same key must not move funds again.
	resp = doJSON(t, fx.handler, http.MethodPost, "/api/v1/payments", token, paymentRequest{IdempotencyKey: quote.IdempotencyKey})
	if resp.Code != http.StatusOK {
		t.Fatalf("replay status mismatch: got=%d body=%s", resp.Code, resp.Body.String())
	}
	var replay recordResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &replay); err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if replay.ReceiptID != record.ReceiptID {
		t.Fatalf("replay receipt mismatch: got=%s want=%s", replay.ReceiptID, record.ReceiptID)
	}

	bobBalance, err := fx.ledger.BalanceForWallet(context.Background(), "wallet-bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bobBalance.Amount() != 50_000 {
		t.Fatalf("recipient balance mismatch: got=%d want=50000", bobBalance.Amount())
	}

	support := signToken(t, "acct-support", "support")
	resp = doJSON(t, fx.handler, http.MethodGet, "/api/v1/settlements/"+quote.IdempotencyKey, support, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("lookup status mismatch: got=%d body=%s", resp.Code, resp.Body.String())
	}
}

func TestQuoteRejectsForeignWallet(t *testing.T) {
	fx := newServerFixture(t)
	token := signToken(t, "acct-bob", "user")

	resp := doJSON(t, fx.handler, http.MethodPost, "/api/v1/quotes", token, quoteRequest{
		SenderWalletID:    "wallet-alice",
		RecipientWalletID: "wallet-bob",
		AmountMinor:       1_000,
		Currency:          "BTC",
	})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestPaymentUnknownKey(t *testing.T) {
	fx := newServerFixture(t)
	token := signToken(t, "acct-alice", "user")

	resp := doJSON(t, fx.handler, http.MethodPost, "/api/v1/payments", token, paymentRequest{IdempotencyKey: "no-such-key"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestHealthzExempt(t *testing.T) {
	fx := newServerFixture(t)
	resp := doJSON(t, fx.handler, http.MethodGet, "/healthz", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}
