package apihttp

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lnwallet-cloud/internal/audit"
	"lnwallet-cloud/internal/auth"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	settlement "lnwallet-cloud/internal/settlement/domain"
)

// RouterConfig carries the services the router exposes.
type RouterConfig struct {
	Quotes     QuoteService
	QuoteStore paymentflow.Repository
	Settler    SettleService
	Records    settlement.RecordStore
	Awards     AwardService
	Owners     auth.WalletOwnerChecker
	Auditor    audit.Logger
	DB         *sql.DB

	JWTSecret []byte
}

// NewRouter assembles the HTTP surface: payment endpoints behind JWT
// auth plus unauthenticated health and metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/api/v1/quotes", NewQuotesHandler(cfg.Quotes, cfg.Owners))
	mux.Handle("/api/v1/payments", NewPaymentsHandler(cfg.QuoteStore, cfg.Settler, cfg.Auditor))
	mux.Handle("/api/v1/rewards", NewRewardsHandler(cfg.Awards, cfg.Auditor))
	mux.Handle("/api/v1/settlements/", NewSettlementLookupHandler(cfg.Records))
	mux.Handle("/api/v1/statements/", NewStatementsHandler(cfg.DB))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	middleware := auth.NewMiddleware(cfg.JWTSecret, policy)
	return middleware.Wrap(mux)
}
