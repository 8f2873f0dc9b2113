package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	accountsrepo "lnwallet-cloud/internal/accounts/postgres"
	apihttp "lnwallet-cloud/internal/api/http"
	"lnwallet-cloud/internal/audit"
	"lnwallet-cloud/internal/auth"
	"lnwallet-cloud/internal/eventing"
	eventingrepo "lnwallet-cloud/internal/eventing/infrastructure/postgres"
	ledgerrepo "lnwallet-cloud/internal/ledger/postgres"
	"lnwallet-cloud/internal/observability/metrics"
	flowapp "lnwallet-cloud/internal/paymentflow/application"
	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
	flowrepo "lnwallet-cloud/internal/paymentflow/infrastructure/postgres"
	"lnwallet-cloud/internal/phone/twilio"
	"lnwallet-cloud/internal/pricing"
	rewardapp "lnwallet-cloud/internal/reward/application"
	rewardrepo "lnwallet-cloud/internal/reward/infrastructure/postgres"
	rewardinterfaces "lnwallet-cloud/internal/reward/interfaces"
	settlementapp "lnwallet-cloud/internal/settlement/application"
	settlementrepo "lnwallet-cloud/internal/settlement/infrastructure/postgres"
	settlementinterfaces "lnwallet-cloud/internal/settlement/interfaces"
	settlementnotify "lnwallet-cloud/internal/settlement/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	auditRepo := audit.NewRepository(db)

	directory := accountsrepo.NewRepository(db)
	ownerChecker := auth.NewOwnerChecker(directory)
	ledgerOfRecord := ledgerrepo.NewLedger(db)

	rateProvider, err := buildRateProvider(cfg)
	if err != nil {
		logger.Fatalf("rate provider error: %v", err)
	}

	feeSchedule, err := flowapp.LoadFeeSchedule(cfg.FeeSchedulePath)
	if err != nil {
		logger.Fatalf("fee schedule error: %v", err)
	}
	feePolicy, err := paymentflow.NewBasisPointsFeePolicy(feeSchedule)
	if err != nil {
		logger.Fatalf("fee policy error: %v", err)
	}

	quotes, err := flowrepo.NewQuoteRepository(db)
	if err != nil {
		logger.Fatalf("quote repository error: %v", err)
	}
	quoteBuilder, err := flowapp.NewQuoteBuilder(directory, rateProvider, ledgerOfRecord, feePolicy, quotes, cfg.QuoteTTL, nil, logger)
	if err != nil {
		logger.Fatalf("quote builder error: %v", err)
	}

	bus := eventing.NewInProcessBus()
	registry := eventing.NewRegistry()
	registry.Register(settlementapp.PaymentSettled{})
	registry.Register(rewardapp.RewardGranted{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(bus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher)

	eventing.Subscribe(bus, eventing.TypeName(settlementapp.PaymentSettled{}), "settlement.log", func(ctx context.Context, event any) error {
		if evt, ok := event.(settlementapp.PaymentSettled); ok {
			logger.Printf("payment settled: key=%s rail=%s amount=%d %s",
				evt.IdempotencyKey, evt.Rail, evt.AmountMinor, evt.Currency)
		}
		return nil
	}, processedStore)
	eventing.Subscribe(bus, eventing.TypeName(rewardapp.RewardGranted{}), "reward.log", func(ctx context.Context, event any) error {
		if evt, ok := event.(rewardapp.RewardGranted); ok {
			logger.Printf("reward granted: account=%s reward=%s amount_sats=%d",
				evt.AccountID, evt.RewardID, evt.AmountSats)
		}
		return nil
	}, processedStore)

	records, err := settlementrepo.NewRecordStore(db)
	if err != nil {
		logger.Fatalf("record store error: %v", err)
	}
	settler, err := settlementapp.NewSettler(records, ledgerOfRecord,
		settlementinterfaces.NewOutboxPublisher(publisher), cfg.FeeWalletID, nil, logger)
	if err != nil {
		logger.Fatalf("settler error: %v", err)
	}

	var sweeperOpts []settlementapp.SweeperOption
	if cfg.ReconWebhookURL != "" {
		sweeperOpts = append(sweeperOpts,
			settlementapp.WithSweepNotifier(settlementnotify.NewWebhookNotifier(cfg.ReconWebhookURL)))
	}
	sweeper, err := settlementapp.NewSweeper(records, ledgerOfRecord, cfg.SweepGrace, cfg.SweepBatchSize, nil, logger, sweeperOpts...)
	if err != nil {
		logger.Fatalf("sweeper error: %v", err)
	}
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			finalized, err := sweeper.Sweep(context.Background())
			if err != nil {
				logger.Printf("reconciliation sweep failed: %v", err)
				continue
			}
			metrics.ObserveSweep(finalized)
		}
	}()
	go func() {
		ticker := time.NewTicker(cfg.QuoteGCInterval)
		defer ticker.Stop()
		for range ticker.C {
			removed, err := quotes.DeleteExpired(context.Background(), time.Now().UTC())
			if err != nil {
				logger.Printf("quote gc failed: %v", err)
				continue
			}
			if removed > 0 {
				logger.Printf("quote gc: removed=%d", removed)
			}
		}
	}()

	rewardSchedule, err := rewardapp.LoadSchedule(cfg.RewardSchedulePath)
	if err != nil {
		logger.Fatalf("reward schedule error: %v", err)
	}
	claims, err := rewardrepo.NewClaimStore(db)
	if err != nil {
		logger.Fatalf("claim store error: %v", err)
	}
	var awardOpts []rewardapp.AwardOption
	if cfg.TwilioAccountSID != "" {
		carrierLookup, err := twilio.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
			cfg.TwilioVerifySID, twilio.WithLogger(logger))
		if err != nil {
			logger.Fatalf("twilio client error: %v", err)
		}
		awardOpts = append(awardOpts, rewardapp.WithCarrierLookup(carrierLookup, directory))
	}
	awards, err := rewardapp.NewAwardService(directory, ledgerOfRecord, quoteBuilder, settler, claims,
		records, rewardSchedule, rewardinterfaces.NewOutboxPublisher(publisher), nil, logger, awardOpts...)
	if err != nil {
		logger.Fatalf("award service error: %v", err)
	}

	router := apihttp.NewRouter(apihttp.RouterConfig{
		Quotes:     quoteBuilder,
		QuoteStore: quotes,
		Settler:    settler,
		Records:    records,
		Awards:     awards,
		Owners:     ownerChecker,
		Auditor:    auditRepo,
		DB:         db,
		JWTSecret:  []byte(cfg.JWTSecret),
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(router, logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

func buildRateProvider(cfg config) (pricing.RateProvider, error) {
	var opts []pricing.HTTPOption
	if cfg.RateToken != "" {
		opts = append(opts, pricing.WithToken(cfg.RateToken))
	}
	source, err := pricing.NewHTTPRateProvider(cfg.RateURL, opts...)
	if err != nil {
		return nil, err
	}
	cached, err := pricing.NewCachedRateProvider(source, cfg.RateCacheTTL, nil)
	if err != nil {
		return nil, err
	}
	return pricing.NewFreshnessCheckedProvider(cached, cfg.RateFreshness, nil)
}

type config struct {
	DatabaseURL        string
	HTTPAddr           string
	JWTSecret          string
	FeeWalletID        string
	FeeSchedulePath    string
	RewardSchedulePath string
	RateURL            string
	RateToken          string
	RateCacheTTL       time.Duration
	RateFreshness      time.Duration
	QuoteTTL           time.Duration
	QuoteGCInterval    time.Duration
	SweepInterval      time.Duration
	SweepGrace         time.Duration
	SweepBatchSize     int
	ReconWebhookURL    string
	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioVerifySID    string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:        getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:           getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:          getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		FeeWalletID:        getenvDefault("FEE_WALLET_ID", ""),
		FeeSchedulePath:    getenvDefault("FEE_SCHEDULE_PATH", "config/fees.yaml"),
		RewardSchedulePath: getenvDefault("REWARD_SCHEDULE_PATH", "config/rewards.yaml"),
		RateURL:            getenvDefault("RATE_SERVICE_URL", ""),
		RateToken:          getenvDefault("RATE_SERVICE_TOKEN", ""),
		RateCacheTTL:       getenvDuration("RATE_CACHE_TTL", 5*time.Second),
		RateFreshness:      getenvDuration("RATE_FRESHNESS_WINDOW", 30*time.Second),
		QuoteTTL:           getenvDuration("QUOTE_TTL", 2*time.Minute),
		QuoteGCInterval:    getenvDuration("QUOTE_GC_INTERVAL", 10*time.Minute),
		SweepInterval:      getenvDuration("SWEEP_INTERVAL", time.Minute),
		SweepGrace:         getenvDuration("SWEEP_GRACE", 5*time.Minute),
		SweepBatchSize:     getenvIntDefault("SWEEP_BATCH_SIZE", 100),
		ReconWebhookURL:    getenvDefault("RECON_WEBHOOK_URL", ""),
		TwilioAccountSID:   getenvDefault("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getenvDefault("TWILIO_AUTH_TOKEN", ""),
		TwilioVerifySID:    getenvDefault("TWILIO_VERIFY_SERVICE_SID", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.RateURL == "" {
		log.Fatal("RATE_SERVICE_URL is required")
	}
	if cfg.FeeWalletID == "" {
		log.Fatal("FEE_WALLET_ID is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
