package apihttp

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"lnwallet-cloud/internal/observability/metrics"
	"lnwallet-cloud/internal/settlement/interfaces"
)

// StatementsHandler serves GET /api/v1/statements/{walletID}/export.{pdf|xlsx}.
// Statements are built straight from the ledger receipts, so they show
// exactly what the ledger retained.
type StatementsHandler struct {
	db *sql.DB
}

// NewStatementsHandler constructs a StatementsHandler.
func NewStatementsHandler(db *sql.DB) *StatementsHandler {
	return &StatementsHandler{db: db}
}

func (h *StatementsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	walletID, format, ok := parseStatementPath(r.URL.Path)
	if !ok {
		http.Error(w, "expected /api/v1/statements/{wallet_id}/export.{pdf|xlsx}", http.StatusBadRequest)
		return
	}

	month, err := parseMonthQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	started := time.Now()
	stmt, lines, err := h.buildStatement(r.Context(), walletID, month)
	if err != nil {
		metrics.ObserveStatementExport(format, metrics.ResultError, time.Since(started))
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "wallet not found", http.StatusNotFound)
			return
		}
		http.Error(w, "statement query error", http.StatusInternalServerError)
		return
	}

	var payload []byte
	var contentType string
	switch format {
	case "pdf":
		payload, err = interfaces.BuildStatementPDF(stmt, lines)
		contentType = "application/pdf"
	case "xlsx":
		payload, err = interfaces.BuildStatementXLSX(stmt, lines)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if err != nil {
		metrics.ObserveStatementExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, "statement render error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveStatementExport(format, metrics.ResultSuccess, time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		`attachment; filename="statement-`+walletID+`-`+month.Format("2006-01")+`.`+format+`"`)
	_, _ = w.Write(payload)
}

func (h *StatementsHandler) buildStatement(ctx context.Context, walletID string, month time.Time) (*interfaces.Statement, []interfaces.StatementLine, error) {
	var accountID, currency string
	err := h.db.QueryRowContext(ctx,
		`SELECT account_id, currency FROM wallets WHERE id = $1`, walletID,
	).Scan(&accountID, &currency)
	if err != nil {
		return nil, nil, err
	}

	monthEnd := month.AddDate(0, 1, 0)
	rows, err := h.db.QueryContext(ctx, `
SELECT id, COALESCE(external_rail, ''), amount_minor, fee_minor, created_at
FROM ledger_receipts
WHERE from_wallet_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at ASC`, walletID, month, monthEnd)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	stmt := &interfaces.Statement{
		AccountID:   accountID,
		WalletID:    walletID,
		Month:       month,
		Currency:    currency,
		GeneratedAt: time.Now().UTC(),
	}
	var lines []interfaces.StatementLine
	for rows.Next() {
		var line interfaces.StatementLine
		var rail string
		if err := rows.Scan(&line.ReceiptID, &rail, &line.AmountMinor, &line.FeeMinor, &line.SettledAt); err != nil {
			return nil, nil, err
		}
		if rail == "" {
			rail = "intraledger"
		}
		line.Rail = rail
		line.SettledAt = line.SettledAt.UTC()
		stmt.TotalOutMinor += line.AmountMinor
		stmt.TotalFeesMinor += line.FeeMinor
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return stmt, lines, nil
}

func parseStatementPath(path string) (walletID, format string, ok bool) {
	rest := strings.TrimPrefix(path, "/api/v1/statements/")
	if rest == path {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	switch parts[1] {
	case "export.pdf":
		return parts[0], "pdf", true
	case "export.xlsx":
		return parts[0], "xlsx", true
	}
	return "", "", false
}

// parseMonthQuery reads the month parameter, defaulting to the current
// month.
func parseMonthQuery(r *http.Request) (time.Time, error) {
	value := r.URL.Query().Get("month")
	if value == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	}
	parsed, err := time.Parse("2006-01", value)
	if err != nil {
		return time.Time{}, errors.New("month must be formatted YYYY-MM")
	}
	return parsed, nil
}
