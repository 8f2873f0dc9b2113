// Package memory holds in-memory repositories used by tests and local
// development runs.
package memory

import (
	"context"
	"sync"
	"time"

	paymentflow "lnwallet-cloud/internal/paymentflow/domain"
)

// QuoteRepository is an in-memory quote store keyed by idempotency key.
type QuoteRepository struct {
	mu     sync.RWMutex
	quotes map[string]*paymentflow.Quote
}

// NewQuoteRepository constructs an empty repository.
func NewQuoteRepository() *QuoteRepository {
	return &QuoteRepository{quotes: make(map[string]*paymentflow.Quote)}
}

// Save stores the quote under its idempotency key.
func (r *QuoteRepository) Save(_ context.Context, quote *paymentflow.Quote) error {
	if quote == nil {
		return paymentflow.ErrNilQuote
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[quote.IdempotencyKey()] = quote
	return nil
}

// FindByIdempotencyKey returns the quote for the key.
func (r *QuoteRepository) FindByIdempotencyKey(_ context.Context, key string) (*paymentflow.Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quote, ok := r.quotes[key]
	if !ok {
		return nil, paymentflow.ErrQuoteNotFound
	}
	return quote, nil
}

// Delete removes the quote for the key, if present.
func (r *QuoteRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.quotes, key)
	return nil
}

// DeleteExpired removes all quotes whose validity window has passed.
func (r *QuoteRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for key, quote := range r.quotes {
		if quote.Expired(now) {
			delete(r.quotes, key)
			removed++
		}
	}
	return removed, nil
}
