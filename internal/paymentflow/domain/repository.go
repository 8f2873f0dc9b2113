package paymentflow

import (
	"context"
	"time"
)

// Repository persists quotes, keyed by their rail identity. A quote is
// written once at build time, read back at settlement, and garbage
// collected after expiry; it is never updated in place.
type Repository interface {
	Save(ctx context.Context, quote *Quote) error
	FindByIdempotencyKey(ctx context.Context, key string) (*Quote, error)
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
