// Package phone defines the phone verification provider boundary.
package phone

import (
	"context"
	"errors"

	"lnwallet-cloud/internal/accounts"
)

// Channel selects how the verification code is delivered.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

var (
	// ErrInvalidPhoneNumber is returned for numbers the vendor rejects.
	ErrInvalidPhoneNumber = errors.New("phone: invalid phone number")
	// ErrCodeInvalid is returned for a wrong or malformed code.
	ErrCodeInvalid = errors.New("phone: code invalid")
	// ErrRateLimited is returned when the vendor throttles the request.
	ErrRateLimited = errors.New("phone: rate limit exceeded")
	// ErrRestrictedRegion is returned when the destination region is
	// blocked or not enabled.
	ErrRestrictedRegion = errors.New("phone: restricted region")
	// ErrRestrictedRecipient is returned when the vendor blocks the
	// number for fraud.
	ErrRestrictedRecipient = errors.New("phone: restricted recipient")
	// ErrUnsubscribedRecipient is returned when the recipient opted out.
	ErrUnsubscribedRecipient = errors.New("phone: unsubscribed recipient")
	// ErrProviderConnection is returned on vendor connectivity failures.
	ErrProviderConnection = errors.New("phone: provider connection failed")
	// ErrProviderUnavailable is returned when the vendor is down.
	ErrProviderUnavailable = errors.New("phone: provider unavailable")
	// ErrExpiredOrNonExistentVerification is returned when the
	// verification to check no longer exists.
	ErrExpiredOrNonExistentVerification = errors.New("phone: verification expired or not found")
	// ErrUnknownProviderService is the fallback for unrecognized vendor
	// failures.
	ErrUnknownProviderService = errors.New("phone: unknown provider error")
)

// Provider is the vendor boundary for phone verification and carrier
// lookup.
type Provider interface {
	InitiateVerify(ctx context.Context, number string, channel Channel) error
	ValidateVerify(ctx context.Context, number, code string) error
	GetCarrier(ctx context.Context, number string) (*accounts.PhoneMetadata, error)
}
