package twilio

import (
	"errors"
	"strings"
	"testing"

	"lnwallet-cloud/internal/phone"
)

func TestNormalizeVendorMessage(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    error
	}{
		{"invalid number", "The phone number +1500 is not a valid phone number.", phone.ErrInvalidPhoneNumber},
		{"not mobile", "+15005550009 is not a mobile number", phone.ErrInvalidPhoneNumber},
		{"invalid to parameter", "Invalid parameter `To`: +abc", phone.ErrInvalidPhoneNumber},
		{"invalid code parameter", "Invalid parameter: Code", phone.ErrCodeInvalid},
		{"region not enabled", "SMS has not been enabled for the region indicated by the 'To' number", phone.ErrRestrictedRegion},
		{"vetting", "Numbers in this country require use case vetting before use", phone.ErrRestrictedRegion},
		{"geo permissions", "The destination phone number has been blocked by Verify Geo-Permissions. +7900 is blocked for sms channel for all services", phone.ErrRestrictedRegion},
		{"unsubscribed", "Attempt to send to unsubscribed recipient", phone.ErrUnsubscribedRecipient},
		{"timeout", "timeout of 30000ms exceeded", phone.ErrProviderConnection},
		{"unavailable", "Service is unavailable. Please try again", phone.ErrProviderUnavailable},
		{"max attempts", "Max send attempts reached", phone.ErrRateLimited},
		{"concurrency", "Too many concurrent requests", phone.ErrRateLimited},
		{"fraud block", "The destination phone number has been temporarily blocked by Twilio due to fraudulent activities", phone.ErrRestrictedRecipient},
		{"expired verification", "The requested resource /Services/VA123/VerificationCheck was not found", phone.ErrExpiredOrNonExistentVerification},
		{"unknown", "something never seen before", phone.ErrUnknownProviderService},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeVendorMessage(tc.message)
			if !errors.Is(got, tc.want) {
				t.Fatalf("normalized error mismatch: got=%v want=%v", got, tc.want)
			}
			// Only the taxonomy crosses the boundary, never vendor text.
			if got.Error() != tc.want.Error() {
				t.Fatalf("vendor text leaked across the provider boundary: %q", got.Error())
			}
			if strings.Contains(got.Error(), "Twilio") {
				t.Fatalf("vendor name leaked across the provider boundary: %q", got.Error())
			}
		})
	}
}
