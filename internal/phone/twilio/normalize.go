package twilio

import (
	"regexp"

	"lnwallet-cloud/internal/phone"
)

// Vendor failures arrive as free-text messages; these patterns map the
// known ones onto the provider error taxonomy.
var knownVendorMessages = []struct {
	pattern *regexp.Regexp
	err     error
}{
	{regexp.MustCompile(`not a valid phone number`), phone.ErrInvalidPhoneNumber},
	{regexp.MustCompile(`not a mobile number`), phone.ErrInvalidPhoneNumber},
	{regexp.MustCompile("Invalid parameter `To`"), phone.ErrInvalidPhoneNumber},
	{regexp.MustCompile(`Invalid parameter: Code`), phone.ErrCodeInvalid},
	{regexp.MustCompile(`has not been enabled for the region`), phone.ErrRestrictedRegion},
	{regexp.MustCompile(`require use case vetting`), phone.ErrRestrictedRegion},
	{regexp.MustCompile(`blocked by Verify Geo-Permissions`), phone.ErrRestrictedRegion},
	{regexp.MustCompile(`unsubscribed recipient`), phone.ErrUnsubscribedRecipient},
	{regexp.MustCompile(`timeout of.*exceeded`), phone.ErrProviderConnection},
	{regexp.MustCompile(`Service is unavailable`), phone.ErrProviderUnavailable},
	{regexp.MustCompile(`Max.*attempts reached`), phone.ErrRateLimited},
	{regexp.MustCompile(`Too many concurrent requests`), phone.ErrRateLimited},
	{regexp.MustCompile(`temporarily blocked by Twilio due to fraudulent activities`), phone.ErrRestrictedRecipient},
	{regexp.MustCompile(`The requested resource /Services/.*/VerificationCheck was not found`), phone.ErrExpiredOrNonExistentVerification},
}

// NormalizeVendorMessage maps a vendor error message to a provider
// error, falling back to ErrUnknownProviderService. The raw vendor
// text never crosses the boundary; callers log it themselves.
func NormalizeVendorMessage(message string) error {
	for _, known := range knownVendorMessages {
		if known.pattern.MatchString(message) {
			return known.err
		}
	}
	return phone.ErrUnknownProviderService
}
