// Package twilio implements the phone provider against the Twilio
// Verify and Lookup REST APIs.
package twilio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lnwallet-cloud/internal/accounts"
	"lnwallet-cloud/internal/phone"
)

const (
	defaultVerifyBaseURL = "https://verify.twilio.com/v2"
	defaultLookupBaseURL = "https://lookups.twilio.com/v1"
)

// Client talks to Twilio Verify and Lookup.
type Client struct {
	accountSID      string
	authToken       string
	verifyServiceID string
	verifyBaseURL   string
	lookupBaseURL   string
	client          *http.Client
	logger          *log.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithVerifyBaseURL overrides the Verify API base URL, for tests.
func WithVerifyBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.verifyBaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLookupBaseURL overrides the Lookup API base URL, for tests.
func WithLookupBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.lookupBaseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger overrides the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a Twilio client.
func NewClient(accountSID, authToken, verifyServiceID string, opts ...Option) (*Client, error) {
	if accountSID == "" || authToken == "" {
		return nil, errors.New("twilio: missing credentials")
	}
	if verifyServiceID == "" {
		return nil, errors.New("twilio: missing verify service id")
	}
	c := &Client{
		accountSID:      accountSID,
		authToken:       authToken,
		verifyServiceID: verifyServiceID,
		verifyBaseURL:   defaultVerifyBaseURL,
		lookupBaseURL:   defaultLookupBaseURL,
		client:          &http.Client{Timeout: 10 * time.Second},
		logger:          log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// InitiateVerify asks Twilio to deliver a verification code.
func (c *Client) InitiateVerify(ctx context.Context, number string, channel phone.Channel) error {
	endpoint := fmt.Sprintf("%s/Services/%s/Verifications", c.verifyBaseURL, c.verifyServiceID)
	form := url.Values{"To": {number}, "Channel": {string(channel)}}
	var resp verificationResponse
	if err := c.postForm(ctx, endpoint, form, &resp); err != nil {
		return err
	}
	return nil
}

// ValidateVerify checks a code against the pending verification.
func (c *Client) ValidateVerify(ctx context.Context, number, code string) error {
	endpoint := fmt.Sprintf("%s/Services/%s/VerificationCheck", c.verifyBaseURL, c.verifyServiceID)
	form := url.Values{"To": {number}, "Code": {code}}
	var resp verificationResponse
	if err := c.postForm(ctx, endpoint, form, &resp); err != nil {
		return err
	}
	if resp.Status != "approved" {
		return phone.ErrCodeInvalid
	}
	return nil
}

// GetCarrier looks up the carrier behind a number.
func (c *Client) GetCarrier(ctx context.Context, number string) (*accounts.PhoneMetadata, error) {
	endpoint := fmt.Sprintf("%s/PhoneNumbers/%s?Type=carrier", c.lookupBaseURL, url.PathEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", phone.ErrUnknownProviderService, err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", phone.ErrProviderConnection, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, c.vendorError(res)
	}
	var payload lookupResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", phone.ErrUnknownProviderService, err)
	}
	return &accounts.PhoneMetadata{
		Carrier: accounts.PhoneCarrier{
			Type:              accounts.CarrierType(payload.Carrier.Type),
			Name:              payload.Carrier.Name,
			MobileCountryCode: payload.Carrier.MobileCountryCode,
			MobileNetworkCode: payload.Carrier.MobileNetworkCode,
			ErrorCode:         payload.Carrier.ErrorCode,
		},
		CountryCode: payload.CountryCode,
	}, nil
}

type verificationResponse struct {
	Status string `json:"status"`
}

type lookupResponse struct {
	CountryCode string `json:"country_code"`
	Carrier     struct {
		Type              string `json:"type"`
		Name              string `json:"name"`
		MobileCountryCode string `json:"mobile_country_code"`
		MobileNetworkCode string `json:"mobile_network_code"`
		ErrorCode         string `json:"error_code"`
	} `json:"carrier"`
}

type vendorErrorResponse struct {
	Message string `json:"message"`
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", phone.ErrUnknownProviderService, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", phone.ErrProviderConnection, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return phone.ErrExpiredOrNonExistentVerification
	}
	if res.StatusCode >= 400 {
		return c.vendorError(res)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %v", phone.ErrUnknownProviderService, err)
		}
	}
	return nil
}

// vendorError keeps the raw vendor message in the logs and hands the
// caller only the normalized taxonomy error.
func (c *Client) vendorError(res *http.Response) error {
	var payload vendorErrorResponse
	_ = json.NewDecoder(res.Body).Decode(&payload)
	c.logger.Printf("twilio error: status=%d message=%q", res.StatusCode, payload.Message)
	return NormalizeVendorMessage(payload.Message)
}
