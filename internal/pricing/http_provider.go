package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lnwallet-cloud/internal/money"
)

// HTTPRateProvider fetches rate snapshots from a dealer price service.
type HTTPRateProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// HTTPOption configures the provider.
type HTTPOption func(*HTTPRateProvider)

// WithRequestTimeout overrides the request timeout.
func WithRequestTimeout(timeout time.Duration) HTTPOption {
	return func(p *HTTPRateProvider) {
		if timeout > 0 {
			p.client.Timeout = timeout
		}
	}
}

// WithToken sets a bearer token for the price service.
func WithToken(token string) HTTPOption {
	return func(p *HTTPRateProvider) {
		p.token = token
	}
}

// NewHTTPRateProvider constructs the provider.
func NewHTTPRateProvider(baseURL string, opts ...HTTPOption) (*HTTPRateProvider, error) {
	if baseURL == "" {
		return nil, errors.New("pricing: empty base url")
	}
	p := &HTTPRateProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type rateResponse struct {
	Numerator   uint64    `json:"numerator"`
	Denominator uint64    `json:"denominator"`
	AsOf        time.Time `json:"as_of"`
}

// GetRate fetches the current rate for the currency pair.
func (p *HTTPRateProvider) GetRate(ctx context.Context, base, quote money.Currency) (money.Rate, error) {
	if p == nil || p.client == nil {
		return money.Rate{}, errors.New("pricing: nil http provider")
	}

	endpoint := fmt.Sprintf("%s/v1/rates?base=%s&quote=%s",
		p.baseURL, url.QueryEscape(string(base)), url.QueryEscape(string(quote)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return money.Rate{}, err
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return money.Rate{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return money.Rate{}, fmt.Errorf("%w: status %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return money.Rate{}, fmt.Errorf("%w: decode: %v", ErrRateUnavailable, err)
	}
	return money.NewRate(base, quote, body.Numerator, body.Denominator, body.AsOf)
}
