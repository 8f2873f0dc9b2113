package twilio

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lnwallet-cloud/internal/accounts"
	"lnwallet-cloud/internal/phone"
)

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient("AC123", "token", "VA123",
		WithHTTPClient(server.Client()),
		WithVerifyBaseURL(server.URL),
		WithLookupBaseURL(server.URL),
		WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client
}

func TestGetCarrierClassifiesNumber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("Type") != "carrier" {
			t.Errorf("missing carrier type query: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"country_code":"US","carrier":{"type":"mobile","name":"T-Mobile","mobile_country_code":"310","mobile_network_code":"160"}}`)
	}))
	defer server.Close()

	metadata, err := newTestClient(t, server).GetCarrier(context.Background(), "+15005550006")
	if err != nil {
		t.Fatalf("get carrier: %v", err)
	}
	if metadata.Carrier.Type != accounts.CarrierTypeMobile {
		t.Fatalf("carrier type mismatch: got=%s want=%s", metadata.Carrier.Type, accounts.CarrierTypeMobile)
	}
	if metadata.CountryCode != "US" || metadata.Carrier.Name != "T-Mobile" {
		t.Fatalf("unexpected metadata: %+v", metadata)
	}
}

func TestGetCarrierVendorFailureMapsToTaxonomy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message":"The phone number +1500 is not a valid phone number."}`)
	}))
	defer server.Close()

	_, err := newTestClient(t, server).GetCarrier(context.Background(), "+1500")
	if !errors.Is(err, phone.ErrInvalidPhoneNumber) {
		t.Fatalf("expected ErrInvalidPhoneNumber, got %v", err)
	}
	if strings.Contains(err.Error(), "+1500") {
		t.Fatalf("vendor text leaked to the caller: %q", err.Error())
	}
}

func TestValidateVerifyRejectsUnapprovedCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"pending"}`)
	}))
	defer server.Close()

	err := newTestClient(t, server).ValidateVerify(context.Background(), "+15005550006", "000000")
	if !errors.Is(err, phone.ErrCodeInvalid) {
		t.Fatalf("expected ErrCodeInvalid, got %v", err)
	}
}
