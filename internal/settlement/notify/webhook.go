package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookNotifier sends reconciliation alerts via webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends an alert to the webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatAlert(alert)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("webhook notifier: non-2xx")
	}
	return nil
}

func formatAlert(alert Alert) string {
	var b strings.Builder
	b.WriteString("[Settlement Reconciliation]\n")
	if alert.IdempotencyKey != "" {
		fmt.Fprintf(&b, "Key: %s\n", alert.IdempotencyKey)
	}
	if alert.QuoteID != "" {
		fmt.Fprintf(&b, "Quote: %s\n", alert.QuoteID)
	}
	if alert.Outcome != "" {
		fmt.Fprintf(&b, "Outcome: %s\n", alert.Outcome)
	}
	if alert.ReceiptID != "" {
		fmt.Fprintf(&b, "Receipt: %s\n", alert.ReceiptID)
	}
	if alert.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", alert.Reason)
	}
	if alert.SweptAt != "" {
		fmt.Fprintf(&b, "Swept At: %s\n", alert.SweptAt)
	}
	return strings.TrimSpace(b.String())
}
