package notify

import "context"

// Alert describes a settlement the reconciliation sweep finalized or
// could not judge.
type Alert struct {
	IdempotencyKey string            `json:"idempotency_key"`
	QuoteID        string            `json:"quote_id"`
	Outcome        string            `json:"outcome"`
	ReceiptID      string            `json:"receipt_id,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	SweptAt        string            `json:"swept_at"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// Notifier sends reconciliation alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// MultiNotifier fans an alert out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier constructs a MultiNotifier.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify forwards the alert to all notifiers, returning the first error.
func (m *MultiNotifier) Notify(ctx context.Context, alert Alert) error {
	if m == nil {
		return nil
	}
	var first error
	for _, notifier := range m.notifiers {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
