package paddle

import (
	"fmt"
	"strconv"

	"paygate/internal/payment"
)

// Event is Paddle's native event envelope. Paddle.js callbacks set Name;
// webhooks set ID and Type.
type Event struct {
	ID   string    `json:"event_id,omitempty"`
	Type string    `json:"event_type,omitempty"`
	Name string    `json:"name,omitempty"`
	Data EventData `json:"data"`
}

// EventData covers both the checkout callback payload and the transaction
// entity delivered by webhooks.
type EventData struct {
	ID            string                 `json:"id,omitempty"`
	TransactionID string                 `json:"transaction_id,omitempty"`
	Status        string                 `json:"status,omitempty"`
	CurrencyCode  string                 `json:"currency_code,omitempty"`
	CustomData    map[string]interface{} `json:"custom_data,omitempty"`
	Details       *TransactionDetails    `json:"details,omitempty"`
	// Totals is the checkout callback summary, in major units.
	Totals *CheckoutTotals `json:"totals,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type CheckoutTotals struct {
	Total float64 `json:"total"`
}

func (e Event) name() string {
	if e.Type != "" {
		return e.Type
	}
	return e.Name
}

var eventKinds = map[string]payment.EventKind{
	"checkout.complete":          payment.EventSucceeded,
	"checkout.completed":         payment.EventSucceeded,
	"transaction.completed":      payment.EventSucceeded,
	"checkout.error":             payment.EventFailed,
	"checkout.payment.failed":    payment.EventFailed,
	"transaction.payment_failed": payment.EventFailed,
	"checkout.close":             payment.EventCancelled,
	"checkout.closed":            payment.EventCancelled,
	"transaction.canceled":       payment.EventCancelled,
}

// translateEvent maps a native event onto a payment.Event. Unknown event
// names report false.
func translateEvent(e Event) (payment.Event, bool) {
	kind, ok := eventKinds[e.name()]
	if !ok {
		return payment.Event{}, false
	}

	d := e.Data
	out := payment.Event{
		Kind:          kind,
		Gateway:       GatewayName,
		TransactionID: d.TransactionID,
		Currency:      payment.NormalizeCurrency(d.CurrencyCode),
		Status:        d.Status,
		Metadata:      stringifyCustomData(d.CustomData),
	}
	if out.TransactionID == "" {
		out.TransactionID = d.ID
	}
	switch {
	case d.Details != nil:
		out.Amount = minorStringToMajor(d.Details.Totals.GrandTotal, d.CurrencyCode)
	case d.Totals != nil:
		out.Amount = d.Totals.Total
	}
	if kind == payment.EventFailed {
		out.Error = d.Error
		if out.Error == "" {
			out.Error = "payment failed"
		}
	}
	return out, true
}

func stringifyCustomData(m map[string]interface{}) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// minorStringToMajor converts Paddle's string-encoded minor amounts.
func minorStringToMajor(s, currency string) float64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return payment.FromMinor(n, currency)
}
