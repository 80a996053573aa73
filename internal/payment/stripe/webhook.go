package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"paygate/internal/payment"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// ParseWebhook verifies the signature and translates the event. The bool is
// false for event types the gateways do not act on.
func ParseWebhook(gateway string, payload []byte, header http.Header, secret string) (payment.Event, bool, error) {
	if secret == "" {
		return payment.Event{}, false, errors.New("stripe webhook secret is not configured")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, header.Get(SignatureHeader), secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return payment.Event{}, false, fmt.Errorf("invalid stripe webhook: %w", err)
	}
	return translateEvent(gateway, ev)
}

func translateEvent(gateway string, ev stripe.Event) (payment.Event, bool, error) {
	switch ev.Type {
	case stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return payment.Event{}, false, fmt.Errorf("decode payment intent: %w", err)
		}
		out, _ := intentEvent(gateway, &pi)
		switch ev.Type {
		case stripe.EventTypePaymentIntentSucceeded:
			out.Kind = payment.EventSucceeded
		case stripe.EventTypePaymentIntentPaymentFailed:
			out.Kind = payment.EventFailed
			if out.Error == "" {
				out.Error = "payment failed"
			}
		default:
			out.Kind = payment.EventCancelled
		}
		return out, true, nil

	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
			return payment.Event{}, false, fmt.Errorf("decode checkout session: %w", err)
		}
		out := sessionEvent(gateway, &cs)
		switch ev.Type {
		case stripe.EventTypeCheckoutSessionCompleted:
			// Delayed payment methods complete the session before funds move.
			if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
				return payment.Event{}, false, nil
			}
			out.Kind = payment.EventSucceeded
		case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
			out.Kind = payment.EventSucceeded
		case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
			out.Kind = payment.EventFailed
			out.Error = "payment failed"
		default:
			out.Kind = payment.EventCancelled
		}
		return out, true, nil
	}
	return payment.Event{}, false, nil
}

// intentEvent maps a payment intent onto an event. The bool is false while
// the intent is still in flight (processing, requires_action and the like);
// those settle later through a webhook or verification.
func intentEvent(gateway string, pi *stripe.PaymentIntent) (payment.Event, bool) {
	ev := payment.Event{
		Gateway:       gateway,
		TransactionID: pi.ID,
		Amount:        payment.FromMinor(pi.Amount, string(pi.Currency)),
		Currency:      payment.NormalizeCurrency(string(pi.Currency)),
		Status:        string(pi.Status),
		Metadata:      pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		ev.Error = pi.LastPaymentError.Msg
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		ev.Kind = payment.EventSucceeded
	case stripe.PaymentIntentStatusCanceled:
		ev.Kind = payment.EventCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		ev.Kind = payment.EventFailed
	default:
		return ev, false
	}
	return ev, true
}

func sessionEvent(gateway string, cs *stripe.CheckoutSession) payment.Event {
	ev := payment.Event{
		Gateway:       gateway,
		TransactionID: cs.ID,
		Amount:        payment.FromMinor(cs.AmountTotal, string(cs.Currency)),
		Currency:      payment.NormalizeCurrency(string(cs.Currency)),
		Status:        sessionStatus(cs),
		Metadata:      cs.Metadata,
	}
	return ev
}

func sessionStatus(cs *stripe.CheckoutSession) string {
	if cs.Status == stripe.CheckoutSessionStatusExpired {
		return string(cs.Status)
	}
	return string(cs.PaymentStatus)
}

func dispatchWebhook(cfg *payment.Config, gateway string, payload []byte, header http.Header) error {
	ev, ok, err := ParseWebhook(gateway, payload, header, cfg.WebhookSecret)
	if err != nil || !ok {
		return err
	}
	cfg.Dispatch(ev)
	return nil
}
