package stripe

import (
	"context"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// API is the slice of the Stripe REST API the gateways use.
type API interface {
	NewPaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
	NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
	NewRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

// APIFactory builds an API client for a secret key.
type APIFactory func(secretKey string) API

type clientAPI struct {
	sc *client.API
}

// NewAPI returns an API backed by stripe-go.
func NewAPI(secretKey string) API {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &clientAPI{sc: sc}
}

func (a *clientAPI) NewPaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return a.sc.PaymentIntents.New(params)
}

func (a *clientAPI) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	return a.sc.PaymentIntents.Get(id, params)
}

func (a *clientAPI) ConfirmPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	params.Context = ctx
	return a.sc.PaymentIntents.Confirm(id, params)
}

func (a *clientAPI) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	return a.sc.CheckoutSessions.New(params)
}

func (a *clientAPI) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")
	return a.sc.CheckoutSessions.Get(id, params)
}

func (a *clientAPI) NewRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	params.Context = ctx
	return a.sc.Refunds.New(params)
}

// stripeErrorMessage prefers the vendor's own message for API errors.
func stripeErrorMessage(err error) string {
	if se, ok := err.(*stripe.Error); ok && se.Msg != "" {
		return se.Msg
	}
	return err.Error()
}
