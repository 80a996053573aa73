package gateway

import (
	"go.uber.org/zap"

	"paygate/internal/config"
	"paygate/internal/payment"
	"paygate/internal/payment/paddle"
	"paygate/internal/payment/stripe"
	"paygate/internal/pkg/httpclient"
	"paygate/internal/ui"
)

// Deps are the collaborators shared by every registered gateway.
type Deps struct {
	Logger     *zap.Logger
	Document   *ui.Document
	Loader     *ui.ScriptLoader
	HTTPClient *httpclient.Client

	// StripeBackendURL is where the Elements adapter finds the intent backend.
	StripeBackendURL string

	// Overrides used by tests.
	StripeAPI    stripe.APIFactory
	StripeVendor stripe.VendorFactory
	PaddleVendor paddle.VendorFactory
	PaddleAPIURL string
}

// NewRegistry returns a registry with the stripe, stripe-checkout and paddle
// gateways registered.
func NewRegistry(deps Deps) *payment.Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = httpclient.New().WithRetries(0)
	}
	if deps.Loader == nil {
		deps.Loader = ui.NewScriptLoader(deps.HTTPClient, deps.Logger)
	}

	r := payment.NewRegistry()
	r.Register(stripe.GatewayName, func() payment.Gateway {
		return stripe.New(stripe.Options{
			Logger:     deps.Logger.Named(stripe.GatewayName),
			Document:   deps.Document,
			Loader:     deps.Loader,
			NewVendor:  deps.StripeVendor,
			HTTPClient: deps.HTTPClient,
			BackendURL: deps.StripeBackendURL,
		})
	})
	r.Register(stripe.CheckoutGatewayName, func() payment.Gateway {
		return stripe.NewCheckout(stripe.CheckoutOptions{
			Logger: deps.Logger.Named(stripe.CheckoutGatewayName),
			NewAPI: deps.StripeAPI,
		})
	})
	r.Register(paddle.GatewayName, func() payment.Gateway {
		return paddle.New(paddle.Options{
			Logger:     deps.Logger.Named(paddle.GatewayName),
			Document:   deps.Document,
			Loader:     deps.Loader,
			NewVendor:  deps.PaddleVendor,
			HTTPClient: deps.HTTPClient,
			APIBaseURL: deps.PaddleAPIURL,
		})
	})
	return r
}

// Config builds the Initialize config for a gateway type from application
// settings. Callbacks are left for the caller to set.
func Config(cfg config.PaymentConfig, gatewayType string) payment.Config {
	out := payment.Config{
		ContainerID: cfg.ContainerID,
		Environment: payment.Environment(cfg.Environment),
		ReturnURL:   cfg.ReturnURL,
	}
	switch gatewayType {
	case stripe.GatewayName, stripe.CheckoutGatewayName:
		out.APIKey = cfg.Stripe.SecretKey
		out.PublicKey = cfg.Stripe.PublicKey
		out.WebhookSecret = cfg.Stripe.WebhookSecret
	case paddle.GatewayName:
		out.APIKey = cfg.Paddle.APIKey
		out.VendorID = cfg.Paddle.VendorID
		out.WebhookSecret = cfg.Paddle.WebhookSecret
	}
	return out
}
