package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"paygate/internal/payment"
	"paygate/internal/pkg/httpclient"
	"paygate/internal/ui"
)

const (
	// GatewayName is the registry type of the Elements adapter.
	GatewayName = "stripe"

	ScriptURL = "https://js.stripe.com/v3/"
)

// Options wires the Elements adapter to its collaborators.
type Options struct {
	Logger     *zap.Logger
	Document   *ui.Document
	Loader     *ui.ScriptLoader
	NewVendor  VendorFactory
	HTTPClient *httpclient.Client
	// BackendURL is the base of the intent backend, e.g. "/api".
	BackendURL string
	ScriptURL  string
	Locale     string
}

// Gateway accepts card payments through an embedded Stripe payment element.
// The client secret comes from the intent backend; confirmation happens on
// Submit.
type Gateway struct {
	opts    Options
	backend *intentBackend

	mu           sync.Mutex
	cfg          *payment.Config
	vendor       Vendor
	element      ui.Element
	clientSecret string
	pending      payment.Params
}

func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.New().WithRetries(0).WithTimeout(30 * time.Second)
	}
	if opts.NewVendor == nil {
		opts.NewVendor = DefaultVendor
	}
	if opts.ScriptURL == "" {
		opts.ScriptURL = ScriptURL
	}
	if opts.Locale == "" {
		opts.Locale = "auto"
	}
	if opts.Loader == nil {
		opts.Loader = ui.NewScriptLoader(opts.HTTPClient, opts.Logger)
	}
	return &Gateway{
		opts: opts,
		backend: &intentBackend{
			client:  opts.HTTPClient,
			baseURL: strings.TrimRight(opts.BackendURL, "/"),
		},
	}
}

func (g *Gateway) Name() string {
	return GatewayName
}

func (g *Gateway) Initialize(ctx context.Context, cfg payment.Config) error {
	if g.opts.Document == nil {
		return errors.New("stripe gateway has no document to render into")
	}
	if err := g.opts.Loader.Load(ctx, g.opts.Document, g.opts.ScriptURL); err != nil {
		return err
	}

	vendor, err := g.opts.NewVendor(cfg.PublicKey, cfg.APIKey)
	if err != nil {
		return fmt.Errorf("init stripe: %w", err)
	}

	container, ok := g.opts.Document.Container(cfg.ContainerID)
	if !ok {
		return &payment.ContainerNotFoundError{ContainerID: cfg.ContainerID}
	}

	form, err := ui.PaymentForm("Pay")
	if err != nil {
		return err
	}
	container.SetContent(form)

	el, err := vendor.Elements(ElementsOptions{Appearance: cfg.Style, Locale: g.opts.Locale}).
		Create("payment", ElementOptions{})
	if err != nil {
		return fmt.Errorf("create payment element: %w", err)
	}
	if err := container.Mount(ui.ElementSlot, el); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.element != nil {
		g.element.Destroy()
	}
	g.cfg = &cfg
	g.vendor = vendor
	g.element = el
	g.clientSecret = ""

	g.opts.Logger.Info("Stripe gateway initialized",
		zap.String("container", cfg.ContainerID),
		zap.String("environment", string(cfg.Env())))
	return nil
}

func (g *Gateway) state() (*payment.Config, Vendor, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg == nil || g.vendor == nil {
		return nil, nil, &payment.NotInitializedError{Gateway: GatewayName}
	}
	return g.cfg, g.vendor, nil
}

// CreatePayment obtains a client secret and remounts the payment element
// bound to it. The result stays pending with no transaction id until the
// customer submits the form.
func (g *Gateway) CreatePayment(ctx context.Context, params payment.Params) (*payment.Result, error) {
	cfg, vendor, err := g.state()
	if err != nil {
		return nil, err
	}

	currency := payment.NormalizeCurrency(params.Currency)
	secret, err := g.backend.createIntent(ctx, IntentRequest{
		Amount:      payment.ToMinor(params.Amount, currency),
		Currency:    strings.ToLower(currency),
		Description: params.Description,
		Metadata:    params.Metadata,
	})
	if err != nil {
		g.opts.Logger.Error("Failed to create payment intent", zap.Error(err))
		return payment.FailedParams(params, err), nil
	}

	if err := g.mountPaymentElement(cfg, vendor, secret, params); err != nil {
		g.opts.Logger.Error("Failed to mount payment element", zap.Error(err))
		return payment.FailedParams(params, err), nil
	}

	g.opts.Logger.Info("Stripe payment intent created",
		zap.Float64("amount", params.Amount),
		zap.String("currency", currency))
	return payment.Pending(params), nil
}

func (g *Gateway) mountPaymentElement(cfg *payment.Config, vendor Vendor, secret string, params payment.Params) error {
	container, ok := g.opts.Document.Container(cfg.ContainerID)
	if !ok {
		return &payment.ContainerNotFoundError{ContainerID: cfg.ContainerID}
	}
	form, err := ui.PaymentForm("Pay")
	if err != nil {
		return err
	}

	el, err := vendor.Elements(ElementsOptions{
		ClientSecret: secret,
		Appearance:   cfg.Style,
		Locale:       g.opts.Locale,
	}).Create("payment", ElementOptions{
		Layout:       "tabs",
		BillingName:  params.Metadata["customerName"],
		BillingEmail: params.Metadata["customerEmail"],
		BillingPhone: params.Metadata["customerPhone"],
	})
	if err != nil {
		return fmt.Errorf("create payment element: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.element != nil {
		g.element.Destroy()
	}
	container.SetContent(form)
	if err := container.Mount(ui.ElementSlot, el); err != nil {
		g.element = nil
		return err
	}
	g.element = el
	g.clientSecret = secret
	g.pending = params
	return nil
}

// Submit confirms the payment the mounted element was created for. The
// outcome goes to the configured callbacks; declines are also shown in the
// form's error slot.
func (g *Gateway) Submit(ctx context.Context) error {
	cfg, vendor, err := g.state()
	if err != nil {
		return err
	}
	g.mu.Lock()
	secret, params := g.clientSecret, g.pending
	g.mu.Unlock()
	if secret == "" {
		return errors.New("no payment is awaiting confirmation")
	}

	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = cfg.ReturnURL
	}

	fail := func(msg string) {
		if c, ok := g.opts.Document.Container(cfg.ContainerID); ok {
			c.SetMessage(ui.ErrorSlot, msg)
		}
		cfg.Dispatch(payment.Event{
			Kind:          payment.EventFailed,
			Gateway:       GatewayName,
			TransactionID: intentIDFromSecret(secret),
			Amount:        params.Amount,
			Currency:      payment.NormalizeCurrency(params.Currency),
			Status:        payment.StatusFailed,
			Error:         msg,
			Metadata:      params.Metadata,
		})
	}

	if err := vendor.ConfirmPayment(ctx, secret, returnURL); err != nil {
		g.opts.Logger.Warn("Stripe payment confirmation declined", zap.Error(err))
		fail(payment.ErrorMessage(err))
		return nil
	}

	pi, err := vendor.RetrievePaymentIntent(ctx, secret)
	if err != nil {
		g.opts.Logger.Error("Failed to retrieve confirmed intent", zap.Error(err))
		fail("payment confirmation failed: " + payment.ErrorMessage(err))
		return nil
	}
	ev, final := intentEvent(GatewayName, pi)
	if !final {
		g.opts.Logger.Info("Stripe payment awaiting settlement",
			zap.String("payment_id", pi.ID),
			zap.String("status", string(pi.Status)))
		return nil
	}
	cfg.Dispatch(ev)
	return nil
}

func (g *Gateway) VerifyPayment(ctx context.Context, paymentID string) (*payment.Result, error) {
	if _, _, err := g.state(); err != nil {
		return nil, err
	}

	rec, err := g.backend.getIntent(ctx, paymentID)
	if err != nil {
		g.opts.Logger.Error("Stripe verification failed", zap.String("payment_id", paymentID), zap.Error(err))
		return payment.Failed(paymentID, 0, "", err), nil
	}

	id := rec.ID
	if id == "" {
		id = paymentID
	}
	return payment.Unsuccessful(&payment.Result{
		Success:       rec.Status == string(stripe.PaymentIntentStatusSucceeded),
		TransactionID: id,
		Amount:        payment.FromMinor(rec.Amount, rec.Currency),
		Currency:      payment.NormalizeCurrency(rec.Currency),
		Status:        rec.Status,
		Error:         rec.Error,
		Metadata:      rec.Metadata,
	}), nil
}

// Refund refunds through the intent backend. A partial amount is converted
// using the intent's own currency.
func (g *Gateway) Refund(ctx context.Context, paymentID string, amount *float64) (*payment.Result, error) {
	if _, _, err := g.state(); err != nil {
		return nil, err
	}

	req := RefundRequest{PaymentID: paymentID}
	if amount != nil {
		rec, err := g.backend.getIntent(ctx, paymentID)
		if err != nil {
			return payment.Failed(paymentID, *amount, "", err), nil
		}
		minor := payment.ToMinor(*amount, rec.Currency)
		req.Amount = &minor
	}

	rec, err := g.backend.refund(ctx, req)
	if err != nil {
		g.opts.Logger.Error("Stripe refund failed", zap.String("payment_id", paymentID), zap.Error(err))
		var requested float64
		if amount != nil {
			requested = *amount
		}
		return payment.Failed(paymentID, requested, "", err), nil
	}

	g.opts.Logger.Info("Stripe refund issued", zap.String("payment_id", paymentID), zap.String("refund_id", rec.ID))
	return refundResult(rec), nil
}

func (g *Gateway) Destroy(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.element != nil {
		g.element.Destroy()
		if g.cfg != nil && g.opts.Document != nil {
			if c, ok := g.opts.Document.Container(g.cfg.ContainerID); ok {
				c.Unmount(ui.ElementSlot)
			}
		}
	}
	g.element = nil
	g.vendor = nil
	g.cfg = nil
	g.clientSecret = ""
	g.pending = payment.Params{}
}

// CreatePaymentSession starts a payment and returns the payment intent id.
func (g *Gateway) CreatePaymentSession(ctx context.Context, amount float64, currency string) (string, error) {
	res, err := g.CreatePayment(ctx, payment.Params{
		Amount:      amount,
		Currency:    currency,
		Description: "Payment Session",
	})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", errors.New(res.Error)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return intentIDFromSecret(g.clientSecret), nil
}

// GetConfig exposes the publishable settings a browser needs.
func (g *Gateway) GetConfig() (map[string]string, error) {
	cfg, _, err := g.state()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"publicKey":   cfg.PublicKey,
		"containerId": cfg.ContainerID,
		"environment": string(cfg.Env()),
	}, nil
}

func (g *Gateway) HandleWebhook(ctx context.Context, payload []byte, header http.Header) error {
	cfg, _, err := g.state()
	if err != nil {
		return err
	}
	return dispatchWebhook(cfg, GatewayName, payload, header)
}
