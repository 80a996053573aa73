package paddle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"paygate/internal/payment"
	"paygate/internal/pkg/httpclient"
	"paygate/internal/ui"
)

const (
	GatewayName = "paddle"
	ScriptURL   = "https://cdn.paddle.com/paddle/paddle.js"
)

type Options struct {
	Logger     *zap.Logger
	Document   *ui.Document
	Loader     *ui.ScriptLoader
	NewVendor  VendorFactory
	HTTPClient *httpclient.Client
	ScriptURL  string
	// APIBaseURL overrides the environment's Paddle Billing endpoint.
	APIBaseURL string
	Locale     string
}

// Gateway runs Paddle's inline checkout. Payment outcome arrives through the
// vendor event callback or webhooks; verification and refunds go through the
// Paddle Billing API.
type Gateway struct {
	opts Options

	mu       sync.Mutex
	cfg      *payment.Config
	vendor   Vendor
	api      *apiClient
	checkout Checkout
}

func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httpclient.New().WithRetries(0)
	}
	if opts.NewVendor == nil {
		opts.NewVendor = DefaultVendor
	}
	if opts.ScriptURL == "" {
		opts.ScriptURL = ScriptURL
	}
	if opts.Locale == "" {
		opts.Locale = "en"
	}
	if opts.Loader == nil {
		opts.Loader = ui.NewScriptLoader(opts.HTTPClient, opts.Logger)
	}
	return &Gateway{opts: opts}
}

func (g *Gateway) Name() string {
	return GatewayName
}

func (g *Gateway) Initialize(ctx context.Context, cfg payment.Config) error {
	if g.opts.Document == nil {
		return errors.New("paddle gateway has no document to render into")
	}
	if cfg.VendorID == "" {
		return errors.New("init paddle: vendor id is required")
	}
	if err := g.opts.Loader.Load(ctx, g.opts.Document, g.opts.ScriptURL); err != nil {
		return err
	}

	vendor := g.opts.NewVendor()
	err := vendor.Setup(SetupOptions{
		VendorID:      cfg.VendorID,
		Environment:   cfg.Env(),
		EventCallback: g.handleEvent,
	})
	if err != nil {
		return fmt.Errorf("init paddle: %w", err)
	}

	if _, ok := g.opts.Document.Container(cfg.ContainerID); !ok {
		return &payment.ContainerNotFoundError{ContainerID: cfg.ContainerID}
	}

	var api *apiClient
	if cfg.APIKey != "" {
		base := g.opts.APIBaseURL
		if base == "" {
			base = apiBaseURL(cfg.Env())
		}
		api = newAPIClient(base, cfg.APIKey)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeCheckoutLocked()
	g.cfg = &cfg
	g.vendor = vendor
	g.api = api

	g.opts.Logger.Info("Paddle gateway initialized",
		zap.String("vendor_id", cfg.VendorID),
		zap.String("environment", string(cfg.Env())))
	return nil
}

func (g *Gateway) state() (*payment.Config, Vendor, *apiClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg == nil || g.vendor == nil {
		return nil, nil, nil, &payment.NotInitializedError{Gateway: GatewayName}
	}
	return g.cfg, g.vendor, g.api, nil
}

// CreatePayment opens the inline checkout in the configured container. The
// transaction id is only known once the checkout completes.
func (g *Gateway) CreatePayment(ctx context.Context, params payment.Params) (*payment.Result, error) {
	cfg, vendor, _, err := g.state()
	if err != nil {
		return nil, err
	}

	container, ok := g.opts.Document.Container(cfg.ContainerID)
	if !ok {
		return payment.FailedParams(params, &payment.ContainerNotFoundError{ContainerID: cfg.ContainerID}), nil
	}

	title := params.Description
	if title == "" {
		title = "Payment"
	}
	style := map[string]string{"width": "100%", "height": "100%"}
	for k, v := range cfg.Style {
		style[k] = v
	}

	checkout, err := vendor.OpenCheckout(CheckoutSettings{
		Title:         title,
		CustomMessage: params.Description,
		Amount:        params.Amount,
		Currency:      payment.NormalizeCurrency(params.Currency),
		CustomData:    params.Metadata,
		Locale:        g.opts.Locale,
		DisplayMode:   "inline",
		FrameTarget:   cfg.ContainerID,
		FrameStyle:    style,
	})
	if err != nil {
		g.opts.Logger.Error("Failed to open paddle checkout", zap.Error(err))
		return payment.FailedParams(params, err), nil
	}

	g.mu.Lock()
	g.closeCheckoutLocked()
	container.Clear()
	if err := container.Mount("", checkout); err != nil {
		g.mu.Unlock()
		checkout.Close()
		return payment.FailedParams(params, err), nil
	}
	g.checkout = checkout
	g.mu.Unlock()

	g.opts.Logger.Info("Paddle checkout opened",
		zap.Float64("amount", params.Amount),
		zap.String("currency", payment.NormalizeCurrency(params.Currency)))
	return payment.Pending(params), nil
}

func (g *Gateway) VerifyPayment(ctx context.Context, paymentID string) (*payment.Result, error) {
	_, _, api, err := g.state()
	if err != nil {
		return nil, err
	}
	if api == nil {
		return payment.Failed(paymentID, 0, "", errNoAPIKey), nil
	}

	tx, err := api.getTransaction(ctx, paymentID)
	if err != nil {
		g.opts.Logger.Error("Paddle verification failed", zap.String("payment_id", paymentID), zap.Error(err))
		return payment.Failed(paymentID, 0, "", err), nil
	}

	id := tx.ID
	if id == "" {
		id = paymentID
	}
	return payment.Unsuccessful(&payment.Result{
		Success:       tx.Status == payment.StatusCompleted,
		TransactionID: id,
		Amount:        minorStringToMajor(tx.Details.Totals.GrandTotal, tx.CurrencyCode),
		Currency:      payment.NormalizeCurrency(tx.CurrencyCode),
		Status:        tx.Status,
		Metadata:      stringifyCustomData(tx.CustomData),
	}), nil
}

// Refund creates a refund adjustment. Partial refunds are applied to the
// transaction's first line item.
func (g *Gateway) Refund(ctx context.Context, paymentID string, amount *float64) (*payment.Result, error) {
	_, _, api, err := g.state()
	if err != nil {
		return nil, err
	}
	var requested float64
	if amount != nil {
		requested = *amount
	}
	if api == nil {
		return payment.Failed(paymentID, requested, "", errNoAPIKey), nil
	}

	req := AdjustmentRequest{
		Action:        "refund",
		TransactionID: paymentID,
		Reason:        "customer_request",
		Type:          "full",
	}
	currency := ""
	if amount != nil {
		tx, err := api.getTransaction(ctx, paymentID)
		if err != nil {
			return payment.Failed(paymentID, requested, "", err), nil
		}
		if len(tx.Details.LineItems) == 0 {
			return payment.Failed(paymentID, requested, tx.CurrencyCode, errors.New("transaction has no line items")), nil
		}
		currency = tx.CurrencyCode
		req.Type = "partial"
		req.Items = []AdjustmentItem{{
			ItemID: tx.Details.LineItems[0].ID,
			Type:   "partial",
			Amount: strconv.FormatInt(payment.ToMinor(*amount, currency), 10),
		}}
	}

	adj, err := api.createAdjustment(ctx, req)
	if err != nil {
		g.opts.Logger.Error("Paddle refund failed", zap.String("payment_id", paymentID), zap.Error(err))
		return payment.Failed(paymentID, requested, currency, err), nil
	}
	if adj.CurrencyCode != "" {
		currency = adj.CurrencyCode
	}

	g.opts.Logger.Info("Paddle refund requested", zap.String("payment_id", paymentID), zap.String("adjustment_id", adj.ID))
	return payment.Unsuccessful(&payment.Result{
		Success:       adj.Status != "rejected" && adj.Status != "reversed",
		TransactionID: adj.ID,
		Amount:        minorStringToMajor(adj.Totals.Total, currency),
		Currency:      payment.NormalizeCurrency(currency),
		Status:        adj.Status,
	}), nil
}

var errNoAPIKey = errors.New("paddle api key is not configured")

func (g *Gateway) Destroy(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeCheckoutLocked()
	g.cfg = nil
	g.vendor = nil
	g.api = nil
}

func (g *Gateway) closeCheckoutLocked() {
	if g.checkout == nil {
		return
	}
	g.checkout.Close()
	if g.cfg != nil {
		if c, ok := g.opts.Document.Container(g.cfg.ContainerID); ok {
			c.Unmount("")
		}
	}
	g.checkout = nil
}

// handleEvent is the Paddle.js event callback.
func (g *Gateway) handleEvent(e Event) {
	g.mu.Lock()
	cfg := g.cfg
	g.mu.Unlock()
	if cfg == nil {
		return
	}
	ev, ok := translateEvent(e)
	if !ok {
		g.opts.Logger.Debug("Ignoring paddle event", zap.String("event", e.name()))
		return
	}
	cfg.Dispatch(ev)
}

// HandleClientEvent accepts a checkout event relayed from the browser.
func (g *Gateway) HandleClientEvent(ctx context.Context, payload []byte) error {
	if _, _, _, err := g.state(); err != nil {
		return err
	}
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return fmt.Errorf("decode paddle event: %w", err)
	}
	g.handleEvent(e)
	return nil
}

// HandleWebhook verifies and dispatches a Paddle Billing notification.
func (g *Gateway) HandleWebhook(ctx context.Context, payload []byte, header http.Header) error {
	cfg, _, _, err := g.state()
	if err != nil {
		return err
	}
	if err := VerifySignature(payload, header.Get(SignatureHeader), cfg.WebhookSecret, time.Now()); err != nil {
		return err
	}
	var e Event
	if err := json.Unmarshal(payload, &e); err != nil {
		return fmt.Errorf("decode paddle webhook: %w", err)
	}
	g.handleEvent(e)
	return nil
}

// CreatePaymentSession opens a checkout for amount. Paddle assigns the
// transaction id later, so the returned id is empty.
func (g *Gateway) CreatePaymentSession(ctx context.Context, amount float64, currency string) (string, error) {
	res, err := g.CreatePayment(ctx, payment.Params{Amount: amount, Currency: currency, Description: "Payment Session"})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", errors.New(res.Error)
	}
	return res.TransactionID, nil
}

func (g *Gateway) GetConfig() (map[string]string, error) {
	cfg, _, _, err := g.state()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"vendorId":    cfg.VendorID,
		"containerId": cfg.ContainerID,
		"environment": string(cfg.Env()),
	}, nil
}
