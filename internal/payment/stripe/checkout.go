package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"

	"paygate/internal/payment"
)

// CheckoutGatewayName is the registry type of the hosted Checkout adapter.
const CheckoutGatewayName = "stripe-checkout"

type CheckoutOptions struct {
	Logger *zap.Logger
	NewAPI APIFactory
}

// CheckoutGateway redirects customers to a Stripe-hosted checkout page. It
// needs only the secret key and works entirely server-side.
type CheckoutGateway struct {
	opts CheckoutOptions

	mu  sync.Mutex
	cfg *payment.Config
	api API
}

func NewCheckout(opts CheckoutOptions) *CheckoutGateway {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewAPI == nil {
		opts.NewAPI = NewAPI
	}
	return &CheckoutGateway{opts: opts}
}

func (g *CheckoutGateway) Name() string {
	return CheckoutGatewayName
}

func (g *CheckoutGateway) Initialize(ctx context.Context, cfg payment.Config) error {
	if cfg.APIKey == "" {
		return errors.New("init stripe checkout: secret key is required")
	}
	api := g.opts.NewAPI(cfg.APIKey)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = &cfg
	g.api = api
	g.opts.Logger.Info("Stripe checkout gateway initialized", zap.String("environment", string(cfg.Env())))
	return nil
}

func (g *CheckoutGateway) state() (*payment.Config, API, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg == nil || g.api == nil {
		return nil, nil, &payment.NotInitializedError{Gateway: CheckoutGatewayName}
	}
	return g.cfg, g.api, nil
}

// CreatePayment opens a checkout session. The session id is the transaction
// id and RedirectURL is where the customer pays.
func (g *CheckoutGateway) CreatePayment(ctx context.Context, params payment.Params) (*payment.Result, error) {
	cfg, api, err := g.state()
	if err != nil {
		return nil, err
	}

	returnURL := params.ReturnURL
	if returnURL == "" {
		returnURL = cfg.ReturnURL
	}
	if returnURL == "" {
		return payment.FailedParams(params, errors.New("return url is required")), nil
	}

	currency := payment.NormalizeCurrency(params.Currency)
	name := params.Description
	if name == "" {
		name = "Payment"
	}

	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(withSessionID(returnURL)),
		CancelURL:  stripe.String(returnURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(currency)),
				UnitAmount: stripe.Int64(payment.ToMinor(params.Amount, currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: params.Metadata,
		},
	}
	if email := params.Metadata["customerEmail"]; email != "" {
		sp.CustomerEmail = stripe.String(email)
	}
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	s, err := api.NewCheckoutSession(ctx, sp)
	if err != nil {
		g.opts.Logger.Error("Failed to create checkout session", zap.Error(err))
		return payment.FailedParams(params, errors.New(stripeErrorMessage(err))), nil
	}

	g.opts.Logger.Info("Stripe checkout session created", zap.String("session_id", s.ID))
	return &payment.Result{
		Success:       true,
		TransactionID: s.ID,
		Amount:        payment.FromMinor(s.AmountTotal, string(s.Currency)),
		Currency:      payment.NormalizeCurrency(string(s.Currency)),
		Status:        string(s.Status),
		Metadata:      s.Metadata,
		RedirectURL:   s.URL,
	}, nil
}

// VerifyPayment accepts either a session id (cs_) or a payment intent id.
func (g *CheckoutGateway) VerifyPayment(ctx context.Context, paymentID string) (*payment.Result, error) {
	_, api, err := g.state()
	if err != nil {
		return nil, err
	}

	if isSessionID(paymentID) {
		s, err := api.GetCheckoutSession(ctx, paymentID)
		if err != nil {
			return payment.Failed(paymentID, 0, "", errors.New(stripeErrorMessage(err))), nil
		}
		paid := s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
			s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired
		return payment.Unsuccessful(&payment.Result{
			Success:       paid,
			TransactionID: s.ID,
			Amount:        payment.FromMinor(s.AmountTotal, string(s.Currency)),
			Currency:      payment.NormalizeCurrency(string(s.Currency)),
			Status:        sessionStatus(s),
			Metadata:      s.Metadata,
		}), nil
	}

	pi, err := api.GetPaymentIntent(ctx, paymentID)
	if err != nil {
		return payment.Failed(paymentID, 0, "", errors.New(stripeErrorMessage(err))), nil
	}
	res := &payment.Result{
		Success:       pi.Status == stripe.PaymentIntentStatusSucceeded,
		TransactionID: pi.ID,
		Amount:        payment.FromMinor(pi.Amount, string(pi.Currency)),
		Currency:      payment.NormalizeCurrency(string(pi.Currency)),
		Status:        string(pi.Status),
		Metadata:      pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		res.Error = pi.LastPaymentError.Msg
	}
	return payment.Unsuccessful(res), nil
}

func (g *CheckoutGateway) Refund(ctx context.Context, paymentID string, amount *float64) (*payment.Result, error) {
	_, api, err := g.state()
	if err != nil {
		return nil, err
	}
	var requested float64
	if amount != nil {
		requested = *amount
	}

	intentID, currency := paymentID, ""
	if isSessionID(paymentID) {
		s, err := api.GetCheckoutSession(ctx, paymentID)
		if err != nil {
			return payment.Failed(paymentID, requested, "", errors.New(stripeErrorMessage(err))), nil
		}
		if s.PaymentIntent == nil || s.PaymentIntent.ID == "" {
			return payment.Failed(paymentID, requested, string(s.Currency), errors.New("checkout session has no payment")), nil
		}
		intentID, currency = s.PaymentIntent.ID, string(s.Currency)
	} else if amount != nil {
		pi, err := api.GetPaymentIntent(ctx, paymentID)
		if err != nil {
			return payment.Failed(paymentID, requested, "", errors.New(stripeErrorMessage(err))), nil
		}
		currency = string(pi.Currency)
	}

	rp := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if amount != nil {
		rp.Amount = stripe.Int64(payment.ToMinor(*amount, currency))
	}

	r, err := api.NewRefund(ctx, rp)
	if err != nil {
		g.opts.Logger.Error("Stripe refund failed", zap.String("payment_id", paymentID), zap.Error(err))
		return payment.Failed(paymentID, requested, currency, errors.New(stripeErrorMessage(err))), nil
	}
	g.opts.Logger.Info("Stripe refund issued", zap.String("payment_id", paymentID), zap.String("refund_id", r.ID))
	return refundResult(&RefundRecord{
		ID:       r.ID,
		Status:   string(r.Status),
		Amount:   r.Amount,
		Currency: string(r.Currency),
		Metadata: r.Metadata,
	}), nil
}

func (g *CheckoutGateway) Destroy(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = nil
	g.api = nil
}

func (g *CheckoutGateway) CreatePaymentSession(ctx context.Context, amount float64, currency string) (string, error) {
	res, err := g.CreatePayment(ctx, payment.Params{Amount: amount, Currency: currency, Description: "Payment Session"})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", errors.New(res.Error)
	}
	return res.TransactionID, nil
}

func (g *CheckoutGateway) GetConfig() (map[string]string, error) {
	cfg, _, err := g.state()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"environment": string(cfg.Env()),
		"returnUrl":   cfg.ReturnURL,
	}, nil
}

func (g *CheckoutGateway) HandleWebhook(ctx context.Context, payload []byte, header http.Header) error {
	cfg, _, err := g.state()
	if err != nil {
		return err
	}
	return dispatchWebhook(cfg, CheckoutGatewayName, payload, header)
}

func isSessionID(id string) bool {
	return strings.HasPrefix(id, "cs_")
}

// withSessionID lets the return page learn which session completed.
func withSessionID(u string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "session_id={CHECKOUT_SESSION_ID}"
}
