package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"

	"paygate/internal/payment"
)

type fakeAPI struct {
	sessions map[string]*stripe.CheckoutSession
	intents  map[string]*stripe.PaymentIntent
	err      error

	lastSession *stripe.CheckoutSessionParams
	lastIntent  *stripe.PaymentIntentParams
	lastRefund  *stripe.RefundParams
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		sessions: make(map[string]*stripe.CheckoutSession),
		intents:  make(map[string]*stripe.PaymentIntent),
	}
}

func (a *fakeAPI) NewPaymentIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.lastIntent = params
	return &stripe.PaymentIntent{ID: "pi_new", ClientSecret: "pi_new_secret_x"}, nil
}

func (a *fakeAPI) GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	if a.err != nil {
		return nil, a.err
	}
	pi, ok := a.intents[id]
	if !ok {
		return nil, &stripe.Error{Msg: "No such payment_intent: " + id}
	}
	return pi, nil
}

func (a *fakeAPI) ConfirmPaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return a.GetPaymentIntent(ctx, id)
}

func (a *fakeAPI) NewCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.lastSession = params
	return &stripe.CheckoutSession{
		ID:          "cs_test_1",
		URL:         "https://checkout.stripe.com/c/pay/cs_test_1",
		Status:      stripe.CheckoutSessionStatusOpen,
		AmountTotal: *params.LineItems[0].PriceData.UnitAmount,
		Currency:    stripe.Currency(*params.LineItems[0].PriceData.Currency),
		Metadata:    params.Metadata,
	}, nil
}

func (a *fakeAPI) GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	if a.err != nil {
		return nil, a.err
	}
	s, ok := a.sessions[id]
	if !ok {
		return nil, &stripe.Error{Msg: "No such checkout.session: " + id}
	}
	return s, nil
}

func (a *fakeAPI) NewRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	if a.err != nil {
		return nil, a.err
	}
	a.lastRefund = params
	r := &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded, Currency: "usd"}
	if params.Amount != nil {
		r.Amount = *params.Amount
	} else {
		r.Amount = 2500
	}
	return r, nil
}

func newCheckout(t *testing.T, api *fakeAPI) *CheckoutGateway {
	t.Helper()
	gw := NewCheckout(CheckoutOptions{NewAPI: func(string) API { return api }})
	require.NoError(t, gw.Initialize(context.Background(), payment.Config{
		APIKey:        "sk_test",
		ReturnURL:     "https://shop.example/return",
		WebhookSecret: "whsec_test",
	}))
	return gw
}

func TestCheckoutRequiresSecretKey(t *testing.T) {
	gw := NewCheckout(CheckoutOptions{NewAPI: func(string) API { return newFakeAPI() }})
	assert.Error(t, gw.Initialize(context.Background(), payment.Config{}))

	_, err := gw.CreatePayment(context.Background(), payment.Params{Amount: 1, Currency: "USD"})
	var nie *payment.NotInitializedError
	assert.True(t, errors.As(err, &nie))
}

func TestCheckoutCreateSession(t *testing.T) {
	api := newFakeAPI()
	gw := newCheckout(t, api)

	res, err := gw.CreatePayment(context.Background(), payment.Params{
		Amount:      25,
		Currency:    "usd",
		Description: "Order #1",
		Metadata:    map[string]string{"orderId": "o-1", "customerEmail": "a@b.co"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "cs_test_1", res.TransactionID)
	assert.Equal(t, 25.0, res.Amount)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", res.RedirectURL)

	sp := api.lastSession
	assert.Equal(t, int64(2500), *sp.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "usd", *sp.LineItems[0].PriceData.Currency)
	assert.Equal(t, "Order #1", *sp.LineItems[0].PriceData.ProductData.Name)
	assert.Equal(t, "https://shop.example/return?session_id={CHECKOUT_SESSION_ID}", *sp.SuccessURL)
	assert.Equal(t, "o-1", sp.PaymentIntentData.Metadata["orderId"])
	assert.Equal(t, "a@b.co", *sp.CustomerEmail)
}

func TestCheckoutCreateFailure(t *testing.T) {
	api := newFakeAPI()
	gw := newCheckout(t, api)
	api.err = &stripe.Error{Msg: "Network error"}

	res, err := gw.CreatePayment(context.Background(), payment.Params{Amount: 10, Currency: "USD"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Network error", res.Error)
	assert.Equal(t, 10.0, res.Amount)
}

func TestCheckoutVerifySession(t *testing.T) {
	api := newFakeAPI()
	api.sessions["cs_paid"] = &stripe.CheckoutSession{
		ID: "cs_paid", Status: stripe.CheckoutSessionStatusComplete,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   1000, Currency: "usd",
	}
	api.sessions["cs_gone"] = &stripe.CheckoutSession{
		ID: "cs_gone", Status: stripe.CheckoutSessionStatusExpired,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
		AmountTotal:   1000, Currency: "usd",
	}
	gw := newCheckout(t, api)

	res, err := gw.VerifyPayment(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 10.0, res.Amount)
	assert.Equal(t, "paid", res.Status)

	res, err = gw.VerifyPayment(context.Background(), "cs_gone")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "expired", res.Status)
	assert.Equal(t, "payment status: expired", res.Error)
}

func TestCheckoutVerifyIntent(t *testing.T) {
	api := newFakeAPI()
	api.intents["pi_1"] = &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 500, Currency: "jpy"}
	gw := newCheckout(t, api)

	res, err := gw.VerifyPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 500.0, res.Amount)
	assert.Equal(t, "JPY", res.Currency)

	res, err = gw.VerifyPayment(context.Background(), "pi_missing")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No such payment_intent: pi_missing", res.Error)
}

func TestCheckoutRefundResolvesSessionIntent(t *testing.T) {
	api := newFakeAPI()
	api.sessions["cs_paid"] = &stripe.CheckoutSession{
		ID: "cs_paid", Currency: "usd",
		PaymentIntent: &stripe.PaymentIntent{ID: "pi_9"},
	}
	gw := newCheckout(t, api)

	amount := 4.5
	res, err := gw.Refund(context.Background(), "cs_paid", &amount)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 4.5, res.Amount)
	assert.Equal(t, "pi_9", *api.lastRefund.PaymentIntent)
	assert.Equal(t, int64(450), *api.lastRefund.Amount)

	res, err = gw.Refund(context.Background(), "pi_9", nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, res.Amount)
	assert.Nil(t, api.lastRefund.Amount)
}

func TestCheckoutDestroy(t *testing.T) {
	gw := newCheckout(t, newFakeAPI())
	gw.Destroy(context.Background())
	gw.Destroy(context.Background())

	_, err := gw.VerifyPayment(context.Background(), "cs_1")
	assert.True(t, errors.Is(err, payment.ErrNotInitialized))
}

func TestIntentServer(t *testing.T) {
	api := newFakeAPI()
	api.intents["pi_1"] = &stripe.PaymentIntent{
		ID: "pi_1", Status: stripe.PaymentIntentStatusRequiresPaymentMethod,
		Amount: 1000, Currency: "usd",
		LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
	}
	srv := NewIntentServer(api)
	ctx := context.Background()

	resp, err := srv.CreateIntent(ctx, IntentRequest{Amount: 1000, Currency: "USD", Metadata: map[string]string{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, "pi_new_secret_x", resp.ClientSecret)
	assert.Equal(t, "usd", *api.lastIntent.Currency)
	assert.Equal(t, "v", api.lastIntent.Metadata["k"])

	_, err = srv.CreateIntent(ctx, IntentRequest{Amount: 0, Currency: "usd"})
	assert.Error(t, err)

	rec, err := srv.GetIntent(ctx, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "requires_payment_method", rec.Status)
	assert.Equal(t, "Your card was declined.", rec.Error)

	_, err = srv.Refund(ctx, RefundRequest{})
	assert.Error(t, err)
}
