package stripe

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v81"

	"paygate/internal/payment"
	"paygate/internal/pkg/httpclient"
)

// Wire types of the payment-intent backend. Amounts are minor units and
// currencies lowercase, as Stripe expects them.

type IntentRequest struct {
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type IntentResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type IntentRecord struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type RefundRequest struct {
	PaymentID string `json:"paymentId"`
	Amount    *int64 `json:"amount,omitempty"`
}

type RefundRecord struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// IntentServer is the server half of the Elements flow. It holds the secret
// key and talks to Stripe on behalf of the browser-side gateway.
type IntentServer struct {
	api API
}

func NewIntentServer(api API) *IntentServer {
	return &IntentServer{api: api}
}

func (s *IntentServer) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error) {
	if req.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}
	if req.Currency == "" {
		return nil, errors.New("currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.NewPaymentIntent(ctx, params)
	if err != nil {
		return nil, errors.New(stripeErrorMessage(err))
	}
	return &IntentResponse{ClientSecret: pi.ClientSecret}, nil
}

func (s *IntentServer) GetIntent(ctx context.Context, id string) (*IntentRecord, error) {
	pi, err := s.api.GetPaymentIntent(ctx, id)
	if err != nil {
		return nil, errors.New(stripeErrorMessage(err))
	}
	rec := &IntentRecord{
		ID:       pi.ID,
		Status:   string(pi.Status),
		Amount:   pi.Amount,
		Currency: string(pi.Currency),
		Metadata: pi.Metadata,
	}
	if pi.LastPaymentError != nil {
		rec.Error = pi.LastPaymentError.Msg
	}
	return rec, nil
}

func (s *IntentServer) Refund(ctx context.Context, req RefundRequest) (*RefundRecord, error) {
	if req.PaymentID == "" {
		return nil, errors.New("paymentId is required")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentID),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(*req.Amount)
	}
	r, err := s.api.NewRefund(ctx, params)
	if err != nil {
		return nil, errors.New(stripeErrorMessage(err))
	}
	return &RefundRecord{
		ID:       r.ID,
		Status:   string(r.Status),
		Amount:   r.Amount,
		Currency: string(r.Currency),
		Metadata: r.Metadata,
	}, nil
}

// intentBackend is the client half, used by the Elements gateway.
type intentBackend struct {
	client  *httpclient.Client
	baseURL string
}

func (b *intentBackend) createIntent(ctx context.Context, req IntentRequest) (string, error) {
	var resp IntentResponse
	if err := b.client.PostJSON(ctx, b.baseURL+"/create-payment-intent", req, &resp); err != nil {
		return "", err
	}
	if resp.ClientSecret == "" {
		return "", errors.New("backend returned no client secret")
	}
	return resp.ClientSecret, nil
}

func (b *intentBackend) getIntent(ctx context.Context, id string) (*IntentRecord, error) {
	var rec IntentRecord
	if err := b.client.GetJSON(ctx, b.baseURL+"/verify-payment/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (b *intentBackend) refund(ctx context.Context, req RefundRequest) (*RefundRecord, error) {
	var rec RefundRecord
	if err := b.client.PostJSON(ctx, b.baseURL+"/refund", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// intentIDFromSecret recovers "pi_123" from "pi_123_secret_abc".
func intentIDFromSecret(clientSecret string) string {
	if i := strings.Index(clientSecret, "_secret_"); i > 0 {
		return clientSecret[:i]
	}
	return clientSecret
}

func refundSucceeded(status string) bool {
	return status != string(stripe.RefundStatusFailed) && status != string(stripe.RefundStatusCanceled)
}

func refundResult(rec *RefundRecord) *payment.Result {
	return payment.Unsuccessful(&payment.Result{
		Success:       refundSucceeded(rec.Status),
		TransactionID: rec.ID,
		Amount:        payment.FromMinor(rec.Amount, rec.Currency),
		Currency:      payment.NormalizeCurrency(rec.Currency),
		Status:        rec.Status,
		Metadata:      rec.Metadata,
	})
}
