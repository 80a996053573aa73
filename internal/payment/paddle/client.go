package paddle

import (
	"context"
	"net/url"
	"time"

	"paygate/internal/payment"
	"paygate/internal/pkg/httpclient"
)

const (
	sandboxAPI    = "https://sandbox-api.paddle.com"
	productionAPI = "https://api.paddle.com"
)

type Transaction struct {
	ID           string                 `json:"id"`
	Status       string                 `json:"status"`
	CurrencyCode string                 `json:"currency_code"`
	CustomData   map[string]interface{} `json:"custom_data"`
	Details      TransactionDetails     `json:"details"`
}

type TransactionDetails struct {
	Totals    Totals     `json:"totals"`
	LineItems []LineItem `json:"line_items"`
}

// Totals holds string-encoded minor-unit amounts.
type Totals struct {
	Total      string `json:"total"`
	GrandTotal string `json:"grand_total"`
}

type LineItem struct {
	ID     string `json:"id"`
	Totals Totals `json:"totals"`
}

type AdjustmentRequest struct {
	Action        string           `json:"action"`
	TransactionID string           `json:"transaction_id"`
	Reason        string           `json:"reason"`
	Type          string           `json:"type"`
	Items         []AdjustmentItem `json:"items,omitempty"`
}

type AdjustmentItem struct {
	ItemID string `json:"item_id"`
	Type   string `json:"type"`
	Amount string `json:"amount,omitempty"`
}

type Adjustment struct {
	ID            string `json:"id"`
	Action        string `json:"action"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	CurrencyCode  string `json:"currency_code"`
	Totals        Totals `json:"totals"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// apiClient talks to Paddle Billing.
type apiClient struct {
	http *httpclient.Client
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		http: httpclient.New().
			WithRetries(0).
			WithTimeout(30 * time.Second).
			WithBaseURL(baseURL).
			WithBearerToken(apiKey),
	}
}

func apiBaseURL(env payment.Environment) string {
	if env == payment.EnvProduction {
		return productionAPI
	}
	return sandboxAPI
}

func (c *apiClient) getTransaction(ctx context.Context, id string) (*Transaction, error) {
	var out envelope[Transaction]
	if err := c.http.GetJSON(ctx, "/transactions/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *apiClient) createAdjustment(ctx context.Context, req AdjustmentRequest) (*Adjustment, error) {
	var out envelope[Adjustment]
	if err := c.http.PostJSON(ctx, "/adjustments", req, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}
