package models

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PaginatedResponse wraps list results with pagination info.
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// --- Payment API Request Payloads ---

// CreatePaymentRequest is the body of POST /api/payment.
type CreatePaymentRequest struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
	ReturnURL   string            `json:"returnUrl"`
}

// RefundPaymentRequest is the body of POST /api/payment/:id/refund.
// A missing amount refunds in full.
type RefundPaymentRequest struct {
	Amount *float64 `json:"amount"`
}

// CreateSessionRequest is the body of POST /api/payment/session.
type CreateSessionRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// SessionResponse carries the id returned by a gateway session. Browser
// flows that learn the id later return an empty one.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
}
