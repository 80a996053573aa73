package payment

import (
	"context"
	"net/http"
	"time"
)

// Environment selects the vendor environment.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// Well-known result statuses. Providers report many more; callers must treat
// Result.Status as an opaque string.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
)

// CorrelationKey is the metadata key used to tie provider callbacks back to
// the CreatePayment call that started them.
const CorrelationKey = "correlation_id"

// Params describes a payment to create. Amount is in the major currency unit.
type Params struct {
	Amount      float64           `json:"amount"`
	Currency    string            `json:"currency"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ReturnURL   string            `json:"returnUrl,omitempty"`
}

// Result is the uniform outcome of every lifecycle call.
type Result struct {
	Success       bool              `json:"success"`
	TransactionID string            `json:"transactionId"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	RedirectURL   string            `json:"redirectUrl,omitempty"`
}

// EventKind classifies a provider-pushed event.
type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// Event is a provider callback translated out of the vendor's native shape.
type Event struct {
	Kind          EventKind         `json:"kind"`
	Gateway       string            `json:"gateway"`
	TransactionID string            `json:"transactionId,omitempty"`
	Amount        float64           `json:"amount,omitempty"`
	Currency      string            `json:"currency,omitempty"`
	Status        string            `json:"status,omitempty"`
	Error         string            `json:"error,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// EventHandler receives normalized provider events.
type EventHandler func(Event)

// Config is handed to Gateway.Initialize. The adapter owns it until Destroy.
type Config struct {
	APIKey        string
	PublicKey     string
	VendorID      string
	ContainerID   string
	Environment   Environment
	ReturnURL     string
	WebhookSecret string
	Style         map[string]string

	OnSuccess EventHandler
	OnError   EventHandler
	OnCancel  EventHandler
}

// Env returns the configured environment, defaulting to sandbox.
func (c *Config) Env() Environment {
	if c.Environment == "" {
		return EnvSandbox
	}
	return c.Environment
}

// Dispatch routes an event to the matching callback, if any.
func (c *Config) Dispatch(ev Event) {
	if c == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}
	switch ev.Kind {
	case EventSucceeded:
		if c.OnSuccess != nil {
			c.OnSuccess(ev)
		}
	case EventFailed:
		if c.OnError != nil {
			c.OnError(ev)
		}
	case EventCancelled:
		if c.OnCancel != nil {
			c.OnCancel(ev)
		}
	}
}

// Gateway defines the interface for payment gateway implementations.
//
// CreatePayment, VerifyPayment and Refund never return provider or transport
// failures as errors: those are reported through a Result with Success=false.
// The only error they return is *NotInitializedError.
type Gateway interface {
	// Name returns the gateway identifier.
	Name() string

	// Initialize loads the vendor client and prepares any UI surface.
	Initialize(ctx context.Context, cfg Config) error

	// CreatePayment initiates a new payment.
	CreatePayment(ctx context.Context, params Params) (*Result, error)

	// VerifyPayment queries the provider for the current payment state.
	VerifyPayment(ctx context.Context, paymentID string) (*Result, error)

	// Refund refunds a payment. A nil amount refunds in full.
	Refund(ctx context.Context, paymentID string, amount *float64) (*Result, error)

	// Destroy releases UI handles. Safe to call repeatedly.
	Destroy(ctx context.Context)
}

// WebhookReceiver is implemented by gateways that accept provider webhooks.
type WebhookReceiver interface {
	HandleWebhook(ctx context.Context, payload []byte, header http.Header) error
}

// SessionCreator is implemented by gateways that can start a payment from an
// amount and currency alone.
type SessionCreator interface {
	CreatePaymentSession(ctx context.Context, amount float64, currency string) (string, error)
}

// ConfigProvider is implemented by gateways that expose the publishable
// settings a browser needs.
type ConfigProvider interface {
	GetConfig() (map[string]string, error)
}

// Capability returns gw, or a gateway it decorates, as T.
func Capability[T any](gw Gateway) (T, bool) {
	for gw != nil {
		if c, ok := gw.(T); ok {
			return c, true
		}
		u, ok := gw.(interface{ Unwrap() Gateway })
		if !ok {
			break
		}
		gw = u.Unwrap()
	}
	var zero T
	return zero, false
}
