package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"paygate/internal/handler"
	"paygate/internal/handler/api"
	"paygate/internal/middleware"
	"paygate/internal/payment"
	"paygate/internal/ui"
)

// Options carries everything the routes are built from. Optional parts left
// nil disable their routes.
type Options struct {
	Logger  *zap.Logger
	APIKey  string
	Gateway payment.Gateway

	// Document is the checkout page browser-style gateways mount into.
	Document *ui.Document

	// Intents serves the Stripe Elements backend endpoints.
	Intents api.IntentBackend

	// Records enables the admin ledger routes.
	Records api.RecordLister

	Deduper middleware.EventDeduper
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger(logger))

	apiGroup := e.Group("/api")
	api.NewPaymentHandler(opts.Gateway, logger).Register(apiGroup)
	if opts.Intents != nil {
		api.NewIntentHandler(opts.Intents, logger).Register(apiGroup)
	}

	if opts.Records != nil {
		adminGroup := e.Group("/admin")
		adminGroup.Use(middleware.APIAuth(opts.APIKey))
		api.NewRecordsHandler(opts.Records, logger).Register(adminGroup)
	}

	checkout := handler.NewCheckoutHandler(opts.Gateway, opts.Document, logger)
	checkout.Register(e.Group("/checkout"))

	// Provider webhooks (signature checked by the gateway, deduplicated by event id)
	webhookGroup := e.Group("/webhooks")
	webhookGroup.Use(middleware.WebhookDedup(opts.Deduper))
	webhookGroup.POST("/:gateway", handler.NewWebhookHandler(logger, opts.Gateway).Receive)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"gateway": opts.Gateway.Name(),
		})
	})
}
