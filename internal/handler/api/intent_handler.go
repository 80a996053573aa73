package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paygate/internal/payment/stripe"
)

// IntentBackend is the server half of the Stripe Elements flow.
type IntentBackend interface {
	CreateIntent(ctx context.Context, req stripe.IntentRequest) (*stripe.IntentResponse, error)
	GetIntent(ctx context.Context, id string) (*stripe.IntentRecord, error)
	Refund(ctx context.Context, req stripe.RefundRequest) (*stripe.RefundRecord, error)
}

// IntentHandler serves the payment-intent endpoints. Amounts are minor units.
type IntentHandler struct {
	backend IntentBackend
	logger  *zap.Logger
}

func NewIntentHandler(backend IntentBackend, logger *zap.Logger) *IntentHandler {
	return &IntentHandler{backend: backend, logger: logger}
}

func (h *IntentHandler) Register(g *echo.Group) {
	g.POST("/create-payment-intent", h.CreateIntent)
	g.GET("/verify-payment/:id", h.VerifyIntent)
	g.POST("/refund", h.Refund)
}

// CreateIntent handles POST /create-payment-intent.
func (h *IntentHandler) CreateIntent(c echo.Context) error {
	var req stripe.IntentRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	resp, err := h.backend.CreateIntent(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("Failed to create payment intent", zap.Int64("amount", req.Amount), zap.Error(err))
		return serverError(c, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

// VerifyIntent handles GET /verify-payment/:id.
func (h *IntentHandler) VerifyIntent(c echo.Context) error {
	rec, err := h.backend.GetIntent(c.Request().Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("Failed to retrieve payment intent", zap.String("id", c.Param("id")), zap.Error(err))
		return serverError(c, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

// Refund handles POST /refund.
func (h *IntentHandler) Refund(c echo.Context) error {
	var req stripe.RefundRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.PaymentID == "" {
		return errorResponse(c, http.StatusBadRequest, "paymentId is required")
	}

	rec, err := h.backend.Refund(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("Failed to refund payment intent", zap.String("payment_id", req.PaymentID), zap.Error(err))
		return serverError(c, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}
