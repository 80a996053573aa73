package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paygate/internal/models"
	"paygate/internal/payment"
)

const defaultCurrency = "USD"

// PaymentHandler exposes one gateway's lifecycle operations over REST.
type PaymentHandler struct {
	gateway payment.Gateway
	logger  *zap.Logger
}

func NewPaymentHandler(gateway payment.Gateway, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{gateway: gateway, logger: logger}
}

// Register mounts the payment routes on g.
func (h *PaymentHandler) Register(g *echo.Group) {
	g.POST("/payment", h.Create)
	g.GET("/payment/:id/verify", h.Verify)
	g.POST("/payment/:id/refund", h.Refund)
	g.POST("/payment/session", h.CreateSession)
	g.GET("/payment/config", h.Config)
}

// Create handles POST /payment.
func (h *PaymentHandler) Create(c echo.Context) error {
	var req models.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return serverError(c, "Invalid request body")
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}

	res, err := h.gateway.CreatePayment(c.Request().Context(), payment.Params{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: req.Description,
		Metadata:    req.Metadata,
		ReturnURL:   req.ReturnURL,
	})
	return h.reply(c, "create", res, err)
}

// Verify handles GET /payment/:id/verify.
func (h *PaymentHandler) Verify(c echo.Context) error {
	res, err := h.gateway.VerifyPayment(c.Request().Context(), c.Param("id"))
	return h.reply(c, "verify", res, err)
}

// Refund handles POST /payment/:id/refund.
func (h *PaymentHandler) Refund(c echo.Context) error {
	var req models.RefundPaymentRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return serverError(c, "Invalid request body")
		}
	}
	res, err := h.gateway.Refund(c.Request().Context(), c.Param("id"), req.Amount)
	return h.reply(c, "refund", res, err)
}

// CreateSession handles POST /payment/session for gateways that can start
// a payment from an amount and currency alone.
func (h *PaymentHandler) CreateSession(c echo.Context) error {
	sc, ok := payment.Capability[payment.SessionCreator](h.gateway)
	if !ok {
		return errorResponse(c, http.StatusNotFound, h.gateway.Name()+" gateway does not create payment sessions")
	}
	var req models.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return serverError(c, "Invalid request body")
	}
	if req.Currency == "" {
		req.Currency = defaultCurrency
	}

	id, err := sc.CreatePaymentSession(c.Request().Context(), req.Amount, req.Currency)
	if err != nil {
		h.logger.Error("Payment session failed",
			zap.String("gateway", h.gateway.Name()),
			zap.Error(err))
		return serverError(c, err.Error())
	}
	return c.JSON(http.StatusOK, models.SessionResponse{SessionID: id})
}

// Config handles GET /payment/config.
func (h *PaymentHandler) Config(c echo.Context) error {
	cp, ok := payment.Capability[payment.ConfigProvider](h.gateway)
	if !ok {
		return errorResponse(c, http.StatusNotFound, h.gateway.Name()+" gateway has no public config")
	}
	cfg, err := cp.GetConfig()
	if err != nil {
		return serverError(c, err.Error())
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *PaymentHandler) reply(c echo.Context, op string, res *payment.Result, err error) error {
	if err != nil {
		h.logger.Error("Payment operation failed",
			zap.String("op", op),
			zap.String("gateway", h.gateway.Name()),
			zap.Error(err))
		return serverError(c, err.Error())
	}
	if !res.Success {
		h.logger.Warn("Payment operation unsuccessful",
			zap.String("op", op),
			zap.String("gateway", h.gateway.Name()),
			zap.String("status", res.Status),
			zap.String("error", res.Error))
	}
	return c.JSON(http.StatusOK, res)
}
