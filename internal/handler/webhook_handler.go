package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paygate/internal/payment"
)

// maxWebhookBody caps provider webhook payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler receives provider webhooks and hands them to the gateway
// registered under the :gateway path segment.
type WebhookHandler struct {
	gateways map[string]payment.Gateway
	logger   *zap.Logger
}

func NewWebhookHandler(logger *zap.Logger, gateways ...payment.Gateway) *WebhookHandler {
	h := &WebhookHandler{
		gateways: make(map[string]payment.Gateway, len(gateways)),
		logger:   logger,
	}
	for _, gw := range gateways {
		if gw != nil {
			h.gateways[gw.Name()] = gw
		}
	}
	return h
}

// Receive handles POST /webhooks/:gateway.
func (h *WebhookHandler) Receive(c echo.Context) error {
	name := c.Param("gateway")
	gw, ok := h.gateways[name]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown gateway"})
	}
	receiver, ok := payment.Capability[payment.WebhookReceiver](gw)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "gateway does not accept webhooks"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	if err := receiver.HandleWebhook(c.Request().Context(), body, c.Request().Header); err != nil {
		h.logger.Warn("Webhook rejected", zap.String("gateway", name), zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
