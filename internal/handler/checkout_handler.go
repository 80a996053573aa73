package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paygate/internal/payment"
	"paygate/internal/ui"
)

// Submitter is implemented by gateways whose form is confirmed server-side.
type Submitter interface {
	Submit(ctx context.Context) error
}

// ClientEventReceiver is implemented by gateways that accept checkout events
// relayed from the browser.
type ClientEventReceiver interface {
	HandleClientEvent(ctx context.Context, payload []byte) error
}

// CheckoutHandler serves the hosted checkout page for the active gateway.
type CheckoutHandler struct {
	gateway  payment.Gateway
	document *ui.Document
	logger   *zap.Logger
}

func NewCheckoutHandler(gateway payment.Gateway, document *ui.Document, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{gateway: gateway, document: document, logger: logger}
}

// Register mounts the checkout routes on g.
func (h *CheckoutHandler) Register(g *echo.Group) {
	g.GET("", h.Page)
	g.POST("/submit", h.Submit)
	g.POST("/events", h.Events)
	g.GET("/return", h.Return)
}

// Page renders the document the gateway mounted its UI into.
func (h *CheckoutHandler) Page(c echo.Context) error {
	if h.document == nil {
		return c.String(http.StatusNotFound, "no checkout page")
	}
	var buf bytes.Buffer
	if err := h.document.Render(&buf); err != nil {
		h.logger.Error("Failed to render checkout page", zap.Error(err))
		return c.String(http.StatusInternalServerError, "template error")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Submit handles POST /checkout/submit.
func (h *CheckoutHandler) Submit(c echo.Context) error {
	s, ok := payment.Capability[Submitter](h.gateway)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "gateway has no form to submit"})
	}
	if err := s.Submit(c.Request().Context()); err != nil {
		var notInit *payment.NotInitializedError
		if errors.As(err, &notInit) {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "submitted"})
}

// Events handles POST /checkout/events.
func (h *CheckoutHandler) Events(c echo.Context) error {
	r, ok := payment.Capability[ClientEventReceiver](h.gateway)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "gateway does not accept client events"})
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := r.HandleClientEvent(c.Request().Context(), body); err != nil {
		h.logger.Warn("Client event rejected", zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Return is the landing page providers redirect to after checkout. Stripe
// appends session_id (Checkout) or payment_intent (Elements).
func (h *CheckoutHandler) Return(c echo.Context) error {
	id := c.QueryParam("session_id")
	if id == "" {
		id = c.QueryParam("payment_intent")
	}
	if id == "" {
		id = c.QueryParam("id")
	}
	if id == "" {
		return renderPaymentResult(c, "Error", "Missing payment reference", "", "")
	}

	res, err := h.gateway.VerifyPayment(c.Request().Context(), id)
	if err != nil {
		h.logger.Error("Verify on return failed", zap.String("id", id), zap.Error(err))
		return renderPaymentResult(c, "Error", "Payment could not be verified", id, "")
	}
	amount := ""
	if res.Amount > 0 {
		amount = fmt.Sprintf("%.2f %s", res.Amount, res.Currency)
	}
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Payment was not completed"
		}
		return renderPaymentResult(c, "Payment failed", msg, id, amount)
	}
	return renderPaymentResult(c, "Payment successful", "Thank you for your payment!", id, amount)
}

var resultTmpl = template.Must(template.New("result").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Payment</title>
    <style>
        body { font-family: sans-serif; background: #f2f2f2; margin: 0; padding: 20px; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        .box { background: #fff; border-radius: 8px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); padding: 40px; text-align: center; max-width: 400px; width: 100%; }
        h1 { color: #333; margin-bottom: 20px; }
        p { color: #666; margin-bottom: 10px; }
    </style>
</head>
<body>
    <div class="box">
        <h1>{{.Title}}</h1>
        {{if .Reference}}<p>Reference: <span>{{.Reference}}</span></p>{{end}}
        {{if .Amount}}<p>Amount: <span>{{.Amount}}</span></p>{{end}}
        <p>{{.Message}}</p>
    </div>
</body>
</html>`))

func renderPaymentResult(c echo.Context, title, message, reference, amount string) error {
	var buf bytes.Buffer
	err := resultTmpl.Execute(&buf, map[string]string{
		"Title":     title,
		"Message":   message,
		"Reference": reference,
		"Amount":    amount,
	})
	if err != nil {
		return c.String(http.StatusInternalServerError, "template error")
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
