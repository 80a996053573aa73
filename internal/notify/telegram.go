package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"paygate/internal/payment"
)

// Telegram posts payment events and reports to an operator chat.
type Telegram struct {
	bot    *tele.Bot
	chat   tele.ChatID
	logger *zap.Logger
}

// NewTelegram builds an offline bot; it only sends, it never polls.
// apiURL may be empty for the public Bot API.
func NewTelegram(token string, chatID int64, apiURL string, logger *zap.Logger) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and report chat id are required")
	}
	b, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Offline: true,
		Client:  &http.Client{Timeout: 10 * time.Second},
		OnError: func(err error, _ tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}
	return &Telegram{bot: b, chat: tele.ChatID(chatID), logger: logger}, nil
}

// Report sends an HTML formatted message.
func (t *Telegram) Report(_ context.Context, text string) error {
	_, err := t.bot.Send(t.chat, text, tele.ModeHTML)
	return err
}

// Notify is a payment.EventHandler. Delivery failures are logged only.
func (t *Telegram) Notify(ev payment.Event) {
	if err := t.Report(context.Background(), formatEvent(ev)); err != nil {
		t.logger.Warn("Failed to report payment event",
			zap.String("gateway", ev.Gateway),
			zap.String("transaction_id", ev.TransactionID),
			zap.Error(err))
	}
}

func formatEvent(ev payment.Event) string {
	var title string
	switch ev.Kind {
	case payment.EventSucceeded:
		title = "💵 Payment succeeded"
	case payment.EventFailed:
		title = "❌ Payment failed"
	case payment.EventCancelled:
		title = "🚫 Payment cancelled"
	default:
		title = "ℹ️ Payment event"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n\n", title)
	fmt.Fprintf(&b, "Gateway: %s\n", html.EscapeString(ev.Gateway))
	if ev.TransactionID != "" {
		fmt.Fprintf(&b, "Transaction: <code>%s</code>\n", html.EscapeString(ev.TransactionID))
	}
	if ev.Amount > 0 {
		fmt.Fprintf(&b, "Amount: %.2f %s\n", ev.Amount, html.EscapeString(ev.Currency))
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", html.EscapeString(ev.Status))
	}
	if id := ev.Metadata[payment.CorrelationKey]; id != "" {
		fmt.Fprintf(&b, "Reference: <code>%s</code>\n", html.EscapeString(id))
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", html.EscapeString(ev.Error))
	}
	return strings.TrimRight(b.String(), "\n")
}
