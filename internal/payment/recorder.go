package payment

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paygate/internal/models"
)

// RecordStore persists payment records. Implemented by repository.PaymentRepository.
type RecordStore interface {
	Create(ctx context.Context, rec *models.PaymentRecord) error
	FindByCorrelationID(ctx context.Context, correlationID string) (*models.PaymentRecord, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*models.PaymentRecord, error)
	UpdateByCorrelationID(ctx context.Context, correlationID string, updates map[string]interface{}) error
}

// Recorder decorates a Gateway with a payment ledger. Every CreatePayment is
// stamped with a correlation id carried in metadata, so provider callbacks and
// later verifications can be matched to the record the call created.
type Recorder struct {
	inner  Gateway
	store  RecordStore
	logger *zap.Logger
	newID  func() string
}

func NewRecorder(inner Gateway, store RecordStore, logger *zap.Logger) *Recorder {
	return &Recorder{
		inner:  inner,
		store:  store,
		logger: logger,
		newID:  func() string { return uuid.NewString() },
	}
}

// Unwrap returns the decorated gateway.
func (r *Recorder) Unwrap() Gateway {
	return r.inner
}

func (r *Recorder) Name() string {
	return r.inner.Name()
}

func (r *Recorder) Initialize(ctx context.Context, cfg Config) error {
	cfg.OnSuccess = r.wrap(cfg.OnSuccess)
	cfg.OnError = r.wrap(cfg.OnError)
	cfg.OnCancel = r.wrap(cfg.OnCancel)
	return r.inner.Initialize(ctx, cfg)
}

func (r *Recorder) CreatePayment(ctx context.Context, params Params) (*Result, error) {
	params.Metadata = CloneMetadata(params.Metadata)
	if params.Metadata == nil {
		params.Metadata = make(map[string]string, 1)
	}
	correlationID := params.Metadata[CorrelationKey]
	if correlationID == "" {
		correlationID = r.newID()
		params.Metadata[CorrelationKey] = correlationID
	}

	res, err := r.inner.CreatePayment(ctx, params)
	if err != nil {
		return nil, err
	}

	state := models.StatePending
	if !res.Success {
		state = models.StateFailed
	}
	rec := &models.PaymentRecord{
		CorrelationID: correlationID,
		Gateway:       r.inner.Name(),
		TransactionID: res.TransactionID,
		Amount:        res.Amount,
		Currency:      res.Currency,
		Status:        res.Status,
		State:         state,
		Error:         res.Error,
		Metadata:      params.Metadata,
	}
	if err := r.store.Create(ctx, rec); err != nil {
		r.logger.Error("Failed to record payment",
			zap.String("correlation_id", correlationID), zap.Error(err))
	}
	return res, nil
}

func (r *Recorder) VerifyPayment(ctx context.Context, paymentID string) (*Result, error) {
	res, err := r.inner.VerifyPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	rec := r.lookup(ctx, res.Metadata, paymentID)
	if rec == nil {
		return res, nil
	}

	updates := map[string]interface{}{"error": res.Error}
	switch {
	case res.Success && rec.IsRefunded():
		// the provider still reports the charge as paid after a refund
		updates["status"] = res.Status
	case res.Success:
		updates["state"] = models.StateSucceeded
		updates["transaction_id"] = res.TransactionID
		updates["amount"] = res.Amount
		updates["currency"] = res.Currency
		updates["status"] = res.Status
	case isCancelledStatus(res.Status):
		updates["state"] = models.StateCancelled
		updates["status"] = res.Status
	case res.Status != StatusFailed:
		// provider reported a non-final status; keep the record pending
		updates["status"] = res.Status
	}
	r.update(ctx, rec.CorrelationID, updates)
	return res, nil
}

func (r *Recorder) Refund(ctx context.Context, paymentID string, amount *float64) (*Result, error) {
	res, err := r.inner.Refund(ctx, paymentID, amount)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return res, nil
	}
	if rec := r.lookup(ctx, nil, paymentID); rec != nil {
		r.update(ctx, rec.CorrelationID, refundUpdates(rec, res, amount))
	}
	return res, nil
}

// refundUpdates adds the refunded amount to the record. A refund without an
// amount covers whatever was left.
func refundUpdates(rec *models.PaymentRecord, res *Result, amount *float64) map[string]interface{} {
	refunded := res.Amount
	if refunded <= 0 {
		if amount != nil {
			refunded = *amount
		} else {
			refunded = rec.Amount - rec.RefundedAmount
		}
	}
	total := rec.RefundedAmount + refunded

	state := models.StateRefunded
	if amount != nil && total+0.005 < rec.Amount {
		state = models.StatePartiallyRefunded
	}
	return map[string]interface{}{
		"state":           state,
		"refunded_amount": total,
		"refund_id":       res.TransactionID,
		"error":           "",
	}
}

func (r *Recorder) Destroy(ctx context.Context) {
	r.inner.Destroy(ctx)
}

// HandleWebhook forwards to the decorated gateway when it accepts webhooks.
func (r *Recorder) HandleWebhook(ctx context.Context, payload []byte, header http.Header) error {
	wr, ok := r.inner.(WebhookReceiver)
	if !ok {
		return fmt.Errorf("%s gateway does not accept webhooks", r.inner.Name())
	}
	return wr.HandleWebhook(ctx, payload, header)
}

func (r *Recorder) wrap(next EventHandler) EventHandler {
	return func(ev Event) {
		r.applyEvent(context.Background(), ev)
		if next != nil {
			next(ev)
		}
	}
}

func (r *Recorder) applyEvent(ctx context.Context, ev Event) {
	rec := r.lookup(ctx, ev.Metadata, ev.TransactionID)
	if rec == nil {
		r.logger.Warn("Received event for unknown payment",
			zap.String("gateway", ev.Gateway),
			zap.String("transaction_id", ev.TransactionID),
			zap.String("kind", string(ev.Kind)))
		return
	}

	updates := map[string]interface{}{
		"status": ev.Status,
		"error":  ev.Error,
	}
	if ev.TransactionID != "" {
		updates["transaction_id"] = ev.TransactionID
	}
	if ev.Amount > 0 {
		updates["amount"] = ev.Amount
		updates["currency"] = NormalizeCurrency(ev.Currency)
	}
	switch ev.Kind {
	case EventSucceeded:
		updates["state"] = models.StateSucceeded
	case EventFailed:
		updates["state"] = models.StateFailed
	case EventCancelled:
		updates["state"] = models.StateCancelled
	}
	r.update(ctx, rec.CorrelationID, updates)
}

func (r *Recorder) lookup(ctx context.Context, metadata map[string]string, transactionID string) *models.PaymentRecord {
	if id := metadata[CorrelationKey]; id != "" {
		if rec, err := r.store.FindByCorrelationID(ctx, id); err == nil && rec != nil {
			return rec
		}
	}
	if transactionID == "" {
		return nil
	}
	rec, err := r.store.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil
	}
	return rec
}

func (r *Recorder) update(ctx context.Context, correlationID string, updates map[string]interface{}) {
	if err := r.store.UpdateByCorrelationID(ctx, correlationID, updates); err != nil {
		r.logger.Error("Failed to update payment record",
			zap.String("correlation_id", correlationID), zap.Error(err))
	}
}

func isCancelledStatus(status string) bool {
	switch strings.ToLower(status) {
	case "canceled", "cancelled", "expired":
		return true
	}
	return false
}
