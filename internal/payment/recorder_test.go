package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paygate/internal/models"
)

type memStore struct {
	records map[string]*models.PaymentRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.PaymentRecord)}
}

func (m *memStore) Create(_ context.Context, rec *models.PaymentRecord) error {
	m.records[rec.CorrelationID] = rec
	return nil
}

func (m *memStore) FindByCorrelationID(_ context.Context, id string) (*models.PaymentRecord, error) {
	if rec, ok := m.records[id]; ok {
		return rec, nil
	}
	return nil, errors.New("not found")
}

func (m *memStore) FindByTransactionID(_ context.Context, id string) (*models.PaymentRecord, error) {
	for _, rec := range m.records {
		if rec.TransactionID == id {
			return rec, nil
		}
	}
	return nil, errors.New("not found")
}

func (m *memStore) UpdateByCorrelationID(_ context.Context, id string, updates map[string]interface{}) error {
	rec, ok := m.records[id]
	if !ok {
		return errors.New("not found")
	}
	for k, v := range updates {
		switch k {
		case "state":
			rec.State = v.(string)
		case "status":
			rec.Status = v.(string)
		case "transaction_id":
			rec.TransactionID = v.(string)
		case "refund_id":
			rec.RefundID = v.(string)
		case "error":
			rec.Error = v.(string)
		case "amount":
			rec.Amount = v.(float64)
		case "refunded_amount":
			rec.RefundedAmount = v.(float64)
		case "currency":
			rec.Currency = v.(string)
		}
	}
	return nil
}

// scriptedGateway returns canned results and remembers the config handed to it.
type scriptedGateway struct {
	cfg        Config
	lastParams Params
	create     *Result
	verify     *Result
	refund     *Result
}

func (g *scriptedGateway) Name() string { return "scripted" }
func (g *scriptedGateway) Initialize(_ context.Context, cfg Config) error {
	g.cfg = cfg
	return nil
}
func (g *scriptedGateway) Destroy(context.Context) {}
func (g *scriptedGateway) CreatePayment(_ context.Context, p Params) (*Result, error) {
	g.lastParams = p
	r := *g.create
	r.Metadata = p.Metadata
	return &r, nil
}
func (g *scriptedGateway) VerifyPayment(context.Context, string) (*Result, error) {
	return g.verify, nil
}
func (g *scriptedGateway) Refund(context.Context, string, *float64) (*Result, error) {
	return g.refund, nil
}

func newTestRecorder(inner Gateway) (*Recorder, *memStore) {
	store := newMemStore()
	rec := NewRecorder(inner, store, zap.NewNop())
	rec.newID = func() string { return "corr-1" }
	return rec, store
}

func TestRecorderStampsCorrelationAndRecordsPending(t *testing.T) {
	inner := &scriptedGateway{create: &Result{Success: true, Status: StatusPending, Amount: 10, Currency: "USD"}}
	rec, store := newTestRecorder(inner)

	caller := map[string]string{"orderId": "42"}
	res, err := rec.CreatePayment(context.Background(), Params{Amount: 10, Currency: "usd", Metadata: caller})
	require.NoError(t, err)
	assert.True(t, res.Success)

	assert.Equal(t, "corr-1", inner.lastParams.Metadata[CorrelationKey])
	assert.Equal(t, "42", inner.lastParams.Metadata["orderId"])
	_, mutated := caller[CorrelationKey]
	assert.False(t, mutated, "caller metadata must not be modified")

	stored := store.records["corr-1"]
	require.NotNil(t, stored)
	assert.Equal(t, models.StatePending, stored.State)
	assert.Equal(t, "scripted", stored.Gateway)
}

func TestRecorderKeepsCallerCorrelationID(t *testing.T) {
	inner := &scriptedGateway{create: &Result{Success: true, Status: StatusPending}}
	rec, store := newTestRecorder(inner)

	_, err := rec.CreatePayment(context.Background(), Params{Amount: 1, Currency: "usd", Metadata: map[string]string{CorrelationKey: "mine"}})
	require.NoError(t, err)
	assert.Contains(t, store.records, "mine")
}

func TestRecorderEventReconcilesPendingRecord(t *testing.T) {
	inner := &scriptedGateway{create: &Result{Success: true, Status: StatusPending, Amount: 10, Currency: "USD"}}
	rec, store := newTestRecorder(inner)

	var delivered []Event
	require.NoError(t, rec.Initialize(context.Background(), Config{
		OnSuccess: func(ev Event) { delivered = append(delivered, ev) },
	}))
	_, err := rec.CreatePayment(context.Background(), Params{Amount: 10, Currency: "usd"})
	require.NoError(t, err)

	inner.cfg.Dispatch(Event{
		Kind:          EventSucceeded,
		TransactionID: "pi_123",
		Status:        StatusSucceeded,
		Amount:        10,
		Currency:      "usd",
		Metadata:      map[string]string{CorrelationKey: "corr-1"},
	})

	stored := store.records["corr-1"]
	assert.Equal(t, models.StateSucceeded, stored.State)
	assert.Equal(t, "pi_123", stored.TransactionID)
	require.Len(t, delivered, 1, "caller callback still runs")
	assert.Equal(t, "pi_123", delivered[0].TransactionID)
}

func TestRecorderVerifyAndRefund(t *testing.T) {
	inner := &scriptedGateway{
		create: &Result{Success: true, TransactionID: "cs_1", Status: "open", Amount: 10, Currency: "USD"},
		verify: &Result{Success: true, TransactionID: "cs_1", Status: "paid", Amount: 10, Currency: "USD"},
		refund: &Result{Success: true, TransactionID: "re_1", Status: StatusSucceeded, Amount: 10, Currency: "USD"},
	}
	rec, store := newTestRecorder(inner)

	_, err := rec.CreatePayment(context.Background(), Params{Amount: 10, Currency: "usd"})
	require.NoError(t, err)

	_, err = rec.VerifyPayment(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.Equal(t, models.StateSucceeded, store.records["corr-1"].State)

	_, err = rec.Refund(context.Background(), "cs_1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateRefunded, store.records["corr-1"].State)
	assert.Equal(t, "re_1", store.records["corr-1"].RefundID)
	assert.Equal(t, 10.0, store.records["corr-1"].RefundedAmount)
}

func TestRecorderPartialRefunds(t *testing.T) {
	inner := &scriptedGateway{
		create: &Result{Success: true, TransactionID: "cs_1", Status: "open", Amount: 10, Currency: "USD"},
		verify: &Result{Success: true, TransactionID: "cs_1", Status: "paid", Amount: 10, Currency: "USD"},
		refund: &Result{Success: true, TransactionID: "re_1", Status: StatusSucceeded, Amount: 4, Currency: "USD"},
	}
	rec, store := newTestRecorder(inner)
	ctx := context.Background()

	_, err := rec.CreatePayment(ctx, Params{Amount: 10, Currency: "usd"})
	require.NoError(t, err)
	_, err = rec.VerifyPayment(ctx, "cs_1")
	require.NoError(t, err)

	four := 4.0
	_, err = rec.Refund(ctx, "cs_1", &four)
	require.NoError(t, err)
	stored := store.records["corr-1"]
	assert.Equal(t, models.StatePartiallyRefunded, stored.State)
	assert.Equal(t, 4.0, stored.RefundedAmount)

	// a later verify must not report the charge as unrefunded
	_, err = rec.VerifyPayment(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatePartiallyRefunded, stored.State)

	inner.refund = &Result{Success: true, TransactionID: "re_2", Status: StatusSucceeded, Amount: 6, Currency: "USD"}
	_, err = rec.Refund(ctx, "cs_1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.StateRefunded, stored.State)
	assert.Equal(t, 10.0, stored.RefundedAmount)
	assert.Equal(t, "re_2", stored.RefundID)
}

func TestRecorderVerifyTransportFailureKeepsPending(t *testing.T) {
	inner := &scriptedGateway{
		create: &Result{Success: true, TransactionID: "cs_1", Status: "open"},
		verify: Failed("cs_1", 0, "", errors.New("Network error")),
	}
	rec, store := newTestRecorder(inner)

	_, err := rec.CreatePayment(context.Background(), Params{Amount: 10, Currency: "usd"})
	require.NoError(t, err)
	_, err = rec.VerifyPayment(context.Background(), "cs_1")
	require.NoError(t, err)

	stored := store.records["corr-1"]
	assert.Equal(t, models.StatePending, stored.State)
	assert.Equal(t, "open", stored.Status)
	assert.Equal(t, "Network error", stored.Error)
}

func TestRecorderWebhookWithoutReceiver(t *testing.T) {
	rec, _ := newTestRecorder(&scriptedGateway{})
	err := rec.HandleWebhook(context.Background(), []byte("{}"), http.Header{})
	assert.Error(t, err)
}
