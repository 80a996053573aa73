package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"paygate/internal/models"
	"paygate/internal/payment"
	"paygate/internal/payment/stripe"
)

type fakeGateway struct {
	notInit    bool
	lastParams payment.Params
	lastID     string
	lastAmount *float64
	createErr  error
}

func (f *fakeGateway) Name() string                                     { return "fake" }
func (f *fakeGateway) Initialize(context.Context, payment.Config) error { return nil }
func (f *fakeGateway) Destroy(context.Context)                          {}

func (f *fakeGateway) CreatePayment(_ context.Context, p payment.Params) (*payment.Result, error) {
	if f.notInit {
		return nil, &payment.NotInitializedError{Gateway: "fake"}
	}
	f.lastParams = p
	if f.createErr != nil {
		return payment.FailedParams(p, f.createErr), nil
	}
	return payment.Pending(p), nil
}

func (f *fakeGateway) VerifyPayment(_ context.Context, id string) (*payment.Result, error) {
	if f.notInit {
		return nil, &payment.NotInitializedError{Gateway: "fake"}
	}
	f.lastID = id
	return &payment.Result{Success: true, TransactionID: id, Amount: 10, Currency: "USD", Status: payment.StatusSucceeded}, nil
}

func (f *fakeGateway) Refund(_ context.Context, id string, amount *float64) (*payment.Result, error) {
	f.lastID = id
	f.lastAmount = amount
	return &payment.Result{Success: true, TransactionID: "re_1", Status: payment.StatusSucceeded}, nil
}

func newPaymentServer(gw payment.Gateway) *echo.Echo {
	e := echo.New()
	NewPaymentHandler(gw, zap.NewNop()).Register(e.Group("/api"))
	return e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreatePaymentDefaultsCurrency(t *testing.T) {
	gw := &fakeGateway{}
	e := newPaymentServer(gw)

	rec := doJSON(e, http.MethodPost, "/api/payment", `{"amount":25.5,"description":"Pro plan"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "USD", gw.lastParams.Currency)
	assert.Equal(t, 25.5, gw.lastParams.Amount)

	var res payment.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, payment.StatusPending, res.Status)
}

func TestCreatePaymentProviderFailureIsOK(t *testing.T) {
	gw := &fakeGateway{createErr: errors.New("Network error")}
	e := newPaymentServer(gw)

	rec := doJSON(e, http.MethodPost, "/api/payment", `{"amount":10,"currency":"EUR"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var res payment.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "Network error", res.Error)
	assert.Equal(t, "EUR", res.Currency)
}

func TestUnsuccessfulResultIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e := echo.New()
	NewPaymentHandler(&fakeGateway{createErr: errors.New("Network error")}, zap.New(core)).Register(e.Group("/api"))

	rec := doJSON(e, http.MethodPost, "/api/payment", `{"amount":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("Payment operation unsuccessful").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "create", entries[0].ContextMap()["op"])
	assert.Equal(t, "Network error", entries[0].ContextMap()["error"])
}

func TestNotInitializedIsServerError(t *testing.T) {
	e := newPaymentServer(&fakeGateway{notInit: true})

	rec := doJSON(e, http.MethodGet, "/api/payment/pi_1/verify", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "not initialized")
}

func TestVerifyPassesID(t *testing.T) {
	gw := &fakeGateway{}
	e := newPaymentServer(gw)

	rec := doJSON(e, http.MethodGet, "/api/payment/pi_42/verify", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pi_42", gw.lastID)
}

func TestRefundAmountOptional(t *testing.T) {
	gw := &fakeGateway{}
	e := newPaymentServer(gw)

	rec := doJSON(e, http.MethodPost, "/api/payment/pi_1/refund", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, gw.lastAmount)

	rec = doJSON(e, http.MethodPost, "/api/payment/pi_1/refund", `{"amount":4.25}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gw.lastAmount)
	assert.Equal(t, 4.25, *gw.lastAmount)
}

type sessionGateway struct {
	fakeGateway
	sessionErr   error
	lastCurrency string
}

func (g *sessionGateway) CreatePaymentSession(_ context.Context, amount float64, currency string) (string, error) {
	if g.sessionErr != nil {
		return "", g.sessionErr
	}
	g.lastCurrency = currency
	return "cs_1", nil
}

func (g *sessionGateway) GetConfig() (map[string]string, error) {
	return map[string]string{"environment": "sandbox"}, nil
}

type nopStore struct{}

func (nopStore) Create(context.Context, *models.PaymentRecord) error { return nil }
func (nopStore) FindByCorrelationID(context.Context, string) (*models.PaymentRecord, error) {
	return nil, errors.New("not found")
}
func (nopStore) FindByTransactionID(context.Context, string) (*models.PaymentRecord, error) {
	return nil, errors.New("not found")
}
func (nopStore) UpdateByCorrelationID(context.Context, string, map[string]interface{}) error {
	return nil
}

func TestCreateSessionThroughRecorder(t *testing.T) {
	gw := &sessionGateway{}
	e := newPaymentServer(payment.NewRecorder(gw, nopStore{}, zap.NewNop()))

	rec := doJSON(e, http.MethodPost, "/api/payment/session", `{"amount":12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessionId":"cs_1"}`, rec.Body.String())
	assert.Equal(t, "USD", gw.lastCurrency)

	rec = doJSON(e, http.MethodGet, "/api/payment/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"environment":"sandbox"}`, rec.Body.String())
}

func TestCreateSessionFailureIsServerError(t *testing.T) {
	e := newPaymentServer(&sessionGateway{sessionErr: errors.New("Network error")})

	rec := doJSON(e, http.MethodPost, "/api/payment/session", `{"amount":12,"currency":"EUR"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Network error"}`, rec.Body.String())
}

func TestSessionRoutesWithoutCapability(t *testing.T) {
	e := newPaymentServer(&fakeGateway{})

	rec := doJSON(e, http.MethodPost, "/api/payment/session", `{"amount":12}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodGet, "/api/payment/config", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeIntentBackend struct {
	created stripe.IntentRequest
	err     error
}

func (f *fakeIntentBackend) CreateIntent(_ context.Context, req stripe.IntentRequest) (*stripe.IntentResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = req
	return &stripe.IntentResponse{ClientSecret: "pi_1_secret_x"}, nil
}

func (f *fakeIntentBackend) GetIntent(_ context.Context, id string) (*stripe.IntentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.IntentRecord{ID: id, Status: "succeeded", Amount: 1000, Currency: "usd"}, nil
}

func (f *fakeIntentBackend) Refund(_ context.Context, req stripe.RefundRequest) (*stripe.RefundRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.RefundRecord{ID: "re_1", Status: "succeeded", Amount: 1000, Currency: "usd"}, nil
}

func TestIntentEndpoints(t *testing.T) {
	backend := &fakeIntentBackend{}
	e := echo.New()
	NewIntentHandler(backend, zap.NewNop()).Register(e.Group("/api"))

	rec := doJSON(e, http.MethodPost, "/api/create-payment-intent", `{"amount":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clientSecret":"pi_1_secret_x"}`, rec.Body.String())
	assert.Equal(t, int64(1000), backend.created.Amount)
	assert.Equal(t, "usd", backend.created.Currency)

	rec = doJSON(e, http.MethodGet, "/api/verify-payment/pi_1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"succeeded"`)

	rec = doJSON(e, http.MethodPost, "/api/refund", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(e, http.MethodPost, "/api/refund", `{"paymentId":"pi_1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIntentBackendErrorIsServerError(t *testing.T) {
	e := echo.New()
	NewIntentHandler(&fakeIntentBackend{err: errors.New("card_declined")}, zap.NewNop()).Register(e.Group("/api"))

	rec := doJSON(e, http.MethodPost, "/api/create-payment-intent", `{"amount":1000,"currency":"usd"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"card_declined"}`, rec.Body.String())
}

type fakeRecords struct {
	limit, page int
	query       string
}

func (f *fakeRecords) FindAll(_ context.Context, limit, page int, q string) ([]models.PaymentRecord, int64, error) {
	f.limit, f.page, f.query = limit, page, q
	return []models.PaymentRecord{{CorrelationID: "c1"}}, 101, nil
}

func (f *fakeRecords) FindByCorrelationID(_ context.Context, id string) (*models.PaymentRecord, error) {
	if id != "c1" {
		return nil, errors.New("record not found")
	}
	return &models.PaymentRecord{CorrelationID: id}, nil
}

func (f *fakeRecords) CountByState(context.Context) (map[string]int64, error) {
	return map[string]int64{models.StatePending: 3}, nil
}

func TestRecordsList(t *testing.T) {
	repo := &fakeRecords{}
	e := echo.New()
	NewRecordsHandler(repo, zap.NewNop()).Register(e.Group("/admin"))

	rec := doJSON(e, http.MethodGet, "/admin/payments?limit=5000&page=0&q=stripe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000, repo.limit)
	assert.Equal(t, 1, repo.page)
	assert.Equal(t, "stripe", repo.query)

	var body models.PaginatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(101), body.Total)
	assert.Equal(t, 1, body.TotalPages)

	rec = doJSON(e, http.MethodGet, "/admin/payments?limit=50", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.TotalPages)

	rec = doJSON(e, http.MethodGet, "/admin/payments/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(e, http.MethodGet, "/admin/payments/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pending":3}`, rec.Body.String())
}
