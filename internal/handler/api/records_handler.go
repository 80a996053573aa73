package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paygate/internal/models"
)

// RecordLister is the read side of the payment ledger.
type RecordLister interface {
	FindAll(ctx context.Context, limit, page int, query string) ([]models.PaymentRecord, int64, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*models.PaymentRecord, error)
	CountByState(ctx context.Context) (map[string]int64, error)
}

// RecordsHandler lists payment records for operators.
type RecordsHandler struct {
	repo   RecordLister
	logger *zap.Logger
}

func NewRecordsHandler(repo RecordLister, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{repo: repo, logger: logger}
}

func (h *RecordsHandler) Register(g *echo.Group) {
	g.GET("/payments", h.List)
	g.GET("/payments/stats", h.Stats)
	g.GET("/payments/:correlationId", h.Get)
}

// List handles GET /payments?limit=&page=&q=.
func (h *RecordsHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	page := queryInt(c, "page", 1)
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if page <= 0 {
		page = 1
	}

	records, total, err := h.repo.FindAll(c.Request().Context(), limit, page, c.QueryParam("q"))
	if err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		return serverError(c, "Failed to retrieve payments")
	}
	return c.JSON(http.StatusOK, paginatedResponse(records, total, page, limit))
}

// Get handles GET /payments/:correlationId.
func (h *RecordsHandler) Get(c echo.Context) error {
	rec, err := h.repo.FindByCorrelationID(c.Request().Context(), c.Param("correlationId"))
	if err != nil {
		return errorResponse(c, http.StatusNotFound, "Payment not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// Stats handles GET /payments/stats.
func (h *RecordsHandler) Stats(c echo.Context) error {
	counts, err := h.repo.CountByState(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to count payments", zap.Error(err))
		return serverError(c, "Failed to retrieve payment stats")
	}
	return c.JSON(http.StatusOK, counts)
}
