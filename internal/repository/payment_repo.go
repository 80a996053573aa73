package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"paygate/internal/models"
)

// PaymentRepository handles payment record database operations.
type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, rec *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// FindByCorrelationID returns the record stamped with correlationID.
func (r *PaymentRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByTransactionID returns the newest record for a provider transaction.
func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("id DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindAll returns records with pagination and search.
func (r *PaymentRepository) FindAll(ctx context.Context, limit, page int, query string) ([]models.PaymentRecord, int64, error) {
	var records []models.PaymentRecord
	var total int64

	db := r.db.WithContext(ctx).Model(&models.PaymentRecord{})

	if query != "" {
		search := "%" + query + "%"
		db = db.Where("correlation_id LIKE ? OR transaction_id LIKE ? OR gateway LIKE ? OR state = ?",
			search, search, search, query)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// FindPending returns pending records that already carry a transaction id,
// least recently updated first. Every verification touches updated_at, so
// records checked in one run move behind those not yet checked.
func (r *PaymentRepository) FindPending(ctx context.Context, limit int) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("state = ? AND transaction_id <> ''", models.StatePending).
		Order("updated_at ASC, id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// UpdateByCorrelationID applies updates to one record.
func (r *PaymentRepository) UpdateByCorrelationID(ctx context.Context, correlationID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("correlation_id = ?", correlationID).
		Updates(updates).Error
}

// ExpirePending marks pending records created before cutoff as expired.
func (r *PaymentRepository) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("state = ? AND created_at < ?", models.StatePending, cutoff).
		Updates(map[string]interface{}{
			"state": models.StateExpired,
			"error": "payment expired before completion",
		})
	return res.RowsAffected, res.Error
}

// CountByState returns the number of records per state.
func (r *PaymentRepository) CountByState(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		State string
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Select("state, COUNT(*) AS count").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.State] = row.Count
	}
	return out, nil
}
