package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"paygate/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.PaymentRecord{}))
	return db
}

func seed(t *testing.T, repo *PaymentRepository, recs ...models.PaymentRecord) {
	t.Helper()
	for i := range recs {
		require.NoError(t, repo.Create(context.Background(), &recs[i]))
	}
}

func TestCreateAndFind(t *testing.T) {
	repo := NewPaymentRepository(setupTestDB(t))
	ctx := context.Background()
	seed(t, repo, models.PaymentRecord{
		CorrelationID: "c-1",
		Gateway:       "stripe-checkout",
		TransactionID: "cs_1",
		Amount:        25,
		Currency:      "USD",
		State:         models.StatePending,
		Metadata:      map[string]string{"orderId": "o-1"},
	})

	rec, err := repo.FindByCorrelationID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "cs_1", rec.TransactionID)
	assert.Equal(t, "o-1", rec.Metadata["orderId"])

	rec, err = repo.FindByTransactionID(ctx, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", rec.CorrelationID)

	_, err = repo.FindByCorrelationID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdateByCorrelationID(t *testing.T) {
	repo := NewPaymentRepository(setupTestDB(t))
	ctx := context.Background()
	seed(t, repo, models.PaymentRecord{CorrelationID: "c-1", State: models.StatePending})

	require.NoError(t, repo.UpdateByCorrelationID(ctx, "c-1", map[string]interface{}{
		"state":          models.StateSucceeded,
		"transaction_id": "pi_1",
	}))

	rec, err := repo.FindByCorrelationID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, models.StateSucceeded, rec.State)
	assert.Equal(t, "pi_1", rec.TransactionID)
	assert.False(t, rec.IsRefunded())

	require.NoError(t, repo.UpdateByCorrelationID(ctx, "c-1", map[string]interface{}{
		"state":           models.StatePartiallyRefunded,
		"refunded_amount": 2.5,
	}))
	rec, err = repo.FindByCorrelationID(ctx, "c-1")
	require.NoError(t, err)
	assert.True(t, rec.IsRefunded())
	assert.Equal(t, 2.5, rec.RefundedAmount)
}

func TestFindAllPaginatesAndSearches(t *testing.T) {
	repo := NewPaymentRepository(setupTestDB(t))
	ctx := context.Background()
	seed(t, repo,
		models.PaymentRecord{CorrelationID: "c-1", Gateway: "stripe", State: models.StatePending},
		models.PaymentRecord{CorrelationID: "c-2", Gateway: "paddle", State: models.StateSucceeded},
		models.PaymentRecord{CorrelationID: "c-3", Gateway: "paddle", State: models.StatePending},
	)

	all, total, err := repo.FindAll(ctx, 2, 1, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 2)

	page2, _, err := repo.FindAll(ctx, 2, 2, "")
	require.NoError(t, err)
	assert.Len(t, page2, 1)

	paddle, total, err := repo.FindAll(ctx, 0, 0, "paddle")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, paddle, 2)
}

func TestFindPendingSkipsRecordsWithoutTransaction(t *testing.T) {
	repo := NewPaymentRepository(setupTestDB(t))
	seed(t, repo,
		models.PaymentRecord{CorrelationID: "c-1", TransactionID: "cs_1", State: models.StatePending},
		models.PaymentRecord{CorrelationID: "c-2", State: models.StatePending},
		models.PaymentRecord{CorrelationID: "c-3", TransactionID: "cs_3", State: models.StateSucceeded},
	)

	recs, err := repo.FindPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c-1", recs[0].CorrelationID)
}

func TestFindPendingLeastRecentlyUpdatedFirst(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	seed(t, repo,
		models.PaymentRecord{CorrelationID: "c-1", TransactionID: "cs_1", State: models.StatePending},
		models.PaymentRecord{CorrelationID: "c-2", TransactionID: "cs_2", State: models.StatePending},
	)
	base := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.PaymentRecord{}).Where("correlation_id = ?", "c-1").
		UpdateColumn("updated_at", base.Add(time.Minute)).Error)
	require.NoError(t, db.Model(&models.PaymentRecord{}).Where("correlation_id = ?", "c-2").
		UpdateColumn("updated_at", base).Error)

	recs, err := repo.FindPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c-2", recs[0].CorrelationID)

	require.NoError(t, repo.UpdateByCorrelationID(ctx, "c-2", map[string]interface{}{"status": "open"}))
	recs, err = repo.FindPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "c-1", recs[0].CorrelationID)
}

func TestExpirePending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()
	seed(t, repo,
		models.PaymentRecord{CorrelationID: "old", State: models.StatePending},
		models.PaymentRecord{CorrelationID: "new", State: models.StatePending},
		models.PaymentRecord{CorrelationID: "done", State: models.StateSucceeded},
	)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&models.PaymentRecord{}).
		Where("correlation_id IN ?", []string{"old", "done"}).
		Update("created_at", old).Error)

	n, err := repo.ExpirePending(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := repo.FindByCorrelationID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, models.StateExpired, rec.State)

	counts, err := repo.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[models.StateExpired])
	assert.Equal(t, int64(1), counts[models.StatePending])
	assert.Equal(t, int64(1), counts[models.StateSucceeded])
}
