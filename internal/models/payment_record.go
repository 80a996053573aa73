package models

import "time"

// Record states. Status holds the provider's own wording; State is ours.
const (
	StatePending   = "pending"
	StateSucceeded = "succeeded"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
	StateRefunded  = "refunded"
	StateExpired   = "expired"

	StatePartiallyRefunded = "partially_refunded"
)

// PaymentRecord maps to the `payment_records` table.
type PaymentRecord struct {
	ID             uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CorrelationID  string            `gorm:"column:correlation_id;size:64;uniqueIndex" json:"correlation_id"`
	Gateway        string            `gorm:"column:gateway;size:64;index" json:"gateway"`
	TransactionID  string            `gorm:"column:transaction_id;size:255;index" json:"transaction_id"`
	RefundID       string            `gorm:"column:refund_id;size:255" json:"refund_id,omitempty"`
	Amount         float64           `gorm:"column:amount" json:"amount"`
	RefundedAmount float64           `gorm:"column:refunded_amount" json:"refunded_amount,omitempty"`
	Currency       string            `gorm:"column:currency;size:8" json:"currency"`
	Status         string            `gorm:"column:status;size:64" json:"status"`
	State          string            `gorm:"column:state;size:32;index" json:"state"`
	Error          string            `gorm:"column:error;type:text" json:"error,omitempty"`
	Metadata       map[string]string `gorm:"column:metadata;serializer:json" json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payment_records"
}

// IsRefunded reports whether any part of the payment was refunded.
func (r *PaymentRecord) IsRefunded() bool {
	return r.State == StateRefunded || r.State == StatePartiallyRefunded
}
