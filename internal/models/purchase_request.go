package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase request lifecycle states set by the host after callback processing.
const (
	PurchaseRequestPending   = "pending"
	PurchaseRequestCompleted = "completed"
	PurchaseRequestFailed    = "failed"
)

// PurchaseRequest is a pending purchase recorded at checkout time. The
// RequestKey doubles as the gateway's orderReference, so inbound callbacks
// reconcile against this row.
type PurchaseRequest struct {
	BaseModel
	RequestKey   string          `gorm:"uniqueIndex" json:"request_key"`
	UserID       *uuid.UUID      `gorm:"type:uuid;index" json:"user_id"`
	ProfileID    uuid.UUID       `gorm:"type:uuid;index" json:"profile_id"`
	Profile      *PaymentProfile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
	Title        string          `json:"title"`
	CostAmount   decimal.Decimal `gorm:"type:numeric(12,2)" json:"cost_amount"`
	CostCurrency string          `json:"cost_currency"`
	ClientEmail  string          `json:"client_email"`
	Status       string          `gorm:"default:pending;index" json:"status"`
}
