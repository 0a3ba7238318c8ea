package models

import "github.com/shopspring/decimal"

// CallbackLog is the audit record written for every non-silent callback
// outcome. RawInput keeps the body verbatim for later inspection.
type CallbackLog struct {
	BaseModel
	ProviderID    string              `gorm:"index" json:"provider_id"`
	TransactionID string              `gorm:"index" json:"transaction_id"`
	RequestKey    string              `gorm:"index" json:"request_key"`
	SubscriberID  string              `json:"subscriber_id"`
	LogType       string              `json:"log_type"`
	LogMessage    string              `json:"log_message"`
	CostAmount    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"cost_amount"`
	CostCurrency  string              `json:"cost_currency"`
	IP            string              `json:"ip"`
	RequestTime   int64               `json:"request_time"`
	RawInput      string              `json:"raw_input"`
	Details       []byte              `gorm:"type:jsonb" json:"details"`
}

// TransactionRecord marks a gateway transaction as processed. The composite
// unique index is the real replay guard: concurrent duplicate callbacks race
// on this insert and exactly one wins.
type TransactionRecord struct {
	BaseModel
	ProviderID    string `gorm:"uniqueIndex:idx_provider_transaction" json:"provider_id"`
	TransactionID string `gorm:"uniqueIndex:idx_provider_transaction" json:"transaction_id"`
	RequestKey    string `gorm:"index" json:"request_key"`
}
