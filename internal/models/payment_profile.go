package models

// PaymentProfile holds merchant credentials for a payment provider.
// MerchantAccount and SecretKey are required; the secret signs every
// outbound payload and verifies every inbound callback.
type PaymentProfile struct {
	BaseModel
	ProviderID      string `gorm:"index" json:"provider_id"`
	Title           string `json:"title"`
	MerchantAccount string `json:"merchant_account"`
	MerchantDomain  string `json:"merchant_domain"`
	SecretKey       string `json:"-"`
	Active          bool   `gorm:"default:true" json:"active"`
}
