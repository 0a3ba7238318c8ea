package models

// PaymentProvider is a registry row for an installed payment integration.
// Profiles reference providers by ProviderID; removing a provider removes
// its profiles as well.
type PaymentProvider struct {
	BaseModel
	ProviderID string `gorm:"uniqueIndex" json:"provider_id"`
	Title      string `json:"title"`
}
