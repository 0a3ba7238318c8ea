package models

// User represents an authenticated account. Store operators use these
// accounts to manage payment profiles and inspect callback logs.
type User struct {
	BaseModel
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"-"`
	IsAdmin      bool   `gorm:"default:false" json:"is_admin"`
}
