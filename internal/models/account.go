package models

// Account represents a financial account in the system. Balance is only
// changed by the ledger, together with the transaction that causes it.
type Account struct {
	Base
	UserID      string   `gorm:"type:uuid;not null;index" json:"user_id"`
	CurrencyID  string   `gorm:"type:uuid;not null" json:"currency_id"`
	Name        string   `gorm:"not null" json:"name"`
	Balance     float64  `gorm:"not null;default:0" json:"balance"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Currency    Currency `gorm:"foreignKey:CurrencyID;constraint:OnDelete:RESTRICT" json:"currency"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE" json:"transactions,omitempty"`
}
