package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// SignedAmount returns the effect of a transaction of this type on an
// account balance.
func (t TransactionType) SignedAmount(amount float64) float64 {
	if t == TransactionTypeExpense {
		return -amount
	}
	return amount
}

// Transaction represents a financial transaction in the system
type Transaction struct {
	Base
	UserID      string          `gorm:"type:uuid;not null;index" json:"user_id"`
	AccountID   string          `gorm:"type:uuid;not null;index" json:"account_id"`
	CategoryID  *string         `gorm:"type:uuid;index" json:"category_id"`
	Type        TransactionType `gorm:"not null" json:"type"`
	Amount      float64         `gorm:"not null" json:"amount"`
	Description string          `json:"description"`
	Date        time.Time       `gorm:"not null;index" json:"date"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// SignedAmount returns the effect of the transaction on its account balance.
func (t *Transaction) SignedAmount() float64 {
	return t.Type.SignedAmount(t.Amount)
}
