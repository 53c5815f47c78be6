package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeIncome  CategoryType = "income"
	CategoryTypeExpense CategoryType = "expense"
)

// Valid reports whether t is one of the known category types.
func (t CategoryType) Valid() bool {
	return t == CategoryTypeIncome || t == CategoryTypeExpense
}

// Category represents a transaction category. A nil UserID marks a
// system default visible to every user.
type Category struct {
	Base
	UserID *string      `gorm:"type:uuid;uniqueIndex:idx_category_owner_name_type" json:"user_id"`
	Name   string       `gorm:"not null;uniqueIndex:idx_category_owner_name_type" json:"name"`
	Type   CategoryType `gorm:"not null;uniqueIndex:idx_category_owner_name_type" json:"type"`
	Icon   string       `json:"icon"`
	Color  string       `json:"color"`

	// Relationships
	Transactions []Transaction `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"transactions,omitempty"`
}

// IsDefault reports whether the category is shared by all users.
func (c *Category) IsDefault() bool {
	return c.UserID == nil
}

// DefaultCategories are seeded on startup.
var DefaultCategories = []Category{
	{Name: "Groceries", Type: CategoryTypeExpense, Icon: "shopping_cart"},
	{Name: "Transport", Type: CategoryTypeExpense, Icon: "directions_bus"},
	{Name: "Housing", Type: CategoryTypeExpense, Icon: "home"},
	{Name: "Cafes and restaurants", Type: CategoryTypeExpense, Icon: "restaurant"},
	{Name: "Entertainment", Type: CategoryTypeExpense, Icon: "local_movies"},
	{Name: "Clothing", Type: CategoryTypeExpense, Icon: "checkroom"},
	{Name: "Health", Type: CategoryTypeExpense, Icon: "local_hospital"},
	{Name: "Gifts", Type: CategoryTypeExpense, Icon: "card_giftcard"},
	{Name: "Other expenses", Type: CategoryTypeExpense, Icon: "category"},
	{Name: "Salary", Type: CategoryTypeIncome, Icon: "work"},
	{Name: "Gifts", Type: CategoryTypeIncome, Icon: "card_giftcard"},
	{Name: "Investments", Type: CategoryTypeIncome, Icon: "trending_up"},
	{Name: "Other income", Type: CategoryTypeIncome, Icon: "category"},
}
