package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(username, email, password string, role models.UserRole) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	GetUserByLogin(identifier string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(identifier, password string) (*models.User, error)
}

// SessionServicer defines the contract for server-side login sessions.
type SessionServicer interface {
	CreateSession(userID, userAgent, ipAddress string) (string, *models.Session, error)
	GetUserBySessionToken(token string) (*models.User, *models.Session, error)
	GetActiveSession(sessionID string) (*models.Session, error)
	DeleteSession(sessionID string) error
	PurgeExpiredSessions() (int64, error)
}

// CurrencyServicer defines the contract for currency reference data.
type CurrencyServicer interface {
	ListCurrencies() ([]models.Currency, error)
	GetCurrencyByCode(code string) (*models.Currency, error)
	CreateCurrency(code, name, symbol string) (*models.Currency, error)
}

// AccountUpdateFields holds optional fields for updating an account.
// Nil pointers are left unchanged.
type AccountUpdateFields struct {
	Name         *string
	Description  *string
	Icon         *string
	CurrencyCode *string
}

// AccountValue is one account balance expressed in the net worth currency.
type AccountValue struct {
	AccountID string  `json:"account_id"`
	Name      string  `json:"name"`
	Currency  string  `json:"currency"`
	Balance   float64 `json:"balance"`
	Converted float64 `json:"converted"`
}

// NetWorth is the sum of all account balances of a user in one currency.
type NetWorth struct {
	Currency string         `json:"currency"`
	Total    float64        `json:"total"`
	Accounts []AccountValue `json:"accounts"`
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(userID, name, currencyCode, description, icon string, initialBalance float64) (*models.Account, error)
	GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(userID, accountID string) (*models.Account, error)
	UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error)
	DeleteAccount(userID, accountID string) error
	UpdateAccountBalance(tx *gorm.DB, account *models.Account, transactionType models.TransactionType, amount float64) error
	GetNetWorth(ctx context.Context, userID, currencyCode string) (*NetWorth, error)
}

// CategoryUpdateFields holds optional fields for updating a category.
type CategoryUpdateFields struct {
	Name  *string
	Icon  *string
	Color *string
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(userID, name string, categoryType models.CategoryType, icon, color string) (*models.Category, error)
	CreateDefaultCategory(name string, categoryType models.CategoryType, icon, color string) (*models.Category, error)
	GetUserCategories(userID string, categoryType *models.CategoryType) ([]models.Category, error)
	GetCategoryByID(userID, categoryID string) (*models.Category, error)
	UpdateCategory(userID, categoryID string, fields CategoryUpdateFields) (*models.Category, error)
	DeleteCategory(userID, categoryID string) error
}

// TransactionFilter holds optional filter parameters for listing transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.TransactionType
	CategoryID *string
	AccountID  *string
	MinAmount  *float64
	MaxAmount  *float64
}

// TransactionUpdateFields holds optional fields for updating a transaction.
type TransactionUpdateFields struct {
	CategoryID  *string
	Type        *models.TransactionType
	Amount      *float64
	Description *string
	Date        *time.Time
}

// CategoryTotal aggregates the transactions of one category in a summary.
// CategoryID is nil for transactions whose category was deleted.
type CategoryTotal struct {
	CategoryID   *string                `json:"category_id"`
	CategoryName string                 `json:"category_name"`
	Type         models.TransactionType `json:"type"`
	Count        int64                  `json:"count"`
	Total        float64                `json:"total"`
}

// TransactionSummary is the result of GetTransactionSummary.
type TransactionSummary struct {
	Count        int64                `json:"count"`
	Total        float64              `json:"total"`
	Income       float64              `json:"income"`
	Expense      float64              `json:"expense"`
	ByCategory   []CategoryTotal      `json:"by_category"`
	Transactions []models.Transaction `json:"transactions"`
}

// TransactionServicer defines the contract for transaction-related business logic.
type TransactionServicer interface {
	RecordTransaction(userID, accountID, categoryID string, transactionType models.TransactionType, amount float64, description string, date time.Time) (*models.Transaction, error)
	UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error)
	DeleteTransaction(userID, transactionID string) error
	GetTransactionByID(userID, transactionID string) (*models.Transaction, error)
	GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error)
	GetTransactionSummary(userID string, filter TransactionFilter) (*TransactionSummary, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}
