package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Bahdan321/Study-Practice-3-course/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password, unique username and email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	n := nextID()
	return createUser(t, db, fmt.Sprintf("user%d", n), fmt.Sprintf("user%d@test.com", n), models.UserRoleUser)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	return createUser(t, db, fmt.Sprintf("user%d", nextID()), email, models.UserRoleUser)
}

// CreateTestAdmin creates a user with the admin role.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	n := nextID()
	return createUser(t, db, fmt.Sprintf("admin%d", n), fmt.Sprintf("admin%d@test.com", n), models.UserRoleAdmin)
}

func createUser(t *testing.T, db *gorm.DB, username, email string, role models.UserRole) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCurrency returns the currency with the given code, creating it if needed.
func CreateTestCurrency(t *testing.T, db *gorm.DB, code string) *models.Currency {
	t.Helper()

	currency := &models.Currency{}
	err := db.Where("code = ?", code).
		Attrs(models.Currency{Code: code, Name: code, Symbol: code}).
		FirstOrCreate(currency).Error
	if err != nil {
		t.Fatalf("failed to create test currency: %v", err)
	}
	return currency
}

// CreateTestAccount creates a RUB account with zero balance.
func CreateTestAccount(t *testing.T, db *gorm.DB, userID string) *models.Account {
	t.Helper()
	return CreateTestAccountWithBalance(t, db, userID, 0)
}

// CreateTestAccountWithBalance creates a RUB account with the given balance.
// The balance is written directly, without a backing transaction.
func CreateTestAccountWithBalance(t *testing.T, db *gorm.DB, userID string, balance float64) *models.Account {
	t.Helper()

	currency := CreateTestCurrency(t, db, "RUB")
	account := &models.Account{
		UserID:     userID,
		CurrencyID: currency.ID,
		Name:       fmt.Sprintf("Test Account %d", nextID()),
		Balance:    balance,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	account.Currency = *currency
	return account
}

// CreateTestCategory creates a category of the given type owned by userID.
func CreateTestCategory(t *testing.T, db *gorm.DB, userID string, categoryType models.CategoryType) *models.Category {
	t.Helper()

	owner := userID
	category := &models.Category{
		UserID: &owner,
		Name:   fmt.Sprintf("Test Category %d", nextID()),
		Type:   categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	return category
}

// CreateTestDefaultCategory creates a shared category with no owner.
func CreateTestDefaultCategory(t *testing.T, db *gorm.DB, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		Name: fmt.Sprintf("Default Category %d", nextID()),
		Type: categoryType,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test default category: %v", err)
	}
	return category
}

// CreateTestTransaction inserts a transaction row and applies its effect to
// the account balance, keeping the fixture consistent with the ledger.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID, accountID string, categoryID *string, txType models.TransactionType, amount float64) *models.Transaction {
	t.Helper()

	tx := &models.Transaction{
		UserID:     userID,
		AccountID:  accountID,
		CategoryID: categoryID,
		Type:       txType,
		Amount:     amount,
		Date:       time.Now().UTC(),
	}
	err := db.Transaction(func(dbtx *gorm.DB) error {
		if err := dbtx.Create(tx).Error; err != nil {
			return err
		}
		return dbtx.Model(&models.Account{}).Where("id = ?", accountID).
			Update("balance", gorm.Expr("balance + ?", tx.SignedAmount())).Error
	})
	if err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return tx
}
