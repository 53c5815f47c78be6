package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/pagination"
	"github.com/Bahdan321/Study-Practice-3-course/internal/rates"
	"github.com/Bahdan321/Study-Practice-3-course/internal/validator"
)

// initialBalanceDescription marks the transaction that opens an account.
const initialBalanceDescription = "Initial balance"

// accountService handles account-related business logic.
type accountService struct {
	db        *gorm.DB
	converter rates.Converter
}

// NewAccountService creates a new AccountServicer. converter may be nil, in
// which case net worth is only available when no conversion is needed.
func NewAccountService(db *gorm.DB, converter rates.Converter) AccountServicer {
	return &accountService{db: db, converter: converter}
}

// CreateAccount creates a new account for a user. A positive initial balance
// is recorded as an income transaction so the balance always matches the
// account's transactions.
func (s *accountService) CreateAccount(userID, name, currencyCode, description, icon string, initialBalance float64) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if initialBalance < 0 || math.IsNaN(initialBalance) || math.IsInf(initialBalance, 0) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "initial balance must not be negative")
	}

	currency, err := findCurrency(s.db, currencyCode)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		UserID:      userID,
		CurrencyID:  currency.ID,
		Name:        name,
		Description: description,
		Icon:        icon,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(account).Error; err != nil {
			return translateDBError(err, apperrors.ErrUserNotFound, nil)
		}

		if initialBalance > 0 {
			transaction := &models.Transaction{
				UserID:      userID,
				AccountID:   account.ID,
				Type:        models.TransactionTypeIncome,
				Amount:      initialBalance,
				Description: initialBalanceDescription,
				Date:        time.Now().UTC(),
			}
			if err := tx.Create(transaction).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			return s.UpdateAccountBalance(tx, account, models.TransactionTypeIncome, initialBalance)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	account.Currency = *currency
	return account, nil
}

// GetUserAccounts retrieves a paginated list of accounts for a user, ordered by name.
func (s *accountService) GetUserAccounts(userID string, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	var totalItems int64
	base := s.db.Model(&models.Account{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Preload("Currency").
		Order("name ASC, id ASC").
		Scopes(pagination.Paginate(page)).
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetAccountByID retrieves an account by ID for a specific user. Accounts of
// other users are reported as not found.
func (s *accountService) GetAccountByID(userID, accountID string) (*models.Account, error) {
	return findAccount(s.db.Preload("Currency"), userID, accountID)
}

// UpdateAccount changes the descriptive fields of an account. The balance is
// owned by the ledger and cannot be set here.
func (s *accountService) UpdateAccount(userID, accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(userID, accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil {
		name := strings.TrimSpace(*fields.Name)
		if name == "" {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name cannot be empty")
		}
		updates["name"] = name
	}
	if fields.Description != nil {
		updates["description"] = *fields.Description
	}
	if fields.Icon != nil {
		updates["icon"] = *fields.Icon
	}
	if fields.CurrencyCode != nil {
		currency, err := findCurrency(s.db, *fields.CurrencyCode)
		if err != nil {
			return nil, err
		}
		updates["currency_id"] = currency.ID
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Account{}).Where("id = ?", account.ID).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.GetAccountByID(userID, accountID)
	}

	return account, nil
}

// DeleteAccount removes an account together with all of its transactions.
func (s *accountService) DeleteAccount(userID, accountID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		account, err := findAccount(tx, userID, accountID)
		if err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", account.ID).Delete(&models.Transaction{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(account).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// UpdateAccountBalance applies the effect of a transaction to the account
// balance. It must run inside the database transaction that writes the
// transaction row. The update is a single relative statement so concurrent
// postings to the same account do not overwrite each other.
func (s *accountService) UpdateAccountBalance(tx *gorm.DB, account *models.Account, transactionType models.TransactionType, amount float64) error {
	if !transactionType.Valid() {
		return apperrors.ErrInvalidTransactionType
	}
	delta := transactionType.SignedAmount(amount)

	res := tx.Model(&models.Account{}).
		Where("id = ?", account.ID).
		Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}

	account.Balance += delta
	return nil
}

// GetNetWorth converts every account balance of the user into currencyCode
// and sums them. Rates for distinct source currencies are fetched concurrently.
func (s *accountService) GetNetWorth(ctx context.Context, userID, currencyCode string) (*NetWorth, error) {
	target := strings.ToUpper(strings.TrimSpace(currencyCode))
	if !validator.IsCurrencyCode(target) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "currency must be an ISO 4217 code")
	}

	var accounts []models.Account
	if err := s.db.Preload("Currency").
		Where("user_id = ?", userID).
		Order("name ASC, id ASC").
		Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rateByCode := map[string]float64{target: 1}
	var sources []string
	for _, a := range accounts {
		if _, ok := rateByCode[a.Currency.Code]; !ok {
			rateByCode[a.Currency.Code] = 0
			sources = append(sources, a.Currency.Code)
		}
	}

	if len(sources) > 0 {
		if s.converter == nil {
			return nil, apperrors.ErrRatesUnavailable
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for _, code := range sources {
			code := code
			g.Go(func() error {
				rate, err := s.converter.Rate(gctx, code, target)
				if err != nil {
					return err
				}
				mu.Lock()
				rateByCode[code] = rate
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrRatesUnavailable, err)
		}
	}

	result := &NetWorth{Currency: target, Accounts: make([]AccountValue, 0, len(accounts))}
	for _, a := range accounts {
		converted := roundMoney(a.Balance * rateByCode[a.Currency.Code])
		result.Accounts = append(result.Accounts, AccountValue{
			AccountID: a.ID,
			Name:      a.Name,
			Currency:  a.Currency.Code,
			Balance:   a.Balance,
			Converted: converted,
		})
		result.Total += converted
	}
	result.Total = roundMoney(result.Total)

	return result, nil
}

// findAccount loads an account owned by userID.
func findAccount(db *gorm.DB, userID, accountID string) (*models.Account, error) {
	var account models.Account
	if err := db.Where("id = ? AND user_id = ?", accountID, userID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
