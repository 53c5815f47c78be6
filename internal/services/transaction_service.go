package services

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/events"
	"github.com/Bahdan321/Study-Practice-3-course/internal/logger"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/pagination"
)

// transactionService is the ledger: every write to a transaction changes the
// owning account balance in the same database transaction.
type transactionService struct {
	db             *gorm.DB
	accountService AccountServicer
	publisher      events.Publisher
}

// NewTransactionService creates a new TransactionServicer. A nil publisher
// disables ledger events.
func NewTransactionService(db *gorm.DB, accountService AccountServicer, publisher events.Publisher) TransactionServicer {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &transactionService{
		db:             db,
		accountService: accountService,
		publisher:      publisher,
	}
}

func validateAmount(amount float64) error {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return apperrors.ErrInvalidAmount
	}
	return nil
}

func reverseType(t models.TransactionType) models.TransactionType {
	if t == models.TransactionTypeIncome {
		return models.TransactionTypeExpense
	}
	return models.TransactionTypeIncome
}

func checkCategoryType(category *models.Category, transactionType models.TransactionType) error {
	if category != nil && string(category.Type) != string(transactionType) {
		return apperrors.ErrCategoryTypeMismatch
	}
	return nil
}

// RecordTransaction posts a transaction against one of the user's accounts.
// The amount and type are checked before anything is read; account and
// category are then verified, the row inserted and the balance adjusted,
// all in one database transaction.
func (s *transactionService) RecordTransaction(
	userID string,
	accountID string,
	categoryID string,
	transactionType models.TransactionType,
	amount float64,
	description string,
	date time.Time,
) (*models.Transaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if !transactionType.Valid() {
		return nil, apperrors.ErrInvalidTransactionType
	}

	if date.IsZero() {
		date = time.Now()
	}

	var (
		transaction *models.Transaction
		category    *models.Category
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		account, err := findAccount(tx, userID, accountID)
		if err != nil {
			return err
		}
		category, err = findVisibleCategory(tx, userID, categoryID)
		if err != nil {
			return err
		}
		if err := checkCategoryType(category, transactionType); err != nil {
			return err
		}

		transaction = &models.Transaction{
			UserID:      userID,
			AccountID:   account.ID,
			CategoryID:  &category.ID,
			Type:        transactionType,
			Amount:      amount,
			Description: description,
			Date:        date.UTC(),
		}
		if err := tx.Create(transaction).Error; err != nil {
			return err
		}

		return s.accountService.UpdateAccountBalance(tx, account, transactionType, amount)
	})
	if err != nil {
		return nil, s.translateWriteError(err, userID, accountID)
	}

	transaction.Category = category
	s.publish(events.TransactionRecorded, transaction, transaction.SignedAmount())
	return transaction, nil
}

// UpdateTransaction changes a transaction and moves its balance effect: the
// old effect is reversed and the new one applied in the same database
// transaction.
func (s *transactionService) UpdateTransaction(userID, transactionID string, fields TransactionUpdateFields) (*models.Transaction, error) {
	if fields.Amount != nil {
		if err := validateAmount(*fields.Amount); err != nil {
			return nil, err
		}
	}
	if fields.Type != nil && !fields.Type.Valid() {
		return nil, apperrors.ErrInvalidTransactionType
	}

	var (
		updated *models.Transaction
		delta   float64
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		existing, err := s.findTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		account, err := findAccount(tx, userID, existing.AccountID)
		if err != nil {
			return err
		}

		next := *existing
		next.Category = nil
		if fields.Type != nil {
			next.Type = *fields.Type
		}
		if fields.Amount != nil {
			next.Amount = *fields.Amount
		}
		if fields.Description != nil {
			next.Description = *fields.Description
		}
		if fields.Date != nil && !fields.Date.IsZero() {
			next.Date = fields.Date.UTC()
		}

		var category *models.Category
		switch {
		case fields.CategoryID != nil:
			category, err = findVisibleCategory(tx, userID, *fields.CategoryID)
		case existing.CategoryID != nil:
			category, err = findVisibleCategory(tx, userID, *existing.CategoryID)
		}
		if err != nil {
			return err
		}
		if category != nil {
			next.CategoryID = &category.ID
		}
		if err := checkCategoryType(category, next.Type); err != nil {
			return err
		}

		if err := tx.Model(&models.Transaction{}).Where("id = ?", existing.ID).Updates(map[string]interface{}{
			"category_id": next.CategoryID,
			"type":        next.Type,
			"amount":      next.Amount,
			"description": next.Description,
			"date":        next.Date,
		}).Error; err != nil {
			return err
		}

		if err := s.accountService.UpdateAccountBalance(tx, account, reverseType(existing.Type), existing.Amount); err != nil {
			return err
		}
		if err := s.accountService.UpdateAccountBalance(tx, account, next.Type, next.Amount); err != nil {
			return err
		}

		delta = next.SignedAmount() - existing.SignedAmount()
		updated, err = s.findTransaction(tx, userID, existing.ID)
		return err
	})
	if err != nil {
		return nil, s.translateWriteError(err, userID, "")
	}

	s.publish(events.TransactionUpdated, updated, delta)
	return updated, nil
}

// DeleteTransaction deletes a transaction and reverses its effect on the
// account balance.
func (s *transactionService) DeleteTransaction(userID, transactionID string) error {
	var transaction *models.Transaction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		transaction, err = s.findTransaction(tx, userID, transactionID)
		if err != nil {
			return err
		}
		account, err := findAccount(tx, userID, transaction.AccountID)
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.Transaction{}, "id = ?", transaction.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return s.accountService.UpdateAccountBalance(tx, account, reverseType(transaction.Type), transaction.Amount)
	})
	if err != nil {
		return s.translateWriteError(err, userID, "")
	}

	s.publish(events.TransactionDeleted, transaction, -transaction.SignedAmount())
	return nil
}

// GetTransactionByID retrieves a transaction by ID for a specific user
func (s *transactionService) GetTransactionByID(userID, transactionID string) (*models.Transaction, error) {
	return s.findTransaction(s.db, userID, transactionID)
}

// GetAccountTransactions retrieves a paginated, filtered list of transactions for a specific account.
func (s *transactionService) GetAccountTransactions(userID, accountID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	if _, err := s.accountService.GetAccountByID(userID, accountID); err != nil {
		return nil, err
	}
	filter.AccountID = &accountID
	return s.GetUserTransactions(userID, page, filter)
}

// GetUserTransactions retrieves a paginated, filtered list of all of a user's
// transactions, newest first.
func (s *transactionService) GetUserTransactions(userID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := applyTransactionFilters(s.db.Model(&models.Transaction{}).Where("user_id = ?", userID), filter).
		Session(&gorm.Session{})

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Preload("Category").
		Order("date DESC, id DESC").
		Scopes(pagination.Paginate(page)).
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetTransactionSummary returns the transactions matching filter together
// with their count, the sum of their amounts and per-category totals.
func (s *transactionService) GetTransactionSummary(userID string, filter TransactionFilter) (*TransactionSummary, error) {
	var transactions []models.Transaction
	if err := applyTransactionFilters(s.db.Where("user_id = ?", userID), filter).
		Preload("Category").
		Order("date DESC, id DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &TransactionSummary{
		ByCategory:   []CategoryTotal{},
		Transactions: transactions,
	}
	if summary.Transactions == nil {
		summary.Transactions = []models.Transaction{}
	}

	type key struct {
		categoryID string
		txType     models.TransactionType
	}
	index := make(map[key]int)
	for i := range transactions {
		t := &transactions[i]
		summary.Count++
		summary.Total += t.Amount
		switch t.Type {
		case models.TransactionTypeIncome:
			summary.Income += t.Amount
		case models.TransactionTypeExpense:
			summary.Expense += t.Amount
		}

		k := key{txType: t.Type}
		if t.CategoryID != nil {
			k.categoryID = *t.CategoryID
		}
		pos, ok := index[k]
		if !ok {
			total := CategoryTotal{CategoryID: t.CategoryID, Type: t.Type}
			if t.Category != nil {
				total.CategoryName = t.Category.Name
			}
			summary.ByCategory = append(summary.ByCategory, total)
			pos = len(summary.ByCategory) - 1
			index[k] = pos
		}
		summary.ByCategory[pos].Count++
		summary.ByCategory[pos].Total += t.Amount
	}

	summary.Total = roundMoney(summary.Total)
	summary.Income = roundMoney(summary.Income)
	summary.Expense = roundMoney(summary.Expense)
	for i := range summary.ByCategory {
		summary.ByCategory[i].Total = roundMoney(summary.ByCategory[i].Total)
	}
	return summary, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", f.FromDate.UTC())
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", f.ToDate.UTC())
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.AccountID != nil {
		q = q.Where("account_id = ?", *f.AccountID)
	}
	if f.MinAmount != nil {
		q = q.Where("amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("amount <= ?", *f.MaxAmount)
	}
	return q
}

func (s *transactionService) findTransaction(db *gorm.DB, userID, transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := db.Preload("Category").
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// translateWriteError turns a raw database error from a ledger write into an
// AppError. A foreign-key violation means the account or the category was
// deleted concurrently; the account is checked first to report which one.
func (s *transactionService) translateWriteError(err error, userID, accountID string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if !isForeignKeyViolation(err) {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if accountID != "" {
		var count int64
		if cerr := s.db.Model(&models.Account{}).
			Where("id = ? AND user_id = ?", accountID, userID).
			Count(&count).Error; cerr == nil && count == 0 {
			return apperrors.Wrap(apperrors.ErrAccountNotFound, err)
		}
	}
	return apperrors.Wrap(apperrors.ErrCategoryNotFound, err)
}

// publish sends a ledger event after commit. Failures are logged only: the
// transaction is already durable.
func (s *transactionService) publish(eventType events.EventType, t *models.Transaction, delta float64) {
	event := events.NewLedgerEvent(eventType, t.UserID, t.AccountID, t.ID, string(t.Type), t.Amount, delta)
	if err := s.publisher.Publish(context.Background(), event); err != nil {
		logger.Get().Warnw("failed to publish ledger event",
			"error", err,
			"type", eventType,
			"transaction_id", t.ID,
		)
	}
}
