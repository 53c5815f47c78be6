package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/validator"
)

// currencyService handles currency reference data.
type currencyService struct {
	db *gorm.DB
}

// NewCurrencyService creates a new CurrencyServicer.
func NewCurrencyService(db *gorm.DB) CurrencyServicer {
	return &currencyService{db: db}
}

// ListCurrencies returns every currency ordered by code.
func (s *currencyService) ListCurrencies() ([]models.Currency, error) {
	var currencies []models.Currency
	if err := s.db.Order("code ASC").Find(&currencies).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return currencies, nil
}

func (s *currencyService) GetCurrencyByCode(code string) (*models.Currency, error) {
	return findCurrency(s.db, code)
}

// CreateCurrency adds a currency. The code must be a known ISO 4217 code.
func (s *currencyService) CreateCurrency(code, name, symbol string) (*models.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if !validator.IsCurrencyCode(code) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "currency code must be an ISO 4217 code")
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "currency name is required")
	}

	var count int64
	if err := s.db.Model(&models.Currency{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateCurrency
	}

	currency := &models.Currency{Code: code, Name: name, Symbol: strings.TrimSpace(symbol)}
	if err := s.db.Create(currency).Error; err != nil {
		return nil, translateDBError(err, nil, apperrors.ErrDuplicateCurrency)
	}
	return currency, nil
}

// findCurrency looks a currency up by case-insensitive code.
func findCurrency(db *gorm.DB, code string) (*models.Currency, error) {
	var currency models.Currency
	err := db.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&currency).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrCurrencyNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &currency, nil
}
