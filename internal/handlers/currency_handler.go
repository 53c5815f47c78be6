package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Bahdan321/Study-Practice-3-course/internal/errors"
	"github.com/Bahdan321/Study-Practice-3-course/internal/services"
)

// CurrencyHandler serves currency reference data.
type CurrencyHandler struct {
	currencyService services.CurrencyServicer
	auditService    services.AuditServicer
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(currencyService services.CurrencyServicer, auditService services.AuditServicer) *CurrencyHandler {
	return &CurrencyHandler{currencyService: currencyService, auditService: auditService}
}

// CreateCurrencyRequest represents the request payload for adding a currency.
type CreateCurrencyRequest struct {
	Code   string `json:"code" binding:"required,iso4217"`
	Name   string `json:"name" binding:"required,min=1,max=100"`
	Symbol string `json:"symbol" binding:"max=8"`
}

// ListCurrencies returns all currencies
// @Summary     List currencies
// @Description List all currencies ordered by code
// @Tags        currencies
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  models.Currency "Currencies"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies [get]
func (h *CurrencyHandler) ListCurrencies(c *gin.Context) {
	currencies, err := h.currencyService.ListCurrencies()
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"currencies": currencies})
}

// CreateCurrency adds a currency
// @Summary     Create currency
// @Description Add an ISO 4217 currency (admin only)
// @Tags        currencies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateCurrencyRequest true "Currency details"
// @Success     201 {object} models.Currency "Currency created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Forbidden"
// @Failure     409 {object} ErrorResponse "Currency already exists"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /currencies [post]
func (h *CurrencyHandler) CreateCurrency(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	currency, err := h.currencyService.CreateCurrency(req.Code, req.Name, req.Symbol)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_CURRENCY", "currency", currency.ID, c.ClientIP(),
		map[string]interface{}{"code": currency.Code})

	c.JSON(http.StatusCreated, gin.H{"currency": currency})
}
