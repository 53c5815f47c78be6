// Package server assembles the HTTP API from services, handlers and middleware.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/Bahdan321/Study-Practice-3-course/internal/docs" // Import swagger docs
	"github.com/Bahdan321/Study-Practice-3-course/internal/events"
	"github.com/Bahdan321/Study-Practice-3-course/internal/handlers"
	"github.com/Bahdan321/Study-Practice-3-course/internal/middleware"
	"github.com/Bahdan321/Study-Practice-3-course/internal/models"
	"github.com/Bahdan321/Study-Practice-3-course/internal/rates"
	"github.com/Bahdan321/Study-Practice-3-course/internal/services"
)

// Services bundles every business service the API needs.
type Services struct {
	Users        services.UserServicer
	Sessions     services.SessionServicer
	Currencies   services.CurrencyServicer
	Accounts     services.AccountServicer
	Categories   services.CategoryServicer
	Transactions services.TransactionServicer
	Audit        services.AuditServicer
}

// NewServices wires the services over one database handle.
func NewServices(db *gorm.DB, sessionTTL time.Duration, publisher events.Publisher, converter rates.Converter) *Services {
	accountService := services.NewAccountService(db, converter)
	return &Services{
		Users:        services.NewUserService(db),
		Sessions:     services.NewSessionService(db, sessionTTL),
		Currencies:   services.NewCurrencyService(db),
		Accounts:     accountService,
		Categories:   services.NewCategoryService(db),
		Transactions: services.NewTransactionService(db, accountService, publisher),
		Audit:        services.NewAuditService(db),
	}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc *Services, corsOrigins []string) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Users, svc.Sessions, svc.Audit)
	currencyHandler := handlers.NewCurrencyHandler(svc.Currencies, svc.Audit)
	accountHandler := handlers.NewAccountHandler(svc.Accounts, svc.Audit)
	categoryHandler := handlers.NewCategoryHandler(svc.Categories, svc.Audit)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions, svc.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(corsOrigins))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(svc.Sessions))
	adminOnly := middleware.RequireRole(models.UserRoleAdmin)

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/profile", authHandler.GetProfile)

	currencies := protected.Group("/currencies")
	currencies.GET("", currencyHandler.ListCurrencies)
	currencies.POST("", adminOnly, currencyHandler.CreateCurrency)

	accounts := protected.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetUserAccounts)
	accounts.GET("/net-worth", accountHandler.GetNetWorth)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.DELETE("/:id", accountHandler.DeleteAccount)
	accounts.GET("/:id/transactions", transactionHandler.GetAccountTransactions)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.POST("/defaults", adminOnly, categoryHandler.CreateDefaultCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := protected.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/summary", transactionHandler.GetTransactionSummary)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	return router
}
