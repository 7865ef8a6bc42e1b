// Package routes defines the API routing configuration.
// It wires repositories, services and handlers and applies auth
// middleware per group.
package routes

import (
	"time"

	"pesaflow/internal/config"
	"pesaflow/internal/gateway"
	"pesaflow/internal/handlers"
	"pesaflow/internal/middleware"
	"pesaflow/internal/repositories"
	"pesaflow/internal/services/auth"
	"pesaflow/internal/services/matching"
	"pesaflow/internal/services/notification"
	"pesaflow/internal/services/settlement"
	"pesaflow/internal/services/topup"
	"pesaflow/internal/services/transfer"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	withdrawalRepo := repositories.NewWithdrawalRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	// Services
	authService := auth.NewService(accountRepo)
	notifier := notification.NewService(notificationRepo)
	matchingService := matching.NewService(accountRepo)
	settlementService := settlement.NewService(accountRepo, withdrawalRepo, transactionRepo, notifier, repositories.CacheService)
	topupService := topup.NewService(accountRepo)

	gatewayClient := gateway.NewClientFromEnv()
	pollOpts := gateway.PollOptions{
		Attempts:     config.GetIntEnv("GATEWAY_POLL_ATTEMPTS", 0),
		InitialDelay: config.GetDurationEnv("GATEWAY_POLL_INITIAL_DELAY", 0),
		Interval:     config.GetDurationEnv("GATEWAY_POLL_INTERVAL", 0),
	}
	transferService := transfer.NewService(accountRepo, transactionRepo, gatewayClient, notifier, repositories.CacheService, pollOpts)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	walletHandler := handlers.NewWalletHandler(accountRepo, transactionRepo, topupService, repositories.CacheService)
	agentHandler := handlers.NewAgentHandler(matchingService)
	withdrawalHandler := handlers.NewWithdrawalHandler(settlementService)
	paymentHandler := handlers.NewPaymentHandler(transferService)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	adminHandler := handlers.NewAdminHandler(settlementService)

	// Public routes
	app.Get("/api/health", handlers.HealthCheck)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to PesaFlow API",
			"version": "1.0.0",
			"time":    time.Now().UTC(),
		})
	})

	api := app.Group("/api")
	api.Post("/register", authHandler.Register)
	api.Post("/login", authHandler.Login)
	api.Post("/refresh", authHandler.Refresh)

	// Protected routes
	authMiddleware := middleware.NewAuthMiddleware(authService)
	protected := api.Use(authMiddleware.Handler)

	protected.Post("/logout", authHandler.Logout)

	// Wallet
	wallet := protected.Group("/wallet")
	wallet.Get("/", walletHandler.GetWallet)
	wallet.Post("/topup", walletHandler.TopUp)

	protected.Get("/transactions", walletHandler.History)
	protected.Get("/notifications", notificationHandler.List)

	// Agent availability and discovery
	protected.Put("/agent/availability", middleware.AgentOnly, agentHandler.SetAvailability)
	protected.Get("/agents/nearby", agentHandler.NearbyAgents)

	// Cash withdrawal requests
	withdrawals := protected.Group("/withdrawals")
	withdrawals.Post("/", withdrawalHandler.CreateRequest)
	withdrawals.Get("/active", withdrawalHandler.GetActiveRequest)
	withdrawals.Patch("/:id", withdrawalHandler.Transition)
	withdrawals.Delete("/:id", withdrawalHandler.Delete)

	// External payments
	payments := protected.Group("/payments")
	payments.Post("/withdraw", paymentHandler.Withdraw)
	payments.Post("/send", paymentHandler.Send)

	// Support operations
	admin := protected.Group("/admin", middleware.AdminOnly)
	admin.Post("/accounts/:id/unlock", adminHandler.UnlockAccount)
}
