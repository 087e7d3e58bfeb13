package routes

import (
	"sangam-memberhub/internal/adapters/gateway"
	"sangam-memberhub/internal/adapters/http/handlers"
	"sangam-memberhub/internal/adapters/http/middleware"
	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/config"
	"sangam-memberhub/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"gorm.io/gorm"
)

// Setup configures all routes for the application
func Setup(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	refreshTokenRepo := repositories.NewRefreshTokenRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	transactionRepo := repositories.NewTransactionRepository(db)
	exceptionRepo := repositories.NewReconciliationExceptionRepository(db)

	// Payment gateway client
	gatewayClient := gateway.NewClient(gateway.Config{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		BaseURL:   cfg.Razorpay.BaseURL,
		Timeout:   cfg.Razorpay.Timeout,
	})

	// Initialize services
	authService := services.NewAuthService(userRepo, refreshTokenRepo, cfg)
	userService := services.NewUserService(userRepo, membershipRepo)
	membershipService := services.NewMembershipService(db, membershipRepo)
	reconciliationService := services.NewReconciliationService(
		db,
		membershipService,
		membershipRepo,
		transactionRepo,
		exceptionRepo,
		gatewayClient,
		cfg.Razorpay.KeyID,
	)
	statsService := services.NewStatsService(db)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(authService, cfg)
	userHandler := handlers.NewUserHandler(userService)
	membershipHandler := handlers.NewMembershipHandler(membershipService, reconciliationService)
	paymentHandler := handlers.NewPaymentHandler(reconciliationService, cfg)
	adminHandler := handlers.NewAdminHandler(statsService, userService, transactionRepo, exceptionRepo)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	// Auth routes (public)
	authRoutes := apiV1.Group("/auth")
	setupAuthRoutes(authRoutes, authHandler, cfg)

	// Profile routes (authenticated members)
	profileRoutes := apiV1.Group("/profile")
	profileRoutes.Use(middleware.AuthMiddleware(cfg))
	profileRoutes.Get("/", userHandler.GetProfile)
	profileRoutes.Put("/", userHandler.UpdateProfile)

	// Membership routes (authenticated members)
	membershipRoutes := apiV1.Group("/memberships")
	membershipRoutes.Use(middleware.AuthMiddleware(cfg))
	setupMembershipRoutes(membershipRoutes, membershipHandler)

	// Payment routes
	paymentRoutes := apiV1.Group("/payments")
	paymentRoutes.Post("/webhook", paymentHandler.Webhook)
	paymentRoutes.Get("/history", middleware.AuthMiddleware(cfg), paymentHandler.History)

	// Admin routes (ADMIN only)
	adminRoutes := apiV1.Group("/admin")
	adminRoutes.Use(middleware.AuthMiddleware(cfg))
	adminRoutes.Use(middleware.AdminOnly())
	setupAdminRoutes(adminRoutes, adminHandler)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes (rate limited)
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), handler.LogoutAll)
}

// setupMembershipRoutes configures membership lifecycle routes
func setupMembershipRoutes(router fiber.Router, handler *handlers.MembershipHandler) {
	router.Post("/", handler.SelectPlan)
	router.Get("/current", handler.GetCurrent)
	router.Post("/:id/checkout", middleware.PaymentRateLimiter(), handler.Checkout)
	router.Post("/:id/confirm", middleware.PaymentRateLimiter(), handler.Confirm)
	router.Post("/:id/failure", handler.RecordFailure)
	router.Delete("/:id", handler.Cancel)
}

// setupAdminRoutes configures admin dashboard routes
func setupAdminRoutes(router fiber.Router, handler *handlers.AdminHandler) {
	router.Get("/stats", handler.Stats)
	router.Get("/members", handler.Members)
	router.Get("/members/export", handler.ExportMembersCSV)
	router.Get("/transactions", handler.Transactions)
	router.Get("/transactions/export", handler.ExportTransactionsCSV)
	router.Get("/exceptions", handler.Exceptions)
}
