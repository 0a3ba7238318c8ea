package routes

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/lavka/internal/config"
	"github.com/example/lavka/internal/handlers"
	"github.com/example/lavka/internal/middleware"
	"github.com/example/lavka/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	telegramService := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	wayforpayService := services.NewWayForPayService(db, cfg.WayForPayEndpoint)

	authHandler := handlers.NewAuthHandler(db, cfg)
	providerHandler := handlers.NewProviderHandler(db)
	profileHandler := handlers.NewProfileHandler(db)
	checkoutHandler := handlers.NewCheckoutHandler(db, cfg, wayforpayService)
	wayforpayHandler := handlers.NewWayForPayHandler(db, wayforpayService, telegramService)

	api := app.Group("/api")

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	// Provider registry
	providers := api.Group("/payment-providers", middleware.AuthMiddleware(cfg))
	providers.Get("/", providerHandler.ListProviders)
	providers.Delete("/:provider_id", providerHandler.DeleteProvider)

	// Payment profile management
	profiles := api.Group("/payment-profiles", middleware.AuthMiddleware(cfg))
	profiles.Get("/", profileHandler.ListProfiles)
	profiles.Post("/", profileHandler.CreateProfile)
	profiles.Put("/:id", profileHandler.UpdateProfile)
	profiles.Delete("/:id", profileHandler.DeleteProfile)

	// Checkout (works for guests; picks up the visitor email when a token is present)
	payments := api.Group("/payments", middleware.OptionalAuthMiddleware(cfg))
	payments.Post("/checkout", checkoutHandler.Checkout)

	// Gateway callback endpoint (service URL) and audit log
	wayforpay := api.Group("/wayforpay")
	wayforpay.Post("/callback", wayforpayHandler.Callback)
	wayforpay.Get("/logs", middleware.AuthMiddleware(cfg), wayforpayHandler.ListCallbackLogs)
}
