package main

import (
	"os"
	"time"

	"keebshop_backend/config"
	"keebshop_backend/handlers"
	"keebshop_backend/internal/cart"
	"keebshop_backend/internal/catalog"
	"keebshop_backend/internal/checkout"
	"keebshop_backend/internal/metrics"
	"keebshop_backend/internal/notify"
	"keebshop_backend/internal/ws"
	"keebshop_backend/middleware"
	"keebshop_backend/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if os.Getenv("RESET_DB") == "true" {
		if err := config.ResetAndMigrate(db); err != nil {
			log.Fatalf("Failed to reset database: %v", err)
		}
	} else {
		if err := config.Migrate(db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Core components, wired once at startup.
	reader := catalog.NewReader(db)
	carts := cart.NewManager()
	orchestrator := checkout.NewOrchestrator(checkout.NewGormStore(db), log, checkout.Options{
		MaxRetries:         3,
		Timeout:            10 * time.Second,
		DefaultDeliveryFee: cfg.DefaultDeliveryFee,
	})
	notifier := notify.New(cfg.OrderWebhookURL, log)

	hub := ws.NewHub()
	go hub.Run()

	app := fiber.New(fiber.Config{
		AppName:      "Keebshop Backend",
		ServerHeader: "Keebshop Backend Server/1.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Default 500 statuscode
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			// Retrieve the custom statuscode if it's a *fiber.Error
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": msg,
			})
		},
	})

	middleware.SetupMiddleware(app)

	authHandler := handlers.NewAuthHandler(db)
	productHandler := handlers.NewProductHandler(db, reader)
	cartHandler := handlers.NewCartHandler(carts, reader)
	orderHandler := handlers.NewOrderHandler(db, orchestrator, carts, hub, notifier, cfg)
	wsHandler := handlers.NewWSHandler(hub)

	// Health Check Endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "success",
			"message": "API is healthy",
		})
	})
	app.Get("/metrics", metrics.Handler())

	api := app.Group("/api")

	// Auth
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Catalog
	api.Get("/products", productHandler.GetAllProducts)
	api.Get("/products/interest", productHandler.GetInterest)
	api.Get("/products/slug/:slug", productHandler.GetProductBySlug)
	api.Get("/products/:id", productHandler.GetProduct)
	api.Get("/categories", productHandler.GetCategories)

	// Cart
	api.Get("/cart", cartHandler.GetCart)
	api.Post("/cart/items", cartHandler.AddItem)
	api.Patch("/cart/items/:productId", cartHandler.UpdateItem)
	api.Delete("/cart/items/:productId", cartHandler.RemoveItem)
	api.Post("/cart/checkout", orderHandler.CheckoutCart)

	// Checkout + order tracking
	api.Post("/checkout", orderHandler.Checkout)
	api.Get("/orders/track/:transactionId", orderHandler.TrackOrder)

	// Admin console
	admin := api.Group("/admin", utils.AuthMiddleware, utils.AdminOnly)
	admin.Post("/products", productHandler.CreateProduct)
	admin.Patch("/products/:id", productHandler.UpdateProductField)
	admin.Delete("/products/:id", productHandler.DeleteProduct)
	admin.Get("/orders", orderHandler.ListOrders)
	admin.Patch("/orders/:id/status", orderHandler.UpdateOrderStatus)

	// Live admin order feed
	app.Use("/ws", handlers.UpgradeRequired)
	app.Get("/ws/admin/orders", websocket.New(wsHandler.OrderFeed))

	middleware.SetupErrorHandler(app)

	log.Printf("🚀 Server starting on host %s in port %s mode", cfg.HOST, cfg.AppPort)

	if err := app.Listen(cfg.HOST + ":" + cfg.AppPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
