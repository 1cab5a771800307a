// Package server assembles the Fiber application.
package server

import (
	"strings"
	"time"

	"pageturner/internal/config"
	"pageturner/internal/handlers"
	"pageturner/internal/middleware"
	"pageturner/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
)

// Services are the application services the HTTP layer exposes.
type Services struct {
	Auth    *services.AuthService
	Catalog *services.CatalogService
	Orders  *services.OrderService
}

// New builds the Fiber app with middleware and every route registered.
func New(cfg *config.Config, log logrus.FieldLogger, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		ErrorHandler:          handlers.ErrorHandler(log, cfg.ExposeErrorDetails),
		DisableStartupMessage: !cfg.IsDevelopment(),
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	origins := strings.Join(cfg.CORSAllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		// Fiber refuses credentials together with a wildcard origin.
		AllowCredentials: origins != "" && !strings.Contains(origins, "*"),
	}))
	app.Use(middleware.RequestLogger(log))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to PageTurner API"})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})

	gate := middleware.NewGate(svc.Auth)
	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst)

	api := app.Group("/api")
	handlers.NewAuthHandler(svc.Auth, limiter.Handler()).RegisterRoutes(api)
	handlers.NewBookHandler(svc.Catalog, gate).RegisterRoutes(api)
	handlers.NewOrderHandler(svc.Orders, gate).RegisterRoutes(api)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "Route not found"})
	})
	return app
}
