package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pageturner/internal/config"
	"pageturner/internal/database"
	"pageturner/internal/logger"
	"pageturner/internal/models"
	"pageturner/internal/openlibrary"
	"pageturner/internal/repositories"
	"pageturner/internal/server"
	"pageturner/internal/services"
	"pageturner/pkg/rabbitmq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := logger.New(cfg.AppName, cfg.Env)

	// --- Storage ---
	store, db, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	if db != nil {
		defer func() {
			if err := database.Close(db); err != nil {
				logger.LogError(log, "Error closing database", err, nil)
			}
		}()
	}

	// --- Event publisher (optional) ---
	var publisher services.EventPublisher
	if cfg.RabbitMQURL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
			Queue:    cfg.RabbitMQQueue,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize RabbitMQ client")
		}
		defer mqClient.Close()
		publisher = mqClient
	} else {
		log.Info("RABBITMQ_URL not set, order events are disabled")
	}

	// --- Metadata lookups (optional) ---
	var metadata services.MetadataFetcher
	if cfg.OpenLibraryEnabled {
		metadata = openlibrary.New(cfg.OpenLibraryURL, cfg.OpenLibraryCoversURL,
			&http.Client{Timeout: cfg.OpenLibraryTimeout}, log)
	}

	// --- Services ---
	authService := services.NewAuthService(store.Users(), cfg.JWTSecret,
		services.WithBcryptCost(cfg.BcryptCost),
		services.WithAuthLogger(log),
	)
	catalogService := services.NewCatalogService(store, metadata, cfg.MaxPageLimit, log,
		services.WithPlaceholderCover(openlibrary.PlaceholderCover(cfg.OpenLibraryCoversURL)),
	)
	orderService := services.NewOrderService(store, publisher, pricing(cfg), log)

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		if err := authService.EnsureAdmin(context.Background(), cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.WithError(err).Fatal("Failed to seed admin account")
		}
	}

	app := server.New(cfg, log, server.Services{
		Auth:    authService,
		Catalog: catalogService,
		Orders:  orderService,
	})

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.WithField("addr", cfg.ListenAddr()).Info("Starting server")
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-quit
	log.Info("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		logger.LogError(log, "Error during Fiber shutdown", err, nil)
	}
	log.Info("Server gracefully stopped")
}

// openStore returns the configured store. db is nil for the memory driver.
func openStore(cfg *config.Config, log logrus.FieldLogger) (repositories.Store, *gorm.DB, error) {
	if cfg.DBDriver == "memory" {
		log.Warn("Using the in-memory store, data is lost on restart")
		return repositories.NewMemoryStore(), nil, nil
	}

	db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN, log)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewGORMStore(db), db, nil
}

func pricing(cfg *config.Config) models.Pricing {
	return models.Pricing{
		TaxRate:               decimal.NewFromFloat(cfg.TaxRate),
		ShippingFlatRate:      decimal.NewFromFloat(cfg.ShippingFlatRate),
		FreeShippingThreshold: decimal.NewFromFloat(cfg.FreeShippingThreshold),
	}
}
