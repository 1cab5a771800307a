package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment (and an optional .env file).
type Config struct {
	AppName string
	Env     string
	Port    string

	DBDriver    string // postgres, sqlite or memory
	DatabaseDSN string

	JWTSecret  string
	BcryptCost int

	CORSAllowedOrigins []string
	ExposeErrorDetails bool

	RabbitMQURL      string
	RabbitMQExchange string
	RabbitMQQueue    string

	OpenLibraryEnabled   bool
	OpenLibraryURL       string
	OpenLibraryCoversURL string
	OpenLibraryTimeout   time.Duration

	MaxPageLimit int

	TaxRate               float64
	ShippingFlatRate      float64
	FreeShippingThreshold float64

	AuthRateLimit float64
	AuthRateBurst int

	AdminName     string
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration with defaults suitable for local development.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment wins anyway.
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_NAME", "pageturner")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "3000")
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=127.0.0.1 user=postgres password=postgres dbname=pageturner port=5432 sslmode=disable")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("FRONTEND_URL", "")
	v.SetDefault("EXPOSE_ERROR_DETAILS", false)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "pageturner.orders")
	v.SetDefault("RABBITMQ_QUEUE", "order_queue")
	v.SetDefault("OPENLIBRARY_ENABLED", true)
	v.SetDefault("OPENLIBRARY_URL", "https://openlibrary.org")
	v.SetDefault("OPENLIBRARY_COVERS_URL", "https://covers.openlibrary.org")
	v.SetDefault("OPENLIBRARY_TIMEOUT", "5s")
	v.SetDefault("MAX_PAGE_LIMIT", 100)
	v.SetDefault("TAX_RATE", 0.15)
	v.SetDefault("SHIPPING_FLAT_RATE", 10.0)
	v.SetDefault("FREE_SHIPPING_THRESHOLD", 100.0)
	v.SetDefault("AUTH_RATE_LIMIT", 2.0)
	v.SetDefault("AUTH_RATE_BURST", 5)
	v.SetDefault("ADMIN_NAME", "Administrator")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.AutomaticEnv()
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppName:               v.GetString("APP_NAME"),
		Env:                   strings.ToLower(v.GetString("APP_ENV")),
		Port:                  strings.TrimPrefix(v.GetString("PORT"), ":"),
		DBDriver:              strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:           v.GetString("DATABASE_DSN"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		BcryptCost:            v.GetInt("BCRYPT_COST"),
		CORSAllowedOrigins:    splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		ExposeErrorDetails:    v.GetBool("EXPOSE_ERROR_DETAILS"),
		RabbitMQURL:           v.GetString("RABBITMQ_URL"),
		RabbitMQExchange:      v.GetString("RABBITMQ_EXCHANGE"),
		RabbitMQQueue:         v.GetString("RABBITMQ_QUEUE"),
		OpenLibraryEnabled:    v.GetBool("OPENLIBRARY_ENABLED"),
		OpenLibraryURL:        strings.TrimRight(v.GetString("OPENLIBRARY_URL"), "/"),
		OpenLibraryCoversURL:  strings.TrimRight(v.GetString("OPENLIBRARY_COVERS_URL"), "/"),
		OpenLibraryTimeout:    v.GetDuration("OPENLIBRARY_TIMEOUT"),
		MaxPageLimit:          v.GetInt("MAX_PAGE_LIMIT"),
		TaxRate:               v.GetFloat64("TAX_RATE"),
		ShippingFlatRate:      v.GetFloat64("SHIPPING_FLAT_RATE"),
		FreeShippingThreshold: v.GetFloat64("FREE_SHIPPING_THRESHOLD"),
		AuthRateLimit:         v.GetFloat64("AUTH_RATE_LIMIT"),
		AuthRateBurst:         v.GetInt("AUTH_RATE_BURST"),
		AdminName:             v.GetString("ADMIN_NAME"),
		AdminEmail:            v.GetString("ADMIN_EMAIL"),
		AdminPassword:         v.GetString("ADMIN_PASSWORD"),
	}

	if frontend := strings.TrimSpace(v.GetString("FRONTEND_URL")); frontend != "" {
		cfg.CORSAllowedOrigins = append([]string{frontend}, cfg.CORSAllowedOrigins...)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", cfg.Env)
		}
		cfg.JWTSecret = "dev-jwt-secret"
	}

	switch cfg.DBDriver {
	case "postgres", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	if cfg.AuthRateLimit <= 0 {
		return nil, fmt.Errorf("AUTH_RATE_LIMIT must be positive, got %v", cfg.AuthRateLimit)
	}
	if cfg.AuthRateBurst < 1 {
		return nil, fmt.Errorf("AUTH_RATE_BURST must be at least 1, got %d", cfg.AuthRateBurst)
	}

	if cfg.MaxPageLimit <= 0 {
		cfg.MaxPageLimit = 100
	}
	return cfg, nil
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ListenAddr returns the address Fiber listens on.
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
