package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pageturner/internal/apperror"
	"pageturner/internal/handlers"
	"pageturner/internal/logger"
	"pageturner/internal/middleware"
	"pageturner/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]*models.User

func (s stubVerifier) VerifyToken(_ context.Context, token string) (*models.User, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, apperror.Authentication("Invalid token")
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger.Discard(), false)})
	gate := middleware.NewGate(stubVerifier{
		"reader-token": {ID: "u1", Name: "Reader"},
		"admin-token":  {ID: "a1", Name: "Admin", IsAdmin: true},
	})
	whoami := func(c *fiber.Ctx) error {
		return c.SendString(middleware.CurrentUser(c).ID)
	}
	app.Get("/me", gate.RequireAuth, whoami)
	app.Get("/admin", gate.RequireAuth, gate.RequireAdmin, whoami)
	app.Get("/unguarded-admin", gate.RequireAdmin, whoami)
	return app
}

func TestGate(t *testing.T) {
	app := newApp()
	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic abc", http.StatusUnauthorized},
		{"bearer without token", "/me", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "/me", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/me", "Bearer reader-token", http.StatusOK},
		{"lowercase scheme", "/me", "bearer reader-token", http.StatusOK},
		{"customer on admin route", "/admin", "Bearer reader-token", http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer admin-token", http.StatusOK},
		{"admin gate without auth", "/unguarded-admin", "Bearer admin-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger.Discard(), false)})
	app.Use(middleware.NewRateLimiter(0.001, 2).Handler())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRequestLoggerRendersErrors(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger.Discard(), false)})
	app.Use(middleware.RequestLogger(logger.Discard()))
	app.Get("/missing", func(c *fiber.Ctx) error { return apperror.NotFoundf("Book not found") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db down") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRequestLoggerRecordsUser(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger.Discard(), false)})
	app.Use(middleware.RequestLogger(log))
	gate := middleware.NewGate(stubVerifier{"reader-token": {ID: "u1", Name: "Reader"}})
	app.Get("/me", gate.RequireAuth, func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	app.Get("/open", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer reader-token")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "u1", entry.Data["user_id"])
	assert.Equal(t, "/me", entry.Data["path"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/open", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotContains(t, hook.LastEntry().Data, "user_id")
	assert.Len(t, hook.AllEntries(), 2)
}
