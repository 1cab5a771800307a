package middleware

import (
	"context"
	"strings"

	"pageturner/internal/apperror"
	"pageturner/internal/models"

	"github.com/gofiber/fiber/v2"
)

const userKey = "user"

// TokenVerifier resolves a bearer token to its user.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*models.User, error)
}

// Gate guards routes behind authentication and the admin role.
// Rejections are returned as errors so the app ErrorHandler renders them.
type Gate struct {
	verifier TokenVerifier
}

// NewGate creates a Gate backed by verifier.
func NewGate(verifier TokenVerifier) *Gate {
	return &Gate{verifier: verifier}
}

// RequireAuth checks for a valid "Authorization: Bearer <token>" header.
func (g *Gate) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperror.Authentication("Not authorized, no token")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperror.Authentication("Authorization header format must be 'Bearer <token>'")
	}

	user, err := g.verifier.VerifyToken(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}

	c.Locals(userKey, user)
	return c.Next()
}

// RequireAdmin must run after RequireAuth.
func (g *Gate) RequireAdmin(c *fiber.Ctx) error {
	user := CurrentUser(c)
	if user == nil {
		return apperror.Authentication("Not authorized, no token")
	}
	if !user.IsAdmin {
		return apperror.AccessDenied("Not authorized as an admin")
	}
	return c.Next()
}

// CurrentUser returns the user attached by RequireAuth, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}
