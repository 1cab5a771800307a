package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pageturner/internal/apperror"
	"pageturner/internal/models"
	"pageturner/internal/repositories"
	"pageturner/internal/validation"

	"github.com/dgrijalva/jwt-go"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = time.Hour

// Claims is the payload of an access token.
type Claims struct {
	UserID string `json:"user"`
	jwt.StandardClaims
}

// RegisterRequest is the payload of a registration.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,bcrypt_len"`
}

// LoginRequest is the payload of a login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo   repositories.UserRepository
	jwtSecret  []byte
	bcryptCost int
	now        func() time.Time
	log        logrus.FieldLogger
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithClock overrides the clock used to issue and check tokens.
func WithClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithBcryptCost sets the bcrypt work factor for new passwords.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// WithAuthLogger sets the logger.
func WithAuthLogger(log logrus.FieldLogger) AuthOption {
	return func(s *AuthService) { s.log = log }
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, jwtSecret string, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo:   userRepo,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a customer account. The email must not be registered yet.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	return s.createUser(ctx, req, false)
}

func (s *AuthService) createUser(ctx context.Context, req RegisterRequest, admin bool) (*models.User, error) {
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperror.Conflictf("User already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user := &models.User{Name: req.Name, Email: req.Email, IsAdmin: admin}
	if err := user.SetPassword(req.Password, s.bcryptCost); err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "failed to hash password", err)
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperror.Conflictf("User already exists")
		}
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	return user, nil
}

// Login checks the credentials and issues a signed token valid for TokenTTL.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return "", err
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", apperror.NotFoundf("User not found")
		}
		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.CheckPassword(req.Password) {
		return "", apperror.Authentication("Invalid credentials")
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(TokenTTL).Unix(),
		},
	})

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks the signature and expiry of a token and resolves its user.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*models.User, error) {
	var claims Claims
	// Expiry is checked below against the injected clock.
	parser := jwt.Parser{SkipClaimsValidation: true}
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.log.WithError(err).Debug("token rejected")
		return nil, apperror.Authentication("Invalid token")
	}

	if !claims.VerifyExpiresAt(s.now().Unix(), true) {
		return nil, apperror.Authentication("Token expired")
	}
	if claims.UserID == "" {
		return nil, apperror.Authentication("Invalid token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.Authentication("User no longer exists")
		}
		return nil, fmt.Errorf("failed to resolve token user: %w", err)
	}
	return user, nil
}

// EnsureAdmin creates an administrator account unless the email is already registered.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	req := RegisterRequest{
		Name:     strings.TrimSpace(name),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := validation.Struct(req); err != nil {
		return fmt.Errorf("invalid admin account: %w", err)
	}

	user, err := s.createUser(ctx, req, true)
	if apperror.IsKind(err, apperror.KindConflict) {
		s.log.WithField("email", req.Email).Info("admin account already present")
		return nil
	}
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"email": user.Email, "user_id": user.ID}).Info("admin account created")
	return nil
}
