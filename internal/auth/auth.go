// Package auth registers users, checks passwords and issues session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/opensource-finance/finsight/internal/domain"
)

const issuer = "finsight"

// Claims are the JWT claims carried by a session token.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service handles registration and login. The cache, when present,
// holds login-failure counters and username locks.
type Service struct {
	store domain.Store
	cache domain.Cache
	cfg   domain.AuthConfig
	cost  int
	now   func() time.Time
}

// NewService creates an auth service. cache may be nil to disable throttling.
func NewService(store domain.Store, cache domain.Cache, cfg domain.AuthConfig) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{store: store, cache: cache, cfg: cfg, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: username already taken", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		FullName:     req.FullName,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and returns a signed token.
// Repeated failures lock the username for the rest of the failure window.
func (s *Service) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: request body is required", domain.ErrInvalidInput)
	}
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	if s.locked(ctx, req.Username) {
		return nil, fmt.Errorf("%w: too many failed attempts, try again later", domain.ErrUnauthorized)
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.recordFailure(ctx, req.Username)
			return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.recordFailure(ctx, req.Username)
		return nil, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	}

	s.clearFailures(ctx, req.Username)

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{Token: token, User: user, DemoSeeded: false}, nil
}

// IssueToken signs an HS256 token for user.
func (s *Service) IssueToken(user *domain.User) (string, error) {
	now := s.now()
	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a signed token and returns its claims.
func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(s.cfg.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
	}
	return claims, nil
}

func failureKey(username string) string { return "login-failures:" + strings.ToLower(username) }
func lockKey(username string) string    { return "login-lock:" + strings.ToLower(username) }

func (s *Service) locked(ctx context.Context, username string) bool {
	if s.cache == nil {
		return false
	}
	v, err := s.cache.Get(ctx, lockKey(username))
	if err != nil {
		slog.WarnContext(ctx, "login lock lookup failed", "error", err)
		return false
	}
	return v != nil
}

func (s *Service) recordFailure(ctx context.Context, username string) {
	if s.cache == nil || s.cfg.MaxFailures <= 0 {
		return
	}
	n, err := s.cache.IncrementCounter(ctx, failureKey(username), s.cfg.FailureWindow)
	if err != nil {
		slog.WarnContext(ctx, "login failure not counted", "error", err)
		return
	}
	if n >= int64(s.cfg.MaxFailures) {
		if err := s.cache.Set(ctx, lockKey(username), []byte("1"), s.cfg.FailureWindow); err != nil {
			slog.WarnContext(ctx, "login lock not set", "error", err)
			return
		}
		slog.WarnContext(ctx, "username locked after repeated login failures",
			"failures", n,
			"window", s.cfg.FailureWindow.String(),
		)
	}
}

func (s *Service) clearFailures(ctx context.Context, username string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, failureKey(username)); err != nil {
		slog.WarnContext(ctx, "login failures not cleared", "error", err)
	}
}
