// Package auth implements login and JWT issuance for the payment portal.
// Credential storage itself is a thin collaborator; the rest of the system
// only ever sees the resolved principal on the request context.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"swiftpay/internal/domain"
	pkgerrors "swiftpay/pkg/errors"
	"swiftpay/pkg/validator"
)

// Service authenticates users and issues bearer tokens.
type Service struct {
	repo      Repository
	jwtSecret string
	jwtExpiry time.Duration
}

func NewService(repo Repository, jwtSecret string, jwtExpiry time.Duration) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

// LoginRequest captures credentials for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned on successful login.
type TokenResponse struct {
	AccessToken string            `json:"access_token"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Principal   *domain.Principal `json:"user"`
}

// Login authenticates a user and returns a signed token carrying the
// principal's id, role, and account number.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	username := validator.Sanitize(req.Username)
	if err := validator.ValidateField("username", username); err != nil {
		return nil, pkgerrors.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, pkgerrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, pkgerrors.ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return s.generateToken(user)
}

func (s *Service) generateToken(user *domain.User) (*TokenResponse, error) {
	expiresAt := time.Now().Add(s.jwtExpiry)

	claims := jwt.MapClaims{
		"user_id":        user.ID.String(),
		"username":       user.Username,
		"role":           string(user.Role),
		"account_number": user.AccountNumber,
		"exp":            expiresAt.Unix(),
		"iat":            time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	accessToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt,
		Principal: &domain.Principal{
			ID:            user.ID,
			Username:      user.Username,
			Role:          user.Role,
			AccountNumber: user.AccountNumber,
		},
	}, nil
}

// Repository interface
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}
