package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vikasavnish/mfbroker/internal/models"
)

// Session is the token pair handed out at login
type Session struct {
	User         models.User
	AccessToken  string
	RefreshToken string
}

// AuthService defines the interface for authentication operations
type AuthService interface {
	Signup(ctx context.Context, req models.SignupRequest) (models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (Session, error)
	Refresh(claims *models.Claims) (string, error)
}

// authService implements the AuthService interface
type authService struct {
	users      UserService
	hasher     PasswordHasher
	tokens     TokenService
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(users UserService, hasher PasswordHasher, tokens TokenService, accessTTL, refreshTTL time.Duration) AuthService {
	return &authService{
		users:      users,
		hasher:     hasher,
		tokens:     tokens,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Signup registers a new user with a hashed password
func (s *authService) Signup(ctx context.Context, req models.SignupRequest) (models.User, error) {
	_, err := s.users.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil:
		return models.User{}, ErrAlreadyExists
	case !errors.Is(err, ErrNotFound):
		return models.User{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.users.CreateUser(ctx, models.User{
		Email:        req.Email,
		PasswordHash: hash,
		IsVerified:   true,
	})
}

// Login verifies credentials and issues an access and a refresh token
func (s *authService) Login(ctx context.Context, req models.LoginRequest) (Session, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}

	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	identity := models.UserIdentity{Email: user.Email, UserID: user.ID}
	access, err := s.tokens.Issue(identity, s.accessTTL, false)
	if err != nil {
		return Session{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.Issue(identity, s.refreshTTL, true)
	if err != nil {
		return Session{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return Session{User: user, AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges validated refresh-token claims for a new access token
func (s *authService) Refresh(claims *models.Claims) (string, error) {
	if claims == nil || !claims.Refresh {
		return "", ErrRefreshTokenRequired
	}
	return s.tokens.Issue(claims.User, s.accessTTL, false)
}
