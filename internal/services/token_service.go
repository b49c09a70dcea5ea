package services

import (
	"fmt"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/vikasavnish/mfbroker/internal/models"
)

// TokenService issues and validates signed session tokens
type TokenService interface {
	Issue(identity models.UserIdentity, ttl time.Duration, refresh bool) (string, error)
	Validate(tokenString string) (*models.Claims, error)
}

// tokenService implements the TokenService interface
type tokenService struct {
	secretKey []byte
	method    jwt.SigningMethod
}

// NewTokenService creates a token service signing with an HMAC algorithm
// (HS256, HS384 or HS512) and the given secret.
func NewTokenService(secretKey []byte, algorithm string) (TokenService, error) {
	if len(secretKey) == 0 {
		return nil, fmt.Errorf("token service: empty secret key")
	}
	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("token service: unsupported algorithm %q", algorithm)
	}
	return &tokenService{
		secretKey: secretKey,
		method:    method,
	}, nil
}

// Issue creates a token for the identity that expires after ttl
func (s *tokenService) Issue(identity models.UserIdentity, ttl time.Duration, refresh bool) (string, error) {
	now := time.Now()
	claims := &models.Claims{
		User:    identity,
		Refresh: refresh,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Id:        uuid.NewString(),
			Subject:   identity.UserID,
		},
	}

	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(s.secretKey)
}

// Validate checks signature, algorithm and expiry. Every failure is reported
// as ErrInvalidToken.
func (s *tokenService) Validate(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	parser := &jwt.Parser{ValidMethods: []string{s.method.Alg()}}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
