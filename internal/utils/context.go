package utils

import (
	"context"
	"errors"

	"github.com/vikasavnish/mfbroker/internal/models"
)

// Key type for context values
type contextKey string

const claimsKey contextKey = "claims"

var errNoClaims = errors.New("token claims not found in context")

// SetClaimsToContext stores validated token claims in the context
func SetClaimsToContext(ctx context.Context, claims *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// GetClaimsFromContext extracts the token claims from the context
func GetClaimsFromContext(ctx context.Context) (*models.Claims, error) {
	claims, ok := ctx.Value(claimsKey).(*models.Claims)
	if !ok || claims == nil {
		return nil, errNoClaims
	}
	return claims, nil
}

// GetUserIDFromContext extracts the user ID from the context
func GetUserIDFromContext(ctx context.Context) (string, error) {
	claims, err := GetClaimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	if claims.User.UserID == "" {
		return "", errors.New("user ID not found in context")
	}
	return claims.User.UserID, nil
}
