package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
	"github.com/vikasavnish/mfbroker/internal/utils"
)

// TokenKind selects which tokens a guard accepts
type TokenKind int

const (
	AccessOnly TokenKind = iota
	RefreshOnly
)

func (k TokenKind) String() string {
	if k == RefreshOnly {
		return "refresh"
	}
	return "access"
}

var errMissingBearer = errors.New("missing bearer credentials")

// Authenticate extracts the bearer token from the request, validates it and
// checks that it is the expected kind.
func Authenticate(tokens services.TokenService, kind TokenKind, r *http.Request) (*models.Claims, error) {
	tokenString, ok := BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, errMissingBearer
	}

	claims, err := tokens.Validate(tokenString)
	if err != nil {
		return nil, services.ErrInvalidToken
	}

	switch kind {
	case AccessOnly:
		if claims.Refresh {
			return nil, services.ErrAccessTokenRequired
		}
	case RefreshOnly:
		if !claims.Refresh {
			return nil, services.ErrRefreshTokenRequired
		}
	}
	return claims, nil
}

// BearerToken returns the credential of an "Authorization: Bearer" header
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Guard rejects requests without a valid token of the given kind and stores
// the claims in the request context.
func Guard(tokens services.TokenService, kind TokenKind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := Authenticate(tokens, kind, r)
			if err != nil {
				status, detail := guardFailure(err)
				writeDetail(w, status, detail)
				return
			}

			ctx := utils.SetClaimsToContext(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func guardFailure(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrAccessTokenRequired):
		return http.StatusForbidden, "Please provide a valid access token"
	case errors.Is(err, services.ErrRefreshTokenRequired):
		return http.StatusForbidden, "Please provide a valid refresh token"
	case errors.Is(err, errMissingBearer):
		return http.StatusUnauthorized, "Not authenticated"
	default:
		return http.StatusUnauthorized, "Token is invalid or expired"
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Detail: detail})
}
