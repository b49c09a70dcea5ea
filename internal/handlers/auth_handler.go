package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
	"github.com/vikasavnish/mfbroker/internal/utils"
)

// RefreshTokenHeader carries the refresh token on login
const RefreshTokenHeader = "X-Refresh-Token"

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService services.AuthService
	userService services.UserService
	logger      logrus.FieldLogger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService services.AuthService, userService services.UserService, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		logger:      logger.WithField("handler", "auth"),
	}
}

// RegisterPublicRoutes registers the routes that need no token
func (h *AuthHandler) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/signup", h.Signup).Methods("POST")
	router.HandleFunc("/login", h.Login).Methods("POST")
	router.HandleFunc("/welcome", h.Welcome).Methods("GET")
}

// RegisterRoutes registers the routes behind the access-token guard
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.Me).Methods("GET")
}

// RegisterRefreshRoutes registers the routes behind the refresh-token guard
func (h *AuthHandler) RegisterRefreshRoutes(router *mux.Router) {
	router.HandleFunc("/refresh-token", h.RefreshToken).Methods("POST")
}

// Signup creates a new account
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, err, map[error]string{
			services.ErrAlreadyExists: "User with this email already exists.",
		})
		return
	}

	h.logger.WithField("user_id", user.ID).Info("user signed up")
	writeJSON(w, http.StatusCreated, models.AuthResponse{
		Message: "Account created successfully! Check email to verify your account.",
		Status:  "success",
		User:    models.UserIdentity{Email: user.Email, UserID: user.ID},
	})
}

// Login verifies credentials and returns the tokens in response headers
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.authService.Login(r.Context(), req)
	if err != nil {
		respondError(w, h.logger, err, nil)
		return
	}

	w.Header().Set("Authorization", "Bearer "+session.AccessToken)
	w.Header().Set(RefreshTokenHeader, session.RefreshToken)
	writeJSON(w, http.StatusOK, models.AuthResponse{
		Message: "Login Successful",
		Status:  "success",
		User:    models.UserIdentity{Email: session.User.Email, UserID: session.User.ID},
	})
}

// Me returns the current user with their investments
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.userService.GetUserWithInvestments(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, map[error]string{
			services.ErrNotFound: "User not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, user.View())
}

// RefreshToken issues a new access token for a valid refresh token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	claims, err := utils.GetClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	token, err := h.authService.Refresh(claims)
	if err != nil {
		respondError(w, h.logger, err, nil)
		return
	}

	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, models.AuthResponse{
		Message: "Token refreshed",
		Status:  "success",
		User:    claims.User,
	})
}

// Welcome is a public greeting
func (h *AuthHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Welcome to Bhive MFB App"})
}
