package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/fundclient"
	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
)

const (
	msgUnexpected = "An unexpected error occurred"
	msgDatabase   = "Database error occurred"
	maxBodyBytes  = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorResponse{Detail: detail})
}

// requestError carries a message that is safe to return to the client
type requestError struct {
	detail string
}

func (e *requestError) Error() string { return e.detail }

var errInvalidBody = &requestError{detail: "Invalid request body"}

// decodeBody reads a JSON body into dst and validates it. The returned error
// is safe to show to the client.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errInvalidBody
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errInvalidBody
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email address", fe.Field()))
		case "min", "max", "gt", "gte":
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return &requestError{detail: strings.Join(parts, "; ")}
}

// respondError maps a service error to a status and a generic message. messages
// overrides the default detail for specific sentinels. Anything unrecognised
// becomes a 500 and is logged.
func respondError(w http.ResponseWriter, logger logrus.FieldLogger, err error, messages map[error]string) {
	status, detail := http.StatusInternalServerError, msgUnexpected
	var matched error

	switch {
	case errors.Is(err, services.ErrNotFound):
		status, detail, matched = http.StatusNotFound, "Resource not found", services.ErrNotFound
	case errors.Is(err, services.ErrAlreadyExists):
		status, detail, matched = http.StatusBadRequest, "Resource already exists", services.ErrAlreadyExists
	case errors.Is(err, services.ErrInvalidCredentials):
		status, detail, matched = http.StatusUnauthorized, "Invalid email or password", services.ErrInvalidCredentials
	case errors.Is(err, services.ErrInvalidToken):
		status, detail, matched = http.StatusUnauthorized, "Token is invalid or expired", services.ErrInvalidToken
	case errors.Is(err, services.ErrRefreshTokenRequired):
		status, detail, matched = http.StatusForbidden, "Please provide a valid refresh token", services.ErrRefreshTokenRequired
	case errors.Is(err, services.ErrRefreshInProgress):
		status, detail, matched = http.StatusConflict, "NAV refresh already in progress", services.ErrRefreshInProgress
	case errors.Is(err, fundclient.ErrExternalAPI):
		status, detail, matched = http.StatusBadGateway, "Failed to fetch data from RapidAPI", fundclient.ErrExternalAPI
	case errors.Is(err, fundclient.ErrInvalidResponseFormat):
		status, detail, matched = http.StatusBadGateway, "Invalid JSON response from API", fundclient.ErrInvalidResponseFormat
	case errors.Is(err, services.ErrDatabase):
		status, detail, matched = http.StatusInternalServerError, msgDatabase, services.ErrDatabase
	}
	if msg, ok := messages[matched]; ok && matched != nil {
		detail = msg
	}

	if status >= http.StatusInternalServerError {
		logger.WithError(err).Error("request failed")
	} else {
		logger.WithError(err).Debug("request rejected")
	}
	writeError(w, status, detail)
}
