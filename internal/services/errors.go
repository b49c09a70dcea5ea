package services

import "errors"

// Domain errors surfaced to the HTTP layer.
var (
	ErrNotFound             = errors.New("resource not found")
	ErrAlreadyExists        = errors.New("resource already exists")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrInvalidToken         = errors.New("token is invalid or expired")
	ErrAccessTokenRequired  = errors.New("please provide an access token")
	ErrRefreshTokenRequired = errors.New("please provide a refresh token")
	ErrDatabase             = errors.New("database error")
	ErrRefreshInProgress    = errors.New("nav refresh already running")
)
