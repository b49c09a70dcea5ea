package fundclient

import (
	"errors"
	"fmt"
)

var (
	// ErrExternalAPI matches every provider failure: non-200 replies and
	// transport errors.
	ErrExternalAPI = errors.New("external fund data api error")
	// ErrInvalidResponseFormat is returned when the provider body is not a
	// JSON list of scheme records.
	ErrInvalidResponseFormat = errors.New("invalid response format from fund data api")
)

// APIError describes a failed provider call
type APIError struct {
	StatusCode int
	Body       string
	Network    bool
	Err        error
}

func (e *APIError) Error() string {
	if e.Network {
		return fmt.Sprintf("fund data api: network failure: %v", e.Err)
	}
	return fmt.Sprintf("fund data api: status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Err }

func (e *APIError) Is(target error) bool { return target == ErrExternalAPI }
