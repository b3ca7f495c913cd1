package notion

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
)

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Retryable reports responses that indicate Notion itself is struggling.
func (e *APIError) Retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// IsValidationError reports whether err is Notion rejecting the request shape,
// e.g. a filter the database does not support.
func IsValidationError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusBadRequest
}

// isClientError is true for 4xx responses other than rate limiting. They say
// nothing about Notion's health and must not trip the breaker.
func isClientError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return !apiErr.Retryable()
}

// IsUnavailable reports whether err is the circuit breaker refusing a request.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
