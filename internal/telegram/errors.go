package telegram

import (
	"errors"
	"fmt"
	"time"
)

// APIError is the structured failure returned by the Bot API ("ok": false).
// Callers can use errors.As to extract it:
//
//	var apiErr *telegram.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == telegram.CodeForbidden { ... }
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed (%d): %s", e.Method, e.Code, e.Description)
}

const (
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
)

// IsAPIError reports whether err is an *APIError with the given code.
func IsAPIError(err error, code int) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// IsBlocked is true when the user blocked the bot or never opened a private chat with it.
func IsBlocked(err error) bool {
	return IsAPIError(err, CodeForbidden)
}
