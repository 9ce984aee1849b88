package models

import (
	"fmt"
	"strings"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeTimeout       = "SCRAPE_TIMEOUT"
	ErrCodeNavigation    = "NAVIGATION_FAILED"
	ErrCodeBrowserLaunch = "BROWSER_LAUNCH_FAILED"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeInternal      = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RenderError is a classified render failure. Code is what clients see;
// Err keeps the underlying cause for logs and errors.Is.
type RenderError struct {
	Code    string
	Message string
	Err     error
}

// Stage names the part of a render that failed: "validation", "launch",
// "navigation" or "internal". Timeouts are raised while navigating or
// waiting on the page, so they report "navigation".
func (e *RenderError) Stage() string {
	switch e.Code {
	case ErrCodeInvalidInput:
		return "validation"
	case ErrCodeBrowserLaunch:
		return "launch"
	case ErrCodeNavigation, ErrCodeTimeout:
		return "navigation"
	default:
		return "internal"
	}
}

// Error reads "<stage> failed (<CODE>): <message>". The cause is appended
// only when the message does not already quote it.
func (e *RenderError) Error() string {
	msg := fmt.Sprintf("%s failed (%s): %s", e.Stage(), e.Code, e.Message)
	if e.Err != nil && !strings.Contains(e.Message, e.Err.Error()) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// NewRenderError creates a new RenderError.
func NewRenderError(code, message string, err error) *RenderError {
	return &RenderError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *RenderError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}
