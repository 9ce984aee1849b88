package models

import (
	"errors"
	"time"
)

// RenderResult is the envelope returned for every render call.
//
// It is a tagged variant: build it only with NewSuccess or NewFailure so
// that exactly one of HTML or Error is populated.
type RenderResult struct {
	// Success indicates which variant is populated.
	Success bool `json:"success"`

	// HTML is the complete serialized document, including DOM mutations
	// made by the page's own scripts. Success only.
	HTML string `json:"html,omitempty"`

	// URL echoes the requested URL exactly.
	URL string `json:"url"`

	// Timestamp is when the result was produced, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Title is the document title, best-effort. Success only.
	Title string `json:"title,omitempty"`

	// Bytes is len(HTML). Success only.
	Bytes int `json:"bytes,omitempty"`

	// Readiness reports how the engine decided the page was ready. Success only.
	Readiness *ReadinessReport `json:"readiness,omitempty"`

	// DurationMs is the end-to-end render time.
	DurationMs int64 `json:"durationMs"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// ReadinessReport is the API-facing copy of the engine's readiness outcome.
type ReadinessReport struct {
	Ready       bool     `json:"ready"`
	RowCount    int      `json:"rowCount"`
	Diagnostics []string `json:"diagnostics"`
}

// NewSuccess builds the Success variant.
func NewSuccess(url, html, title string, readiness *ReadinessReport, at time.Time) *RenderResult {
	return &RenderResult{
		Success:   true,
		HTML:      html,
		URL:       url,
		Timestamp: at.UTC(),
		Title:     title,
		Bytes:     len(html),
		Readiness: readiness,
	}
}

// NewFailure builds the Failure variant. Errors that are not a *RenderError
// are reported as INTERNAL_ERROR with their message.
func NewFailure(url string, err error, at time.Time) *RenderResult {
	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		renderErr = NewRenderError(ErrCodeInternal, err.Error(), err)
	}
	return &RenderResult{
		Success:   false,
		URL:       url,
		Timestamp: at.UTC(),
		Error:     renderErr.ToDetail(),
	}
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string    `json:"status"` // always "ok" while the process serves
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Version   string    `json:"version"`
}
