package models

import (
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
)

// RenderRequest is the payload for POST /scrape and POST /api/v1/render.
type RenderRequest struct {
	// URL is the page to render. Required.
	URL string `json:"url" binding:"required,url"`

	// WaitForSelector, when set, makes the engine poll until an element
	// matching this CSS selector exists and holds at least one row of content.
	WaitForSelector string `json:"waitForSelector,omitempty"`
}

// Validate reports an INVALID_INPUT RenderError when the URL is missing,
// is not an absolute http(s) URL, or the selector cannot be parsed as CSS.
func (r RenderRequest) Validate() error {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return NewRenderError(ErrCodeInvalidInput, "URL is required", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewRenderError(ErrCodeInvalidInput, "URL is not valid: "+err.Error(), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewRenderError(ErrCodeInvalidInput, "URL scheme must be http or https", nil)
	}
	if u.Host == "" {
		return NewRenderError(ErrCodeInvalidInput, "URL has no host", nil)
	}
	if sel := strings.TrimSpace(r.WaitForSelector); sel != "" {
		if _, err := cascadia.Parse(sel); err != nil {
			return NewRenderError(ErrCodeInvalidInput, "waitForSelector is not a valid CSS selector: "+err.Error(), err)
		}
	}
	return nil
}
