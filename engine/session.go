package engine

import (
	"context"
	"time"
)

// LoadEvent is the browser signal that ends the Navigating state.
type LoadEvent string

const (
	LoadEventLoad             LoadEvent = "load"
	LoadEventDOMContentLoaded LoadEvent = "domcontentloaded"
)

// Launcher acquires browser sessions. Every successful Launch must be
// paired with exactly one Session.Close by the caller.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Session is one exclusively-owned browser process with a single page.
// It is never shared between requests.
type Session interface {
	ID() string
	CreatedAt() time.Time
	Page() Page

	// Close terminates the process and frees everything it owns.
	// Calling it more than once is safe.
	Close() error
}

// Page is the set of page operations the readiness engine drives.
// Each call is bounded by the context it receives.
type Page interface {
	// Navigate loads url and returns once the given load event fired.
	Navigate(ctx context.Context, url string, until LoadEvent) error

	ScrollToBottom(ctx context.Context) error
	ScrollToTop(ctx context.Context) error

	// ClickIfPresent clicks the first element matching selector.
	// It reports false without error when nothing matches.
	ClickIfPresent(ctx context.Context, selector string) (bool, error)

	// Probe inspects the first element matching selector without waiting.
	Probe(ctx context.Context, selector string) (Probe, error)

	// HTML serializes the current document, doctype included.
	HTML(ctx context.Context) (string, error)
}

// Probe is a point-in-time view of a results container.
type Probe struct {
	// Found reports whether the selector matched anything.
	Found bool

	// HasBody reports whether the element is or contains a <tbody>.
	HasBody bool

	// Rows counts rows (or, for non-table containers, child elements)
	// with non-blank text.
	Rows int
}
