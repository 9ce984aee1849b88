package engine

import (
	"time"

	"github.com/use-agent/prerender/config"
)

// actionTimeout bounds every single best-effort interaction and probe.
const actionTimeout = 10 * time.Second

// Policy holds every delay, bound and selector the readiness state machine
// uses. Each delay can be swapped for an event-based signal independently.
type Policy struct {
	WaitUntil         LoadEvent
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	ScrollDelay       time.Duration
	ExpandDelay       time.Duration
	SelectorTimeout   time.Duration
	ContentTimeout    time.Duration
	PollInterval      time.Duration
	ActionTimeout     time.Duration

	// ExpandSelector is clicked when present; empty disables the step.
	ExpandSelector string

	// ResultsSelector is probed for diagnostics when no waitForSelector is
	// given; empty disables the probe.
	ResultsSelector string
}

// PolicyFromConfig maps the readiness section of the configuration.
func PolicyFromConfig(rc config.ReadinessConfig) Policy {
	return Policy{
		WaitUntil:         LoadEvent(rc.WaitUntil),
		NavigationTimeout: rc.NavigationTimeout,
		SettleDelay:       rc.SettleDelay,
		ScrollDelay:       rc.ScrollDelay,
		ExpandDelay:       rc.ExpandDelay,
		SelectorTimeout:   rc.SelectorTimeout,
		ContentTimeout:    rc.ContentTimeout,
		PollInterval:      rc.PollInterval,
		ActionTimeout:     actionTimeout,
		ExpandSelector:    rc.ExpandSelector,
		ResultsSelector:   rc.ResultsSelector,
	}
}

// DefaultPolicy returns the policy built from the default configuration.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.Default().Readiness)
}

// withDefaults fills zero values so a partially built Policy still bounds
// every wait.
func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.WaitUntil == "" {
		p.WaitUntil = def.WaitUntil
	}
	if p.NavigationTimeout <= 0 {
		p.NavigationTimeout = def.NavigationTimeout
	}
	if p.ContentTimeout <= 0 {
		p.ContentTimeout = def.ContentTimeout
	}
	if p.SelectorTimeout <= 0 || p.SelectorTimeout > p.ContentTimeout {
		p.SelectorTimeout = p.ContentTimeout
	}
	if p.PollInterval <= 0 {
		p.PollInterval = def.PollInterval
	}
	if p.ActionTimeout <= 0 {
		p.ActionTimeout = def.ActionTimeout
	}
	return p
}
