// Package fingerprint describes how every automated browser session presents
// itself to target sites: user agent, request headers, viewport and the
// JS-visible automation flag.
package fingerprint

import "github.com/use-agent/prerender/config"

// WebdriverOverrideJS makes navigator.webdriver report false. It is a plain
// script, registered to run in every new document before page scripts.
const WebdriverOverrideJS = `Object.defineProperty(navigator, 'webdriver', {
	get: () => false,
});`

// Profile is process-wide and read-only once built.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Accept         string
	AcceptEncoding string
	ViewportWidth  int
	ViewportHeight int

	// SuppressAutomationFlag installs WebdriverOverrideJS.
	SuppressAutomationFlag bool

	// Stealth additionally installs the go-rod/stealth evasion bundle.
	Stealth bool
}

// Header is one extra request header. Headers are kept ordered so the
// applied set is deterministic.
type Header struct {
	Name  string
	Value string
}

// FromConfig builds the profile from configuration.
func FromConfig(fc config.FingerprintConfig, stealth bool) Profile {
	return Profile{
		UserAgent:              fc.UserAgent,
		AcceptLanguage:         fc.AcceptLanguage,
		Accept:                 fc.Accept,
		AcceptEncoding:         fc.AcceptEncoding,
		ViewportWidth:          fc.ViewportWidth,
		ViewportHeight:         fc.ViewportHeight,
		SuppressAutomationFlag: fc.SuppressAutomationFlag,
		Stealth:                stealth,
	}
}

// Default is the desktop Chrome profile used when nothing is configured.
func Default() Profile {
	return FromConfig(config.Default().Fingerprint, false)
}

// Headers returns the extra HTTP headers sent with every request the page
// makes. Empty values are skipped.
func (p Profile) Headers() []Header {
	all := []Header{
		{"Accept-Language", p.AcceptLanguage},
		{"Accept", p.Accept},
		{"Accept-Encoding", p.AcceptEncoding},
		{"Connection", "keep-alive"},
		{"Upgrade-Insecure-Requests", "1"},
	}
	out := all[:0]
	for _, h := range all {
		if h.Value != "" {
			out = append(out, h)
		}
	}
	return out
}

// Viewport returns the emulated window size, falling back to 1920x1080.
func (p Profile) Viewport() (width, height int) {
	width, height = p.ViewportWidth, p.ViewportHeight
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}
	return width, height
}
