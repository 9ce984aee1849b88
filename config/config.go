package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Browser     BrowserConfig     `yaml:"browser"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Readiness   ReadinessConfig   `yaml:"readiness"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 3001
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"

	// AllowedOrigins is the CORS allow-list. "*" allows every origin.
	AllowedOrigins []string `yaml:"allowed_origins"` // default: ["*"]
}

// BrowserConfig controls how each per-request Chromium process is launched.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// NoSandbox disables Chrome's OS sandbox (needed in most containers).
	NoSandbox bool `yaml:"no_sandbox"` // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`

	// Proxy is passed to Chromium as --proxy-server.
	Proxy string `yaml:"proxy"`

	// Stealth injects the full go-rod/stealth evasion bundle on top of
	// the webdriver override.
	Stealth bool `yaml:"stealth"` // default: false

	// BlockedResourceTypes lists resource types to abort, e.g. "Image", "Font".
	// default: none, so lazy loaders that depend on images still fire.
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`
}

// FingerprintConfig describes how the automated browser presents itself.
type FingerprintConfig struct {
	UserAgent              string `yaml:"user_agent"`
	AcceptLanguage         string `yaml:"accept_language"`
	Accept                 string `yaml:"accept"`
	AcceptEncoding         string `yaml:"accept_encoding"`
	ViewportWidth          int    `yaml:"viewport_width"`  // default: 1920
	ViewportHeight         int    `yaml:"viewport_height"` // default: 1080
	SuppressAutomationFlag bool   `yaml:"suppress_automation_flag"`
}

// ReadinessConfig tunes the navigation and readiness state machine.
type ReadinessConfig struct {
	// WaitUntil is the load signal that ends navigation: "load" or "domcontentloaded".
	WaitUntil string `yaml:"wait_until"` // default: "load"

	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 60s
	SettleDelay       time.Duration `yaml:"settle_delay"`       // default: 3s
	ScrollDelay       time.Duration `yaml:"scroll_delay"`       // default: 1s
	ExpandDelay       time.Duration `yaml:"expand_delay"`       // default: 2s
	SelectorTimeout   time.Duration `yaml:"selector_timeout"`   // default: 15s
	ContentTimeout    time.Duration `yaml:"content_timeout"`    // default: 20s
	PollInterval      time.Duration `yaml:"poll_interval"`      // default: 500ms

	// ExpandSelector is the "view more results" control clicked when present.
	ExpandSelector string `yaml:"expand_selector"` // default: ".viewMoreResults"

	// ResultsSelector is the table inspected for diagnostics when the
	// request carries no waitForSelector.
	ResultsSelector string `yaml:"results_selector"` // default: "table.results"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// Validate rejects readiness settings the engine cannot honour.
func (r ReadinessConfig) Validate() error {
	switch r.WaitUntil {
	case "load", "domcontentloaded":
	default:
		return fmt.Errorf("config: wait_until must be \"load\" or \"domcontentloaded\", got %q", r.WaitUntil)
	}
	if r.NavigationTimeout <= 0 {
		return fmt.Errorf("config: navigation_timeout must be positive")
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("config: poll_interval must be positive")
	}
	return nil
}

// Default returns the configuration used when neither a file nor the
// environment overrides anything.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           3001,
			Mode:           "release",
			AllowedOrigins: []string{"*"},
		},
		Browser: BrowserConfig{
			Headless:  true,
			NoSandbox: true,
		},
		Fingerprint: FingerprintConfig{
			UserAgent:              "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage:         "en-US,en;q=0.9",
			Accept:                 "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			AcceptEncoding:         "gzip, deflate, br",
			ViewportWidth:          1920,
			ViewportHeight:         1080,
			SuppressAutomationFlag: true,
		},
		Readiness: ReadinessConfig{
			WaitUntil:         "load",
			NavigationTimeout: 60 * time.Second,
			SettleDelay:       3 * time.Second,
			ScrollDelay:       1 * time.Second,
			ExpandDelay:       2 * time.Second,
			SelectorTimeout:   15 * time.Second,
			ContentTimeout:    20 * time.Second,
			PollInterval:      500 * time.Millisecond,
			ExpandSelector:    ".viewMoreResults",
			ResultsSelector:   "table.results",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// PRERENDER_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("PRERENDER_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Readiness.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes a YAML file over the current values. Keys absent from
// the file keep their defaults.
func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = envOr("PRERENDER_HOST", s.Host)
	s.Port = envIntOr("PORT", envIntOr("PRERENDER_PORT", s.Port))
	s.Mode = envOr("PRERENDER_MODE", s.Mode)
	s.AllowedOrigins = envSliceOr("ALLOWED_ORIGINS", s.AllowedOrigins)

	b := &c.Browser
	b.Headless = envBoolOr("PRERENDER_HEADLESS", b.Headless)
	b.NoSandbox = envBoolOr("PRERENDER_NO_SANDBOX", b.NoSandbox)
	b.BrowserBin = envOr("PRERENDER_BROWSER_BIN", b.BrowserBin)
	b.Proxy = envOr("PRERENDER_PROXY", b.Proxy)
	b.Stealth = envBoolOr("PRERENDER_STEALTH", b.Stealth)
	b.BlockedResourceTypes = envSliceOr("PRERENDER_BLOCKED_RESOURCES", b.BlockedResourceTypes)

	f := &c.Fingerprint
	f.UserAgent = envOr("PRERENDER_USER_AGENT", f.UserAgent)
	f.AcceptLanguage = envOr("PRERENDER_ACCEPT_LANGUAGE", f.AcceptLanguage)
	f.ViewportWidth = envIntOr("PRERENDER_VIEWPORT_WIDTH", f.ViewportWidth)
	f.ViewportHeight = envIntOr("PRERENDER_VIEWPORT_HEIGHT", f.ViewportHeight)

	r := &c.Readiness
	r.WaitUntil = strings.ToLower(envOr("PRERENDER_WAIT_UNTIL", r.WaitUntil))
	r.NavigationTimeout = envDurationOr("PRERENDER_NAV_TIMEOUT", r.NavigationTimeout)
	r.SettleDelay = envDurationOr("PRERENDER_SETTLE_DELAY", r.SettleDelay)
	r.ScrollDelay = envDurationOr("PRERENDER_SCROLL_DELAY", r.ScrollDelay)
	r.ExpandDelay = envDurationOr("PRERENDER_EXPAND_DELAY", r.ExpandDelay)
	r.SelectorTimeout = envDurationOr("PRERENDER_SELECTOR_TIMEOUT", r.SelectorTimeout)
	r.ContentTimeout = envDurationOr("PRERENDER_CONTENT_TIMEOUT", r.ContentTimeout)
	r.PollInterval = envDurationOr("PRERENDER_POLL_INTERVAL", r.PollInterval)
	r.ExpandSelector = envOr("PRERENDER_EXPAND_SELECTOR", r.ExpandSelector)
	r.ResultsSelector = envOr("PRERENDER_RESULTS_SELECTOR", r.ResultsSelector)

	c.Log.Level = envOr("PRERENDER_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("PRERENDER_LOG_FORMAT", c.Log.Format)
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
