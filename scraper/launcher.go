package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/fingerprint"
	"github.com/use-agent/prerender/models"
)

var _ engine.Launcher = (*Launcher)(nil)

// Launcher starts one isolated Chromium process per Launch call.
// It keeps no browsers between calls and is safe for concurrent use.
type Launcher struct {
	cfg     config.BrowserConfig
	profile fingerprint.Profile
	active  atomic.Int32
}

// NewLauncher creates a Launcher. The profile is applied to every page
// before its first navigation; a zero profile means fingerprint.Default.
func NewLauncher(cfg config.BrowserConfig, profile fingerprint.Profile) *Launcher {
	if profile == (fingerprint.Profile{}) {
		profile = fingerprint.Default()
	}
	return &Launcher{cfg: cfg, profile: profile}
}

// Active returns the number of sessions launched and not yet closed.
func (l *Launcher) Active() int {
	return int(l.active.Load())
}

// Launch starts a browser, opens one page and applies the fingerprint.
// If any step after the process starts fails, the process is killed
// before the error is returned.
//
// ctx bounds the whole life of the process: cancelling it kills Chromium.
func (l *Launcher) Launch(ctx context.Context) (engine.Session, error) {
	start := time.Now()

	proc := l.newProcess(ctx)
	controlURL, err := proc.Launch()
	if err != nil {
		return nil, launchFailed("failed to launch browser", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		proc.Kill()
		proc.Cleanup()
		return nil, launchFailed("failed to connect to browser", err)
	}

	l.active.Add(1)
	s := &Session{
		id:      uuid.NewString(),
		created: time.Now(),
		proc:    proc,
		browser: browser,
		onClose: func() { l.active.Add(-1) },
	}

	rp, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, launchFailed("failed to open page", err)
	}

	// Fingerprint and resource blocking only affect navigations that
	// happen after they are installed.
	if err := applyProfile(rp, l.profile); err != nil {
		_ = s.Close()
		return nil, launchFailed("failed to apply fingerprint", err)
	}
	s.router = setupHijack(rp, l.cfg.BlockedResourceTypes)
	s.page = &Page{page: rp}

	slog.Debug("browser session launched",
		"session", s.id,
		"pid", proc.PID(),
		"startup", time.Since(start).Round(time.Millisecond),
		"active", l.Active(),
	)
	return s, nil
}

// newProcess configures a fresh launcher; a launcher can only launch once.
func (l *Launcher) newProcess(ctx context.Context) *launcher.Launcher {
	proc := launcher.New().
		Context(ctx).
		Headless(l.cfg.Headless).
		NoSandbox(l.cfg.NoSandbox)

	if l.cfg.BrowserBin != "" {
		proc = proc.Bin(l.cfg.BrowserBin)
	}
	if l.cfg.Proxy != "" {
		proc = proc.Proxy(l.cfg.Proxy)
	}
	if l.cfg.NoSandbox {
		proc.Set(flags.Flag("disable-setuid-sandbox"))
	}

	// ── Resource constraints ─────────────────────────────────────────
	proc.Set(flags.Flag("disable-gpu"))
	proc.Set(flags.Flag("disable-software-rasterizer"))
	proc.Set(flags.Flag("disable-dev-shm-usage"))
	proc.Set(flags.Flag("disable-extensions"))

	// ── Automation indicators ────────────────────────────────────────
	proc.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	proc.Delete(flags.Flag("enable-automation"))

	w, h := l.profile.Viewport()
	proc.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", w, h))

	return proc
}

func launchFailed(msg string, err error) *models.RenderError {
	return models.NewRenderError(models.ErrCodeBrowserLaunch, msg+": "+err.Error(), err)
}
