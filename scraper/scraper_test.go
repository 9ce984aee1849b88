package scraper

import (
	"errors"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/fingerprint"
	"github.com/use-agent/prerender/models"
)

func TestBlockedSet(t *testing.T) {
	set := blockedSet([]string{"Image", "Font", "Script", ""})

	assert.Len(t, set, 2)
	assert.Contains(t, set, proto.NetworkResourceTypeImage)
	assert.Contains(t, set, proto.NetworkResourceTypeFont)
	assert.NotContains(t, set, proto.NetworkResourceTypeScript)
}

func TestSetupHijack_NothingBlocked(t *testing.T) {
	// No page is touched when there is nothing to block.
	assert.Nil(t, setupHijack(nil, nil))
	assert.Nil(t, setupHijack(nil, []string{"Script"}))
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(fingerprint.Default().Headers())

	assert.Equal(t, "en-US,en;q=0.9", m["Accept-Language"].Str())
	assert.Equal(t, "keep-alive", m["Connection"].Str())
	assert.Equal(t, "1", m["Upgrade-Insecure-Requests"].Str())
}

func TestLifecycleEvent(t *testing.T) {
	assert.Equal(t, proto.PageLifecycleEventNameLoad, lifecycleEvent(engine.LoadEventLoad))
	assert.Equal(t, proto.PageLifecycleEventNameDOMContentLoaded, lifecycleEvent(engine.LoadEventDOMContentLoaded))
}

func TestSessionClose_RunsOnce(t *testing.T) {
	closed := 0
	s := &Session{id: "s-1", onClose: func() { closed++ }}

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 1, closed)
}

func TestNewLauncher_ZeroProfileUsesDefault(t *testing.T) {
	l := NewLauncher(config.Default().Browser, fingerprint.Profile{})
	assert.Equal(t, fingerprint.Default(), l.profile)

	custom := fingerprint.Profile{UserAgent: "custom/1.0"}
	l = NewLauncher(config.Default().Browser, custom)
	assert.Equal(t, custom, l.profile)
}

func TestLaunchFailed(t *testing.T) {
	err := launchFailed("failed to launch browser", errors.New("exec: chromium: not found"))

	assert.Equal(t, models.ErrCodeBrowserLaunch, err.Code)
	assert.Equal(t, "failed to launch browser: exec: chromium: not found", err.Message)
}
