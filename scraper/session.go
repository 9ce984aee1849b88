package scraper

import (
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/use-agent/prerender/engine"
)

var _ engine.Session = (*Session)(nil)

// closeTimeout bounds the polite Browser.close call. The process is killed
// afterwards either way.
const closeTimeout = 5 * time.Second

// Session owns one Chromium process and its single page.
type Session struct {
	id      string
	created time.Time
	proc    *launcher.Launcher
	browser *rod.Browser
	page    *Page
	router  *rod.HijackRouter
	onClose func()

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) ID() string           { return s.id }
func (s *Session) CreatedAt() time.Time { return s.created }
func (s *Session) Page() engine.Page    { return s.page }

// Close stops interception, closes the browser, kills the process and
// removes its profile directory. Only the first call does any work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.browser != nil {
			s.closeErr = s.browser.Timeout(closeTimeout).Close()
		}
		// The process must not outlive the session.
		if s.proc != nil {
			s.proc.Kill()
			s.proc.Cleanup()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}
