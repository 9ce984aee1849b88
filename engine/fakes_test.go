package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeLauncher counts launches and releases so tests can check that every
// acquired session is released exactly once.
type fakeLauncher struct {
	launches atomic.Int32
	releases atomic.Int32

	err     error
	newPage func() *fakePage
}

func (l *fakeLauncher) Launch(ctx context.Context) (Session, error) {
	if l.err != nil {
		return nil, l.err
	}
	n := l.launches.Add(1)

	page := &fakePage{}
	if l.newPage != nil {
		page = l.newPage()
	}
	return &fakeSession{
		id:      fmt.Sprintf("fake-%d", n),
		created: time.Now(),
		page:    page,
		release: func() { l.releases.Add(1) },
	}, nil
}

type fakeSession struct {
	id      string
	created time.Time
	page    *fakePage
	release func()
}

func (s *fakeSession) ID() string           { return s.id }
func (s *fakeSession) CreatedAt() time.Time { return s.created }
func (s *fakeSession) Page() Page           { return s.page }

func (s *fakeSession) Close() error {
	s.release()
	return nil
}

// fakePage simulates a target page. The watched element is injected
// appearAfter the load event and gains rows rowsAfter the load event.
type fakePage struct {
	mu sync.Mutex

	navigateErr   error
	blockNavigate bool
	scrollErr     error
	clickErr      error
	htmlErr       error
	panicOnProbe  bool

	expandPresent bool
	resultsRows   int // rows in table.results; -1 means no table

	watchSelector string
	appearAfter   time.Duration
	rowsAfter     time.Duration
	never         bool
	watchRows     int

	// recorded
	url      string
	until    LoadEvent
	loadedAt time.Time
	clicked  bool
	scrolls  []string
}

func (p *fakePage) Navigate(ctx context.Context, url string, until LoadEvent) error {
	if p.blockNavigate {
		<-ctx.Done()
		return ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.until = until
	if p.navigateErr != nil {
		return p.navigateErr
	}
	p.loadedAt = time.Now()
	return nil
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error { return p.scroll("bottom") }
func (p *fakePage) ScrollToTop(ctx context.Context) error    { return p.scroll("top") }

func (p *fakePage) scroll(to string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls = append(p.scrolls, to)
	return p.scrollErr
}

func (p *fakePage) ClickIfPresent(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.expandPresent {
		return false, nil
	}
	if p.clickErr != nil {
		return false, p.clickErr
	}
	p.clicked = true
	return true, nil
}

func (p *fakePage) Probe(ctx context.Context, selector string) (Probe, error) {
	if p.panicOnProbe {
		panic("probe exploded")
	}
	if err := ctx.Err(); err != nil {
		return Probe{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if selector == "table.results" && p.watchSelector != selector {
		if p.resultsRows < 0 {
			return Probe{}, nil
		}
		return Probe{Found: true, HasBody: true, Rows: p.resultsRows}, nil
	}
	if selector != p.watchSelector || p.never {
		return Probe{}, nil
	}

	elapsed := time.Since(p.loadedAt)
	if elapsed < p.appearAfter {
		return Probe{}, nil
	}
	if elapsed < p.rowsAfter {
		return Probe{Found: true, HasBody: true}, nil
	}
	return Probe{Found: true, HasBody: true, Rows: p.watchRows}, nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.htmlErr != nil {
		return "", p.htmlErr
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<p>rendered %s</p>", p.url)
	if p.watchSelector != "" && !p.never && time.Since(p.loadedAt) >= p.rowsAfter {
		body.WriteString(`<div id="late"><span>injected row</span></div>`)
	}
	return fmt.Sprintf("<!DOCTYPE html><html><head><title>Title of %s</title></head><body>%s</body></html>",
		p.url, body.String()), nil
}

// fastPolicy keeps every delay in the millisecond range.
func fastPolicy() Policy {
	return Policy{
		WaitUntil:         LoadEventLoad,
		NavigationTimeout: 500 * time.Millisecond,
		SettleDelay:       5 * time.Millisecond,
		ScrollDelay:       time.Millisecond,
		ExpandDelay:       time.Millisecond,
		SelectorTimeout:   150 * time.Millisecond,
		ContentTimeout:    250 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		ActionTimeout:     100 * time.Millisecond,
		ExpandSelector:    ".viewMoreResults",
		ResultsSelector:   "table.results",
	}
}
