package scraper

import (
	"context"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/prerender/engine"
)

var _ engine.Page = (*Page)(nil)

// Page adapts a rod page to the operations the readiness engine drives.
// Every call binds the given context, so deadlines cancel CDP calls.
type Page struct {
	page *rod.Page
}

// Navigate registers the lifecycle waiter before navigating; registering it
// afterwards could miss a fast load event.
func (p *Page) Navigate(ctx context.Context, url string, until engine.LoadEvent) error {
	pg := p.page.Context(ctx)

	wait := pg.WaitNavigation(lifecycleEvent(until))
	if err := pg.Navigate(url); err != nil {
		return err
	}
	wait()

	// The waiter returns silently when ctx expires.
	return ctx.Err()
}

func lifecycleEvent(until engine.LoadEvent) proto.PageLifecycleEventName {
	if until == engine.LoadEventDOMContentLoaded {
		return proto.PageLifecycleEventNameDOMContentLoaded
	}
	return proto.PageLifecycleEventNameLoad
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`)
	return err
}

func (p *Page) ScrollToTop(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`() => window.scrollTo(0, 0)`)
	return err
}

// ClickIfPresent looks the selector up without waiting for it.
func (p *Page) ClickIfPresent(ctx context.Context, selector string) (bool, error) {
	pg := p.page.Context(ctx)

	has, el, err := pg.Has(selector)
	if err != nil || !has {
		return false, err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, err
	}
	return true, nil
}

// probeJS counts non-blank rows under the first match. Tables are read
// through their tbody; other containers count their direct children, and
// a leaf element with text counts as a single row.
const probeJS = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return { found: false, body: false, rows: 0 };
	const tag = el.tagName;
	const table = tag === 'TABLE' || tag === 'TBODY';
	const body = tag === 'TBODY' ? el : el.querySelector('tbody');
	let rows = Array.from((body || el).querySelectorAll('tr'));
	if (rows.length === 0 && !table) {
		rows = Array.from(el.children);
	}
	const blank = n => (n.textContent || '').trim() === '';
	let filled = rows.filter(r => !blank(r)).length;
	if (rows.length === 0 && !table && !blank(el)) {
		filled = 1;
	}
	return { found: true, body: !!body, rows: filled };
}`

func (p *Page) Probe(ctx context.Context, selector string) (engine.Probe, error) {
	res, err := p.page.Context(ctx).Eval(probeJS, selector)
	if err != nil {
		return engine.Probe{}, err
	}
	return engine.Probe{
		Found:   res.Value.Get("found").Bool(),
		HasBody: res.Value.Get("body").Bool(),
		Rows:    res.Value.Get("rows").Int(),
	}, nil
}

// serializeJS mirrors what a browser's "save page" would produce:
// doctype followed by the live document element.
const serializeJS = `() => {
	const dt = document.doctype;
	const prefix = dt ? new XMLSerializer().serializeToString(dt) : '';
	return prefix + document.documentElement.outerHTML;
}`

func (p *Page) HTML(ctx context.Context) (string, error) {
	pg := p.page.Context(ctx)

	res, err := pg.Eval(serializeJS)
	if err == nil {
		return res.Value.Str(), nil
	}
	if ctx.Err() != nil {
		return "", err
	}
	return pg.HTML()
}
