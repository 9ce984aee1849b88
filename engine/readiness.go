package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/prerender/models"
)

// State is a step of the readiness state machine. States only advance.
type State int

const (
	StateNavigating State = iota
	StateSettling
	StateTriggering
	StateChecking
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNavigating:
		return "navigating"
	case StateSettling:
		return "settling"
	case StateTriggering:
		return "triggering"
	case StateChecking:
		return "checking"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReadinessOutcome is the evidence of how the engine decided to extract.
type ReadinessOutcome struct {
	Ready       bool
	RowCount    int
	Diagnostics []string
}

// readiness drives one page from navigation to the Ready state.
//
// Only Navigating can fail on its own; the later states degrade to
// "extract whatever exists". Every state also stops when the request
// context is cancelled.
type readiness struct {
	policy   Policy
	page     Page
	url      string
	selector string
	log      *slog.Logger

	state   State
	outcome ReadinessOutcome
}

func (r *readiness) run(ctx context.Context) (*ReadinessOutcome, error) {
	steps := []struct {
		state State
		fn    func(context.Context) error
	}{
		{StateNavigating, r.navigate},
		{StateSettling, r.settle},
		{StateTriggering, r.trigger},
		{StateChecking, r.check},
	}

	for _, step := range steps {
		r.enter(step.state)
		if err := step.fn(ctx); err != nil {
			r.enter(StateFailed)
			return &r.outcome, err
		}
	}
	r.enter(StateReady)
	return &r.outcome, nil
}

func (r *readiness) enter(s State) {
	r.log.Debug("readiness state", "from", r.state.String(), "to", s.String())
	r.state = s
}

func (r *readiness) note(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.outcome.Diagnostics = append(r.outcome.Diagnostics, msg)
	r.log.Debug("readiness diagnostic", "state", r.state.String(), "diagnostic", msg)
}

// ── Navigating ───────────────────────────────────────────────────────

func (r *readiness) navigate(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, r.policy.NavigationTimeout)
	defer cancel()

	err := r.page.Navigate(navCtx, r.url, r.policy.WaitUntil)
	if err == nil {
		r.note("navigation finished on %q", r.policy.WaitUntil)
		return nil
	}

	switch {
	case ctx.Err() != nil:
		return canceled(ctx.Err())
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded):
		return models.NewRenderError(
			models.ErrCodeTimeout,
			fmt.Sprintf("navigation timeout of %d ms exceeded", r.policy.NavigationTimeout.Milliseconds()),
			err,
		)
	default:
		return models.NewRenderError(models.ErrCodeNavigation, err.Error(), err)
	}
}

// ── Settling ─────────────────────────────────────────────────────────

func (r *readiness) settle(ctx context.Context) error {
	return pause(ctx, r.policy.SettleDelay)
}

// ── Triggering lazy content ──────────────────────────────────────────

func (r *readiness) trigger(ctx context.Context) error {
	r.interact(ctx, "scroll to bottom", r.page.ScrollToBottom)
	if err := pause(ctx, r.policy.ScrollDelay); err != nil {
		return err
	}

	r.interact(ctx, "scroll to top", r.page.ScrollToTop)
	if err := pause(ctx, r.policy.ScrollDelay); err != nil {
		return err
	}

	sel := r.policy.ExpandSelector
	if sel == "" {
		return nil
	}

	actCtx, cancel := context.WithTimeout(ctx, r.policy.ActionTimeout)
	clicked, err := r.page.ClickIfPresent(actCtx, sel)
	cancel()

	switch {
	case err != nil:
		r.note("expand control %q: click failed: %v", sel, err)
	case !clicked:
		r.note("expand control %q not present", sel)
	default:
		r.note("clicked expand control %q", sel)
		return pause(ctx, r.policy.ExpandDelay)
	}
	return nil
}

// interact runs one best-effort step; failures only become diagnostics.
func (r *readiness) interact(ctx context.Context, name string, fn func(context.Context) error) {
	actCtx, cancel := context.WithTimeout(ctx, r.policy.ActionTimeout)
	defer cancel()
	if err := fn(actCtx); err != nil {
		r.note("%s failed: %v", name, err)
	}
}

// ── Checking ─────────────────────────────────────────────────────────

func (r *readiness) check(ctx context.Context) error {
	if r.selector == "" {
		r.inspectResults(ctx)
		r.outcome.Ready = true
		return nil
	}
	return r.waitForContent(ctx)
}

// inspectResults takes one non-blocking look at the results table for the
// logs. It never affects readiness.
func (r *readiness) inspectResults(ctx context.Context) {
	sel := r.policy.ResultsSelector
	if sel == "" {
		return
	}

	actCtx, cancel := context.WithTimeout(ctx, r.policy.ActionTimeout)
	defer cancel()

	probe, err := r.page.Probe(actCtx, sel)
	switch {
	case err != nil:
		r.note("results probe %q failed: %v", sel, err)
	case !probe.Found:
		r.note("results table %q not found", sel)
	case !probe.HasBody:
		r.note("results table %q has no tbody", sel)
	default:
		r.outcome.RowCount = probe.Rows
		r.note("results table %q has %d rows", sel, probe.Rows)
	}
}

// waitForContent polls first for the selector, then for content inside it.
// Running out of time on either is a shortfall, not an error.
func (r *readiness) waitForContent(ctx context.Context) error {
	start := time.Now()

	contentCtx, cancel := context.WithTimeout(ctx, r.policy.ContentTimeout)
	defer cancel()

	selCtx, selCancel := context.WithTimeout(contentCtx, r.policy.SelectorTimeout)
	found, err := r.poll(ctx, selCtx, func(p Probe) bool { return p.Found })
	selCancel()
	if err != nil {
		return err
	}
	if !found {
		r.note("selector %q did not appear within %s, proceeding with current content",
			r.selector, r.policy.SelectorTimeout)
		return nil
	}
	r.note("selector %q appeared after %s", r.selector, since(start))

	filled, err := r.poll(ctx, contentCtx, func(p Probe) bool { return p.Rows > 0 })
	if err != nil {
		return err
	}
	if !filled {
		r.note("selector %q still empty after %s, proceeding with current content",
			r.selector, r.policy.ContentTimeout)
		return nil
	}

	r.outcome.Ready = true
	r.note("selector %q has %d rows after %s", r.selector, r.outcome.RowCount, since(start))
	return nil
}

// poll probes the selector every PollInterval until done reports true or
// bounded expires. It returns an error only when parent was cancelled.
func (r *readiness) poll(parent, bounded context.Context, done func(Probe) bool) (bool, error) {
	ticker := time.NewTicker(r.policy.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		probe, err := r.page.Probe(bounded, r.selector)
		if err == nil {
			r.outcome.RowCount = probe.Rows
			if done(probe) {
				return true, nil
			}
		} else if bounded.Err() == nil {
			lastErr = err
		}

		select {
		case <-bounded.Done():
			if parent.Err() != nil {
				return false, canceled(parent.Err())
			}
			if lastErr != nil {
				r.note("probe %q: last error: %v", r.selector, lastErr)
			}
			return false, nil
		case <-ticker.C:
		}
	}
}

// pause is a settle delay that gives up when the request is cancelled.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if err := ctx.Err(); err != nil {
			return canceled(err)
		}
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return canceled(ctx.Err())
	case <-t.C:
		return nil
	}
}

func canceled(err error) *models.RenderError {
	return models.NewRenderError(models.ErrCodeTimeout, "request canceled", err)
}

func since(t time.Time) time.Duration {
	return time.Since(t).Round(time.Millisecond)
}
