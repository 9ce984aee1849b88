package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/prerender/models"
)

// Renderer turns a RenderRequest into a RenderResult. It holds no
// per-request state and is safe for concurrent use: every call launches
// its own session and releases it before returning.
type Renderer struct {
	launcher Launcher
	policy   Policy
	now      func() time.Time
}

// NewRenderer creates a Renderer. Zero fields in policy fall back to the
// defaults.
func NewRenderer(launcher Launcher, policy Policy) *Renderer {
	return &Renderer{
		launcher: launcher,
		policy:   policy.withDefaults(),
		now:      time.Now,
	}
}

// Render is the single inbound operation. It always returns a result:
// validation, launch and navigation problems come back as the Failure
// variant; readiness shortfalls still produce Success with whatever HTML
// the page holds.
//
// Lifecycle:
//
//  1. Validate            – no session is created for a bad request
//  2. Launch              – one browser process for this call only
//  3. DEFER: release      – runs on every path, panics included
//  4. Readiness           – navigate, settle, trigger, check
//  5. Extract             – serialize the document, read the title
func (r *Renderer) Render(ctx context.Context, req models.RenderRequest) *models.RenderResult {
	start := time.Now()

	var result *models.RenderResult
	if err := req.Validate(); err != nil {
		slog.Warn("render request rejected", "url", req.URL, "error", err)
		result = models.NewFailure(req.URL, err, r.now())
	} else {
		result = r.render(ctx, req)
	}

	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

func (r *Renderer) render(ctx context.Context, req models.RenderRequest) *models.RenderResult {
	target := strings.TrimSpace(req.URL)
	selector := strings.TrimSpace(req.WaitForSelector)

	slog.Info("render started", "url", target, "waitForSelector", selector)

	page, err := r.withSession(ctx, target, selector)
	if err != nil {
		stage := "internal"
		var renderErr *models.RenderError
		if errors.As(err, &renderErr) {
			stage = renderErr.Stage()
		}
		slog.Error("render failed", "url", target, "stage", stage, "error", err)
		return models.NewFailure(req.URL, err, r.now())
	}

	slog.Info("render finished",
		"url", target,
		"bytes", len(page.html),
		"ready", page.outcome.Ready,
		"rows", page.outcome.RowCount,
	)

	diagnostics := page.outcome.Diagnostics
	if diagnostics == nil {
		diagnostics = []string{}
	}
	return models.NewSuccess(req.URL, page.html, page.title, &models.ReadinessReport{
		Ready:       page.outcome.Ready,
		RowCount:    page.outcome.RowCount,
		Diagnostics: diagnostics,
	}, r.now())
}

// renderedPage is what survives the session: plain data only.
type renderedPage struct {
	html    string
	title   string
	outcome ReadinessOutcome
}

// withSession acquires a session, drives it, and releases it exactly once.
func (r *Renderer) withSession(ctx context.Context, target, selector string) (out *renderedPage, err error) {
	session, err := r.launcher.Launch(ctx)
	if err != nil {
		return nil, launchError(ctx, err)
	}

	log := slog.With("url", target, "session", session.ID())
	log.Debug("session acquired")

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("render panicked", "panic", rec)
			out, err = nil, models.NewRenderError(
				models.ErrCodeInternal,
				fmt.Sprintf("unexpected fault: %v", rec),
				nil,
			)
		}
		if closeErr := session.Close(); closeErr != nil {
			log.Warn("session release reported an error", "error", closeErr)
		}
		log.Debug("session released", "lifetime", time.Since(session.CreatedAt()).Round(time.Millisecond))
	}()

	rd := &readiness{
		policy:   r.policy,
		page:     session.Page(),
		url:      target,
		selector: selector,
		log:      log,
	}
	outcome, err := rd.run(ctx)
	if err != nil {
		return nil, err
	}

	html, title, err := r.extract(ctx, session.Page(), log)
	if err != nil {
		return nil, err
	}

	return &renderedPage{html: html, title: title, outcome: *outcome}, nil
}

// extract serializes the current document and reads its title.
func (r *Renderer) extract(ctx context.Context, page Page, log *slog.Logger) (string, string, error) {
	extractCtx, cancel := context.WithTimeout(ctx, r.policy.ActionTimeout)
	defer cancel()

	html, err := page.HTML(extractCtx)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", canceled(ctx.Err())
		}
		return "", "", models.NewRenderError(models.ErrCodeInternal, "failed to extract page HTML: "+err.Error(), err)
	}
	log.Info("document serialized", "bytes", len(html))

	return html, documentTitle(html), nil
}

// documentTitle returns the <title> text, or "" if the HTML cannot be parsed.
func documentTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func launchError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return canceled(ctx.Err())
	}
	var renderErr *models.RenderError
	if errors.As(err, &renderErr) {
		return renderErr
	}
	return models.NewRenderError(models.ErrCodeBrowserLaunch, err.Error(), err)
}
