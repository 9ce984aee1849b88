//go:build integration

package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/engine"
	"github.com/use-agent/prerender/fingerprint"
	"github.com/use-agent/prerender/models"
)

const staticTable = `<!DOCTYPE html><html><head><title>Static</title></head><body>
<table class="results"><tbody><tr><td>a</td></tr><tr><td>b</td></tr></tbody></table>
</body></html>`

const lateRows = `<!DOCTYPE html><html><head><title>Late</title></head><body>
<script>
setTimeout(() => {
	const t = document.createElement('table');
	t.id = 'late';
	t.innerHTML = '<tbody><tr><td>injected row</td></tr></tbody>';
	document.body.appendChild(t);
}, 2000);
</script></body></html>`

const lateText = `<!DOCTYPE html><html><head><title>Leaf</title></head><body>
<span id="price"></span>
<script>
setTimeout(() => { document.getElementById('price').textContent = '$42'; }, 500);
</script></body></html>`

const probeFingerprint = `<!DOCTYPE html><html><head><title>Fingerprint</title></head><body>
<script>
document.body.setAttribute('data-webdriver', String(navigator.webdriver));
document.body.setAttribute('data-ua', navigator.userAgent);
</script></body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	page := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.Handle("/static", page(staticTable))
	mux.Handle("/late", page(lateRows))
	mux.Handle("/fingerprint", page(probeFingerprint))
	mux.Handle("/leaf", page(lateText))
	mux.HandleFunc("/item/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		id := r.PathValue("id")
		fmt.Fprintf(w, `<!DOCTYPE html><html><head><title>Item %s</title></head><body>
<div id="item"></div>
<script>document.getElementById('item').textContent = 'item-' + %q;</script>
</body></html>`, id, id)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRenderer(t *testing.T) (*engine.Renderer, *Launcher) {
	t.Helper()
	cfg := config.Default()
	cfg.Browser.BrowserBin = envBrowserBin()

	policy := engine.PolicyFromConfig(cfg.Readiness)
	policy.SettleDelay = 200 * time.Millisecond
	policy.ScrollDelay = 50 * time.Millisecond
	policy.ExpandDelay = 50 * time.Millisecond
	policy.NavigationTimeout = 15 * time.Second
	policy.SelectorTimeout = 4 * time.Second
	policy.ContentTimeout = 6 * time.Second
	policy.PollInterval = 100 * time.Millisecond

	l := NewLauncher(cfg.Browser, fingerprint.FromConfig(cfg.Fingerprint, false))
	return engine.NewRenderer(l, policy), l
}

func TestIntegration_StaticTable(t *testing.T) {
	srv := newTestServer(t)
	r, l := newTestRenderer(t)

	res := r.Render(context.Background(), models.RenderRequest{URL: srv.URL + "/static"})
	require.True(t, res.Success, "error: %+v", res.Error)
	assert.Equal(t, "Static", res.Title)
	assert.True(t, strings.HasPrefix(strings.ToLower(res.HTML), "<!doctype html>"))
	assert.Equal(t, 2, res.Readiness.RowCount)
	assert.Zero(t, l.Active())
}

func TestIntegration_LateInjectedSelector(t *testing.T) {
	srv := newTestServer(t)
	r, l := newTestRenderer(t)

	res := r.Render(context.Background(), models.RenderRequest{URL: srv.URL + "/late", WaitForSelector: "#late"})
	require.True(t, res.Success, "error: %+v", res.Error)
	assert.True(t, res.Readiness.Ready)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	require.NoError(t, err)
	assert.Equal(t, "injected row", strings.TrimSpace(doc.Find("#late td").Text()))
	assert.Zero(t, l.Active())
}

func TestIntegration_SelectorNeverAppears(t *testing.T) {
	srv := newTestServer(t)
	r, _ := newTestRenderer(t)

	start := time.Now()
	res := r.Render(context.Background(), models.RenderRequest{URL: srv.URL + "/static", WaitForSelector: "#never"})
	require.True(t, res.Success, "error: %+v", res.Error)
	assert.False(t, res.Readiness.Ready)
	assert.Less(t, time.Since(start), 15*time.Second)
}

func TestIntegration_Fingerprint(t *testing.T) {
	srv := newTestServer(t)
	r, _ := newTestRenderer(t)

	res := r.Render(context.Background(), models.RenderRequest{URL: srv.URL + "/fingerprint"})
	require.True(t, res.Success, "error: %+v", res.Error)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	require.NoError(t, err)
	body := doc.Find("body")
	assert.Equal(t, "false", body.AttrOr("data-webdriver", ""))
	assert.Equal(t, fingerprint.Default().UserAgent, body.AttrOr("data-ua", ""))
}

func TestIntegration_UnreachableHost(t *testing.T) {
	r, l := newTestRenderer(t)

	res := r.Render(context.Background(), models.RenderRequest{URL: "http://127.0.0.1:1/"})
	require.False(t, res.Success)
	assert.Equal(t, models.ErrCodeNavigation, res.Error.Code)
	assert.Empty(t, res.HTML)
	assert.Zero(t, l.Active())
}

func TestIntegration_TextLeafCountsAsContent(t *testing.T) {
	srv := newTestServer(t)
	r, _ := newTestRenderer(t)

	start := time.Now()
	res := r.Render(context.Background(), models.RenderRequest{URL: srv.URL + "/leaf", WaitForSelector: "#price"})
	require.True(t, res.Success, "error: %+v", res.Error)
	assert.True(t, res.Readiness.Ready, "diagnostics: %v", res.Readiness.Diagnostics)
	assert.Equal(t, 1, res.Readiness.RowCount)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
	require.NoError(t, err)
	assert.Equal(t, "$42", doc.Find("#price").Text())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestIntegration_ConcurrentRenders(t *testing.T) {
	srv := newTestServer(t)
	r, l := newTestRenderer(t)

	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			url := fmt.Sprintf("%s/item/%d", srv.URL, i)
			res := r.Render(context.Background(), models.RenderRequest{URL: url, WaitForSelector: "#item"})
			if !res.Success {
				return fmt.Errorf("render %d: %+v", i, res.Error)
			}
			if res.URL != url {
				return fmt.Errorf("render %d: got url %q", i, res.URL)
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.HTML))
			if err != nil {
				return err
			}
			if got, want := doc.Find("#item").Text(), fmt.Sprintf("item-%d", i); got != want {
				return fmt.Errorf("render %d: got item %q, want %q", i, got, want)
			}
			if res.Title != fmt.Sprintf("Item %d", i) {
				return fmt.Errorf("render %d: got title %q", i, res.Title)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Zero(t, l.Active())
}

func TestIntegration_CloseAfterBrowserDied(t *testing.T) {
	cfg := config.Default()
	cfg.Browser.BrowserBin = envBrowserBin()
	l := NewLauncher(cfg.Browser, fingerprint.FromConfig(cfg.Fingerprint, false))

	sess, err := l.Launch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, l.Active())

	sess.(*Session).proc.Kill()

	start := time.Now()
	_ = sess.Close()
	assert.Less(t, time.Since(start), closeTimeout+2*time.Second)
	assert.Zero(t, l.Active())
}

// envBrowserBin lets CI point at a preinstalled Chromium instead of
// letting rod download one.
func envBrowserBin() string {
	return os.Getenv("PRERENDER_BROWSER_BIN")
}
