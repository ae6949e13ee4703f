package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Third-party hosts whose requests are aborted during rendering. Analytics
// and ad beacons slow pages down and keep the network from ever settling.
var defaultTrackerDomains = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"doubleclick.net",
	"googlesyndication.com",
	"facebook.net",
	"facebook.com/tr",
	"hotjar.com",
	"segment.com",
	"segment.io",
	"mixpanel.com",
	"clarity.ms",
	"criteo.com",
	"amplitude.com",
	"newrelic.com",
	"quantserve.com",
	"scorecardresearch.com",
}

// Result is a completed render. Partial marks HTML salvaged from a render
// that did not finish cleanly.
type Result struct {
	HTML    string
	Partial bool
}

// RenderError reports a failed render. When any HTML was captured before
// the failure it is carried in Partial so callers can salvage it.
type RenderError struct {
	Stage   string
	Partial string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed at %s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// RendererConfig holds render timing settings.
type RendererConfig struct {
	// NavigationTimeout bounds the wait for DOMContentLoaded.
	NavigationTimeout time.Duration
	// NetworkIdleTimeout bounds the post-interaction settle wait. Running
	// out of it is not an error.
	NetworkIdleTimeout time.Duration
	// TrackerDomains overrides the default blocklist when non-nil.
	TrackerDomains []string
}

// Renderer loads pages in pooled headless browsers and returns the
// hydrated HTML.
type Renderer struct {
	pool     *Pool
	cfg      RendererConfig
	logger   *slog.Logger
	trackers []string
}

// NewRenderer creates a renderer backed by pool.
func NewRenderer(pool *Pool, cfg RendererConfig, logger *slog.Logger) *Renderer {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.NetworkIdleTimeout <= 0 {
		cfg.NetworkIdleTimeout = 10 * time.Second
	}
	trackers := defaultTrackerDomains
	if cfg.TrackerDomains != nil {
		trackers = cfg.TrackerDomains
	}
	return &Renderer{pool: pool, cfg: cfg, logger: logger, trackers: trackers}
}

// Render loads url in a fresh incognito context and returns the page HTML
// after hydration. The page and context are always torn down, whatever
// happens in between. On failure the returned error is a *RenderError
// carrying any HTML captured before things went wrong.
func (r *Renderer) Render(ctx context.Context, url string) (Result, error) {
	managed, err := r.pool.Acquire(ctx)
	if err != nil {
		return Result{}, &RenderError{Stage: "acquire", Err: err}
	}
	defer r.pool.Release(managed)

	// Each render gets its own incognito context so cookies and storage
	// never leak between requests sharing a browser. The context must be
	// disposed explicitly; closing the page only closes its target, and
	// pooled browsers live long enough to pile contexts up otherwise.
	incognito, err := managed.Browser.Incognito()
	if err != nil {
		return Result{}, &RenderError{Stage: "context", Err: err}
	}
	defer func() {
		if err := disposeContext(incognito, incognito.BrowserContextID); err != nil {
			r.logger.Warn("failed to dispose browser context", "error", err)
		}
	}()

	page, err := newStealthPage(incognito)
	if err != nil {
		return Result{}, &RenderError{Stage: "page", Err: err}
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Warn("failed to close page", "error", err)
		}
	}()

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if r.isTracker(h.Request.URL().Host, h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	defer func() {
		if err := router.Stop(); err != nil {
			r.logger.Debug("failed to stop hijack router", "error", err)
		}
	}()

	if err := r.navigate(ctx, page, url); err != nil {
		return Result{}, &RenderError{Stage: "navigate", Partial: r.salvage(page), Err: err}
	}

	if err := r.settle(ctx, page); err != nil {
		// The page loaded; whatever we have now is worth keeping.
		if html := r.salvage(page); html != "" {
			r.logger.Warn("render interrupted after load, returning partial content",
				"url", url, "error", err)
			return Result{HTML: html, Partial: true}, nil
		}
		return Result{}, &RenderError{Stage: "settle", Err: err}
	}

	html, err := page.HTML()
	if err != nil {
		return Result{}, &RenderError{Stage: "capture", Err: err}
	}

	return Result{HTML: html}, nil
}

// navigate drives the page to url and waits for DOMContentLoaded, bounded
// by the navigation timeout.
func (r *Renderer) navigate(ctx context.Context, page *rod.Page, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavigationTimeout)
	defer cancel()

	pg := page.Context(navCtx)
	wait := pg.WaitEvent(&proto.PageDomContentEventFired{})
	if err := pg.Navigate(url); err != nil {
		return err
	}
	wait()
	return navCtx.Err()
}

// settle runs the post-load interaction: consent dismissal, a randomized
// dwell, two partial scrolls to trigger lazy loading, then a bounded wait
// for the network to go quiet.
func (r *Renderer) settle(ctx context.Context, page *rod.Page) error {
	dismissConsent(page, r.logger)

	// Hydration dwell. Randomized so timing fingerprints vary.
	dwell := 1500*time.Millisecond + time.Duration(rand.Int63n(2000))*time.Millisecond
	if err := sleepCtx(ctx, dwell); err != nil {
		return err
	}

	for i := 0; i < 2; i++ {
		if _, err := page.Eval(`() => window.scrollBy(0, document.body.scrollHeight / 3)`); err != nil {
			r.logger.Debug("scroll failed", "error", err)
		}
		if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}

	// Trackers and long-polling keep some pages busy forever, so running
	// out the idle budget is not a failure.
	idlePage := page.Timeout(r.cfg.NetworkIdleTimeout)
	if err := idlePage.WaitIdle(r.cfg.NetworkIdleTimeout); err != nil {
		r.logger.Debug("network did not go idle", "error", err)
	}

	return ctx.Err()
}

// salvage grabs whatever HTML the page currently holds. Used on error
// paths; returns "" when even that fails.
func (r *Renderer) salvage(page *rod.Page) string {
	salvagePage := page.Timeout(5 * time.Second)
	html, err := salvagePage.HTML()
	if err != nil {
		return ""
	}
	return html
}

// disposeContext tears down an incognito browser context along with its
// cookie jar and storage.
func disposeContext(client proto.Client, id proto.BrowserBrowserContextID) error {
	return proto.TargetDisposeBrowserContext{BrowserContextID: id}.Call(client)
}

func (r *Renderer) isTracker(host, fullURL string) bool {
	host = strings.ToLower(host)
	for _, tracker := range r.trackers {
		if strings.Contains(tracker, "/") {
			if strings.Contains(fullURL, tracker) {
				return true
			}
			continue
		}
		if host == tracker || strings.HasSuffix(host, "."+tracker) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
