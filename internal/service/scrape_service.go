// Package service orchestrates the scraping pipeline: cache lookup, plain
// fetch, dynamic-site detection, headless rendering, content reduction,
// and AI extraction.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/pagelens/pagelens/internal/browser"
	"github.com/pagelens/pagelens/internal/cache"
	"github.com/pagelens/pagelens/internal/dynamic"
	"github.com/pagelens/pagelens/internal/llm"
	"github.com/pagelens/pagelens/internal/models"
	"github.com/pagelens/pagelens/internal/reduce"
)

// ErrNoContent means no tier of the pipeline produced any page content.
// This is the only pipeline failure that surfaces as an error; everything
// downstream of content retrieval degrades to empty results instead.
var ErrNoContent = errors.New("no page content could be retrieved")

// Fetcher retrieves a page over plain HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Renderer loads a page in a headless browser.
type Renderer interface {
	Render(ctx context.Context, url string) (browser.Result, error)
}

// Detector classifies fetched HTML as static or JS-rendered.
type Detector interface {
	Detect(html, pageURL string) dynamic.Detection
}

// Extractor pulls product fields out of reduced page content.
type Extractor interface {
	Extract(ctx context.Context, content string) llm.Outcome
	Enabled() bool
}

// ScrapeService runs the product scraping pipeline.
type ScrapeService struct {
	fetcher   Fetcher
	renderer  Renderer
	detector  Detector
	extractor Extractor
	cache     cache.Store
	group     singleflight.Group
	logger    *slog.Logger
}

// NewScrapeService wires the pipeline stages together.
func NewScrapeService(fetcher Fetcher, renderer Renderer, detector Detector,
	extractor Extractor, store cache.Store, logger *slog.Logger) *ScrapeService {
	return &ScrapeService{
		fetcher:   fetcher,
		renderer:  renderer,
		detector:  detector,
		extractor: extractor,
		cache:     store,
		logger:    logger,
	}
}

// Scrape resolves a product URL to its extracted data. Results are cached
// by raw URL; concurrent requests for the same URL share one pipeline run.
func (s *ScrapeService) Scrape(ctx context.Context, url string) (models.ProductData, error) {
	if data, ok := s.cache.Get(url); ok {
		s.logger.InfoContext(ctx, "cache hit", "url", url)
		return data, nil
	}

	// The run is shared by every coalesced caller, so it must not inherit
	// the first caller's cancellation. Each stage carries its own timeout.
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(url, func() (interface{}, error) {
		return s.scrape(runCtx, url)
	})
	if err != nil {
		return models.ProductData{}, err
	}
	if shared {
		s.logger.DebugContext(ctx, "request coalesced", "url", url)
	}
	return v.(models.ProductData), nil
}

func (s *ScrapeService) scrape(ctx context.Context, url string) (models.ProductData, error) {
	html, err := s.retrieve(ctx, url)
	if err != nil {
		return models.ProductData{}, err
	}

	reduced := reduce.Reduce(html)
	s.logger.DebugContext(ctx, "content reduced",
		"url", url, "raw_bytes", len(html), "reduced_bytes", len(reduced))

	outcome := s.extractor.Extract(ctx, reduced)
	if !outcome.Available {
		s.logger.WarnContext(ctx, "extraction unavailable, returning defaults",
			"url", url, "reason", outcome.Reason)
	}
	data := outcome.Data

	if data.Sufficient() {
		s.cache.Put(url, data)
	} else {
		s.logger.InfoContext(ctx, "result insufficient, not cached",
			"url", url, "has_price", data.Price != nil, "has_title", data.Title != "")
	}

	return data, nil
}

// retrieve obtains page HTML, escalating from plain fetch to headless
// rendering when the page needs it. A failed render still salvages
// partial HTML when any was captured, and falls back to the plain fetch
// result when that succeeded earlier.
func (s *ScrapeService) retrieve(ctx context.Context, url string) (string, error) {
	plainHTML, fetchErr := s.fetcher.Fetch(ctx, url)
	if fetchErr != nil {
		s.logger.WarnContext(ctx, "plain fetch failed, escalating to render",
			"url", url, "error", fetchErr)
	}

	needRender := fetchErr != nil || strings.TrimSpace(plainHTML) == ""
	if !needRender {
		detection := s.detector.Detect(plainHTML, url)
		needRender = detection.Dynamic
		if detection.Dynamic {
			s.logger.InfoContext(ctx, "page classified dynamic",
				"url", url, "signal", detection.Signal, "reason", detection.Description)
		}
	}

	if !needRender {
		return plainHTML, nil
	}

	result, renderErr := s.renderer.Render(ctx, url)
	if renderErr == nil {
		if result.Partial {
			s.logger.WarnContext(ctx, "using partial render", "url", url)
		}
		return result.HTML, nil
	}

	var re *browser.RenderError
	if errors.As(renderErr, &re) && re.Partial != "" {
		s.logger.WarnContext(ctx, "render failed, salvaging partial content",
			"url", url, "stage", re.Stage, "error", renderErr)
		return re.Partial, nil
	}

	if fetchErr == nil && plainHTML != "" {
		s.logger.WarnContext(ctx, "render failed, falling back to plain fetch content",
			"url", url, "error", renderErr)
		return plainHTML, nil
	}

	s.logger.ErrorContext(ctx, "all retrieval tiers failed",
		"url", url, "fetch_error", fetchErr, "render_error", renderErr)
	return "", ErrNoContent
}
