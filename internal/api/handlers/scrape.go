// Package handlers provides HTTP handlers for the scrape service API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/pagelens/pagelens/internal/logging"
	"github.com/pagelens/pagelens/internal/models"
	"github.com/pagelens/pagelens/internal/service"
)

// ProductScraper runs the scraping pipeline for a URL.
type ProductScraper interface {
	Scrape(ctx context.Context, url string) (models.ProductData, error)
}

// ScrapeHandler handles product scrape requests.
type ScrapeHandler struct {
	scraper ProductScraper
	logger  *slog.Logger
}

// NewScrapeHandler creates a scrape handler.
func NewScrapeHandler(scraper ProductScraper, logger *slog.Logger) *ScrapeHandler {
	return &ScrapeHandler{scraper: scraper, logger: logger}
}

// Handle validates the request and runs the pipeline. Validation problems
// are 400s; only total content failure or an unexpected pipeline error
// becomes a 500. An insufficient extraction is still a 200 with defaults.
func (h *ScrapeHandler) Handle(ctx context.Context, req *models.ScrapeRequest) (*models.ProductData, error) {
	logger := logging.FromContext(ctx, h.logger)

	if strings.TrimSpace(req.URL) == "" {
		return nil, BadRequest("URL is required")
	}

	u, err := url.Parse(req.URL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		logger.Info("rejected malformed URL", "url", req.URL)
		return nil, BadRequest("invalid URL")
	}

	start := time.Now()
	logger.Info("scrape request received", "url", req.URL)

	// The raw URL is the pipeline and cache key; no normalization.
	data, err := h.scraper.Scrape(ctx, req.URL)
	if err != nil {
		if errors.Is(err, service.ErrNoContent) {
			logger.Error("scrape failed: no content retrieved",
				"url", req.URL, "duration", time.Since(start))
			return nil, Internal("Failed to retrieve page content")
		}
		logger.Error("scrape failed",
			"url", req.URL, "duration", time.Since(start), "error", err)
		return nil, Internal("Failed to scrape product information due to an unexpected error")
	}

	logger.Info("scrape request completed",
		"url", req.URL,
		"duration", time.Since(start),
		"has_price", data.Price != nil,
		"has_title", data.Title != "",
	)
	return &data, nil
}
