package handlers

import (
	"context"
	"time"

	"github.com/pagelens/pagelens/internal/browser"
	"github.com/pagelens/pagelens/internal/cache"
	"github.com/pagelens/pagelens/internal/models"
	"github.com/pagelens/pagelens/internal/version"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	pool    *browser.Pool
	store   cache.Store
	started time.Time
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(pool *browser.Pool, store cache.Store) *HealthHandler {
	return &HealthHandler{pool: pool, store: store, started: time.Now()}
}

// Handle returns the service health status.
func (h *HealthHandler) Handle(ctx context.Context) *models.HealthResponse {
	stats := h.pool.Stats()

	return &models.HealthResponse{
		Status:       "healthy",
		Version:      version.Get().Version,
		BrowserTotal: stats.Total,
		BrowserInUse: stats.InUse,
		CacheEntries: h.store.Len(),
		Uptime:       int64(time.Since(h.started).Seconds()),
	}
}
