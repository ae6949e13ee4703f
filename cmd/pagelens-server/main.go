// Package main provides the entry point for the pagelens server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/pagelens/pagelens/internal/api/handlers"
	"github.com/pagelens/pagelens/internal/browser"
	"github.com/pagelens/pagelens/internal/cache"
	"github.com/pagelens/pagelens/internal/config"
	"github.com/pagelens/pagelens/internal/dynamic"
	"github.com/pagelens/pagelens/internal/fetch"
	"github.com/pagelens/pagelens/internal/llm"
	"github.com/pagelens/pagelens/internal/logging"
	"github.com/pagelens/pagelens/internal/models"
	"github.com/pagelens/pagelens/internal/service"
	"github.com/pagelens/pagelens/internal/shutdown"
	"github.com/pagelens/pagelens/internal/version"
)

func main() {
	cfg := config.Load()

	// Initialize logger using slog-logfilter (respects LOG_LEVEL, LOG_FORMAT env vars)
	logger := logging.SetDefault()

	logger.Info("starting pagelens server",
		"version", version.Get().Version,
		"port", cfg.Port,
		"pool_size", cfg.BrowserPoolSize,
		"extraction_enabled", cfg.OpenAIAPIKey != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Browser pool; warmed up in the background so startup stays fast.
	pool := browser.NewPool(browser.PoolConfig{
		Size:        cfg.BrowserPoolSize,
		MaxRequests: cfg.BrowserMaxRequests,
		MaxAge:      cfg.BrowserMaxAge,
		IdleTimeout: cfg.BrowserIdleTimeout,
		ChromePath:  cfg.ChromePath,
	}, logger)
	defer pool.Close()
	go func() {
		if err := pool.Warmup(ctx); err != nil {
			logger.Error("browser pool warmup failed", "error", err)
		}
	}()
	go pool.StartCleanup(ctx)

	// Result cache: SQLite-backed when a path is configured, memory otherwise.
	var store cache.Store
	if cfg.CacheDBPath != "" {
		sqliteStore, err := cache.NewSQLiteStore(cfg.CacheDBPath, cfg.CacheTTL, logger)
		if err != nil {
			logger.Error("failed to open cache database", "path", cfg.CacheDBPath, "error", err)
			os.Exit(1)
		}
		store = sqliteStore
	} else {
		store = cache.NewMemoryStore(cfg.CacheTTL)
	}
	defer store.Close()

	fetcher := fetch.New(cfg.FetchTimeout, cfg.FetchAttempts, cfg.FetchBackoff, logger)
	detector := dynamic.NewDetector(cfg.SPAMarkers, nil, cfg.DynamicHosts)
	renderer := browser.NewRenderer(pool, browser.RendererConfig{
		NavigationTimeout:  cfg.NavigationTimeout,
		NetworkIdleTimeout: cfg.NetworkIdleTimeout,
		TrackerDomains:     cfg.TrackerDomains,
	}, logger)
	extractor := llm.New(llm.Config{
		APIKey:    cfg.OpenAIAPIKey,
		BaseURL:   cfg.LLMBaseURL,
		Model:     cfg.LLMModel,
		Timeout:   cfg.LLMTimeout,
		MaxTokens: cfg.LLMMaxTokens,
	}, logger)
	if !extractor.Enabled() {
		logger.Warn("OPENAI_API_KEY not set - extraction disabled, responses will carry defaults")
	}

	scraper := service.NewScrapeService(fetcher, renderer, detector, extractor, store, logger)

	healthHandler := handlers.NewHealthHandler(pool, store)
	scrapeHandler := handlers.NewScrapeHandler(scraper, logger)

	// Idle monitor for scale-to-zero deployments.
	idleMonitor := shutdown.NewIdleMonitor(shutdown.IdleMonitorConfig{
		Timeout: cfg.IdleTimeout,
		Logger:  logger,
	})
	idleMonitor.Start()

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestIDToContext)
	r.Use(middleware.Recoverer)
	// Worst case: full fetch retries plus a render plus extraction.
	r.Use(middleware.Timeout(cfg.NavigationTimeout + cfg.LLMTimeout + 60*time.Second))
	r.Use(idleMonitor.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))

	// Error responses use the flat {"error": "..."} shape everywhere.
	handlers.InstallErrorModel()

	humaConfig := huma.DefaultConfig("Pagelens", version.Get().Version)
	humaConfig.Info.Description = "Product page scraping and AI extraction service"
	api := humachi.New(r, humaConfig)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health, browser pool, and cache statistics",
		Tags:        []string{"Health"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		return &HealthOutput{Body: *healthHandler.Handle(ctx)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "scrapeProduct",
		Method:      http.MethodPost,
		Path:        "/scrape-product",
		Summary:     "Scrape a product page",
		Description: "Fetches a product page, rendering it in a headless browser when needed, and extracts price, title, size, and color",
		Tags:        []string{"Scrape"},
	}, func(ctx context.Context, input *ScrapeInput) (*ScrapeOutput, error) {
		data, err := scrapeHandler.Handle(ctx, &input.Body)
		if err != nil {
			return nil, err
		}
		return &ScrapeOutput{Body: *data}, nil
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.NavigationTimeout + cfg.LLMTimeout + 90*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case <-idleMonitor.ShutdownChan():
		logger.Info("idle shutdown triggered")
	}

	cancel()
	if idleMonitor.IsEnabled() {
		idleMonitor.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// requestIDToContext copies the chi request ID into the logging context so
// every log line for a request carries it.
func requestIDToContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(logging.WithRequestID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

// ScrapeInput is the input for scrape requests.
type ScrapeInput struct {
	Body models.ScrapeRequest
}

// ScrapeOutput is the output for scrape requests.
type ScrapeOutput struct {
	Body models.ProductData
}

// HealthOutput is the output wrapper for the health endpoint.
type HealthOutput struct {
	Body models.HealthResponse
}
