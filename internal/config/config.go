// Package config provides configuration management for the scrape service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the scrape service.
type Config struct {
	// Server settings
	Port          int
	LogLevel      string
	RatePerMinute int           // per-IP request limit on the scrape endpoint
	IdleTimeout   time.Duration // scale-to-zero idle shutdown (0 = disabled)

	// Browser pool settings
	BrowserPoolSize    int
	BrowserIdleTimeout time.Duration
	BrowserMaxRequests int
	BrowserMaxAge      time.Duration
	ChromePath         string

	// Render settings
	NavigationTimeout  time.Duration // DOMContentLoaded upper bound
	NetworkIdleTimeout time.Duration // non-fatal settle wait after scrolling

	// Plain fetch settings
	FetchTimeout  time.Duration // per-attempt timeout
	FetchAttempts int
	FetchBackoff  time.Duration // delay before the first retry, doubles per attempt

	// Result cache settings
	CacheTTL    time.Duration
	CacheDBPath string // when set, cache is backed by sqlite instead of memory

	// AI extraction settings. An empty API key disables the AI stage; the
	// pipeline then degrades to empty results instead of failing.
	OpenAIAPIKey string
	LLMBaseURL   string
	LLMModel     string
	LLMTimeout   time.Duration
	LLMMaxTokens int

	// Signature lists. These need ongoing maintenance as target sites
	// change, so they are overridable without a rebuild.
	DynamicHosts   []string // retailer domains that always require rendering
	SPAMarkers     []string // framework signatures that imply JS rendering
	TrackerDomains []string // request hosts aborted during rendering
}

// Load creates a Config from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:          getEnvInt("PORT", 8080),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		RatePerMinute: getEnvInt("RATE_PER_MINUTE", 60),
		IdleTimeout:   getEnvDuration("IDLE_TIMEOUT", 0),

		BrowserPoolSize:    getEnvInt("BROWSER_POOL_SIZE", 3),
		BrowserIdleTimeout: getEnvDuration("BROWSER_IDLE_TIMEOUT", 5*time.Minute),
		BrowserMaxRequests: getEnvInt("BROWSER_MAX_REQUESTS", 50),
		BrowserMaxAge:      getEnvDuration("BROWSER_MAX_AGE", 30*time.Minute),
		ChromePath:         getEnv("CHROME_PATH", ""),

		NavigationTimeout:  getEnvDuration("NAVIGATION_TIMEOUT", 45*time.Second),
		NetworkIdleTimeout: getEnvDuration("NETWORK_IDLE_TIMEOUT", 10*time.Second),

		FetchTimeout:  getEnvDuration("FETCH_TIMEOUT", 15*time.Second),
		FetchAttempts: getEnvInt("FETCH_ATTEMPTS", 3),
		FetchBackoff:  getEnvDuration("FETCH_BACKOFF", time.Second),

		CacheTTL:    getEnvDuration("CACHE_TTL", 15*time.Minute),
		CacheDBPath: getEnv("CACHE_DB_PATH", ""),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:     getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:   getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxTokens: getEnvInt("LLM_MAX_TOKENS", 512),

		DynamicHosts:   getEnvList("DYNAMIC_HOSTS", nil),
		SPAMarkers:     getEnvList("SPA_MARKERS", nil),
		TrackerDomains: getEnvList("TRACKER_DOMAINS", nil),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
