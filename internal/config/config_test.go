package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.FetchAttempts != 3 {
		t.Errorf("FetchAttempts = %d, want 3", cfg.FetchAttempts)
	}
	if cfg.FetchTimeout != 15*time.Second {
		t.Errorf("FetchTimeout = %v, want 15s", cfg.FetchTimeout)
	}
	if cfg.NavigationTimeout != 45*time.Second {
		t.Errorf("NavigationTimeout = %v, want 45s", cfg.NavigationTimeout)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want 15m", cfg.CacheTTL)
	}
	if cfg.OpenAIAPIKey != "" {
		t.Skip("OPENAI_API_KEY set in environment")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "5m")
	t.Setenv("FETCH_ATTEMPTS", "1")
	t.Setenv("DYNAMIC_HOSTS", "zara.com, hm.com ,")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.FetchAttempts != 1 {
		t.Errorf("FetchAttempts = %d, want 1", cfg.FetchAttempts)
	}
	want := []string{"zara.com", "hm.com"}
	if len(cfg.DynamicHosts) != len(want) {
		t.Fatalf("DynamicHosts = %v, want %v", cfg.DynamicHosts, want)
	}
	for i := range want {
		if cfg.DynamicHosts[i] != want[i] {
			t.Errorf("DynamicHosts[%d] = %q, want %q", i, cfg.DynamicHosts[i], want[i])
		}
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	t.Setenv("CACHE_TTL", "forever")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want default 8080 for invalid value", cfg.Port)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want default 15m for invalid value", cfg.CacheTTL)
	}
}
