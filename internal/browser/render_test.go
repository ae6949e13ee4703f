package browser

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsTracker(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{}, testLogger())

	cases := []struct {
		host string
		url  string
		want bool
	}{
		{"www.google-analytics.com", "https://www.google-analytics.com/collect", true},
		{"google-analytics.com", "https://google-analytics.com/collect", true},
		{"cdn.segment.com", "https://cdn.segment.com/v1/t", true},
		{"www.facebook.com", "https://www.facebook.com/tr?id=1", true},
		{"www.facebook.com", "https://www.facebook.com/zuck", false},
		{"shop.example.com", "https://shop.example.com/product.json", false},
		{"notdoubleclick.net.example.com", "https://notdoubleclick.net.example.com/x", false},
	}

	for _, tc := range cases {
		if got := r.isTracker(tc.host, tc.url); got != tc.want {
			t.Errorf("isTracker(%q, %q) = %v, want %v", tc.host, tc.url, got, tc.want)
		}
	}
}

func TestIsTrackerOverrides(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{TrackerDomains: []string{"mytracker.test"}}, testLogger())

	if !r.isTracker("mytracker.test", "https://mytracker.test/x") {
		t.Error("override domain should be blocked")
	}
	if r.isTracker("google-analytics.com", "https://google-analytics.com/collect") {
		t.Error("default list should be replaced by override")
	}
}

type fakeCDPClient struct {
	methods []string
	err     error
}

func (f *fakeCDPClient) Call(ctx context.Context, sessionID, method string, params interface{}) ([]byte, error) {
	f.methods = append(f.methods, method)
	return nil, f.err
}

func TestDisposeContext(t *testing.T) {
	client := &fakeCDPClient{}

	if err := disposeContext(client, proto.BrowserBrowserContextID("ctx-1")); err != nil {
		t.Fatalf("disposeContext: %v", err)
	}
	if len(client.methods) != 1 || client.methods[0] != "Target.disposeBrowserContext" {
		t.Errorf("methods = %v, want one Target.disposeBrowserContext call", client.methods)
	}

	failing := &fakeCDPClient{err: errors.New("browser gone")}
	if err := disposeContext(failing, proto.BrowserBrowserContextID("ctx-2")); err == nil {
		t.Error("disposeContext should surface the transport error")
	}
}

func TestRenderErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &RenderError{Stage: "navigate", Partial: "<html/>", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("RenderError should unwrap to its cause")
	}

	var re *RenderError
	if !errors.As(error(err), &re) {
		t.Fatal("errors.As failed")
	}
	if re.Partial != "<html/>" {
		t.Errorf("Partial = %q", re.Partial)
	}
}

func TestRendererConfigDefaults(t *testing.T) {
	r := NewRenderer(nil, RendererConfig{}, testLogger())
	if r.cfg.NavigationTimeout != 45*time.Second {
		t.Errorf("NavigationTimeout = %v, want 45s", r.cfg.NavigationTimeout)
	}
	if r.cfg.NetworkIdleTimeout != 10*time.Second {
		t.Errorf("NetworkIdleTimeout = %v, want 10s", r.cfg.NetworkIdleTimeout)
	}
}
