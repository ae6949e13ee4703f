package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagelens/pagelens/internal/models"
	"github.com/pagelens/pagelens/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScraper struct {
	data    models.ProductData
	err     error
	lastURL string
	called  bool
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (models.ProductData, error) {
	f.called = true
	f.lastURL = url
	return f.data, f.err
}

func statusOf(t *testing.T, err error) (int, string) {
	t.Helper()
	var se huma.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %v does not carry a status", err)
	}
	return se.GetStatus(), err.Error()
}

func TestHandleMissingURL(t *testing.T) {
	scraper := &fakeScraper{}
	h := NewScrapeHandler(scraper, testLogger())

	for _, raw := range []string{"", "   "} {
		_, err := h.Handle(context.Background(), &models.ScrapeRequest{URL: raw})
		if err == nil {
			t.Fatalf("URL %q: expected error", raw)
		}
		status, msg := statusOf(t, err)
		if status != http.StatusBadRequest {
			t.Errorf("URL %q: status = %d, want 400", raw, status)
		}
		if msg != "URL is required" {
			t.Errorf("URL %q: message = %q, want %q", raw, msg, "URL is required")
		}
		if scraper.called {
			t.Error("pipeline must not run for a missing URL")
		}
	}
}

func TestHandleInvalidURL(t *testing.T) {
	scraper := &fakeScraper{}
	h := NewScrapeHandler(scraper, testLogger())

	for _, raw := range []string{"not a url", "/relative/path", "ftp://files.example/x", "http://"} {
		_, err := h.Handle(context.Background(), &models.ScrapeRequest{URL: raw})
		if err == nil {
			t.Fatalf("URL %q: expected error", raw)
		}
		status, msg := statusOf(t, err)
		if status != http.StatusBadRequest {
			t.Errorf("URL %q: status = %d, want 400", raw, status)
		}
		if msg != "invalid URL" {
			t.Errorf("URL %q: message = %q, want %q", raw, msg, "invalid URL")
		}
	}
	if scraper.called {
		t.Error("pipeline must not run for an invalid URL")
	}
}

func TestHandleSuccess(t *testing.T) {
	scraper := &fakeScraper{data: models.ProductData{
		Price: models.Float(49.99), Title: "Linen Shirt", Size: "M", Color: "White",
	}}
	h := NewScrapeHandler(scraper, testLogger())

	data, err := h.Handle(context.Background(), &models.ScrapeRequest{URL: "https://shop.example/p/1"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if data.Title != "Linen Shirt" || data.Price == nil || *data.Price != 49.99 {
		t.Errorf("unexpected data: %+v", data)
	}
	if scraper.lastURL != "https://shop.example/p/1" {
		t.Errorf("scraper received %q, want the raw URL", scraper.lastURL)
	}
}

func TestHandleInsufficientDataStillSucceeds(t *testing.T) {
	scraper := &fakeScraper{data: models.ProductData{}}
	h := NewScrapeHandler(scraper, testLogger())

	data, err := h.Handle(context.Background(), &models.ScrapeRequest{URL: "https://shop.example/p/1"})
	if err != nil {
		t.Fatalf("insufficient data must not be an error: %v", err)
	}
	if data.Price != nil || data.Title != "" {
		t.Errorf("expected defaults, got %+v", data)
	}
}

func TestHandleNoContent(t *testing.T) {
	scraper := &fakeScraper{err: service.ErrNoContent}
	h := NewScrapeHandler(scraper, testLogger())

	_, err := h.Handle(context.Background(), &models.ScrapeRequest{URL: "https://shop.example/p/1"})
	status, msg := statusOf(t, err)
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if msg != "Failed to retrieve page content" {
		t.Errorf("message = %q", msg)
	}
}

func TestHandleUnexpectedError(t *testing.T) {
	scraper := &fakeScraper{err: errors.New("browser exploded")}
	h := NewScrapeHandler(scraper, testLogger())

	_, err := h.Handle(context.Background(), &models.ScrapeRequest{URL: "https://shop.example/p/1"})
	status, msg := statusOf(t, err)
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if msg != "Failed to scrape product information due to an unexpected error" {
		t.Errorf("message = %q", msg)
	}
	// Internal details never leak to the client.
	if msg == "browser exploded" {
		t.Error("error message leaked internals")
	}
}

func TestInstallErrorModel(t *testing.T) {
	InstallErrorModel()

	err := huma.NewError(http.StatusBadRequest, "URL is required")
	if err.GetStatus() != http.StatusBadRequest {
		t.Errorf("GetStatus = %d", err.GetStatus())
	}
	if err.Error() != "URL is required" {
		t.Errorf("Error = %q", err.Error())
	}
}
