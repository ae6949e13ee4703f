package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFetchSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if ua := r.Header.Get("User-Agent"); ua == "" || ua == "Go-http-client/1.1" {
			t.Errorf("expected browser User-Agent, got %q", ua)
		}
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	client := New(5*time.Second, 3, time.Millisecond, testLogger())
	html, err := client.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if html != "<html><body>hello</body></html>" {
		t.Errorf("unexpected body: %q", html)
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1", hits.Load())
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(5*time.Second, 3, time.Millisecond, testLogger())
	_, err := client.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error from persistent 503")
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}

	var fetchErr *Error
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if fetchErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", fetchErr.Attempts)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := New(5*time.Second, 3, time.Millisecond, testLogger())
	_, err := client.Fetch(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error from 404")
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (4xx is terminal)", hits.Load())
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("error chain missing *StatusError: %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", statusErr.StatusCode)
	}
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := New(5*time.Second, 3, time.Millisecond, testLogger())
	html, err := client.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if html != "ok" {
		t.Errorf("body = %q, want ok", html)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(5*time.Second, 3, time.Second, testLogger())
	_, err := client.Fetch(ctx, srv.URL)
	if err == nil {
		t.Fatal("expected error with cancelled context")
	}
}
