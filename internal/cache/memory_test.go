package cache

import (
	"testing"
	"time"

	"github.com/pagelens/pagelens/internal/models"
)

func TestMemoryStoreHitAndMiss(t *testing.T) {
	store := NewMemoryStore(15 * time.Minute)

	if _, ok := store.Get("https://shop.example/p/1"); ok {
		t.Fatal("expected miss on empty store")
	}

	want := models.ProductData{Price: models.Float(49.99), Title: "Linen Shirt"}
	store.Put("https://shop.example/p/1", want)

	got, ok := store.Get("https://shop.example/p/1")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got.Title != want.Title || *got.Price != *want.Price {
		t.Errorf("Get = %+v, want %+v", got, want)
	}

	// Repeated reads do not consume the entry.
	if _, ok := store.Get("https://shop.example/p/1"); !ok {
		t.Error("expected second read to hit")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore(15 * time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Put("https://shop.example/p/2", models.ProductData{Title: "Wool Coat"})

	current = current.Add(14 * time.Minute)
	if _, ok := store.Get("https://shop.example/p/2"); !ok {
		t.Error("entry should still be fresh at 14m")
	}

	current = current.Add(2 * time.Minute)
	if _, ok := store.Get("https://shop.example/p/2"); ok {
		t.Error("entry should have expired at 16m")
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d, want 0 after lazy expiry", store.Len())
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore(15 * time.Minute)

	store.Put("https://shop.example/p/3", models.ProductData{Title: "Old"})
	store.Put("https://shop.example/p/3", models.ProductData{Title: "New"})

	got, ok := store.Get("https://shop.example/p/3")
	if !ok || got.Title != "New" {
		t.Errorf("Get = %+v, want overwritten entry", got)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestMemoryStorePutSweepsExpired(t *testing.T) {
	store := NewMemoryStore(15 * time.Minute)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Put("https://shop.example/p/old", models.ProductData{Title: "Old"})
	current = current.Add(20 * time.Minute)
	store.Put("https://shop.example/p/new", models.ProductData{Title: "New"})

	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1 after sweep on write", store.Len())
	}
}
