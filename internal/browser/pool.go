// Package browser manages headless Chromium instances and renders
// JavaScript-heavy product pages with them.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrPoolClosed is returned when trying to use a closed pool.
	ErrPoolClosed = errors.New("browser pool is closed")
)

// PoolConfig holds browser pool settings.
type PoolConfig struct {
	Size        int
	MaxRequests int
	MaxAge      time.Duration
	IdleTimeout time.Duration
	ChromePath  string
}

// ManagedBrowser wraps a rod.Browser with lifecycle metadata.
type ManagedBrowser struct {
	ID           string
	Browser      *rod.Browser
	InUse        bool
	CreatedAt    time.Time
	LastUsedAt   time.Time
	RequestCount int
}

// Pool manages a fixed-size set of browser instances. Browsers are
// created lazily, handed out one render at a time, and recycled once
// they age out or serve too many requests.
type Pool struct {
	mu       sync.RWMutex
	browsers map[string]*ManagedBrowser
	waiting  []chan *ManagedBrowser
	cfg      PoolConfig
	logger   *slog.Logger
	closed   bool
}

// NewPool creates a browser pool.
func NewPool(cfg PoolConfig, logger *slog.Logger) *Pool {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	return &Pool{
		browsers: make(map[string]*ManagedBrowser),
		cfg:      cfg,
		logger:   logger,
	}
}

// Warmup ensures Chromium is available and pre-creates one browser so
// the first request does not pay the download and launch cost.
func (p *Pool) Warmup(ctx context.Context) error {
	if p.cfg.ChromePath != "" {
		p.logger.Info("using custom Chrome path", "path", p.cfg.ChromePath)
	} else {
		browserPath, err := launcher.NewBrowser().Get()
		if err != nil {
			return err
		}
		p.logger.Info("Chromium ready", "path", browserPath)
	}

	browser, err := p.createBrowser()
	if err != nil {
		return err
	}
	browser.InUse = false

	p.mu.Lock()
	p.browsers[browser.ID] = browser
	p.mu.Unlock()

	p.logger.Info("browser pool warmed up")
	return nil
}

// Acquire gets a browser, creating one if the pool has capacity. Blocks
// until a browser frees up or the context is cancelled.
func (p *Pool) Acquire(ctx context.Context) (*ManagedBrowser, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	for _, b := range p.browsers {
		if !b.InUse && p.isHealthy(b) {
			b.InUse = true
			b.LastUsedAt = time.Now()
			p.mu.Unlock()
			return b, nil
		}
	}

	if len(p.browsers) < p.cfg.Size {
		browser, err := p.createBrowser()
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.browsers[browser.ID] = browser
		p.mu.Unlock()
		return browser, nil
	}

	waitChan := make(chan *ManagedBrowser, 1)
	p.waiting = append(p.waiting, waitChan)
	p.mu.Unlock()

	select {
	case browser, ok := <-waitChan:
		if !ok {
			return nil, ErrPoolClosed
		}
		return browser, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, ch := range p.waiting {
			if ch == waitChan {
				p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release returns a browser to the pool, recycling it when worn out.
func (p *Pool) Release(browser *ManagedBrowser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.closeBrowser(browser)
		return
	}

	browser.InUse = false
	browser.RequestCount++
	browser.LastUsedAt = time.Now()

	if p.needsRecycle(browser) {
		p.recycleBrowser(browser)
		return
	}

	if len(p.waiting) > 0 {
		waitChan := p.waiting[0]
		p.waiting = p.waiting[1:]
		browser.InUse = true
		browser.LastUsedAt = time.Now()
		waitChan <- browser
	}
}

// Close shuts down all browsers and rejects further use.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, browser := range p.browsers {
		p.closeBrowser(browser)
	}
	p.browsers = make(map[string]*ManagedBrowser)

	for _, ch := range p.waiting {
		close(ch)
	}
	p.waiting = nil
}

// PoolStats contains pool statistics for health reporting.
type PoolStats struct {
	Total     int `json:"total"`
	InUse     int `json:"inUse"`
	Available int `json:"available"`
	MaxSize   int `json:"maxSize"`
	Waiting   int `json:"waiting"`
}

// Stats returns current pool statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := PoolStats{
		Total:   len(p.browsers),
		MaxSize: p.cfg.Size,
		Waiting: len(p.waiting),
	}
	for _, b := range p.browsers {
		if b.InUse {
			stats.InUse++
		} else {
			stats.Available++
		}
	}
	return stats
}

func (p *Pool) createBrowser() (*ManagedBrowser, error) {
	l := launcher.New()
	if p.cfg.ChromePath != "" {
		l = l.Bin(p.cfg.ChromePath)
	}

	l = l.
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("disable-background-networking").
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	u, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	p.logger.Info("browser created", "id", id)

	return &ManagedBrowser{
		ID:         id,
		Browser:    browser,
		InUse:      true,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
	}, nil
}

func (p *Pool) isHealthy(b *ManagedBrowser) bool {
	if time.Since(b.CreatedAt) > p.cfg.MaxAge {
		return false
	}
	if b.RequestCount >= p.cfg.MaxRequests {
		return false
	}

	defer func() {
		recover()
	}()
	_, err := b.Browser.Pages()
	return err == nil
}

func (p *Pool) needsRecycle(b *ManagedBrowser) bool {
	if time.Since(b.CreatedAt) > p.cfg.MaxAge {
		return true
	}
	return b.RequestCount >= p.cfg.MaxRequests
}

// recycleBrowser closes a worn-out browser and replaces it in the
// background. Caller holds p.mu.
func (p *Pool) recycleBrowser(b *ManagedBrowser) {
	p.logger.Info("recycling browser", "id", b.ID,
		"age", time.Since(b.CreatedAt), "requests", b.RequestCount)

	p.closeBrowser(b)
	delete(p.browsers, b.ID)

	go func() {
		newBrowser, err := p.createBrowser()
		if err != nil {
			p.logger.Error("failed to create replacement browser", "error", err)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed {
			p.closeBrowser(newBrowser)
			return
		}

		newBrowser.InUse = false
		p.browsers[newBrowser.ID] = newBrowser

		if len(p.waiting) > 0 {
			waitChan := p.waiting[0]
			p.waiting = p.waiting[1:]
			newBrowser.InUse = true
			newBrowser.LastUsedAt = time.Now()
			waitChan <- newBrowser
		}
	}()
}

func (p *Pool) closeBrowser(b *ManagedBrowser) {
	if b.Browser != nil {
		if err := b.Browser.Close(); err != nil {
			p.logger.Warn("error closing browser", "id", b.ID, "error", err)
		}
	}
}

// StartCleanup runs a loop that closes browsers idle past the configured
// timeout. Intended to run in its own goroutine for the process lifetime.
func (p *Pool) StartCleanup(ctx context.Context) {
	if p.cfg.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cleanupIdle()
		}
	}
}

func (p *Pool) cleanupIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	for id, b := range p.browsers {
		if !b.InUse && time.Since(b.LastUsedAt) > p.cfg.IdleTimeout {
			p.logger.Info("closing idle browser", "id", id,
				"idle", time.Since(b.LastUsedAt))
			p.closeBrowser(b)
			delete(p.browsers, id)
		}
	}
}
