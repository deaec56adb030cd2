// Package browser drives Chrome through Rod for live pages. The Manager
// owns the Chrome process (launch or remote attach, Xvfb for headful mode,
// recycling on age or heap size); Page adapts one tab to the session's
// document model.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// StealthLevel selects how a page is acquired.
type StealthLevel int

const (
	LevelHTTP     StealthLevel = 0 // static fetch, no browser
	LevelHeadless StealthLevel = 1 // headless Chrome with stealth patches
	LevelHeadful  StealthLevel = 2 // headful Chrome on Xvfb
)

// ParseLevel maps a config value ("0", "1", "2") to a StealthLevel.
// "auto" and unknown values map to LevelHTTP with auto=true.
func ParseLevel(s string) (level StealthLevel, auto bool) {
	switch s {
	case "1":
		return LevelHeadless, false
	case "2":
		return LevelHeadful, false
	case "0":
		return LevelHTTP, false
	}
	return LevelHTTP, true
}

// Config configures the Manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket of an external Chrome. Empty
	// launches a local one.
	RemoteURL string

	MemoryLimit      int64         // JS heap bytes before a recycle
	RecycleInterval  time.Duration // maximum Chrome lifetime
	ResourceBlocking []string      // images, fonts, media, stylesheets
	Headful          bool

	XvfbDisplay      string        // default ":99"
	XvfbScreen       string        // WxHxDepth, default "1920x1080x24"
	XvfbReadyTimeout time.Duration // wait for the display socket, default 5s

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.XvfbScreen == "" {
		c.XvfbScreen = "1920x1080x24"
	}
	if c.XvfbReadyTimeout <= 0 {
		c.XvfbReadyTimeout = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns one Chrome process.
type Manager struct {
	cfg        Config
	mu         sync.RWMutex
	browser    *rod.Browser
	lnch       *launcher.Launcher
	xvfb       *exec.Cmd
	xvfbExited chan error
	startAt    time.Time
	closed     bool
	pages      map[*Page]struct{}
}

// NewManager creates a Manager. Call Start before opening pages.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, pages: make(map[*Page]struct{})}
}

// Start launches or attaches to Chrome and starts the recycle monitor,
// which runs until ctx is done.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	b, err := m.launch()
	if err != nil {
		return err
	}
	m.browser = b
	m.startAt = time.Now()
	go m.monitorLoop(ctx)
	return nil
}

// Browser returns the current Rod handle.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close shuts Chrome and Xvfb down.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanup()
	return nil
}

// Recycle restarts Chrome and reopens every tracked page at its last URL.
// Refs into those pages go stale: the reopened tabs have new node ids.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("browser: manager is closed")
	}
	m.cfg.Logger.Info("browser: recycling", "uptime", time.Since(m.startAt))
	m.cleanup()
	b, err := m.launch()
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	pages := make([]*Page, 0, len(m.pages))
	for p := range m.pages {
		pages = append(pages, p)
	}
	m.mu.Unlock()

	for _, p := range pages {
		if err := p.reopen(ctx); err != nil {
			m.cfg.Logger.Error("browser: reopen after recycle", "url", p.url, "error", err)
		}
	}
	return nil
}

func (m *Manager) track(p *Page) {
	m.mu.Lock()
	m.pages[p] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) untrack(p *Page) {
	m.mu.Lock()
	delete(m.pages, p)
	m.mu.Unlock()
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Headful {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("browser: xvfb: %w", err)
		}
	}

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(!m.cfg.Headful)
		if m.cfg.Headful {
			l = l.Env(append(os.Environ(), "DISPLAY="+m.cfg.XvfbDisplay)...)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "headful", m.cfg.Headful)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	return b, nil
}

func (m *Manager) cleanup() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
}

func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		closed, b, startAt := m.closed, m.browser, m.startAt
		m.mu.RUnlock()
		if closed || b == nil {
			return
		}

		reason := ""
		if time.Since(startAt) > m.cfg.RecycleInterval {
			reason = "interval"
		} else if used, err := jsHeapUsage(b); err != nil {
			log.Debug("browser: heap check failed", "error", err)
		} else if used > m.cfg.MemoryLimit {
			reason = "memory"
			log.Info("browser: memory limit exceeded", "used", used, "limit", m.cfg.MemoryLimit)
		}
		if reason == "" {
			continue
		}
		if err := m.Recycle(ctx); err != nil {
			log.Error("browser: recycle failed", "reason", reason, "error", err)
		}
	}
}

// jsHeapUsage reads the JS heap of the first tab as a proxy for Chrome's
// footprint.
func jsHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("browser: no pages for heap check")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
