package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hazyhaar/domref"
	"github.com/hazyhaar/domref/internal/browser"
	"github.com/hazyhaar/domref/internal/config"
	"github.com/hazyhaar/domref/internal/fetcher"
	"github.com/hazyhaar/domref/internal/htmlpage"
)

var (
	_ domref.Page = (*htmlpage.Page)(nil)
	_ domref.Page = (*browser.Page)(nil)
)

// openPage picks the page implementation for cfg. Level 0 fetches over
// HTTP; levels 1 and 2 drive Chrome; auto fetches first and falls back to
// Chrome when the markup looks like a script-rendered shell.
func openPage(ctx context.Context, logger *slog.Logger, cfg *config.Config) (domref.Page, func(), error) {
	f := fetcher.New(fetcher.WithUserAgent(cfg.Page.UserAgent), fetcher.WithLogger(logger))
	loader := func(ctx context.Context, u string) ([]byte, string, error) {
		res, err := f.Fetch(ctx, u)
		if err != nil {
			return nil, "", err
		}
		return res.Body, res.URL, nil
	}

	if cfg.Page.HTMLFile != "" {
		data, err := os.ReadFile(cfg.Page.HTMLFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", cfg.Page.HTMLFile, err)
		}
		abs, err := filepath.Abs(cfg.Page.HTMLFile)
		if err != nil {
			return nil, nil, err
		}
		page, err := htmlpage.FromHTML(data, "file://"+filepath.ToSlash(abs),
			htmlpage.WithLoader(loader), htmlpage.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return page, func() { page.Close() }, nil
	}

	level, auto := browser.ParseLevel(cfg.Page.StealthLevel)
	if level == browser.LevelHTTP {
		res, err := f.Fetch(ctx, cfg.Page.URL)
		switch {
		case err != nil && !auto:
			return nil, nil, err
		case err == nil && (res.Sufficient || !auto):
			page, err := htmlpage.FromHTML(res.Body, res.URL,
				htmlpage.WithLoader(loader), htmlpage.WithLogger(logger))
			if err != nil {
				return nil, nil, err
			}
			logger.Info("domref: static page", "url", res.URL, "bytes", len(res.Body))
			return page, func() { page.Close() }, nil
		case err != nil:
			logger.Info("domref: http fetch failed, using browser", "url", cfg.Page.URL, "error", err)
		default:
			logger.Info("domref: page needs a browser", "url", cfg.Page.URL)
		}
		level = browser.LevelHeadless
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Headful:          level == browser.LevelHeadful || cfg.Browser.Stealth == "headful",
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		XvfbScreen:       cfg.Browser.XvfbScreen,
		XvfbReadyTimeout: cfg.Browser.XvfbReadyTimeout,
		Logger:           logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return nil, nil, err
	}
	page, err := browser.OpenPage(ctx, mgr, cfg.Page.URL,
		browser.WithLevel(level),
		browser.WithResourceBlocking(cfg.Browser.ResourceBlocking),
		browser.WithLoadTimeout(cfg.Server.CallTimeout),
		browser.WithPageLogger(logger),
	)
	if err != nil {
		mgr.Close()
		return nil, nil, err
	}
	return page, func() {
		page.Close()
		mgr.Close()
	}, nil
}
