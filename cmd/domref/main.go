// Command domref drives a web page by role, text and label.
//
// Usage:
//
//	domref -html page.html -snapshot -i            # print an interactive snapshot
//	domref -url https://example.com -serve :9333   # HTTP command API
//	domref -url https://example.com -mcp           # MCP over stdio
//	domref -url https://example.com -exec findByRole -params '{"role":"link"}'
//	domref -config domref.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domref"
	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/internal/config"
	"github.com/hazyhaar/domref/internal/connectivity"
	"github.com/hazyhaar/domref/internal/journal"
)

const version = "0.1.0"

type flags struct {
	configPath string
	url        string
	htmlFile   string
	level      string
	listen     string
	mcp        bool
	journal    string

	snapshot    bool
	interactive bool
	compact     bool
	depth       int
	scope       string

	exec   string
	params string
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "path to domref.yaml")
	flag.StringVar(&f.url, "url", "", "page URL")
	flag.StringVar(&f.htmlFile, "html", "", "local HTML file instead of a URL")
	flag.StringVar(&f.level, "level", "", "stealth level: 0 (http), 1 (headless), 2 (headful), auto")
	flag.StringVar(&f.listen, "serve", "", "serve the HTTP command API on this address")
	flag.BoolVar(&f.mcp, "mcp", false, "serve MCP over stdio")
	flag.StringVar(&f.journal, "journal", "", "SQLite command journal path")
	flag.BoolVar(&f.snapshot, "snapshot", false, "print a snapshot and exit")
	flag.BoolVar(&f.interactive, "i", false, "snapshot: interactive nodes only")
	flag.BoolVar(&f.compact, "c", false, "snapshot: drop unnamed structural nodes")
	flag.IntVar(&f.depth, "d", -1, "snapshot: maximum depth (-1 for none)")
	flag.StringVar(&f.scope, "s", "", "snapshot: CSS or XPath scope")
	flag.StringVar(&f.exec, "exec", "", "run one operation and print its response")
	flag.StringVar(&f.params, "params", "{}", "JSON params for -exec")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, f); err != nil {
		logger.Error("domref: fatal", "error", err)
		os.Exit(1)
	}
}

func loadConfig(f flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(f.configPath); err != nil {
			return nil, err
		}
	}
	if f.url != "" {
		cfg.Page.URL, cfg.Page.HTMLFile = f.url, ""
	}
	if f.htmlFile != "" {
		cfg.Page.HTMLFile, cfg.Page.URL = f.htmlFile, ""
	}
	if f.level != "" {
		cfg.Page.StealthLevel = f.level
	}
	if f.listen != "" {
		cfg.Server.Listen = f.listen
	}
	if f.mcp {
		cfg.Server.MCPStdio = true
	}
	if f.journal != "" {
		cfg.Journal.Path = f.journal
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Page.URL == "" && cfg.Page.HTMLFile == "" {
		return nil, errors.New("no page: set -url, -html or page.url in the config")
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "usage: domref -url <url> | -html <file> | -config <file> [-snapshot|-exec op|-serve addr|-mcp]")
		return err
	}

	page, closePage, err := openPage(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer closePage()

	opts := []domref.Option{
		domref.WithLogger(logger),
		domref.WithRegistryLimit(cfg.Session.RegistryLimit),
		domref.WithWaitInterval(cfg.Session.WaitInterval),
		domref.WithWaitTimeout(cfg.Session.WaitTimeout),
	}
	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, journal.WithLogger(logger))
		if err != nil {
			return err
		}
		defer j.Close()
		go j.RunRetention(ctx, cfg.RetentionWindow(), time.Hour)
		opts = append(opts, domref.WithJournal(j))
	}
	session := domref.NewSession(page, opts...)
	logger.Info("domref: session ready", "session_id", session.ID(), "url", page.Document().URL)

	router := connectivity.New(connectivity.WithLogger(logger))
	router.Use(
		connectivity.Recovery(logger),
		connectivity.Logging(logger, "domref"),
		connectivity.Timeout(cfg.Server.CallTimeout),
	)
	session.RegisterConnectivity(router)

	switch {
	case f.snapshot:
		return printSnapshot(ctx, session, f)
	case f.exec != "":
		out, err := router.Call(ctx, f.exec, []byte(f.params))
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	case cfg.Server.MCPStdio:
		srv := mcp.NewServer(&mcp.Implementation{Name: "domref", Version: version}, nil)
		session.RegisterMCP(srv, router)
		logger.Info("domref: serving MCP on stdio")
		return srv.Run(ctx, &mcp.StdioTransport{})
	case cfg.Server.Listen != "":
		return serve(ctx, logger, cfg.Server.Listen, session.Handler(router))
	}
	return printSnapshot(ctx, session, f)
}

func printSnapshot(ctx context.Context, s *domref.Session, f flags) error {
	opts := axtree.Options{Interactive: f.interactive, Compact: f.compact, Scope: f.scope}
	if f.depth >= 0 {
		d := f.depth
		opts.Depth = &d
	}
	res, err := s.Snapshot(ctx, opts)
	if err != nil {
		return err
	}
	if res.Snapshot == "" {
		fmt.Fprintln(os.Stderr, "(empty snapshot)")
		return nil
	}
	fmt.Println(res.Snapshot)
	return nil
}

func serve(ctx context.Context, logger *slog.Logger, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("domref: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("domref: stopped")
	return nil
}
