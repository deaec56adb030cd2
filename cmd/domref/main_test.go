package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/domref"
	"github.com/hazyhaar/domref/axtree"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "domref.yaml")
	yaml := "page:\n  url: https://from-config.test/\n  stealth_level: \"1\"\nserver:\n  listen: \":9000\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(flags{configPath: path, htmlFile: "page.html", level: "0", listen: ":9333"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Page.HTMLFile != "page.html" || cfg.Page.URL != "" {
		t.Fatalf("page: got %+v", cfg.Page)
	}
	if cfg.Page.StealthLevel != "0" || cfg.Server.Listen != ":9333" {
		t.Fatalf("overrides: level %q listen %q", cfg.Page.StealthLevel, cfg.Server.Listen)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := loadConfig(flags{}); err == nil {
		t.Fatal("no page should be an error")
	}
	if _, err := loadConfig(flags{url: "https://x.test/", level: "9"}); err == nil {
		t.Fatal("bad level should be an error")
	}
}

func TestOpenPage_HTMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte(`<body><button>Launch</button></body>`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(flags{htmlFile: path})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	page, closePage, err := openPage(context.Background(), discardLogger(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closePage()

	s := domref.NewSession(page)
	res, err := s.Snapshot(context.Background(), axtree.Options{Interactive: true})
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if res.Snapshot != `- button "Launch" [ref=@e1]` {
		t.Fatalf("snapshot: got %q", res.Snapshot)
	}
	if !strings.HasPrefix(res.URL, "file://") {
		t.Fatalf("url: got %q", res.URL)
	}
}

func TestOpenPage_HTTPLevel0(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/next" {
			io.WriteString(w, `<body><h1>Next page</h1></body>`)
			return
		}
		io.WriteString(w, `<body><a href="/next">Go on</a></body>`)
	}))
	t.Cleanup(srv.Close)

	cfg, err := loadConfig(flags{url: srv.URL + "/", level: "0"})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	page, closePage, err := openPage(context.Background(), discardLogger(), cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer closePage()

	s := domref.NewSession(page)
	ctx := context.Background()
	m, err := s.FindByRole(ctx, domref.RoleQuery{Role: "link"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if err := s.Click(ctx, m.Ref); err != nil {
		t.Fatalf("click: %v", err)
	}
	if text, err := s.GetText(ctx, "h1"); err != nil || text != "Next page" {
		t.Fatalf("after click: %q, %v", text, err)
	}
}
