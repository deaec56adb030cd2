package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`page: {url: "https://example.test/"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Browser.Stealth != "headless" {
		t.Errorf("stealth: got %q", cfg.Browser.Stealth)
	}
	if cfg.Page.StealthLevel != "auto" {
		t.Errorf("stealth_level: got %q", cfg.Page.StealthLevel)
	}
	if cfg.Session.RegistryLimit != 4096 {
		t.Errorf("registry_limit: got %d", cfg.Session.RegistryLimit)
	}
	if cfg.Browser.XvfbScreen != "1920x1080x24" || cfg.Browser.XvfbReadyTimeout != 5*time.Second {
		t.Errorf("xvfb: got %q %v", cfg.Browser.XvfbScreen, cfg.Browser.XvfbReadyTimeout)
	}
	if cfg.Session.WaitInterval != 100*time.Millisecond {
		t.Errorf("wait_interval: got %v", cfg.Session.WaitInterval)
	}
	if cfg.RetentionWindow() != 30*24*time.Hour {
		t.Errorf("retention: got %v", cfg.RetentionWindow())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domref.yaml")
	data := `
browser:
  stealth: headful
  resource_blocking: [images, fonts]
page:
  url: https://example.test/login
  stealth_level: "2"
server:
  listen: ":9333"
  call_timeout: 10s
journal:
  path: /tmp/domref.db
  retention_days: 7
session:
  registry_limit: 128
  wait_interval: 50ms
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Browser.Stealth != "headful" || len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("browser: got %+v", cfg.Browser)
	}
	if cfg.Page.StealthLevel != "2" || cfg.Server.Listen != ":9333" {
		t.Errorf("page/server: got %+v %+v", cfg.Page, cfg.Server)
	}
	if cfg.Server.CallTimeout != 10*time.Second {
		t.Errorf("call_timeout: got %v", cfg.Server.CallTimeout)
	}
	if cfg.Session.RegistryLimit != 128 || cfg.Session.WaitInterval != 50*time.Millisecond {
		t.Errorf("session: got %+v", cfg.Session)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"stealth", `browser: {stealth: invisible}`, "browser.stealth"},
		{"level", `page: {stealth_level: "9"}`, "stealth_level"},
		{"both sources", `page: {url: "https://x.test", html_file: "a.html"}`, "mutually exclusive"},
		{"syntax", `page: [`, "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
