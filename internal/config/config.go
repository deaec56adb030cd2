// Package config loads domref configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level domref configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Page    PageConfig    `yaml:"page"`
	Server  ServerConfig  `yaml:"server"`
	Journal JournalConfig `yaml:"journal"`
	Session SessionConfig `yaml:"session"`
}

// BrowserConfig controls the Chrome lifecycle for live pages.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	XvfbScreen       string        `yaml:"xvfb_screen"`
	XvfbReadyTimeout time.Duration `yaml:"xvfb_ready_timeout"`
}

// PageConfig selects the document a session drives.
type PageConfig struct {
	URL          string `yaml:"url"`
	HTMLFile     string `yaml:"html_file"`
	StealthLevel string `yaml:"stealth_level"` // 0 | 1 | 2 | auto
	UserAgent    string `yaml:"user_agent"`
}

// ServerConfig controls the command surfaces.
type ServerConfig struct {
	Listen      string        `yaml:"listen"`
	MCPStdio    bool          `yaml:"mcp_stdio"`
	CallTimeout time.Duration `yaml:"call_timeout"`
}

// JournalConfig controls the command journal. An empty path disables it.
type JournalConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// SessionConfig tunes the ref registry and polling.
type SessionConfig struct {
	RegistryLimit int           `yaml:"registry_limit"`
	WaitInterval  time.Duration `yaml:"wait_interval"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	c.ApplyDefaults()
	return &c
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every zero field.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.XvfbScreen == "" {
		c.Browser.XvfbScreen = "1920x1080x24"
	}
	if c.Browser.XvfbReadyTimeout <= 0 {
		c.Browser.XvfbReadyTimeout = 5 * time.Second
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Page.StealthLevel == "" {
		c.Page.StealthLevel = "auto"
	}
	if c.Server.CallTimeout <= 0 {
		c.Server.CallTimeout = 30 * time.Second
	}
	if c.Journal.RetentionDays <= 0 {
		c.Journal.RetentionDays = 30
	}
	if c.Session.RegistryLimit <= 0 {
		c.Session.RegistryLimit = 4096
	}
	if c.Session.WaitInterval <= 0 {
		c.Session.WaitInterval = 100 * time.Millisecond
	}
	if c.Session.WaitTimeout <= 0 {
		c.Session.WaitTimeout = 5 * time.Second
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth must be headless or headful, got %q", c.Browser.Stealth)
	}
	switch c.Page.StealthLevel {
	case "0", "1", "2", "auto":
	default:
		return fmt.Errorf("config: page.stealth_level must be 0, 1, 2 or auto, got %q", c.Page.StealthLevel)
	}
	if c.Page.URL != "" && c.Page.HTMLFile != "" {
		return fmt.Errorf("config: page.url and page.html_file are mutually exclusive")
	}
	return nil
}

// RetentionWindow is the journal retention as a duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Journal.RetentionDays) * 24 * time.Hour
}
