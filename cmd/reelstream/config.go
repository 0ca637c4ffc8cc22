package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"reelstream/internal/assets"
)

// Config is the CLI configuration file, merged as defaults < file < flags.
type Config struct {
	APIBase       string  `toml:"api_base"`
	CatalogBase   string  `toml:"catalog_base"`
	PlayerPath    string  `toml:"player_path"`
	Quality       string  `toml:"quality"`
	BandwidthKbps float64 `toml:"bandwidth_kbps"`
	SwitchTimeout string  `toml:"switch_timeout"`
	Probe         bool    `toml:"probe"`
	Token         string  `toml:"token"`
	LogLevel      string  `toml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		APIBase:       "http://localhost:8080",
		CatalogBase:   "http://localhost:8080",
		PlayerPath:    "mpv",
		SwitchTimeout: "12s",
		Probe:         true,
		LogLevel:      "warn",
	}
}

// ConfigPath returns $XDG_CONFIG_HOME/reelstream/config.toml.
func ConfigPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reelstream", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "reelstream", "config.toml"), nil
}

// LoadConfig reads path over the defaults. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{"api_base": c.APIBase, "catalog_base": c.CatalogBase} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
		}
	}
	if c.Quality != "" {
		if _, ok := assets.ParseQuality(c.Quality); !ok {
			return fmt.Errorf("unsupported quality %q (valid: 480, 720, 1080)", c.Quality)
		}
	}
	if c.BandwidthKbps < 0 {
		return fmt.Errorf("bandwidth_kbps cannot be negative")
	}
	if _, err := c.switchTimeout(); err != nil {
		return err
	}
	if strings.TrimSpace(c.PlayerPath) == "" {
		return fmt.Errorf("player_path cannot be empty")
	}
	return nil
}

func (c *Config) preferred() assets.Quality {
	q, _ := assets.ParseQuality(c.Quality)
	return q
}

func (c *Config) switchTimeout() (time.Duration, error) {
	if c.SwitchTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.SwitchTimeout)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid switch_timeout %q", c.SwitchTimeout)
	}
	return d, nil
}
