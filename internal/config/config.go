// SPDX-License-Identifier: AGPL-3.0-only
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fluffyriot/crossfeed/internal/models"
)

// AppVersion is set at build time with -ldflags "-X".
var AppVersion = "dev"

type AccountConfig struct {
	models.Account `yaml:",inline"`
	TokenEnv       string `yaml:"token_env,omitempty"`
	Selected       *bool  `yaml:"selected,omitempty"`
}

// IsSelected reports whether the account takes part in refreshes. Accounts are
// selected unless the file says otherwise.
func (a AccountConfig) IsSelected() bool {
	return a.Selected == nil || *a.Selected
}

type CacheConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
	Limit  int    `yaml:"limit"`
}

type HydrationConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	Listen   string        `yaml:"listen"`
	APIToken string        `yaml:"api_token"`
}

type WorkerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

type AppConfig struct {
	Accounts  []AccountConfig `yaml:"accounts"`
	Cache     CacheConfig     `yaml:"cache"`
	Hydration HydrationConfig `yaml:"hydration"`
	HTTP      HTTPConfig      `yaml:"http"`
	Worker    WorkerConfig    `yaml:"worker"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Cache: CacheConfig{
			Driver: "sqlite",
			Limit:  100,
		},
		Hydration: HydrationConfig{TTL: 5 * time.Minute},
		HTTP: HTTPConfig{
			Timeout: 60 * time.Second,
			Listen:  ":8080",
		},
		Worker: WorkerConfig{
			Interval:    5 * time.Minute,
			Concurrency: 4,
		},
	}
}

// GetConfigPath returns $XDG_CONFIG_HOME/crossfeed/config.yaml.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "crossfeed", "config.yaml"), nil
}

// DataDir returns $XDG_DATA_HOME/crossfeed.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "crossfeed"), nil
}

// Load reads the config from the default path. A missing file yields defaults.
func Load() (*AppConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

func LoadFrom(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() error {
	if v := os.Getenv("CROSSFEED_LISTEN"); v != "" {
		c.HTTP.Listen = v
	}
	if v := os.Getenv("CROSSFEED_API_TOKEN"); v != "" {
		c.HTTP.APIToken = v
	}
	if v := os.Getenv("CROSSFEED_CACHE_DSN"); v != "" {
		c.Cache.Driver = "postgres"
		c.Cache.DSN = v
	}

	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.TokenEnv == "" {
			continue
		}
		token := os.Getenv(acc.TokenEnv)
		if token == "" {
			return fmt.Errorf("account %s: environment variable %s is empty", acc.ID, acc.TokenEnv)
		}
		acc.Token = token
	}
	return nil
}

func (c *AppConfig) fillDefaults() error {
	def := DefaultConfig()

	if c.Cache.Driver == "" {
		c.Cache.Driver = def.Cache.Driver
	}
	if c.Cache.Limit <= 0 {
		c.Cache.Limit = def.Cache.Limit
	}
	if c.Cache.Driver == "sqlite" && c.Cache.Path == "" {
		dir, err := DataDir()
		if err != nil {
			return err
		}
		c.Cache.Path = filepath.Join(dir, "timeline.db")
	}
	if strings.HasPrefix(c.Cache.Path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Cache.Path = filepath.Join(home, c.Cache.Path[2:])
	}
	if c.Hydration.TTL <= 0 {
		c.Hydration.TTL = def.Hydration.TTL
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = def.HTTP.Timeout
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = def.HTTP.Listen
	}
	if c.Worker.Interval <= 0 {
		c.Worker.Interval = def.Worker.Interval
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = def.Worker.Concurrency
	}
	return nil
}

func (c *AppConfig) Validate() error {
	seen := make(map[string]bool, len(c.Accounts))
	for i, acc := range c.Accounts {
		if acc.ID == "" {
			return fmt.Errorf("account %d: missing id", i)
		}
		if seen[acc.ID] {
			return fmt.Errorf("account %s: duplicate id", acc.ID)
		}
		seen[acc.ID] = true

		if !acc.Platform.Valid() {
			return fmt.Errorf("account %s: unknown platform %q", acc.ID, acc.Platform)
		}
		if acc.Platform == models.PlatformMastodon && acc.Server == "" {
			return fmt.Errorf("account %s: mastodon accounts need a server", acc.ID)
		}
	}

	switch c.Cache.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("cache: unknown driver %q", c.Cache.Driver)
	}
	if c.Cache.Driver == "postgres" && c.Cache.DSN == "" {
		return fmt.Errorf("cache: postgres driver needs a dsn")
	}
	return nil
}

// SelectedAccounts returns the accounts that take part in refreshes.
func (c *AppConfig) SelectedAccounts() []models.Account {
	var out []models.Account
	for _, acc := range c.Accounts {
		if acc.IsSelected() {
			out = append(out, acc.Account)
		}
	}
	return out
}

// UnknownAccounts returns the ids that do not name a selected account.
func (c *AppConfig) UnknownAccounts(ids []string) []string {
	known := make(map[string]bool, len(c.Accounts))
	for _, acc := range c.Accounts {
		if acc.IsSelected() {
			known[acc.ID] = true
		}
	}

	var unknown []string
	for _, id := range ids {
		if !known[id] {
			unknown = append(unknown, id)
		}
	}
	return unknown
}
