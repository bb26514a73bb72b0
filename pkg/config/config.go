// Package config loads service settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/linkhub/pkg/auth"
	"github.com/codeGROOVE-dev/linkhub/pkg/fetcher"
)

// Store backends.
const (
	BackendStatic    = "static"
	BackendSQLite    = "sqlite"
	BackendPostgREST = "postgrest"
)

// Config is the full service configuration.
type Config struct {
	Listen  string  `yaml:"listen"`
	Store   Store   `yaml:"store"`
	Fetch   Fetch   `yaml:"fetch"`
	Enrich  Enrich  `yaml:"enrich"`
	Discord Discord `yaml:"discord"`
	Bio     Bio     `yaml:"bio"`
}

// Store selects where page records come from.
type Store struct {
	Backend     string `yaml:"backend"`
	DataFile    string `yaml:"data_file"`
	SQLitePath  string `yaml:"sqlite_path"`
	SupabaseURL string `yaml:"supabase_url"`
	SupabaseKey string `yaml:"supabase_anon_key"`
}

// Fetch configures the page fetcher.
type Fetch struct {
	Mode          string        `yaml:"mode"`
	ProxyBase     string        `yaml:"proxy_base"`
	UpstreamProxy string        `yaml:"upstream_proxy"`
	CacheDir      string        `yaml:"cache_dir"`
	Timeout       time.Duration `yaml:"timeout"`
	MinDelay      time.Duration `yaml:"min_delay"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	Attempts      uint          `yaml:"attempts"`
	Cache         bool          `yaml:"cache"`
	BrowserCookie bool          `yaml:"browser_cookies"`

	// Cookies holds explicit direct-mode cookies keyed by platform, then cookie name.
	// They take precedence over environment and browser cookies.
	Cookies map[string]map[string]string `yaml:"cookies"`

	// DomainDelays overrides MinDelay for a target domain and its subdomains.
	DomainDelays map[string]time.Duration `yaml:"domain_delays"`
}

// Enrich configures the coordinator and adapter labels.
type Enrich struct {
	Labels   map[string]string `yaml:"labels"`
	Deadline time.Duration     `yaml:"deadline"`
	Disabled bool              `yaml:"disabled"`
}

// Discord identifies the community server.
type Discord struct {
	ServerID string `yaml:"server_id"`
	Invite   string `yaml:"invite"`
}

// Bio configures bio rotation and generation.
type Bio struct {
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	RotateEvery time.Duration `yaml:"rotate_every"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen: ":8080",
		Store:  Store{Backend: BackendStatic},
		Fetch: Fetch{
			Mode:         string(fetcher.ModeRaw),
			Timeout:      fetcher.DefaultTimeout,
			MinDelay:     fetcher.DefaultMinDelay,
			CacheTTL:     6 * time.Hour,
			Attempts:     1,
			DomainDelays: map[string]time.Duration{"instagram.com": 3 * time.Second},
		},
		Enrich: Enrich{Deadline: 15 * time.Second},
		Discord: Discord{
			ServerID: "1334855536700686388",
			Invite:   "https://discord.gg/W9MmqNgEBP",
		},
		Bio: Bio{RotateEvery: 5 * time.Second},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envVars maps each override to the variables checked, in order.
var envVars = []struct {
	set  func(*Config, string)
	keys []string
}{
	{func(c *Config, v string) { c.Listen = v }, []string{"LINKHUB_LISTEN"}},
	{func(c *Config, v string) { c.Fetch.Mode = v }, []string{"LINKHUB_FETCH_MODE"}},
	{func(c *Config, v string) { c.Fetch.UpstreamProxy = v }, []string{"LINKHUB_UPSTREAM_PROXY"}},
	{func(c *Config, v string) { c.Store.SupabaseURL = v }, []string{"SUPABASE_URL", "VITE_SUPABASE_URL"}},
	{func(c *Config, v string) { c.Store.SupabaseKey = v }, []string{"SUPABASE_ANON_KEY", "VITE_SUPABASE_ANON_KEY"}},
	{func(c *Config, v string) { c.Bio.APIKey = v }, []string{"GEMINI_API_KEY", "VITE_GEMINI_API_KEY"}},
	{func(c *Config, v string) { c.Discord.ServerID = v }, []string{"DISCORD_SERVER_ID"}},
}

// ApplyEnv overrides settings from the environment. A Supabase URL with no explicit
// backend selects the postgrest backend.
func (c *Config) ApplyEnv(getenv func(string) string) {
	for _, ev := range envVars {
		for _, k := range ev.keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				ev.set(c, v)
				break
			}
		}
	}
	if c.Store.SupabaseURL != "" && (c.Store.Backend == "" || c.Store.Backend == BackendStatic) && c.Store.DataFile == "" {
		c.Store.Backend = BackendPostgREST
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address required"))
	}
	if _, err := fetcher.ParseMode(c.Fetch.Mode); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Backend {
	case "", BackendStatic:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			errs = append(errs, errors.New("store.sqlite_path required for sqlite backend"))
		}
	case BackendPostgREST:
		if c.Store.SupabaseURL == "" || c.Store.SupabaseKey == "" {
			errs = append(errs, errors.New("supabase url and anon key required for postgrest backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Fetch.Timeout < 0 || c.Enrich.Deadline < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	for domain, d := range c.Fetch.DomainDelays {
		if domain == "" || d < 0 {
			errs = append(errs, fmt.Errorf("fetch.domain_delays: invalid entry %q: %v", domain, d))
		}
	}
	for platform := range c.Fetch.Cookies {
		if auth.Domain(platform) == "" {
			errs = append(errs, fmt.Errorf("fetch.cookies: unknown platform %q", platform))
		}
	}
	return errors.Join(errs...)
}

// FetchMode returns the parsed fetch mode.
func (c *Config) FetchMode() fetcher.Mode {
	m, err := fetcher.ParseMode(c.Fetch.Mode)
	if err != nil {
		return fetcher.ModeRaw
	}
	return m
}
