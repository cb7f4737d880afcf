// Package config loads quotagate configuration from a YAML file with
// environment overrides, applies defaults, and validates everything at load
// time so the limiter itself can trust its inputs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yourusername/quotagate/quota"
)

// Store backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the root configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
	Quota  QuotaConfig  `yaml:"quota"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// StoreConfig selects and configures the bucket store backend.
type StoreConfig struct {
	// Backend is "redis" (default) or "memory". The memory backend does not
	// share budgets across instances and is meant for local development.
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// QuotaConfig configures tiers, per-route overrides, and the failure policy.
type QuotaConfig struct {
	// FailOpen selects the result when the store is down: allow (true,
	// matching the original behavior) or deny (false, for stricter
	// deployments). Defaults to true.
	FailOpen *bool `yaml:"fail_open"`

	// Tiers replaces or extends the builtin tier table entry by entry.
	Tiers map[string]TierConfig `yaml:"tiers"`

	// Routes maps request paths to quota overrides.
	Routes map[string]RouteConfig `yaml:"routes"`
}

// TierConfig is one named tier in the file.
type TierConfig struct {
	Limit  int64  `yaml:"limit"`
	Window string `yaml:"window"`
	Burst  int64  `yaml:"burst"`
}

// RouteConfig is one per-route override in the file.
type RouteConfig struct {
	Level    string `yaml:"level"`
	Limit    int64  `yaml:"limit"`
	Window   string `yaml:"window"`
	Burst    int64  `yaml:"burst"`
	Disabled bool   `yaml:"disabled"`
}

// Load reads the optional YAML file at path, applies environment overrides
// and defaults, and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: read config file: %v", quota.ErrInvalidConfig, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config file: %v", quota.ErrInvalidConfig, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Server.Port, "PORT")
	setIfEnv(&c.Store.Backend, "STORE_BACKEND")
	setIfEnv(&c.Store.Redis.Addr, "REDIS_ADDR")
	setIfEnv(&c.Store.Redis.Password, "REDIS_PASSWORD")
	setIfEnv(&c.Log.Level, "LOG_LEVEL")
	setIfEnv(&c.Log.Format, "LOG_FORMAT")
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendRedis
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate checks the configuration. Tier and route parameters are rejected
// here rather than defended against inside the limiter.
func (c *Config) Validate() error {
	if c.Store.Backend != BackendRedis && c.Store.Backend != BackendMemory {
		return fmt.Errorf("%w: unknown store backend %q", quota.ErrInvalidConfig, c.Store.Backend)
	}

	for name, tc := range c.Quota.Tiers {
		if _, err := tc.toTier(); err != nil {
			return fmt.Errorf("%w: tier %q: %v", quota.ErrInvalidConfig, name, err)
		}
	}

	tiers, _ := c.Tiers()
	for path, rc := range c.Quota.Routes {
		if _, err := rc.toOverride(tiers); err != nil {
			return fmt.Errorf("%w: route %q: %v", quota.ErrInvalidConfig, path, err)
		}
	}
	return nil
}

// FailOpen returns the configured failure policy, defaulting to open.
func (c *Config) FailOpen() bool {
	if c.Quota.FailOpen == nil {
		return true
	}
	return *c.Quota.FailOpen
}

// Tiers returns the builtin tier table with configured tiers merged over it.
func (c *Config) Tiers() (quota.Tiers, error) {
	tiers := quota.BuiltinTiers()
	for name, tc := range c.Quota.Tiers {
		tier, err := tc.toTier()
		if err != nil {
			return nil, fmt.Errorf("%w: tier %q: %v", quota.ErrInvalidConfig, name, err)
		}
		tiers[name] = tier
	}
	return tiers, nil
}

// Routes returns the per-route override table.
func (c *Config) Routes() (map[string]quota.Override, error) {
	tiers, err := c.Tiers()
	if err != nil {
		return nil, err
	}
	routes := make(map[string]quota.Override, len(c.Quota.Routes))
	for path, rc := range c.Quota.Routes {
		o, err := rc.toOverride(tiers)
		if err != nil {
			return nil, fmt.Errorf("%w: route %q: %v", quota.ErrInvalidConfig, path, err)
		}
		routes[path] = o
	}
	return routes, nil
}

func (tc TierConfig) toTier() (quota.Tier, error) {
	if tc.Limit <= 0 {
		return quota.Tier{}, fmt.Errorf("limit must be positive")
	}
	window, err := parseWindow(tc.Window)
	if err != nil {
		return quota.Tier{}, err
	}
	burst := tc.Burst
	if burst == 0 {
		burst = tc.Limit
	}
	if burst < tc.Limit {
		return quota.Tier{}, fmt.Errorf("burst %d is below limit %d", burst, tc.Limit)
	}
	return quota.Tier{Limit: tc.Limit, Window: window, Burst: burst}, nil
}

func (rc RouteConfig) toOverride(tiers quota.Tiers) (quota.Override, error) {
	if rc.Level != "" {
		if _, ok := tiers[rc.Level]; !ok {
			return quota.Override{}, fmt.Errorf("unknown tier %q", rc.Level)
		}
	}
	if rc.Limit < 0 || rc.Burst < 0 {
		return quota.Override{}, fmt.Errorf("limit and burst must not be negative")
	}

	o := quota.Override{
		Level:    rc.Level,
		Limit:    rc.Limit,
		Burst:    rc.Burst,
		Disabled: rc.Disabled,
	}
	if rc.Window != "" {
		window, err := parseWindow(rc.Window)
		if err != nil {
			return quota.Override{}, err
		}
		o.Window = window
	}
	return o, nil
}

func parseWindow(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("window is required")
	}
	window, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("bad window %q: %v", s, err)
	}
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}
	return window, nil
}
