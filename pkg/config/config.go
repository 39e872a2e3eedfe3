package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Application settings
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Server  ServerConfig  `mapstructure:"server"`
	Actor   ActorConfig   `mapstructure:"actor"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Cache   CacheConfig   `mapstructure:"cache"`
	History HistoryConfig `mapstructure:"history"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// Server settings
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// Actor platform settings
type ActorConfig struct {
	BaseURL            string        `mapstructure:"base_url"`
	Token              string        `mapstructure:"token"`
	MetaActorID        string        `mapstructure:"meta_actor_id"`
	GoogleActorID      string        `mapstructure:"google_actor_id"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
}

type RetryConfig struct {
	MaxAttempts         int           `mapstructure:"max_attempts"`
	BaseDelay           time.Duration `mapstructure:"base_delay"`
	MaxDelay            time.Duration `mapstructure:"max_delay"`
	RateLimitMultiplier float64       `mapstructure:"rate_limit_multiplier"`
}

type CacheConfig struct {
	MetaPath   string `mapstructure:"meta_path"`
	GooglePath string `mapstructure:"google_path"`
}

type HistoryConfig struct {
	Backend     string        `mapstructure:"backend"`
	DatabaseURL string        `mapstructure:"database_url"`
	TTL         time.Duration `mapstructure:"ttl"`
}

type FetchConfig struct {
	DefaultMaxAds    int `mapstructure:"default_max_ads"`
	OverFetchFactor  int `mapstructure:"over_fetch_factor"`
	MaxUpstreamItems int `mapstructure:"max_upstream_items"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.request_timeout", "11m")

	v.SetDefault("actor.base_url", "https://api.apify.com")
	v.SetDefault("actor.token", "")
	v.SetDefault("actor.meta_actor_id", "curious_coder~facebook-ads-library-scraper")
	v.SetDefault("actor.google_actor_id", "silva95gustavo~google-ads-scraper")
	v.SetDefault("actor.run_timeout", "5m")
	v.SetDefault("actor.http_timeout", "90s")
	v.SetDefault("actor.rate_limit_per_second", 10)
	v.SetDefault("actor.poll_interval", "5s")

	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("retry.rate_limit_multiplier", 2.0)

	v.SetDefault("cache.meta_path", "data/meta_brand_cache.json")
	v.SetDefault("cache.google_path", "data/google_brand_cache.json")

	v.SetDefault("history.backend", "memory")
	v.SetDefault("history.database_url", "")
	v.SetDefault("history.ttl", "24h")

	v.SetDefault("fetch.default_max_ads", 20)
	v.SetDefault("fetch.over_fetch_factor", 3)
	v.SetDefault("fetch.max_upstream_items", 200)
}

// Load reads configuration from the environment (and a .env file when present).
// Nested keys map to upper-case env names, e.g. retry.max_attempts -> RETRY_MAX_ATTEMPTS.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Actor.Token == "" {
		return fmt.Errorf("ACTOR_TOKEN is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry delays invalid: base %s, max %s", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	if c.Retry.RateLimitMultiplier < 1 {
		return fmt.Errorf("retry.rate_limit_multiplier must be >= 1, got %v", c.Retry.RateLimitMultiplier)
	}
	switch c.History.Backend {
	case "memory":
	case "postgres":
		if c.History.DatabaseURL == "" {
			return fmt.Errorf("HISTORY_DATABASE_URL is required for the postgres history backend")
		}
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.Fetch.DefaultMaxAds < 1 || c.Fetch.DefaultMaxAds > 100 {
		return fmt.Errorf("fetch.default_max_ads must be between 1 and 100, got %d", c.Fetch.DefaultMaxAds)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}
