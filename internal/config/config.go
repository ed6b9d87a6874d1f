// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environments in which error details are returned to API callers.
var detailedErrorEnvs = map[string]bool{"dev": true, "qa": true}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	APIKey          string        `yaml:"apiKey"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return ":" + strconv.Itoa(s.Port)
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// RedisConfig holds Redis connection settings shared by the cache and the
// rate limiter.
type RedisConfig struct {
	Host       string `yaml:"host"`
	ReaderHost string `yaml:"readerHost"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
}

// Addr returns the writer address.
func (r RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// DatabaseConfig holds PostgreSQL settings. URL wins over the discrete
// fields when set.
type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslMode"`

	MaxOpenConns   int           `yaml:"maxOpenConns"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
}

// DSN returns the connection URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	if d.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RateLimitConfig holds request rate limiting settings.
type RateLimitConfig struct {
	Enabled bool          `yaml:"enabled"`
	Max     int           `yaml:"max"`
	Window  time.Duration `yaml:"window"`
}

// WebhookConfig holds user event webhook settings. An empty URL disables
// delivery.
type WebhookConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retryCount"`
}

// Config is the central configuration struct.
type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Webhook   WebhookConfig   `yaml:"webhook"`
}

// DefaultConfig returns a Config with sensible defaults. The environment
// defaults to production so error details stay hidden unless APP_ENV opts in.
func DefaultConfig() *Config {
	return &Config{
		Env: "production",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     5 * time.Minute,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           "postgres",
			Name:           "users",
			SSLMode:        "disable",
			MaxOpenConns:   20,
			IdleTimeout:    30 * time.Second,
			ConnectTimeout: 2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Max:     3000,
			Window:  time.Minute,
		},
		Webhook: WebhookConfig{
			Timeout:    10 * time.Second,
			RetryCount: 3,
		},
	}
}

// DetailedErrors reports whether error responses may include internals. Only
// the exact environment names "dev" and "qa" enable them.
func (c *Config) DetailedErrors() bool {
	return detailedErrorEnvs[c.Env]
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is not empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) error {
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.Server.APIKey, "API_KEY")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setString(&cfg.Redis.ReaderHost, "REDIS_READER_HOST")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Database.Host, "DB_HOST")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")
	setString(&cfg.Webhook.URL, "USER_EVENTS_WEBHOOK_URL")

	return errors.Join(
		setInt(&cfg.Server.Port, "PORT"),
		setInt(&cfg.Redis.Port, "REDIS_PORT"),
		setInt(&cfg.Redis.DB, "REDIS_DB"),
		setInt(&cfg.Database.Port, "DB_PORT"),
		setInt(&cfg.RateLimit.Max, "RATE_LIMIT_MAX"),
		setBool(&cfg.Log.Pretty, "LOG_PRETTY"),
		setBool(&cfg.Cache.Enabled, "CACHE_ENABLED"),
		setBool(&cfg.RateLimit.Enabled, "RATE_LIMIT_ENABLED"),
		setDuration(&cfg.Cache.TTL, "CACHE_TTL"),
		setDuration(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW"),
	)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 1-65535 (got %d)", c.Server.Port))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis.port must be 1-65535 (got %d)", c.Redis.Port))
	}
	if (c.Cache.Enabled || c.RateLimit.Enabled) && c.Redis.Host == "" {
		errs = append(errs, errors.New("redis.host is required when cache or rate limiting is enabled"))
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive (got %s)", c.Cache.TTL))
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		errs = append(errs, errors.New("database.url or database.host and database.name are required"))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, fmt.Errorf("database.maxOpenConns must be positive (got %d)", c.Database.MaxOpenConns))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Max <= 0 {
			errs = append(errs, fmt.Errorf("rateLimit.max must be positive (got %d)", c.RateLimit.Max))
		}
		if c.RateLimit.Window < time.Millisecond {
			errs = append(errs, fmt.Errorf("rateLimit.window must be at least 1ms (got %s)", c.RateLimit.Window))
		}
	}
	if c.Webhook.URL != "" {
		u, err := url.Parse(c.Webhook.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("webhook.url %q is not an absolute URL", c.Webhook.URL))
		}
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", key, v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	*dst = b
	return nil
}

// setDuration accepts Go durations ("90s") or plain milliseconds ("90000").
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not a duration", key, v)
	}
	*dst = d
	return nil
}
