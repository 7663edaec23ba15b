package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

// FileEnv names the variable pointing at an optional TOML config file.
const FileEnv = "SPENDY_CONFIG"

type Config struct {
	// HTTP Server
	Port               string   `toml:"port"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
	TrustedProxies     []string `toml:"trusted_proxies"`

	// Database
	SQLiteDBPath string        `toml:"sqlite_db_path"`
	DBTimeout    time.Duration `toml:"db_timeout"`

	// AMQP. An empty URL writes activity directly to the database.
	AMQPURL      string `toml:"amqp_url"`
	AMQPExchange string `toml:"amqp_exchange"`
	AMQPQueue    string `toml:"amqp_queue"`

	// Monthly statistics cache
	StatsCacheTTL  time.Duration `toml:"stats_cache_ttl"`
	StatsCacheSize int           `toml:"stats_cache_size"`

	Environment string `toml:"environment"`
	LogLevel    string `toml:"log_level"`
	LogFormat   string `toml:"log_format"`
	// Timezone is the IANA zone calendar days are counted in.
	Timezone string `toml:"timezone"`
}

func Defaults() *Config {
	return &Config{
		Port:               "8081",
		RateLimitPerMinute: 120,
		SQLiteDBPath:       "./data/spendy.db",
		DBTimeout:          5 * time.Second,
		AMQPExchange:       "spendy",
		AMQPQueue:          "activity_log",
		StatsCacheTTL:      5 * time.Minute,
		StatsCacheSize:     1000,
		Environment:        "production",
		LogLevel:           "info",
		LogFormat:          "text",
		Timezone:           "UTC",
	}
}

// Load starts from the defaults, applies the TOML file named by SPENDY_CONFIG
// if any, then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}

	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.DBTimeout = getEnvDuration("DB_TIMEOUT", c.DBTimeout)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	c.StatsCacheTTL = getEnvDuration("STATS_CACHE_TTL", c.StatsCacheTTL)
	c.StatsCacheSize = getEnvInt("STATS_CACHE_SIZE", c.StatsCacheSize)

	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
}

// IsDevelopment reports whether error details may be exposed to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	if port, err := strconv.Atoi(c.Port); err != nil {
		add("invalid port '%s': must be a number", c.Port)
	} else if port < 1 || port > 65535 {
		add("invalid port %d: must be between 1 and 65535", port)
	}

	if c.SQLiteDBPath == "" {
		add("SQLite database path cannot be empty")
	}
	if c.DBTimeout <= 0 {
		add("invalid database timeout %v: must be positive", c.DBTimeout)
	}

	if c.AMQPURL != "" {
		if u, err := url.Parse(c.AMQPURL); err != nil {
			add("invalid AMQP URL '%s': %v", c.AMQPURL, err)
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			add("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme)
		}
		if c.AMQPExchange == "" {
			add("AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			add("AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.StatsCacheSize < 0 {
		add("invalid stats cache size %d: must not be negative", c.StatsCacheSize)
	}
	if c.StatsCacheTTL < 0 {
		add("invalid stats cache TTL %v: must not be negative", c.StatsCacheTTL)
	}
	if c.RateLimitPerMinute < 0 {
		add("invalid rate limit %d: must not be negative", c.RateLimitPerMinute)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		add("invalid log format '%s': must be 'text' or 'json'", c.LogFormat)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("invalid log level '%s'", c.LogLevel)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		add("invalid timezone '%s': %v", c.Timezone, err)
	}

	for _, p := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			add("invalid trusted proxy '%s': must be an IP or CIDR", p)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// ValidationErrors unpacks the individual problems from a Validate error.
func ValidationErrors(err error) []error {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.Errors
	}
	if err != nil {
		return []error{err}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
