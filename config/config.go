// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy      bool          `yaml:"trust_proxy"`
}

type StoreConfig struct {
	Type          string        `yaml:"type"`
	Shards        int           `yaml:"shards"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Redis         RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SecretsConfig struct {
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	MaxTTL          time.Duration `yaml:"max_ttl"`
	IDFormat        string        `yaml:"id_format"`
	MaxContentBytes int64         `yaml:"max_content_bytes"`
}

type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min"`
	RevealPerMin   int  `yaml:"reveal_per_min"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			BaseURL:         "http://localhost:3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type:          "memory",
			Shards:        32,
			SweepInterval: 30 * time.Second,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Secrets: SecretsConfig{
			DefaultTTL:      24 * time.Hour,
			MaxTTL:          7 * 24 * time.Hour,
			IDFormat:        "token",
			MaxContentBytes: 1 << 20,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 100,
			RevealPerMin:   20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	envDuration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	if v := os.Getenv("TRUST_PROXY"); v != "" {
		c.Server.TrustProxy = v == "true" || v == "1"
	}

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	envInt("STORE_SHARDS", &c.Store.Shards)
	envDuration("SWEEP_INTERVAL", &c.Store.SweepInterval)
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	envInt("REDIS_DB", &c.Store.Redis.DB)

	envDuration("DEFAULT_TTL", &c.Secrets.DefaultTTL)
	envDuration("MAX_TTL", &c.Secrets.MaxTTL)
	if v := os.Getenv("ID_FORMAT"); v != "" {
		c.Secrets.IDFormat = v
	}
	if v := os.Getenv("MAX_CONTENT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Secrets.MaxContentBytes = n
		}
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = v == "true" || v == "1"
	}
	envInt("RATE_LIMIT_REQUESTS", &c.RateLimit.RequestsPerMin)
	envInt("RATE_LIMIT_REVEAL", &c.RateLimit.RevealPerMin)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Malformed values are ignored and the previous setting kept.
func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	if c.Store.Type != "memory" && c.Store.Type != "redis" {
		return fmt.Errorf("invalid store type: %s (must be 'memory' or 'redis')", c.Store.Type)
	}

	if c.Store.Type == "redis" && c.Store.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required when store type is 'redis'")
	}

	if c.Store.Shards < 1 {
		return fmt.Errorf("shards must be at least 1")
	}

	if c.Store.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must not be negative")
	}

	if c.Secrets.DefaultTTL <= 0 {
		return fmt.Errorf("default_ttl must be positive")
	}

	if c.Secrets.MaxTTL < c.Secrets.DefaultTTL {
		return fmt.Errorf("max_ttl must be >= default_ttl")
	}

	if c.Secrets.IDFormat != "token" && c.Secrets.IDFormat != "uuid" {
		return fmt.Errorf("invalid id_format: %s (must be 'token' or 'uuid')", c.Secrets.IDFormat)
	}

	if c.Secrets.MaxContentBytes < 1 {
		return fmt.Errorf("max_content_bytes must be positive")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin < 1 || c.RateLimit.RevealPerMin < 1) {
		return fmt.Errorf("rate limits must be at least 1 per minute when enabled")
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
