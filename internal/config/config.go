package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/matheus3301/chatd/internal/paths"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents chatd.toml.
type Config struct {
	Env            string   `toml:"env"`
	Listen         string   `toml:"listen"`
	DataDir        string   `toml:"data_dir"`
	PublicURL      string   `toml:"public_url"`
	AllowedOrigins []string `toml:"allowed_origins"`

	Store     StoreConfig     `toml:"store"`
	Auth      AuthConfig      `toml:"auth"`
	Realtime  RealtimeConfig  `toml:"realtime"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// StoreConfig selects the message store engine.
type StoreConfig struct {
	Driver      string `toml:"driver"`
	DatabaseURL string `toml:"database_url"`
}

// AuthConfig configures bearer token signing.
type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// RealtimeConfig bounds the live connection lifecycle.
type RealtimeConfig struct {
	HandshakeTimeout Duration `toml:"handshake_timeout"`
	PongWait         Duration `toml:"pong_wait"`
	PingPeriod       Duration `toml:"ping_period"` // zero: 9/10 of pong_wait
	WriteWait        Duration `toml:"write_wait"`
	SendBuffer       int      `toml:"send_buffer"`
}

// RateLimitConfig enables the redis limiter when RedisURL is set.
type RateLimitConfig struct {
	RedisURL      string `toml:"redis_url"`
	AuthPerMinute int    `toml:"auth_per_minute"`
	SendPerMinute int    `toml:"send_per_minute"`
}

// Duration is a time.Duration written as "10s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file or env overrides exist.
func Default() *Config {
	return &Config{
		Env:     "development",
		Listen:  ":5000",
		DataDir: paths.DefaultDataDir(),
		AllowedOrigins: []string{
			"http://localhost:5173",
		},
		Store: StoreConfig{Driver: DriverSQLite},
		Auth: AuthConfig{
			TokenTTL: Duration{7 * 24 * time.Hour},
		},
		Realtime: RealtimeConfig{
			HandshakeTimeout: Duration{10 * time.Second},
			PongWait:         Duration{60 * time.Second},
			WriteWait:        Duration{10 * time.Second},
			SendBuffer:       64,
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: 20,
			SendPerMinute: 120,
		},
	}
}

// Load reads config from the given path on top of the defaults.
// Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the TOML file
// (if present), then .env, then environment variables.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	setString(&c.Env, "CHATD_ENV")
	setString(&c.Listen, "CHATD_LISTEN")
	setString(&c.DataDir, "CHATD_DATA_DIR")
	setString(&c.PublicURL, "CHATD_PUBLIC_URL")
	setString(&c.Store.DatabaseURL, "DATABASE_URL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.RateLimit.RedisURL, "REDIS_URL")

	if v := os.Getenv("CHATD_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
	if c.Store.DatabaseURL != "" && os.Getenv("DATABASE_URL") != "" {
		c.Store.Driver = DriverPostgres
	}
	if v := os.Getenv("CHATD_SEND_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHATD_SEND_PER_MINUTE: %w", err)
		}
		c.RateLimit.SendPerMinute = n
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("store.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.Realtime.HandshakeTimeout.Duration <= 0 || c.Realtime.PongWait.Duration <= 0 {
		return errors.New("realtime timeouts must be positive")
	}
	if c.Realtime.PingPeriod.Duration < 0 || c.Realtime.PingPeriod.Duration >= c.Realtime.PongWait.Duration {
		return errors.New("ping_period must be shorter than pong_wait")
	}
	return nil
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
