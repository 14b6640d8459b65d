// Package config resolves runtime settings for the task list binaries.
//
// Values are applied in priority order:
//  1. Defaults
//  2. TOML config file (when a path is given)
//  3. Environment variables
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"
)

// Backend names accepted by Storage.Backend.
const (
	BackendRemote = "remote"
	BackendLocal  = "local"
	BackendTable  = "table"
)

const (
	DefaultBackend    = BackendLocal
	DefaultLocalPath  = "todo.db"
	DefaultTable      = "Items"
	DefaultCacheTTL   = 5 * time.Minute
	DefaultDeduperTTL = 24 * time.Hour
	DefaultListen     = ":8080"
)

type Config struct {
	Debug   bool    `toml:"debug"`
	Seed    bool    `toml:"seed"`
	Listen  string  `toml:"listen"`
	Storage Storage `toml:"storage"`
	Redis   Redis   `toml:"redis"`
}

// Storage selects and configures the persistence backend.
type Storage struct {
	Backend          string        `toml:"backend"`
	RemoteURL        string        `toml:"remote_url"`
	LocalPath        string        `toml:"local_path"`
	ConnectionString string        `toml:"connection_string"`
	Table            string        `toml:"table"`
	CacheTTL         time.Duration `toml:"cache_ttl"`
}

type Redis struct {
	ConnectionString string        `toml:"connection_string"`
	DeduperTTL       time.Duration `toml:"deduper_ttl"`
}

func setDefaults(cfg *Config) {
	cfg.Seed = true
	cfg.Listen = DefaultListen
	cfg.Storage.Backend = DefaultBackend
	cfg.Storage.LocalPath = DefaultLocalPath
	cfg.Storage.Table = DefaultTable
	cfg.Storage.CacheTTL = DefaultCacheTTL
	cfg.Redis.DeduperTTL = DefaultDeduperTTL
}

// Load builds a Config from defaults, the TOML file at path (skipped when
// path is empty) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TODO_BACKEND"); v != "" {
		cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("TODO_REMOTE_URL"); v != "" {
		cfg.Storage.RemoteURL = v
	}
	if v := os.Getenv("TODO_LOCAL_PATH"); v != "" {
		cfg.Storage.LocalPath = v
	}
	if v := os.Getenv("STORAGE_CONNECTION_STRING"); v != "" {
		cfg.Storage.ConnectionString = v
	}
	if v := os.Getenv("ITEMS_TABLE"); v != "" {
		cfg.Storage.Table = v
	}
	if v := os.Getenv("REDIS_CONNECTION_STRING"); v != "" {
		cfg.Redis.ConnectionString = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		cfg.Storage.CacheTTL = d
	}
	if v := os.Getenv("DEDUPER_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DEDUPER_TTL: %w", err)
		}
		cfg.Redis.DeduperTTL = d
	}
	if v := os.Getenv("TODO_SEED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TODO_SEED: %w", err)
		}
		cfg.Seed = b
	}
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil {
		cfg.Debug = dbg
	}
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok && val != "" {
		cfg.Listen = ":" + val
	}
	if v := os.Getenv("TODO_LISTEN_ADDR"); v != "" {
		cfg.Listen = v
	}
	return nil
}

// Validate rejects unknown backends and missing backend specific settings.
func (c *Config) Validate() error {
	s := c.Storage
	switch s.Backend {
	case BackendRemote:
		u, err := url.Parse(s.RemoteURL)
		if s.RemoteURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("remote backend requires an http(s) remote_url, got %q", s.RemoteURL)
		}
	case BackendLocal:
		if strings.TrimSpace(s.LocalPath) == "" {
			return errors.New("local backend requires local_path")
		}
	case BackendTable:
		if s.ConnectionString == "" || s.Table == "" {
			return errors.New("table backend requires connection_string and table")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", s.Backend, BackendRemote, BackendLocal, BackendTable)
	}
	if s.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", s.CacheTTL)
	}
	if c.Redis.DeduperTTL <= 0 {
		return fmt.Errorf("deduper_ttl must be greater than zero, got %s", c.Redis.DeduperTTL)
	}
	if c.Listen == "" {
		return errors.New("listen address is empty")
	}
	return nil
}

// ParseRedis turns a redis URL or an Azure style connection string
// ("host:port,password=secret,ssl=true") into client options.
func ParseRedis(conn string) (*redis.Options, error) {
	conn = strings.TrimSpace(conn)
	if conn == "" {
		return nil, errors.New("empty redis connection string")
	}
	if opts, err := redis.ParseURL(conn); err == nil {
		return opts, nil
	}
	parts := strings.Split(conn, ",")
	opts := &redis.Options{Addr: strings.TrimSpace(parts[0])}
	if opts.Addr == "" || strings.Contains(opts.Addr, "=") {
		return nil, fmt.Errorf("redis connection string has no address: %q", conn)
	}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(strings.TrimSpace(kv[1])) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts, nil
}
