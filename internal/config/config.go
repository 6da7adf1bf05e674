// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

// Package config loads lostfound settings from defaults, a YAML file,
// command-line flags and the environment, in increasing precedence.
// Connection strings only ever come from the environment.
package config

import (
	"errors"
	"os"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Store drivers and session backends.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	SessionBackendStore = "store"
	SessionBackendRedis = "redis"
)

// Environment variables holding connection strings.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_URL"
)

// Config is the full runtime configuration.
type Config struct {
	DevMode bool          `koanf:"dev_mode" json:"dev_mode,omitempty" jsonschema:"description=Allow development-only settings such as the memory store"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty"`
	HTTP    HTTPConfig    `koanf:"http" json:"http,omitempty"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty"`
	Store   StoreConfig   `koanf:"store" json:"store,omitempty"`
	Session SessionConfig `koanf:"session" json:"session,omitempty"`

	// DatabaseURL and RedisURL are read from the environment only.
	DatabaseURL string `koanf:"-" json:"-"`
	RedisURL    string `koanf:"-" json:"-"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// HTTPConfig controls the public API listener.
type HTTPConfig struct {
	Listen        string   `koanf:"listen" json:"listen,omitempty"`
	CORSOrigins   []string `koanf:"cors_origins" json:"cors_origins,omitempty"`
	SecureCookies bool     `koanf:"secure_cookies" json:"secure_cookies,omitempty"`
}

// MetricsConfig controls the observability listener. An empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `koanf:"listen" json:"listen,omitempty"`
}

// StoreConfig selects the user store and its connection policy.
type StoreConfig struct {
	Driver          string `koanf:"driver" json:"driver,omitempty" jsonschema:"enum=postgres,enum=memory"`
	ConnectAttempts int    `koanf:"connect_attempts" json:"connect_attempts,omitempty" jsonschema:"minimum=1"`
	MaxConns        int    `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=0"`
	AutoMigrate     bool   `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// SessionConfig controls session lifetime and storage.
type SessionConfig struct {
	Backend      string `koanf:"backend" json:"backend,omitempty" jsonschema:"enum=store,enum=redis"`
	TTL          string `koanf:"ttl" json:"ttl,omitempty" jsonschema:"description=Go duration such as 168h"`
	ReapInterval string `koanf:"reap_interval" json:"reap_interval,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Format: "json", Level: "info"},
		HTTP: HTTPConfig{
			Listen:      ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Metrics: MetricsConfig{Listen: "127.0.0.1:9100"},
		Store: StoreConfig{
			Driver:          DriverPostgres,
			ConnectAttempts: 5,
			MaxConns:        10,
		},
		Session: SessionConfig{
			Backend:      SessionBackendStore,
			TTL:          "168h",
			ReapInterval: "10m",
		},
	}
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"dev-mode":       "dev_mode",
	"log-format":     "log.format",
	"log-level":      "log.level",
	"listen":         "http.listen",
	"metrics-listen": "metrics.listen",
	"store-driver":   "store.driver",
	"auto-migrate":   "store.auto_migrate",
	"session-store":  "session.backend",
}

// RegisterFlags adds the overridable settings to fs, defaulting to Default().
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Bool("dev-mode", d.DevMode, "allow development-only settings")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("listen", d.HTTP.Listen, "API listen address")
	fs.String("metrics-listen", d.Metrics.Listen, "metrics and health listen address (empty disables)")
	fs.String("store-driver", d.Store.Driver, "user store driver (postgres, memory)")
	fs.Bool("auto-migrate", d.Store.AutoMigrate, "apply pending migrations at startup")
	fs.String("session-store", d.Session.Backend, "session backend (store, redis)")
}

// Load builds a Config. path may be empty; a missing file is an error only
// when required is true. flags may be nil. A .env file in the working
// directory is loaded first without overriding the real environment.
func Load(path string, required bool, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, oops.Code("CONFIG_DOTENV_FAILED").Wrap(err)
	}

	k := koanf.New(".")

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			if required {
				return Config{}, oops.Code("CONFIG_NOT_FOUND").With("path", path).Wrap(err)
			}
		case err != nil:
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		default:
			if err := ValidateYAML(data); err != nil {
				return Config{}, oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
			}
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("path", path).Wrap(err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	cfg.DatabaseURL = os.Getenv(EnvDatabaseURL)
	cfg.RedisURL = os.Getenv(EnvRedisURL)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules the schema cannot express.
func (c Config) Validate() error {
	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", c.Log.Format, "must be json or text")
	}

	switch c.Store.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return oops.Code("CONFIG_MISSING_DATABASE_URL").
				Errorf("%s must be set when store.driver is %s", EnvDatabaseURL, DriverPostgres)
		}
	case DriverMemory:
		if !c.DevMode {
			return invalid("store.driver", c.Store.Driver, "memory store requires dev_mode")
		}
	default:
		return invalid("store.driver", c.Store.Driver, "must be postgres or memory")
	}
	if c.Store.ConnectAttempts < 1 {
		return invalid("store.connect_attempts", c.Store.ConnectAttempts, "must be at least 1")
	}

	switch c.Session.Backend {
	case SessionBackendStore:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return oops.Code("CONFIG_MISSING_REDIS_URL").
				Errorf("%s must be set when session.backend is %s", EnvRedisURL, SessionBackendRedis)
		}
	default:
		return invalid("session.backend", c.Session.Backend, "must be store or redis")
	}

	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	if _, err := c.ReapInterval(); err != nil {
		return err
	}
	return nil
}

// SessionTTL parses session.ttl.
func (c Config) SessionTTL() (time.Duration, error) {
	return positiveDuration("session.ttl", c.Session.TTL)
}

// ReapInterval parses session.reap_interval.
func (c Config) ReapInterval() (time.Duration, error) {
	return positiveDuration("session.reap_interval", c.Session.ReapInterval)
}

func positiveDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("key", key).With("value", value).Wrap(err)
	}
	if d <= 0 {
		return 0, invalid(key, value, "must be positive")
	}
	return d, nil
}

func invalid(key string, value any, reason string) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		With("value", value).
		Errorf("%s %s", key, reason)
}
