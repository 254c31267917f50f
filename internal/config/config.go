// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

// Package config loads Playgate configuration from defaults, a YAML file,
// a .env file, the environment, and command-line flags, in that order.
package config

import (
	"errors"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read into the config.
const EnvPrefix = "PLAYGATE_"

// DefaultEnvFile is loaded when present and no env file is named explicitly.
const DefaultEnvFile = ".env"

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Database  DatabaseConfig  `koanf:"database"`
	Session   SessionConfig   `koanf:"session"`
	Redis     RedisConfig     `koanf:"redis"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig selects and locates the database. URL, when set, is used
// verbatim: a postgres:// URL for postgres or a go-sql-driver DSN for mysql.
type DatabaseConfig struct {
	Driver   string `koanf:"driver"`
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

// SessionConfig configures session issuance.
type SessionConfig struct {
	Lifetime time.Duration `koanf:"lifetime"`
	// Prune is the interval between sweeps that delete expired sessions.
	// Zero disables the sweep.
	Prune time.Duration `koanf:"prune"`
}

// RedisConfig configures the optional session cache. An empty Addr
// disables it.
type RedisConfig struct {
	Addr string `koanf:"addr"`
}

// RateLimitConfig configures request rate limits.
type RateLimitConfig struct {
	// Login is the number of login attempts allowed per client IP per
	// minute. Zero disables the limit.
	Login int `koanf:"login"`
}

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":       ":8080",
		"metrics.addr":      "127.0.0.1:9100",
		"log.format":        "json",
		"log.level":         "info",
		"database.driver":   "postgres",
		"database.url":      "",
		"database.host":     "localhost",
		"database.port":     0,
		"database.user":     "playgate",
		"database.password": "",
		"database.name":     "playgate",
		"database.sslmode":  "prefer",
		"session.lifetime":  "24h",
		"session.prune":     "1h",
		"redis.addr":        "",
		"ratelimit.login":   10,
	}
}

// legacyEnv maps the variable names used by earlier deployments onto keys.
var legacyEnv = map[string]string{
	"SERVER_ADDR":    "server.addr",
	"MYSQL_HOST":     "database.host",
	"MYSQL_PORT":     "database.port",
	"MYSQL_USER":     "database.user",
	"MYSQL_PASSWORD": "database.password",
	"MYSQL_DBNAME":   "database.name",
	"DATABASE_URL":   "database.url",
}

// flagKeys maps command-line flag names onto keys.
var flagKeys = map[string]string{
	"addr":         "server.addr",
	"metrics-addr": "metrics.addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"db-driver":    "database.driver",
	"database-url": "database.url",
	"redis-addr":   "redis.addr",
	"session-ttl":  "session.lifetime",
	"prune-every":  "session.prune",
	"login-limit":  "ratelimit.login",
}

// LoadOptions names the optional sources for Load.
type LoadOptions struct {
	// ConfigFile is a YAML file. Empty skips it.
	ConfigFile string
	// EnvFile is a dotenv file loaded into the process environment without
	// overriding variables already set. Empty loads DefaultEnvFile if it
	// exists.
	EnvFile string
	// Flags is the command's flag set. Only flags named in flagKeys are read.
	Flags *pflag.FlagSet
}

// Load builds a validated Config from all sources.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_DEFAULTS_FAILED").With("key", key).Wrap(err)
		}
	}

	if opts.ConfigFile != "" {
		if err := k.Load(file.Provider(opts.ConfigFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", opts.ConfigFile).Wrap(err)
		}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	aliases := env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		return legacyEnv[name], value
	})
	if err := k.Load(aliases, nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	prefixed := env.Provider(EnvPrefix, ".", func(name string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", ".")
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		flags := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(flags, nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return oops.Code("CONFIG_ENV_FILE_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "server.addr").Errorf("server address is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("key", "log.format").
			Errorf("log format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return oops.Code("CONFIG_INVALID").With("key", "database.driver").
			Errorf("database driver must be 'postgres' or 'mysql', got %q", c.Database.Driver)
	}
	if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
		return oops.Code("CONFIG_INVALID").With("key", "database").
			Errorf("database url or host and name are required")
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return oops.Code("CONFIG_INVALID").With("key", "database.port").
			Errorf("database port out of range: %d", c.Database.Port)
	}
	if c.Session.Lifetime <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "session.lifetime").
			Errorf("session lifetime must be positive, got %s", c.Session.Lifetime)
	}
	if c.Session.Prune < 0 {
		return oops.Code("CONFIG_INVALID").With("key", "session.prune").
			Errorf("session prune interval must not be negative, got %s", c.Session.Prune)
	}
	if c.RateLimit.Login < 0 {
		return oops.Code("CONFIG_INVALID").With("key", "ratelimit.login").
			Errorf("login rate limit must not be negative, got %d", c.RateLimit.Login)
	}
	return nil
}

// DatabaseURL returns the connection string for the configured driver:
// a postgres:// URL or a go-sql-driver DSN.
func (d DatabaseConfig) DatabaseURL() string {
	if d.URL != "" {
		return d.URL
	}
	if d.Driver == "mysql" {
		return d.mysqlDSN()
	}
	return d.postgresURL()
}

func (d DatabaseConfig) hostPort(defaultPort int) string {
	port := d.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(port))
}

func (d DatabaseConfig) postgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   d.hostPort(5432),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

func (d DatabaseConfig) mysqlDSN() string {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = d.hostPort(3306)
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}
