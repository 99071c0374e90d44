package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RUMI_"

// Config is the process configuration read from rumi.yaml.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// DatabaseConfig selects and tunes the database connection.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Charset  string `yaml:"charset"`
	Path     string `yaml:"path"`

	// Timeouts are whole seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
	ProbeTimeout   int `yaml:"probe_timeout"`

	MaxOpenConns    int `yaml:"max_open_conns"`
	MaxIdleConns    int `yaml:"max_idle_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig is the retry policy used when the connection is lost.
type ReconnectConfig struct {
	MaxAttempts int `yaml:"max_attempts"`
	// Delays are milliseconds.
	BaseDelay int `yaml:"base_delay_ms"`
	MaxDelay  int `yaml:"max_delay_ms"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AllowedOrigins are the storefront and admin origins allowed by CORS.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// SessionTTL is the admin session lifetime in hours.
	SessionTTL   int  `yaml:"session_ttl_hours"`
	SecureCookie bool `yaml:"secure_cookie"`

	Timeouts TimeoutConfig `yaml:"timeouts"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MaintenanceConfig holds cron schedules for background jobs. An empty
// schedule disables the job.
type MaintenanceConfig struct {
	HealthCheck  string `yaml:"health_check"`
	SessionPurge string `yaml:"session_purge"`
	Optimize     string `yaml:"optimize"`
}

// Load reads the YAML file at path over the defaults, applies RUMI_*
// environment overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration: a local SQLite file and the
// HTTP API on port 8080.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          database.DriverSQLite,
			Port:            3306,
			Charset:         "utf8mb4",
			Path:            "./data/rumi.db",
			ConnectTimeout:  5,
			ProbeTimeout:    2,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 3600,
			Reconnect: ReconnectConfig{
				MaxAttempts: 1,
			},
		},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       8080,
			SessionTTL: 7 * 24,
			Timeouts:   *DefaultTimeoutConfig(),
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "./data/rumi.log",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Maintenance: MaintenanceConfig{
			HealthCheck:  "@every 1m",
			SessionPurge: "0 * * * *",
			Optimize:     "30 3 * * *",
		},
	}
}

type lookupFunc func(string) (string, bool)

func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %q is not a number", EnvPrefix, key, v))
			return
		}
		*dst = n
	}

	str("DB_DRIVER", &cfg.Database.Driver)
	str("DB_HOST", &cfg.Database.Host)
	num("DB_PORT", &cfg.Database.Port)
	str("DB_NAME", &cfg.Database.Name)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_CHARSET", &cfg.Database.Charset)
	str("DB_PATH", &cfg.Database.Path)
	num("DB_CONNECT_TIMEOUT", &cfg.Database.ConnectTimeout)
	num("DB_RECONNECT_ATTEMPTS", &cfg.Database.Reconnect.MaxAttempts)

	str("HTTP_HOST", &cfg.Server.Host)
	num("HTTP_PORT", &cfg.Server.Port)
	if v, ok := lookup(EnvPrefix + "ALLOWED_ORIGINS"); ok && v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FILE", &cfg.Logging.File)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case database.DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case database.DriverMySQL:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required for mysql")
		}
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required for mysql")
		}
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be %q or %q", database.DriverMySQL, database.DriverSQLite))
	}

	if c.Database.ConnectTimeout < 1 {
		errs = append(errs, "database.connect_timeout must be at least 1 second")
	}
	if c.Database.Reconnect.MaxAttempts < 1 {
		errs = append(errs, "database.reconnect.max_attempts must be at least 1")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.SessionTTL < 1 {
		errs = append(errs, "server.session_ttl_hours must be at least 1")
	}

	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, "logging.level must be one of trace, debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DatabaseConfig converts the file settings into the manager's configuration.
func (c *Config) DatabaseConfig() database.Config {
	d := c.Database
	return database.Config{
		Driver:          d.Driver,
		Host:            d.Host,
		Port:            d.Port,
		Name:            d.Name,
		User:            d.User,
		Password:        d.Password,
		Charset:         d.Charset,
		Path:            d.Path,
		ConnectTimeout:  time.Duration(d.ConnectTimeout) * time.Second,
		ProbeTimeout:    time.Duration(d.ProbeTimeout) * time.Second,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: time.Duration(d.ConnMaxLifetime) * time.Second,
		Reconnect: database.RetryPolicy{
			MaxAttempts: d.Reconnect.MaxAttempts,
			BaseDelay:   time.Duration(d.Reconnect.BaseDelay) * time.Millisecond,
			MaxDelay:    time.Duration(d.Reconnect.MaxDelay) * time.Millisecond,
		},
	}
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SessionDuration is the admin session lifetime.
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.Server.SessionTTL) * time.Hour
}
