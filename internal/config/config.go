// Package config loads tptmap settings from defaults, an optional YAML
// file, a .env file, and TPTMAP_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mickamy/tptmap/orm"
)

const (
	// DefaultSQLitePath is the database file used when no DSN is set.
	DefaultSQLitePath = "zoo.db"
	// DefaultEnvFile is the dotenv file read from the working directory.
	DefaultEnvFile = ".env"
)

// Config holds the settings of one run.
type Config struct {
	Database DatabaseConfig `yaml:"database,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// DatabaseConfig selects the engine and how to reach it.
type DatabaseConfig struct {
	// Dialect is one of sqlite, mysql or postgres.
	Dialect string `yaml:"dialect,omitempty"`
	DSN     string `yaml:"dsn,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level,omitempty"`
	// Format is text or json.
	Format string `yaml:"format,omitempty"`
	// Sensitive includes statement arguments in the log.
	Sensitive bool `yaml:"sensitive,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Dialect: "sqlite"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path names an optional YAML file; an
// empty path skips it. envFile is loaded when it exists and never
// overrides variables already set in the environment.
func Load(path, envFile string) (*Config, error) {
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

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TPTMAP_DIALECT"); v != "" {
		c.Database.Dialect = v
	}
	if v := os.Getenv("TPTMAP_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("TPTMAP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TPTMAP_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("TPTMAP_LOG_SENSITIVE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TPTMAP_LOG_SENSITIVE: %w", err)
		}
		c.Log.Sensitive = b
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	d, err := orm.DialectByName(c.Database.Dialect)
	if err != nil {
		return fmt.Errorf("database.dialect: %w", err)
	}
	if c.Database.DSN == "" && d != orm.SQLite {
		return fmt.Errorf("database.dsn is required for %s", d.Name())
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

// Dialect returns the configured SQL dialect.
func (c *Config) Dialect() (orm.Dialect, error) {
	return orm.DialectByName(c.Database.Dialect) //nolint:wrapcheck // already prefixed
}

// Driver returns the database/sql driver name registered for the dialect.
func (c *Config) Driver() string {
	d, err := c.Dialect()
	if err != nil {
		return ""
	}
	switch d {
	case orm.MySQL:
		return "mysql"
	case orm.PostgreSQL:
		return "pgx"
	default:
		return "sqlite"
	}
}

// DSN returns the data source name, defaulting to DefaultSQLitePath for
// SQLite.
func (c *Config) DSN() string {
	if c.Database.DSN == "" {
		return DefaultSQLitePath
	}
	return c.Database.DSN
}
