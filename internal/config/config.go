// Package config loads the picoquery configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/creasty/defaults"
	"github.com/goccy/go-yaml"

	"github.com/pful/pico/querybuilder/catalog"
)

// Database drivers.
const (
	DriverPGX    = "pgx"
	DriverSQL    = "postgres"
	DriverSQLX   = "sqlx"
	DriverMemory = "memory"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigFile is the root of the configuration file.
type ConfigFile struct {
	Database  Database                     `yaml:"database"`
	Logging   Logging                      `yaml:"logging"`
	Templates []catalog.TemplateDefinition `yaml:"templates"`
}

// Database selects the engine the commands run against.
type Database struct {
	Driver     string `yaml:"driver" default:"pgx"`
	DSN        string `yaml:"dsn"`
	ReplicaDSN string `yaml:"replica_dsn"`
	Table      string `yaml:"table" default:"entities"`
}

// Logging configures the slog logger of the commands.
type Logging struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"text"`
}

// SetDefaults implements the defaults.Setter interface.
func (c *ConfigFile) SetDefaults() {
	if defaults.CanUpdate(c.Database.DSN) {
		c.Database.DSN = os.Getenv("PICO_POSTGRES_DSN")
	}
}

// Validate checks the whole configuration.
func (c *ConfigFile) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}

	return nil
}

// Validate checks the database section.
func (d *Database) Validate() error {
	if !slices.Contains([]string{DriverPGX, DriverSQL, DriverSQLX, DriverMemory}, d.Driver) {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown database driver %q", d.Driver))
	}

	if d.Driver != DriverMemory && d.DSN == "" {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("database driver %q needs a dsn", d.Driver))
	}

	if d.ReplicaDSN != "" && d.Driver != DriverPGX {
		return errors.Join(ErrInvalidConfig, errors.New("replica_dsn is only supported by the pgx driver"))
	}

	if d.Table == "" {
		return errors.Join(ErrInvalidConfig, errors.New("database table must not be empty"))
	}

	return nil
}

// Validate checks the logging section.
func (l *Logging) Validate() error {
	if _, err := l.SlogLevel(); err != nil {
		return err
	}

	if l.Format != FormatText && l.Format != FormatJSON {
		return errors.Join(ErrInvalidConfig, fmt.Errorf("unknown log format %q", l.Format))
	}

	return nil
}

// SlogLevel parses Level.
func (l *Logging) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, errors.Join(ErrInvalidConfig, fmt.Errorf("unknown log level %q", l.Level))
	}

	return level, nil
}

// Default returns a configuration with all defaults applied.
func Default() (*ConfigFile, error) {
	var c ConfigFile
	if err := defaults.Set(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*ConfigFile, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}

	if err := yaml.UnmarshalWithOptions(data, c, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// FromFile reads and parses the configuration file at path.
func FromFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Assert interface compliance.
var _ defaults.Setter = (*ConfigFile)(nil)
