// Package config loads connection and model definitions from YAML and opens
// the drivers and models they describe.
//
//	connections:
//	  default:
//	    dialect: mysql
//	    dsn: ${APP_DSN}
//	    prefix: app_
//	    slow_threshold: 200ms
//	models:
//	  users:
//	    primary_key: id
//	    soft_delete: true
//	    order_by: [created_at desc]
//
// Environment variables referenced as $NAME or ${NAME} in a dsn are
// expanded; $$ stands for a literal dollar sign. Other fields are taken
// verbatim.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/syssam/ardent/dialect"
	"github.com/syssam/ardent/model"

	"gopkg.in/yaml.v3"
)

// Config is the decoded configuration file.
type Config struct {
	Connections map[string]Connection   `yaml:"connections"`
	Models      map[string]model.Config `yaml:"models"`
	Cache       Cache                   `yaml:"cache"`
}

// Connection describes one database connection.
type Connection struct {
	Dialect       string        `yaml:"dialect"`
	DSN           string        `yaml:"dsn"`
	Prefix        string        `yaml:"prefix"`
	Debug         bool          `yaml:"debug"`
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	MaxOpenConns  int           `yaml:"max_open_conns"`
	MaxIdleConns  int           `yaml:"max_idle_conns"`
}

// Cache configures the metadata cache shared by all models.
type Cache struct {
	Disabled bool          `yaml:"disabled"`
	TTL      time.Duration `yaml:"ttl"`
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Config, error) {
	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	for name, conn := range cfg.Connections {
		conn.DSN = ExpandEnv(conn.DSN)
		cfg.Connections[name] = conn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ExpandEnv replaces $NAME and ${NAME} in s with the value of the
// environment variable NAME, and $$ with a single $.
func ExpandEnv(s string) string {
	return os.Expand(s, func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
}

// Validate checks that every connection is usable and every model refers to
// a defined connection.
func (c *Config) Validate() error {
	var errs []error
	for _, name := range sortedKeys(c.Connections) {
		conn := c.Connections[name]
		if !dialect.Valid(conn.Dialect) {
			errs = append(errs, fmt.Errorf("connection %q: unsupported dialect %q", name, conn.Dialect))
		}
		if conn.DSN == "" {
			errs = append(errs, fmt.Errorf("connection %q: missing dsn", name))
		}
		if conn.SlowThreshold < 0 {
			errs = append(errs, fmt.Errorf("connection %q: negative slow_threshold", name))
		}
	}
	for _, name := range sortedKeys(c.Models) {
		conn := ConnectionOf(c.Models[name])
		if _, ok := c.Connections[conn]; !ok {
			errs = append(errs, fmt.Errorf("model %q: undefined connection %q", name, conn))
		}
	}
	return errors.Join(errs...)
}

// ModelNames returns the configured model names in sorted order.
func (c *Config) ModelNames() []string {
	return sortedKeys(c.Models)
}

// ConnectionOf returns the connection name a model configuration uses.
func ConnectionOf(cfg model.Config) string {
	if cfg.Connection == "" {
		return model.DefaultConnection
	}
	return cfg.Connection
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
