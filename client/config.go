package client

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/veloq/dialect"
)

// Config is the file form of a client configuration.
//
//	dialect: sqlite
//	dsn: "file:app.db?_pragma=foreign_keys(1)"
//	concurrency: 8
//	batchSize: 500
//	slowThreshold: 200ms
//	debug: false
//	schema: schema.yaml
type Config struct {
	Dialect       string        `yaml:"dialect"`
	DSN           string        `yaml:"dsn"`
	Concurrency   int           `yaml:"concurrency,omitempty"`
	BatchSize     int           `yaml:"batchSize,omitempty"`
	SlowThreshold time.Duration `yaml:"slowThreshold,omitempty"`
	Debug         bool          `yaml:"debug,omitempty"`
	// Schema is the path of the entity metadata file, relative to the
	// working directory.
	Schema string `yaml:"schema,omitempty"`
}

// DecodeConfig reads a configuration from r.
func DecodeConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("client: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads a configuration file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return DecodeConfig(f)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Dialect {
	case dialect.MySQL, dialect.SQLite, dialect.Postgres:
	case "":
		return fmt.Errorf("client: config: dialect is required")
	default:
		return fmt.Errorf("client: config: unsupported dialect %q", c.Dialect)
	}
	switch {
	case c.DSN == "":
		return fmt.Errorf("client: config: dsn is required")
	case c.Concurrency < 0:
		return fmt.Errorf("client: config: negative concurrency %d", c.Concurrency)
	case c.BatchSize < 0:
		return fmt.Errorf("client: config: negative batch size %d", c.BatchSize)
	}
	return nil
}

// options returns the client options the configuration implies.
func (c *Config) options() []Option {
	var opts []Option
	if c.Concurrency > 0 {
		opts = append(opts, WithConcurrency(c.Concurrency))
	}
	if c.BatchSize > 0 {
		opts = append(opts, WithBatchSize(c.BatchSize))
	}
	if c.Debug {
		opts = append(opts, WithDebug())
	}
	return opts
}
