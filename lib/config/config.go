// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/sqlrt/lib/sqlitepool"
	"github.com/bureau-foundation/sqlrt/lib/sqlvalue"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "BUREAU_SQL_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	Database DatabaseConfig `yaml:"database"`
	Codec    CodecConfig    `yaml:"codec"`
	Batch    BatchConfig    `yaml:"batch"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
// Zero values leave the base value in place; pragma maps are merged.
type Overrides struct {
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Codec    *CodecConfig    `yaml:"codec,omitempty"`
	Batch    *BatchConfig    `yaml:"batch,omitempty"`
}

// DatabaseConfig configures the connection pools.
type DatabaseConfig struct {
	// Path is the SQLite database file. ${VAR} patterns are expanded.
	Path string `yaml:"path"`

	// Readers is the reader pool size.
	// Default: 4
	Readers int `yaml:"readers"`

	// StatementCacheSize is the per-connection statement cache
	// capacity.
	// Default: 512
	StatementCacheSize int `yaml:"statement_cache_size"`

	// Pragmas override or extend the default connection pragmas.
	Pragmas map[string]string `yaml:"pragmas"`
}

// CodecConfig configures how structured values are written to BLOB
// columns. Reading does not depend on it.
type CodecConfig struct {
	// Compression is "zstd" or "lz4".
	// Default: zstd
	Compression string `yaml:"compression"`

	// CompressionLevel is clamped to [1, 9], not rejected.
	// Default: 3
	CompressionLevel int `yaml:"compression_level"`

	// CompressThreshold is the serialized size in bytes above which
	// values are compressed.
	// Default: 1000
	CompressThreshold int `yaml:"compress_threshold"`
}

// BatchConfig configures the write batcher.
type BatchConfig struct {
	// MaxSize caps the number of writes per transaction.
	// Default: 64
	MaxSize int `yaml:"max_size"`

	// Linger is how long the batcher waits for more writes after the
	// first arrives, e.g. "5ms".
	// Default: 0
	Linger time.Duration `yaml:"linger"`
}

// Default returns the default configuration. These defaults are the
// base the config file is merged into; the file itself is still
// required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Database: DatabaseConfig{
			Readers:            sqlitepool.DefaultReaders,
			StatementCacheSize: sqlitepool.DefaultStatementCacheSize,
		},
		Codec: CodecConfig{
			Compression:       sqlvalue.CompressionZstd.String(),
			CompressionLevel:  sqlvalue.DefaultLevel,
			CompressThreshold: sqlvalue.DefaultThreshold,
		},
		Batch: BatchConfig{
			MaxSize: 64,
		},
	}
}

// Load loads configuration from the file named by BUREAU_SQL_CONFIG.
// There is no fallback: if the variable is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			overrides = &Overrides{
				Database: &DatabaseConfig{
					Pragmas: map[string]string{"synchronous": "FULL"},
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if database := overrides.Database; database != nil {
		if database.Path != "" {
			c.Database.Path = database.Path
		}
		if database.Readers != 0 {
			c.Database.Readers = database.Readers
		}
		if database.StatementCacheSize != 0 {
			c.Database.StatementCacheSize = database.StatementCacheSize
		}
		if len(database.Pragmas) > 0 {
			if c.Database.Pragmas == nil {
				c.Database.Pragmas = map[string]string{}
			}
			maps.Copy(c.Database.Pragmas, database.Pragmas)
		}
	}

	if codec := overrides.Codec; codec != nil {
		if codec.Compression != "" {
			c.Codec.Compression = codec.Compression
		}
		if codec.CompressionLevel != 0 {
			c.Codec.CompressionLevel = codec.CompressionLevel
		}
		if codec.CompressThreshold != 0 {
			c.Codec.CompressThreshold = codec.CompressThreshold
		}
	}

	if batch := overrides.Batch; batch != nil {
		if batch.MaxSize != 0 {
			c.Batch.MaxSize = batch.MaxSize
		}
		if batch.Linger != 0 {
			c.Batch.Linger = batch.Linger
		}
	}
}

func (c *Config) expandVariables() {
	c.Database.Path = expandVars(c.Database.Path, map[string]string{
		"HOME": os.Getenv("HOME"),
	})
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.Readers < 1 {
		errs = append(errs, fmt.Errorf("database.readers must be at least 1, got %d", c.Database.Readers))
	}
	if c.Database.StatementCacheSize < 1 {
		errs = append(errs, fmt.Errorf("database.statement_cache_size must be at least 1, got %d", c.Database.StatementCacheSize))
	}
	if _, ok := c.Database.Pragmas["query_only"]; ok {
		errs = append(errs, fmt.Errorf("database.pragmas: query_only is set by connection role"))
	}
	if _, err := sqlvalue.ParseCompression(c.Codec.Compression); err != nil {
		errs = append(errs, fmt.Errorf("codec.compression: %w", err))
	}
	if c.Codec.CompressThreshold < 0 {
		errs = append(errs, fmt.Errorf("codec.compress_threshold must not be negative"))
	}
	if c.Batch.MaxSize < 1 {
		errs = append(errs, fmt.Errorf("batch.max_size must be at least 1, got %d", c.Batch.MaxSize))
	}
	if c.Batch.Linger < 0 {
		errs = append(errs, fmt.Errorf("batch.linger must not be negative"))
	}

	return errors.Join(errs...)
}

// EnsureDatabaseDir creates the directory holding the database file.
// URI paths are left alone.
func (c *Config) EnsureDatabaseDir() error {
	if c.Database.Path == "" || strings.HasPrefix(c.Database.Path, "file:") {
		return nil
	}
	directory := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", directory, err)
	}
	return nil
}

// ValueCodec builds the value codec described by the codec section.
func (c *Config) ValueCodec() (*sqlvalue.Codec, error) {
	compression, err := sqlvalue.ParseCompression(c.Codec.Compression)
	if err != nil {
		return nil, err
	}
	return sqlvalue.New(sqlvalue.Options{
		Compression: compression,
		Level:       c.Codec.CompressionLevel,
		Threshold:   c.Codec.CompressThreshold,
	})
}

// Pool returns the sqlitepool configuration described by the database
// and codec sections.
func (c *Config) Pool(logger *slog.Logger) (sqlitepool.Config, error) {
	codec, err := c.ValueCodec()
	if err != nil {
		return sqlitepool.Config{}, err
	}
	return sqlitepool.Config{
		Path:               c.Database.Path,
		Readers:            c.Database.Readers,
		StatementCacheSize: c.Database.StatementCacheSize,
		Pragmas:            maps.Clone(c.Database.Pragmas),
		Codec:              codec,
		Logger:             logger,
	}, nil
}
