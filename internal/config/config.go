// Package config resolves process configuration for the sluice CLI.
//
// Values are layered, highest precedence first: explicitly set flags,
// SLUICE_* environment variables (a .env file in the working directory is
// loaded into the environment first), the optional config file, defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/sluice/internal/cdc"
	"github.com/roach88/sluice/internal/datasource"
	"github.com/roach88/sluice/internal/migration"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SLUICE"

// Keys.
const (
	KeyRules        = "rules"
	KeyStore        = "store"
	KeySourceDriver = "source.driver"
	KeySourceDSN    = "source.dsn"
	KeySlotPrefix   = "slot-prefix"
	KeyConcurrency  = "concurrency"
)

// Config is the resolved process configuration.
type Config struct {
	Rules       string `mapstructure:"rules"`
	Store       string `mapstructure:"store"`
	Source      Source `mapstructure:"source"`
	SlotPrefix  string `mapstructure:"slot-prefix"`
	Concurrency int    `mapstructure:"concurrency"`
}

// Source describes the PostgreSQL source used by cdc commands.
type Source struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Options control where Load looks.
type Options struct {
	// File is an explicit config file (yaml, json or toml). Empty means none.
	File string
	// EnvFile is the dotenv file; defaults to ".env". A missing file is ignored.
	EnvFile string
	// Flags are bound by key name; only flags the user set override.
	Flags *pflag.FlagSet
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetDefault(KeyStore, "sluice.db")
	v.SetDefault(KeySourceDriver, datasource.DriverPgx)
	v.SetDefault(KeySourceDSN, "")
	v.SetDefault(KeyRules, "")
	v.SetDefault(KeySlotPrefix, cdc.DefaultSlotPrefix)
	v.SetDefault(KeyConcurrency, migration.DefaultConcurrency)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	if opts.Flags != nil {
		for _, key := range []string{KeyRules, KeyStore, KeySourceDriver, KeySourceDSN, KeySlotPrefix, KeyConcurrency} {
			if f := opts.Flags.Lookup(flagName(key)); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// flagName maps a key to its flag: "source.dsn" is --dsn, "source.driver" is --driver.
func flagName(key string) string {
	if name, ok := strings.CutPrefix(key, "source."); ok {
		return name
	}
	return key
}

// Validate checks values that have a closed set.
func (c *Config) Validate() error {
	switch c.Source.Driver {
	case datasource.DriverPgx, datasource.DriverPostgres:
	default:
		return fmt.Errorf("config: %s must be %q or %q, got %q",
			KeySourceDriver, datasource.DriverPgx, datasource.DriverPostgres, c.Source.Driver)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: %s must be positive, got %d", KeyConcurrency, c.Concurrency)
	}
	return nil
}

// DataSource returns the datasource configuration named name.
func (c *Config) DataSource(name string) datasource.Config {
	return datasource.Config{Name: name, Driver: c.Source.Driver, DSN: c.Source.DSN}
}
