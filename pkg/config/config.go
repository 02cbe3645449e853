// Package config resolves server settings from an optional ini-style
// configuration file and the environment. Command-line flags are applied on
// top by the binaries, so precedence is flags > environment > file >
// defaults.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/victor-base/victordb"
	"github.com/victor-base/victordb/pkg/storage"
	"gopkg.in/ini.v1"
)

// ThresholdEnv names the environment variable overriding the checkpoint
// threshold.
const ThresholdEnv = "VICTOR_EXPORT_THRESHOLD"

// Config carries every tunable of a server process.
type Config struct {
	// Root is the database root directory.
	Root string
	// ExportThreshold is the mutation count that must be exceeded before a
	// checkpoint is attempted.
	ExportThreshold int
	// MaxConnections bounds the connection table.
	MaxConnections int
	// SyncOnAppend forces an fsync after every WAL append.
	SyncOnAppend bool
	// LogLevel is a logrus level name.
	LogLevel string
}

// Default returns the built-in settings with environment overrides applied.
func Default() (*Config, error) {
	cfg := &Config{
		Root:            storage.Root(),
		ExportThreshold: victordb.DefaultExportThreshold,
		MaxConnections:  victordb.MaxConnections,
		SyncOnAppend:    false,
		LogLevel:        "info",
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the configuration file at path and applies environment
// overrides on top. An empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	cfg := &Config{
		Root:            storage.DefaultRoot,
		ExportThreshold: victordb.DefaultExportThreshold,
		MaxConnections:  victordb.MaxConnections,
		SyncOnAppend:    false,
		LogLevel:        "info",
	}
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load configuration %s: %w", path, err)
	}
	section := file.Section("server")
	if key := section.Key("root"); key.String() != "" {
		cfg.Root = key.String()
	}
	if key := section.Key("export_threshold"); key.String() != "" {
		threshold, err := key.Int()
		if err != nil {
			return nil, fmt.Errorf("export_threshold: %w", err)
		}
		cfg.ExportThreshold = threshold
	}
	if key := section.Key("max_connections"); key.String() != "" {
		maxConns, err := key.Int()
		if err != nil {
			return nil, fmt.Errorf("max_connections: %w", err)
		}
		cfg.MaxConnections = maxConns
	}
	if key := section.Key("sync_on_append"); key.String() != "" {
		sync, err := key.Bool()
		if err != nil {
			return nil, fmt.Errorf("sync_on_append: %w", err)
		}
		cfg.SyncOnAppend = sync
	}
	if key := section.Key("log_level"); key.String() != "" {
		cfg.LogLevel = key.String()
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyEnv() error {
	if root := os.Getenv(storage.RootEnv); root != "" {
		cfg.Root = root
	}
	if raw := os.Getenv(ThresholdEnv); raw != "" {
		threshold, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", ThresholdEnv, raw, err)
		}
		cfg.ExportThreshold = threshold
	}
	return cfg.validate()
}

func (cfg *Config) validate() error {
	if cfg.ExportThreshold < 1 {
		return fmt.Errorf("export threshold %d: %w", cfg.ExportThreshold, victordb.ErrIllegalArgument)
	}
	if cfg.MaxConnections < 1 {
		return fmt.Errorf("max connections %d: %w", cfg.MaxConnections, victordb.ErrIllegalArgument)
	}
	return nil
}
