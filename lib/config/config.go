// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local experiments and tests.
	Development Environment = "development"
	// Production is for long-running mounts over real data.
	Production Environment = "production"
)

// Config is the master configuration for viewrepl.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Descriptor is the path of the view-set descriptor, JSONC or a
	// binary frame.
	Descriptor string `yaml:"descriptor"`

	// ReplicaRoot resolves relative replica paths. Empty means the
	// directory holding the descriptor.
	ReplicaRoot string `yaml:"replica_root"`

	// Scheduler sizes the replication worker pool.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Replication configures write durability.
	Replication ReplicationConfig `yaml:"replication"`

	// Logging configures the command logger.
	Logging LoggingConfig `yaml:"logging"`

	// Mount configures the FUSE presentation.
	Mount MountConfig `yaml:"mount"`

	// Per-environment overrides, applied after the base config loads.
	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Scheduler   *SchedulerConfig   `yaml:"scheduler,omitempty"`
	Replication *ReplicationConfig `yaml:"replication,omitempty"`
	Logging     *LoggingConfig     `yaml:"logging,omitempty"`
}

// SchedulerConfig sizes the replication scheduler.
type SchedulerConfig struct {
	// Workers is the number of concurrent replication tasks. Zero
	// selects GOMAXPROCS.
	Workers int `yaml:"workers"`

	// QueueDepth bounds queued tasks. Zero selects four per worker.
	QueueDepth int `yaml:"queue_depth"`

	// ChunkSize is the largest byte range one task replicates.
	// Default: 64MiB
	ChunkSize ByteSize `yaml:"chunk_size"`

	// ScratchSize bounds the batch buffers of sequential transforms.
	// Default: 1MiB
	ScratchSize ByteSize `yaml:"scratch_size"`
}

// ReplicationConfig configures write durability.
type ReplicationConfig struct {
	// SyncWrites fsyncs the written replica before a write returns.
	// Default: false (development), true (production)
	SyncWrites bool `yaml:"sync_writes"`
}

// LoggingConfig configures the command logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error. Default: info
	Level string `yaml:"level"`

	// Format is auto, text or json. auto picks text on a terminal.
	Format string `yaml:"format"`
}

// MountConfig configures "viewrepl mount".
type MountConfig struct {
	// Mountpoint is the directory the views appear in.
	Mountpoint string `yaml:"mountpoint"`

	// AllowOther lets other users access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`
}

// ByteSize is a size in bytes written in YAML as a plain number or
// with human units ("64MiB", "1 GB").
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := humanize.ParseBytes(text)
	if err != nil {
		return fmt.Errorf("line %d: invalid size %q: %w", node.Line, text, err)
	}
	if parsed > 1<<62 {
		return fmt.Errorf("line %d: size %q is too large", node.Line, text)
	}
	*s = ByteSize(parsed)
	return nil
}

func (s ByteSize) String() string {
	return humanize.IBytes(uint64(s))
}

// Default returns the default configuration. It exists so that every
// field has a sensible value before the file is merged in; the config
// file itself is still required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Scheduler: SchedulerConfig{
			ChunkSize:   64 << 20,
			ScratchSize: 1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by VIEWREPL_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("VIEWREPL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("VIEWREPL_CONFIG environment variable not set; " +
			"set it to the path of your viewrepl.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Environment
// variables do not override config values; they are only expanded
// inside path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()

	directory, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.expandVariables(directory)
	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: durable writes.
		if overrides == nil {
			overrides = &Overrides{
				Replication: &ReplicationConfig{SyncWrites: true},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Scheduler != nil {
		if overrides.Scheduler.Workers != 0 {
			c.Scheduler.Workers = overrides.Scheduler.Workers
		}
		if overrides.Scheduler.QueueDepth != 0 {
			c.Scheduler.QueueDepth = overrides.Scheduler.QueueDepth
		}
		if overrides.Scheduler.ChunkSize != 0 {
			c.Scheduler.ChunkSize = overrides.Scheduler.ChunkSize
		}
		if overrides.Scheduler.ScratchSize != 0 {
			c.Scheduler.ScratchSize = overrides.Scheduler.ScratchSize
		}
	}

	if overrides.Replication != nil {
		// SyncWrites is a bool, so we always apply it from overrides.
		c.Replication.SyncWrites = overrides.Replication.SyncWrites
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields. Relative descriptor and replica root paths are taken
// relative to the config file.
func (c *Config) expandVariables(directory string) {
	vars := map[string]string{
		"VIEWREPL_CONFIG_DIR": directory,
		"HOME":                os.Getenv("HOME"),
	}

	c.Descriptor = expandVars(c.Descriptor, vars)
	c.ReplicaRoot = expandVars(c.ReplicaRoot, vars)
	c.Mount.Mountpoint = expandVars(c.Mount.Mountpoint, vars)

	if c.Descriptor != "" && !filepath.IsAbs(c.Descriptor) {
		c.Descriptor = filepath.Join(directory, c.Descriptor)
	}
	if c.ReplicaRoot != "" && !filepath.IsAbs(c.ReplicaRoot) {
		c.ReplicaRoot = filepath.Join(directory, c.ReplicaRoot)
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors and reports all of them.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Descriptor == "" {
		errs = append(errs, fmt.Errorf("descriptor is required"))
	}

	if c.Scheduler.Workers < 0 {
		errs = append(errs, fmt.Errorf("scheduler.workers must not be negative"))
	}
	if c.Scheduler.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("scheduler.queue_depth must not be negative"))
	}
	if c.Scheduler.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.chunk_size must be positive"))
	}
	if c.Scheduler.ScratchSize <= 0 {
		errs = append(errs, fmt.Errorf("scheduler.scratch_size must be positive"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	formats := []string{"auto", "text", "json"}
	if !slices.Contains(formats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", formats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// LogLevel parses Logging.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// ReplicaRootDir returns the directory relative replica paths resolve
// against.
func (c *Config) ReplicaRootDir() string {
	if c.ReplicaRoot != "" {
		return c.ReplicaRoot
	}
	return filepath.Dir(c.Descriptor)
}
