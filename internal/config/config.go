// Copyright 2025 Cabinet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the cabinet service configuration.
//
// Precedence (highest to lowest): CABINET_* environment variables, the
// config file, built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the root cabinet configuration.
type Config struct {
	// DataRoot is the directory holding per-owner physical storage roots.
	DataRoot string `mapstructure:"data_root" validate:"required"`

	// DatabasePath is the SQLite metadata database file.
	DatabasePath string `mapstructure:"database_path" validate:"required"`

	Logging LoggingConfig `mapstructure:"logging"`
	Store   StoreConfig   `mapstructure:"store"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Quota   QuotaConfig   `mapstructure:"quota"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Reaper  ReaperConfig  `mapstructure:"reaper"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	// Format is text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// StoreConfig tunes the hierarchy store.
type StoreConfig struct {
	// BatchSize is the number of row mutations committed per transaction
	// chunk during bulk subtree updates.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`
	// MaxDepth bounds recursive descendant traversal.
	MaxDepth int `mapstructure:"max_depth" validate:"required,gt=0"`
}

// UploadConfig holds request-validation limits applied before any mutation.
type UploadConfig struct {
	// MaxFileBytes is the largest accepted upload.
	MaxFileBytes int64 `mapstructure:"max_file_bytes" validate:"required,gt=0"`
	// MaxNameLength bounds item names.
	MaxNameLength int `mapstructure:"max_name_length" validate:"required,gt=0,lte=250"`
	// AllowedExtensions is the file extension allow-list (lowercase, no dot).
	AllowedExtensions []string `mapstructure:"allowed_extensions" validate:"required,min=1"`
}

// QuotaConfig supplies default per-owner byte limits; a subscription/plan
// collaborator may override these per owner at runtime.
type QuotaConfig struct {
	DefaultUserLimitBytes      int64 `mapstructure:"default_user_limit_bytes" validate:"required,gt=0"`
	DefaultTeamspaceLimitBytes int64 `mapstructure:"default_teamspace_limit_bytes" validate:"required,gt=0"`
}

// ArchiveConfig bounds archive downloads.
type ArchiveConfig struct {
	// MaxTotalBytes is the aggregate uncompressed ceiling for one archive.
	MaxTotalBytes int64 `mapstructure:"max_total_bytes" validate:"required,gt=0"`
	// MaxFileCount is the file-count ceiling for one archive.
	MaxFileCount int `mapstructure:"max_file_count" validate:"required,gt=0"`
}

// ReaperConfig controls the trash sweep.
type ReaperConfig struct {
	// Schedule is a cron expression for periodic sweeps.
	Schedule string `mapstructure:"schedule" validate:"required"`
	// RetentionDays is how long soft-deleted items survive before purge.
	RetentionDays int `mapstructure:"retention_days" validate:"required,gt=0"`
	// SweepBatchSize is how many trashed items are purged per batch.
	SweepBatchSize int `mapstructure:"sweep_batch_size" validate:"required,gt=0"`
}

// Load reads configuration from file, environment, and defaults.
// An empty configPath uses the default search location.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CABINET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.SetConfigName("cabinet")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing file is fine; defaults and env cover everything.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	base := DefaultConfigDir()
	v.SetDefault("data_root", filepath.Join(base, "data"))
	v.SetDefault("database_path", filepath.Join(base, "cabinet.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("store.batch_size", 500)
	v.SetDefault("store.max_depth", 64)
	v.SetDefault("upload.max_file_bytes", int64(1)<<31) // 2 GiB
	v.SetDefault("upload.max_name_length", 250)
	v.SetDefault("upload.allowed_extensions", []string{
		"pdf", "txt", "md", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
		"csv", "json", "xml", "yaml", "yml", "png", "jpg", "jpeg", "gif",
		"svg", "webp", "mp3", "mp4", "mov", "zip", "tar", "gz",
	})
	v.SetDefault("quota.default_user_limit_bytes", int64(5)<<30)       // 5 GiB
	v.SetDefault("quota.default_teamspace_limit_bytes", int64(50)<<30) // 50 GiB
	v.SetDefault("archive.max_total_bytes", int64(2)<<30)              // 2 GiB
	v.SetDefault("archive.max_file_count", 10000)
	v.SetDefault("reaper.schedule", "@hourly")
	v.SetDefault("reaper.retention_days", 30)
	v.SetDefault("reaper.sweep_batch_size", 100)
}

// DefaultConfigDir returns the configuration directory.
// Uses CABINET_CONFIG_DIR if set (test isolation), else ~/.cabinet.
func DefaultConfigDir() string {
	if dir := os.Getenv("CABINET_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".cabinet")
}
