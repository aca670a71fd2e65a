// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

/*
Package config loads the backup engine's configuration in three layers —
built-in defaults, an optional YAML file, then environment variables,
each overriding the last — and validates the result before the server
starts.
*/
package config

import (
	"time"
)

// BackupDefinition is the on-disk shape of a configured backup. Load
// parses and validates these entries; nothing in this module inserts
// them into the catalogue, where backups are managed through the
// Controller.
type BackupDefinition struct {
	ID          string  `koanf:"id" validate:"required"`
	Name        string  `koanf:"name" validate:"required"`
	Source      string  `koanf:"source" validate:"required"`
	Library     *string `koanf:"library"`
	Path        string  `koanf:"path" validate:"required"`
	Schedule    *string `koanf:"schedule"`
	Filter      *string `koanf:"filter"`
	Credentials *string `koanf:"credentials"`
	Password    *string `koanf:"password"`
}

// DestinationConfig is the opaque, provider-specific configuration
// passed to a destination.Factory at Open time.
type DestinationConfig struct {
	Tag    string            `koanf:"tag" validate:"required"`
	Params map[string]string `koanf:"params"`
}

// SchedulerConfig tunes the per-run algorithm.
type SchedulerConfig struct {
	// RetentionWindow is parsed and validated (default 7 days), but the
	// scheduler does not read it: snapshot pruning uses the scheduler's
	// own fixed 7-day window.
	RetentionWindow time.Duration `koanf:"retention_window" validate:"required"`
}

// ObjectStoreConfig points at the DuckDB-backed catalogue.
type ObjectStoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// ProgressBusConfig tunes the broadcast bus.
type ProgressBusConfig struct {
	SubscriberCapacity int `koanf:"subscriber_capacity" validate:"required,min=1"`
}

// Config is the complete, validated engine configuration. There is no
// HTTP listener configuration here: the metrics registry and every
// instrumented call site are in scope, but exposing them over HTTP is a
// transport concern this engine leaves to its host application.
type Config struct {
	Backups      []BackupDefinition  `koanf:"backups"`
	Destinations []DestinationConfig `koanf:"destinations"`
	Scheduler    SchedulerConfig     `koanf:"scheduler"`
	ObjectStore  ObjectStoreConfig   `koanf:"objectstore"`
	ProgressBus  ProgressBusConfig   `koanf:"progressbus"`
	LogLevel     string              `koanf:"log_level" validate:"required"`
}

func defaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			RetentionWindow: 7 * 24 * time.Hour,
		},
		ObjectStore: ObjectStoreConfig{
			Path: "/data/vaultkeep.duckdb",
		},
		ProgressBus: ProgressBusConfig{
			SubscriberCapacity: 64,
		},
		LogLevel: "info",
	}
}
