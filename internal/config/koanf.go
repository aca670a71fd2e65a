// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in
// priority order. The first one found is used.
var DefaultConfigPaths = []string{
	"vaultkeep.yaml",
	"vaultkeep.yml",
	"/etc/vaultkeep/config.yaml",
	"/etc/vaultkeep/config.yml",
}

// ConfigPathEnvVar overrides the config file search with an explicit path.
const ConfigPathEnvVar = "VAULTKEEP_CONFIG_PATH"

// envPrefix is stripped from every recognized environment variable before
// it is mapped onto a koanf path, e.g. VAULTKEEP_OBJECTSTORE_PATH -> objectstore.path.
const envPrefix = "VAULTKEEP_"

// Load builds a Config from three layers, each overriding the last:
// built-in defaults, an optional YAML file (found via DefaultConfigPaths
// or ConfigPathEnvVar), then environment variables prefixed VAULTKEEP_.
// The result is struct-tag validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// topLevelScalars are Config fields with no nested section: their env
// var maps straight to the koanf tag, underscores and all, rather than
// through the section.field split below.
var topLevelScalars = map[string]string{
	"log_level": "log_level",
}

// envTransformFunc maps VAULTKEEP_OBJECTSTORE_PATH to objectstore.path. Multi-word
// field names within a section (subscriber_capacity, retention_window)
// are preserved verbatim: only the top-level section boundary is
// translated from underscore to dot, matching the koanf struct tags
// above.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := topLevelScalars[key]; ok {
		return mapped
	}
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}
