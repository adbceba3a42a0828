// Recommender - Engagement Platform Recommendation Service
// Copyright 2026 Loyaltyworks Engineering
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/loyaltyworks/recommender

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, first match
// wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/recommender/config.yaml",
	"/etc/recommender/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix scopes which environment variables the loader reads.
const envPrefix = "RECOMMENDER_"

// Load builds the configuration from defaults, an optional YAML file and
// RECOMMENDER_* environment variables, in ascending precedence. The
// returned koanf instance carries the merged tree; its "settings" subtree
// feeds the settings store.
func Load() (*Config, *koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	// RECOMMENDER_SERVER_PORT -> server.port,
	// RECOMMENDER_BUS_NATS_URL -> bus.nats.url.
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, nil, fmt.Errorf("config: load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, k, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps RECOMMENDER_SECTION_KEY to section.key. The nested
// bus.nats and settings subtrees get their extra dot explicitly; settings
// keys themselves stay flat and underscored.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	if rest, ok := strings.CutPrefix(key, "settings_"); ok {
		return "settings." + rest
	}
	if rest, ok := strings.CutPrefix(key, "bus_nats_"); ok {
		return "bus.nats." + rest
	}
	return strings.Replace(key, "_", ".", 1)
}

// sliceConfigPaths are parsed from comma-separated strings when set via
// environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"search.addresses",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		s, ok := val.(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("config: set %s: %w", path, err)
		}
	}
	return nil
}
