// Fortuna - Verifiable Randomness Oracle for Solana
// Copyright 2026 Fortuna Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fortuna-labs/fortuna

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

// ConfigPathEnvVar points at an explicit config file.
const ConfigPathEnvVar = "FORTUNA_CONFIG"

// DefaultConfigPaths are searched in order when no explicit path is set.
var DefaultConfigPaths = []string{
	"./fortuna.yaml",
	"./config/fortuna.yaml",
	"/etc/fortuna/fortuna.yaml",
}

// Load builds the configuration from three layers, lowest precedence first:
//
//  1. Defaults
//  2. YAML config file, if one is found
//  3. FORTUNA_* environment variables
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("FORTUNA_", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
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

// envMappings maps FORTUNA_* variables (prefix stripped, lowered) to config
// paths. Multi-word leaf keys make a naive underscore-to-dot transform
// ambiguous, so the mapping is explicit.
var envMappings = map[string]string{
	"cluster":              "cluster.name",
	"cluster_rpc_endpoint": "cluster.rpc_endpoint",
	"cluster_ws_endpoint":  "cluster.ws_endpoint",
	"commitment":           "cluster.commitment",

	"programs":   "oracle.programs",
	"signer_key": "oracle.signer_key",
	"vrf_secret": "oracle.vrf_secret",

	"submit_initial_interval": "submit.initial_interval",
	"submit_max_interval":     "submit.max_interval",
	"submit_max_retries":      "submit.max_retries",

	"backfill_enabled":          "backfill.enabled",
	"backfill_page_size":        "backfill.page_size",
	"backfill_rate_per_second":  "backfill.rate_per_second",
	"backfill_breaker_failures": "backfill.breaker_failures",
	"backfill_breaker_cooldown": "backfill.breaker_cooldown",

	"journal_dir":       "journal.dir",
	"journal_in_memory": "journal.in_memory",

	"server_enabled": "server.enabled",
	"server_addr":    "server.addr",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, "FORTUNA_"))
	if path, ok := envMappings[key]; ok {
		return path
	}
	// Unknown variables are dropped rather than guessed at.
	return ""
}

// sliceConfigPaths are comma-separated when they arrive via environment.
var sliceConfigPaths = []string{
	"oracle.programs",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}
