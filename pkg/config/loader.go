package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, RUNESTONE_VALIDATE_CONFIG env,
//     ./runestone-validate.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. RUNESTONE_VALIDATE_CONFIG environment variable
// 3. ./runestone-validate.yaml in the current directory
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("RUNESTONE_VALIDATE_CONFIG"); envPath != "" {
		return envPath
	}

	if _, err := os.Stat("runestone-validate.yaml"); err == nil {
		return "runestone-validate.yaml"
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Unknown keys are rejected so typos fail loudly instead of being
// silently dropped. Fields not present in the YAML retain their current
// (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	return nil
}

// applyEnvOverrides maps environment variables to config fields. The same
// RUNESTONE_API_URL / RUNESTONE_API_KEY variables the SDK's FromEnv reads
// also steer the harness, so one environment configures both.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RUNESTONE_API_URL"); v != "" {
		cfg.Target.BaseURL = v
	}
	if v := os.Getenv("RUNESTONE_API_KEY"); v != "" {
		cfg.Target.APIKey = v
	}
	if v := os.Getenv("RUNESTONE_MODEL"); v != "" {
		cfg.Target.Model = v
	}
	if v := os.Getenv("RUNESTONE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Target.Timeout = d
		}
	}
	if v := os.Getenv("RUNESTONE_HISTORY_STORE"); v != "" {
		cfg.History.Store = v
	}
	if v := os.Getenv("RUNESTONE_POSTGRES_URL"); v != "" {
		cfg.History.Postgres.URL = v
	}
	if v := os.Getenv("RUNESTONE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RUNESTONE_DEBUG"); v != "" {
		cfg.Log.Debug = v
	}
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. For each field ending in _file, if the value field is empty
// and the file field is set, the file is read, whitespace is trimmed, and
// the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// target.api_key_file -> target.api_key
	if cfg.Target.APIKeyFile != "" && cfg.Target.APIKey == "" {
		val, err := readSecretFile(cfg.Target.APIKeyFile)
		if err != nil {
			return fmt.Errorf("target.api_key_file: %w", err)
		}
		cfg.Target.APIKey = val
	}

	// auth.jwt.secret_file -> auth.jwt.secret
	if cfg.Auth.JWT.SecretFile != "" && cfg.Auth.JWT.Secret == "" {
		val, err := readSecretFile(cfg.Auth.JWT.SecretFile)
		if err != nil {
			return fmt.Errorf("auth.jwt.secret_file: %w", err)
		}
		cfg.Auth.JWT.Secret = val
	}

	// history.postgres.url_file -> history.postgres.url
	if cfg.History.Postgres.URLFile != "" && cfg.History.Postgres.URL == "" {
		val, err := readSecretFile(cfg.History.Postgres.URLFile)
		if err != nil {
			return fmt.Errorf("history.postgres.url_file: %w", err)
		}
		cfg.History.Postgres.URL = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
