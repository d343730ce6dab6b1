// Package config provides unified configuration for the validation harness.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (RUNESTONE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the validation harness.
type Config struct {
	Target  TargetConfig  `yaml:"target"`
	Auth    AuthConfig    `yaml:"auth"`
	Suite   SuiteConfig   `yaml:"suite"`
	History HistoryConfig `yaml:"history"`
	MCP     MCPConfig     `yaml:"mcp"`
	Log     LogConfig     `yaml:"log"`
}

// TargetConfig describes the deployment under test.
type TargetConfig struct {
	BaseURL    string        `yaml:"base_url"`     // default: http://localhost:4001
	APIKey     string        `yaml:"api_key"`      // optional
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`        // default: runestone-mock
	Timeout    time.Duration `yaml:"timeout"`      // default: 120s
}

// AuthConfig selects how the harness authenticates against the target.
type AuthConfig struct {
	Mode string    `yaml:"mode"` // "apikey", "jwt" or "none", default: "apikey"
	JWT  JWTConfig `yaml:"jwt"`
}

// JWTConfig holds token minting settings for mode=jwt.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	SecretFile string        `yaml:"secret_file"` // _file variant for secret
	Issuer     string        `yaml:"issuer"`
	Subject    string        `yaml:"subject"`
	TenantID   string        `yaml:"tenant_id"`
	TTL        time.Duration `yaml:"ttl"` // default: 5m
}

// SuiteConfig selects and bounds the checks to run.
type SuiteConfig struct {
	Categories   []string      `yaml:"categories"`    // empty = all
	Checks       []string      `yaml:"checks"`        // empty = all
	CheckTimeout time.Duration `yaml:"check_timeout"` // default: 30s
	Interop      *bool         `yaml:"interop"`       // default: true
}

// InteropEnabled reports whether the openai-go interop checks run.
func (s SuiteConfig) InteropEnabled() bool {
	return s.Interop == nil || *s.Interop
}

// HistoryConfig controls run persistence.
type HistoryConfig struct {
	Store    string         `yaml:"store"` // "none", "memory" or "postgres", default: "none"
	Limit    int            `yaml:"limit"` // memory store capacity, default: 100
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings for history.store=postgres.
type PostgresConfig struct {
	URL      string `yaml:"url"`
	URLFile  string `yaml:"url_file"` // _file variant for url
	MaxConns int32  `yaml:"max_conns"` // default: 10
	MinConns int32  `yaml:"min_conns"` // default: 2
}

// MCPConfig exposes the suite over the Model Context Protocol when Listen
// is set.
type MCPConfig struct {
	Listen string `yaml:"listen"` // e.g. ":8090", empty = disabled
	Path   string `yaml:"path"`   // default: "/mcp"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // TRACE, DEBUG, INFO, WARN, ERROR; default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated debug categories
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Target: TargetConfig{
			BaseURL: "http://localhost:4001",
			Model:   "runestone-mock",
			Timeout: 120 * time.Second,
		},
		Auth: AuthConfig{
			Mode: "apikey",
			JWT: JWTConfig{
				TTL: 5 * time.Minute,
			},
		},
		Suite: SuiteConfig{
			CheckTimeout: 30 * time.Second,
		},
		History: HistoryConfig{
			Store: "none",
			Limit: 100,
			Postgres: PostgresConfig{
				MaxConns: 10,
				MinConns: 2,
			},
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
