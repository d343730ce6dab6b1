package config

import (
	"errors"
	"fmt"
	"strings"
)

// knownCategories mirrors the category names of the built-in suite. Kept
// here so a typo in suite.categories fails at load time, not as an
// accidentally empty run.
var knownCategories = map[string]bool{
	"core":       true,
	"streaming":  true,
	"models":     true,
	"errors":     true,
	"resilience": true,
	"interop":    true,
}

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Target.BaseURL == "" {
		errs = append(errs, fmt.Errorf("target.base_url is required"))
	} else if !strings.HasPrefix(c.Target.BaseURL, "http://") && !strings.HasPrefix(c.Target.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("target.base_url must start with http:// or https://, got %q", c.Target.BaseURL))
	}

	if c.Target.Timeout < 0 {
		errs = append(errs, fmt.Errorf("target.timeout must not be negative, got %v", c.Target.Timeout))
	}

	switch c.Auth.Mode {
	case "apikey", "jwt", "none":
		// valid
	default:
		errs = append(errs, fmt.Errorf("auth.mode must be \"apikey\", \"jwt\" or \"none\", got %q", c.Auth.Mode))
	}

	// mode=jwt needs mintable credentials.
	if c.Auth.Mode == "jwt" {
		if c.Auth.JWT.Secret == "" && c.Auth.JWT.SecretFile == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.secret or auth.jwt.secret_file is required when auth.mode is \"jwt\""))
		}
		if c.Auth.JWT.Subject == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.subject is required when auth.mode is \"jwt\""))
		}
	}

	for _, cat := range c.Suite.Categories {
		if !knownCategories[cat] {
			errs = append(errs, fmt.Errorf("suite.categories contains unknown category %q", cat))
		}
	}

	if c.Suite.CheckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("suite.check_timeout must be > 0, got %v", c.Suite.CheckTimeout))
	}

	switch c.History.Store {
	case "none", "memory", "postgres":
		// valid
	default:
		errs = append(errs, fmt.Errorf("history.store must be \"none\", \"memory\" or \"postgres\", got %q", c.History.Store))
	}

	if c.History.Store == "postgres" {
		if c.History.Postgres.URL == "" && c.History.Postgres.URLFile == "" {
			errs = append(errs, fmt.Errorf("history.postgres.url or history.postgres.url_file is required when history.store is \"postgres\""))
		}
	}

	if c.History.Store == "memory" && c.History.Limit <= 0 {
		errs = append(errs, fmt.Errorf("history.limit must be > 0 for the memory store, got %d", c.History.Limit))
	}

	if c.MCP.Listen != "" && c.MCP.Path == "" {
		errs = append(errs, fmt.Errorf("mcp.path is required when mcp.listen is set"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}
