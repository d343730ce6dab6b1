// Package jwt mints short-lived HS256 bearer tokens for Runestone
// deployments fronted by a JWT-checking gateway.
//
// The minter caches the signed token and re-mints transparently shortly
// before expiry, so callers can treat it like a static credential.
package jwt

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// refreshSkew is how long before expiry a cached token is re-minted.
const refreshSkew = 30 * time.Second

// Config holds the minter configuration.
type Config struct {
	// Secret is the shared HS256 signing secret (required).
	Secret string

	// Issuer is set as the iss claim. If empty, the claim is omitted.
	Issuer string

	// Subject is set as the sub claim (required).
	Subject string

	// TenantID is set as the tenant_id claim for multi-tenant deployments.
	// If empty, the claim is omitted.
	TenantID string

	// TTL is the token lifetime. Default: 5 minutes.
	TTL time.Duration
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
}

// Minter mints and caches HS256 bearer tokens. It implements
// auth.Credentials and is safe for concurrent use.
type Minter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewMinter creates a minter with the given configuration.
func NewMinter(cfg Config) (*Minter, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt: secret is required")
	}
	if cfg.Subject == "" {
		return nil, fmt.Errorf("jwt: subject is required")
	}
	cfg.applyDefaults()
	return &Minter{config: cfg, now: time.Now}, nil
}

// Apply sets Authorization: Bearer <token>, minting a fresh token when the
// cached one is absent or close to expiry.
func (m *Minter) Apply(req *http.Request) error {
	token, err := m.Token()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Token returns a signed token valid for at least refreshSkew.
func (m *Minter) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.token != "" && now.Before(m.expires.Add(-refreshSkew)) {
		return m.token, nil
	}

	expires := now.Add(m.config.TTL)
	claims := jwtlib.MapClaims{
		"sub": m.config.Subject,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}
	if m.config.Issuer != "" {
		claims["iss"] = m.config.Issuer
	}
	if m.config.TenantID != "" {
		claims["tenant_id"] = m.config.TenantID
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	m.token = signed
	m.expires = expires
	return signed, nil
}
