// Package auth provides credential sources for outgoing Runestone requests.
//
// A Credentials implementation injects authentication material into each
// HTTP request before it is sent. The client applies credentials to every
// call, including streaming ones. Static API keys cover the common case;
// pkg/auth/jwt mints short-lived tokens for JWT-fronted deployments.
package auth

import "net/http"

// Credentials injects authentication material into an outgoing request.
// Apply is called once per request and must be safe for concurrent use.
type Credentials interface {
	Apply(req *http.Request) error
}

// APIKey returns Credentials that set a static bearer token:
// Authorization: Bearer <key>.
func APIKey(key string) Credentials {
	return apiKey(key)
}

type apiKey string

func (k apiKey) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+string(k))
	return nil
}

// None returns Credentials that leave the request unauthenticated, for
// deployments with auth disabled.
func None() Credentials {
	return noop{}
}

type noop struct{}

func (noop) Apply(*http.Request) error { return nil }
