// Package mockserver is a deterministic OpenAI-compatible fixture for
// conformance checks and SDK tests. It is not an inference server: replies
// are canned, embeddings are hash-derived and usage is word-counted, so
// every response is reproducible.
//
// Fault injection knobs on Config (auth keys, request budgets, chunk
// pacing, malformed frames, connection drops) let a test provoke each
// failure mode a client has to survive.
package mockserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/runestone-ai/runestone-go/pkg/api"
	"github.com/runestone-ai/runestone-go/pkg/debug"
	"github.com/runestone-ai/runestone-go/pkg/observability"
)

// Config controls the fixture. The zero value serves unauthenticated,
// unthrottled, well-formed responses with no artificial delay.
type Config struct {
	// APIKeys enables bearer auth when non-empty. Requests to /v1 routes
	// without a listed key are rejected with 401.
	APIKeys []string

	// RequestsPerMinute caps /v1 requests per API key inside a fixed
	// one-minute window. 0 disables throttling. When auth is off all
	// callers share one anonymous budget.
	RequestsPerMinute int

	// Latency delays every /v1 response. Health probes stay immediate.
	Latency time.Duration

	// StreamDelay paces successive frames within a stream.
	StreamDelay time.Duration

	// MalformedFrame injects one non-JSON data frame into each stream.
	MalformedFrame bool

	// DropAfterChunks aborts the connection after that many data frames,
	// without a terminal sentinel. 0 disables.
	DropAfterChunks int
}

// Server serves the mock API. Construct with New and mount Handler.
type Server struct {
	cfg     Config
	keys    map[string]bool
	limiter *windowLimiter
	mux     *http.ServeMux
}

// New creates a mock server with the given behavior.
func New(cfg Config) *Server {
	s := &Server{
		cfg:  cfg,
		keys: make(map[string]bool, len(cfg.APIKeys)),
	}
	for _, k := range cfg.APIKeys {
		s.keys[k] = true
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = newWindowLimiter(cfg.RequestsPerMinute, time.Minute)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST /v1/chat/stream", s.handleChatStream)
	mux.HandleFunc("POST /v1/completions", s.handleCompletions)
	mux.HandleFunc("POST /v1/embeddings", s.handleEmbeddings)
	mux.HandleFunc("GET /v1/models", s.handleModels)
	mux.HandleFunc("GET /v1/models/{id}", s.handleModel)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/live", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleHealth)
	s.mux = mux

	return s
}

// Handler returns the complete handler chain: request metrics outermost,
// then auth and throttling guarding the /v1 surface.
func (s *Server) Handler() http.Handler {
	return observability.MetricsMiddleware(s.guard(s.mux))
}

// guard enforces bearer auth, the request budget and the latency knob on
// API routes. Health probes pass through untouched.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		key, ok := s.authenticate(r)
		if !ok {
			debug.Log("mock", "rejecting request", "path", r.URL.Path, "reason", "bad credentials")
			writeError(w, http.StatusUnauthorized, "invalid API key", "authentication_error", "invalid_api_key")
			return
		}

		if s.limiter != nil && !s.limiter.allow(key) {
			debug.Log("mock", "rejecting request", "path", r.URL.Path, "reason", "over budget")
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, retry later", "rate_limit_error", "rate_limit_exceeded")
			return
		}

		if s.cfg.Latency > 0 {
			select {
			case <-time.After(s.cfg.Latency):
			case <-r.Context().Done():
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the caller's throttle key. With auth disabled all
// callers share the anonymous budget.
func (s *Server) authenticate(r *http.Request) (string, bool) {
	if len(s.keys) == 0 {
		return "anonymous", true
	}

	key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !s.keys[key] {
		return "", false
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes an OpenAI-style error envelope. Pass a nil code to
// omit the code field.
func writeError(w http.ResponseWriter, status int, message, errType string, code any) {
	writeJSON(w, status, api.ErrorResponse{
		Error: api.ErrorDetail{Message: message, Type: errType, Code: code},
	})
}
