package runestone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/runestone-ai/runestone-go/pkg/api"
	"github.com/runestone-ai/runestone-go/pkg/auth"
	"github.com/runestone-ai/runestone-go/pkg/debug"
	"github.com/runestone-ai/runestone-go/pkg/observability"
)

// Version is the SDK version reported in the User-Agent header.
const Version = "0.3.0"

// DefaultBaseURL is the local Runestone deployment root.
const DefaultBaseURL = "http://localhost:4001"

const defaultTimeout = 120 * time.Second

// Config holds client construction options.
type Config struct {
	// BaseURL is the deployment root without the /v1 suffix
	// (e.g. https://runestone.example.com). Default: DefaultBaseURL.
	BaseURL string

	// APIKey is used as a static bearer token when Credentials is nil.
	APIKey string

	// Credentials overrides APIKey with a custom source, e.g. a jwt.Minter.
	Credentials auth.Credentials

	// Timeout bounds non-streaming requests. Default: 120s. Streaming
	// requests are bounded by their context instead.
	Timeout time.Duration

	// HTTPClient optionally supplies the underlying client (custom
	// transports, proxies, test doubles). Its timeout is overridden by
	// Timeout for non-streaming calls.
	HTTPClient *http.Client

	// UserAgent overrides the default "runestone-go/<version>" header.
	UserAgent string
}

// Client is a Runestone API client. It is safe for concurrent use.
type Client struct {
	baseURL string
	creds   auth.Credentials
	http    *http.Client
	stream  *http.Client
	ua      string
}

// New creates a client. Zero-value config fields get defaults.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	creds := cfg.Credentials
	if creds == nil {
		if cfg.APIKey != "" {
			creds = auth.APIKey(cfg.APIKey)
		} else {
			creds = auth.None()
		}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "runestone-go/" + Version
	}

	var transport http.RoundTripper
	if cfg.HTTPClient != nil {
		transport = cfg.HTTPClient.Transport
	}

	return &Client{
		baseURL: baseURL,
		creds:   creds,
		http:    &http.Client{Transport: transport, Timeout: timeout},
		// Streams can legitimately outlive any fixed timeout; their
		// lifetime is controlled by the request context.
		stream: &http.Client{Transport: transport},
		ua:     ua,
	}
}

// FromEnv creates a client from RUNESTONE_API_URL and RUNESTONE_API_KEY.
func FromEnv() *Client {
	return New(Config{
		BaseURL: os.Getenv("RUNESTONE_API_URL"),
		APIKey:  os.Getenv("RUNESTONE_API_KEY"),
	})
}

// BaseURL returns the normalized deployment root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateChatCompletion performs a non-streaming chat completion.
func (c *Client) CreateChatCompletion(ctx context.Context, req *api.ChatCompletionRequest) (*api.ChatCompletionResponse, error) {
	reqCopy := *req
	reqCopy.Stream = false

	var out api.ChatCompletionResponse
	if err := c.do(ctx, "chat_completions", http.MethodPost, "/v1/chat/completions", &reqCopy, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCompletion performs a legacy text completion.
func (c *Client) CreateCompletion(ctx context.Context, req *api.CompletionRequest) (*api.CompletionResponse, error) {
	var out api.CompletionResponse
	if err := c.do(ctx, "completions", http.MethodPost, "/v1/completions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateEmbeddings computes embeddings for the given input.
func (c *Client) CreateEmbeddings(ctx context.Context, req *api.EmbeddingsRequest) (*api.EmbeddingsResponse, error) {
	var out api.EmbeddingsResponse
	if err := c.do(ctx, "embeddings", http.MethodPost, "/v1/embeddings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListModels returns the models the deployment serves.
func (c *Client) ListModels(ctx context.Context) (*api.ModelList, error) {
	var out api.ModelList
	if err := c.do(ctx, "models", http.MethodGet, "/v1/models", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetModel retrieves a single model by ID.
func (c *Client) GetModel(ctx context.Context, id string) (*api.Model, error) {
	var out api.Model
	if err := c.do(ctx, "models", http.MethodGet, "/v1/models/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the deployment's health status. A 503 still carries a
// status body: degraded is data, not an error.
func (c *Client) Health(ctx context.Context) (*api.HealthStatus, error) {
	return c.health(ctx, "/health")
}

// Readiness returns the readiness probe status, with the same 200/503
// tolerance as Health.
func (c *Client) Readiness(ctx context.Context) (*api.HealthStatus, error) {
	return c.health(ctx, "/health/ready")
}

// Liveness checks the liveness probe. Any non-2xx status is an error.
func (c *Client) Liveness(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health/live", nil, nil)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	c.stream.CloseIdleConnections()
	return nil
}

func (c *Client) health(ctx context.Context, path string) (*api.HealthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.ClientRequestsTotal.WithLabelValues("health", "error").Inc()
		return nil, mapNetworkError("health check", err)
	}
	defer resp.Body.Close()
	observability.ClientRequestsTotal.WithLabelValues("health", observability.StatusClass(resp.StatusCode)).Inc()

	// Health endpoints report degraded deployments with 503 plus a body.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, mapHTTPError(resp)
	}

	var status api.HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}
	return &status, nil
}

// newRequest builds a request with credentials, content type and UA applied.
func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
		debug.Raw("client", "> "+method+" "+path+"\n"+string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.ua)

	if err := c.creds.Apply(req); err != nil {
		return nil, fmt.Errorf("applying credentials: %w", err)
	}
	return req, nil
}

// do sends a request and decodes the JSON response into out (skipped when
// out is nil). Non-2xx statuses map to the typed error taxonomy.
func (c *Client) do(ctx context.Context, endpoint, method, path string, payload, out any) error {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	debug.Log("client", "request", "method", method, "path", path)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.ClientRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return mapNetworkError("send request", err)
	}
	defer resp.Body.Close()

	observability.ClientRequestsTotal.WithLabelValues(endpoint, observability.StatusClass(resp.StatusCode)).Inc()
	observability.ClientRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	debug.Log("client", "response", "path", path, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapHTTPError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
