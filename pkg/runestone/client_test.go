package runestone

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/runestone-ai/runestone-go/pkg/api"
)

func TestClient_CreateChatCompletion(t *testing.T) {
	chatResp := api.ChatCompletionResponse{
		ID:     "chatcmpl-test-1",
		Object: api.ObjectChatCompletion,
		Model:  "runestone-small",
		Choices: []api.ChatChoice{
			{
				Index:        0,
				Message:      api.ChatMessage{Role: api.RoleAssistant, Content: "Hello! How can I help?"},
				FinishReason: "stop",
			},
		},
		Usage: &api.Usage{PromptTokens: 12, CompletionTokens: 9, TotalTokens: 21},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req api.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "runestone-small" {
			t.Errorf("expected model %q, got %q", "runestone-small", req.Model)
		}
		if req.Stream {
			t.Error("expected stream=false for non-streaming call")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResp)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	resp, err := client.CreateChatCompletion(context.Background(), &api.ChatCompletionRequest{
		Model: "runestone-small",
		Messages: []api.ChatMessage{
			{Role: api.RoleUser, Content: "Hello"},
		},
		// A caller-set stream flag must not leak into the wire request.
		Stream: true,
	})
	if err != nil {
		t.Fatalf("CreateChatCompletion failed: %v", err)
	}

	if resp.ID != "chatcmpl-test-1" {
		t.Errorf("expected id %q, got %q", "chatcmpl-test-1", resp.ID)
	}
	if len(resp.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(resp.Choices))
	}
	if resp.Choices[0].Message.Content != "Hello! How can I help?" {
		t.Errorf("unexpected content %q", resp.Choices[0].Message.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 21 {
		t.Errorf("expected usage total_tokens 21, got %+v", resp.Usage)
	}
}

func TestClient_CreateChatCompletion_AuthenticationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(api.ErrorResponse{
			Error: api.ErrorDetail{Message: "invalid API key", Type: "authentication_error"},
		})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "wrong"})
	defer client.Close()

	_, err := client.CreateChatCompletion(context.Background(), &api.ChatCompletionRequest{
		Model:    "m",
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}

	var authErr *api.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *api.AuthenticationError, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", authErr.StatusCode)
	}
	if authErr.Message != "invalid API key" {
		t.Errorf("message = %q, want %q", authErr.Message, "invalid API key")
	}
}

func TestClient_CreateChatCompletion_RateLimitError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "key"})
	defer client.Close()

	_, err := client.CreateChatCompletion(context.Background(), &api.ChatCompletionRequest{
		Model:    "m",
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: "Hi"}},
	})
	var rlErr *api.RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected *api.RateLimitError, got %T: %v", err, err)
	}
	if rlErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rlErr.StatusCode)
	}
	// No body on the response, so the default message applies.
	if rlErr.Message != "rate limit exceeded" {
		t.Errorf("message = %q, want %q", rlErr.Message, "rate limit exceeded")
	}
}

func TestClient_CreateChatCompletion_RequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(api.ErrorResponse{
			Error: api.ErrorDetail{Message: "model is required", Type: "invalid_request_error", Param: "model"},
		})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	_, err := client.CreateChatCompletion(context.Background(), &api.ChatCompletionRequest{
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: "Hi"}},
	})
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *api.RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", reqErr.StatusCode)
	}
	if reqErr.Message != "model is required" {
		t.Errorf("message = %q, want %q", reqErr.Message, "model is required")
	}
	if reqErr.Body == "" {
		t.Error("expected raw body to be preserved")
	}
}

func TestClient_CreateChatCompletion_ConnectionRefused(t *testing.T) {
	// Point at a URL that will refuse connections.
	client := New(Config{BaseURL: "http://127.0.0.1:1"})
	defer client.Close()

	_, err := client.CreateChatCompletion(context.Background(), &api.ChatCompletionRequest{
		Model:    "m",
		Messages: []api.ChatMessage{{Role: api.RoleUser, Content: "Hi"}},
	})
	if err == nil {
		t.Fatal("expected error for connection refused")
	}

	var transErr *api.TransportError
	if !errors.As(err, &transErr) {
		t.Fatalf("expected *api.TransportError, got %T: %v", err, err)
	}
	if transErr.Err == nil {
		t.Error("expected underlying cause to be preserved")
	}
}

func TestClient_AuthorizationHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer test-key-123" {
			t.Errorf("expected Authorization %q, got %q", "Bearer test-key-123", auth)
		}
		ua := r.Header.Get("User-Agent")
		if ua != "runestone-go/"+Version {
			t.Errorf("expected User-Agent %q, got %q", "runestone-go/"+Version, ua)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.ModelList{Object: api.ObjectList})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "test-key-123"})
	defer client.Close()

	if _, err := client.ListModels(context.Background()); err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
}

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v1/models" {
			t.Errorf("expected path /v1/models, got %s", r.URL.Path)
		}

		resp := api.ModelList{
			Object: api.ObjectList,
			Data: []api.Model{
				{ID: "runestone-small", Object: api.ObjectModel, OwnedBy: "runestone"},
				{ID: "runestone-large", Object: api.ObjectModel, OwnedBy: "runestone"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models.Data) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models.Data))
	}
	if models.Data[0].ID != "runestone-small" {
		t.Errorf("model[0].ID = %q, want %q", models.Data[0].ID, "runestone-small")
	}
}

func TestClient_GetModel_EscapesID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Provider-prefixed IDs contain a slash that must arrive escaped.
		if r.URL.EscapedPath() != "/v1/models/meta%2Fllama-3-8b" {
			t.Errorf("unexpected escaped path %s", r.URL.EscapedPath())
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.Model{ID: "meta/llama-3-8b", Object: api.ObjectModel})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	model, err := client.GetModel(context.Background(), "meta/llama-3-8b")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if model.ID != "meta/llama-3-8b" {
		t.Errorf("model.ID = %q, want %q", model.ID, "meta/llama-3-8b")
	}
}

func TestClient_CreateCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/completions" {
			t.Errorf("expected path /v1/completions, got %s", r.URL.Path)
		}
		var req api.CompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Prompt != "Once upon a time" {
			t.Errorf("prompt = %q, want %q", req.Prompt, "Once upon a time")
		}

		resp := api.CompletionResponse{
			ID:     "cmpl-1",
			Object: api.ObjectTextCompletion,
			Model:  "m",
			Choices: []api.CompletionChoice{
				{Text: " there was a gateway.", Index: 0, FinishReason: "stop"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	resp, err := client.CreateCompletion(context.Background(), &api.CompletionRequest{
		Model:  "m",
		Prompt: "Once upon a time",
	})
	if err != nil {
		t.Fatalf("CreateCompletion failed: %v", err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].Text != " there was a gateway." {
		t.Errorf("unexpected choices %+v", resp.Choices)
	}
}

func TestClient_CreateEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("expected path /v1/embeddings, got %s", r.URL.Path)
		}

		resp := api.EmbeddingsResponse{
			Object: api.ObjectList,
			Model:  "embed-model",
			Data: []api.Embedding{
				{Object: api.ObjectEmbedding, Index: 0, Embedding: []float64{0.1, 0.2, 0.3}},
			},
			Usage: &api.Usage{PromptTokens: 4, TotalTokens: 4},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	resp, err := client.CreateEmbeddings(context.Background(), &api.EmbeddingsRequest{
		Model: "embed-model",
		Input: "hello world",
	})
	if err != nil {
		t.Fatalf("CreateEmbeddings failed: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 embedding, got %d", len(resp.Data))
	}
	if len(resp.Data[0].Embedding) != 3 {
		t.Errorf("expected 3 dimensions, got %d", len(resp.Data[0].Embedding))
	}
}

func TestClient_Health_Degraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("expected path /health, got %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(api.HealthStatus{Status: "degraded", Version: "0.9.1"})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	// A 503 carries a status body: degraded is data, not an error.
	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if status.Healthy() {
		t.Error("expected degraded status to report unhealthy")
	}
	if status.Version != "0.9.1" {
		t.Errorf("version = %q, want %q", status.Version, "0.9.1")
	}
}

func TestClient_Health_Ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(api.HealthStatus{Status: "ok"})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	status, err := client.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !status.Healthy() {
		t.Errorf("expected healthy, got status %q", status.Status)
	}
}

func TestClient_Liveness(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/live" {
			t.Errorf("expected path /health/live, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	defer client.Close()

	if err := client.Liveness(context.Background()); err != nil {
		t.Fatalf("Liveness failed: %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	client := New(Config{})
	defer client.Close()

	if client.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL(), DefaultBaseURL)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	client := New(Config{BaseURL: "http://example.com/"})
	defer client.Close()

	if client.BaseURL() != "http://example.com" {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL(), "http://example.com")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("RUNESTONE_API_URL", "http://gateway.internal:4001")
	t.Setenv("RUNESTONE_API_KEY", "env-key")

	client := FromEnv()
	defer client.Close()

	if client.BaseURL() != "http://gateway.internal:4001" {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL(), "http://gateway.internal:4001")
	}
}
