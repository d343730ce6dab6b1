package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/runestone-ai/runestone-go/pkg/mockserver"
	"github.com/runestone-ai/runestone-go/pkg/runestone"
	"github.com/runestone-ai/runestone-go/pkg/storage"
	"github.com/runestone-ai/runestone-go/pkg/storage/memory"
	"github.com/runestone-ai/runestone-go/pkg/validate"
)

// setupSession starts an in-process mock deployment, builds the MCP
// surface over it, and connects a client via in-memory transports.
func setupSession(t *testing.T, store storage.RunStore) *mcp.ClientSession {
	t.Helper()

	backend := httptest.NewServer(mockserver.New(mockserver.Config{}).Handler())
	t.Cleanup(backend.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := &validate.Env{
		Client:  runestone.New(runestone.Config{BaseURL: backend.URL}),
		BaseURL: backend.URL,
		Model:   "runestone-mock",
		Log:     log,
	}

	srv := New(Config{
		Env:     env,
		Options: validate.Options{DisableInterop: true},
		Store:   store,
		Log:     log,
	})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx := context.Background()
	go func() {
		_ = srv.srv.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
	})

	return session
}

// textContent joins the text blocks of a tool result.
func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// decodeStructured reads a tool result's structured content into T.
func decodeStructured[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	data, err := json.Marshal(result.StructuredContent)
	if err != nil {
		t.Fatalf("marshaling structured content: %v", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshaling structured content: %v", err)
	}
	return out
}

func TestRunChecksTool(t *testing.T) {
	session := setupSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_checks",
		Arguments: map[string]any{"categories": []string{"core"}},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("run_checks returned tool error: %s", textContent(t, result))
	}

	report := textContent(t, result)
	if !strings.Contains(report, "basic_chat_completion") {
		t.Errorf("report missing basic_chat_completion:\n%s", report)
	}
	if !strings.Contains(report, "PASS") {
		t.Errorf("report has no PASS lines:\n%s", report)
	}

	sum := decodeStructured[runSummary](t, result)
	if sum.ID == "" {
		t.Error("summary ID is empty")
	}
	if sum.Verdict != "PASS" {
		t.Errorf("Verdict = %q, want PASS", sum.Verdict)
	}
	if sum.Passed != 3 {
		t.Errorf("Passed = %d, want 3 core checks", sum.Passed)
	}
	if sum.Failed != 0 {
		t.Errorf("Failed = %d, want 0", sum.Failed)
	}
	if sum.Model != "runestone-mock" {
		t.Errorf("Model = %q, want runestone-mock", sum.Model)
	}
}

func TestRunChecksPersistsRun(t *testing.T) {
	store := memory.New(0)
	session := setupSession(t, store)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_checks",
		Arguments: map[string]any{"categories": []string{"core"}},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("run_checks returned tool error: %s", textContent(t, result))
	}

	runs, err := store.ListRuns(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}

	sum := decodeStructured[runSummary](t, result)
	if runs[0].ID != sum.ID {
		t.Errorf("stored run ID = %q, summary ID = %q", runs[0].ID, sum.ID)
	}
}

func TestRunChecksUnknownCategory(t *testing.T) {
	session := setupSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "run_checks",
		Arguments: map[string]any{"categories": []string{"bogus"}},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unknown category")
	}
	if msg := textContent(t, result); !strings.Contains(msg, `unknown category "bogus"`) {
		t.Errorf("error text = %q", msg)
	}
}

func TestRunChecksUnreachableTarget(t *testing.T) {
	session := setupSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "run_checks",
		Arguments: map[string]any{
			"base_url":   "http://127.0.0.1:1",
			"categories": []string{"core"},
		},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for unreachable target")
	}
	if msg := textContent(t, result); !strings.Contains(msg, "validation aborted") {
		t.Errorf("error text = %q", msg)
	}
}

func TestRunChecksTargetOverride(t *testing.T) {
	// Second deployment enforcing auth; the call must supply its key.
	guarded := httptest.NewServer(mockserver.New(mockserver.Config{
		APIKeys: []string{"sk-guarded"},
	}).Handler())
	t.Cleanup(guarded.Close)

	session := setupSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "run_checks",
		Arguments: map[string]any{
			"base_url":   guarded.URL,
			"api_key":    "sk-guarded",
			"model":      "override-model",
			"categories": []string{"core"},
		},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("run_checks returned tool error: %s", textContent(t, result))
	}

	sum := decodeStructured[runSummary](t, result)
	if sum.BaseURL != guarded.URL {
		t.Errorf("BaseURL = %q, want %q", sum.BaseURL, guarded.URL)
	}
	if sum.Model != "override-model" {
		t.Errorf("Model = %q, want override-model", sum.Model)
	}
	if sum.Verdict != "PASS" {
		t.Errorf("Verdict = %q, want PASS", sum.Verdict)
	}
}

func TestListRunsTool(t *testing.T) {
	store := memory.New(0)
	session := setupSession(t, store)

	ctx := context.Background()
	for range 2 {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{
			Name:      "run_checks",
			Arguments: map[string]any{"categories": []string{"core"}},
		})
		if err != nil {
			t.Fatalf("CallTool failed: %v", err)
		}
		if result.IsError {
			t.Fatalf("run_checks returned tool error: %s", textContent(t, result))
		}
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_runs",
		Arguments: map[string]any{"limit": 5},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("list_runs returned tool error: %s", textContent(t, result))
	}

	out := decodeStructured[listRunsOutput](t, result)
	if len(out.Runs) != 2 {
		t.Fatalf("len(Runs) = %d, want 2", len(out.Runs))
	}
	for i, sum := range out.Runs {
		if sum.Verdict != "PASS" {
			t.Errorf("Runs[%d].Verdict = %q, want PASS", i, sum.Verdict)
		}
	}

	if text := textContent(t, result); !strings.Contains(text, out.Runs[0].ID) {
		t.Errorf("text listing missing newest run ID:\n%s", text)
	}
}

func TestListRunsWithoutStore(t *testing.T) {
	session := setupSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "list_runs",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error without a configured store")
	}
	if msg := textContent(t, result); !strings.Contains(msg, "not configured") {
		t.Errorf("error text = %q", msg)
	}
}
