// Package mcp exposes the conformance suite over the Model Context
// Protocol. Agents connect via streamable HTTP and trigger validation
// runs or browse persisted history through typed tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/runestone-ai/runestone-go/pkg/debug"
	"github.com/runestone-ai/runestone-go/pkg/runestone"
	"github.com/runestone-ai/runestone-go/pkg/storage"
	"github.com/runestone-ai/runestone-go/pkg/validate"
)

// defaultListLimit bounds list_runs when the caller does not ask for a
// specific number.
const defaultListLimit = 10

// suiteCategories are the valid values for the run_checks categories input.
var suiteCategories = map[string]bool{
	validate.CategoryCore:       true,
	validate.CategoryStreaming:  true,
	validate.CategoryModels:     true,
	validate.CategoryErrors:     true,
	validate.CategoryResilience: true,
	validate.CategoryInterop:    true,
}

// Config assembles the MCP surface.
type Config struct {
	// Env is the default target for run_checks; a call may override
	// base_url, api_key and model per invocation.
	Env *validate.Env

	// Options are applied to every run. A call's categories narrow them
	// further.
	Options validate.Options

	// Timeout bounds non-streaming requests of clients derived for
	// per-call target overrides. Zero uses the client default.
	Timeout time.Duration

	// Store persists finished runs and serves list_runs. Without it runs
	// are reported but not recorded, and list_runs returns a tool error.
	Store storage.RunStore

	// Log receives tool-level diagnostics. Defaults to slog.Default().
	Log *slog.Logger
}

// Server wires the run_checks and list_runs tools into an MCP server.
type Server struct {
	env     *validate.Env
	opts    validate.Options
	timeout time.Duration
	store   storage.RunStore
	log     *slog.Logger
	srv     *mcp.Server
}

// New creates the MCP server and registers its tools.
func New(cfg Config) *Server {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	s := &Server{
		env:     cfg.Env,
		opts:    cfg.Options,
		timeout: cfg.Timeout,
		store:   cfg.Store,
		log:     cfg.Log,
	}

	s.srv = mcp.NewServer(
		&mcp.Implementation{Name: "runestone-validate", Version: runestone.Version},
		nil,
	)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "run_checks",
		Description: "Run the Runestone conformance suite against a deployment and report PASS/WARN/FAIL per check",
	}, s.runChecks)

	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "list_runs",
		Description: "List persisted validation runs, newest first",
	}, s.listRuns)

	return s
}

// Handler returns the streamable HTTP handler for mounting, typically
// at /mcp.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.srv }, nil)
}

type runChecksInput struct {
	BaseURL    string   `json:"base_url,omitempty" jsonschema_description:"Deployment root to validate, e.g. https://runestone.example.com. Defaults to the configured target."`
	APIKey     string   `json:"api_key,omitempty" jsonschema_description:"Bearer key for the target. Defaults to the configured credentials."`
	Model      string   `json:"model,omitempty" jsonschema_description:"Model the checks exercise. Defaults to the configured model."`
	Categories []string `json:"categories,omitempty" jsonschema_description:"Check categories to run: core, streaming, models, errors, resilience, interop. Empty runs all."`
}

// runSummary is the structured view of a run returned to MCP callers.
type runSummary struct {
	ID        string `json:"id"`
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	StartedAt string `json:"started_at"`
	Duration  string `json:"duration"`
	Verdict   string `json:"verdict"`
	Passed    int    `json:"passed"`
	Warned    int    `json:"warned"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

func (s *Server) runChecks(ctx context.Context, _ *mcp.CallToolRequest, in runChecksInput) (*mcp.CallToolResult, runSummary, error) {
	for _, cat := range in.Categories {
		if !suiteCategories[cat] {
			return toolError(fmt.Sprintf("unknown category %q (valid: core, streaming, models, errors, resilience, interop)", cat)), runSummary{}, nil
		}
	}

	env := s.envFor(in)

	opts := s.opts
	if len(in.Categories) > 0 {
		opts.Categories = in.Categories
	}

	debug.Log("mcp", "run_checks invoked",
		"base_url", env.BaseURL,
		"model", env.Model,
		"categories", strings.Join(in.Categories, ","))

	run, err := validate.NewRunner(env, opts).Run(ctx)
	if err != nil {
		return toolError("validation aborted: " + err.Error()), runSummary{}, nil
	}

	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			s.log.Warn("persisting run failed", "run_id", run.ID, "error", err)
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: validate.ReportString(run)}},
	}, summarize(run), nil
}

type listRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Maximum number of runs to return, newest first. Default 10."`
}

type listRunsOutput struct {
	Runs []runSummary `json:"runs"`
}

func (s *Server) listRuns(ctx context.Context, _ *mcp.CallToolRequest, in listRunsInput) (*mcp.CallToolResult, listRunsOutput, error) {
	if s.store == nil {
		return toolError("run history is not configured: start the harness with history.store set to memory or postgres"), listRunsOutput{}, nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return toolError("listing runs: " + err.Error()), listRunsOutput{}, nil
	}

	out := listRunsOutput{Runs: make([]runSummary, 0, len(runs))}
	var b strings.Builder
	if len(runs) == 0 {
		b.WriteString("no validation runs recorded\n")
	}
	for _, run := range runs {
		sum := summarize(run)
		out.Runs = append(out.Runs, sum)
		fmt.Fprintf(&b, "%s  %s  %-4s  passed=%d warned=%d failed=%d skipped=%d  %s (%s)\n",
			sum.ID, sum.StartedAt, sum.Verdict,
			sum.Passed, sum.Warned, sum.Failed, sum.Skipped,
			sum.BaseURL, sum.Model)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: b.String()}},
	}, out, nil
}

// envFor derives the environment for one run_checks call. Overriding the
// key drops configured credentials so the caller-supplied key wins; a new
// client is built only when the target actually changes.
func (s *Server) envFor(in runChecksInput) *validate.Env {
	env := *s.env
	if env.Log == nil {
		env.Log = s.log
	}

	if in.Model != "" {
		env.Model = in.Model
	}
	if in.BaseURL == "" && in.APIKey == "" {
		return &env
	}

	if in.BaseURL != "" {
		env.BaseURL = strings.TrimRight(in.BaseURL, "/")
	}
	if in.APIKey != "" {
		env.APIKey = in.APIKey
		env.Credentials = nil
	}
	env.Client = runestone.New(runestone.Config{
		BaseURL:     env.BaseURL,
		APIKey:      env.APIKey,
		Credentials: env.Credentials,
		Timeout:     s.timeout,
	})
	return &env
}

func summarize(run *validate.Run) runSummary {
	return runSummary{
		ID:        run.ID,
		BaseURL:   run.BaseURL,
		Model:     run.Model,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Duration:  run.Duration.Round(time.Millisecond).String(),
		Verdict:   string(run.Verdict()),
		Passed:    run.Passed,
		Warned:    run.Warned,
		Failed:    run.Failed,
		Skipped:   run.Skipped,
	}
}

// toolError reports a tool-level failure without failing the protocol call.
func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
