// Command runestone-validate runs the conformance suite against an
// OpenAI-compatible Runestone deployment.
//
// Configuration layers: built-in defaults, an optional YAML file
// (-config flag, RUNESTONE_VALIDATE_CONFIG, or ./runestone-validate.yaml),
// environment overrides, then flags. A .env file in the working directory
// is loaded first.
//
//	RUNESTONE_API_URL   - target base URL
//	RUNESTONE_API_KEY   - target API key
//	RUNESTONE_MODEL     - model to exercise
//	RUNESTONE_DEBUG     - debug categories (client,stream,harness,...)
//	RUNESTONE_LOG_LEVEL - TRACE, DEBUG, INFO, WARN, ERROR
//
// With -mcp-listen the harness serves run_checks/list_runs as MCP tools
// over streamable HTTP instead of running once. Exit status is 1 when any
// check fails or the target is unreachable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/runestone-ai/runestone-go/pkg/auth"
	"github.com/runestone-ai/runestone-go/pkg/auth/jwt"
	"github.com/runestone-ai/runestone-go/pkg/config"
	"github.com/runestone-ai/runestone-go/pkg/debug"
	"github.com/runestone-ai/runestone-go/pkg/runestone"
	"github.com/runestone-ai/runestone-go/pkg/storage"
	"github.com/runestone-ai/runestone-go/pkg/storage/memory"
	"github.com/runestone-ai/runestone-go/pkg/storage/postgres"
	"github.com/runestone-ai/runestone-go/pkg/validate"
	valmcp "github.com/runestone-ai/runestone-go/pkg/validate/mcp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("validation failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is a convenience for local runs; real env wins.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "", "path to YAML config (default: $RUNESTONE_VALIDATE_CONFIG or ./runestone-validate.yaml)")
		baseURL    = flag.String("url", "", "target base URL (overrides config)")
		apiKey     = flag.String("key", "", "target API key (overrides config)")
		model      = flag.String("model", "", "model to exercise (overrides config)")
		categories = flag.String("categories", "", "comma-separated check categories to run")
		checks     = flag.String("checks", "", "comma-separated check names to run")
		noInterop  = flag.Bool("no-interop", false, "skip openai-go SDK interop checks")
		mcpListen  = flag.String("mcp-listen", "", "serve the suite as MCP tools on this address instead of running once")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// Flags override everything.
	if *baseURL != "" {
		cfg.Target.BaseURL = *baseURL
	}
	if *apiKey != "" {
		cfg.Target.APIKey = *apiKey
	}
	if *model != "" {
		cfg.Target.Model = *model
	}
	if *categories != "" {
		cfg.Suite.Categories = splitList(*categories)
	}
	if *checks != "" {
		cfg.Suite.Checks = splitList(*checks)
	}
	if *noInterop {
		off := false
		cfg.Suite.Interop = &off
	}
	if *mcpListen != "" {
		cfg.MCP.Listen = *mcpListen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	debug.Init(cfg.Log.Debug, cfg.Log.Level, cfg.Log.Format)

	creds, err := buildCredentials(cfg)
	if err != nil {
		return err
	}

	client := runestone.New(runestone.Config{
		BaseURL:     cfg.Target.BaseURL,
		APIKey:      cfg.Target.APIKey,
		Credentials: creds,
		Timeout:     cfg.Target.Timeout,
	})

	env := &validate.Env{
		Client:      client,
		BaseURL:     client.BaseURL(),
		APIKey:      cfg.Target.APIKey,
		Credentials: creds,
		Model:       cfg.Target.Model,
		Log:         slog.Default(),
	}

	opts := validate.Options{
		Categories:     cfg.Suite.Categories,
		Checks:         cfg.Suite.Checks,
		CheckTimeout:   cfg.Suite.CheckTimeout,
		DisableInterop: !cfg.Suite.InteropEnabled(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	if cfg.MCP.Listen != "" {
		return serveMCP(ctx, cfg, env, opts, store)
	}

	runner := validate.NewRunner(env, opts)
	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if err := validate.Report(os.Stdout, result); err != nil {
		return err
	}

	if store != nil {
		if err := store.SaveRun(ctx, result); err != nil {
			slog.Warn("persisting run failed", "run_id", result.ID, "error", err)
		} else {
			slog.Info("run recorded", "run_id", result.ID, "store", cfg.History.Store)
		}
	}

	if result.Verdict() == validate.StatusFail {
		return fmt.Errorf("%d of %d checks failed", result.Failed, len(result.Results))
	}
	return nil
}

// buildCredentials turns the auth section into client credentials.
// mode=apikey returns nil: the client's APIKey field covers it.
func buildCredentials(cfg *config.Config) (auth.Credentials, error) {
	switch cfg.Auth.Mode {
	case "jwt":
		minter, err := jwt.NewMinter(jwt.Config{
			Secret:   cfg.Auth.JWT.Secret,
			Issuer:   cfg.Auth.JWT.Issuer,
			Subject:  cfg.Auth.JWT.Subject,
			TenantID: cfg.Auth.JWT.TenantID,
			TTL:      cfg.Auth.JWT.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("configuring jwt auth: %w", err)
		}
		return minter, nil
	case "none":
		// Explicit: no Authorization header even when an api_key is set.
		return auth.None(), nil
	default:
		return nil, nil
	}
}

// openStore opens the configured run-history backend. Returns nil when
// history is disabled.
func openStore(ctx context.Context, cfg *config.Config) (storage.RunStore, error) {
	switch cfg.History.Store {
	case "memory":
		return memory.New(cfg.History.Limit), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			URL:            cfg.History.Postgres.URL,
			MaxConns:       cfg.History.Postgres.MaxConns,
			MinConns:       cfg.History.Postgres.MinConns,
			MigrateOnStart: true,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres history: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// serveMCP exposes the suite as MCP tools over streamable HTTP until the
// context is cancelled.
func serveMCP(ctx context.Context, cfg *config.Config, env *validate.Env, opts validate.Options, store storage.RunStore) error {
	srv := valmcp.New(valmcp.Config{
		Env:     env,
		Options: opts,
		Timeout: cfg.Target.Timeout,
		Store:   store,
		Log:     slog.Default(),
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.MCP.Path, srv.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	httpSrv := &http.Server{Addr: cfg.MCP.Listen, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mcp server starting",
			"addr", cfg.MCP.Listen,
			"path", cfg.MCP.Path,
			"target", env.BaseURL,
			"history", cfg.History.Store)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
