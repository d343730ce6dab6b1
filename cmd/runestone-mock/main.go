// Command runestone-mock serves the deterministic mock deployment used
// for conformance testing. It speaks the OpenAI-compatible surface with
// canned content and optional fault injection, so client behavior can be
// exercised without an inference backend.
//
// Configuration via environment variables:
//
//	RUNESTONE_MOCK_PORT            - listen port (default: 4001)
//	RUNESTONE_MOCK_API_KEYS        - comma-separated accepted keys (empty: auth off)
//	RUNESTONE_MOCK_RPM             - per-key requests per minute (0: unlimited)
//	RUNESTONE_MOCK_LATENCY         - fixed delay per /v1 response (e.g. 50ms)
//	RUNESTONE_MOCK_STREAM_DELAY    - delay between stream frames
//	RUNESTONE_MOCK_MALFORMED_FRAME - "true" injects one garbage frame per stream
//	RUNESTONE_MOCK_DROP_AFTER      - abort streams after N data frames
//
// Prometheus metrics are exposed on /metrics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runestone-ai/runestone-go/pkg/mockserver"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mock server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is a convenience for local runs; real env wins.
	_ = godotenv.Load()

	port := envOrDefault("RUNESTONE_MOCK_PORT", "4001")

	cfg := mockserver.Config{}
	if keys := os.Getenv("RUNESTONE_MOCK_API_KEYS"); keys != "" {
		cfg.APIKeys = splitList(keys)
	}
	var err error
	if cfg.RequestsPerMinute, err = envInt("RUNESTONE_MOCK_RPM"); err != nil {
		return err
	}
	if cfg.Latency, err = envDuration("RUNESTONE_MOCK_LATENCY"); err != nil {
		return err
	}
	if cfg.StreamDelay, err = envDuration("RUNESTONE_MOCK_STREAM_DELAY"); err != nil {
		return err
	}
	cfg.MalformedFrame = os.Getenv("RUNESTONE_MOCK_MALFORMED_FRAME") == "true"
	if cfg.DropAfterChunks, err = envInt("RUNESTONE_MOCK_DROP_AFTER"); err != nil {
		return err
	}

	mock := mockserver.New(cfg)

	mux := http.NewServeMux()
	mux.Handle("/", mock.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Addr: ":" + port, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("mock server starting",
			"port", port,
			"auth", len(cfg.APIKeys) > 0,
			"rpm", cfg.RequestsPerMinute,
			"latency", cfg.Latency,
			"stream_delay", cfg.StreamDelay,
			"malformed_frame", cfg.MalformedFrame,
			"drop_after", cfg.DropAfterChunks)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func envInt(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
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
