// Package validate runs conformance checks against a live
// OpenAI-compatible deployment. A check is a named probe that exercises
// one behavior a client depends on: request/response shape, streaming
// framing, error taxonomy, throttling, or interoperability with the
// official OpenAI Go SDK.
//
// Checks report outcomes rather than returning errors: a misbehaving
// target is the finding, not a reason to stop the suite.
package validate

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/runestone-ai/runestone-go/pkg/auth"
	"github.com/runestone-ai/runestone-go/pkg/runestone"
)

// Status classifies a check outcome.
type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Check categories, used for suite filtering.
const (
	CategoryCore       = "core"
	CategoryStreaming  = "streaming"
	CategoryModels     = "models"
	CategoryErrors     = "errors"
	CategoryResilience = "resilience"
	CategoryInterop    = "interop"
)

// Outcome is what a single check concluded.
type Outcome struct {
	Status  Status
	Details string
}

func Passf(format string, args ...any) Outcome {
	return Outcome{Status: StatusPass, Details: fmt.Sprintf(format, args...)}
}

func Warnf(format string, args ...any) Outcome {
	return Outcome{Status: StatusWarn, Details: fmt.Sprintf(format, args...)}
}

func Failf(format string, args ...any) Outcome {
	return Outcome{Status: StatusFail, Details: fmt.Sprintf(format, args...)}
}

func Skipf(format string, args ...any) Outcome {
	return Outcome{Status: StatusSkip, Details: fmt.Sprintf(format, args...)}
}

// Env is the shared context a check runs in. Client is the primary
// connection; BaseURL, APIKey and Credentials let checks derive their own
// clients (bogus keys, short timeouts) against the same target.
// Credentials is set for non-key auth modes and takes precedence when
// deriving clients.
type Env struct {
	Client      *runestone.Client
	BaseURL     string
	APIKey      string
	Credentials auth.Credentials
	Model       string
	Log         *slog.Logger
}

// Result is a check outcome plus timing, as recorded in a run.
type Result struct {
	Name     string        `json:"name"`
	Category string        `json:"category"`
	Status   Status        `json:"status"`
	Details  string        `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Run is one full suite execution against a target.
type Run struct {
	ID        string        `json:"id"`
	BaseURL   string        `json:"base_url"`
	Model     string        `json:"model"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Results   []Result      `json:"results"`
	Passed    int           `json:"passed"`
	Warned    int           `json:"warned"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
}

// Verdict reduces the run to a single status: FAIL if anything failed,
// WARN if anything warned, PASS otherwise.
func (r *Run) Verdict() Status {
	switch {
	case r.Failed > 0:
		return StatusFail
	case r.Warned > 0:
		return StatusWarn
	default:
		return StatusPass
	}
}
