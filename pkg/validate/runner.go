package validate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/runestone-ai/runestone-go/pkg/debug"
	"github.com/runestone-ai/runestone-go/pkg/observability"
)

const defaultCheckTimeout = 30 * time.Second

// Options configure which checks a runner executes and how long each
// may take.
type Options struct {
	// Categories keeps only checks in these categories. Empty runs all.
	Categories []string

	// Checks keeps only checks with these names. Empty runs all.
	Checks []string

	// CheckTimeout bounds each individual check. Default 30s.
	CheckTimeout time.Duration

	// DisableInterop drops the openai-go SDK checks, for targets that
	// cannot be reached with a static API key.
	DisableInterop bool
}

// Runner executes the conformance suite against one target.
type Runner struct {
	env    *Env
	checks []Check
	opts   Options
}

// Check is one conformance probe.
type Check struct {
	Name     string
	Category string
	Run      func(ctx context.Context, env *Env) Outcome
}

// NewRunner creates a runner over the built-in suite.
func NewRunner(env *Env, opts Options) *Runner {
	if opts.CheckTimeout == 0 {
		opts.CheckTimeout = defaultCheckTimeout
	}
	if env.Log == nil {
		env.Log = slog.Default()
	}
	return &Runner{env: env, checks: Checks(), opts: opts}
}

// Run performs the preflight and the selected checks sequentially,
// collecting results into a Run. It returns an error only when the target
// is unreachable; check failures are data in the Run.
func (r *Runner) Run(ctx context.Context) (*Run, error) {
	if err := r.preflight(ctx); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.NewString(),
		BaseURL:   r.env.BaseURL,
		Model:     r.env.Model,
		StartedAt: time.Now().UTC(),
	}

	for _, check := range r.checks {
		if !r.selected(check) {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		debug.Log("harness", "running check", "check", check.Name)

		checkCtx, cancel := context.WithTimeout(ctx, r.opts.CheckTimeout)
		start := time.Now()
		outcome := runCheck(checkCtx, r.env, check)
		cancel()
		elapsed := time.Since(start)

		observability.ChecksTotal.WithLabelValues(check.Name, strings.ToLower(string(outcome.Status))).Inc()
		observability.CheckDuration.WithLabelValues(check.Name).Observe(elapsed.Seconds())

		r.env.Log.Info("check finished",
			"check", check.Name,
			"status", outcome.Status,
			"duration", elapsed.Round(time.Millisecond))

		run.Results = append(run.Results, Result{
			Name:     check.Name,
			Category: check.Category,
			Status:   outcome.Status,
			Details:  outcome.Details,
			Duration: elapsed,
		})

		switch outcome.Status {
		case StatusPass:
			run.Passed++
		case StatusWarn:
			run.Warned++
		case StatusFail:
			run.Failed++
		case StatusSkip:
			run.Skipped++
		}
	}

	run.Duration = time.Since(run.StartedAt)
	return run, nil
}

// preflight verifies the target answers its health endpoint. A degraded
// deployment (503 with a status body) still proceeds; an unreachable or
// non-conforming one aborts the run before any check executes.
func (r *Runner) preflight(ctx context.Context) error {
	status, err := r.env.Client.Health(ctx)
	if err != nil {
		return fmt.Errorf("target %s is not reachable: %w", r.env.BaseURL, err)
	}
	if !status.Healthy() {
		r.env.Log.Warn("target reports degraded health, continuing", "status", status.Status)
	}
	return nil
}

func (r *Runner) selected(check Check) bool {
	if r.opts.DisableInterop && check.Category == CategoryInterop {
		return false
	}
	if len(r.opts.Categories) > 0 && !slices.Contains(r.opts.Categories, check.Category) {
		return false
	}
	if len(r.opts.Checks) > 0 && !slices.Contains(r.opts.Checks, check.Name) {
		return false
	}
	return true
}

// runCheck isolates a check: a panic becomes a FAIL instead of killing
// the suite.
func runCheck(ctx context.Context, env *Env, check Check) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = Failf("check panicked: %v", rec)
		}
	}()
	return check.Run(ctx, env)
}
