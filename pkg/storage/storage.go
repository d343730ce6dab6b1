// Package storage defines persistence for validation run history.
//
// A RunStore keeps the outcome of past suite executions so regressions in
// a deployment can be traced across runs. Implementations live in the
// memory and postgres subpackages; pkg/config selects one at startup.
package storage

import (
	"context"
	"errors"

	"github.com/runestone-ai/runestone-go/pkg/validate"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when no run with the given ID exists.
	ErrNotFound = errors.New("run not found")

	// ErrConflict is returned when a run with the given ID was already saved.
	ErrConflict = errors.New("run already exists")
)

// RunStore persists validation runs.
type RunStore interface {
	// SaveRun persists a completed run. Run IDs are unique; saving the
	// same ID twice returns ErrConflict.
	SaveRun(ctx context.Context, run *validate.Run) error

	// GetRun retrieves a run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*validate.Run, error)

	// ListRuns returns up to limit runs, newest first. limit <= 0 applies
	// the implementation's default.
	ListRuns(ctx context.Context, limit int) ([]*validate.Run, error)

	// Close releases underlying resources. Safe to call more than once.
	Close() error
}
