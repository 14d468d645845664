package repository

import (
	"context"

	"github.com/iconidentify/coursegrab/internal/domain"
)

// RunRepository keeps track of course runs.
type RunRepository interface {
	// Create stores a new run.
	Create(ctx context.Context, run *domain.Run) error

	// Update replaces the stored state of a run.
	Update(ctx context.Context, run *domain.Run) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id domain.RunID) (*domain.Run, error)

	// List returns runs newest first, optionally filtered by state.
	List(ctx context.Context, state *domain.RunState, limit, offset int) ([]*domain.Run, int, error)

	// Stats returns run counts per state.
	Stats(ctx context.Context) (*RunStats, error)
}

// RunStats contains run counts per state.
type RunStats struct {
	Active  int `json:"active"`
	Done    int `json:"done"`
	Aborted int `json:"aborted"`
}
