package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/iconidentify/coursegrab/internal/domain"
)

// InMemoryRunRepository implements RunRepository using in-memory storage.
// Stored runs are copies; callers keep ownership of what they pass in.
type InMemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[domain.RunID]*domain.Run
}

// NewInMemoryRunRepository creates a new in-memory run repository.
func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{
		runs: make(map[domain.RunID]*domain.Run),
	}
}

// Create stores a new run.
func (r *InMemoryRunRepository) Create(ctx context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	r.runs[run.ID] = cloneRun(run)

	return nil
}

// Update replaces the stored state of a run.
func (r *InMemoryRunRepository) Update(ctx context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[run.ID]; !ok {
		return domain.ErrRunNotFound
	}
	r.runs[run.ID] = cloneRun(run)

	return nil
}

// Get retrieves a run by ID.
func (r *InMemoryRunRepository) Get(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}

	return cloneRun(run), nil
}

// List returns runs newest first, optionally filtered by state, plus the
// total number of matching runs. A limit <= 0 means no limit.
func (r *InMemoryRunRepository) List(ctx context.Context, state *domain.RunState, limit, offset int) ([]*domain.Run, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		if state != nil && run.State != *state {
			continue
		}
		matched = append(matched, run)
	}

	slices.SortFunc(matched, func(a, b *domain.Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	total := len(matched)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	result := make([]*domain.Run, 0, end-offset)
	for _, run := range matched[offset:end] {
		result = append(result, cloneRun(run))
	}
	return result, total, nil
}

// Stats returns run counts per state.
func (r *InMemoryRunRepository) Stats(ctx context.Context) (*RunStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &RunStats{}
	for _, run := range r.runs {
		switch run.State {
		case domain.RunStateDone:
			stats.Done++
		case domain.RunStateAborted:
			stats.Aborted++
		default:
			stats.Active++
		}
	}

	return stats, nil
}

// cloneRun copies the run. Summaries are immutable once attached, so the
// pointer is shared.
func cloneRun(run *domain.Run) *domain.Run {
	c := *run
	return &c
}
