package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/iconidentify/coursegrab/internal/domain"
	"github.com/iconidentify/coursegrab/internal/repository"
	"github.com/iconidentify/coursegrab/internal/service"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockRunner is a test implementation of CourseRunner and RunStatsSource.
type mockRunner struct {
	summary *domain.CourseSummary
	runErr  error
	lastReq service.RunRequest

	runs      map[domain.RunID]*domain.Run
	listErr   error
	gotState  *domain.RunState
	gotLimit  int
	gotOffset int

	stats    *repository.RunStats
	statsErr error
	busy     bool
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		runs:  make(map[domain.RunID]*domain.Run),
		stats: &repository.RunStats{},
	}
}

func (m *mockRunner) Run(ctx context.Context, req service.RunRequest) (*domain.CourseSummary, error) {
	m.lastReq = req
	return m.summary, m.runErr
}

func (m *mockRunner) GetRun(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	if run, ok := m.runs[id]; ok {
		return run, nil
	}
	return nil, domain.ErrRunNotFound
}

func (m *mockRunner) ListRuns(ctx context.Context, state *domain.RunState, limit, offset int) ([]*domain.Run, int, error) {
	m.gotState, m.gotLimit, m.gotOffset = state, limit, offset
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var out []*domain.Run
	for _, r := range m.runs {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRunner) Stats(ctx context.Context) (*repository.RunStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

func (m *mockRunner) Busy() bool {
	return m.busy
}
