package domain

import (
	"fmt"
	"time"
)

// RunID is a unique identifier for a course run.
type RunID string

// String returns the string representation of the RunID.
func (id RunID) String() string {
	return string(id)
}

// RunState is a state of the course run state machine.
type RunState string

const (
	RunStateAwaitingLogin   RunState = "awaiting_login"
	RunStateScrapingOutline RunState = "scraping_outline"
	RunStateDownloading     RunState = "downloading"
	RunStateDone            RunState = "done"
	RunStateAborted         RunState = "aborted"
)

// IsTerminal returns true for Done and Aborted.
func (s RunState) IsTerminal() bool {
	return s == RunStateDone || s == RunStateAborted
}

var runTransitions = map[RunState][]RunState{
	RunStateAwaitingLogin:   {RunStateScrapingOutline, RunStateAborted},
	RunStateScrapingOutline: {RunStateDownloading, RunStateAborted},
	RunStateDownloading:     {RunStateDone, RunStateAborted},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to RunState) bool {
	for _, s := range runTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Run tracks one orchestration of a course download.
type Run struct {
	ID           RunID          `json:"run_id"`
	CourseURL    string         `json:"course_url"`
	SavePath     string         `json:"save_path,omitempty"`
	Prefix       bool           `json:"prefix"`
	SkipIfExists bool           `json:"skip_if_exists"`
	State        RunState       `json:"state"`
	AbortReason  string         `json:"abort_reason,omitempty"`
	Summary      *CourseSummary `json:"summary,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewRun creates a run in the AwaitingLogin state.
func NewRun(id RunID, courseURL, savePath string, prefix, skipIfExists bool) *Run {
	now := time.Now()
	return &Run{
		ID:           id,
		CourseURL:    courseURL,
		SavePath:     savePath,
		Prefix:       prefix,
		SkipIfExists: skipIfExists,
		State:        RunStateAwaitingLogin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Advance moves the run to the next state.
func (r *Run) Advance(to RunState) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("invalid run transition %s -> %s", r.State, to)
	}
	r.State = to
	r.UpdatedAt = time.Now()
	return nil
}

// MarkAborted moves the run to Aborted with a reason.
func (r *Run) MarkAborted(reason error) error {
	if err := r.Advance(RunStateAborted); err != nil {
		return err
	}
	if reason != nil {
		r.AbortReason = reason.Error()
	}
	return nil
}

// MarkDone moves the run to Done and attaches the summary.
func (r *Run) MarkDone(summary *CourseSummary) error {
	if err := r.Advance(RunStateDone); err != nil {
		return err
	}
	r.Summary = summary
	return nil
}
