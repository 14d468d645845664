package domain

import (
	"errors"
	"slices"
)

// OverwritePolicy controls what happens when the destination already exists.
type OverwritePolicy string

const (
	PolicySkipIfExists   OverwritePolicy = "skip_if_exists"
	PolicyAlwaysDownload OverwritePolicy = "always_download"
)

// PolicyFor maps the skip-if-exists flag to a policy.
func PolicyFor(skipIfExists bool) OverwritePolicy {
	if skipIfExists {
		return PolicySkipIfExists
	}
	return PolicyAlwaysDownload
}

// DownloadTarget is where a lecture's media ends up on disk.
type DownloadTarget struct {
	DestinationPath string          `json:"destination_path"`
	Policy          OverwritePolicy `json:"overwrite_policy"`
}

// Outcome is the per-file result of a download attempt.
type Outcome string

const (
	OutcomeDownloaded    Outcome = "downloaded"
	OutcomeSkippedExists Outcome = "skipped_exists"
	OutcomeFailed        Outcome = "failed"
)

// DownloadResult records what happened to one lecture.
type DownloadResult struct {
	Position     LecturePosition `json:"position"`
	LectureTitle string          `json:"lecture_title"`
	Target       DownloadTarget  `json:"target"`
	Outcome      Outcome         `json:"outcome"`
	Reason       string          `json:"reason,omitempty"`
	Bytes        int64           `json:"bytes,omitempty"`
	Err          error           `json:"-"`
}

// Downloaded builds a successful result.
func Downloaded(target DownloadTarget, n int64) DownloadResult {
	return DownloadResult{Target: target, Outcome: OutcomeDownloaded, Bytes: n}
}

// SkippedExists builds a skipped result.
func SkippedExists(target DownloadTarget) DownloadResult {
	return DownloadResult{Target: target, Outcome: OutcomeSkippedExists}
}

// Failed builds a failed result. The reason is derived from the error.
func Failed(target DownloadTarget, err error) DownloadResult {
	return DownloadResult{
		Target:  target,
		Outcome: OutcomeFailed,
		Reason:  FailureReason(err),
		Err:     err,
	}
}

// FailureReason returns the short taxonomy name for a lecture-local error
// followed by its detail.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrMediaNotFound):
		return "MediaNotFound: " + err.Error()
	case errors.Is(err, ErrTransfer):
		return "TransferError: " + err.Error()
	case errors.Is(err, ErrCanceled):
		return "Canceled: " + err.Error()
	}
	return err.Error()
}

// LectureFailure is a failed lecture as shown to the caller.
type LectureFailure struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// CourseSummary is the final report of a run.
type CourseSummary struct {
	Title      string           `json:"title"`
	SaveRoot   string           `json:"save_root"`
	Total      int              `json:"total"`
	Downloaded int              `json:"downloaded"`
	Skipped    int              `json:"skipped"`
	Failed     []LectureFailure `json:"failed"`
	Results    []DownloadResult `json:"results"`

	// Extras holds non-lecture downloads such as course files.
	// They are not counted in the lecture totals.
	Extras []DownloadResult `json:"extras,omitempty"`
}

// NewCourseSummary sorts results into course order and tallies them.
func NewCourseSummary(title, saveRoot string, results []DownloadResult) *CourseSummary {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b DownloadResult) int {
		switch {
		case a.Position.Less(b.Position):
			return -1
		case b.Position.Less(a.Position):
			return 1
		}
		return 0
	})

	s := &CourseSummary{
		Title:    title,
		SaveRoot: saveRoot,
		Total:    len(sorted),
		Failed:   []LectureFailure{},
		Results:  sorted,
	}
	if s.Results == nil {
		s.Results = []DownloadResult{}
	}
	for _, r := range sorted {
		switch r.Outcome {
		case OutcomeDownloaded:
			s.Downloaded++
		case OutcomeSkippedExists:
			s.Skipped++
		case OutcomeFailed:
			s.Failed = append(s.Failed, LectureFailure{Title: r.LectureTitle, Reason: r.Reason})
		}
	}
	return s
}
