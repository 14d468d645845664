package domain

import (
	"errors"
	"strconv"
)

// Run-fatal errors. Any of these aborts the whole course run.
var (
	// ErrInvalidInput is returned when a run request is missing required fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLoginTimeout is returned when the login marker never appears.
	ErrLoginTimeout = errors.New("login not detected before timeout")

	// ErrNavigation is returned when the browser cannot load a page.
	ErrNavigation = errors.New("browser navigation failed")

	// ErrStructureParse is returned when the course content region cannot be located.
	ErrStructureParse = errors.New("course structure could not be parsed")

	// ErrSessionBusy is returned when another run already owns the browser session.
	ErrSessionBusy = errors.New("browser session already in use")

	// ErrCanceled is returned when the caller aborts a run.
	ErrCanceled = errors.New("run canceled")
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Lecture-local errors. These are recorded in the summary and processing continues.
var (
	// ErrMediaNotFound is returned when a lecture page has no downloadable media.
	ErrMediaNotFound = errors.New("media not found")

	// ErrTransfer is returned when a media transfer fails (network, status or disk).
	ErrTransfer = errors.New("transfer failed")

	// ErrURLExpired is returned when the media host rejects the request.
	ErrURLExpired = errors.New("media URL rejected or expired")

	// ErrRateLimited is returned when rate limited by the media host.
	ErrRateLimited = errors.New("rate limited")

	// ErrStorageFull is returned when there is insufficient storage space.
	ErrStorageFull = errors.New("insufficient storage space")
)

// IsFatal reports whether err should abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrLoginTimeout) ||
		errors.Is(err, ErrNavigation) ||
		errors.Is(err, ErrStructureParse) ||
		errors.Is(err, ErrSessionBusy) ||
		errors.Is(err, ErrCanceled)
}

// LectureError wraps an error with lecture context.
type LectureError struct {
	Position LecturePosition
	Title    string
	Op       string
	Err      error
}

func (e *LectureError) Error() string {
	prefix := e.Op
	if e.Position.Chapter > 0 {
		prefix += " [" + strconv.Itoa(e.Position.Chapter) + "." + strconv.Itoa(e.Position.Lecture) + "]"
	}
	if e.Title != "" {
		prefix += " " + strconv.Quote(e.Title)
	}
	return prefix + ": " + e.Err.Error()
}

func (e *LectureError) Unwrap() error {
	return e.Err
}

// NewLectureError creates a new LectureError.
func NewLectureError(pos LecturePosition, title, op string, err error) *LectureError {
	return &LectureError{
		Position: pos,
		Title:    title,
		Op:       op,
		Err:      err,
	}
}
