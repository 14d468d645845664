package downloader

import (
	"context"

	"github.com/iconidentify/coursegrab/internal/domain"
)

// Downloader transfers lecture media to disk.
type Downloader interface {
	// ShouldSkip reports whether target already holds a finished file
	// and its policy allows keeping it.
	ShouldSkip(target domain.DownloadTarget) bool

	// Download streams mediaURL to target. Failures are reported in the
	// result; the destination is never left partially written.
	Download(ctx context.Context, mediaURL string, target domain.DownloadTarget) domain.DownloadResult
}
