package service

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/iconidentify/coursegrab/internal/browser"
	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
	"github.com/iconidentify/coursegrab/internal/downloader"
	"github.com/iconidentify/coursegrab/internal/scraper"
)

// Session is an authenticated browser session owned by one run.
type Session interface {
	scraper.Page
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	Close() error
}

// SessionOpener starts a browser at courseURL and returns once the user
// is logged in.
type SessionOpener func(ctx context.Context, courseURL string) (Session, error)

// OutlineScraper reads the chapter/lecture outline of a course page.
type OutlineScraper interface {
	ScrapeOutline(ctx context.Context, page scraper.Page, courseURL string) (*domain.CourseOutline, error)
}

// MediaResolver finds the media of a lecture.
type MediaResolver interface {
	Resolve(ctx context.Context, page scraper.Page, ref domain.LectureRef) (*domain.ResolvedMedia, *scraper.LecturePage, error)
}

// DownloaderFactory builds a downloader from a snapshot of session cookies.
type DownloaderFactory func(cookies []*http.Cookie, referer string) (downloader.Downloader, error)

// NewBrowserOpener adapts a browser controller to a SessionOpener.
func NewBrowserOpener(c *browser.Controller) SessionOpener {
	return func(ctx context.Context, courseURL string) (Session, error) {
		s, err := c.OpenAndAwaitLogin(ctx, courseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// NewHTTPDownloaderFactory returns a factory of cookie-authenticated HTTP downloaders.
func NewHTTPDownloaderFactory(cfg *config.Config, logger *slog.Logger) DownloaderFactory {
	return func(cookies []*http.Cookie, referer string) (downloader.Downloader, error) {
		jar, err := downloader.NewCookieJar(cookies)
		if err != nil {
			return nil, err
		}
		d := downloader.NewHTTPDownloader(cfg.Download, jar)
		d.SetLogger(logger)
		d.SetReferer(referer)
		d.SetMinFreeBytes(cfg.Storage.MinFreeBytes)
		return d, nil
	}
}
