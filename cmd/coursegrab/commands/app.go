package commands

import (
	"log/slog"

	"github.com/iconidentify/coursegrab/internal/browser"
	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/repository"
	"github.com/iconidentify/coursegrab/internal/scraper"
	"github.com/iconidentify/coursegrab/internal/service"
)

// newCourseService wires the browser, scrapers and downloader into a
// course service.
func newCourseService(cfg *config.Config, logger *slog.Logger) *service.CourseService {
	controller := browser.NewController(cfg.Browser, logger.With("component", "browser"))
	wistia := scraper.NewWistiaClient(cfg.Wistia)

	return service.NewCourseService(
		cfg,
		service.NewBrowserOpener(controller),
		scraper.NewOutlineScraper(cfg.Scrape, logger.With("component", "outline")),
		scraper.NewMediaResolver(cfg.Scrape, wistia, logger.With("component", "media")),
		service.NewHTTPDownloaderFactory(cfg, logger.With("component", "downloader")),
		repository.NewInMemoryRunRepository(),
		logger,
	)
}
