package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/iconidentify/coursegrab/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testScrapeConfig() config.ScrapeConfig {
	return config.ScrapeConfig{
		ContentSelector:     "#course-list-accordion, #js--course-list",
		TitleSelector:       "h1.course-title",
		ChapterSelector:     ".chapter-heading",
		ChapterBodySelector: ".accordion-collapse",
		LectureSelector:     "li.lesson a.lesson-link",
		LessonTitleSelector: ".lesson-content-inner .fw-bold",
		MediaSelector:       "video, .wistia_embed, a[download]",
		CourseFilesSelector: ".js-courseFiles-modal a, .modal-body .text-truncate a",
		RenderTimeout:       time.Second,
		MediaTimeout:        time.Second,
	}
}

// fakePage serves canned HTML per URL.
type fakePage struct {
	pages     map[string]string
	current   string
	navigated []string
	waitErr   error
	navErr    error
}

func newFakePage(pages map[string]string) *fakePage {
	return &fakePage{pages: pages}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.navigated = append(p.navigated, url)
	if p.navErr != nil {
		return p.navErr
	}
	if _, ok := p.pages[url]; !ok {
		return fmt.Errorf("no page at %s", url)
	}
	p.current = url
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.waitErr
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.pages[p.current], nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	return p.current, nil
}
