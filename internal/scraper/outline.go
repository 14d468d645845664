package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
)

// OutlineScraper extracts the chapter/lecture outline of a course page.
type OutlineScraper struct {
	cfg    config.ScrapeConfig
	logger *slog.Logger
}

// NewOutlineScraper creates a new structure scraper.
func NewOutlineScraper(cfg config.ScrapeConfig, logger *slog.Logger) *OutlineScraper {
	return &OutlineScraper{
		cfg:    cfg,
		logger: logger,
	}
}

// ScrapeOutline loads courseURL (unless the page is already there), waits
// for the client-rendered content region and parses the outline.
func (s *OutlineScraper) ScrapeOutline(ctx context.Context, page Page, courseURL string) (*domain.CourseOutline, error) {
	current, err := page.URL(ctx)
	if err != nil || !sameURL(current, courseURL) {
		if err := page.Navigate(ctx, courseURL); err != nil {
			return nil, err
		}
	}

	if err := page.WaitFor(ctx, s.cfg.ContentSelector, s.cfg.RenderTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The parse below decides whether the region is really missing.
		s.logger.Warn("content region did not render in time",
			"selector", s.cfg.ContentSelector,
			"timeout", s.cfg.RenderTimeout,
			"error", err,
		)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStructureParse, err)
	}

	base := courseURL
	if loc, err := page.URL(ctx); err == nil && loc != "" {
		base = loc
	}

	outline, err := ParseOutline(html, base, s.cfg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("course outline scraped",
		"title", outline.Title,
		"chapters", len(outline.Chapters),
		"lectures", outline.LectureCount(),
	)
	return outline, nil
}

// ParseOutline parses a rendered course page. It fails with
// domain.ErrStructureParse only when the content region is absent.
func ParseOutline(html, pageURL string, cfg config.ScrapeConfig) (*domain.CourseOutline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrStructureParse, err)
	}

	content := doc.Find(cfg.ContentSelector).First()
	if content.Length() == 0 {
		return nil, fmt.Errorf("%w: content region %q not found on %s", domain.ErrStructureParse, cfg.ContentSelector, pageURL)
	}

	base, _ := url.Parse(pageURL)
	outline := &domain.CourseOutline{
		Title:    courseTitle(doc.Selection, cfg.TitleSelector),
		Chapters: []domain.Chapter{},
	}

	var headings *goquery.Selection
	if cfg.ChapterSelector != "" {
		headings = content.Find(cfg.ChapterSelector)
	}

	if headings != nil && headings.Length() > 0 {
		headings.Each(func(i int, h *goquery.Selection) {
			links := h.Find(cfg.LectureSelector)
			if body := h.Next(); cfg.ChapterBodySelector != "" && body.Is(cfg.ChapterBodySelector) {
				links = body.Find(cfg.LectureSelector)
			}
			outline.Chapters = append(outline.Chapters, domain.Chapter{
				Title:    chapterTitle(h, i+1),
				Lectures: lectureRefs(links, base),
			})
		})
		return outline, nil
	}

	// Flat layout: lecture links directly under the content region.
	links := content.Find(cfg.LectureSelector)
	if links.Length() == 0 {
		links = content.Find("a[href]")
	}
	if lectures := lectureRefs(links, base); len(lectures) > 0 {
		outline.Chapters = append(outline.Chapters, domain.Chapter{
			Title:    "Chapter 1",
			Lectures: lectures,
		})
	}
	return outline, nil
}

func courseTitle(doc *goquery.Selection, selector string) string {
	if selector != "" {
		if t := collapse(doc.Find(selector).First().Text()); t != "" {
			return t
		}
	}
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return "Untitled Course"
}

func chapterTitle(h *goquery.Selection, n int) string {
	for _, attr := range []string{"data-title", "title"} {
		if v, ok := h.Attr(attr); ok && collapse(v) != "" {
			return collapse(v)
		}
	}
	if t := collapse(h.Text()); t != "" {
		return t
	}
	return "Chapter " + strconv.Itoa(n)
}

func lectureRefs(links *goquery.Selection, base *url.URL) []domain.LectureRef {
	refs := []domain.LectureRef{}
	links.Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		link := resolveLink(base, href)
		if link == "" {
			return
		}

		title := ""
		if v, ok := a.Attr("title"); ok {
			title = collapse(v)
		}
		if title == "" {
			title = collapse(a.Text())
		}
		if title == "" {
			title = "Lecture " + strconv.Itoa(len(refs)+1)
		}

		refs = append(refs, domain.LectureRef{Title: title, DetailURL: link})
	})
	return refs
}
