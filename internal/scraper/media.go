package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/iconidentify/coursegrab/internal/config"
	"github.com/iconidentify/coursegrab/internal/domain"
)

var wistiaAsyncClass = regexp.MustCompile(`\bwistia_async_([A-Za-z0-9]+)\b`)

// AssetLookup resolves a hosted-video id to a direct file URL.
type AssetLookup interface {
	BestAssetURL(ctx context.Context, id string) (string, error)
}

// MediaResolver finds the direct media URL of a lecture page.
type MediaResolver struct {
	cfg    config.ScrapeConfig
	wistia AssetLookup
	logger *slog.Logger
}

// NewMediaResolver creates a new media resolver. wistia may be nil, in
// which case Wistia embeds are reported as missing media.
func NewMediaResolver(cfg config.ScrapeConfig, wistia AssetLookup, logger *slog.Logger) *MediaResolver {
	return &MediaResolver{
		cfg:    cfg,
		wistia: wistia,
		logger: logger,
	}
}

// LecturePage is a lecture detail page after it has been read.
type LecturePage struct {
	URL  string
	HTML string
}

// Resolve loads the lecture's detail page in the session and extracts its
// media. The page is left on the lecture so callers can read more from it.
func (r *MediaResolver) Resolve(ctx context.Context, page Page, ref domain.LectureRef) (*domain.ResolvedMedia, *LecturePage, error) {
	if ref.DetailURL == "" {
		return nil, nil, fmt.Errorf("%w: lecture has no detail link", domain.ErrMediaNotFound)
	}

	if err := page.Navigate(ctx, ref.DetailURL); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: load lecture page: %v", domain.ErrMediaNotFound, err)
	}

	if err := page.WaitFor(ctx, r.cfg.MediaSelector, r.cfg.MediaTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		r.logger.Debug("media element did not render in time", "url", ref.DetailURL, "error", err)
	}

	html, err := page.HTML(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, fmt.Errorf("%w: read lecture page: %v", domain.ErrMediaNotFound, err)
	}

	pageURL := ref.DetailURL
	if loc, err := page.URL(ctx); err == nil && loc != "" {
		pageURL = loc
	}
	lecture := &LecturePage{URL: pageURL, HTML: html}

	media, err := r.ResolveHTML(ctx, html, pageURL, ref.Title)
	if err != nil {
		return nil, lecture, err
	}
	return media, lecture, nil
}

// ResolveHTML extracts media from an already rendered lecture page.
func (r *MediaResolver) ResolveHTML(ctx context.Context, html, pageURL, title string) (*domain.ResolvedMedia, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse lecture page: %v", domain.ErrMediaNotFound, err)
	}
	base, _ := url.Parse(pageURL)

	src := directSource(doc.Selection, base)
	if src == "" {
		id := wistiaID(doc.Selection)
		if id != "" && r.wistia != nil {
			src, err = r.wistia.BestAssetURL(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("%w: %v", domain.ErrMediaNotFound, err)
			}
		}
	}
	if src == "" {
		return nil, fmt.Errorf("%w: no media source on %s", domain.ErrMediaNotFound, pageURL)
	}

	if title == "" && r.cfg.LessonTitleSelector != "" {
		title = collapse(doc.Find(r.cfg.LessonTitleSelector).First().Text())
	}

	return &domain.ResolvedMedia{
		MediaURL:          src,
		SuggestedFilename: FilenameFor(title, src),
	}, nil
}

// directSource returns the first complete-file media URL in the DOM.
func directSource(doc *goquery.Selection, base *url.URL) string {
	candidates := []struct {
		selector string
		attr     string
	}{
		{"video source[src]", "src"},
		{"video[src]", "src"},
		{"a[download][href]", "href"},
	}

	for _, c := range candidates {
		var found string
		doc.Find(c.selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(c.attr)
			if v == "" || isStreamingURL(v) {
				return true
			}
			found = resolveLink(base, v)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// wistiaID returns the Wistia media id of the page's embed, if any.
func wistiaID(doc *goquery.Selection) string {
	if id, ok := doc.Find(".wistia_embed[data-video-id]").First().Attr("data-video-id"); ok && id != "" {
		return id
	}
	var id string
	doc.Find("[class*='wistia_async_']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if m := wistiaAsyncClass.FindStringSubmatch(class); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}
