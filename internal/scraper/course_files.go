package scraper

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CourseFile is a downloadable attachment listed on a lecture page.
type CourseFile struct {
	Name string
	URL  string
}

// ParseCourseFiles lists course file links matching selector. Links without
// a URL are dropped; duplicates (same URL) are listed once.
func ParseCourseFiles(html, pageURL, selector string) ([]CourseFile, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	files := []CourseFile{}
	seen := map[string]bool{}
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		link := resolveLink(base, href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true

		name := collapse(a.Text())
		if name == "" {
			if u, err := url.Parse(link); err == nil {
				name, _ = url.PathUnescape(path.Base(u.Path))
			}
		}
		if name == "" || name == "/" || name == "." {
			return
		}
		files = append(files, CourseFile{Name: SanitizeFilename(name), URL: link})
	})
	return files, nil
}

// HasLessonContent reports whether a lecture page carries a text lesson
// body matching selector.
func HasLessonContent(html, selector string) bool {
	if selector == "" {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find(selector).Length() > 0
}
