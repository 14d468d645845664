// Package scraper reads course structure and lecture media from rendered
// pages of an authenticated browser session.
package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Page is the part of a browser session the scrapers need. Implementations
// hold one tab and are driven sequentially.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
}

// sameURL compares two URLs ignoring fragment and a trailing slash.
func sameURL(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	ua.Fragment, ub.Fragment = "", ""
	ua.Path = strings.TrimSuffix(ua.Path, "/")
	ub.Path = strings.TrimSuffix(ub.Path, "/")
	return strings.EqualFold(ua.Host, ub.Host) && ua.Path == ub.Path && ua.RawQuery == ub.RawQuery
}

// resolveLink resolves href against base. Empty, fragment-only and
// javascript: links resolve to "".
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// collapse trims text and folds internal whitespace runs into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
