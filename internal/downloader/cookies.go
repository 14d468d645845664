package downloader

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// NewCookieJar builds a jar from a snapshot of browser cookies so media
// requests carry the session's credentials without touching the browser.
func NewCookieJar(cookies []*http.Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	byOrigin := make(map[string][]*http.Cookie)
	for _, c := range cookies {
		if c == nil {
			continue
		}
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		origin := scheme + "://" + host
		byOrigin[origin] = append(byOrigin[origin], c)
	}

	for origin, cs := range byOrigin {
		u, err := url.Parse(origin + "/")
		if err != nil {
			continue
		}
		jar.SetCookies(u, cs)
	}
	return jar, nil
}
