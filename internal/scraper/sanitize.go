package scraper

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	maxNameBytes = 150
	defaultExt   = ".mp4"
	untitled     = "untitled"
)

var illegalNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

var mediaExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".webm": true, ".mkv": true,
}

// SanitizeFilename makes a title safe to use as a single path component on
// Windows, macOS and Linux. Whitespace runs collapse to one space.
func SanitizeFilename(name string) string {
	s := illegalNameChars.ReplaceAllString(name, "-")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .")

	for len(s) > maxNameBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	s = strings.TrimRight(s, " .")

	if s == "" {
		return untitled
	}
	if reservedNames[strings.ToUpper(s)] {
		s = "_" + s
	}
	return s
}

// MediaExt returns the video extension of mediaURL, or .mp4 when the URL
// does not carry a recognizable one (signed CDN URLs often do not).
func MediaExt(mediaURL string) string {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return defaultExt
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if mediaExts[ext] {
		return ext
	}
	return defaultExt
}

// FilenameFor returns the on-disk name for a lecture's media.
func FilenameFor(title, mediaURL string) string {
	return SanitizeFilename(title) + MediaExt(mediaURL)
}

// isStreamingURL reports whether u is a manifest or in-page object URL
// rather than a complete downloadable file.
func isStreamingURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	if strings.HasPrefix(lower, "blob:") || strings.HasPrefix(lower, "data:") {
		return true
	}
	if parsed, err := url.Parse(lower); err == nil {
		lower = parsed.Path
	}
	return strings.HasSuffix(lower, ".m3u8") || strings.HasSuffix(lower, ".mpd")
}
