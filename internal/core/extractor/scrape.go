package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageScraper extracts a direct video URL from raw page HTML.
// Implementations are best-effort and always fallible; the pattern list
// can be swapped without touching calling code.
type PageScraper interface {
	ExtractVideoURL(html string) (string, bool)
}

// regexScraper is the default scraper. It tries embedded-JSON patterns
// first, then falls back to structural lookups via goquery.
type regexScraper struct{}

// NewPageScraper returns the default scraper implementation.
func NewPageScraper() PageScraper {
	return &regexScraper{}
}

var (
	videoURLPattern   = regexp.MustCompile(`"video_url":"([^"]+)"`)
	contentURLPattern = regexp.MustCompile(`"contentUrl":"([^"]+)"`)
)

// ExtractVideoURL applies the pattern sequence in fixed order and returns
// the first match: "video_url" JSON field, "contentUrl" JSON field,
// og:video meta tag, then a <video> src attribute.
func (s *regexScraper) ExtractVideoURL(html string) (string, bool) {
	if m := videoURLPattern.FindStringSubmatch(html); len(m) > 1 {
		return unescapeMediaURL(m[1]), true
	}
	if m := contentURLPattern.FindStringSubmatch(html); len(m) > 1 {
		return unescapeMediaURL(m[1]), true
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	if v, ok := doc.Find(`meta[property="og:video"]`).Attr("content"); ok && v != "" {
		return unescapeMediaURL(v), true
	}
	if v, ok := doc.Find(`meta[property="og:video:url"]`).Attr("content"); ok && v != "" {
		return unescapeMediaURL(v), true
	}
	if v, ok := doc.Find("video").Attr("src"); ok && v != "" {
		return unescapeMediaURL(v), true
	}
	if v, ok := doc.Find("video source").Attr("src"); ok && v != "" {
		return unescapeMediaURL(v), true
	}

	return "", false
}

// unescapeMediaURL undoes the JSON escaping applied to URLs embedded in
// script tags.
func unescapeMediaURL(u string) string {
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")
	return u
}
