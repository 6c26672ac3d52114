package extractor

import "testing"

func TestExtractVideoURL(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
		found    bool
	}{
		{
			name:     "video_url JSON field",
			html:     `<script>{"video_url":"https://cdn.example/v.mp4?a=1&b=2"}</script>`,
			expected: "https://cdn.example/v.mp4?a=1&b=2",
			found:    true,
		},
		{
			name:     "escaped slashes unescaped",
			html:     `{"video_url":"https:\/\/cdn.example\/v.mp4"}`,
			expected: "https://cdn.example/v.mp4",
			found:    true,
		},
		{
			name:     "escaped ampersands unescaped",
			html:     `{"video_url":"https://cdn.example/v.mp4?a=1\u0026b=2"}`,
			expected: "https://cdn.example/v.mp4?a=1&b=2",
			found:    true,
		},
		{
			name:     "contentUrl JSON field",
			html:     `<script type="application/ld+json">{"contentUrl":"https://cdn.example/c.mp4"}</script>`,
			expected: "https://cdn.example/c.mp4",
			found:    true,
		},
		{
			name:     "og:video meta tag",
			html:     `<html><head><meta property="og:video" content="https://cdn.example/og.mp4"/></head></html>`,
			expected: "https://cdn.example/og.mp4",
			found:    true,
		},
		{
			name:     "video tag src",
			html:     `<html><body><video src="https://cdn.example/tag.mp4"></video></body></html>`,
			expected: "https://cdn.example/tag.mp4",
			found:    true,
		},
		{
			name:     "video source child",
			html:     `<html><body><video><source src="https://cdn.example/src.mp4"></video></body></html>`,
			expected: "https://cdn.example/src.mp4",
			found:    true,
		},
		{
			name:     "video_url wins over og:video",
			html:     `<meta property="og:video" content="https://cdn.example/og.mp4"/><script>{"video_url":"https://cdn.example/first.mp4"}</script>`,
			expected: "https://cdn.example/first.mp4",
			found:    true,
		},
		{
			name:  "nothing to find",
			html:  `<html><body><p>just text</p></body></html>`,
			found: false,
		},
		{
			name:  "empty input",
			html:  "",
			found: false,
		},
	}

	scraper := NewPageScraper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := scraper.ExtractVideoURL(tt.html)
			if ok != tt.found {
				t.Fatalf("found = %v; want %v", ok, tt.found)
			}
			if ok && got != tt.expected {
				t.Errorf("ExtractVideoURL = %q; want %q", got, tt.expected)
			}
		})
	}
}
