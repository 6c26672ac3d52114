package extractor

import (
	"regexp"
	"strings"
	"testing"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Plain title untouched",
			input:    "NeverGonnaGiveYouUp",
			expected: "NeverGonnaGiveYouUp",
		},
		{
			name:     "Spaces and punctuation replaced",
			input:    "Test: Video! #1",
			expected: "Test__Video___1",
		},
		{
			name:     "Unicode replaced",
			input:    "vídeoû",
			expected: "v_deo_",
		},
		{
			name:     "Empty input falls back",
			input:    "",
			expected: "video",
		},
		{
			name:     "Only specials fall back",
			input:    "???***",
			expected: "video",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeTitle(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeTitle(%q) = %q; want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSanitizeTitleLength(t *testing.T) {
	long := strings.Repeat("a b", 200)
	got := SanitizeTitle(long)
	if len(got) > maxTitleRunes {
		t.Errorf("sanitized title length = %d; want <= %d", len(got), maxTitleRunes)
	}
}

func TestSanitizeTitleOnlyAlphanumeric(t *testing.T) {
	got := SanitizeTitle("Rick Astley - Never Gonna Give You Up (Official Video)")
	for _, r := range got {
		alnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
		if !alnum {
			t.Fatalf("sanitized title contains %q", r)
		}
	}
}

func TestYouTubeFilename(t *testing.T) {
	got := YouTubeFilename("Test: Video! #1", "mp4")
	pattern := regexp.MustCompile(`^Test__Video___1_\d+\.mp4$`)
	if !pattern.MatchString(got) {
		t.Errorf("YouTubeFilename = %q; want match for %v", got, pattern)
	}
}

func TestInstagramFilename(t *testing.T) {
	got := InstagramFilename("mp4")
	pattern := regexp.MustCompile(`^instagram_\d+\.mp4$`)
	if !pattern.MatchString(got) {
		t.Errorf("InstagramFilename = %q; want match for %v", got, pattern)
	}

	audio := InstagramFilename("mp3")
	if !strings.HasSuffix(audio, ".mp3") {
		t.Errorf("InstagramFilename(mp3) = %q; want .mp3 suffix", audio)
	}
}

func TestFormatCatalogs(t *testing.T) {
	yt := YouTubeFormatCatalog()
	if len(yt) != 4 {
		t.Fatalf("YouTube catalog has %d entries; want 4", len(yt))
	}
	if yt[3].Format != "mp3" || yt[3].Quality != "Audio" {
		t.Errorf("last YouTube catalog entry = %+v; want the audio option", yt[3])
	}

	ig := InstagramFormatCatalog()
	if len(ig) != 2 {
		t.Fatalf("Instagram catalog has %d entries; want 2", len(ig))
	}
	if ig[0].Format != "mp4" || ig[1].Format != "mp3" {
		t.Errorf("Instagram catalog = %+v; want mp4 then mp3", ig)
	}
}
