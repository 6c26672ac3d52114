package extractor

import (
	"fmt"
	"strings"
	"time"

	"github.com/vidrelay/vidrelay/internal/core/platform"
)

// Metadata is the normalized description of a video returned by
// POST /api/video-info. Produced fresh per request, never cached.
type Metadata struct {
	Platform  platform.Platform `json:"platform"`
	Title     string            `json:"title"`
	Thumbnail string            `json:"thumbnail"`
	Duration  string            `json:"duration"` // seconds, as string on the wire
	Author    string            `json:"author,omitempty"`
	Formats   []FormatOption    `json:"formats"`
	VideoURL  string            `json:"videoUrl,omitempty"`
}

// FormatOption is one advertised quality/format combination.
// The catalog is aspirational: options are not verified to exist for the
// specific video, only the platform's typical offering.
type FormatOption struct {
	Quality string `json:"quality"`
	Format  string `json:"format"`
	Size    string `json:"size,omitempty"`
}

// ResolvedDownload describes how a caller obtains the actual bytes:
// either straight from upstream (DirectURL) or through one of this
// server's streaming endpoints (StreamPath).
type ResolvedDownload struct {
	DirectURL    string
	StreamPath   string
	Filename     string
	Title        string
	Container    string // "mp4" or "mp3"
	Quality      string
	IsDirectFile bool
}

// YouTubeFormatCatalog is the fixed format listing advertised for YouTube
// videos.
func YouTubeFormatCatalog() []FormatOption {
	return []FormatOption{
		{Quality: "720p", Format: "mp4", Size: "15-25 MB"},
		{Quality: "480p", Format: "mp4", Size: "8-15 MB"},
		{Quality: "360p", Format: "mp4", Size: "5-10 MB"},
		{Quality: "Audio", Format: "mp3", Size: "3-8 MB"},
	}
}

// InstagramFormatCatalog is the fixed format listing advertised for
// Instagram videos.
func InstagramFormatCatalog() []FormatOption {
	return []FormatOption{
		{Quality: "HD", Format: "mp4", Size: "5-20 MB"},
		{Quality: "Audio", Format: "mp3", Size: "1-5 MB"},
	}
}

// maxTitleRunes caps sanitized titles so filenames stay well under
// filesystem limits once the timestamp and extension are appended.
const maxTitleRunes = 100

// SanitizeTitle replaces every non-alphanumeric character with an
// underscore and truncates the result.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	result := b.String()
	if len(result) > maxTitleRunes {
		result = result[:maxTitleRunes]
	}
	if strings.Trim(result, "_") == "" {
		return "video"
	}
	return result
}

// YouTubeFilename builds a download filename from the video title.
// Uniqueness is only as good as millisecond timestamp granularity.
func YouTubeFilename(title, container string) string {
	return fmt.Sprintf("%s_%d.%s", SanitizeTitle(title), time.Now().UnixMilli(), container)
}

// InstagramFilename builds a download filename for Instagram media,
// which carries no usable title.
func InstagramFilename(container string) string {
	return fmt.Sprintf("instagram_%d.%s", time.Now().UnixMilli(), container)
}
