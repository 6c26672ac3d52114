package extractor

import "github.com/vidrelay/vidrelay/internal/core/platform"

// TikTokPlaceholder returns a constant metadata record. TikTok support is
// declared in the API surface but no extraction is attempted yet.
func TikTokPlaceholder() *Metadata {
	return &Metadata{
		Platform: platform.TikTok,
		Title:    "TikTok Video",
		Duration: "0",
		Formats: []FormatOption{
			{Quality: "HD", Format: "mp4", Size: "5-30 MB"},
		},
	}
}
