package platform

import "strings"

// Platform identifies which social network a URL belongs to.
type Platform string

const (
	YouTube   Platform = "youtube"
	Instagram Platform = "instagram"
	TikTok    Platform = "tiktok"
	Unknown   Platform = "unknown"
)

// Classify maps a URL string to a platform by substring containment.
// Matching order is fixed: YouTube first, then Instagram, then TikTok.
// The URL is not parsed or validated; a query parameter containing
// "youtube.com" as text classifies as YouTube.
func Classify(rawURL string) Platform {
	switch {
	case strings.Contains(rawURL, "youtube.com") || strings.Contains(rawURL, "youtu.be"):
		return YouTube
	case strings.Contains(rawURL, "instagram.com"):
		return Instagram
	case strings.Contains(rawURL, "tiktok.com"):
		return TikTok
	default:
		return Unknown
	}
}

// Parse converts a platform string from a request body into a Platform.
// Unrecognized values map to Unknown.
func Parse(s string) Platform {
	switch Platform(strings.ToLower(s)) {
	case YouTube, Instagram, TikTok:
		return Platform(strings.ToLower(s))
	default:
		return Unknown
	}
}

// Supported reports whether downloads are implemented for the platform.
func Supported(p Platform) bool {
	return p == YouTube || p == Instagram || p == TikTok
}
