package extractor

import (
	"context"
	"fmt"

	"github.com/vidrelay/vidrelay/internal/core/config"
	"github.com/vidrelay/vidrelay/internal/core/platform"
)

// Resolver routes info and download requests to the platform extractors.
// It never touches an upstream for URLs that classify as unknown.
type Resolver struct {
	youtube   *YouTubeExtractor
	instagram *InstagramResolver
}

// NewResolver wires the per-platform extractors from config.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		youtube:   NewYouTubeExtractor(cfg),
		instagram: NewInstagramResolver(cfg),
	}
}

// YouTube exposes the YouTube extractor for streaming endpoints.
func (r *Resolver) YouTube() *YouTubeExtractor { return r.youtube }

// Instagram exposes the Instagram resolver for streaming endpoints.
func (r *Resolver) Instagram() *InstagramResolver { return r.instagram }

// VideoInfo resolves normalized metadata for the URL's platform.
func (r *Resolver) VideoInfo(ctx context.Context, rawURL string) (*Metadata, error) {
	switch platform.Classify(rawURL) {
	case platform.YouTube:
		return r.youtube.VideoInfo(ctx, rawURL)

	case platform.Instagram:
		directURL, err := r.instagram.Resolve(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return &Metadata{
			Platform: platform.Instagram,
			Title:    "Instagram Video",
			Duration: "0",
			Formats:  InstagramFormatCatalog(),
			VideoURL: directURL,
		}, nil

	case platform.TikTok:
		return TikTokPlaceholder(), nil

	default:
		return nil, fmt.Errorf("%w: use YouTube, Instagram or TikTok URLs", ErrUnsupportedPlatform)
	}
}

// Download resolves a download request for the given platform and format.
func (r *Resolver) Download(ctx context.Context, rawURL string, p platform.Platform, format, quality string) (*ResolvedDownload, error) {
	switch p {
	case platform.YouTube:
		return r.youtube.Download(ctx, rawURL, format, quality)
	case platform.Instagram:
		return r.instagram.Download(ctx, rawURL, format)
	case platform.TikTok:
		return nil, fmt.Errorf("%w: TikTok downloads are not available yet", ErrUnsupportedPlatform)
	default:
		return nil, fmt.Errorf("%w: use YouTube, Instagram or TikTok URLs", ErrUnsupportedPlatform)
	}
}
