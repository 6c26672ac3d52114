package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/vidrelay/vidrelay/internal/core/config"
	"github.com/vidrelay/vidrelay/internal/core/platform"
)

// preferredItag is a muxed H.264+AAC profile that plays everywhere and is
// available for most videos. Stream selection prefers it over the caller's
// literal quality string.
const preferredItag = 18

// videoAPI is the subset of the youtube client used here, extracted so
// tests can substitute a fake.
type videoAPI interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// YouTubeExtractor resolves YouTube metadata and media streams.
type YouTubeExtractor struct {
	client  videoAPI
	timeout time.Duration
}

// NewYouTubeExtractor creates the extractor with the configured metadata
// timeout.
func NewYouTubeExtractor(cfg *config.Config) *YouTubeExtractor {
	timeout := time.Duration(cfg.YouTube.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &YouTubeExtractor{
		client:  &youtube.Client{},
		timeout: timeout,
	}
}

// CanonicalURL normalizes youtu.be short links to the watch URL form and
// validates that the URL identifies a video.
func CanonicalURL(rawURL string) (string, error) {
	if strings.Contains(rawURL, "youtu.be") {
		trimmed := rawURL
		if i := strings.Index(trimmed, "?"); i >= 0 {
			trimmed = trimmed[:i]
		}
		trimmed = strings.TrimRight(trimmed, "/")
		parts := strings.Split(trimmed, "/")
		id := parts[len(parts)-1]
		rawURL = "https://www.youtube.com/watch?v=" + id
	}

	if _, err := youtube.ExtractVideoID(rawURL); err != nil {
		return "", fmt.Errorf("%w: not a recognizable YouTube video URL", ErrInvalidURL)
	}
	return rawURL, nil
}

// VideoInfo fetches video details and returns normalized metadata with the
// advertised format catalog.
func (e *YouTubeExtractor) VideoInfo(ctx context.Context, rawURL string) (*Metadata, error) {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	video, err := e.client.GetVideoContext(ctx, canonical)
	if err != nil {
		return nil, wrapUpstream(err)
	}

	thumbnail := ""
	if n := len(video.Thumbnails); n > 0 {
		// The list is ordered smallest to largest; take the last.
		thumbnail = video.Thumbnails[n-1].URL
	}

	return &Metadata{
		Platform:  platform.YouTube,
		Title:     video.Title,
		Thumbnail: thumbnail,
		Duration:  strconv.Itoa(int(video.Duration.Seconds())),
		Author:    video.Author,
		Formats:   YouTubeFormatCatalog(),
		VideoURL:  canonical,
	}, nil
}

// Download resolves a download request to a same-process streaming
// endpoint reference. The actual stream is opened when the client follows
// the link.
func (e *YouTubeExtractor) Download(ctx context.Context, rawURL, format, quality string) (*ResolvedDownload, error) {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	video, err := e.client.GetVideoContext(ctx, canonical)
	if err != nil {
		return nil, wrapUpstream(err)
	}

	container := "mp4"
	if format == "mp3" {
		container = "mp3"
	}
	if quality == "" {
		if container == "mp3" {
			quality = "Audio"
		} else {
			quality = "720p"
		}
	}

	streamPath := "/api/stream-youtube?url=" + url.QueryEscape(canonical) + "&format=" + container

	return &ResolvedDownload{
		StreamPath: streamPath,
		Filename:   YouTubeFilename(video.Title, container),
		Title:      video.Title,
		Container:  container,
		Quality:    quality,
	}, nil
}

// OpenStream opens a media stream for the video. For mp3 the best
// audio-only stream is selected (the relay transcodes it); otherwise the
// preferred muxed profile, falling back to the highest-bitrate stream.
// The returned name is a suggested download filename.
func (e *YouTubeExtractor) OpenStream(ctx context.Context, rawURL, format string) (io.ReadCloser, int64, string, error) {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return nil, 0, "", err
	}

	video, err := e.client.GetVideoContext(ctx, canonical)
	if err != nil {
		return nil, 0, "", wrapUpstream(err)
	}

	var streamFormat *youtube.Format
	container := "mp4"
	if format == "mp3" {
		container = "mp3"
		streamFormat = pickAudioFormat(video)
	} else {
		streamFormat = pickVideoFormat(video)
	}
	if streamFormat == nil {
		return nil, 0, "", fmt.Errorf("%w: no playable stream for this video", ErrUpstreamUnavailable)
	}

	rc, size, err := e.client.GetStreamContext(ctx, video, streamFormat)
	if err != nil {
		return nil, 0, "", wrapUpstream(err)
	}

	return rc, size, YouTubeFilename(video.Title, container), nil
}

// pickVideoFormat prefers the stable muxed profile, then the
// highest-bitrate stream that carries audio, then the highest-bitrate
// stream overall.
func pickVideoFormat(video *youtube.Video) *youtube.Format {
	for i := range video.Formats {
		if video.Formats[i].ItagNo == preferredItag {
			return &video.Formats[i]
		}
	}

	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best != nil {
		return best
	}

	for i := range video.Formats {
		f := &video.Formats[i]
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

// pickAudioFormat returns the best available audio-only stream.
func pickAudioFormat(video *youtube.Video) *youtube.Format {
	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best
}

func wrapUpstream(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: YouTube request timed out", ErrUpstreamUnavailable)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
