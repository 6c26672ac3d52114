package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/vidrelay/vidrelay/internal/core/config"
	"github.com/vidrelay/vidrelay/internal/core/platform"
)

func TestResolverVideoInfoUnknownPlatform(t *testing.T) {
	r := NewResolver(config.DefaultConfig())

	_, err := r.VideoInfo(context.Background(), "https://vimeo.com/12345")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("err = %v; want ErrUnsupportedPlatform", err)
	}
}

func TestResolverVideoInfoTikTok(t *testing.T) {
	r := NewResolver(config.DefaultConfig())

	md, err := r.VideoInfo(context.Background(), "https://www.tiktok.com/@user/video/789")
	if err != nil {
		t.Fatal(err)
	}
	if md.Platform != platform.TikTok {
		t.Errorf("Platform = %q", md.Platform)
	}
	if md.Title != "TikTok Video" {
		t.Errorf("Title = %q", md.Title)
	}
	if len(md.Formats) == 0 {
		t.Error("Formats is empty")
	}
}

func TestResolverDownloadTikTok(t *testing.T) {
	r := NewResolver(config.DefaultConfig())

	_, err := r.Download(context.Background(), "https://www.tiktok.com/@user/video/789", platform.TikTok, "mp4", "")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("err = %v; want ErrUnsupportedPlatform", err)
	}
}

func TestResolverDownloadUnknownPlatform(t *testing.T) {
	r := NewResolver(config.DefaultConfig())

	_, err := r.Download(context.Background(), "https://example.com/clip", platform.Unknown, "mp4", "")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("err = %v; want ErrUnsupportedPlatform", err)
	}
}

func TestResolverVideoInfoInstagram(t *testing.T) {
	r := NewResolver(config.DefaultConfig())
	r.instagram.SetStrategies([]Strategy{
		{Name: "stub", Run: func(ctx context.Context, rawURL string) (string, error) {
			return "https://cdn.example/reel.mp4", nil
		}},
	})

	md, err := r.VideoInfo(context.Background(), "https://www.instagram.com/reel/abc/")
	if err != nil {
		t.Fatal(err)
	}
	if md.Platform != platform.Instagram {
		t.Errorf("Platform = %q", md.Platform)
	}
	if md.VideoURL != "https://cdn.example/reel.mp4" {
		t.Errorf("VideoURL = %q", md.VideoURL)
	}
	if md.Title != "Instagram Video" {
		t.Errorf("Title = %q", md.Title)
	}
}
