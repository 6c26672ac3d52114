package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vidrelay/vidrelay/internal/core/config"
)

const (
	// browserUserAgent makes page fetches look like a regular browser.
	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// defaultLookupEndpoint is the hosted third-party lookup API.
	defaultLookupEndpoint = "https://instagram-downloader-download-instagram-videos-stories.p.rapidapi.com/index"

	// lookupTimeout bounds the hosted API call.
	lookupTimeout = 10 * time.Second

	// maxPageBytes caps how much of a scraped page is read.
	maxPageBytes = 5 << 20
)

// Strategy is one independent way of resolving an Instagram page URL to a
// direct media URL. Strategies either return a URL or an error; the chain
// advances on any error.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, rawURL string) (string, error)
}

// InstagramResolver resolves Instagram page URLs to direct media URLs by
// trying an ordered chain of strategies until one succeeds.
type InstagramResolver struct {
	client         *http.Client
	scraper        PageScraper
	lookupEndpoint string
	rapidAPIKey    string
	strategies     []Strategy
}

// NewInstagramResolver builds the resolver with the default strategy order:
// embed API, hosted lookup API, page scrape.
func NewInstagramResolver(cfg *config.Config) *InstagramResolver {
	r := &InstagramResolver{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
		scraper:        NewPageScraper(),
		lookupEndpoint: defaultLookupEndpoint,
		rapidAPIKey:    cfg.Instagram.RapidAPIKey,
	}
	r.strategies = []Strategy{
		{Name: "embed", Run: r.fetchFromEmbedAPI},
		{Name: "lookup", Run: r.fetchFromLookupAPI},
		{Name: "page", Run: r.fetchFromPage},
	}
	return r
}

// SetStrategies replaces the fallback chain. Mainly a test seam, but also
// lets callers disable strategies.
func (r *InstagramResolver) SetStrategies(strategies []Strategy) {
	r.strategies = strategies
}

// Resolve runs the chain in order and returns the first direct media URL.
// A strategy "succeeds" when it yields a non-empty string; the URL is not
// verified for reachability. When every strategy fails the returned error
// wraps ErrAllMethodsFailed plus each strategy's error.
func (r *InstagramResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	var errs []error
	for _, s := range r.strategies {
		mediaURL, err := s.Run(ctx, rawURL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		if mediaURL == "" {
			errs = append(errs, fmt.Errorf("%s: empty result", s.Name))
			continue
		}
		return mediaURL, nil
	}
	return "", fmt.Errorf("%w: %w", ErrAllMethodsFailed, errors.Join(errs...))
}

// Download resolves the page URL and wraps the result for the requested
// output format. Video requests hand back the direct URL; audio requests
// route through the server-side transcode relay.
func (r *InstagramResolver) Download(ctx context.Context, rawURL, format string) (*ResolvedDownload, error) {
	directURL, err := r.Resolve(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if format == "mp3" {
		return &ResolvedDownload{
			StreamPath: "/api/stream-instagram-audio?url=" + url.QueryEscape(rawURL),
			Filename:   InstagramFilename("mp3"),
			Title:      "Instagram Video",
			Container:  "mp3",
			Quality:    "Audio",
		}, nil
	}

	return &ResolvedDownload{
		DirectURL:    directURL,
		Filename:     InstagramFilename("mp4"),
		Title:        "Instagram Video",
		Container:    "mp4",
		Quality:      "HD",
		IsDirectFile: true,
	}, nil
}

// fetchFromEmbedAPI asks Instagram's own JSON representation of the post.
func (r *InstagramResolver) fetchFromEmbedAPI(ctx context.Context, rawURL string) (string, error) {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	reqURL := rawURL + sep + "__a=1&__d=dis"

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("embed request failed with status %d", resp.StatusCode)
	}

	var payload struct {
		Items []struct {
			VideoVersions []struct {
				URL string `json:"url"`
			} `json:"video_versions"`
		} `json:"items"`
		GraphQL struct {
			ShortcodeMedia struct {
				VideoURL string `json:"video_url"`
			} `json:"shortcode_media"`
		} `json:"graphql"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to parse embed response: %w", err)
	}

	if len(payload.Items) > 0 && len(payload.Items[0].VideoVersions) > 0 {
		return payload.Items[0].VideoVersions[0].URL, nil
	}
	if payload.GraphQL.ShortcodeMedia.VideoURL != "" {
		return payload.GraphQL.ShortcodeMedia.VideoURL, nil
	}
	return "", fmt.Errorf("no media found in embed response")
}

// fetchFromLookupAPI queries the hosted third-party lookup API.
func (r *InstagramResolver) fetchFromLookupAPI(ctx context.Context, rawURL string) (string, error) {
	if r.rapidAPIKey == "" {
		return "", fmt.Errorf("lookup API key not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	reqURL := r.lookupEndpoint + "?url=" + url.QueryEscape(rawURL)
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return "", err
	}

	host := req.URL.Hostname()
	req.Header.Set("X-RapidAPI-Key", r.rapidAPIKey)
	req.Header.Set("X-RapidAPI-Host", host)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("lookup request failed with status %d", resp.StatusCode)
	}

	var result struct {
		Media string `json:"media"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse lookup response: %w", err)
	}
	if result.Media == "" {
		return "", fmt.Errorf("no media field in lookup response")
	}
	return result.Media, nil
}

// fetchFromPage downloads the raw page HTML and hands it to the scraper.
func (r *InstagramResolver) fetchFromPage(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}

	mediaURL, ok := r.scraper.ExtractVideoURL(string(body))
	if !ok {
		return "", fmt.Errorf("no video URL found in page source")
	}
	return mediaURL, nil
}
