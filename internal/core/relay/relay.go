// Package relay streams upstream media through the server so clients
// never talk to CDN hosts directly, and converts streams to mp3 when a
// download asks for audio.
package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/vidrelay/vidrelay/internal/core/extractor"
)

// DefaultUserAgent is sent to upstream CDNs that reject requests
// without a browser identity.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Relay proxies upstream media responses to HTTP clients.
type Relay struct {
	client     *http.Client
	transcoder *Transcoder
}

// New creates a relay. The client has no timeout because media
// transfers legitimately run for minutes.
func New() *Relay {
	return &Relay{
		client: &http.Client{
			Timeout: 0,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
			},
		},
		transcoder: NewTranscoder(),
	}
}

// Open fetches the upstream URL and returns the response with its body
// still open. The caller owns the body.
func (r *Relay) Open(ctx context.Context, upstreamURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extractor.ErrUpstreamUnavailable, err)
	}

	if len(headers) > 0 {
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	} else {
		req.Header.Set("User-Agent", DefaultUserAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extractor.ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: upstream returned %s", extractor.ErrUpstreamUnavailable, resp.Status)
	}
	return resp, nil
}

// Pipe copies src to w with download headers. Content-Length is
// omitted when the size is unknown. Callers must treat a returned
// error as a mid-stream abort: headers and a partial body are already
// committed, so nothing else may be written to w.
func (r *Relay) Pipe(w http.ResponseWriter, src io.Reader, filename, contentType string, length int64) error {
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Type", contentType)
	if length > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", length))
	}

	if _, err := io.Copy(w, src); err != nil {
		// The response is already streaming; nothing to recover.
		return err
	}
	return nil
}

// PipeMP3 transcodes src to mp3 and streams the result to w. No
// Content-Length is sent because the encoded size is unknown until the
// stream ends.
func (r *Relay) PipeMP3(ctx context.Context, w http.ResponseWriter, src io.Reader, filename string) error {
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Type", "audio/mpeg")

	return r.transcoder.ToMP3(ctx, src, w)
}

// SaveMP3 transcodes src into the file at path.
func (r *Relay) SaveMP3(ctx context.Context, src io.Reader, path string) error {
	return saveMP3(ctx, r.transcoder, src, path)
}
