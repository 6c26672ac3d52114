package extractor

import "errors"

// Sentinel errors for the extraction pipeline. Handlers map these to
// HTTP status codes and human-readable messages at the route boundary.
var (
	// ErrInvalidURL means the URL does not identify a video on its platform.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedPlatform means no extractor handles the URL's platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrUpstreamUnavailable means the platform or extraction service failed.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAllMethodsFailed means every strategy in a fallback chain failed.
	ErrAllMethodsFailed = errors.New("all extraction methods failed")
)
