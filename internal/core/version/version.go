package version

// Version is the current vidrelay release version.
// Overridden at build time via -ldflags "-X .../internal/core/version.Version=x.y.z"
var Version = "0.4.2"
