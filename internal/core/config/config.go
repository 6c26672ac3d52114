package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ConfigFileName = "config.yml"
	AppDirName     = "vidrelay"

	// DefaultPort matches the original deployment default.
	DefaultPort = 3000
)

// ConfigDir returns the standard config directory for vidrelay.
// Windows: %APPDATA%\vidrelay\
// macOS/Linux: ~/.config/vidrelay/
func ConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, AppDirName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// ConfigPath returns the path to the config file.
// e.g., ~/.config/vidrelay/config.yml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Config holds all server settings. It is constructed once at process start
// and passed by reference to every component that needs it.
type Config struct {
	// Server holds HTTP server settings
	Server ServerConfig `yaml:"server,omitempty"`

	// OutputDir is where persisted downloads are written
	OutputDir string `yaml:"output_dir,omitempty"`

	// Instagram holds settings for the Instagram extraction chain
	Instagram InstagramConfig `yaml:"instagram,omitempty"`

	// YouTube holds settings for the YouTube extractor
	YouTube YouTubeConfig `yaml:"youtube,omitempty"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	// Port is the HTTP listen port (default: 3000)
	Port int `yaml:"port,omitempty"`

	// BaseURL is prepended to relative download links in API responses
	// (e.g., "https://dl.example.com"). Empty means links stay relative.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKey for authentication. If set, API requests must include an
	// X-API-Key header. Empty disables authentication.
	APIKey string `yaml:"api_key,omitempty"`

	// MaxConcurrent is the max number of concurrent persisted downloads (default: 4)
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// RateLimit is the allowed request rate in requests/second.
	// Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit,omitempty"`
}

// InstagramConfig holds settings for the Instagram extraction chain
type InstagramConfig struct {
	// RapidAPIKey authenticates the hosted lookup API strategy.
	// Empty skips that strategy.
	RapidAPIKey string `yaml:"rapidapi_key,omitempty"`
}

// YouTubeConfig holds settings for the YouTube extractor
type YouTubeConfig struct {
	// TimeoutSeconds bounds the metadata fetch (default: 15)
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// DefaultDownloadDir returns the default output directory for persisted downloads.
func DefaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./downloads"
	}

	switch runtime.GOOS {
	case "darwin", "windows":
		return filepath.Join(home, "Downloads", AppDirName)
	default:
		return filepath.Join(home, "downloads")
	}
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          DefaultPort,
			MaxConcurrent: 4,
		},
		OutputDir: DefaultDownloadDir(),
		YouTube: YouTubeConfig{
			TimeoutSeconds: 15,
		},
	}
}

// Exists checks if config file exists
func Exists() bool {
	path, err := ConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the config from ~/.config/vidrelay/config.yml
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.OutputDir = expandPath(cfg.OutputDir)
	return cfg, nil
}

// LoadOrDefault loads the config file, falling back to defaults when the
// file is missing or unreadable. Environment overrides apply in both cases.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyEnv()
	return cfg
}

// Save writes the config to ~/.config/vidrelay/config.yml
func Save(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, ConfigFileName)
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides config values from the environment.
// PORT and BASE_URL match the original deployment; the rest are namespaced.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("VIDRELAY_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("VIDRELAY_OUTPUT_DIR"); v != "" {
		c.OutputDir = expandPath(v)
	}
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" {
		c.Instagram.RapidAPIKey = v
	}
}

// expandPath expands the tilde (~) in the path to the user's home directory.
// It handles both forward and backward slashes so config files written on
// Windows keep working elsewhere.
func expandPath(path string) string {
	if path == "" {
		return ""
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
