package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vidrelay/vidrelay/internal/core/config"
	"github.com/vidrelay/vidrelay/internal/core/version"
	"github.com/vidrelay/vidrelay/internal/server"
)

var (
	servePort      int
	serveOutputDir string
	serveBaseURL   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP server that classifies video URLs, resolves metadata
and relays media downloads.

Examples:
  vidrelay serve              # Start server on the configured port
  vidrelay serve -p 9000      # Start server on port 9000
  vidrelay serve -o ~/dl      # Use custom output directory

API Endpoints:
  GET  /api/health                  # Health check
  POST /api/detect-platform         # Classify a video URL
  POST /api/video-info              # Resolve video metadata
  POST /api/download                # Resolve a download link or queue a job
  GET  /api/stream-youtube          # Relay a YouTube stream
  GET  /api/stream-instagram        # Relay an Instagram video
  GET  /api/stream-instagram-audio  # Relay Instagram audio as mp3
  GET  /api/jobs                    # List persisted download jobs`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port")
	serveCmd.Flags().StringVarP(&serveOutputDir, "output", "o", "", "output directory for persisted downloads")
	serveCmd.Flags().StringVar(&serveBaseURL, "base-url", "", "public base URL used in download links")

	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg := config.LoadOrDefault()

	// Flags override config and environment
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveOutputDir != "" {
		cfg.OutputDir = serveOutputDir
	}
	if serveBaseURL != "" {
		cfg.Server.BaseURL = serveBaseURL
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("vidrelay v%s\n", version.Version)
	fmt.Printf("Listening on %s\n", cfg.Server.BaseURL)

	srv := server.NewServer(cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	return srv.Start()
}
