package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/vidrelay/vidrelay/internal/core/config"
	"github.com/vidrelay/vidrelay/internal/core/extractor"
	"github.com/vidrelay/vidrelay/internal/core/platform"
	"github.com/vidrelay/vidrelay/internal/core/relay"
	"github.com/vidrelay/vidrelay/internal/core/version"
)

// URLRequest is the request body for endpoints that take a single URL.
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// DownloadRequest is the request body for POST /api/download.
type DownloadRequest struct {
	URL      string `json:"url" binding:"required"`
	Platform string `json:"platform,omitempty"`
	Format   string `json:"format,omitempty"`
	Quality  string `json:"quality,omitempty"`
	Persist  bool   `json:"persist,omitempty"`
}

// infoResolver and friends are the extractor surfaces the handlers
// depend on, kept narrow so tests can substitute fakes.
type infoResolver interface {
	VideoInfo(ctx context.Context, rawURL string) (*extractor.Metadata, error)
}

type downloadResolver interface {
	Download(ctx context.Context, rawURL string, p platform.Platform, format, quality string) (*extractor.ResolvedDownload, error)
}

type youtubeStreamer interface {
	OpenStream(ctx context.Context, rawURL, format string) (io.ReadCloser, int64, string, error)
}

type instagramSource interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// Server is the HTTP API for URL classification, metadata resolution
// and media relaying.
type Server struct {
	cfg      *config.Config
	info     infoResolver
	download downloadResolver
	youtube  youtubeStreamer
	insta    instagramSource
	relay    *relay.Relay
	jobQueue *JobQueue
	engine   *gin.Engine
	server   *http.Server
}

// NewServer wires the extractors and relay from config.
func NewServer(cfg *config.Config) *Server {
	resolver := extractor.NewResolver(cfg)

	s := &Server{
		cfg:      cfg,
		info:     resolver,
		download: resolver,
		youtube:  resolver.YouTube(),
		insta:    resolver.Instagram(),
		relay:    relay.New(),
	}
	s.jobQueue = NewJobQueue(cfg.Server.MaxConcurrent, s.downloadJob)
	s.buildEngine()
	return s
}

func (s *Server) buildEngine() {
	gin.SetMode(gin.ReleaseMode)

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.corsMiddleware())
	s.engine.Use(s.loggingMiddleware())
	if s.cfg.Server.RateLimit > 0 {
		s.engine.Use(s.rateLimitMiddleware(s.cfg.Server.RateLimit))
	}
	if s.cfg.Server.APIKey != "" {
		s.engine.Use(s.authMiddleware())
	}

	s.engine.GET("/", s.handleRoot)

	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/test", s.handleTest)
	api.POST("/detect-platform", s.handleDetectPlatform)
	api.POST("/video-info", s.handleVideoInfo)
	api.POST("/download", s.handleDownload)
	api.GET("/stream-youtube", s.handleStreamYouTube)
	api.GET("/stream-instagram", s.handleStreamInstagram)
	api.GET("/stream-instagram-audio", s.handleStreamInstagramAudio)
	api.GET("/jobs", s.handleGetJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.DELETE("/jobs/:id", s.handleDeleteJob)
	api.DELETE("/jobs", s.handleClearJobs)

	s.engine.Static("/downloads", s.cfg.OutputDir)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "not found",
		})
	})
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	s.jobQueue.Start()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // media relays run for minutes
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting vidrelay server on port %d", s.cfg.Server.Port)
	log.Printf("Output directory: %s", s.cfg.OutputDir)
	if s.cfg.Server.APIKey != "" {
		log.Printf("API key authentication enabled")
	}

	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.jobQueue.Stop()
	return s.server.Shutdown(ctx)
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Middleware

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Printf("%s %s %s", c.Request.Method, c.Request.URL.Path, time.Since(start))
	}
}

func (s *Server) rateLimitMiddleware(perSecond float64) gin.HandlerFunc {
	limiter := rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "too many requests",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Health stays open for probes
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		if c.GetHeader("X-API-Key") != s.cfg.Server.APIKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "invalid or missing API key",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Handlers

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "vidrelay",
		"version": version.Version,
		"endpoints": []string{
			"POST /api/detect-platform",
			"POST /api/video-info",
			"POST /api/download",
			"GET /api/stream-youtube",
			"GET /api/stream-instagram",
			"GET /api/stream-instagram-audio",
			"GET /api/jobs",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "API is working",
	})
}

func (s *Server) handleDetectPlatform(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url is required")
		return
	}

	p := platform.Classify(req.URL)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"platform":  p,
		"supported": platform.Supported(p),
	})
}

func (s *Server) handleVideoInfo(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url is required")
		return
	}

	md, err := s.info.VideoInfo(c.Request.Context(), req.URL)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"platform":  md.Platform,
		"title":     md.Title,
		"thumbnail": md.Thumbnail,
		"duration":  md.Duration,
		"author":    md.Author,
		"formats":   md.Formats,
	})
}

func (s *Server) handleDownload(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "url is required")
		return
	}

	// An explicit platform in the body wins; otherwise classify the URL.
	p := platform.Parse(req.Platform)
	if p == platform.Unknown {
		p = platform.Classify(req.URL)
	}
	rd, err := s.download.Download(c.Request.Context(), req.URL, p, req.Format, req.Quality)
	if err != nil {
		s.fail(c, err)
		return
	}

	if req.Persist {
		job, err := s.jobQueue.AddJob(req.URL, p, req.Format, rd.Title, rd.Filename)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"jobId":    job.ID,
			"status":   job.Status,
			"filename": rd.Filename,
			"message":  "Download queued",
		})
		return
	}

	downloadURL := rd.DirectURL
	if rd.StreamPath != "" {
		downloadURL = s.cfg.Server.BaseURL + rd.StreamPath
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"downloadUrl": downloadURL,
		"filename":    rd.Filename,
		"title":       rd.Title,
		"message":     "Download link ready",
	})
}

func (s *Server) handleStreamYouTube(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		badRequest(c, "url query parameter is required")
		return
	}
	format := c.Query("format")

	rc, size, filename, err := s.youtube.OpenStream(c.Request.Context(), rawURL, format)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer rc.Close()

	if format == "mp3" {
		if err := s.relay.PipeMP3(c.Request.Context(), c.Writer, rc, filename); err != nil {
			log.Printf("stream-youtube: transcode aborted: %v", err)
		}
		return
	}

	if err := s.relay.Pipe(c.Writer, rc, filename, "video/mp4", size); err != nil {
		log.Printf("stream-youtube: relay aborted: %v", err)
	}
}

func (s *Server) handleStreamInstagram(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		badRequest(c, "url query parameter is required")
		return
	}

	directURL, err := s.insta.Resolve(c.Request.Context(), rawURL)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp, err := s.relay.Open(c.Request.Context(), directURL, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}
	filename := extractor.InstagramFilename("mp4")
	// Headers are committed once Pipe starts; a copy failure here can
	// only be logged, never answered with JSON.
	if err := s.relay.Pipe(c.Writer, resp.Body, filename, contentType, resp.ContentLength); err != nil {
		log.Printf("stream-instagram: relay aborted: %v", err)
	}
}

func (s *Server) handleStreamInstagramAudio(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		badRequest(c, "url query parameter is required")
		return
	}

	directURL, err := s.insta.Resolve(c.Request.Context(), rawURL)
	if err != nil {
		s.fail(c, err)
		return
	}

	resp, err := s.relay.Open(c.Request.Context(), directURL, nil)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer resp.Body.Close()

	filename := extractor.InstagramFilename("mp3")
	if err := s.relay.PipeMP3(c.Request.Context(), c.Writer, resp.Body, filename); err != nil {
		log.Printf("stream-instagram-audio: transcode aborted: %v", err)
	}
}

func (s *Server) handleGetJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    s.jobQueue.GetAllJobs(),
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job := s.jobQueue.GetJob(c.Param("id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "job not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job":     job,
	})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	id := c.Param("id")

	// Running jobs are cancelled; finished jobs are removed.
	switch {
	case s.jobQueue.CancelJob(id):
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "job cancelled",
		})
	case s.jobQueue.RemoveJob(id):
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "job removed",
		})
	default:
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "job not found",
		})
	}
}

func (s *Server) handleClearJobs(c *gin.Context) {
	count := s.jobQueue.ClearHistory()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"cleared": count,
	})
}

// Error mapping

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

// fail maps extractor errors to status codes and client-facing text.
// The underlying detail goes to the log, not the client.
func (s *Server) fail(c *gin.Context, err error) {
	log.Printf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)

	switch {
	case errors.Is(err, extractor.ErrInvalidURL):
		badRequest(c, "Invalid YouTube URL format")
	case errors.Is(err, extractor.ErrUnsupportedPlatform):
		badRequest(c, "Unsupported platform. Use YouTube, Instagram or TikTok URLs.")
	case errors.Is(err, extractor.ErrAllMethodsFailed):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Could not extract video from Instagram. The post may be private or removed.",
		})
	case errors.Is(err, extractor.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   "Upstream service unavailable. Please try again later.",
		})
	case errors.Is(err, relay.ErrTranscodeFailed):
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Audio conversion failed. Try again or request the video format.",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Internal server error",
		})
	}
}

// Persisted downloads

// downloadJob fetches a job's media into the output directory.
func (s *Server) downloadJob(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
	switch job.Platform {
	case platform.YouTube:
		return s.downloadYouTubeJob(ctx, job, progressFn)
	case platform.Instagram:
		return s.downloadInstagramJob(ctx, job, progressFn)
	default:
		return fmt.Errorf("%w: persisted downloads support YouTube and Instagram", extractor.ErrUnsupportedPlatform)
	}
}

func (s *Server) downloadYouTubeJob(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
	rc, size, filename, err := s.youtube.OpenStream(ctx, job.URL, job.Format)
	if err != nil {
		return err
	}
	defer rc.Close()

	if job.Filename != "" {
		filename = job.Filename
	} else {
		s.jobQueue.SetFilename(job.ID, filename)
	}
	outputPath := filepath.Join(s.cfg.OutputDir, filename)

	if job.Format == "mp3" {
		return s.relay.SaveMP3(ctx, rc, outputPath)
	}
	return saveStream(ctx, rc, outputPath, size, progressFn)
}

func (s *Server) downloadInstagramJob(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
	directURL, err := s.insta.Resolve(ctx, job.URL)
	if err != nil {
		return err
	}

	resp, err := s.relay.Open(ctx, directURL, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	filename := job.Filename
	if filename == "" {
		container := "mp4"
		if job.Format == "mp3" {
			container = "mp3"
		}
		filename = extractor.InstagramFilename(container)
		s.jobQueue.SetFilename(job.ID, filename)
	}
	outputPath := filepath.Join(s.cfg.OutputDir, filename)

	if job.Format == "mp3" {
		return s.relay.SaveMP3(ctx, resp.Body, outputPath)
	}
	return saveStream(ctx, resp.Body, outputPath, resp.ContentLength, progressFn)
}

// saveStream copies src into a file, checking for cancellation between
// chunks and reporting byte progress. The partial file is removed on
// failure.
func saveStream(ctx context.Context, src io.Reader, path string, total int64, progressFn func(downloaded, total int64)) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	buf := make([]byte, 32*1024)
	var downloaded int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			os.Remove(path)
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(path)
				return fmt.Errorf("write failed: %w", writeErr)
			}
			downloaded += int64(n)
			if progressFn != nil {
				progressFn(downloaded, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(path)
			return fmt.Errorf("download interrupted: %w", readErr)
		}
	}

	return out.Close()
}
