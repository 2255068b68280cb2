package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/auth"
	"github.com/yt-dashboard/internal/cache"
	"github.com/yt-dashboard/internal/config"
	"github.com/yt-dashboard/internal/logging"
	"github.com/yt-dashboard/internal/metrics"
	"github.com/yt-dashboard/internal/models"
	"github.com/yt-dashboard/internal/suggest"
	"github.com/yt-dashboard/internal/youtube"
	ytv3 "google.golang.org/api/youtube/v3"
)

// Dashboard serves the read routes
type Dashboard interface {
	ChannelData(ctx context.Context, caller youtube.Caller) (*models.ChannelListResponse, error)
	TrendingVideos(ctx context.Context, caller youtube.Caller) ([]models.VideoSummary, error)
	VideoStats(ctx context.Context, caller youtube.Caller, videoID string) (*models.VideoStatistics, error)
}

// Uploader sends a video through the resumable upload protocol
type Uploader interface {
	Upload(ctx context.Context, caller youtube.Caller, req youtube.UploadRequest, progress youtube.ProgressFunc) (*ytv3.Video, error)
}

// ThumbnailSetter attaches a custom thumbnail to an uploaded video
type ThumbnailSetter interface {
	SetThumbnail(ctx context.Context, caller youtube.Caller, videoID string, image io.Reader, contentType string) error
}

// ProgressTracker records upload progress per user
type ProgressTracker interface {
	Set(ctx context.Context, userID string, percent int) error
	Get(ctx context.Context, userID string) (int, error)
	Complete(ctx context.Context, userID string) error
	Clear(ctx context.Context, userID string) error
}

const healthTimeout = 2 * time.Second

// Deps are the collaborators of the API server. Suggester may be nil, which
// disables the ML route. Cache, when it is a cache.Pinger, is checked by
// /health.
type Deps struct {
	Cache      cache.Store
	Dashboard  Dashboard
	Uploader   Uploader
	Thumbnails ThumbnailSetter
	Progress   ProgressTracker
	Resolver   *auth.Resolver
	Suggester  suggest.Suggester
	Logger     zerolog.Logger
}

// Server represents the API server
type Server struct {
	cfg        *config.Config
	router     *gin.Engine
	httpServer *http.Server

	dashboard  Dashboard
	uploader   Uploader
	thumbnails ThumbnailSetter
	progress   ProgressTracker
	resolver   *auth.Resolver
	suggester  suggest.Suggester
	pinger     cache.Pinger
	logger     zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(deps.Logger), metrics.Middleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-User-ID", "Pragma", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length", "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server := &Server{
		cfg:        cfg,
		router:     router,
		dashboard:  deps.Dashboard,
		uploader:   deps.Uploader,
		thumbnails: deps.Thumbnails,
		progress:   deps.Progress,
		resolver:   deps.Resolver,
		suggester:  deps.Suggester,
		logger:     deps.Logger,
	}
	if p, ok := deps.Cache.(cache.Pinger); ok {
		server.pinger = p
	}

	// Setup routes
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server
}

// setupRoutes configures all the routes for the server
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	yt := s.router.Group("/api/youtube")
	yt.GET("/categories", s.getCategories)
	yt.GET("/upload", s.getUploadProgress)
	yt.POST("/upload", s.uploadVideo)

	// Read endpoints act on the caller's own channel
	read := yt.Group("", auth.Middleware(s.resolver, denyRead))
	read.GET("/channel", s.getChannel)
	read.GET("/playlistItems", s.getPlaylistItems)
	read.GET("/videos", s.getVideoStats)

	s.router.POST("/api/ml/uploadVideo", s.suggestMetadata)
}

func (s *Server) health(c *gin.Context) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("cache unreachable")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  "cache unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
