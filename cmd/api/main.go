package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/yt-dashboard/internal/api"
	"github.com/yt-dashboard/internal/auth"
	"github.com/yt-dashboard/internal/cache"
	"github.com/yt-dashboard/internal/config"
	"github.com/yt-dashboard/internal/logging"
	"github.com/yt-dashboard/internal/models"
	"github.com/yt-dashboard/internal/progress"
	"github.com/yt-dashboard/internal/suggest"
	"github.com/yt-dashboard/internal/youtube"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load environment variables from .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Configure(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "yt-dashboard"})
	logger := logging.WithComponent("main")
	if envErr != nil {
		logger.Debug().Msg(".env file not found")
	}

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(cfg.GinMode)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snapshots, err := openSnapshots(ctx, cfg)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	client := youtube.NewClient(youtube.ClientConfig{
		APIBaseURL:        cfg.YouTube.APIBaseURL,
		RequestsPerSecond: cfg.YouTube.RequestsPerSecond,
		Burst:             cfg.YouTube.Burst,
	}, logging.WithComponent("youtube"))

	dashboard := youtube.NewDashboard(youtube.DashboardConfig{
		Client:    client,
		Store:     store,
		TTL:       cfg.Cache.TTL,
		Snapshots: snapshots,
		Logger:    logging.WithComponent("dashboard"),
	})

	uploader := youtube.NewUploader(youtube.UploaderConfig{
		BaseURL:        cfg.Upload.BaseURL,
		ChunkSize:      cfg.Upload.ChunkSize,
		MaxRetries:     cfg.Upload.MaxRetries,
		InitialBackoff: cfg.Upload.InitialBackoff,
		MaxBackoff:     cfg.Upload.MaxBackoff,
	}, logging.WithComponent("uploader"))

	var broker auth.TokenBroker
	if cfg.IdentityEnabled() {
		broker = auth.NewIdentityClient(auth.IdentityConfig{
			APIURL:    cfg.Identity.APIURL,
			SecretKey: cfg.Identity.SecretKey,
			Provider:  cfg.Identity.Provider,
		}, store, logging.WithComponent("identity"))
	} else {
		logger.Warn().Msg("IDENTITY_SECRET_KEY not set, only bearer tokens are accepted")
	}

	deps := api.Deps{
		Cache:      store,
		Dashboard:  dashboard,
		Uploader:   uploader,
		Thumbnails: client,
		Progress:   progress.NewTracker(store),
		Resolver:   auth.NewResolver(broker, logging.WithComponent("auth")),
		Logger:     logging.WithComponent("api"),
	}
	if cfg.ML.GeminiAPIKey != "" {
		gemini, err := suggest.NewGemini(ctx, cfg.ML.GeminiAPIKey, cfg.ML.Model, logging.WithComponent("suggest"))
		if err != nil {
			return err
		}
		deps.Suggester = gemini
	} else {
		logger.Info().Msg("GEMINI_API_KEY not set, suggestions disabled")
	}

	server := api.NewServer(cfg, deps)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return <-errCh
}

// openStore uses Redis when REDIS_ADDR is set and process memory otherwise.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryStore(time.Minute), nil
	}
	store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		Prefix:   "ytdash:",
	}, logging.WithComponent("redis"))
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openSnapshots(ctx context.Context, cfg *config.Config) (models.SnapshotStore, error) {
	switch cfg.DB.Driver {
	case "sqlite":
		return models.NewLocalDatabase(ctx, cfg.DB.Path)
	case "sqlitecloud":
		return models.NewCloudDatabase(cfg.DB.Path, logging.WithComponent("database"))
	}
	return models.NopSnapshotStore{}, nil
}
