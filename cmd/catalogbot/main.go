package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"catalogbot/internal/ai"
	"catalogbot/internal/api"
	"catalogbot/internal/config"
	"catalogbot/internal/fetch"
	"catalogbot/internal/monitoring"
	"catalogbot/internal/pipeline"
	"catalogbot/internal/scrape"
	"catalogbot/internal/shortener"
	"catalogbot/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize Storage Layer
	catalog, err := storage.NewCatalogStore(cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer catalog.Close()
	redisStore := storage.NewRedisStore(cfg.RedisAddr)

	// Initialize Monitoring
	metrics := monitoring.NewMetrics()

	// Initialize Fetcher (plain HTTP or headless browser)
	var fetcher scrape.Getter = fetch.New(cfg.RequestsPerMinute, cfg.FetchTimeout, logger)
	if cfg.UseBrowser {
		fetcher = fetch.NewRendered(cfg.FetchTimeout, logger)
	}

	// Initialize AI Extractor
	pool := ai.NewCredentialPool(cfg.APIKeys())
	extractor := ai.NewExtractor(ai.NewOpenRouterProvider(), pool, cfg.AIMaxTokens, logger).
		WithBatchSize(cfg.AIBatchSize).
		WithBatchHook(metrics.IncAIBatches)

	// Initialize Core Pipeline
	corePipeline := pipeline.New(fetcher, extractor, catalog, metrics, logger)

	// Initialize Shortener
	short := shortener.New(cfg.ShortenerBaseURL, cfg.ShortenerAPIKey, redisStore, logger)

	// Initialize API Server
	server := api.NewServer(cfg, corePipeline, catalog, redisStore, short, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
