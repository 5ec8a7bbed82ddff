package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"catalogbot/internal/config"
	"catalogbot/internal/pipeline"
	"catalogbot/internal/shortener"
	"catalogbot/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	pipeline   *pipeline.Pipeline
	catalog    *storage.CatalogStore
	redisStore *storage.RedisStore
	shortener  *shortener.Service
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, p *pipeline.Pipeline, cs *storage.CatalogStore, rs *storage.RedisStore, sh *shortener.Service, l *zap.Logger) *Server {
	s := &Server{
		config:     cfg,
		pipeline:   p,
		catalog:    cs,
		redisStore: rs,
		shortener:  sh,
		logger:     l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		// Scrape runs are long; the write timeout has to cover a full
		// multi-page ingestion.
		WriteTimeout: 30 * time.Minute,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
