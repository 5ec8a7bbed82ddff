package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"catalogbot/internal/domain"
)

func (s *Server) handleScrapeRequest(w http.ResponseWriter, r *http.Request) {
	var req domain.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := url.ParseRequestURI(req.URL); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid URL: "+req.URL)
		return
	}
	if req.Pages < 0 || req.Pages > s.config.MaxPagesLimit {
		s.respondWithError(w, http.StatusBadRequest, "Page count out of range")
		return
	}

	if !req.Force && s.redisStore != nil {
		recent, err := s.redisStore.IsSourceRecentlyScraped(r.Context(), req.URL)
		if err != nil {
			s.logger.Warn("source mark lookup failed", zap.Error(err))
		} else if recent {
			s.respondWithError(w, http.StatusConflict, "Source was scraped recently; pass force to rerun")
			return
		}
	}

	var (
		items  []domain.Item
		report domain.Report
		err    error
	)

	switch req.Mode {
	case "ai":
		items, report, err = s.pipeline.ScrapeMultiplePages(r.Context(), req.URL, req.Pages, req.Category, 0)
	case "full":
		items, report, err = s.pipeline.FullScrapeWithDetails(r.Context(), req.URL, req.Pages, req.Category, 0)
	case "quick", "":
		items, report, err = s.pipeline.QuickScrapeMultiplePages(r.Context(), req.URL, req.Pages, req.Category, 0)
	default:
		s.respondWithError(w, http.StatusBadRequest, "Unknown mode: "+req.Mode)
		return
	}

	if err != nil {
		s.respondWithJSON(w, http.StatusUnprocessableEntity, report)
		return
	}

	if s.redisStore != nil {
		ttl := time.Duration(s.config.SourceMarkDays) * 24 * time.Hour
		if markErr := s.redisStore.MarkSourceScraped(r.Context(), req.URL, ttl); markErr != nil {
			s.logger.Warn("failed to mark source as scraped", zap.Error(markErr))
		}
	}

	s.logger.Info("scrape run finished",
		zap.String("url", req.URL), zap.String("mode", req.Mode),
		zap.Int("added_games", report.AddedGames), zap.Int("added_software", report.AddedSoftware),
		zap.Int("duplicates", report.Duplicates), zap.Int("errors", report.Errors))

	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"report": report,
		"items":  len(items),
	})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	itemType := r.URL.Query().Get("type")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := s.catalog.ListItems(r.Context(), itemType, limit)
	if err != nil {
		s.logger.Error("failed to list items", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list items")
		return
	}

	// Outbound links go through the affiliate shortener, cache first.
	if s.shortener != nil {
		for i := range items {
			for j, link := range items[i].DownloadLinks {
				short, err := s.shortener.Shorten(r.Context(), link.URL)
				if err == nil {
					items[i].DownloadLinks[j].URL = short
				}
			}
		}
	}

	s.respondWithJSON(w, http.StatusOK, items)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	games, err := s.catalog.CountByType(r.Context(), string(domain.TypeGame))
	if err != nil {
		s.logger.Error("failed to count games", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not compute stats")
		return
	}
	software, err := s.catalog.CountByType(r.Context(), string(domain.TypeSoftware))
	if err != nil {
		s.logger.Error("failed to count software", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not compute stats")
		return
	}

	s.respondWithJSON(w, http.StatusOK, map[string]int64{
		"games":    games,
		"software": software,
		"total":    games + software,
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.catalog.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.redisStore.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	isHealthy := healthStatus["postgres"] == "healthy" && healthStatus["redis"] == "healthy"
	if !isHealthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}

	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
