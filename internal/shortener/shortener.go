// Package shortener wraps URL-shortening affiliate services behind a
// cached Shorten call. The catalog core never consults it directly; the
// serving layer shortens outbound download links on the way out.
package shortener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const cacheTTL = 30 * 24 * time.Hour

// Cache stores previously shortened links keyed by the original URL.
type Cache interface {
	GetShortURL(ctx context.Context, originalURL string) (string, bool, error)
	SetShortURL(ctx context.Context, originalURL, shortURL string, ttl time.Duration) error
}

// Service shortens URLs through an affiliate API, consulting the cache
// first. On any provider failure the original URL is returned unchanged so
// callers never lose a link.
type Service struct {
	baseURL string
	apiKey  string
	client  *http.Client
	cache   Cache
	logger  *zap.Logger
}

func New(baseURL, apiKey string, cache Cache, logger *zap.Logger) *Service {
	return &Service{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   cache,
		logger:  logger,
	}
}

type shortenResponse struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	Message      string `json:"message"`
}

// Shorten returns a monetized short link for originalURL.
func (s *Service) Shorten(ctx context.Context, originalURL string) (string, error) {
	if s.apiKey == "" {
		return originalURL, nil
	}

	if s.cache != nil {
		if short, ok, err := s.cache.GetShortURL(ctx, originalURL); err == nil && ok {
			return short, nil
		}
	}

	apiURL := fmt.Sprintf("%s?api=%s&url=%s", s.baseURL, s.apiKey, url.QueryEscape(originalURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return originalURL, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("shortener request failed", zap.Error(err))
		return originalURL, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("shortener returned non-200", zap.Int("status", resp.StatusCode))
		return originalURL, nil
	}

	var parsed shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return originalURL, nil
	}
	if parsed.Status != "success" || parsed.ShortenedURL == "" {
		s.logger.Warn("shortener rejected URL", zap.String("message", parsed.Message))
		return originalURL, nil
	}

	if s.cache != nil {
		if err := s.cache.SetShortURL(ctx, originalURL, parsed.ShortenedURL, cacheTTL); err != nil {
			s.logger.Warn("shortener cache write failed", zap.Error(err))
		}
	}
	return parsed.ShortenedURL, nil
}
