package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptLanguage = "en-US,en;q=0.9"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Fetcher is a rate-limited HTTP client that returns parsed documents.
// A fixed requests-per-minute ceiling is enforced by sleeping out the
// remainder of the minimum inter-request interval. Failures are returned
// to the caller; no retries happen at this layer.
type Fetcher struct {
	client      *http.Client
	logger      *zap.Logger
	minInterval time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// New creates a Fetcher with the given requests-per-minute ceiling and
// per-request timeout in seconds.
func New(requestsPerMinute, timeoutSeconds int, logger *zap.Logger) *Fetcher {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 20
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 15
	}
	return &Fetcher{
		client:      &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
		logger:      logger,
		minInterval: time.Minute / time.Duration(requestsPerMinute),
	}
}

func (f *Fetcher) waitIfNeeded() {
	f.mu.Lock()
	last := f.lastCall
	f.mu.Unlock()

	if !last.IsZero() {
		if elapsed := time.Since(last); elapsed < f.minInterval {
			time.Sleep(f.minInterval - elapsed)
		}
	}

	f.mu.Lock()
	f.lastCall = time.Now()
	f.mu.Unlock()
}

// Get fetches url and parses the response body into a document.
func (f *Fetcher) Get(ctx context.Context, url string) (*goquery.Document, error) {
	f.waitIfNeeded()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.Warn("fetch returned non-2xx", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", url, err)
	}
	return doc, nil
}
