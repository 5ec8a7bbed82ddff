package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalogbot/internal/domain"
)

const (
	defaultBatchSize = 10
	htmlSnippetLimit = 3000
	temperature      = 0.1
)

// Free-tier models tried in priority order. Rate-limit or not-found moves
// down the list; only when every model fails does the key rotate.
var freeModels = []string{
	"qwen/qwen-2.5-7b-instruct:free",
	"meta-llama/llama-3.2-3b-instruct:free",
	"google/gemini-flash-1.5:free",
	"mistralai/mistral-7b-instruct:free",
}

const systemPrompt = "You are a data extraction expert. Always respond with valid JSON array only. No markdown, no explanations."

// Extractor turns raw detail-page HTML into normalized catalog items via a
// language-model completion pass.
type Extractor struct {
	provider   Provider
	pool       *CredentialPool
	logger     *zap.Logger
	batchSize  int
	maxTokens  int
	batchSleep time.Duration
	models     []string
	onBatch    func()
}

func NewExtractor(provider Provider, pool *CredentialPool, maxTokens int, logger *zap.Logger) *Extractor {
	if maxTokens <= 0 {
		maxTokens = 8000
	}
	return &Extractor{
		provider:   provider,
		pool:       pool,
		logger:     logger,
		batchSize:  defaultBatchSize,
		maxTokens:  maxTokens,
		batchSleep: time.Second,
		models:     freeModels,
	}
}

// WithBatchSleep overrides the pause between batches. Used by tests.
func (e *Extractor) WithBatchSleep(d time.Duration) *Extractor {
	e.batchSleep = d
	return e
}

// WithBatchSize overrides the records-per-completion batch size.
func (e *Extractor) WithBatchSize(n int) *Extractor {
	if n > 0 {
		e.batchSize = n
	}
	return e
}

// WithBatchHook registers a callback fired once per completion batch sent.
func (e *Extractor) WithBatchHook(fn func()) *Extractor {
	e.onBatch = fn
	return e
}

// Configured reports whether any credential is available.
func (e *Extractor) Configured() bool {
	return e.pool != nil && e.pool.Active() > 0
}

// extractedItem is the JSON shape the model is instructed to return.
type extractedItem struct {
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Version       string   `json:"version"`
	Category      string   `json:"category"`
	FileSize      string   `json:"file_size"`
	Description   string   `json:"description"`
	DownloadLinks []string `json:"download_links"`
}

// Extract processes records in fixed-size batches and returns one item per
// record the model managed to extract. Batches that fail to parse are
// dropped and counted, not retried. ErrNotConfigured is returned when no
// credentials exist so callers can distinguish that from zero results.
func (e *Extractor) Extract(ctx context.Context, records []domain.RawRecord, customCategory string) ([]domain.Item, error) {
	if !e.Configured() {
		return nil, ErrNotConfigured
	}
	if len(records) == 0 {
		return nil, nil
	}

	var results []domain.Item

	for start := 0; start < len(records); start += e.batchSize {
		end := start + e.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		if e.onBatch != nil {
			e.onBatch()
		}
		items, err := e.extractBatch(ctx, batch)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				return nil, err
			}
			e.logger.Error("AI batch failed",
				zap.Int("batch", start/e.batchSize+1), zap.Error(err))
			continue
		}
		results = append(results, items...)
		e.logger.Info("AI batch processed",
			zap.Int("batch", start/e.batchSize+1), zap.Int("extracted", len(items)))

		if end < len(records) {
			time.Sleep(e.batchSleep)
		}
	}

	if customCategory != "" {
		for i := range results {
			results[i].Category = customCategory
		}
	}

	return results, nil
}

func (e *Extractor) extractBatch(ctx context.Context, batch []domain.RawRecord) ([]domain.Item, error) {
	prompt := buildPrompt(batch)

	response, err := e.completeWithRotation(ctx, prompt)
	if err != nil {
		return nil, err
	}

	raw, strategy, ok := recoverJSONArray(response)
	if !ok {
		return nil, fmt.Errorf("no JSON array in model response")
	}
	e.logger.Debug("parsed model response", zap.String("strategy", strategy), zap.Int("objects", len(raw)))

	var items []domain.Item
	for i, msg := range raw {
		if i >= len(batch) {
			break
		}
		var ex extractedItem
		if err := json.Unmarshal(msg, &ex); err != nil || ex.Name == "" {
			continue
		}
		items = append(items, e.toItem(ex, batch[i].URL))
	}
	return items, nil
}

// completeWithRotation walks the model priority list under the current
// credential, rotating to the next credential when every model is rate
// limited or the key's quota is gone.
func (e *Extractor) completeWithRotation(ctx context.Context, prompt string) (string, error) {
	attempts := e.pool.Active()
keyLoop:
	for attempt := 0; attempt < attempts; attempt++ {
		key, ok := e.pool.Next()
		if !ok {
			return "", ErrNotConfigured
		}

		for _, model := range e.models {
			resp, err := e.provider.Complete(ctx, key, model, systemPrompt, prompt, temperature, e.maxTokens)
			if err == nil {
				return resp, nil
			}
			switch {
			case errors.Is(err, ErrRateLimited), errors.Is(err, ErrModelNotFound):
				e.logger.Warn("model unavailable, trying next", zap.String("model", model), zap.Error(err))
			case errors.Is(err, ErrQuotaExhausted), errors.Is(err, ErrAuth):
				e.logger.Warn("credential no longer usable, rotating", zap.Error(err))
				e.pool.MarkExhausted(key)
				continue keyLoop
			default:
				return "", err
			}
		}
	}
	return "", fmt.Errorf("all credentials exhausted or rate limited: %w", ErrRateLimited)
}

func buildPrompt(batch []domain.RawRecord) string {
	var b strings.Builder
	for i, rec := range batch {
		snippet := rec.HTML
		if len(snippet) > htmlSnippetLimit {
			snippet = snippet[:htmlSnippetLimit]
		}
		fmt.Fprintf(&b, "\n--- ITEM %d ---\nTitle: %s\nURL: %s\nHTML snippet:\n%s\n\n", i+1, rec.Title, rec.URL, snippet)
	}

	return fmt.Sprintf(`Extract software/game information from the following items.

Return ONLY a valid JSON array where each object has these exact fields:
{
  "name": "full name of the software/game",
  "type": "game" or "software",
  "version": "version number if found, else 'Latest'",
  "category": "category/genre - for games: Action, Adventure, Racing, RPG, Sports, Strategy, etc. For software: Video, Graphics, Utilities, Productivity, Security, etc.",
  "file_size": "file size with unit if found (e.g., 2GB, 500MB), else 'Unknown'",
  "description": "brief description from the content (max 200 chars)",
  "download_links": ["ALL download URLs found in the HTML: mediafire, mega, drive.google, dropbox, direct file links, uploadhaven, etc."]
}

IMPORTANT RULES:
1. Set "type" to "game" for video games, "software" for applications/programs/tools
2. Extract ACTUAL download URLs from the HTML
3. Category must be specific (not just "Game" or "Software")
4. Return an array of %d objects in the same order as the items
5. Return an empty array for download_links when none are found

Items to extract:
%s
Return ONLY the JSON array, no explanations:`, len(batch), b.String())
}

func (e *Extractor) toItem(ex extractedItem, sourceURL string) domain.Item {
	itemType := domain.TypeSoftware
	if strings.EqualFold(ex.Type, "game") {
		itemType = domain.TypeGame
	}
	if ex.Version == "" {
		ex.Version = domain.DefaultVersion
	}
	if ex.FileSize == "" {
		ex.FileSize = domain.DefaultFileSize
	}
	if ex.Category == "" {
		ex.Category = "Uncategorized"
	}
	links := make([]domain.DownloadLink, 0, len(ex.DownloadLinks))
	for _, u := range ex.DownloadLinks {
		links = append(links, domain.DownloadLink{URL: u, Type: "scraped"})
	}
	return domain.Item{
		Name:          ex.Name,
		Type:          itemType,
		Version:       ex.Version,
		Category:      ex.Category,
		FileSize:      ex.FileSize,
		Description:   ex.Description,
		DownloadLinks: links,
		SourceURL:     sourceURL,
	}
}
