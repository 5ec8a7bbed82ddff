package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"catalogbot/internal/ai"
	"catalogbot/internal/domain"
	"catalogbot/internal/scrape"
)

const (
	detailPerPageCap     = 15
	minDetailContentLen  = 300
	maxConsecutiveEmpty  = 2
	insertLinkCap        = 3
	insertDescriptionCap = 500
)

// Catalog is the persistent item store the pipeline commits into.
// FindByName returns (nil, nil) when no item with that name exists.
type Catalog interface {
	FindByName(ctx context.Context, name string) (*domain.Item, error)
	Insert(ctx context.Context, item *domain.Item) error
}

// StructuredExtractor is the AI extraction pass over raw detail pages.
type StructuredExtractor interface {
	Configured() bool
	Extract(ctx context.Context, records []domain.RawRecord, customCategory string) ([]domain.Item, error)
}

// Recorder receives pipeline counters. monitoring.Metrics implements it.
type Recorder interface {
	IncPagesScraped()
	IncItemsAdded(itemType string)
	IncDuplicates()
	IncErrors(errorType string)
}

type noopRecorder struct{}

func (noopRecorder) IncPagesScraped()     {}
func (noopRecorder) IncItemsAdded(string) {}
func (noopRecorder) IncDuplicates()       {}
func (noopRecorder) IncErrors(string)     {}

// Pipeline orchestrates pagination discovery, listing extraction, optional
// detail enrichment or AI extraction, and deduplicated catalog commits.
// Execution is deliberately sequential: one outstanding request per host at
// a time keeps scraped sites from rate limiting or blocking us.
type Pipeline struct {
	fetcher   scrape.Getter
	listing   *scrape.Extractor
	enricher  *scrape.Enricher
	extractor StructuredExtractor
	catalog   Catalog
	metrics   Recorder
	logger    *zap.Logger

	pageSleep   time.Duration
	detailSleep time.Duration
}

func New(fetcher scrape.Getter, extractor StructuredExtractor, catalog Catalog, metrics Recorder, logger *zap.Logger) *Pipeline {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Pipeline{
		fetcher:     fetcher,
		listing:     scrape.NewExtractor(logger),
		enricher:    scrape.NewEnricher(fetcher, logger),
		extractor:   extractor,
		catalog:     catalog,
		metrics:     metrics,
		logger:      logger,
		pageSleep:   2 * time.Second,
		detailSleep: time.Second,
	}
}

// WithSleeps overrides the inter-page and inter-detail pauses. Used by tests.
func (p *Pipeline) WithSleeps(page, detail time.Duration) *Pipeline {
	p.pageSleep = page
	p.detailSleep = detail
	return p
}

// QuickScrapeMultiplePages extracts items straight off listing pages with
// no AI pass and no detail visits, then ingests them. maxPages == 0 means
// unlimited: pages are synthesized one at a time until an empty page stops
// the run.
func (p *Pipeline) QuickScrapeMultiplePages(ctx context.Context, baseURL string, maxPages int, customCategory string, actor int64) ([]domain.Item, domain.Report, error) {
	if maxPages < 0 {
		return p.fatal(fmt.Errorf("invalid page count %d", maxPages))
	}
	cls := scrape.ResolveClassification(baseURL, customCategory)
	p.logger.Info("quick scrape starting",
		zap.String("url", baseURL), zap.Int("max_pages", maxPages),
		zap.String("category", cls.Category), zap.String("type", string(cls.Type)))

	items, pages, err := p.collectListingItems(ctx, baseURL, maxPages, cls)
	if err != nil {
		return p.fatal(err)
	}
	if len(items) == 0 {
		return p.fatal(errors.New("no items found on any page"))
	}

	report := p.Ingest(ctx, items, actor)
	report.PagesScraped = pages
	report.TotalItems = len(items)
	return items, report, nil
}

// FullScrapeWithDetails runs the quick listing phase, then visits every
// item's detail page to pull download links, description, size and version.
// Enricher values replace listing values only when the listing holds a
// placeholder.
func (p *Pipeline) FullScrapeWithDetails(ctx context.Context, baseURL string, maxPages int, customCategory string, actor int64) ([]domain.Item, domain.Report, error) {
	if maxPages < 0 {
		return p.fatal(fmt.Errorf("invalid page count %d", maxPages))
	}
	cls := scrape.ResolveClassification(baseURL, customCategory)
	p.logger.Info("full scrape starting", zap.String("url", baseURL), zap.Int("max_pages", maxPages))

	items, pages, err := p.collectListingItems(ctx, baseURL, maxPages, cls)
	if err != nil {
		return p.fatal(err)
	}
	if len(items) == 0 {
		return p.fatal(errors.New("no items found on any page"))
	}

	var enrichErrors int
	for i := range items {
		item := &items[i]
		if item.SourceURL == "" || item.SourceURL == baseURL {
			enrichErrors++
			continue
		}

		details := p.enricher.Enrich(ctx, item.SourceURL)

		if len(details.DownloadLinks) > 0 {
			links := make([]domain.DownloadLink, 0, len(details.DownloadLinks))
			for _, u := range details.DownloadLinks {
				links = append(links, domain.DownloadLink{URL: u, Type: "scraped"})
			}
			item.DownloadLinks = links
		}
		if len(details.Description) > len(item.Description) {
			item.Description = details.Description
		}
		if details.FileSize != domain.DefaultFileSize && (item.FileSize == "" || item.FileSize == domain.DefaultFileSize) {
			item.FileSize = details.FileSize
		}
		if details.Version != domain.DefaultVersion && (item.Version == "" || item.Version == domain.DefaultVersion) {
			item.Version = details.Version
		}

		if i < len(items)-1 {
			time.Sleep(p.detailSleep)
		}
	}

	report := p.Ingest(ctx, items, actor)
	report.PagesScraped = pages
	report.TotalItems = len(items)
	report.Errors += enrichErrors
	return items, report, nil
}

// ScrapeMultiplePages collects raw detail-page HTML across listing pages
// and hands the whole lot to the AI extractor for normalization.
func (p *Pipeline) ScrapeMultiplePages(ctx context.Context, baseURL string, maxPages int, customCategory string, actor int64) ([]domain.Item, domain.Report, error) {
	if maxPages < 1 {
		return p.fatal(fmt.Errorf("invalid page count %d", maxPages))
	}
	if !p.extractor.Configured() {
		return p.fatal(errors.New("AI extractor is not configured: set OPENROUTER_KEYS"))
	}

	p.logger.Info("AI scrape starting", zap.String("url", baseURL), zap.Int("max_pages", maxPages))

	firstDoc, err := p.fetcher.Get(ctx, baseURL)
	if err != nil {
		return p.fatal(fmt.Errorf("failed to fetch base URL %s: %w", baseURL, err))
	}

	pageURLs := scrape.DetectPagination(firstDoc, baseURL, maxPages)
	if len(pageURLs) == 1 && maxPages > 1 {
		p.logger.Info("no pagination detected, scraping single page", zap.String("url", baseURL))
	}

	var records []domain.RawRecord
	pages := 0
	consecutiveEmpty := 0

	for i, pageURL := range pageURLs {
		pageDoc := firstDoc
		if i > 0 {
			time.Sleep(p.pageSleep)
			pageDoc, err = p.fetcher.Get(ctx, pageURL)
			if err != nil {
				p.metrics.IncErrors("page_fetch")
				consecutiveEmpty++
				if consecutiveEmpty >= maxConsecutiveEmpty {
					break
				}
				continue
			}
		}

		pageRecords := p.collectRawRecords(ctx, pageDoc, pageURL)
		if len(pageRecords) > 0 {
			records = append(records, pageRecords...)
			pages++
			consecutiveEmpty = 0
			p.metrics.IncPagesScraped()
		} else {
			consecutiveEmpty++
			p.logger.Warn("no items on page", zap.String("url", pageURL), zap.Int("consecutive_empty", consecutiveEmpty))
			if consecutiveEmpty >= maxConsecutiveEmpty && i > 0 {
				break
			}
		}
	}

	if len(records) == 0 {
		return p.fatal(errors.New("no items found during scraping: the site structure may be unusual, protected, or a single page with no accessible content"))
	}

	p.logger.Info("raw collection done", zap.Int("records", len(records)), zap.Int("pages", pages))

	items, err := p.extractor.Extract(ctx, records, customCategory)
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			return p.fatal(errors.New("AI extractor is not configured: set OPENROUTER_KEYS"))
		}
		return p.fatal(fmt.Errorf("AI extraction failed: %w", err))
	}
	if len(items) == 0 {
		return p.fatal(errors.New("AI failed to organize the scraped data"))
	}

	report := p.Ingest(ctx, items, actor)
	report.PagesScraped = pages
	report.TotalItems = len(items)
	return items, report, nil
}

// collectListingItems drives the page loop for the quick and full modes.
func (p *Pipeline) collectListingItems(ctx context.Context, baseURL string, maxPages int, cls scrape.Classification) ([]domain.Item, int, error) {
	if maxPages == 0 {
		return p.collectUnlimited(ctx, baseURL, cls)
	}

	firstDoc, err := p.fetcher.Get(ctx, baseURL)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch base URL %s: %w", baseURL, err)
	}

	pageURLs := scrape.DetectPagination(firstDoc, baseURL, maxPages)

	var all []domain.Item
	pages := 0
	consecutiveEmpty := 0

	for i, pageURL := range pageURLs {
		pageDoc := firstDoc
		if i > 0 {
			time.Sleep(p.pageSleep)
			pageDoc, err = p.fetcher.Get(ctx, pageURL)
			if err != nil {
				p.metrics.IncErrors("page_fetch")
				consecutiveEmpty++
				if consecutiveEmpty >= maxConsecutiveEmpty {
					break
				}
				continue
			}
		}

		pageItems := p.listing.ExtractItems(pageDoc, pageURL, cls)
		if len(pageItems) > 0 {
			all = append(all, pageItems...)
			pages++
			consecutiveEmpty = 0
			p.metrics.IncPagesScraped()
		} else {
			consecutiveEmpty++
			p.logger.Warn("no items on page", zap.String("url", pageURL), zap.Int("consecutive_empty", consecutiveEmpty))
			if consecutiveEmpty >= maxConsecutiveEmpty && i > 0 {
				break
			}
		}
	}

	return all, pages, nil
}

// collectUnlimited synthesizes page URLs one at a time and stops as soon
// as a page after the first yields nothing. The page-count ceiling, when
// wanted, is the command layer's job.
func (p *Pipeline) collectUnlimited(ctx context.Context, baseURL string, cls scrape.Classification) ([]domain.Item, int, error) {
	var all []domain.Item
	pages := 0

	for page := 1; ; page++ {
		pageURL := scrape.SynthesizePageURL(baseURL, page)
		if page > 1 {
			time.Sleep(p.pageSleep)
		}

		pageDoc, err := p.fetcher.Get(ctx, pageURL)
		if err != nil {
			if page == 1 {
				return nil, 0, fmt.Errorf("failed to fetch base URL %s: %w", baseURL, err)
			}
			p.metrics.IncErrors("page_fetch")
			break
		}

		pageItems := p.listing.ExtractItems(pageDoc, pageURL, cls)
		if len(pageItems) == 0 {
			if page > 1 {
				p.logger.Info("no more items, stopping", zap.Int("page", page))
				break
			}
			continue
		}

		all = append(all, pageItems...)
		pages++
		p.metrics.IncPagesScraped()
	}

	return all, pages, nil
}

// collectRawRecords fetches detail pages for the candidates on one listing
// page, keeping bounded HTML snippets for the AI pass.
func (p *Pipeline) collectRawRecords(ctx context.Context, doc *goquery.Document, pageURL string) []domain.RawRecord {
	candidates := scrape.ExtractCandidates(doc, pageURL)
	if len(candidates) > detailPerPageCap {
		candidates = candidates[:detailPerPageCap]
	}

	var records []domain.RawRecord
	for _, cand := range candidates {
		detailDoc, err := p.fetcher.Get(ctx, cand.DetailURL)
		if err != nil {
			p.metrics.IncErrors("detail_fetch")
			continue
		}

		html := scrape.ExtractContentHTML(detailDoc)
		if len(html) > minDetailContentLen {
			records = append(records, domain.RawRecord{Title: cand.Title, URL: cand.DetailURL, HTML: html})
		}
		time.Sleep(p.detailSleep)
	}
	return records
}

// Ingest deduplicates items against the catalog by exact name and commits
// the rest. Item-level failures are counted and the loop continues.
func (p *Pipeline) Ingest(ctx context.Context, items []domain.Item, actor int64) domain.Report {
	var report domain.Report
	now := time.Now()

	for _, item := range items {
		existing, err := p.catalog.FindByName(ctx, item.Name)
		if err != nil {
			report.Errors++
			p.metrics.IncErrors("db_lookup")
			p.logger.Error("catalog lookup failed", zap.String("name", item.Name), zap.Error(err))
			continue
		}
		if existing != nil {
			report.Duplicates++
			p.metrics.IncDuplicates()
			continue
		}

		doc := item
		if doc.Version == "" {
			doc.Version = "N/A"
		}
		if doc.Category == "" {
			doc.Category = "Uncategorized"
		}
		if doc.FileSize == "" {
			doc.FileSize = domain.DefaultFileSize
		}
		if len(doc.Description) > insertDescriptionCap {
			doc.Description = doc.Description[:insertDescriptionCap]
		}
		if len(doc.DownloadLinks) > insertLinkCap {
			doc.DownloadLinks = doc.DownloadLinks[:insertLinkCap]
		}
		doc.OS = []string{"Windows"}
		doc.DownloadsCount = 0
		doc.AverageRating = 0
		doc.ReviewsCount = 0
		doc.DateAdded = now
		doc.AddedBy = actor
		doc.Scraped = true
		doc.IsGame = doc.Type == domain.TypeGame

		if err := p.catalog.Insert(ctx, &doc); err != nil {
			if errors.Is(err, domain.ErrDuplicate) {
				report.Duplicates++
				p.metrics.IncDuplicates()
			} else {
				report.Errors++
				p.metrics.IncErrors("db_insert")
				p.logger.Error("catalog insert failed", zap.String("name", doc.Name), zap.Error(err))
			}
			continue
		}

		if doc.IsGame {
			report.AddedGames++
		} else {
			report.AddedSoftware++
		}
		p.metrics.IncItemsAdded(string(doc.Type))
	}

	return report
}

func (p *Pipeline) fatal(err error) ([]domain.Item, domain.Report, error) {
	p.logger.Error("pipeline aborted", zap.Error(err))
	return nil, domain.Report{FatalError: err.Error()}, err
}
