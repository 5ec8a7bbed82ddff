package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalogbot/internal/domain"
)

// fakeFetcher serves canned listing and detail pages keyed by URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	gets  []string
}

func (f *fakeFetcher) Get(_ context.Context, url string) (*goquery.Document, error) {
	f.mu.Lock()
	f.gets = append(f.gets, url)
	html, ok := f.pages[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no page for %s", url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// memCatalog is an in-memory Catalog with the same find-then-insert
// contract as the Postgres store.
type memCatalog struct {
	mu    sync.Mutex
	items map[string]domain.Item
}

func newMemCatalog() *memCatalog {
	return &memCatalog{items: make(map[string]domain.Item)}
}

func (c *memCatalog) FindByName(_ context.Context, name string) (*domain.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[name]; ok {
		return &item, nil
	}
	return nil, nil
}

func (c *memCatalog) Insert(_ context.Context, item *domain.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[item.Name]; ok {
		return domain.ErrDuplicate
	}
	c.items[item.Name] = *item
	return nil
}

// fakeAI scripts the structured extraction pass.
type fakeAI struct {
	configured bool
	items      []domain.Item
	err        error
	received   []domain.RawRecord
}

func (f *fakeAI) Configured() bool { return f.configured }

func (f *fakeAI) Extract(_ context.Context, records []domain.RawRecord, _ string) ([]domain.Item, error) {
	f.received = records
	return f.items, f.err
}

func slug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// listingPage renders a minimal blog-style listing with one post per name.
func listingPage(names []string, extra string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, name := range names {
		fmt.Fprintf(&b, `<div class="post"><h2 class="entry-title"><a href="/%s.html">%s</a></h2><p>Free download of %s for Windows.</p></div>`,
			slug(name), name, name)
	}
	b.WriteString(extra)
	b.WriteString("</body></html>")
	return b.String()
}

const (
	baseURL  = "https://example.com/category/tools/"
	page2URL = "https://example.com/category/tools/page/2/"
	page3URL = "https://example.com/category/tools/page/3/"
)

func newTestPipeline(fetcher *fakeFetcher, extractor StructuredExtractor, catalog Catalog) *Pipeline {
	return New(fetcher, extractor, catalog, nil, zap.NewNop()).WithSleeps(0, 0)
}

func TestQuickScrapeMultiplePages(t *testing.T) {
	t.Parallel()

	t.Run("paginated run dedupes across pages", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{
			baseURL: listingPage(
				[]string{"Disk Tool One", "Disk Tool Two", "Disk Tool Three", "Disk Tool Four", "Disk Tool Five"},
				`<div class="pagination"><a href="`+page2URL+`">2</a></div>`),
			page2URL: listingPage(
				[]string{"Disk Tool Six", "Disk Tool Seven", "Disk Tool One"}, ""),
		}}
		catalog := newMemCatalog()
		p := newTestPipeline(fetcher, nil, catalog)

		items, report, err := p.QuickScrapeMultiplePages(context.Background(), baseURL, 2, "", 42)
		require.NoError(t, err)

		assert.Len(t, items, 8)
		assert.Equal(t, 2, report.PagesScraped)
		assert.Equal(t, 8, report.TotalItems)
		assert.Equal(t, 7, report.AddedSoftware)
		assert.Equal(t, 0, report.AddedGames)
		assert.Equal(t, 1, report.Duplicates)
		assert.Equal(t, 0, report.Errors)

		stored, err := catalog.FindByName(context.Background(), "Disk Tool One")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, domain.TypeSoftware, stored.Type)
		assert.Equal(t, "Utilities", stored.Category)
		assert.Equal(t, int64(42), stored.AddedBy)
		assert.True(t, stored.Scraped)
		assert.Equal(t, []string{"Windows"}, stored.OS)
	})

	t.Run("second identical run is all duplicates", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{
			baseURL: listingPage([]string{"Disk Tool One", "Disk Tool Two"}, ""),
		}}
		catalog := newMemCatalog()
		p := newTestPipeline(fetcher, nil, catalog)

		_, first, err := p.QuickScrapeMultiplePages(context.Background(), baseURL, 1, "", 1)
		require.NoError(t, err)
		require.Equal(t, 2, first.AddedSoftware)

		_, second, err := p.QuickScrapeMultiplePages(context.Background(), baseURL, 1, "", 1)
		require.NoError(t, err)
		assert.Equal(t, 0, second.AddedSoftware+second.AddedGames)
		assert.Equal(t, 2, second.Duplicates)
	})

	t.Run("unlimited mode stops at the first empty synthesized page", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{
			baseURL:  listingPage([]string{"Disk Tool One", "Disk Tool Two"}, ""),
			page2URL: listingPage([]string{"Disk Tool Three"}, ""),
			page3URL: "<html><body><p>nothing here</p></body></html>",
		}}
		catalog := newMemCatalog()
		p := newTestPipeline(fetcher, nil, catalog)

		items, report, err := p.QuickScrapeMultiplePages(context.Background(), baseURL, 0, "", 1)
		require.NoError(t, err)

		assert.Len(t, items, 3)
		assert.Equal(t, 2, report.PagesScraped)
		assert.Equal(t, 3, report.AddedSoftware)
		assert.Contains(t, fetcher.gets, page3URL)
	})

	t.Run("unreachable base URL is fatal", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{}}
		p := newTestPipeline(fetcher, nil, newMemCatalog())

		_, report, err := p.QuickScrapeMultiplePages(context.Background(), baseURL, 2, "", 1)
		require.Error(t, err)
		assert.NotEmpty(t, report.FatalError)
	})

	t.Run("custom category wins over URL inference", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{
			baseURL: listingPage([]string{"Disk Tool One"}, ""),
		}}
		catalog := newMemCatalog()
		p := newTestPipeline(fetcher, nil, catalog)

		items, _, err := p.QuickScrapeMultiplePages(context.Background(), baseURL, 1, "Recovery Tools", 1)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Recovery Tools", items[0].Category)
	})
}

func TestFullScrapeWithDetails(t *testing.T) {
	t.Parallel()

	filler := strings.Repeat("A thorough description of what this utility does and why. ", 3)
	detail := `<html><body>
		<div class="entry-content">` + filler + `Size: 2 GB</div>
		<a href="https://www.mediafire.com/file/abc/tool.zip">Download</a>
	</body></html>`

	fetcher := &fakeFetcher{pages: map[string]string{
		baseURL: listingPage([]string{"Disk Tool One"}, ""),
		"https://example.com/disk-tool-one.html": detail,
	}}
	catalog := newMemCatalog()
	p := newTestPipeline(fetcher, nil, catalog)

	items, report, err := p.FullScrapeWithDetails(context.Background(), baseURL, 1, "", 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, 1, report.AddedSoftware)
	require.Len(t, items[0].DownloadLinks, 1)
	assert.Equal(t, "https://www.mediafire.com/file/abc/tool.zip", items[0].DownloadLinks[0].URL)
	assert.Equal(t, "2 GB", items[0].FileSize)
	assert.Contains(t, items[0].Description, "thorough description")
}

func TestScrapeMultiplePagesAI(t *testing.T) {
	t.Parallel()

	contentBlock := `<div class="post-content">` +
		strings.Repeat("Detailed page content about the release, requirements and mirrors. ", 10) +
		`</div>`

	t.Run("collects detail pages and ingests extracted items", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{
			baseURL: listingPage([]string{"Alpha Racer", "Beta Editor"}, ""),
			"https://example.com/alpha-racer.html": "<html><body>" + contentBlock + "</body></html>",
			"https://example.com/beta-editor.html": "<html><body>" + contentBlock + "</body></html>",
		}}
		extractor := &fakeAI{configured: true, items: []domain.Item{
			{Name: "Alpha Racer", Type: domain.TypeGame, Category: "Racing"},
			{Name: "Beta Editor", Type: domain.TypeSoftware, Category: "Graphics"},
		}}
		catalog := newMemCatalog()
		p := newTestPipeline(fetcher, extractor, catalog)

		items, report, err := p.ScrapeMultiplePages(context.Background(), baseURL, 1, "", 7)
		require.NoError(t, err)

		require.Len(t, extractor.received, 2)
		assert.Equal(t, "Alpha Racer", extractor.received[0].Title)
		assert.Equal(t, "https://example.com/alpha-racer.html", extractor.received[0].URL)
		assert.NotEmpty(t, extractor.received[0].HTML)

		assert.Len(t, items, 2)
		assert.Equal(t, 1, report.AddedGames)
		assert.Equal(t, 1, report.AddedSoftware)

		stored, err := catalog.FindByName(context.Background(), "Alpha Racer")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.True(t, stored.IsGame)
	})

	t.Run("missing credentials abort before any fetch", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{}}
		p := newTestPipeline(fetcher, &fakeAI{configured: false}, newMemCatalog())

		_, report, err := p.ScrapeMultiplePages(context.Background(), baseURL, 1, "", 1)
		require.Error(t, err)
		assert.Contains(t, report.FatalError, "not configured")
		assert.Empty(t, fetcher.gets)
	})

	t.Run("extraction yielding nothing is fatal", func(t *testing.T) {
		t.Parallel()
		fetcher := &fakeFetcher{pages: map[string]string{
			baseURL: listingPage([]string{"Alpha Racer"}, ""),
			"https://example.com/alpha-racer.html": "<html><body>" + contentBlock + "</body></html>",
		}}
		p := newTestPipeline(fetcher, &fakeAI{configured: true}, newMemCatalog())

		_, report, err := p.ScrapeMultiplePages(context.Background(), baseURL, 1, "", 1)
		require.Error(t, err)
		assert.NotEmpty(t, report.FatalError)
	})
}

func TestIngest(t *testing.T) {
	t.Parallel()

	t.Run("applies defaults and caps on insert", func(t *testing.T) {
		t.Parallel()
		catalog := newMemCatalog()
		p := newTestPipeline(&fakeFetcher{}, nil, catalog)

		links := make([]domain.DownloadLink, 5)
		for i := range links {
			links[i] = domain.DownloadLink{URL: fmt.Sprintf("https://host/file%d.zip", i), Type: "scraped"}
		}
		report := p.Ingest(context.Background(), []domain.Item{{
			Name:          "Bare Item",
			Type:          domain.TypeSoftware,
			Description:   strings.Repeat("d", insertDescriptionCap+100),
			DownloadLinks: links,
		}}, 9)

		assert.Equal(t, 1, report.AddedSoftware)

		stored, err := catalog.FindByName(context.Background(), "Bare Item")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "N/A", stored.Version)
		assert.Equal(t, "Uncategorized", stored.Category)
		assert.Equal(t, domain.DefaultFileSize, stored.FileSize)
		assert.Len(t, stored.Description, insertDescriptionCap)
		assert.Len(t, stored.DownloadLinks, insertLinkCap)
		assert.Equal(t, int64(9), stored.AddedBy)
		assert.False(t, stored.IsGame)
	})

	t.Run("insert-level duplicate error counts as duplicate", func(t *testing.T) {
		t.Parallel()
		catalog := newMemCatalog()
		require.NoError(t, catalog.Insert(context.Background(), &domain.Item{Name: "Racing Game"}))

		p := newTestPipeline(&fakeFetcher{}, nil, &findBlindCatalog{inner: catalog})
		report := p.Ingest(context.Background(), []domain.Item{{Name: "Racing Game", Type: domain.TypeGame}}, 1)

		assert.Equal(t, 1, report.Duplicates)
		assert.Equal(t, 0, report.AddedGames)
	})

	t.Run("lookup failures count as errors and the run continues", func(t *testing.T) {
		t.Parallel()
		catalog := &erroringCatalog{failName: "Broken Item", inner: newMemCatalog()}
		p := newTestPipeline(&fakeFetcher{}, nil, catalog)

		report := p.Ingest(context.Background(), []domain.Item{
			{Name: "Broken Item", Type: domain.TypeGame},
			{Name: "Fine Item", Type: domain.TypeGame},
		}, 1)

		assert.Equal(t, 1, report.Errors)
		assert.Equal(t, 1, report.AddedGames)
	})
}

// findBlindCatalog simulates a race where the name appears between the
// lookup and the insert: FindByName always misses, Insert hits the
// uniqueness constraint.
type findBlindCatalog struct {
	inner *memCatalog
}

func (c *findBlindCatalog) FindByName(context.Context, string) (*domain.Item, error) {
	return nil, nil
}

func (c *findBlindCatalog) Insert(ctx context.Context, item *domain.Item) error {
	return c.inner.Insert(ctx, item)
}

type erroringCatalog struct {
	failName string
	inner    *memCatalog
}

func (c *erroringCatalog) FindByName(ctx context.Context, name string) (*domain.Item, error) {
	if name == c.failName {
		return nil, errors.New("connection refused")
	}
	return c.inner.FindByName(ctx, name)
}

func (c *erroringCatalog) Insert(ctx context.Context, item *domain.Item) error {
	return c.inner.Insert(ctx, item)
}
