package scrape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalogbot/internal/domain"
)

// fakeGetter serves canned HTML per URL.
type fakeGetter struct {
	pages map[string]string
}

func (f *fakeGetter) Get(_ context.Context, url string) (*goquery.Document, error) {
	html, ok := f.pages[url]
	if !ok {
		return nil, errors.New("not found: " + url)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

const detailPage = `<html><body>
	<div class="entry-content">
		This classic racing game puts you behind the wheel of over forty licensed
		cars across three continents. Career mode, split screen and online play
		are all included in this edition. Version 1.4.2 ships with every track pack.
		Size: 2.5 GB
	</div>
	<a href="https://www.mediafire.com/file/abc123/game.zip">Download Mirror 1</a>
	<a href="https://mega.nz/file/xyz789">Download Mirror 2</a>
	<a href="https://www.mediafire.com/file/abc123/game.zip">Duplicate Mirror</a>
	<a href="https://example.com/how-to-download-games/">How to download</a>
	<a href="/password.html">Password</a>
</body></html>`

func TestEnricher(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()

	t.Run("extracts links, description, size and version", func(t *testing.T) {
		t.Parallel()
		getter := &fakeGetter{pages: map[string]string{
			"https://example.com/racing-game.html": detailPage,
		}}
		enricher := NewEnricher(getter, logger)

		details := enricher.Enrich(context.Background(), "https://example.com/racing-game.html")

		require.Len(t, details.DownloadLinks, 2)
		assert.Equal(t, "https://www.mediafire.com/file/abc123/game.zip", details.DownloadLinks[0])
		assert.Equal(t, "https://mega.nz/file/xyz789", details.DownloadLinks[1])
		assert.Contains(t, details.Description, "classic racing game")
		assert.LessOrEqual(t, len(details.Description), maxDescriptionLen)
		assert.Equal(t, "2.5 GB", details.FileSize)
		assert.Equal(t, "1.4.2", details.Version)
	})

	t.Run("fetch failure returns defaults instead of an error", func(t *testing.T) {
		t.Parallel()
		enricher := NewEnricher(&fakeGetter{pages: map[string]string{}}, logger)

		details := enricher.Enrich(context.Background(), "https://example.com/missing.html")

		assert.Empty(t, details.DownloadLinks)
		assert.Empty(t, details.Description)
		assert.Equal(t, domain.DefaultFileSize, details.FileSize)
		assert.Equal(t, domain.DefaultVersion, details.Version)
	})

	t.Run("help pages are excluded even when they match download patterns", func(t *testing.T) {
		t.Parallel()
		getter := &fakeGetter{pages: map[string]string{
			"https://example.com/item.html": `<html><body>
				<a href="https://example.com/how-to-download-and-install/">download guide</a>
			</body></html>`,
		}}
		enricher := NewEnricher(getter, logger)

		details := enricher.Enrich(context.Background(), "https://example.com/item.html")

		assert.Empty(t, details.DownloadLinks)
	})

	t.Run("link collection stops at the cap", func(t *testing.T) {
		t.Parallel()
		var b strings.Builder
		b.WriteString("<html><body>")
		for i := 0; i < 15; i++ {
			b.WriteString(`<a href="https://www.mediafire.com/file/link` + string(rune('a'+i)) + `/part.zip">mirror</a>`)
		}
		b.WriteString("</body></html>")

		getter := &fakeGetter{pages: map[string]string{"https://example.com/many.html": b.String()}}
		enricher := NewEnricher(getter, logger)

		details := enricher.Enrich(context.Background(), "https://example.com/many.html")

		assert.Len(t, details.DownloadLinks, maxDownloadLinks)
	})
}

func TestExtractContentHTML(t *testing.T) {
	t.Parallel()

	t.Run("prefers the main content block and strips chrome", func(t *testing.T) {
		t.Parallel()
		filler := strings.Repeat("Interesting paragraph about the game. ", 20)
		doc := docFromHTML(t, `<html><body>
			<nav>site menu</nav>
			<div class="post-content">
				<script>trackVisit()</script>
				<p>`+filler+`</p>
			</div>
			<footer>footer text</footer>
		</body></html>`)

		html := ExtractContentHTML(doc)

		assert.Contains(t, html, "Interesting paragraph")
		assert.NotContains(t, html, "trackVisit")
		assert.NotContains(t, html, "site menu")
		assert.LessOrEqual(t, len(html), contentHTMLLimit)
	})

	t.Run("falls back to body when no content block is large enough", func(t *testing.T) {
		t.Parallel()
		doc := docFromHTML(t, `<html><body><p>tiny</p></body></html>`)

		html := ExtractContentHTML(doc)

		assert.Contains(t, html, "tiny")
	})
}
