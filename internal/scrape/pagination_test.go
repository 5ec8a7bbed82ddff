package scrape

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestDetectPagination(t *testing.T) {
	t.Parallel()

	t.Run("no pagination links returns base URL only", func(t *testing.T) {
		t.Parallel()
		doc := docFromHTML(t, `<html><body>
			<a href="/about/">About</a>
			<a href="/contact/">Contact</a>
		</body></html>`)

		urls := DetectPagination(doc, "https://example.com/tools/", 10)

		require.Len(t, urls, 1)
		assert.Equal(t, "https://example.com/tools/", urls[0])
	})

	t.Run("first element is always the base URL", func(t *testing.T) {
		t.Parallel()
		doc := docFromHTML(t, `<html><body>
			<a href="/tools/page/2/">2</a>
			<a href="/tools/page/3/">3</a>
		</body></html>`)

		urls := DetectPagination(doc, "https://example.com/tools/", 3)

		require.Len(t, urls, 3)
		assert.Equal(t, "https://example.com/tools/", urls[0])
		assert.Equal(t, "https://example.com/tools/page/2/", urls[1])
		assert.Equal(t, "https://example.com/tools/page/3/", urls[2])
	})

	t.Run("missing index is synthesized from a discovered template", func(t *testing.T) {
		t.Parallel()
		doc := docFromHTML(t, `<html><body>
			<a href="/tools/page/2/">2</a>
			<a href="/tools/page/4/">4</a>
		</body></html>`)

		urls := DetectPagination(doc, "https://example.com/tools/", 4)

		require.Len(t, urls, 4)
		assert.Equal(t, "https://example.com/tools/page/2/", urls[1])
		assert.Contains(t, urls[2], "3")
		assert.Equal(t, "https://example.com/tools/page/3/", urls[2])
		assert.Equal(t, "https://example.com/tools/page/4/", urls[3])
	})

	t.Run("result never exceeds max pages", func(t *testing.T) {
		t.Parallel()
		doc := docFromHTML(t, `<html><body>
			<a href="/tools/page/2/">2</a>
			<a href="/tools/page/3/">3</a>
			<a href="/tools/page/4/">4</a>
		</body></html>`)

		urls := DetectPagination(doc, "https://example.com/tools/", 2)

		require.Len(t, urls, 2)
	})

	t.Run("query parameter pagination is recognized", func(t *testing.T) {
		t.Parallel()
		doc := docFromHTML(t, `<html><body>
			<a href="/list?page=2">next</a>
		</body></html>`)

		urls := DetectPagination(doc, "https://example.com/list", 2)

		require.Len(t, urls, 2)
		assert.Equal(t, "https://example.com/list?page=2", urls[1])
	})

	t.Run("page indices above ten are ignored", func(t *testing.T) {
		t.Parallel()
		doc := docFromHTML(t, `<html><body>
			<a href="/archive/2024/">2024</a>
		</body></html>`)

		urls := DetectPagination(doc, "https://example.com/archive/", 5)

		require.Len(t, urls, 1)
	})
}

func TestSynthesizePageURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		page int
		want string
	}{
		{"page one is the base", "https://example.com/tools/", 1, "https://example.com/tools/"},
		{"trailing slash", "https://example.com/tools/", 3, "https://example.com/tools/page/3/"},
		{"no trailing slash", "https://example.com/tools", 2, "https://example.com/tools/page/2/"},
		{"existing page segment replaced", "https://example.com/tools/page/5/", 2, "https://example.com/tools/page/2/"},
		{"grid site p-suffix", "https://www.apunkagames.com/action-games", 2, "https://www.apunkagames.com/action-games/p2"},
		{"grid site existing p-suffix replaced", "https://www.apunkagames.com/action-games/p4", 2, "https://www.apunkagames.com/action-games/p2"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SynthesizePageURL(tc.base, tc.page))
		})
	}
}
