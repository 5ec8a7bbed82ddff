package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalogbot/internal/domain"
)

// Titles that mark navigation links rather than catalog entries on
// link-grid listing pages.
var gridSkipTitles = []string{
	"home", "menu", "search", "password", "faqs", "privacy", "request",
}

// HTMLGridStrategy handles sites that lay out their category pages as a
// plain grid of `.html`-suffixed links instead of CMS article markup.
// Three layouts are tried in order: a category list ul, table cells, then
// any .html anchor on the page.
type HTMLGridStrategy struct {
	domains []string
}

// Domain signatures of sites using the .html link-grid layout. These sites
// also paginate with a /pN path suffix instead of /page/N/.
var defaultGridDomains = []string{"apunkagames"}

// NewHTMLGridStrategy builds the strategy for the given domain signatures.
// Passing nil keeps the default set.
func NewHTMLGridStrategy(domains []string) *HTMLGridStrategy {
	if domains == nil {
		domains = defaultGridDomains
	}
	return &HTMLGridStrategy{domains: domains}
}

// IsGridSite reports whether the URL belongs to a known link-grid site.
func IsGridSite(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, d := range defaultGridDomains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

func (h *HTMLGridStrategy) Name() string { return "html-grid" }

func (h *HTMLGridStrategy) Match(pageURL string) bool {
	lower := strings.ToLower(pageURL)
	for _, d := range h.domains {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

func (h *HTMLGridStrategy) Extract(doc *goquery.Document, pageURL string, cls Classification) []domain.Item {
	if items := h.fromCatList(doc, cls); len(items) > 0 {
		return items
	}
	if items := h.fromTables(doc, cls); len(items) > 0 {
		return items
	}
	return h.fromHTMLLinks(doc, cls)
}

func (h *HTMLGridStrategy) fromCatList(doc *goquery.Document, cls Classification) []domain.Item {
	var items []domain.Item
	doc.Find("ul.lcp_catlist li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a[href]").First()
		if a.Length() == 0 {
			return
		}
		title := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		if len(title) > 2 {
			items = append(items, gridItem(title, href, cls))
		}
	})
	return items
}

func (h *HTMLGridStrategy) fromTables(doc *goquery.Document, cls Classification) []domain.Item {
	var items []domain.Item
	seen := make(map[string]struct{})
	doc.Find("table td a[href]").Each(func(_ int, a *goquery.Selection) {
		// Image-wrapped anchors duplicate the text link next to them.
		if a.Find("img").Length() > 0 {
			return
		}
		title := strings.TrimSpace(a.Text())
		href, _ := a.Attr("href")
		if len(title) <= 2 || !strings.Contains(href, ".html") {
			return
		}
		if _, ok := seen[title]; ok {
			return
		}
		seen[title] = struct{}{}
		items = append(items, gridItem(title, href, cls))
	})
	return items
}

func (h *HTMLGridStrategy) fromHTMLLinks(doc *goquery.Document, cls Classification) []domain.Item {
	var items []domain.Item
	seen := make(map[string]struct{})
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.HasSuffix(strings.TrimSpace(href), ".html") {
			return true
		}
		title := strings.TrimSpace(a.Text())
		if len(title) <= minTitleLen || len(title) >= maxTitleLen {
			return true
		}
		if containsAny(strings.ToLower(title), gridSkipTitles) {
			return true
		}
		if _, ok := seen[title]; ok {
			return true
		}
		seen[title] = struct{}{}
		items = append(items, gridItem(title, href, cls))
		return len(items) < maxContainersPerPage
	})
	return items
}

func gridItem(title, sourceURL string, cls Classification) domain.Item {
	return domain.Item{
		Name:          title,
		Type:          cls.Type,
		Version:       domain.DefaultVersion,
		Category:      cls.Category,
		FileSize:      domain.DefaultFileSize,
		Description:   title + " - Free Download",
		DownloadLinks: []domain.DownloadLink{},
		SourceURL:     sourceURL,
	}
}
