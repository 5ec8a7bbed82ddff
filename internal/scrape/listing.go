package scrape

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"catalogbot/internal/domain"
)

const (
	maxContainersPerPage = 50
	minTitleLen          = 3
	maxTitleLen          = 200
	titleTruncateLen     = 150
)

// Class keywords that mark a container as post/entry/product-like in common
// CMS markup.
var containerClassKeywords = []string{
	"post", "entry", "item", "game", "software", "product", "card",
	"article", "content-item", "list-item", "bloghash",
}

var titleClassKeywords = []string{"entry-title", "post-title", "title"}

var permalinkClassKeywords = []string{"entry-image-link", "post-link", "permalink"}

// URL path fragments that mark navigation rather than content.
var excludedURLKeywords = []string{
	"category", "tag", "author", "search", "/page/", "comments",
	"feed", "login", "register",
}

var (
	titleVersionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)v?(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(\d{4})`),
		regexp.MustCompile(`(?i)(?:version|ver\.?)\s*(\d+(?:\.\d+)*)`),
	}
	fileSizePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:GB|MB|KB))`)
)

// ListingStrategy extracts items from one listing page. Strategies are
// tried in registration order; the generic heuristic strategy is the
// default last entry.
type ListingStrategy interface {
	Name() string
	Match(pageURL string) bool
	Extract(doc *goquery.Document, pageURL string, cls Classification) []domain.Item
}

// Extractor runs the strategy table against listing pages.
type Extractor struct {
	strategies []ListingStrategy
	logger     *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{
		strategies: []ListingStrategy{
			NewHTMLGridStrategy(nil),
			&GenericStrategy{},
		},
		logger: logger,
	}
}

// ExtractItems returns partially-normalized items from a listing page.
// A matching strategy that yields nothing falls through to the next one.
func (e *Extractor) ExtractItems(doc *goquery.Document, pageURL string, cls Classification) []domain.Item {
	for _, s := range e.strategies {
		if !s.Match(pageURL) {
			continue
		}
		items := s.Extract(doc, pageURL, cls)
		if len(items) > 0 {
			e.logger.Info("listing extracted",
				zap.String("strategy", s.Name()),
				zap.String("url", pageURL),
				zap.Int("items", len(items)))
			return items
		}
	}
	return nil
}

// ExtractCandidates finds candidate items (title + detail URL) on a listing
// page using the generic container heuristics. Used when detail pages will
// be fetched for AI extraction.
func ExtractCandidates(doc *goquery.Document, pageURL string) []domain.Candidate {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	containers := findContainers(doc)

	var candidates []domain.Candidate
	seen := make(map[string]struct{})

	for _, container := range containers {
		title, link := findTitleAndLink(container)
		if link == nil {
			continue
		}

		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}

		full := resolveURL(base, href)
		if full == "" {
			continue
		}
		if _, ok := seen[full]; ok {
			continue
		}

		parsed, err := url.Parse(full)
		if err != nil || (parsed.Host != "" && parsed.Host != base.Host) {
			continue
		}

		if title == "" {
			title = strings.TrimSpace(link.Text())
			if title == "" {
				title, _ = link.Attr("title")
			}
		}
		title = strings.TrimSpace(title)
		if len(title) < minTitleLen || len(title) > maxTitleLen {
			continue
		}

		if containsAny(strings.ToLower(full), excludedURLKeywords) {
			continue
		}

		if len(title) > titleTruncateLen {
			title = title[:titleTruncateLen]
		}
		candidates = append(candidates, domain.Candidate{Title: title, DetailURL: full})
		seen[full] = struct{}{}
	}

	return candidates
}

// GenericStrategy is the default heuristic extractor for unknown sites.
// It emits items directly from listing-page containers, with version, size
// and description pulled from whatever the container shows.
type GenericStrategy struct{}

func (g *GenericStrategy) Name() string { return "generic" }

func (g *GenericStrategy) Match(string) bool { return true }

func (g *GenericStrategy) Extract(doc *goquery.Document, pageURL string, cls Classification) []domain.Item {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	containers := findContainers(doc)

	var items []domain.Item
	seenTitles := make(map[string]struct{})
	seenURLs := make(map[string]struct{})

	for _, container := range containers {
		heading := container.Find("h1, h2, h3, h4, h5").First()
		if heading.Length() == 0 {
			continue
		}

		title := strings.TrimSpace(heading.Text())
		if len(title) < minTitleLen || len(title) > maxTitleLen {
			continue
		}
		lowerTitle := strings.ToLower(title)
		if _, ok := seenTitles[lowerTitle]; ok {
			continue
		}
		seenTitles[lowerTitle] = struct{}{}

		link := heading.Find("a[href]").First()
		if link.Length() == 0 {
			link = container.Find("a[href]").First()
		}
		itemURL := pageURL
		if link.Length() > 0 {
			href, _ := link.Attr("href")
			href = strings.TrimSpace(href)
			if href != "" && !strings.HasPrefix(href, "#") {
				if full := resolveURL(base, href); full != "" {
					if parsed, err := url.Parse(full); err == nil && (parsed.Host == "" || parsed.Host == base.Host) {
						itemURL = full
					}
				}
			}
		}
		if itemURL != pageURL {
			if _, ok := seenURLs[itemURL]; ok {
				continue
			}
			seenURLs[itemURL] = struct{}{}
		}

		version := domain.DefaultVersion
		for _, re := range titleVersionPatterns {
			if m := re.FindStringSubmatch(title); m != nil {
				version = m[1]
				break
			}
		}

		fileSize := domain.DefaultFileSize
		if m := fileSizePattern.FindStringSubmatch(container.Text()); m != nil {
			fileSize = m[1]
		}

		description := ""
		desc := container.Find("p, div").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return classContainsAny(s, []string{"excerpt", "summary", "description", "content"})
		}).First()
		if desc.Length() > 0 {
			description = strings.TrimSpace(desc.Text())
		} else if p := container.Find("p").First(); p.Length() > 0 {
			description = strings.TrimSpace(p.Text())
		}
		if len(description) > 200 {
			description = description[:200]
		}
		if description == "" {
			description = title + " - Download free"
		}

		items = append(items, domain.Item{
			Name:          title,
			Type:          cls.Type,
			Version:       version,
			Category:      cls.Category,
			FileSize:      fileSize,
			Description:   description,
			DownloadLinks: []domain.DownloadLink{},
			SourceURL:     itemURL,
		})
	}

	return items
}

// findContainers selects post-like containers, falling back to every
// article/div/section when class matching finds nothing. Capped so one
// hostile page cannot blow up a run.
func findContainers(doc *goquery.Document) []*goquery.Selection {
	var containers []*goquery.Selection

	doc.Find("article, div, section, li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if classContainsAny(s, containerClassKeywords) {
			containers = append(containers, s)
		}
		return len(containers) < maxContainersPerPage
	})

	if len(containers) == 0 {
		doc.Find("article, div, section").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			containers = append(containers, s)
			return len(containers) < maxContainersPerPage
		})
	}

	return containers
}

func findTitleAndLink(container *goquery.Selection) (string, *goquery.Selection) {
	// Prefer a heading carrying a title-role class.
	heading := container.Find("h1, h2, h3, h4, h5").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContainsAny(s, titleClassKeywords)
	}).First()
	if heading.Length() > 0 {
		if a := heading.Find("a[href]").First(); a.Length() > 0 {
			return strings.TrimSpace(heading.Text()), a
		}
	}

	// Any heading with an anchor inside.
	var found *goquery.Selection
	var foundTitle string
	container.Find("h1, h2, h3, h4, h5").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if a := s.Find("a[href]").First(); a.Length() > 0 {
			found = a
			foundTitle = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})
	if found != nil {
		return foundTitle, found
	}

	// Permalink-style anchor.
	a := container.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return classContainsAny(s, permalinkClassKeywords)
	}).First()
	if a.Length() > 0 {
		return "", a
	}

	if a := container.Find("a[href]").First(); a.Length() > 0 {
		return "", a
	}
	return "", nil
}

func classContainsAny(s *goquery.Selection, keywords []string) bool {
	class, ok := s.Attr("class")
	if !ok {
		return false
	}
	class = strings.ToLower(class)
	for _, kw := range keywords {
		if strings.Contains(class, kw) {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
