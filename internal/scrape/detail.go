package scrape

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"catalogbot/internal/domain"
)

const (
	maxDownloadLinks  = 10
	minDescriptionLen = 50
	maxDescriptionLen = 500
	minDownloadURLLen = 20
)

// Getter fetches a URL and returns a parsed document.
type Getter interface {
	Get(ctx context.Context, url string) (*goquery.Document, error)
}

// Ordered download-link patterns. The site-specific redirect domain comes
// first, then known file hosts, then direct file links, then anything that
// looks download-ish.
var downloadLinkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)https?://[^\s]*apunkagameslinks\.com/vlink/`),
	regexp.MustCompile(`(?i)https?://(www\.)?(mediafire|mega|drive\.google|dropbox|uploadhaven|gofile|anonfiles|pixeldrain|krakenfiles|1fichier|sendspace|zippyshare|workupload)\.`),
	regexp.MustCompile(`(?i)https?://[^\s]*\.(exe|zip|rar|7z|iso|dmg|pkg|msi|apk|tar\.gz)(\?[^\s]*)?$`),
	regexp.MustCompile(`(?i)https?://[^\s]*(download|dl|mirror|upload)`),
}

// Help/navigation pages excluded even when they match a download pattern.
var detailSkipKeywords = []string{
	"how-to-download", "winrar", "password", "faqs", "privacy", "game-request",
}

var (
	sizePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)size[:\s]*(\d+(?:\.\d+)?\s*(?:GB|MB|KB))`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?\s*(?:GB|MB|KB))`),
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)version[:\s]*v?(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)v(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`(\d{4})`),
	}
)

// Enricher visits detail pages and pulls out download links, description,
// file size and version.
type Enricher struct {
	fetcher Getter
	logger  *zap.Logger
}

func NewEnricher(fetcher Getter, logger *zap.Logger) *Enricher {
	return &Enricher{fetcher: fetcher, logger: logger}
}

// Enrich fetches detailURL and extracts whatever it can. It never returns
// an error: on any fetch or parse failure the caller gets the default
// structure and keeps the bare listing record.
func (e *Enricher) Enrich(ctx context.Context, detailURL string) domain.Details {
	details := domain.Details{
		FileSize: domain.DefaultFileSize,
		Version:  domain.DefaultVersion,
	}

	doc, err := e.fetcher.Get(ctx, detailURL)
	if err != nil {
		e.logger.Warn("detail fetch failed", zap.String("url", detailURL), zap.Error(err))
		return details
	}

	details.DownloadLinks = extractDownloadLinks(doc, detailURL)
	details.Description = extractDescription(doc)

	pageText := doc.Text()
	for _, re := range sizePatterns {
		if m := re.FindStringSubmatch(pageText); m != nil {
			details.FileSize = strings.TrimSpace(m[1])
			break
		}
	}
	for _, re := range versionPatterns {
		if m := re.FindStringSubmatch(pageText); m != nil {
			details.Version = m[1]
			break
		}
	}

	return details
}

func extractDownloadLinks(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]struct{})

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return true
		}

		full := resolveURL(base, href)
		if full == "" || len(full) < minDownloadURLLen {
			return true
		}
		if containsAny(strings.ToLower(full), detailSkipKeywords) {
			return true
		}

		// Anchors qualify by URL pattern; download-intent text alone is
		// not enough since site menus say "download" everywhere.
		if !matchesDownloadPattern(full) {
			return true
		}

		if _, ok := seen[full]; ok {
			return true
		}
		seen[full] = struct{}{}
		links = append(links, full)
		return len(links) < maxDownloadLinks
	})

	return links
}

func matchesDownloadPattern(u string) bool {
	for _, re := range downloadLinkPatterns {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

func extractDescription(doc *goquery.Document) string {
	selectors := []func() *goquery.Selection{
		func() *goquery.Selection {
			return doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return classContainsAny(s, []string{"content", "description", "entry", "post-content"})
			}).First()
		},
		func() *goquery.Selection {
			return doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
				id, ok := s.Attr("id")
				return ok && containsAny(strings.ToLower(id), []string{"content", "description", "entry"})
			}).First()
		},
		func() *goquery.Selection { return doc.Find("article").First() },
		func() *goquery.Selection { return doc.Find("p").First() },
	}

	wsPattern := regexp.MustCompile(`\s+`)
	for _, sel := range selectors {
		elem := sel()
		if elem.Length() == 0 {
			continue
		}
		text := wsPattern.ReplaceAllString(strings.TrimSpace(elem.Text()), " ")
		if len(text) > minDescriptionLen {
			if len(text) > maxDescriptionLen {
				text = text[:maxDescriptionLen]
			}
			return text
		}
	}
	return ""
}
