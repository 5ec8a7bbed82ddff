package scrape

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Known pagination URL shapes, in priority order. The first pattern that
// matches a link wins for that link.
var paginationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/page/(\d+)/?`),
	regexp.MustCompile(`\?page=(\d+)`),
	regexp.MustCompile(`[?&]currentPage=(\d+)`),
	regexp.MustCompile(`/p(\d+)/?`),
	regexp.MustCompile(`\?p=(\d+)`),
	regexp.MustCompile(`[?&]paged=(\d+)`),
	regexp.MustCompile(`/(\d+)/?$`),
}

type paginationHit struct {
	url     string
	pattern *regexp.Regexp
}

// DetectPagination derives the sequence of page URLs to visit from the
// links on the first page. The first element is always baseURL and the
// result never exceeds maxPages entries. When no pagination links are
// found the base URL is returned alone so the caller can report a
// single-page site instead of looping.
func DetectPagination(doc *goquery.Document, baseURL string, maxPages int) []string {
	urls := []string{baseURL}
	if maxPages < 1 {
		maxPages = 1
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return urls
	}

	discovered := make(map[int]paginationHit)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		full := base.ResolveReference(ref).String()

		for _, re := range paginationPatterns {
			m := re.FindStringSubmatch(full)
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			// Only indices 2-10 are trusted as explicit pagination targets;
			// larger numbers are usually IDs or dates in unrelated URLs.
			if err == nil && n >= 2 && n <= 10 {
				discovered[n] = paginationHit{url: full, pattern: re}
			}
			break
		}
	})

	if len(discovered) == 0 {
		return urls
	}

	for page := 2; page <= maxPages; page++ {
		if hit, ok := discovered[page]; ok {
			urls = append(urls, hit.url)
			continue
		}
		// Missing index: substitute the numeral into the lowest
		// discovered template URL.
		for i := 2; i <= 10; i++ {
			if hit, ok := discovered[i]; ok {
				urls = append(urls, substitutePage(hit, page))
				break
			}
		}
	}

	if len(urls) > maxPages {
		urls = urls[:maxPages]
	}
	return urls
}

var (
	pNumSuffix  = regexp.MustCompile(`/p\d+`)
	pagePathSeg = regexp.MustCompile(`/page/\d+`)
)

// SynthesizePageURL builds the URL for page n of a listing when explicit
// pagination links are unavailable (unlimited mode). Grid sites use the
// /pN suffix scheme; everything else gets the standard /page/N/ path.
func SynthesizePageURL(baseURL string, page int) string {
	if page <= 1 {
		return baseURL
	}
	n := strconv.Itoa(page)

	if IsGridSite(baseURL) {
		if pNumSuffix.MatchString(baseURL) {
			return pNumSuffix.ReplaceAllString(baseURL, "/p"+n)
		}
		if strings.HasSuffix(baseURL, "/") {
			return baseURL + "p" + n
		}
		return baseURL + "/p" + n
	}

	if pagePathSeg.MatchString(baseURL) {
		return pagePathSeg.ReplaceAllString(baseURL, "/page/"+n)
	}
	if strings.HasSuffix(baseURL, "/") {
		return baseURL + "page/" + n + "/"
	}
	return baseURL + "/page/" + n + "/"
}

func substitutePage(hit paginationHit, page int) string {
	loc := hit.pattern.FindStringSubmatchIndex(hit.url)
	if loc == nil || len(loc) < 4 || loc[2] < 0 {
		return hit.url
	}
	return hit.url[:loc[2]] + strconv.Itoa(page) + hit.url[loc[3]:]
}
