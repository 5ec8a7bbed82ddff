package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const contentHTMLLimit = 15000

// ExtractContentHTML returns the main content region of a detail page as a
// bounded HTML snippet, for feeding to the AI extractor. Selector
// strategies are tried in order; the first yielding a reasonably sized
// block wins, with the whole body as last resort.
func ExtractContentHTML(doc *goquery.Document) string {
	selectors := []func() *goquery.Selection{
		func() *goquery.Selection {
			return doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return classContainsAny(s, []string{"content", "entry-content", "post-content", "article-content", "main-content"})
			}).First()
		},
		func() *goquery.Selection {
			return doc.Find("article").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return classContainsAny(s, []string{"content", "post", "entry"})
			}).First()
		},
		func() *goquery.Selection {
			return doc.Find("div").FilterFunction(func(_ int, s *goquery.Selection) bool {
				id, ok := s.Attr("id")
				return ok && containsAny(strings.ToLower(id), []string{"content", "main", "post"})
			}).First()
		},
		func() *goquery.Selection { return doc.Find("main").First() },
		func() *goquery.Selection { return doc.Find("article").First() },
	}

	for _, sel := range selectors {
		elem := sel()
		if elem.Length() == 0 {
			continue
		}
		elem.Find("script, style, nav, footer, aside").Remove()
		html := snippetHTML(elem)
		if len(html) > 500 {
			return html
		}
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		body.Find("script, style, nav, footer, header, aside").Remove()
		return snippetHTML(body)
	}
	return ""
}

func snippetHTML(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	if len(html) > contentHTMLLimit {
		html = html[:contentHTMLLimit]
	}
	return html
}
