package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// linkFilter decides which anchors on a page become frontier candidates.
type linkFilter struct {
	base            *url.URL
	includeExternal bool
	limit           int
	visited         *visitedSet
}

// extractLinks returns at most f.limit absolute, fragment-free links in
// document order. Links already in the visited set are skipped, as are
// duplicates within the page.
func (f linkFilter) extractLinks(doc *goquery.Document) []string {
	var (
		links []string
		seen  = make(map[string]struct{})
	)
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(links) >= f.limit {
			return false
		}
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := f.base.ResolveReference(ref)
		if !IsCrawlableLink(abs) {
			return true
		}
		if !f.includeExternal && !sameHost(abs, f.base) {
			return true
		}
		key := canonicalKey(abs)
		if _, dup := seen[key]; dup {
			return true
		}
		if f.visited != nil && f.visited.Has(key) {
			return true
		}
		seen[key] = struct{}{}
		links = append(links, key)
		return true
	})
	return links
}
