package crawler

import (
	"math"
	"net/url"
	"strings"
)

// computeStats derives CrawlStats from the recorded pages. visited counts
// every attempted fetch, failures included.
func computeStats(pages []PageRecord, visited int) CrawlStats {
	stats := CrawlStats{
		TotalPages:  len(pages),
		VisitedURLs: visited,
		Domains:     []string{},
	}
	seen := make(map[string]struct{})
	for _, page := range pages {
		stats.TotalWords += page.WordCount
		u, err := url.Parse(page.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		stats.Domains = append(stats.Domains, host)
	}
	if stats.TotalPages > 0 {
		stats.AvgWordsPerPage = int(math.Round(float64(stats.TotalWords) / float64(stats.TotalPages)))
	}
	return stats
}
