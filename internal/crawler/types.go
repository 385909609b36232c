package crawler

import (
	"net/http"
	"time"
)

// PageRecord is one crawled page that passed the content filter.
type PageRecord struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	WordCount int       `json:"wordCount"`
	CrawledAt time.Time `json:"crawledAt"`
	Depth     int       `json:"-"`
}

// CrawlStats summarizes a completed run.
type CrawlStats struct {
	TotalPages      int      `json:"totalPages"`
	TotalWords      int      `json:"totalWords"`
	AvgWordsPerPage int      `json:"avgWordsPerPage"`
	VisitedURLs     int      `json:"visitedUrls"`
	Domains         []string `json:"domains"`
}

// CrawlResult is returned by Engine.Run.
type CrawlResult struct {
	Pages []PageRecord `json:"pages"`
	Stats CrawlStats   `json:"stats"`
}

// FetchRequest captures everything needed to fetch one URL.
type FetchRequest struct {
	URL     string
	Depth   int
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
