package crawler

import (
	"fmt"
	"time"
)

// Default politeness and extraction bounds.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultBatchSize       = 3
	DefaultBatchDelay      = time.Second
	DefaultMaxLinksPerPage = 10
)

// Config holds engine-wide knobs that stay fixed across crawl runs. Per-run
// bounds live on CrawlTarget.
type Config struct {
	BatchSize       int
	BatchDelay      time.Duration
	MaxLinksPerPage int
}

// DefaultConfig returns the stock politeness settings.
func DefaultConfig() Config {
	return Config{
		BatchSize:       DefaultBatchSize,
		BatchDelay:      DefaultBatchDelay,
		MaxLinksPerPage: DefaultMaxLinksPerPage,
	}
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("crawler.batch_delay must be >= 0")
	}
	if c.MaxLinksPerPage <= 0 {
		return fmt.Errorf("crawler.max_links_per_page must be > 0")
	}
	return nil
}
