package crawler

import (
	"fmt"
	"net/url"
	"time"
)

// Bounds applied to every CrawlTarget.
const (
	MinPages   = 1
	MaxPages   = 100
	MinDepth   = 1
	MaxDepth   = 5
	MinTimeout = 5 * time.Second
	MaxTimeout = 30 * time.Second

	DefaultPages   = 10
	DefaultDepth   = 3
	DefaultTimeout = 15 * time.Second
)

// CrawlTarget is the immutable configuration of one crawl run.
type CrawlTarget struct {
	SeedURL              string
	MaxPages             int
	MaxDepth             int
	IncludeExternalLinks bool
	Timeout              time.Duration
}

// TargetOptions carries the caller-supplied bounds. Zero values select the
// defaults; anything else is clamped into range.
type TargetOptions struct {
	MaxPages             int
	MaxDepth             int
	IncludeExternalLinks bool
	Timeout              time.Duration
}

// NewCrawlTarget normalizes the seed and clamps the bounds. It fails with
// ErrInvalidURLFormat before any network activity.
func NewCrawlTarget(rawSeed string, opts TargetOptions) (CrawlTarget, error) {
	seed, err := NormalizeSeed(rawSeed)
	if err != nil {
		return CrawlTarget{}, err
	}
	parsed, err := url.Parse(seed)
	if err != nil || parsed.Hostname() == "" {
		return CrawlTarget{}, fmt.Errorf("%w: %q has no host", ErrInvalidURLFormat, rawSeed)
	}
	return CrawlTarget{
		SeedURL:              seed,
		MaxPages:             clampInt(opts.MaxPages, DefaultPages, MinPages, MaxPages),
		MaxDepth:             clampInt(opts.MaxDepth, DefaultDepth, MinDepth, MaxDepth),
		IncludeExternalLinks: opts.IncludeExternalLinks,
		Timeout:              clampDuration(opts.Timeout, DefaultTimeout, MinTimeout, MaxTimeout),
	}, nil
}

func clampInt(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	return min(max(v, lo), hi)
}

func clampDuration(v, def, lo, hi time.Duration) time.Duration {
	if v == 0 {
		v = def
	}
	return min(max(v, lo), hi)
}
