package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/clock/system"
	"github.com/JakeFAU/sitechat-crawler/internal/metrics"
)

var errEngineReused = errors.New("crawler: engine has already run")

// frontierEntry is one URL waiting to be fetched.
type frontierEntry struct {
	url   string
	depth int
}

// pageOutcome is what a single fetch in a batch produced.
type pageOutcome struct {
	page  *PageRecord
	links []string
}

// Engine runs one bounded breadth-first crawl. An Engine is single-use: build
// a new one for every CrawlTarget.
type Engine struct {
	target  CrawlTarget
	cfg     Config
	fetcher Fetcher
	clock   Clock
	logger  *zap.Logger
	pauser  pauseController
	visited *visitedSet

	mu        sync.Mutex
	pages     []PageRecord
	attempted int
	started   bool
}

// NewEngine wires an engine for target. A nil clock uses wall time; a nil
// logger discards output.
func NewEngine(target CrawlTarget, cfg Config, fetcher Fetcher, clock Clock, logger *zap.Logger) (*Engine, error) {
	if fetcher == nil {
		return nil, errors.New("crawler: fetcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		target:  target,
		cfg:     cfg,
		fetcher: fetcher,
		clock:   clock,
		logger:  logger.Named("crawler"),
		pauser:  &timerPauseController{},
		visited: newVisitedSet(),
	}, nil
}

// Run crawls the target until the page cap is reached, the depth bound is
// exhausted or ctx is done. Per-page failures are logged and skipped. When
// ctx ends early the pages gathered so far are returned with ctx's error.
func (e *Engine) Run(ctx context.Context) (CrawlResult, error) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return CrawlResult{}, errEngineReused
	}
	e.started = true
	e.mu.Unlock()

	seed, err := url.Parse(e.target.SeedURL)
	if err != nil || seed.Hostname() == "" {
		return CrawlResult{}, fmt.Errorf("%w: %q", ErrInvalidURLFormat, e.target.SeedURL)
	}
	seedKey := canonicalKey(seed)
	e.visited.MarkIfNew(seedKey)

	start := e.clock.Now()
	e.logger.Info("crawl started",
		zap.String("seed", seedKey),
		zap.Int("max_pages", e.target.MaxPages),
		zap.Int("max_depth", e.target.MaxDepth),
		zap.Bool("include_external", e.target.IncludeExternalLinks),
	)

	level := []frontierEntry{{url: seedKey, depth: 0}}
	firstBatch := true
	for len(level) > 0 && !e.full() {
		var next []frontierEntry
		for offset := 0; offset < len(level) && !e.full(); offset += e.cfg.BatchSize {
			if !firstBatch {
				e.pauser.Pause(ctx, e.cfg.BatchDelay)
			}
			firstBatch = false
			if err := ctx.Err(); err != nil {
				return e.finish(start, fmt.Errorf("crawl interrupted: %w", err))
			}

			end := min(offset+e.cfg.BatchSize, len(level))
			outcomes := e.runBatch(ctx, level[offset:end])
			for i, outcome := range outcomes {
				if outcome.page != nil {
					e.appendPage(*outcome.page)
				}
				depth := level[offset+i].depth
				if depth >= e.target.MaxDepth || e.full() {
					continue
				}
				for _, link := range outcome.links {
					if e.visited.MarkIfNew(link) {
						next = append(next, frontierEntry{url: link, depth: depth + 1})
					}
				}
			}
		}
		level = next
	}
	return e.finish(start, nil)
}

// runBatch fetches every entry concurrently and waits for all of them.
func (e *Engine) runBatch(ctx context.Context, batch []frontierEntry) []pageOutcome {
	outcomes := make([]pageOutcome, len(batch))
	var wg sync.WaitGroup
	for i, entry := range batch {
		wg.Add(1)
		go func(slot int, entry frontierEntry) {
			defer wg.Done()
			outcomes[slot] = e.visit(ctx, entry)
		}(i, entry)
	}
	wg.Wait()
	return outcomes
}

func (e *Engine) visit(ctx context.Context, entry frontierEntry) pageOutcome {
	if e.full() {
		return pageOutcome{}
	}
	e.mu.Lock()
	e.attempted++
	e.mu.Unlock()

	site := metrics.SanitizeSite(entry.url)
	resp, err := e.fetcher.Fetch(ctx, FetchRequest{URL: entry.url, Depth: entry.depth, Timeout: e.target.Timeout})
	if err != nil {
		metrics.ObservePage(site, fetchErrorLabel(err), 0)
		e.logger.Warn("fetch failed", zap.String("url", entry.url), zap.Int("depth", entry.depth), zap.Error(err))
		return pageOutcome{}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		metrics.ObservePage(site, "parse_error", len(resp.Body))
		e.logger.Warn("parse failed", zap.String("url", entry.url), zap.Error(err))
		return pageOutcome{}
	}

	pageURL := entry.url
	base, err := url.Parse(resp.URL)
	if err != nil || base.Hostname() == "" {
		base, _ = url.Parse(entry.url)
	} else if final := canonicalKey(base); final != entry.url {
		// Redirected onto a URL another entry already owns.
		if !e.visited.MarkIfNew(final) {
			metrics.ObservePage(site, "duplicate", len(resp.Body))
			return pageOutcome{}
		}
		pageURL = final
	}

	// Links first: content extraction strips nav/header/footer from the tree.
	filter := linkFilter{
		base:            base,
		includeExternal: e.target.IncludeExternalLinks,
		limit:           e.cfg.MaxLinksPerPage,
		visited:         e.visited,
	}
	outcome := pageOutcome{links: filter.extractLinks(doc)}

	extracted, ok := extractContent(doc)
	if !ok {
		metrics.ObservePage(site, "thin", len(resp.Body))
		e.logger.Debug("page discarded, not enough content", zap.String("url", pageURL))
		return outcome
	}
	metrics.ObservePage(site, "ok", len(resp.Body))
	metrics.ObserveWords(extracted.WordCount)
	outcome.page = &PageRecord{
		URL:       pageURL,
		Title:     extracted.Title,
		Content:   extracted.Content,
		WordCount: extracted.WordCount,
		CrawledAt: e.clock.Now(),
		Depth:     entry.depth,
	}
	e.logger.Debug("page crawled",
		zap.String("url", pageURL),
		zap.Int("depth", entry.depth),
		zap.Int("words", extracted.WordCount),
	)
	return outcome
}

func (e *Engine) appendPage(page PageRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pages) < e.target.MaxPages {
		e.pages = append(e.pages, page)
	}
}

func (e *Engine) full() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pages) >= e.target.MaxPages
}

func (e *Engine) finish(start time.Time, err error) (CrawlResult, error) {
	result := CrawlResult{Pages: e.CrawledData(), Stats: e.Stats()}
	fields := []zap.Field{
		zap.String("seed", e.target.SeedURL),
		zap.Int("pages", result.Stats.TotalPages),
		zap.Int("visited", result.Stats.VisitedURLs),
		zap.Duration("elapsed", e.clock.Now().Sub(start)),
	}
	if err != nil {
		e.logger.Warn("crawl stopped early", append(fields, zap.Error(err))...)
		return result, err
	}
	e.logger.Info("crawl finished", fields...)
	return result, nil
}

// CrawledData returns a copy of the pages recorded so far, in crawl order.
func (e *Engine) CrawledData() []PageRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PageRecord, len(e.pages))
	copy(out, e.pages)
	return out
}

// Stats summarizes the pages recorded so far.
func (e *Engine) Stats() CrawlStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return computeStats(e.pages, e.attempted)
}
