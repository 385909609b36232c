// Package ingest runs a crawl for a seed URL and persists the result as a
// website, optionally archiving the raw crawl output.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/clock/system"
	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	"github.com/JakeFAU/sitechat-crawler/internal/hash/sha256"
	"github.com/JakeFAU/sitechat-crawler/internal/metrics"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// Request is one crawl invocation. Zero bounds fall back to the service
// defaults, which NewCrawlTarget then clamps.
type Request struct {
	URL                  string
	MaxPages             int
	MaxDepth             int
	IncludeExternalLinks bool
	Timeout              time.Duration
}

// Result is what a successful crawl produced.
type Result struct {
	Website    store.Website
	Pages      []crawler.PageRecord
	Stats      crawler.CrawlStats
	ArchiveURI string
}

// Config holds the engine settings and request defaults.
type Config struct {
	Engine        crawler.Config
	Defaults      crawler.TargetOptions
	ArchivePrefix string
	// EventTopic receives a CompletedEvent per stored website.
	EventTopic string
}

// Publisher delivers events to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// CompletedEvent announces a stored crawl to downstream consumers.
type CompletedEvent struct {
	Type       string    `json:"type"`
	WebsiteID  string    `json:"websiteId"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	PagesCount int       `json:"pagesCount"`
	TotalWords int       `json:"totalWords"`
	ArchiveURI string    `json:"archiveUri,omitempty"`
	CrawledAt  time.Time `json:"crawledAt"`
}

// CompletedEventType is the Type of every CompletedEvent.
const CompletedEventType = "crawl.completed"

// Service crawls sites and stores them.
type Service struct {
	websites store.WebsiteStore
	fetcher  crawler.Fetcher
	archive  store.BlobStore
	events   Publisher
	clock    crawler.Clock
	cfg      Config
	logger   *zap.Logger
}

// New builds a Service. archive and events may be nil to skip archiving or
// event publishing.
func New(
	websites store.WebsiteStore,
	fetcher crawler.Fetcher,
	archive store.BlobStore,
	events Publisher,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) (*Service, error) {
	if websites == nil {
		return nil, errors.New("ingest: website store is required")
	}
	if fetcher == nil {
		return nil, errors.New("ingest: fetcher is required")
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		websites: websites,
		fetcher:  fetcher,
		archive:  archive,
		events:   events,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Crawl validates req, runs a bounded crawl and upserts the website. It
// returns crawler.ErrInvalidURLFormat before any fetch for a bad seed and
// crawler.ErrNoContentExtracted when no page survived extraction. Pages of
// an interrupted crawl are not persisted.
func (s *Service) Crawl(ctx context.Context, req Request) (Result, error) {
	target, err := crawler.NewCrawlTarget(req.URL, s.options(req))
	if err != nil {
		metrics.ObserveCrawlRun("invalid", 0)
		return Result{}, err
	}

	engine, err := crawler.NewEngine(target, s.cfg.Engine, s.fetcher, s.clock, s.logger)
	if err != nil {
		return Result{}, err
	}
	start := s.clock.Now()
	crawled, err := engine.Run(ctx)
	elapsed := s.clock.Now().Sub(start)
	if err != nil {
		metrics.ObserveCrawlRun("interrupted", elapsed)
		return Result{Pages: crawled.Pages, Stats: crawled.Stats}, fmt.Errorf("crawl %s: %w", target.SeedURL, err)
	}
	if len(crawled.Pages) == 0 {
		metrics.ObserveCrawlRun("empty", elapsed)
		return Result{Stats: crawled.Stats}, crawler.ErrNoContentExtracted
	}

	website, err := s.websites.UpsertWebsite(ctx, store.Website{
		URL:         target.SeedURL,
		Title:       crawled.Pages[0].Title,
		Description: fmt.Sprintf("Crawled %d pages", len(crawled.Pages)),
		Pages:       store.PagesFromRecords(crawled.Pages),
		Stats:       crawled.Stats,
	})
	if err != nil {
		metrics.ObserveCrawlRun("store_error", elapsed)
		return Result{}, fmt.Errorf("save website: %w", err)
	}
	metrics.ObserveCrawlRun("ok", elapsed)

	result := Result{Website: website, Pages: crawled.Pages, Stats: crawled.Stats}
	if s.archive != nil {
		uri, err := s.archiveResult(ctx, target.SeedURL, start, crawled)
		if err != nil {
			// Archiving is best effort; the website is already stored.
			s.logger.Warn("archive crawl failed", zap.String("url", target.SeedURL), zap.Error(err))
		} else {
			result.ArchiveURI = uri
		}
	}

	if s.events != nil && s.cfg.EventTopic != "" {
		s.publishCompleted(ctx, result, start)
	}

	s.logger.Info("website stored",
		zap.String("url", website.URL),
		zap.String("id", website.ID.String()),
		zap.Int("pages", len(crawled.Pages)),
		zap.String("archive", result.ArchiveURI),
	)
	return result, nil
}

// publishCompleted is best effort like archiving.
func (s *Service) publishCompleted(ctx context.Context, result Result, startedAt time.Time) {
	id, err := s.events.Publish(ctx, s.cfg.EventTopic, CompletedEvent{
		Type:       CompletedEventType,
		WebsiteID:  result.Website.ID.String(),
		URL:        result.Website.URL,
		Title:      result.Website.Title,
		PagesCount: len(result.Pages),
		TotalWords: result.Stats.TotalWords,
		ArchiveURI: result.ArchiveURI,
		CrawledAt:  startedAt.UTC(),
	})
	if err != nil {
		s.logger.Warn("publish crawl event failed", zap.String("url", result.Website.URL), zap.Error(err))
		return
	}
	s.logger.Debug("crawl event published", zap.String("topic", s.cfg.EventTopic), zap.String("message_id", id))
}

func (s *Service) options(req Request) crawler.TargetOptions {
	opts := crawler.TargetOptions{
		MaxPages:             req.MaxPages,
		MaxDepth:             req.MaxDepth,
		IncludeExternalLinks: req.IncludeExternalLinks,
		Timeout:              req.Timeout,
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = s.cfg.Defaults.MaxPages
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = s.cfg.Defaults.MaxDepth
	}
	if opts.Timeout == 0 {
		opts.Timeout = s.cfg.Defaults.Timeout
	}
	return opts
}

type archiveDocument struct {
	URL       string               `json:"url"`
	StartedAt time.Time            `json:"startedAt"`
	Pages     []crawler.PageRecord `json:"pages"`
	Stats     crawler.CrawlStats   `json:"stats"`
}

func (s *Service) archiveResult(ctx context.Context, seed string, startedAt time.Time, crawled crawler.CrawlResult) (string, error) {
	body, err := json.Marshal(archiveDocument{
		URL:       seed,
		StartedAt: startedAt.UTC(),
		Pages:     crawled.Pages,
		Stats:     crawled.Stats,
	})
	if err != nil {
		return "", fmt.Errorf("marshal archive: %w", err)
	}
	name := ArchivePath(s.cfg.ArchivePrefix, seed, startedAt, body)
	uri, err := s.archive.PutObject(ctx, name, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", name, err)
	}
	return uri, nil
}

// ArchivePath names an archive object: prefix/host/timestamp-digest.json.
func ArchivePath(prefix, seed string, startedAt time.Time, body []byte) string {
	host := "unknown"
	if u, err := url.Parse(seed); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	name := fmt.Sprintf("%s-%s.json", startedAt.UTC().Format("20060102T150405Z"), sha256.Short(body))
	return path.Join(prefix, host, name)
}
