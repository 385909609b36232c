package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/sitechat-crawler/internal/fetcher/colly"
	memorypublisher "github.com/JakeFAU/sitechat-crawler/internal/publisher/memory"
	"github.com/JakeFAU/sitechat-crawler/internal/storage/memory"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

const body = "This paragraph carries enough words to survive the thin content filter easily."

func html(title string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><nav>", title)
	for _, l := range links {
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, l, l)
	}
	fmt.Fprintf(&b, "</nav><main><h1>%s</h1><p>%s</p></main></body></html>", title, body)
	return b.String()
}

type mapFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (f *mapFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	page, ok := f.pages[req.URL]
	if !ok {
		return crawler.FetchResponse{}, &crawler.FetchError{URL: req.URL, Kind: crawler.FetchErrorStatus, StatusCode: http.StatusNotFound}
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(page)}, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type failingBlobStore struct{}

func (failingBlobStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("bucket gone")
}

var started = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func testConfig() Config {
	return Config{
		Engine:        crawler.Config{BatchSize: 3, BatchDelay: 0, MaxLinksPerPage: 10},
		ArchivePrefix: "crawls",
	}
}

func newService(t *testing.T, fetcher crawler.Fetcher, archive store.BlobStore) (*Service, *memory.WebsiteStore) {
	t.Helper()
	websites := memory.NewWebsiteStore()
	svc, err := New(websites, fetcher, archive, nil, fixedClock{t: started}, testConfig(), zap.NewNop())
	require.NoError(t, err)
	return svc, websites
}

func TestCrawlStoresWebsiteAndArchive(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{
		"https://example.com/":      html("Home", "/about"),
		"https://example.com/about": html("About"),
	}}
	blobs := memory.NewBlobStore()
	svc, websites := newService(t, fetcher, blobs)

	res, err := svc.Crawl(context.Background(), Request{URL: "example.com", MaxPages: 5, MaxDepth: 2})
	require.NoError(t, err)
	require.Len(t, res.Pages, 2)
	require.Equal(t, "Home", res.Website.Title)
	require.Equal(t, "Crawled 2 pages", res.Website.Description)
	require.Equal(t, "https://example.com", res.Website.URL)
	require.Equal(t, 2, res.Stats.TotalPages)

	stored, err := websites.FindWebsiteByURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, res.Website.ID, stored.ID)
	require.Len(t, stored.Pages, 2)
	require.Equal(t, "https://example.com/about", stored.Pages[1].Path)

	paths := blobs.Paths()
	require.Len(t, paths, 1)
	require.True(t, strings.HasPrefix(paths[0], "crawls/example.com/20260304T050607Z-"), paths[0])
	require.Equal(t, "memory://"+paths[0], res.ArchiveURI)

	raw, ok := blobs.Object(paths[0])
	require.True(t, ok)
	var doc archiveDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "https://example.com", doc.URL)
	require.Len(t, doc.Pages, 2)
}

func TestCrawlRejectsInvalidURLBeforeFetching(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{}
	svc, _ := newService(t, fetcher, nil)

	_, err := svc.Crawl(context.Background(), Request{URL: "not a url"})
	require.ErrorIs(t, err, crawler.ErrInvalidURLFormat)
	require.Zero(t, fetcher.calls)
}

func TestCrawlWithoutContentStoresNothing(t *testing.T) {
	t.Parallel()

	svc, websites := newService(t, &mapFetcher{pages: map[string]string{}}, nil)

	res, err := svc.Crawl(context.Background(), Request{URL: "https://example.com"})
	require.ErrorIs(t, err, crawler.ErrNoContentExtracted)
	require.Equal(t, 1, res.Stats.VisitedURLs)

	list, err := websites.ListWebsites(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRecrawlKeepsWebsiteIdentity(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{"https://example.com/": html("Home")}}
	svc, websites := newService(t, fetcher, nil)

	first, err := svc.Crawl(context.Background(), Request{URL: "https://example.com"})
	require.NoError(t, err)
	second, err := svc.Crawl(context.Background(), Request{URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, first.Website.ID, second.Website.ID)

	list, err := websites.ListWebsites(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestCrawlCanceledPersistsNothing(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{"https://example.com/": html("Home")}}
	svc, websites := newService(t, fetcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Crawl(ctx, Request{URL: "https://example.com"})
	require.ErrorIs(t, err, context.Canceled)

	list, err := websites.ListWebsites(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestArchiveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{"https://example.com/": html("Home")}}
	svc, _ := newService(t, fetcher, failingBlobStore{})

	res, err := svc.Crawl(context.Background(), Request{URL: "https://example.com"})
	require.NoError(t, err)
	require.Empty(t, res.ArchiveURI)
	require.Len(t, res.Pages, 1)
}

func TestCrawlPublishesCompletedEvent(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{
		"https://example.com/": html("Home"),
	}}
	events := memorypublisher.New()
	cfg := testConfig()
	cfg.EventTopic = "crawls"
	svc, err := New(memory.NewWebsiteStore(), fetcher, nil, events, fixedClock{t: started}, cfg, zap.NewNop())
	require.NoError(t, err)

	res, err := svc.Crawl(context.Background(), Request{URL: "https://example.com", MaxPages: 1, MaxDepth: 1})
	require.NoError(t, err)

	msgs := events.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "crawls", msgs[0].Topic)
	event, ok := msgs[0].Payload.(CompletedEvent)
	require.True(t, ok)
	require.Equal(t, CompletedEventType, event.Type)
	require.Equal(t, res.Website.ID.String(), event.WebsiteID)
	require.Equal(t, 1, event.PagesCount)
	require.Equal(t, started, event.CrawledAt)
}

func TestPublishFailureKeepsWebsite(t *testing.T) {
	t.Parallel()

	fetcher := &mapFetcher{pages: map[string]string{
		"https://example.com/": html("Home"),
	}}
	events := memorypublisher.New()
	events.FailWith(errors.New("topic deleted"))
	cfg := testConfig()
	cfg.EventTopic = "crawls"
	websites := memory.NewWebsiteStore()
	svc, err := New(websites, fetcher, nil, events, fixedClock{t: started}, cfg, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.Crawl(context.Background(), Request{URL: "https://example.com", MaxPages: 1, MaxDepth: 1})
	require.NoError(t, err)
	_, err = websites.FindWebsiteByURL(context.Background(), "https://example.com")
	require.NoError(t, err)
}

func TestOptionsApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Defaults = crawler.TargetOptions{MaxPages: 25, MaxDepth: 2, Timeout: 8 * time.Second}
	svc, err := New(memory.NewWebsiteStore(), &mapFetcher{}, nil, nil, nil, cfg, nil)
	require.NoError(t, err)

	got := svc.options(Request{MaxDepth: 4, IncludeExternalLinks: true})
	require.Equal(t, crawler.TargetOptions{MaxPages: 25, MaxDepth: 4, IncludeExternalLinks: true, Timeout: 8 * time.Second}, got)
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(nil, &mapFetcher{}, nil, nil, nil, testConfig(), nil)
	require.Error(t, err)
	_, err = New(memory.NewWebsiteStore(), nil, nil, nil, nil, testConfig(), nil)
	require.Error(t, err)
	_, err = New(memory.NewWebsiteStore(), &mapFetcher{}, nil, nil, nil, Config{}, nil)
	require.Error(t, err)
}

func TestArchivePath(t *testing.T) {
	t.Parallel()

	got := ArchivePath("crawls", "https://Docs.Example.com/start", started, []byte("hello world"))
	require.Equal(t, "crawls/Docs.Example.com/20260304T050607Z-b94d27b9934d.json", got)
	require.Equal(t, "unknown/20260304T050607Z-b94d27b9934d.json", ArchivePath("", "::", started, []byte("hello world")))
}

func TestCrawlAgainstLiveSiteHonorsDepth(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, html("Home", "/a", "/b", "/logo.png"))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, html("A", "/c"))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, html("B"))
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, html("C"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	svc, _ := newService(t, fetcher, nil)

	res, err := svc.Crawl(context.Background(), Request{URL: srv.URL, MaxPages: 10, MaxDepth: 1, Timeout: 5 * time.Second})
	require.NoError(t, err)

	titles := make([]string, 0, len(res.Pages))
	for _, p := range res.Pages {
		titles = append(titles, p.Title)
	}
	require.Equal(t, "Home", titles[0])
	require.ElementsMatch(t, []string{"Home", "A", "B"}, titles)
	require.Equal(t, []string{"127.0.0.1"}, res.Stats.Domains)
}
