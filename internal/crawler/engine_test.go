package crawler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	redirects map[string]string
	calls     map[string]int
	inFlight  int
	maxFlight int
	delay     time.Duration
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, redirects: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	f.calls[req.URL]++
	f.inFlight++
	f.maxFlight = max(f.maxFlight, f.inFlight)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	final := req.URL
	if target, ok := f.redirects[req.URL]; ok {
		final = target
	}
	body, ok := f.pages[final]
	if !ok {
		return FetchResponse{}, &FetchError{URL: req.URL, Kind: FetchErrorStatus, StatusCode: http.StatusNotFound}
	}
	return FetchResponse{URL: final, StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func page(title string, links ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><nav>", title)
	for _, link := range links {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, link)
	}
	fmt.Fprintf(&b, "</nav><main><p>%s is a page about %s. %s</p></main></body></html>", title, title, filler)
	return b.String()
}

func testConfig() Config {
	return Config{BatchSize: 3, BatchDelay: 0, MaxLinksPerPage: 10}
}

func newTestEngine(t *testing.T, target CrawlTarget, fetcher Fetcher) *Engine {
	t.Helper()
	engine, err := NewEngine(target, testConfig(), fetcher, fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func TestEngineHomePageWithManyLinks(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var links []string
	for i := 0; i < 20; i++ {
		path := fmt.Sprintf("/p%d", i)
		links = append(links, path)
		pages["https://site.test"+path] = page(fmt.Sprintf("Page %d", i))
	}
	pages["https://site.test/"] = page("Home", links...)

	target, err := NewCrawlTarget("https://site.test/", TargetOptions{MaxPages: 10, MaxDepth: 3})
	require.NoError(t, err)
	fetcher := newFakeFetcher(pages)

	result, err := newTestEngine(t, target, fetcher).Run(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(result.Pages), 1)
	require.LessOrEqual(t, len(result.Pages), 10)
	require.Equal(t, "https://site.test/", result.Pages[0].URL)
	require.Equal(t, 0, result.Pages[0].Depth)
	for _, p := range result.Pages[1:] {
		require.GreaterOrEqual(t, p.Depth, 1)
	}
	// Only the first ten links of the home page may be followed.
	require.Zero(t, fetcher.callCount("https://site.test/p10"))
	require.Equal(t, []string{"site.test"}, result.Stats.Domains)
	require.Equal(t, len(result.Pages), result.Stats.TotalPages)
}

func TestEngineRespectsDepthBound(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://site.test/":  page("Root", "/a"),
		"https://site.test/a": page("A", "/b"),
		"https://site.test/b": page("B", "/c"),
		"https://site.test/c": page("C"),
	})
	target, err := NewCrawlTarget("https://site.test/", TargetOptions{MaxPages: 50, MaxDepth: 2})
	require.NoError(t, err)

	result, err := newTestEngine(t, target, fetcher).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pages, 3)
	for _, p := range result.Pages {
		require.LessOrEqual(t, p.Depth, 2)
	}
	require.Zero(t, fetcher.callCount("https://site.test/c"))
}

func TestEngineFetchesEachURLOnce(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://site.test/":  page("Root", "/a", "/b", "/#top", "/"),
		"https://site.test/a": page("A", "/b", "/", "/a"),
		"https://site.test/b": page("B", "/a", "/"),
	})
	target, err := NewCrawlTarget("https://site.test", TargetOptions{MaxPages: 10, MaxDepth: 5})
	require.NoError(t, err)

	result, err := newTestEngine(t, target, fetcher).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pages, 3)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	for url, n := range fetcher.calls {
		require.Equal(t, 1, n, url)
	}
	seen := map[string]bool{}
	for _, p := range result.Pages {
		require.False(t, seen[p.URL], "duplicate page %s", p.URL)
		seen[p.URL] = true
	}
}

func TestEngineSwallowsFetchFailures(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://site.test/":     page("Root", "/missing", "/thin", "/ok"),
		"https://site.test/thin": "<html><body><p>short</p></body></html>",
		"https://site.test/ok":   page("Ok"),
	})
	target, err := NewCrawlTarget("https://site.test/", TargetOptions{MaxPages: 10, MaxDepth: 1})
	require.NoError(t, err)

	engine := newTestEngine(t, target, fetcher)
	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pages, 2)
	require.Equal(t, 4, result.Stats.VisitedURLs, "failed and thin fetches still count as visited")
	require.Equal(t, result.Pages, engine.CrawledData())
	require.Equal(t, result.Stats, engine.Stats())
	for _, p := range result.Pages {
		require.Greater(t, len(p.Content), MinContentChars)
		require.LessOrEqual(t, len(p.Content), MaxContentChars)
		require.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), p.CrawledAt)
	}
}

func TestEngineZeroPagesIsNotAnError(t *testing.T) {
	t.Parallel()

	target, err := NewCrawlTarget("https://site.test/", TargetOptions{})
	require.NoError(t, err)
	result, err := newTestEngine(t, target, newFakeFetcher(map[string]string{})).Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Pages)
	require.Equal(t, 1, result.Stats.VisitedURLs)
}

func TestEngineBatchesAreBounded(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var links []string
	for i := 0; i < 9; i++ {
		path := fmt.Sprintf("/p%d", i)
		links = append(links, path)
		pages["https://site.test"+path] = page(fmt.Sprintf("P%d", i))
	}
	pages["https://site.test/"] = page("Home", links...)
	fetcher := newFakeFetcher(pages)
	fetcher.delay = 20 * time.Millisecond

	target, err := NewCrawlTarget("https://site.test/", TargetOptions{MaxPages: 100, MaxDepth: 1})
	require.NoError(t, err)
	result, err := newTestEngine(t, target, fetcher).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pages, 10)
	require.LessOrEqual(t, fetcher.maxFlight, 3)
}

func TestEngineFollowsRedirectsWithoutDuplicates(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://site.test/":    page("Root", "/old", "/new"),
		"https://site.test/new": page("New"),
	})
	fetcher.redirects["https://site.test/old"] = "https://site.test/new"

	target, err := NewCrawlTarget("https://site.test/", TargetOptions{MaxPages: 10, MaxDepth: 1})
	require.NoError(t, err)
	result, err := newTestEngine(t, target, fetcher).Run(context.Background())
	require.NoError(t, err)

	var urls []string
	for _, p := range result.Pages {
		urls = append(urls, p.URL)
	}
	require.Equal(t, []string{"https://site.test/", "https://site.test/new"}, urls)
}

func TestEngineStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://site.test/": page("Root", "/a", "/b", "/c", "/d"),
	})
	target, err := NewCrawlTarget("https://site.test/", TargetOptions{MaxPages: 10, MaxDepth: 2})
	require.NoError(t, err)
	engine := newTestEngine(t, target, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	_, err = engine.Run(context.Background())
	require.ErrorIs(t, err, errEngineReused)
}

func TestNewEngineValidates(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(CrawlTarget{}, testConfig(), nil, nil, nil)
	require.Error(t, err)

	_, err = NewEngine(CrawlTarget{}, Config{}, newFakeFetcher(nil), nil, nil)
	require.Error(t, err)
}

type recordingPauser struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delays = append(p.delays, delay)
}

func (p *recordingPauser) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.delays...)
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func pacedSite() map[string]string {
	pages := map[string]string{}
	var links []string
	for i := 0; i < 9; i++ {
		path := fmt.Sprintf("/c%d", i)
		links = append(links, path)
		pages["https://site.test"+path] = page(fmt.Sprintf("Child %d", i))
	}
	pages["https://site.test/"] = page("Home", links...)
	return pages
}

func newPacedEngine(t *testing.T, maxPages int, fetcher Fetcher) (*Engine, *recordingPauser) {
	t.Helper()
	target, err := NewCrawlTarget("https://site.test/", TargetOptions{MaxPages: maxPages, MaxDepth: 1})
	require.NoError(t, err)
	cfg := testConfig()
	cfg.BatchDelay = time.Second
	engine, err := NewEngine(target, cfg, fetcher, fixedClock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}, zap.NewNop())
	require.NoError(t, err)
	pauser := &recordingPauser{}
	engine.pauser = pauser
	return engine, pauser
}

func TestEnginePausesBetweenBatches(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(pacedSite())
	engine, pauser := newPacedEngine(t, 20, fetcher)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pages, 10)
	// The seed batch runs immediately; each of the three child batches waits.
	require.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, pauser.recorded())
}

func TestEngineStopsMidLevelAtPageCap(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(pacedSite())
	engine, pauser := newPacedEngine(t, 2, fetcher)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Pages, 2)
	require.Equal(t, 4, fetcher.totalCalls())
	require.Len(t, pauser.recorded(), 1)
}
