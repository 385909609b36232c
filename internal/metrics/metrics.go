// Package metrics exposes Prometheus collectors for the crawl and chat service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerBytesTotal          *prometheus.CounterVec
	crawlerWordsTotal          prometheus.Counter
	headlessPromotionsTotal    *prometheus.CounterVec
	crawlRunsTotal             *prometheus.CounterVec
	crawlRunDurationSeconds    prometheus.Histogram
	generationCallsTotal       *prometheus.CounterVec
	generationDurationSeconds  *prometheus.HistogramVec
	relevanceSelectionsTotal   *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of page fetches, labeled by site and outcome.",
			},
			[]string{"site", "status"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerWordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_words_extracted_total",
				Help: "Total number of words kept from extracted pages.",
			},
		)

		headlessPromotionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_headless_promotions_total",
				Help: "Total number of pages promoted to a headless fetch, labeled by result.",
			},
			[]string{"result"},
		)

		crawlRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total number of crawl runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_run_duration_seconds",
				Help:    "Histogram of whole crawl run durations.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
		)

		generationCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "generation_calls_total",
				Help: "Total number of language model calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		generationDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "generation_duration_seconds",
				Help:    "Histogram of language model call latencies, labeled by provider.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider"},
		)

		relevanceSelectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relevance_selections_total",
				Help: "Total number of context selections, labeled by mode.",
			},
			[]string{"mode"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outbound_rate_limit_delay_seconds",
				Help:    "Histogram of outbound rate limit waits, labeled by upstream host.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePage records one page fetch outcome.
func ObservePage(site, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerPagesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveWords adds the word count of a kept page.
func ObserveWords(words int) {
	Init()
	if words > 0 {
		crawlerWordsTotal.Add(float64(words))
	}
}

// ObservePromotion counts a headless promotion that either rendered or fell
// back to the static response.
func ObservePromotion(result string) {
	Init()
	headlessPromotionsTotal.WithLabelValues(result).Inc()
}

// ObserveCrawlRun records a finished crawl run.
func ObserveCrawlRun(outcome string, duration time.Duration) {
	Init()
	crawlRunsTotal.WithLabelValues(outcome).Inc()
	crawlRunDurationSeconds.Observe(duration.Seconds())
}

// ObserveGeneration records one provider call.
func ObserveGeneration(provider, outcome string, duration time.Duration) {
	Init()
	generationCallsTotal.WithLabelValues(provider, outcome).Inc()
	generationDurationSeconds.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveSelection counts a relevance selection in the given mode.
func ObserveSelection(mode string) {
	Init()
	relevanceSelectionsTotal.WithLabelValues(mode).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
