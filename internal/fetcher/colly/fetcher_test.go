package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
)

func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func TestFetchReturnsBodyAndUserAgent(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	var gotUA string
	transport.RegisterResponder(http.MethodGet, "http://example.test/about",
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			return htmlResponder(http.StatusOK, "<html><title>About</title></html>")(req)
		})

	f := New(Config{Transport: transport})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "http://example.test/about", Timeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "http://example.test/about", resp.URL)
	require.Contains(t, string(resp.Body), "<title>About</title>")
	require.Equal(t, "text/html", resp.Headers.Get("Content-Type"))
	require.Equal(t, crawler.DefaultUserAgent, gotUA)
}

func TestFetchClassifiesHTTPErrors(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusInternalServerError} {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			t.Parallel()
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder(http.MethodGet, "http://example.test/", htmlResponder(status, "nope"))

			f := New(Config{Transport: transport})
			_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "http://example.test/"})

			var fe *crawler.FetchError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, crawler.FetchErrorStatus, fe.Kind)
			require.Equal(t, status, fe.StatusCode)
		})
	}
}

func TestFetchAcceptsNonErrorStatuses(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "http://example.test/", htmlResponder(http.StatusNonAuthoritativeInfo, "<p>ok</p>"))

	f := New(Config{Transport: transport})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "http://example.test/"})
	require.NoError(t, err)
	require.Equal(t, http.StatusNonAuthoritativeInfo, resp.StatusCode)
}

func TestFetchNetworkError(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "http://example.test/", httpmock.NewErrorResponder(errors.New("connection reset")))

	f := New(Config{Transport: transport})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: "http://example.test/"})

	var fe *crawler.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, crawler.FetchErrorNetwork, fe.Kind)
	require.Contains(t, err.Error(), "connection reset")
}

func TestFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>moved here</body></html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := New(Config{})
	resp, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL + "/old", Timeout: 5 * time.Second})
	require.NoError(t, err)
	require.Equal(t, server.URL+"/new", resp.URL)
	require.Contains(t, string(resp.Body), "moved here")
}

func TestFetchStopsRedirectLoops(t *testing.T) {
	t.Parallel()

	hops := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/loop/", func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("/loop/%d", hops), http.StatusFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL + "/loop/0", Timeout: 5 * time.Second})
	var fe *crawler.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, crawler.FetchErrorNetwork, fe.Kind)
	require.Contains(t, err.Error(), "stopped after 5 redirects")
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	f := New(Config{})
	_, err := f.Fetch(context.Background(), crawler.FetchRequest{URL: server.URL, Timeout: 50 * time.Millisecond})
	var fe *crawler.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, crawler.FetchErrorTimeout, fe.Kind)
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodGet, "http://example.test/", htmlResponder(http.StatusOK, "ok"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{Transport: transport}).Fetch(ctx, crawler.FetchRequest{URL: "http://example.test/"})
	require.Error(t, err)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var result crawler.FetchResponse
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, time.Unix(0, 0), &result, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusCreated,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com")},
	})
	require.Equal(t, http.StatusCreated, result.StatusCode)
	require.Equal(t, "body", string(result.Body))
	require.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

func TestNewAppliesDefaults(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	require.Equal(t, crawler.DefaultUserAgent, f.cfg.UserAgent)
	require.Equal(t, crawler.DefaultTimeout, f.cfg.Timeout)
	require.Equal(t, DefaultMaxRedirects, f.cfg.MaxRedirects)
	require.NotNil(t, f.transport)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
