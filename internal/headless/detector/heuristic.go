// Package detector decides when a statically fetched page is only a shell
// for client-side rendering and should be fetched again in a browser.
package detector

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
)

// DefaultMinBodyBytes is the size below which a script-heavy page is
// treated as a shell.
const DefaultMinBodyBytes = 2048

// scriptSharePercent is the share of the document inside <script> elements
// that marks a small page as a shell.
const scriptSharePercent = 25

// shellMarkers are mount points left empty by common SPA frameworks.
var shellMarkers = [][]byte{
	[]byte(`id="__next"`),
	[]byte(`id="__nuxt"`),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte(`data-reactroot`),
	[]byte(`ng-version=`),
}

// Heuristic is a rule-based promotion check.
type Heuristic struct {
	minBodyBytes int
}

// NewHeuristic creates a detector. A non-positive threshold uses
// DefaultMinBodyBytes.
func NewHeuristic(minBodyBytes int) *Heuristic {
	if minBodyBytes <= 0 {
		minBodyBytes = DefaultMinBodyBytes
	}
	return &Heuristic{minBodyBytes: minBodyBytes}
}

// ShouldPromote reports whether resp needs a headless fetch. Only successful
// HTML responses are considered.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK || !isHTML(resp.Headers) {
		return false
	}
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return true
	}
	lower := bytes.ToLower(body)
	if len(body) < h.minBodyBytes && scriptShare(lower) >= scriptSharePercent {
		return true
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// isHTML accepts a missing Content-Type, since some servers omit it.
func isHTML(h http.Header) bool {
	ct := h.Get("Content-Type")
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// scriptShare returns the percentage of lower covered by script elements,
// tags included. An unterminated script runs to the end of the document.
func scriptShare(lower []byte) int {
	var (
		openTag  = []byte("<script")
		closeTag = []byte("</script>")
		covered  int
		rest     = lower
	)
	for {
		start := bytes.Index(rest, openTag)
		if start < 0 {
			break
		}
		end := bytes.Index(rest[start:], closeTag)
		if end < 0 {
			covered += len(rest) - start
			break
		}
		end += start + len(closeTag)
		covered += end - start
		rest = rest[end:]
	}
	return covered * 100 / len(lower)
}
