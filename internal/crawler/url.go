package crawler

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var domainShape = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// skippedExtensions lists path suffixes that never carry page text.
var skippedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".tar": {}, ".gz": {}, ".rar": {}, ".7z": {},
	".mp4": {}, ".mp3": {}, ".exe": {}, ".dmg": {},
}

// NormalizeSeed turns user input into an absolute seed URL. Schemed input is
// returned unchanged; "www." input and bare domain names get https://.
func NormalizeSeed(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalidURLFormat)
	}
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw, nil
	}
	if strings.HasPrefix(lower, "www.") {
		return "https://" + raw, nil
	}
	host, _, _ := strings.Cut(raw, "/")
	if domainShape.MatchString(host) {
		return "https://" + raw, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidURLFormat, raw)
}

// canonicalKey is the form used for visited tracking and fetching: fragment
// removed, empty path replaced by "/".
func canonicalKey(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}

// IsCrawlableLink reports whether u uses http(s) and does not point at a
// binary asset.
func IsCrawlableLink(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	_, skip := skippedExtensions[strings.ToLower(path.Ext(u.Path))]
	return !skip
}

func sameHost(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Hostname(), b.Hostname())
}
