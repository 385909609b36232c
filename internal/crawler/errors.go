package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURLFormat is returned when a seed cannot be normalized. No
	// fetch is attempted.
	ErrInvalidURLFormat = errors.New("invalid url format")
	// ErrNoContentExtracted marks a completed run that produced zero pages.
	ErrNoContentExtracted = errors.New("no content could be extracted from the website")
)

// FetchErrorKind classifies a per-page fetch failure.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchErrorNetwork FetchErrorKind = "network"
	FetchErrorTimeout FetchErrorKind = "timeout"
	FetchErrorStatus  FetchErrorKind = "status"
)

// FetchError describes a failed page fetch. The engine logs it and treats the
// URL as a dead end.
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchErrorStatus {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// fetchErrorLabel returns a metrics label for err.
func fetchErrorLabel(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return string(fe.Kind)
	}
	return "other"
}
