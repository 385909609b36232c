package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Implementations
// must return an error (preferably a *FetchError) for any status >= 400.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
