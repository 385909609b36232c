package crawler

import (
	"context"
	"sync"
	"time"
)

// visitedSet tracks URLs fetched or enqueued within one run.
type visitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (v *visitedSet) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	return true
}

// Has reports whether url was already marked.
func (v *visitedSet) Has(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.seen[url]
	return ok
}

// pauseController abstracts how the engine spaces out batches.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration)
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
