package crawler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVisitedSet(t *testing.T) {
	set := newVisitedSet()
	require.True(t, set.MarkIfNew("https://example.org/first"))
	require.False(t, set.MarkIfNew("https://example.org/first"))
	require.True(t, set.MarkIfNew("https://example.org/second"))
	require.False(t, set.MarkIfNew(""), "empty URLs are never tracked")
	require.True(t, set.Has("https://example.org/second"))
	require.False(t, set.Has("https://example.org/third"))
}

func TestVisitedSetConcurrentMarks(t *testing.T) {
	set := newVisitedSet()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if set.MarkIfNew("https://example.org/") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestTimerPauseControllerHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pauser := &timerPauseController{}
	start := time.Now()
	pauser.Pause(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}
