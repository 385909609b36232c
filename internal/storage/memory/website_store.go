package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// WebsiteStore implements store.WebsiteStore.
type WebsiteStore struct {
	opts options

	mu    sync.RWMutex
	byID  map[uuid.UUID]store.Website
	byURL map[string]uuid.UUID
}

// NewWebsiteStore constructs an empty WebsiteStore.
func NewWebsiteStore(opts ...Option) *WebsiteStore {
	return &WebsiteStore{
		opts:  buildOptions(opts),
		byID:  make(map[uuid.UUID]store.Website),
		byURL: make(map[string]uuid.UUID),
	}
}

// UpsertWebsite inserts or replaces by URL.
func (s *WebsiteStore) UpsertWebsite(_ context.Context, w store.Website) (store.Website, error) {
	if w.URL == "" {
		return store.Website{}, fmt.Errorf("website url is required")
	}
	now := s.opts.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byURL[w.URL]; ok {
		existing := s.byID[id]
		w.ID = existing.ID
		w.CreatedAt = existing.CreatedAt
	} else {
		id, err := s.opts.ids.NewRawID()
		if err != nil {
			return store.Website{}, fmt.Errorf("website id: %w", err)
		}
		w.ID = id
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	w = cloneWebsite(w)
	s.byID[w.ID] = w
	s.byURL[w.URL] = w.ID
	return cloneWebsite(w), nil
}

// FindWebsiteByURL looks a website up by its seed URL.
func (s *WebsiteStore) FindWebsiteByURL(_ context.Context, url string) (store.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byURL[url]
	if !ok {
		return store.Website{}, store.ErrNotFound
	}
	return cloneWebsite(s.byID[id]), nil
}

// GetWebsite fetches a website by ID.
func (s *WebsiteStore) GetWebsite(_ context.Context, id uuid.UUID) (store.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.byID[id]
	if !ok {
		return store.Website{}, store.ErrNotFound
	}
	return cloneWebsite(w), nil
}

// ListWebsites returns copies, most recently updated first.
func (s *WebsiteStore) ListWebsites(_ context.Context) ([]store.Website, error) {
	s.mu.RLock()
	out := make([]store.Website, 0, len(s.byID))
	for _, w := range s.byID {
		out = append(out, cloneWebsite(w))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].URL < out[j].URL
	})
	return out, nil
}

// DeleteWebsite removes a website by ID.
func (s *WebsiteStore) DeleteWebsite(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byURL, w.URL)
	return nil
}

func cloneWebsite(w store.Website) store.Website {
	w.Pages = append([]store.WebsitePage(nil), w.Pages...)
	w.Stats.Domains = append([]string(nil), w.Stats.Domains...)
	return w
}
