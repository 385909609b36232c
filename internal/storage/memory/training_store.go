package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// TrainingStore implements store.TrainingStore.
type TrainingStore struct {
	opts options

	mu    sync.RWMutex
	items map[uuid.UUID]store.TrainingData
	// order records insertion so equal timestamps list newest first.
	order map[uuid.UUID]int
	seq   int
}

// NewTrainingStore constructs an empty TrainingStore.
func NewTrainingStore(opts ...Option) *TrainingStore {
	return &TrainingStore{
		opts:  buildOptions(opts),
		items: make(map[uuid.UUID]store.TrainingData),
		order: make(map[uuid.UUID]int),
	}
}

// SaveTraining stores the item, assigning an ID and timestamps when missing.
func (s *TrainingStore) SaveTraining(_ context.Context, item store.TrainingData) (store.TrainingData, error) {
	now := s.opts.clock.Now()
	if item.ID == uuid.Nil {
		id, err := s.opts.ids.NewRawID()
		if err != nil {
			return store.TrainingData{}, fmt.Errorf("training id: %w", err)
		}
		item.ID = id
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.order[item.ID]; !exists {
		s.seq++
		s.order[item.ID] = s.seq
	}
	s.items[item.ID] = item
	return item, nil
}

// ListTraining filters and sorts newest first.
func (s *TrainingStore) ListTraining(_ context.Context, filter store.TrainingFilter) ([]store.TrainingData, error) {
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	s.mu.RLock()
	out := make([]store.TrainingData, 0, len(s.items))
	order := make(map[uuid.UUID]int, len(s.items))
	for id, item := range s.items {
		if !matchesTraining(item, filter, search) {
			continue
		}
		out = append(out, item)
		order[id] = s.order[id]
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return order[out[i].ID] > order[out[j].ID]
	})
	if limit := filter.EffectiveLimit(); !filter.Unbounded && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteTraining removes an item by ID.
func (s *TrainingStore) DeleteTraining(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.items, id)
	delete(s.order, id)
	return nil
}

func matchesTraining(item store.TrainingData, filter store.TrainingFilter, search string) bool {
	if filter.ActiveOnly && !item.IsActive {
		return false
	}
	if filter.Category != "" && item.Category != filter.Category {
		return false
	}
	if filter.Source != "" && item.Source != filter.Source {
		return false
	}
	if search == "" {
		return true
	}
	for _, field := range []string{item.Title, item.Content, item.Category} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
