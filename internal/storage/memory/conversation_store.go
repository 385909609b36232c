package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// ConversationStore implements store.ConversationStore.
type ConversationStore struct {
	opts options

	mu            sync.RWMutex
	conversations map[string]store.Conversation
}

// NewConversationStore constructs an empty ConversationStore.
func NewConversationStore(opts ...Option) *ConversationStore {
	return &ConversationStore{
		opts:          buildOptions(opts),
		conversations: make(map[string]store.Conversation),
	}
}

// LatestConversation returns the user's history.
func (s *ConversationStore) LatestConversation(_ context.Context, userID string) (store.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[userID]
	if !ok {
		return store.Conversation{}, store.ErrNotFound
	}
	conv.Messages = append([]store.Message(nil), conv.Messages...)
	return conv, nil
}

// AppendMessages adds messages, stamping any zero timestamps.
func (s *ConversationStore) AppendMessages(_ context.Context, userID string, messages ...store.Message) error {
	now := s.opts.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[userID]
	if !ok {
		conv = store.Conversation{UserID: userID, CreatedAt: now}
	}
	for _, msg := range messages {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		conv.Messages = append(conv.Messages, msg)
	}
	s.conversations[userID] = conv
	return nil
}

// DeleteConversations drops the user's history. Deleting nothing is not an
// error.
func (s *ConversationStore) DeleteConversations(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
	return nil
}
