package store

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// WebsiteStore persists crawled websites.
type WebsiteStore interface {
	// UpsertWebsite inserts w or replaces the existing website with the same
	// URL, keeping its ID and CreatedAt. The stored value is returned.
	UpsertWebsite(ctx context.Context, w Website) (Website, error)
	// FindWebsiteByURL returns ErrNotFound when no website has url.
	FindWebsiteByURL(ctx context.Context, url string) (Website, error)
	GetWebsite(ctx context.Context, id uuid.UUID) (Website, error)
	// ListWebsites returns every website, most recently updated first.
	ListWebsites(ctx context.Context) ([]Website, error)
	DeleteWebsite(ctx context.Context, id uuid.UUID) error
}

// ConversationStore persists chat history keyed by user.
type ConversationStore interface {
	// LatestConversation returns ErrNotFound when the user has no history.
	LatestConversation(ctx context.Context, userID string) (Conversation, error)
	// AppendMessages adds messages, creating the conversation when needed.
	AppendMessages(ctx context.Context, userID string, messages ...Message) error
	// DeleteConversations removes all history of userID.
	DeleteConversations(ctx context.Context, userID string) error
}

// TrainingStore persists curated training snippets.
type TrainingStore interface {
	// SaveTraining assigns an ID and timestamps when missing.
	SaveTraining(ctx context.Context, item TrainingData) (TrainingData, error)
	// ListTraining returns matching items, newest first.
	ListTraining(ctx context.Context, filter TrainingFilter) ([]TrainingData, error)
	DeleteTraining(ctx context.Context, id uuid.UUID) error
}

// BlobStore writes opaque artifacts such as crawl archives.
type BlobStore interface {
	// PutObject stores the reader content under path and returns its URI.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// IDGenerator produces identifiers for new records.
type IDGenerator interface {
	NewRawID() (uuid.UUID, error)
}
