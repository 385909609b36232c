package store

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Website is one crawled site together with its pages. URL is unique.
type Website struct {
	ID          uuid.UUID          `json:"id"`
	URL         string             `json:"url"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Pages       []WebsitePage      `json:"pages"`
	Stats       crawler.CrawlStats `json:"stats"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// WebsitePage is the persisted form of a crawler.PageRecord.
type WebsitePage struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	WordCount int       `json:"wordCount"`
	CrawledAt time.Time `json:"crawledAt"`
}

// PagesFromRecords converts crawl output into website pages.
func PagesFromRecords(records []crawler.PageRecord) []WebsitePage {
	pages := make([]WebsitePage, len(records))
	for i, r := range records {
		pages[i] = WebsitePage{
			Path:      r.URL,
			Title:     r.Title,
			Content:   r.Content,
			WordCount: r.WordCount,
			CrawledAt: r.CrawledAt,
		}
	}
	return pages
}

// Sender identifies who wrote a chat message.
type Sender string

// Message senders.
const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one chat line.
type Message struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the message history of one user.
type Conversation struct {
	UserID    string    `json:"userId"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// Training data defaults.
const (
	DefaultCategory = "General"
	DefaultSource   = "User Upload"
	DefaultLimit    = 100
)

// TrainingData is a curated snippet that supplements crawled pages.
type TrainingData struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	Category         string    `json:"category"`
	Source           string    `json:"source"`
	FileType         string    `json:"fileType"`
	OriginalFileName string    `json:"originalFileName,omitempty"`
	IsActive         bool      `json:"isActive"`
	WordCount        int       `json:"wordCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TrainingFilter narrows ListTraining. Empty fields do not filter; Search
// matches title, content or category case-insensitively.
type TrainingFilter struct {
	Category   string
	Source     string
	Search     string
	Limit      int
	ActiveOnly bool
	// Unbounded ignores Limit and returns every match.
	Unbounded bool
}

// EffectiveLimit returns Limit or DefaultLimit when unset.
func (f TrainingFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	return f.Limit
}

// TrainingStats summarizes a list of training items.
type TrainingStats struct {
	TotalWordCount int      `json:"totalWordCount"`
	Categories     []string `json:"categories"`
	Sources        []string `json:"sources"`
}

// SummarizeTraining computes stats over items, keeping first-seen order for
// categories and sources.
func SummarizeTraining(items []TrainingData) TrainingStats {
	stats := TrainingStats{Categories: []string{}, Sources: []string{}}
	seenCategory := map[string]struct{}{}
	seenSource := map[string]struct{}{}
	for _, item := range items {
		stats.TotalWordCount += item.WordCount
		if _, ok := seenCategory[item.Category]; !ok {
			seenCategory[item.Category] = struct{}{}
			stats.Categories = append(stats.Categories, item.Category)
		}
		if _, ok := seenSource[item.Source]; !ok {
			seenSource[item.Source] = struct{}{}
			stats.Sources = append(stats.Sources, item.Source)
		}
	}
	return stats
}
