// Package chat answers user questions from crawled pages and training data.
//
// A query is scored against every persisted page and every active training
// item, the best snippets are composed into a prompt together with the
// user's recent history, and the generation chain produces the reply. Both
// sides of the exchange are then appended to the user's conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitechat-crawler/internal/clock/system"
	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	"github.com/JakeFAU/sitechat-crawler/internal/generation"
	"github.com/JakeFAU/sitechat-crawler/internal/metrics"
	"github.com/JakeFAU/sitechat-crawler/internal/relevance"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// AnonymousUser owns the history of callers that send no user ID.
const AnonymousUser = "anonymous"

// ErrEmptyQuery is returned for a blank question.
var ErrEmptyQuery = errors.New("query or message is required")

// Generator produces a reply for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (generation.Reply, error)
}

// Answer is the formatted reply to one question.
type Answer struct {
	Text     string
	Provider string
	Mode     relevance.Mode
	Context  []relevance.ContextItem
}

// Availability summarizes whether the bot has anything to talk about.
type Availability struct {
	Available    bool       `json:"available"`
	WebsiteCount int        `json:"websiteCount"`
	TotalPages   int        `json:"totalPages"`
	LastUpdated  *time.Time `json:"lastUpdated"`
}

// Service wires the stores, the selector and the generator together.
type Service struct {
	websites      store.WebsiteStore
	conversations store.ConversationStore
	training      store.TrainingStore
	generator     Generator
	clock         crawler.Clock
	logger        *zap.Logger
}

// New builds a Service. A nil training store means no training items.
func New(
	websites store.WebsiteStore,
	conversations store.ConversationStore,
	training store.TrainingStore,
	generator Generator,
	clock crawler.Clock,
	logger *zap.Logger,
) (*Service, error) {
	switch {
	case websites == nil:
		return nil, errors.New("chat: website store is required")
	case conversations == nil:
		return nil, errors.New("chat: conversation store is required")
	case generator == nil:
		return nil, errors.New("chat: generator is required")
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		websites:      websites,
		conversations: conversations,
		training:      training,
		generator:     generator,
		clock:         clock,
		logger:        logger.Named("chat"),
	}, nil
}

// Ask answers query for userID. When every provider fails the returned
// Answer carries generation.ApologyMessage and the error wraps
// generation.ErrGenerationFailed; nothing is saved in that case.
func (s *Service) Ask(ctx context.Context, userID, query string) (Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Answer{}, ErrEmptyQuery
	}
	userID = normalizeUser(userID)

	history, err := s.history(ctx, userID)
	if err != nil {
		return Answer{}, err
	}
	candidates, err := s.candidates(ctx)
	if err != nil {
		return Answer{}, err
	}

	selected, mode := relevance.Select(query, candidates)
	metrics.ObserveSelection(string(mode))
	prompt := generation.BuildPrompt(query, selected, history)

	reply, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		s.logger.Error("generation failed", zap.String("user", userID), zap.Error(err))
		return Answer{Text: generation.ApologyMessage, Mode: mode, Context: selected}, err
	}
	text := generation.FormatChatResponse(reply.Text)

	now := s.clock.Now()
	if err := s.conversations.AppendMessages(ctx, userID,
		store.Message{Sender: store.SenderUser, Text: query, Timestamp: now},
		store.Message{Sender: store.SenderBot, Text: text, Timestamp: now},
	); err != nil {
		// The user still gets the answer; only the transcript is incomplete.
		s.logger.Warn("save conversation failed", zap.String("user", userID), zap.Error(err))
	}

	s.logger.Debug("answered",
		zap.String("user", userID),
		zap.String("provider", reply.Provider),
		zap.String("mode", string(mode)),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(selected)),
	)
	return Answer{Text: text, Provider: reply.Provider, Mode: mode, Context: selected}, nil
}

// History returns the user's messages, oldest first. Unknown users have an
// empty history.
func (s *Service) History(ctx context.Context, userID string) ([]store.Message, error) {
	conv, err := s.conversations.LatestConversation(ctx, normalizeUser(userID))
	if errors.Is(err, store.ErrNotFound) {
		return []store.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return conv.Messages, nil
}

// Reset deletes the user's history so the next question starts fresh.
func (s *Service) Reset(ctx context.Context, userID string) error {
	if err := s.conversations.DeleteConversations(ctx, normalizeUser(userID)); err != nil {
		return fmt.Errorf("reset conversation: %w", err)
	}
	return nil
}

// Availability reports how much crawled material is stored.
func (s *Service) Availability(ctx context.Context) (Availability, error) {
	websites, err := s.websites.ListWebsites(ctx)
	if err != nil {
		return Availability{}, fmt.Errorf("list websites: %w", err)
	}
	out := Availability{Available: len(websites) > 0, WebsiteCount: len(websites)}
	for _, w := range websites {
		out.TotalPages += len(w.Pages)
	}
	if len(websites) > 0 {
		updated := websites[0].UpdatedAt
		out.LastUpdated = &updated
	}
	return out, nil
}

func (s *Service) history(ctx context.Context, userID string) ([]generation.Turn, error) {
	messages, err := s.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	turns := make([]generation.Turn, len(messages))
	for i, m := range messages {
		turns[i] = generation.Turn{FromUser: m.Sender == store.SenderUser, Text: m.Text}
	}
	return turns, nil
}

// candidates gathers website pages first, then active training items.
func (s *Service) candidates(ctx context.Context) ([]relevance.ContextItem, error) {
	websites, err := s.websites.ListWebsites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	var items []relevance.ContextItem
	for _, w := range websites {
		for _, p := range w.Pages {
			items = append(items, relevance.ContextItem{Title: p.Title, Content: p.Content, Source: relevance.SourceWebsite})
		}
	}
	if s.training == nil {
		return items, nil
	}
	training, err := s.training.ListTraining(ctx, store.TrainingFilter{ActiveOnly: true, Unbounded: true})
	if err != nil {
		return nil, fmt.Errorf("list training data: %w", err)
	}
	for _, t := range training {
		items = append(items, relevance.ContextItem{
			Title:    t.Title,
			Content:  t.Content,
			Source:   relevance.SourceTraining,
			Category: t.Category,
		})
	}
	return items, nil
}

func normalizeUser(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AnonymousUser
	}
	return userID
}
