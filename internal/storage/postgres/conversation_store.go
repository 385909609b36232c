package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// LatestConversation loads every message of userID in write order.
func (s *Store) LatestConversation(ctx context.Context, userID string) (store.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
SELECT sender, text, created_at
FROM conversation_messages
WHERE user_id = $1
ORDER BY created_at, id`, userID)
	if err != nil {
		return store.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	defer rows.Close()

	conv := store.Conversation{UserID: userID}
	for rows.Next() {
		var (
			msg    store.Message
			sender string
		)
		if err := rows.Scan(&sender, &msg.Text, &msg.Timestamp); err != nil {
			return store.Conversation{}, fmt.Errorf("scan message: %w", err)
		}
		msg.Sender = store.Sender(sender)
		conv.Messages = append(conv.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return store.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	if len(conv.Messages) == 0 {
		return store.Conversation{}, store.ErrNotFound
	}
	conv.CreatedAt = conv.Messages[0].Timestamp
	return conv, nil
}

// AppendMessages inserts all messages in one statement.
func (s *Store) AppendMessages(ctx context.Context, userID string, messages ...store.Message) error {
	if len(messages) == 0 {
		return nil
	}
	now := s.clock.Now()
	senders := make([]string, len(messages))
	texts := make([]string, len(messages))
	stamps := make([]time.Time, len(messages))
	for i, msg := range messages {
		senders[i] = string(msg.Sender)
		texts[i] = msg.Text
		stamps[i] = msg.Timestamp
		if stamps[i].IsZero() {
			stamps[i] = now
		}
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO conversation_messages (user_id, sender, text, created_at)
SELECT $1, sender, text, created_at
FROM unnest($2::text[], $3::text[], $4::timestamptz[]) AS m(sender, text, created_at)`,
		userID, senders, texts, stamps)
	if err != nil {
		return fmt.Errorf("append messages: %w", err)
	}
	return nil
}

// DeleteConversations removes all history of userID.
func (s *Store) DeleteConversations(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM conversation_messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete conversations: %w", err)
	}
	return nil
}
