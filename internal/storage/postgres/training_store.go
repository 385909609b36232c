package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

const trainingColumns = `id, title, content, category, source, file_type, original_file_name, is_active, word_count, created_at, updated_at`

// SaveTraining inserts or updates an item by ID.
func (s *Store) SaveTraining(ctx context.Context, item store.TrainingData) (store.TrainingData, error) {
	now := s.clock.Now()
	if item.ID == uuid.Nil {
		id, err := s.ids.NewRawID()
		if err != nil {
			return store.TrainingData{}, fmt.Errorf("training id: %w", err)
		}
		item.ID = id
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
INSERT INTO training_data (`+trainingColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	content = EXCLUDED.content,
	category = EXCLUDED.category,
	source = EXCLUDED.source,
	is_active = EXCLUDED.is_active,
	word_count = EXCLUDED.word_count,
	updated_at = EXCLUDED.updated_at`,
		item.ID, item.Title, item.Content, item.Category, item.Source, item.FileType,
		item.OriginalFileName, item.IsActive, item.WordCount, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return store.TrainingData{}, fmt.Errorf("save training data: %w", err)
	}
	return item, nil
}

// ListTraining returns matching items, newest first.
func (s *Store) ListTraining(ctx context.Context, filter store.TrainingFilter) ([]store.TrainingData, error) {
	query, args := buildTrainingQuery(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list training data: %w", err)
	}
	defer rows.Close()

	out := []store.TrainingData{}
	for rows.Next() {
		var item store.TrainingData
		if err := rows.Scan(
			&item.ID, &item.Title, &item.Content, &item.Category, &item.Source, &item.FileType,
			&item.OriginalFileName, &item.IsActive, &item.WordCount, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan training data: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list training data: %w", err)
	}
	return out, nil
}

// DeleteTraining removes an item by ID.
func (s *Store) DeleteTraining(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM training_data WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete training data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func buildTrainingQuery(filter store.TrainingFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	if filter.Category != "" {
		where = append(where, "category = "+arg(filter.Category))
	}
	if filter.Source != "" {
		where = append(where, "source = "+arg(filter.Source))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		p := arg("%" + escapeLike(search) + "%")
		where = append(where, fmt.Sprintf("(title ILIKE %[1]s OR content ILIKE %[1]s OR category ILIKE %[1]s)", p))
	}

	var b strings.Builder
	b.WriteString("SELECT " + trainingColumns + " FROM training_data")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if !filter.Unbounded {
		b.WriteString(" LIMIT " + arg(filter.EffectiveLimit()))
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
