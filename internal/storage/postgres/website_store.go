package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

const websiteColumns = `id, url, title, description, pages, stats, created_at, updated_at`

// UpsertWebsite inserts or replaces a website keyed by URL.
func (s *Store) UpsertWebsite(ctx context.Context, w store.Website) (store.Website, error) {
	if w.URL == "" {
		return store.Website{}, fmt.Errorf("website url is required")
	}
	id, err := s.ids.NewRawID()
	if err != nil {
		return store.Website{}, fmt.Errorf("website id: %w", err)
	}
	pagesJSON, err := json.Marshal(nonNilPages(w.Pages))
	if err != nil {
		return store.Website{}, fmt.Errorf("marshal pages: %w", err)
	}
	statsJSON, err := json.Marshal(w.Stats)
	if err != nil {
		return store.Website{}, fmt.Errorf("marshal stats: %w", err)
	}
	now := s.clock.Now()

	query := `
INSERT INTO websites (id, url, title, description, pages, stats, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
ON CONFLICT (url) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	pages = EXCLUDED.pages,
	stats = EXCLUDED.stats,
	updated_at = EXCLUDED.updated_at
RETURNING id, created_at, updated_at`
	row := s.pool.QueryRow(ctx, query, id, w.URL, w.Title, w.Description, pagesJSON, statsJSON, now)
	if err := row.Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return store.Website{}, fmt.Errorf("upsert website: %w", err)
	}
	return w, nil
}

// FindWebsiteByURL looks a website up by its seed URL.
func (s *Store) FindWebsiteByURL(ctx context.Context, url string) (store.Website, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites WHERE url = $1`, url)
	w, err := scanWebsite(row)
	if err != nil {
		return store.Website{}, fmt.Errorf("find website: %w", notFound(err))
	}
	return w, nil
}

// GetWebsite fetches a website by ID.
func (s *Store) GetWebsite(ctx context.Context, id uuid.UUID) (store.Website, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+websiteColumns+` FROM websites WHERE id = $1`, id)
	w, err := scanWebsite(row)
	if err != nil {
		return store.Website{}, fmt.Errorf("get website: %w", notFound(err))
	}
	return w, nil
}

// ListWebsites returns every website, most recently updated first.
func (s *Store) ListWebsites(ctx context.Context) ([]store.Website, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+websiteColumns+` FROM websites ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	defer rows.Close()

	out := []store.Website{}
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list websites: %w", err)
	}
	return out, nil
}

// DeleteWebsite removes a website by ID.
func (s *Store) DeleteWebsite(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM websites WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete website: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanWebsite(row pgx.Row) (store.Website, error) {
	var (
		w         store.Website
		pagesJSON []byte
		statsJSON []byte
	)
	if err := row.Scan(&w.ID, &w.URL, &w.Title, &w.Description, &pagesJSON, &statsJSON, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return store.Website{}, err
	}
	if len(pagesJSON) > 0 {
		if err := json.Unmarshal(pagesJSON, &w.Pages); err != nil {
			return store.Website{}, fmt.Errorf("decode pages: %w", err)
		}
	}
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &w.Stats); err != nil {
			return store.Website{}, fmt.Errorf("decode stats: %w", err)
		}
	}
	return w, nil
}

func nonNilPages(pages []store.WebsitePage) []store.WebsitePage {
	if pages == nil {
		return []store.WebsitePage{}
	}
	return pages
}
