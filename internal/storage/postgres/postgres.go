// Package postgres provides Postgres-backed stores for websites,
// conversations and training data.
//
// Expected tables:
//
//	websites(id uuid primary key, url text unique, title text, description text,
//	         pages jsonb, stats jsonb, created_at timestamptz, updated_at timestamptz)
//	conversation_messages(id bigserial primary key, user_id text, sender text,
//	         text text, created_at timestamptz)
//	training_data(id uuid primary key, title text, content text, category text,
//	         source text, file_type text, original_file_name text, is_active bool,
//	         word_count int, created_at timestamptz, updated_at timestamptz)
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitechat-crawler/internal/clock/system"
	"github.com/JakeFAU/sitechat-crawler/internal/crawler"
	"github.com/JakeFAU/sitechat-crawler/internal/id/uuid"
	"github.com/JakeFAU/sitechat-crawler/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// Store implements store.WebsiteStore, store.ConversationStore and
// store.TrainingStore over one pool.
type Store struct {
	pool  pgxPool
	ids   store.IDGenerator
	clock crawler.Clock
}

// Open connects a pool using cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, nil, nil)
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing). Nil ids or clock select the defaults.
func NewWithPool(pool pgxPool, ids store.IDGenerator, clock crawler.Clock) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if ids == nil {
		ids = uuid.New()
	}
	if clock == nil {
		clock = system.New()
	}
	return &Store{pool: pool, ids: ids, clock: clock}, nil
}

// Ping checks connectivity; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
