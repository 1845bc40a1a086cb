// Package postgres persists the ledger in a Postgres table keyed by file URL.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/internal/ledger"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "event_ledger"

// Config controls the Postgres connection used by the store.
type Config struct {
	DSN      string
	Table    string
	MaxConns int32
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	SendBatch(context.Context, *pgx.Batch) pgx.BatchResults
	Close()
}

var _ ledger.EntryWriter = (*Store)(nil)

// Store reads and upserts ledger rows.
type Store struct {
	pool  pool
	table string
}

// New connects to Postgres and makes sure the ledger table exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg.Table)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table}, nil
}

// EnsureSchema creates the ledger table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	url TEXT PRIMARY KEY,
	last_modified TEXT NOT NULL,
	last_seen TEXT NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
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

// Load reads every row. An empty table yields ledger.ErrNotFound.
func (s *Store) Load(ctx context.Context) (map[string]ledger.Entry, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT url, last_modified, last_seen FROM %s", s.table))
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]ledger.Entry)
	for rows.Next() {
		var (
			url   string
			entry ledger.Entry
		)
		if err := rows.Scan(&url, &entry.LastModified, &entry.LastSeen); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries[url] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	if len(entries) == 0 {
		return nil, ledger.ErrNotFound
	}
	return entries, nil
}

func (s *Store) upsertQuery() string {
	return fmt.Sprintf(`
INSERT INTO %s (url, last_modified, last_seen)
VALUES ($1, $2, $3)
ON CONFLICT (url) DO UPDATE SET last_modified = EXCLUDED.last_modified, last_seen = EXCLUDED.last_seen`, s.table)
}

// Save upserts every entry in URL order, in a single batch.
func (s *Store) Save(ctx context.Context, entries map[string]ledger.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	urls := make([]string, 0, len(entries))
	for url := range entries {
		urls = append(urls, url)
	}
	sort.Strings(urls)

	query := s.upsertQuery()
	batch := &pgx.Batch{}
	for _, url := range urls {
		entry := entries[url]
		batch.Queue(query, url, entry.LastModified, entry.LastSeen)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d ledger rows: %w", len(urls), err)
	}
	return nil
}

// Upsert writes a single row.
func (s *Store) Upsert(ctx context.Context, url string, entry ledger.Entry) error {
	if _, err := s.pool.Exec(ctx, s.upsertQuery(), url, entry.LastModified, entry.LastSeen); err != nil {
		return fmt.Errorf("upsert ledger row %s: %w", url, err)
	}
	return nil
}
