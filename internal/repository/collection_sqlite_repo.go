package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required

	"github.com/GTDGit/gtd_storefront/internal/cache"
)

// SQLiteStore persists session collections in a local SQLite file.
// Thread-safe with WAL mode; SQLite only supports a single writer.
type SQLiteStore struct {
	db *sqlx.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createCollectionTables(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("SQLite collection store initialized")
	return &SQLiteStore{db: db}, nil
}

func createCollectionTables(db *sqlx.DB) error {
	const q = `
	CREATE TABLE IF NOT EXISTS collections (
		storage_key TEXT PRIMARY KEY,
		lines_json  TEXT NOT NULL,
		updated_at  DATETIME NOT NULL
	);`
	_, err := db.Exec(q)
	return err
}

// Get returns the stored bytes for key or cache.ErrCacheMiss.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.GetContext(ctx, &raw, `SELECT lines_json FROM collections WHERE storage_key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cache.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return []byte(raw), nil
}

// Set upserts the bytes for key.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const q = `
		INSERT INTO collections (storage_key, lines_json, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(storage_key) DO UPDATE SET
			lines_json = excluded.lines_json,
			updated_at = datetime('now')`
	if _, err := s.db.ExecContext(ctx, q, key, string(value)); err != nil {
		return fmt.Errorf("failed to upsert collection: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE storage_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
