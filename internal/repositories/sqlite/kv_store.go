package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hanko-field/storefront/internal/repositories"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// KVStore persists storefront snapshots in a local SQLite file.
type KVStore struct {
	db    *sql.DB
	clock func() time.Time
}

// Open opens (or creates) the database file at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*KVStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite kv store: path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite kv store: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite kv store: migrate: %w", err)
	}
	return &KVStore{db: db, clock: time.Now}, nil
}

// Get implements repositories.KeyValueStore.
func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, repositories.WrapError("sqlite.get", err)
	}
	return value, true, nil
}

// Set implements repositories.KeyValueStore.
func (s *KVStore) Set(ctx context.Context, key string, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.clock().UTC())
	if err != nil {
		return repositories.WrapError("sqlite.set", err)
	}
	return nil
}

// Delete implements repositories.KeyValueStore.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return repositories.WrapError("sqlite.delete", err)
	}
	return nil
}

// Close closes the database handle.
func (s *KVStore) Close() error {
	return s.db.Close()
}

var _ repositories.KeyValueStore = (*KVStore)(nil)
