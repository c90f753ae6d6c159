package cachestore

import (
	"context"
	"database/sql"
	"embed"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore is the embedded-database backend: a pure-Go SQLite file (no
// cgo), schema-managed with goose the same way the teacher manages its
// Postgres schema. One row per key, value stored uncompressed. An expired
// row is deleted when a Get reads it, or explicitly through Invalidate; no
// periodic sweep runs.
type SQLStore struct {
	db *sql.DB
	mu sync.Mutex

	hits, misses, evictions int64
}

// NewSQLStore opens (or creates) a SQLite database at path and brings its
// schema up to date via goose.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		db.Close()
		return nil, err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, Meta, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value, content_type, stored_at, ttl_seconds FROM cache_entries WHERE key = ?`, key)

	var value []byte
	var contentType string
	var storedAtUnix, ttlSeconds int64
	if err := row.Scan(&value, &contentType, &storedAtUnix, &ttlSeconds); err != nil {
		s.bumpMiss()
		return nil, Meta{}, ErrMiss
	}

	storedAt := time.Unix(storedAtUnix, 0)
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl > 0 && time.Now().After(storedAt.Add(ttl)) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		s.mu.Lock()
		s.misses++
		s.evictions++
		s.mu.Unlock()
		return nil, Meta{}, ErrMiss
	}

	s.bumpHit()
	return value, Meta{ContentType: contentType, StoredAt: storedAt, TTL: ttl}, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration, meta Meta) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (key, value, content_type, stored_at, ttl_seconds)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			content_type = excluded.content_type,
			stored_at = excluded.stored_at,
			ttl_seconds = excluded.ttl_seconds
	`, key, value, meta.ContentType, time.Now().Unix(), int64(ttl/time.Second))
	return err
}

func (s *SQLStore) Invalidate(ctx context.Context, pattern string) (int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM cache_entries`)
	if err != nil {
		return 0, err
	}
	var toDelete []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return 0, err
		}
		if MatchesGlob(pattern, key) {
			toDelete = append(toDelete, key)
		}
	}
	rows.Close()

	removed := 0
	for _, key := range toDelete {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return removed, err
		}
		removed++
	}
	s.mu.Lock()
	s.evictions += int64(removed)
	s.mu.Unlock()
	return removed, nil
}

func (s *SQLStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var size int
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM cache_entries`).Scan(&size)
	return Stats{Hits: s.hits, Misses: s.misses, Evictions: s.evictions, Size: size}
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) bumpHit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

func (s *SQLStore) bumpMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
}
