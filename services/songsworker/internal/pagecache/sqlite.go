package pagecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps zlib-compressed pages in a single-file SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open page cache %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS pages (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init page cache %s: %w", path, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM pages WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("page cache get %s: %w", key, err)
	}
	page, err := decompress(blob)
	if err != nil {
		return nil, false, err
	}
	return page, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, page []byte) error {
	blob, err := compress(page)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pages (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, blob)
	if err != nil {
		return fmt.Errorf("page cache put %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
