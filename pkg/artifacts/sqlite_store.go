package artifacts

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/triad-labs/triad/pkg/canonicalize"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a sqlite-backed implementation of Store for deployments
// that want durable single-file storage without an object store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened database handle and runs migrations.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLiteStore opens (or creates) a sqlite database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact db: %w", err)
	}
	return NewSQLiteStore(db)
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS artifacts (
        digest TEXT PRIMARY KEY,
        content BLOB NOT NULL,
        created_at DATETIME
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, data []byte) (canonicalize.Digest, error) {
	digest := canonicalize.HashBytes(data)

	// INSERT OR IGNORE keeps concurrent identical puts idempotent; the
	// read-back catches the (hash-broken) collision case.
	query := `INSERT OR IGNORE INTO artifacts (digest, content, created_at) VALUES (?, ?, ?)`
	createdAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx, query, digest.Hex(), data, createdAt); err != nil {
		return canonicalize.Digest{}, fmt.Errorf("failed to insert artifact: %w", err)
	}

	stored, err := s.Get(ctx, digest)
	if err != nil {
		return canonicalize.Digest{}, err
	}
	if !bytes.Equal(stored, data) {
		return canonicalize.Digest{}, ErrDigestCollision
	}
	return digest, nil
}

func (s *SQLiteStore) Get(ctx context.Context, digest canonicalize.Digest) ([]byte, error) {
	row := s.db.QueryRowContext(ctx, `SELECT content FROM artifacts WHERE digest = ?`, digest.Hex())

	var content []byte
	if err := row.Scan(&content); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		return nil, err
	}
	return content, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, digest canonicalize.Digest) (bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT 1 FROM artifacts WHERE digest = ?`, digest.Hex())

	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
