package seen

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore keeps seen urls in a sqlite table
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open initializes the seen database at the given path, creating it when absent
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %w", ErrStorage, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database at '%s' with %w", ErrStorage, dbPath, err)
	}

	s, err := NewFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewFromDB initializes the seen schema on an already opened database
func NewFromDB(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize schema: %w", ErrStorage, err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) IsSeen(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM seen WHERE url = ?", url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup of '%s' failed with %w", ErrStorage, url, err)
	}
	return true, nil
}

func (s *SQLiteStore) MarkSeen(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO seen (url, first_seen) VALUES (?, ?)",
		url, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert of '%s' failed with %w", ErrStorage, url, err)
	}
	return nil
}

// Get returns the stored record for url
func (s *SQLiteStore) Get(ctx context.Context, url string) (Record, bool, error) {
	var firstSeen int64
	err := s.db.QueryRowContext(ctx, "SELECT first_seen FROM seen WHERE url = ?", url).Scan(&firstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("%w: lookup of '%s' failed with %w", ErrStorage, url, err)
	}
	return Record{URL: url, FirstSeenAt: time.Unix(firstSeen, 0).UTC()}, true, nil
}

// Stats returns seen store statistics
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM seen").Scan(&stats.Entries)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	var oldestUnix sql.NullInt64
	err = s.db.QueryRowContext(ctx, "SELECT MIN(first_seen) FROM seen").Scan(&oldestUnix)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if oldestUnix.Valid && oldestUnix.Int64 > 0 {
		stats.OldestEntry = time.Unix(oldestUnix.Int64, 0)
	}

	return stats, nil
}

// Close closes the seen database
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
