// Package postgres implements seen.Store on top of PostgreSQL for deployments
// that share dedup state between hosts.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scipunch/technews/seen"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *pgxpool.Pool
}

// New opens a pool against dsn, pings it and ensures the seen table exists
func New(ctx context.Context, dsn string) (*Store, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse postgres dsn with %w", seen.ErrStorage, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create postgres pool with %w", seen.ErrStorage, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: postgres ping failed with %w", seen.ErrStorage, err)
	}

	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to initialize schema with %w", seen.ErrStorage, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) IsSeen(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx, `SELECT 1 FROM seen WHERE url = $1`, url).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup of '%s' failed with %w", seen.ErrStorage, url, err)
	}
	return true, nil
}

func (s *Store) MarkSeen(ctx context.Context, url string) error {
	_, err := s.db.Exec(ctx, `INSERT INTO seen (url) VALUES ($1) ON CONFLICT (url) DO NOTHING`, url)
	if err != nil {
		return fmt.Errorf("%w: insert of '%s' failed with %w", seen.ErrStorage, url, err)
	}
	return nil
}

// Get returns the stored record for url
func (s *Store) Get(ctx context.Context, url string) (seen.Record, bool, error) {
	rec := seen.Record{URL: url}
	err := s.db.QueryRow(ctx, `SELECT first_seen FROM seen WHERE url = $1`, url).Scan(&rec.FirstSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return seen.Record{}, false, nil
	}
	if err != nil {
		return seen.Record{}, false, fmt.Errorf("%w: lookup of '%s' failed with %w", seen.ErrStorage, url, err)
	}
	rec.FirstSeenAt = rec.FirstSeenAt.UTC()
	return rec, true, nil
}

func (s *Store) Stats(ctx context.Context) (seen.Stats, error) {
	var (
		stats  seen.Stats
		oldest *time.Time
	)
	err := s.db.QueryRow(ctx, `SELECT COUNT(*), MIN(first_seen) FROM seen`).Scan(&stats.Entries, &oldest)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", seen.ErrStorage, err)
	}
	if oldest != nil {
		stats.OldestEntry = *oldest
	}
	return stats, nil
}

// Close releases the pool
func (s *Store) Close() {
	s.db.Close()
}

var _ seen.Store = (*Store)(nil)
