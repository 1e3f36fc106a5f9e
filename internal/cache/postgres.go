package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by a single cache table. Expired rows are
// ignored on read and overwritten on write; Purge removes them.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds connection settings for the postgres cache.
type PostgresConfig struct {
	// DSN is a postgres:// connection URL.
	DSN             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
}

// ConnectPostgres opens a pool for the cache and verifies it with a ping.
func ConnectPostgres(ctx context.Context, cfg PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresStore creates a PostgreSQL cache store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the cache table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS response_cache (
			cache_key  TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create response_cache table: %w", err)
	}
	return nil
}

// Get returns the value for key if it has not expired.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := `
		SELECT value
		FROM response_cache
		WHERE cache_key = $1 AND expires_at > NOW()
	`

	var value []byte
	err := s.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select cache entry: %w", err)
	}
	return value, true, nil
}

// Set upserts the value for key.
func (s *PostgresStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	query := `
		INSERT INTO response_cache (cache_key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := s.pool.Exec(ctx, query, key, value, time.Now().Add(ttl)); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *PostgresStore) Purge(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM response_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Name returns "postgres".
func (s *PostgresStore) Name() string { return "postgres" }

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
