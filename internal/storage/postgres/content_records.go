// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type queryPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// ContentRecordsConfig controls the Postgres connection pool.
type ContentRecordsConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// ContentRecords writes content rows with hash-based dedup into Postgres.
type ContentRecords struct {
	pool  queryPool
	table string
}

// NewContentRecords creates a Postgres-backed ContentRecords.
func NewContentRecords(ctx context.Context, cfg ContentRecordsConfig) (*ContentRecords, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "contents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ContentRecords{pool: pool, table: table}, nil
}

// NewContentRecordsWithPool constructs a store from an existing pool
// (primarily for testing).
func NewContentRecordsWithPool(pool queryPool, table string) (*ContentRecords, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "contents"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ContentRecords{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ContentRecords) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InsertIfAbsent inserts a content row unless one with the same content
// hash already exists. The ON CONFLICT clause makes the check-and-insert
// atomic per hash; ok=false reports a duplicate.
func (s *ContentRecords) InsertIfAbsent(ctx context.Context, rec crawler.StoredRecord, payload crawler.StorePayload) (string, bool, error) {
	if s == nil || s.pool == nil {
		return "", false, fmt.Errorf("content records store is not configured")
	}
	metadataJSON, err := json.Marshal(payload.Metadata)
	if err != nil {
		return "", false, fmt.Errorf("marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	content_kind,
	platform,
	source_url,
	content_hash,
	blob_uri,
	metadata,
	byte_size,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (content_hash) DO NOTHING
RETURNING id`, s.table)

	var id string
	err = s.pool.QueryRow(ctx, query,
		rec.ID,
		string(payload.Kind),
		payload.Platform,
		payload.SourceURL,
		rec.ContentHash,
		rec.BlobURI,
		metadataJSON,
		len(payload.Body),
		rec.CreatedAt,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("insert content row: %w", err)
	}
	return id, true, nil
}
