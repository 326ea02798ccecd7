package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// SessionRecords reads session rows owned by the account manager. This
// layer never writes them; health lives in the ranked set, status
// transitions belong to the external health-check job.
type SessionRecords struct {
	pool  queryPool
	table string
}

// NewSessionRecordsFromDSN opens a dedicated pool for session reads.
func NewSessionRecordsFromDSN(ctx context.Context, dsn, table string) (*SessionRecords, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewSessionRecords(pool, table)
}

// NewSessionRecords constructs a SessionRecords reader on an existing pool.
func NewSessionRecords(pool queryPool, table string) (*SessionRecords, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "sessions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SessionRecords{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *SessionRecords) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetSession loads one session row by id. A missing row reports
// crawler.ErrSessionNotFound so the pool can discard the member.
func (s *SessionRecords) GetSession(ctx context.Context, id int64) (crawler.Session, error) {
	query := fmt.Sprintf(`
SELECT id, platform_uid, COALESCE(display_name, ''), cookies, status
FROM %s
WHERE id = $1`, s.table)

	var sess crawler.Session
	var status string
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&sess.ID,
		&sess.PlatformUID,
		&sess.DisplayName,
		&sess.Cookies,
		&status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Session{}, crawler.ErrSessionNotFound
	}
	if err != nil {
		return crawler.Session{}, fmt.Errorf("select session %d: %w", id, err)
	}
	sess.Status = crawler.SessionStatus(status)
	return sess, nil
}
