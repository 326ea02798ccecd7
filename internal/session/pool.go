// Package session implements health-ranked session selection and decay.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/metrics"
)

// Config controls pool behavior.
type Config struct {
	// RankedSetKey names the shared sorted set of session ids.
	RankedSetKey string
	// MaxAttempts bounds how many candidates one acquisition inspects.
	MaxAttempts int
}

// Pool selects the healthiest usable session from the shared ranked set.
// Sessions are shared, not checked out: an ACTIVE candidate is re-inserted
// at its current score before being returned, so concurrent workers may
// select it again. Health decay on failure self-corrects over-selection.
type Pool struct {
	set     crawler.RankedSet
	records SessionRecords
	cfg     Config
	logger  *zap.Logger
}

// SessionRecords reads session rows owned by the account manager.
type SessionRecords interface {
	GetSession(ctx context.Context, id int64) (crawler.Session, error)
}

// New constructs a Pool.
func New(set crawler.RankedSet, records SessionRecords, cfg Config, logger *zap.Logger) *Pool {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Pool{set: set, records: records, cfg: cfg, logger: logger}
}

// Acquire returns the healthiest ACTIVE session, or nil when every
// attempt is exhausted. A nil session is "none available right now" and
// is not an error; retry belongs to the task queue.
func (p *Pool) Acquire(ctx context.Context) (*crawler.Session, error) {
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		member, score, ok, err := p.set.PopMax(ctx, p.cfg.RankedSetKey)
		if err != nil {
			return nil, fmt.Errorf("pop session candidate: %w", err)
		}
		if !ok {
			metrics.ObserveSessionAcquire(attempt, false)
			p.logger.Warn("session ranked set is empty",
				zap.String("key", p.cfg.RankedSetKey))
			return nil, nil
		}

		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			// Garbage member: dropped permanently by the pop itself.
			p.logger.Warn("dropping unparseable session member",
				zap.String("member", member))
			continue
		}

		sess, err := p.records.GetSession(ctx, id)
		if errors.Is(err, crawler.ErrSessionNotFound) {
			p.logger.Warn("dropping session without backing record",
				zap.Int64("session_id", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load session %d: %w", id, err)
		}

		if sess.Status != crawler.SessionStatusActive {
			// Not re-inserted here; the external health-check job
			// re-evaluates non-ACTIVE sessions.
			p.logger.Debug("skipping ineligible session",
				zap.Int64("session_id", id),
				zap.String("status", string(sess.Status)))
			continue
		}

		if err := p.set.Add(ctx, p.cfg.RankedSetKey, member, score); err != nil {
			return nil, fmt.Errorf("re-insert session %d: %w", id, err)
		}
		sess.HealthScore = score
		metrics.ObserveSessionAcquire(attempt, true)
		p.logger.Debug("acquired session",
			zap.Int64("session_id", id),
			zap.Float64("score", score))
		return &sess, nil
	}

	metrics.ObserveSessionAcquire(p.cfg.MaxAttempts, false)
	p.logger.Warn("no eligible session after exhausting attempts",
		zap.Int("attempts", p.cfg.MaxAttempts))
	return nil, nil
}

// Penalize decrements the session's health score by magnitude, clamping
// the floor at 0. Magnitude reflects observed failure severity and is
// chosen by the caller.
func (p *Pool) Penalize(ctx context.Context, sessionID int64, magnitude float64) error {
	if magnitude <= 0 {
		magnitude = 1
	}
	member := strconv.FormatInt(sessionID, 10)
	score, err := p.set.IncrClamped(ctx, p.cfg.RankedSetKey, member, -magnitude, 0)
	if err != nil {
		return fmt.Errorf("penalize session %d: %w", sessionID, err)
	}
	p.logger.Debug("penalized session",
		zap.Int64("session_id", sessionID),
		zap.Float64("magnitude", magnitude),
		zap.Float64("score", score))
	return nil
}
