// Package task normalizes inbound task descriptors and executes them
// through a small closed set of task kinds sharing one lifecycle:
// acquire session, fetch, persist, adjust session health.
package task

import (
	"context"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/config"
	"github.com/imeepos/crawl-engine/internal/crawler"
)

// Task is one runnable unit of crawl work. Run never panics across the
// execution boundary; failures come back inside the outcome.
type Task interface {
	Run(ctx context.Context) crawler.TaskOutcome
}

// SessionAcquirer is the slice of the session pool tasks depend on.
type SessionAcquirer interface {
	Acquire(ctx context.Context) (*crawler.Session, error)
	Penalize(ctx context.Context, sessionID int64, magnitude float64) error
}

// PayloadStore persists fetched payloads with dedup semantics.
type PayloadStore interface {
	Store(ctx context.Context, payload crawler.StorePayload) (bool, error)
}

// Deps is the dependency graph shared by every task instance.
type Deps struct {
	Sessions SessionAcquirer
	Fetcher  crawler.Fetcher
	Store    PayloadStore
	Penalty  config.PenaltyConfig
	Platform config.PlatformConfig
	// PlatformName tags stored payloads with their source platform.
	PlatformName string
	Logger       *zap.Logger
}
