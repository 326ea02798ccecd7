package crawler

import (
	"context"
	"io"
	"time"
)

// RankedSet is the shared ordered structure holding session ids keyed by
// health score. Each individual operation must be atomic in the backing
// store; pop-inspect-reinsert is deliberately not a transaction.
type RankedSet interface {
	PopMax(ctx context.Context, key string) (member string, score float64, ok bool, err error)
	Add(ctx context.Context, key, member string, score float64) error
	IncrClamped(ctx context.Context, key, member string, delta, floor float64) (float64, error)
	Remove(ctx context.Context, key, member string) error
}

// SessionRecords reads session rows owned by the account manager.
type SessionRecords interface {
	GetSession(ctx context.Context, id int64) (Session, error)
}

// ContentRecords persists content rows with hash-based dedup. Insert
// returns ok=false when a row with the same hash already exists.
type ContentRecords interface {
	InsertIfAbsent(ctx context.Context, rec StoredRecord, payload StorePayload) (id string, ok bool, err error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes ready events downstream (Pub/Sub or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher executes one fetch, choosing between strategies.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Renderer fetches a page by executing it in a browser engine.
type Renderer interface {
	Render(ctx context.Context, url string, headers map[string]string, directive *RenderDirective) (RenderResult, error)
	Health(ctx context.Context) RenderHealth
}

// Queue provides enqueue/dequeue semantics for task descriptors.
type Queue interface {
	Enqueue(ctx context.Context, desc TaskDescriptor) error
	Dequeue(ctx context.Context) (TaskDescriptor, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
