// Package content persists fetched payloads with content-addressed
// deduplication and announces new records downstream.
package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/metrics"
)

// PublisherFactory lazily establishes the downstream message channel.
// It is invoked at most once per store lifetime.
type PublisherFactory func(ctx context.Context) (crawler.Publisher, error)

// Config controls store behavior.
type Config struct {
	Topic       string
	BlobPrefix  string
	ContentType string
}

// Store implements exactly-once payload persistence: identical payload
// bytes hash to the same key, the row insert is atomic per hash, and a
// ready notification goes out only for the insert that won.
type Store struct {
	records crawler.ContentRecords
	blobs   crawler.BlobStore
	hasher  crawler.Hasher
	idGen   crawler.IDGenerator
	clock   crawler.Clock
	factory PublisherFactory
	cfg     Config
	logger  *zap.Logger

	mu        sync.Mutex
	publisher crawler.Publisher
}

// New constructs a Store. The publisher connection is not established
// until the first unique payload needs announcing.
func New(
	records crawler.ContentRecords,
	blobs crawler.BlobStore,
	hasher crawler.Hasher,
	idGen crawler.IDGenerator,
	clock crawler.Clock,
	factory PublisherFactory,
	cfg Config,
	logger *zap.Logger,
) *Store {
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Store{
		records: records,
		blobs:   blobs,
		hasher:  hasher,
		idGen:   idGen,
		clock:   clock,
		factory: factory,
		cfg:     cfg,
		logger:  logger,
	}
}

// Store persists one payload. It returns stored=false (and no error)
// when a payload with the same content hash already exists; duplicates
// publish nothing.
func (s *Store) Store(ctx context.Context, payload crawler.StorePayload) (bool, error) {
	hash, err := s.hasher.Hash(payload.Body)
	if err != nil {
		return false, fmt.Errorf("hash payload: %w", err)
	}

	blobURI, err := s.blobs.PutObject(ctx, s.blobPath(hash, payload.Kind), s.cfg.ContentType, bytes.NewReader(payload.Body))
	if err != nil {
		return false, fmt.Errorf("write payload blob: %w", err)
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return false, fmt.Errorf("generate record id: %w", err)
	}
	rec := crawler.StoredRecord{
		ID:          id,
		ContentHash: hash,
		BlobURI:     blobURI,
		CreatedAt:   s.clock.Now(),
	}

	recordID, inserted, err := s.records.InsertIfAbsent(ctx, rec, payload)
	if err != nil {
		return false, fmt.Errorf("insert content record: %w", err)
	}
	metrics.ObserveDedup(inserted)
	if !inserted {
		s.logger.Debug("duplicate payload skipped",
			zap.String("content_hash", hash),
			zap.String("source_url", payload.SourceURL))
		return false, nil
	}

	event := crawler.ReadyEvent{
		RecordID:    recordID,
		ContentKind: payload.Kind,
		Platform:    payload.Platform,
		SourceURL:   payload.SourceURL,
		ContentHash: hash,
		Metadata:    projectMetadata(payload),
		CreatedAt:   rec.CreatedAt,
	}
	if err := s.publish(ctx, event); err != nil {
		// The row exists; losing the notification is worse than a
		// duplicate downstream, so surface the failure to the task.
		return true, fmt.Errorf("publish ready event: %w", err)
	}
	s.logger.Info("stored new payload",
		zap.String("record_id", recordID),
		zap.String("content_hash", hash),
		zap.Int("byte_size", len(payload.Body)))
	return true, nil
}

func (s *Store) publish(ctx context.Context, event crawler.ReadyEvent) error {
	pub, err := s.ensurePublisher(ctx)
	if err != nil {
		metrics.ObservePublish(err)
		return err
	}
	_, err = pub.Publish(ctx, s.cfg.Topic, event)
	metrics.ObservePublish(err)
	return err
}

// ensurePublisher establishes the message channel on first use and
// reuses it for the rest of the process lifetime.
func (s *Store) ensurePublisher(ctx context.Context) (crawler.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publisher != nil {
		return s.publisher, nil
	}
	pub, err := s.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect publisher: %w", err)
	}
	s.publisher = pub
	return pub, nil
}

// Close tears down the publisher connection if one was ever opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publisher == nil {
		return nil
	}
	closer, ok := s.publisher.(io.Closer)
	s.publisher = nil
	if !ok {
		return nil
	}
	if err := closer.Close(); err != nil {
		return fmt.Errorf("close publisher: %w", err)
	}
	return nil
}

func (s *Store) blobPath(hash string, kind crawler.ContentKind) string {
	ext := "html"
	if strings.HasSuffix(string(kind), "JSON") {
		ext = "json"
	}
	prefix := strings.Trim(s.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s.%s", hash, ext)
	}
	return fmt.Sprintf("%s/%s.%s", prefix, hash, ext)
}

// projectMetadata derives the downstream metadata projection from the
// free-form task metadata.
func projectMetadata(payload crawler.StorePayload) map[string]any {
	projection := map[string]any{
		"byteSize": len(payload.Body),
	}
	for _, key := range []string{"taskId", "keyword", "timeRange", "page"} {
		if value, ok := payload.Metadata[key]; ok {
			projection[key] = value
		}
	}
	return projection
}
