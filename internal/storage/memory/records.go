package memory

import (
	"context"
	"sync"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// SessionRecords provides an in-memory session table for
// development/testing.
type SessionRecords struct {
	mu       sync.RWMutex
	sessions map[int64]crawler.Session
}

// NewSessionRecords constructs an empty SessionRecords.
func NewSessionRecords() *SessionRecords {
	return &SessionRecords{sessions: make(map[int64]crawler.Session)}
}

// Put inserts or replaces a session row.
func (s *SessionRecords) Put(session crawler.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

// GetSession looks up one session by id.
func (s *SessionRecords) GetSession(_ context.Context, id int64) (crawler.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return crawler.Session{}, crawler.ErrSessionNotFound
	}
	return session, nil
}

// ContentRecords provides in-memory hash-keyed dedup for
// development/testing.
type ContentRecords struct {
	mu      sync.Mutex
	records map[string]crawler.StoredRecord
}

// NewContentRecords constructs an empty ContentRecords.
func NewContentRecords() *ContentRecords {
	return &ContentRecords{records: make(map[string]crawler.StoredRecord)}
}

// InsertIfAbsent stores the record unless its content hash is already
// present; ok reports whether this call inserted.
func (s *ContentRecords) InsertIfAbsent(_ context.Context, rec crawler.StoredRecord, _ crawler.StorePayload) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[rec.ContentHash]; exists {
		return "", false, nil
	}
	s.records[rec.ContentHash] = rec
	return rec.ID, true, nil
}

// Record returns the stored record for a hash, if present.
func (s *ContentRecords) Record(hash string) (crawler.StoredRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hash]
	return rec, ok
}
