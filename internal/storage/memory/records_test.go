package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

func TestSessionRecords(t *testing.T) {
	t.Parallel()

	records := NewSessionRecords()
	records.Put(crawler.Session{ID: 7, PlatformUID: "u7", Status: crawler.SessionStatusActive})

	session, err := records.GetSession(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "u7", session.PlatformUID)

	_, err = records.GetSession(context.Background(), 8)
	require.ErrorIs(t, err, crawler.ErrSessionNotFound)
}

func TestContentRecordsDedup(t *testing.T) {
	t.Parallel()

	records := NewContentRecords()
	rec := crawler.StoredRecord{ID: "rec-1", ContentHash: "abc", CreatedAt: time.Now()}

	id, inserted, err := records.InsertIfAbsent(context.Background(), rec, crawler.StorePayload{})
	require.NoError(t, err)
	require.True(t, inserted)
	require.Equal(t, "rec-1", id)

	id, inserted, err = records.InsertIfAbsent(context.Background(), crawler.StoredRecord{ID: "rec-2", ContentHash: "abc"}, crawler.StorePayload{})
	require.NoError(t, err)
	require.False(t, inserted)
	require.Empty(t, id)

	stored, ok := records.Record("abc")
	require.True(t, ok)
	require.Equal(t, "rec-1", stored.ID)
}
