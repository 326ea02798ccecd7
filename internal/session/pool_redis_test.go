package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/rankedset/redisset"
)

func newRedisPool(t *testing.T, records SessionRecords) (*Pool, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	set := redisset.New(rdb, zap.NewNop())
	return New(set, records, Config{RankedSetKey: "sessions", MaxAttempts: 5}, zap.NewNop()), mr
}

func TestPenalize_NeverDrivesScoreBelowZero(t *testing.T) {
	t.Parallel()

	pool, mr := newRedisPool(t, &fakeRecords{})
	mr.ZAdd("sessions", 2.5, "42")

	ctx := context.Background()
	for _, magnitude := range []float64{1, 5, 0.25, 100, 1} {
		require.NoError(t, pool.Penalize(ctx, 42, magnitude))
		score, err := mr.ZScore("sessions", "42")
		require.NoError(t, err)
		require.GreaterOrEqual(t, score, float64(0))
	}

	score, err := mr.ZScore("sessions", "42")
	require.NoError(t, err)
	require.Equal(t, float64(0), score)
}

func TestAcquire_PicksHealthiestFirst(t *testing.T) {
	t.Parallel()

	records := &fakeRecords{sessions: map[int64]crawler.Session{
		1: {ID: 1, Status: crawler.SessionStatusActive},
		2: {ID: 2, Status: crawler.SessionStatusActive},
	}}
	pool, mr := newRedisPool(t, records)
	mr.ZAdd("sessions", 3, "1")
	mr.ZAdd("sessions", 8, "2")

	sess, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)
	require.Equal(t, int64(2), sess.ID)

	// Both members are still present after the acquisition.
	members, err := mr.ZMembers("sessions")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1", "2"}, members)
}
