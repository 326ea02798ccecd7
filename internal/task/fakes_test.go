package task

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/config"
	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/metrics"
)

func init() {
	metrics.Init()
}

type penaltyCall struct {
	SessionID int64
	Magnitude float64
}

type fakeSessions struct {
	mu        sync.Mutex
	session   *crawler.Session
	acquires  int
	penalties []penaltyCall
}

func (f *fakeSessions) Acquire(context.Context) (*crawler.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	return f.session, nil
}

func (f *fakeSessions) Penalize(_ context.Context, sessionID int64, magnitude float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.penalties = append(f.penalties, penaltyCall{SessionID: sessionID, Magnitude: magnitude})
	return nil
}

type fakeFetcher struct {
	mu       sync.Mutex
	requests []crawler.FetchRequest
	response crawler.FetchResponse
	err      error
}

func (f *fakeFetcher) Fetch(_ context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, request)
	if f.err != nil {
		return crawler.FetchResponse{}, f.err
	}
	return f.response, nil
}

type fakeStore struct {
	mu       sync.Mutex
	payloads []crawler.StorePayload
	stored   bool
	err      error
}

func (f *fakeStore) Store(_ context.Context, payload crawler.StorePayload) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return false, f.err
	}
	return f.stored, nil
}

func testPenalties() config.PenaltyConfig {
	return config.PenaltyConfig{Heavy: 5, Medium: 2, Light: 1, Usage: 0.1}
}

func testPlatform() config.PlatformConfig {
	return config.PlatformConfig{
		SearchBase:   "https://s.weibo.com/weibo",
		DetailBase:   "https://weibo.com/ajax/statuses/show",
		CommentsBase: "https://weibo.com/ajax/statuses/buildComments",
		ProfileBase:  "https://weibo.com/ajax/profile/info",
	}
}

func testDeps(sessions *fakeSessions, fetcher *fakeFetcher, store *fakeStore) Deps {
	return Deps{
		Sessions:     sessions,
		Fetcher:      fetcher,
		Store:        store,
		Penalty:      testPenalties(),
		Platform:     testPlatform(),
		PlatformName: "weibo",
		Logger:       zap.NewNop(),
	}
}

func activeSession(id int64) *crawler.Session {
	return &crawler.Session{
		ID:          id,
		PlatformUID: "7421900",
		Cookies:     "SUB=abc; SUBP=def",
		HealthScore: 80,
		Status:      crawler.SessionStatusActive,
	}
}
