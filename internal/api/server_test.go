package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/dispatcher"
	"github.com/imeepos/crawl-engine/internal/metrics"
	"github.com/imeepos/crawl-engine/internal/queue/memory"
)

func init() {
	metrics.Init()
}

type stubRenderer struct {
	health crawler.RenderHealth
}

func (s *stubRenderer) Render(context.Context, string, map[string]string, *crawler.RenderDirective) (crawler.RenderResult, error) {
	return crawler.RenderResult{}, nil
}

func (s *stubRenderer) Health(context.Context) crawler.RenderHealth {
	return s.health
}

func newTestServer(renderer crawler.Renderer, queue crawler.Queue) *Server {
	return NewServer(dispatcher.New(queue, nil), renderer, zap.NewNop())
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(&stubRenderer{}, memory.NewQueue(1))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(&stubRenderer{}, memory.NewQueue(1))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRenderHealth_Disabled(t *testing.T) {
	t.Parallel()

	server := newTestServer(&stubRenderer{health: crawler.RenderHealth{Enabled: false, OK: true}}, memory.NewQueue(1))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/render/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp renderHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "ok", resp.Status)
	require.False(t, resp.Enabled)
	require.Nil(t, resp.FinalURL)
	require.Nil(t, resp.Error)
}

func TestRenderHealth_Failure(t *testing.T) {
	t.Parallel()

	server := newTestServer(&stubRenderer{health: crawler.RenderHealth{
		Enabled: true,
		OK:      false,
		Error:   "net::ERR_CONNECTION_REFUSED",
	}}, memory.NewQueue(1))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/render/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp renderHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "error", resp.Status)
	require.True(t, resp.Enabled)
	require.NotNil(t, resp.Error)
	require.Equal(t, "net::ERR_CONNECTION_REFUSED", *resp.Error)
}

func TestSubmitTask_EnqueuesDescriptor(t *testing.T) {
	t.Parallel()

	queue := memory.NewQueue(1)
	server := newTestServer(&stubRenderer{}, queue)

	body, err := json.Marshal(crawler.TaskDescriptor{TaskID: 42, Type: "KEYWORD_SEARCH", Keyword: "test"})
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)

	desc, err := queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), desc.TaskID)
	require.Equal(t, "test", desc.Keyword)
}

func TestSubmitTask_RejectsBadPayloads(t *testing.T) {
	t.Parallel()

	server := newTestServer(&stubRenderer{}, memory.NewQueue(1))

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewBufferString("{not json")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/tasks", bytes.NewBufferString(`{"keyword":"x"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
