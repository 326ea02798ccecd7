package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/metrics"
)

func init() {
	metrics.Init()
}

type fakeStatic struct {
	response crawler.FetchResponse
	err      error
	lastURL  string
}

func (f *fakeStatic) Get(_ context.Context, url string, _ http.Header) (crawler.FetchResponse, error) {
	f.lastURL = url
	if f.err != nil {
		return crawler.FetchResponse{}, f.err
	}
	resp := f.response
	resp.Strategy = crawler.StrategyStatic
	return resp, nil
}

type fakeRenderer struct {
	result  crawler.RenderResult
	err     error
	lastURL string
}

func (f *fakeRenderer) Render(_ context.Context, url string, _ map[string]string, _ *crawler.RenderDirective) (crawler.RenderResult, error) {
	f.lastURL = url
	if f.err != nil {
		return crawler.RenderResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeRenderer) Health(context.Context) crawler.RenderHealth {
	return crawler.RenderHealth{Enabled: true, OK: true}
}

func TestFetch_NoDirectiveUsesStatic(t *testing.T) {
	t.Parallel()

	static := &fakeStatic{response: crawler.FetchResponse{Status: 200, Body: []byte("ok")}}
	router := &Router{static: static, renderer: &fakeRenderer{}, logger: zap.NewNop()}

	resp, err := router.Fetch(context.Background(), crawler.FetchRequest{URL: "https://example.com/page"})
	require.NoError(t, err)
	require.Equal(t, crawler.StrategyStatic, resp.Strategy)
	require.Equal(t, "https://example.com/page", static.lastURL)
}

func TestFetch_DirectiveUsesRenderer(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{result: crawler.RenderResult{
		Body:     "<html>rendered</html>",
		Status:   200,
		FinalURL: "https://example.com/final",
	}}
	router := &Router{static: &fakeStatic{}, renderer: renderer, logger: zap.NewNop()}

	resp, err := router.Fetch(context.Background(), crawler.FetchRequest{
		URL:    "https://example.com",
		Render: &crawler.RenderDirective{},
		Mode:   crawler.FetchModeRequired,
	})
	require.NoError(t, err)
	require.Equal(t, crawler.StrategyRendered, resp.Strategy)
	require.Equal(t, "https://example.com/final", resp.FinalURL)
	require.Equal(t, []byte("<html>rendered</html>"), resp.Body)
}

func TestFetch_PreferFallsBackToStatic(t *testing.T) {
	t.Parallel()

	static := &fakeStatic{response: crawler.FetchResponse{Status: 200, Body: []byte("static body")}}
	renderer := &fakeRenderer{err: errors.New("browser crashed")}
	router := &Router{static: static, renderer: renderer, logger: zap.NewNop()}

	resp, err := router.Fetch(context.Background(), crawler.FetchRequest{
		URL:    "https://example.com",
		Render: &crawler.RenderDirective{},
		Mode:   crawler.FetchModePrefer,
	})
	require.NoError(t, err)
	require.Equal(t, crawler.StrategyStatic, resp.Strategy)
	require.Equal(t, []byte("static body"), resp.Body)
}

func TestFetch_RequiredPropagatesRenderFailure(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{err: errors.New("browser crashed")}
	router := &Router{static: &fakeStatic{}, renderer: renderer, logger: zap.NewNop()}

	_, err := router.Fetch(context.Background(), crawler.FetchRequest{
		URL:    "https://example.com",
		Render: &crawler.RenderDirective{},
		Mode:   crawler.FetchModeRequired,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "browser crashed")
}

func TestFetch_RequiredReraisesDisabledVerbatim(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{err: crawler.ErrRenderingDisabled}
	router := &Router{static: &fakeStatic{}, renderer: renderer, logger: zap.NewNop()}

	_, err := router.Fetch(context.Background(), crawler.FetchRequest{
		URL:    "https://example.com",
		Render: &crawler.RenderDirective{},
		Mode:   crawler.FetchModeRequired,
	})
	require.ErrorIs(t, err, crawler.ErrRenderingDisabled)
	// Re-thrown verbatim, not wrapped.
	require.Equal(t, crawler.ErrRenderingDisabled, err)
}

func TestFetch_QueryMergedBeforeEitherStrategy(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{result: crawler.RenderResult{Status: 200}}
	router := &Router{static: &fakeStatic{}, renderer: renderer, logger: zap.NewNop()}

	resp, err := router.Fetch(context.Background(), crawler.FetchRequest{
		URL:    "https://example.com/search?q=old",
		Query:  map[string]string{"q": "test", "page": "2"},
		Render: &crawler.RenderDirective{},
		Mode:   crawler.FetchModeRequired,
	})
	require.NoError(t, err)
	require.Contains(t, renderer.lastURL, "q=test")
	require.Contains(t, renderer.lastURL, "page=2")
	// The renderer reported no final URL, so the composed one is kept.
	require.Equal(t, renderer.lastURL, resp.FinalURL)
}

func TestComposeURL(t *testing.T) {
	t.Parallel()

	composed, err := composeURL("https://s.example.com/weibo?q=a", map[string]string{"q": "b", "rd": "realtime"})
	require.NoError(t, err)
	require.Contains(t, composed, "q=b")
	require.Contains(t, composed, "rd=realtime")
	require.NotContains(t, composed, "q=a")

	same, err := composeURL("https://s.example.com/weibo", nil)
	require.NoError(t, err)
	require.Equal(t, "https://s.example.com/weibo", same)
}
