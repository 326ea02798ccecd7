package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

func TestRender_DisabledReturnsSentinel(t *testing.T) {
	t.Parallel()

	g := New(Config{Enabled: false}, zap.NewNop())
	_, err := g.Render(context.Background(), "https://example.com", nil, nil)
	require.ErrorIs(t, err, crawler.ErrRenderingDisabled)
}

func TestHealth_DisabledIsTriviallyOK(t *testing.T) {
	t.Parallel()

	g := New(Config{Enabled: false}, zap.NewNop())
	health := g.Health(context.Background())
	require.False(t, health.Enabled)
	require.True(t, health.OK)
	require.Empty(t, health.Error)
}

func TestRender_AlwaysDisposesTarget(t *testing.T) {
	t.Parallel()

	g := New(Config{Enabled: true, WarmupURL: "https://warmup"}, zap.NewNop())
	// Pretend a browser is running so ensureBrowser is a no-op.
	g.launched = true
	g.browserCtx = context.Background()

	disposed := false
	g.newTarget = func(parent context.Context) (context.Context, context.CancelFunc) {
		ctx, cancel := context.WithCancel(parent)
		return ctx, func() {
			disposed = true
			cancel()
		}
	}
	g.run = func(ctx context.Context, actions ...chromedp.Action) error {
		return errors.New("navigation blew up")
	}

	_, err := g.Render(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	require.True(t, disposed, "target must be disposed when the render fails")
}

func TestRender_LaunchFailureResetsMemo(t *testing.T) {
	t.Parallel()

	g := New(Config{Enabled: true}, zap.NewNop())
	launches := 0
	g.run = func(ctx context.Context, actions ...chromedp.Action) error {
		if len(actions) == 0 {
			launches++
			return errors.New("chrome missing")
		}
		return nil
	}

	_, err := g.Render(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	require.False(t, g.launched)

	// A later call retries the launch instead of reusing the failure.
	_, err = g.Render(context.Background(), "https://example.com", nil, nil)
	require.Error(t, err)
	require.Equal(t, 2, launches)
}

func TestNavigationActions_WaitConditions(t *testing.T) {
	t.Parallel()

	// load: setup + navigate only.
	require.Len(t, navigationActions("https://x", "", nil, &crawler.RenderDirective{WaitUntil: crawler.WaitLoad}), 2)
	// default (domready): adds a body wait.
	require.Len(t, navigationActions("https://x", "", nil, nil), 3)
	// networkidle: adds a settle pause.
	require.Len(t, navigationActions("https://x", "", nil, &crawler.RenderDirective{WaitUntil: crawler.WaitNetworkIdle}), 3)
}

func TestInteractionActions_SelectorsAndIdle(t *testing.T) {
	t.Parallel()

	var html, finalURL string
	directive := &crawler.RenderDirective{
		WaitSelectors: []string{".feed", ".card"},
		IdlePause:     200 * time.Millisecond,
	}
	actions := interactionActions(directive, &html, &finalURL)
	// two selector waits + idle + location + outer html
	require.Len(t, actions, 5)

	actions = interactionActions(nil, &html, &finalURL)
	require.Len(t, actions, 2)
}

func TestResponseMeta_CaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status: 302,
			URL:    "https://example.com/redirected",
		},
	})
	status, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 302, status)
	require.Equal(t, "https://example.com/redirected", url)

	// Non-document events are ignored.
	meta = newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://cdn/img.png"},
	})
	status, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, 200, status)
	require.Equal(t, "https://final", url)

	status, url = meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, "https://req", url)
	require.Equal(t, 200, status)
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	g := New(Config{}, zap.NewNop())
	require.Equal(t, 30*time.Second, g.cfg.NavTimeout)
	require.Equal(t, 10*time.Second, g.cfg.InteractionTimeout)
}
