// Package render owns the long-lived headless browser and the rendered
// fetch strategy.
package render

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// Config controls guard behavior.
type Config struct {
	Enabled            bool
	Headless           bool
	UserAgent          string
	NavTimeout         time.Duration
	InteractionTimeout time.Duration
	WarmupURL          string
}

// Guard owns exactly one browser process, launched lazily on first use.
// Each render runs in a fresh target created from the shared browser and
// torn down in a defer so targets never leak across requests. A failed
// launch clears the memo so a later render retries.
type Guard struct {
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	launched      bool

	// newTarget is swapped out in tests to observe disposal.
	newTarget func(parent context.Context) (context.Context, context.CancelFunc)
	run       func(ctx context.Context, actions ...chromedp.Action) error
}

// New constructs a Guard. The browser is not launched until the first
// render call.
func New(cfg Config, logger *zap.Logger) *Guard {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.InteractionTimeout <= 0 {
		cfg.InteractionTimeout = 10 * time.Second
	}
	return &Guard{
		cfg:       cfg,
		logger:    logger,
		newTarget: func(parent context.Context) (context.Context, context.CancelFunc) { return chromedp.NewContext(parent) },
		run:       chromedp.Run,
	}
}

// ensureBrowser launches the shared browser once. Concurrent callers
// serialize on the mutex; a launch failure resets state so the next
// caller retries instead of reusing a dead memo.
func (g *Guard) ensureBrowser() (context.Context, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.launched {
		return g.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", g.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("mute-audio", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("enable-automation", false),
	)
	g.allocCtx, g.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	g.browserCtx, g.browserCancel = chromedp.NewContext(g.allocCtx)

	// Running an empty task forces the process launch.
	if err := g.run(g.browserCtx); err != nil {
		g.browserCancel()
		g.allocCancel()
		g.browserCtx, g.browserCancel = nil, nil
		g.allocCtx, g.allocCancel = nil, nil
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	g.launched = true
	g.logger.Info("browser launched", zap.Bool("headless", g.cfg.Headless))
	return g.browserCtx, nil
}

// Render navigates a fresh target to url and returns the fully rendered
// document. The target is always disposed, success or failure.
func (g *Guard) Render(ctx context.Context, url string, headers map[string]string, directive *crawler.RenderDirective) (crawler.RenderResult, error) {
	if !g.cfg.Enabled {
		return crawler.RenderResult{}, crawler.ErrRenderingDisabled
	}

	browserCtx, err := g.ensureBrowser()
	if err != nil {
		return crawler.RenderResult{}, err
	}

	targetCtx, targetCancel := g.newTarget(browserCtx)
	defer targetCancel()

	result, err := g.renderInTarget(ctx, targetCtx, url, headers, directive)
	if err != nil {
		g.logger.Error("render failed", zap.String("url", url), zap.Error(err))
		return crawler.RenderResult{}, err
	}
	return result, nil
}

func (g *Guard) renderInTarget(ctx, targetCtx context.Context, url string, headers map[string]string, directive *crawler.RenderDirective) (crawler.RenderResult, error) {
	navTimeout := g.cfg.NavTimeout
	if directive != nil && directive.Timeout > 0 {
		navTimeout = directive.Timeout
	}

	meta := newResponseMeta()
	chromedp.ListenTarget(targetCtx, meta.captureEvent)

	navCtx, navCancel := context.WithTimeout(targetCtx, navTimeout)
	defer navCancel()
	if err := g.run(navCtx, navigationActions(url, g.cfg.UserAgent, headers, directive)...); err != nil {
		if ctx.Err() != nil {
			return crawler.RenderResult{}, fmt.Errorf("render canceled: %w", ctx.Err())
		}
		return crawler.RenderResult{}, fmt.Errorf("navigate %s: %w", url, err)
	}

	// Interaction phase gets its own timeout, distinct from navigation.
	var (
		html     string
		finalURL string
	)
	interCtx, interCancel := context.WithTimeout(targetCtx, g.cfg.InteractionTimeout)
	defer interCancel()
	if err := g.run(interCtx, interactionActions(directive, &html, &finalURL)...); err != nil {
		return crawler.RenderResult{}, fmt.Errorf("extract %s: %w", url, err)
	}

	status, responseURL := meta.snapshotWithFallbacks(url, finalURL)
	return crawler.RenderResult{
		Body:     html,
		Status:   status,
		FinalURL: responseURL,
	}, nil
}

// Health reports the rendering subsystem state. When rendering is
// disabled the probe is trivially healthy; otherwise it performs a real
// render of the warm-up URL.
func (g *Guard) Health(ctx context.Context) crawler.RenderHealth {
	if !g.cfg.Enabled {
		return crawler.RenderHealth{Enabled: false, OK: true}
	}

	result, err := g.Render(ctx, g.cfg.WarmupURL, nil, nil)
	if err != nil {
		return crawler.RenderHealth{Enabled: true, OK: false, Error: err.Error()}
	}
	healthy := result.Status >= http.StatusOK && result.Status < http.StatusBadRequest
	health := crawler.RenderHealth{
		Enabled:  true,
		OK:       healthy,
		FinalURL: result.FinalURL,
	}
	if !healthy {
		health.Error = fmt.Sprintf("warm-up render returned status %d", result.Status)
	}
	return health
}

// Close shuts down the browser process if one was ever launched. Close
// problems are logged, never propagated.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.launched {
		return
	}
	if err := chromedp.Cancel(g.browserCtx); err != nil {
		g.logger.Warn("browser close failed", zap.Error(err))
	}
	g.browserCancel()
	g.allocCancel()
	g.launched = false
	g.logger.Info("browser closed")
}

func navigationActions(url, userAgent string, headers map[string]string, directive *crawler.RenderDirective) []chromedp.Action {
	actions := []chromedp.Action{
		networkSetupAction(userAgent, headers),
		chromedp.Navigate(url),
	}
	switch waitCondition(directive) {
	case crawler.WaitLoad:
		// chromedp.Navigate already waits for the load event.
	case crawler.WaitNetworkIdle:
		// Approximate idle with a settle pause after load; the CDP
		// lifecycle event is not exposed through the high-level API.
		actions = append(actions, chromedp.Sleep(500*time.Millisecond))
	default:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	return actions
}

func interactionActions(directive *crawler.RenderDirective, html, finalURL *string) []chromedp.Action {
	var actions []chromedp.Action
	if directive != nil {
		for _, selector := range directive.WaitSelectors {
			actions = append(actions, chromedp.WaitVisible(selector, chromedp.ByQuery))
		}
		if directive.IdlePause > 0 {
			actions = append(actions, chromedp.Sleep(directive.IdlePause))
		}
	}
	actions = append(actions,
		chromedp.Location(finalURL),
		chromedp.OuterHTML("html", html, chromedp.ByQuery),
	)
	return actions
}

func waitCondition(directive *crawler.RenderDirective) crawler.WaitCondition {
	if directive == nil || directive.WaitUntil == "" {
		return crawler.WaitDOMReady
	}
	return directive.WaitUntil
}

func networkSetupAction(userAgent string, headers map[string]string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			extra := network.Headers{}
			for key, value := range headers {
				extra[key] = value
			}
			if err := network.SetExtraHTTPHeaders(extra).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, url
}
