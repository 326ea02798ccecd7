// Package fetch routes requests between the static and rendered
// strategies with configurable fallback.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/metrics"
)

// staticStrategy is the plain-HTTP half of the router.
type staticStrategy interface {
	Get(ctx context.Context, url string, headers http.Header) (crawler.FetchResponse, error)
}

// Router implements crawler.Fetcher. Requests without a render directive
// go straight to the static strategy; requests with one are rendered,
// with fallback behavior decided by the request's fetch mode.
type Router struct {
	static   staticStrategy
	renderer crawler.Renderer
	logger   *zap.Logger
}

// NewRouter constructs a Router.
func NewRouter(static *StaticFetcher, renderer crawler.Renderer, logger *zap.Logger) *Router {
	return &Router{static: static, renderer: renderer, logger: logger}
}

// Fetch executes one request and reports which strategy served it.
func (r *Router) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	composed, err := composeURL(request.URL, request.Query)
	if err != nil {
		return crawler.FetchResponse{}, err
	}

	if request.Render == nil {
		return r.fetchStatic(ctx, composed, request.Headers)
	}

	start := time.Now()
	rendered, renderErr := r.renderer.Render(ctx, composed, flattenHeaders(request.Headers), request.Render)
	if renderErr == nil {
		response := crawler.FetchResponse{
			Body:     []byte(rendered.Body),
			Status:   rendered.Status,
			FinalURL: rendered.FinalURL,
			Strategy: crawler.StrategyRendered,
			Duration: time.Since(start),
		}
		if response.FinalURL == "" {
			response.FinalURL = composed
		}
		metrics.ObserveFetch(string(crawler.StrategyRendered), response.Status, response.Duration)
		return response, nil
	}

	if request.Mode == crawler.FetchModeRequired {
		if errors.Is(renderErr, crawler.ErrRenderingDisabled) {
			// Configuration absence, not a transient failure; callers
			// must be able to tell the two apart.
			return crawler.FetchResponse{}, renderErr
		}
		return crawler.FetchResponse{}, fmt.Errorf("required render failed for %s: %w", composed, renderErr)
	}

	r.logger.Warn("render failed, falling back to static strategy",
		zap.String("url", composed),
		zap.Error(renderErr))
	metrics.ObserveRenderFallback()
	return r.fetchStatic(ctx, composed, request.Headers)
}

func (r *Router) fetchStatic(ctx context.Context, url string, headers http.Header) (crawler.FetchResponse, error) {
	response, err := r.static.Get(ctx, url, headers)
	if err != nil {
		return crawler.FetchResponse{}, err
	}
	if response.FinalURL == "" {
		response.FinalURL = url
	}
	metrics.ObserveFetch(string(crawler.StrategyStatic), response.Status, response.Duration)
	return response, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	flat := make(map[string]string, len(headers))
	for key := range headers {
		flat[key] = headers.Get(key)
	}
	return flat
}
