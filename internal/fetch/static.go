package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// StaticConfig controls the plain-HTTP strategy.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticFetcher performs plain HTTP GETs through a Colly collector.
// The target is adversarial, so robots handling is deliberately absent;
// politeness is the session pool's problem, not the transport's.
type StaticFetcher struct {
	cfg           StaticConfig
	baseCollector *colly.Collector
}

// NewStatic builds a StaticFetcher with a pooled transport.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false), colly.IgnoreRobotsTxt())
	c.WithTransport(newHTTPTransport())
	return &StaticFetcher{cfg: cfg, baseCollector: c}
}

// Get executes a single HTTP GET and returns body, status and the final
// (possibly redirected) URL.
func (f *StaticFetcher) Get(ctx context.Context, url string, headers http.Header) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = crawler.FetchResponse{
			Body:     append([]byte(nil), r.Body...),
			Status:   r.StatusCode,
			FinalURL: r.Request.URL.String(),
			Strategy: crawler.StrategyStatic,
			Duration: time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			fetchErr = &crawler.HTTPError{URL: url, StatusCode: r.StatusCode}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return crawler.FetchResponse{}, fmt.Errorf("static fetch canceled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return crawler.FetchResponse{}, fetchErr
		}
		if err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("static fetch %s: %w", url, err)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
