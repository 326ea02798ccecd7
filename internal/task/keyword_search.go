package task

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// variantParams are the fixed query parameters each search feed takes.
// The default variant has none and uses a custom time range instead.
var variantParams = map[crawler.SearchVariant]map[string]string{
	crawler.SearchVariantRealtime: {"rd": "realtime", "tw": "realtime"},
	crawler.SearchVariantPopular:  {"xsort": "hot", "suball": "1", "tw": "hotweibo"},
	crawler.SearchVariantVideo:    {"xsort": "hot", "tw": "video", "hasvideo": "1"},
	crawler.SearchVariantUser:     {"tw": "user"},
	crawler.SearchVariantTopic:    {"tw": "topic"},
}

// keywordSearchTask crawls one page of platform search results.
type keywordSearchTask struct {
	base
}

func newKeywordSearchTask(deps Deps, task crawler.NormalizedTask) *keywordSearchTask {
	return &keywordSearchTask{base: newBase(deps, task)}
}

func (t *keywordSearchTask) Run(ctx context.Context) crawler.TaskOutcome {
	return t.run(ctx, t.execute)
}

func (t *keywordSearchTask) execute(ctx context.Context) (crawler.TaskOutcome, error) {
	t.ensureSession(ctx)

	variant := t.variant()
	page := metaInt(t.task.Metadata, "page")
	timeRange := timescope(t.task.Start, t.task.End)

	query := map[string]string{"q": t.task.Keyword}
	if fixed, ok := variantParams[variant]; ok {
		for k, v := range fixed {
			query[k] = v
		}
	} else {
		query["timescope"] = timeRange
	}
	if page > 0 {
		query["page"] = strconv.Itoa(page)
	}

	response, err := t.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     t.deps.Platform.SearchBase,
		Query:   query,
		Headers: t.requestHeaders(),
		Render:  t.renderDirective(),
		Mode:    crawler.FetchModePrefer,
	})
	if err != nil {
		return crawler.TaskOutcome{}, fmt.Errorf("search fetch: %w", err)
	}

	stored, err := t.deps.Store.Store(ctx, crawler.StorePayload{
		Kind:      crawler.ContentKindSearchHTML,
		Platform:  t.deps.PlatformName,
		SourceURL: response.FinalURL,
		Body:      response.Body,
		Metadata: map[string]any{
			"taskId":    t.task.TaskID,
			"keyword":   t.task.Keyword,
			"page":      page,
			"variant":   string(variant),
			"timeRange": timeRange,
		},
	})
	if err != nil {
		return crawler.TaskOutcome{}, fmt.Errorf("store search page: %w", err)
	}
	if !stored {
		return duplicateOutcome(), nil
	}
	return crawler.TaskOutcome{Success: true}, nil
}

func (t *keywordSearchTask) variant() crawler.SearchVariant {
	raw := strings.ToUpper(strings.TrimSpace(metaString(t.task.Metadata, "searchType")))
	if raw == "" {
		return crawler.SearchVariantDefault
	}
	return crawler.SearchVariant(raw)
}

// renderDirective opts a search into the rendered strategy when the
// descriptor asks for it. Prefer mode keeps static as the fallback.
func (t *keywordSearchTask) renderDirective() *crawler.RenderDirective {
	if rendered, ok := t.task.Metadata["render"].(bool); !ok || !rendered {
		return nil
	}
	return &crawler.RenderDirective{
		WaitUntil: crawler.WaitDOMReady,
		IdlePause: 500 * time.Millisecond,
	}
}

// timescope encodes the search window the way the platform's custom
// range parameter expects: date plus a non-padded hour.
func timescope(start, end time.Time) string {
	return fmt.Sprintf("custom:%s-%d:%s-%d",
		start.Format("2006-01-02"), start.Hour(),
		end.Format("2006-01-02"), end.Hour())
}
