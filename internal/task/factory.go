package task

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// passthroughKeys are the raw descriptor fields copied into metadata
// when the metadata bag does not already carry them.
var passthroughKeys = []string{"searchType", "statusId", "userId", "page", "cursor"}

// Factory turns loosely-typed descriptors into runnable tasks.
type Factory struct {
	deps Deps
}

// NewFactory builds a Factory over the shared task dependencies.
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// Normalize validates a descriptor into its canonical shape. Every
// returned error is a *crawler.ValidationError; none are retryable.
func (f *Factory) Normalize(raw crawler.TaskDescriptor) (crawler.NormalizedTask, error) {
	if raw.TaskID <= 0 {
		return crawler.NormalizedTask{}, crawler.NewValidationError("taskId", "must be a positive number")
	}

	metadata := make(map[string]any, len(raw.Metadata)+len(passthroughKeys))
	for k, v := range raw.Metadata {
		metadata[k] = v
	}
	f.copyPassthrough(raw, metadata)

	keyword := strings.TrimSpace(raw.Keyword)
	if keyword == "" {
		keyword = strings.TrimSpace(metaString(metadata, "keyword"))
	}
	if keyword == "" {
		return crawler.NormalizedTask{}, crawler.NewValidationError("keyword", "missing keyword")
	}

	start, err := resolveInstant(raw.Start, metadata, "start")
	if err != nil {
		return crawler.NormalizedTask{}, err
	}
	end, err := resolveInstant(raw.End, metadata, "end")
	if err != nil {
		return crawler.NormalizedTask{}, err
	}
	if !start.Before(end) {
		return crawler.NormalizedTask{}, crawler.NewValidationError("start", "start must be strictly before end")
	}

	kind := raw.Type
	if kind == "" {
		kind = metaString(metadata, "type")
	}
	if kind == "" {
		kind = string(crawler.TaskKindKeywordSearch)
	}

	return crawler.NormalizedTask{
		TaskID:   raw.TaskID,
		Kind:     crawler.TaskKind(strings.ToUpper(strings.TrimSpace(kind))),
		Keyword:  keyword,
		Start:    start,
		End:      end,
		Metadata: metadata,
	}, nil
}

// Create dispatches a normalized task to its concrete kind.
func (f *Factory) Create(normalized crawler.NormalizedTask) (Task, error) {
	switch normalized.Kind {
	case crawler.TaskKindKeywordSearch:
		return newKeywordSearchTask(f.deps, normalized), nil
	case crawler.TaskKindStatusDetail:
		return newStatusDetailTask(f.deps, normalized), nil
	case crawler.TaskKindStatusComments:
		return newStatusCommentsTask(f.deps, normalized), nil
	case crawler.TaskKindUserProfile:
		return newUserProfileTask(f.deps, normalized), nil
	default:
		return nil, fmt.Errorf("%w: %s", crawler.ErrUnsupportedKind, normalized.Kind)
	}
}

func (f *Factory) copyPassthrough(raw crawler.TaskDescriptor, metadata map[string]any) {
	set := func(key string, value any, empty bool) {
		if empty {
			return
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}
	set("searchType", raw.SearchType, raw.SearchType == "")
	set("statusId", raw.StatusID, raw.StatusID == "")
	set("userId", raw.UserID, raw.UserID == "")
	set("page", raw.Page, raw.Page == 0)
	set("cursor", raw.Cursor, raw.Cursor == "")
}

// resolveInstant accepts a time.Time or an ISO-parseable string from
// the top-level field first, then the metadata bag.
func resolveInstant(top any, metadata map[string]any, field string) (time.Time, error) {
	value := top
	if value == nil {
		value = metadata[field]
	}
	if value == nil {
		return time.Time{}, crawler.NewValidationError(field, "missing")
	}
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, crawler.NewValidationError(field, fmt.Sprintf("unparseable instant %q", v))
	default:
		return time.Time{}, crawler.NewValidationError(field, fmt.Sprintf("unsupported type %T", value))
	}
}

// metaString reads the first non-empty string-ish value among keys.
func metaString(metadata map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := metadata[key]
		if !ok || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int, int64:
			return fmt.Sprintf("%d", v)
		}
	}
	return ""
}

// metaInt reads an integer-valued metadata field, tolerating the
// float64 shape JSON decoding produces.
func metaInt(metadata map[string]any, key string) int {
	value, ok := metadata[key]
	if !ok {
		return 0
	}
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
