package task

import (
	"context"
	"fmt"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

// statusDetailTask fetches one status payload from the detail API.
type statusDetailTask struct {
	base
}

func newStatusDetailTask(deps Deps, task crawler.NormalizedTask) *statusDetailTask {
	return &statusDetailTask{base: newBase(deps, task)}
}

func (t *statusDetailTask) Run(ctx context.Context) crawler.TaskOutcome {
	return t.run(ctx, t.execute)
}

func (t *statusDetailTask) execute(ctx context.Context) (crawler.TaskOutcome, error) {
	statusID := metaString(t.task.Metadata, "statusId")
	if statusID == "" {
		return crawler.TaskOutcome{}, crawler.NewValidationError("statusId", "missing")
	}
	return t.fetchAPI(ctx, t.deps.Platform.DetailBase,
		map[string]string{"id": statusID},
		crawler.ContentKindStatusJSON,
		map[string]any{"statusId": statusID})
}

// statusCommentsTask pages through a status's comments by cursor.
type statusCommentsTask struct {
	base
}

func newStatusCommentsTask(deps Deps, task crawler.NormalizedTask) *statusCommentsTask {
	return &statusCommentsTask{base: newBase(deps, task)}
}

func (t *statusCommentsTask) Run(ctx context.Context) crawler.TaskOutcome {
	return t.run(ctx, t.execute)
}

func (t *statusCommentsTask) execute(ctx context.Context) (crawler.TaskOutcome, error) {
	statusID := metaString(t.task.Metadata, "statusId")
	if statusID == "" {
		return crawler.TaskOutcome{}, crawler.NewValidationError("statusId", "missing")
	}
	// The comments endpoint demands the author's uid alongside the
	// status id; inbound descriptors spell it several ways.
	userID := metaString(t.task.Metadata, "userId", "uid", "authorId")
	if userID == "" {
		return crawler.TaskOutcome{}, crawler.NewValidationError("userId", "no resolvable user id for comments fetch")
	}

	query := map[string]string{
		"id":               statusID,
		"uid":              userID,
		"is_show_bulletin": "2",
	}
	extra := map[string]any{"statusId": statusID, "userId": userID}
	if cursor := metaString(t.task.Metadata, "cursor"); cursor != "" {
		query["max_id"] = cursor
		extra["cursor"] = cursor
	}
	return t.fetchAPI(ctx, t.deps.Platform.CommentsBase, query,
		crawler.ContentKindCommentJSON, extra)
}

// userProfileTask fetches one user's profile payload.
type userProfileTask struct {
	base
}

func newUserProfileTask(deps Deps, task crawler.NormalizedTask) *userProfileTask {
	return &userProfileTask{base: newBase(deps, task)}
}

func (t *userProfileTask) Run(ctx context.Context) crawler.TaskOutcome {
	return t.run(ctx, t.execute)
}

func (t *userProfileTask) execute(ctx context.Context) (crawler.TaskOutcome, error) {
	userID := metaString(t.task.Metadata, "userId", "uid")
	if userID == "" {
		return crawler.TaskOutcome{}, crawler.NewValidationError("userId", "missing")
	}
	return t.fetchAPI(ctx, t.deps.Platform.ProfileBase,
		map[string]string{"uid": userID},
		crawler.ContentKindProfileJSON,
		map[string]any{"userId": userID})
}

// fetchAPI is the shared API-task path: static fetch with session
// credentials, store the JSON body, and charge the usage cost on
// success. Duplicates store nothing and charge nothing. Unlike HTML
// search, the API endpoints reject anonymous calls, so no session
// means the task fails and the producer decides about a retry.
func (b *base) fetchAPI(ctx context.Context, baseURL string, query map[string]string, kind crawler.ContentKind, extra map[string]any) (crawler.TaskOutcome, error) {
	b.ensureSession(ctx)
	if b.session == nil {
		return crawler.TaskOutcome{}, crawler.ErrNoSession
	}

	headers := b.requestHeaders()
	headers.Set("Accept", "application/json")

	response, err := b.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     baseURL,
		Query:   query,
		Headers: headers,
		Mode:    crawler.FetchModeRequired,
	})
	if err != nil {
		return crawler.TaskOutcome{}, fmt.Errorf("api fetch: %w", err)
	}

	metadata := map[string]any{
		"taskId":  b.task.TaskID,
		"keyword": b.task.Keyword,
	}
	for k, v := range extra {
		metadata[k] = v
	}

	stored, err := b.deps.Store.Store(ctx, crawler.StorePayload{
		Kind:      kind,
		Platform:  b.deps.PlatformName,
		SourceURL: response.FinalURL,
		Body:      response.Body,
		Metadata:  metadata,
	})
	if err != nil {
		return crawler.TaskOutcome{}, fmt.Errorf("store api payload: %w", err)
	}
	if !stored {
		return duplicateOutcome(), nil
	}
	b.chargeUsage(ctx)
	return crawler.TaskOutcome{Success: true}, nil
}
