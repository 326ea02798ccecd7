package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/imeepos/crawl-engine/internal/crawler"
)

func testFactory() *Factory {
	return NewFactory(testDeps(&fakeSessions{}, &fakeFetcher{}, &fakeStore{stored: true}))
}

func TestNormalize_CompleteDescriptor(t *testing.T) {
	t.Parallel()

	normalized, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:  42,
		Type:    "KEYWORD_SEARCH",
		Keyword: "test",
		Start:   "2024-01-01",
		End:     "2024-01-02",
		Metadata: map[string]any{
			"page": float64(2),
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), normalized.TaskID)
	require.Equal(t, crawler.TaskKindKeywordSearch, normalized.Kind)
	require.Equal(t, "test", normalized.Keyword)
	require.Equal(t, 2, metaInt(normalized.Metadata, "page"))
	require.True(t, normalized.Start.Before(normalized.End))
}

func TestNormalize_EndBeforeStartRejected(t *testing.T) {
	t.Parallel()

	_, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:  1,
		Keyword: "x",
		Start:   "2024-02-01",
		End:     "2024-01-01",
	})
	var validationErr *crawler.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestNormalize_EqualInstantsRejected(t *testing.T) {
	t.Parallel()

	_, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:  1,
		Keyword: "x",
		Start:   "2024-01-01",
		End:     "2024-01-01",
	})
	var validationErr *crawler.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestNormalize_MissingTaskID(t *testing.T) {
	t.Parallel()

	_, err := testFactory().Normalize(crawler.TaskDescriptor{Keyword: "x"})
	var validationErr *crawler.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "taskId", validationErr.Field)
}

func TestNormalize_KeywordFromMetadata(t *testing.T) {
	t.Parallel()

	normalized, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID: 7,
		Start:  "2024-01-01",
		End:    "2024-01-02",
		Metadata: map[string]any{
			"keyword": "hidden",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hidden", normalized.Keyword)
}

func TestNormalize_MissingKeyword(t *testing.T) {
	t.Parallel()

	_, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID: 7,
		Start:  "2024-01-01",
		End:    "2024-01-02",
	})
	var validationErr *crawler.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "keyword", validationErr.Field)
}

func TestNormalize_InstantShapes(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	normalized, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:  9,
		Keyword: "shapes",
		Start:   start,
		End:     "2024-01-02T08:00:00Z",
	})
	require.NoError(t, err)
	require.Equal(t, start, normalized.Start)
	require.Equal(t, 24*time.Hour, normalized.End.Sub(normalized.Start))

	_, err = testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:  9,
		Keyword: "shapes",
		Start:   "not a date",
		End:     "2024-01-02",
	})
	var validationErr *crawler.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestNormalize_PassthroughDoesNotOverwriteMetadata(t *testing.T) {
	t.Parallel()

	normalized, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:   11,
		Keyword:  "pt",
		Start:    "2024-01-01",
		End:      "2024-01-02",
		StatusID: "from-top-level",
		UserID:   "u-top",
		Page:     3,
		Cursor:   "c-top",
		Metadata: map[string]any{
			"statusId": "already-set",
		},
	})
	require.NoError(t, err)
	require.Equal(t, "already-set", normalized.Metadata["statusId"])
	require.Equal(t, "u-top", normalized.Metadata["userId"])
	require.Equal(t, 3, normalized.Metadata["page"])
	require.Equal(t, "c-top", normalized.Metadata["cursor"])
}

func TestNormalize_KindDefaultsAndUppercases(t *testing.T) {
	t.Parallel()

	normalized, err := testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:  5,
		Keyword: "k",
		Start:   "2024-01-01",
		End:     "2024-01-02",
	})
	require.NoError(t, err)
	require.Equal(t, crawler.TaskKindKeywordSearch, normalized.Kind)

	normalized, err = testFactory().Normalize(crawler.TaskDescriptor{
		TaskID:  5,
		Type:    "status_detail",
		Keyword: "k",
		Start:   "2024-01-01",
		End:     "2024-01-02",
	})
	require.NoError(t, err)
	require.Equal(t, crawler.TaskKindStatusDetail, normalized.Kind)
}

func TestCreate_DispatchesAllKinds(t *testing.T) {
	t.Parallel()

	factory := testFactory()
	for _, kind := range []crawler.TaskKind{
		crawler.TaskKindKeywordSearch,
		crawler.TaskKindStatusDetail,
		crawler.TaskKindStatusComments,
		crawler.TaskKindUserProfile,
	} {
		created, err := factory.Create(crawler.NormalizedTask{TaskID: 1, Kind: kind})
		require.NoError(t, err, "kind %s", kind)
		require.NotNil(t, created)
	}
}

func TestCreate_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := testFactory().Create(crawler.NormalizedTask{TaskID: 1, Kind: "FOLLOW_GRAPH"})
	require.True(t, errors.Is(err, crawler.ErrUnsupportedKind))
}
