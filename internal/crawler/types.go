// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// SessionStatus represents the lifecycle state of an authenticated session.
type SessionStatus string

// Session status values maintained by the external account manager.
const (
	SessionStatusActive     SessionStatus = "ACTIVE"
	SessionStatusExpired    SessionStatus = "EXPIRED"
	SessionStatusRestricted SessionStatus = "RESTRICTED"
	SessionStatusBanned     SessionStatus = "BANNED"
)

// Session is one authenticated identity usable for outbound requests.
// Records are owned by the external account manager; this layer only
// reads them and adjusts the health score in the ranked set.
type Session struct {
	ID          int64         `json:"id"`
	PlatformUID string        `json:"platform_uid"`
	DisplayName string        `json:"display_name,omitempty"`
	Cookies     string        `json:"cookies"`
	HealthScore float64       `json:"health_score"`
	Status      SessionStatus `json:"status"`
}

// CookieHeader returns the serialized credential material ready to be
// injected as a Cookie header on an outbound request.
func (s Session) CookieHeader() string {
	return s.Cookies
}

// TaskKind selects the behavior of a normalized task.
type TaskKind string

// Supported task kinds.
const (
	TaskKindKeywordSearch  TaskKind = "KEYWORD_SEARCH"
	TaskKindStatusDetail   TaskKind = "STATUS_DETAIL"
	TaskKindStatusComments TaskKind = "STATUS_COMMENTS"
	TaskKindUserProfile    TaskKind = "USER_PROFILE"
)

// SearchVariant narrows a keyword search to a platform-specific feed.
type SearchVariant string

// Search variants understood by the keyword-search task.
const (
	SearchVariantDefault  SearchVariant = "DEFAULT"
	SearchVariantRealtime SearchVariant = "REALTIME"
	SearchVariantPopular  SearchVariant = "POPULAR"
	SearchVariantVideo    SearchVariant = "VIDEO"
	SearchVariantUser     SearchVariant = "USER"
	SearchVariantTopic    SearchVariant = "TOPIC"
)

// TaskDescriptor is the loosely-typed inbound message pulled off the
// task queue. All fields besides TaskID are optional at this stage;
// normalization decides what is actually required.
type TaskDescriptor struct {
	TaskID     int64          `json:"taskId"`
	Type       string         `json:"type,omitempty"`
	Keyword    string         `json:"keyword,omitempty"`
	Start      any            `json:"start,omitempty"`
	End        any            `json:"end,omitempty"`
	SearchType string         `json:"searchType,omitempty"`
	StatusID   string         `json:"statusId,omitempty"`
	UserID     string         `json:"userId,omitempty"`
	Page       int            `json:"page,omitempty"`
	Cursor     string         `json:"cursor,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NormalizedTask is the validated, strongly-typed counterpart of a
// TaskDescriptor. Start is guaranteed to be strictly before End.
type NormalizedTask struct {
	TaskID   int64
	Kind     TaskKind
	Keyword  string
	Start    time.Time
	End      time.Time
	Metadata map[string]any
}

// TaskOutcome is the structured result of one task execution. Duplicate
// content reports Success=false with Notes "duplicate"; that is normal
// dedup, not a failure.
type TaskOutcome struct {
	Success bool   `json:"success"`
	Notes   string `json:"notes,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WaitCondition names the navigation completion condition for a render.
type WaitCondition string

// Navigation completion conditions.
const (
	WaitLoad        WaitCondition = "load"
	WaitDOMReady    WaitCondition = "domready"
	WaitNetworkIdle WaitCondition = "networkidle"
)

// RenderDirective carries optional hints for a rendered fetch. A nil
// directive on a FetchRequest means the static strategy is used.
type RenderDirective struct {
	WaitUntil     WaitCondition
	WaitSelectors []string
	IdlePause     time.Duration
	Timeout       time.Duration
}

// FetchMode governs fallback behavior when a render directive is present.
type FetchMode string

// Fetch modes.
const (
	// FetchModeRequired propagates render failures to the caller.
	FetchModeRequired FetchMode = "required"
	// FetchModePrefer retries with the static strategy on render failure.
	FetchModePrefer FetchMode = "prefer"
)

// FetchStrategy identifies which strategy actually served a fetch.
type FetchStrategy string

// Fetch strategies.
const (
	StrategyStatic   FetchStrategy = "static"
	StrategyRendered FetchStrategy = "rendered"
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Query   map[string]string
	Headers http.Header
	Render  *RenderDirective
	Mode    FetchMode
}

// FetchResponse is the result returned by the fetch router.
type FetchResponse struct {
	Body     []byte
	Status   int
	FinalURL string
	Strategy FetchStrategy
	Duration time.Duration
}

// RenderResult is the outcome of one rendered navigation.
type RenderResult struct {
	Body     string
	Status   int
	FinalURL string
}

// RenderHealth describes the rendering subsystem for operational probes.
type RenderHealth struct {
	Enabled  bool   `json:"enabled"`
	OK       bool   `json:"ok"`
	FinalURL string `json:"finalUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ContentKind classifies a stored payload.
type ContentKind string

// Content kinds persisted by the content store.
const (
	ContentKindSearchHTML  ContentKind = "SEARCH_HTML"
	ContentKindStatusJSON  ContentKind = "STATUS_JSON"
	ContentKindCommentJSON ContentKind = "COMMENT_JSON"
	ContentKindProfileJSON ContentKind = "PROFILE_JSON"
)

// StorePayload is the input to the content store.
type StorePayload struct {
	Kind      ContentKind
	Platform  string
	SourceURL string
	Body      []byte
	Metadata  map[string]any
}

// StoredRecord is the persisted row created for a unique payload.
type StoredRecord struct {
	ID          string
	ContentHash string
	BlobURI     string
	CreatedAt   time.Time
}

// ReadyEvent is published downstream exactly once per unique payload.
type ReadyEvent struct {
	RecordID    string         `json:"recordId"`
	ContentKind ContentKind    `json:"contentKind"`
	Platform    string         `json:"sourcePlatform"`
	SourceURL   string         `json:"sourceUrl"`
	ContentHash string         `json:"contentHash"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"createdAt"`
}
