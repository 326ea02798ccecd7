package task

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/imeepos/crawl-engine/internal/crawler"
	"github.com/imeepos/crawl-engine/internal/metrics"
)

// statusCodePattern matches the "status code NNN" phrasing some HTTP
// clients embed in error strings.
var statusCodePattern = regexp.MustCompile(`status code (\d{3})`)

// base carries the lifecycle shared by every task kind.
type base struct {
	deps Deps
	task crawler.NormalizedTask

	sessionChecked bool
	session        *crawler.Session
}

func newBase(deps Deps, task crawler.NormalizedTask) base {
	return base{deps: deps, task: task}
}

// ensureSession acquires a session at most once per task instance.
// A second call is a no-op. Running without a session is allowed; the
// request simply goes out uncredentialed.
func (b *base) ensureSession(ctx context.Context) {
	if b.sessionChecked {
		return
	}
	b.sessionChecked = true

	session, err := b.deps.Sessions.Acquire(ctx)
	if err != nil {
		b.deps.Logger.Warn("session acquire failed",
			zap.Int64("task_id", b.task.TaskID),
			zap.Error(err))
		return
	}
	if session == nil {
		b.deps.Logger.Warn("no session available, proceeding uncredentialed",
			zap.Int64("task_id", b.task.TaskID))
		return
	}
	b.session = session
}

// requestHeaders builds the outbound headers, injecting the selected
// session's credential material when one was acquired.
func (b *base) requestHeaders() http.Header {
	headers := http.Header{}
	if b.session != nil {
		headers.Set("Cookie", b.session.CookieHeader())
	}
	return headers
}

// run is the template shared by every kind: execute, classify any
// error into a session penalty, and fold the result into an outcome.
func (b *base) run(ctx context.Context, execute func(context.Context) (crawler.TaskOutcome, error)) crawler.TaskOutcome {
	outcome, err := execute(ctx)
	if err != nil {
		b.penalizeForError(ctx, err)
		b.deps.Logger.Error("task execution failed",
			zap.Int64("task_id", b.task.TaskID),
			zap.String("kind", string(b.task.Kind)),
			zap.Error(err))
		metrics.ObserveTask(string(b.task.Kind), "failure")
		return crawler.TaskOutcome{Success: false, Error: err.Error()}
	}
	result := "success"
	if !outcome.Success {
		result = "failure"
		if outcome.Notes != "" {
			result = outcome.Notes
		}
	}
	metrics.ObserveTask(string(b.task.Kind), result)
	return outcome
}

// penalizeForError tiers the penalty by the HTTP status extracted from
// the error: 418/429 heavy, 5xx medium, everything else light.
func (b *base) penalizeForError(ctx context.Context, err error) {
	if b.session == nil {
		return
	}
	status := statusFromError(err)
	magnitude, tier := b.tierFor(status)
	metrics.ObserveSessionPenalty(tier)
	if perr := b.deps.Sessions.Penalize(ctx, b.session.ID, magnitude); perr != nil {
		b.deps.Logger.Warn("session penalty failed",
			zap.Int64("session_id", b.session.ID),
			zap.Error(perr))
	}
}

func (b *base) tierFor(status int) (float64, string) {
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return b.deps.Penalty.Heavy, "heavy"
	case status >= 500 && status < 600:
		return b.deps.Penalty.Medium, "medium"
	default:
		return b.deps.Penalty.Light, "light"
	}
}

// chargeUsage applies the small fixed usage cost API tasks pay on
// success, spreading load across the pool's finite per-session quotas.
func (b *base) chargeUsage(ctx context.Context) {
	if b.session == nil {
		return
	}
	metrics.ObserveSessionPenalty("usage")
	if err := b.deps.Sessions.Penalize(ctx, b.session.ID, b.deps.Penalty.Usage); err != nil {
		b.deps.Logger.Warn("usage charge failed",
			zap.Int64("session_id", b.session.ID),
			zap.Error(err))
	}
}

// duplicateOutcome is the non-failure result for payloads the content
// store already holds. It must not trigger penalties or retries.
func duplicateOutcome() crawler.TaskOutcome {
	return crawler.TaskOutcome{Success: false, Notes: "duplicate"}
}

// statusFromError digs an HTTP status out of an error: a typed fetch
// error first, then a textual "status code NNN" match.
func statusFromError(err error) int {
	var httpErr *crawler.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	if match := statusCodePattern.FindStringSubmatch(err.Error()); match != nil {
		code, convErr := strconv.Atoi(match[1])
		if convErr == nil {
			return code
		}
	}
	return 0
}
