package driver

import (
	"context"
	"time"

	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/logutil"
	"github.com/kuitang/blockcheck/internal/obs"
)

// textPreviewLen bounds typed text and content in debug logs.
const textPreviewLen = 120

// WithLogging wraps s so every call emits one structured driver_action
// event, the way the HTTP access log does for requests.
func WithLogging(s Session) Session {
	return &loggedSession{next: s}
}

type loggedSession struct {
	next Session
}

func (l *loggedSession) log(ctx context.Context, action string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs,
		"action", action,
		"session_id", l.next.ID(),
		"dur_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	logger := obs.From(ctx).With("pkg", "driver")
	if err != nil {
		logger.Warn("driver_action", append(attrs, "code", errs.CodeOf(err), "error", err)...)
		return
	}
	logger.Debug("driver_action", attrs...)
}

func (l *loggedSession) ID() string {
	return l.next.ID()
}

func (l *loggedSession) CreateNewDocument(ctx context.Context) error {
	start := time.Now()
	err := l.next.CreateNewDocument(ctx)
	l.log(ctx, "create_new_document", start, err)
	return err
}

func (l *loggedSession) ClickBlockAppender(ctx context.Context) error {
	start := time.Now()
	err := l.next.ClickBlockAppender(ctx)
	l.log(ctx, "click_block_appender", start, err)
	return err
}

func (l *loggedSession) TypeText(ctx context.Context, text string) error {
	start := time.Now()
	err := l.next.TypeText(ctx, text)
	l.log(ctx, "type_text", start, err, "text", logutil.TruncateForLog(text, textPreviewLen))
	return err
}

func (l *loggedSession) PressKey(ctx context.Context, key string) error {
	start := time.Now()
	err := l.next.PressKey(ctx, key)
	l.log(ctx, "press_key", start, err, "key", key)
	return err
}

func (l *loggedSession) PressKeyWithModifier(ctx context.Context, modifier, key string) error {
	start := time.Now()
	err := l.next.PressKeyWithModifier(ctx, modifier, key)
	l.log(ctx, "press_key", start, err, "modifier", modifier, "key", key)
	return err
}

func (l *loggedSession) Click(ctx context.Context, loc Locator) error {
	start := time.Now()
	err := l.next.Click(ctx, loc)
	l.log(ctx, "click", start, err, "locator", loc.String())
	return err
}

func (l *loggedSession) QueryAll(ctx context.Context, loc Locator) ([]Element, error) {
	start := time.Now()
	els, err := l.next.QueryAll(ctx, loc)
	l.log(ctx, "query_all", start, err, "locator", loc.String(), "count", len(els))
	return els, err
}

func (l *loggedSession) SerializedContent(ctx context.Context) (string, error) {
	start := time.Now()
	content, err := l.next.SerializedContent(ctx)
	l.log(ctx, "serialized_content", start, err, "content", logutil.TruncateForLog(content, textPreviewLen))
	return content, err
}

func (l *loggedSession) IsDefaultBlockFocused(ctx context.Context) (bool, error) {
	start := time.Now()
	ok, err := l.next.IsDefaultBlockFocused(ctx)
	l.log(ctx, "is_default_block_focused", start, err, "focused", ok)
	return ok, err
}

func (l *loggedSession) Close(ctx context.Context) error {
	start := time.Now()
	err := l.next.Close(ctx)
	l.log(ctx, "close", start, err)
	return err
}
