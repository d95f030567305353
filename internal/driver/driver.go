// Package driver defines the browser driver adapter the block deletion
// scenarios are written against. A Session is an explicit handle to one
// editor page; every scenario opens its own and closes it when done.
//
// Implementations live in subpackages: sim drives the editor model in
// process, pw drives Chromium through Playwright and cdp drives Chrome over
// the DevTools protocol.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/keycodes"
	"github.com/kuitang/blockcheck/internal/urlutil"
)

// LocatorKind tells how a locator expression is resolved.
type LocatorKind int

const (
	KindCSS LocatorKind = iota
	KindXPath
)

// Locator identifies elements by CSS selector or XPath expression.
type Locator struct {
	Kind LocatorKind
	Expr string
}

// CSS returns a CSS selector locator.
func CSS(selector string) Locator {
	return Locator{Kind: KindCSS, Expr: selector}
}

// XPath returns an XPath locator.
func XPath(expr string) Locator {
	return Locator{Kind: KindXPath, Expr: expr}
}

// ParseLocator treats expressions starting with "/" or "(" as XPath and
// everything else as CSS.
func ParseLocator(s string) Locator {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(") {
		return XPath(s)
	}
	return CSS(s)
}

func (l Locator) String() string {
	if l.Kind == KindXPath {
		return "xpath=" + l.Expr
	}
	return "css=" + l.Expr
}

// Element is a handle to one element returned by Session.QueryAll. Handles
// are only valid until the next input changes the page.
type Element interface {
	Click(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	Enabled(ctx context.Context) (bool, error)
}

// Session is one editor page.
type Session interface {
	// ID identifies the session in logs and request headers.
	ID() string
	// CreateNewDocument opens a new, empty post.
	CreateNewDocument(ctx context.Context) error
	// ClickBlockAppender clicks the default block appender of an empty post.
	ClickBlockAppender(ctx context.Context) error
	TypeText(ctx context.Context, text string) error
	// PressKey presses a key by DOM key name ("Backspace", "ArrowUp", "a").
	PressKey(ctx context.Context, key string) error
	// PressKeyWithModifier presses key while holding the modifiers a
	// keycodes alias ("access", "primaryShift", ...) resolves to.
	PressKeyWithModifier(ctx context.Context, modifier, key string) error
	// Click clicks the first element matching loc, waiting for it to appear.
	Click(ctx context.Context, loc Locator) error
	// QueryAll returns every element matching loc. It does not wait.
	QueryAll(ctx context.Context, loc Locator) ([]Element, error)
	// SerializedContent returns the edited post content.
	SerializedContent(ctx context.Context) (string, error)
	// IsDefaultBlockFocused reports whether the caret is in an empty default block.
	IsDefaultBlockFocused(ctx context.Context) (bool, error)
	Close(ctx context.Context) error
}

// Factory opens sessions against one browser or editor instance.
type Factory interface {
	NewSession(ctx context.Context) (Session, error)
	Close() error
}

// Options configures a Factory.
type Options struct {
	// BaseURL is the editor origin. The sim driver ignores it.
	BaseURL string
	Flavor  Flavor
	// Apple selects Apple modifier conventions.
	Apple    bool
	Headless bool
	// ActionTimeout bounds each wait for an element or a page script.
	ActionTimeout time.Duration
	// StorageState is a Playwright storage state file with a logged-in session.
	StorageState string
	// RunID is sent with every request so editor logs line up with runs.
	RunID string
}

// DefaultActionTimeout is used when Options.ActionTimeout is zero.
const DefaultActionTimeout = 5 * time.Second

// Timeout returns the action timeout, bounded by ctx's deadline.
func (o Options) Timeout(ctx context.Context) time.Duration {
	d := o.ActionTimeout
	if d <= 0 {
		d = DefaultActionTimeout
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = max(left, time.Millisecond)
		}
	}
	return d
}

// URL joins the base URL and path.
func (o Options) URL(path string) string {
	return urlutil.BuildAbsolute(o.BaseURL, path)
}

// Chord resolves a modifier alias for key.
func Chord(modifier, key string, apple bool) (keycodes.Chord, error) {
	return keycodes.NewChord(modifier, key, apple)
}

// TimeoutError reports a wait that exceeded its budget.
func TimeoutError(what string, d time.Duration, cause error) error {
	return errs.Wrap(errs.Timeout, fmt.Sprintf("timed out after %s waiting for %s", d, what), cause)
}

// InputRejectedError reports that the editor refused an input sent by an
// earlier call. Browser drivers only learn about it on the next settle.
func InputRejectedError(cause error) error {
	return errs.Wrap(errs.FailedPrecondition, "editor rejected an earlier input", cause)
}

// Classify maps a driver error to a coded error. Context deadline errors
// become timeouts; coded errors pass through unchanged.
func Classify(what string, d time.Duration, err error) error {
	if err == nil {
		return nil
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(what, d, err)
	}
	return errs.Wrap(errs.Unavailable, what, err)
}
