// Package pw drives Chromium through Playwright. The factory owns one
// browser; each session gets its own browser context so cookies and storage
// never leak between scenarios.
package pw

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/obs"
)

// Factory owns the Playwright driver process and a Chromium instance.
type Factory struct {
	opts    driver.Options
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewFactory starts Playwright and launches Chromium.
func NewFactory(ctx context.Context, opts driver.Options) (*Factory, error) {
	if opts.Flavor.Name == "" {
		opts.Flavor = driver.Local
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "playwright not available", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "could not launch browser", err)
	}
	obs.From(ctx).Info("browser_started", "driver", "playwright", "headless", opts.Headless, "version", browser.Version())
	return &Factory{opts: opts, pw: pw, browser: browser}, nil
}

// NewSession opens a browser context and page.
func (f *Factory) NewSession(ctx context.Context) (driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, driver.Classify("open session", 0, err)
	}
	id := obs.NewID("sess")
	headers := map[string]string{obs.HeaderSession: id}
	if f.opts.RunID != "" {
		headers[obs.HeaderRun] = f.opts.RunID
	}
	options := playwright.BrowserNewContextOptions{
		ExtraHttpHeaders: headers,
	}
	if f.opts.StorageState != "" {
		options.StorageStatePath = playwright.String(f.opts.StorageState)
	}

	bctx, err := f.browser.NewContext(options)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "could not create browser context", err)
	}
	timeoutMS := float64(f.opts.Timeout(context.Background()).Milliseconds())
	bctx.SetDefaultTimeout(timeoutMS)
	bctx.SetDefaultNavigationTimeout(timeoutMS)

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, errs.Wrap(errs.Unavailable, "could not create page", err)
	}
	return &Session{id: id, opts: f.opts, bctx: bctx, page: page}, nil
}

// Close closes the browser and stops Playwright.
func (f *Factory) Close() error {
	return errors.Join(f.browser.Close(), f.pw.Stop())
}

// Session is one browser context with a single page.
type Session struct {
	id   string
	opts driver.Options
	bctx playwright.BrowserContext
	page playwright.Page
}

var _ driver.Session = (*Session)(nil)

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// budget returns the timeout for one call in Playwright's milliseconds.
func (s *Session) budget(ctx context.Context) (time.Duration, *float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, driver.Classify("driver call", 0, err)
	}
	d := s.opts.Timeout(ctx)
	return d, playwright.Float(float64(d.Milliseconds())), nil
}

// classify maps Playwright timeouts to errs.Timeout.
func classify(what string, d time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return driver.TimeoutError(what, d, err)
	}
	return driver.Classify(what, d, err)
}

// CreateNewDocument opens a new post and waits for the block list.
func (s *Session) CreateNewDocument(ctx context.Context) error {
	d, timeout, err := s.budget(ctx)
	if err != nil {
		return err
	}
	fl := s.opts.Flavor
	if _, err := s.page.Goto(s.opts.URL(fl.NewPostPath), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   timeout,
	}); err != nil {
		return classify("navigate to "+fl.NewPostPath, d, err)
	}
	if err := s.page.Locator(fl.ReadySelector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeout,
	}); err != nil {
		return classify(fl.ReadySelector, d, err)
	}
	if fl.SetupScript != "" {
		if _, err := s.page.Evaluate(asFunction(fl.SetupScript)); err != nil {
			return classify("editor setup", d, err)
		}
	}
	return nil
}

// ClickBlockAppender clicks the default block appender.
func (s *Session) ClickBlockAppender(ctx context.Context) error {
	return s.Click(ctx, driver.CSS(s.opts.Flavor.AppenderSelector))
}

// TypeText types text one key at a time.
func (s *Session) TypeText(ctx context.Context, text string) error {
	d, _, err := s.budget(ctx)
	if err != nil {
		return err
	}
	return classify("type text", d, s.page.Keyboard().Type(text))
}

// PressKey presses a key by DOM key name.
func (s *Session) PressKey(ctx context.Context, key string) error {
	d, _, err := s.budget(ctx)
	if err != nil {
		return err
	}
	return classify("press "+key, d, s.page.Keyboard().Press(key))
}

// PressKeyWithModifier presses key with the modifiers of an alias.
// Playwright takes chords in the same "Shift+Alt+z" form keycodes renders.
func (s *Session) PressKeyWithModifier(ctx context.Context, modifier, key string) error {
	chord, err := driver.Chord(modifier, key, s.opts.Apple)
	if err != nil {
		return err
	}
	return s.PressKey(ctx, chord.String())
}

// Click clicks the first element matching loc once it is actionable.
func (s *Session) Click(ctx context.Context, loc driver.Locator) error {
	d, timeout, err := s.budget(ctx)
	if err != nil {
		return err
	}
	if err := s.settle(); err != nil {
		return classify("settle", d, err)
	}
	err = s.page.Locator(selector(loc)).First().Click(playwright.LocatorClickOptions{Timeout: timeout})
	return classify(loc.String(), d, err)
}

// QueryAll returns the elements currently matching loc.
func (s *Session) QueryAll(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	d, _, err := s.budget(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.settle(); err != nil {
		return nil, classify("settle", d, err)
	}
	locator := s.page.Locator(selector(loc))
	n, err := locator.Count()
	if err != nil {
		return nil, classify("query "+loc.String(), d, err)
	}
	out := make([]driver.Element, n)
	for i := range n {
		out[i] = &Element{session: s, loc: locator.Nth(i), desc: fmt.Sprintf("%s[%d]", loc, i)}
	}
	return out, nil
}

// SerializedContent evaluates the flavor's content script.
func (s *Session) SerializedContent(ctx context.Context) (string, error) {
	d, _, err := s.budget(ctx)
	if err != nil {
		return "", err
	}
	if err := s.settle(); err != nil {
		return "", classify("settle", d, err)
	}
	v, err := s.page.Evaluate(asFunction(s.opts.Flavor.ContentScript))
	if err != nil {
		return "", classify("serialized content", d, err)
	}
	content, ok := v.(string)
	if !ok {
		return "", errs.New(errs.Internal, fmt.Sprintf("content script returned %T", v))
	}
	return content, nil
}

// IsDefaultBlockFocused evaluates the flavor's focus script.
func (s *Session) IsDefaultBlockFocused(ctx context.Context) (bool, error) {
	d, _, err := s.budget(ctx)
	if err != nil {
		return false, err
	}
	if err := s.settle(); err != nil {
		return false, classify("settle", d, err)
	}
	v, err := s.page.Evaluate(asFunction(s.opts.Flavor.DefaultBlockFocusedScript))
	if err != nil {
		return false, classify("default block focus", d, err)
	}
	focused, ok := v.(bool)
	if !ok {
		return false, errs.New(errs.Internal, fmt.Sprintf("focus script returned %T", v))
	}
	return focused, nil
}

// Close discards the post and closes the browser context.
func (s *Session) Close(ctx context.Context) error {
	if script := s.opts.Flavor.DiscardScript; script != "" {
		if _, err := s.page.Evaluate(asFunction(script)); err != nil {
			obs.From(ctx).Debug("discard_post_failed", "session_id", s.id, "error", err)
		}
	}
	if err := s.bctx.Close(); err != nil {
		return errs.Wrap(errs.Unavailable, "close browser context", err)
	}
	return nil
}

// settle waits until the page has applied every input sent so far. A script
// rejection means the editor refused one of them.
func (s *Session) settle() error {
	if s.opts.Flavor.SettleScript == "" {
		return nil
	}
	_, err := s.page.Evaluate(asFunction(s.opts.Flavor.SettleScript))
	if err != nil && !errors.Is(err, playwright.ErrTimeout) {
		return driver.InputRejectedError(err)
	}
	return err
}

// Element is a locator for the n-th match of a query.
type Element struct {
	session *Session
	loc     playwright.Locator
	desc    string
}

// Click clicks the element once it is actionable.
func (el *Element) Click(ctx context.Context) error {
	d, timeout, err := el.session.budget(ctx)
	if err != nil {
		return err
	}
	return classify(el.desc, d, el.loc.Click(playwright.LocatorClickOptions{Timeout: timeout}))
}

// Text returns the element's text content.
func (el *Element) Text(ctx context.Context) (string, error) {
	d, timeout, err := el.session.budget(ctx)
	if err != nil {
		return "", err
	}
	text, err := el.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: timeout})
	return text, classify(el.desc, d, err)
}

// Enabled reports whether the element is enabled.
func (el *Element) Enabled(ctx context.Context) (bool, error) {
	d, timeout, err := el.session.budget(ctx)
	if err != nil {
		return false, err
	}
	disabled, err := el.loc.IsDisabled(playwright.LocatorIsDisabledOptions{Timeout: timeout})
	return !disabled, classify(el.desc, d, err)
}

func selector(loc driver.Locator) string {
	if loc.Kind == driver.KindXPath {
		return "xpath=" + loc.Expr
	}
	return loc.Expr
}

// asFunction wraps a script expression so Playwright evaluates it as a
// function and awaits the promise it returns.
func asFunction(expr string) string {
	return "() => (" + expr + ")"
}
