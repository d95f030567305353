// Package cdp drives Chrome over the DevTools protocol with chromedp. The
// factory owns one browser; each session is a tab of it.
package cdp

import (
	"context"
	"errors"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/keycodes"
	"github.com/kuitang/blockcheck/internal/obs"
)

// Factory owns a Chrome process.
type Factory struct {
	opts driver.Options

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewFactory starts Chrome.
func NewFactory(ctx context.Context, opts driver.Options) (*Factory, error) {
	if opts.Flavor.Name == "" {
		opts.Flavor = driver.Local
	}
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("no-first-run", true),
		chromedp.NoSandbox,
	)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}

	// The browser outlives ctx; it is stopped by Close.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, errs.Wrap(errs.Unavailable, "start chrome", err)
	}
	obs.From(ctx).Info("browser_started", "driver", "chromedp", "headless", opts.Headless)

	return &Factory{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewSession opens a tab whose requests carry the run and session IDs.
func (f *Factory) NewSession(ctx context.Context) (driver.Session, error) {
	id := obs.NewID("sess")
	tabCtx, cancel := chromedp.NewContext(f.browserCtx)
	s := &Session{id: id, opts: f.opts, tabCtx: tabCtx, cancel: cancel}

	// The target must be created with the tab context itself: the first Run
	// binds the tab's event loop to the context it is given.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, errs.Wrap(errs.Unavailable, "open tab", err)
	}

	headers := network.Headers{obs.HeaderSession: id}
	if f.opts.RunID != "" {
		headers[obs.HeaderRun] = f.opts.RunID
	}
	if err := s.run(ctx, "open tab", network.Enable(), network.SetExtraHTTPHeaders(headers)); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Close stops Chrome.
func (f *Factory) Close() error {
	err := chromedp.Cancel(f.browserCtx)
	f.browserCancel()
	f.allocCancel()
	return err
}

// Session is one tab.
type Session struct {
	id     string
	opts   driver.Options
	tabCtx context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

var _ driver.Session = (*Session)(nil)

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// run executes actions on the tab, bounded by the action timeout and by ctx.
func (s *Session) run(ctx context.Context, what string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return driver.Classify(what, 0, err)
	}
	d := s.opts.Timeout(ctx)
	runCtx, cancel := context.WithTimeout(s.tabCtx, d)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return driver.Classify(what, d, chromedp.Run(runCtx, actions...))
}

// CreateNewDocument navigates to a new post and waits for the block list.
func (s *Session) CreateNewDocument(ctx context.Context) error {
	fl := s.opts.Flavor
	actions := []chromedp.Action{
		chromedp.Navigate(s.opts.URL(fl.NewPostPath)),
		chromedp.WaitVisible(fl.ReadySelector, chromedp.ByQuery),
	}
	if fl.SetupScript != "" {
		var ignored any
		actions = append(actions, chromedp.Evaluate(fl.SetupScript, &ignored))
	}
	return s.run(ctx, "new document", actions...)
}

// ClickBlockAppender clicks the default block appender.
func (s *Session) ClickBlockAppender(ctx context.Context) error {
	return s.Click(ctx, driver.CSS(s.opts.Flavor.AppenderSelector))
}

// TypeText dispatches key events for each character.
func (s *Session) TypeText(ctx context.Context, text string) error {
	return s.run(ctx, "type text", chromedp.KeyEvent(text))
}

// PressKey presses a named key or a single character.
func (s *Session) PressKey(ctx context.Context, key string) error {
	return s.press(ctx, keycodes.Chord{Key: key})
}

// PressKeyWithModifier presses key with the modifiers of an alias.
func (s *Session) PressKeyWithModifier(ctx context.Context, modifier, key string) error {
	chord, err := driver.Chord(modifier, key, s.opts.Apple)
	if err != nil {
		return err
	}
	return s.press(ctx, chord)
}

func (s *Session) press(ctx context.Context, chord keycodes.Chord) error {
	keys, ok := namedKeys[chord.Key]
	if !ok {
		keys = chord.Key
	}
	var mods []input.Modifier
	for _, m := range chord.Modifiers {
		mods = append(mods, modifierBits[m])
	}
	return s.run(ctx, "press "+chord.String(), chromedp.KeyEvent(keys, chromedp.KeyModifiers(mods...)))
}

// Click waits for the first element matching loc to be visible and clicks it.
func (s *Session) Click(ctx context.Context, loc driver.Locator) error {
	return s.run(ctx, loc.String(), s.settle(), chromedp.Click(loc.Expr, queryOption(loc)))
}

// QueryAll returns the elements currently matching loc.
func (s *Session) QueryAll(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, "query "+loc.String(), s.settle(), chromedp.Nodes(loc.Expr, &nodes, queryOption(loc), chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	out := make([]driver.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{session: s, node: n}
	}
	return out, nil
}

// SerializedContent evaluates the flavor's content script.
func (s *Session) SerializedContent(ctx context.Context) (string, error) {
	var content string
	err := s.run(ctx, "serialized content", s.settle(), chromedp.Evaluate(s.opts.Flavor.ContentScript, &content, awaitPromise))
	return content, err
}

// IsDefaultBlockFocused evaluates the flavor's focus script.
func (s *Session) IsDefaultBlockFocused(ctx context.Context) (bool, error) {
	var ok bool
	err := s.run(ctx, "default block focus", s.settle(), chromedp.Evaluate(s.opts.Flavor.DefaultBlockFocusedScript, &ok, awaitPromise))
	return ok, err
}

// Close discards the post and closes the tab.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if script := s.opts.Flavor.DiscardScript; script != "" {
			var ok bool
			if derr := s.run(ctx, "discard post", chromedp.Evaluate(script, &ok, awaitPromise)); derr != nil {
				obs.From(ctx).Debug("discard_post_failed", "session_id", s.id, "error", derr)
			}
		}
		err = chromedp.Cancel(s.tabCtx)
		s.cancel()
	})
	if err != nil {
		return errs.Wrap(errs.Unavailable, "close tab", err)
	}
	return nil
}

// settle waits until the page has applied every input sent so far.
func (s *Session) settle() chromedp.Action {
	script := s.opts.Flavor.SettleScript
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if script == "" {
			return nil
		}
		var ignored any
		err := chromedp.Evaluate(script, &ignored, awaitPromise).Do(ctx)
		var exc *runtime.ExceptionDetails
		if errors.As(err, &exc) {
			return driver.InputRejectedError(err)
		}
		return err
	})
}

// Element is a DOM node of a tab.
type Element struct {
	session *Session
	node    *cdp.Node
}

// Click clicks the node's center.
func (el *Element) Click(ctx context.Context) error {
	return el.session.run(ctx, "click element", chromedp.MouseClickNode(el.node))
}

// Text returns the node's visible text.
func (el *Element) Text(ctx context.Context) (string, error) {
	var text string
	err := el.session.run(ctx, "element text", chromedp.Text([]cdp.NodeID{el.node.NodeID}, &text, chromedp.ByNodeID))
	return text, err
}

// Enabled reports whether the node had no disabled attribute when queried.
func (el *Element) Enabled(ctx context.Context) (bool, error) {
	if _, ok := el.node.Attribute("disabled"); ok {
		return false, nil
	}
	v, _ := el.node.Attribute("aria-disabled")
	return v != "true", nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func queryOption(loc driver.Locator) chromedp.QueryOption {
	if loc.Kind == driver.KindXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Backspace":  kb.Backspace,
	"Escape":     kb.Escape,
	"Delete":     kb.Delete,
	"Tab":        kb.Tab,
	"ArrowUp":    kb.ArrowUp,
	"ArrowDown":  kb.ArrowDown,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
	"Home":       kb.Home,
	"End":        kb.End,
}

var modifierBits = map[string]input.Modifier{
	keycodes.Shift:   input.ModifierShift,
	keycodes.Alt:     input.ModifierAlt,
	keycodes.Control: input.ModifierCtrl,
	keycodes.Meta:    input.ModifierMeta,
}
