// Package sim is an in-process driver: it applies input straight to the
// editor model and answers queries against the same markup the local editor
// server renders, so scenarios run without a browser.
package sim

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/kuitang/blockcheck/internal/blocks"
	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/errs"
	"github.com/kuitang/blockcheck/internal/obs"
	"github.com/kuitang/blockcheck/internal/web"
)

// Factory opens sim sessions.
type Factory struct {
	opts     driver.Options
	renderer *web.Renderer
}

// NewFactory creates a sim factory. Only Apple and ActionTimeout are used
// from opts.
func NewFactory(opts driver.Options) (*Factory, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "load editor templates", err)
	}
	if opts.Flavor.Name == "" {
		opts.Flavor = driver.Local
	}
	return &Factory{opts: opts, renderer: renderer}, nil
}

// NewSession opens a session. No document exists until CreateNewDocument.
func (f *Factory) NewSession(ctx context.Context) (driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, driver.Classify("open session", f.opts.Timeout(ctx), err)
	}
	return &Session{
		id:       obs.NewID("sess"),
		opts:     f.opts,
		renderer: f.renderer,
	}, nil
}

// Close is a no-op.
func (f *Factory) Close() error {
	return nil
}

// Session is one simulated editor page.
type Session struct {
	id       string
	opts     driver.Options
	renderer *web.Renderer

	mu     sync.Mutex
	postID string
	editor *blocks.Editor
	// dom is the parsed render of the current editor state; gen counts renders
	// so element handles can tell when they went stale.
	dom *html.Node
	gen int
}

var _ driver.Session = (*Session)(nil)

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// CreateNewDocument replaces the page with a new post.
func (s *Session) CreateNewDocument(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return driver.Classify("new document", s.opts.Timeout(ctx), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postID = obs.NewID("post")
	s.editor = blocks.NewEditor(blocks.WithApple(s.opts.Apple))
	return s.renderLocked()
}

// ClickBlockAppender clicks the default block appender.
func (s *Session) ClickBlockAppender(ctx context.Context) error {
	return s.Click(ctx, driver.CSS(s.opts.Flavor.AppenderSelector))
}

// TypeText presses one key per character; newlines press Enter.
func (s *Session) TypeText(ctx context.Context, text string) error {
	return s.input(ctx, "type text", func(e *blocks.Editor) error {
		for _, r := range text {
			key := string(r)
			if r == '\n' {
				key = "Enter"
			}
			if err := e.HandleKey(blocks.ParseKey(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// PressKey presses a single key.
func (s *Session) PressKey(ctx context.Context, key string) error {
	return s.input(ctx, "press "+key, func(e *blocks.Editor) error {
		return web.Input{Key: key}.Apply(e)
	})
}

// PressKeyWithModifier presses key with the modifiers of an alias.
func (s *Session) PressKeyWithModifier(ctx context.Context, modifier, key string) error {
	chord, err := driver.Chord(modifier, key, s.opts.Apple)
	if err != nil {
		return err
	}
	return s.PressKey(ctx, chord.String())
}

// Click clicks the first element matching loc. There is nothing to wait for
// in process, so a missing element is an immediate timeout.
func (s *Session) Click(ctx context.Context, loc driver.Locator) error {
	els, err := s.QueryAll(ctx, loc)
	if err != nil {
		return err
	}
	if len(els) == 0 {
		return driver.TimeoutError(loc.String(), s.opts.Timeout(ctx), nil)
	}
	return els[0].Click(ctx)
}

// QueryAll resolves loc against the current render.
func (s *Session) QueryAll(ctx context.Context, loc driver.Locator) ([]driver.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, driver.Classify("query "+loc.String(), s.opts.Timeout(ctx), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dom == nil {
		return nil, errs.New(errs.FailedPrecondition, "no document open")
	}

	nodes, err := queryNodes(s.dom, loc)
	if err != nil {
		return nil, err
	}
	out := make([]driver.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{session: s, node: n, gen: s.gen}
	}
	return out, nil
}

// SerializedContent returns the serialized post.
func (s *Session) SerializedContent(ctx context.Context) (string, error) {
	var content string
	err := s.read(ctx, func(e *blocks.Editor) {
		content = e.Serialize()
	})
	return content, err
}

// IsDefaultBlockFocused reports whether the caret is in an empty default block.
func (s *Session) IsDefaultBlockFocused(ctx context.Context) (bool, error) {
	var ok bool
	err := s.read(ctx, func(e *blocks.Editor) {
		ok = e.IsDefaultBlockFocused()
	})
	return ok, err
}

// Close discards the page.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor = nil
	s.dom = nil
	return nil
}

// Editor exposes the underlying model for tests.
func (s *Session) Editor() *blocks.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editor
}

func (s *Session) read(ctx context.Context, fn func(*blocks.Editor)) error {
	if err := ctx.Err(); err != nil {
		return driver.Classify("read editor", s.opts.Timeout(ctx), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil {
		return errs.New(errs.FailedPrecondition, "no document open")
	}
	fn(s.editor)
	return nil
}

func (s *Session) input(ctx context.Context, what string, fn func(*blocks.Editor) error) error {
	if err := ctx.Err(); err != nil {
		return driver.Classify(what, s.opts.Timeout(ctx), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil {
		return errs.New(errs.FailedPrecondition, "no document open")
	}
	err := fn(s.editor)
	if rerr := s.renderLocked(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (s *Session) renderLocked() error {
	var buf bytes.Buffer
	buf.WriteString(`<div id="editor" data-post-id="` + html.EscapeString(s.postID) + `">`)
	if err := s.renderer.RenderEditor(&buf, web.NewEditorView(s.postID, s.editor.State())); err != nil {
		return errs.Wrap(errs.Internal, "render editor", err)
	}
	buf.WriteString(`</div>`)

	doc, err := html.Parse(&buf)
	if err != nil {
		return errs.Wrap(errs.Internal, "parse editor markup", err)
	}
	s.dom = doc
	s.gen++
	return nil
}

func queryNodes(root *html.Node, loc driver.Locator) ([]*html.Node, error) {
	switch loc.Kind {
	case driver.KindXPath:
		nodes, err := htmlquery.QueryAll(root, loc.Expr)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid xpath %q", loc.Expr), err)
		}
		return nodes, nil
	default:
		// goquery matches nothing for selectors it cannot compile.
		return goquery.NewDocumentFromNode(root).Find(loc.Expr).Nodes, nil
	}
}

// Element is a node of one render.
type Element struct {
	session *Session
	node    *html.Node
	gen     int
}

func (el *Element) stale() error {
	if el.gen != el.session.gen {
		return errs.New(errs.FailedPrecondition, "element is not attached to the page")
	}
	return nil
}

// Click dispatches the action of the nearest ancestor carrying data-action,
// the way the page script delegates clicks. Clicking inert markup does nothing.
func (el *Element) Click(ctx context.Context) error {
	s := el.session
	if err := ctx.Err(); err != nil {
		return driver.Classify("click", s.opts.Timeout(ctx), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := el.stale(); err != nil {
		return err
	}
	if disabled(el.node) {
		return driver.TimeoutError("element to be enabled", s.opts.Timeout(ctx), nil)
	}

	target := actionTarget(el.node)
	if target == nil {
		return nil
	}
	in := web.Input{
		Action: attr(target, "data-action"),
		Index:  -1,
		Item:   attr(target, "data-item"),
	}
	if v := attr(target, "data-index"); v != "" {
		idx, err := strconv.Atoi(v)
		if err != nil {
			return errs.Wrap(errs.Internal, "bad data-index", err)
		}
		in.Index = idx
	}
	err := in.Apply(s.editor)
	if rerr := s.renderLocked(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Text returns the element's text content.
func (el *Element) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	el.session.mu.Lock()
	defer el.session.mu.Unlock()
	if err := el.stale(); err != nil {
		return "", err
	}
	return htmlquery.InnerText(el.node), nil
}

// Enabled reports whether the element is not disabled.
func (el *Element) Enabled(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	el.session.mu.Lock()
	defer el.session.mu.Unlock()
	if err := el.stale(); err != nil {
		return false, err
	}
	return !disabled(el.node), nil
}

func actionTarget(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && attr(n, "data-action") != "" {
			return n
		}
	}
	return nil
}

func disabled(n *html.Node) bool {
	for _, a := range n.Attr {
		switch {
		case a.Key == "disabled":
			return true
		case a.Key == "aria-disabled" && strings.EqualFold(a.Val, "true"):
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
