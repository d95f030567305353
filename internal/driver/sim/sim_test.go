package sim

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/errs"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	f, err := NewFactory(driver.Options{})
	require.NoError(t, err)
	sess, err := f.NewSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.CreateNewDocument(context.Background()))
	return sess.(*Session)
}

func TestSession_TypingThroughAppender(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)

	els, err := s.QueryAll(ctx, driver.CSS(".block-editor-default-block-appender__content"))
	require.NoError(t, err)
	require.Len(t, els, 1)

	require.NoError(t, s.ClickBlockAppender(ctx))
	require.NoError(t, s.TypeText(ctx, "First paragraph"))
	require.NoError(t, s.PressKey(ctx, "Enter"))
	require.NoError(t, s.TypeText(ctx, "Second paragraph"))

	content, err := s.SerializedContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<!-- wp:paragraph -->\n<p>First paragraph</p>\n<!-- /wp:paragraph -->\n\n"+
		"<!-- wp:paragraph -->\n<p>Second paragraph</p>\n<!-- /wp:paragraph -->", content)

	blocks, err := s.QueryAll(ctx, driver.CSS(".block-editor-block-list__block"))
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	text, err := blocks[1].Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Second paragraph", strings.TrimSpace(text))
}

func TestSession_SettingsMenuByXPath(t *testing.T) {
	ctx := context.Background()
	s := newSession(t)
	require.NoError(t, s.ClickBlockAppender(ctx))
	require.NoError(t, s.TypeText(ctx, "Paragraph"))
	require.NoError(t, s.PressKey(ctx, "Escape"))
	require.NoError(t, s.Click(ctx, driver.CSS(".block-editor-block-settings-menu__toggle")))

	items, err := s.QueryAll(ctx, driver.XPath(`//*[contains(@class, "block-editor-block-settings-menu__popover")]//button[contains(text(), "Remove Block")]`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	enabled, err := items[0].Enabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)
	require.NoError(t, items[0].Click(ctx))

	content, err := s.SerializedContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", content)
	focused, err := s.IsDefaultBlockFocused(ctx)
	require.NoError(t, err)
	assert.True(t, focused)

	// The click re-rendered the page.
	_, err = items[0].Text(ctx)
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
}

func TestSession_ShortcutUsesPlatformModifiers(t *testing.T) {
	ctx := context.Background()
	for _, apple := range []bool{false, true} {
		f, err := NewFactory(driver.Options{Apple: apple})
		require.NoError(t, err)
		sess, err := f.NewSession(ctx)
		require.NoError(t, err)
		require.NoError(t, sess.CreateNewDocument(ctx))
		require.NoError(t, sess.ClickBlockAppender(ctx))
		require.NoError(t, sess.TypeText(ctx, "x"))
		require.NoError(t, sess.PressKeyWithModifier(ctx, "access", "z"))

		content, err := sess.SerializedContent(ctx)
		require.NoError(t, err)
		assert.Equal(t, "", content, "apple=%v", apple)
	}
}

func TestSession_ShortcutWithoutSelectionIsIgnored(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	require.NoError(t, s.PressKeyWithModifier(ctx, "access", "z"))

	content, err := s.SerializedContent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", content)
}

func TestSession_ClickMissingElementTimesOut(t *testing.T) {
	s := newSession(t)
	err := s.Click(context.Background(), driver.CSS(".block-editor-block-settings-menu__toggle"))
	require.Error(t, err)
	assert.Equal(t, errs.Timeout, errs.CodeOf(err))
}

func TestSession_RequiresDocument(t *testing.T) {
	f, err := NewFactory(driver.Options{})
	require.NoError(t, err)
	sess, err := f.NewSession(context.Background())
	require.NoError(t, err)
	err = sess.TypeText(context.Background(), "x")
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
}

func TestSession_CancelledContext(t *testing.T) {
	s := newSession(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.PressKey(ctx, "Enter")
	require.Error(t, err)
	assert.Equal(t, errs.Unavailable, errs.CodeOf(err))
}

func TestParseLocator(t *testing.T) {
	assert.Equal(t, driver.KindXPath, driver.ParseLocator("//button").Kind)
	assert.Equal(t, driver.KindXPath, driver.ParseLocator("(//button)[1]").Kind)
	assert.Equal(t, driver.KindCSS, driver.ParseLocator(".editor-post-title").Kind)
}
