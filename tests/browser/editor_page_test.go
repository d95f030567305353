package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/blockcheck/internal/driver"
)

func TestEditorPage_TypingCreatesParagraphs(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	env.InitBrowser(t)
	page := env.NewPage(t)

	Navigate(t, page, env.BaseURL, "/post-new")
	require.NoError(t, WaitForSelector(t, page, ".block-editor-default-block-appender__content").Click())

	kb := page.Keyboard()
	require.NoError(t, kb.Type("Hello"))
	require.NoError(t, kb.Press("Enter"))
	require.NoError(t, kb.Type("World"))

	content := EditorContent(t, page)
	assert.Equal(t,
		"<!-- wp:paragraph -->\n<p>Hello</p>\n<!-- /wp:paragraph -->\n\n<!-- wp:paragraph -->\n<p>World</p>\n<!-- /wp:paragraph -->",
		content)

	n, err := page.Locator(".block-editor-block-list__block").Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEditorPage_PreviewShowsRenderedPost(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	env.InitBrowser(t)
	page := env.NewPage(t)

	Navigate(t, page, env.BaseURL, "/post-new")
	require.NoError(t, WaitForSelector(t, page, ".block-editor-default-block-appender__content").Click())
	require.NoError(t, page.Keyboard().Type("Preview me"))
	EditorContent(t, page)

	postURL := page.URL()
	i := strings.Index(postURL, "/post/")
	require.GreaterOrEqual(t, i, 0, postURL)
	Navigate(t, page, env.BaseURL, postURL[i:]+"/preview")

	text, err := WaitForSelector(t, page, "article").TextContent()
	require.NoError(t, err)
	assert.Contains(t, text, "Preview me")
	html, err := page.Content()
	require.NoError(t, err)
	assert.NotContains(t, html, "wp:paragraph")
}

func TestEditorPage_RejectedInputFailsNextSettle(t *testing.T) {
	env := SetupBrowserTestEnv(t)
	env.InitBrowser(t)
	page := env.NewPage(t)

	Navigate(t, page, env.BaseURL, "/post-new")
	WaitForSelector(t, page, ".block-editor-default-block-appender__content")

	// A settings toggle for a block whose toolbar is not showing.
	_, err := page.Evaluate(`() => {
		const b = document.createElement('button');
		b.id = 'stale-toggle';
		b.setAttribute('data-action', 'toggle-settings');
		b.setAttribute('data-index', '3');
		b.textContent = 'Options';
		document.body.appendChild(b);
	}`)
	require.NoError(t, err)
	require.NoError(t, page.Locator("#stale-toggle").Click())

	_, err = page.Evaluate("() => " + driver.Local.SettleScript)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input rejected (409)")

	// The failure sticks: later reads report it too.
	_, err = page.Evaluate("() => " + driver.Local.ContentScript)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block toolbar for block 3 is not visible")
}
