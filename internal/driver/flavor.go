package driver

import (
	"fmt"
	"strings"

	"github.com/kuitang/blockcheck/internal/errs"
)

// Flavor describes the editor a browser driver talks to: where new posts
// are created and which page scripts read the editor state.
type Flavor struct {
	Name string
	// NewPostPath opens a new post relative to the base URL.
	NewPostPath string
	// ReadySelector appears once the block list is interactive.
	ReadySelector    string
	AppenderSelector string
	// SetupScript runs once after each new post loads. Optional.
	SetupScript string
	// SettleScript resolves once pending input has been applied. Optional.
	SettleScript string
	// ContentScript evaluates to the serialized post content.
	ContentScript string
	// DefaultBlockFocusedScript evaluates to a boolean.
	DefaultBlockFocusedScript string
	// DiscardScript deletes the post when the session closes. Optional.
	DiscardScript string
}

const appenderSelector = ".block-editor-default-block-appender__content"

// Local is the editor served by blockcheck serve.
var Local = Flavor{
	Name:                      "local",
	NewPostPath:               "/post-new",
	ReadySelector:             ".block-editor-block-list__layout",
	AppenderSelector:          appenderSelector,
	SettleScript:              "window.blockEditor.settle().then(() => true)",
	ContentScript:             "window.blockEditor.content()",
	DefaultBlockFocusedScript: "window.blockEditor.isDefaultBlockFocused()",
	DiscardScript:             "window.blockEditor.discard()",
}

// WordPress is a WordPress install with the block editor. Sessions need a
// logged-in storage state.
var WordPress = Flavor{
	Name:             "wordpress",
	NewPostPath:      "/wp-admin/post-new.php",
	ReadySelector:    ".block-editor-block-list__layout",
	AppenderSelector: appenderSelector,
	SetupScript: `(() => {
		const prefs = window.wp && wp.data && wp.data.dispatch('core/preferences');
		if (prefs) { prefs.set('core/edit-post', 'welcomeGuide', false); }
		return true;
	})()`,
	ContentScript: "wp.data.select('core/editor').getEditedPostContent()",
	DefaultBlockFocusedScript: `(() => {
		const el = document.activeElement && document.activeElement.closest('[data-type]');
		return !!el && el.getAttribute('data-type') === wp.blocks.getDefaultBlockName()
			&& el.textContent === '';
	})()`,
}

// Flavors lists the known flavors.
var Flavors = []Flavor{Local, WordPress}

// FlavorByName looks up a flavor.
func FlavorByName(name string) (Flavor, error) {
	for _, f := range Flavors {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return Flavor{}, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown editor flavor %q", name))
}
