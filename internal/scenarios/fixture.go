package scenarios

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/errs"
)

// Editor markup the suite relies on.
const (
	BlockSelector        = ".block-editor-block-list__block"
	SettingsToggle       = ".block-editor-block-settings-menu__toggle"
	SettingsPopoverClass = "block-editor-block-settings-menu__popover"
	PostTitleSelector    = ".editor-post-title"
	ImageLabelSelector   = `.block-editor-block-list__block[data-type="core/image"] .components-placeholder__label`
)

// AddThreeParagraphsToNewPost opens a new post holding "First paragraph" and
// "Second paragraph", and leaves the caret in a third, empty paragraph.
func AddThreeParagraphsToNewPost(ctx context.Context, sess driver.Session) error {
	if err := sess.CreateNewDocument(ctx); err != nil {
		return err
	}
	if err := sess.ClickBlockAppender(ctx); err != nil {
		return err
	}
	for _, text := range []string{"First paragraph", "Second paragraph"} {
		if err := sess.TypeText(ctx, text); err != nil {
			return err
		}
		if err := sess.PressKey(ctx, "Enter"); err != nil {
			return err
		}
	}
	return nil
}

// ClickOnBlockSettingsMenuItem opens the settings menu of the selected block
// and clicks the first enabled item whose text contains label.
func ClickOnBlockSettingsMenuItem(ctx context.Context, sess driver.Session, label string) error {
	if err := sess.Click(ctx, driver.CSS(SettingsToggle)); err != nil {
		return err
	}
	items, err := sess.QueryAll(ctx, driver.XPath(settingsItemXPath(label)))
	if err != nil {
		return err
	}
	for _, item := range items {
		enabled, err := item.Enabled(ctx)
		if err != nil {
			return err
		}
		if enabled {
			return item.Click(ctx)
		}
	}
	return errs.New(errs.MissingControl, fmt.Sprintf("no enabled %q item in the block settings menu (%d matched)", label, len(items)))
}

func settingsItemXPath(label string) string {
	return fmt.Sprintf(`//*[contains(@class, "%s")]//button[contains(text(), %s)]`, SettingsPopoverClass, xpathLiteral(label))
}

// xpathLiteral quotes s for use in an XPath 1.0 expression, which has no
// escape sequences.
func xpathLiteral(s string) string {
	switch {
	case !strings.Contains(s, `'`):
		return `'` + s + `'`
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, `'`+p+`'`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
