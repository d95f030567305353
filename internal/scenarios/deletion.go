package scenarios

import (
	"context"

	"github.com/kuitang/blockcheck/internal/driver"
	"github.com/kuitang/blockcheck/internal/keycodes"
)

// SuiteName names the snapshot file of the block deletion suite.
const SuiteName = "block-deletion"

// GateMenuRemove enables the Remove Block menu scenario. Opening the settings
// menu right after Escape depends on toolbar timing in some editor builds.
const GateMenuRemove = "menu-remove"

const (
	groupBlockDeletion = "block deletion -"
	groupDeletingAll   = "deleting all blocks"

	caretMarker = " - caret was here"

	twoRemaining   = "results in two remaining blocks and positions the caret at the end of the second block"
	threeRemaining = "results in three remaining blocks and positions the caret at the end of the third block"
)

// Gates lists the feature gates the suite knows about.
var Gates = []string{GateMenuRemove}

// Suite returns the block deletion scenarios in run order.
func Suite() []Scenario {
	return []Scenario{
		{
			Group: groupBlockDeletion,
			Case:  "deleting the third block using the Remove Block menu item",
			Title: twoRemaining,
			Gate:  GateMenuRemove,
			Setup: addThreeParagraphs,
			Run:   deleteWithMenuItem,
		},
		{
			Group: groupBlockDeletion,
			Case:  "deleting the third block using the Remove Block shortcut",
			Title: twoRemaining,
			Setup: addThreeParagraphs,
			Run:   deleteWithShortcut,
		},
		{
			Group: groupBlockDeletion,
			Case:  "deleting the third block using backspace in an empty block",
			Title: twoRemaining,
			Setup: addThreeParagraphs,
			Run:   deleteWithBackspace,
		},
		{
			Group: groupBlockDeletion,
			Case:  "deleting the third block using backspace with block wrapper selection",
			Title: threeRemaining,
			Setup: addThreeParagraphs,
			Run:   deleteWrapperSelection,
		},
		{
			Group: groupBlockDeletion,
			Case:  "deleting the third and fourth blocks using backspace with multi-block selection",
			Title: twoRemaining,
			Setup: addThreeParagraphs,
			Run:   deleteMultiBlockSelection,
		},
		{
			Group: groupDeletingAll,
			Title: "results in the default block getting selected",
			Run:   deleteAllBlocks,
		},
	}
}

func addThreeParagraphs(ctx context.Context, t *T) error {
	t.Step("add three paragraphs to a new post")
	return AddThreeParagraphsToNewPost(ctx, t.Session)
}

// expectCaretAfterDeletion snapshots the content, types the caret marker and
// snapshots again so the second snapshot shows where the caret landed.
func expectCaretAfterDeletion(ctx context.Context, t *T, blocks int) error {
	t.Step("check remaining blocks")
	if err := t.ExpectBlockCount(ctx, blocks); err != nil {
		return err
	}
	t.Step("match content after deletion")
	if err := t.MatchContentSnapshot(ctx); err != nil {
		return err
	}
	t.Step("type caret marker")
	if err := t.Session.TypeText(ctx, caretMarker); err != nil {
		return err
	}
	t.Step("match content after typing")
	return t.MatchContentSnapshot(ctx)
}

func deleteWithMenuItem(ctx context.Context, t *T) error {
	// The toolbar only shows for a block with content.
	t.Step("type into the third block")
	if err := t.Session.TypeText(ctx, "Paragraph to remove"); err != nil {
		return err
	}
	t.Step("press Escape to show the block toolbar")
	if err := t.Session.PressKey(ctx, "Escape"); err != nil {
		return err
	}
	t.Step("click Remove Block")
	if err := ClickOnBlockSettingsMenuItem(ctx, t.Session, "Remove Block"); err != nil {
		return err
	}
	return expectCaretAfterDeletion(ctx, t, 2)
}

func deleteWithShortcut(ctx context.Context, t *T) error {
	t.Step("type into the third block")
	if err := t.Session.TypeText(ctx, "this is block 2"); err != nil {
		return err
	}
	t.Step("press access+z")
	if err := t.Session.PressKeyWithModifier(ctx, keycodes.Access, "z"); err != nil {
		return err
	}
	return expectCaretAfterDeletion(ctx, t, 2)
}

func deleteWithBackspace(ctx context.Context, t *T) error {
	t.Step("press Backspace in the empty block")
	if err := t.Session.PressKey(ctx, "Backspace"); err != nil {
		return err
	}
	return expectCaretAfterDeletion(ctx, t, 2)
}

func deleteWrapperSelection(ctx context.Context, t *T) error {
	// Object blocks are easier to select by their wrapper.
	t.Step("insert an image block")
	if err := t.Session.TypeText(ctx, "/image"); err != nil {
		return err
	}
	if err := t.Session.PressKey(ctx, "Enter"); err != nil {
		return err
	}
	t.Step("click the post title")
	if err := t.Session.Click(ctx, driver.CSS(PostTitleSelector)); err != nil {
		return err
	}
	t.Step("select the image block wrapper")
	if err := t.Session.Click(ctx, driver.CSS(ImageLabelSelector)); err != nil {
		return err
	}
	t.Step("press Backspace on the selected block")
	if err := t.Session.PressKey(ctx, "Backspace"); err != nil {
		return err
	}
	return expectCaretAfterDeletion(ctx, t, 3)
}

func deleteMultiBlockSelection(ctx context.Context, t *T) error {
	t.Step("add a third paragraph")
	if err := t.Session.TypeText(ctx, "Third paragraph"); err != nil {
		return err
	}
	if err := t.Session.PressKey(ctx, "Enter"); err != nil {
		return err
	}
	t.Step("extend the selection up one block")
	if err := t.Session.PressKeyWithModifier(ctx, keycodes.ShiftAlias, "ArrowUp"); err != nil {
		return err
	}
	t.Step("press Backspace on the selected blocks")
	if err := t.Session.PressKey(ctx, "Backspace"); err != nil {
		return err
	}
	return expectCaretAfterDeletion(ctx, t, 2)
}

func deleteAllBlocks(ctx context.Context, t *T) error {
	t.Step("create a single-block post")
	if err := t.Session.CreateNewDocument(ctx); err != nil {
		return err
	}
	if err := t.Session.ClickBlockAppender(ctx); err != nil {
		return err
	}
	if err := t.Session.TypeText(ctx, "Paragraph"); err != nil {
		return err
	}
	t.Step("press Escape to show the block toolbar")
	if err := t.Session.PressKey(ctx, "Escape"); err != nil {
		return err
	}
	t.Step("click Remove Block")
	if err := ClickOnBlockSettingsMenuItem(ctx, t.Session, "Remove Block"); err != nil {
		return err
	}

	// A default block is rendered, the saved content is still empty and
	// focus is retained.
	t.Step("check the default block is rendered")
	if err := t.ExpectBlockCount(ctx, 1); err != nil {
		return err
	}
	t.Step("check the content is empty")
	if err := t.ExpectContent(ctx, ""); err != nil {
		return err
	}
	t.Step("check the default block is focused")
	return t.ExpectDefaultBlockFocused(ctx, true)
}
