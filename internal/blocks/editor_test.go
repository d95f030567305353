package blocks

import (
	"fmt"
	"testing"

	"github.com/MakeNowJust/heredoc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/blockcheck/internal/errs"
)

func newTestEditor(t testing.TB, opts ...Option) *Editor {
	t.Helper()
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("block-%d", n)
	})}, opts...)
	return NewEditor(opts...)
}

func typeText(t testing.TB, e *Editor, s string) {
	t.Helper()
	require.NoError(t, e.InsertText(s))
}

func press(t testing.TB, e *Editor, chord string) {
	t.Helper()
	require.NoError(t, e.HandleKey(ParseKey(chord)))
}

// twoParagraphs builds the deletion fixture: two paragraphs and an empty third
// block holding the caret.
func twoParagraphs(t testing.TB) *Editor {
	t.Helper()
	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "First paragraph")
	press(t, e, "Enter")
	typeText(t, e, "Second paragraph")
	press(t, e, "Enter")
	return e
}

func contents(e *Editor) []string {
	bs := e.Document().Blocks()
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Content
	}
	return out
}

var twoParagraphsCaretMarked = heredoc.Doc(`
	<!-- wp:paragraph -->
	<p>First paragraph</p>
	<!-- /wp:paragraph -->

	<!-- wp:paragraph -->
	<p>Second paragraph - caret was here</p>
	<!-- /wp:paragraph -->`)

func TestNewEditor_StartsWithDefaultBlock(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.Equal(t, 1, e.Document().Len())
	assert.Equal(t, "", e.Serialize())
	assert.Equal(t, SelectionNone, e.Selection().Kind)
	assert.False(t, e.IsDefaultBlockFocused())
}

func TestFixture_CaretInEmptyThirdBlock(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	assert.Equal(t, []string{"First paragraph", "Second paragraph", ""}, contents(e))
	assert.Equal(t, Selection{Kind: SelectionCaret, Anchor: 2, Focus: 2}, e.Selection())
}

func TestRemoveShortcut_CaretAtEndOfSecondBlock(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	typeText(t, e, "this is block 2")
	press(t, e, "Shift+Alt+z")

	assert.Equal(t, []string{"First paragraph", "Second paragraph"}, contents(e))
	typeText(t, e, " - caret was here")
	assert.Equal(t, twoParagraphsCaretMarked, e.Serialize())
}

func TestRemoveShortcut_ApplePlatform(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t, WithApple(true))
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "one")
	press(t, e, "Enter")
	typeText(t, e, "two")

	// Shift+Alt is not the access modifier on Apple platforms.
	press(t, e, "Shift+Alt+z")
	assert.Equal(t, []string{"one", "two"}, contents(e))

	press(t, e, "Control+Alt+z")
	assert.Equal(t, []string{"one"}, contents(e))
}

func TestBackspaceInEmptyBlock_CaretAtEndOfSecondBlock(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	press(t, e, "Backspace")

	assert.Equal(t, []string{"First paragraph", "Second paragraph"}, contents(e))
	typeText(t, e, " - caret was here")
	assert.Equal(t, twoParagraphsCaretMarked, e.Serialize())
}

func TestMenuRemove_MatchesShortcutOutcome(t *testing.T) {
	t.Parallel()

	viaMenu := twoParagraphs(t)
	typeText(t, viaMenu, "Paragraph to remove")
	press(t, viaMenu, "Escape")
	require.NoError(t, viaMenu.Dispatch(Action{Name: ActionToggleSettings, Index: 2}))
	require.True(t, viaMenu.State().MenuOpen)
	require.NoError(t, viaMenu.Dispatch(Action{Name: ActionMenuItem, Item: MenuRemove}))

	viaShortcut := twoParagraphs(t)
	typeText(t, viaShortcut, "Paragraph to remove")
	press(t, viaShortcut, "Shift+Alt+z")

	assert.Equal(t, viaShortcut.Selection(), viaMenu.Selection())
	assert.Equal(t, viaShortcut.Serialize(), viaMenu.Serialize())
	assert.False(t, viaMenu.State().MenuOpen)
}

func TestWrapperSelection_LeavesThreeBlocks(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	typeText(t, e, "/image")
	press(t, e, "Enter")

	require.Equal(t, 4, e.Document().Len())
	img, _ := e.Document().Block(3)
	require.Equal(t, Image, img.Type)
	assert.Equal(t, Selection{Kind: SelectionBlock, Anchor: 3, Focus: 3}, e.Selection())

	require.NoError(t, e.Dispatch(Action{Name: ActionFocusTitle}))
	assert.Equal(t, SelectionNone, e.Selection().Kind)

	require.NoError(t, e.Dispatch(Action{Name: ActionSelectBlock, Index: 3}))
	press(t, e, "Backspace")

	require.Equal(t, 3, e.Document().Len())
	assert.Equal(t, Selection{Kind: SelectionCaret, Anchor: 2, Focus: 2}, e.Selection())

	typeText(t, e, " - caret was here")
	want := heredoc.Doc(`
		<!-- wp:paragraph -->
		<p>First paragraph</p>
		<!-- /wp:paragraph -->

		<!-- wp:paragraph -->
		<p>Second paragraph</p>
		<!-- /wp:paragraph -->

		<!-- wp:paragraph -->
		<p> - caret was here</p>
		<!-- /wp:paragraph -->`)
	assert.Equal(t, want, e.Serialize())
}

func TestMultiBlockSelection_RemovesBothBlocks(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	typeText(t, e, "Third paragraph")
	press(t, e, "Enter")
	press(t, e, "Shift+ArrowUp")

	from, to, ok := e.Selection().Bounds()
	require.True(t, ok)
	assert.Equal(t, SelectionRange, e.Selection().Kind)
	assert.Equal(t, []int{2, 3}, []int{from, to})

	press(t, e, "Backspace")
	assert.Equal(t, []string{"First paragraph", "Second paragraph"}, contents(e))

	typeText(t, e, " - caret was here")
	assert.Equal(t, twoParagraphsCaretMarked, e.Serialize())
}

func TestRemovingOnlyBlock_FocusesDefaultBlock(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "Paragraph")
	press(t, e, "Escape")
	require.NoError(t, e.Dispatch(Action{Name: ActionToggleSettings, Index: 0}))
	require.NoError(t, e.Dispatch(Action{Name: ActionMenuItem, Item: MenuRemove}))

	assert.Equal(t, 1, e.Document().Len())
	assert.Equal(t, "", e.Serialize())
	assert.True(t, e.IsDefaultBlockFocused())
}

func TestToggleSettings_RequiresVisibleToolbar(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	typeText(t, e, "still typing")

	err := e.Dispatch(Action{Name: ActionToggleSettings, Index: 2})
	require.Error(t, err)
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))

	err = e.Dispatch(Action{Name: ActionMenuItem, Item: MenuRemove})
	require.Error(t, err)
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
}

func TestDispatch_RejectsBadInput(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	err := e.Dispatch(Action{Name: ActionSelectBlock, Index: 5})
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))

	err = e.Dispatch(Action{Name: "explode"})
	require.Error(t, err)
	assert.Equal(t, errs.InvalidArgument, errs.CodeOf(err))
}

func TestMenuItems_DuplicateAndInsert(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "x")
	press(t, e, "Escape")

	require.NoError(t, e.Dispatch(Action{Name: ActionToggleSettings, Index: 0}))
	require.NoError(t, e.Dispatch(Action{Name: ActionMenuItem, Item: MenuDuplicate}))
	assert.Equal(t, []string{"x", "x"}, contents(e))
	assert.Equal(t, Selection{Kind: SelectionCaret, Anchor: 1, Focus: 1, Offset: 1}, e.Selection())

	require.NoError(t, e.Dispatch(Action{Name: ActionToggleSettings, Index: 1}))
	require.NoError(t, e.Dispatch(Action{Name: ActionMenuItem, Item: MenuInsertBefore}))
	assert.Equal(t, []string{"x", "", "x"}, contents(e))
	assert.Equal(t, 1, e.Selection().Anchor)

	require.NoError(t, e.Dispatch(Action{Name: ActionToggleSettings, Index: 1}))
	require.NoError(t, e.Dispatch(Action{Name: ActionMenuItem, Item: MenuInsertAfter}))
	assert.Equal(t, []string{"x", "", "", "x"}, contents(e))
	assert.Equal(t, 2, e.Selection().Anchor)
}

func TestShortcuts_DuplicateAndInsert(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "x")

	press(t, e, "Control+Shift+d")
	assert.Equal(t, []string{"x", "x"}, contents(e))

	press(t, e, "Control+Alt+t")
	assert.Equal(t, []string{"x", "", "x"}, contents(e))

	press(t, e, "Control+Alt+y")
	assert.Equal(t, []string{"x", "", "", "x"}, contents(e))
}

func TestShortcuts_WithoutSelectionDoNothing(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	for _, chord := range []string{"Shift+Alt+z", "Control+Shift+d", "Control+Alt+t", "Control+Alt+y"} {
		require.NoError(t, e.HandleKey(ParseKey(chord)), chord)
	}
	assert.Equal(t, 1, e.Document().Len())
	assert.Equal(t, "", e.Serialize())

	// Clicks still report a missing target.
	err := e.Dispatch(Action{Name: ActionMenuItem, Item: MenuRemove})
	assert.Equal(t, errs.FailedPrecondition, errs.CodeOf(err))
}

func TestEnter_SplitsParagraphAtCaret(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "héllo world")
	for range len(" world") {
		press(t, e, "ArrowLeft")
	}
	press(t, e, "Enter")

	assert.Equal(t, []string{"héllo", " world"}, contents(e))
	assert.Equal(t, Selection{Kind: SelectionCaret, Anchor: 1, Focus: 1}, e.Selection())
}

func TestBackspace_MergesIntoPreviousParagraph(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "ab")
	press(t, e, "Enter")
	typeText(t, e, "cd")
	press(t, e, "Home")
	press(t, e, "Backspace")

	assert.Equal(t, []string{"abcd"}, contents(e))
	assert.Equal(t, Selection{Kind: SelectionCaret, Anchor: 0, Focus: 0, Offset: 2}, e.Selection())
}

func TestBackspace_SoleEmptyBlockIsKept(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	press(t, e, "Backspace")

	assert.Equal(t, 1, e.Document().Len())
	assert.True(t, e.IsDefaultBlockFocused())
}

func TestBackspace_AfterImageSelectsImage(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "/image")
	press(t, e, "Enter")
	press(t, e, "Enter")
	typeText(t, e, "caption")
	press(t, e, "Home")
	press(t, e, "Backspace")

	assert.Equal(t, Selection{Kind: SelectionBlock, Anchor: 1, Focus: 1}, e.Selection())
}

func TestDelete_MergesNextParagraph(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "ab")
	press(t, e, "Enter")
	typeText(t, e, "cd")
	press(t, e, "ArrowUp")
	press(t, e, "End")
	press(t, e, "Delete")

	assert.Equal(t, []string{"abcd"}, contents(e))
}

func TestTypingOverRangeReplacesBlocks(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	press(t, e, "Shift+ArrowUp")
	typeText(t, e, "z")

	assert.Equal(t, []string{"First paragraph", "z"}, contents(e))
}

func TestExtend_ShrinksBackToWrapperSelection(t *testing.T) {
	t.Parallel()

	e := twoParagraphs(t)
	press(t, e, "Shift+ArrowUp")
	press(t, e, "Shift+ArrowDown")

	assert.Equal(t, Selection{Kind: SelectionBlock, Anchor: 2, Focus: 2}, e.Selection())
}

func TestTitle_TypingAndNavigation(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusTitle}))
	typeText(t, e, "Hellp")
	press(t, e, "Backspace")
	typeText(t, e, "o")
	assert.Equal(t, "Hello", e.State().Title)
	assert.Equal(t, "", e.Serialize())

	press(t, e, "Enter")
	assert.True(t, e.IsDefaultBlockFocused())

	press(t, e, "ArrowUp")
	assert.True(t, e.State().TitleFocused)
}

func TestSlashInserter_SeparatorAndParagraph(t *testing.T) {
	t.Parallel()

	e := newTestEditor(t)
	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "/sep")
	press(t, e, "Enter")

	bs := e.Document().Blocks()
	require.Len(t, bs, 2)
	assert.Equal(t, Paragraph, bs[0].Type)
	assert.Equal(t, Separator, bs[1].Type)

	require.NoError(t, e.Dispatch(Action{Name: ActionFocusText, Index: 0}))
	typeText(t, e, "/paragraph")
	press(t, e, "Enter")
	assert.Equal(t, []string{"", ""}, contents(e))
	assert.Equal(t, Selection{Kind: SelectionCaret, Anchor: 0, Focus: 0}, e.Selection())

	typeText(t, e, "/nothing")
	press(t, e, "Enter")
	assert.Equal(t, []string{"/nothing", "", ""}, contents(e))
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key{Name: "z", Shift: true, Alt: true}, ParseKey("Shift+Alt+z"))
	assert.Equal(t, Key{Name: "Backspace"}, ParseKey("Backspace"))
	assert.Equal(t, Key{Name: "+", Ctrl: true}, ParseKey("Control++"))
	assert.Equal(t, Key{Name: "+"}, ParseKey("+"))
	assert.Equal(t, Key{Name: "d", Meta: true, Shift: true}, ParseKey("Meta+Shift+d"))
}
